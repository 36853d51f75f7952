package multicast

import (
	"context"

	"github.com/dokzlo13/sdactl/internal/catalyst"
)

func readVN(ctx context.Context, exec catalyst.Executor, fabricID, name string) (*VN, error) {
	params := catalyst.Params{"fabricId": fabricID, "virtualNetworkName": name}
	resp, err := exec.Exec(ctx, "sda", "get_multicast_virtual_networks", params)
	if err != nil {
		return nil, err
	}
	items, err := catalyst.DecodeItems[VN](resp)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.FabricID == fabricID && it.VirtualNetworkName == name {
			return &it, nil
		}
	}
	return nil, nil
}

func readReplication(ctx context.Context, exec catalyst.Executor, fabricID string) (*Replication, error) {
	resp, err := exec.Exec(ctx, "sda", "get_multicast", catalyst.Params{"fabricId": fabricID})
	if err != nil {
		return nil, err
	}
	items, err := catalyst.DecodeItems[Replication](resp)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.FabricID == fabricID {
			return &it, nil
		}
	}
	return nil, nil
}

// isFabricDevice reports whether a device is a member of the fabric.
func isFabricDevice(ctx context.Context, exec catalyst.Executor, fabricID, deviceID string) (bool, error) {
	params := catalyst.Params{"fabricId": fabricID, "networkDeviceId": deviceID}
	resp, err := exec.Exec(ctx, "sda", "get_fabric_devices", params)
	if err != nil {
		return false, err
	}
	for _, it := range resp.Items() {
		if it.Get("networkDeviceId").String() == deviceID {
			return true, nil
		}
	}
	return false, nil
}
