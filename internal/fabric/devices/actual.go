package devices

import (
	"context"

	"github.com/dokzlo13/sdactl/internal/catalyst"
	"github.com/dokzlo13/sdactl/internal/resolve"
)

func deviceParams(fabricID, deviceID string) catalyst.Params {
	return catalyst.Params{"fabricId": fabricID, "networkDeviceId": deviceID}
}

// readFabricDevice returns the device's membership in fabricID, or nil.
func readFabricDevice(ctx context.Context, exec catalyst.Executor, fabricID, deviceID string) (*FabricDevice, error) {
	resp, err := exec.Exec(ctx, "sda", "get_fabric_devices", deviceParams(fabricID, deviceID))
	if err != nil {
		return nil, err
	}
	items, err := catalyst.DecodeItems[FabricDevice](resp)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.FabricID == fabricID && it.NetworkDeviceID == deviceID {
			return &it, nil
		}
	}
	return nil, nil
}

// readHandoffs pages through one handoff list of a device.
func readHandoffs[T any](ctx context.Context, exec catalyst.Executor, function, fabricID, deviceID string) ([]T, error) {
	return resolve.CollectAs[T](resolve.Pages(ctx, exec, "sda", function, deviceParams(fabricID, deviceID), resolve.HandoffPageSize))
}

func readL2Handoffs(ctx context.Context, exec catalyst.Executor, fabricID, deviceID string) ([]L2Handoff, error) {
	return readHandoffs[L2Handoff](ctx, exec, "get_fabric_devices_layer2_handoffs", fabricID, deviceID)
}

func readL3IPHandoffs(ctx context.Context, exec catalyst.Executor, fabricID, deviceID string) ([]L3IPHandoff, error) {
	return readHandoffs[L3IPHandoff](ctx, exec, "get_fabric_devices_layer3_handoffs_with_ip_transit", fabricID, deviceID)
}

// readL3SDAHandoff returns the device's SDA transit handoff, or nil.
func readL3SDAHandoff(ctx context.Context, exec catalyst.Executor, fabricID, deviceID string) (*L3SDAHandoff, error) {
	items, err := readHandoffs[L3SDAHandoff](ctx, exec, "get_fabric_devices_layer3_handoffs_with_sda_transit", fabricID, deviceID)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.FabricID == fabricID && it.NetworkDeviceID == deviceID {
			return &it, nil
		}
	}
	return nil, nil
}
