package vn

import (
	"context"
	"slices"

	"github.com/dokzlo13/sdactl/internal/catalyst"
)

// readVLAN returns the fabric VLAN named name on fabricID, or nil.
func readVLAN(ctx context.Context, exec catalyst.Executor, fabricID, name string) (*L2VN, error) {
	resp, err := exec.Exec(ctx, "sda", "get_layer2_virtual_networks", catalyst.Params{
		"fabricId": fabricID,
		"vlanName": name,
	})
	if err != nil {
		return nil, err
	}
	items, err := catalyst.DecodeItems[L2VN](resp)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.VlanName == name && it.FabricID == fabricID {
			return &it, nil
		}
	}
	return nil, nil
}

// readL3VN returns the Layer-3 VN named name, or nil. Fabric ids are sorted.
func readL3VN(ctx context.Context, exec catalyst.Executor, name string) (*L3VN, error) {
	resp, err := exec.Exec(ctx, "sda", "get_layer3_virtual_networks", catalyst.Params{"virtualNetworkName": name})
	if err != nil {
		return nil, err
	}
	items, err := catalyst.DecodeItems[L3VN](resp)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.VirtualNetworkName == name {
			slices.Sort(it.FabricIDs)
			return &it, nil
		}
	}
	return nil, nil
}

// readGateways lists anycast gateways filtered by the non-empty arguments.
func readGateways(ctx context.Context, exec catalyst.Executor, fabricID, vnName, pool string) ([]Gateway, error) {
	params := catalyst.Params{}
	if fabricID != "" {
		params["fabricId"] = fabricID
	}
	if vnName != "" {
		params["virtualNetworkName"] = vnName
	}
	if pool != "" {
		params["ipPoolName"] = pool
	}
	resp, err := exec.Exec(ctx, "sda", "get_anycast_gateways", params)
	if err != nil {
		return nil, err
	}
	items, err := catalyst.DecodeItems[Gateway](resp)
	if err != nil {
		return nil, err
	}
	var out []Gateway
	for _, it := range items {
		if (fabricID == "" || it.FabricID == fabricID) &&
			(vnName == "" || it.VirtualNetworkName == vnName) &&
			(pool == "" || it.IPPoolName == pool) {
			out = append(out, it)
		}
	}
	return out, nil
}

// readGateway returns the gateway keyed by (fabric, VN, pool), or nil.
func readGateway(ctx context.Context, exec catalyst.Executor, fabricID, vnName, pool string) (*Gateway, error) {
	gws, err := readGateways(ctx, exec, fabricID, vnName, pool)
	if err != nil || len(gws) == 0 {
		return nil, err
	}
	return &gws[0], nil
}
