package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/dokzlo13/sdactl/internal/catalyst"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/resolve"
)

// target is one device named by the playbook, by whichever identifier.
type target struct {
	name   string
	by     string
	device resolve.Device
	found  bool
	// added is set once the device was submitted in this run.
	added bool
}

// lookup resolves every listed identifier in playbook order. IPs go through
// the memoized resolver, the other identifiers are searched directly.
func lookup(ctx context.Context, names *resolve.Resolver, d *playbook.InventoryDevices) ([]target, error) {
	var out []target
	add := func(by string, values []string) error {
		for _, v := range values {
			var (
				dev resolve.Device
				ok  bool
				err error
			)
			if by == resolve.ByIP {
				dev, ok, err = names.Device(ctx, v)
			} else {
				dev, ok, err = names.DeviceBy(ctx, by, v)
			}
			if err != nil {
				return fmt.Errorf("look up device %s: %w", v, err)
			}
			out = append(out, target{name: v, by: by, device: dev, found: ok})
		}
		return nil
	}
	lists := []struct {
		by     string
		values []string
	}{
		{resolve.ByIP, d.IPAddressList},
		{resolve.ByHostname, d.HostnameList},
		{resolve.BySerial, d.SerialNumberList},
		{resolve.ByMAC, d.MacAddressList},
	}
	for _, l := range lists {
		if err := add(l.by, l.values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readUDF(ctx context.Context, exec catalyst.Executor, name string) (*UDF, error) {
	resp, err := exec.Exec(ctx, "devices", "get_all_user_defined_fields", catalyst.Params{"name": name})
	if err != nil {
		return nil, err
	}
	for _, it := range resp.Items() {
		if it.Get("name").String() == name {
			return &UDF{ID: it.Get("id").String(), Name: name, Description: it.Get("description").String()}, nil
		}
	}
	return nil, nil
}

// deviceUDFs returns the user-defined field values assigned on a device.
func deviceUDFs(ctx context.Context, exec catalyst.Executor, deviceID string) (map[string]string, error) {
	resp, err := exec.Exec(ctx, "devices", "get_device_list", catalyst.Params{"id": deviceID})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, it := range resp.Items() {
		if it.Get("id").String() != deviceID {
			continue
		}
		it.Get("userDefinedFields").ForEach(func(k, v gjson.Result) bool {
			out[k.String()] = v.String()
			return true
		})
	}
	return out, nil
}

// readInterface returns an interface of a device, or nil. VLAN ids are
// reported as strings by some releases.
func readInterface(ctx context.Context, exec catalyst.Executor, deviceID, name string) (*Interface, error) {
	resp, err := exec.Exec(ctx, "devices", "get_interface_details", catalyst.Params{"deviceId": deviceID, "name": name})
	if err != nil {
		var apiErr *catalyst.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	items := resp.Items()
	if len(items) == 0 {
		return nil, nil
	}
	it := items[0]
	in := &Interface{
		ID:          it.Get("id").String(),
		Description: it.Get("description").String(),
		AdminStatus: it.Get("adminStatus").String(),
	}
	if v := it.Get("vlanId"); v.Exists() && v.String() != "" {
		n := int(v.Int())
		in.VlanID = &n
	}
	if v := it.Get("voiceVlan"); v.Exists() && v.String() != "" {
		n := int(v.Int())
		in.VoiceVlanID = &n
	}
	return in, nil
}

var interfaceFields = []reconcile.Field[Interface]{
	{Name: "description", Get: func(i Interface) (any, bool) { return reconcile.Str(i.Description) }},
	{Name: "adminStatus", Get: func(i Interface) (any, bool) { return reconcile.Str(i.AdminStatus) }},
	{Name: "vlanId", Get: func(i Interface) (any, bool) { return reconcile.Ptr(i.VlanID) }},
	{Name: "voiceVlanId", Get: func(i Interface) (any, bool) { return reconcile.Ptr(i.VoiceVlanID) }},
}

func desiredInterface(in *playbook.InterfaceDetails) Interface {
	return Interface{
		Description: in.Description,
		AdminStatus: in.AdminStatus,
		VlanID:      in.VlanID,
		VoiceVlanID: in.VoiceVlanID,
	}
}
