package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sdactl/internal/catalyst"
	"github.com/dokzlo13/sdactl/internal/catalyst/catalysttest"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/reconcile/reconciletest"
)

func intp(v int) *int { return &v }

// newController returns a fake whose device writes change the inventory.
func newController() *catalysttest.Controller {
	ctl := catalysttest.NewController()
	ctl.Handle("devices.add_device", func(p catalyst.Params) (any, error) {
		for _, ip := range p[catalyst.PayloadParam].(Credentials).IPAddress {
			ctl.AddDevice(ip, "sw-"+ip)
		}
		return nil, nil
	})
	ctl.Handle("devices.update_device_role", func(p catalyst.Params) (any, error) {
		ru := p[catalyst.PayloadParam].(RoleUpdate)
		for _, it := range ctl.Devices.Items() {
			if it["id"] == ru.ID {
				it["role"] = ru.Role
			}
		}
		return nil, nil
	})
	ctl.Handle("devices.add_user_defined_field_to_device", func(p catalyst.Params) (any, error) {
		for _, it := range ctl.Devices.Items() {
			if it["id"] != p["deviceId"] {
				continue
			}
			udfs, _ := it["userDefinedFields"].(map[string]any)
			if udfs == nil {
				udfs = map[string]any{}
				it["userDefinedFields"] = udfs
			}
			for _, v := range p[catalyst.PayloadParam].([]UDFValue) {
				udfs[v.Name] = v.Value
			}
		}
		return nil, nil
	})
	ctl.Handle("devices.remove_user_defined_field_from_device", func(p catalyst.Params) (any, error) {
		for _, it := range ctl.Devices.Items() {
			if udfs, ok := it["userDefinedFields"].(map[string]any); ok && it["id"] == p["deviceId"] {
				delete(udfs, p["name"].(string))
			}
		}
		return nil, nil
	})
	return ctl
}

func inventoryItem(d playbook.InventoryDevices) *playbook.Item {
	return &playbook.Item{InventoryDevices: &d}
}

func withCredentials(d playbook.InventoryDevices) playbook.InventoryDevices {
	d.Type = "NETWORK_DEVICE"
	d.CLITransport = "ssh"
	d.Username = "admin"
	d.Password = "cisco123"
	d.SNMPVersion = SNMPv2
	d.SNMPROCommunity = "public"
	return d
}

func TestDevice_AddThenNoop(t *testing.T) {
	ctl := newController()
	ctx := context.Background()
	item := inventoryItem(withCredentials(playbook.InventoryDevices{IPAddressList: []string{"10.1.1.1"}}))

	run := reconciletest.NewRun(ctl, playbook.StateMerged)
	require.NoError(t, DeviceHandler{}.Apply(ctx, run, item))
	assert.Equal(t, []string{"devices.add_device"}, ctl.WriteKeys())
	assert.Equal(t, reconcile.StatusCreated, reconciletest.Status(run, Scope, kind, "10.1.1.1"))
	assert.Equal(t, 1, ctl.Devices.Len())

	require.NoError(t, DeviceHandler{}.Verify(ctx, run, item))
	assert.Equal(t, "Success", reconciletest.Validation(run, Scope, kind, "10.1.1.1"))

	ctl.ResetCalls()
	run = reconciletest.NewRun(ctl, playbook.StateMerged)
	require.NoError(t, DeviceHandler{}.Apply(ctx, run, item))
	assert.Empty(t, ctl.Writes())
	assert.False(t, run.Record.Result().Changed)
	assert.Equal(t, reconcile.StatusUnchanged, reconciletest.Status(run, Scope, kind, "10.1.1.1"))
}

func TestDevice_AddRequiresCredentials(t *testing.T) {
	ctl := newController()
	item := inventoryItem(playbook.InventoryDevices{IPAddressList: []string{"10.1.1.1"}})

	run := reconciletest.NewRun(ctl, playbook.StateMerged)
	err := DeviceHandler{}.Apply(context.Background(), run, item)
	require.Error(t, err)
	assert.True(t, reconcile.IsFatal(err))
	assert.Empty(t, ctl.Writes())
}

func TestDevice_UnknownHostnameCannotBeAdded(t *testing.T) {
	ctl := newController()
	item := inventoryItem(withCredentials(playbook.InventoryDevices{HostnameList: []string{"edge-9"}}))

	run := reconciletest.NewRun(ctl, playbook.StateMerged)
	err := DeviceHandler{}.Apply(context.Background(), run, item)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can only be added by IP address")
	assert.Equal(t, reconcile.StatusFailed, reconciletest.Status(run, Scope, kind, "edge-9"))
}

func TestDevice_CredentialUpdateSkipsNewDevices(t *testing.T) {
	ctl := newController()
	ctl.AddDevice("10.1.1.1", "sw-1")
	d := withCredentials(playbook.InventoryDevices{IPAddressList: []string{"10.1.1.1", "10.1.1.2"}})
	d.CredentialUpdate = true

	run := reconciletest.NewRun(ctl, playbook.StateMerged)
	require.NoError(t, DeviceHandler{}.Apply(context.Background(), run, inventoryItem(d)))
	assert.Equal(t, []string{"devices.add_device", "devices.sync_devices"}, ctl.WriteKeys())

	sync := ctl.Writes()[1]
	assert.Equal(t, []string{"10.1.1.1"}, sync.Params[catalyst.PayloadParam].(Credentials).IPAddress)
	assert.Equal(t, reconcile.StatusUpdated, reconciletest.Status(run, Scope, kind, "10.1.1.1"))
	assert.Equal(t, reconcile.StatusCreated, reconciletest.Status(run, Scope, kind, "10.1.1.2"))
}

func TestDevice_RoleUpdateThenNoop(t *testing.T) {
	ctl := newController()
	id := ctl.AddDevice("10.1.1.1", "sw-1")
	item := inventoryItem(playbook.InventoryDevices{IPAddressList: []string{"10.1.1.1"}, Role: "ACCESS"})
	ctx := context.Background()

	run := reconciletest.NewRun(ctl, playbook.StateMerged)
	require.NoError(t, DeviceHandler{}.Apply(ctx, run, item))
	require.Equal(t, []string{"devices.update_device_role"}, ctl.WriteKeys())
	assert.Equal(t, RoleUpdate{ID: id, Role: "ACCESS", RoleSource: "MANUAL"}, ctl.Writes()[0].Params[catalyst.PayloadParam])
	require.NoError(t, DeviceHandler{}.Verify(ctx, run, item))

	ctl.ResetCalls()
	run = reconciletest.NewRun(ctl, playbook.StateMerged)
	require.NoError(t, DeviceHandler{}.Apply(ctx, run, item))
	assert.Empty(t, ctl.Writes())
}

func TestDevice_UserDefinedFields(t *testing.T) {
	ctl := newController()
	ctl.AddDevice("10.1.1.1", "sw-1")
	ctx := context.Background()
	item := inventoryItem(playbook.InventoryDevices{
		IPAddressList:       []string{"10.1.1.1"},
		AddUserDefinedField: []playbook.UserDefinedField{{Name: "rack", Description: "Rack position", Value: "R12"}},
	})

	run := reconciletest.NewRun(ctl, playbook.StateMerged)
	require.NoError(t, DeviceHandler{}.Apply(ctx, run, item))
	assert.Equal(t, []string{"devices.create_user_defined_field", "devices.add_user_defined_field_to_device"}, ctl.WriteKeys())
	assert.Equal(t, reconcile.StatusCreated, reconciletest.Status(run, Scope, kind, "user_defined_field/rack"))
	require.NoError(t, DeviceHandler{}.Verify(ctx, run, item))

	ctl.ResetCalls()
	run = reconciletest.NewRun(ctl, playbook.StateMerged)
	require.NoError(t, DeviceHandler{}.Apply(ctx, run, item))
	assert.Empty(t, ctl.Writes())
	assert.Equal(t, reconcile.StatusUnchanged, reconciletest.Status(run, Scope, kind, "user_defined_field/rack"))

	// Deleting with fields listed removes only the fields.
	run = reconciletest.NewRun(ctl, playbook.StateDeleted)
	require.NoError(t, DeviceHandler{}.Apply(ctx, run, item))
	assert.Equal(t, []string{"devices.remove_user_defined_field_from_device"}, ctl.WriteKeys())
	assert.Equal(t, 1, ctl.Devices.Len())
	require.NoError(t, DeviceHandler{}.Verify(ctx, run, item))
}

func TestDevice_InterfaceUpdate(t *testing.T) {
	ctl := newController()
	id := ctl.AddDevice("10.1.1.1", "sw-1")
	ctl.Respond("devices.get_interface_details", map[string]any{"response": map[string]any{
		"id": "if-1", "description": "old", "adminStatus": "UP", "vlanId": "10",
	}})
	item := inventoryItem(playbook.InventoryDevices{
		IPAddressList: []string{"10.1.1.1"},
		UpdateInterfaceDetails: &playbook.InterfaceDetails{
			InterfaceName:  []string{"GigabitEthernet1/0/3"},
			Description:    "uplink",
			AdminStatus:    "UP",
			VlanID:         intp(20),
			DeploymentMode: "Deploy",
		},
	})

	run := reconciletest.NewRun(ctl, playbook.StateMerged)
	require.NoError(t, DeviceHandler{}.Apply(context.Background(), run, item))
	require.Equal(t, []string{"devices.update_interface_details"}, ctl.WriteKeys())

	params := ctl.Writes()[0].Params
	assert.Equal(t, "if-1", params["interfaceUuid"])
	assert.Equal(t, "Deploy", params["deploymentMode"])
	assert.Equal(t, Interface{Description: "uplink", AdminStatus: "UP", VlanID: intp(20)}, params[catalyst.PayloadParam])
	assert.Equal(t, reconcile.StatusUpdated, reconciletest.Status(run, Scope, kind, "10.1.1.1/GigabitEthernet1/0/3"))

	read := ctl.Calls()[1]
	assert.Equal(t, "get_interface_details", read.Function)
	assert.Equal(t, id, read.Params["deviceId"])
}

func TestDevice_DeleteWithCleanConfig(t *testing.T) {
	ctl := newController()
	id := ctl.AddDevice("10.1.1.1", "sw-1")
	ctx := context.Background()
	item := inventoryItem(playbook.InventoryDevices{IPAddressList: []string{"10.1.1.1"}, CleanConfig: true})

	run := reconciletest.NewRun(ctl, playbook.StateDeleted)
	require.NoError(t, DeviceHandler{}.Apply(ctx, run, item))
	require.Equal(t, []string{"devices.delete_device_by_id"}, ctl.WriteKeys())
	assert.Equal(t, catalyst.Params{"id": id, "cleanConfig": true}, ctl.Writes()[0].Params)
	assert.Zero(t, ctl.Devices.Len())
	assert.Equal(t, reconcile.StatusDeleted, reconciletest.Status(run, Scope, kind, "10.1.1.1"))
	require.NoError(t, DeviceHandler{}.Verify(ctx, run, item))

	ctl.ResetCalls()
	run = reconciletest.NewRun(ctl, playbook.StateDeleted)
	require.NoError(t, DeviceHandler{}.Apply(ctx, run, item))
	assert.Empty(t, ctl.Writes())
	assert.Equal(t, reconcile.StatusAbsent, reconciletest.Status(run, Scope, kind, "10.1.1.1"))
}

func TestProvision_OnceThenNoop(t *testing.T) {
	ctl := newController()
	siteID := ctl.AddSite("Global/USA/SAN-JOSE/BLD23")
	id := ctl.AddDevice("10.1.1.1", "sw-1")
	ctx := context.Background()
	item := inventoryItem(playbook.InventoryDevices{
		IPAddressList:        []string{"10.1.1.1"},
		ProvisionWiredDevice: []playbook.WiredProvision{{DeviceIP: "10.1.1.1", SiteName: "Global/USA/SAN-JOSE/BLD23"}},
	})
	obj := "10.1.1.1@Global/USA/SAN-JOSE/BLD23"

	run := reconciletest.NewRun(ctl, playbook.StateMerged)
	require.NoError(t, ProvisionHandler{}.Apply(ctx, run, item))
	require.Equal(t, []string{"sda.provision_devices"}, ctl.WriteKeys())
	assert.Equal(t, []ProvisionRequest{{SiteID: siteID, NetworkDeviceID: id}}, ctl.Writes()[0].Params[catalyst.PayloadParam])
	assert.Equal(t, reconcile.StatusCreated, reconciletest.Status(run, Scope, reconcile.KindProvision, obj))
	require.NoError(t, ProvisionHandler{}.Verify(ctx, run, item))

	ctl.ResetCalls()
	run = reconciletest.NewRun(ctl, playbook.StateMerged)
	require.NoError(t, ProvisionHandler{}.Apply(ctx, run, item))
	assert.Empty(t, ctl.Writes())
	assert.Equal(t, reconcile.StatusUnchanged, reconciletest.Status(run, Scope, reconcile.KindProvision, obj))
}

func TestProvision_FailureIsFatal(t *testing.T) {
	ctl := newController()
	ctl.AddSite("Global/USA/SAN-JOSE/BLD23")
	ctl.AddDevice("10.1.1.1", "sw-1")
	ctl.FailTask("sda.provision_devices", "device is unreachable")
	item := inventoryItem(playbook.InventoryDevices{
		IPAddressList:        []string{"10.1.1.1"},
		ProvisionWiredDevice: []playbook.WiredProvision{{DeviceIP: "10.1.1.1", SiteName: "Global/USA/SAN-JOSE/BLD23"}},
	})

	run := reconciletest.NewRun(ctl, playbook.StateMerged)
	err := ProvisionHandler{}.Apply(context.Background(), run, item)
	require.Error(t, err)
	assert.True(t, reconcile.IsFatal(err))
	assert.Contains(t, err.Error(), "device is unreachable")
	assert.True(t, run.Record.Result().Failed)
}

func TestProvision_IgnoredWhenDeleting(t *testing.T) {
	ctl := newController()
	item := inventoryItem(playbook.InventoryDevices{
		IPAddressList:        []string{"10.1.1.1"},
		ProvisionWiredDevice: []playbook.WiredProvision{{DeviceIP: "10.1.1.1", SiteName: "Global/X"}},
	})
	run := reconciletest.NewRun(ctl, playbook.StateDeleted)
	require.NoError(t, ProvisionHandler{}.Apply(context.Background(), run, item))
	require.NoError(t, ProvisionHandler{}.Verify(context.Background(), run, item))
	assert.Empty(t, ctl.Calls())
}

func TestActions_Resync(t *testing.T) {
	ctl := newController()
	id := ctl.AddDevice("10.1.1.1", "sw-1")
	item := inventoryItem(playbook.InventoryDevices{IPAddressList: []string{"10.1.1.1"}, DevicesResync: true, ForceSync: true})

	run := reconciletest.NewRun(ctl, playbook.StateMerged)
	require.NoError(t, ActionsHandler{}.Apply(context.Background(), run, item))
	require.Equal(t, []string{"devices.sync_devices_using_forcesync"}, ctl.WriteKeys())
	assert.Equal(t, catalyst.Params{"forceSync": true, catalyst.PayloadParam: []string{id}}, ctl.Writes()[0].Params)
	assert.Equal(t, reconcile.StatusDone, reconciletest.Status(run, Scope, reconcile.KindDeviceActions, "resync"))
	assert.True(t, run.Record.Result().Changed)
}

func TestActions_RebootOnlyAccessPoints(t *testing.T) {
	ctl := newController()
	ctl.AddDevice("10.1.1.1", "sw-1")
	ctl.Devices.Seed(map[string]any{
		"managementIpAddress": "10.2.0.1",
		"hostname":            "ap-1",
		"macAddress":          "aa:bb:cc:dd:ee:01",
		"family":              familyAP,
	})
	item := inventoryItem(playbook.InventoryDevices{IPAddressList: []string{"10.1.1.1", "10.2.0.1"}, RebootDevice: true})

	run := reconciletest.NewRun(ctl, playbook.StateMerged)
	require.NoError(t, ActionsHandler{}.Apply(context.Background(), run, item))
	require.Equal(t, []string{"wireless.reboot_access_points"}, ctl.WriteKeys())
	assert.Equal(t, map[string][]string{"apMacAddresses": {"aa:bb:cc:dd:ee:01"}}, ctl.Writes()[0].Params[catalyst.PayloadParam])
}

func TestActions_RebootWithoutAccessPointsIsNoop(t *testing.T) {
	ctl := newController()
	ctl.AddDevice("10.1.1.1", "sw-1")
	item := inventoryItem(playbook.InventoryDevices{IPAddressList: []string{"10.1.1.1"}, RebootDevice: true})

	run := reconciletest.NewRun(ctl, playbook.StateMerged)
	require.NoError(t, ActionsHandler{}.Apply(context.Background(), run, item))
	assert.Empty(t, ctl.Writes())
	assert.Equal(t, reconcile.StatusUnchanged, reconciletest.Status(run, Scope, reconcile.KindDeviceActions, "reboot"))
}

func TestActions_UnknownDeviceFails(t *testing.T) {
	ctl := newController()
	item := inventoryItem(playbook.InventoryDevices{IPAddressList: []string{"10.1.1.9"}, DevicesResync: true})

	run := reconciletest.NewRun(ctl, playbook.StateMerged)
	err := ActionsHandler{}.Apply(context.Background(), run, item)
	var re *reconcile.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Empty(t, ctl.Writes())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		state playbook.State
		d     playbook.InventoryDevices
		field string
	}{
		{"no identifiers", playbook.StateMerged, playbook.InventoryDevices{}, "ip_address_list"},
		{"bad ip", playbook.StateMerged, playbook.InventoryDevices{IPAddressList: []string{"10.1.1"}}, "ip_address_list"},
		{"bad mac", playbook.StateMerged, playbook.InventoryDevices{MacAddressList: []string{"zz"}}, "mac_address_list"},
		{"bad type", playbook.StateMerged, playbook.InventoryDevices{IPAddressList: []string{"10.1.1.1"}, Type: "ROUTER"}, "type"},
		{"bad role", playbook.StateMerged, playbook.InventoryDevices{IPAddressList: []string{"10.1.1.1"}, Role: "EDGE"}, "role"},
		{"v2 without community", playbook.StateMerged,
			playbook.InventoryDevices{IPAddressList: []string{"10.1.1.1"}, SNMPVersion: SNMPv2}, "snmp_ro_community"},
		{"v3 without user", playbook.StateMerged,
			playbook.InventoryDevices{IPAddressList: []string{"10.1.1.1"}, SNMPVersion: SNMPv3, SNMPMode: ModeAuthPriv}, "snmp_username"},
		{"v3 short auth passphrase", playbook.StateMerged, playbook.InventoryDevices{
			IPAddressList: []string{"10.1.1.1"}, SNMPVersion: SNMPv3, SNMPUsername: "u", SNMPMode: ModeAuthNoPriv,
			SNMPAuthProtocol: AuthSHA, SNMPAuthPassphrase: "short",
		}, "snmp_auth_passphrase"},
		{"v3 authpriv without priv", playbook.StateMerged, playbook.InventoryDevices{
			IPAddressList: []string{"10.1.1.1"}, SNMPVersion: SNMPv3, SNMPUsername: "u", SNMPMode: ModeAuthPriv,
			SNMPAuthProtocol: AuthSHA, SNMPAuthPassphrase: "longenough",
		}, "snmp_priv_protocol"},
		{"unknown priv protocol", playbook.StateMerged, playbook.InventoryDevices{
			IPAddressList: []string{"10.1.1.1"}, SNMPVersion: SNMPv3, SNMPUsername: "u", SNMPMode: ModeNoAuthNoPriv,
			SNMPPrivProtocol: "DES",
		}, "snmp_priv_protocol"},
		{"vlan out of range", playbook.StateMerged, playbook.InventoryDevices{
			IPAddressList:          []string{"10.1.1.1"},
			UpdateInterfaceDetails: &playbook.InterfaceDetails{InterfaceName: []string{"Gi1/0/1"}, VlanID: intp(4095)},
		}, "update_interface_details.vlan_id"},
		{"export weak password", playbook.StateMerged, playbook.InventoryDevices{
			IPAddressList:    []string{"10.1.1.1"},
			ExportDeviceList: &playbook.ExportDeviceList{OperationEnum: ExportCredentials, Password: "password1"},
		}, "export_device_list.password"},
		{"export bad operation", playbook.StateMerged, playbook.InventoryDevices{
			IPAddressList:    []string{"10.1.1.1"},
			ExportDeviceList: &playbook.ExportDeviceList{OperationEnum: "2"},
		}, "export_device_list.operation_enum"},
		{"provision without site", playbook.StateMerged, playbook.InventoryDevices{
			IPAddressList:        []string{"10.1.1.1"},
			ProvisionWiredDevice: []playbook.WiredProvision{{DeviceIP: "10.1.1.1"}},
		}, "provision_wired_device[0].site_name"},
		{"udf without name on delete", playbook.StateDeleted, playbook.InventoryDevices{
			IPAddressList:       []string{"10.1.1.1"},
			AddUserDefinedField: []playbook.UserDefinedField{{Value: "x"}},
		}, "add_user_defined_field[0].name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DeviceHandler{}.Validate(tt.state, inventoryItem(tt.d))
			var ve *reconcile.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	valid := withCredentials(playbook.InventoryDevices{IPAddressList: []string{"10.1.1.1"}})
	valid.ExportDeviceList = &playbook.ExportDeviceList{OperationEnum: ExportCredentials, Password: "Secret#123"}
	assert.NoError(t, DeviceHandler{}.Validate(playbook.StateMerged, inventoryItem(valid)))
	assert.NoError(t, DeviceHandler{}.Validate(playbook.StateMerged, &playbook.Item{}))
}
