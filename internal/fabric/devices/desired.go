package devices

import (
	"fmt"
	"net"
	"slices"

	"github.com/dokzlo13/sdactl/internal/fabric"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/retain"
)

func validateFabricDevices(state playbook.State, fd *playbook.FabricDevices) error {
	const kind = reconcile.KindFabricDevice
	if fd.FabricName == "" {
		return reconcile.Invalid(kind, "fabric_name", "required")
	}
	if len(fd.DeviceConfig) == 0 {
		return reconcile.Invalid(kind, "device_config", "at least one device is required for %s", fd.FabricName)
	}
	for i, dc := range fd.DeviceConfig {
		if err := validateDevice(state, dc); err != nil {
			return fmt.Errorf("device_config[%d]: %w", i, err)
		}
	}
	return nil
}

func validateDevice(state playbook.State, dc playbook.DeviceConfig) error {
	const kind = reconcile.KindFabricDevice
	if net.ParseIP(dc.DeviceIP) == nil {
		return reconcile.Invalid(kind, "device_ip", "%q is not an IP address", dc.DeviceIP)
	}
	for _, r := range dc.DeviceRoles {
		if !fabric.OneOf(r, roles...) {
			return reconcile.Invalid(kind, "device_roles", "unknown role %q", r)
		}
	}
	bs := dc.BordersSettings
	if bs == nil {
		return nil
	}
	if state == playbook.StateMerged && len(dc.DeviceRoles) > 0 && !slices.Contains(dc.DeviceRoles, RoleBorder) {
		return reconcile.Invalid(kind, "borders_settings", "device %s needs the %s role", dc.DeviceIP, RoleBorder)
	}
	if state == playbook.StateMerged && bs.Layer3Settings != nil {
		if err := validateLayer3(*bs.Layer3Settings); err != nil {
			return err
		}
	}
	for i, h := range bs.Layer2Handoff {
		if err := validateL2(h); err != nil {
			return fmt.Errorf("layer2_handoff[%d]: %w", i, err)
		}
	}
	for i, h := range bs.Layer3HandoffIPTransit {
		if err := validateL3IP(state, h); err != nil {
			return fmt.Errorf("layer3_handoff_ip_transit[%d]: %w", i, err)
		}
	}
	if h := bs.Layer3HandoffSDATransit; h != nil {
		if err := validateL3SDA(*h); err != nil {
			return fmt.Errorf("layer3_handoff_sda_transit: %w", err)
		}
	}
	return nil
}

func validateLayer3(s playbook.Layer3Settings) error {
	const kind = reconcile.KindFabricDevice
	if p := s.BorderPriority; p != nil && (*p < MinBorderPriority || *p > MaxBorderPriority) {
		return reconcile.Invalid(kind, "border_priority", "%d is outside %d-%d", *p, MinBorderPriority, MaxBorderPriority)
	}
	if c := s.PrependAutonomousSystemCount; c != nil && (*c < MinPrependCount || *c > MaxPrependCount) {
		return reconcile.Invalid(kind, "prepend_autonomous_system_count", "%d is outside %d-%d", *c, MinPrependCount, MaxPrependCount)
	}
	return nil
}

func validateL2(h playbook.L2Handoff) error {
	const kind = reconcile.KindBorderHandoff
	if h.InterfaceName == "" {
		return reconcile.Invalid(kind, "interface_name", "required")
	}
	if !fabric.ValidVLAN(h.InternalVlanID) {
		return reconcile.Invalid(kind, "internal_vlan_id", "%d is outside 2-4094 or reserved", h.InternalVlanID)
	}
	if !fabric.ValidVLAN(h.ExternalVlanID) {
		return reconcile.Invalid(kind, "external_vlan_id", "%d is outside 2-4094 or reserved", h.ExternalVlanID)
	}
	return nil
}

func validateL3IP(state playbook.State, h playbook.L3IPHandoff) error {
	const kind = reconcile.KindBorderHandoff
	switch {
	case h.TransitNetworkName == "":
		return reconcile.Invalid(kind, "transit_network_name", "required")
	case h.InterfaceName == "":
		return reconcile.Invalid(kind, "interface_name", "required")
	case h.VirtualNetworkName == "":
		return reconcile.Invalid(kind, "virtual_network_name", "required")
	}
	if state == playbook.StateDeleted {
		return nil
	}

	if h.VlanID == nil {
		return reconcile.Invalid(kind, "vlan_id", "required for %s on %s", h.VirtualNetworkName, h.InterfaceName)
	}
	if !fabric.ValidVLAN(*h.VlanID) {
		return reconcile.Invalid(kind, "vlan_id", "%d is outside 2-4094 or reserved", *h.VlanID)
	}
	if m := h.TCPMssAdjustment; m != nil && !fabric.ValidTCPMss(*m) {
		return reconcile.Invalid(kind, "tcp_mss_adjustment", "%d is outside %d-%d", *m, fabric.MinTCPMss, fabric.MaxTCPMss)
	}
	if h.ExternalConnectivityIPPoolName != "" {
		return nil
	}
	if h.LocalIPAddress == "" || h.RemoteIPAddress == "" {
		return reconcile.Invalid(kind, "external_connectivity_ip_pool_name",
			"either a pool name or both local_ip_address and remote_ip_address are required")
	}
	if err := fabric.SameSubnet(h.LocalIPAddress, h.RemoteIPAddress); err != nil {
		return reconcile.Invalid(kind, "remote_ip_address", "%v", err)
	}
	if (h.LocalIPv6Address == "") != (h.RemoteIPv6Address == "") {
		return reconcile.Invalid(kind, "local_ipv6_address", "local and remote IPv6 addresses go together")
	}
	if h.LocalIPv6Address != "" {
		if err := fabric.SameSubnet(h.LocalIPv6Address, h.RemoteIPv6Address); err != nil {
			return reconcile.Invalid(kind, "remote_ipv6_address", "%v", err)
		}
	}
	return nil
}

func validateL3SDA(h playbook.L3SDAHandoff) error {
	const kind = reconcile.KindBorderHandoff
	if h.TransitNetworkName == "" {
		return reconcile.Invalid(kind, "transit_network_name", "required")
	}
	if (h.AffinityIDPrime == nil) != (h.AffinityIDDecider == nil) {
		return reconcile.Invalid(kind, "affinity_id_prime", "affinity_id_prime and affinity_id_decider go together")
	}
	for name, v := range map[string]*int64{"affinity_id_prime": h.AffinityIDPrime, "affinity_id_decider": h.AffinityIDDecider} {
		if v != nil && (*v < 0 || *v > MaxAffinityID) {
			return reconcile.Invalid(kind, name, "%d is outside 0-%d", *v, MaxAffinityID)
		}
	}
	return nil
}

// deletesDevice reports whether a deleted-state entry removes the whole
// fabric device rather than only the listed handoffs.
func deletesDevice(dc playbook.DeviceConfig) bool {
	if dc.DeleteFabricDevice != nil && *dc.DeleteFabricDevice {
		return true
	}
	return dc.BordersSettings == nil
}

// derivedBorderTypes returns the border types implied by the settings.
func derivedBorderTypes(bs *playbook.BorderSettings) []string {
	if bs == nil {
		return nil
	}
	var out []string
	if len(bs.Layer2Handoff) > 0 {
		out = append(out, BorderLayer2)
	}
	if bs.Layer3Settings != nil || len(bs.Layer3HandoffIPTransit) > 0 || bs.Layer3HandoffSDATransit != nil {
		out = append(out, BorderLayer3)
	}
	return out
}

func desiredFabricDevice(dc playbook.DeviceConfig, fabricID, deviceID string) FabricDevice {
	d := FabricDevice{
		NetworkDeviceID: deviceID,
		FabricID:        fabricID,
		DeviceRoles:     reconcile.Normalize(dc.DeviceRoles),
	}
	if len(d.DeviceRoles) == 0 {
		d.DeviceRoles = nil
	}
	bs := dc.BordersSettings
	if bs == nil {
		return d
	}
	d.BorderDeviceSettings = &BorderSettings{BorderTypes: derivedBorderTypes(bs)}
	if s := bs.Layer3Settings; s != nil {
		d.BorderDeviceSettings.Layer3Settings = &Layer3Settings{
			LocalAutonomousSystemNumber:  s.LocalAutonomousSystemNumber,
			IsDefaultExit:                s.IsDefaultExit,
			ImportExternalRoutes:         s.ImportExternalRoutes,
			BorderPriority:               s.BorderPriority,
			PrependAutonomousSystemCount: s.PrependAutonomousSystemCount,
		}
	}
	return d
}

func layer3WithDefaults(s *Layer3Settings) *Layer3Settings {
	out := &Layer3Settings{}
	if s != nil {
		*out = *s
	}
	yes := true
	if out.IsDefaultExit == nil {
		out.IsDefaultExit = &yes
	}
	if out.ImportExternalRoutes == nil {
		out.ImportExternalRoutes = &yes
	}
	out.BorderPriority = retain.Pointer(out.BorderPriority, ptr(DefaultBorderPriority))
	out.PrependAutonomousSystemCount = retain.Pointer(out.PrependAutonomousSystemCount, ptr(DefaultPrependCount))
	return out
}

func ptr[V any](v V) *V { return &v }

// fabricDeviceWithDefaults fills Layer-3 defaults on a border that routes.
func fabricDeviceWithDefaults(d FabricDevice) FabricDevice {
	bs := d.BorderDeviceSettings
	if bs == nil || !slices.Contains(bs.BorderTypes, BorderLayer3) {
		return d
	}
	d.BorderDeviceSettings = &BorderSettings{
		BorderTypes:    bs.BorderTypes,
		Layer3Settings: layer3WithDefaults(bs.Layer3Settings),
	}
	return d
}

// overlayFabricDevice keeps the observed device and applies the specified
// border settings. Border types are unioned.
func overlayFabricDevice(have, want FabricDevice) FabricDevice {
	return fabricDeviceWithDefaults(retain.Overlay(have, func(d *FabricDevice) {
		w := want.BorderDeviceSettings
		if w == nil {
			return
		}
		if d.BorderDeviceSettings == nil {
			d.BorderDeviceSettings = &BorderSettings{}
		}
		bs := d.BorderDeviceSettings
		bs.BorderTypes = retain.Union(bs.BorderTypes, w.BorderTypes)
		if w.Layer3Settings == nil {
			return
		}
		if bs.Layer3Settings == nil {
			bs.Layer3Settings = &Layer3Settings{}
		}
		s := bs.Layer3Settings
		s.LocalAutonomousSystemNumber = retain.String(w.Layer3Settings.LocalAutonomousSystemNumber, s.LocalAutonomousSystemNumber)
		s.IsDefaultExit = retain.Pointer(w.Layer3Settings.IsDefaultExit, s.IsDefaultExit)
		s.ImportExternalRoutes = retain.Pointer(w.Layer3Settings.ImportExternalRoutes, s.ImportExternalRoutes)
		s.BorderPriority = retain.Pointer(w.Layer3Settings.BorderPriority, s.BorderPriority)
		s.PrependAutonomousSystemCount = retain.Pointer(w.Layer3Settings.PrependAutonomousSystemCount, s.PrependAutonomousSystemCount)
	}))
}

// wantBorderTypes adds the observed border types to the desired ones so a
// partial playbook never drops a border type.
func wantBorderTypes(want FabricDevice, have *FabricDevice) FabricDevice {
	if want.BorderDeviceSettings == nil || have == nil || have.BorderDeviceSettings == nil {
		return want
	}
	bs := *want.BorderDeviceSettings
	bs.BorderTypes = retain.Union(have.BorderDeviceSettings.BorderTypes, bs.BorderTypes)
	want.BorderDeviceSettings = &bs
	return want
}

func desiredL2(h playbook.L2Handoff, fabricID, deviceID string) L2Handoff {
	return L2Handoff{
		NetworkDeviceID: deviceID,
		FabricID:        fabricID,
		InterfaceName:   h.InterfaceName,
		InternalVlanID:  h.InternalVlanID,
		ExternalVlanID:  h.ExternalVlanID,
	}
}

func desiredL3IP(h playbook.L3IPHandoff, fabricID, deviceID, transitID string) L3IPHandoff {
	return L3IPHandoff{
		NetworkDeviceID:                deviceID,
		FabricID:                       fabricID,
		TransitNetworkID:               transitID,
		InterfaceName:                  h.InterfaceName,
		VirtualNetworkName:             h.VirtualNetworkName,
		VlanID:                         h.VlanID,
		TCPMssAdjustment:               h.TCPMssAdjustment,
		ExternalConnectivityIPPoolName: h.ExternalConnectivityIPPoolName,
		LocalIPAddress:                 h.LocalIPAddress,
		RemoteIPAddress:                h.RemoteIPAddress,
		LocalIPv6Address:               h.LocalIPv6Address,
		RemoteIPv6Address:              h.RemoteIPv6Address,
	}
}

func desiredL3SDA(h playbook.L3SDAHandoff, fabricID, deviceID, transitID string) L3SDAHandoff {
	return L3SDAHandoff{
		NetworkDeviceID:               deviceID,
		FabricID:                      fabricID,
		TransitNetworkID:              transitID,
		AffinityIDPrime:               h.AffinityIDPrime,
		AffinityIDDecider:             h.AffinityIDDecider,
		ConnectedToInternet:           h.ConnectedToInternet,
		IsMulticastOverTransitEnabled: h.IsMulticastOverTransitEnabled,
	}
}
