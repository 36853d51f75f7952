package vn

import (
	"fmt"

	"github.com/dokzlo13/sdactl/internal/fabric"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/retain"
)

func validateLocations(kind reconcile.Kind, field string, locs []playbook.Location, required bool) error {
	if required && len(locs) == 0 {
		return reconcile.Invalid(kind, field, "at least one location is required")
	}
	for i, loc := range locs {
		if msg := fabric.ValidLocation(loc); msg != "" {
			return reconcile.Invalid(kind, fmt.Sprintf("%s[%d]", field, i), "%s", msg)
		}
	}
	return nil
}

func validateVLAN(state playbook.State, v playbook.FabricVLAN) error {
	const kind = reconcile.KindFabricVLAN
	if !fabric.VLANNamePattern.MatchString(v.VlanName) {
		return reconcile.Invalid(kind, "vlan_name", "%q must match %s", v.VlanName, fabric.VLANNamePattern)
	}
	if v.VlanID != nil && !fabric.ValidVLAN(*v.VlanID) {
		return reconcile.Invalid(kind, "vlan_id", "%d is outside 2-4094 or reserved (1002-1005, 2046, 4094)", *v.VlanID)
	}
	if err := validateLocations(kind, "fabric_site_locations", v.FabricSiteLocations, true); err != nil {
		return err
	}
	if state == playbook.StateDeleted {
		return nil
	}
	if v.VlanID == nil {
		return reconcile.Invalid(kind, "vlan_id", "required for %s", v.VlanName)
	}
	if v.TrafficType != "" && !fabric.OneOf(v.TrafficType, fabric.TrafficData, fabric.TrafficVoice) {
		return reconcile.Invalid(kind, "traffic_type", "must be DATA or VOICE, got %q", v.TrafficType)
	}
	return nil
}

// desiredVLAN converts input to wire shape with only the specified fields set.
func desiredVLAN(v playbook.FabricVLAN, fabricID string) L2VN {
	return L2VN{
		FabricID:                           fabricID,
		VlanName:                           v.VlanName,
		VlanID:                             v.VlanID,
		TrafficType:                        v.TrafficType,
		IsFabricEnabledWireless:            v.FabricEnabledWireless,
		AssociatedLayer3VirtualNetworkName: v.AssociatedLayer3VirtualNetworkName,
	}
}

func vlanWithDefaults(w L2VN) L2VN {
	if w.TrafficType == "" {
		w.TrafficType = fabric.TrafficData
	}
	if w.IsFabricEnabledWireless == nil {
		f := false
		w.IsFabricEnabledWireless = &f
	}
	return w
}

func overlayVLAN(have, want L2VN) L2VN {
	return retain.Overlay(have, func(v *L2VN) {
		v.TrafficType = retain.String(want.TrafficType, v.TrafficType)
		v.IsFabricEnabledWireless = retain.Pointer(want.IsFabricEnabledWireless, v.IsFabricEnabledWireless)
	})
}

func validateL3VN(state playbook.State, v playbook.VirtualNetwork) error {
	const kind = reconcile.KindVirtualNetwork
	if !fabric.VNNamePattern.MatchString(v.VNName) {
		return reconcile.Invalid(kind, "vn_name", "%q must match %s", v.VNName, fabric.VNNamePattern)
	}
	if err := validateLocations(kind, "fabric_site_locations", v.FabricSiteLocations, false); err != nil {
		return err
	}
	if state == playbook.StateDeleted {
		if v.VNName == fabric.DefaultVN || v.VNName == fabric.InfraVN {
			return reconcile.Invalid(kind, "vn_name", "%s is reserved and cannot be deleted", v.VNName)
		}
		return nil
	}
	if v.AnchoredSiteName != "" && len(v.FabricSiteLocations) == 0 {
		return reconcile.Invalid(kind, "anchored_site_name", "requires fabric_site_locations")
	}
	return nil
}

var infraPoolTypes = []string{"EXTENDED_NODE", "FABRIC_AP"}

func isTrue(b *bool) bool { return b != nil && *b }

func validateGateway(state playbook.State, g playbook.AnycastGateway) error {
	const kind = reconcile.KindAnycastGateway
	if !fabric.VNNamePattern.MatchString(g.VNName) {
		return reconcile.Invalid(kind, "vn_name", "%q must match %s", g.VNName, fabric.VNNamePattern)
	}
	if g.IPPoolName == "" {
		return reconcile.Invalid(kind, "ip_pool_name", "required for %s", g.VNName)
	}
	if g.FabricSiteLocation == nil {
		return reconcile.Invalid(kind, "fabric_site_location", "required for %s/%s", g.VNName, g.IPPoolName)
	}
	if msg := fabric.ValidLocation(*g.FabricSiteLocation); msg != "" {
		return reconcile.Invalid(kind, "fabric_site_location", "%s", msg)
	}
	if state == playbook.StateDeleted {
		return nil
	}

	if g.TCPMssAdjustment != nil && !fabric.ValidTCPMss(*g.TCPMssAdjustment) {
		return reconcile.Invalid(kind, "tcp_mss_adjustment", "%d is outside %d-%d", *g.TCPMssAdjustment, fabric.MinTCPMss, fabric.MaxTCPMss)
	}
	if g.VlanName != "" && !fabric.VLANNamePattern.MatchString(g.VlanName) {
		return reconcile.Invalid(kind, "vlan_name", "%q must match %s", g.VlanName, fabric.VLANNamePattern)
	}
	if g.VlanID != nil && !fabric.ValidVLAN(*g.VlanID) {
		return reconcile.Invalid(kind, "vlan_id", "%d is outside 2-4094 or reserved", *g.VlanID)
	}
	if isTrue(g.AutoGenerateVlanName) && g.VlanName != "" {
		return reconcile.Invalid(kind, "vlan_name", "must be omitted when auto_generate_vlan_name is set")
	}
	if isTrue(g.IsCriticalPool) && !isTrue(g.AutoGenerateVlanName) {
		return reconcile.Invalid(kind, "is_critical_pool", "requires auto_generate_vlan_name")
	}

	if g.VNName == fabric.InfraVN {
		if !fabric.OneOf(g.PoolType, infraPoolTypes...) {
			return reconcile.Invalid(kind, "pool_type", "INFRA_VN requires EXTENDED_NODE or FABRIC_AP, got %q", g.PoolType)
		}
		forbidden := map[string]bool{
			"traffic_type":                           g.TrafficType != "",
			"security_group_name":                    g.SecurityGroupName != "",
			"is_critical_pool":                       isTrue(g.IsCriticalPool),
			"layer2_flooding_enabled":                isTrue(g.Layer2FloodingEnabled),
			"fabric_enabled_wireless":                isTrue(g.FabricEnabledWireless),
			"ip_directed_broadcast":                  isTrue(g.IPDirectedBroadcast),
			"intra_subnet_routing_enabled":           isTrue(g.IntraSubnetRoutingEnabled),
			"multiple_ip_to_mac_addresses":           isTrue(g.MultipleIPToMacAddresses),
			"group_based_policy_enforcement_enabled": isTrue(g.GroupBasedPolicyEnforcementEnabled),
		}
		for _, field := range []string{
			"traffic_type", "security_group_name", "is_critical_pool", "layer2_flooding_enabled",
			"fabric_enabled_wireless", "ip_directed_broadcast", "intra_subnet_routing_enabled",
			"multiple_ip_to_mac_addresses", "group_based_policy_enforcement_enabled",
		} {
			if forbidden[field] {
				return reconcile.Invalid(kind, field, "not allowed for INFRA_VN")
			}
		}
		return nil
	}

	if g.PoolType != "" {
		return reconcile.Invalid(kind, "pool_type", "only allowed for INFRA_VN")
	}
	if isTrue(g.SupplicantBasedExtendedNodeOnboarding) {
		return reconcile.Invalid(kind, "supplicant_based_extended_node_onboarding", "only allowed for INFRA_VN")
	}
	if g.TrafficType != "" && !fabric.OneOf(g.TrafficType, fabric.TrafficData, fabric.TrafficVoice) {
		return reconcile.Invalid(kind, "traffic_type", "must be DATA or VOICE, got %q", g.TrafficType)
	}
	return nil
}

func desiredGateway(g playbook.AnycastGateway, fabricID string) Gateway {
	return Gateway{
		FabricID:             fabricID,
		VirtualNetworkName:   g.VNName,
		IPPoolName:           g.IPPoolName,
		TCPMssAdjustment:     g.TCPMssAdjustment,
		VlanName:             g.VlanName,
		VlanID:               g.VlanID,
		TrafficType:          g.TrafficType,
		PoolType:             g.PoolType,
		SecurityGroupName:    g.SecurityGroupName,
		AutoGenerateVlanName: g.AutoGenerateVlanName,

		IsCriticalPool:                          g.IsCriticalPool,
		IsLayer2FloodingEnabled:                 g.Layer2FloodingEnabled,
		IsWirelessPool:                          g.FabricEnabledWireless,
		IsIPDirectedBroadcast:                   g.IPDirectedBroadcast,
		IsIntraSubnetRoutingEnabled:             g.IntraSubnetRoutingEnabled,
		IsMultipleIPToMacAddresses:              g.MultipleIPToMacAddresses,
		IsSupplicantBasedExtendedNodeOnboarding: g.SupplicantBasedExtendedNodeOnboarding,
		IsGroupBasedPolicyEnforcementEnabled:    g.GroupBasedPolicyEnforcementEnabled,
	}
}

func gatewayWithDefaults(g Gateway) Gateway {
	if g.VirtualNetworkName != fabric.InfraVN && g.TrafficType == "" {
		g.TrafficType = fabric.TrafficData
	}
	return g
}

// overlayGateway keeps every observed value and applies the specified
// mutable fields.
func overlayGateway(have, want Gateway) Gateway {
	return retain.Overlay(have, func(g *Gateway) {
		g.TCPMssAdjustment = retain.Pointer(want.TCPMssAdjustment, g.TCPMssAdjustment)
		g.TrafficType = retain.String(want.TrafficType, g.TrafficType)
		g.SecurityGroupName = retain.String(want.SecurityGroupName, g.SecurityGroupName)
		g.IsLayer2FloodingEnabled = retain.Pointer(want.IsLayer2FloodingEnabled, g.IsLayer2FloodingEnabled)
		g.IsWirelessPool = retain.Pointer(want.IsWirelessPool, g.IsWirelessPool)
		g.IsIPDirectedBroadcast = retain.Pointer(want.IsIPDirectedBroadcast, g.IsIPDirectedBroadcast)
		g.IsMultipleIPToMacAddresses = retain.Pointer(want.IsMultipleIPToMacAddresses, g.IsMultipleIPToMacAddresses)
		g.IsSupplicantBasedExtendedNodeOnboarding = retain.Pointer(want.IsSupplicantBasedExtendedNodeOnboarding, g.IsSupplicantBasedExtendedNodeOnboarding)
		g.IsGroupBasedPolicyEnforcementEnabled = retain.Pointer(want.IsGroupBasedPolicyEnforcementEnabled, g.IsGroupBasedPolicyEnforcementEnabled)
	})
}
