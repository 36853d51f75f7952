// Package vn reconciles fabric VLANs (Layer-2 virtual networks), Layer-3
// virtual networks and anycast gateways.
package vn

import (
	"github.com/dokzlo13/sdactl/internal/reconcile"
)

// L2VN is a fabric VLAN on one fabric site or zone.
type L2VN struct {
	ID                                 string `json:"id,omitempty"`
	FabricID                           string `json:"fabricId"`
	VlanName                           string `json:"vlanName"`
	VlanID                             *int   `json:"vlanId,omitempty"`
	TrafficType                        string `json:"trafficType,omitempty"`
	IsFabricEnabledWireless            *bool  `json:"isFabricEnabledWireless,omitempty"`
	AssociatedLayer3VirtualNetworkName string `json:"associatedLayer3VirtualNetworkName,omitempty"`
}

// L3VN is a Layer-3 virtual network and the fabrics it is extended to.
type L3VN struct {
	ID                 string   `json:"id,omitempty"`
	VirtualNetworkName string   `json:"virtualNetworkName"`
	FabricIDs          []string `json:"fabricIds,omitempty"`
	AnchoredSiteID     string   `json:"anchoredSiteId,omitempty"`
}

// Gateway is an anycast gateway keyed by (fabric, VN, pool).
type Gateway struct {
	ID                 string `json:"id,omitempty"`
	FabricID           string `json:"fabricId"`
	VirtualNetworkName string `json:"virtualNetworkName"`
	IPPoolName         string `json:"ipPoolName"`

	TCPMssAdjustment     *int   `json:"tcpMssAdjustment,omitempty"`
	VlanName             string `json:"vlanName,omitempty"`
	VlanID               *int   `json:"vlanId,omitempty"`
	TrafficType          string `json:"trafficType,omitempty"`
	PoolType             string `json:"poolType,omitempty"`
	SecurityGroupName    string `json:"securityGroupName,omitempty"`
	AutoGenerateVlanName *bool  `json:"autoGenerateVlanName,omitempty"`

	IsCriticalPool                          *bool `json:"isCriticalPool,omitempty"`
	IsLayer2FloodingEnabled                 *bool `json:"isLayer2FloodingEnabled,omitempty"`
	IsWirelessPool                          *bool `json:"isWirelessPool,omitempty"`
	IsIPDirectedBroadcast                   *bool `json:"isIpDirectedBroadcast,omitempty"`
	IsIntraSubnetRoutingEnabled             *bool `json:"isIntraSubnetRoutingEnabled,omitempty"`
	IsMultipleIPToMacAddresses              *bool `json:"isMultipleIpToMacAddresses,omitempty"`
	IsSupplicantBasedExtendedNodeOnboarding *bool `json:"isSupplicantBasedExtendedNodeOnboarding,omitempty"`
	IsGroupBasedPolicyEnforcementEnabled    *bool `json:"isGroupBasedPolicyEnforcementEnabled,omitempty"`
}

// vlanImmutableFields are compared on every location.
var vlanImmutableFields = []reconcile.Field[L2VN]{
	{Name: "vlanId", Immutable: true, Get: func(v L2VN) (any, bool) { return reconcile.Ptr(v.VlanID) }},
	{Name: "associatedLayer3VirtualNetworkName", Immutable: true, Get: func(v L2VN) (any, bool) {
		return reconcile.Str(v.AssociatedLayer3VirtualNetworkName)
	}},
}

// vlanFields apply on fabric sites; a zone inherits traffic type and
// wireless from its site.
var vlanFields = append([]reconcile.Field[L2VN]{
	{Name: "trafficType", Get: func(v L2VN) (any, bool) { return reconcile.Str(v.TrafficType) }},
	{Name: "isFabricEnabledWireless", Get: func(v L2VN) (any, bool) { return reconcile.Ptr(v.IsFabricEnabledWireless) }},
}, vlanImmutableFields...)

var l3vnFields = []reconcile.Field[L3VN]{
	{Name: "fabricIds", Compare: reconcile.SetEq, Get: func(v L3VN) (any, bool) { return reconcile.Strings(v.FabricIDs) }},
	{Name: "anchoredSiteId", Get: func(v L3VN) (any, bool) { return reconcile.Str(v.AnchoredSiteID) }},
}

var gatewayFields = []reconcile.Field[Gateway]{
	{Name: "tcpMssAdjustment", Get: func(g Gateway) (any, bool) { return reconcile.Ptr(g.TCPMssAdjustment) }},
	{Name: "trafficType", Get: func(g Gateway) (any, bool) { return reconcile.Str(g.TrafficType) }},
	{Name: "securityGroupName", Get: func(g Gateway) (any, bool) { return reconcile.Str(g.SecurityGroupName) }},
	{Name: "isLayer2FloodingEnabled", Get: func(g Gateway) (any, bool) { return reconcile.Ptr(g.IsLayer2FloodingEnabled) }},
	{Name: "isWirelessPool", Get: func(g Gateway) (any, bool) { return reconcile.Ptr(g.IsWirelessPool) }},
	{Name: "isIpDirectedBroadcast", Get: func(g Gateway) (any, bool) { return reconcile.Ptr(g.IsIPDirectedBroadcast) }},
	{Name: "isMultipleIpToMacAddresses", Get: func(g Gateway) (any, bool) { return reconcile.Ptr(g.IsMultipleIPToMacAddresses) }},
	{Name: "isSupplicantBasedExtendedNodeOnboarding", Get: func(g Gateway) (any, bool) {
		return reconcile.Ptr(g.IsSupplicantBasedExtendedNodeOnboarding)
	}},
	{Name: "isGroupBasedPolicyEnforcementEnabled", Get: func(g Gateway) (any, bool) {
		return reconcile.Ptr(g.IsGroupBasedPolicyEnforcementEnabled)
	}},

	{Name: "vlanName", Immutable: true, Get: func(g Gateway) (any, bool) { return reconcile.Str(g.VlanName) }},
	{Name: "vlanId", Immutable: true, Get: func(g Gateway) (any, bool) { return reconcile.Ptr(g.VlanID) }},
	{Name: "poolType", Immutable: true, Get: func(g Gateway) (any, bool) { return reconcile.Str(g.PoolType) }},
	{Name: "isCriticalPool", Immutable: true, Get: func(g Gateway) (any, bool) { return reconcile.Ptr(g.IsCriticalPool) }},
	{Name: "isIntraSubnetRoutingEnabled", Immutable: true, Get: func(g Gateway) (any, bool) {
		return reconcile.Ptr(g.IsIntraSubnetRoutingEnabled)
	}},
}
