// Package devices reconciles fabric devices, their border settings and the
// Layer-2 and Layer-3 handoffs of border nodes.
package devices

import (
	"fmt"

	"github.com/dokzlo13/sdactl/internal/reconcile"
)

// Device roles.
const (
	RoleControlPlane = "CONTROL_PLANE_NODE"
	RoleEdge         = "EDGE_NODE"
	RoleBorder       = "BORDER_NODE"
	RoleWireless     = "WIRELESS_CONTROLLER_NODE"
)

var roles = []string{RoleControlPlane, RoleEdge, RoleBorder, RoleWireless}

// Border types derived from the configured handoffs.
const (
	BorderLayer2 = "LAYER_2"
	BorderLayer3 = "LAYER_3"
)

// Layer-3 settings defaults and bounds.
const (
	DefaultBorderPriority = 10
	MinBorderPriority     = 1
	MaxBorderPriority     = 9
	DefaultPrependCount   = 0
	MinPrependCount       = 1
	MaxPrependCount       = 10
	MaxAffinityID         = 1<<31 - 1
)

// FabricDevice is a device's membership in a fabric site or zone.
type FabricDevice struct {
	ID                   string          `json:"id,omitempty"`
	NetworkDeviceID      string          `json:"networkDeviceId"`
	FabricID             string          `json:"fabricId"`
	DeviceRoles          []string        `json:"deviceRoles,omitempty"`
	BorderDeviceSettings *BorderSettings `json:"borderDeviceSettings,omitempty"`
}

// BorderSettings are the border attributes of a fabric device.
type BorderSettings struct {
	BorderTypes    []string        `json:"borderTypes,omitempty"`
	Layer3Settings *Layer3Settings `json:"layer3Settings,omitempty"`
}

// Layer3Settings are the routing attributes of a Layer-3 border.
type Layer3Settings struct {
	LocalAutonomousSystemNumber  string `json:"localAutonomousSystemNumber,omitempty"`
	IsDefaultExit                *bool  `json:"isDefaultExit,omitempty"`
	ImportExternalRoutes         *bool  `json:"importExternalRoutes,omitempty"`
	BorderPriority               *int   `json:"borderPriority,omitempty"`
	PrependAutonomousSystemCount *int   `json:"prependAutonomousSystemCount,omitempty"`
}

// L2Handoff bridges an internal fabric VLAN to an external one.
type L2Handoff struct {
	ID              string `json:"id,omitempty"`
	NetworkDeviceID string `json:"networkDeviceId"`
	FabricID        string `json:"fabricId"`
	InterfaceName   string `json:"interfaceName"`
	InternalVlanID  int    `json:"internalVlanId"`
	ExternalVlanID  int    `json:"externalVlanId"`
}

func (h L2Handoff) key() string { return fmt.Sprintf("%s/%d", h.InterfaceName, h.InternalVlanID) }

// L3IPHandoff routes a virtual network towards an IP transit.
type L3IPHandoff struct {
	ID                             string `json:"id,omitempty"`
	NetworkDeviceID                string `json:"networkDeviceId"`
	FabricID                       string `json:"fabricId"`
	TransitNetworkID               string `json:"transitNetworkId"`
	InterfaceName                  string `json:"interfaceName"`
	VirtualNetworkName             string `json:"virtualNetworkName"`
	VlanID                         *int   `json:"vlanId,omitempty"`
	TCPMssAdjustment               *int   `json:"tcpMssAdjustment,omitempty"`
	ExternalConnectivityIPPoolName string `json:"externalConnectivityIpPoolName,omitempty"`
	LocalIPAddress                 string `json:"localIpAddress,omitempty"`
	RemoteIPAddress                string `json:"remoteIpAddress,omitempty"`
	LocalIPv6Address               string `json:"localIpv6Address,omitempty"`
	RemoteIPv6Address              string `json:"remoteIpv6Address,omitempty"`
}

func (h L3IPHandoff) key() string {
	return h.TransitNetworkID + "/" + h.InterfaceName + "/" + h.VirtualNetworkName
}

// L3SDAHandoff connects a border to an SDA transit. A device has at most one.
type L3SDAHandoff struct {
	NetworkDeviceID               string `json:"networkDeviceId"`
	FabricID                      string `json:"fabricId"`
	TransitNetworkID              string `json:"transitNetworkId"`
	AffinityIDPrime               *int64 `json:"affinityIdPrime,omitempty"`
	AffinityIDDecider             *int64 `json:"affinityIdDecider,omitempty"`
	ConnectedToInternet           *bool  `json:"connectedToInternet,omitempty"`
	IsMulticastOverTransitEnabled *bool  `json:"isMulticastOverTransitEnabled,omitempty"`
}

func layer3(d FabricDevice) *Layer3Settings {
	if d.BorderDeviceSettings == nil {
		return nil
	}
	return d.BorderDeviceSettings.Layer3Settings
}

func l3Str(get func(*Layer3Settings) string) func(FabricDevice) (any, bool) {
	return func(d FabricDevice) (any, bool) {
		if s := layer3(d); s != nil {
			return reconcile.Str(get(s))
		}
		return nil, false
	}
}

func l3Ptr[V any](get func(*Layer3Settings) *V) func(FabricDevice) (any, bool) {
	return func(d FabricDevice) (any, bool) {
		if s := layer3(d); s != nil {
			return reconcile.Ptr(get(s))
		}
		return nil, false
	}
}

var fabricDeviceFields = []reconcile.Field[FabricDevice]{
	{Name: "deviceRoles", Compare: reconcile.SetEq, Immutable: true, Get: func(d FabricDevice) (any, bool) {
		return reconcile.Strings(d.DeviceRoles)
	}},
	{Name: "borderTypes", Compare: reconcile.SetEq, Get: func(d FabricDevice) (any, bool) {
		if d.BorderDeviceSettings == nil {
			return nil, false
		}
		return reconcile.Strings(d.BorderDeviceSettings.BorderTypes)
	}},
	{Name: "localAutonomousSystemNumber", Immutable: true, Get: l3Str(func(s *Layer3Settings) string {
		return s.LocalAutonomousSystemNumber
	})},
	{Name: "isDefaultExit", Get: l3Ptr(func(s *Layer3Settings) *bool { return s.IsDefaultExit })},
	{Name: "importExternalRoutes", Get: l3Ptr(func(s *Layer3Settings) *bool { return s.ImportExternalRoutes })},
	{Name: "borderPriority", Get: l3Ptr(func(s *Layer3Settings) *int { return s.BorderPriority })},
	{Name: "prependAutonomousSystemCount", Get: l3Ptr(func(s *Layer3Settings) *int {
		return s.PrependAutonomousSystemCount
	})},
}

var l3IPFields = []reconcile.Field[L3IPHandoff]{
	{Name: "tcpMssAdjustment", Get: func(h L3IPHandoff) (any, bool) { return reconcile.Ptr(h.TCPMssAdjustment) }},
	{Name: "vlanId", Immutable: true, Get: func(h L3IPHandoff) (any, bool) { return reconcile.Ptr(h.VlanID) }},
	{Name: "externalConnectivityIpPoolName", Immutable: true, Get: func(h L3IPHandoff) (any, bool) {
		return reconcile.Str(h.ExternalConnectivityIPPoolName)
	}},
	{Name: "localIpAddress", Immutable: true, Get: func(h L3IPHandoff) (any, bool) { return reconcile.Str(h.LocalIPAddress) }},
	{Name: "remoteIpAddress", Immutable: true, Get: func(h L3IPHandoff) (any, bool) { return reconcile.Str(h.RemoteIPAddress) }},
	{Name: "localIpv6Address", Immutable: true, Get: func(h L3IPHandoff) (any, bool) { return reconcile.Str(h.LocalIPv6Address) }},
	{Name: "remoteIpv6Address", Immutable: true, Get: func(h L3IPHandoff) (any, bool) { return reconcile.Str(h.RemoteIPv6Address) }},
}

var l3SDAFields = []reconcile.Field[L3SDAHandoff]{
	{Name: "transitNetworkId", Immutable: true, Get: func(h L3SDAHandoff) (any, bool) { return reconcile.Str(h.TransitNetworkID) }},
	{Name: "affinityIdPrime", Get: func(h L3SDAHandoff) (any, bool) { return reconcile.Ptr(h.AffinityIDPrime) }},
	{Name: "affinityIdDecider", Get: func(h L3SDAHandoff) (any, bool) { return reconcile.Ptr(h.AffinityIDDecider) }},
	{Name: "connectedToInternet", Get: func(h L3SDAHandoff) (any, bool) { return reconcile.Ptr(h.ConnectedToInternet) }},
	{Name: "isMulticastOverTransitEnabled", Get: func(h L3SDAHandoff) (any, bool) {
		return reconcile.Ptr(h.IsMulticastOverTransitEnabled)
	}},
}
