package playbook

// FabricDevices configures the devices of one fabric site or zone.
type FabricDevices struct {
	FabricName   string         `yaml:"fabric_name"`
	DeviceConfig []DeviceConfig `yaml:"device_config"`
}

// DeviceConfig is one fabric device.
type DeviceConfig struct {
	DeviceIP           string          `yaml:"device_ip"`
	DeviceRoles        []string        `yaml:"device_roles,omitempty"`
	DeleteFabricDevice *bool           `yaml:"delete_fabric_device,omitempty"`
	BordersSettings    *BorderSettings `yaml:"borders_settings,omitempty"`
}

// BorderSettings configures a BORDER_NODE.
type BorderSettings struct {
	Layer3Settings          *Layer3Settings `yaml:"layer3_settings,omitempty"`
	Layer3HandoffIPTransit  []L3IPHandoff   `yaml:"layer3_handoff_ip_transit,omitempty"`
	Layer3HandoffSDATransit *L3SDAHandoff   `yaml:"layer3_handoff_sda_transit,omitempty"`
	Layer2Handoff           []L2Handoff     `yaml:"layer2_handoff,omitempty"`
}

// Layer3Settings are the routing settings of a Layer-3 border.
type Layer3Settings struct {
	LocalAutonomousSystemNumber  string `yaml:"local_autonomous_system_number,omitempty"`
	IsDefaultExit                *bool  `yaml:"is_default_exit,omitempty"`
	ImportExternalRoutes         *bool  `yaml:"import_external_routes,omitempty"`
	BorderPriority               *int   `yaml:"border_priority,omitempty"`
	PrependAutonomousSystemCount *int   `yaml:"prepend_autonomous_system_count,omitempty"`
}

// L3IPHandoff is a Layer-3 handoff towards an IP transit.
type L3IPHandoff struct {
	TransitNetworkName             string `yaml:"transit_network_name"`
	InterfaceName                  string `yaml:"interface_name"`
	ExternalConnectivityIPPoolName string `yaml:"external_connectivity_ip_pool_name,omitempty"`
	VirtualNetworkName             string `yaml:"virtual_network_name"`
	VlanID                         *int   `yaml:"vlan_id,omitempty"`
	TCPMssAdjustment               *int   `yaml:"tcp_mss_adjustment,omitempty"`
	LocalIPAddress                 string `yaml:"local_ip_address,omitempty"`
	RemoteIPAddress                string `yaml:"remote_ip_address,omitempty"`
	LocalIPv6Address               string `yaml:"local_ipv6_address,omitempty"`
	RemoteIPv6Address              string `yaml:"remote_ipv6_address,omitempty"`
}

// L3SDAHandoff is a Layer-3 handoff towards an SDA transit.
type L3SDAHandoff struct {
	TransitNetworkName            string `yaml:"transit_network_name"`
	AffinityIDPrime               *int64 `yaml:"affinity_id_prime,omitempty"`
	AffinityIDDecider             *int64 `yaml:"affinity_id_decider,omitempty"`
	ConnectedToInternet           *bool  `yaml:"connected_to_internet,omitempty"`
	IsMulticastOverTransitEnabled *bool  `yaml:"is_multicast_over_transit_enabled,omitempty"`
}

// L2Handoff bridges an internal fabric VLAN to an external VLAN.
type L2Handoff struct {
	InterfaceName  string `yaml:"interface_name"`
	InternalVlanID int    `yaml:"internal_vlan_id"`
	ExternalVlanID int    `yaml:"external_vlan_id"`
}
