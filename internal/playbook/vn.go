package playbook

// Fabric location types.
const (
	FabricTypeSite = "fabric_site"
	FabricTypeZone = "fabric_zone"
)

// Location is a fabric site or zone.
type Location struct {
	SiteNameHierarchy string `yaml:"site_name_hierarchy"`
	FabricType        string `yaml:"fabric_type,omitempty"`
}

// IsZone reports whether the location names a fabric zone.
func (l Location) IsZone() bool { return l.FabricType == FabricTypeZone }

// FabricVLAN is a Layer-2 virtual network extended to fabric locations.
type FabricVLAN struct {
	VlanName                           string     `yaml:"vlan_name"`
	VlanID                             *int       `yaml:"vlan_id,omitempty"`
	TrafficType                        string     `yaml:"traffic_type,omitempty"`
	FabricEnabledWireless              *bool      `yaml:"fabric_enabled_wireless,omitempty"`
	AssociatedLayer3VirtualNetworkName string     `yaml:"associated_layer3_virtual_network_name,omitempty"`
	FabricSiteLocations                []Location `yaml:"fabric_site_locations,omitempty"`
}

// VirtualNetwork is a Layer-3 virtual network.
type VirtualNetwork struct {
	VNName              string     `yaml:"vn_name"`
	AnchoredSiteName    string     `yaml:"anchored_site_name,omitempty"`
	FabricSiteLocations []Location `yaml:"fabric_site_locations,omitempty"`
}

// AnycastGateway is the default gateway of an IP pool inside a VN.
type AnycastGateway struct {
	VNName             string    `yaml:"vn_name"`
	FabricSiteLocation *Location `yaml:"fabric_site_location"`
	IPPoolName         string    `yaml:"ip_pool_name"`

	TCPMssAdjustment     *int   `yaml:"tcp_mss_adjustment,omitempty"`
	TrafficType          string `yaml:"traffic_type,omitempty"`
	PoolType             string `yaml:"pool_type,omitempty"`
	VlanName             string `yaml:"vlan_name,omitempty"`
	VlanID               *int   `yaml:"vlan_id,omitempty"`
	SecurityGroupName    string `yaml:"security_group_name,omitempty"`
	AutoGenerateVlanName *bool  `yaml:"auto_generate_vlan_name,omitempty"`

	IsCriticalPool                        *bool `yaml:"is_critical_pool,omitempty"`
	Layer2FloodingEnabled                 *bool `yaml:"layer2_flooding_enabled,omitempty"`
	FabricEnabledWireless                 *bool `yaml:"fabric_enabled_wireless,omitempty"`
	IPDirectedBroadcast                   *bool `yaml:"ip_directed_broadcast,omitempty"`
	IntraSubnetRoutingEnabled             *bool `yaml:"intra_subnet_routing_enabled,omitempty"`
	MultipleIPToMacAddresses              *bool `yaml:"multiple_ip_to_mac_addresses,omitempty"`
	SupplicantBasedExtendedNodeOnboarding *bool `yaml:"supplicant_based_extended_node_onboarding,omitempty"`
	GroupBasedPolicyEnforcementEnabled    *bool `yaml:"group_based_policy_enforcement_enabled,omitempty"`
}
