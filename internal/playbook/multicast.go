package playbook

// RP locations.
const (
	RPLocationFabric   = "FABRIC"
	RPLocationExternal = "EXTERNAL"
)

// FabricMulticast configures multicast for one Layer-3 VN of a fabric site.
type FabricMulticast struct {
	FabricName           string            `yaml:"fabric_name"`
	Layer3VirtualNetwork string            `yaml:"layer3_virtual_network"`
	ReplicationMode      string            `yaml:"replication_mode,omitempty"`
	IPPoolName           string            `yaml:"ip_pool_name,omitempty"`
	SSM                  *SSM              `yaml:"ssm,omitempty"`
	ASM                  []RendezvousPoint `yaml:"asm,omitempty"`
}

// SSM lists source-specific multicast ranges.
type SSM struct {
	IPv4SSMRanges []string `yaml:"ipv4_ssm_ranges"`
}

// RendezvousPoint is an any-source multicast RP, either on fabric devices or
// an external address.
type RendezvousPoint struct {
	RPDeviceLocation string   `yaml:"rp_device_location"`
	NetworkDeviceIPs []string `yaml:"network_device_ips,omitempty"`
	ExRPIPv4Address  string   `yaml:"ex_rp_ipv4_address,omitempty"`
	ExRPIPv6Address  string   `yaml:"ex_rp_ipv6_address,omitempty"`
	IsDefaultV4RP    *bool    `yaml:"is_default_v4_rp,omitempty"`
	IsDefaultV6RP    *bool    `yaml:"is_default_v6_rp,omitempty"`
	IPv4ASMRanges    []string `yaml:"ipv4_asm_ranges,omitempty"`
	IPv6ASMRanges    []string `yaml:"ipv6_asm_ranges,omitempty"`
}

// DeletesSubset reports whether a deletion names SSM ranges or RPs. Otherwise
// the whole multicast configuration is removed.
func (m FabricMulticast) DeletesSubset() bool {
	return m.SSM != nil || len(m.ASM) > 0
}
