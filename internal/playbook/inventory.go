package playbook

// InventoryDevices manages devices in the controller inventory and the
// side-effects that operate on them.
type InventoryDevices struct {
	IPAddressList    []string `yaml:"ip_address_list,omitempty"`
	HostnameList     []string `yaml:"hostname_list,omitempty"`
	SerialNumberList []string `yaml:"serial_number_list,omitempty"`
	MacAddressList   []string `yaml:"mac_address_list,omitempty"`

	Type           string `yaml:"type,omitempty"`
	CLITransport   string `yaml:"cli_transport,omitempty"`
	Username       string `yaml:"username,omitempty"`
	Password       string `yaml:"password,omitempty"`
	EnablePassword string `yaml:"enable_password,omitempty"`
	NetconfPort    string `yaml:"netconf_port,omitempty"`

	SNMPVersion        string `yaml:"snmp_version,omitempty"`
	SNMPROCommunity    string `yaml:"snmp_ro_community,omitempty"`
	SNMPRWCommunity    string `yaml:"snmp_rw_community,omitempty"`
	SNMPUsername       string `yaml:"snmp_username,omitempty"`
	SNMPMode           string `yaml:"snmp_mode,omitempty"`
	SNMPAuthProtocol   string `yaml:"snmp_auth_protocol,omitempty"`
	SNMPAuthPassphrase string `yaml:"snmp_auth_passphrase,omitempty"`
	SNMPPrivProtocol   string `yaml:"snmp_priv_protocol,omitempty"`
	SNMPPrivPassphrase string `yaml:"snmp_priv_passphrase,omitempty"`
	SNMPRetry          *int   `yaml:"snmp_retry,omitempty"`
	SNMPTimeout        *int   `yaml:"snmp_timeout,omitempty"`

	CredentialUpdate bool   `yaml:"credential_update,omitempty"`
	CleanConfig      bool   `yaml:"clean_config,omitempty"`
	Role             string `yaml:"role,omitempty"`

	UpdateInterfaceDetails *InterfaceDetails  `yaml:"update_interface_details,omitempty"`
	ProvisionWiredDevice   []WiredProvision   `yaml:"provision_wired_device,omitempty"`
	AddUserDefinedField    []UserDefinedField `yaml:"add_user_defined_field,omitempty"`
	ExportDeviceList       *ExportDeviceList  `yaml:"export_device_list,omitempty"`

	DevicesResync bool `yaml:"devices_resync,omitempty"`
	ForceSync     bool `yaml:"force_sync,omitempty"`
	RebootDevice  bool `yaml:"reboot_device,omitempty"`
}

// InterfaceDetails updates one or more interfaces on the listed devices.
type InterfaceDetails struct {
	InterfaceName  []string `yaml:"interface_name"`
	Description    string   `yaml:"description,omitempty"`
	AdminStatus    string   `yaml:"admin_status,omitempty"`
	VlanID         *int     `yaml:"vlan_id,omitempty"`
	VoiceVlanID    *int     `yaml:"voice_vlan_id,omitempty"`
	DeploymentMode string   `yaml:"deployment_mode,omitempty"`
}

// WiredProvision provisions a wired device to a site.
type WiredProvision struct {
	DeviceIP string `yaml:"device_ip"`
	SiteName string `yaml:"site_name"`
}

// UserDefinedField is a UDF definition and the value assigned on the devices.
type UserDefinedField struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Value       string `yaml:"value,omitempty"`
}

// ExportDeviceList exports device details or credentials to CSV.
type ExportDeviceList struct {
	// "0" exports credentials as an encrypted archive, "1" exports device details.
	OperationEnum string   `yaml:"operation_enum"`
	Password      string   `yaml:"password,omitempty"`
	Parameters    []string `yaml:"parameters,omitempty"`
	SiteName      string   `yaml:"site_name,omitempty"`
}
