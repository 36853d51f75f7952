// Package inventory manages devices in the controller inventory: adding and
// deleting them, credentials, roles, user-defined fields and interfaces, plus
// the one-shot operations that act on them (provisioning, resync, AP reboot
// and export).
package inventory

// Scope groups inventory objects in the result.
const Scope = "inventory"

// SNMP settings.
const (
	SNMPv2 = "v2"
	SNMPv3 = "v3"

	ModeAuthPriv     = "AUTHPRIV"
	ModeAuthNoPriv   = "AUTHNOPRIV"
	ModeNoAuthNoPriv = "NOAUTHNOPRIV"

	AuthSHA = "SHA"
	AuthMD5 = "MD5"

	PrivAES128      = "AES128"
	PrivAES192      = "AES192"
	PrivAES256      = "AES256"
	PrivCiscoAES192 = "CISCOAES192"
	PrivCiscoAES256 = "CISCOAES256"
)

var privProtocols = []string{PrivAES128, PrivAES192, PrivAES256, PrivCiscoAES192, PrivCiscoAES256}

// Device types and CLI transports accepted when adding devices.
var (
	deviceTypes   = []string{"NETWORK_DEVICE", "COMPUTE_DEVICE", "MERAKI_DASHBOARD", "THIRD_PARTY_DEVICE", "FIREPOWER_MANAGEMENT_SYSTEM"}
	cliTransports = []string{"ssh", "telnet"}
	deviceRoles   = []string{"ACCESS", "CORE", "DISTRIBUTION", "BORDER ROUTER", "UNKNOWN"}
	adminStatuses = []string{"UP", "DOWN"}
	deployModes   = []string{"Deploy", "Preview"}
)

// Export operations.
const (
	ExportCredentials = "0"
	ExportDetails     = "1"
	// MaxExportDevices is the most devices one export call accepts.
	MaxExportDevices = 500
)

// bulkSize caps the devices sent in one bulk device write.
const bulkSize = 500

// familyAP is the inventory family of access points.
const familyAP = "Unified AP"

// Credentials is the add and credential-update payload.
type Credentials struct {
	IPAddress          []string `json:"ipAddress"`
	Type               string   `json:"type,omitempty"`
	CLITransport       string   `json:"cliTransport,omitempty"`
	UserName           string   `json:"userName,omitempty"`
	Password           string   `json:"password,omitempty"`
	EnablePassword     string   `json:"enablePassword,omitempty"`
	NetconfPort        string   `json:"netconfPort,omitempty"`
	SNMPVersion        string   `json:"snmpVersion,omitempty"`
	SNMPROCommunity    string   `json:"snmpROCommunity,omitempty"`
	SNMPRWCommunity    string   `json:"snmpRWCommunity,omitempty"`
	SNMPUserName       string   `json:"snmpUserName,omitempty"`
	SNMPMode           string   `json:"snmpMode,omitempty"`
	SNMPAuthProtocol   string   `json:"snmpAuthProtocol,omitempty"`
	SNMPAuthPassphrase string   `json:"snmpAuthPassphrase,omitempty"`
	SNMPPrivProtocol   string   `json:"snmpPrivProtocol,omitempty"`
	SNMPPrivPassphrase string   `json:"snmpPrivPassphrase,omitempty"`
	SNMPRetry          *int     `json:"snmpRetry,omitempty"`
	SNMPTimeout        *int     `json:"snmpTimeout,omitempty"`
}

// RoleUpdate changes the inventory role of a device.
type RoleUpdate struct {
	ID         string `json:"id"`
	Role       string `json:"role"`
	RoleSource string `json:"roleSource"`
}

// UDF is a user-defined field definition.
type UDF struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UDFValue is a user-defined field assigned on a device.
type UDFValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Interface is the mutable part of a device interface.
type Interface struct {
	ID          string `json:"id,omitempty"`
	Description string `json:"description,omitempty"`
	AdminStatus string `json:"adminStatus,omitempty"`
	VlanID      *int   `json:"vlanId,omitempty"`
	VoiceVlanID *int   `json:"voiceVlanId,omitempty"`
}

// ProvisionRequest provisions a wired device to a site.
type ProvisionRequest struct {
	SiteID          string `json:"siteId"`
	NetworkDeviceID string `json:"networkDeviceId"`
}

// ExportRequest asks for an export of the listed devices.
type ExportRequest struct {
	DeviceUUIDs   []string `json:"deviceUuids"`
	OperationEnum string   `json:"operationEnum"`
	Parameters    []string `json:"parameters,omitempty"`
	Password      string   `json:"password,omitempty"`
}
