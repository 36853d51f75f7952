package inventory

import (
	"fmt"
	"net"
	"unicode"

	"github.com/dokzlo13/sdactl/internal/fabric"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
)

const minPassphrase = 8

func validate(state playbook.State, d *playbook.InventoryDevices) error {
	const kind = reconcile.KindInventoryDevice
	if len(d.IPAddressList)+len(d.HostnameList)+len(d.SerialNumberList)+len(d.MacAddressList) == 0 {
		return reconcile.Invalid(kind, "ip_address_list", "at least one device must be listed by IP, hostname, serial number or MAC address")
	}
	for _, ip := range d.IPAddressList {
		if net.ParseIP(ip) == nil {
			return reconcile.Invalid(kind, "ip_address_list", "%q is not an IP address", ip)
		}
	}
	for _, mac := range d.MacAddressList {
		if _, err := net.ParseMAC(mac); err != nil {
			return reconcile.Invalid(kind, "mac_address_list", "%q is not a MAC address", mac)
		}
	}
	if state == playbook.StateDeleted {
		for i, u := range d.AddUserDefinedField {
			if u.Name == "" {
				return reconcile.Invalid(kind, fmt.Sprintf("add_user_defined_field[%d].name", i), "required")
			}
		}
		return nil
	}

	checks := []struct {
		field, value string
		allowed      []string
	}{
		{"type", d.Type, deviceTypes},
		{"cli_transport", d.CLITransport, cliTransports},
		{"role", d.Role, deviceRoles},
	}
	for _, c := range checks {
		if c.value != "" && !fabric.OneOf(c.value, c.allowed...) {
			return reconcile.Invalid(kind, c.field, "%q is not one of %v", c.value, c.allowed)
		}
	}
	if err := validateSNMP(d); err != nil {
		return err
	}
	if err := validateInterface(d.UpdateInterfaceDetails); err != nil {
		return err
	}
	for i, u := range d.AddUserDefinedField {
		if u.Name == "" {
			return reconcile.Invalid(kind, fmt.Sprintf("add_user_defined_field[%d].name", i), "required")
		}
	}
	for i, p := range d.ProvisionWiredDevice {
		if net.ParseIP(p.DeviceIP) == nil {
			return reconcile.Invalid(reconcile.KindProvision, fmt.Sprintf("provision_wired_device[%d].device_ip", i), "%q is not an IP address", p.DeviceIP)
		}
		if p.SiteName == "" {
			return reconcile.Invalid(reconcile.KindProvision, fmt.Sprintf("provision_wired_device[%d].site_name", i), "required")
		}
	}
	return validateExport(d.ExportDeviceList)
}

// validateSNMP checks the SNMP credentials the selected version needs.
// Unknown privacy protocols are rejected whatever the mode.
func validateSNMP(d *playbook.InventoryDevices) error {
	const kind = reconcile.KindInventoryDevice
	if d.SNMPPrivProtocol != "" && !fabric.OneOf(d.SNMPPrivProtocol, privProtocols...) {
		return reconcile.Invalid(kind, "snmp_priv_protocol", "%q is not one of %v", d.SNMPPrivProtocol, privProtocols)
	}
	switch d.SNMPVersion {
	case "":
		return nil
	case SNMPv2:
		if d.SNMPROCommunity == "" {
			return reconcile.Invalid(kind, "snmp_ro_community", "required for SNMP v2")
		}
		return nil
	case SNMPv3:
	default:
		return reconcile.Invalid(kind, "snmp_version", "must be %s or %s, got %q", SNMPv2, SNMPv3, d.SNMPVersion)
	}

	if d.SNMPUsername == "" {
		return reconcile.Invalid(kind, "snmp_username", "required for SNMP v3")
	}
	switch d.SNMPMode {
	case ModeNoAuthNoPriv:
		return nil
	case ModeAuthNoPriv, ModeAuthPriv:
	default:
		return reconcile.Invalid(kind, "snmp_mode", "must be one of %s, %s, %s, got %q", ModeAuthPriv, ModeAuthNoPriv, ModeNoAuthNoPriv, d.SNMPMode)
	}
	if !fabric.OneOf(d.SNMPAuthProtocol, AuthSHA, AuthMD5) {
		return reconcile.Invalid(kind, "snmp_auth_protocol", "must be %s or %s for %s", AuthSHA, AuthMD5, d.SNMPMode)
	}
	if len(d.SNMPAuthPassphrase) < minPassphrase {
		return reconcile.Invalid(kind, "snmp_auth_passphrase", "at least %d characters are required", minPassphrase)
	}
	if d.SNMPMode == ModeAuthNoPriv {
		return nil
	}
	if d.SNMPPrivProtocol == "" {
		return reconcile.Invalid(kind, "snmp_priv_protocol", "required for %s", ModeAuthPriv)
	}
	if len(d.SNMPPrivPassphrase) < minPassphrase {
		return reconcile.Invalid(kind, "snmp_priv_passphrase", "at least %d characters are required", minPassphrase)
	}
	return nil
}

func validateInterface(in *playbook.InterfaceDetails) error {
	const kind = reconcile.KindInventoryDevice
	if in == nil {
		return nil
	}
	if len(in.InterfaceName) == 0 {
		return reconcile.Invalid(kind, "update_interface_details.interface_name", "at least one interface is required")
	}
	if in.AdminStatus != "" && !fabric.OneOf(in.AdminStatus, adminStatuses...) {
		return reconcile.Invalid(kind, "update_interface_details.admin_status", "must be UP or DOWN, got %q", in.AdminStatus)
	}
	if in.DeploymentMode != "" && !fabric.OneOf(in.DeploymentMode, deployModes...) {
		return reconcile.Invalid(kind, "update_interface_details.deployment_mode", "must be Deploy or Preview, got %q", in.DeploymentMode)
	}
	for name, v := range map[string]*int{"vlan_id": in.VlanID, "voice_vlan_id": in.VoiceVlanID} {
		if v != nil && (*v < 1 || *v > 4094) {
			return reconcile.Invalid(kind, "update_interface_details."+name, "%d is outside 1-4094", *v)
		}
	}
	return nil
}

func validateExport(e *playbook.ExportDeviceList) error {
	const kind = reconcile.KindDeviceActions
	if e == nil {
		return nil
	}
	switch e.OperationEnum {
	case ExportDetails:
		return nil
	case ExportCredentials:
	default:
		return reconcile.Invalid(kind, "export_device_list.operation_enum", "must be %q or %q, got %q", ExportCredentials, ExportDetails, e.OperationEnum)
	}
	if !strongPassword(e.Password) {
		return reconcile.Invalid(kind, "export_device_list.password",
			"at least %d characters with an upper-case letter, a lower-case letter, a digit and a symbol are required", minPassphrase)
	}
	return nil
}

func strongPassword(pw string) bool {
	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	return len(pw) >= minPassphrase && upper && lower && digit && symbol
}
