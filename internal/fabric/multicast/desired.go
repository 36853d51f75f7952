package multicast

import (
	"fmt"
	"net"

	"github.com/dokzlo13/sdactl/internal/fabric"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/retain"
)

const kind = reconcile.KindMulticast

func validate(state playbook.State, m playbook.FabricMulticast) error {
	if m.FabricName == "" {
		return reconcile.Invalid(kind, "fabric_name", "required")
	}
	if m.Layer3VirtualNetwork == "" {
		return reconcile.Invalid(kind, "layer3_virtual_network", "required")
	}
	if m.ReplicationMode != "" && !fabric.OneOf(m.ReplicationMode, ModeNative, ModeHeadend) {
		return reconcile.Invalid(reconcile.KindReplicationMode, "replication_mode",
			"must be %s or %s, got %q", ModeNative, ModeHeadend, m.ReplicationMode)
	}

	v4, err := fabric.NewRanges(fabric.MulticastV4)
	if err != nil {
		return err
	}
	v6, err := fabric.NewRanges(fabric.MulticastV6)
	if err != nil {
		return err
	}

	ssm, err := fabric.NewRanges()
	if err != nil {
		return err
	}
	if m.SSM != nil {
		for _, r := range m.SSM.IPv4SSMRanges {
			if err := within(v4, "ipv4_ssm_ranges", r); err != nil {
				return err
			}
			if err := ssm.Add(r); err != nil {
				return reconcile.Invalid(kind, "ipv4_ssm_ranges", "%v", err)
			}
		}
	}

	for i, rp := range m.ASM {
		if err := validateRP(state, rp, v4, v6); err != nil {
			return fmt.Errorf("asm[%d]: %w", i, err)
		}
		for _, r := range rp.IPv4ASMRanges {
			overlap, err := ssm.Overlaps(r)
			if err != nil {
				return reconcile.Invalid(kind, "ipv4_asm_ranges", "%v", err)
			}
			if overlap {
				return reconcile.Invalid(kind, "ipv4_asm_ranges", "%s overlaps an SSM range", r)
			}
		}
	}
	return nil
}

func within(space *fabric.Ranges, field, cidr string) error {
	ok, err := space.Covers(cidr)
	if err != nil {
		return reconcile.Invalid(kind, field, "%v", err)
	}
	if !ok {
		return reconcile.Invalid(kind, field, "%s is not a multicast range", cidr)
	}
	return nil
}

func validateRP(state playbook.State, rp playbook.RendezvousPoint, v4, v6 *fabric.Ranges) error {
	switch rp.RPDeviceLocation {
	case playbook.RPLocationFabric:
		if rp.ExRPIPv4Address != "" || rp.ExRPIPv6Address != "" {
			return reconcile.Invalid(kind, "ex_rp_ipv4_address", "not allowed on a FABRIC RP")
		}
		if len(rp.NetworkDeviceIPs) == 0 || len(rp.NetworkDeviceIPs) > MaxRPDevices {
			return reconcile.Invalid(kind, "network_device_ips", "a FABRIC RP needs 1 to %d devices", MaxRPDevices)
		}
		for _, ip := range rp.NetworkDeviceIPs {
			if net.ParseIP(ip) == nil {
				return reconcile.Invalid(kind, "network_device_ips", "%q is not an IP address", ip)
			}
		}
	case playbook.RPLocationExternal:
		if len(rp.NetworkDeviceIPs) > 0 {
			return reconcile.Invalid(kind, "network_device_ips", "not allowed on an EXTERNAL RP")
		}
		if rp.ExRPIPv4Address == "" && rp.ExRPIPv6Address == "" {
			return reconcile.Invalid(kind, "ex_rp_ipv4_address", "an EXTERNAL RP needs an IPv4 or IPv6 address")
		}
		if err := validateFamily(state, "ipv4", rp.ExRPIPv4Address, rp.IsDefaultV4RP, rp.IPv4ASMRanges, v4, true); err != nil {
			return err
		}
		if err := validateFamily(state, "ipv6", rp.ExRPIPv6Address, rp.IsDefaultV6RP, rp.IPv6ASMRanges, v6, false); err != nil {
			return err
		}
	default:
		return reconcile.Invalid(kind, "rp_device_location", "must be %s or %s, got %q",
			playbook.RPLocationFabric, playbook.RPLocationExternal, rp.RPDeviceLocation)
	}
	return nil
}

// validateFamily checks one address family of an external RP: the address
// matches the family, and a merged RP is either the default RP or serves
// explicit ASM ranges, never both.
func validateFamily(state playbook.State, family, addr string, isDefault *bool, ranges []string, space *fabric.Ranges, v4 bool) error {
	if addr == "" {
		if isDefault != nil || len(ranges) > 0 {
			return reconcile.Invalid(kind, "ex_rp_"+family+"_address", "required with %s RP settings", family)
		}
		return nil
	}
	ip := net.ParseIP(addr)
	if ip == nil || (ip.To4() != nil) != v4 {
		return reconcile.Invalid(kind, "ex_rp_"+family+"_address", "%q is not an %s address", addr, family)
	}
	for _, r := range ranges {
		if err := within(space, family+"_asm_ranges", r); err != nil {
			return err
		}
	}
	if state == playbook.StateDeleted {
		return nil
	}
	def := isDefault != nil && *isDefault
	if def == (len(ranges) > 0) {
		return reconcile.Invalid(kind, "is_default_"+family[2:]+"_rp",
			"exactly one of is_default_%s_rp or %s_asm_ranges is required for %s", family[2:], family, addr)
	}
	return nil
}

// desiredRP maps an RP onto the wire shape. ids resolves fabric device IPs.
func desiredRP(rp playbook.RendezvousPoint, ids map[string]string) RP {
	out := RP{
		RPDeviceLocation: rp.RPDeviceLocation,
		IPv4Address:      rp.ExRPIPv4Address,
		IPv6Address:      rp.ExRPIPv6Address,
		IsDefaultV4RP:    rp.IsDefaultV4RP,
		IsDefaultV6RP:    rp.IsDefaultV6RP,
		IPv4ASMRanges:    rp.IPv4ASMRanges,
		IPv6ASMRanges:    rp.IPv6ASMRanges,
	}
	for _, ip := range rp.NetworkDeviceIPs {
		out.NetworkDeviceIDs = append(out.NetworkDeviceIDs, ids[ip])
	}
	return out
}

// withDefaults makes a new FABRIC RP given without flags or ranges the
// default IPv4 RP. Observed RPs never get it.
func withDefaults(rp RP) RP {
	if rp.RPDeviceLocation != playbook.RPLocationFabric || rp.IsDefaultV4RP != nil || len(rp.IPv4ASMRanges) > 0 {
		return rp
	}
	yes := true
	rp.IsDefaultV4RP = &yes
	return rp
}

// createVN is the payload that enables multicast on a VN.
func createVN(want VN) VN {
	out := want
	out.MulticastRPs = make([]RP, len(want.MulticastRPs))
	for i, rp := range want.MulticastRPs {
		out.MulticastRPs[i] = withDefaults(rp)
	}
	return out
}

func desiredVN(m playbook.FabricMulticast, fabricID string, ids map[string]string) VN {
	v := VN{
		FabricID:           fabricID,
		VirtualNetworkName: m.Layer3VirtualNetwork,
		IPPoolName:         m.IPPoolName,
		IPv4SSMRanges:      []string{},
		MulticastRPs:       []RP{},
	}
	if m.SSM != nil {
		v.IPv4SSMRanges = append(v.IPv4SSMRanges, m.SSM.IPv4SSMRanges...)
	}
	for _, rp := range m.ASM {
		v.MulticastRPs = append(v.MulticastRPs, desiredRP(rp, ids))
	}
	return v
}

func mergeRP(have, want RP) RP {
	have.NetworkDeviceIDs = retain.Union(have.NetworkDeviceIDs, want.NetworkDeviceIDs)
	have.IPv4Address = retain.String(want.IPv4Address, have.IPv4Address)
	have.IPv6Address = retain.String(want.IPv6Address, have.IPv6Address)
	have.IsDefaultV4RP, have.IPv4ASMRanges = mergeFamily(have.IsDefaultV4RP, have.IPv4ASMRanges, want.IsDefaultV4RP, want.IPv4ASMRanges)
	have.IsDefaultV6RP, have.IPv6ASMRanges = mergeFamily(have.IsDefaultV6RP, have.IPv6ASMRanges, want.IsDefaultV6RP, want.IPv6ASMRanges)
	return have
}

// mergeFamily merges one address family of an RP, which is either the
// default RP or serves explicit ASM ranges. Desired ranges are unioned and
// drop the default flag; a desired default drops the observed ranges.
func mergeFamily(haveDefault *bool, haveRanges []string, wantDefault *bool, wantRanges []string) (*bool, []string) {
	switch {
	case len(wantRanges) > 0:
		return nil, retain.Union(haveRanges, wantRanges)
	case wantDefault == nil:
		return haveDefault, haveRanges
	case *wantDefault:
		return retain.Pointer(wantDefault, nil), nil
	default:
		return retain.Pointer(wantDefault, nil), haveRanges
	}
}

// mergeVN unions the desired ranges and RPs into the observed configuration.
// Merging is idempotent, so a VN that already holds everything desired
// merges to itself.
func mergeVN(have, want VN) VN {
	return retain.Overlay(have, func(v *VN) {
		v.IPPoolName = retain.String(want.IPPoolName, v.IPPoolName)
		v.IPv4SSMRanges = retain.Union(v.IPv4SSMRanges, want.IPv4SSMRanges)
		observed := len(v.MulticastRPs)
		v.MulticastRPs = retain.UnionBy(v.MulticastRPs, want.MulticastRPs, rpKeys, mergeRP)
		for i := observed; i < len(v.MulticastRPs); i++ {
			v.MulticastRPs[i] = withDefaults(v.MulticastRPs[i])
		}
		if v.IPv4SSMRanges == nil {
			v.IPv4SSMRanges = []string{}
		}
		if v.MulticastRPs == nil {
			v.MulticastRPs = []RP{}
		}
	})
}

// trimRP removes the listed devices or ASM ranges from an observed RP. An RP
// named without devices or ranges is removed whole.
func trimRP(have, remove RP) (RP, bool) {
	if len(remove.NetworkDeviceIDs) > 0 && have.RPDeviceLocation == playbook.RPLocationFabric {
		have.NetworkDeviceIDs = retain.Subtract(have.NetworkDeviceIDs, remove.NetworkDeviceIDs)
		return have, len(have.NetworkDeviceIDs) == 0
	}
	if len(remove.IPv4ASMRanges) == 0 && len(remove.IPv6ASMRanges) == 0 {
		return have, true
	}
	have.IPv4ASMRanges = retain.Subtract(have.IPv4ASMRanges, remove.IPv4ASMRanges)
	have.IPv6ASMRanges = retain.Subtract(have.IPv6ASMRanges, remove.IPv6ASMRanges)
	serves := len(have.IPv4ASMRanges) > 0 || len(have.IPv6ASMRanges) > 0 ||
		flag(have.IsDefaultV4RP) != "" || flag(have.IsDefaultV6RP) != ""
	return have, !serves
}

// subtractVN removes the listed ranges and RPs from the observed configuration.
func subtractVN(have, remove VN) VN {
	return retain.Overlay(have, func(v *VN) {
		v.IPv4SSMRanges = retain.Subtract(v.IPv4SSMRanges, remove.IPv4SSMRanges)
		v.MulticastRPs = retain.SubtractBy(v.MulticastRPs, remove.MulticastRPs, rpKeys, trimRP)
		if v.IPv4SSMRanges == nil {
			v.IPv4SSMRanges = []string{}
		}
		if v.MulticastRPs == nil {
			v.MulticastRPs = []RP{}
		}
	})
}
