package fabric

import (
	"fmt"
	"net"
	"strings"

	"github.com/yl2chen/cidranger"
)

// Multicast address space.
const (
	MulticastV4 = "224.0.0.0/4"
	MulticastV6 = "ff00::/8"
)

// ParsePrefix parses an address with or without a prefix length. A bare
// address is a host prefix.
func ParsePrefix(s string) (net.IP, *net.IPNet, error) {
	if strings.Contains(s, "/") {
		return net.ParseCIDR(s)
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, nil, fmt.Errorf("invalid IP address %q", s)
	}
	bits := 128
	if ip.To4() != nil {
		ip = ip.To4()
		bits = 32
	}
	return ip, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

// SameSubnet fails unless remote lies inside local's prefix.
func SameSubnet(local, remote string) error {
	_, network, err := net.ParseCIDR(local)
	if err != nil {
		return fmt.Errorf("local address %q needs a prefix length: %w", local, err)
	}
	remoteIP, _, err := ParsePrefix(remote)
	if err != nil {
		return err
	}
	r, err := NewRanges(network.String())
	if err != nil {
		return err
	}
	ok, err := r.ranger.Contains(remoteIP)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s and %s are not in the same subnet", local, remote)
	}
	return nil
}

// Ranges indexes CIDR prefixes for containment and overlap checks.
type Ranges struct {
	ranger cidranger.Ranger
}

// NewRanges indexes cidrs.
func NewRanges(cidrs ...string) (*Ranges, error) {
	r := &Ranges{ranger: cidranger.NewPCTrieRanger()}
	for _, c := range cidrs {
		if err := r.Add(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add indexes one prefix.
func (r *Ranges) Add(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid prefix %q: %w", cidr, err)
	}
	return r.ranger.Insert(cidranger.NewBasicRangerEntry(*network))
}

// Covers reports whether cidr lies entirely inside one indexed prefix.
func (r *Ranges) Covers(cidr string) (bool, error) {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return false, fmt.Errorf("invalid prefix %q: %w", cidr, err)
	}
	size, _ := network.Mask.Size()
	containing, err := r.ranger.ContainingNetworks(network.IP)
	if err != nil {
		return false, err
	}
	for _, e := range containing {
		n := e.Network()
		if ones, _ := n.Mask.Size(); ones <= size {
			return true, nil
		}
	}
	return false, nil
}

// Overlaps reports whether cidr shares any address with an indexed prefix.
func (r *Ranges) Overlaps(cidr string) (bool, error) {
	if ok, err := r.Covers(cidr); ok || err != nil {
		return ok, err
	}
	_, network, _ := net.ParseCIDR(cidr)
	covered, err := r.ranger.CoveredNetworks(*network)
	if err != nil {
		return false, err
	}
	return len(covered) > 0, nil
}

// Len returns the number of indexed prefixes.
func (r *Ranges) Len() int { return r.ranger.Len() }
