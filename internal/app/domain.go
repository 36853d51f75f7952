package app

import (
	"fmt"
	"strings"

	"github.com/dokzlo13/sdactl/internal/fabric/devices"
	"github.com/dokzlo13/sdactl/internal/fabric/multicast"
	"github.com/dokzlo13/sdactl/internal/fabric/vn"
	"github.com/dokzlo13/sdactl/internal/inventory"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
)

// Domain selects which item keys a run reconciles.
type Domain string

const (
	DomainAll             Domain = "all"
	DomainFabricDevices   Domain = "fabric_devices"
	DomainVirtualNetworks Domain = "fabric_virtual_networks"
	DomainMulticast       Domain = "fabric_multicast"
	DomainInventory       Domain = "inventory"
)

// Domains lists every accepted domain.
var Domains = []Domain{DomainAll, DomainFabricDevices, DomainVirtualNetworks, DomainMulticast, DomainInventory}

// ParseDomain validates a --domain value. Empty means all.
func ParseDomain(s string) (Domain, error) {
	if s == "" {
		return DomainAll, nil
	}
	for _, d := range Domains {
		if string(d) == s {
			return d, nil
		}
	}
	names := make([]string, len(Domains))
	for i, d := range Domains {
		names[i] = string(d)
	}
	return "", fmt.Errorf("unknown domain %q, expected one of %s", s, strings.Join(names, ", "))
}

// Handlers returns the handlers that own the domain's item keys.
func (d Domain) Handlers(exportDir string) []reconcile.Handler {
	switch d {
	case DomainFabricDevices:
		return devices.Handlers()
	case DomainVirtualNetworks:
		return vn.Handlers()
	case DomainMulticast:
		return multicast.Handlers()
	case DomainInventory:
		return inventory.Handlers(exportDir)
	default:
		var hs []reconcile.Handler
		hs = append(hs, inventory.Handlers(exportDir)...)
		hs = append(hs, devices.Handlers()...)
		hs = append(hs, vn.Handlers()...)
		return append(hs, multicast.Handlers()...)
	}
}

// foreignKeys lists the keys of item that d does not reconcile.
func (d Domain) foreignKeys(item *playbook.Item) []string {
	if d == DomainAll {
		return nil
	}
	owned := map[string]Domain{
		"fabric_devices":    DomainFabricDevices,
		"fabric_vlan":       DomainVirtualNetworks,
		"virtual_networks":  DomainVirtualNetworks,
		"anycast_gateways":  DomainVirtualNetworks,
		"fabric_multicast":  DomainMulticast,
		"inventory_devices": DomainInventory,
	}
	present := map[string]bool{
		"fabric_devices":    item.FabricDevices != nil,
		"fabric_vlan":       len(item.FabricVLANs) > 0,
		"virtual_networks":  len(item.VirtualNetworks) > 0,
		"anycast_gateways":  len(item.AnycastGateways) > 0,
		"fabric_multicast":  len(item.FabricMulticast) > 0,
		"inventory_devices": item.InventoryDevices != nil,
	}
	var out []string
	for _, key := range []string{"inventory_devices", "fabric_devices", "fabric_vlan", "virtual_networks", "anycast_gateways", "fabric_multicast"} {
		if present[key] && owned[key] != d {
			out = append(out, key)
		}
	}
	return out
}

func kindNames(kinds []reconcile.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
