// Package resolve translates operator-facing names (site hierarchies, device
// IPs, transit and VN names, pool names) into controller ids.
package resolve

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/dokzlo13/sdactl/internal/catalyst"
)

// Fabric is a site or zone configured for SDA.
type Fabric struct {
	ID     string
	SiteID string
	Name   string
	Zone   bool
}

// Device is an inventory device.
type Device struct {
	ID                 string
	ManagementIP       string
	Hostname           string
	MAC                string
	Serial             string
	Family             string
	Role               string
	ReachabilityStatus string
}

// Transit is a transit network.
type Transit struct {
	ID   string
	Name string
	Type string
}

// Transit types.
const (
	TransitIP  = "IP_BASED_TRANSIT"
	TransitSDA = "SDA_LISP_PUB_SUB_TRANSIT"
	// TransitSDABGP is the legacy LISP/BGP SDA transit.
	TransitSDABGP = "SDA_LISP_BGP_TRANSIT"
)

// IsSDA reports whether t is any flavor of SDA transit.
func (t Transit) IsSDA() bool {
	return t.Type == TransitSDA || t.Type == TransitSDABGP
}

// Resolver looks names up through the controller API. Lookups are memoized
// for the lifetime of the resolver, which is one run.
type Resolver struct {
	exec    catalyst.Executor
	timeout time.Duration

	sites   map[string]string
	fabrics map[string]Fabric
	devices map[string]Device
}

// New creates a resolver. timeout bounds every paginated search.
func New(exec catalyst.Executor, timeout time.Duration) *Resolver {
	return &Resolver{
		exec:    exec,
		timeout: timeout,
		sites:   make(map[string]string),
		fabrics: make(map[string]Fabric),
		devices: make(map[string]Device),
	}
}

// Forget drops memoized lookups. Used after mutations that change identities.
func (r *Resolver) Forget() {
	r.sites = make(map[string]string)
	r.fabrics = make(map[string]Fabric)
	r.devices = make(map[string]Device)
}

func (r *Resolver) list(ctx context.Context, family, function string, params catalyst.Params) ([]gjson.Result, error) {
	resp, err := r.exec.Exec(ctx, family, function, params)
	if err != nil {
		return nil, err
	}
	return resp.Items(), nil
}

// SiteID resolves a site name hierarchy such as Global/USA/SAN-JOSE.
func (r *Resolver) SiteID(ctx context.Context, name string) (string, bool, error) {
	if id, ok := r.sites[name]; ok {
		return id, true, nil
	}
	items, err := r.list(ctx, "sites", "get_sites", catalyst.Params{"nameHierarchy": name})
	if err != nil {
		return "", false, err
	}
	for _, it := range items {
		if strings.EqualFold(it.Get("nameHierarchy").String(), name) {
			id := it.Get("id").String()
			r.sites[name] = id
			log.Debug().Str("site", name).Str("site_id", id).Msg("Resolved site")
			return id, true, nil
		}
	}
	return "", false, nil
}

// FabricSiteID returns the fabric-site id of a site, absent when the site is
// not a fabric site (it may be a zone).
func (r *Resolver) FabricSiteID(ctx context.Context, siteID string) (string, bool, error) {
	items, err := r.list(ctx, "sda", "get_fabric_sites", catalyst.Params{"siteId": siteID})
	if err != nil {
		return "", false, err
	}
	if len(items) == 0 {
		return "", false, nil
	}
	return items[0].Get("id").String(), true, nil
}

// FabricZoneID returns the fabric-zone id of a site.
func (r *Resolver) FabricZoneID(ctx context.Context, siteID string) (string, bool, error) {
	items, err := r.list(ctx, "sda", "get_fabric_zones", catalyst.Params{"siteId": siteID})
	if err != nil {
		return "", false, err
	}
	if len(items) == 0 {
		return "", false, nil
	}
	return items[0].Get("id").String(), true, nil
}

// Fabric resolves a site hierarchy to its fabric site, or to its fabric zone
// when the site is not itself a fabric site.
func (r *Resolver) Fabric(ctx context.Context, name string) (Fabric, bool, error) {
	if f, ok := r.fabrics[name]; ok {
		return f, true, nil
	}
	siteID, ok, err := r.SiteID(ctx, name)
	if err != nil || !ok {
		return Fabric{}, false, err
	}
	id, ok, err := r.FabricSiteID(ctx, siteID)
	if err != nil {
		return Fabric{}, false, err
	}
	f := Fabric{ID: id, SiteID: siteID, Name: name}
	if !ok {
		id, ok, err = r.FabricZoneID(ctx, siteID)
		if err != nil || !ok {
			return Fabric{}, false, err
		}
		f.ID, f.Zone = id, true
	}
	r.fabrics[name] = f
	return f, true, nil
}

func parseDevice(it gjson.Result) Device {
	return Device{
		ID:                 it.Get("id").String(),
		ManagementIP:       it.Get("managementIpAddress").String(),
		Hostname:           it.Get("hostname").String(),
		MAC:                it.Get("macAddress").String(),
		Serial:             it.Get("serialNumber").String(),
		Family:             it.Get("family").String(),
		Role:               it.Get("role").String(),
		ReachabilityStatus: it.Get("reachabilityStatus").String(),
	}
}

// Device resolves a management IP to the inventory device.
func (r *Resolver) Device(ctx context.Context, ip string) (Device, bool, error) {
	if d, ok := r.devices[ip]; ok {
		return d, true, nil
	}
	items, err := r.list(ctx, "devices", "get_device_list", catalyst.Params{"managementIpAddress": ip})
	if err != nil {
		return Device{}, false, err
	}
	for _, it := range items {
		d := parseDevice(it)
		if d.ManagementIP == ip {
			r.devices[ip] = d
			return d, true, nil
		}
	}
	return Device{}, false, nil
}

// Inventory search fields accepted by DeviceBy.
const (
	ByIP       = "managementIpAddress"
	ByHostname = "hostname"
	BySerial   = "serialNumber"
	ByMAC      = "macAddress"
)

// DeviceBy finds an inventory device by one of the By* fields. Results are
// not memoized.
func (r *Resolver) DeviceBy(ctx context.Context, field, value string) (Device, bool, error) {
	items, err := r.list(ctx, "devices", "get_device_list", catalyst.Params{field: value})
	if err != nil {
		return Device{}, false, err
	}
	for _, it := range items {
		if strings.EqualFold(it.Get(field).String(), value) {
			return parseDevice(it), true, nil
		}
	}
	return Device{}, false, nil
}

// DeviceID resolves a management IP to a device id.
func (r *Resolver) DeviceID(ctx context.Context, ip string) (string, bool, error) {
	d, ok, err := r.Device(ctx, ip)
	return d.ID, ok, err
}

// Transit resolves a transit network by name.
func (r *Resolver) Transit(ctx context.Context, name string) (Transit, bool, error) {
	items, err := r.list(ctx, "sda", "get_transit_networks", catalyst.Params{"name": name})
	if err != nil {
		return Transit{}, false, err
	}
	for _, it := range items {
		if it.Get("name").String() == name {
			return Transit{ID: it.Get("id").String(), Name: name, Type: it.Get("type").String()}, true, nil
		}
	}
	return Transit{}, false, nil
}

// VirtualNetworkExists reports whether a Layer-3 virtual network exists.
func (r *Resolver) VirtualNetworkExists(ctx context.Context, name string) (bool, error) {
	items, err := r.list(ctx, "sda", "get_layer3_virtual_networks", catalyst.Params{"virtualNetworkName": name})
	if err != nil {
		return false, err
	}
	for _, it := range items {
		if it.Get("virtualNetworkName").String() == name {
			return true, nil
		}
	}
	return false, nil
}

// ReservedPoolExists reports whether poolName is reserved under siteID. The
// search pages through the site's pools and fails, rather than returning
// false, when the timeout elapses first.
func (r *Resolver) ReservedPoolExists(ctx context.Context, siteID, poolName string) (bool, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	_, found, err := Find(
		Pages(ctx, r.exec, "network_settings", "get_reserve_ip_subpool", catalyst.Params{"siteId": siteID}, PoolPageSize),
		func(it gjson.Result) bool { return it.Get("groupName").String() == poolName },
	)
	return found, err
}

// Provisioned reports whether a device is provisioned to the site.
func (r *Resolver) Provisioned(ctx context.Context, deviceID, siteID string) (bool, error) {
	items, err := r.list(ctx, "sda", "get_provisioned_devices", catalyst.Params{"networkDeviceId": deviceID, "siteId": siteID})
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}
