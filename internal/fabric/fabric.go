// Package fabric holds helpers shared by the SDA fabric reconcilers.
package fabric

import (
	"context"
	"regexp"
	"slices"

	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/resolve"
)

var (
	// VNNamePattern is the allowed Layer-3 virtual network name.
	VNNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,16}$`)
	// VLANNamePattern is the allowed fabric VLAN name.
	VLANNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)
)

// Reserved Layer-3 virtual networks.
const (
	InfraVN   = "INFRA_VN"
	DefaultVN = "DEFAULT_VN"
)

// Traffic types.
const (
	TrafficData  = "DATA"
	TrafficVoice = "VOICE"
)

// TCP MSS adjustment bounds.
const (
	MinTCPMss = 500
	MaxTCPMss = 1440
)

// ValidVLAN reports whether id is usable as a fabric or handoff VLAN.
func ValidVLAN(id int) bool {
	if id < 2 || id > 4094 {
		return false
	}
	if id >= 1002 && id <= 1005 {
		return false
	}
	return id != 2046 && id != 4094
}

// ValidTCPMss reports whether v is an accepted TCP MSS adjustment.
func ValidTCPMss(v int) bool {
	return v >= MinTCPMss && v <= MaxTCPMss
}

// OneOf reports whether v is one of allowed.
func OneOf(v string, allowed ...string) bool {
	return slices.Contains(allowed, v)
}

// Locate resolves a fabric site or zone location. A location whose site is
// not configured with the requested fabric type is reported as absent.
func Locate(ctx context.Context, names *resolve.Resolver, loc playbook.Location) (resolve.Fabric, bool, error) {
	siteID, ok, err := names.SiteID(ctx, loc.SiteNameHierarchy)
	if err != nil || !ok {
		return resolve.Fabric{}, false, err
	}

	lookup := names.FabricSiteID
	if loc.IsZone() {
		lookup = names.FabricZoneID
	}
	id, ok, err := lookup(ctx, siteID)
	if err != nil || !ok {
		return resolve.Fabric{}, false, err
	}
	return resolve.Fabric{ID: id, SiteID: siteID, Name: loc.SiteNameHierarchy, Zone: loc.IsZone()}, true, nil
}

// ValidLocation reports an error message for a malformed location, or "".
func ValidLocation(loc playbook.Location) string {
	if loc.SiteNameHierarchy == "" {
		return "site_name_hierarchy is required"
	}
	if loc.FabricType != "" && !OneOf(loc.FabricType, playbook.FabricTypeSite, playbook.FabricTypeZone) {
		return "fabric_type must be fabric_site or fabric_zone, got " + loc.FabricType
	}
	return ""
}
