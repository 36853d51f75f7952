package vn

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sdactl/internal/fabric"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/resolve"
	"github.com/dokzlo13/sdactl/internal/retain"
)

// Handlers returns the handlers of this package.
func Handlers() []reconcile.Handler {
	return []reconcile.Handler{VLANHandler{}, L3VNHandler{}, GatewayHandler{}}
}

// zonesLast orders fabric sites before zones.
func zonesLast(locs []playbook.Location) []playbook.Location {
	out := slices.Clone(locs)
	slices.SortStableFunc(out, func(a, b playbook.Location) int {
		switch {
		case a.IsZone() == b.IsZone():
			return 0
		case a.IsZone():
			return 1
		default:
			return -1
		}
	})
	return out
}

// ---- fabric VLANs ----

// VLANHandler reconciles fabric VLANs on fabric sites and zones.
type VLANHandler struct{}

func (VLANHandler) Kind() reconcile.Kind { return reconcile.KindFabricVLAN }

func (VLANHandler) Validate(state playbook.State, item *playbook.Item) error {
	for i, v := range item.FabricVLANs {
		if err := validateVLAN(state, v); err != nil {
			return fmt.Errorf("fabric_vlan[%d]: %w", i, err)
		}
	}
	return nil
}

func vlanFieldsFor(f resolve.Fabric) []reconcile.Field[L2VN] {
	if f.Zone {
		return vlanImmutableFields
	}
	return vlanFields
}

func (h VLANHandler) Apply(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	if len(item.FabricVLANs) == 0 {
		return nil
	}
	if run.Deleting() {
		return h.delete(ctx, run, item.FabricVLANs)
	}

	const kind = reconcile.KindFabricVLAN
	siteAdds := newBatch[L2VN](kind, "add_layer2_virtual_networks", reconcile.StatusCreated)
	zoneAdds := newBatch[L2VN](kind, "add_layer2_virtual_networks", reconcile.StatusCreated)
	updates := newBatch[L2VN](kind, "update_layer2_virtual_networks", reconcile.StatusUpdated)

	for _, v := range item.FabricVLANs {
		for _, loc := range v.FabricSiteLocations {
			scope := loc.SiteNameHierarchy
			f, ok, err := fabric.Locate(ctx, run.Names, loc)
			if err != nil {
				return run.Fail(scope, kind, v.VlanName, err)
			}
			if !ok {
				what := "fabric site"
				if loc.IsZone() {
					what = "fabric zone"
				}
				return run.Fail(scope, kind, v.VlanName, reconcile.NotFound(kind, what, scope))
			}

			have, err := readVLAN(ctx, run.Exec, f.ID, v.VlanName)
			if err != nil {
				return run.Fail(scope, kind, v.VlanName, err)
			}
			want := desiredVLAN(v, f.ID)
			if have == nil {
				if l3 := want.AssociatedLayer3VirtualNetworkName; l3 != "" {
					ok, err := run.Names.VirtualNetworkExists(ctx, l3)
					if err != nil {
						return run.Fail(scope, kind, v.VlanName, err)
					}
					if !ok {
						return run.Fail(scope, kind, v.VlanName, reconcile.NotFound(kind, "layer3 virtual network", l3))
					}
				}
				if f.Zone {
					want.TrafficType, want.IsFabricEnabledWireless = "", nil
					zoneAdds.Add(scope, v.VlanName, want)
				} else {
					siteAdds.Add(scope, v.VlanName, vlanWithDefaults(want))
				}
				continue
			}

			ms := reconcile.Diff(vlanFieldsFor(f), want, *have)
			if err := reconcile.CheckImmutable(kind, v.VlanName, ms); err != nil {
				return run.Fail(scope, kind, v.VlanName, err)
			}
			switch reconcile.Decide(true, ms) {
			case reconcile.ActionUpdate:
				log.Debug().Str("vlan", v.VlanName).Str("fabric", scope).Interface("diff", ms).Msg("Fabric VLAN differs")
				updates.Add(scope, v.VlanName, overlayVLAN(*have, want))
			default:
				run.Record.Status(scope, kind, v.VlanName, reconcile.StatusUnchanged)
			}
		}
	}

	for _, b := range []*reconcile.Batch[L2VN]{siteAdds, zoneAdds, updates} {
		if err := submit(ctx, run, b); err != nil {
			return err
		}
	}
	return nil
}

func (VLANHandler) delete(ctx context.Context, run *reconcile.Run, vlans []playbook.FabricVLAN) error {
	const kind = reconcile.KindFabricVLAN
	for _, v := range vlans {
		locs := zonesLast(v.FabricSiteLocations)
		slices.Reverse(locs)
		for _, loc := range locs {
			scope := loc.SiteNameHierarchy
			f, ok, err := fabric.Locate(ctx, run.Names, loc)
			if err != nil {
				return run.Fail(scope, kind, v.VlanName, err)
			}
			if !ok {
				run.Record.Status(scope, kind, v.VlanName, reconcile.StatusAbsent)
				continue
			}
			have, err := readVLAN(ctx, run.Exec, f.ID, v.VlanName)
			if err != nil {
				return run.Fail(scope, kind, v.VlanName, err)
			}
			if have == nil {
				run.Record.Status(scope, kind, v.VlanName, reconcile.StatusAbsent)
				continue
			}
			if err := deleteByID(ctx, run, kind, "delete_layer2_virtual_network_by_id", scope, v.VlanName, have.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (VLANHandler) Verify(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	const kind = reconcile.KindFabricVLAN
	var errs []error
	for _, v := range item.FabricVLANs {
		for _, loc := range v.FabricSiteLocations {
			scope := loc.SiteNameHierarchy
			f, ok, err := fabric.Locate(ctx, run.Names, loc)
			if err != nil {
				errs = append(errs, run.Fail(scope, kind, v.VlanName, err))
				continue
			}
			var have *L2VN
			if ok {
				if have, err = readVLAN(ctx, run.Exec, f.ID, v.VlanName); err != nil {
					errs = append(errs, run.Fail(scope, kind, v.VlanName, err))
					continue
				}
			}

			switch {
			case run.Deleting() && have != nil:
				errs = append(errs, run.Fail(scope, kind, v.VlanName, reconcile.Absent(kind, v.VlanName, true)))
			case run.Deleting():
				run.Record.Verified(scope, kind, v.VlanName)
			case have == nil:
				errs = append(errs, run.Fail(scope, kind, v.VlanName, reconcile.Absent(kind, v.VlanName, false)))
			default:
				want := desiredVLAN(v, f.ID)
				if ms := reconcile.Diff(vlanFieldsFor(f), want, *have); len(ms) > 0 {
					errs = append(errs, run.Fail(scope, kind, v.VlanName, reconcile.Mismatched(kind, v.VlanName, want, *have, ms)))
					continue
				}
				run.Record.Verified(scope, kind, v.VlanName)
			}
		}
	}
	return errors.Join(errs...)
}

// ---- layer3 virtual networks ----

// L3VNHandler reconciles Layer-3 virtual networks and the fabrics they extend to.
type L3VNHandler struct{}

func (L3VNHandler) Kind() reconcile.Kind { return reconcile.KindVirtualNetwork }

func (L3VNHandler) Validate(state playbook.State, item *playbook.Item) error {
	for i, v := range item.VirtualNetworks {
		if err := validateL3VN(state, v); err != nil {
			return fmt.Errorf("virtual_networks[%d]: %w", i, err)
		}
	}
	return nil
}

// fabricIDs resolves locs to sorted fabric ids. Missing locations are returned
// by name.
func fabricIDs(ctx context.Context, names *resolve.Resolver, locs []playbook.Location) (ids, missing []string, err error) {
	for _, loc := range locs {
		f, ok, err := fabric.Locate(ctx, names, loc)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			missing = append(missing, loc.SiteNameHierarchy)
			continue
		}
		ids = append(ids, f.ID)
	}
	return reconcile.Normalize(ids), missing, nil
}

// desiredL3VN resolves the input into wire shape.
func desiredL3VN(ctx context.Context, run *reconcile.Run, v playbook.VirtualNetwork) (L3VN, error) {
	const kind = reconcile.KindVirtualNetwork
	ids, missing, err := fabricIDs(ctx, run.Names, v.FabricSiteLocations)
	if err != nil {
		return L3VN{}, err
	}
	if len(missing) > 0 {
		return L3VN{}, reconcile.NotFound(kind, "fabric", missing[0])
	}
	want := L3VN{VirtualNetworkName: v.VNName, FabricIDs: ids}
	if v.AnchoredSiteName != "" {
		f, ok, err := run.Names.Fabric(ctx, v.AnchoredSiteName)
		if err != nil {
			return L3VN{}, err
		}
		if !ok {
			return L3VN{}, reconcile.NotFound(kind, "anchored fabric site", v.AnchoredSiteName)
		}
		want.AnchoredSiteID = f.ID
	}
	return want, nil
}

func (h L3VNHandler) Apply(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	if len(item.VirtualNetworks) == 0 {
		return nil
	}
	if run.Deleting() {
		return h.delete(ctx, run, item.VirtualNetworks)
	}

	const kind = reconcile.KindVirtualNetwork
	adds := newBatch[L3VN](kind, "add_layer3_virtual_networks", reconcile.StatusCreated)
	updates := newBatch[L3VN](kind, "update_layer3_virtual_networks", reconcile.StatusUpdated)

	for _, v := range item.VirtualNetworks {
		want, err := desiredL3VN(ctx, run, v)
		if err != nil {
			return run.Fail(v.VNName, kind, v.VNName, err)
		}
		have, err := readL3VN(ctx, run.Exec, v.VNName)
		if err != nil {
			return run.Fail(v.VNName, kind, v.VNName, err)
		}
		if have == nil {
			adds.Add(v.VNName, v.VNName, want)
			continue
		}

		// Extending never removes fabrics the network already reaches.
		want.FabricIDs = retain.Union(have.FabricIDs, want.FabricIDs)
		ms := reconcile.Diff(l3vnFields, want, *have)
		if reconcile.Decide(true, ms) == reconcile.ActionNone {
			run.Record.Status(v.VNName, kind, v.VNName, reconcile.StatusUnchanged)
			continue
		}
		updates.Add(v.VNName, v.VNName, retain.Overlay(*have, func(n *L3VN) {
			n.FabricIDs = want.FabricIDs
			n.AnchoredSiteID = retain.String(want.AnchoredSiteID, n.AnchoredSiteID)
		}))
	}

	for _, b := range []*reconcile.Batch[L3VN]{adds, updates} {
		if err := submit(ctx, run, b); err != nil {
			return err
		}
	}
	return nil
}

func (L3VNHandler) delete(ctx context.Context, run *reconcile.Run, vns []playbook.VirtualNetwork) error {
	const kind = reconcile.KindVirtualNetwork
	for _, v := range vns {
		name := v.VNName
		have, err := readL3VN(ctx, run.Exec, name)
		if err != nil {
			return run.Fail(name, kind, name, err)
		}
		if have == nil {
			run.Record.Status(name, kind, name, reconcile.StatusAbsent)
			continue
		}

		remove := have.FabricIDs
		if len(v.FabricSiteLocations) > 0 {
			ids, _, err := fabricIDs(ctx, run.Names, v.FabricSiteLocations)
			if err != nil {
				return run.Fail(name, kind, name, err)
			}
			remove = retain.Intersect(ids, have.FabricIDs)
			if len(remove) == 0 {
				run.Record.Status(name, kind, name, reconcile.StatusAbsent)
				continue
			}
		}

		if err := checkUnreferenced(ctx, run, name, remove, len(v.FabricSiteLocations) == 0); err != nil {
			return run.Fail(name, kind, name, err)
		}

		remaining := retain.Subtract(have.FabricIDs, remove)
		if len(v.FabricSiteLocations) == 0 || len(remaining) == 0 {
			if err := deleteL3VN(ctx, run, name); err != nil {
				return err
			}
			continue
		}

		update := newBatch[L3VN](kind, "update_layer3_virtual_networks", reconcile.StatusDeleted)
		update.Add(name, name, retain.Overlay(*have, func(n *L3VN) {
			n.FabricIDs = remaining
			if slices.Contains(remove, n.AnchoredSiteID) {
				n.AnchoredSiteID = ""
			}
		}))
		if err := submit(ctx, run, update); err != nil {
			return err
		}
	}
	return nil
}

// checkUnreferenced fails when an anycast gateway on one of fabricIDs still
// uses the network. With all set every fabric counts.
func checkUnreferenced(ctx context.Context, run *reconcile.Run, name string, fabricIDs []string, all bool) error {
	gws, err := readGateways(ctx, run.Exec, "", name, "")
	if err != nil {
		return err
	}
	for _, gw := range gws {
		if all || slices.Contains(fabricIDs, gw.FabricID) {
			return fmt.Errorf("layer3 virtual network %s is still used by anycast gateway %s on fabric %s",
				name, gw.IPPoolName, gw.FabricID)
		}
	}
	return nil
}

func (L3VNHandler) Verify(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	const kind = reconcile.KindVirtualNetwork
	var errs []error
	for _, v := range item.VirtualNetworks {
		name := v.VNName
		have, err := readL3VN(ctx, run.Exec, name)
		if err != nil {
			errs = append(errs, run.Fail(name, kind, name, err))
			continue
		}

		if run.Deleting() {
			gone := have == nil
			if !gone && len(v.FabricSiteLocations) > 0 {
				ids, _, err := fabricIDs(ctx, run.Names, v.FabricSiteLocations)
				if err != nil {
					errs = append(errs, run.Fail(name, kind, name, err))
					continue
				}
				gone = len(retain.Intersect(ids, have.FabricIDs)) == 0
			}
			if !gone {
				errs = append(errs, run.Fail(name, kind, name, reconcile.Absent(kind, name, true)))
				continue
			}
			run.Record.Verified(name, kind, name)
			continue
		}

		if have == nil {
			errs = append(errs, run.Fail(name, kind, name, reconcile.Absent(kind, name, false)))
			continue
		}
		want, err := desiredL3VN(ctx, run, v)
		if err != nil {
			errs = append(errs, run.Fail(name, kind, name, err))
			continue
		}
		want.FabricIDs = retain.Union(have.FabricIDs, want.FabricIDs)
		if ms := reconcile.Diff(l3vnFields, want, *have); len(ms) > 0 {
			errs = append(errs, run.Fail(name, kind, name, reconcile.Mismatched(kind, name, want, *have, ms)))
			continue
		}
		run.Record.Verified(name, kind, name)
	}
	return errors.Join(errs...)
}

// ---- anycast gateways ----

// GatewayHandler reconciles anycast gateways keyed by (fabric, VN, pool).
type GatewayHandler struct{}

func (GatewayHandler) Kind() reconcile.Kind { return reconcile.KindAnycastGateway }

func (GatewayHandler) Validate(state playbook.State, item *playbook.Item) error {
	for i, g := range item.AnycastGateways {
		if err := validateGateway(state, g); err != nil {
			return fmt.Errorf("anycast_gateways[%d]: %w", i, err)
		}
	}
	return nil
}

func gatewayName(g playbook.AnycastGateway) string { return g.VNName + "/" + g.IPPoolName }

func (h GatewayHandler) Apply(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	if len(item.AnycastGateways) == 0 {
		return nil
	}
	if run.Deleting() {
		return h.delete(ctx, run, item.AnycastGateways)
	}

	const kind = reconcile.KindAnycastGateway
	adds := newBatch[Gateway](kind, "add_anycast_gateways", reconcile.StatusCreated)
	updates := newBatch[Gateway](kind, "update_anycast_gateways", reconcile.StatusUpdated)

	for _, g := range item.AnycastGateways {
		scope, object := g.FabricSiteLocation.SiteNameHierarchy, gatewayName(g)
		f, ok, err := fabric.Locate(ctx, run.Names, *g.FabricSiteLocation)
		if err != nil {
			return run.Fail(scope, kind, object, err)
		}
		if !ok {
			return run.Fail(scope, kind, object, reconcile.NotFound(kind, "fabric", scope))
		}

		have, err := readGateway(ctx, run.Exec, f.ID, g.VNName, g.IPPoolName)
		if err != nil {
			return run.Fail(scope, kind, object, err)
		}
		want := desiredGateway(g, f.ID)

		if have == nil {
			if err := checkReferences(ctx, run, f, g); err != nil {
				return run.Fail(scope, kind, object, err)
			}
			adds.Add(scope, object, gatewayWithDefaults(want))
			continue
		}

		ms := reconcile.Diff(gatewayFields, want, *have)
		if err := reconcile.CheckImmutable(kind, object, ms); err != nil {
			return run.Fail(scope, kind, object, err)
		}
		if reconcile.Decide(true, ms) == reconcile.ActionNone {
			run.Record.Status(scope, kind, object, reconcile.StatusUnchanged)
			continue
		}
		updates.Add(scope, object, overlayGateway(*have, want))
	}

	for _, b := range []*reconcile.Batch[Gateway]{adds, updates} {
		if err := submit(ctx, run, b); err != nil {
			return err
		}
	}
	return nil
}

// checkReferences requires the VN and the reserved pool before a create.
func checkReferences(ctx context.Context, run *reconcile.Run, f resolve.Fabric, g playbook.AnycastGateway) error {
	const kind = reconcile.KindAnycastGateway
	ok, err := run.Names.VirtualNetworkExists(ctx, g.VNName)
	if err != nil {
		return err
	}
	if !ok {
		return reconcile.NotFound(kind, "layer3 virtual network", g.VNName)
	}
	ok, err = run.Names.ReservedPoolExists(ctx, f.SiteID, g.IPPoolName)
	if err != nil {
		return err
	}
	if !ok {
		return reconcile.NotFound(kind, "reserved pool", g.IPPoolName)
	}
	return nil
}

func (GatewayHandler) delete(ctx context.Context, run *reconcile.Run, gws []playbook.AnycastGateway) error {
	const kind = reconcile.KindAnycastGateway
	for _, g := range gws {
		scope, object := g.FabricSiteLocation.SiteNameHierarchy, gatewayName(g)
		f, ok, err := fabric.Locate(ctx, run.Names, *g.FabricSiteLocation)
		if err != nil {
			return run.Fail(scope, kind, object, err)
		}
		if !ok {
			run.Record.Status(scope, kind, object, reconcile.StatusAbsent)
			continue
		}
		have, err := readGateway(ctx, run.Exec, f.ID, g.VNName, g.IPPoolName)
		if err != nil {
			return run.Fail(scope, kind, object, err)
		}
		if have == nil {
			run.Record.Status(scope, kind, object, reconcile.StatusAbsent)
			continue
		}
		if err := deleteByID(ctx, run, kind, "delete_anycast_gateway_by_id", scope, object, have.ID); err != nil {
			return err
		}
	}
	return nil
}

func (GatewayHandler) Verify(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	const kind = reconcile.KindAnycastGateway
	var errs []error
	for _, g := range item.AnycastGateways {
		scope, object := g.FabricSiteLocation.SiteNameHierarchy, gatewayName(g)
		f, ok, err := fabric.Locate(ctx, run.Names, *g.FabricSiteLocation)
		if err != nil {
			errs = append(errs, run.Fail(scope, kind, object, err))
			continue
		}
		var have *Gateway
		if ok {
			if have, err = readGateway(ctx, run.Exec, f.ID, g.VNName, g.IPPoolName); err != nil {
				errs = append(errs, run.Fail(scope, kind, object, err))
				continue
			}
		}

		switch {
		case run.Deleting() && have != nil:
			errs = append(errs, run.Fail(scope, kind, object, reconcile.Absent(kind, object, true)))
		case run.Deleting():
			run.Record.Verified(scope, kind, object)
		case have == nil:
			errs = append(errs, run.Fail(scope, kind, object, reconcile.Absent(kind, object, false)))
		default:
			want := desiredGateway(g, f.ID)
			if ms := reconcile.Diff(gatewayFields, want, *have); len(ms) > 0 {
				errs = append(errs, run.Fail(scope, kind, object, reconcile.Mismatched(kind, object, want, *have, ms)))
				continue
			}
			run.Record.Verified(scope, kind, object)
		}
	}
	return errors.Join(errs...)
}
