package multicast

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sdactl/internal/catalyst"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/resolve"
	"github.com/dokzlo13/sdactl/internal/task"
)

// batchSize caps the objects sent in one bulk write.
const batchSize = 20

// Handlers returns the handlers of this package.
func Handlers() []reconcile.Handler {
	return []reconcile.Handler{VNHandler{}, ReplicationHandler{}}
}

func newBatch[T any](k reconcile.Kind, function, status string) *reconcile.Batch[T] {
	return &reconcile.Batch[T]{Kind: k, Family: "sda", Function: function, Status: status}
}

func submit[T any](ctx context.Context, run *reconcile.Run, b *reconcile.Batch[T]) error {
	if b.Len() == 0 {
		return nil
	}
	log.Info().
		Str("kind", string(b.Kind)).
		Str("function", b.Function).
		Int("count", b.Len()).
		Msg("Submitting bulk write")
	return b.Submit(ctx, run, batchSize, task.Completed())
}

// locate resolves a fabric that can carry multicast. Zones cannot.
func locate(ctx context.Context, run *reconcile.Run, k reconcile.Kind, name string) (resolve.Fabric, bool, error) {
	f, ok, err := run.Names.Fabric(ctx, name)
	if err != nil {
		return f, false, run.Fail(name, k, name, err)
	}
	if !ok {
		if run.Deleting() {
			run.Record.Status(name, k, name, reconcile.StatusAbsent)
			return f, false, nil
		}
		return f, false, run.Fail(name, k, name, reconcile.NotFound(k, "fabric site", name))
	}
	if f.Zone {
		return f, false, run.Fail(name, k, name, reconcile.Invalid(k, "fabric_name", "%s is a fabric zone, multicast needs a fabric site", name))
	}
	return f, true, nil
}

// VNHandler reconciles the multicast configuration of Layer-3 VNs.
type VNHandler struct{}

func (VNHandler) Kind() reconcile.Kind { return kind }

func (VNHandler) Validate(state playbook.State, item *playbook.Item) error {
	modes := make(map[string]string)
	for i, m := range item.FabricMulticast {
		if err := validate(state, m); err != nil {
			return fmt.Errorf("fabric_multicast[%d]: %w", i, err)
		}
		if m.ReplicationMode == "" {
			continue
		}
		if prev, ok := modes[m.FabricName]; ok && prev != m.ReplicationMode {
			return fmt.Errorf("fabric_multicast[%d]: %w", i, reconcile.Invalid(reconcile.KindReplicationMode, "replication_mode",
				"%s is given both %s and %s", m.FabricName, prev, m.ReplicationMode))
		}
		modes[m.FabricName] = m.ReplicationMode
	}
	return nil
}

// deviceIDs resolves the devices of the FABRIC RPs. Under merged state every
// device must be a provisioned member of the fabric.
func deviceIDs(ctx context.Context, run *reconcile.Run, f resolve.Fabric, m playbook.FabricMulticast) (map[string]string, error) {
	ids := make(map[string]string)
	for _, rp := range m.ASM {
		for _, ip := range rp.NetworkDeviceIPs {
			if _, done := ids[ip]; done {
				continue
			}
			dev, ok, err := run.Names.Device(ctx, ip)
			if err != nil {
				return nil, err
			}
			if !ok {
				if run.Deleting() {
					continue
				}
				return nil, reconcile.NotFound(kind, "device", ip)
			}
			ids[ip] = dev.ID
			if run.Deleting() {
				continue
			}
			member, err := isFabricDevice(ctx, run.Exec, f.ID, dev.ID)
			if err != nil {
				return nil, err
			}
			if !member {
				return nil, fmt.Errorf("rendezvous point %s is not a fabric device of %s", ip, f.Name)
			}
			prov, err := run.Names.Provisioned(ctx, dev.ID, f.SiteID)
			if err != nil {
				return nil, err
			}
			if !prov {
				return nil, fmt.Errorf("rendezvous point %s is not provisioned to %s", ip, f.Name)
			}
		}
	}
	return ids, nil
}

// checkReferences fails unless the VN and the reserved pool exist.
func checkReferences(ctx context.Context, run *reconcile.Run, f resolve.Fabric, v VN) error {
	ok, err := run.Names.VirtualNetworkExists(ctx, v.VirtualNetworkName)
	if err != nil {
		return err
	}
	if !ok {
		return reconcile.NotFound(kind, "layer3 virtual network", v.VirtualNetworkName)
	}
	if v.IPPoolName == "" {
		return reconcile.Invalid(kind, "ip_pool_name", "required to enable multicast on %s", v.VirtualNetworkName)
	}
	ok, err = run.Names.ReservedPoolExists(ctx, f.SiteID, v.IPPoolName)
	if err != nil {
		return err
	}
	if !ok {
		return reconcile.NotFound(kind, "reserved pool", v.IPPoolName)
	}
	return nil
}

func (h VNHandler) Apply(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	if len(item.FabricMulticast) == 0 {
		return nil
	}
	if run.Deleting() {
		return h.delete(ctx, run, item)
	}

	adds := newBatch[VN](kind, "add_multicast_virtual_networks", reconcile.StatusCreated)
	updates := newBatch[VN](kind, "update_multicast_virtual_networks", reconcile.StatusUpdated)
	for _, m := range item.FabricMulticast {
		scope, obj := m.FabricName, m.Layer3VirtualNetwork
		f, ok, err := locate(ctx, run, kind, scope)
		if !ok {
			return err
		}
		ids, err := deviceIDs(ctx, run, f, m)
		if err != nil {
			return run.Fail(scope, kind, obj, err)
		}
		have, err := readVN(ctx, run.Exec, f.ID, obj)
		if err != nil {
			return run.Fail(scope, kind, obj, err)
		}
		want := desiredVN(m, f.ID, ids)

		if have == nil {
			if len(want.IPv4SSMRanges) == 0 && len(want.MulticastRPs) == 0 {
				return run.Fail(scope, kind, obj, reconcile.Invalid(kind, "ssm", "ssm or asm is required to enable multicast on %s", obj))
			}
			if err := checkReferences(ctx, run, f, want); err != nil {
				return run.Fail(scope, kind, obj, err)
			}
			adds.Add(scope, obj, createVN(want))
			continue
		}

		merged := mergeVN(*have, want)
		ms := reconcile.Diff(vnFields, merged, *have)
		if len(ms) == 0 {
			run.Record.Status(scope, kind, obj, reconcile.StatusUnchanged)
			continue
		}
		if merged.IPPoolName != have.IPPoolName {
			if err := checkReferences(ctx, run, f, merged); err != nil {
				return run.Fail(scope, kind, obj, err)
			}
		}
		log.Debug().Str("fabric", scope).Str("vn", obj).Interface("diff", ms).Msg("Multicast differs")
		updates.Add(scope, obj, merged)
	}
	if err := submit(ctx, run, adds); err != nil {
		return err
	}
	return submit(ctx, run, updates)
}

// delete removes whole multicast configurations by id, or only the listed
// SSM ranges and RPs. A subset removal must leave something configured.
func (VNHandler) delete(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	updates := newBatch[VN](kind, "update_multicast_virtual_networks", reconcile.StatusDeleted)
	for _, m := range item.FabricMulticast {
		scope, obj := m.FabricName, m.Layer3VirtualNetwork
		f, ok, err := locate(ctx, run, kind, scope)
		if !ok {
			if err != nil {
				return err
			}
			continue
		}
		have, err := readVN(ctx, run.Exec, f.ID, obj)
		if err != nil {
			return run.Fail(scope, kind, obj, err)
		}
		if have == nil {
			run.Record.Status(scope, kind, obj, reconcile.StatusAbsent)
			continue
		}

		if !m.DeletesSubset() {
			log.Info().Str("fabric", scope).Str("vn", obj).Msg("Deleting multicast")
			params := catalyst.Params{"id": have.ID}
			if err := run.Submit(ctx, "sda", "delete_multicast_virtual_network_by_id", params, task.Completed()); err != nil {
				return run.Fail(scope, kind, obj, err)
			}
			run.Record.Status(scope, kind, obj, reconcile.StatusDeleted)
			continue
		}

		ids, err := deviceIDs(ctx, run, f, m)
		if err != nil {
			return run.Fail(scope, kind, obj, err)
		}
		left := subtractVN(*have, desiredVN(m, f.ID, ids))
		if len(reconcile.Diff(vnFields, left, *have)) == 0 {
			run.Record.Status(scope, kind, obj, reconcile.StatusAbsent)
			continue
		}
		if len(left.IPv4SSMRanges) == 0 && len(left.MulticastRPs) == 0 {
			return run.Fail(scope, kind, obj, reconcile.Invalid(kind, "ssm",
				"removing the listed ranges and RPs would leave no SSM or ASM on %s; delete the whole configuration instead", obj))
		}
		updates.Add(scope, obj, left)
	}
	return submit(ctx, run, updates)
}

func (VNHandler) Verify(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	var errs []error
	for _, m := range item.FabricMulticast {
		scope, obj := m.FabricName, m.Layer3VirtualNetwork
		f, ok, err := locate(ctx, run, kind, scope)
		if !ok {
			if err != nil {
				errs = append(errs, err)
			}
			continue
		}
		have, err := readVN(ctx, run.Exec, f.ID, obj)
		if err != nil {
			errs = append(errs, run.Fail(scope, kind, obj, err))
			continue
		}
		ids, err := deviceIDs(ctx, run, f, m)
		if err != nil {
			errs = append(errs, run.Fail(scope, kind, obj, err))
			continue
		}
		want := desiredVN(m, f.ID, ids)

		switch {
		case run.Deleting() && have == nil:
			run.Record.Verified(scope, kind, obj)
		case run.Deleting() && !m.DeletesSubset():
			errs = append(errs, run.Fail(scope, kind, obj, reconcile.Absent(kind, obj, true)))
		case run.Deleting():
			if ms := reconcile.Diff(vnFields, subtractVN(*have, want), *have); len(ms) > 0 {
				errs = append(errs, run.Fail(scope, kind, obj, reconcile.Mismatched(kind, obj, want, *have, ms)))
				continue
			}
			run.Record.Verified(scope, kind, obj)
		case have == nil:
			errs = append(errs, run.Fail(scope, kind, obj, reconcile.Absent(kind, obj, false)))
		default:
			if ms := reconcile.Diff(vnFields, mergeVN(*have, want), *have); len(ms) > 0 {
				errs = append(errs, run.Fail(scope, kind, obj, reconcile.Mismatched(kind, obj, want, *have, ms)))
				continue
			}
			run.Record.Verified(scope, kind, obj)
		}
	}
	return errors.Join(errs...)
}

// ReplicationHandler reconciles the replication mode of fabric sites.
type ReplicationHandler struct{}

func (ReplicationHandler) Kind() reconcile.Kind { return reconcile.KindReplicationMode }

// Validate is covered by VNHandler.
func (ReplicationHandler) Validate(playbook.State, *playbook.Item) error { return nil }

// desiredModes returns the requested mode per fabric, in playbook order.
// Fabrics without an explicit mode get the default only when the controller
// reports none.
func desiredModes(item *playbook.Item) ([]string, map[string]string) {
	var order []string
	modes := make(map[string]string)
	for _, m := range item.FabricMulticast {
		if _, seen := modes[m.FabricName]; !seen {
			order = append(order, m.FabricName)
			modes[m.FabricName] = ""
		}
		if m.ReplicationMode != "" {
			modes[m.FabricName] = m.ReplicationMode
		}
	}
	return order, modes
}

// Apply is a no-op under deleted state: the replication mode is a fabric
// setting that always exists.
func (ReplicationHandler) Apply(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	if len(item.FabricMulticast) == 0 || run.Deleting() {
		return nil
	}
	const k = reconcile.KindReplicationMode
	updates := newBatch[Replication](k, "update_multicast", reconcile.StatusUpdated)
	order, modes := desiredModes(item)
	for _, name := range order {
		f, ok, err := locate(ctx, run, k, name)
		if !ok {
			return err
		}
		have, err := readReplication(ctx, run.Exec, f.ID)
		if err != nil {
			return run.Fail(name, k, name, err)
		}
		want := modes[name]
		switch {
		case want == "" && have != nil && have.ReplicationMode != "":
			run.Record.Status(name, k, name, reconcile.StatusUnchanged)
			continue
		case want == "":
			want = DefaultMode
		}
		if have != nil && have.ReplicationMode == want {
			run.Record.Status(name, k, name, reconcile.StatusUnchanged)
			continue
		}
		log.Info().Str("fabric", name).Str("mode", want).Msg("Setting replication mode")
		updates.Add(name, name, Replication{FabricID: f.ID, ReplicationMode: want})
	}
	return submit(ctx, run, updates)
}

func (ReplicationHandler) Verify(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	if len(item.FabricMulticast) == 0 || run.Deleting() {
		return nil
	}
	const k = reconcile.KindReplicationMode
	var errs []error
	order, modes := desiredModes(item)
	for _, name := range order {
		f, ok, err := locate(ctx, run, k, name)
		if !ok {
			errs = append(errs, err)
			continue
		}
		have, err := readReplication(ctx, run.Exec, f.ID)
		if err != nil {
			errs = append(errs, run.Fail(name, k, name, err))
			continue
		}
		got := ""
		if have != nil {
			got = have.ReplicationMode
		}
		if want := modes[name]; (want != "" && got != want) || got == "" {
			ms := []reconcile.Mismatch{{Field: "replicationMode", Want: want, Have: got}}
			errs = append(errs, run.Fail(name, k, name, &reconcile.VerifyError{Kind: k, Object: name, Mismatches: ms}))
			continue
		}
		run.Record.Verified(name, k, name)
	}
	return errors.Join(errs...)
}
