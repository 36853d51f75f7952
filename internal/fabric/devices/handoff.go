package devices

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sdactl/internal/catalyst"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/resolve"
	"github.com/dokzlo13/sdactl/internal/task"
)

// HandoffHandler reconciles the Layer-2, IP transit and SDA transit handoffs
// of border nodes.
type HandoffHandler struct{}

func (HandoffHandler) Kind() reconcile.Kind { return reconcile.KindBorderHandoff }

// Validate is covered by DeviceHandler, which checks the whole device entry.
func (HandoffHandler) Validate(playbook.State, *playbook.Item) error { return nil }

func l2Object(dc playbook.DeviceConfig, h playbook.L2Handoff) string {
	return fmt.Sprintf("%s/layer2/%s/%d", dc.DeviceIP, h.InterfaceName, h.InternalVlanID)
}

func l3IPObject(dc playbook.DeviceConfig, h playbook.L3IPHandoff) string {
	return fmt.Sprintf("%s/ip_transit/%s/%s/%s", dc.DeviceIP, h.TransitNetworkName, h.InterfaceName, h.VirtualNetworkName)
}

func l3SDAObject(dc playbook.DeviceConfig, h playbook.L3SDAHandoff) string {
	return dc.DeviceIP + "/sda_transit/" + h.TransitNetworkName
}

// handoffs is the observed handoff state of one border device.
type handoffs struct {
	l2  map[string]L2Handoff
	l3  map[string]L3IPHandoff
	sda *L3SDAHandoff
}

func readAll(ctx context.Context, exec catalyst.Executor, fabricID, deviceID string) (*handoffs, error) {
	l2, err := readL2Handoffs(ctx, exec, fabricID, deviceID)
	if err != nil {
		return nil, err
	}
	l3, err := readL3IPHandoffs(ctx, exec, fabricID, deviceID)
	if err != nil {
		return nil, err
	}
	sda, err := readL3SDAHandoff(ctx, exec, fabricID, deviceID)
	if err != nil {
		return nil, err
	}
	out := &handoffs{l2: make(map[string]L2Handoff), l3: make(map[string]L3IPHandoff), sda: sda}
	for _, h := range l2 {
		out.l2[h.key()] = h
	}
	for _, h := range l3 {
		out.l3[h.key()] = h
	}
	return out, nil
}

// transit resolves a transit network and checks its type against the handoff
// that references it.
func transit(ctx context.Context, run *reconcile.Run, name string, sda bool) (resolve.Transit, error) {
	const kind = reconcile.KindBorderHandoff
	t, ok, err := run.Names.Transit(ctx, name)
	if err != nil {
		return t, err
	}
	if !ok {
		return t, reconcile.NotFound(kind, "transit network", name)
	}
	if t.IsSDA() != sda {
		want := "an IP"
		if sda {
			want = "an SDA"
		}
		return t, fmt.Errorf("transit network %s has type %s, %s transit is required", name, t.Type, want)
	}
	return t, nil
}

// replacement is a Layer-2 handoff removed before its re-add.
type replacement struct {
	scope, object, id string
}

// handoffBatches groups the writes of one item. Nothing is written until
// every device of the item has been planned.
type handoffBatches struct {
	l2Deletes  []replacement
	l2Adds     *reconcile.Batch[L2Handoff]
	l2Replaced *reconcile.Batch[L2Handoff]
	l3Adds     *reconcile.Batch[L3IPHandoff]
	l3Updates  *reconcile.Batch[L3IPHandoff]
	sdaAdds    *reconcile.Batch[L3SDAHandoff]
	sdaUpdates *reconcile.Batch[L3SDAHandoff]
}

func newHandoffBatches() *handoffBatches {
	const kind = reconcile.KindBorderHandoff
	return &handoffBatches{
		l2Adds:     newBatch[L2Handoff](kind, "add_fabric_devices_layer2_handoffs", reconcile.StatusCreated),
		l2Replaced: newBatch[L2Handoff](kind, "add_fabric_devices_layer2_handoffs", reconcile.StatusUpdated),
		l3Adds:     newBatch[L3IPHandoff](kind, "add_fabric_devices_layer3_handoffs_with_ip_transit", reconcile.StatusCreated),
		l3Updates:  newBatch[L3IPHandoff](kind, "update_fabric_devices_layer3_handoffs_with_ip_transit", reconcile.StatusUpdated),
		sdaAdds:    newBatch[L3SDAHandoff](kind, "add_fabric_devices_layer3_handoffs_with_sda_transit", reconcile.StatusCreated),
		sdaUpdates: newBatch[L3SDAHandoff](kind, "update_fabric_devices_layer3_handoffs_with_sda_transit", reconcile.StatusUpdated),
	}
}

func (b *handoffBatches) submit(ctx context.Context, run *reconcile.Run) error {
	for _, r := range b.l2Deletes {
		if err := run.Submit(ctx, "sda", "delete_fabric_device_layer2_handoff_by_id", catalyst.Params{"id": r.id}, task.Completed()); err != nil {
			return run.Fail(r.scope, reconcile.KindBorderHandoff, r.object, err)
		}
	}
	if err := submitAll(ctx, run, b.l2Adds, b.l2Replaced); err != nil {
		return err
	}
	if err := submitAll(ctx, run, b.l3Adds, b.l3Updates); err != nil {
		return err
	}
	return submitAll(ctx, run, b.sdaAdds, b.sdaUpdates)
}

func (h HandoffHandler) Apply(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	fd := item.FabricDevices
	if fd == nil {
		return nil
	}
	const kind = reconcile.KindBorderHandoff
	targets, err := resolveTargets(ctx, run, kind, fd)
	if err != nil {
		return err
	}

	scope := fd.FabricName
	batches := newHandoffBatches()
	for _, t := range targets {
		if run.Deleting() {
			if err := h.delete(ctx, run, scope, t); err != nil {
				return err
			}
			continue
		}
		if t.config.BordersSettings == nil {
			continue
		}
		if err := h.plan(ctx, run, scope, t, batches); err != nil {
			return err
		}
	}
	if run.Deleting() {
		return nil
	}
	return batches.submit(ctx, run)
}

// plan diffs one device's handoffs and queues the writes. A Layer-2 handoff
// whose external VLAN changed is queued for deletion and re-added afterwards.
func (HandoffHandler) plan(ctx context.Context, run *reconcile.Run, scope string, t target, b *handoffBatches) error {
	const kind = reconcile.KindBorderHandoff
	dc, bs := t.config, t.config.BordersSettings
	have, err := readAll(ctx, run.Exec, t.fabric.ID, t.device.ID)
	if err != nil {
		return run.Fail(scope, kind, dc.DeviceIP, err)
	}

	for _, in := range bs.Layer2Handoff {
		obj := l2Object(dc, in)
		want := desiredL2(in, t.fabric.ID, t.device.ID)
		cur, ok := have.l2[want.key()]
		switch {
		case !ok:
			b.l2Adds.Add(scope, obj, want)
		case cur.ExternalVlanID == want.ExternalVlanID:
			run.Record.Status(scope, kind, obj, reconcile.StatusUnchanged)
		default:
			log.Info().
				Str("device", dc.DeviceIP).
				Str("interface", in.InterfaceName).
				Int("from", cur.ExternalVlanID).
				Int("to", want.ExternalVlanID).
				Msg("Replacing layer 2 handoff")
			b.l2Deletes = append(b.l2Deletes, replacement{scope: scope, object: obj, id: cur.ID})
			b.l2Replaced.Add(scope, obj, want)
		}
	}

	for _, in := range bs.Layer3HandoffIPTransit {
		obj := l3IPObject(dc, in)
		tr, err := transit(ctx, run, in.TransitNetworkName, false)
		if err != nil {
			return run.Fail(scope, kind, obj, err)
		}
		want := desiredL3IP(in, t.fabric.ID, t.device.ID, tr.ID)
		cur, ok := have.l3[want.key()]
		if !ok {
			b.l3Adds.Add(scope, obj, want)
			continue
		}
		ms := reconcile.Diff(l3IPFields, want, cur)
		if err := reconcile.CheckImmutable(kind, obj, ms); err != nil {
			return run.Fail(scope, kind, obj, err)
		}
		if len(ms) == 0 {
			run.Record.Status(scope, kind, obj, reconcile.StatusUnchanged)
			continue
		}
		cur.TCPMssAdjustment = want.TCPMssAdjustment
		b.l3Updates.Add(scope, obj, cur)
	}

	if in := bs.Layer3HandoffSDATransit; in != nil {
		obj := l3SDAObject(dc, *in)
		tr, err := transit(ctx, run, in.TransitNetworkName, true)
		if err != nil {
			return run.Fail(scope, kind, obj, err)
		}
		want := desiredL3SDA(*in, t.fabric.ID, t.device.ID, tr.ID)
		if have.sda == nil {
			b.sdaAdds.Add(scope, obj, want)
			return nil
		}
		ms := reconcile.Diff(l3SDAFields, want, *have.sda)
		if err := reconcile.CheckImmutable(kind, obj, ms); err != nil {
			return run.Fail(scope, kind, obj, err)
		}
		if len(ms) == 0 {
			run.Record.Status(scope, kind, obj, reconcile.StatusUnchanged)
			return nil
		}
		b.sdaUpdates.Add(scope, obj, overlaySDA(*have.sda, want))
	}
	return nil
}

func overlaySDA(have, want L3SDAHandoff) L3SDAHandoff {
	out := have
	if want.AffinityIDPrime != nil {
		out.AffinityIDPrime = want.AffinityIDPrime
	}
	if want.AffinityIDDecider != nil {
		out.AffinityIDDecider = want.AffinityIDDecider
	}
	if want.ConnectedToInternet != nil {
		out.ConnectedToInternet = want.ConnectedToInternet
	}
	if want.IsMulticastOverTransitEnabled != nil {
		out.IsMulticastOverTransitEnabled = want.IsMulticastOverTransitEnabled
	}
	return out
}

// delete removes the listed handoffs of a device, or every handoff when the
// whole device leaves the fabric.
func (HandoffHandler) delete(ctx context.Context, run *reconcile.Run, scope string, t target) error {
	const kind = reconcile.KindBorderHandoff
	dc := t.config
	have, err := readAll(ctx, run.Exec, t.fabric.ID, t.device.ID)
	if err != nil {
		return run.Fail(scope, kind, dc.DeviceIP, err)
	}

	if deletesDevice(dc) {
		for _, k := range slices.Sorted(maps.Keys(have.l2)) {
			h := have.l2[k]
			obj := fmt.Sprintf("%s/layer2/%s/%d", dc.DeviceIP, h.InterfaceName, h.InternalVlanID)
			if err := remove(ctx, run, kind, "delete_fabric_device_layer2_handoff_by_id", catalyst.Params{"id": h.ID}, scope, obj); err != nil {
				return err
			}
		}
		for _, k := range slices.Sorted(maps.Keys(have.l3)) {
			h := have.l3[k]
			obj := fmt.Sprintf("%s/ip_transit/%s/%s/%s", dc.DeviceIP, h.TransitNetworkID, h.InterfaceName, h.VirtualNetworkName)
			if err := remove(ctx, run, kind, "delete_fabric_device_layer3_handoff_with_ip_transit_by_id", catalyst.Params{"id": h.ID}, scope, obj); err != nil {
				return err
			}
		}
		if have.sda != nil {
			obj := dc.DeviceIP + "/sda_transit"
			return removeSDA(ctx, run, scope, obj, t)
		}
		return nil
	}

	bs := dc.BordersSettings
	for _, in := range bs.Layer2Handoff {
		obj := l2Object(dc, in)
		cur, ok := have.l2[desiredL2(in, t.fabric.ID, t.device.ID).key()]
		if !ok {
			run.Record.Status(scope, kind, obj, reconcile.StatusAbsent)
			continue
		}
		if err := remove(ctx, run, kind, "delete_fabric_device_layer2_handoff_by_id", catalyst.Params{"id": cur.ID}, scope, obj); err != nil {
			return err
		}
	}
	for _, in := range bs.Layer3HandoffIPTransit {
		obj := l3IPObject(dc, in)
		tr, ok, err := run.Names.Transit(ctx, in.TransitNetworkName)
		if err != nil {
			return run.Fail(scope, kind, obj, err)
		}
		cur, found := have.l3[desiredL3IP(in, t.fabric.ID, t.device.ID, tr.ID).key()]
		if !ok || !found {
			run.Record.Status(scope, kind, obj, reconcile.StatusAbsent)
			continue
		}
		if err := remove(ctx, run, kind, "delete_fabric_device_layer3_handoff_with_ip_transit_by_id", catalyst.Params{"id": cur.ID}, scope, obj); err != nil {
			return err
		}
	}
	if in := bs.Layer3HandoffSDATransit; in != nil {
		obj := l3SDAObject(dc, *in)
		if have.sda == nil {
			run.Record.Status(scope, kind, obj, reconcile.StatusAbsent)
			return nil
		}
		return removeSDA(ctx, run, scope, obj, t)
	}
	return nil
}

func removeSDA(ctx context.Context, run *reconcile.Run, scope, obj string, t target) error {
	return remove(ctx, run, reconcile.KindBorderHandoff, "delete_fabric_device_layer3_handoffs_with_sda_transit",
		deviceParams(t.fabric.ID, t.device.ID), scope, obj)
}

func (HandoffHandler) Verify(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	fd := item.FabricDevices
	if fd == nil {
		return nil
	}
	const kind = reconcile.KindBorderHandoff
	targets, err := resolveTargets(ctx, run, kind, fd)
	if err != nil {
		return err
	}

	scope := fd.FabricName
	var errs []error
	check := func(obj string, present bool, mismatch func() error) {
		switch {
		case run.Deleting() && present:
			errs = append(errs, run.Fail(scope, kind, obj, reconcile.Absent(kind, obj, true)))
		case !run.Deleting() && !present:
			errs = append(errs, run.Fail(scope, kind, obj, reconcile.Absent(kind, obj, false)))
		case !run.Deleting() && mismatch != nil:
			if err := mismatch(); err != nil {
				errs = append(errs, run.Fail(scope, kind, obj, err))
				return
			}
			run.Record.Verified(scope, kind, obj)
		default:
			run.Record.Verified(scope, kind, obj)
		}
	}

	for _, t := range targets {
		dc := t.config
		have, err := readAll(ctx, run.Exec, t.fabric.ID, t.device.ID)
		if err != nil {
			errs = append(errs, run.Fail(scope, kind, dc.DeviceIP, err))
			continue
		}
		if run.Deleting() && deletesDevice(dc) {
			n := len(have.l2) + len(have.l3)
			if have.sda != nil {
				n++
			}
			check(dc.DeviceIP, n > 0, nil)
			continue
		}
		bs := dc.BordersSettings
		if bs == nil {
			continue
		}

		for _, in := range bs.Layer2Handoff {
			want := desiredL2(in, t.fabric.ID, t.device.ID)
			cur, ok := have.l2[want.key()]
			check(l2Object(dc, in), ok, func() error {
				if cur.ExternalVlanID != want.ExternalVlanID {
					ms := []reconcile.Mismatch{{Field: "externalVlanId", Want: want.ExternalVlanID, Have: cur.ExternalVlanID}}
					return reconcile.Mismatched(kind, l2Object(dc, in), want, cur, ms)
				}
				return nil
			})
		}
		for _, in := range bs.Layer3HandoffIPTransit {
			obj := l3IPObject(dc, in)
			tr, _, err := run.Names.Transit(ctx, in.TransitNetworkName)
			if err != nil {
				errs = append(errs, run.Fail(scope, kind, obj, err))
				continue
			}
			want := desiredL3IP(in, t.fabric.ID, t.device.ID, tr.ID)
			cur, ok := have.l3[want.key()]
			check(obj, ok, func() error {
				if ms := reconcile.Diff(l3IPFields, want, cur); len(ms) > 0 {
					return reconcile.Mismatched(kind, obj, want, cur, ms)
				}
				return nil
			})
		}
		if in := bs.Layer3HandoffSDATransit; in != nil {
			obj := l3SDAObject(dc, *in)
			tr, _, err := run.Names.Transit(ctx, in.TransitNetworkName)
			if err != nil {
				errs = append(errs, run.Fail(scope, kind, obj, err))
				continue
			}
			want := desiredL3SDA(*in, t.fabric.ID, t.device.ID, tr.ID)
			check(obj, have.sda != nil, func() error {
				if ms := reconcile.Diff(l3SDAFields, want, *have.sda); len(ms) > 0 {
					return reconcile.Mismatched(kind, obj, want, *have.sda, ms)
				}
				return nil
			})
		}
	}
	return errors.Join(errs...)
}
