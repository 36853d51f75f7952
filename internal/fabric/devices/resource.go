package devices

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sdactl/internal/catalyst"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/resolve"
)

// Handlers returns the handlers of this package.
func Handlers() []reconcile.Handler {
	return []reconcile.Handler{DeviceHandler{}, HandoffHandler{}}
}

// target is one resolved device entry of a fabric.
type target struct {
	fabric resolve.Fabric
	device resolve.Device
	config playbook.DeviceConfig
}

// resolveTargets resolves the fabric and every device of fd. Under deleted
// state, unresolvable references are recorded as absent and skipped.
func resolveTargets(ctx context.Context, run *reconcile.Run, kind reconcile.Kind, fd *playbook.FabricDevices) ([]target, error) {
	scope := fd.FabricName
	f, ok, err := run.Names.Fabric(ctx, scope)
	if err != nil {
		return nil, run.Fail(scope, kind, scope, err)
	}
	if !ok {
		if run.Deleting() {
			run.Record.Status(scope, kind, scope, reconcile.StatusAbsent)
			return nil, nil
		}
		return nil, run.Fail(scope, kind, scope, reconcile.NotFound(kind, "fabric", scope))
	}

	var out []target
	for _, dc := range fd.DeviceConfig {
		dev, ok, err := run.Names.Device(ctx, dc.DeviceIP)
		if err != nil {
			return nil, run.Fail(scope, kind, dc.DeviceIP, err)
		}
		if !ok {
			if run.Deleting() {
				run.Record.Status(scope, kind, dc.DeviceIP, reconcile.StatusAbsent)
				continue
			}
			return nil, run.Fail(scope, kind, dc.DeviceIP, reconcile.NotFound(kind, "device", dc.DeviceIP))
		}
		out = append(out, target{fabric: f, device: dev, config: dc})
	}
	return out, nil
}

// DeviceHandler reconciles fabric device membership, roles and border settings.
type DeviceHandler struct{}

func (DeviceHandler) Kind() reconcile.Kind { return reconcile.KindFabricDevice }

func (DeviceHandler) Validate(state playbook.State, item *playbook.Item) error {
	if item.FabricDevices == nil {
		return nil
	}
	if err := validateFabricDevices(state, item.FabricDevices); err != nil {
		return fmt.Errorf("fabric_devices: %w", err)
	}
	return nil
}

func (h DeviceHandler) Apply(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	fd := item.FabricDevices
	if fd == nil {
		return nil
	}
	const kind = reconcile.KindFabricDevice
	targets, err := resolveTargets(ctx, run, kind, fd)
	if err != nil {
		return err
	}
	if run.Deleting() {
		return h.delete(ctx, run, fd.FabricName, targets)
	}

	scope := fd.FabricName
	adds := newBatch[FabricDevice](kind, "add_fabric_devices", reconcile.StatusCreated)
	updates := newBatch[FabricDevice](kind, "update_fabric_devices", reconcile.StatusUpdated)

	for _, t := range targets {
		ip := t.config.DeviceIP
		have, err := readFabricDevice(ctx, run.Exec, t.fabric.ID, t.device.ID)
		if err != nil {
			return run.Fail(scope, kind, ip, err)
		}
		want := desiredFabricDevice(t.config, t.fabric.ID, t.device.ID)

		if have == nil {
			if err := checkAdd(ctx, run, t, want); err != nil {
				return run.Fail(scope, kind, ip, err)
			}
			adds.Add(scope, ip, fabricDeviceWithDefaults(want))
			continue
		}

		want = wantBorderTypes(want, have)
		ms := reconcile.Diff(fabricDeviceFields, want, *have)
		if err := reconcile.CheckImmutable(kind, ip, ms); err != nil {
			return run.Fail(scope, kind, ip, err)
		}
		if want.BorderDeviceSettings != nil && !slices.Contains(have.DeviceRoles, RoleBorder) {
			return run.Fail(scope, kind, ip, reconcile.Invalid(kind, "borders_settings",
				"device %s does not have the %s role", ip, RoleBorder))
		}
		if reconcile.Decide(true, ms) == reconcile.ActionNone {
			run.Record.Status(scope, kind, ip, reconcile.StatusUnchanged)
			continue
		}
		log.Debug().Str("device", ip).Str("fabric", scope).Interface("diff", ms).Msg("Fabric device differs")
		updates.Add(scope, ip, overlayFabricDevice(*have, want))
	}
	return submitAll(ctx, run, adds, updates)
}

// checkAdd enforces the preconditions of adding a device to a fabric.
func checkAdd(ctx context.Context, run *reconcile.Run, t target, want FabricDevice) error {
	const kind = reconcile.KindFabricDevice
	if len(want.DeviceRoles) == 0 {
		return reconcile.Invalid(kind, "device_roles", "required to add %s to %s", t.config.DeviceIP, t.fabric.Name)
	}
	if want.BorderDeviceSettings != nil && !slices.Contains(want.DeviceRoles, RoleBorder) {
		return reconcile.Invalid(kind, "borders_settings", "device %s needs the %s role", t.config.DeviceIP, RoleBorder)
	}
	ok, err := run.Names.Provisioned(ctx, t.device.ID, t.fabric.SiteID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("device %s is not provisioned to %s", t.config.DeviceIP, t.fabric.Name)
	}
	return nil
}

func (DeviceHandler) delete(ctx context.Context, run *reconcile.Run, scope string, targets []target) error {
	const kind = reconcile.KindFabricDevice
	for _, t := range targets {
		if !deletesDevice(t.config) {
			continue
		}
		ip := t.config.DeviceIP
		have, err := readFabricDevice(ctx, run.Exec, t.fabric.ID, t.device.ID)
		if err != nil {
			return run.Fail(scope, kind, ip, err)
		}
		if have == nil {
			run.Record.Status(scope, kind, ip, reconcile.StatusAbsent)
			continue
		}
		params := catalyst.Params{"id": have.ID}
		if err := remove(ctx, run, kind, "delete_fabric_device_by_id", params, scope, ip); err != nil {
			return err
		}
	}
	return nil
}

func (DeviceHandler) Verify(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	fd := item.FabricDevices
	if fd == nil {
		return nil
	}
	const kind = reconcile.KindFabricDevice
	targets, err := resolveTargets(ctx, run, kind, fd)
	if err != nil {
		return err
	}

	scope := fd.FabricName
	var errs []error
	for _, t := range targets {
		ip := t.config.DeviceIP
		if run.Deleting() && !deletesDevice(t.config) {
			continue
		}
		have, err := readFabricDevice(ctx, run.Exec, t.fabric.ID, t.device.ID)
		if err != nil {
			errs = append(errs, run.Fail(scope, kind, ip, err))
			continue
		}
		switch {
		case run.Deleting() && have != nil:
			errs = append(errs, run.Fail(scope, kind, ip, reconcile.Absent(kind, ip, true)))
		case run.Deleting():
			run.Record.Verified(scope, kind, ip)
		case have == nil:
			errs = append(errs, run.Fail(scope, kind, ip, reconcile.Absent(kind, ip, false)))
		default:
			want := wantBorderTypes(desiredFabricDevice(t.config, t.fabric.ID, t.device.ID), have)
			if ms := reconcile.Diff(fabricDeviceFields, want, *have); len(ms) > 0 {
				errs = append(errs, run.Fail(scope, kind, ip, reconcile.Mismatched(kind, ip, want, *have, ms)))
				continue
			}
			run.Record.Verified(scope, kind, ip)
		}
	}
	return errors.Join(errs...)
}
