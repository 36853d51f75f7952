package inventory

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/task"
)

// ProvisionHandler provisions wired devices to sites. A failed provisioning
// aborts the run.
type ProvisionHandler struct{}

func (ProvisionHandler) Kind() reconcile.Kind { return reconcile.KindProvision }

// Validate is covered by DeviceHandler.
func (ProvisionHandler) Validate(playbook.State, *playbook.Item) error { return nil }

type provisionTarget struct {
	ip, site         string
	deviceID, siteID string
}

func (t provisionTarget) object() string { return t.ip + "@" + t.site }

func resolveProvision(ctx context.Context, run *reconcile.Run, p playbook.WiredProvision) (provisionTarget, error) {
	const k = reconcile.KindProvision
	t := provisionTarget{ip: p.DeviceIP, site: p.SiteName}
	siteID, ok, err := run.Names.SiteID(ctx, p.SiteName)
	if err != nil {
		return t, err
	}
	if !ok {
		return t, reconcile.NotFound(k, "site", p.SiteName)
	}
	dev, ok, err := run.Names.Device(ctx, p.DeviceIP)
	if err != nil {
		return t, err
	}
	if !ok {
		return t, reconcile.NotFound(k, "device", p.DeviceIP)
	}
	t.deviceID, t.siteID = dev.ID, siteID
	return t, nil
}

// Apply is a no-op under deleted state.
func (ProvisionHandler) Apply(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	d := item.InventoryDevices
	if d == nil || len(d.ProvisionWiredDevice) == 0 || run.Deleting() {
		return nil
	}
	const k = reconcile.KindProvision
	batch := &reconcile.Batch[ProvisionRequest]{Kind: k, Family: "sda", Function: "provision_devices", Status: reconcile.StatusCreated}
	for _, p := range d.ProvisionWiredDevice {
		t, err := resolveProvision(ctx, run, p)
		if err != nil {
			return reconcile.Fatal(run.Fail(Scope, k, t.object(), err))
		}
		done, err := run.Names.Provisioned(ctx, t.deviceID, t.siteID)
		if err != nil {
			return reconcile.Fatal(run.Fail(Scope, k, t.object(), err))
		}
		if done {
			run.Record.Status(Scope, k, t.object(), reconcile.StatusUnchanged)
			continue
		}
		batch.Add(Scope, t.object(), ProvisionRequest{SiteID: t.siteID, NetworkDeviceID: t.deviceID})
	}
	if batch.Len() == 0 {
		return nil
	}
	log.Info().Int("count", batch.Len()).Msg("Provisioning wired devices")
	return reconcile.Fatal(batch.Submit(ctx, run, bulkSize, task.ProgressContains("TASK_PROVISION")))
}

func (ProvisionHandler) Verify(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	d := item.InventoryDevices
	if d == nil || len(d.ProvisionWiredDevice) == 0 || run.Deleting() {
		return nil
	}
	const k = reconcile.KindProvision
	var errs []error
	for _, p := range d.ProvisionWiredDevice {
		t, err := resolveProvision(ctx, run, p)
		if err != nil {
			errs = append(errs, run.Fail(Scope, k, t.object(), err))
			continue
		}
		done, err := run.Names.Provisioned(ctx, t.deviceID, t.siteID)
		if err != nil {
			errs = append(errs, run.Fail(Scope, k, t.object(), err))
			continue
		}
		if !done {
			errs = append(errs, run.Fail(Scope, k, t.object(), reconcile.Absent(k, t.object(), false)))
			continue
		}
		run.Record.Verified(Scope, k, t.object())
	}
	return errors.Join(errs...)
}
