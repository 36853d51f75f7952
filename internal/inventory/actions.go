package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sdactl/internal/catalyst"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/task"
)

// ActionsHandler runs the one-shot device operations: resync, AP reboot and
// export. They only run under merged state and have nothing to verify.
type ActionsHandler struct {
	// ExportDir receives export files; empty means the working directory.
	ExportDir string
	Now       func() time.Time
}

func (ActionsHandler) Kind() reconcile.Kind { return reconcile.KindDeviceActions }

// Validate is covered by DeviceHandler.
func (ActionsHandler) Validate(playbook.State, *playbook.Item) error { return nil }

func wantsActions(d *playbook.InventoryDevices) bool {
	return d != nil && (d.DevicesResync || d.RebootDevice || d.ExportDeviceList != nil)
}

func (h ActionsHandler) Apply(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	d := item.InventoryDevices
	if !wantsActions(d) || run.Deleting() {
		return nil
	}
	const k = reconcile.KindDeviceActions

	targets, err := lookup(ctx, run.Names, d)
	if err != nil {
		return err
	}
	for _, t := range targets {
		if !t.found {
			return run.Fail(Scope, k, t.name, reconcile.NotFound(k, "device", t.name))
		}
	}

	if d.DevicesResync {
		ids := make([]string, len(targets))
		for i, t := range targets {
			ids[i] = t.device.ID
		}
		log.Info().Int("devices", len(ids)).Bool("force", d.ForceSync).Msg("Resyncing devices")
		params := catalyst.Params{"forceSync": d.ForceSync, catalyst.PayloadParam: ids}
		if err := run.Submit(ctx, "devices", "sync_devices_using_forcesync", params, task.ProgressContains("Synced")); err != nil {
			return run.Fail(Scope, k, "resync", err)
		}
		run.Record.Status(Scope, k, "resync", reconcile.StatusDone)
	}

	if d.RebootDevice {
		if err := reboot(ctx, run, targets); err != nil {
			return err
		}
	}

	if d.ExportDeviceList != nil {
		ids, err := h.exportIDs(ctx, run, d, targets)
		if err != nil {
			return run.Fail(Scope, k, "export", err)
		}
		now := time.Now
		if h.Now != nil {
			now = h.Now
		}
		file, err := exporter{dir: h.ExportDir, now: now()}.run(ctx, run, d, ids)
		if err != nil {
			return run.Fail(Scope, k, "export", err)
		}
		run.Record.Status(Scope, k, "export", reconcile.StatusDone)
		run.Record.Sent(map[string]string{"export_file": file})
	}
	return nil
}

// reboot restarts the access points among targets. Other devices are skipped.
func reboot(ctx context.Context, run *reconcile.Run, targets []target) error {
	const k = reconcile.KindDeviceActions
	var macs []string
	for _, t := range targets {
		if t.device.Family != familyAP {
			log.Warn().Str("device", t.name).Str("family", t.device.Family).Msg("Skipping reboot of a device that is not an access point")
			continue
		}
		macs = append(macs, t.device.MAC)
	}
	if len(macs) == 0 {
		run.Record.Status(Scope, k, "reboot", reconcile.StatusUnchanged)
		return nil
	}
	log.Info().Strs("access_points", macs).Msg("Rebooting access points")
	params := catalyst.Params{catalyst.PayloadParam: map[string][]string{"apMacAddresses": macs}}
	if err := run.Submit(ctx, "wireless", "reboot_access_points", params, task.Completed()); err != nil {
		return run.Fail(Scope, k, "reboot", err)
	}
	run.Record.Status(Scope, k, "reboot", reconcile.StatusDone)
	return nil
}

// exportIDs returns the devices provisioned to the export site when one is
// given, and the listed devices otherwise.
func (ActionsHandler) exportIDs(ctx context.Context, run *reconcile.Run, d *playbook.InventoryDevices, targets []target) ([]string, error) {
	site := d.ExportDeviceList.SiteName
	if site == "" {
		ids := make([]string, len(targets))
		for i, t := range targets {
			ids[i] = t.device.ID
		}
		return ids, nil
	}
	siteID, ok, err := run.Names.SiteID(ctx, site)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, reconcile.NotFound(reconcile.KindDeviceActions, "site", site)
	}
	resp, err := run.Exec.Exec(ctx, "sda", "get_provisioned_devices", catalyst.Params{"siteId": siteID})
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, it := range resp.Items() {
		ids = append(ids, it.Get("networkDeviceId").String())
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no devices are provisioned to %s", site)
	}
	return ids, nil
}

func (ActionsHandler) Verify(context.Context, *reconcile.Run, *playbook.Item) error { return nil }
