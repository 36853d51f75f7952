package inventory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sdactl/internal/catalyst"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/resolve"
	"github.com/dokzlo13/sdactl/internal/task"
)

const kind = reconcile.KindInventoryDevice

// Handlers returns the handlers of this package. exportDir receives device
// exports.
func Handlers(exportDir string) []reconcile.Handler {
	return []reconcile.Handler{DeviceHandler{}, ProvisionHandler{}, ActionsHandler{ExportDir: exportDir}}
}

func credentials(d *playbook.InventoryDevices, ips []string) Credentials {
	return Credentials{
		IPAddress:          ips,
		Type:               d.Type,
		CLITransport:       d.CLITransport,
		UserName:           d.Username,
		Password:           d.Password,
		EnablePassword:     d.EnablePassword,
		NetconfPort:        d.NetconfPort,
		SNMPVersion:        d.SNMPVersion,
		SNMPROCommunity:    d.SNMPROCommunity,
		SNMPRWCommunity:    d.SNMPRWCommunity,
		SNMPUserName:       d.SNMPUsername,
		SNMPMode:           d.SNMPMode,
		SNMPAuthProtocol:   d.SNMPAuthProtocol,
		SNMPAuthPassphrase: d.SNMPAuthPassphrase,
		SNMPPrivProtocol:   d.SNMPPrivProtocol,
		SNMPPrivPassphrase: d.SNMPPrivPassphrase,
		SNMPRetry:          d.SNMPRetry,
		SNMPTimeout:        d.SNMPTimeout,
	}
}

// DeviceHandler adds, updates and deletes inventory devices.
type DeviceHandler struct{}

func (DeviceHandler) Kind() reconcile.Kind { return kind }

func (DeviceHandler) Validate(state playbook.State, item *playbook.Item) error {
	if item.InventoryDevices == nil {
		return nil
	}
	if err := validate(state, item.InventoryDevices); err != nil {
		return fmt.Errorf("inventory_devices: %w", err)
	}
	return nil
}

func (h DeviceHandler) Apply(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	d := item.InventoryDevices
	if d == nil {
		return nil
	}
	if run.Deleting() {
		return h.delete(ctx, run, d)
	}

	targets, err := lookup(ctx, run.Names, d)
	if err != nil {
		return err
	}
	targets, err = h.add(ctx, run, d, targets)
	if err != nil {
		return err
	}
	if d.CredentialUpdate {
		if err := updateCredentials(ctx, run, d, targets); err != nil {
			return err
		}
	}
	if d.Role != "" {
		if err := updateRoles(ctx, run, d.Role, targets); err != nil {
			return err
		}
	}
	if len(d.AddUserDefinedField) > 0 {
		if err := assignUDFs(ctx, run, d.AddUserDefinedField, targets); err != nil {
			return err
		}
	}
	if d.UpdateInterfaceDetails != nil {
		return updateInterfaces(ctx, run, d.UpdateInterfaceDetails, targets)
	}
	return nil
}

// add submits every listed IP that is not in the inventory yet. Devices
// named only by hostname, serial or MAC cannot be added.
func (DeviceHandler) add(ctx context.Context, run *reconcile.Run, d *playbook.InventoryDevices, targets []target) ([]target, error) {
	var missing []string
	for _, t := range targets {
		switch {
		case t.found:
		case t.by != resolve.ByIP:
			return nil, run.Fail(Scope, kind, t.name, fmt.Errorf("device %s is not in the inventory and can only be added by IP address", t.name))
		default:
			missing = append(missing, t.name)
		}
	}
	if len(missing) == 0 {
		for _, t := range targets {
			run.Record.Status(Scope, kind, t.name, reconcile.StatusUnchanged)
		}
		return targets, nil
	}
	if d.Username == "" || d.Password == "" || d.SNMPVersion == "" {
		return nil, run.Fail(Scope, kind, strings.Join(missing, ","),
			reconcile.Invalid(kind, "username", "username, password and snmp_version are required to add %s", strings.Join(missing, ", ")))
	}

	log.Info().Strs("devices", missing).Msg("Adding devices to inventory")
	params := catalyst.Params{catalyst.PayloadParam: credentials(d, missing)}
	if err := run.Submit(ctx, "devices", "add_device", params, task.Completed()); err != nil {
		var last error
		for _, ip := range missing {
			last = run.Fail(Scope, kind, ip, err)
		}
		return nil, last
	}
	run.Names.Forget()

	out := make([]target, 0, len(targets))
	for _, t := range targets {
		if t.found {
			run.Record.Status(Scope, kind, t.name, reconcile.StatusUnchanged)
			out = append(out, t)
			continue
		}
		run.Record.Status(Scope, kind, t.name, reconcile.StatusCreated)
		t.added = true
		dev, ok, err := run.Names.Device(ctx, t.name)
		if err != nil {
			return nil, run.Fail(Scope, kind, t.name, err)
		}
		if !ok {
			log.Warn().Str("device", t.name).Msg("Added device is not listed yet; skipping its updates")
		}
		t.device, t.found = dev, ok
		out = append(out, t)
	}
	return out, nil
}

func present(targets []target) []target {
	var out []target
	for _, t := range targets {
		if t.found {
			out = append(out, t)
		}
	}
	return out
}

// updateCredentials pushes the playbook credentials to devices already known
// by IP. Stored credentials cannot be read back, so the update always runs.
func updateCredentials(ctx context.Context, run *reconcile.Run, d *playbook.InventoryDevices, targets []target) error {
	var ips []string
	for _, t := range present(targets) {
		if t.added {
			continue
		}
		ips = append(ips, t.device.ManagementIP)
	}
	if len(ips) == 0 {
		return nil
	}
	log.Info().Strs("devices", ips).Msg("Updating device credentials")
	params := catalyst.Params{catalyst.PayloadParam: credentials(d, ips)}
	if err := run.Submit(ctx, "devices", "sync_devices", params, task.Completed()); err != nil {
		return run.Fail(Scope, kind, strings.Join(ips, ","), err)
	}
	for _, t := range present(targets) {
		if slices.Contains(ips, t.device.ManagementIP) {
			run.Record.Status(Scope, kind, t.name, reconcile.StatusUpdated)
		}
	}
	return nil
}

func updateRoles(ctx context.Context, run *reconcile.Run, role string, targets []target) error {
	for _, t := range present(targets) {
		if t.device.Role == role {
			continue
		}
		log.Info().Str("device", t.name).Str("from", t.device.Role).Str("to", role).Msg("Updating device role")
		params := catalyst.Params{catalyst.PayloadParam: RoleUpdate{ID: t.device.ID, Role: role, RoleSource: "MANUAL"}}
		if err := run.Submit(ctx, "devices", "update_device_role", params, task.Completed()); err != nil {
			return run.Fail(Scope, kind, t.name, err)
		}
		run.Record.Status(Scope, kind, t.name, reconcile.StatusUpdated)
	}
	return nil
}

func udfObject(name string) string { return "user_defined_field/" + name }

// ensureUDF creates the field definition, or refreshes its description.
func ensureUDF(ctx context.Context, run *reconcile.Run, u playbook.UserDefinedField) error {
	have, err := readUDF(ctx, run.Exec, u.Name)
	if err != nil {
		return run.Fail(Scope, kind, udfObject(u.Name), err)
	}
	switch {
	case have == nil:
		params := catalyst.Params{catalyst.PayloadParam: UDF{Name: u.Name, Description: u.Description}}
		if err := run.Submit(ctx, "devices", "create_user_defined_field", params, task.Completed()); err != nil {
			return run.Fail(Scope, kind, udfObject(u.Name), err)
		}
		run.Record.Status(Scope, kind, udfObject(u.Name), reconcile.StatusCreated)
	case u.Description != "" && u.Description != have.Description:
		params := catalyst.Params{"id": have.ID, catalyst.PayloadParam: UDF{Name: u.Name, Description: u.Description}}
		if err := run.Submit(ctx, "devices", "update_user_defined_field", params, task.Completed()); err != nil {
			return run.Fail(Scope, kind, udfObject(u.Name), err)
		}
		run.Record.Status(Scope, kind, udfObject(u.Name), reconcile.StatusUpdated)
	default:
		run.Record.Status(Scope, kind, udfObject(u.Name), reconcile.StatusUnchanged)
	}
	return nil
}

func assignUDFs(ctx context.Context, run *reconcile.Run, fields []playbook.UserDefinedField, targets []target) error {
	for _, u := range fields {
		if err := ensureUDF(ctx, run, u); err != nil {
			return err
		}
	}
	for _, t := range present(targets) {
		have, err := deviceUDFs(ctx, run.Exec, t.device.ID)
		if err != nil {
			return run.Fail(Scope, kind, t.name, err)
		}
		var values []UDFValue
		for _, u := range fields {
			if v, ok := have[u.Name]; !ok || v != u.Value {
				values = append(values, UDFValue{Name: u.Name, Value: u.Value})
			}
		}
		if len(values) == 0 {
			continue
		}
		params := catalyst.Params{"deviceId": t.device.ID, catalyst.PayloadParam: values}
		if err := run.Submit(ctx, "devices", "add_user_defined_field_to_device", params, task.Completed()); err != nil {
			return run.Fail(Scope, kind, t.name, err)
		}
		run.Record.Status(Scope, kind, t.name, reconcile.StatusUpdated)
	}
	return nil
}

func interfaceObject(t target, name string) string { return t.name + "/" + name }

func updateInterfaces(ctx context.Context, run *reconcile.Run, in *playbook.InterfaceDetails, targets []target) error {
	want := desiredInterface(in)
	for _, t := range present(targets) {
		for _, name := range in.InterfaceName {
			obj := interfaceObject(t, name)
			have, err := readInterface(ctx, run.Exec, t.device.ID, name)
			if err != nil {
				return run.Fail(Scope, kind, obj, err)
			}
			if have == nil {
				return run.Fail(Scope, kind, obj, reconcile.NotFound(kind, "interface", obj))
			}
			ms := reconcile.Diff(interfaceFields, want, *have)
			if len(ms) == 0 {
				run.Record.Status(Scope, kind, obj, reconcile.StatusUnchanged)
				continue
			}
			log.Debug().Str("interface", obj).Interface("diff", ms).Msg("Interface differs")

			payload := want
			payload.ID = ""
			params := catalyst.Params{"interfaceUuid": have.ID, catalyst.PayloadParam: payload}
			if in.DeploymentMode != "" {
				params["deploymentMode"] = in.DeploymentMode
			}
			if err := run.Submit(ctx, "devices", "update_interface_details", params, task.Completed()); err != nil {
				return run.Fail(Scope, kind, obj, err)
			}
			run.Record.Status(Scope, kind, obj, reconcile.StatusUpdated)
		}
	}
	return nil
}

// delete removes the listed user-defined fields from the devices when any are
// given, and the devices themselves otherwise.
func (DeviceHandler) delete(ctx context.Context, run *reconcile.Run, d *playbook.InventoryDevices) error {
	targets, err := lookup(ctx, run.Names, d)
	if err != nil {
		return err
	}
	for _, t := range targets {
		if !t.found {
			run.Record.Status(Scope, kind, t.name, reconcile.StatusAbsent)
			continue
		}
		if len(d.AddUserDefinedField) > 0 {
			if err := removeUDFs(ctx, run, d.AddUserDefinedField, t); err != nil {
				return err
			}
			continue
		}
		log.Info().Str("device", t.name).Bool("clean_config", d.CleanConfig).Msg("Deleting device")
		params := catalyst.Params{"id": t.device.ID, "cleanConfig": d.CleanConfig}
		if err := run.Submit(ctx, "devices", "delete_device_by_id", params, task.Completed()); err != nil {
			return run.Fail(Scope, kind, t.name, err)
		}
		run.Record.Status(Scope, kind, t.name, reconcile.StatusDeleted)
	}
	run.Names.Forget()
	return nil
}

func removeUDFs(ctx context.Context, run *reconcile.Run, fields []playbook.UserDefinedField, t target) error {
	have, err := deviceUDFs(ctx, run.Exec, t.device.ID)
	if err != nil {
		return run.Fail(Scope, kind, t.name, err)
	}
	var names []string
	for _, u := range fields {
		if _, ok := have[u.Name]; ok {
			names = append(names, u.Name)
		}
	}
	if len(names) == 0 {
		run.Record.Status(Scope, kind, t.name, reconcile.StatusAbsent)
		return nil
	}
	params := catalyst.Params{"deviceId": t.device.ID, "name": strings.Join(names, ",")}
	if err := run.Submit(ctx, "devices", "remove_user_defined_field_from_device", params, task.Completed()); err != nil {
		return run.Fail(Scope, kind, t.name, err)
	}
	run.Record.Status(Scope, kind, t.name, reconcile.StatusDeleted)
	return nil
}

func (DeviceHandler) Verify(ctx context.Context, run *reconcile.Run, item *playbook.Item) error {
	d := item.InventoryDevices
	if d == nil {
		return nil
	}
	run.Names.Forget()
	targets, err := lookup(ctx, run.Names, d)
	if err != nil {
		return err
	}

	var errs []error
	for _, t := range targets {
		switch {
		case run.Deleting() && len(d.AddUserDefinedField) > 0:
			if !t.found {
				run.Record.Verified(Scope, kind, t.name)
				continue
			}
			have, err := deviceUDFs(ctx, run.Exec, t.device.ID)
			if err != nil {
				errs = append(errs, run.Fail(Scope, kind, t.name, err))
				continue
			}
			var left []string
			for _, u := range d.AddUserDefinedField {
				if _, ok := have[u.Name]; ok {
					left = append(left, u.Name)
				}
			}
			if len(left) > 0 {
				ms := []reconcile.Mismatch{{Field: "userDefinedFields", Want: []string{}, Have: left}}
				errs = append(errs, run.Fail(Scope, kind, t.name, &reconcile.VerifyError{Kind: kind, Object: t.name, Mismatches: ms}))
				continue
			}
			run.Record.Verified(Scope, kind, t.name)
		case run.Deleting() && t.found:
			errs = append(errs, run.Fail(Scope, kind, t.name, reconcile.Absent(kind, t.name, true)))
		case run.Deleting():
			run.Record.Verified(Scope, kind, t.name)
		case !t.found:
			errs = append(errs, run.Fail(Scope, kind, t.name, reconcile.Absent(kind, t.name, false)))
		default:
			if err := verifyDevice(ctx, run, d, t); err != nil {
				errs = append(errs, run.Fail(Scope, kind, t.name, err))
				continue
			}
			run.Record.Verified(Scope, kind, t.name)
		}
	}
	return errors.Join(errs...)
}

func verifyDevice(ctx context.Context, run *reconcile.Run, d *playbook.InventoryDevices, t target) error {
	var ms []reconcile.Mismatch
	if d.Role != "" && t.device.Role != d.Role {
		ms = append(ms, reconcile.Mismatch{Field: "role", Want: d.Role, Have: t.device.Role})
	}
	if len(d.AddUserDefinedField) > 0 {
		have, err := deviceUDFs(ctx, run.Exec, t.device.ID)
		if err != nil {
			return err
		}
		want := make(map[string]string, len(d.AddUserDefinedField))
		for _, u := range d.AddUserDefinedField {
			want[u.Name] = u.Value
		}
		for _, name := range slices.Sorted(maps.Keys(want)) {
			if v, ok := have[name]; !ok || v != want[name] {
				ms = append(ms, reconcile.Mismatch{Field: "userDefinedFields." + name, Want: want[name], Have: v})
			}
		}
	}
	if in := d.UpdateInterfaceDetails; in != nil {
		want := desiredInterface(in)
		for _, name := range in.InterfaceName {
			have, err := readInterface(ctx, run.Exec, t.device.ID, name)
			if err != nil {
				return err
			}
			if have == nil {
				ms = append(ms, reconcile.Mismatch{Field: "interface." + name, Want: true, Have: false})
				continue
			}
			for _, m := range reconcile.Diff(interfaceFields, want, *have) {
				m.Field = "interface." + name + "." + m.Field
				ms = append(ms, m)
			}
		}
	}
	if len(ms) > 0 {
		return &reconcile.VerifyError{Kind: kind, Object: t.name, Mismatches: ms}
	}
	return nil
}
