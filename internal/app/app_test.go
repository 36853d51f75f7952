package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sdactl/internal/catalyst/catalysttest"
	"github.com/dokzlo13/sdactl/internal/config"
	"github.com/dokzlo13/sdactl/internal/ledger"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
)

const vlanPlaybook = `
state: merged
config_verify: true
dnac_task_poll_interval: 1
config:
  - fabric_vlan:
      - vlan_name: vlan_1001
        vlan_id: 1001
        traffic_type: DATA
        fabric_site_locations:
          - site_name_hierarchy: Global/India
            fabric_type: fabric_site
`

func newTestApp(t *testing.T, ctl *catalysttest.Controller, ledgerPath string) *App {
	t.Helper()
	raw := "catalyst:\n  host: dnac.example.com\n"
	if ledgerPath != "" {
		raw += "ledger:\n  path: " + ledgerPath + "\n"
	}
	cfg, err := config.Parse([]byte(raw))
	require.NoError(t, err)
	cfg.Export.Dir = t.TempDir()

	a, err := NewWithExecutor(cfg, ctl)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	n := 0
	a.newRunID = func() string {
		n++
		return "run-" + string(rune('0'+n))
	}
	return a
}

func parse(t *testing.T, raw string) *playbook.Document {
	t.Helper()
	doc, err := playbook.Parse([]byte(raw))
	require.NoError(t, err)
	return doc
}

func TestApp_ApplyThenVerify(t *testing.T) {
	ctl := catalysttest.NewController()
	ctl.AddFabricSite("Global/India")
	a := newTestApp(t, ctl, "")
	ctx := context.Background()

	res := a.Apply(ctx, parse(t, vlanPlaybook), DomainVirtualNetworks)
	require.False(t, res.Failed, res.Msg)
	assert.True(t, res.Changed)
	require.Len(t, res.Response, 1)
	assert.Equal(t, reconcile.StatusCreated, res.Response[0].Msg["Global/India"][reconcile.KindFabricVLAN]["vlan_1001"].Status)
	assert.Equal(t, 1, ctl.L2VNs.Len())

	ctl.ResetCalls()
	res = a.Verify(ctx, parse(t, vlanPlaybook), DomainVirtualNetworks)
	assert.False(t, res.Failed, res.Msg)
	assert.False(t, res.Changed)
	assert.Empty(t, ctl.Writes())
}

func TestApp_DomainSkipsForeignKeys(t *testing.T) {
	ctl := catalysttest.NewController()
	ctl.AddFabricSite("Global/India")
	a := newTestApp(t, ctl, "")

	res := a.Apply(context.Background(), parse(t, vlanPlaybook), DomainMulticast)
	require.False(t, res.Failed, res.Msg)
	assert.False(t, res.Changed)
	assert.Empty(t, ctl.Writes())
	assert.Equal(t, 0, ctl.L2VNs.Len())
}

func TestApp_ValidationFailureMakesNoCalls(t *testing.T) {
	ctl := catalysttest.NewController()
	a := newTestApp(t, ctl, "")

	res := a.Apply(context.Background(), parse(t, `
state: merged
config:
  - fabric_vlan:
      - vlan_name: vlan_1001
        vlan_id: 5000
        fabric_site_locations:
          - site_name_hierarchy: Global/India
            fabric_type: fabric_site
`), DomainAll)
	assert.True(t, res.Failed)
	assert.NotEmpty(t, res.Msg)
	assert.Empty(t, ctl.Calls())
}

func TestApp_LedgerRecordsRun(t *testing.T) {
	ctl := catalysttest.NewController()
	ctl.AddFabricSite("Global/India")
	a := newTestApp(t, ctl, filepath.Join(t.TempDir(), "ledger.db"))
	ctx := context.Background()

	res := a.Apply(ctx, parse(t, vlanPlaybook), DomainAll)
	require.False(t, res.Failed, res.Msg)

	entries, err := ledger.New(a.services.DB.DB, "").GetByRun(ctx, "run-1")
	require.NoError(t, err)

	var types []ledger.EventType
	for _, e := range entries {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []ledger.EventType{
		ledger.EventRunStarted,
		ledger.EventTaskSubmitted,
		ledger.EventTaskSucceeded,
		ledger.EventRunFinished,
	}, types)
	assert.Equal(t, "apply", entries[0].Payload["command"])
	assert.Equal(t, "sda", entries[1].Family)
	assert.Equal(t, "add_layer2_virtual_networks", entries[1].Function)
	assert.Equal(t, entries[1].TaskID, entries[2].TaskID)
	assert.Equal(t, true, entries[3].Payload["changed"])
}

func TestParseDomain(t *testing.T) {
	d, err := ParseDomain("")
	require.NoError(t, err)
	assert.Equal(t, DomainAll, d)

	d, err = ParseDomain("inventory")
	require.NoError(t, err)
	assert.Equal(t, DomainInventory, d)

	_, err = ParseDomain("wireless")
	assert.ErrorContains(t, err, "fabric_multicast")
}

func TestDomain_Handlers(t *testing.T) {
	kinds := func(d Domain) []reconcile.Kind {
		return reconcile.NewOrchestrator(d.Handlers(".")...).Kinds()
	}
	assert.Equal(t, []reconcile.Kind{reconcile.KindMulticast, reconcile.KindReplicationMode}, kinds(DomainMulticast))
	assert.Equal(t, []reconcile.Kind{
		reconcile.KindInventoryDevice, reconcile.KindProvision, reconcile.KindDeviceActions,
	}, kinds(DomainInventory))
	assert.Len(t, kinds(DomainAll), 10)
}
