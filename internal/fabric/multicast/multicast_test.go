package multicast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sdactl/internal/catalyst/catalysttest"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/reconcile/reconciletest"
)

const (
	sanJose = "Global/USA/SAN JOSE"
	vnName  = "L3_VN_MUL_1"
	rpIP    = "204.1.2.3"
)

func boolp(v bool) *bool { return &v }

type fixture struct {
	ctl      *catalysttest.Controller
	siteID   string
	fabricID string
}

func newFixture() *fixture {
	ctl := catalysttest.NewController()
	siteID, fabricID := ctl.AddFabricSite(sanJose)
	ctl.AddL3VN(vnName, fabricID)
	ctl.AddPool(siteID, "MCAST_POOL")
	ctl.Multicast.Seed(map[string]any{"fabricId": fabricID, "replicationMode": ModeHeadend})
	f := &fixture{ctl: ctl, siteID: siteID, fabricID: fabricID}
	f.addFabricDevice(rpIP, "rp-1")
	return f
}

func (f *fixture) addFabricDevice(ip, hostname string) string {
	deviceID := f.ctl.AddDevice(ip, hostname)
	f.ctl.Provision(deviceID, f.siteID)
	f.ctl.FabricDevices.Seed(map[string]any{"fabricId": f.fabricID, "networkDeviceId": deviceID})
	return deviceID
}

func item(ms ...playbook.FabricMulticast) *playbook.Item {
	return &playbook.Item{FabricMulticast: ms}
}

func withSSM(ranges ...string) playbook.FabricMulticast {
	return playbook.FabricMulticast{
		FabricName:           sanJose,
		Layer3VirtualNetwork: vnName,
		IPPoolName:           "MCAST_POOL",
		SSM:                  &playbook.SSM{IPv4SSMRanges: ranges},
	}
}

func fabricRP() playbook.RendezvousPoint {
	return playbook.RendezvousPoint{
		RPDeviceLocation: playbook.RPLocationFabric,
		NetworkDeviceIPs: []string{rpIP},
		IsDefaultV4RP:    boolp(true),
	}
}

func apply(t *testing.T, f *fixture, state playbook.State, it *playbook.Item) *reconcile.Run {
	t.Helper()
	run := reconciletest.NewRun(f.ctl, state)
	require.NoError(t, VNHandler{}.Validate(state, it))
	require.NoError(t, VNHandler{}.Apply(context.Background(), run, it))
	require.NoError(t, VNHandler{}.Verify(context.Background(), run, it))
	return run
}

func observed(t *testing.T, f *fixture) map[string]any {
	t.Helper()
	items := f.ctl.MulticastVNs.Items()
	require.Len(t, items, 1)
	return items[0]
}

func TestVN_CreateUnionThenSubsetDelete(t *testing.T) {
	f := newFixture()

	a := withSSM("225.0.0.0/8", "226.0.0.0/8")
	a.ASM = []playbook.RendezvousPoint{fabricRP()}
	run := apply(t, f, playbook.StateMerged, item(a))
	assert.Equal(t, []string{"sda.add_multicast_virtual_networks"}, f.ctl.WriteKeys())
	assert.Equal(t, reconcile.StatusCreated, reconciletest.Status(run, sanJose, kind, vnName))

	f.ctl.ResetCalls()
	run = apply(t, f, playbook.StateMerged, item(withSSM("227.0.0.0/8")))
	assert.Equal(t, []string{"sda.update_multicast_virtual_networks"}, f.ctl.WriteKeys())
	assert.Equal(t, reconcile.StatusUpdated, reconciletest.Status(run, sanJose, kind, vnName))
	assert.ElementsMatch(t, []any{"225.0.0.0/8", "226.0.0.0/8", "227.0.0.0/8"}, observed(t, f)["ipv4SsmRanges"])

	f.ctl.ResetCalls()
	del := playbook.FabricMulticast{
		FabricName:           sanJose,
		Layer3VirtualNetwork: vnName,
		SSM:                  &playbook.SSM{IPv4SSMRanges: []string{"226.0.0.0/8"}},
	}
	run = apply(t, f, playbook.StateDeleted, item(del))
	assert.Equal(t, []string{"sda.update_multicast_virtual_networks"}, f.ctl.WriteKeys())
	assert.Equal(t, reconcile.StatusDeleted, reconciletest.Status(run, sanJose, kind, vnName))

	got := observed(t, f)
	assert.ElementsMatch(t, []any{"225.0.0.0/8", "227.0.0.0/8"}, got["ipv4SsmRanges"])
	rps, _ := got["multicastRPs"].([]any)
	require.Len(t, rps, 1, "RP unchanged")
}

func TestVN_RerunIsNoop(t *testing.T) {
	f := newFixture()
	a := withSSM("225.0.0.0/8")
	a.ASM = []playbook.RendezvousPoint{fabricRP()}
	apply(t, f, playbook.StateMerged, item(a))

	f.ctl.ResetCalls()
	run := apply(t, f, playbook.StateMerged, item(a))
	assert.Empty(t, f.ctl.Writes())
	assert.False(t, run.Record.Result().Changed)
	assert.Equal(t, "Success", reconciletest.Validation(run, sanJose, kind, vnName))
}

func TestVN_WholeDelete(t *testing.T) {
	f := newFixture()
	apply(t, f, playbook.StateMerged, item(withSSM("225.0.0.0/8")))

	f.ctl.ResetCalls()
	del := playbook.FabricMulticast{FabricName: sanJose, Layer3VirtualNetwork: vnName}
	run := apply(t, f, playbook.StateDeleted, item(del))
	assert.Equal(t, []string{"sda.delete_multicast_virtual_network_by_id"}, f.ctl.WriteKeys())
	assert.Zero(t, f.ctl.MulticastVNs.Len())
	assert.Equal(t, "Success", reconciletest.Validation(run, sanJose, kind, vnName))

	f.ctl.ResetCalls()
	run = apply(t, f, playbook.StateDeleted, item(del))
	assert.Empty(t, f.ctl.Writes())
	assert.Equal(t, reconcile.StatusAbsent, reconciletest.Status(run, sanJose, kind, vnName))
}

func TestVN_SubsetDeleteCannotEmpty(t *testing.T) {
	f := newFixture()
	apply(t, f, playbook.StateMerged, item(withSSM("225.0.0.0/8")))

	f.ctl.ResetCalls()
	del := playbook.FabricMulticast{
		FabricName:           sanJose,
		Layer3VirtualNetwork: vnName,
		SSM:                  &playbook.SSM{IPv4SSMRanges: []string{"225.0.0.0/8"}},
	}
	run := reconciletest.NewRun(f.ctl, playbook.StateDeleted)
	err := VNHandler{}.Apply(context.Background(), run, item(del))
	require.Error(t, err)
	assert.True(t, reconcile.IsFatal(err))
	assert.Empty(t, f.ctl.Writes())
}

func externalRP(v4 string, ranges ...string) playbook.RendezvousPoint {
	return playbook.RendezvousPoint{
		RPDeviceLocation: playbook.RPLocationExternal,
		ExRPIPv4Address:  v4,
		IPv4ASMRanges:    ranges,
	}
}

func observedRPs(t *testing.T, f *fixture) []map[string]any {
	t.Helper()
	raw, _ := observed(t, f)["multicastRPs"].([]any)
	out := make([]map[string]any, len(raw))
	for i, r := range raw {
		out[i], _ = r.(map[string]any)
	}
	return out
}

func TestVN_RelistedFabricRPKeepsASMRanges(t *testing.T) {
	f := newFixture()
	a := withSSM("225.0.0.0/8")
	a.ASM = []playbook.RendezvousPoint{{
		RPDeviceLocation: playbook.RPLocationFabric,
		NetworkDeviceIPs: []string{rpIP},
		IPv4ASMRanges:    []string{"239.1.0.0/16"},
	}}
	apply(t, f, playbook.StateMerged, item(a))
	rps := observedRPs(t, f)
	require.Len(t, rps, 1)
	assert.NotContains(t, rps[0], "isDefaultV4RP", "an RP with ASM ranges is not the default RP")

	f.ctl.ResetCalls()
	b := withSSM("227.0.0.0/8")
	b.ASM = []playbook.RendezvousPoint{{
		RPDeviceLocation: playbook.RPLocationFabric,
		NetworkDeviceIPs: []string{rpIP},
	}}
	apply(t, f, playbook.StateMerged, item(b))
	assert.Equal(t, []string{"sda.update_multicast_virtual_networks"}, f.ctl.WriteKeys())

	rps = observedRPs(t, f)
	require.Len(t, rps, 1)
	assert.Equal(t, []any{"239.1.0.0/16"}, rps[0]["ipv4AsmRanges"])
	assert.NotContains(t, rps[0], "isDefaultV4RP")

	f.ctl.ResetCalls()
	apply(t, f, playbook.StateMerged, item(b))
	assert.Empty(t, f.ctl.Writes())
}

func TestVN_FabricRPWithoutFlagsDefaultsOnCreate(t *testing.T) {
	f := newFixture()
	a := withSSM("225.0.0.0/8")
	a.ASM = []playbook.RendezvousPoint{{
		RPDeviceLocation: playbook.RPLocationFabric,
		NetworkDeviceIPs: []string{rpIP},
	}}
	apply(t, f, playbook.StateMerged, item(a))

	rps := observedRPs(t, f)
	require.Len(t, rps, 1)
	assert.Equal(t, true, rps[0]["isDefaultV4RP"])
}

func TestVN_ExternalRPsMergeASMRanges(t *testing.T) {
	f := newFixture()
	a := withSSM("225.0.0.0/8")
	a.ASM = []playbook.RendezvousPoint{externalRP("10.0.0.9", "239.1.0.0/16")}
	v6 := playbook.RendezvousPoint{
		RPDeviceLocation: playbook.RPLocationExternal,
		ExRPIPv6Address:  "2001:db8::1",
		IPv6ASMRanges:    []string{"ff3e::/32"},
	}
	a.ASM = append(a.ASM, v6)
	apply(t, f, playbook.StateMerged, item(a))

	f.ctl.ResetCalls()
	b := withSSM()
	v6.IPv6ASMRanges = []string{"ff3f::/32"}
	b.ASM = []playbook.RendezvousPoint{externalRP("10.0.0.9", "239.2.0.0/16"), v6}
	apply(t, f, playbook.StateMerged, item(b))
	assert.Equal(t, []string{"sda.update_multicast_virtual_networks"}, f.ctl.WriteKeys())

	rps := observedRPs(t, f)
	require.Len(t, rps, 2, "RPs sharing an address merge")
	assert.Equal(t, "10.0.0.9", rps[0]["ipv4Address"])
	assert.ElementsMatch(t, []any{"239.1.0.0/16", "239.2.0.0/16"}, rps[0]["ipv4AsmRanges"])
	assert.Equal(t, "2001:db8::1", rps[1]["ipv6Address"])
	assert.ElementsMatch(t, []any{"ff3e::/32", "ff3f::/32"}, rps[1]["ipv6AsmRanges"])
}

func TestVN_FabricRPsMergeDevices(t *testing.T) {
	f := newFixture()
	second := f.addFabricDevice("204.1.2.4", "rp-2")

	a := withSSM("225.0.0.0/8")
	a.ASM = []playbook.RendezvousPoint{fabricRP()}
	apply(t, f, playbook.StateMerged, item(a))

	f.ctl.ResetCalls()
	rp := fabricRP()
	rp.NetworkDeviceIPs = []string{rpIP, "204.1.2.4"}
	b := withSSM()
	b.ASM = []playbook.RendezvousPoint{rp}
	apply(t, f, playbook.StateMerged, item(b))
	assert.Equal(t, []string{"sda.update_multicast_virtual_networks"}, f.ctl.WriteKeys())

	rps := observedRPs(t, f)
	require.Len(t, rps, 1)
	ids, _ := rps[0]["networkDeviceIds"].([]any)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, second)
	assert.Equal(t, true, rps[0]["isDefaultV4RP"])
}

func TestVN_SubsetDeleteExternalRP(t *testing.T) {
	f := newFixture()
	a := withSSM("225.0.0.0/8")
	a.ASM = []playbook.RendezvousPoint{
		externalRP("10.0.0.9", "239.1.0.0/16", "239.2.0.0/16"),
		externalRP("10.0.0.10", "239.3.0.0/16"),
	}
	apply(t, f, playbook.StateMerged, item(a))

	del := func(rps ...playbook.RendezvousPoint) *playbook.Item {
		return item(playbook.FabricMulticast{FabricName: sanJose, Layer3VirtualNetwork: vnName, ASM: rps})
	}

	f.ctl.ResetCalls()
	apply(t, f, playbook.StateDeleted, del(externalRP("10.0.0.9", "239.1.0.0/16")))
	assert.Equal(t, []string{"sda.update_multicast_virtual_networks"}, f.ctl.WriteKeys())
	rps := observedRPs(t, f)
	require.Len(t, rps, 2)
	assert.Equal(t, []any{"239.2.0.0/16"}, rps[0]["ipv4AsmRanges"], "only the listed range is removed")

	f.ctl.ResetCalls()
	apply(t, f, playbook.StateDeleted, del(externalRP("10.0.0.10")))
	assert.Equal(t, []string{"sda.update_multicast_virtual_networks"}, f.ctl.WriteKeys())
	rps = observedRPs(t, f)
	require.Len(t, rps, 1, "an RP named by address alone is removed whole")
	assert.Equal(t, "10.0.0.9", rps[0]["ipv4Address"])
	assert.Equal(t, []any{"225.0.0.0/8"}, observed(t, f)["ipv4SsmRanges"])
}

func TestVN_CreateRequiresReferences(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*playbook.FabricMulticast)
		setup func(*fixture)
		want  string
	}{
		{
			name: "pool missing",
			edit: func(m *playbook.FabricMulticast) { m.IPPoolName = "OTHER" },
			want: "reserved pool",
		},
		{
			name: "vn missing",
			edit: func(m *playbook.FabricMulticast) { m.Layer3VirtualNetwork = "NOPE" },
			want: "layer3 virtual network",
		},
		{
			name: "rp not a fabric device",
			edit: func(m *playbook.FabricMulticast) { m.ASM = []playbook.RendezvousPoint{fabricRP()} },
			setup: func(f *fixture) {
				for _, it := range f.ctl.FabricDevices.Items() {
					it["fabricId"] = "elsewhere"
				}
			},
			want: "not a fabric device",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			m := withSSM("225.0.0.0/8")
			tt.edit(&m)
			run := reconciletest.NewRun(f.ctl, playbook.StateMerged)
			err := VNHandler{}.Apply(context.Background(), run, item(m))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, f.ctl.Writes())
		})
	}
}

func TestVN_ZoneIsRejected(t *testing.T) {
	f := newFixture()
	f.ctl.AddFabricZone("Global/USA/SAN JOSE/BLD1")
	m := withSSM("225.0.0.0/8")
	m.FabricName = "Global/USA/SAN JOSE/BLD1"

	run := reconciletest.NewRun(f.ctl, playbook.StateMerged)
	err := VNHandler{}.Apply(context.Background(), run, item(m))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fabric zone")
}

func TestValidate(t *testing.T) {
	external := func(edit func(*playbook.RendezvousPoint)) playbook.FabricMulticast {
		rp := playbook.RendezvousPoint{
			RPDeviceLocation: playbook.RPLocationExternal,
			ExRPIPv4Address:  "10.0.0.9",
			IPv4ASMRanges:    []string{"239.1.1.0/24"},
		}
		edit(&rp)
		m := withSSM("232.0.0.0/8")
		m.ASM = []playbook.RendezvousPoint{rp}
		return m
	}

	tests := []struct {
		name string
		m    playbook.FabricMulticast
		want string
	}{
		{name: "valid external", m: external(func(*playbook.RendezvousPoint) {})},
		{
			name: "default and ranges",
			m:    external(func(rp *playbook.RendezvousPoint) { rp.IsDefaultV4RP = boolp(true) }),
			want: "exactly one of is_default_v4_rp",
		},
		{
			name: "neither default nor ranges",
			m:    external(func(rp *playbook.RendezvousPoint) { rp.IPv4ASMRanges = nil }),
			want: "exactly one of is_default_v4_rp",
		},
		{
			name: "asm overlaps ssm",
			m:    external(func(rp *playbook.RendezvousPoint) { rp.IPv4ASMRanges = []string{"232.1.0.0/16"} }),
			want: "overlaps an SSM range",
		},
		{
			name: "asm outside multicast",
			m:    external(func(rp *playbook.RendezvousPoint) { rp.IPv4ASMRanges = []string{"10.0.0.0/8"} }),
			want: "not a multicast range",
		},
		{
			name: "v6 address in v4 field",
			m:    external(func(rp *playbook.RendezvousPoint) { rp.ExRPIPv4Address = "2001:db8::1" }),
			want: "not an ipv4 address",
		},
		{
			name: "v6 family",
			m: external(func(rp *playbook.RendezvousPoint) {
				rp.ExRPIPv6Address = "2001:db8::1"
				rp.IPv6ASMRanges = []string{"ff3e::/32"}
			}),
		},
		{
			name: "too many fabric devices",
			m: func() playbook.FabricMulticast {
				m := withSSM("232.0.0.0/8")
				m.ASM = []playbook.RendezvousPoint{{
					RPDeviceLocation: playbook.RPLocationFabric,
					NetworkDeviceIPs: []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"},
				}}
				return m
			}(),
			want: "1 to 2 devices",
		},
		{
			name: "ssm outside multicast",
			m:    withSSM("10.0.0.0/8"),
			want: "not a multicast range",
		},
		{
			name: "unknown replication mode",
			m: func() playbook.FabricMulticast {
				m := withSSM("232.0.0.0/8")
				m.ReplicationMode = "FLOOD"
				return m
			}(),
			want: "replication_mode",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VNHandler{}.Validate(playbook.StateMerged, item(tt.m))
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, reconcile.IsFatal(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ConflictingModes(t *testing.T) {
	a, b := withSSM("232.0.0.0/8"), withSSM("233.0.0.0/8")
	a.ReplicationMode, b.ReplicationMode = ModeNative, ModeHeadend
	err := VNHandler{}.Validate(playbook.StateMerged, item(a, b))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "given both")
}

func TestReplication_UpdateThenNoop(t *testing.T) {
	f := newFixture()
	m := withSSM("232.0.0.0/8")
	m.ReplicationMode = ModeNative
	ctx := context.Background()

	run := reconciletest.NewRun(f.ctl, playbook.StateMerged)
	require.NoError(t, ReplicationHandler{}.Apply(ctx, run, item(m)))
	assert.Equal(t, []string{"sda.update_multicast"}, f.ctl.WriteKeys())
	assert.Equal(t, ModeNative, f.ctl.Multicast.Items()[0]["replicationMode"])
	require.NoError(t, ReplicationHandler{}.Verify(ctx, run, item(m)))

	f.ctl.ResetCalls()
	m.ReplicationMode = ""
	run = reconciletest.NewRun(f.ctl, playbook.StateMerged)
	require.NoError(t, ReplicationHandler{}.Apply(ctx, run, item(m)))
	assert.Empty(t, f.ctl.Writes(), "an unspecified mode keeps the observed one")
	assert.Equal(t, reconcile.StatusUnchanged, reconciletest.Status(run, sanJose, reconcile.KindReplicationMode, sanJose))
}

func TestReplication_IgnoredWhenDeleting(t *testing.T) {
	f := newFixture()
	m := withSSM("232.0.0.0/8")
	m.ReplicationMode = ModeNative
	run := reconciletest.NewRun(f.ctl, playbook.StateDeleted)
	require.NoError(t, ReplicationHandler{}.Apply(context.Background(), run, item(m)))
	assert.Empty(t, f.ctl.Writes())
}
