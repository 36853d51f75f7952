package resolve

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dokzlo13/sdactl/internal/catalyst"
	"github.com/dokzlo13/sdactl/internal/catalyst/catalysttest"
)

func TestFabric_SiteAndZone(t *testing.T) {
	ctl := catalysttest.NewController()
	siteID, fabricID := ctl.AddFabricSite("Global/USA/SAN-JOSE")
	zoneSite, zoneID := ctl.AddFabricZone("Global/USA/SAN-JOSE/BLD23")
	ctl.AddSite("Global/USA/NEW-YORK")

	r := New(ctl, time.Minute)
	ctx := context.Background()

	f, ok, err := r.Fabric(ctx, "Global/USA/SAN-JOSE")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Fabric{ID: fabricID, SiteID: siteID, Name: "Global/USA/SAN-JOSE"}, f)

	f, ok, err = r.Fabric(ctx, "Global/USA/SAN-JOSE/BLD23")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, f.Zone)
	assert.Equal(t, zoneID, f.ID)
	assert.Equal(t, zoneSite, f.SiteID)

	_, ok, err = r.Fabric(ctx, "Global/USA/NEW-YORK")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = r.Fabric(ctx, "Global/Nowhere")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFabric_Memoized(t *testing.T) {
	ctl := catalysttest.NewController()
	ctl.AddFabricSite("Global/India")

	r := New(ctl, time.Minute)
	for i := 0; i < 3; i++ {
		_, ok, err := r.Fabric(context.Background(), "Global/India")
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Len(t, ctl.Calls(), 2)
}

func TestDeviceAndTransit(t *testing.T) {
	ctl := catalysttest.NewController()
	id := ctl.AddDevice("10.0.0.1", "edge-1")
	tid := ctl.AddTransit("IP_TRANSIT_1", TransitIP)

	r := New(ctl, time.Minute)
	ctx := context.Background()

	d, ok, err := r.Device(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, d.ID)
	assert.Equal(t, "edge-1", d.Hostname)

	_, ok, err = r.DeviceID(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.False(t, ok)

	tr, ok, err := r.Transit(ctx, "IP_TRANSIT_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tid, tr.ID)
	assert.False(t, tr.IsSDA())
}

func TestReservedPoolExists_Paginates(t *testing.T) {
	ctl := catalysttest.NewController()
	siteID := ctl.AddSite("Global/India")
	for i := 0; i < 60; i++ {
		ctl.AddPool(siteID, fmt.Sprintf("pool_%d", i))
	}

	r := New(ctl, time.Minute)
	ok, err := r.ReservedPoolExists(context.Background(), siteID, "pool_55")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, ctl.Calls(), 3)

	ctl.ResetCalls()
	ok, err = r.ReservedPoolExists(context.Background(), siteID, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, ctl.Calls(), 3)
}

func TestPages_TimeoutIsAnError(t *testing.T) {
	fake := catalysttest.New()
	fake.Handle("network_settings.get_reserve_ip_subpool", func(p catalyst.Params) (any, error) {
		page := make([]map[string]any, PoolPageSize)
		for i := range page {
			page[i] = map[string]any{"groupName": fmt.Sprintf("p%v_%d", p["offset"], i)}
		}
		return map[string]any{"response": page}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, _, err := Find(Pages(ctx, fake, "network_settings", "get_reserve_ip_subpool", nil, PoolPageSize), func(it gjson.Result) bool {
		calls++
		if calls == PoolPageSize*2 {
			cancel()
		}
		return false
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVirtualNetworkAndProvisioned(t *testing.T) {
	ctl := catalysttest.NewController()
	ctl.AddL3VN("L3VN1")
	ctl.Provision("dev-1", "site-1")

	r := New(ctl, time.Minute)
	ctx := context.Background()

	ok, err := r.VirtualNetworkExists(ctx, "L3VN1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.VirtualNetworkExists(ctx, "L3VN2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.Provisioned(ctx, "dev-1", "site-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Provisioned(ctx, "dev-1", "site-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCollectAs_DecodesAcrossPages(t *testing.T) {
	ctl := catalysttest.NewController()
	for i := range 30 {
		ctl.L2Handoffs.Seed(map[string]any{"fabricId": "f1", "interfaceName": fmt.Sprintf("Gi1/0/%d", i)})
	}

	type handoff struct {
		InterfaceName string `json:"interfaceName"`
	}
	got, err := CollectAs[handoff](Pages(context.Background(), ctl, "sda", "get_fabric_devices_layer2_handoffs",
		catalyst.Params{"fabricId": "f1"}, 25))
	require.NoError(t, err)
	require.Len(t, got, 30)
	assert.Equal(t, "Gi1/0/29", got[29].InterfaceName)
	assert.Len(t, ctl.Calls(), 2)
}
