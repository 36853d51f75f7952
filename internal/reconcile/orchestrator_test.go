package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sdactl/internal/playbook"
)

type stubHandler struct {
	kind        Kind
	validateErr error
	applyErr    func(item *playbook.Item) error
	verifyErr   error
	log         *[]string
}

func (h *stubHandler) Kind() Kind { return h.kind }

func (h *stubHandler) Validate(playbook.State, *playbook.Item) error { return h.validateErr }

func (h *stubHandler) Apply(_ context.Context, run *Run, item *playbook.Item) error {
	*h.log = append(*h.log, "apply:"+string(h.kind))
	if h.applyErr != nil {
		if err := h.applyErr(item); err != nil {
			return err
		}
	}
	run.Record.Status("Global/India", h.kind, "obj", StatusCreated)
	return nil
}

func (h *stubHandler) Verify(_ context.Context, run *Run, _ *playbook.Item) error {
	*h.log = append(*h.log, "verify:"+string(h.kind))
	if h.verifyErr != nil {
		return h.verifyErr
	}
	run.Record.Verified("Global/India", h.kind, "obj")
	return nil
}

func twoItems(state playbook.State) *playbook.Document {
	return &playbook.Document{State: state, Config: []playbook.Item{{}, {}}}
}

func TestOrchestrator_OrderMergedAndDeleted(t *testing.T) {
	var calls []string
	o := NewOrchestrator(
		&stubHandler{kind: KindAnycastGateway, log: &calls},
		&stubHandler{kind: KindFabricVLAN, log: &calls},
		&stubHandler{kind: KindVirtualNetwork, log: &calls},
	)
	assert.Equal(t, []Kind{KindFabricVLAN, KindVirtualNetwork, KindAnycastGateway}, o.Kinds())

	doc := &playbook.Document{State: playbook.StateMerged, Config: []playbook.Item{{}}}
	res := o.Apply(context.Background(), &Run{}, doc)
	assert.False(t, res.Failed)
	assert.True(t, res.Changed)
	assert.Equal(t, []string{"apply:fabric_vlan", "apply:virtual_network", "apply:anycast_gateway"}, calls)

	calls = nil
	doc.State = playbook.StateDeleted
	o.Apply(context.Background(), &Run{State: playbook.StateDeleted}, doc)
	assert.Equal(t, []string{"apply:anycast_gateway", "apply:virtual_network", "apply:fabric_vlan"}, calls)
}

func TestOrchestrator_FailureSkipsRestOfItem(t *testing.T) {
	var calls []string
	first := true
	o := NewOrchestrator(
		&stubHandler{kind: KindFabricVLAN, log: &calls, applyErr: func(*playbook.Item) error {
			if first {
				first = false
				return errors.New("task failed")
			}
			return nil
		}},
		&stubHandler{kind: KindVirtualNetwork, log: &calls},
	)

	res := o.Apply(context.Background(), &Run{}, twoItems(playbook.StateMerged))
	assert.True(t, res.Failed)
	assert.Equal(t, "task failed", res.Msg)
	assert.Equal(t, []string{"apply:fabric_vlan", "apply:fabric_vlan", "apply:virtual_network"}, calls)

	require.Len(t, res.Response, 2)
	assert.True(t, res.Response[0].Failed)
	assert.False(t, res.Response[0].Changed)
	assert.Equal(t, StatusFailed, res.Response[0].Msg["config[0]"][KindFabricVLAN]["fabric_vlan"].Status)
	assert.True(t, res.Response[1].Changed)
}

func TestOrchestrator_ValidationAbortsRun(t *testing.T) {
	var calls []string
	o := NewOrchestrator(&stubHandler{kind: KindFabricVLAN, log: &calls, applyErr: func(*playbook.Item) error {
		return Invalid(KindFabricVLAN, "vlan_id", "immutable")
	}})

	res := o.Apply(context.Background(), &Run{}, twoItems(playbook.StateMerged))
	assert.True(t, res.Failed)
	assert.Len(t, calls, 1)
	assert.Len(t, res.Response, 1)
}

func TestOrchestrator_StaticValidationBeforeAnyCall(t *testing.T) {
	var calls []string
	o := NewOrchestrator(
		&stubHandler{kind: KindFabricVLAN, log: &calls},
		&stubHandler{kind: KindMulticast, log: &calls, validateErr: Invalid(KindMulticast, "asm", "bad")},
	)
	res := o.Apply(context.Background(), &Run{}, twoItems(playbook.StateMerged))
	assert.True(t, res.Failed)
	assert.Empty(t, calls)
	assert.Contains(t, res.Msg, "config[0]")
}

func TestOrchestrator_ConfigVerify(t *testing.T) {
	var calls []string
	o := NewOrchestrator(&stubHandler{kind: KindFabricVLAN, log: &calls})

	doc := twoItems(playbook.StateMerged)
	doc.ConfigVerify = true
	res := o.Apply(context.Background(), &Run{}, doc)
	require.False(t, res.Failed)
	assert.Equal(t, []string{"apply:fabric_vlan", "apply:fabric_vlan", "verify:fabric_vlan", "verify:fabric_vlan"}, calls)
	assert.Equal(t, "Success", res.Response[1].Msg["Global/India"][KindFabricVLAN]["obj"].Validation)
}

func TestOrchestrator_VerifyOnly(t *testing.T) {
	var calls []string
	o := NewOrchestrator(&stubHandler{kind: KindMulticast, log: &calls, verifyErr: Absent(KindMulticast, "VN1", false)})

	res := o.Verify(context.Background(), &Run{}, twoItems(playbook.StateMerged))
	assert.True(t, res.Failed)
	assert.False(t, res.Changed)
	assert.Equal(t, []string{"verify:multicast", "verify:multicast"}, calls)
	assert.Contains(t, res.Msg, "verification failed")
}

func TestRunFail_RecordsUnderScope(t *testing.T) {
	var calls []string
	o := NewOrchestrator(&stubHandler{kind: KindMulticast, log: &calls, applyErr: func(*playbook.Item) error {
		return nil
	}})
	run := &Run{}
	res := o.Apply(context.Background(), run, &playbook.Document{State: playbook.StateMerged, Config: []playbook.Item{{}}})
	require.False(t, res.Failed)

	err := run.Fail("Global/USA", KindMulticast, "VN1", errors.New("boom"))
	assert.EqualError(t, err, "boom")
	assert.Equal(t, "boom", run.Record.Result().Msg["Global/USA"][KindMulticast]["VN1"].Error)
}
