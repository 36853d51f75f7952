// Package reconcile provides the reconciliation framework for making the
// controller's configuration match a playbook.
package reconcile

import (
	"context"

	"github.com/dokzlo13/sdactl/internal/catalyst"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/resolve"
	"github.com/dokzlo13/sdactl/internal/task"
)

// Kind identifies a type of reconcilable object.
type Kind string

// Object kinds, in dependency order.
const (
	KindInventoryDevice Kind = "inventory_device"
	KindProvision       Kind = "provision"
	KindFabricDevice    Kind = "fabric_device"
	KindFabricVLAN      Kind = "fabric_vlan"
	KindVirtualNetwork  Kind = "virtual_network"
	KindAnycastGateway  Kind = "anycast_gateway"
	KindBorderHandoff   Kind = "border_handoff"
	KindMulticast       Kind = "multicast"
	KindReplicationMode Kind = "replication_mode"
	KindDeviceActions   Kind = "device_actions"
)

var kindOrder = []Kind{
	KindInventoryDevice,
	KindProvision,
	KindFabricDevice,
	KindFabricVLAN,
	KindVirtualNetwork,
	KindAnycastGateway,
	KindBorderHandoff,
	KindMulticast,
	KindReplicationMode,
	KindDeviceActions,
}

// Rank returns the position of k in the dependency order.
func (k Kind) Rank() int {
	for i, o := range kindOrder {
		if o == k {
			return i
		}
	}
	return len(kindOrder)
}

// Action is what the differ decided to do with one object.
type Action int

const (
	ActionNone Action = iota
	ActionCreate
	ActionUpdate
	ActionDeleteAll
	ActionDeleteSubset
)

// String returns a human-readable name for the action.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "noop"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDeleteAll:
		return "delete-all"
	case ActionDeleteSubset:
		return "delete-subset"
	default:
		return "unknown"
	}
}

// Decide picks create, update or noop for a merged-state object.
func Decide(present bool, mismatches []Mismatch) Action {
	switch {
	case !present:
		return ActionCreate
	case len(mismatches) > 0:
		return ActionUpdate
	default:
		return ActionNone
	}
}

// Handler reconciles one object kind of a config item. Apply and Verify
// return nil when the item does not carry the handler's kind.
type Handler interface {
	Kind() Kind

	// Validate checks the item without touching the controller.
	Validate(state playbook.State, item *playbook.Item) error

	// Apply reads, diffs and writes the item's objects.
	Apply(ctx context.Context, run *Run, item *playbook.Item) error

	// Verify re-reads the item's objects and reports any remaining difference.
	Verify(ctx context.Context, run *Run, item *playbook.Item) error
}

// Run carries per-run collaborators. Nothing in it outlives the run.
type Run struct {
	ID     string
	State  playbook.State
	Exec   catalyst.Executor
	Tasks  *task.Poller
	Names  *resolve.Resolver
	Record *Recorder
}

// Deleting reports whether the run removes objects.
func (r *Run) Deleting() bool { return r.State == playbook.StateDeleted }

// Submit runs one write operation to completion and records its payload.
func (r *Run) Submit(ctx context.Context, family, function string, params catalyst.Params, ok task.Predicate) error {
	if p, has := params[catalyst.PayloadParam]; has {
		r.Record.Sent(p)
	} else {
		r.Record.Sent(map[string]any{"function": family + "." + function, "params": params})
	}
	_, err := r.Tasks.Run(ctx, family, function, params, ok)
	return err
}

// SubmitChunked runs a bulk write in chunks of at most size items.
func SubmitChunked[T any](ctx context.Context, r *Run, family, function string, items []T, size int, ok task.Predicate) error {
	_, err := task.RunChunked(ctx, r.Tasks, family, function, items, size, func(chunk []T) catalyst.Params {
		r.Record.Sent(chunk)
		return catalyst.Params{catalyst.PayloadParam: chunk}
	}, ok)
	return err
}
