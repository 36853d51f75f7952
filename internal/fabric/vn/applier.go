package vn

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sdactl/internal/catalyst"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/task"
)

// batchSize caps the objects sent in one bulk add or update.
const batchSize = 20

func newBatch[T any](kind reconcile.Kind, function, status string) *reconcile.Batch[T] {
	return &reconcile.Batch[T]{Kind: kind, Family: "sda", Function: function, Status: status}
}

func submit[T any](ctx context.Context, run *reconcile.Run, b *reconcile.Batch[T]) error {
	if b.Len() == 0 {
		return nil
	}
	log.Info().
		Str("kind", string(b.Kind)).
		Str("function", b.Function).
		Int("count", b.Len()).
		Msg("Submitting bulk write")
	return b.Submit(ctx, run, batchSize, task.Completed())
}

func deleteByID(ctx context.Context, run *reconcile.Run, kind reconcile.Kind, function, scope, object, id string) error {
	log.Info().
		Str("kind", string(kind)).
		Str("scope", scope).
		Str("object", object).
		Str("id", id).
		Msg("Deleting")
	if err := run.Submit(ctx, "sda", function, catalyst.Params{"id": id}, task.Completed()); err != nil {
		return run.Fail(scope, kind, object, err)
	}
	run.Record.Status(scope, kind, object, reconcile.StatusDeleted)
	return nil
}

func deleteL3VN(ctx context.Context, run *reconcile.Run, name string) error {
	log.Info().Str("vn", name).Msg("Deleting layer3 virtual network")
	params := catalyst.Params{"virtualNetworkName": name}
	if err := run.Submit(ctx, "sda", "delete_layer3_virtual_networks", params, task.Completed()); err != nil {
		return run.Fail(name, reconcile.KindVirtualNetwork, name, err)
	}
	run.Record.Status(name, reconcile.KindVirtualNetwork, name, reconcile.StatusDeleted)
	return nil
}
