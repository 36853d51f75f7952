package devices

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sdactl/internal/catalyst"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/task"
)

const batchSize = 20

func newBatch[T any](kind reconcile.Kind, function, status string) *reconcile.Batch[T] {
	return &reconcile.Batch[T]{Kind: kind, Family: "sda", Function: function, Status: status}
}

// submitAll writes every non-empty batch in order and stops at the first failure.
func submitAll[T any](ctx context.Context, run *reconcile.Run, batches ...*reconcile.Batch[T]) error {
	for _, b := range batches {
		if b.Len() == 0 {
			continue
		}
		log.Info().
			Str("kind", string(b.Kind)).
			Str("function", b.Function).
			Int("count", b.Len()).
			Msg("Submitting bulk write")
		if err := b.Submit(ctx, run, batchSize, task.Completed()); err != nil {
			return err
		}
	}
	return nil
}

// remove runs one delete call and records the object as deleted.
func remove(ctx context.Context, run *reconcile.Run, kind reconcile.Kind, function string, params catalyst.Params, scope, object string) error {
	log.Info().
		Str("kind", string(kind)).
		Str("fabric", scope).
		Str("object", object).
		Msg("Deleting")
	if err := run.Submit(ctx, "sda", function, params, task.Completed()); err != nil {
		return run.Fail(scope, kind, object, err)
	}
	run.Record.Status(scope, kind, object, reconcile.StatusDeleted)
	return nil
}
