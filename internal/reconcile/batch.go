package reconcile

import (
	"context"

	"github.com/dokzlo13/sdactl/internal/task"
)

// Batch collects objects for one bulk write so they are submitted together
// and recorded with the same status.
type Batch[T any] struct {
	Kind     Kind
	Family   string
	Function string
	// Status is recorded for every object once the write succeeds.
	Status string

	items []T
	refs  []batchRef
}

type batchRef struct {
	scope  string
	object string
}

// Add queues item, reported as object under scope.
func (b *Batch[T]) Add(scope, object string, item T) {
	b.items = append(b.items, item)
	b.refs = append(b.refs, batchRef{scope: scope, object: object})
}

// Len returns the number of queued objects.
func (b *Batch[T]) Len() int { return len(b.items) }

// Items returns the queued objects.
func (b *Batch[T]) Items() []T { return b.items }

// Submit writes the queued objects in chunks of at most size. Every queued
// object is marked failed when any chunk fails.
func (b *Batch[T]) Submit(ctx context.Context, run *Run, size int, ok task.Predicate) error {
	if len(b.items) == 0 {
		return nil
	}
	if err := SubmitChunked(ctx, run, b.Family, b.Function, b.items, size, ok); err != nil {
		var last error
		for _, ref := range b.refs {
			last = run.Fail(ref.scope, b.Kind, ref.object, err)
		}
		return last
	}
	for _, ref := range b.refs {
		run.Record.Status(ref.scope, b.Kind, ref.object, b.Status)
	}
	return nil
}
