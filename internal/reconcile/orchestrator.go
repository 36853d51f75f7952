package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sdactl/internal/playbook"
)

// Orchestrator sequences handlers over the items of a playbook.
// It's domain-agnostic - all kind-specific logic lives in handlers.
type Orchestrator struct {
	handlers []Handler
}

// NewOrchestrator creates an orchestrator. Handlers run in kind dependency order.
func NewOrchestrator(handlers ...Handler) *Orchestrator {
	hs := slices.Clone(handlers)
	slices.SortStableFunc(hs, func(a, b Handler) int {
		return a.Kind().Rank() - b.Kind().Rank()
	})
	return &Orchestrator{handlers: hs}
}

// Kinds lists the registered kinds in run order for merged state.
func (o *Orchestrator) Kinds() []Kind {
	out := make([]Kind, len(o.handlers))
	for i, h := range o.handlers {
		out[i] = h.Kind()
	}
	return out
}

// order returns handlers in execution order; deletion runs dependents first.
func (o *Orchestrator) order(state playbook.State) []Handler {
	hs := slices.Clone(o.handlers)
	if state == playbook.StateDeleted {
		slices.Reverse(hs)
	}
	return hs
}

// Validate checks every item with every handler before any network call.
func (o *Orchestrator) Validate(doc *playbook.Document) error {
	for i := range doc.Config {
		for _, h := range o.handlers {
			if err := h.Validate(doc.State, &doc.Config[i]); err != nil {
				return fmt.Errorf("config[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// Apply reconciles every item. A failed kind skips the remaining kinds of the
// same item; a validation failure stops the run. When the document asks for
// verification and nothing failed, every item is re-read afterwards.
func (o *Orchestrator) Apply(ctx context.Context, run *Run, doc *playbook.Document) *Result {
	res := &Result{Response: []*ItemResult{}}

	if err := o.Validate(doc); err != nil {
		log.Error().Err(err).Msg("Playbook validation failed")
		res.Failed = true
		res.Msg = err.Error()
		return res
	}

	log.Info().
		Str("run_id", run.ID).
		Str("state", string(doc.State)).
		Int("items", len(doc.Config)).
		Msg("Reconciliation started")

	recorders := make([]*Recorder, 0, len(doc.Config))
	var firstErr error

items:
	for i := range doc.Config {
		item := &doc.Config[i]
		run.Record = NewRecorder()
		recorders = append(recorders, run.Record)

		for _, h := range o.order(doc.State) {
			log.Debug().Int("item", i).Str("kind", string(h.Kind())).Msg("Reconciling kind")

			err := h.Apply(ctx, run, item)
			if err == nil {
				continue
			}

			o.recordFailure(run.Record, i, h.Kind(), err)
			log.Error().Err(err).Int("item", i).Str("kind", string(h.Kind())).Msg("Reconcile failed")
			if firstErr == nil {
				firstErr = err
			}
			if IsFatal(err) || ctx.Err() != nil {
				break items
			}
			continue items
		}
	}

	if firstErr == nil && doc.ConfigVerify {
		for i := range doc.Config {
			run.Record = recorders[i]
			if err := o.verifyItem(ctx, run, i, &doc.Config[i]); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	return o.finish(res, recorders, firstErr)
}

// Verify compares every item against the controller without writing.
func (o *Orchestrator) Verify(ctx context.Context, run *Run, doc *playbook.Document) *Result {
	res := &Result{Response: []*ItemResult{}}

	if err := o.Validate(doc); err != nil {
		res.Failed = true
		res.Msg = err.Error()
		return res
	}

	recorders := make([]*Recorder, 0, len(doc.Config))
	var firstErr error
	for i := range doc.Config {
		run.Record = NewRecorder()
		recorders = append(recorders, run.Record)
		if err := o.verifyItem(ctx, run, i, &doc.Config[i]); err != nil && firstErr == nil {
			firstErr = err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return o.finish(res, recorders, firstErr)
}

func (o *Orchestrator) verifyItem(ctx context.Context, run *Run, i int, item *playbook.Item) error {
	var firstErr error
	for _, h := range o.handlers {
		if err := h.Verify(ctx, run, item); err != nil {
			o.recordFailure(run.Record, i, h.Kind(), err)
			log.Error().Err(err).Int("item", i).Str("kind", string(h.Kind())).Msg("Verification failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// recordFailure attaches err to the item unless the handler already recorded
// it under its own scope.
func (o *Orchestrator) recordFailure(rec *Recorder, i int, kind Kind, err error) {
	var re *recordedError
	if errors.As(err, &re) {
		return
	}
	rec.Fail(fmt.Sprintf("config[%d]", i), kind, string(kind), err)
}

func (o *Orchestrator) finish(res *Result, recorders []*Recorder, firstErr error) *Result {
	for _, rec := range recorders {
		item := rec.Result()
		res.Response = append(res.Response, item)
		res.Changed = res.Changed || item.Changed
		res.Failed = res.Failed || item.Failed
	}
	if firstErr != nil {
		res.Failed = true
		res.Msg = firstErr.Error()
	} else {
		res.Msg = fmt.Sprintf("%d config item(s) processed successfully", len(recorders))
	}

	log.Info().
		Bool("changed", res.Changed).
		Bool("failed", res.Failed).
		Int("items", len(recorders)).
		Msg("Reconciliation finished")
	return res
}
