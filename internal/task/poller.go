// Package task submits asynchronous controller operations and waits for them
// to reach a terminal status.
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sdactl/internal/catalyst"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultTimeout      = 1200 * time.Second
)

// Journal observes task lifecycle events.
type Journal interface {
	TaskSubmitted(ctx context.Context, family, function, taskID string)
	TaskFinished(ctx context.Context, family, function string, outcome Outcome)
}

// Config configures a Poller.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    Clock
	Journal  Journal
}

// Poller drives Submitted -> Polling -> {Succeeded, Failed, TimedOut}.
type Poller struct {
	exec     catalyst.Executor
	clock    Clock
	interval time.Duration
	timeout  time.Duration
	journal  Journal
}

// NewPoller creates a poller over exec.
func NewPoller(exec catalyst.Executor, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	return &Poller{
		exec:     exec,
		clock:    cfg.Clock,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		journal:  cfg.Journal,
	}
}

// Timeout returns the per-task budget.
func (p *Poller) Timeout() time.Duration { return p.timeout }

// Submit issues a write and returns its task id.
func (p *Poller) Submit(ctx context.Context, family, function string, params catalyst.Params) (string, error) {
	resp, err := p.exec.Exec(ctx, family, function, params)
	if err != nil {
		return "", err
	}
	id := resp.TaskID()
	if id == "" {
		return "", fmt.Errorf("%s.%s: response carried no task id: %s", family, function, string(resp.Raw))
	}
	log.Info().Str("family", family).Str("function", function).Str("task_id", id).Msg("Task submitted")
	if p.journal != nil {
		p.journal.TaskSubmitted(ctx, family, function, id)
	}
	return id, nil
}

// Await polls taskID until ok matches, the task errors, or the timeout
// elapses. The returned error is reserved for transport failures and
// cancellation; task failure is reported through the Outcome.
func (p *Poller) Await(ctx context.Context, taskID string, ok Predicate) (Outcome, error) {
	start := p.clock.Now()
	state := StateSubmitted

	for {
		resp, err := p.exec.Exec(ctx, "task", "get_task_by_id", catalyst.Params{"taskId": taskID})
		if err != nil {
			return Outcome{TaskID: taskID, State: state}, err
		}
		st := parseStatus(resp.Get("response"))
		elapsed := p.clock.Now().Sub(start)

		state = Next(state, st, ok, elapsed, p.timeout)
		log.Debug().Str("task_id", taskID).Str("state", state.String()).Str("progress", st.Progress).Msg("Task status")

		if state.Terminal() {
			out := Outcome{TaskID: taskID, State: state, Status: st, Elapsed: elapsed}
			if state == StateFailed {
				out.Reason = p.failureReason(ctx, taskID, st)
			}
			return out, nil
		}

		if err := p.clock.Sleep(ctx, p.interval); err != nil {
			return Outcome{TaskID: taskID, State: state, Status: st, Elapsed: elapsed}, err
		}
	}
}

// failureReason prefers the status reason and falls back to the task detail endpoint.
func (p *Poller) failureReason(ctx context.Context, taskID string, st Status) string {
	if st.FailureReason != "" {
		return st.FailureReason
	}
	resp, err := p.exec.Exec(ctx, "task", "get_task_details_by_id", catalyst.Params{"id": taskID})
	if err == nil {
		if reason := resp.Get("response.failureReason").String(); reason != "" {
			return reason
		}
	}
	if st.Progress != "" {
		return st.Progress
	}
	return "task reported an error without a reason"
}

// Run submits one operation and awaits it. Task failure and timeout are
// returned as *Error.
func (p *Poller) Run(ctx context.Context, family, function string, params catalyst.Params, ok Predicate) (Outcome, error) {
	id, err := p.Submit(ctx, family, function, params)
	if err != nil {
		return Outcome{}, err
	}
	out, err := p.Await(ctx, id, ok)
	if p.journal != nil {
		p.journal.TaskFinished(ctx, family, function, out)
	}
	if err != nil {
		return out, err
	}

	ev := log.Info()
	if !out.Succeeded() {
		ev = log.Error()
	}
	ev.Str("family", family).
		Str("function", function).
		Str("task_id", id).
		Str("state", out.State.String()).
		Dur("elapsed", out.Elapsed).
		Msg("Task finished")

	return out, out.Err()
}

// RunChunked submits items in chunks of at most size, one task at a time.
// It stops at the first chunk that does not succeed.
func RunChunked[T any](ctx context.Context, p *Poller, family, function string, items []T, size int, params func([]T) catalyst.Params, ok Predicate) ([]Outcome, error) {
	var outcomes []Outcome
	for _, chunk := range Chunks(items, size) {
		out, err := p.Run(ctx, family, function, params(chunk), ok)
		outcomes = append(outcomes, out)
		if err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// Chunks splits items into consecutive slices of at most size elements.
func Chunks[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}
