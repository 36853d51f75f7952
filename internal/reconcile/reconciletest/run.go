// Package reconciletest builds reconcile runs against a fake controller.
package reconciletest

import (
	"context"
	"time"

	"github.com/dokzlo13/sdactl/internal/catalyst"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
	"github.com/dokzlo13/sdactl/internal/resolve"
	"github.com/dokzlo13/sdactl/internal/task"
)

// InstantClock never blocks; Sleep only advances Now.
type InstantClock struct {
	now time.Time
}

func (c *InstantClock) Now() time.Time { return c.now }

func (c *InstantClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	return nil
}

// NewRun returns a run for state with a fresh recorder and name cache.
func NewRun(exec catalyst.Executor, state playbook.State) *reconcile.Run {
	return &reconcile.Run{
		ID:    "test-run",
		State: state,
		Exec:  exec,
		Tasks: task.NewPoller(exec, task.Config{
			Interval: time.Second,
			Timeout:  10 * time.Second,
			Clock:    &InstantClock{now: time.Unix(1700000000, 0)},
		}),
		Names:  resolve.New(exec, time.Minute),
		Record: reconcile.NewRecorder(),
	}
}

// Status returns the recorded status of one object, or "".
func Status(run *reconcile.Run, scope string, kind reconcile.Kind, object string) string {
	m := run.Record.Result().Msg[scope][kind][object]
	if m == nil {
		return ""
	}
	return m.Status
}

// Validation returns the recorded verification leaf of one object, or "".
func Validation(run *reconcile.Run, scope string, kind reconcile.Kind, object string) string {
	m := run.Record.Result().Msg[scope][kind][object]
	if m == nil {
		return ""
	}
	return m.Validation
}
