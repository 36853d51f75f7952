package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// State is a position in the task lifecycle.
type State int

const (
	StateSubmitted State = iota
	StatePolling
	StateSucceeded
	StateFailed
	StateTimedOut
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateSubmitted:
		return "submitted"
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateTimedOut
}

// Status is one observation of a controller task.
type Status struct {
	ID            string
	Progress      string
	IsError       bool
	FailureReason string
	EndTime       int64
	Data          string
	// AdditionalStatusURL points at a result file, e.g. an export archive.
	AdditionalStatusURL string
}

func parseStatus(r gjson.Result) Status {
	return Status{
		ID:            r.Get("id").String(),
		Progress:      r.Get("progress").String(),
		IsError:       r.Get("isError").Bool(),
		FailureReason: r.Get("failureReason").String(),
		EndTime:       r.Get("endTime").Int(),
		Data:          r.Get("data").String(),

		AdditionalStatusURL: r.Get("additionalStatusURL").String(),
	}
}

// Predicate decides whether a non-error status means success.
type Predicate func(Status) bool

// ProgressContains succeeds once the progress text contains s.
func ProgressContains(s string) Predicate {
	return func(st Status) bool {
		return strings.Contains(st.Progress, s)
	}
}

// Completed succeeds once the task reports an end time.
func Completed() Predicate {
	return func(st Status) bool {
		return st.EndTime != 0
	}
}

// Next is the transition function of the poller: given the current state and
// the latest status, it returns the following state.
func Next(s State, st Status, ok Predicate, elapsed, timeout time.Duration) State {
	if s.Terminal() {
		return s
	}
	switch {
	case st.IsError:
		return StateFailed
	case ok(st):
		return StateSucceeded
	case elapsed >= timeout:
		return StateTimedOut
	default:
		return StatePolling
	}
}

// Outcome is the terminal result of awaiting a task.
type Outcome struct {
	TaskID  string
	State   State
	Status  Status
	Reason  string
	Elapsed time.Duration
}

// Succeeded reports whether the task finished successfully.
func (o Outcome) Succeeded() bool { return o.State == StateSucceeded }

// Err converts a non-successful outcome into an error.
func (o Outcome) Err() error {
	switch o.State {
	case StateSucceeded:
		return nil
	case StateTimedOut:
		return &Error{TaskID: o.TaskID, TimedOut: true, Reason: fmt.Sprintf("no terminal status after %s; the controller may still be applying the change", o.Elapsed.Round(time.Second))}
	default:
		return &Error{TaskID: o.TaskID, Reason: o.Reason}
	}
}

// Error is a task that failed or timed out.
type Error struct {
	TaskID   string
	TimedOut bool
	Reason   string
}

func (e *Error) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("task %s timed out: %s", e.TaskID, e.Reason)
	}
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Reason)
}
