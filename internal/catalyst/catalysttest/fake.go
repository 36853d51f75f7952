// Package catalysttest provides an in-memory Catalyst Center for tests.
package catalysttest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/dokzlo13/sdactl/internal/catalyst"
)

// HandlerFunc answers one API function. The returned value is marshaled as
// the response body unless it already is a *catalyst.Response.
type HandlerFunc func(params catalyst.Params) (any, error)

// Call is one recorded Exec invocation.
type Call struct {
	Family   string
	Function string
	Params   catalyst.Params
}

// Key returns family.function.
func (c Call) Key() string { return c.Family + "." + c.Function }

// IsWrite reports whether the call mutates controller state.
func (c Call) IsWrite() bool {
	if c.Family == "task" || c.Family == "file" {
		return false
	}
	return !strings.HasPrefix(c.Function, "get_")
}

// Fake is a catalyst.Executor backed by handlers. Write calls without an
// explicit task response are answered with a task id whose status succeeds
// immediately.
type Fake struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	calls    []Call
	tasks    map[string]map[string]any
	failures map[string]string
	extras   map[string]map[string]any
	nextTask int

	// Progress is reported by successful tasks.
	Progress string
}

var _ catalyst.Executor = (*Fake)(nil)

// New creates an empty fake controller.
func New() *Fake {
	return &Fake{
		handlers: make(map[string]HandlerFunc),
		tasks:    make(map[string]map[string]any),
		failures: make(map[string]string),
		extras:   make(map[string]map[string]any),
		Progress: "Synced TASK_PROVISION completed successfully",
	}
}

// Handle registers fn for "family.function".
func (f *Fake) Handle(key string, fn HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[key] = fn
}

// Respond registers a static response body for "family.function".
func (f *Fake) Respond(key string, body any) {
	f.Handle(key, func(catalyst.Params) (any, error) { return body, nil })
}

// FailTask makes the next task submitted by "family.function" report isError.
func (f *Fake) FailTask(key, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[key] = reason
}

// TaskFields adds fields to the status of every task submitted by
// "family.function".
func (f *Fake) TaskFields(key string, fields map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extras[key] = fields
}

// Calls returns all recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Writes returns the recorded calls that mutate controller state.
func (f *Fake) Writes() []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.IsWrite() {
			out = append(out, c)
		}
	}
	return out
}

// WriteKeys returns family.function for every write call, in order.
func (f *Fake) WriteKeys() []string {
	var out []string
	for _, c := range f.Writes() {
		out = append(out, c.Key())
	}
	return out
}

// ResetCalls forgets recorded calls but keeps handlers and data.
func (f *Fake) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Exec implements catalyst.Executor.
func (f *Fake) Exec(ctx context.Context, family, function string, params catalyst.Params) (*catalyst.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	call := Call{Family: family, Function: function, Params: params}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	h, ok := f.handlers[call.Key()]
	f.mu.Unlock()

	if family == "task" && !ok {
		return f.taskStatus(function, params)
	}

	var body any
	if ok {
		var err error
		body, err = h(params)
		if err != nil {
			return nil, err
		}
	} else if !call.IsWrite() {
		return nil, &catalyst.APIError{Family: family, Function: function, Params: params, StatusCode: 404, Body: "no handler"}
	}

	if r, isResp := body.(*catalyst.Response); isResp {
		return r, nil
	}
	if call.IsWrite() && body == nil {
		body = map[string]any{"response": map[string]any{"taskId": f.submitTask(call.Key())}, "version": "1.0"}
	}
	return catalyst.NewResponse(body)
}

func (f *Fake) submitTask(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTask++
	id := fmt.Sprintf("task-%d", f.nextTask)
	status := map[string]any{
		"id":       id,
		"progress": f.Progress,
		"isError":  false,
		"endTime":  1700000000000 + f.nextTask,
	}
	for k, v := range f.extras[key] {
		status[k] = v
	}
	if reason, failed := f.failures[key]; failed {
		delete(f.failures, key)
		status["isError"] = true
		status["progress"] = "failed"
		status["failureReason"] = reason
	}
	f.tasks[id] = status
	return id
}

func (f *Fake) taskStatus(function string, params catalyst.Params) (*catalyst.Response, error) {
	id := fmt.Sprint(params["taskId"])
	if function != "get_task_by_id" {
		id = fmt.Sprint(params["id"])
	}
	f.mu.Lock()
	status, ok := f.tasks[id]
	f.mu.Unlock()
	if !ok {
		return nil, &catalyst.APIError{Family: "task", Function: function, Params: params, StatusCode: 404, Body: "unknown task"}
	}
	if function == "get_task_details_by_id" {
		return catalyst.NewResponse(map[string]any{"response": map[string]any{"failureReason": status["failureReason"]}})
	}
	return catalyst.NewResponse(map[string]any{"response": status})
}

// toMaps converts any payload into generic JSON objects.
func toMaps(v any) ([]map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var one map[string]any
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []map[string]any{one}, nil
}
