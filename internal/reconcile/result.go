package reconcile

import "sort"

// Object statuses reported under msg.
const (
	StatusCreated   = "created"
	StatusUpdated   = "updated"
	StatusDeleted   = "deleted"
	StatusUnchanged = "no changes required"
	StatusAbsent    = "not present"
	StatusDone      = "completed"
	StatusFailed    = "failed"
)

// ObjectMsg is the per-object leaf of an item's msg tree.
type ObjectMsg struct {
	Status     string `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
	Validation string `json:"Validation,omitempty"`
}

// ItemResult is the outcome of one config item.
type ItemResult struct {
	Changed bool `json:"changed"`
	Failed  bool `json:"failed,omitempty"`
	// Msg is keyed by scope (usually the fabric name), then kind, then object.
	Msg      map[string]map[Kind]map[string]*ObjectMsg `json:"msg"`
	Response []any                                     `json:"response"`
}

// Result is the outcome of a run.
type Result struct {
	Changed  bool          `json:"changed"`
	Failed   bool          `json:"failed"`
	Msg      string        `json:"msg"`
	Response []*ItemResult `json:"response"`
}

// Recorder accumulates one item's result.
type Recorder struct {
	item *ItemResult
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{item: &ItemResult{
		Msg:      make(map[string]map[Kind]map[string]*ObjectMsg),
		Response: []any{},
	}}
}

// Result returns the accumulated item result.
func (r *Recorder) Result() *ItemResult { return r.item }

func (r *Recorder) object(scope string, kind Kind, object string) *ObjectMsg {
	kinds, ok := r.item.Msg[scope]
	if !ok {
		kinds = make(map[Kind]map[string]*ObjectMsg)
		r.item.Msg[scope] = kinds
	}
	objs, ok := kinds[kind]
	if !ok {
		objs = make(map[string]*ObjectMsg)
		kinds[kind] = objs
	}
	m, ok := objs[object]
	if !ok {
		m = &ObjectMsg{}
		objs[object] = m
	}
	return m
}

// Status sets an object's status. Created, updated, deleted and completed
// mark the item changed.
func (r *Recorder) Status(scope string, kind Kind, object, status string) {
	r.object(scope, kind, object).Status = status
	switch status {
	case StatusCreated, StatusUpdated, StatusDeleted, StatusDone:
		r.item.Changed = true
	}
}

// Fail records an object failure.
func (r *Recorder) Fail(scope string, kind Kind, object string, err error) {
	m := r.object(scope, kind, object)
	m.Status = StatusFailed
	m.Error = err.Error()
	r.item.Failed = true
}

// Verified marks an object as matching after verification.
func (r *Recorder) Verified(scope string, kind Kind, object string) {
	r.object(scope, kind, object).Validation = "Success"
}

// Sent appends a payload that was written to the controller.
func (r *Recorder) Sent(payload any) {
	r.item.Response = append(r.item.Response, payload)
}

// Objects lists the recorded objects of a kind under scope, sorted.
func (r *Recorder) Objects(scope string, kind Kind) []string {
	var out []string
	for name := range r.item.Msg[scope][kind] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type recordedError struct{ error }

func (e *recordedError) Unwrap() error { return e.error }

// Fail records err against an object and returns it.
func (r *Run) Fail(scope string, kind Kind, object string, err error) error {
	r.Record.Fail(scope, kind, object, err)
	return &recordedError{err}
}
