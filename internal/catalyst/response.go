package catalyst

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Params carries the named arguments of an API function.
type Params map[string]any

// Response is the raw body of an API call with gjson accessors.
type Response struct {
	Raw      []byte
	Filename string // set from Content-Disposition on file downloads
}

// NewResponse builds a Response from any JSON-marshalable value.
func NewResponse(v any) (*Response, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Response{Raw: raw}, nil
}

// Get returns the value at the gjson path.
func (r *Response) Get(path string) gjson.Result {
	if r == nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(r.Raw, path)
}

// Items returns the elements of the "response" field. A single object is
// returned as a one-element list, a missing field as nil.
func (r *Response) Items() []gjson.Result {
	res := r.Get("response")
	switch {
	case !res.Exists() || res.Type == gjson.Null:
		return nil
	case res.IsArray():
		return res.Array()
	default:
		return []gjson.Result{res}
	}
}

// Decode unmarshals the value at path into v.
func (r *Response) Decode(path string, v any) error {
	res := r.Get(path)
	if !res.Exists() {
		return fmt.Errorf("catalyst: response has no %q field", path)
	}
	return json.Unmarshal([]byte(res.Raw), v)
}

// DecodeItems unmarshals every element of the "response" list into a slice of T.
func DecodeItems[T any](r *Response) ([]T, error) {
	items := r.Items()
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal([]byte(item.Raw), &v); err != nil {
			return nil, fmt.Errorf("catalyst: decode item: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// TaskID returns the asynchronous task id carried by a write response.
func (r *Response) TaskID() string {
	if id := r.Get("response.taskId").String(); id != "" {
		return id
	}
	return r.Get("taskId").String()
}
