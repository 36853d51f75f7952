package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"maps"

	"github.com/tidwall/gjson"

	"github.com/dokzlo13/sdactl/internal/catalyst"
)

// Page sizes used by the controller's offset-paginated endpoints.
const (
	PoolPageSize    = 25
	HandoffPageSize = 500
)

// Pages iterates over every element of an offset-paginated list function.
// Offsets are 1-based. Iteration ends on an empty or short page; an expired
// context is yielded as an error rather than treated as the end of the list.
func Pages(ctx context.Context, exec catalyst.Executor, family, function string, params catalyst.Params, pageSize int) iter.Seq2[gjson.Result, error] {
	return func(yield func(gjson.Result, error) bool) {
		for offset := 1; ; offset += pageSize {
			if err := ctx.Err(); err != nil {
				yield(gjson.Result{}, fmt.Errorf("%s.%s: pagination stopped at offset %d: %w", family, function, offset, err))
				return
			}

			p := maps.Clone(params)
			if p == nil {
				p = catalyst.Params{}
			}
			p["offset"] = offset
			p["limit"] = pageSize

			resp, err := exec.Exec(ctx, family, function, p)
			if err != nil {
				yield(gjson.Result{}, err)
				return
			}
			items := resp.Items()
			for _, it := range items {
				if !yield(it, nil) {
					return
				}
			}
			if len(items) < pageSize {
				return
			}
		}
	}
}

// Collect drains a page iterator into a slice.
func Collect(seq iter.Seq2[gjson.Result, error]) ([]gjson.Result, error) {
	var out []gjson.Result
	for it, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// CollectAs drains a page iterator, decoding every element into T.
func CollectAs[T any](seq iter.Seq2[gjson.Result, error]) ([]T, error) {
	var out []T
	for it, err := range seq {
		if err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(it.Raw), &v); err != nil {
			return nil, fmt.Errorf("decode page item: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Find returns the first element matching match.
func Find(seq iter.Seq2[gjson.Result, error], match func(gjson.Result) bool) (gjson.Result, bool, error) {
	for it, err := range seq {
		if err != nil {
			return gjson.Result{}, false, err
		}
		if match(it) {
			return it, true, nil
		}
	}
	return gjson.Result{}, false, nil
}
