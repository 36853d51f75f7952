package reconcile

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// Compare selects how a field's desired and observed values are compared.
type Compare int

const (
	// ScalarEq compares values structurally.
	ScalarEq Compare = iota
	// SetEq compares []string values ignoring order and duplicates.
	SetEq
	// KeyedList compares map[string]any values produced by KeyBy: every
	// desired key must be observed with an equal element.
	KeyedList
)

// Field describes one compared attribute of T.
type Field[T any] struct {
	Name      string
	Compare   Compare
	Immutable bool
	// Get returns the value and whether it is specified. Unspecified desired
	// values are not compared.
	Get func(T) (any, bool)
}

// Mismatch is one differing field.
type Mismatch struct {
	Field     string
	Want      any
	Have      any
	Immutable bool
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: want %v, have %v", m.Field, m.Want, m.Have)
}

// Diff walks fields and returns every specified desired value that the
// observed object does not match.
func Diff[T any](fields []Field[T], want, have T) []Mismatch {
	var out []Mismatch
	for _, f := range fields {
		w, ok := f.Get(want)
		if !ok {
			continue
		}
		h, hok := f.Get(have)
		if !hok {
			if isZero(w) {
				continue
			}
			out = append(out, Mismatch{Field: f.Name, Want: w, Have: nil, Immutable: f.Immutable})
			continue
		}
		if !equal(f.Compare, w, h) {
			out = append(out, Mismatch{Field: f.Name, Want: w, Have: h, Immutable: f.Immutable})
		}
	}
	return out
}

// Mutable filters out immutable mismatches.
func Mutable(ms []Mismatch) []Mismatch {
	var out []Mismatch
	for _, m := range ms {
		if !m.Immutable {
			out = append(out, m)
		}
	}
	return out
}

// CheckImmutable fails when any immutable field would change.
func CheckImmutable(kind Kind, object string, ms []Mismatch) error {
	var bad []string
	for _, m := range ms {
		if m.Immutable {
			bad = append(bad, m.String())
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return &ValidationError{
		Kind:   kind,
		Field:  object,
		Reason: "immutable field cannot be changed: " + strings.Join(bad, "; "),
	}
}

func equal(c Compare, w, h any) bool {
	switch c {
	case SetEq:
		ws, wok := w.([]string)
		hs, hok := h.([]string)
		if !wok || !hok {
			return cmp.Equal(w, h)
		}
		return SameSet(ws, hs)
	case KeyedList:
		wm, wok := w.(map[string]any)
		hm, hok := h.(map[string]any)
		if !wok || !hok {
			return cmp.Equal(w, h)
		}
		for k, wv := range wm {
			hv, ok := hm[k]
			if !ok || !cmp.Equal(wv, hv) {
				return false
			}
		}
		return true
	default:
		return cmp.Equal(w, h)
	}
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}

// SameSet reports whether a and b contain the same strings.
func SameSet(a, b []string) bool {
	return slices.Equal(Normalize(a), Normalize(b))
}

// Normalize returns a sorted, de-duplicated copy of s.
func Normalize(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return slices.Compact(out)
}

// KeyBy indexes items by key for KeyedList comparison.
func KeyBy[E any](items []E, key func(E) string) map[string]any {
	out := make(map[string]any, len(items))
	for _, it := range items {
		out[key(it)] = it
	}
	return out
}

// Ptr adapts an optional pointer field for Field.Get.
func Ptr[V any](p *V) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

// Str adapts an optional string field for Field.Get.
func Str(s string) (any, bool) {
	return s, s != ""
}

// Strings adapts an optional list field for Field.Get.
func Strings(s []string) (any, bool) {
	return s, s != nil
}
