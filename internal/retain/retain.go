// Package retain combines desired fields with server-observed objects so that
// merged-state updates preserve what the operator did not mention.
package retain

import (
	"slices"

	cp "github.com/felix-kaestner/copy"
)

// Overlay returns a deep copy of have with apply run against it. The observed
// object is never mutated.
func Overlay[T any](have T, apply func(*T)) T {
	out := cp.Deep(have)
	apply(&out)
	return out
}

// Value returns *want when specified, otherwise have.
func Value[V any](want *V, have V) V {
	if want != nil {
		return *want
	}
	return have
}

// Pointer returns want when specified, otherwise a copy of have.
func Pointer[V any](want, have *V) *V {
	if want != nil {
		v := *want
		return &v
	}
	if have != nil {
		v := *have
		return &v
	}
	return nil
}

// String returns want when non-empty, otherwise have.
func String(want, have string) string {
	if want != "" {
		return want
	}
	return have
}

// Union returns have followed by the elements of want it lacks, in order.
func Union[E comparable](have, want []E) []E {
	out := slices.Clone(have)
	for _, w := range want {
		if !slices.Contains(out, w) {
			out = append(out, w)
		}
	}
	return out
}

// Subtract returns have without the elements of remove.
func Subtract[E comparable](have, remove []E) []E {
	var out []E
	for _, h := range have {
		if !slices.Contains(remove, h) {
			out = append(out, h)
		}
	}
	return out
}

// Intersect returns the elements of have that also appear in other.
func Intersect[E comparable](have, other []E) []E {
	var out []E
	for _, h := range have {
		if slices.Contains(other, h) {
			out = append(out, h)
		}
	}
	return out
}

// UnionBy merges want into have. Two elements match when they share any key;
// matched pairs are combined with merge, unmatched desired elements are
// appended. Observed elements are deep-copied before merging.
func UnionBy[E any](have, want []E, keys func(E) []string, merge func(have, want E) E) []E {
	out := cp.Deep(have)
	for _, w := range want {
		if i := indexByKeys(out, w, keys); i >= 0 {
			out[i] = merge(out[i], w)
			continue
		}
		out = append(out, w)
	}
	return out
}

// SubtractBy removes from have every element sharing a key with one of
// remove. When trim is non-nil a matched element is passed to it instead and
// dropped only if trim reports it as empty.
func SubtractBy[E any](have, remove []E, keys func(E) []string, trim func(have, remove E) (E, bool)) []E {
	out := cp.Deep(have)
	for _, r := range remove {
		i := indexByKeys(out, r, keys)
		if i < 0 {
			continue
		}
		if trim != nil {
			if kept, empty := trim(out[i], r); !empty {
				out[i] = kept
				continue
			}
		}
		out = slices.Delete(out, i, i+1)
	}
	return out
}

// Matches reports whether any element of have shares a key with e.
func Matches[E any](have []E, e E, keys func(E) []string) bool {
	return indexByKeys(have, e, keys) >= 0
}

func indexByKeys[E any](items []E, e E, keys func(E) []string) int {
	want := keys(e)
	for i, it := range items {
		for _, k := range keys(it) {
			if slices.Contains(want, k) {
				return i
			}
		}
	}
	return -1
}
