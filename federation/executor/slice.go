package executor

import (
	"fmt"
	"slices"

	"github.com/n9te9/federation-executor/federation/plan"
)

// Leaf is a mutable handle into a position inside a JSON value reached
// by a path slice. A Leaf with Null set to true corresponds to an
// absent field along the path — callers must skip it during
// write-back, never dereference Get/Set.
type Leaf struct {
	Null bool
	Get  func() any
	Set  func(any)
}

// sliceImmutable carves an owned sub-value out of value at path,
// following spec's path-directed slicing rules: empty path returns
// the value itself; a field name descends (a missing key yields a
// Null slice and stops descent, the redesigned behavior spec.md
// specifies in place of the original's "return the parent" rule); the
// "@" wildcard maps the tail over every array element; when the rest of
// the path holds another "@", the per-element results are flattened into
// one list, in the same order sliceMutable yields its leaves.
func sliceImmutable(value any, path plan.ResponsePath) (any, error) {
	if len(path) == 0 {
		return cloneValue(value), nil
	}

	head, rest := path[0], path[1:]

	if head == plan.Wildcard {
		arr, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("executor: wildcard path element applied to non-array value of type %T", value)
		}
		flattenNext := slices.Contains(rest, plan.Wildcard)
		out := make([]any, 0, len(arr))
		for _, elem := range arr {
			sub, err := sliceImmutable(elem, rest)
			if err != nil {
				return nil, err
			}
			if subArr, ok := sub.([]any); flattenNext && ok {
				out = append(out, subArr...)
			} else {
				out = append(out, sub)
			}
		}
		return out, nil
	}

	if value == nil {
		return nil, nil
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("executor: field path element %q applied to non-object value of type %T", head, value)
	}
	fieldValue, has := obj[head]
	if !has {
		return nil, nil
	}
	return sliceImmutable(fieldValue, rest)
}

// sliceMutable returns a flat, ordered list of Leaf handles reached by
// walking path over the value behind get/set. It shares the same
// traversal rules as sliceImmutable so the two stay in lockstep: same
// order, same length, same missing-field/Null behavior.
func sliceMutable(get func() any, set func(any), path plan.ResponsePath) ([]*Leaf, error) {
	if len(path) == 0 {
		return []*Leaf{{Get: get, Set: set}}, nil
	}

	head, rest := path[0], path[1:]

	if head == plan.Wildcard {
		v := get()
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("executor: wildcard path element applied to non-array value of type %T", v)
		}
		var out []*Leaf
		for i := range arr {
			idx := i
			elemGet := func() any {
				cur := get().([]any)
				return cur[idx]
			}
			elemSet := func(v any) {
				cur := get().([]any)
				cur[idx] = v
			}
			leaves, err := sliceMutable(elemGet, elemSet, rest)
			if err != nil {
				return nil, err
			}
			out = append(out, leaves...)
		}
		return out, nil
	}

	v := get()
	if v == nil {
		return []*Leaf{{Null: true}}, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("executor: field path element %q applied to non-object value of type %T", head, v)
	}
	if _, has := obj[head]; !has {
		return []*Leaf{{Null: true}}, nil
	}
	fieldGet := func() any {
		cur := get().(map[string]any)
		return cur[head]
	}
	fieldSet := func(v any) {
		cur := get().(map[string]any)
		cur[head] = v
	}
	return sliceMutable(fieldGet, fieldSet, rest)
}

// cloneValue deep-copies a JSON value so the immutable slice's output
// is independent of the tree it was carved from.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[k] = cloneValue(sub)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			out[i] = cloneValue(sub)
		}
		return out
	default:
		return val
	}
}
