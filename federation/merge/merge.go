// Package merge implements the deep-merge contract used to stitch
// partial subgraph responses into the shared response tree.
package merge

import "reflect"

// Deep merges source into target and returns the merged value. Target
// objects (including objects nested in target arrays) are updated in place;
// arrays are rebuilt as new slices, so callers must always use the returned
// value as the new target.
//
// Rules, applied in order:
//  1. a nil source is a no-op: target is returned unchanged.
//  2. a source deep-equal to target is a no-op.
//  3. two objects merge key by key: a key absent from target, or mapped to
//     null in target, is assigned outright; a key present and composite on
//     both sides recurses; otherwise the source value wins.
//  4. two arrays zip by index. Elements recurse pairwise; the longer side's
//     tail is preserved (target's extra elements survive, source's extra
//     elements are appended).
//  5. anything else (scalars, type mismatches) is an overwrite: source wins.
func Deep(target, source any) any {
	if source == nil {
		return target
	}
	if reflect.DeepEqual(target, source) {
		return target
	}

	switch src := source.(type) {
	case map[string]any:
		tgt, ok := target.(map[string]any)
		if !ok {
			return source
		}
		for k, v := range src {
			existing, has := tgt[k]
			if !has || existing == nil {
				tgt[k] = v
				continue
			}
			if isComposite(existing) && isComposite(v) {
				tgt[k] = Deep(existing, v)
			} else {
				tgt[k] = v
			}
		}
		return tgt

	case []any:
		tgt, ok := target.([]any)
		if !ok {
			return source
		}
		merged := make([]any, 0, max(len(tgt), len(src)))
		for i, sv := range src {
			if i < len(tgt) {
				merged = append(merged, Deep(tgt[i], sv))
			} else {
				merged = append(merged, sv)
			}
		}
		if len(tgt) > len(src) {
			merged = append(merged, tgt[len(src):]...)
		}
		return merged

	default:
		return source
	}
}

func isComposite(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}
