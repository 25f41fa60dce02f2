package executor

import "github.com/n9te9/federation-executor/federation/plan"

// extractSelectionSet is execute_selection_set: it projects source
// down to the fields named by selections, producing the minimal value
// sent as one element of an _entities fetch's representations list.
//
// A null source yields an empty object. Fields are read from source by
// response name (alias when present, else name) and copied verbatim,
// except when the value is an array or object and the field carries
// sub-selections, in which case extraction recurses. InlineFragments
// without a type_condition are skipped, not recursed — current
// behavior, reproduced deliberately rather than fixed.
func extractSelectionSet(source any, selections plan.SelectionSet) map[string]any {
	result := map[string]any{}
	if source == nil {
		return result
	}
	srcMap, ok := source.(map[string]any)
	if !ok {
		return result
	}

	for _, sel := range selections {
		switch s := sel.(type) {
		case plan.Field:
			extractField(result, srcMap, s)
		case plan.InlineFragment:
			extractInlineFragment(result, srcMap, s)
		}
	}
	return result
}

func extractField(result, srcMap map[string]any, f plan.Field) {
	key := f.ResponseName()
	val, has := srcMap[key]
	if !has {
		return
	}

	switch v := val.(type) {
	case []any:
		if len(f.Selections) == 0 {
			result[key] = append([]any(nil), v...)
			return
		}
		extracted := make([]any, len(v))
		for i, elem := range v {
			extracted[i] = extractSelectionSet(elem, f.Selections)
		}
		result[key] = extracted
	case map[string]any:
		if len(f.Selections) == 0 {
			result[key] = v
			return
		}
		result[key] = extractSelectionSet(v, f.Selections)
	default:
		result[key] = val
	}
}

func extractInlineFragment(result, srcMap map[string]any, frag plan.InlineFragment) {
	if frag.TypeCondition == "" {
		return
	}
	typename, _ := srcMap["__typename"].(string)
	if typename != frag.TypeCondition {
		return
	}
	for k, v := range extractSelectionSet(srcMap, frag.Selections) {
		result[k] = v
	}
}

// buildRepresentation extracts a representation from source and
// reports whether it qualifies for inclusion in an _entities request:
// an element is included only if it is an object (it always is, here)
// and carries a __typename key. Callers that drop an element must not
// record a representations_to_entity mapping entry for it.
func buildRepresentation(source any, requires plan.SelectionSet) (map[string]any, bool) {
	extracted := extractSelectionSet(source, requires)
	if _, has := extracted["__typename"]; !has {
		return nil, false
	}
	return extracted, true
}
