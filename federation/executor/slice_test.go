package executor

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/n9te9/federation-executor/federation/plan"
)

func TestSliceImmutable_EmptyPathReturnsValue(t *testing.T) {
	value := map[string]any{"a": 1}
	got, err := sliceImmutable(value, nil)
	if err != nil {
		t.Fatalf("sliceImmutable() error = %v", err)
	}
	if diff := cmp.Diff(value, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSliceImmutable_FieldDescent(t *testing.T) {
	value := map[string]any{"product": map[string]any{"__typename": "Book", "isbn": "9"}}
	got, err := sliceImmutable(value, plan.ResponsePath{"product"})
	if err != nil {
		t.Fatalf("sliceImmutable() error = %v", err)
	}
	want := map[string]any{"__typename": "Book", "isbn": "9"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSliceImmutable_MissingKeyYieldsNull(t *testing.T) {
	value := map[string]any{"a": 1}
	got, err := sliceImmutable(value, plan.ResponsePath{"missing"})
	if err != nil {
		t.Fatalf("sliceImmutable() error = %v", err)
	}
	if got != nil {
		t.Fatalf("sliceImmutable() = %v, want nil", got)
	}
}

func TestSliceImmutable_WildcardOverArray(t *testing.T) {
	value := map[string]any{
		"top": []any{
			map[string]any{"__typename": "Book", "isbn": "1"},
			map[string]any{"__typename": "Book", "isbn": "2"},
		},
	}
	got, err := sliceImmutable(value, plan.ResponsePath{"top", plan.Wildcard})
	if err != nil {
		t.Fatalf("sliceImmutable() error = %v", err)
	}
	want := []any{
		map[string]any{"__typename": "Book", "isbn": "1"},
		map[string]any{"__typename": "Book", "isbn": "2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSliceImmutable_WildcardOverNonArrayIsFatal(t *testing.T) {
	value := map[string]any{"top": map[string]any{"not": "an array"}}
	_, err := sliceImmutable(value, plan.ResponsePath{"top", plan.Wildcard})
	if err == nil {
		t.Fatalf("expected error for wildcard over non-array value")
	}
}

func TestSliceMutable_MatchesImmutableOrderAndLength(t *testing.T) {
	value := any(map[string]any{
		"top": []any{
			map[string]any{"isbn": "1"},
			map[string]any{"isbn": "2"},
			map[string]any{"isbn": "3"},
		},
	})
	path := plan.ResponsePath{"top", plan.Wildcard}

	immutable, err := sliceImmutable(value, path)
	if err != nil {
		t.Fatalf("sliceImmutable() error = %v", err)
	}
	immutableArr, ok := immutable.([]any)
	if !ok {
		t.Fatalf("sliceImmutable() = %T, want []any", immutable)
	}

	get := func() any { return value }
	set := func(v any) { value = v }
	leaves, err := sliceMutable(get, set, path)
	if err != nil {
		t.Fatalf("sliceMutable() error = %v", err)
	}

	if len(leaves) != len(immutableArr) {
		t.Fatalf("sliceMutable() len = %d, sliceImmutable() len = %d", len(leaves), len(immutableArr))
	}
	for i, leaf := range leaves {
		if diff := cmp.Diff(immutableArr[i], leaf.Get()); diff != "" {
			t.Fatalf("leaf %d mismatch (-immutable +mutable):\n%s", i, diff)
		}
	}
}

func TestSliceMutable_WriteBack(t *testing.T) {
	value := any(map[string]any{
		"top": []any{
			map[string]any{"isbn": "1"},
			map[string]any{"isbn": "2"},
		},
	})

	get := func() any { return value }
	set := func(v any) { value = v }
	leaves, err := sliceMutable(get, set, plan.ResponsePath{"top", plan.Wildcard})
	if err != nil {
		t.Fatalf("sliceMutable() error = %v", err)
	}

	leaves[0].Set(map[string]any{"isbn": "1", "title": "T1"})
	leaves[1].Set(map[string]any{"isbn": "2", "title": "T2"})

	want := map[string]any{
		"top": []any{
			map[string]any{"isbn": "1", "title": "T1"},
			map[string]any{"isbn": "2", "title": "T2"},
		},
	}
	if diff := cmp.Diff(want, value); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSliceMutable_MissingFieldIsNullHandle(t *testing.T) {
	value := any(map[string]any{"a": 1})
	get := func() any { return value }
	set := func(v any) { value = v }

	leaves, err := sliceMutable(get, set, plan.ResponsePath{"missing"})
	if err != nil {
		t.Fatalf("sliceMutable() error = %v", err)
	}
	if len(leaves) != 1 || !leaves[0].Null {
		t.Fatalf("expected a single Null leaf, got %+v", leaves)
	}
}
