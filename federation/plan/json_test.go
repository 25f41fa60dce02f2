package plan_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/n9te9/federation-executor/federation/plan"
)

func TestQueryPlan_JSONRoundTrip(t *testing.T) {
	original := &plan.QueryPlan{Node: plan.Sequence{Nodes: []plan.Node{
		&plan.FetchNode{ServiceName: "books", Operation: "{top{__typename isbn}}"},
		&plan.FlattenNode{
			Path: plan.ResponsePath{"top", plan.Wildcard},
			Node: &plan.FetchNode{
				ServiceName:    "details",
				VariableUsages: []string{"locale"},
				Requires: plan.SelectionSet{
					plan.Field{Name: "__typename"},
					plan.Field{Alias: "bookIsbn", Name: "isbn"},
					plan.InlineFragment{TypeCondition: "Book", Selections: plan.SelectionSet{
						plan.Field{Name: "title"},
					}},
				},
				Operation: "query($representations:[_Any!]!){_entities(representations:$representations){...on Book{title}}}",
			},
		},
	}}}

	encoded, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded plan.QueryPlan
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if diff := cmp.Diff(original, &decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryPlan_UnmarshalJSON_NilNodeIsIntrospectionOnly(t *testing.T) {
	var q plan.QueryPlan
	if err := json.Unmarshal([]byte(`{}`), &q); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if q.Node != nil {
		t.Fatalf("Node = %v, want nil", q.Node)
	}
}

func TestQueryPlan_UnmarshalJSON_UnknownKindIsError(t *testing.T) {
	var q plan.QueryPlan
	err := json.Unmarshal([]byte(`{"node":{"kind":"bogus"}}`), &q)
	if err == nil {
		t.Fatalf("expected an error for an unknown node kind")
	}
}
