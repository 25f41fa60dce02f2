package graph_test

import (
	"testing"

	"github.com/n9te9/federation-executor/federation/graph"
	"github.com/n9te9/federation-executor/federation/plan"
)

// newTestSubGraph builds a SubGraph with fixed key fields, bypassing
// SDL parsing, so Registry/ValidateRequires can be tested without a
// live schema parser.
func newTestSubGraph(name string, keyFields map[string][]string) *graph.SubGraph {
	sg := &graph.SubGraph{Name: name, Host: "http://" + name}
	graph.SetKeyFieldsForTest(sg, keyFields)
	return sg
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := graph.NewRegistry()
	sg := newTestSubGraph("books", nil)
	r.Register(sg)

	got, ok := r.Get("books")
	if !ok || got != sg {
		t.Fatalf("Get(%q) = %v, %v", "books", got, ok)
	}

	if _, ok := r.Get("missing"); ok {
		t.Fatalf("Get(missing) should report ok=false")
	}
}

func TestRegistry_All(t *testing.T) {
	r := graph.NewRegistry()
	r.Register(newTestSubGraph("books", nil))
	r.Register(newTestSubGraph("reviews", nil))

	all := r.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d subgraphs, want 2", len(all))
	}
}

func TestRegistry_ValidateRequires_Satisfied(t *testing.T) {
	r := graph.NewRegistry()
	r.Register(newTestSubGraph("books", map[string][]string{"Book": {"isbn"}}))

	requires := plan.SelectionSet{
		plan.Field{Name: "__typename"},
		plan.Field{Name: "isbn"},
	}
	if err := r.ValidateRequires("books", "Book", requires); err != nil {
		t.Fatalf("ValidateRequires() error = %v", err)
	}
}

func TestRegistry_ValidateRequires_MissingDeclaredKey(t *testing.T) {
	r := graph.NewRegistry()
	r.Register(newTestSubGraph("books", map[string][]string{"Book": {"isbn"}}))

	requires := plan.SelectionSet{plan.Field{Name: "__typename"}}
	if err := r.ValidateRequires("books", "Book", requires); err == nil {
		t.Fatalf("expected an error when requires omits a declared @key field")
	}
}

func TestRegistry_ValidateRequires_UnknownSubgraph(t *testing.T) {
	r := graph.NewRegistry()
	if err := r.ValidateRequires("ghost", "Book", nil); err == nil {
		t.Fatalf("expected an error for an unregistered subgraph")
	}
}

func TestRegistry_ValidateRequires_NoDeclaredKeysSkipsCheck(t *testing.T) {
	r := graph.NewRegistry()
	r.Register(newTestSubGraph("books", nil))

	if err := r.ValidateRequires("books", "Book", plan.SelectionSet{}); err != nil {
		t.Fatalf("ValidateRequires() error = %v, want nil for a type with no declared keys", err)
	}
}
