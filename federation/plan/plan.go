// Package plan holds the data model for a federated query plan: the
// tree of Sequence/Parallel/Fetch/Flatten nodes the executor walks.
// Plan values are pure data — the planner that produces them (turning
// a GraphQL query plus a composed schema into a plan tree) lives
// outside this module; plan only describes the shape it must produce.
package plan

// Wildcard is the ResponsePath token meaning "every element of the
// array at this position".
const Wildcard = "@"

// ResponsePath is an ordered sequence of path elements: field names,
// or Wildcard denoting array expansion.
type ResponsePath []string

// QueryPlan is the root of a federated request: an optional plan node.
// A nil Node means the request is introspection-only, which this
// executor does not support.
type QueryPlan struct {
	Node Node
}

// Node is a plan tree node: Sequence, Parallel, *FetchNode or
// *FlattenNode. The marker method keeps the variant set closed to this
// package.
type Node interface {
	planNode()
}

// Sequence executes its children in order; child k's write-back
// happens-before child k+1 starts.
type Sequence struct {
	Nodes []Node
}

func (Sequence) planNode() {}

// Parallel executes its children concurrently. The planner guarantees
// siblings do not write into overlapping response sub-paths.
type Parallel struct {
	Nodes []Node
}

func (Parallel) planNode() {}

// FetchNode calls a single subgraph. Requires is present iff this is
// an _entities fetch, in which case its SelectionSet names the fields
// to extract from the current data to build each representation.
type FetchNode struct {
	ServiceName    string
	VariableUsages []string
	Requires       SelectionSet
	Operation      string
}

func (*FetchNode) planNode() {}

// FlattenNode narrows the response at Path, runs Node (which must be a
// *FetchNode with Requires set) against that narrowed view, and merges
// the result back in place.
type FlattenNode struct {
	Path ResponsePath
	Node Node
}

func (*FlattenNode) planNode() {}

// Selection is a single entry in a SelectionSet: a Field or an
// InlineFragment.
type Selection interface {
	isSelection()
}

// SelectionSet is an ordered sequence of Selections.
type SelectionSet []Selection

// Field selects a single response key, renamed by Alias when set.
type Field struct {
	Alias      string
	Name       string
	Selections SelectionSet
}

func (Field) isSelection() {}

// ResponseName is the key this field occupies in a JSON response:
// Alias when present, otherwise Name.
func (f Field) ResponseName() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// InlineFragment conditionally extracts Selections when the source
// value's __typename matches TypeCondition. A fragment with no
// TypeCondition is never recursed into — see the executor's
// representation extractor.
type InlineFragment struct {
	TypeCondition string
	Selections    SelectionSet
}

func (InlineFragment) isSelection() {}
