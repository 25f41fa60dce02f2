package plan

import (
	"encoding/json"
	"fmt"
)

// The JSON wire format lets an external planner hand a plan to this
// executor as data, per spec.md's "the executor consumes plans as
// data" scoping: every Node and Selection variant is tagged with a
// "kind" discriminator so the otherwise-closed interface can still
// round-trip through JSON.

type nodeEnvelope struct {
	Kind           string            `json:"kind"`
	Nodes          []json.RawMessage `json:"nodes,omitempty"`
	ServiceName    string            `json:"serviceName,omitempty"`
	VariableUsages []string          `json:"variableUsages,omitempty"`
	Requires       []json.RawMessage `json:"requires,omitempty"`
	Operation      string            `json:"operation,omitempty"`
	Path           []string          `json:"path,omitempty"`
	Node           json.RawMessage   `json:"node,omitempty"`
}

type selectionEnvelope struct {
	Kind          string            `json:"kind"`
	Alias         string            `json:"alias,omitempty"`
	Name          string            `json:"name,omitempty"`
	Selections    []json.RawMessage `json:"selections,omitempty"`
	TypeCondition string            `json:"typeCondition,omitempty"`
}

// UnmarshalJSON decodes a QueryPlan from its wire envelope. A missing
// or null "node" key leaves Node nil (introspection-only).
func (q *QueryPlan) UnmarshalJSON(data []byte) error {
	var wrapper struct {
		Node json.RawMessage `json:"node"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	if len(wrapper.Node) == 0 || string(wrapper.Node) == "null" {
		q.Node = nil
		return nil
	}
	node, err := decodeNode(wrapper.Node)
	if err != nil {
		return err
	}
	q.Node = node
	return nil
}

// MarshalJSON encodes a QueryPlan back to its wire envelope.
func (q QueryPlan) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	if q.Node != nil {
		encoded, err := encodeNode(q.Node)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}
	return json.Marshal(struct {
		Node json.RawMessage `json:"node,omitempty"`
	}{Node: raw})
}

func decodeNode(raw json.RawMessage) (Node, error) {
	var env nodeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("plan: decoding node: %w", err)
	}

	switch env.Kind {
	case "sequence":
		nodes, err := decodeNodes(env.Nodes)
		if err != nil {
			return nil, err
		}
		return Sequence{Nodes: nodes}, nil

	case "parallel":
		nodes, err := decodeNodes(env.Nodes)
		if err != nil {
			return nil, err
		}
		return Parallel{Nodes: nodes}, nil

	case "fetch":
		requires, err := decodeSelectionSet(env.Requires)
		if err != nil {
			return nil, err
		}
		return &FetchNode{
			ServiceName:    env.ServiceName,
			VariableUsages: env.VariableUsages,
			Requires:       requires,
			Operation:      env.Operation,
		}, nil

	case "flatten":
		if len(env.Node) == 0 {
			return nil, fmt.Errorf("plan: flatten node missing inner node")
		}
		inner, err := decodeNode(env.Node)
		if err != nil {
			return nil, err
		}
		return &FlattenNode{Path: ResponsePath(env.Path), Node: inner}, nil

	default:
		return nil, fmt.Errorf("plan: unknown node kind %q", env.Kind)
	}
}

func decodeNodes(raws []json.RawMessage) ([]Node, error) {
	if raws == nil {
		return nil, nil
	}
	nodes := make([]Node, len(raws))
	for i, raw := range raws {
		n, err := decodeNode(raw)
		if err != nil {
			return nil, err
		}
		nodes[i] = n
	}
	return nodes, nil
}

func decodeSelectionSet(raws []json.RawMessage) (SelectionSet, error) {
	if raws == nil {
		return nil, nil
	}
	set := make(SelectionSet, len(raws))
	for i, raw := range raws {
		sel, err := decodeSelection(raw)
		if err != nil {
			return nil, err
		}
		set[i] = sel
	}
	return set, nil
}

func decodeSelection(raw json.RawMessage) (Selection, error) {
	var env selectionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("plan: decoding selection: %w", err)
	}

	switch env.Kind {
	case "field":
		selections, err := decodeSelectionSet(env.Selections)
		if err != nil {
			return nil, err
		}
		return Field{Alias: env.Alias, Name: env.Name, Selections: selections}, nil

	case "fragment":
		selections, err := decodeSelectionSet(env.Selections)
		if err != nil {
			return nil, err
		}
		return InlineFragment{TypeCondition: env.TypeCondition, Selections: selections}, nil

	default:
		return nil, fmt.Errorf("plan: unknown selection kind %q", env.Kind)
	}
}

func encodeNode(node Node) (json.RawMessage, error) {
	switch n := node.(type) {
	case Sequence:
		nodes, err := encodeNodes(n.Nodes)
		if err != nil {
			return nil, err
		}
		return json.Marshal(nodeEnvelope{Kind: "sequence", Nodes: nodes})

	case Parallel:
		nodes, err := encodeNodes(n.Nodes)
		if err != nil {
			return nil, err
		}
		return json.Marshal(nodeEnvelope{Kind: "parallel", Nodes: nodes})

	case *FetchNode:
		requires, err := encodeSelectionSet(n.Requires)
		if err != nil {
			return nil, err
		}
		return json.Marshal(nodeEnvelope{
			Kind:           "fetch",
			ServiceName:    n.ServiceName,
			VariableUsages: n.VariableUsages,
			Requires:       requires,
			Operation:      n.Operation,
		})

	case *FlattenNode:
		inner, err := encodeNode(n.Node)
		if err != nil {
			return nil, err
		}
		return json.Marshal(nodeEnvelope{Kind: "flatten", Path: []string(n.Path), Node: inner})

	default:
		return nil, fmt.Errorf("plan: unknown node type %T", node)
	}
}

func encodeNodes(nodes []Node) ([]json.RawMessage, error) {
	if nodes == nil {
		return nil, nil
	}
	out := make([]json.RawMessage, len(nodes))
	for i, n := range nodes {
		raw, err := encodeNode(n)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

func encodeSelectionSet(set SelectionSet) ([]json.RawMessage, error) {
	if set == nil {
		return nil, nil
	}
	out := make([]json.RawMessage, len(set))
	for i, sel := range set {
		raw, err := encodeSelection(sel)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

func encodeSelection(sel Selection) (json.RawMessage, error) {
	switch s := sel.(type) {
	case Field:
		selections, err := encodeSelectionSet(s.Selections)
		if err != nil {
			return nil, err
		}
		return json.Marshal(selectionEnvelope{Kind: "field", Alias: s.Alias, Name: s.Name, Selections: selections})

	case InlineFragment:
		selections, err := encodeSelectionSet(s.Selections)
		if err != nil {
			return nil, err
		}
		return json.Marshal(selectionEnvelope{Kind: "fragment", TypeCondition: s.TypeCondition, Selections: selections})

	default:
		return nil, fmt.Errorf("plan: unknown selection type %T", sel)
	}
}
