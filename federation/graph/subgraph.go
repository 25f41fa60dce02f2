// Package graph holds the subgraph registry: parsed SDL, per-type
// @key declarations, and a debug-mode check that a FlattenNode's
// requires selection set actually satisfies the owning subgraph's
// declared keys before its entities fetch is dispatched.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/n9te9/goliteql/schema"

	"github.com/n9te9/federation-executor/federation/plan"
)

// SubGraph is one registered backend service: its host, its SDL, and
// the @key fields it declared per entity type.
type SubGraph struct {
	Name   string
	Host   string
	SDL    string
	Schema *schema.Schema

	keyFields map[string][]string
}

// NewSubGraph parses sdl and extracts every type's @key fields.
func NewSubGraph(name, host string, sdl []byte) (*SubGraph, error) {
	parsed, err := schema.NewParser(schema.NewLexer()).Parse(sdl)
	if err != nil {
		return nil, fmt.Errorf("graph: parsing SDL for %q: %w", name, err)
	}

	return &SubGraph{
		Name:      name,
		Host:      host,
		SDL:       string(sdl),
		Schema:    parsed,
		keyFields: extractKeyFields(parsed),
	}, nil
}

// KeyFields returns the field names typeName declared via @key, or
// nil if the subgraph doesn't own (or extend) that type.
func (sg *SubGraph) KeyFields(typeName string) []string {
	return sg.keyFields[typeName]
}

func extractKeyFields(s *schema.Schema) map[string][]string {
	out := make(map[string][]string)
	for _, ext := range s.Extends {
		td, ok := ext.(*schema.TypeDefinition)
		if !ok {
			continue
		}
		if fields := keyDirectiveFields(schema.Directives(td.Directives)); len(fields) > 0 {
			out[string(td.Name)] = fields
		}
	}
	for _, td := range s.Types {
		if _, exists := out[string(td.Name)]; exists {
			continue
		}
		if fields := keyDirectiveFields(schema.Directives(td.Directives)); len(fields) > 0 {
			out[string(td.Name)] = fields
		}
	}
	return out
}

func keyDirectiveFields(directives schema.Directives) []string {
	key := directives.Get([]byte("key"))
	if key == nil {
		return nil
	}
	for _, arg := range key.Arguments {
		if bytes.Equal(arg.Name, []byte("fields")) {
			v := bytes.Trim(arg.Value, `"`)
			return strings.Fields(string(v))
		}
	}
	return nil
}

// Registry holds every subgraph the gateway knows about, keyed by
// name. It is safe for concurrent reads and writes.
type Registry struct {
	mu        sync.RWMutex
	subgraphs map[string]*SubGraph
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{subgraphs: make(map[string]*SubGraph)}
}

// Register adds or replaces a subgraph.
func (r *Registry) Register(sg *SubGraph) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subgraphs[sg.Name] = sg
}

// Get returns the subgraph registered under name.
func (r *Registry) Get(name string) (*SubGraph, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sg, ok := r.subgraphs[name]
	return sg, ok
}

// All returns every registered subgraph, in no particular order.
func (r *Registry) All() []*SubGraph {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*SubGraph, 0, len(r.subgraphs))
	for _, sg := range r.subgraphs {
		out = append(out, sg)
	}
	return out
}

// ValidateRequires is the debug-build guard spec.md §9 describes for
// Parallel write safety, applied here to Flatten/entities fetches: it
// checks that requires names every field serviceName declared via
// @key for typeName, catching planner/subgraph drift before dispatch
// rather than failing deep inside a merge. A subgraph with no declared
// keys for typeName is not validated (federation allows owning types
// with no explicit @key, e.g. value types).
func (r *Registry) ValidateRequires(serviceName, typeName string, requires plan.SelectionSet) error {
	sg, ok := r.Get(serviceName)
	if !ok {
		return fmt.Errorf("graph: unknown subgraph %q", serviceName)
	}

	declared := sg.KeyFields(typeName)
	if len(declared) == 0 {
		return nil
	}

	have := make(map[string]struct{}, len(requires))
	for _, sel := range requires {
		if f, ok := sel.(plan.Field); ok {
			have[f.Name] = struct{}{}
		}
	}

	for _, key := range declared {
		if _, ok := have[key]; !ok {
			return fmt.Errorf("graph: flatten requires for %q on %q is missing declared @key field %q", typeName, serviceName, key)
		}
	}
	return nil
}

// serviceSDLQuery is the federation introspection query every subgraph
// is expected to answer on its own GraphQL endpoint.
const serviceSDLQuery = `{"query":"{_service{sdl}}"}`

type serviceSDLResponse struct {
	Data struct {
		Service struct {
			SDL string `json:"sdl"`
		} `json:"_service"`
	} `json:"data"`
}

// FetchSDL retrieves a subgraph's SDL by POSTing { _service { sdl } }
// to its GraphQL endpoint, retrying transient failures up to attempts
// times.
func FetchSDL(ctx context.Context, client *http.Client, endpoint string, attempts int) ([]byte, error) {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		sdl, err := doFetchSDL(ctx, client, endpoint)
		if err == nil {
			return sdl, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("graph: sdl fetch from %s failed after %d attempts: %w", endpoint, attempts, lastErr)
}

func doFetchSDL(ctx context.Context, client *http.Client, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(serviceSDLQuery))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sdl fetch from %s: status %d", endpoint, resp.StatusCode)
	}

	var svcResp serviceSDLResponse
	if err := json.NewDecoder(resp.Body).Decode(&svcResp); err != nil {
		return nil, fmt.Errorf("sdl fetch from %s: decoding response: %w", endpoint, err)
	}
	if svcResp.Data.Service.SDL == "" {
		return nil, fmt.Errorf("sdl fetch from %s: empty sdl in response", endpoint)
	}

	return []byte(svcResp.Data.Service.SDL), nil
}
