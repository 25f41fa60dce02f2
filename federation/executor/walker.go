// Package executor implements the query-plan walker: it traverses a
// plan tree (Sequence, Parallel, Fetch, Flatten), dispatches fetches
// through the Service capability, and stitches partial responses into
// a single response tree via path-directed merging and representation
// extraction.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/n9te9/federation-executor/federation/graph"
	"github.com/n9te9/federation-executor/federation/merge"
	"github.com/n9te9/federation-executor/federation/plan"
	"github.com/n9te9/federation-executor/federation/response"
)

var tracer = otel.Tracer("github.com/n9te9/federation-executor/federation/executor")

// ErrIntrospectionUnsupported is returned when a plan carries no root
// node; this executor only walks a concrete plan tree.
var ErrIntrospectionUnsupported = errors.New("executor: introspection not supported")

// ErrReservedVariable is returned when the caller's variables already
// contain a "representations" key: that name is reserved for the
// entities fetch this executor builds internally.
var ErrReservedVariable = errors.New(`executor: "representations" is a reserved variable name`)

// FetchError wraps a transport failure with the subgraph it came
// from, so a caller at the HTTP boundary can stamp an error response
// with the originating service without parsing the message text.
type FetchError struct {
	ServiceName string
	Err         error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("executor: fetch to %q failed: %v", e.ServiceName, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Option configures a walk started by ExecuteQueryPlan.
type Option func(*walker)

// WithDebugChecks turns on the debug-build checks spec.md §9
// describes: Parallel siblings must not declare overlapping Flatten
// write paths. Violations are logged, not fatal — the executor still
// trusts the planner's guarantee in production.
func WithDebugChecks(enabled bool) Option {
	return func(w *walker) { w.debugChecks = enabled }
}

// WithRegistry supplies the subgraph registry a debug-build walk uses
// to validate that an entities fetch's requires selection set names
// every field the target subgraph declared via @key, per
// graph.Registry.ValidateRequires. It has no effect unless
// WithDebugChecks(true) is also given.
func WithRegistry(r *graph.Registry) Option {
	return func(w *walker) { w.registry = r }
}

// walker owns the single response tree a plan walk produces. Every
// node borrows exclusive access to it only for the duration of a
// synchronous merge; no lock is ever held across a Service call.
type walker struct {
	services    ServiceMap
	reqCtx      RequestContext
	mu          sync.RWMutex
	resp        *response.GraphQLResponse
	debugChecks bool
	registry    *graph.Registry
}

// ExecuteQueryPlan is the walker's entry point: it creates an empty
// response, walks the plan from its root, and returns the accreted
// response or the first fatal error encountered. A plan with no root
// node is introspection-only, which this executor does not support.
func ExecuteQueryPlan(ctx context.Context, q *plan.QueryPlan, services ServiceMap, reqCtx RequestContext, opts ...Option) (response.GraphQLResponse, error) {
	if q == nil || q.Node == nil {
		return response.GraphQLResponse{}, ErrIntrospectionUnsupported
	}

	w := &walker{
		services: services,
		reqCtx:   reqCtx,
		resp:     &response.GraphQLResponse{},
	}
	for _, opt := range opts {
		opt(w)
	}

	slog.Debug("executing query plan", "root_node", fmt.Sprintf("%T", q.Node))

	if err := w.executeNode(ctx, q.Node); err != nil {
		return response.GraphQLResponse{}, err
	}
	return *w.resp, nil
}

// executeNode dispatches by plan node variant. Sequence children run
// one after another, each happening-before the next; Parallel children
// run concurrently and the first error cancels the rest.
func (w *walker) executeNode(ctx context.Context, node plan.Node) error {
	switch n := node.(type) {
	case plan.Sequence:
		for _, child := range n.Nodes {
			if err := w.executeNode(ctx, child); err != nil {
				return err
			}
		}
		return nil

	case plan.Parallel:
		if w.debugChecks {
			if err := checkNoOverlappingWrites(n.Nodes); err != nil {
				slog.Warn("parallel siblings declare overlapping write paths", "error", err)
			}
		}
		eg, egCtx := errgroup.WithContext(ctx)
		for _, child := range n.Nodes {
			child := child
			eg.Go(func() error {
				return w.executeNode(egCtx, child)
			})
		}
		return eg.Wait()

	case *plan.FetchNode:
		return w.executeFetch(ctx, n)

	case *plan.FlattenNode:
		return w.executeFlatten(ctx, n)

	default:
		return fmt.Errorf("executor: unknown plan node type %T", node)
	}
}

// executeFetch calls a subgraph directly and merges its response into
// the shared response. It is a fatal plan-shape error for a root-level
// fetch to carry requires: representations only ever apply to a
// Flatten's inner fetch.
func (w *walker) executeFetch(ctx context.Context, f *plan.FetchNode) error {
	if f.Requires != nil {
		return fmt.Errorf("executor: root-level fetch to %q must not set requires", f.ServiceName)
	}

	svc, ok := w.services[f.ServiceName]
	if !ok {
		return fmt.Errorf("executor: no service registered for %q", f.ServiceName)
	}

	ctx, span := tracer.Start(ctx, "executor.fetch", trace.WithAttributes(
		attribute.String("federation.service_name", f.ServiceName),
	))
	defer span.End()

	variables := w.buildVariables(f.VariableUsages)
	resp, err := svc.SendOperation(ctx, w.reqCtx, f.Operation, variables)
	if err != nil {
		span.RecordError(err)
		return &FetchError{ServiceName: f.ServiceName, Err: err}
	}

	w.mu.Lock()
	w.resp.Merge(resp)
	w.mu.Unlock()
	return nil
}

// executeFlatten narrows the shared response at flatten.Path into a
// standalone inner response, runs the wrapped entities fetch against
// it, then merges the enriched entities back in place.
func (w *walker) executeFlatten(ctx context.Context, fl *plan.FlattenNode) error {
	fetch, ok := fl.Node.(*plan.FetchNode)
	if !ok {
		return fmt.Errorf("executor: flatten node at path %v must wrap a fetch, got %T", fl.Path, fl.Node)
	}
	if fetch.Requires == nil {
		return fmt.Errorf("executor: flatten node at path %v wraps a fetch with no requires", fl.Path)
	}

	ctx, span := tracer.Start(ctx, "executor.flatten", trace.WithAttributes(
		attribute.String("federation.service_name", fetch.ServiceName),
		attribute.StringSlice("federation.path", []string(fl.Path)),
	))
	defer span.End()

	w.mu.RLock()
	sliced, err := sliceImmutable(w.resp.Data, fl.Path)
	w.mu.RUnlock()
	if err != nil {
		span.RecordError(err)
		return err
	}

	inner := &response.GraphQLResponse{Data: sliced}
	if err := w.executeEntitiesFetch(ctx, fetch, inner); err != nil {
		span.RecordError(err)
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mergeFlattenResult(fl.Path, inner)
}

// mergeFlattenResult pairs the inner response's entities with the
// mutable leaf handles reached by flatten.Path, 1:1 by position, and
// deep-merges each entity into its handle. A Null handle (the path
// ran through a field absent from the response) is skipped.
func (w *walker) mergeFlattenResult(path plan.ResponsePath, inner *response.GraphQLResponse) error {
	get := func() any { return w.resp.Data }
	set := func(v any) { w.resp.Data = v }

	leaves, err := sliceMutable(get, set, path)
	if err != nil {
		return err
	}

	var entities []any
	switch d := inner.Data.(type) {
	case nil:
		entities = nil
	case []any:
		entities = d
	default:
		entities = []any{d}
	}

	for i, leaf := range leaves {
		if leaf.Null || i >= len(entities) {
			continue
		}
		leaf.Set(merge.Deep(leaf.Get(), entities[i]))
	}

	w.resp.MergeErrors(inner.Errors)
	return nil
}

// executeEntitiesFetch runs a Flatten's inner fetch: it extracts a
// representation per source entity, sends the _entities operation, and
// merges the results back into resp (the Flatten's inner, sliced
// response) positionally via representations_to_entity.
func (w *walker) executeEntitiesFetch(ctx context.Context, f *plan.FetchNode, resp *response.GraphQLResponse) error {
	if f.Requires == nil {
		return errors.New("executor: entities fetch requires a requires selection set")
	}

	variables := w.buildVariables(f.VariableUsages)
	if _, collides := variables["representations"]; collides {
		return ErrReservedVariable
	}

	svc, ok := w.services[f.ServiceName]
	if !ok {
		return fmt.Errorf("executor: no service registered for %q", f.ServiceName)
	}

	representations, reprToEntity, err := buildRepresentations(resp.Data, f.Requires)
	if err != nil {
		return err
	}
	variables["representations"] = representations

	if w.debugChecks && w.registry != nil {
		w.checkRequiresAgainstKeys(f.ServiceName, f.Requires, representations)
	}

	entitiesResp, err := svc.SendOperation(ctx, w.reqCtx, f.Operation, variables)
	if err != nil {
		return &FetchError{ServiceName: f.ServiceName, Err: err}
	}

	entities, ok := extractEntitiesArray(entitiesResp.Data)
	if !ok {
		return fmt.Errorf("executor: entities fetch response from %q is missing data._entities", f.ServiceName)
	}
	if len(entities) < len(reprToEntity) {
		return fmt.Errorf("executor: entities fetch from %q returned %d entities, expected at least %d", f.ServiceName, len(entities), len(reprToEntity))
	}

	slog.Debug("merging entities fetch result",
		"service_name", f.ServiceName,
		"entity_count", len(entities),
		"representations_to_entity", reprToEntity,
	)

	mergeEntities(resp, reprToEntity, entities)
	resp.MergeErrors(entitiesResp.Errors)
	return nil
}

// checkRequiresAgainstKeys is the debug-build guard spec.md §9
// describes applied to entity representations: for every distinct
// __typename actually produced, it checks requires against the owning
// subgraph's declared @key fields via graph.Registry.ValidateRequires.
// A static check over f.Requires alone cannot know which concrete type
// a heterogeneous Flatten targets, so this runs once per __typename
// seen at runtime instead. Violations are logged, not fatal.
func (w *walker) checkRequiresAgainstKeys(serviceName string, requires plan.SelectionSet, representations []any) {
	checked := make(map[string]bool)
	for _, repr := range representations {
		m, ok := repr.(map[string]any)
		if !ok {
			continue
		}
		typename, _ := m["__typename"].(string)
		if typename == "" || checked[typename] {
			continue
		}
		checked[typename] = true

		if err := w.registry.ValidateRequires(serviceName, typename, requires); err != nil {
			slog.Warn("entities fetch requires does not satisfy declared keys", "error", err)
		}
	}
}

// buildRepresentations extracts one representation per element of
// data (an array of entities, or a single entity object treated as
// index 0) and records, for every representation actually included,
// which source index it came from.
func buildRepresentations(data any, requires plan.SelectionSet) (representations []any, reprToEntity []int, err error) {
	switch d := data.(type) {
	case nil:
		return nil, nil, nil

	case []any:
		for idx, elem := range d {
			repr, ok := buildRepresentation(elem, requires)
			if !ok {
				continue
			}
			representations = append(representations, repr)
			reprToEntity = append(reprToEntity, idx)
		}
		return representations, reprToEntity, nil

	case map[string]any:
		repr, ok := buildRepresentation(d, requires)
		if !ok {
			return nil, nil, nil
		}
		return []any{repr}, []int{0}, nil

	default:
		return nil, nil, fmt.Errorf("executor: entities fetch over non-object, non-array data of type %T", d)
	}
}

// mergeEntities deep-merges each received entity into the source entity
// its representation was built from, per representations_to_entity.
func mergeEntities(resp *response.GraphQLResponse, reprToEntity []int, entities []any) {
	switch d := resp.Data.(type) {
	case []any:
		for i, entityIdx := range reprToEntity {
			d[entityIdx] = merge.Deep(d[entityIdx], entities[i])
		}
	case map[string]any:
		for i := range reprToEntity {
			resp.Data = merge.Deep(resp.Data, entities[i])
		}
	}
}

// extractEntitiesArray reads data._entities as an array, reporting
// false if the shape doesn't match.
func extractEntitiesArray(data any) ([]any, bool) {
	m, ok := data.(map[string]any)
	if !ok {
		return nil, false
	}
	v, has := m["_entities"]
	if !has {
		return nil, false
	}
	arr, ok := v.([]any)
	return arr, ok
}

// buildVariables pulls each named variable from the request's
// variables, silently skipping any name the caller didn't supply.
func (w *walker) buildVariables(usages []string) map[string]any {
	vars := make(map[string]any, len(usages))
	src := w.reqCtx.GraphQLRequest.Variables
	for _, name := range usages {
		if v, ok := src[name]; ok {
			vars[name] = v
		}
	}
	return vars
}

// checkNoOverlappingWrites is the debug-mode guard spec.md §9
// describes: no Parallel sibling's Flatten write path may equal, or be
// a prefix of, another's. It never runs outside WithDebugChecks.
func checkNoOverlappingWrites(nodes []plan.Node) error {
	var paths []plan.ResponsePath
	for _, n := range nodes {
		if fl, ok := n.(*plan.FlattenNode); ok {
			paths = append(paths, fl.Path)
		}
	}
	for i := 0; i < len(paths); i++ {
		for j := i + 1; j < len(paths); j++ {
			if pathPrefixOverlap(paths[i], paths[j]) {
				return fmt.Errorf("overlapping write paths %v and %v", paths[i], paths[j])
			}
		}
	}
	return nil
}

func pathPrefixOverlap(a, b plan.ResponsePath) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
