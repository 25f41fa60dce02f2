package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/n9te9/federation-executor/federation/executor"
	"github.com/n9te9/federation-executor/federation/graph"
	"github.com/n9te9/federation-executor/federation/plan"
	"github.com/n9te9/federation-executor/federation/response"
	"github.com/n9te9/federation-executor/federation/transport"
)

const RequestIDHeader = "X-Request-Id"

// Gateway dispatches pre-built query plans to their subgraphs and
// returns the merged GraphQL response. Unlike the original gateway,
// it does not parse a raw GraphQL document or build the plan itself:
// query planning is an external concern, so the wire format here is
// the plan's own JSON encoding (see federation/plan's codec).
type Gateway struct {
	registry        *graph.Registry
	services        executor.ServiceMap
	hangOverHeaders bool
	debugChecks     bool
}

var _ http.Handler = (*Gateway)(nil)

// New builds a Gateway from settings, constructing one HTTPService per
// configured subgraph and parsing each subgraph's SDL into the
// registry for @key-based Requires validation. A subgraph with
// SchemaFiles reads its SDL from disk; one with none instead fetches
// it from Host via { _service { sdl } }, retried per SDLFetch.
func New(ctx context.Context, opt Option) (*Gateway, error) {
	timeout, err := opt.SubgraphTimeout()
	if err != nil {
		return nil, fmt.Errorf("gateway: parsing subgraph timeout: %w", err)
	}

	client := &http.Client{Timeout: timeout}
	if opt.Opentelemetry.Tracing.Enable {
		client.Transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	sdlFetchAttempts := opt.SDLFetch.Attempts
	if sdlFetchAttempts <= 0 {
		sdlFetchAttempts = 3
	}

	registry := graph.NewRegistry()
	services := executor.ServiceMap{}

	for _, s := range opt.Subgraphs {
		var sdl []byte
		if len(s.SchemaFiles) > 0 {
			for _, f := range s.SchemaFiles {
				src, err := os.ReadFile(f)
				if err != nil {
					return nil, fmt.Errorf("gateway: reading schema file %q for subgraph %q: %w", f, s.Name, err)
				}
				sdl = append(sdl, src...)
			}
		} else {
			fetched, err := graph.FetchSDL(ctx, client, s.Host, sdlFetchAttempts)
			if err != nil {
				return nil, fmt.Errorf("gateway: fetching SDL for subgraph %q: %w", s.Name, err)
			}
			sdl = fetched
		}

		sg, err := graph.NewSubGraph(s.Name, s.Host, sdl)
		if err != nil {
			return nil, fmt.Errorf("gateway: parsing SDL for subgraph %q: %w", s.Name, err)
		}
		registry.Register(sg)

		services[s.Name] = transport.NewHTTPService(s.Name, s.Host, client, opt.HeaderAllowlist)
	}

	return &Gateway{
		registry:        registry,
		services:        services,
		hangOverHeaders: opt.EnableHangOverRequestHeader,
		debugChecks:     opt.EnableDebugChecks,
	}, nil
}

type planRequest struct {
	Plan          plan.QueryPlan `json:"plan"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrors(w, http.StatusBadRequest, requestID, nil, "malformed request body")
		return
	}

	ctx := r.Context()
	reqCtx := executor.RequestContext{
		GraphQLRequest: executor.GraphQLRequest{
			OperationName: req.OperationName,
			Variables:     req.Variables,
		},
	}
	if g.hangOverHeaders {
		ctx = executor.SetRequestHeaderToContext(ctx, r.Header)
		reqCtx.HeaderMap = r.Header
	}

	var opts []executor.Option
	if g.debugChecks {
		opts = append(opts, executor.WithDebugChecks(true), executor.WithRegistry(g.registry))
	}

	resp, err := executor.ExecuteQueryPlan(ctx, &req.Plan, g.services, reqCtx, opts...)
	if err != nil {
		g.writeFatal(w, requestID, err)
		return
	}

	slog.DebugContext(ctx, "query plan executed", slog.String("request_id", requestID))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(RequestIDHeader, requestID)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "encoding response", slog.String("request_id", requestID), slog.Any("error", err))
	}
}

// writeFatal maps a fatal executor error to an HTTP response, stamping
// the originating subgraph name and host in error extensions when the
// failure is a *executor.FetchError.
func (g *Gateway) writeFatal(w http.ResponseWriter, requestID string, err error) {
	ext := map[string]any{"code": "EXECUTION_FAILED"}

	var fetchErr *executor.FetchError
	if errors.As(err, &fetchErr) {
		ext["serviceName"] = fetchErr.ServiceName
		if sg, ok := g.registry.Get(fetchErr.ServiceName); ok {
			ext["serviceUrl"] = sg.Host
		}
	}

	status := http.StatusBadGateway
	switch {
	case errors.Is(err, executor.ErrIntrospectionUnsupported):
		status = http.StatusNotImplemented
		ext["code"] = "INTROSPECTION_UNSUPPORTED"
	case errors.Is(err, executor.ErrReservedVariable):
		status = http.StatusBadRequest
		ext["code"] = "RESERVED_VARIABLE"
	}

	writeErrors(w, status, requestID, ext, err.Error())
}

func writeErrors(w http.ResponseWriter, status int, requestID string, extensions map[string]any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(RequestIDHeader, requestID)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response.GraphQLResponse{
		Errors: []response.GraphQLError{{Message: message, Extensions: extensions}},
	})
}

// Start runs the gateway standalone on the given port without
// graceful shutdown; server.Run builds the production-grade variant.
func (g *Gateway) Start(port int) error {
	fmt.Printf("gateway started on port %d\n", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), g)
}
