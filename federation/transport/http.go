// Package transport provides the concrete executor.Service that
// dispatches operations to a subgraph over HTTP POST.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/n9te9/federation-executor/federation/executor"
	"github.com/n9te9/federation-executor/federation/response"
)

// DefaultHeaderAllowlist is the allowlist used when no header_allowlist
// is configured: the auth header and the request ID. Headers prefixed
// X-Forward- are forwarded in either case.
var DefaultHeaderAllowlist = []string{"Authorization", "X-Request-Id"}

const forwardHeaderPrefix = "X-Forward-"

// HTTPService is an executor.Service that POSTs a GraphQL operation to
// a single subgraph host. The http.Client is supplied by the caller so
// it can be wrapped with otelhttp.NewTransport when tracing is on.
type HTTPService struct {
	name      string
	host      string
	client    *http.Client
	allowlist []string
}

// NewHTTPService builds a Service for one subgraph. allowlist, if nil,
// defaults to DefaultHeaderAllowlist.
func NewHTTPService(name, host string, client *http.Client, allowlist []string) *HTTPService {
	if allowlist == nil {
		allowlist = DefaultHeaderAllowlist
	}
	return &HTTPService{name: name, host: host, client: client, allowlist: allowlist}
}

type graphQLRequestBody struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// SendOperation implements executor.Service.
func (s *HTTPService) SendOperation(ctx context.Context, reqCtx executor.RequestContext, operation string, variables map[string]any) (response.GraphQLResponse, error) {
	body, err := json.Marshal(graphQLRequestBody{Query: operation, Variables: variables})
	if err != nil {
		return response.GraphQLResponse{}, fmt.Errorf("transport: encoding operation for %q: %w", s.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host, bytes.NewReader(body))
	if err != nil {
		return response.GraphQLResponse{}, fmt.Errorf("transport: building request for %q: %w", s.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.forwardHeaders(req, reqCtx.HeaderMap)

	resp, err := s.client.Do(req)
	if err != nil {
		return response.GraphQLResponse{}, fmt.Errorf("transport: calling %q: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return response.GraphQLResponse{}, fmt.Errorf("transport: %q responded with status %d", s.name, resp.StatusCode)
	}

	var out response.GraphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return response.GraphQLResponse{}, fmt.Errorf("transport: decoding response from %q: %w", s.name, err)
	}
	return out, nil
}

func (s *HTTPService) forwardHeaders(req *http.Request, inbound http.Header) {
	for name, values := range inbound {
		if !s.headerAllowed(name) {
			continue
		}
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
}

func (s *HTTPService) headerAllowed(name string) bool {
	canonical := http.CanonicalHeaderKey(name)
	if strings.HasPrefix(canonical, forwardHeaderPrefix) {
		return true
	}
	for _, allowed := range s.allowlist {
		if strings.EqualFold(name, allowed) {
			return true
		}
	}
	return false
}
