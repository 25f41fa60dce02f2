package executor

import (
	"context"
	"net/http"

	"github.com/n9te9/federation-executor/federation/response"
)

// GraphQLRequest is the inbound operation the gateway received.
// OperationName survives unmarshaling but is never inspected by the
// executor — multi-operation documents are a declared non-goal — it
// threads through for subgraphs and transports that want it.
type GraphQLRequest struct {
	Query         string
	OperationName string
	Variables     map[string]any
}

// RequestContext is everything a Service needs beyond the operation
// text and variables: the original inbound request and the subset of
// its headers approved for forwarding.
type RequestContext struct {
	GraphQLRequest GraphQLRequest
	HeaderMap      http.Header
}

// Service dispatches a single GraphQL operation against one subgraph.
// Implementations own their own transport, pooling and retries; the
// walker only ever sees the Response or the transport error.
type Service interface {
	SendOperation(ctx context.Context, reqCtx RequestContext, operation string, variables map[string]any) (response.GraphQLResponse, error)
}

// ServiceMap resolves a FetchNode's ServiceName to the Service that
// owns it. A name absent from the map is a fatal error for the plan.
type ServiceMap map[string]Service

type requestHeaderContextKey struct{}

// SetRequestHeaderToContext attaches the inbound request's headers to
// ctx so a Service implementation can apply its own forwarding
// allowlist without threading http.Header through every call site.
func SetRequestHeaderToContext(ctx context.Context, header http.Header) context.Context {
	return context.WithValue(ctx, requestHeaderContextKey{}, header)
}

// GetRequestHeaderFromContext retrieves headers attached by
// SetRequestHeaderToContext, or nil if none were attached.
func GetRequestHeaderFromContext(ctx context.Context) http.Header {
	h, ok := ctx.Value(requestHeaderContextKey{}).(http.Header)
	if !ok {
		return nil
	}
	return h
}
