// Package response holds the GraphQL response value the executor
// accretes as it walks a query plan: a JSON data tree plus a list of
// structured errors, both built up through merge operations only.
package response

import (
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/n9te9/federation-executor/federation/merge"
)

// GraphQLResponse is the shared response tree a plan walk produces.
// Data starts nil and accretes via MergeData; Errors accretes by
// concatenation. Both are mutated only through the methods below or,
// for Data, through the executor's path-directed write-back of
// deep-merged values — never by ad-hoc assignment once a walk has
// started.
type GraphQLResponse struct {
	Data   any            `json:"data,omitempty"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// GraphQLError is gqlparser's own error shape: Message, Path
// (ast.PathName / ast.PathIndex elements) and Extensions are all a
// plan walk ever sets; Locations and Rule go unused here since nothing
// in this module parses source text.
type GraphQLError = gqlerror.Error

// Merge merges both Data and Errors from other into r.
func (r *GraphQLResponse) Merge(other GraphQLResponse) {
	r.MergeData(other.Data)
	r.MergeErrors(other.Errors)
}

// MergeData deep-merges value into r.Data, following the deep-merge
// contract: a nil value is a no-op; objects merge key by key; arrays
// zip by index with tail preservation; anything else overwrites.
func (r *GraphQLResponse) MergeData(value any) {
	r.Data = merge.Deep(r.Data, value)
}

// MergeErrors appends errs to r.Errors. If r has none yet, it simply
// takes errs as its own slice.
func (r *GraphQLResponse) MergeErrors(errs []GraphQLError) {
	if len(errs) == 0 {
		return
	}
	if r.Errors == nil {
		r.Errors = errs
		return
	}
	r.Errors = append(r.Errors, errs...)
}

// Data and Errors both carry json:",omitempty" tags: a nil Data (the
// zero value, and what merge.Deep(nil, nil) returns) and an empty or
// nil Errors both elide from the wire, matching the standard GraphQL
// response shape subgraphs and clients expect.
