// Package partition implements the faceted partition crawler core: it decides,
// for every fetched search result, whether the result fits the walkable page
// window, must be split along one of the service's facets, or has to be
// abandoned with its size recorded as a loss.
//
// Nothing in this package performs I/O. The host engine fetches pages, calls
// Partitioner.Evaluate on the result and acts on the returned Decision.
package partition

import (
	"fmt"
	"strings"
)

// Assignment is one facet value chosen on the path from the root query.
type Assignment struct {
	Facet string // Facet group name, e.g. "Регион"
	Value string // Option label, e.g. "Москва"
}

// Query describes a search request: the URL that fetches its first page plus
// the facet values already assigned on the way down from the root.
// A Query is never mutated; With returns a new value.
type Query struct {
	endpoint    string
	assignments []Assignment
}

// NewQuery returns a root query with no facet assignments.
func NewQuery(endpoint string) Query {
	return Query{endpoint: endpoint}
}

// Endpoint returns the URL of the first result page of the query.
func (q Query) Endpoint() string {
	return q.endpoint
}

// Assignments returns a copy of the facet values assigned to the query, in the
// order they were chosen.
func (q Query) Assignments() []Assignment {
	out := make([]Assignment, len(q.assignments))
	copy(out, q.assignments)
	return out
}

// Value returns the value assigned to facet, if any.
func (q Query) Value(facet string) (string, bool) {
	for _, a := range q.assignments {
		if a.Facet == facet {
			return a.Value, true
		}
	}
	return "", false
}

// With returns the child query restricted by option of facet. The option link
// becomes the child's endpoint.
func (q Query) With(facet string, option FacetOption) Query {
	assignments := make([]Assignment, len(q.assignments), len(q.assignments)+1)
	copy(assignments, q.assignments)
	assignments = append(assignments, Assignment{Facet: facet, Value: option.Label})
	return Query{endpoint: option.Link, assignments: assignments}
}

// String renders the query as "endpoint [facet=value, ...]".
func (q Query) String() string {
	if len(q.assignments) == 0 {
		return q.endpoint
	}
	parts := make([]string, 0, len(q.assignments))
	for _, a := range q.assignments {
		parts = append(parts, fmt.Sprintf("%s=%s", a.Facet, a.Value))
	}
	return fmt.Sprintf("%s [%s]", q.endpoint, strings.Join(parts, ", "))
}
