package triplestore

import "context"

// Store is the subset of triple store operations the janitor needs.
// *Client implements it against a live repository; MockStore in memory.
type Store interface {
	// ListGraphs returns one page of named graphs ordered by IRI.
	ListGraphs(ctx context.Context, q GraphCountQuery) ([]NamedGraph, error)

	// ListOntologies returns one page of ontology records ordered by graph IRI.
	ListOntologies(ctx context.Context, q OntologyListQuery) ([]OntologyRecord, error)

	// DropGraph clears a named graph. Dropping an absent graph succeeds.
	DropGraph(ctx context.Context, graph string) error
}

var _ Store = (*Client)(nil)
