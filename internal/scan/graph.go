package scan

import (
	"context"
	"fmt"

	"github.com/dray-io/storejanitor/internal/triplestore"
)

// GraphCursor pages named graphs in IRI order. Each page resumes after the
// last IRI seen, so graphs dropped between pages do not shift the window.
type GraphCursor struct {
	store    triplestore.Store
	contains string
	limit    int
	after    string
	done     bool
}

// NewGraphCursor creates a cursor over graphs whose IRI contains the
// substring (all graphs when empty).
func NewGraphCursor(store triplestore.Store, contains string, limit int) *GraphCursor {
	return &GraphCursor{store: store, contains: contains, limit: batchSize(limit)}
}

// Next returns the next page of graphs.
func (c *GraphCursor) Next(ctx context.Context) ([]triplestore.NamedGraph, error) {
	if c.done {
		return nil, nil
	}
	graphs, err := c.store.ListGraphs(ctx, triplestore.GraphCountQuery{
		Contains: c.contains,
		After:    c.after,
		Limit:    c.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list graphs after %q: %w", c.after, err)
	}
	if len(graphs) > 0 {
		c.after = graphs[len(graphs)-1].IRI
	}
	c.done = len(graphs) < c.limit
	return graphs, nil
}

// Done reports whether every page was read.
func (c *GraphCursor) Done() bool { return c.done }

// Reset restarts from the first graph.
func (c *GraphCursor) Reset() {
	c.after = ""
	c.done = false
}

// OntologyCursor pages ontology records in (graph, ontology) order.
type OntologyCursor struct {
	store     triplestore.Store
	contains  string
	limit     int
	lastGraph string
	lastOnto  string
	done      bool
}

// NewOntologyCursor creates a cursor over ontology records.
func NewOntologyCursor(store triplestore.Store, contains string, limit int) *OntologyCursor {
	return &OntologyCursor{store: store, contains: contains, limit: batchSize(limit)}
}

// Next returns the next page of ontology records.
func (c *OntologyCursor) Next(ctx context.Context) ([]triplestore.OntologyRecord, error) {
	if c.done {
		return nil, nil
	}
	recs, err := c.store.ListOntologies(ctx, triplestore.OntologyListQuery{
		Contains:      c.contains,
		AfterGraph:    c.lastGraph,
		AfterOntology: c.lastOnto,
		Limit:         c.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list ontologies: %w", err)
	}
	if n := len(recs); n > 0 {
		c.lastGraph = recs[n-1].GraphIRI
		c.lastOnto = recs[n-1].IRI
	}
	c.done = len(recs) < c.limit
	return recs, nil
}

// Done reports whether every page was read.
func (c *OntologyCursor) Done() bool { return c.done }

// Reset restarts from the first record.
func (c *OntologyCursor) Reset() {
	c.lastGraph = ""
	c.lastOnto = ""
	c.done = false
}

var (
	_ Cursor[triplestore.NamedGraph]     = (*GraphCursor)(nil)
	_ Cursor[triplestore.OntologyRecord] = (*OntologyCursor)(nil)
)
