package triplestore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dray-io/storejanitor/internal/classify"
)

// MockStore implements Store in memory for testing.
type MockStore struct {
	mu         sync.Mutex
	graphs     map[string]int
	ontologies []OntologyRecord
	dropErrs   map[string]error
	listErr    error
	drops      []string
	listCalls  int
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		graphs:   make(map[string]int),
		dropErrs: make(map[string]error),
	}
}

// AddGraph adds a named graph with the given triple count.
func (m *MockStore) AddGraph(iri string, triples int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs[iri] = triples
}

// AddOntology adds an ontology record; its graph is created if missing.
// Records sharing GraphIRI and IRI stand for extra label or comment values.
func (m *MockStore) AddOntology(rec OntologyRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.Scope == "" {
		rec.Scope = string(classify.Classify(rec.GraphIRI).Scope())
	}
	m.ontologies = append(m.ontologies, rec)
	if _, ok := m.graphs[rec.GraphIRI]; !ok {
		m.graphs[rec.GraphIRI] = 1
	}
}

// FailDrop makes DropGraph on iri return err.
func (m *MockStore) FailDrop(iri string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropErrs[iri] = err
}

// FailList makes every list call return err.
func (m *MockStore) FailList(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// HasGraph reports whether the graph still exists.
func (m *MockStore) HasGraph(iri string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.graphs[iri]
	return ok
}

// Drops returns every graph DropGraph was called with, in call order.
func (m *MockStore) Drops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.drops...)
}

// ListCalls returns the number of list round trips.
func (m *MockStore) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (m *MockStore) ListGraphs(_ context.Context, q GraphCountQuery) ([]NamedGraph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}

	var graphs []NamedGraph
	for iri, n := range m.graphs {
		if q.Contains != "" && !strings.Contains(iri, q.Contains) {
			continue
		}
		if q.After != "" && iri <= q.After {
			continue
		}
		graphs = append(graphs, NamedGraph{IRI: iri, TripleCount: n})
	}
	sort.Slice(graphs, func(i, j int) bool { return graphs[i].IRI < graphs[j].IRI })
	return window(graphs, q.Limit, q.Offset), nil
}

func (m *MockStore) ListOntologies(_ context.Context, q OntologyListQuery) ([]OntologyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}

	var out []OntologyRecord
	for _, rec := range m.ontologies {
		if _, live := m.graphs[rec.GraphIRI]; !live {
			continue
		}
		if q.Contains != "" && !strings.Contains(rec.GraphIRI, q.Contains) {
			continue
		}
		if q.AfterGraph != "" && (rec.GraphIRI < q.AfterGraph ||
			(rec.GraphIRI == q.AfterGraph && rec.IRI <= q.AfterOntology)) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].GraphIRI != out[j].GraphIRI {
			return out[i].GraphIRI < out[j].GraphIRI
		}
		return out[i].IRI < out[j].IRI
	})

	// Limit and offset count (graph, ontology) groups, like the grouped query.
	var groups [][]OntologyRecord
	for i, rec := range out {
		if i == 0 || rec.GraphIRI != out[i-1].GraphIRI || rec.IRI != out[i-1].IRI {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], rec)
	}
	var page []OntologyRecord
	for _, g := range window(groups, q.Limit, q.Offset) {
		page = append(page, g...)
	}
	return page, nil
}

func (m *MockStore) DropGraph(_ context.Context, graph string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops = append(m.drops, graph)
	if err := m.dropErrs[graph]; err != nil {
		return err
	}
	delete(m.graphs, graph)
	return nil
}

var _ Store = (*MockStore)(nil)
