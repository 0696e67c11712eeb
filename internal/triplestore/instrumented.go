package triplestore

import (
	"context"
	"time"
)

// MetricsRecorder records triple store operation metrics.
type MetricsRecorder interface {
	RecordOperation(op string, durationSeconds float64, success bool)
}

// InstrumentedStore wraps a Store and records metrics for each operation.
type InstrumentedStore struct {
	store   Store
	metrics MetricsRecorder
}

// NewInstrumentedStore creates an instrumented wrapper around a Store.
// If metrics is nil, operations pass through directly.
func NewInstrumentedStore(store Store, metrics MetricsRecorder) *InstrumentedStore {
	return &InstrumentedStore{store: store, metrics: metrics}
}

func (s *InstrumentedStore) record(op string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordOperation(op, time.Since(start).Seconds(), err == nil)
	}
}

func (s *InstrumentedStore) ListGraphs(ctx context.Context, q GraphCountQuery) ([]NamedGraph, error) {
	start := time.Now()
	graphs, err := s.store.ListGraphs(ctx, q)
	s.record("list_graphs", start, err)
	return graphs, err
}

func (s *InstrumentedStore) ListOntologies(ctx context.Context, q OntologyListQuery) ([]OntologyRecord, error) {
	start := time.Now()
	recs, err := s.store.ListOntologies(ctx, q)
	s.record("list_ontologies", start, err)
	return recs, err
}

func (s *InstrumentedStore) DropGraph(ctx context.Context, graph string) error {
	start := time.Now()
	err := s.store.DropGraph(ctx, graph)
	s.record("drop_graph", start, err)
	return err
}

var _ Store = (*InstrumentedStore)(nil)
