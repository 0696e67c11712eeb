package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	var results kgo.ProduceResults
	for _, r := range rs {
		p.records = append(p.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

type fakeAdmin struct {
	calls int
	err   error
}

func (a *fakeAdmin) CreateTopics(_ context.Context, partitions int32, rf int16, _ map[string]*string, topics ...string) (kadm.CreateTopicResponses, error) {
	a.calls++
	resps := kadm.CreateTopicResponses{}
	for _, t := range topics {
		resps[t] = kadm.CreateTopicResponse{Topic: t, NumPartitions: partitions, ReplicationFactor: rf, Err: a.err}
	}
	return resps, nil
}

func TestKafkaSinkPublish(t *testing.T) {
	p := &fakeProducer{}
	sink := newKafkaSink(p, nil, KafkaConfig{Topic: "janitor-reports"})

	r := samplePurge()
	if err := sink.Publish(context.Background(), r); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(p.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(p.records))
	}
	rec := p.records[0]
	if rec.Topic != "janitor-reports" || string(rec.Key) != "run-1" {
		t.Errorf("unexpected record: topic=%s key=%s", rec.Topic, rec.Key)
	}
	if len(rec.Headers) != 1 || rec.Headers[0].Key != "kind" || string(rec.Headers[0].Value) != KindPurge {
		t.Errorf("unexpected headers: %+v", rec.Headers)
	}
	var decoded PurgeReport
	if err := json.Unmarshal(rec.Value, &decoded); err != nil || decoded.Mode != "data-only" {
		t.Errorf("unexpected value: %s (%v)", rec.Value, err)
	}
}

func TestKafkaSinkProduceError(t *testing.T) {
	p := &fakeProducer{err: kerr.NotLeaderForPartition}
	sink := newKafkaSink(p, nil, KafkaConfig{Topic: "t"})
	if err := sink.Publish(context.Background(), samplePurge()); !errors.Is(err, kerr.NotLeaderForPartition) {
		t.Fatalf("expected produce error, got %v", err)
	}
}

func TestKafkaSinkEnsureTopic(t *testing.T) {
	admin := &fakeAdmin{}
	sink := newKafkaSink(&fakeProducer{}, admin, KafkaConfig{Topic: "t", Partitions: 3})
	if err := sink.EnsureTopic(context.Background()); err != nil {
		t.Fatal(err)
	}
	if admin.calls != 1 {
		t.Errorf("expected 1 CreateTopics call, got %d", admin.calls)
	}

	admin.err = kerr.TopicAlreadyExists
	if err := sink.EnsureTopic(context.Background()); err != nil {
		t.Errorf("existing topic should not be an error: %v", err)
	}

	admin.err = kerr.TopicAuthorizationFailed
	if err := sink.EnsureTopic(context.Background()); !errors.Is(err, kerr.TopicAuthorizationFailed) {
		t.Errorf("expected authorization error, got %v", err)
	}

	// Partitions unset: topic management disabled.
	noop := newKafkaSink(&fakeProducer{}, admin, KafkaConfig{Topic: "t"})
	before := admin.calls
	if err := noop.EnsureTopic(context.Background()); err != nil || admin.calls != before {
		t.Errorf("EnsureTopic should be a no-op without partitions")
	}
}

func TestNewKafkaSinkValidation(t *testing.T) {
	if _, err := NewKafkaSink(KafkaConfig{Topic: "t"}); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewKafkaSink(KafkaConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Error("expected error without topic")
	}
}
