package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaConfig configures the Kafka report sink.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string

	// Partitions and ReplicationFactor are used when the topic has to be
	// created. A zero Partitions value skips topic creation.
	Partitions        int32
	ReplicationFactor int16

	// DialTimeout bounds broker connection attempts.
	DialTimeout time.Duration
}

// Producer is the subset of *kgo.Client used by KafkaSink.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// TopicAdmin is the subset of *kadm.Client used by KafkaSink.
type TopicAdmin interface {
	CreateTopics(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topics ...string) (kadm.CreateTopicResponses, error)
}

// KafkaSink publishes each report as one record keyed by run ID.
type KafkaSink struct {
	producer Producer
	admin    TopicAdmin
	client   *kgo.Client
	topic    string

	partitions        int32
	replicationFactor int16
}

// NewKafkaSink connects a Kafka client for report publishing.
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("report: kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("report: kafka topic is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "storejanitor"
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if cfg.DialTimeout > 0 {
		opts = append(opts, kgo.DialTimeout(cfg.DialTimeout))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("report: create kafka client: %w", err)
	}

	s := newKafkaSink(client, kadm.NewClient(client), cfg)
	s.client = client
	return s, nil
}

func newKafkaSink(p Producer, admin TopicAdmin, cfg KafkaConfig) *KafkaSink {
	return &KafkaSink{
		producer:          p,
		admin:             admin,
		topic:             cfg.Topic,
		partitions:        cfg.Partitions,
		replicationFactor: cfg.ReplicationFactor,
	}
}

func (s *KafkaSink) Name() string { return "kafka" }

// EnsureTopic creates the report topic when it does not exist.
func (s *KafkaSink) EnsureTopic(ctx context.Context) error {
	if s.admin == nil || s.partitions <= 0 {
		return nil
	}
	rf := s.replicationFactor
	if rf <= 0 {
		rf = 1
	}
	resps, err := s.admin.CreateTopics(ctx, s.partitions, rf, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", s.topic, err)
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}

// Publish produces the report and waits for the broker acknowledgement.
func (s *KafkaSink) Publish(ctx context.Context, r Report) error {
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	rec := &kgo.Record{
		Topic:     s.topic,
		Key:       []byte(r.ID()),
		Value:     value,
		Timestamp: r.Started(),
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(r.Kind())},
		},
	}
	if err := s.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", s.topic, err)
	}
	return nil
}

// Close closes the underlying client, if the sink owns one.
func (s *KafkaSink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}
