package repository

import (
	"context"

	"StockScreener/internal/domain/models"
	domrepo "StockScreener/internal/domain/repository"
	pkgkafka "StockScreener/pkg/kafka"
)

// KafkaPublisher emits verdict and job events to Kafka, keyed by symbol and
// job id respectively.
type KafkaPublisher struct {
	producer     *pkgkafka.Producer
	verdictTopic string
	jobTopic     string
}

var _ domrepo.EventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(producer *pkgkafka.Producer, verdictTopic, jobTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, verdictTopic: verdictTopic, jobTopic: jobTopic}
}

func (p *KafkaPublisher) PublishVerdict(ctx context.Context, ev *models.VerdictEvent) error {
	return p.producer.PublishMessages(ctx, p.verdictTopic, pkgkafka.Message{
		Key:     []byte(ev.Symbol),
		Value:   ev,
		Headers: map[string]string{"event_type": "verdict"},
	})
}

func (p *KafkaPublisher) PublishJob(ctx context.Context, ev *models.JobEvent) error {
	return p.producer.PublishMessages(ctx, p.jobTopic, pkgkafka.Message{
		Key:     []byte(ev.JobID),
		Value:   ev,
		Headers: map[string]string{"event_type": "job"},
	})
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

var _ domrepo.EventPublisher = NoopPublisher{}

func (NoopPublisher) PublishVerdict(context.Context, *models.VerdictEvent) error { return nil }
func (NoopPublisher) PublishJob(context.Context, *models.JobEvent) error         { return nil }
func (NoopPublisher) Close() error                                               { return nil }
