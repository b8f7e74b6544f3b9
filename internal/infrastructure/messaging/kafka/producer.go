// Package kafka publishes analysis-completed events for downstream EHR
// consumers.
package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/referta/referta/internal/application/analysis"
	"github.com/referta/referta/internal/config"
	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
	"github.com/referta/referta/pkg/errors"
)

// writer abstracts kafka.Writer for testing.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes one message per persisted analysis, keyed by fiscal
// code so a patient's events stay ordered within a partition.
type Producer struct {
	writer writer
	topic  string
	logger logging.Logger
	closed atomic.Bool
}

// NewProducer constructs a Producer against the configured brokers.
func NewProducer(cfg config.KafkaConfig, log logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.InvalidParam("kafka: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.InvalidParam("kafka: topic is required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}
	maxAttempts := cfg.ProducerRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 3
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  maxAttempts,
		BatchTimeout: batchTimeout,
	}

	return &Producer{writer: w, topic: cfg.Topic, logger: log.Named("kafka")}, nil
}

// PublishAnalysisCompleted emits one event.  The message key is the fiscal
// code; identifier-less events are never produced because identifier-less
// documents are never persisted.
func (p *Producer) PublishAnalysisCompleted(ctx context.Context, event *analysis.AnalysisEvent) error {
	if p.closed.Load() {
		return errors.New(errors.ErrCodeInternal, "kafka: producer closed")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "kafka: encode event")
	}

	msg := kafka.Message{
		Key:   []byte(event.FiscalCode),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("event publish failed",
			logging.String("topic", p.topic),
			logging.String("report_id", event.ReportID),
			logging.Err(err),
		)
		return errors.Wrap(err, errors.ErrCodeInternal, "kafka: publish event")
	}

	p.logger.Debug("event published",
		logging.String("topic", p.topic),
		logging.String("report_id", event.ReportID),
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}
