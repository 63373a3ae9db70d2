package publisher

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	r "github.com/fjod/go_backoffice/orders-service/internal/repository"
	"github.com/fjod/go_backoffice/pkg/circuitbreaker"
)

const (
	DefaultTopic     = "orders-outbox"
	defaultBatchSize = 100
)

// MessageWriter is the part of *kafka.Writer the poller uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	batchSize int
	repo      r.OutboxReader
	writer    MessageWriter
	breaker   *circuitbreaker.Breaker
	log       *zap.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // same order id, same partition
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
}

func NewOutboxPoller(
	repo r.OutboxReader,
	writer MessageWriter,
	breaker *circuitbreaker.Breaker,
	eventTick time.Duration,
	log *zap.Logger) *OutboxPoller {

	if log == nil {
		log = zap.NewNop()
	}
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.DefaultSettings("kafka-orders-outbox"), log)
	}
	if eventTick <= 0 {
		eventTick = time.Second
	}
	return &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: eventTick,
		batchSize: defaultBatchSize,
		repo:      repo,
		writer:    writer,
		breaker:   breaker,
		log:       log,
	}
}

// Run publishes pending outbox events until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// processUnpublishedEvents publishes one batch in outbox order. It stops at the first failed
// publish so events of one order are never delivered out of sequence.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.log.Error("failed to fetch outbox events", zap.Error(err))
		return
	}

	for _, event := range events {
		errPublish := p.breaker.Execute(func() error {
			return p.publishToKafka(ctx, event)
		})
		if errors.Is(errPublish, circuitbreaker.ErrOpen) {
			p.log.Warn("kafka circuit open, postponing outbox batch", zap.Int("pending", len(events)))
			return
		}
		if errPublish != nil {
			p.log.Error("failed to publish outbox event",
				zap.String("event_id", event.ID),
				zap.String("event_type", event.EventType),
				zap.Error(errPublish))
			return
		}

		if errMark := p.repo.MarkEventAsProcessed(ctx, event.ID); errMark != nil {
			// the event will be published again; consumers dedupe on event_id
			p.log.Error("failed to mark outbox event as processed",
				zap.String("event_id", event.ID),
				zap.Error(errMark))
			return
		}
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *r.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID.String()), // order id for ordering
		Value: event.Payload,                      // already JSON from database
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}
