package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap/zaptest"

	r "github.com/fjod/go_backoffice/orders-service/internal/repository"
	"github.com/fjod/go_backoffice/pkg/circuitbreaker"
)

type MockRepository struct {
	mu           sync.Mutex
	OutboxEvents []*r.OutboxEvent
	GetErr       error
	MarkErr      error
	ProcessedIDs []string
}

func (m *MockRepository) GetUnprocessedEvents(_ context.Context, limit int) ([]*r.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	var pending []*r.OutboxEvent
	for _, e := range m.OutboxEvents {
		if !m.processed(e.ID) {
			pending = append(pending, e)
		}
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (m *MockRepository) MarkEventAsProcessed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.ProcessedIDs = append(m.ProcessedIDs, id)
	return nil
}

func (m *MockRepository) processed(id string) bool {
	for _, p := range m.ProcessedIDs {
		if p == id {
			return true
		}
	}
	return false
}

type MockWriter struct {
	Messages []kafkaGo.Message
	FailOn   map[string]error // keyed by event_id header
	Err      error
	Calls    int
	Closed   bool
}

func (w *MockWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	w.Calls++
	if w.Err != nil {
		return w.Err
	}
	for _, msg := range msgs {
		for _, h := range msg.Headers {
			if h.Key == "event_id" {
				if err := w.FailOn[string(h.Value)]; err != nil {
					return err
				}
			}
		}
	}
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func (w *MockWriter) Close() error {
	w.Closed = true
	return nil
}

func testEvent(id string, orderID uuid.UUID, eventType string) *r.OutboxEvent {
	return &r.OutboxEvent{
		ID:          id,
		AggregateID: orderID,
		EventType:   eventType,
		Payload:     json.RawMessage(fmt.Sprintf(`{"order_id":%q,"event_type":%q}`, orderID, eventType)),
		CreatedAt:   time.Now(),
	}
}

func TestProcessUnpublishedEvents_PublishesInOrder(t *testing.T) {
	orderID := uuid.New()
	repo := &MockRepository{OutboxEvents: []*r.OutboxEvent{
		testEvent("01", orderID, "order.created"),
		testEvent("02", orderID, "order.status_changed"),
	}}
	writer := &MockWriter{}
	poller := NewOutboxPoller(repo, writer, nil, time.Second, zaptest.NewLogger(t))

	poller.processUnpublishedEvents(context.Background())

	require.Len(t, writer.Messages, 2)
	assert.Equal(t, orderID.String(), string(writer.Messages[0].Key))
	assert.Equal(t, "order.created", headerValue(writer.Messages[0], "event_type"))
	assert.Equal(t, "02", headerValue(writer.Messages[1], "event_id"))
	assert.Equal(t, []string{"01", "02"}, repo.ProcessedIDs)
}

func TestProcessUnpublishedEvents_StopsAtFirstFailure(t *testing.T) {
	orderID := uuid.New()
	repo := &MockRepository{OutboxEvents: []*r.OutboxEvent{
		testEvent("01", orderID, "order.created"),
		testEvent("02", orderID, "order.updated"),
		testEvent("03", orderID, "order.status_changed"),
	}}
	writer := &MockWriter{FailOn: map[string]error{"02": errors.New("leader not available")}}
	poller := NewOutboxPoller(repo, writer, nil, time.Second, zaptest.NewLogger(t))

	poller.processUnpublishedEvents(context.Background())

	assert.Equal(t, []string{"01"}, repo.ProcessedIDs, "later events wait for the failed one")

	delete(writer.FailOn, "02")
	poller.processUnpublishedEvents(context.Background())
	assert.Equal(t, []string{"01", "02", "03"}, repo.ProcessedIDs)
}

func TestProcessUnpublishedEvents_FetchError(t *testing.T) {
	repo := &MockRepository{GetErr: errors.New("database connection error")}
	writer := &MockWriter{}
	poller := NewOutboxPoller(repo, writer, nil, time.Second, zaptest.NewLogger(t))

	poller.processUnpublishedEvents(context.Background())
	assert.Zero(t, writer.Calls)
}

func TestProcessUnpublishedEvents_MarkError(t *testing.T) {
	repo := &MockRepository{
		OutboxEvents: []*r.OutboxEvent{testEvent("01", uuid.New(), "order.created"), testEvent("02", uuid.New(), "order.created")},
		MarkErr:      errors.New("deadlock"),
	}
	writer := &MockWriter{}
	poller := NewOutboxPoller(repo, writer, nil, time.Second, zaptest.NewLogger(t))

	poller.processUnpublishedEvents(context.Background())
	assert.Equal(t, 1, writer.Calls)
	assert.Empty(t, repo.ProcessedIDs)
}

func TestProcessUnpublishedEvents_BreakerOpens(t *testing.T) {
	log := zaptest.NewLogger(t)
	settings := circuitbreaker.DefaultSettings("test-kafka")
	settings.FailureThreshold = 2
	settings.Timeout = time.Hour
	breaker := circuitbreaker.New(settings, log)

	repo := &MockRepository{OutboxEvents: []*r.OutboxEvent{testEvent("01", uuid.New(), "order.created")}}
	writer := &MockWriter{Err: errors.New("broker unreachable")}
	poller := NewOutboxPoller(repo, writer, breaker, time.Second, log)

	for range 5 {
		poller.processUnpublishedEvents(context.Background())
	}

	assert.Equal(t, 2, writer.Calls, "open breaker stops calls to kafka")
	assert.Equal(t, "open", breaker.State())
	assert.Empty(t, repo.ProcessedIDs)
}

func TestRun_StopsOnCancel(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*r.OutboxEvent{testEvent("01", uuid.New(), "order.created")}}
	writer := &MockWriter{}
	poller := NewOutboxPoller(repo, writer, nil, 10*time.Millisecond, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.ProcessedIDs) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}

	require.NoError(t, poller.Close())
	assert.True(t, writer.Closed)
}

func headerValue(msg kafkaGo.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestOutboxPoller_PublishesEventsToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka container test in short mode")
	}
	brokerAddr, cleanup := setupKafka(t)
	defer cleanup()

	createTopic(t, brokerAddr, DefaultTopic)
	// give Kafka time to elect a leader for the new topic
	time.Sleep(5 * time.Second)

	orderID := uuid.New()
	repo := &MockRepository{OutboxEvents: []*r.OutboxEvent{testEvent("01", orderID, "order.created")}}

	writer := NewKafkaWriter(DefaultTopic, brokerAddr)
	poller := NewOutboxPoller(repo, writer, nil, time.Second, zaptest.NewLogger(t))
	defer poller.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	go poller.Run(ctx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    DefaultTopic,
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, orderID.String(), string(msg.Key))
	assert.Equal(t, "order.created", headerValue(msg, "event_type"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, orderID.String(), payload["order_id"])

	assert.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.ProcessedIDs) == 1
	}, 5*time.Second, 100*time.Millisecond)
}
