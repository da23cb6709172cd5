package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/geb2701/storefront/pkg/logger"
)

// fakeWriter records written messages and returns err.
type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newTestProducer(w messageWriter) *Producer {
	return &Producer{
		writer: w,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// --- Event tests ---

func TestNewEvent_Fields(t *testing.T) {
	type cartData struct {
		SessionID  string `json:"session_id"`
		TotalItems int    `json:"total_items"`
	}

	ctx := logger.WithCorrelationID(context.Background(), "corr-abc")
	data := cartData{SessionID: "sess-1", TotalItems: 3}
	event, err := NewEvent(ctx, "cart.updated", "sess-1", "cart", "storefront", data)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "cart.updated", event.EventType)
	assert.Equal(t, "sess-1", event.AggregateID)
	assert.Equal(t, "cart", event.AggregateType)
	assert.Equal(t, "storefront", event.Source)
	assert.Equal(t, "corr-abc", event.CorrelationID)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var decoded cartData
	require.NoError(t, json.Unmarshal(event.Data, &decoded))
	assert.Equal(t, data, decoded)
}

func TestNewEvent_NoCorrelationID(t *testing.T) {
	event, err := NewEvent(context.Background(), "cart.cleared", "sess-2", "cart", "storefront", nil)
	require.NoError(t, err)
	assert.Empty(t, event.CorrelationID)

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correlation_id")
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent(context.Background(), "cart.updated", "sess-1", "cart", "storefront", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cart.updated")
}

// --- Topic tests ---

func TestTopic(t *testing.T) {
	assert.Equal(t, "storefront.cart.updated", Topic("cart", "updated"))
	assert.Equal(t, "storefront.notification.created", Topic("notification", "created"))
}

// --- Producer tests ---

func TestDefaultProducerConfig(t *testing.T) {
	brokers := []string{"broker1:9092", "broker2:9092"}
	cfg := DefaultProducerConfig(brokers)

	assert.Equal(t, brokers, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.False(t, cfg.Async)
}

func TestNewProducer_CreatesInstance(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
	assert.NoError(t, p.Close())
}

func TestPublish_WritesKeyedMessageWithHeaders(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	ctx := logger.WithCorrelationID(context.Background(), "corr-9")
	event, err := NewEvent(ctx, "cart.updated", "sess-9", "cart", "storefront", map[string]int{"n": 1})
	require.NoError(t, err)

	topic := Topic("cart", "updated")
	before := testutil.ToFloat64(messagesPublished.WithLabelValues(topic))

	require.NoError(t, p.Publish(context.Background(), topic, event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, topic, msg.Topic)
	assert.Equal(t, "sess-9", string(msg.Key))

	carrier := NewHeaderCarrier(&msg.Headers)
	assert.Equal(t, "cart.updated", carrier.Get("event_type"))
	assert.Equal(t, "storefront", carrier.Get("source"))
	assert.Equal(t, "corr-9", carrier.Get("correlation_id"))

	assert.Equal(t, before+1, testutil.ToFloat64(messagesPublished.WithLabelValues(topic)))
}

func TestPublish_InjectsTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	w := &fakeWriter{}
	event, err := NewEvent(ctx, "cart.updated", "sess-t", "cart", "storefront", nil)
	require.NoError(t, err)
	require.NoError(t, newTestProducer(w).Publish(ctx, "t", event))

	got := NewHeaderCarrier(&w.msgs[0].Headers).Get("traceparent")
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", got)
}

func TestPublish_WriteErrorCounted(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newTestProducer(w)
	topic := "storefront.test.errors"

	event, err := NewEvent(context.Background(), "cart.updated", "sess-e", "cart", "storefront", nil)
	require.NoError(t, err)

	before := testutil.ToFloat64(publishErrors.WithLabelValues(topic))
	err = p.Publish(context.Background(), topic, event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, before+1, testutil.ToFloat64(publishErrors.WithLabelValues(topic)))
}

func TestProducer_CloseDelegates(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newTestProducer(w).Close())
	assert.True(t, w.closed)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(t.Context(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}

func TestNewProducer_AsyncReportsDeliveryFailures(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"localhost:19092"})
	cfg.Async = true
	p := NewProducer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer p.Close()

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.True(t, w.Async)
	require.NotNil(t, w.Completion)

	topic := "storefront.test.async"
	before := testutil.ToFloat64(publishErrors.WithLabelValues(topic))

	msgs := []kafka.Message{{Topic: topic}, {Topic: topic}}
	w.Completion(msgs, nil)
	assert.Equal(t, before, testutil.ToFloat64(publishErrors.WithLabelValues(topic)))

	w.Completion(msgs, errors.New("leader not available"))
	assert.Equal(t, before+2, testutil.ToFloat64(publishErrors.WithLabelValues(topic)))
}

func TestNewProducer_SyncHasNoCompletion(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	defer p.Close()

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.False(t, w.Async)
	assert.Nil(t, w.Completion)
}
