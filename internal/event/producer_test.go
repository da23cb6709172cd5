package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geb2701/storefront/internal/domain"
	pkgkafka "github.com/geb2701/storefront/pkg/kafka"
	"github.com/geb2701/storefront/pkg/logger"
)

type published struct {
	topic string
	event *pkgkafka.Event
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, event *pkgkafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{topic: topic, event: event})
	return nil
}

func newTestProducer() (*Producer, *fakePublisher) {
	pub := &fakePublisher{}
	return NewProducer(pub, slog.New(slog.NewTextHandler(io.Discard, nil))), pub
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "storefront.cart.updated", TopicCartUpdated)
	assert.Equal(t, "storefront.cart.cleared", TopicCartCleared)
	assert.Equal(t, "storefront.cart.notification", TopicNotification)
}

func TestPublishCartUpdated(t *testing.T) {
	p, pub := newTestProducer()

	items := domain.Lines{{
		Product: domain.Product{
			ID:            1,
			Name:          "Mate imperial",
			Price:         domain.Price("100"),
			DiscountPrice: domain.PricePtr("80"),
			Stock:         5,
		},
		Quantity: 2,
	}}
	snap := domain.NewSnapshot("sess-1", items, false)

	ctx := logger.WithCorrelationID(context.Background(), "corr-9")
	require.NoError(t, p.PublishCartUpdated(ctx, snap, domain.OpAddItem))
	require.Len(t, pub.sent, 1)

	sent := pub.sent[0]
	assert.Equal(t, TopicCartUpdated, sent.topic)
	assert.Equal(t, "sess-1", sent.event.AggregateID)
	assert.Equal(t, AggregateTypeCart, sent.event.AggregateType)
	assert.Equal(t, "corr-9", sent.event.CorrelationID)

	var data CartUpdatedData
	require.NoError(t, json.Unmarshal(sent.event.Data, &data))
	assert.Equal(t, "add_item", data.Operation)
	assert.Equal(t, 2, data.ItemCount)
	assert.True(t, data.TotalPrice.Equal(domain.Price("160")))
	require.Len(t, data.Items, 1)
	assert.True(t, data.Items[0].UnitPrice.Equal(domain.Price("80")))
}

func TestPublishCartCleared(t *testing.T) {
	p, pub := newTestProducer()

	require.NoError(t, p.PublishCartCleared(context.Background(), "sess-2"))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, TopicCartCleared, pub.sent[0].topic)
	assert.Empty(t, pub.sent[0].event.CorrelationID)
}

func TestPublish_Error(t *testing.T) {
	p, pub := newTestProducer()
	pub.err = errors.New("broker down")

	err := p.PublishCartCleared(context.Background(), "sess-3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestNotify_PublishesNotification(t *testing.T) {
	p, pub := newTestProducer()

	n := *domain.ItemRemovedNotice("Bombilla")
	n.SessionID = "sess-4"
	p.Notify(context.Background(), n)

	require.Len(t, pub.sent, 1)
	var data NotificationData
	require.NoError(t, json.Unmarshal(pub.sent[0].event.Data, &data))
	assert.Equal(t, "success", data.Severity)
	assert.Equal(t, "Bombilla", data.Body)
}

func TestNotify_SwallowsErrors(t *testing.T) {
	p, pub := newTestProducer()
	pub.err = errors.New("broker down")

	assert.NotPanics(t, func() {
		p.Notify(context.Background(), domain.Notification{SessionID: "s"})
	})
}
