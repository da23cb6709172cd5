package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/geb2701/storefront/internal/domain"
	pkgkafka "github.com/geb2701/storefront/pkg/kafka"
)

// Kafka topics for cart events.
var (
	TopicCartUpdated  = pkgkafka.Topic("cart", "updated")
	TopicCartCleared  = pkgkafka.Topic("cart", "cleared")
	TopicNotification = pkgkafka.Topic("cart", "notification")
)

// AggregateTypeCart is the aggregate type of every cart event.
const AggregateTypeCart = "cart"

// SourceStorefront identifies events published by this service.
const SourceStorefront = "storefront"

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	SessionID  string          `json:"session_id"`
	Operation  string          `json:"operation"`
	Items      []CartItemData  `json:"items"`
	ItemCount  int             `json:"item_count"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// CartItemData is the item payload within cart events.
type CartItemData struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
}

// NotificationData is the payload for a cart.notification event.
type NotificationData struct {
	SessionID string `json:"session_id"`
	Severity  string `json:"severity"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// Publisher is the part of pkg/kafka.Producer the cart events need.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes cart events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCartUpdated publishes a cart.updated event for snap.
func (p *Producer) PublishCartUpdated(ctx context.Context, snap domain.Snapshot, op domain.Operation) error {
	items := make([]CartItemData, len(snap.Items))
	for i, item := range snap.Items {
		items[i] = CartItemData{
			ProductID: item.Product.ID,
			Name:      item.Product.Name,
			UnitPrice: item.Product.EffectivePrice(),
			Quantity:  item.Quantity,
		}
	}

	data := CartUpdatedData{
		SessionID:  snap.SessionID,
		Operation:  string(op),
		Items:      items,
		ItemCount:  snap.TotalItems,
		TotalPrice: snap.TotalPrice,
	}

	if err := p.publish(ctx, TopicCartUpdated, snap.SessionID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("session_id", snap.SessionID),
		slog.Int("item_count", snap.TotalItems),
	)
	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID string) error {
	return p.publish(ctx, TopicCartCleared, sessionID, CartClearedData{SessionID: sessionID})
}

// PublishNotification publishes a cart.notification event.
func (p *Producer) PublishNotification(ctx context.Context, n domain.Notification) error {
	data := NotificationData{
		SessionID: n.SessionID,
		Severity:  string(n.Severity),
		Title:     n.Title,
		Body:      n.Body,
	}
	return p.publish(ctx, TopicNotification, n.SessionID, data)
}

// Notify makes the producer usable as a notifier. Failures are logged.
func (p *Producer) Notify(ctx context.Context, n domain.Notification) {
	if err := p.PublishNotification(ctx, n); err != nil {
		p.logger.WarnContext(ctx, "failed to publish notification event",
			slog.String("session_id", n.SessionID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Producer) publish(ctx context.Context, topic, sessionID string, data any) error {
	event, err := pkgkafka.NewEvent(ctx, topic, sessionID, AggregateTypeCart, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}
