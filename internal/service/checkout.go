package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/geb2701/storefront/internal/domain"
	"github.com/geb2701/storefront/internal/notify"
	"github.com/geb2701/storefront/internal/orders"
	apperrors "github.com/geb2701/storefront/pkg/errors"
	"github.com/geb2701/storefront/pkg/validator"
)

// OrderClient creates orders on the backend. orders.HTTPClient satisfies it.
type OrderClient interface {
	CreateOrder(ctx context.Context, req orders.CreateOrderRequest) (*orders.Order, error)
}

// BillingInput holds the buyer's billing details.
type BillingInput struct {
	FirstName  string `json:"firstName" validate:"required,min=2,max=50,letters"`
	LastName   string `json:"lastName" validate:"required,min=2,max=50,letters"`
	DNI        string `json:"dni" validate:"required,min=7,max=11,digits"`
	Address    string `json:"address" validate:"required,min=10,max=100"`
	City       string `json:"city" validate:"required,min=2,max=50,letters"`
	PostalCode string `json:"postalCode" validate:"required,min=4,max=10,alnumcode"`
}

// ShippingInput holds a delivery address different from billing.
type ShippingInput struct {
	FirstName  string `json:"firstName" validate:"required,min=2,max=50,letters"`
	LastName   string `json:"lastName" validate:"required,min=2,max=50,letters"`
	Address    string `json:"address" validate:"required,min=10,max=100"`
	City       string `json:"city" validate:"required,min=2,max=50,letters"`
	PostalCode string `json:"postalCode" validate:"required,min=4,max=10,alnumcode"`
}

// PaymentInput holds card details. They are forwarded to the order API and
// never logged.
type PaymentInput struct {
	CardNumber     string `json:"cardNumber" validate:"required,cardnumber"`
	ExpiryDate     string `json:"expiryDate" validate:"required,expiry"`
	CVV            string `json:"cvv" validate:"required,min=3,max=4,digits"`
	CardholderName string `json:"cardholderName" validate:"required,min=2,max=50,letters"`
}

// CheckoutInput is the checkout form. Shipping is required unless
// SameAddress is set, in which case it is ignored.
type CheckoutInput struct {
	Billing     BillingInput   `json:"billing"`
	Shipping    *ShippingInput `json:"shipping,omitempty"`
	SameAddress bool           `json:"sameAddress"`
	Payment     PaymentInput   `json:"payment"`
}

// CheckoutResult is returned for a placed order.
type CheckoutResult struct {
	Order        *orders.Order        `json:"order"`
	Total        decimal.Decimal      `json:"total"`
	Notification *domain.Notification `json:"notification"`
}

// CheckoutService turns a session's cart into an order.
type CheckoutService struct {
	registry *SessionRegistry
	orders   OrderClient
	notifier notify.Notifier
	currency string
	logger   *slog.Logger
}

// NewCheckoutService creates a checkout service.
func NewCheckoutService(registry *SessionRegistry, orders OrderClient, notifier notify.Notifier, currency string, logger *slog.Logger) *CheckoutService {
	if notifier == nil {
		notifier = notify.Multi{}
	}
	if currency == "" {
		currency = domain.DefaultCurrencySymbol
	}
	return &CheckoutService{
		registry: registry,
		orders:   orders,
		notifier: notifier,
		currency: currency,
		logger:   logger,
	}
}

// Checkout places an order for the session's cart. On success the ordered
// units are removed silently and a single purchase notification is emitted;
// anything added while the order was being placed stays in the cart. On
// failure the cart is left untouched.
func (s *CheckoutService) Checkout(ctx context.Context, sessionID string, in CheckoutInput) (*CheckoutResult, error) {
	ctx, span := tracer.Start(ctx, "CheckoutService.Checkout")
	defer span.End()

	store, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	items := store.Items()
	if len(items) == 0 {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	if err := validator.Validate(in); err != nil {
		return nil, err
	}
	if !in.SameAddress && in.Shipping == nil {
		return nil, apperrors.InvalidInput("shipping address is required unless sameAddress is set")
	}

	req := buildOrderRequest(in, items)
	total := items.TotalPrice()
	span.SetAttributes(
		attribute.String("cart.session_id", sessionID),
		attribute.Int("cart.lines", len(items)),
		attribute.String("cart.total", total.StringFixed(2)),
	)

	order, err := s.orders.CreateOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order failed")
		s.logger.ErrorContext(ctx, "checkout failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("checkout: %w", err)
	}

	store.RemoveOrdered(ctx, items)

	notice := domain.PurchaseCompletedNotice(s.currency, total)
	notice.SessionID = sessionID
	s.notifier.Notify(ctx, *notice)

	s.logger.InfoContext(ctx, "checkout completed",
		slog.String("session_id", sessionID),
		slog.Int64("order_id", order.ID),
		slog.String("total", total.StringFixed(2)),
	)

	return &CheckoutResult{
		Order:        order,
		Total:        total,
		Notification: notice,
	}, nil
}

func buildOrderRequest(in CheckoutInput, items domain.Lines) orders.CreateOrderRequest {
	req := orders.CreateOrderRequest{
		Billing: orders.BillingInfo{
			FirstName:  in.Billing.FirstName,
			LastName:   in.Billing.LastName,
			DNI:        in.Billing.DNI,
			Address:    in.Billing.Address,
			City:       in.Billing.City,
			PostalCode: in.Billing.PostalCode,
		},
		Payment: orders.PaymentInfo{
			CardNumber:     in.Payment.CardNumber,
			ExpiryDate:     in.Payment.ExpiryDate,
			CVV:            in.Payment.CVV,
			CardholderName: in.Payment.CardholderName,
		},
		Items: make([]orders.OrderItem, len(items)),
	}

	if !in.SameAddress && in.Shipping != nil {
		req.Shipping = &orders.ShippingInfo{
			FirstName:  in.Shipping.FirstName,
			LastName:   in.Shipping.LastName,
			Address:    in.Shipping.Address,
			City:       in.Shipping.City,
			PostalCode: in.Shipping.PostalCode,
		}
	}

	for i, li := range items {
		req.Items[i] = orders.OrderItem{
			ProductID: li.Product.ID,
			Quantity:  li.Quantity,
		}
	}
	return req
}
