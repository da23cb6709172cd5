// Package orders is the client for the backend order API. It only carries
// requests; pricing and stock are settled by the backend.
package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/geb2701/storefront/pkg/httpclient"
)

const serviceName = "order"

// BillingInfo is the buyer's billing identity and address.
type BillingInfo struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	DNI        string `json:"dni"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
}

// ShippingInfo is the delivery address when it differs from billing.
type ShippingInfo struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
}

// PaymentInfo is forwarded as-is; we never process payments ourselves.
type PaymentInfo struct {
	CardNumber     string `json:"cardNumber"`
	ExpiryDate     string `json:"expiryDate"`
	CVV            string `json:"cvv"`
	CardholderName string `json:"cardholderName"`
}

// OrderItem references a product by id; the backend reprices it.
type OrderItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// CreateOrderRequest is the POST /orders body.
type CreateOrderRequest struct {
	Billing  BillingInfo   `json:"billing"`
	Shipping *ShippingInfo `json:"shipping,omitempty"`
	Payment  PaymentInfo   `json:"payment"`
	Items    []OrderItem   `json:"items"`
}

// Order is the backend's view of a created order.
type Order struct {
	ID               int64           `json:"id"`
	BillingFirstName string          `json:"billingFirstName"`
	BillingLastName  string          `json:"billingLastName"`
	BillingDNI       string          `json:"billingDni"`
	Total            decimal.Decimal `json:"total"`
	Status           string          `json:"status"`
	CreatedAt        string          `json:"createdAt"` // zone-less LocalDateTime
}

// HTTPClient posts orders to the backend API.
type HTTPClient struct {
	baseURL string
	client  httpclient.Doer
	logger  *slog.Logger
}

// NewHTTPClient creates an order client rooted at baseURL, e.g.
// "http://localhost:8080/api".
func NewHTTPClient(baseURL string, client httpclient.Doer, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// CreateOrder submits req and returns the created order.
func (c *HTTPClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("create order: no items")
	}

	var order Order
	if err := httpclient.PostJSON(ctx, c.client, c.baseURL+"/orders", serviceName, req, &order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	c.logger.InfoContext(ctx, "order created",
		slog.Int64("order_id", order.ID),
		slog.Int("items", len(req.Items)),
		slog.String("status", order.Status),
	)
	return &order, nil
}
