package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/geb2701/storefront/internal/domain"
	"github.com/geb2701/storefront/internal/orders"
	"github.com/geb2701/storefront/internal/service"
	"github.com/geb2701/storefront/pkg/httputil"
	"github.com/geb2701/storefront/pkg/middleware"
	"github.com/geb2701/storefront/pkg/validator"
)

// CheckoutHandler handles order placement.
type CheckoutHandler struct {
	service *service.CheckoutService
	views   views
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, currency string, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		views:   views{currency: currency},
		logger:  logger,
	}
}

type checkoutView struct {
	Order          *orders.Order     `json:"order"`
	Total          decimal.Decimal   `json:"total"`
	FormattedTotal string            `json:"formatted_total"`
	Notification   *notificationView `json:"notification,omitempty"`
}

// Checkout handles POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var in service.CheckoutInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := h.service.Checkout(r.Context(), middleware.SessionIDFromContext(r.Context()), in)
	if err != nil {
		var valErr *validator.ValidationError
		if errors.As(err, &valErr) {
			httputil.WriteValidationError(w, err)
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	view := checkoutView{
		Order:          res.Order,
		Total:          res.Total,
		FormattedTotal: domain.FormatPrice(h.views.currency, res.Total),
	}
	if res.Notification != nil {
		n := h.views.notification(*res.Notification)
		view.Notification = &n
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: view})
}
