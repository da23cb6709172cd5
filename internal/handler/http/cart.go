package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/geb2701/storefront/internal/domain"
	"github.com/geb2701/storefront/internal/notify"
	"github.com/geb2701/storefront/internal/service"
	"github.com/geb2701/storefront/pkg/httputil"
	"github.com/geb2701/storefront/pkg/middleware"
	"github.com/geb2701/storefront/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	registry *service.SessionRegistry
	catalog  service.ProductCatalog
	feed     *notify.Feed
	views    views
	logger   *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(registry *service.SessionRegistry, catalog service.ProductCatalog, feed *notify.Feed, currency string, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		registry: registry,
		catalog:  catalog,
		feed:     feed,
		views:    views{currency: currency},
		logger:   logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding a product to the cart.
// Quantity defaults to 1.
type AddItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"gte=0,lte=1000"`
}

// UpdateQuantityRequest is the JSON request body for setting a quantity.
// Zero or less removes the line.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// --- Handlers ---

func (h *CartHandler) store(w http.ResponseWriter, r *http.Request) (*service.CartStore, bool) {
	store, err := h.registry.Get(r.Context(), middleware.SessionIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return nil, false
	}
	return store, true
}

// writeMutation renders an applied or no-op result; rejections become 422.
func (h *CartHandler) writeMutation(w http.ResponseWriter, r *http.Request, res domain.MutationResult) {
	if err := res.Err(); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.views.mutation(res)})
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.views.cart(store.Snapshot())})
}

// ClearCart handles DELETE /api/v1/cart?silent=true
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	silent, _ := strconv.ParseBool(r.URL.Query().Get("silent"))
	h.writeMutation(w, r, store.ClearCart(r.Context(), silent))
}

// AddItem handles POST /api/v1/cart/items. The product is read from the
// catalog so the line snapshot carries live price and stock.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	store, ok := h.store(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.writeMutation(w, r, store.AddItem(r.Context(), product, req.Quantity))
}

// UpdateItemQuantity handles PUT /api/v1/cart/items/{productId}
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	store, ok := h.store(w, r)
	if !ok {
		return
	}
	h.writeMutation(w, r, store.UpdateQuantity(r.Context(), productID, *req.Quantity))
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	store, ok := h.store(w, r)
	if !ok {
		return
	}
	h.writeMutation(w, r, store.RemoveItem(r.Context(), productID))
}

// ItemQuantity handles GET /api/v1/cart/items/{productId}/quantity
func (h *CartHandler) ItemQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	store, ok := h.store(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: quantityView{ProductID: productID, Quantity: store.ItemQuantity(productID)},
	})
}

// Toggle handles POST /api/v1/cart/toggle
func (h *CartHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	if store, ok := h.store(w, r); ok {
		h.writeMutation(w, r, store.ToggleCart())
	}
}

// Open handles POST /api/v1/cart/open
func (h *CartHandler) Open(w http.ResponseWriter, r *http.Request) {
	if store, ok := h.store(w, r); ok {
		h.writeMutation(w, r, store.OpenCart())
	}
}

// Close handles POST /api/v1/cart/close
func (h *CartHandler) Close(w http.ResponseWriter, r *http.Request) {
	if store, ok := h.store(w, r); ok {
		h.writeMutation(w, r, store.CloseCart())
	}
}

// Refresh handles POST /api/v1/cart/refresh
func (h *CartHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	res, err := store.RefreshProducts(r.Context(), h.catalog)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeMutation(w, r, res)
}

// Notifications handles GET /api/v1/cart/notifications. Returned toasts are
// removed from the feed.
func (h *CartHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromContext(r.Context())
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: h.views.notifications(h.feed.Drain(sessionID)),
	})
}
