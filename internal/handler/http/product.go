package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/geb2701/storefront/internal/service"
	"github.com/geb2701/storefront/pkg/httputil"
	"github.com/geb2701/storefront/pkg/pagination"
)

// ProductHandler serves catalog reads with the pricing view applied.
type ProductHandler struct {
	catalog service.ProductCatalog
	views   views
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(catalog service.ProductCatalog, currency string, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		views:   views{currency: currency},
		logger:  logger,
	}
}

// ListProducts handles GET /api/v1/products?page=&per_page=
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	page := pagination.Paginate(h.views.products(products), pagination.FromRequest(r))
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: page})
}

// GetProduct handles GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.views.product(product)})
}
