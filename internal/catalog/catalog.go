// Package catalog provides the product lookups the cart depends on: a REST
// client for the storefront backend and an in-memory seeded catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/geb2701/storefront/internal/domain"
	apperrors "github.com/geb2701/storefront/pkg/errors"
	"github.com/geb2701/storefront/pkg/httpclient"
)

const (
	serviceName = "catalog"

	// DefaultPageSize is how many products are requested per listing page.
	DefaultPageSize = 100

	// maxPages stops a misbehaving backend from looping the listing forever.
	maxPages = 1000
)

// page is the Spring Data page envelope returned by GET /products.
type page struct {
	Content       []domain.Product `json:"content"`
	TotalElements int              `json:"totalElements"`
	TotalPages    int              `json:"totalPages"`
	Size          int              `json:"size"`
	Number        int              `json:"number"`
}

// HTTPCatalog reads products from the backend API.
type HTTPCatalog struct {
	baseURL  string
	client   httpclient.Doer
	pageSize int
	logger   *slog.Logger
}

// NewHTTPCatalog creates a catalog client rooted at baseURL, e.g.
// "http://localhost:8080/api".
func NewHTTPCatalog(baseURL string, client httpclient.Doer, logger *slog.Logger) *HTTPCatalog {
	return &HTTPCatalog{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		pageSize: DefaultPageSize,
		logger:   logger,
	}
}

// GetProduct fetches one product. A 404 becomes apperrors.NotFound.
func (c *HTTPCatalog) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	endpoint := c.baseURL + "/products/" + strconv.FormatInt(id, 10)

	if err := httpclient.GetJSON(ctx, c.client, endpoint, serviceName, &p); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.Product{}, apperrors.NotFound("product", strconv.FormatInt(id, 10))
		}
		return domain.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// ListProducts walks every page of the listing until page >= totalPages.
func (c *HTTPCatalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var all []domain.Product

	for n := 0; n < maxPages; n++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(n))
		q.Set("size", strconv.Itoa(c.pageSize))

		var pg page
		if err := httpclient.GetJSON(ctx, c.client, c.baseURL+"/products?"+q.Encode(), serviceName, &pg); err != nil {
			return nil, fmt.Errorf("list products page %d: %w", n, err)
		}
		if pg.Content == nil {
			return nil, fmt.Errorf("list products page %d: response has no content array", n)
		}
		all = append(all, pg.Content...)

		if n+1 >= pg.TotalPages {
			break
		}
	}

	c.logger.DebugContext(ctx, "catalog listed",
		slog.Int("products", len(all)),
	)
	return all, nil
}
