package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geb2701/storefront/internal/domain"
	apperrors "github.com/geb2701/storefront/pkg/errors"
	"github.com/geb2701/storefront/pkg/httpclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient() *httpclient.Client {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.MaxRetries = 0
	return httpclient.New(cfg)
}

// --- HTTPCatalog.GetProduct ---

func TestHTTPCatalog_GetProduct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products/7", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":7,"name":"Yerba","price":12,"discount":10.8,"stock":40,"category":"Yerbas"}`))
	}))
	defer server.Close()

	c := NewHTTPCatalog(server.URL+"/api/", testClient(), testLogger())
	p, err := c.GetProduct(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "Yerbas", p.Category.Name)
	assert.True(t, p.EffectivePrice().Equal(domain.Price("10.8")))
}

func TestHTTPCatalog_GetProduct_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":404,"error":"Not Found","message":"Producto no encontrado","path":"/api/products/9"}`))
	}))
	defer server.Close()

	c := NewHTTPCatalog(server.URL+"/api", testClient(), testLogger())
	_, err := c.GetProduct(context.Background(), 9)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "product with id 9 not found")
}

func TestHTTPCatalog_GetProduct_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewHTTPCatalog(server.URL, testClient(), testLogger())
	_, err := c.GetProduct(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, httpclient.ErrServerError)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatus(err))
}

// --- HTTPCatalog.ListProducts ---

func TestHTTPCatalog_ListProducts_FollowsPages(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/products", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("size"))

		switch r.URL.Query().Get("page") {
		case "0":
			_, _ = w.Write([]byte(`{"content":[{"id":1,"name":"A","price":1,"stock":1},{"id":2,"name":"B","price":2,"stock":2}],"totalPages":2,"totalElements":3,"number":0,"size":100}`))
		case "1":
			_, _ = w.Write([]byte(`{"content":[{"id":3,"name":"C","price":3,"stock":3}],"totalPages":2,"totalElements":3,"number":1,"size":100}`))
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	c := NewHTTPCatalog(server.URL, testClient(), testLogger())
	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)

	require.Len(t, products, 3)
	assert.Equal(t, "C", products[2].Name)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPCatalog_ListProducts_EmptyCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[],"totalPages":0,"totalElements":0}`))
	}))
	defer server.Close()

	c := NewHTTPCatalog(server.URL, testClient(), testLogger())
	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestHTTPCatalog_ListProducts_MissingContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1}]`))
	}))
	defer server.Close()

	c := NewHTTPCatalog(server.URL, testClient(), testLogger())
	_, err := c.ListProducts(context.Background())
	require.Error(t, err)
}

func TestHTTPCatalog_ListProducts_NoContentField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalPages":1}`))
	}))
	defer server.Close()

	c := NewHTTPCatalog(server.URL, testClient(), testLogger())
	_, err := c.ListProducts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content array")
}

// --- MemoryCatalog ---

func TestMemoryCatalog_GetAndList(t *testing.T) {
	c := NewMemoryCatalog(
		domain.Product{ID: 2, Name: "B"},
		domain.Product{ID: 1, Name: "A"},
	)
	ctx := context.Background()

	p, err := c.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "A", p.Name)

	_, err = c.GetProduct(ctx, 99)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	list, err := c.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ID)

	c.Put(domain.Product{ID: 1, Name: "A2"})
	c.Remove(2)
	list, _ = c.ListProducts(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, "A2", list[0].Name)
}

func TestLoadMemoryCatalog(t *testing.T) {
	c, err := LoadMemoryCatalog(strings.NewReader(`[{"id":10,"name":"Termo","price":45,"stock":8,"category":"Termos"}]`))
	require.NoError(t, err)

	p, err := c.GetProduct(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "Termos", p.Category.Name)

	_, err = LoadMemoryCatalog(strings.NewReader(`{`))
	assert.Error(t, err)
}

func TestDefaultMemoryCatalog_SeedIsValid(t *testing.T) {
	c := DefaultMemoryCatalog()
	list, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, list)

	for _, p := range list {
		assert.NotEmpty(t, p.Name, fmt.Sprintf("product %d", p.ID))
		assert.GreaterOrEqual(t, p.Stock, 0)
	}

	mate, err := c.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 20, mate.DiscountPercentage())
}
