package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type productPage struct {
	Data []struct {
		ID                     int64  `json:"id"`
		HasDiscount            bool   `json:"has_discount"`
		InStock                bool   `json:"in_stock"`
		FormattedPrice         string `json:"formatted_price"`
		FormattedDiscountPrice string `json:"formatted_discount_price"`
	} `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	HasNext    bool `json:"has_next"`
}

func TestListProducts(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))

	var page productPage
	decode(t, rec, &page)
	assert.Equal(t, 3, page.TotalCount)
	require.Len(t, page.Data, 3)
	assert.Equal(t, int64(1), page.Data[0].ID)
	assert.True(t, page.Data[0].HasDiscount)
	assert.Equal(t, "$100.00", page.Data[0].FormattedPrice)
	assert.Equal(t, "$80.00", page.Data[0].FormattedDiscountPrice)
	assert.False(t, page.Data[2].InStock)
}

func TestListProducts_Paginated(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/products?page=2&per_page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page productPage
	decode(t, rec, &page)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.PerPage)
	assert.False(t, page.HasNext)
	require.Len(t, page.Data, 1)
	assert.Equal(t, int64(3), page.Data[0].ID)
}

func TestGetProduct(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/products/2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var p struct {
		Name           string `json:"name"`
		EffectivePrice string `json:"effective_price"`
	}
	decode(t, rec, &p)
	assert.Equal(t, "Bombilla alpaca", p.Name)
	assert.Equal(t, "25.5", p.EffectivePrice)
}

func TestGetProduct_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/products/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decode(t, rec, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestGetProduct_InvalidID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/products/0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthLive(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
