package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/geb2701/storefront/internal/domain"
	apperrors "github.com/geb2701/storefront/pkg/errors"
)

//go:embed seed.json
var defaultSeed []byte

// MemoryCatalog serves a fixed product list, for local runs without the
// backend API.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[int64]domain.Product
}

// NewMemoryCatalog creates a catalog holding products.
func NewMemoryCatalog(products ...domain.Product) *MemoryCatalog {
	c := &MemoryCatalog{products: make(map[int64]domain.Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// LoadMemoryCatalog reads a JSON array of products.
func LoadMemoryCatalog(r io.Reader) (*MemoryCatalog, error) {
	var products []domain.Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode product seed: %w", err)
	}
	return NewMemoryCatalog(products...), nil
}

// DefaultMemoryCatalog returns the catalog built from the bundled seed.
func DefaultMemoryCatalog() *MemoryCatalog {
	var products []domain.Product
	if err := json.Unmarshal(defaultSeed, &products); err != nil {
		panic(fmt.Sprintf("catalog: bundled seed is invalid: %v", err))
	}
	return NewMemoryCatalog(products...)
}

func (c *MemoryCatalog) GetProduct(_ context.Context, id int64) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return domain.Product{}, apperrors.NotFound("product", strconv.FormatInt(id, 10))
	}
	return p, nil
}

// ListProducts returns every product ordered by id.
func (c *MemoryCatalog) ListProducts(_ context.Context) ([]domain.Product, error) {
	c.mu.RLock()
	out := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Put adds or replaces a product.
func (c *MemoryCatalog) Put(p domain.Product) {
	c.mu.Lock()
	c.products[p.ID] = p
	c.mu.Unlock()
}

// Remove deletes a product.
func (c *MemoryCatalog) Remove(id int64) {
	c.mu.Lock()
	delete(c.products, id)
	c.mu.Unlock()
}
