package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCurrencySymbol prefixes formatted amounts unless configured otherwise.
const DefaultCurrencySymbol = "$"

var hundred = decimal.NewFromInt(100)

// Category groups products. The catalog API sends either an object or just
// the category name, so both decode.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts {"id":1,"name":"Mates"}, "Mates" or null.
func (c *Category) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = Category{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return fmt.Errorf("decode category name: %w", err)
		}
		*c = Category{Name: name}
		return nil
	}

	type plain Category
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode category: %w", err)
	}
	*c = Category(p)
	return nil
}

// Product is a catalog entry as the cart sees it. Cart lines hold copies, so
// later catalog changes only reach a cart through an explicit refresh.
type Product struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discount,omitempty"`
	Stock         int              `json:"stock"`
	Category      Category         `json:"category"`
	Image         string           `json:"image"`
}

// HasDiscount reports whether the discount price is set and strictly between
// zero and the list price. Anything else is treated as no discount.
func (p Product) HasDiscount() bool {
	if p.DiscountPrice == nil {
		return false
	}
	d := *p.DiscountPrice
	return d.IsPositive() && d.LessThan(p.Price)
}

// EffectivePrice is the unit price a buyer pays.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.HasDiscount() {
		return *p.DiscountPrice
	}
	return p.Price
}

// DiscountPercentage is the whole-number percentage saved, halves rounded up.
func (p Product) DiscountPercentage() int {
	if !p.HasDiscount() {
		return 0
	}
	saved := p.Price.Sub(*p.DiscountPrice).Div(p.Price).Mul(hundred)
	return int(saved.Round(0).IntPart())
}

// FormattedPrice renders the list price, e.g. "$100.00".
func (p Product) FormattedPrice() string {
	return FormatPrice(DefaultCurrencySymbol, p.Price)
}

// FormattedDiscountPrice renders the effective price.
func (p Product) FormattedDiscountPrice() string {
	return FormatPrice(DefaultCurrencySymbol, p.EffectivePrice())
}

// InStock reports whether at least one unit can be sold.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// Equal reports whether two snapshots carry the same catalog data.
func (p Product) Equal(o Product) bool {
	if p.ID != o.ID || p.Name != o.Name || p.Description != o.Description ||
		p.Stock != o.Stock || p.Category != o.Category || p.Image != o.Image {
		return false
	}
	if !p.Price.Equal(o.Price) {
		return false
	}
	switch {
	case p.DiscountPrice == nil && o.DiscountPrice == nil:
		return true
	case p.DiscountPrice == nil || o.DiscountPrice == nil:
		return false
	default:
		return p.DiscountPrice.Equal(*o.DiscountPrice)
	}
}

// FormatPrice renders amount with two fixed decimals after symbol.
func FormatPrice(symbol string, amount decimal.Decimal) string {
	return symbol + amount.StringFixed(2)
}

// Price is a convenience for building decimals from literals in seeds and tests.
func Price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// PricePtr is like Price but returns a pointer, for optional discounts.
func PricePtr(s string) *decimal.Decimal {
	d := Price(s)
	return &d
}
