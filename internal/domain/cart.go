package domain

import (
	"github.com/shopspring/decimal"
)

// LineItem is one product in the cart. Quantity is kept within
// 1..Product.Stock as of the last mutation that touched the line.
type LineItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// LineTotal is the effective unit price times quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.Product.EffectivePrice().Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// FormattedLineTotal renders LineTotal with the default currency symbol.
func (li LineItem) FormattedLineTotal() string {
	return FormatPrice(DefaultCurrencySymbol, li.LineTotal())
}

// Lines is an ordered item collection keyed uniquely by product id.
type Lines []LineItem

// Index returns the position of productID or -1.
func (l Lines) Index(productID int64) int {
	for i := range l {
		if l[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// TotalItems sums quantities across all lines.
func (l Lines) TotalItems() int {
	var n int
	for _, li := range l {
		n += li.Quantity
	}
	return n
}

// TotalPrice sums line totals.
func (l Lines) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, li := range l {
		total = total.Add(li.LineTotal())
	}
	return total
}

// Quantity returns the quantity held for productID, or 0.
func (l Lines) Quantity(productID int64) int {
	if i := l.Index(productID); i >= 0 {
		return l[i].Quantity
	}
	return 0
}

// Clone returns an independent copy. Discount pointers are shared but never
// mutated in place.
func (l Lines) Clone() Lines {
	if l == nil {
		return Lines{}
	}
	out := make(Lines, len(l))
	copy(out, l)
	return out
}

// Snapshot is an immutable view of a cart handed to readers and subscribers.
type Snapshot struct {
	SessionID  string          `json:"session_id"`
	Items      Lines           `json:"items"`
	IsOpen     bool            `json:"is_open"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// NewSnapshot derives totals from items. items must already be a private copy.
func NewSnapshot(sessionID string, items Lines, isOpen bool) Snapshot {
	if items == nil {
		items = Lines{}
	}
	return Snapshot{
		SessionID:  sessionID,
		Items:      items,
		IsOpen:     isOpen,
		TotalItems: items.TotalItems(),
		TotalPrice: items.TotalPrice(),
	}
}
