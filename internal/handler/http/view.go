package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/geb2701/storefront/internal/domain"
)

// --- Response views ---

// productView adds the pricing helpers a storefront page renders.
type productView struct {
	domain.Product
	HasDiscount            bool            `json:"has_discount"`
	EffectivePrice         decimal.Decimal `json:"effective_price"`
	DiscountPercentage     int             `json:"discount_percentage"`
	FormattedPrice         string          `json:"formatted_price"`
	FormattedDiscountPrice string          `json:"formatted_discount_price"`
	InStock                bool            `json:"in_stock"`
}

type lineView struct {
	Product            productView     `json:"product"`
	Quantity           int             `json:"quantity"`
	LineTotal          decimal.Decimal `json:"line_total"`
	FormattedLineTotal string          `json:"formatted_line_total"`
}

type cartView struct {
	SessionID      string          `json:"session_id"`
	Items          []lineView      `json:"items"`
	IsOpen         bool            `json:"is_open"`
	TotalItems     int             `json:"total_items"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	FormattedTotal string          `json:"formatted_total"`
}

type notificationView struct {
	Severity   domain.Severity `json:"severity"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
	DurationMS int             `json:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at"`
}

type mutationView struct {
	Operation    domain.Operation  `json:"operation"`
	Outcome      domain.Outcome    `json:"outcome"`
	Cart         cartView          `json:"cart"`
	Notification *notificationView `json:"notification,omitempty"`
}

type quantityView struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// views renders domain values with one currency symbol.
type views struct {
	currency string
}

func (v views) product(p domain.Product) productView {
	return productView{
		Product:                p,
		HasDiscount:            p.HasDiscount(),
		EffectivePrice:         p.EffectivePrice(),
		DiscountPercentage:     p.DiscountPercentage(),
		FormattedPrice:         domain.FormatPrice(v.currency, p.Price),
		FormattedDiscountPrice: domain.FormatPrice(v.currency, p.EffectivePrice()),
		InStock:                p.InStock(),
	}
}

func (v views) products(ps []domain.Product) []productView {
	out := make([]productView, len(ps))
	for i, p := range ps {
		out[i] = v.product(p)
	}
	return out
}

func (v views) cart(s domain.Snapshot) cartView {
	items := make([]lineView, len(s.Items))
	for i, li := range s.Items {
		items[i] = lineView{
			Product:            v.product(li.Product),
			Quantity:           li.Quantity,
			LineTotal:          li.LineTotal(),
			FormattedLineTotal: domain.FormatPrice(v.currency, li.LineTotal()),
		}
	}
	return cartView{
		SessionID:      s.SessionID,
		Items:          items,
		IsOpen:         s.IsOpen,
		TotalItems:     s.TotalItems,
		TotalPrice:     s.TotalPrice,
		FormattedTotal: domain.FormatPrice(v.currency, s.TotalPrice),
	}
}

func (v views) notification(n domain.Notification) notificationView {
	return notificationView{
		Severity:   n.Severity,
		Title:      n.Title,
		Body:       n.Body,
		DurationMS: n.DurationMS(),
		CreatedAt:  n.CreatedAt,
	}
}

func (v views) notifications(ns []domain.Notification) []notificationView {
	out := make([]notificationView, len(ns))
	for i, n := range ns {
		out[i] = v.notification(n)
	}
	return out
}

func (v views) mutation(res domain.MutationResult) mutationView {
	mv := mutationView{
		Operation: res.Operation,
		Outcome:   res.Outcome,
		Cart:      v.cart(res.Snapshot),
	}
	if res.Notification != nil {
		n := v.notification(*res.Notification)
		mv.Notification = &n
	}
	return mv
}
