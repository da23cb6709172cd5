package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Severity drives how a toast is styled.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a short user-facing message produced by a cart mutation.
type Notification struct {
	SessionID string    `json:"session_id,omitempty"`
	Severity  Severity  `json:"severity"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Toast durations the UI uses for each severity, in milliseconds.
const (
	DefaultDurationMS = 3000
	ErrorDurationMS   = 4000
)

// DurationMS returns how long the UI keeps the toast on screen.
func (n Notification) DurationMS() int {
	if n.Severity == SeverityError {
		return ErrorDurationMS
	}
	return DefaultDurationMS
}

func newNotification(sev Severity, title, body string) *Notification {
	return &Notification{
		Severity:  sev,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
}

// ItemAddedNotice is emitted when a new line is created.
func ItemAddedNotice(name string, quantity int) *Notification {
	return newNotification(SeveritySuccess, "Producto agregado al carrito",
		fmt.Sprintf("%s - Cantidad: %d", name, quantity))
}

// ItemMergedNotice is emitted when an add merges into an existing line.
func ItemMergedNotice(name string, quantity int) *Notification {
	return newNotification(SeveritySuccess, "Cantidad actualizada",
		fmt.Sprintf("%s - Cantidad: %d", name, quantity))
}

// QuantityUpdatedNotice is emitted when a quantity is set directly.
func QuantityUpdatedNotice(name string, quantity int) *Notification {
	return newNotification(SeveritySuccess, "Cantidad actualizada",
		fmt.Sprintf("%s - Nueva cantidad: %d", name, quantity))
}

// ItemRemovedNotice names the product whose line was removed.
func ItemRemovedNotice(name string) *Notification {
	return newNotification(SeveritySuccess, "Producto eliminado del carrito", name)
}

// InsufficientStockNotice reports a rejected mutation.
func InsufficientStockNotice(s InsufficientStock) *Notification {
	return newNotification(SeverityError, "Stock insuficiente",
		fmt.Sprintf("%s - Stock disponible: %d, Cantidad solicitada: %d", s.ProductName, s.Available, s.Requested))
}

// CartClearedNotice reports how many lines an explicit clear removed.
func CartClearedNotice(lines int) *Notification {
	suffix := ""
	if lines > 1 {
		suffix = "s"
	}
	return newNotification(SeverityWarning, "Carrito vaciado",
		fmt.Sprintf("Se eliminaron %d producto%s del carrito", lines, suffix))
}

// CartRefreshedNotice summarises a refresh that changed the cart.
func CartRefreshedNotice(updated, removed int) *Notification {
	return newNotification(SeverityInfo, "Carrito actualizado",
		fmt.Sprintf("Se actualizaron %d producto(s) y se eliminaron %d sin stock", updated, removed))
}

// PurchaseCompletedNotice confirms a successful checkout.
func PurchaseCompletedNotice(symbol string, total decimal.Decimal) *Notification {
	return newNotification(SeveritySuccess, "¡Compra realizada con éxito!",
		fmt.Sprintf("Tu pedido por %s ha sido procesado correctamente.", FormatPrice(symbol, total)))
}
