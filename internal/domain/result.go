package domain

import (
	apperrors "github.com/geb2701/storefront/pkg/errors"
)

// Operation names a cart mutation for results, metrics and events.
type Operation string

const (
	OpAddItem        Operation = "add_item"
	OpRemoveItem     Operation = "remove_item"
	OpUpdateQuantity Operation = "update_quantity"
	OpClearCart      Operation = "clear_cart"
	OpRefresh        Operation = "refresh"
	OpToggle         Operation = "toggle"
	OpCheckout       Operation = "checkout"
)

// Outcome classifies what a mutation did.
type Outcome string

const (
	// OutcomeApplied means the cart changed and was persisted.
	OutcomeApplied Outcome = "applied"
	// OutcomeNoop means nothing matched, so nothing changed.
	OutcomeNoop Outcome = "noop"
	// OutcomeRejected means a stock check failed and nothing changed.
	OutcomeRejected Outcome = "rejected"
)

// InsufficientStock describes a rejected quantity. Requested is the total the
// line would have reached, not the increment.
type InsufficientStock struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Available   int    `json:"available"`
	Requested   int    `json:"requested"`
}

// Err converts the shortage into the API error returned for rejected calls.
func (s InsufficientStock) Err() *apperrors.AppError {
	return apperrors.InsufficientStock(s.ProductName, s.Available, s.Requested)
}

// MutationResult is returned by every cart mutation.
type MutationResult struct {
	Operation    Operation          `json:"operation"`
	Outcome      Outcome            `json:"outcome"`
	Shortage     *InsufficientStock `json:"shortage,omitempty"`
	Notification *Notification      `json:"notification,omitempty"`
	Snapshot     Snapshot           `json:"cart"`
}

// Applied reports whether the cart changed.
func (r MutationResult) Applied() bool { return r.Outcome == OutcomeApplied }

// Rejected reports whether a stock check failed.
func (r MutationResult) Rejected() bool { return r.Outcome == OutcomeRejected }

// Err returns the API error for a rejected result and nil otherwise.
func (r MutationResult) Err() error {
	if r.Outcome != OutcomeRejected || r.Shortage == nil {
		return nil
	}
	return r.Shortage.Err()
}
