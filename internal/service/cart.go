package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/geb2701/storefront/internal/domain"
	"github.com/geb2701/storefront/internal/notify"
	"github.com/geb2701/storefront/internal/repository"
	apperrors "github.com/geb2701/storefront/pkg/errors"
	"github.com/geb2701/storefront/pkg/tracing"
)

var (
	cartMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
		Help: "Cart mutations by operation and outcome.",
	}, []string{"operation", "outcome"})

	persistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_cart_persist_failures_total",
		Help: "Cart state writes that failed and were dropped.",
	})
)

var tracer = tracing.Tracer("service")

// ProductCatalog looks products up by id. Both catalog.HTTPCatalog and
// catalog.MemoryCatalog satisfy it.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// EventPublisher announces cart changes. event.Producer satisfies it.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, snap domain.Snapshot, op domain.Operation) error
	PublishCartCleared(ctx context.Context, sessionID string) error
}

// StoreDeps are the collaborators shared by every session's store.
type StoreDeps struct {
	Repo     repository.StateRepository
	Notifier notify.Notifier
	Events   EventPublisher
	Logger   *slog.Logger
	Currency string
}

// CartStore is one session's cart. Mutations are serialised by mu: each runs
// validate, replace, persist and notify before the next one starts.
// Subscribers run under mu and must not call back into the store.
type CartStore struct {
	mu     sync.Mutex
	items  domain.Lines
	isOpen bool

	sessionID string
	key       string
	deps      StoreDeps

	subMu   sync.Mutex
	subs    map[int]func(domain.Snapshot)
	nextSub int
}

// NewCartStore builds a store for sessionID and restores its persisted items.
// A missing or unreadable blob yields an empty cart.
func NewCartStore(ctx context.Context, sessionID string, deps StoreDeps) *CartStore {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Multi{}
	}
	if deps.Currency == "" {
		deps.Currency = domain.DefaultCurrencySymbol
	}

	s := &CartStore{
		items:     domain.Lines{},
		sessionID: sessionID,
		key:       repository.StateKey(sessionID),
		deps:      deps,
		subs:      make(map[int]func(domain.Snapshot)),
	}
	s.restore(ctx)
	return s
}

func (s *CartStore) restore(ctx context.Context) {
	if s.deps.Repo == nil {
		return
	}
	items, err := s.deps.Repo.Load(ctx, s.key)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.deps.Logger.WarnContext(ctx, "failed to restore cart, starting empty",
				slog.String("session_id", s.sessionID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	restored := make(domain.Lines, 0, len(items))
	for _, li := range items {
		if li.Quantity < 1 || restored.Index(li.Product.ID) >= 0 {
			continue
		}
		restored = append(restored, li)
	}
	s.items = restored

	s.deps.Logger.DebugContext(ctx, "cart restored",
		slog.String("session_id", s.sessionID),
		slog.Int("lines", len(restored)),
	)
}

// SessionID returns the session this store belongs to.
func (s *CartStore) SessionID() string { return s.sessionID }

// --- Mutations ---

// AddItem adds quantity units of product. An existing line is merged: its
// price snapshot is kept and only the stock figure is taken from product, so
// the line is repriced only by RefreshProducts. The combined quantity may not
// exceed product.Stock.
func (s *CartStore) AddItem(ctx context.Context, product domain.Product, quantity int) domain.MutationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 1 {
		quantity = 1
	}

	i := s.items.Index(product.ID)
	if i < 0 {
		if quantity > product.Stock {
			return s.reject(ctx, domain.OpAddItem, product, quantity)
		}
		next := append(s.items.Clone(), domain.LineItem{Product: product, Quantity: quantity})
		return s.commit(ctx, domain.OpAddItem, next, domain.ItemAddedNotice(product.Name, quantity))
	}

	combined := s.items[i].Quantity + quantity
	if combined > product.Stock {
		return s.reject(ctx, domain.OpAddItem, product, combined)
	}
	next := s.items.Clone()
	next[i].Product.Stock = product.Stock
	next[i].Quantity = combined
	return s.commit(ctx, domain.OpAddItem, next, domain.ItemMergedNotice(product.Name, combined))
}

// AddOne adds a single unit of product.
func (s *CartStore) AddOne(ctx context.Context, product domain.Product) domain.MutationResult {
	return s.AddItem(ctx, product, 1)
}

// RemoveItem drops the line for productID. Missing lines are a silent no-op.
func (s *CartStore) RemoveItem(ctx context.Context, productID int64) domain.MutationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(ctx, domain.OpRemoveItem, productID)
}

func (s *CartStore) removeLocked(ctx context.Context, op domain.Operation, productID int64) domain.MutationResult {
	i := s.items.Index(productID)
	if i < 0 {
		return s.noop(op)
	}
	name := s.items[i].Product.Name

	next := make(domain.Lines, 0, len(s.items)-1)
	next = append(next, s.items[:i]...)
	next = append(next, s.items[i+1:]...)
	return s.commit(ctx, op, next, domain.ItemRemovedNotice(name))
}

// UpdateQuantity sets the quantity of an existing line. Zero or less removes
// the line; more than the snapshot's stock is rejected.
func (s *CartStore) UpdateQuantity(ctx context.Context, productID int64, quantity int) domain.MutationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		return s.removeLocked(ctx, domain.OpUpdateQuantity, productID)
	}

	i := s.items.Index(productID)
	if i < 0 {
		return s.noop(domain.OpUpdateQuantity)
	}
	line := s.items[i]
	if quantity > line.Product.Stock {
		return s.reject(ctx, domain.OpUpdateQuantity, line.Product, quantity)
	}

	next := s.items.Clone()
	next[i].Quantity = quantity
	return s.commit(ctx, domain.OpUpdateQuantity, next, domain.QuantityUpdatedNotice(line.Product.Name, quantity))
}

// ClearCart empties the cart. Unless silent, a warning naming how many lines
// were removed is emitted; clearing an empty cart never notifies.
func (s *CartStore) ClearCart(ctx context.Context, silent bool) domain.MutationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var notice *domain.Notification
	if !silent && len(s.items) > 0 {
		notice = domain.CartClearedNotice(len(s.items))
	}
	return s.commit(ctx, domain.OpClearCart, domain.Lines{}, notice)
}

// RemoveOrdered takes the quantities of ordered out of the cart without a
// notification. Units added after ordered was read stay in the cart. When
// nothing is left the change is recorded as a clear.
func (s *CartStore) RemoveOrdered(ctx context.Context, ordered domain.Lines) domain.MutationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(domain.Lines, 0, len(s.items))
	for _, line := range s.items {
		line.Quantity -= ordered.Quantity(line.Product.ID)
		if line.Quantity > 0 {
			next = append(next, line)
		}
	}

	op := domain.OpCheckout
	if len(next) == 0 {
		op = domain.OpClearCart
	}
	return s.commit(ctx, op, next, nil)
}

// ToggleCart flips the open flag. The flag is never persisted.
func (s *CartStore) ToggleCart() domain.MutationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setOpen(!s.isOpen)
}

// OpenCart opens the cart panel.
func (s *CartStore) OpenCart() domain.MutationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setOpen(true)
}

// CloseCart closes the cart panel.
func (s *CartStore) CloseCart() domain.MutationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setOpen(false)
}

func (s *CartStore) setOpen(open bool) domain.MutationResult {
	s.isOpen = open
	snap := s.snapshotLocked()
	s.publishToSubscribers(snap)
	cartMutations.WithLabelValues(string(domain.OpToggle), string(domain.OutcomeApplied)).Inc()
	return domain.MutationResult{
		Operation: domain.OpToggle,
		Outcome:   domain.OutcomeApplied,
		Snapshot:  snap,
	}
}

// RefreshProducts re-reads every line's product from catalog. Snapshots are
// replaced, quantities clamped to the new stock, and lines whose product is
// gone or sold out are dropped. Lines whose lookup fails for another reason
// keep their old snapshot. An error is returned only when every lookup failed
// that way.
func (s *CartStore) RefreshProducts(ctx context.Context, catalog ProductCatalog) (domain.MutationResult, error) {
	ctx, span := tracer.Start(ctx, "CartStore.RefreshProducts")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	span.SetAttributes(
		attribute.String("cart.session_id", s.sessionID),
		attribute.Int("cart.lines", len(s.items)),
	)

	var (
		next             = make(domain.Lines, 0, len(s.items))
		updated, removed int
		failed           int
		lastErr          error
	)
	for _, line := range s.items {
		fresh, err := catalog.GetProduct(ctx, line.Product.ID)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			removed++
			continue
		case err != nil:
			failed++
			lastErr = err
			s.deps.Logger.WarnContext(ctx, "failed to refresh cart line",
				slog.String("session_id", s.sessionID),
				slog.Int64("product_id", line.Product.ID),
				slog.String("error", err.Error()),
			)
			next = append(next, line)
			continue
		case fresh.Stock <= 0:
			removed++
			continue
		}

		qty := line.Quantity
		if qty > fresh.Stock {
			qty = fresh.Stock
		}
		if qty != line.Quantity || !fresh.Equal(line.Product) {
			updated++
		}
		next = append(next, domain.LineItem{Product: fresh, Quantity: qty})
	}

	if failed > 0 && failed == len(s.items) {
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, "catalog unavailable")
		return s.noop(domain.OpRefresh), apperrors.Wrap(lastErr, "refresh cart")
	}
	if updated == 0 && removed == 0 {
		return s.noop(domain.OpRefresh), nil
	}

	span.SetAttributes(
		attribute.Int("cart.updated", updated),
		attribute.Int("cart.removed", removed),
	)
	return s.commit(ctx, domain.OpRefresh, next, domain.CartRefreshedNotice(updated, removed)), nil
}

// --- Readers ---

// Items returns a copy of the current lines.
func (s *CartStore) Items() domain.Lines {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Clone()
}

// IsOpen reports whether the cart panel is open.
func (s *CartStore) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isOpen
}

// TotalItems sums quantities.
func (s *CartStore) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.TotalItems()
}

// TotalPrice sums line totals at effective prices.
func (s *CartStore) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.TotalPrice()
}

// FormattedTotal renders TotalPrice with the configured currency symbol.
func (s *CartStore) FormattedTotal() string {
	return domain.FormatPrice(s.deps.Currency, s.TotalPrice())
}

// ItemQuantity returns the quantity held for productID, or 0.
func (s *CartStore) ItemQuantity(productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Quantity(productID)
}

// Snapshot returns an immutable view of the cart.
func (s *CartStore) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *CartStore) snapshotLocked() domain.Snapshot {
	return domain.NewSnapshot(s.sessionID, s.items.Clone(), s.isOpen)
}

// Subscribe registers fn to receive a snapshot after every applied change.
// The returned function unregisters it.
func (s *CartStore) Subscribe(fn func(domain.Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *CartStore) publishToSubscribers(snap domain.Snapshot) {
	s.subMu.Lock()
	fns := make([]func(domain.Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// --- Commit paths ---

// commit replaces the items, persists them, tells subscribers and emits at
// most one notification, in that order. Callers hold mu.
func (s *CartStore) commit(ctx context.Context, op domain.Operation, next domain.Lines, notice *domain.Notification) domain.MutationResult {
	s.items = next
	s.persist(ctx)

	snap := s.snapshotLocked()
	s.publishToSubscribers(snap)
	s.publishEvent(ctx, op, snap)

	if notice != nil {
		s.emit(ctx, notice)
	}
	cartMutations.WithLabelValues(string(op), string(domain.OutcomeApplied)).Inc()

	return domain.MutationResult{
		Operation:    op,
		Outcome:      domain.OutcomeApplied,
		Notification: notice,
		Snapshot:     snap,
	}
}

func (s *CartStore) reject(ctx context.Context, op domain.Operation, product domain.Product, requested int) domain.MutationResult {
	shortage := &domain.InsufficientStock{
		ProductID:   product.ID,
		ProductName: product.Name,
		Available:   product.Stock,
		Requested:   requested,
	}
	notice := domain.InsufficientStockNotice(*shortage)
	s.emit(ctx, notice)
	cartMutations.WithLabelValues(string(op), string(domain.OutcomeRejected)).Inc()

	return domain.MutationResult{
		Operation:    op,
		Outcome:      domain.OutcomeRejected,
		Shortage:     shortage,
		Notification: notice,
		Snapshot:     s.snapshotLocked(),
	}
}

func (s *CartStore) noop(op domain.Operation) domain.MutationResult {
	cartMutations.WithLabelValues(string(op), string(domain.OutcomeNoop)).Inc()
	return domain.MutationResult{
		Operation: op,
		Outcome:   domain.OutcomeNoop,
		Snapshot:  s.snapshotLocked(),
	}
}

// persist writes the items. Failures are logged and counted, never returned.
func (s *CartStore) persist(ctx context.Context) {
	if s.deps.Repo == nil {
		return
	}
	if err := s.deps.Repo.Save(ctx, s.key, s.items); err != nil {
		persistFailures.Inc()
		s.deps.Logger.ErrorContext(ctx, "failed to persist cart",
			slog.String("session_id", s.sessionID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CartStore) publishEvent(ctx context.Context, op domain.Operation, snap domain.Snapshot) {
	if s.deps.Events == nil {
		return
	}
	var err error
	if op == domain.OpClearCart {
		err = s.deps.Events.PublishCartCleared(ctx, s.sessionID)
	} else {
		err = s.deps.Events.PublishCartUpdated(ctx, snap, op)
	}
	if err != nil {
		s.deps.Logger.WarnContext(ctx, "failed to publish cart event",
			slog.String("session_id", s.sessionID),
			slog.String("operation", string(op)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CartStore) emit(ctx context.Context, n *domain.Notification) {
	n.SessionID = s.sessionID
	s.deps.Notifier.Notify(ctx, *n)
}
