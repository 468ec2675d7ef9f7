/*
engine.go - Engine wiring and per-customer serialization

PURPOSE:
  The Engine groups the three mutation paths (allocation, reversal, dispute
  resolution) around one TxStore and one lock registry. Grouping them matters:
  allocation and reversal must mutually exclude on the same customer so that
  two simultaneous payments can never both observe the same remaining amount
  and double-allocate it below zero, and a payment can never be allocated and
  reversed concurrently.

LOCKING:
  One mutex per customer, held for the duration of an engine call, acquired
  before the transaction opens. Locks are created lazily in a registry map.
  Within a single process this serializes all ledger mutation per customer;
  the database transaction still provides the atomicity guarantee.

NOTIFICATIONS:
  Customer-facing notifications are best-effort side effects. A notifier
  failure is logged and ignored; it never fails or rolls back a ledger
  transaction.
*/
package ledger

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// LOCK REGISTRY - One mutex per customer, created lazily
// =============================================================================

type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{locks: make(map[string]*sync.Mutex)}
}

func (r *lockRegistry) forCustomer(scope Scope) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := scope.TenantID + "/" + scope.CustomerID
	if _, ok := r.locks[key]; !ok {
		r.locks[key] = &sync.Mutex{}
	}
	return r.locks[key]
}

// =============================================================================
// NOTIFIER - Best-effort customer notifications
// =============================================================================

// Notifier receives customer-facing events. Implementations must not block
// for long; errors are logged and discarded.
type Notifier interface {
	PaymentApplied(ctx context.Context, scope Scope, paymentID string) error
	PaymentReversed(ctx context.Context, scope Scope, paymentID, reason string) error
	FineResolved(ctx context.Context, scope Scope, fineID string, status FineStatus) error
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) PaymentApplied(context.Context, Scope, string) error          { return nil }
func (NopNotifier) PaymentReversed(context.Context, Scope, string, string) error { return nil }
func (NopNotifier) FineResolved(context.Context, Scope, string, FineStatus) error {
	return nil
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine owns all ledger mutation. Construct one per store.
type Engine struct {
	store    TxStore
	locks    *lockRegistry
	notifier Notifier
	log      *logrus.Logger
}

func NewEngine(store TxStore, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		store:    store,
		locks:    newLockRegistry(),
		notifier: NopNotifier{},
		log:      log,
	}
}

// WithNotifier sets the best-effort notifier. Returns the engine for chaining.
func (g *Engine) WithNotifier(n Notifier) *Engine {
	g.notifier = n
	return g
}

// notify runs a notifier call and logs failures without propagating them.
func (g *Engine) notify(what string, fn func() error) {
	if err := fn(); err != nil {
		g.log.WithError(err).Warnf("notification failed: %s", what)
	}
}

// CreateCharge records a new charge entry. Rental billing and installment
// sweeps call this; the charge opens with Remaining == Amount.
func (g *Engine) CreateCharge(ctx context.Context, scope Scope, c Entry) (*Entry, error) {
	if !c.Amount.IsPositive() {
		return nil, &AmountError{Op: "create charge", Amount: c.Amount, Limit: decimal.Zero}
	}
	if c.ID == "" {
		c.ID = NewID()
	}
	c.TenantID = scope.TenantID
	c.CustomerID = scope.CustomerID
	c.Kind = KindCharge
	if c.Category == "" {
		c.Category = CategoryRental
	}
	c.Amount = Round2(c.Amount)
	c.Remaining = c.Amount
	if c.EntryDate.IsZero() {
		c.EntryDate = Today()
	}
	if c.DueDate.IsZero() {
		c.DueDate = c.EntryDate
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = nowUTC()
	}
	if err := g.store.InsertEntry(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Ledger returns the customer's full ledger, chronologically.
func (g *Engine) Ledger(ctx context.Context, scope Scope) ([]Entry, error) {
	return g.store.EntriesByCustomer(ctx, scope)
}
