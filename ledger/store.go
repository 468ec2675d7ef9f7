/*
store.go - Persistence interfaces for the billing ledger

PURPOSE:
  Defines the contract between the engines and the database. Different
  implementations can use SQLite or in-memory storage; the engines only see
  these interfaces.

MUTATION CONTRACT:
  - Entries: insert-only, except SetEntryRemaining, which is the single
    sanctioned mutation of a ledger row (allocation decrements, reversal and
    dispute restoration adjust). No other column of an entry ever changes.
  - Payments: insert, remaining-amount decrement, and the reversal status
    flip. Amount is immutable.
  - Applications: inserted by allocation, deleted wholesale by reversal.
    Never edited.
  - PnL entries: inserted by allocation, deleted by reversal, keyed by
    payment.

ATOMICITY:
  TxStore.WithTx runs a closure against a transactional view of the store.
  Either every write in the closure commits or none do. The engines wrap
  every multi-row mutation in WithTx; the store's transactional guarantee —
  not application-level retries — is what prevents partial state.
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

// EntryStore persists ledger entries.
type EntryStore interface {
	InsertEntry(ctx context.Context, e Entry) error

	// GetEntry loads one entry within scope. Returns ErrEntryNotFound.
	GetEntry(ctx context.Context, scope Scope, id string) (*Entry, error)

	// OpenCharges returns charge entries with Remaining > 0 for the customer,
	// ordered by due date, then creation time, then ID. The ordering is part
	// of the allocation contract: oldest-due charges are settled first.
	OpenCharges(ctx context.Context, scope Scope) ([]Entry, error)

	// OpenFineCharges returns open fine-category charges referencing the
	// given fine.
	OpenFineCharges(ctx context.Context, scope Scope, fineID string) ([]Entry, error)

	// SetEntryRemaining updates the remaining amount of one entry. The store
	// must reject negative values with ErrNegativeRemaining.
	SetEntryRemaining(ctx context.Context, scope Scope, id string, remaining decimal.Decimal) error

	// PaymentEntry returns the ledger entry of kind payment referencing the
	// payment, or nil if none was recorded.
	PaymentEntry(ctx context.Context, scope Scope, paymentID string) (*Entry, error)

	// EntriesByCustomer returns the customer's full ledger, chronologically.
	EntriesByCustomer(ctx context.Context, scope Scope) ([]Entry, error)
}

// PaymentStore persists payments.
type PaymentStore interface {
	InsertPayment(ctx context.Context, p Payment) error
	GetPayment(ctx context.Context, scope Scope, id string) (*Payment, error)

	// SetPaymentRemaining decrements the unallocated portion and records the
	// status. Rejects negative values with ErrNegativeRemaining.
	SetPaymentRemaining(ctx context.Context, scope Scope, id string, remaining decimal.Decimal, status PaymentStatus) error

	// SetPaymentVerification records a verification transition.
	SetPaymentVerification(ctx context.Context, scope Scope, id string, v VerificationStatus) error

	// MarkPaymentReversed applies the terminal reversal state: status
	// reversed, remaining zero, prefixed reason, reversal timestamp.
	MarkPaymentReversed(ctx context.Context, scope Scope, id string, reason string) error
}

// ApplicationStore persists payment applications.
type ApplicationStore interface {
	InsertApplication(ctx context.Context, a Application) error
	ApplicationsByPayment(ctx context.Context, scope Scope, paymentID string) ([]Application, error)
	DeleteApplicationsByPayment(ctx context.Context, scope Scope, paymentID string) error
}

// PnLStore persists revenue-recognition entries.
type PnLStore interface {
	InsertPnL(ctx context.Context, e PnLEntry) error
	PnLByPayment(ctx context.Context, scope Scope, paymentID string) ([]PnLEntry, error)
	DeletePnLByPayment(ctx context.Context, scope Scope, paymentID string) error
}

// FineStore persists fine dispute state.
type FineStore interface {
	InsertFine(ctx context.Context, f Fine) error
	GetFine(ctx context.Context, scope Scope, id string) (*Fine, error)
	SetFineStatus(ctx context.Context, scope Scope, id string, status FineStatus) error
}

// Store is the full persistence surface the engines require.
type Store interface {
	EntryStore
	PaymentStore
	ApplicationStore
	PnLStore
	FineStore
}

// TxStore adds transactional execution.
type TxStore interface {
	Store

	// WithTx executes fn against a transactional store view. If fn returns
	// an error the transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
