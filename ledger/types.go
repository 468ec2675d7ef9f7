/*
Package ledger is the billing ledger core for the rental platform.

PURPOSE:
  This package owns the financial state of a customer: the dated ledger of
  charges, payments, credits, and adjustments, plus the three engines that
  mutate it — payment allocation, payment reversal, and fine dispute
  resolution. Everything else in the platform (booking screens, operator
  portal, gateway webhooks) is a caller of this package, never an editor
  of its rows.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry: A dated ledger row with a closed Kind (charge/payment/credit/adjustment)
  - Payment: A captured or manually recorded customer payment
  - Application: The join record applying payment funds to one charge
  - PnLEntry: Revenue recognition derived from an application
  - Scope: Explicit tenant + customer scoping threaded through every call

DESIGN PRINCIPLES:
  1. Precision: All money is decimal.Decimal, rounded to 2 places at
     documented points only. Never float64.
  2. Closed variants: Entry kinds are a closed enum switched exhaustively,
     never ad-hoc string comparison against stored text.
  3. Explicit scope: There is no ambient "current tenant". Every engine call
     and store query receives a Scope value.
  4. Audit trail: Charges are never physically deleted. Corrections happen
     through adjustments and credits.

SEE ALSO:
  - store.go: Persistence interfaces
  - allocation.go / reversal.go / dispute.go: The engines
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SCOPE - Explicit tenant + customer scoping
// =============================================================================

// Scope identifies whose ledger an operation touches. It is passed explicitly
// through every engine call and store query; there is no package-level
// "current tenant".
type Scope struct {
	TenantID   string
	CustomerID string
}

// =============================================================================
// MONEY HELPERS
// =============================================================================

// Round2 rounds a money amount to 2 decimal places.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// NewID mints a ledger identifier.
func NewID() string { return uuid.NewString() }

// =============================================================================
// ENTRY - Dated ledger row with a closed kind
// =============================================================================

type EntryKind string

const (
	KindCharge     EntryKind = "charge"     // Amount owed by the customer
	KindPayment    EntryKind = "payment"    // Ledger reflection of a recorded payment
	KindCredit     EntryKind = "credit"     // Unapplied customer balance
	KindAdjustment EntryKind = "adjustment" // Signed correction, no cash moved
)

// Kinds lists every entry kind. Logic that switches on EntryKind must handle
// all of them.
func Kinds() []EntryKind {
	return []EntryKind{KindCharge, KindPayment, KindCredit, KindAdjustment}
}

type ChargeCategory string

const (
	CategoryRental ChargeCategory = "rental"
	CategoryFine   ChargeCategory = "fine"
	CategoryFee    ChargeCategory = "fee"
)

// Entry is one dated financial row in a customer's ledger.
//
// INVARIANTS:
//   - Amount is immutable once written.
//   - 0 <= Remaining <= Amount for charges and credits.
//   - Remaining only decreases via allocation and only increases via
//     reversal or an explicit adjustment targeting it.
//   - Entries are never physically deleted; they are the audit trail.
type Entry struct {
	ID         string
	TenantID   string
	CustomerID string
	RentalID   string // optional: which rental produced this entry
	VehicleID  string // optional

	Kind     EntryKind
	Category ChargeCategory // charges only

	Amount    decimal.Decimal // original, immutable; signed for adjustments
	Remaining decimal.Decimal // unsettled portion (charges, credits)

	DueDate   Date // charges: when settlement is expected
	EntryDate Date // when the entry took effect

	// Reference links the entry to its origin: a fine ID for fine charges,
	// a payment ID for payment entries, a reversal reason for adjustments.
	Reference   string
	Description string

	CreatedAt time.Time
}

// Open reports whether a charge or credit still has unsettled balance.
func (e Entry) Open() bool { return e.Remaining.IsPositive() }

// Scope returns the entry's tenant+customer scope.
func (e Entry) Scope() Scope { return Scope{TenantID: e.TenantID, CustomerID: e.CustomerID} }

// =============================================================================
// PAYMENT
// =============================================================================

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApplied  PaymentStatus = "applied"
	PaymentReversed PaymentStatus = "reversed"
	PaymentRefunded PaymentStatus = "refunded"
)

type VerificationStatus string

const (
	VerificationPending      VerificationStatus = "pending"
	VerificationApproved     VerificationStatus = "approved"
	VerificationRejected     VerificationStatus = "rejected"
	VerificationAutoApproved VerificationStatus = "auto_approved"
)

type RefundStatus string

const (
	RefundNone       RefundStatus = ""
	RefundProcessing RefundStatus = "processing"
	RefundCompleted  RefundStatus = "completed"
)

// Payment is a captured or manually recorded customer payment.
//
// Amount is immutable. Remaining is the unallocated portion and starts equal
// to Amount. A payment with a non-empty CaptureRef was collected through the
// external gateway and may never be reversed here — it must be refunded
// through the gateway instead.
type Payment struct {
	ID         string
	TenantID   string
	CustomerID string
	RentalID   string

	Amount    decimal.Decimal
	Remaining decimal.Decimal

	Status       PaymentStatus
	Verification VerificationStatus
	RefundStatus RefundStatus

	// CaptureRef is the external gateway capture id. Empty for
	// manually-recorded payments.
	CaptureRef string

	Reason     string
	ReversedAt *time.Time
	CreatedAt  time.Time
}

// Gateway reports whether the payment was captured through the external
// gateway.
func (p Payment) Gateway() bool { return p.CaptureRef != "" }

// Scope returns the payment's tenant+customer scope.
func (p Payment) Scope() Scope { return Scope{TenantID: p.TenantID, CustomerID: p.CustomerID} }

// =============================================================================
// APPLICATION - Payment funds applied to one charge
// =============================================================================

// Application links one payment to one charge with the amount applied.
//
// INVARIANTS:
//   - Amount > 0.
//   - For a charge: Amount - Remaining == sum of its applications' amounts.
//   - For a payment: Amount - Remaining == sum of its applications' amounts.
//   - Applications are created by allocation and deleted wholesale by
//     reversal. They are never partially edited.
type Application struct {
	ID        string
	TenantID  string
	PaymentID string
	ChargeID  string
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// =============================================================================
// P&L ENTRY - Revenue recognition derived from an application
// =============================================================================

// PnLEntry records recognized revenue for one (payment, charge) pair. The
// Reference is the composite key "{paymentID}_{chargeID}" so reversal can
// locate and delete the rows for a payment.
type PnLEntry struct {
	ID           string
	TenantID     string
	CustomerID   string
	PaymentID    string
	Reference    string
	Amount       decimal.Decimal
	RecognizedOn Date
}

// PnLReference builds the composite reference key for a (payment, charge) pair.
func PnLReference(paymentID, chargeID string) string { return paymentID + "_" + chargeID }

// =============================================================================
// FINE - Dispute state for a fine charge
// =============================================================================

type FineStatus string

const (
	FineOpen             FineStatus = "Open"
	FineAppealSuccessful FineStatus = "Appeal Successful"
	FineWaived           FineStatus = "Waived"
)

// Fine tracks the dispute lifecycle of an issued fine. The money itself lives
// in fine-category charge entries referencing the fine's ID; this record only
// carries the status transition, which must commit atomically with the
// ledger adjustments the dispute engine writes.
type Fine struct {
	ID         string
	TenantID   string
	CustomerID string
	RentalID   string
	Amount     decimal.Decimal
	Status     FineStatus
	Reason     string
	IssuedOn   Date
}
