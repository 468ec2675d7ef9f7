/*
errors.go - Centralized error types for the billing ledger

PURPOSE:
  All sentinel and structured errors in one place. Callers classify failures
  into three buckets:
    1. Validation errors - bad input, rejected before any write
    2. Consistency errors - a referenced row vanished mid-operation or a
       write failed; the enclosing transaction aborts with no partial state
    3. Business-rule rejections - expected negative outcomes with a reason
       code (e.g. reversing a gateway-captured payment)

USAGE:
  if errors.Is(err, ledger.ErrPaymentNotFound) { ... }

  var rej *ledger.ReversalRejectedError
  if errors.As(err, &rej) {
      switch rej.Code { ... }
  }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPaymentNotFound is returned when a referenced payment does not exist
	// in the given scope.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrChargeNotFound is returned when a referenced charge vanished
	// mid-operation. This is a consistency error: the transaction aborts.
	ErrChargeNotFound = errors.New("charge not found")

	// ErrEntryNotFound is returned for missing ledger entries generally.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrFineNotFound is returned when a referenced fine does not exist.
	ErrFineNotFound = errors.New("fine not found")

	// ErrFineNotOpen is returned when appeal/waive targets a fine that is no
	// longer in the Open state.
	ErrFineNotOpen = errors.New("fine is not open")

	// ErrInvalidAmount is returned for zero or negative amounts, or for an
	// allocation amount exceeding the payment's remaining balance.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNegativeRemaining guards the core invariant: a remaining amount may
	// never go below zero. Seeing this error means a store-level bug.
	ErrNegativeRemaining = errors.New("remaining amount would go negative")

	// ErrPlanNotFound is returned when a referenced installment plan does not
	// exist.
	ErrPlanNotFound = errors.New("installment plan not found")

	// ErrNotAwaitingVerification is returned when approval targets a payment
	// whose verification is not pending.
	ErrNotAwaitingVerification = errors.New("payment is not awaiting verification")
)

// =============================================================================
// REVERSAL REJECTIONS - Business-rule outcomes with a reason code
// =============================================================================

type ReversalCode string

const (
	ReversalNotFound        ReversalCode = "not_found"
	ReversalGatewayPayment  ReversalCode = "gateway_payment"
	ReversalAlreadyRefunded ReversalCode = "already_refunded"
	ReversalAlreadyReversed ReversalCode = "already_reversed"
)

// ReversalRejectedError is the typed negative outcome of a reversal request.
// It is not a transaction failure: the ledger is untouched.
type ReversalRejectedError struct {
	Code      ReversalCode
	PaymentID string
}

func (e *ReversalRejectedError) Error() string {
	return fmt.Sprintf("reversal rejected (%s): payment %s", e.Code, e.PaymentID)
}

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// AmountError carries the offending value for validation failures.
type AmountError struct {
	Op     string
	Amount decimal.Decimal
	Limit  decimal.Decimal
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("%s: amount %s outside [0, %s]", e.Op, e.Amount, e.Limit)
}

func (e *AmountError) Unwrap() error { return ErrInvalidAmount }
