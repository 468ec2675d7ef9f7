/*
allocation.go - Payment allocation engine

PURPOSE:
  Given a payment with unallocated funds, find the customer's open charges
  and reduce their remaining amounts until the funds are exhausted or no open
  charges remain. One Application row records each (payment, charge) pair
  touched, and one P&L entry recognizes the revenue, tagged with the
  composite reference "{paymentID}_{chargeID}" so reversal can find it later.

SELECTION POLICY:
  Open charges are settled oldest-due-date-first. Late charges clear before
  later ones — this ordering is part of the contract, not an accident of the
  query plan. Ties on due date break by charge creation time, then ID.

IDEMPOTENCY:
  Re-invoking allocation on a fully-applied payment (remaining == 0) is a
  zero-op success, never a double allocation. Webhook retries and manual
  re-triggers lean on this.

DEGRADED SUCCESS:
  No open charges is not an error. The payment simply keeps its remaining
  amount as unapplied credit for a later allocation run.
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// AppliedCharge describes one charge touched by an allocation run.
type AppliedCharge struct {
	ChargeID        string
	Applied         decimal.Decimal
	RemainingBefore decimal.Decimal
	RemainingAfter  decimal.Decimal
}

// AllocationResult summarizes one allocation run.
type AllocationResult struct {
	PaymentID        string
	Applications     []AppliedCharge
	TotalAllocated   decimal.Decimal
	PaymentRemaining decimal.Decimal
}

// =============================================================================
// ALLOCATE
// =============================================================================

// Allocate applies up to amount of the payment's unallocated funds to the
// customer's open charges. A zero amount means "allocate everything
// remaining". All writes happen in one transaction; either the full
// allocation commits or the pre-state survives.
func (g *Engine) Allocate(ctx context.Context, scope Scope, paymentID string, amount decimal.Decimal) (*AllocationResult, error) {
	if amount.IsNegative() {
		return nil, &AmountError{Op: "allocate", Amount: amount, Limit: decimal.Zero}
	}

	lock := g.locks.forCustomer(scope)
	lock.Lock()
	defer lock.Unlock()

	var result *AllocationResult
	err := g.store.WithTx(ctx, func(s Store) error {
		var err error
		result, err = allocate(ctx, s, scope, paymentID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(result.Applications) > 0 {
		g.log.WithFields(logrus.Fields{
			"tenant":   scope.TenantID,
			"customer": scope.CustomerID,
			"payment":  paymentID,
			"applied":  result.TotalAllocated.String(),
			"charges":  len(result.Applications),
		}).Info("payment allocated")
		g.notify("payment applied", func() error {
			return g.notifier.PaymentApplied(ctx, scope, paymentID)
		})
	}
	return result, nil
}

// allocate runs inside the transaction. Split out so the sweep path can call
// it from an enclosing transaction of its own.
func allocate(ctx context.Context, s Store, scope Scope, paymentID string, amount decimal.Decimal) (*AllocationResult, error) {
	payment, err := s.GetPayment(ctx, scope, paymentID)
	if err != nil {
		return nil, err
	}

	// Idempotency guard: a fully-applied payment has nothing left to give.
	if !payment.Remaining.IsPositive() {
		return &AllocationResult{PaymentID: paymentID, TotalAllocated: decimal.Zero, PaymentRemaining: payment.Remaining}, nil
	}

	if amount.IsZero() {
		amount = payment.Remaining
	}
	if amount.GreaterThan(payment.Remaining) {
		return nil, &AmountError{Op: "allocate", Amount: amount, Limit: payment.Remaining}
	}

	charges, err := s.OpenCharges(ctx, scope)
	if err != nil {
		return nil, err
	}

	result := &AllocationResult{PaymentID: paymentID, TotalAllocated: decimal.Zero}
	left := amount
	today := Today()

	for _, charge := range charges {
		if !left.IsPositive() {
			break
		}
		applied := decimal.Min(charge.Remaining, left)
		after := charge.Remaining.Sub(applied)

		if err := s.SetEntryRemaining(ctx, scope, charge.ID, after); err != nil {
			return nil, fmt.Errorf("reduce charge %s: %w", charge.ID, err)
		}
		if err := s.InsertApplication(ctx, Application{
			ID:        NewID(),
			TenantID:  scope.TenantID,
			PaymentID: paymentID,
			ChargeID:  charge.ID,
			Amount:    applied,
			CreatedAt: nowUTC(),
		}); err != nil {
			return nil, fmt.Errorf("record application for charge %s: %w", charge.ID, err)
		}
		if err := s.InsertPnL(ctx, PnLEntry{
			ID:           NewID(),
			TenantID:     scope.TenantID,
			CustomerID:   scope.CustomerID,
			PaymentID:    paymentID,
			Reference:    PnLReference(paymentID, charge.ID),
			Amount:       applied,
			RecognizedOn: today,
		}); err != nil {
			return nil, fmt.Errorf("record revenue for charge %s: %w", charge.ID, err)
		}

		result.Applications = append(result.Applications, AppliedCharge{
			ChargeID:        charge.ID,
			Applied:         applied,
			RemainingBefore: charge.Remaining,
			RemainingAfter:  after,
		})
		result.TotalAllocated = result.TotalAllocated.Add(applied)
		left = left.Sub(applied)
	}

	result.PaymentRemaining = payment.Remaining.Sub(result.TotalAllocated)

	if result.TotalAllocated.IsPositive() {
		if err := s.SetPaymentRemaining(ctx, scope, paymentID, result.PaymentRemaining, PaymentApplied); err != nil {
			return nil, fmt.Errorf("reduce payment %s: %w", paymentID, err)
		}
	}
	return result, nil
}

// RecordPayment inserts a new payment together with its ledger entry and
// immediately allocates it. A payment recorded with pending verification is
// persisted but held unallocated until ApprovePayment releases it.
func (g *Engine) RecordPayment(ctx context.Context, scope Scope, p Payment) (*AllocationResult, error) {
	if !p.Amount.IsPositive() {
		return nil, &AmountError{Op: "record payment", Amount: p.Amount, Limit: decimal.Zero}
	}
	if p.ID == "" {
		p.ID = NewID()
	}
	p.TenantID = scope.TenantID
	p.CustomerID = scope.CustomerID
	p.Amount = Round2(p.Amount)
	p.Remaining = p.Amount
	if p.Status == "" {
		p.Status = PaymentPending
	}
	if p.Verification == "" {
		p.Verification = VerificationAutoApproved
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = nowUTC()
	}

	lock := g.locks.forCustomer(scope)
	lock.Lock()

	var result *AllocationResult
	err := g.store.WithTx(ctx, func(s Store) error {
		if err := s.InsertPayment(ctx, p); err != nil {
			return err
		}
		if err := s.InsertEntry(ctx, Entry{
			ID:         NewID(),
			TenantID:   scope.TenantID,
			CustomerID: scope.CustomerID,
			RentalID:   p.RentalID,
			Kind:       KindPayment,
			Amount:     p.Amount,
			Remaining:  decimal.Zero,
			EntryDate:  Today(),
			Reference:  p.ID,
			CreatedAt:  nowUTC(),
		}); err != nil {
			return err
		}
		// A payment awaiting manual verification stays unallocated until
		// ApprovePayment releases it.
		if p.Verification == VerificationPending {
			result = &AllocationResult{PaymentID: p.ID, TotalAllocated: decimal.Zero, PaymentRemaining: p.Remaining}
			return nil
		}
		var err error
		result, err = allocate(ctx, s, scope, p.ID, decimal.Zero)
		return err
	})
	lock.Unlock()
	if err != nil {
		return nil, err
	}

	g.log.WithFields(logrus.Fields{
		"tenant":   scope.TenantID,
		"customer": scope.CustomerID,
		"payment":  p.ID,
		"amount":   p.Amount.String(),
	}).Info("payment recorded")
	return result, nil
}

// ApprovePayment completes manual verification of a pending payment and
// allocates it. Returns ErrNotAwaitingVerification unless the payment's
// verification is pending.
func (g *Engine) ApprovePayment(ctx context.Context, scope Scope, paymentID string) (*AllocationResult, error) {
	lock := g.locks.forCustomer(scope)
	lock.Lock()
	defer lock.Unlock()

	var result *AllocationResult
	err := g.store.WithTx(ctx, func(s Store) error {
		payment, err := s.GetPayment(ctx, scope, paymentID)
		if err != nil {
			return err
		}
		if payment.Verification != VerificationPending {
			return ErrNotAwaitingVerification
		}
		if err := s.SetPaymentVerification(ctx, scope, paymentID, VerificationApproved); err != nil {
			return err
		}
		result, err = allocate(ctx, s, scope, paymentID, decimal.Zero)
		return err
	})
	if err != nil {
		return nil, err
	}

	g.log.WithFields(logrus.Fields{
		"tenant":   scope.TenantID,
		"customer": scope.CustomerID,
		"payment":  paymentID,
		"applied":  result.TotalAllocated.String(),
	}).Info("payment verification approved")
	return result, nil
}
