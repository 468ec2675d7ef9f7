/*
reversal.go - Payment reversal engine

PURPOSE:
  Fully undo a previously-applied, manually-recorded payment: restore every
  touched charge's remaining amount, delete the payment's application rows,
  delete its derived P&L entries, offset its ledger entry with an adjustment,
  and mark the payment reversed.

PRECONDITIONS (checked before any write, typed rejections):
  - gateway_payment:   the payment has an external capture reference; it must
                       be refunded through the gateway, never reversed here
  - already_refunded:  a refund is completed or in flight
  - already_reversed:  the reversal marker is already in the reason text
  - not_found:         no such payment in scope

ATOMICITY:
  This is the only operation in the system allowed to both delete rows
  (applications, P&L) and insert a compensating entry in the same
  transaction. Every other mutation path is a pure insert or a pure
  remaining-amount decrement. If any restore write fails, the whole
  transaction rolls back — "reversal failed, no changes made".

LEDGER ENTRIES:
  The payment's ledger entry is NOT deleted. An offsetting adjustment of
  equal magnitude, dated today, preserves the append-only audit trail for
  that entry kind.
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ReversedMarker prefixes the reason text of a reversed payment. Its presence
// is also the already-reversed guard.
const ReversedMarker = "[REVERSED]"

// ReversalResult summarizes a completed reversal.
type ReversalResult struct {
	PaymentID            string
	ApplicationsReversed int
	Amount               decimal.Decimal
	Reason               string
}

// Reverse fully undoes the payment's allocation and marks it reversed.
// reversedBy names the operator for the audit trail.
func (g *Engine) Reverse(ctx context.Context, scope Scope, paymentID, reason, reversedBy string) (*ReversalResult, error) {
	lock := g.locks.forCustomer(scope)
	lock.Lock()
	defer lock.Unlock()

	var result *ReversalResult
	err := g.store.WithTx(ctx, func(s Store) error {
		payment, err := s.GetPayment(ctx, scope, paymentID)
		if err != nil {
			if errors.Is(err, ErrPaymentNotFound) {
				return &ReversalRejectedError{Code: ReversalNotFound, PaymentID: paymentID}
			}
			return err
		}
		if rej := reversalPrecondition(payment); rej != nil {
			return rej
		}

		apps, err := s.ApplicationsByPayment(ctx, scope, paymentID)
		if err != nil {
			return err
		}

		// Restore each touched charge before deleting anything. A failed
		// restore aborts the transaction with the applications intact.
		for _, app := range apps {
			charge, err := s.GetEntry(ctx, scope, app.ChargeID)
			if err != nil {
				return fmt.Errorf("restore charge %s: %w", app.ChargeID, err)
			}
			if err := s.SetEntryRemaining(ctx, scope, charge.ID, charge.Remaining.Add(app.Amount)); err != nil {
				return fmt.Errorf("restore charge %s: %w", app.ChargeID, err)
			}
		}

		if err := s.DeleteApplicationsByPayment(ctx, scope, paymentID); err != nil {
			return err
		}
		if err := s.DeletePnLByPayment(ctx, scope, paymentID); err != nil {
			return err
		}

		// Offset the payment's ledger entry instead of deleting it.
		entry, err := s.PaymentEntry(ctx, scope, paymentID)
		if err != nil {
			return err
		}
		if entry != nil {
			if err := s.InsertEntry(ctx, Entry{
				ID:          NewID(),
				TenantID:    scope.TenantID,
				CustomerID:  scope.CustomerID,
				RentalID:    entry.RentalID,
				Kind:        KindAdjustment,
				Amount:      entry.Amount.Neg(),
				Remaining:   decimal.Zero,
				EntryDate:   Today(),
				Reference:   paymentID,
				Description: fmt.Sprintf("reversal of payment %s: %s", paymentID, reason),
				CreatedAt:   nowUTC(),
			}); err != nil {
				return err
			}
		}

		marked := fmt.Sprintf("%s %s (by %s)", ReversedMarker, reason, reversedBy)
		if err := s.MarkPaymentReversed(ctx, scope, paymentID, marked); err != nil {
			return err
		}

		result = &ReversalResult{
			PaymentID:            paymentID,
			ApplicationsReversed: len(apps),
			Amount:               payment.Amount,
			Reason:               reason,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.log.WithFields(logrus.Fields{
		"tenant":       scope.TenantID,
		"customer":     scope.CustomerID,
		"payment":      paymentID,
		"applications": result.ApplicationsReversed,
		"amount":       result.Amount.String(),
		"by":           reversedBy,
	}).Info("payment reversed")
	g.notify("payment reversed", func() error {
		return g.notifier.PaymentReversed(ctx, scope, paymentID, reason)
	})
	return result, nil
}

// reversalPrecondition classifies a payment that must not be reversed.
func reversalPrecondition(p *Payment) *ReversalRejectedError {
	switch {
	case p.Gateway():
		return &ReversalRejectedError{Code: ReversalGatewayPayment, PaymentID: p.ID}
	case p.RefundStatus == RefundCompleted || p.RefundStatus == RefundProcessing:
		return &ReversalRejectedError{Code: ReversalAlreadyRefunded, PaymentID: p.ID}
	case p.Status == PaymentReversed || strings.HasPrefix(p.Reason, ReversedMarker):
		return &ReversalRejectedError{Code: ReversalAlreadyReversed, PaymentID: p.ID}
	}
	return nil
}
