/*
dispute.go - Fine dispute adjustment engine

PURPOSE:
  Resolve a disputed fine two ways:

  APPEAL SUCCESSFUL - the fine should never have been charged. The unpaid
  remainder is voided with a negative adjustment, and any portion the
  customer already paid comes back as an open credit entry (no cash moves;
  the credit settles future charges). Fine status -> "Appeal Successful".

  WAIVE - the operator forgives what is still outstanding. Only the unpaid
  remainder is voided; amounts already paid stay paid. Fine status ->
  "Waived".

ATOMICITY:
  Each resolution is all-or-nothing per fine: the void adjustment, the
  charge zeroing, and the status flip commit together. A fine must never
  look waived while the ledger still shows an open balance.

BULK OPERATIONS:
  BulkWaive runs each fine in its own transaction and reports per-item
  outcomes. One bad fine never rolls back its siblings.
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DisputeResult summarizes one fine resolution.
type DisputeResult struct {
	FineID         string
	Status         FineStatus
	VoidedAmount   decimal.Decimal // unpaid remainder zeroed out
	CreditedAmount decimal.Decimal // already-paid portion returned as credit (appeal only)
	ChargesZeroed  int
}

// BulkResult reports per-item outcomes of a bulk fine operation.
type BulkResult struct {
	Successful int
	Failed     int
	Total      int
	Errors     map[string]string // fineID -> failure reason
}

// ResolveAppeal resolves an open fine as a successful appeal: voids the
// unpaid remainder and credits back whatever was already paid.
func (g *Engine) ResolveAppeal(ctx context.Context, scope Scope, fineID string) (*DisputeResult, error) {
	return g.resolveFine(ctx, scope, fineID, FineAppealSuccessful)
}

// Waive resolves an open fine as waived: voids the unpaid remainder only.
// Amounts already paid are not returned.
func (g *Engine) Waive(ctx context.Context, scope Scope, fineID string) (*DisputeResult, error) {
	return g.resolveFine(ctx, scope, fineID, FineWaived)
}

func (g *Engine) resolveFine(ctx context.Context, scope Scope, fineID string, terminal FineStatus) (*DisputeResult, error) {
	lock := g.locks.forCustomer(scope)
	lock.Lock()
	defer lock.Unlock()

	var result *DisputeResult
	err := g.store.WithTx(ctx, func(s Store) error {
		fine, err := s.GetFine(ctx, scope, fineID)
		if err != nil {
			return err
		}
		if fine.Status != FineOpen {
			return fmt.Errorf("fine %s is %q: %w", fineID, fine.Status, ErrFineNotOpen)
		}

		charges, err := s.OpenFineCharges(ctx, scope, fineID)
		if err != nil {
			return err
		}

		totalRemaining := decimal.Zero
		for _, c := range charges {
			totalRemaining = totalRemaining.Add(c.Remaining)
		}
		totalPaid := fine.Amount.Sub(totalRemaining)

		result = &DisputeResult{FineID: fineID, Status: terminal}

		// Void the unpaid remainder: one negative adjustment, charges zeroed.
		if totalRemaining.IsPositive() {
			if err := s.InsertEntry(ctx, Entry{
				ID:          NewID(),
				TenantID:    scope.TenantID,
				CustomerID:  scope.CustomerID,
				RentalID:    fine.RentalID,
				Kind:        KindAdjustment,
				Amount:      totalRemaining.Neg(),
				Remaining:   decimal.Zero,
				EntryDate:   Today(),
				Reference:   fineID,
				Description: fmt.Sprintf("void outstanding fine balance (%s)", terminal),
				CreatedAt:   nowUTC(),
			}); err != nil {
				return err
			}
			for _, c := range charges {
				if err := s.SetEntryRemaining(ctx, scope, c.ID, decimal.Zero); err != nil {
					return fmt.Errorf("zero charge %s: %w", c.ID, err)
				}
			}
			result.VoidedAmount = totalRemaining
			result.ChargesZeroed = len(charges)
		}

		// Appeal success returns the already-paid portion as open credit.
		if terminal == FineAppealSuccessful && totalPaid.IsPositive() {
			if err := s.InsertEntry(ctx, Entry{
				ID:          NewID(),
				TenantID:    scope.TenantID,
				CustomerID:  scope.CustomerID,
				RentalID:    fine.RentalID,
				Kind:        KindCredit,
				Amount:      totalPaid,
				Remaining:   totalPaid,
				EntryDate:   Today(),
				Reference:   fineID,
				Description: "refundable credit for paid portion of successful appeal",
				CreatedAt:   nowUTC(),
			}); err != nil {
				return err
			}
			result.CreditedAmount = totalPaid
		}

		// Status flips last, inside the same transaction. If anything above
		// failed we never get here; if this fails everything rolls back.
		return s.SetFineStatus(ctx, scope, fineID, terminal)
	})
	if err != nil {
		return nil, err
	}

	g.log.WithFields(logrus.Fields{
		"tenant":   scope.TenantID,
		"customer": scope.CustomerID,
		"fine":     fineID,
		"status":   string(result.Status),
		"voided":   result.VoidedAmount.String(),
		"credited": result.CreditedAmount.String(),
	}).Info("fine resolved")
	g.notify("fine resolved", func() error {
		return g.notifier.FineResolved(ctx, scope, fineID, terminal)
	})
	return result, nil
}

// BulkWaive waives each fine independently and reports per-item outcomes.
func (g *Engine) BulkWaive(ctx context.Context, scope Scope, fineIDs []string) BulkResult {
	result := BulkResult{Total: len(fineIDs), Errors: make(map[string]string)}
	for _, id := range fineIDs {
		if _, err := g.Waive(ctx, scope, id); err != nil {
			result.Failed++
			result.Errors[id] = err.Error()
			continue
		}
		result.Successful++
	}
	return result
}

// IssueFine records a fine and its charge entry. The charge carries the fine
// ID as its reference so the dispute engine can locate it later.
func (g *Engine) IssueFine(ctx context.Context, scope Scope, fine Fine, dueDate Date) (*Fine, error) {
	if !fine.Amount.IsPositive() {
		return nil, &AmountError{Op: "issue fine", Amount: fine.Amount, Limit: decimal.Zero}
	}
	if fine.ID == "" {
		fine.ID = NewID()
	}
	fine.TenantID = scope.TenantID
	fine.CustomerID = scope.CustomerID
	fine.Amount = Round2(fine.Amount)
	fine.Status = FineOpen
	if fine.IssuedOn.IsZero() {
		fine.IssuedOn = Today()
	}

	err := g.store.WithTx(ctx, func(s Store) error {
		if err := s.InsertFine(ctx, fine); err != nil {
			return err
		}
		return s.InsertEntry(ctx, Entry{
			ID:          NewID(),
			TenantID:    scope.TenantID,
			CustomerID:  scope.CustomerID,
			RentalID:    fine.RentalID,
			Kind:        KindCharge,
			Category:    CategoryFine,
			Amount:      fine.Amount,
			Remaining:   fine.Amount,
			DueDate:     dueDate,
			EntryDate:   fine.IssuedOn,
			Reference:   fine.ID,
			Description: fine.Reason,
			CreatedAt:   nowUTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &fine, nil
}
