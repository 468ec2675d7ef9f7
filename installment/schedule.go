/*
schedule.go - Schedule generation, state transitions, status derivation

All pure functions over plan/installment values. Persistence lives in
service.go; nothing here touches a store.
*/
package installment

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/CortekUK/drive-247-sub010/ledger"
)

// =============================================================================
// SCHEDULE GENERATION
// =============================================================================

// BuildSchedule derives the full installment schedule from a plan definition:
// NumberOfInstallments evenly-sized installments, due dates spaced by the
// plan's interval starting at NextDueDate. The final installment absorbs any
// rounding remainder so the schedule sums exactly to TotalInstallable.
func BuildSchedule(plan Plan) ([]ScheduledInstallment, error) {
	n := plan.NumberOfInstallments
	if n < 1 {
		return nil, fmt.Errorf("plan %s: number of installments must be >= 1", plan.ID)
	}
	if !plan.TotalInstallable.IsPositive() {
		return nil, fmt.Errorf("plan %s: total installable amount must be positive", plan.ID)
	}

	each := ledger.Round2(plan.TotalInstallable.Div(decimal.NewFromInt(int64(n))))
	last := plan.TotalInstallable.Sub(each.Mul(decimal.NewFromInt(int64(n - 1))))

	schedule := make([]ScheduledInstallment, 0, n)
	due := plan.NextDueDate
	for i := 1; i <= n; i++ {
		amount := each
		if i == n {
			amount = last
		}
		schedule = append(schedule, ScheduledInstallment{
			ID:      uuid.NewString(),
			PlanID:  plan.ID,
			Number:  i,
			Amount:  amount,
			DueDate: due,
			Status:  StatusScheduled,
		})
		due = plan.Interval.Next(due)
	}
	return schedule, nil
}

// =============================================================================
// STATE TRANSITIONS
// =============================================================================

// MarkProcessing moves a pending installment into processing for capture.
func MarkProcessing(si ScheduledInstallment) (ScheduledInstallment, error) {
	if !si.Pending() {
		return si, fmt.Errorf("installment %d is %q, not pending", si.Number, si.Status)
	}
	si.Status = StatusProcessing
	return si, nil
}

// MarkPaid settles an installment, stamping when and with which payment.
func MarkPaid(si ScheduledInstallment, paymentID string, paidAt ledger.Date) (ScheduledInstallment, error) {
	if si.Status == StatusPaid {
		return si, fmt.Errorf("installment %d already paid", si.Number)
	}
	t := paidAt.Time
	si.Status = StatusPaid
	si.PaidAt = &t
	si.PaymentID = paymentID
	si.LastFailureReason = ""
	return si, nil
}

// MarkFailed records a capture failure. Failed installments stay eligible
// for retry on the next sweep.
func MarkFailed(si ScheduledInstallment, reason string) (ScheduledInstallment, error) {
	if si.Status == StatusPaid {
		return si, fmt.Errorf("installment %d already paid", si.Number)
	}
	si.Status = StatusFailed
	si.FailureCount++
	si.LastFailureReason = reason
	return si, nil
}

// =============================================================================
// STATUS DERIVATION
// =============================================================================

// DeriveStatus computes the plan status from its installments. Cancelled is
// sticky — derivation never resurrects a cancelled plan.
func DeriveStatus(plan Plan, installments []ScheduledInstallment, today ledger.Date) PlanStatus {
	if plan.Status == PlanCancelled {
		return PlanCancelled
	}

	allPaid := len(installments) > 0
	overdue := false
	for _, si := range installments {
		if si.Status != StatusPaid {
			allPaid = false
		}
		if si.Pending() && si.DueDate.Before(today) {
			overdue = true
		}
	}

	switch {
	case allPaid:
		return PlanCompleted
	case overdue:
		return PlanOverdue
	default:
		return PlanActive
	}
}

// =============================================================================
// NEXT PAYMENT RESOLUTION
// =============================================================================

// Upcoming describes a customer's next expected installment payment.
type Upcoming struct {
	PlanID  string
	Number  int
	Amount  decimal.Decimal
	DueDate ledger.Date
}

// NextPayment resolves the earliest pending due date across the customer's
// active and overdue plans. Ties between plans break by plan creation order;
// due dates within one plan are unique, so no further tie-break is needed.
// Plans must be passed in creation order.
func NextPayment(plans []Plan, byPlan map[string][]ScheduledInstallment) (*Upcoming, bool) {
	var best *Upcoming
	for _, plan := range plans {
		if plan.Status != PlanActive && plan.Status != PlanOverdue {
			continue
		}
		for _, si := range byPlan[plan.ID] {
			if !si.Pending() {
				continue
			}
			if best == nil || si.DueDate.Before(best.DueDate) {
				best = &Upcoming{PlanID: plan.ID, Number: si.Number, Amount: si.Amount, DueDate: si.DueDate}
			}
		}
	}
	return best, best != nil
}
