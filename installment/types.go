/*
Package installment manages multi-installment payment plans.

PURPOSE:
  A plan replaces one lump rental charge with a scheduled series of fixed
  payments. This package generates the schedule, tracks each installment's
  lifecycle, derives plan-level status, and runs the due-date sweep that
  captures due installments and feeds the resulting payments into the
  allocation engine.

LIFECYCLE:
  ScheduledInstallment: scheduled -> processing -> paid
                        scheduled/processing -> failed (retryable, never terminal)
  Plan: active -> overdue (a scheduled/failed installment's due date passed)
        active/overdue -> completed (all installments paid)
        any -> cancelled (operator action)

SEE ALSO:
  - schedule.go: Schedule generation and status derivation
  - service.go: Persistence-backed plan service and due-date sweep
*/
package installment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/CortekUK/drive-247-sub010/ledger"
)

// =============================================================================
// PLAN
// =============================================================================

type PlanStatus string

const (
	PlanActive    PlanStatus = "active"
	PlanOverdue   PlanStatus = "overdue"
	PlanCompleted PlanStatus = "completed"
	PlanCancelled PlanStatus = "cancelled"
)

type IntervalUnit string

const (
	IntervalDays   IntervalUnit = "days"
	IntervalWeeks  IntervalUnit = "weeks"
	IntervalMonths IntervalUnit = "months"
)

// Interval is the spacing between consecutive due dates.
type Interval struct {
	N    int
	Unit IntervalUnit
}

// Next advances a due date by one interval.
func (iv Interval) Next(d ledger.Date) ledger.Date {
	switch iv.Unit {
	case IntervalWeeks:
		return d.AddWeeks(iv.N)
	case IntervalMonths:
		return d.AddMonths(iv.N)
	default:
		return d.AddDays(iv.N)
	}
}

// Plan is one installment plan for a rental.
type Plan struct {
	ID         string
	TenantID   string
	CustomerID string
	RentalID   string

	Status PlanStatus

	NumberOfInstallments int
	InstallmentAmount    decimal.Decimal
	TotalInstallable     decimal.Decimal
	Interval             Interval

	PaidInstallments int
	TotalPaid        decimal.Decimal
	NextDueDate      ledger.Date

	UpfrontAmount decimal.Decimal
	UpfrontPaid   decimal.Decimal

	CreatedAt time.Time
}

// Scope returns the plan's tenant+customer scope.
func (p Plan) Scope() ledger.Scope {
	return ledger.Scope{TenantID: p.TenantID, CustomerID: p.CustomerID}
}

// =============================================================================
// SCHEDULED INSTALLMENT
// =============================================================================

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusFailed     Status = "failed"
)

// ScheduledInstallment is one dated slice of a plan.
//
// INVARIANTS:
//   - Number is unique within its plan, 1..N.
//   - Due dates strictly increase with Number.
//   - failed is retryable: a failed installment remains eligible for the
//     next sweep.
type ScheduledInstallment struct {
	ID     string
	PlanID string

	Number  int
	Amount  decimal.Decimal
	DueDate ledger.Date

	Status            Status
	FailureCount      int
	LastFailureReason string

	PaidAt    *time.Time
	PaymentID string // set once settled
}

// Pending reports whether the installment still awaits payment.
func (si ScheduledInstallment) Pending() bool {
	return si.Status == StatusScheduled || si.Status == StatusFailed
}
