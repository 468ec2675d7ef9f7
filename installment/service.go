/*
service.go - Persistence-backed plan service and due-date sweep

PURPOSE:
  CreatePlan persists a plan with its full schedule. SweepDue is the daily
  job body: it walks installments that are due and pending, marks each
  processing, asks the capture collaborator to collect the money, then marks
  the installment paid (creating a charge and allocating the captured
  payment against it) or failed.

RETRY SEMANTICS:
  Retries live here, not in the allocation engine. A failed capture leaves
  the installment in failed state with an incremented failure count; the
  next sweep simply picks it up again. The allocation primitive stays
  idempotent per payment, so re-invocation is always safe.

ERROR ISOLATION:
  Each installment is processed independently. One failed capture never
  stops the sweep; the sweep reports per-item counts.
*/
package installment

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/CortekUK/drive-247-sub010/ledger"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Store persists plans and scheduled installments.
type Store interface {
	InsertPlan(ctx context.Context, p Plan) error
	GetPlan(ctx context.Context, scope ledger.Scope, id string) (*Plan, error)
	PlansByCustomer(ctx context.Context, scope ledger.Scope) ([]Plan, error)
	UpdatePlan(ctx context.Context, p Plan) error

	InsertInstallments(ctx context.Context, installments []ScheduledInstallment) error
	InstallmentsByPlan(ctx context.Context, planID string) ([]ScheduledInstallment, error)
	UpdateInstallment(ctx context.Context, si ScheduledInstallment) error

	// DueInstallments returns pending (scheduled or failed) installments
	// with DueDate <= asOf across every plan in the tenant, together with
	// their plans.
	DueInstallments(ctx context.Context, tenantID string, asOf ledger.Date) ([]DueItem, error)
}

// DueItem pairs a due installment with its plan.
type DueItem struct {
	Plan        Plan
	Installment ScheduledInstallment
}

// Capturer collects money from the customer's stored payment method. It is
// the external gateway collaborator; this package never talks to the wire.
type Capturer interface {
	// Capture returns the gateway capture reference for the collected amount.
	Capture(ctx context.Context, scope ledger.Scope, amount decimal.Decimal, reference string) (string, error)
}

// Biller is the slice of the ledger engine the sweep needs.
type Biller interface {
	CreateCharge(ctx context.Context, scope ledger.Scope, c ledger.Entry) (*ledger.Entry, error)
	RecordPayment(ctx context.Context, scope ledger.Scope, p ledger.Payment) (*ledger.AllocationResult, error)
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store   Store
	biller  Biller
	capture Capturer
	log     *logrus.Logger
}

func NewService(store Store, biller Biller, capture Capturer, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{store: store, biller: biller, capture: capture, log: log}
}

// CreatePlan validates the plan, generates its schedule, and persists both.
// A positive upfront amount is captured and settled on the ledger as part
// of creation.
func (s *Service) CreatePlan(ctx context.Context, scope ledger.Scope, plan Plan) (*Plan, []ScheduledInstallment, error) {
	if plan.ID == "" {
		plan.ID = ledger.NewID()
	}
	plan.TenantID = scope.TenantID
	plan.CustomerID = scope.CustomerID
	plan.Status = PlanActive
	plan.TotalInstallable = ledger.Round2(plan.TotalInstallable)
	if plan.Interval.N == 0 {
		plan.Interval = Interval{N: 1, Unit: IntervalMonths}
	}
	if plan.NextDueDate.IsZero() {
		plan.NextDueDate = ledger.Today().AddDays(1)
	}

	schedule, err := BuildSchedule(plan)
	if err != nil {
		return nil, nil, err
	}
	plan.InstallmentAmount = schedule[0].Amount
	plan.TotalPaid = decimal.Zero
	plan.UpfrontAmount = ledger.Round2(plan.UpfrontAmount)
	plan.UpfrontPaid = decimal.Zero
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}

	// The upfront is collected before anything persists: a declined card
	// fails plan creation cleanly instead of leaving a plan that never
	// collected its deposit.
	upfrontRef := ""
	if plan.UpfrontAmount.IsPositive() {
		ref, err := s.capture.Capture(ctx, scope, plan.UpfrontAmount, plan.ID+"/upfront")
		if err != nil {
			return nil, nil, fmt.Errorf("capture upfront for plan %s: %w", plan.ID, err)
		}
		upfrontRef = ref
		plan.UpfrontPaid = plan.UpfrontAmount
	}

	if err := s.store.InsertPlan(ctx, plan); err != nil {
		return nil, nil, err
	}
	if err := s.store.InsertInstallments(ctx, schedule); err != nil {
		return nil, nil, err
	}

	if upfrontRef != "" {
		if err := s.settleUpfront(ctx, plan, upfrontRef); err != nil {
			return nil, nil, err
		}
	}

	s.log.WithFields(logrus.Fields{
		"tenant":       scope.TenantID,
		"customer":     scope.CustomerID,
		"plan":         plan.ID,
		"installments": len(schedule),
		"total":        plan.TotalInstallable.String(),
	}).Info("installment plan created")
	return &plan, schedule, nil
}

// settleUpfront puts the already-captured upfront on the ledger: a charge
// due on the creation day and the captured payment settling it.
func (s *Service) settleUpfront(ctx context.Context, plan Plan, captureRef string) error {
	scope := plan.Scope()
	reference := plan.ID + "/upfront"

	if _, err := s.biller.CreateCharge(ctx, scope, ledger.Entry{
		Category:    ledger.CategoryRental,
		Amount:      plan.UpfrontAmount,
		DueDate:     ledger.Today(),
		RentalID:    plan.RentalID,
		Reference:   reference,
		Description: "upfront payment",
	}); err != nil {
		return fmt.Errorf("charge upfront %s (captured %s): %w", reference, captureRef, err)
	}
	if _, err := s.biller.RecordPayment(ctx, scope, ledger.Payment{
		RentalID:   plan.RentalID,
		Amount:     plan.UpfrontAmount,
		CaptureRef: captureRef,
		Reason:     fmt.Sprintf("upfront %s", reference),
	}); err != nil {
		return fmt.Errorf("record upfront %s (captured %s): %w", reference, captureRef, err)
	}
	return nil
}

// Plan loads a plan with its installments, refreshing the derived status.
func (s *Service) Plan(ctx context.Context, scope ledger.Scope, id string) (*Plan, []ScheduledInstallment, error) {
	plan, err := s.store.GetPlan(ctx, scope, id)
	if err != nil {
		return nil, nil, err
	}
	installments, err := s.store.InstallmentsByPlan(ctx, plan.ID)
	if err != nil {
		return nil, nil, err
	}
	plan.Status = DeriveStatus(*plan, installments, ledger.Today())
	return plan, installments, nil
}

// NextPayment resolves the customer's next expected installment payment.
func (s *Service) NextPayment(ctx context.Context, scope ledger.Scope) (*Upcoming, bool, error) {
	plans, err := s.store.PlansByCustomer(ctx, scope)
	if err != nil {
		return nil, false, err
	}
	byPlan := make(map[string][]ScheduledInstallment, len(plans))
	today := ledger.Today()
	for i, plan := range plans {
		installments, err := s.store.InstallmentsByPlan(ctx, plan.ID)
		if err != nil {
			return nil, false, err
		}
		byPlan[plan.ID] = installments
		plans[i].Status = DeriveStatus(plan, installments, today)
	}
	up, ok := NextPayment(plans, byPlan)
	return up, ok, nil
}

// =============================================================================
// DUE-DATE SWEEP
// =============================================================================

// SweepReport summarizes one sweep run.
type SweepReport struct {
	Due       int
	Captured  int
	Failed    int
	FailedIDs []string
}

// SweepDue processes every pending installment due on or before asOf for the
// tenant. Called by the scheduled job and by the manual admin trigger.
func (s *Service) SweepDue(ctx context.Context, tenantID string, asOf ledger.Date) (*SweepReport, error) {
	due, err := s.store.DueInstallments(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Due: len(due)}
	for _, item := range due {
		if err := s.processDue(ctx, item, asOf); err != nil {
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, item.Installment.ID)
			s.log.WithError(err).WithFields(logrus.Fields{
				"plan":        item.Plan.ID,
				"installment": item.Installment.Number,
			}).Warn("installment capture failed")
			continue
		}
		report.Captured++
	}

	s.log.WithFields(logrus.Fields{
		"tenant":   tenantID,
		"due":      report.Due,
		"captured": report.Captured,
		"failed":   report.Failed,
	}).Info("installment sweep complete")
	return report, nil
}

func (s *Service) processDue(ctx context.Context, item DueItem, asOf ledger.Date) error {
	plan := item.Plan
	scope := plan.Scope()

	si, err := MarkProcessing(item.Installment)
	if err != nil {
		return err
	}
	if err := s.store.UpdateInstallment(ctx, si); err != nil {
		return err
	}

	reference := fmt.Sprintf("%s/%d", plan.ID, si.Number)
	captureRef, capErr := s.capture.Capture(ctx, scope, si.Amount, reference)
	if capErr != nil {
		failed, err := MarkFailed(si, capErr.Error())
		if err != nil {
			return err
		}
		if err := s.store.UpdateInstallment(ctx, failed); err != nil {
			return err
		}
		if err := s.refreshPlan(ctx, plan, asOf); err != nil {
			return err
		}
		return fmt.Errorf("capture installment %s: %w", reference, capErr)
	}

	// Charge first, then record+allocate the captured payment against it.
	if _, err := s.biller.CreateCharge(ctx, scope, ledger.Entry{
		Category:    ledger.CategoryRental,
		Amount:      si.Amount,
		DueDate:     si.DueDate,
		RentalID:    plan.RentalID,
		Reference:   reference,
		Description: fmt.Sprintf("installment %d of %d", si.Number, plan.NumberOfInstallments),
	}); err != nil {
		return err
	}
	result, err := s.biller.RecordPayment(ctx, scope, ledger.Payment{
		RentalID:   plan.RentalID,
		Amount:     si.Amount,
		CaptureRef: captureRef,
		Reason:     fmt.Sprintf("installment %s", reference),
	})
	if err != nil {
		return err
	}

	paid, err := MarkPaid(si, result.PaymentID, asOf)
	if err != nil {
		return err
	}
	if err := s.store.UpdateInstallment(ctx, paid); err != nil {
		return err
	}

	return s.refreshPlan(ctx, plan, asOf)
}

// refreshPlan recomputes derived plan fields after an installment changed.
// Paid counters are derived from the freshly-read installments, never
// incremented: a sweep can settle several installments of one plan in a
// single run, and an increment on the plan snapshot each item carries would
// clobber the previous item's write.
func (s *Service) refreshPlan(ctx context.Context, plan Plan, today ledger.Date) error {
	installments, err := s.store.InstallmentsByPlan(ctx, plan.ID)
	if err != nil {
		return err
	}

	paid := 0
	totalPaid := decimal.Zero
	next := ledger.Date{}
	for _, si := range installments {
		if si.Status == StatusPaid {
			paid++
			totalPaid = totalPaid.Add(si.Amount)
		}
		if si.Pending() && (next.IsZero() || si.DueDate.Before(next)) {
			next = si.DueDate
		}
	}
	plan.PaidInstallments = paid
	plan.TotalPaid = totalPaid
	plan.NextDueDate = next
	plan.Status = DeriveStatus(plan, installments, today)
	return s.store.UpdatePlan(ctx, plan)
}
