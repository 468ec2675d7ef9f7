package installment_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CortekUK/drive-247-sub010/installment"
	"github.com/CortekUK/drive-247-sub010/ledger"
)

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func basePlan(total string, n int) installment.Plan {
	return installment.Plan{
		ID:                   "plan-1",
		TenantID:             "tenant-1",
		CustomerID:           "cust-1",
		Status:               installment.PlanActive,
		NumberOfInstallments: n,
		TotalInstallable:     money(total),
		Interval:             installment.Interval{N: 1, Unit: installment.IntervalMonths},
		NextDueDate:          ledger.NewDate(2026, 4, 1),
	}
}

// =============================================================================
// SCHEDULE GENERATION
// =============================================================================

func TestBuildSchedule_EvenSplit(t *testing.T) {
	// GIVEN: 1200 over 4 installments
	// WHEN: The schedule is built
	// THEN: Four installments of 300, monthly due dates

	schedule, err := installment.BuildSchedule(basePlan("1200", 4))
	require.NoError(t, err)
	require.Len(t, schedule, 4)

	for i, si := range schedule {
		assert.Equal(t, i+1, si.Number)
		assert.True(t, si.Amount.Equal(money("300")), "installment %d: got %s", i+1, si.Amount)
		assert.Equal(t, installment.StatusScheduled, si.Status)
	}
	assert.True(t, schedule[0].DueDate.Equal(ledger.NewDate(2026, 4, 1)))
	assert.True(t, schedule[1].DueDate.Equal(ledger.NewDate(2026, 5, 1)))
	assert.True(t, schedule[3].DueDate.Equal(ledger.NewDate(2026, 7, 1)))
}

func TestBuildSchedule_LastAbsorbsRemainder(t *testing.T) {
	// GIVEN: 1000 over 3 installments
	// WHEN: The schedule is built
	// THEN: 333.33, 333.33, 333.34 — the sum is exactly 1000

	schedule, err := installment.BuildSchedule(basePlan("1000", 3))
	require.NoError(t, err)
	require.Len(t, schedule, 3)

	assert.True(t, schedule[0].Amount.Equal(money("333.33")))
	assert.True(t, schedule[1].Amount.Equal(money("333.33")))
	assert.True(t, schedule[2].Amount.Equal(money("333.34")))

	sum := decimal.Zero
	for _, si := range schedule {
		sum = sum.Add(si.Amount)
	}
	assert.True(t, sum.Equal(money("1000")), "schedule must sum exactly")
}

func TestBuildSchedule_WeeklyInterval(t *testing.T) {
	plan := basePlan("400", 2)
	plan.Interval = installment.Interval{N: 2, Unit: installment.IntervalWeeks}

	schedule, err := installment.BuildSchedule(plan)
	require.NoError(t, err)
	require.Len(t, schedule, 2)
	assert.True(t, schedule[0].DueDate.Equal(ledger.NewDate(2026, 4, 1)))
	assert.True(t, schedule[1].DueDate.Equal(ledger.NewDate(2026, 4, 15)))
}

func TestBuildSchedule_InvalidInputs(t *testing.T) {
	_, err := installment.BuildSchedule(basePlan("1200", 0))
	assert.Error(t, err, "zero installments rejected")

	_, err = installment.BuildSchedule(basePlan("0", 4))
	assert.Error(t, err, "non-positive total rejected")
}

// =============================================================================
// STATE TRANSITIONS
// =============================================================================

func TestMarkFailed_IsRetryable(t *testing.T) {
	// GIVEN: A scheduled installment whose capture fails twice
	// WHEN: Failures are recorded
	// THEN: It stays pending, with an accurate failure count and reason

	si := installment.ScheduledInstallment{Number: 1, Status: installment.StatusScheduled}

	si, err := installment.MarkFailed(si, "card declined")
	require.NoError(t, err)
	assert.Equal(t, installment.StatusFailed, si.Status)
	assert.Equal(t, 1, si.FailureCount)
	assert.Equal(t, "card declined", si.LastFailureReason)
	assert.True(t, si.Pending(), "failed installments remain sweep-eligible")

	si, err = installment.MarkFailed(si, "insufficient funds")
	require.NoError(t, err)
	assert.Equal(t, 2, si.FailureCount)
	assert.Equal(t, "insufficient funds", si.LastFailureReason)
}

func TestMarkPaid_ClearsFailureReason(t *testing.T) {
	si := installment.ScheduledInstallment{
		Number:            2,
		Status:            installment.StatusFailed,
		FailureCount:      1,
		LastFailureReason: "card declined",
	}

	si, err := installment.MarkPaid(si, "pay-1", ledger.NewDate(2026, 4, 2))
	require.NoError(t, err)
	assert.Equal(t, installment.StatusPaid, si.Status)
	assert.Equal(t, "pay-1", si.PaymentID)
	assert.Empty(t, si.LastFailureReason)
	require.NotNil(t, si.PaidAt)

	_, err = installment.MarkPaid(si, "pay-2", ledger.NewDate(2026, 4, 3))
	assert.Error(t, err, "double settlement rejected")

	_, err = installment.MarkFailed(si, "late webhook")
	assert.Error(t, err, "paid installments cannot fail")
}

func TestMarkProcessing_OnlyFromPending(t *testing.T) {
	si := installment.ScheduledInstallment{Number: 1, Status: installment.StatusPaid}
	_, err := installment.MarkProcessing(si)
	assert.Error(t, err)
}

// =============================================================================
// STATUS DERIVATION
// =============================================================================

func TestDeriveStatus(t *testing.T) {
	today := ledger.NewDate(2026, 4, 10)
	plan := basePlan("600", 2)

	paid := installment.ScheduledInstallment{Status: installment.StatusPaid}
	futurePending := installment.ScheduledInstallment{
		Status: installment.StatusScheduled, DueDate: ledger.NewDate(2026, 5, 1),
	}
	pastPending := installment.ScheduledInstallment{
		Status: installment.StatusFailed, DueDate: ledger.NewDate(2026, 4, 1),
	}

	// All paid -> completed
	status := installment.DeriveStatus(plan, []installment.ScheduledInstallment{paid, paid}, today)
	assert.Equal(t, installment.PlanCompleted, status)

	// Pending past-due -> overdue
	status = installment.DeriveStatus(plan, []installment.ScheduledInstallment{paid, pastPending}, today)
	assert.Equal(t, installment.PlanOverdue, status)

	// Pending in the future -> active
	status = installment.DeriveStatus(plan, []installment.ScheduledInstallment{paid, futurePending}, today)
	assert.Equal(t, installment.PlanActive, status)

	// Cancelled is sticky, even when everything is paid
	plan.Status = installment.PlanCancelled
	status = installment.DeriveStatus(plan, []installment.ScheduledInstallment{paid, paid}, today)
	assert.Equal(t, installment.PlanCancelled, status)
}

func TestDeriveStatus_DueTodayIsNotOverdue(t *testing.T) {
	// GIVEN: An installment due exactly today
	// WHEN: Status is derived
	// THEN: The plan is active; overdue requires the date to have passed

	today := ledger.NewDate(2026, 4, 10)
	plan := basePlan("600", 1)
	dueToday := installment.ScheduledInstallment{
		Status: installment.StatusScheduled, DueDate: today,
	}

	status := installment.DeriveStatus(plan, []installment.ScheduledInstallment{dueToday}, today)
	assert.Equal(t, installment.PlanActive, status)
}

// =============================================================================
// NEXT PAYMENT
// =============================================================================

func TestNextPayment_EarliestPendingAcrossPlans(t *testing.T) {
	// GIVEN: Two active plans with pending installments on different dates
	// WHEN: The next payment is resolved
	// THEN: The earliest pending due date wins regardless of plan

	planA := basePlan("600", 2)
	planA.ID = "plan-a"
	planB := basePlan("900", 3)
	planB.ID = "plan-b"

	byPlan := map[string][]installment.ScheduledInstallment{
		"plan-a": {
			{PlanID: "plan-a", Number: 1, Status: installment.StatusPaid, DueDate: ledger.NewDate(2026, 4, 1)},
			{PlanID: "plan-a", Number: 2, Amount: money("300"), Status: installment.StatusScheduled, DueDate: ledger.NewDate(2026, 5, 1)},
		},
		"plan-b": {
			{PlanID: "plan-b", Number: 1, Amount: money("300"), Status: installment.StatusFailed, DueDate: ledger.NewDate(2026, 4, 20)},
		},
	}

	next, ok := installment.NextPayment([]installment.Plan{planA, planB}, byPlan)
	require.True(t, ok)
	assert.Equal(t, "plan-b", next.PlanID)
	assert.Equal(t, 1, next.Number)
	assert.True(t, next.DueDate.Equal(ledger.NewDate(2026, 4, 20)))
}

func TestNextPayment_SkipsCancelledAndCompleted(t *testing.T) {
	cancelled := basePlan("600", 1)
	cancelled.ID = "plan-c"
	cancelled.Status = installment.PlanCancelled

	byPlan := map[string][]installment.ScheduledInstallment{
		"plan-c": {
			{PlanID: "plan-c", Number: 1, Amount: money("600"), Status: installment.StatusScheduled, DueDate: ledger.NewDate(2026, 4, 1)},
		},
	}

	_, ok := installment.NextPayment([]installment.Plan{cancelled}, byPlan)
	assert.False(t, ok, "cancelled plans never surface a next payment")
}
