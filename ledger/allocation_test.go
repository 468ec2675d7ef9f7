package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CortekUK/drive-247-sub010/ledger"
	ledgerstore "github.com/CortekUK/drive-247-sub010/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) (*ledger.Engine, *ledgerstore.Memory) {
	t.Helper()
	store := ledgerstore.NewMemory()
	return ledger.NewEngine(store, nil), store
}

func testScope() ledger.Scope {
	return ledger.Scope{TenantID: "tenant-1", CustomerID: "cust-1"}
}

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func mustCharge(t *testing.T, g *ledger.Engine, scope ledger.Scope, amount string, due ledger.Date) *ledger.Entry {
	t.Helper()
	entry, err := g.CreateCharge(context.Background(), scope, ledger.Entry{
		Amount:  money(amount),
		DueDate: due,
	})
	require.NoError(t, err)
	return entry
}

func mustPayment(t *testing.T, g *ledger.Engine, scope ledger.Scope, amount string) *ledger.AllocationResult {
	t.Helper()
	result, err := g.RecordPayment(context.Background(), scope, ledger.Payment{Amount: money(amount)})
	require.NoError(t, err)
	return result
}

// =============================================================================
// ALLOCATION ORDER
// =============================================================================

func TestAllocate_OldestDueFirst(t *testing.T) {
	// GIVEN: Three open charges with different due dates
	// WHEN: A payment covering only the two oldest arrives
	// THEN: Funds settle the oldest due dates first; the newest stays open

	g, _ := newTestEngine(t)
	scope := testScope()

	newest := mustCharge(t, g, scope, "100", ledger.NewDate(2026, 3, 15))
	oldest := mustCharge(t, g, scope, "100", ledger.NewDate(2026, 3, 1))
	middle := mustCharge(t, g, scope, "100", ledger.NewDate(2026, 3, 8))

	result := mustPayment(t, g, scope, "200")

	require.Len(t, result.Applications, 2)
	assert.Equal(t, oldest.ID, result.Applications[0].ChargeID)
	assert.Equal(t, middle.ID, result.Applications[1].ChargeID)
	assert.True(t, result.TotalAllocated.Equal(money("200")))
	assert.True(t, result.PaymentRemaining.IsZero())

	open, err := g.Ledger(context.Background(), scope)
	require.NoError(t, err)
	for _, e := range open {
		if e.ID == newest.ID {
			assert.True(t, e.Remaining.Equal(money("100")), "newest charge should be untouched")
		}
	}
}

func TestAllocate_DueDateTie_BreaksByCreation(t *testing.T) {
	// GIVEN: Two charges due the same day, created in sequence
	// WHEN: A payment covering one of them arrives
	// THEN: The earlier-created charge settles first

	g, _ := newTestEngine(t)
	scope := testScope()
	due := ledger.NewDate(2026, 4, 1)

	first := mustCharge(t, g, scope, "50", due)
	mustCharge(t, g, scope, "50", due)

	result := mustPayment(t, g, scope, "50")

	require.Len(t, result.Applications, 1)
	assert.Equal(t, first.ID, result.Applications[0].ChargeID)
}

func TestAllocate_PartialApplication(t *testing.T) {
	// GIVEN: A charge of 100
	// WHEN: A payment of 60 arrives
	// THEN: The charge keeps 40 open and the payment is exhausted

	g, _ := newTestEngine(t)
	scope := testScope()

	charge := mustCharge(t, g, scope, "100", ledger.NewDate(2026, 3, 1))
	result := mustPayment(t, g, scope, "60")

	require.Len(t, result.Applications, 1)
	app := result.Applications[0]
	assert.Equal(t, charge.ID, app.ChargeID)
	assert.True(t, app.Applied.Equal(money("60")))
	assert.True(t, app.RemainingBefore.Equal(money("100")))
	assert.True(t, app.RemainingAfter.Equal(money("40")))
	assert.True(t, result.PaymentRemaining.IsZero())
}

func TestAllocate_Overpayment_KeepsUnappliedCredit(t *testing.T) {
	// GIVEN: A single charge of 80
	// WHEN: A payment of 100 arrives
	// THEN: 20 stays on the payment as unapplied funds for later charges

	g, store := newTestEngine(t)
	scope := testScope()
	ctx := context.Background()

	mustCharge(t, g, scope, "80", ledger.NewDate(2026, 3, 1))
	result := mustPayment(t, g, scope, "100")

	assert.True(t, result.TotalAllocated.Equal(money("80")))
	assert.True(t, result.PaymentRemaining.Equal(money("20")))

	payment, err := store.GetPayment(ctx, scope, result.PaymentID)
	require.NoError(t, err)
	assert.True(t, payment.Remaining.Equal(money("20")))

	// A later charge picks up the leftover on the next allocation run.
	late := mustCharge(t, g, scope, "30", ledger.NewDate(2026, 3, 10))
	second, err := g.Allocate(ctx, scope, result.PaymentID, decimal.Zero)
	require.NoError(t, err)
	require.Len(t, second.Applications, 1)
	assert.Equal(t, late.ID, second.Applications[0].ChargeID)
	assert.True(t, second.TotalAllocated.Equal(money("20")))
}

// =============================================================================
// IDEMPOTENCY AND DEGRADED SUCCESS
// =============================================================================

func TestAllocate_FullyApplied_IsZeroOp(t *testing.T) {
	// GIVEN: A payment already fully allocated
	// WHEN: Allocation runs again (webhook retry)
	// THEN: Zero-op success, no double allocation

	g, _ := newTestEngine(t)
	scope := testScope()
	ctx := context.Background()

	charge := mustCharge(t, g, scope, "100", ledger.NewDate(2026, 3, 1))
	result := mustPayment(t, g, scope, "100")
	require.True(t, result.PaymentRemaining.IsZero())

	again, err := g.Allocate(ctx, scope, result.PaymentID, decimal.Zero)
	require.NoError(t, err)
	assert.Empty(t, again.Applications)
	assert.True(t, again.TotalAllocated.IsZero())

	entry, err := g.Ledger(ctx, scope)
	require.NoError(t, err)
	for _, e := range entry {
		if e.ID == charge.ID {
			assert.True(t, e.Remaining.IsZero(), "charge must not go negative")
		}
	}
}

func TestAllocate_NoOpenCharges_Succeeds(t *testing.T) {
	// GIVEN: A customer with no open charges
	// WHEN: A payment arrives
	// THEN: Success with zero applications; the payment keeps its full amount

	g, _ := newTestEngine(t)
	scope := testScope()

	result := mustPayment(t, g, scope, "150")

	assert.Empty(t, result.Applications)
	assert.True(t, result.TotalAllocated.IsZero())
	assert.True(t, result.PaymentRemaining.Equal(money("150")))
}

func TestAllocate_AmountExceedsRemaining_Rejected(t *testing.T) {
	// GIVEN: A payment with 50 unallocated
	// WHEN: Allocation of 80 is requested
	// THEN: AmountError wrapping ErrInvalidAmount; nothing changes

	g, _ := newTestEngine(t)
	scope := testScope()
	ctx := context.Background()

	// No charges yet, so the payment keeps its full 50 unallocated.
	result := mustPayment(t, g, scope, "50")
	require.True(t, result.PaymentRemaining.Equal(money("50")))

	mustCharge(t, g, scope, "200", ledger.NewDate(2026, 3, 1))

	_, err := g.Allocate(ctx, scope, result.PaymentID, money("80"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestAllocate_UnknownPayment_NotFound(t *testing.T) {
	// GIVEN: No such payment
	// WHEN: Allocation is requested
	// THEN: ErrPaymentNotFound

	g, _ := newTestEngine(t)

	_, err := g.Allocate(context.Background(), testScope(), "nope", decimal.Zero)
	assert.ErrorIs(t, err, ledger.ErrPaymentNotFound)
}

// =============================================================================
// SIDE ENTRIES
// =============================================================================

func TestAllocate_WritesPnLPerChargeTouched(t *testing.T) {
	// GIVEN: Two open charges
	// WHEN: One payment settles both
	// THEN: One P&L entry per (payment, charge) pair, composite reference

	g, store := newTestEngine(t)
	scope := testScope()
	ctx := context.Background()

	a := mustCharge(t, g, scope, "40", ledger.NewDate(2026, 3, 1))
	b := mustCharge(t, g, scope, "60", ledger.NewDate(2026, 3, 2))

	result := mustPayment(t, g, scope, "100")

	pnl, err := store.PnLByPayment(ctx, scope, result.PaymentID)
	require.NoError(t, err)
	require.Len(t, pnl, 2)

	refs := map[string]bool{}
	for _, e := range pnl {
		refs[e.Reference] = true
	}
	assert.True(t, refs[ledger.PnLReference(result.PaymentID, a.ID)])
	assert.True(t, refs[ledger.PnLReference(result.PaymentID, b.ID)])
}

func TestRecordPayment_WritesLedgerEntry(t *testing.T) {
	// GIVEN: A manual payment
	// WHEN: It is recorded
	// THEN: A payment-kind ledger entry referencing it exists

	g, store := newTestEngine(t)
	scope := testScope()
	ctx := context.Background()

	result := mustPayment(t, g, scope, "75")

	entry, err := store.PaymentEntry(ctx, scope, result.PaymentID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, ledger.KindPayment, entry.Kind)
	assert.True(t, entry.Amount.Equal(money("75")))
}

func TestRecordPayment_NonPositiveAmount_Rejected(t *testing.T) {
	g, _ := newTestEngine(t)

	_, err := g.RecordPayment(context.Background(), testScope(), ledger.Payment{Amount: money("0")})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = g.RecordPayment(context.Background(), testScope(), ledger.Payment{Amount: money("-5")})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

// =============================================================================
// TENANT ISOLATION
// =============================================================================

func TestAllocate_ScopedToTenant(t *testing.T) {
	// GIVEN: Two tenants with the same customer id
	// WHEN: Tenant A's payment allocates
	// THEN: Tenant B's charges are never touched

	g, _ := newTestEngine(t)
	scopeA := ledger.Scope{TenantID: "tenant-a", CustomerID: "cust-1"}
	scopeB := ledger.Scope{TenantID: "tenant-b", CustomerID: "cust-1"}

	mustCharge(t, g, scopeA, "100", ledger.NewDate(2026, 3, 1))
	otherCharge := mustCharge(t, g, scopeB, "100", ledger.NewDate(2026, 3, 1))

	result := mustPayment(t, g, scopeA, "100")
	require.Len(t, result.Applications, 1)
	assert.NotEqual(t, otherCharge.ID, result.Applications[0].ChargeID)

	entries, err := g.Ledger(context.Background(), scopeB)
	require.NoError(t, err)
	for _, e := range entries {
		if e.ID == otherCharge.ID {
			assert.True(t, e.Remaining.Equal(money("100")))
		}
	}
}

// =============================================================================
// MANUAL VERIFICATION
// =============================================================================

func TestRecordPayment_PendingVerification_DefersAllocation(t *testing.T) {
	// GIVEN: An open charge and a payment held for manual verification
	// WHEN: The payment is recorded
	// THEN: Nothing allocates; the charge stays open and the payment keeps
	//       its full remaining balance

	g, store := newTestEngine(t)
	scope := testScope()
	ctx := context.Background()

	charge := mustCharge(t, g, scope, "100", ledger.NewDate(2026, 3, 1))

	result, err := g.RecordPayment(ctx, scope, ledger.Payment{
		Amount:       money("100"),
		Verification: ledger.VerificationPending,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Applications)
	assert.True(t, result.PaymentRemaining.Equal(money("100")))

	open, err := store.OpenCharges(ctx, scope)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, charge.ID, open[0].ID)

	payment, err := store.GetPayment(ctx, scope, result.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, ledger.VerificationPending, payment.Verification)
}

func TestApprovePayment_AllocatesHeldFunds(t *testing.T) {
	// GIVEN: A verification-held payment and an open charge
	// WHEN: An operator approves the payment
	// THEN: Verification flips to approved and the funds settle the charge

	g, store := newTestEngine(t)
	scope := testScope()
	ctx := context.Background()

	charge := mustCharge(t, g, scope, "100", ledger.NewDate(2026, 3, 1))
	held, err := g.RecordPayment(ctx, scope, ledger.Payment{
		Amount:       money("100"),
		Verification: ledger.VerificationPending,
	})
	require.NoError(t, err)

	result, err := g.ApprovePayment(ctx, scope, held.PaymentID)
	require.NoError(t, err)
	require.Len(t, result.Applications, 1)
	assert.Equal(t, charge.ID, result.Applications[0].ChargeID)
	assert.True(t, result.TotalAllocated.Equal(money("100")))

	payment, err := store.GetPayment(ctx, scope, held.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, ledger.VerificationApproved, payment.Verification)
	assert.True(t, payment.Remaining.IsZero())
}

func TestApprovePayment_NotPending_Rejected(t *testing.T) {
	g, _ := newTestEngine(t)
	scope := testScope()

	auto := mustPayment(t, g, scope, "50")

	_, err := g.ApprovePayment(context.Background(), scope, auto.PaymentID)
	assert.ErrorIs(t, err, ledger.ErrNotAwaitingVerification)
}

func TestApprovePayment_Unknown_NotFound(t *testing.T) {
	g, _ := newTestEngine(t)

	_, err := g.ApprovePayment(context.Background(), testScope(), "nope")
	assert.ErrorIs(t, err, ledger.ErrPaymentNotFound)
}
