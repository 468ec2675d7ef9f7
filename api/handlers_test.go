/*
handlers_test.go - HTTP-level tests for the billing API

Tests for:
- Payment recording and allocation over the wire
- Reversal rejection codes in responses
- Tenant header enforcement
- Quote and plan endpoints
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CortekUK/drive-247-sub010/gateway"
	"github.com/CortekUK/drive-247-sub010/installment"
	"github.com/CortekUK/drive-247-sub010/ledger"
	"github.com/CortekUK/drive-247-sub010/store/sqlite"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	engine := ledger.NewEngine(store, log)
	plans := installment.NewService(store, engine, gateway.NewLocal(log), log)
	return NewRouter(NewHandler(engine, plans, log))
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tenantHeader, "tenant-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestRecordPayment_AllocatesAgainstOpenCharge(t *testing.T) {
	// GIVEN: A customer with one open charge
	// WHEN: A payment for more than the charge is recorded
	// THEN: The response shows the charge settled and the surplus remaining

	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/charges", CreateChargeRequest{
		CustomerID: "cust-1",
		Category:   "rental",
		Amount:     "100",
		DueDate:    "2026-03-05",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/payments", RecordPaymentRequest{
		CustomerID: "cust-1",
		Amount:     "120",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	result := decode[AllocationDTO](t, rec)
	assert.NotEmpty(t, result.PaymentID)
	require.Len(t, result.Applications, 1)
	assert.Equal(t, "100", result.Applications[0].Applied)
	assert.Equal(t, "100", result.TotalAllocated)
	assert.Equal(t, "20", result.PaymentRemaining)
}

func TestReverse_GatewayPayment_Conflict(t *testing.T) {
	// GIVEN: A payment captured through the gateway
	// WHEN: A reversal is requested
	// THEN: 409 with the machine-readable rejection code

	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/payments", RecordPaymentRequest{
		CustomerID: "cust-1",
		Amount:     "50",
		CaptureRef: "ch_123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	paymentID := decode[AllocationDTO](t, rec).PaymentID

	rec = doJSON(t, router, http.MethodPost, "/api/payments/"+paymentID+"/reverse", ReverseRequest{
		CustomerID: "cust-1",
		Reason:     "test",
		ReversedBy: "ops",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, string(ledger.ReversalGatewayPayment), resp.Code)
}

func TestReverse_UnknownPayment_NotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/payments/nope/reverse", ReverseRequest{
		CustomerID: "cust-1",
		Reason:     "test",
		ReversedBy: "ops",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissingTenantHeader_Rejected(t *testing.T) {
	router := newTestRouter(t)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(RecordPaymentRequest{
		CustomerID: "cust-1",
		Amount:     "50",
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/payments", &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuote_DailyTierWithBreakdown(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/quotes", QuoteRequest{
		Pickup:    "2026-03-02", // Monday
		Dropoff:   "2026-03-04",
		DailyRate: "100",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	quote := decode[QuoteDTO](t, rec)
	assert.Equal(t, "200", quote.Total)
	assert.Equal(t, 2, quote.Days)
	assert.Equal(t, "daily", quote.Tier)
	assert.Len(t, quote.Breakdown, 2)
}

func TestPlanLifecycle_CreateThenGet(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/plans", CreatePlanRequest{
		CustomerID:           "cust-1",
		RentalID:             "rental-1",
		NumberOfInstallments: 3,
		TotalInstallable:     "900",
		FirstDueDate:         "2026-04-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[PlanDTO](t, rec)
	assert.Equal(t, "active", created.Status)
	require.Len(t, created.Installments, 3)
	assert.Equal(t, "300", created.Installments[0].Amount)

	rec = doJSON(t, router, http.MethodGet, "/api/plans/"+created.ID+"?customer_id=cust-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loaded := decode[PlanDTO](t, rec)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Len(t, loaded.Installments, 3)
}

func TestTriggerSweep_CapturesDueInstallments(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/plans", CreatePlanRequest{
		CustomerID:           "cust-1",
		NumberOfInstallments: 2,
		TotalInstallable:     "600",
		FirstDueDate:         "2026-04-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/admin/sweep", SweepRequest{AsOf: "2026-04-02"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := decode[SweepReportDTO](t, rec)
	assert.Equal(t, 1, report.Due)
	assert.Equal(t, 1, report.Captured)
	assert.Zero(t, report.Failed)
}

func TestApprovePayment_ReleasesHeldFunds(t *testing.T) {
	// GIVEN: An open charge and a payment held for manual verification
	// WHEN: The payment is approved
	// THEN: Only the approval allocates the funds

	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/charges", CreateChargeRequest{
		CustomerID: "cust-1",
		Amount:     "100",
		DueDate:    "2026-03-05",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/payments", RecordPaymentRequest{
		CustomerID:           "cust-1",
		Amount:               "100",
		RequiresVerification: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	held := decode[AllocationDTO](t, rec)
	assert.Empty(t, held.Applications)
	assert.Equal(t, "100", held.PaymentRemaining)

	rec = doJSON(t, router, http.MethodPost, "/api/payments/"+held.PaymentID+"/approve", ApprovePaymentRequest{
		CustomerID: "cust-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[AllocationDTO](t, rec)
	assert.Equal(t, "100", approved.TotalAllocated)

	// A second approval is a conflict, not a double allocation.
	rec = doJSON(t, router, http.MethodPost, "/api/payments/"+held.PaymentID+"/approve", ApprovePaymentRequest{
		CustomerID: "cust-1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
