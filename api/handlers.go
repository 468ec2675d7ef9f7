/*
handlers.go - HTTP API handlers for the billing engine

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Charges:
    POST   /api/charges                          Create a charge
    GET    /api/customers/{id}/ledger            Full ledger history
    GET    /api/customers/{id}/next-payment      Next upcoming installment

  Payments:
    POST   /api/payments                         Record and allocate a payment
    POST   /api/payments/{id}/allocate           Allocate remaining funds
    POST   /api/payments/{id}/approve            Approve a verification-held payment
    POST   /api/payments/{id}/reverse            Reverse a payment

  Fines:
    POST   /api/fines                            Issue a fine
    POST   /api/fines/{id}/appeal                Resolve appeal as successful
    POST   /api/fines/{id}/waive                 Waive a fine
    POST   /api/fines/bulk-waive                 Waive several fines

  Pricing:
    POST   /api/quotes                           Price a rental period

  Plans:
    POST   /api/plans                            Create an installment plan
    GET    /api/plans/{id}                       Plan with schedule

  Admin:
    POST   /api/admin/sweep                      Run the due-date sweep now

TENANCY:
  Every request carries an X-Tenant-ID header. The handler combines it with
  the customer id into a ledger.Scope; no handler ever sees cross-tenant
  data.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (reversal rejected, fine not open)
  - 500: Internal errors
  Rejected reversals include the machine-readable rejection code.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/CortekUK/drive-247-sub010/installment"
	"github.com/CortekUK/drive-247-sub010/ledger"
	"github.com/CortekUK/drive-247-sub010/pricing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *ledger.Engine
	Plans  *installment.Service
	Log    *logrus.Logger
}

// NewHandler creates a new handler.
func NewHandler(engine *ledger.Engine, plans *installment.Service, log *logrus.Logger) *Handler {
	return &Handler{Engine: engine, Plans: plans, Log: log}
}

// tenantHeader carries the tenant for every request.
const tenantHeader = "X-Tenant-ID"

func scopeFrom(r *http.Request, customerID string) (ledger.Scope, bool) {
	tenant := r.Header.Get(tenantHeader)
	if tenant == "" || customerID == "" {
		return ledger.Scope{}, false
	}
	return ledger.Scope{TenantID: tenant, CustomerID: customerID}, true
}

// =============================================================================
// CHARGES
// =============================================================================

// CreateCharge creates an open charge on a customer's ledger.
// POST /api/charges
func (h *Handler) CreateCharge(w http.ResponseWriter, r *http.Request) {
	var req CreateChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	scope, ok := scopeFrom(r, req.CustomerID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing tenant or customer id", nil)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	dueDate, err := optionalDate(req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid due_date", err)
		return
	}

	entry, err := h.Engine.CreateCharge(r.Context(), scope, ledger.Entry{
		RentalID:    req.RentalID,
		VehicleID:   req.VehicleID,
		Category:    ledger.ChargeCategory(req.Category),
		Amount:      amount,
		DueDate:     dueDate,
		Reference:   req.Reference,
		Description: req.Description,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create charge", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(*entry))
}

// GetLedger returns the customer's full ledger history.
// GET /api/customers/{id}/ledger
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(r, chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing tenant or customer id", nil)
		return
	}
	entries, err := h.Engine.Ledger(r.Context(), scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load ledger", err)
		return
	}
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordPayment records a payment and immediately allocates it.
// POST /api/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	scope, ok := scopeFrom(r, req.CustomerID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing tenant or customer id", nil)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	verification := ledger.VerificationStatus("")
	if req.RequiresVerification {
		verification = ledger.VerificationPending
	}

	result, err := h.Engine.RecordPayment(r.Context(), scope, ledger.Payment{
		RentalID:     req.RentalID,
		Amount:       amount,
		CaptureRef:   req.CaptureRef,
		Reason:       req.Reason,
		Verification: verification,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAllocationDTO(result))
}

// ApprovePayment completes manual verification and allocates the payment.
// POST /api/payments/{id}/approve
func (h *Handler) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "id")

	var req ApprovePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	scope, ok := scopeFrom(r, req.CustomerID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing tenant or customer id", nil)
		return
	}

	result, err := h.Engine.ApprovePayment(r.Context(), scope, paymentID)
	if err != nil {
		h.writeDomainError(w, "Failed to approve payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTO(result))
}

// Allocate applies a payment's unallocated funds to open charges.
// POST /api/payments/{id}/allocate
func (h *Handler) Allocate(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "id")

	var req AllocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	scope, ok := scopeFrom(r, req.CustomerID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing tenant or customer id", nil)
		return
	}

	amount := decimal.Zero
	if req.Amount != "" {
		var err error
		if amount, err = decimal.NewFromString(req.Amount); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
	}

	result, err := h.Engine.Allocate(r.Context(), scope, paymentID, amount)
	if err != nil {
		h.writeDomainError(w, "Failed to allocate payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTO(result))
}

// Reverse undoes a payment's allocation.
// POST /api/payments/{id}/reverse
func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "id")

	var req ReverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	scope, ok := scopeFrom(r, req.CustomerID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing tenant or customer id", nil)
		return
	}

	result, err := h.Engine.Reverse(r.Context(), scope, paymentID, req.Reason, req.ReversedBy)
	if err != nil {
		h.writeDomainError(w, "Failed to reverse payment", err)
		return
	}
	writeJSON(w, http.StatusOK, ReversalDTO{
		PaymentID:            result.PaymentID,
		ApplicationsReversed: result.ApplicationsReversed,
		Amount:               result.Amount.String(),
		Reason:               result.Reason,
	})
}

// =============================================================================
// FINES
// =============================================================================

// IssueFine issues a fine and its ledger charge.
// POST /api/fines
func (h *Handler) IssueFine(w http.ResponseWriter, r *http.Request) {
	var req IssueFineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	scope, ok := scopeFrom(r, req.CustomerID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing tenant or customer id", nil)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	dueDate, err := optionalDate(req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid due_date", err)
		return
	}

	fine, err := h.Engine.IssueFine(r.Context(), scope, ledger.Fine{
		RentalID: req.RentalID,
		Amount:   amount,
		Reason:   req.Reason,
	}, dueDate)
	if err != nil {
		h.writeDomainError(w, "Failed to issue fine", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":        fine.ID,
		"status":    string(fine.Status),
		"amount":    fine.Amount.String(),
		"issued_on": fine.IssuedOn.String(),
	})
}

// ResolveAppeal resolves an open fine as a successful appeal.
// POST /api/fines/{id}/appeal
func (h *Handler) ResolveAppeal(w http.ResponseWriter, r *http.Request) {
	h.resolveFine(w, r, h.Engine.ResolveAppeal)
}

// WaiveFine waives an open fine.
// POST /api/fines/{id}/waive
func (h *Handler) WaiveFine(w http.ResponseWriter, r *http.Request) {
	h.resolveFine(w, r, h.Engine.Waive)
}

func (h *Handler) resolveFine(w http.ResponseWriter, r *http.Request,
	resolve func(ctx context.Context, scope ledger.Scope, fineID string) (*ledger.DisputeResult, error)) {

	fineID := chi.URLParam(r, "id")

	var req FineActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	scope, ok := scopeFrom(r, req.CustomerID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing tenant or customer id", nil)
		return
	}

	result, err := resolve(r.Context(), scope, fineID)
	if err != nil {
		h.writeDomainError(w, "Failed to resolve fine", err)
		return
	}
	writeJSON(w, http.StatusOK, DisputeDTO{
		FineID:         result.FineID,
		Status:         string(result.Status),
		VoidedAmount:   result.VoidedAmount.String(),
		CreditedAmount: result.CreditedAmount.String(),
		ChargesZeroed:  result.ChargesZeroed,
	})
}

// BulkWaive waives several fines; each is processed independently.
// POST /api/fines/bulk-waive
func (h *Handler) BulkWaive(w http.ResponseWriter, r *http.Request) {
	var req BulkWaiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	scope, ok := scopeFrom(r, req.CustomerID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing tenant or customer id", nil)
		return
	}

	result := h.Engine.BulkWaive(r.Context(), scope, req.FineIDs)
	writeJSON(w, http.StatusOK, BulkResultDTO{
		Successful: result.Successful,
		Failed:     result.Failed,
		Total:      result.Total,
		Errors:     result.Errors,
	})
}

// =============================================================================
// QUOTES
// =============================================================================

// Quote prices a rental period.
// POST /api/quotes
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	preq, err := toPricingRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quote request", err)
		return
	}

	quote := pricing.Calculate(preq)

	dto := QuoteDTO{
		Total: quote.Total.String(),
		Days:  quote.Days,
		Tier:  string(quote.Tier),
	}
	for _, dc := range quote.Breakdown {
		dto.Breakdown = append(dto.Breakdown, DayChargeDTO{
			Day:   dc.Day.String(),
			Rate:  dc.Rate.String(),
			Basis: dc.Basis,
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// INSTALLMENT PLANS
// =============================================================================

// CreatePlan sets up an installment plan with its schedule.
// POST /api/plans
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	scope, ok := scopeFrom(r, req.CustomerID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing tenant or customer id", nil)
		return
	}
	if req.NumberOfInstallments < 1 {
		writeError(w, http.StatusBadRequest, "number_of_installments must be at least 1", nil)
		return
	}
	total, err := decimal.NewFromString(req.TotalInstallable)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total_installable", err)
		return
	}
	firstDue, err := optionalDate(req.FirstDueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid first_due_date", err)
		return
	}
	upfront := decimal.Zero
	if req.UpfrontAmount != "" {
		if upfront, err = decimal.NewFromString(req.UpfrontAmount); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid upfront_amount", err)
			return
		}
	}

	plan, installments, err := h.Plans.CreatePlan(r.Context(), scope, installment.Plan{
		RentalID:             req.RentalID,
		NumberOfInstallments: req.NumberOfInstallments,
		TotalInstallable:     total,
		Interval:             installment.Interval{N: req.IntervalN, Unit: installment.IntervalUnit(req.IntervalUnit)},
		NextDueDate:          firstDue,
		UpfrontAmount:        upfront,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanDTO(plan, installments))
}

// GetPlan returns a plan with its schedule.
// GET /api/plans/{id}?customer_id=...
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(r, r.URL.Query().Get("customer_id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing tenant or customer id", nil)
		return
	}

	plan, installments, err := h.Plans.Plan(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to load plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan, installments))
}

// NextPayment returns the customer's next upcoming installment.
// GET /api/customers/{id}/next-payment
func (h *Handler) NextPayment(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(r, chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing tenant or customer id", nil)
		return
	}

	next, found, err := h.Plans.NextPayment(r.Context(), scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve next payment", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "No upcoming installment", nil)
		return
	}
	writeJSON(w, http.StatusOK, NextPaymentDTO{
		PlanID:  next.PlanID,
		Number:  next.Number,
		Amount:  next.Amount.String(),
		DueDate: next.DueDate.String(),
	})
}

// TriggerSweep runs the due-date sweep for the tenant now.
// POST /api/admin/sweep
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	tenant := r.Header.Get(tenantHeader)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "Missing tenant id", nil)
		return
	}

	var req SweepRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // empty body is fine
	}
	asOf := ledger.Today()
	if req.AsOf != "" {
		var err error
		if asOf, err = parseDate(req.AsOf); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of", err)
			return
		}
	}

	report, err := h.Plans.SweepDue(r.Context(), tenant, asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepReportDTO{
		Due:       report.Due,
		Captured:  report.Captured,
		Failed:    report.Failed,
		FailedIDs: report.FailedIDs,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func toEntryDTO(e ledger.Entry) EntryDTO {
	dto := EntryDTO{
		ID:          e.ID,
		Kind:        string(e.Kind),
		Category:    string(e.Category),
		Amount:      e.Amount.String(),
		Remaining:   e.Remaining.String(),
		EntryDate:   e.EntryDate.String(),
		Reference:   e.Reference,
		Description: e.Description,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
	if !e.DueDate.IsZero() {
		dto.DueDate = e.DueDate.String()
	}
	return dto
}

func toAllocationDTO(result *ledger.AllocationResult) AllocationDTO {
	dto := AllocationDTO{
		PaymentID:        result.PaymentID,
		Applications:     []AppliedChargeDTO{},
		TotalAllocated:   result.TotalAllocated.String(),
		PaymentRemaining: result.PaymentRemaining.String(),
	}
	for _, app := range result.Applications {
		dto.Applications = append(dto.Applications, AppliedChargeDTO{
			ChargeID:        app.ChargeID,
			Applied:         app.Applied.String(),
			RemainingBefore: app.RemainingBefore.String(),
			RemainingAfter:  app.RemainingAfter.String(),
		})
	}
	return dto
}

func toPlanDTO(plan *installment.Plan, installments []installment.ScheduledInstallment) PlanDTO {
	dto := PlanDTO{
		ID:                   plan.ID,
		CustomerID:           plan.CustomerID,
		RentalID:             plan.RentalID,
		Status:               string(plan.Status),
		NumberOfInstallments: plan.NumberOfInstallments,
		InstallmentAmount:    plan.InstallmentAmount.String(),
		TotalInstallable:     plan.TotalInstallable.String(),
		PaidInstallments:     plan.PaidInstallments,
		TotalPaid:            plan.TotalPaid.String(),
		UpfrontAmount:        plan.UpfrontAmount.String(),
	}
	if !plan.NextDueDate.IsZero() {
		dto.NextDueDate = plan.NextDueDate.String()
	}
	for _, si := range installments {
		idto := InstallmentDTO{
			ID:           si.ID,
			Number:       si.Number,
			Amount:       si.Amount.String(),
			DueDate:      si.DueDate.String(),
			Status:       string(si.Status),
			FailureCount: si.FailureCount,
			PaymentID:    si.PaymentID,
		}
		if si.PaidAt != nil {
			idto.PaidAt = si.PaidAt.Format(time.RFC3339)
		}
		dto.Installments = append(dto.Installments, idto)
	}
	return dto
}

func toPricingRequest(req QuoteRequest) (pricing.Request, error) {
	pickup, err := parseDate(req.Pickup)
	if err != nil {
		return pricing.Request{}, err
	}
	dropoff, err := parseDate(req.Dropoff)
	if err != nil {
		return pricing.Request{}, err
	}

	preq := pricing.Request{
		Pickup:    pickup,
		Dropoff:   dropoff,
		VehicleID: req.VehicleID,
	}
	if preq.Rates.Daily, err = optionalRate(req.DailyRate); err != nil {
		return pricing.Request{}, err
	}
	if preq.Rates.Weekly, err = optionalRate(req.WeeklyRate); err != nil {
		return pricing.Request{}, err
	}
	if preq.Rates.Monthly, err = optionalRate(req.MonthlyRate); err != nil {
		return pricing.Request{}, err
	}

	if req.Weekend != nil {
		pct, err := decimal.NewFromString(req.Weekend.Percent)
		if err != nil {
			return pricing.Request{}, err
		}
		days := []time.Weekday{time.Saturday, time.Sunday}
		if len(req.Weekend.Days) > 0 {
			days = days[:0]
			for _, name := range req.Weekend.Days {
				wd, err := parseWeekday(name)
				if err != nil {
					return pricing.Request{}, err
				}
				days = append(days, wd)
			}
		}
		preq.Weekend = &pricing.WeekendConfig{Percent: pct, Days: days}
	}

	for _, hd := range req.Holidays {
		rule := pricing.HolidayRule{
			ID:               hd.ID,
			Name:             hd.Name,
			Recurring:        hd.Recurring,
			ExcludedVehicles: hd.ExcludedVehicles,
		}
		if rule.SurchargePercent, err = decimal.NewFromString(hd.SurchargePercent); err != nil {
			return pricing.Request{}, err
		}
		if rule.Date, err = optionalDate(hd.Date); err != nil {
			return pricing.Request{}, err
		}
		if rule.Start, err = optionalDate(hd.Start); err != nil {
			return pricing.Request{}, err
		}
		if rule.End, err = optionalDate(hd.End); err != nil {
			return pricing.Request{}, err
		}
		preq.Holidays = append(preq.Holidays, rule)
	}

	for _, od := range req.Overrides {
		ov := pricing.VehicleOverride{
			VehicleID: od.VehicleID,
			HolidayID: od.HolidayID,
			Kind:      pricing.OverrideKind(od.Kind),
		}
		if od.FixedPrice != "" {
			if ov.FixedPrice, err = decimal.NewFromString(od.FixedPrice); err != nil {
				return pricing.Request{}, err
			}
		}
		if od.Percent != "" {
			if ov.Percent, err = decimal.NewFromString(od.Percent); err != nil {
				return pricing.Request{}, err
			}
		}
		preq.Overrides = append(preq.Overrides, ov)
	}
	return preq, nil
}

func optionalRate(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseDate(s string) (ledger.Date, error) {
	return ledger.ParseDate(s)
}

func optionalDate(s string) (ledger.Date, error) {
	if s == "" {
		return ledger.Date{}, nil
	}
	return parseDate(s)
}

func parseWeekday(name string) (time.Weekday, error) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if wd.String() == name {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}

// writeDomainError maps domain errors onto HTTP statuses. Rejected reversals
// carry their machine-readable code so clients can branch without string
// matching.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	var rejected *ledger.ReversalRejectedError
	if errors.As(err, &rejected) {
		status := http.StatusConflict
		if rejected.Code == ledger.ReversalNotFound {
			status = http.StatusNotFound
		}
		writeJSON(w, status, ErrorResponse{
			Error:   message,
			Code:    string(rejected.Code),
			Details: rejected.Error(),
		})
		return
	}

	switch {
	case errors.Is(err, ledger.ErrPaymentNotFound),
		errors.Is(err, ledger.ErrChargeNotFound),
		errors.Is(err, ledger.ErrEntryNotFound),
		errors.Is(err, ledger.ErrFineNotFound),
		errors.Is(err, ledger.ErrPlanNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrFineNotOpen),
		errors.Is(err, ledger.ErrNotAwaitingVerification):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrNegativeRemaining):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Log.WithError(err).Error(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
