/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts cross the wire as JSON strings ("129.99"), never floats. Handlers
  parse them with decimal.NewFromString.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordPaymentRequest records a payment and immediately allocates it.
type RecordPaymentRequest struct {
	CustomerID string `json:"customer_id"`
	RentalID   string `json:"rental_id,omitempty"`
	Amount     string `json:"amount"`
	CaptureRef string `json:"capture_ref,omitempty"`
	Reason     string `json:"reason,omitempty"`

	// RequiresVerification parks the payment unallocated until an operator
	// approves it.
	RequiresVerification bool `json:"requires_verification,omitempty"`
}

// ApprovePaymentRequest completes manual verification of a payment.
type ApprovePaymentRequest struct {
	CustomerID string `json:"customer_id"`
}

// AllocateRequest applies unallocated payment funds to open charges.
// Amount empty or "0" means "allocate everything remaining".
type AllocateRequest struct {
	CustomerID string `json:"customer_id"`
	Amount     string `json:"amount,omitempty"`
}

// AppliedChargeDTO is one payment-to-charge application.
type AppliedChargeDTO struct {
	ChargeID        string `json:"charge_id"`
	Applied         string `json:"applied"`
	RemainingBefore string `json:"remaining_before"`
	RemainingAfter  string `json:"remaining_after"`
}

// AllocationDTO summarizes an allocation run.
type AllocationDTO struct {
	PaymentID        string             `json:"payment_id"`
	Applications     []AppliedChargeDTO `json:"applications"`
	TotalAllocated   string             `json:"total_allocated"`
	PaymentRemaining string             `json:"payment_remaining"`
}

// ReverseRequest undoes a payment's allocation.
type ReverseRequest struct {
	CustomerID string `json:"customer_id"`
	Reason     string `json:"reason"`
	ReversedBy string `json:"reversed_by"`
}

// ReversalDTO reports a completed reversal.
type ReversalDTO struct {
	PaymentID            string `json:"payment_id"`
	ApplicationsReversed int    `json:"applications_reversed"`
	Amount               string `json:"amount"`
	Reason               string `json:"reason"`
}

// =============================================================================
// CHARGES AND LEDGER
// =============================================================================

// CreateChargeRequest creates an open charge on a customer's ledger.
type CreateChargeRequest struct {
	CustomerID  string `json:"customer_id"`
	RentalID    string `json:"rental_id,omitempty"`
	VehicleID   string `json:"vehicle_id,omitempty"`
	Category    string `json:"category,omitempty"` // rental, fine, fee
	Amount      string `json:"amount"`
	DueDate     string `json:"due_date,omitempty"` // YYYY-MM-DD
	Reference   string `json:"reference,omitempty"`
	Description string `json:"description,omitempty"`
}

// EntryDTO is one ledger row in API responses.
type EntryDTO struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Category    string `json:"category,omitempty"`
	Amount      string `json:"amount"`
	Remaining   string `json:"remaining"`
	DueDate     string `json:"due_date,omitempty"`
	EntryDate   string `json:"entry_date"`
	Reference   string `json:"reference,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// =============================================================================
// FINES
// =============================================================================

// IssueFineRequest issues a fine and its ledger charge.
type IssueFineRequest struct {
	CustomerID string `json:"customer_id"`
	RentalID   string `json:"rental_id,omitempty"`
	Amount     string `json:"amount"`
	Reason     string `json:"reason,omitempty"`
	DueDate    string `json:"due_date,omitempty"`
}

// FineActionRequest identifies the customer for an appeal or waive.
type FineActionRequest struct {
	CustomerID string `json:"customer_id"`
}

// BulkWaiveRequest waives several fines; each is processed independently.
type BulkWaiveRequest struct {
	CustomerID string   `json:"customer_id"`
	FineIDs    []string `json:"fine_ids"`
}

// DisputeDTO reports a resolved fine.
type DisputeDTO struct {
	FineID         string `json:"fine_id"`
	Status         string `json:"status"`
	VoidedAmount   string `json:"voided_amount"`
	CreditedAmount string `json:"credited_amount"`
	ChargesZeroed  int    `json:"charges_zeroed"`
}

// BulkResultDTO reports per-item outcomes of a bulk operation.
type BulkResultDTO struct {
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Total      int               `json:"total"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// =============================================================================
// QUOTES
// =============================================================================

// QuoteRequest prices a rental period.
type QuoteRequest struct {
	Pickup    string `json:"pickup"`  // YYYY-MM-DD, inclusive
	Dropoff   string `json:"dropoff"` // YYYY-MM-DD, exclusive
	VehicleID string `json:"vehicle_id,omitempty"`

	DailyRate   string `json:"daily_rate,omitempty"`
	WeeklyRate  string `json:"weekly_rate,omitempty"`
	MonthlyRate string `json:"monthly_rate,omitempty"`

	Weekend   *WeekendDTO          `json:"weekend,omitempty"`
	Holidays  []HolidayDTO         `json:"holidays,omitempty"`
	Overrides []VehicleOverrideDTO `json:"overrides,omitempty"`
}

// WeekendDTO configures the weekend surcharge. Days defaults to
// Saturday+Sunday when empty.
type WeekendDTO struct {
	Percent string   `json:"percent"`
	Days    []string `json:"days,omitempty"` // "Saturday", "Sunday", ...
}

// HolidayDTO is one holiday surcharge rule.
type HolidayDTO struct {
	ID               string   `json:"id,omitempty"`
	Name             string   `json:"name"`
	Recurring        bool     `json:"recurring,omitempty"`
	Date             string   `json:"date,omitempty"`  // recurring anchor
	Start            string   `json:"start,omitempty"` // non-recurring range
	End              string   `json:"end,omitempty"`
	SurchargePercent string   `json:"surcharge_percent"`
	ExcludedVehicles []string `json:"excluded_vehicles,omitempty"`
}

// VehicleOverrideDTO customizes a surcharge for one vehicle.
type VehicleOverrideDTO struct {
	VehicleID  string `json:"vehicle_id"`
	HolidayID  string `json:"holiday_id,omitempty"` // empty = weekend override
	Kind       string `json:"kind"`                 // fixed_price, percent, excluded
	FixedPrice string `json:"fixed_price,omitempty"`
	Percent    string `json:"percent,omitempty"`
}

// DayChargeDTO is one row of a daily-tier breakdown.
type DayChargeDTO struct {
	Day   string `json:"day"`
	Rate  string `json:"rate"`
	Basis string `json:"basis"`
}

// QuoteDTO is the pricing response.
type QuoteDTO struct {
	Total     string         `json:"total"`
	Days      int            `json:"days"`
	Tier      string         `json:"tier"`
	Breakdown []DayChargeDTO `json:"breakdown,omitempty"`
}

// =============================================================================
// INSTALLMENT PLANS
// =============================================================================

// CreatePlanRequest sets up an installment plan with its schedule.
type CreatePlanRequest struct {
	CustomerID           string `json:"customer_id"`
	RentalID             string `json:"rental_id,omitempty"`
	NumberOfInstallments int    `json:"number_of_installments"`
	TotalInstallable     string `json:"total_installable"`
	IntervalN            int    `json:"interval_n,omitempty"`
	IntervalUnit         string `json:"interval_unit,omitempty"` // days, weeks, months
	FirstDueDate         string `json:"first_due_date,omitempty"`
	UpfrontAmount        string `json:"upfront_amount,omitempty"`
}

// PlanDTO is an installment plan in API responses.
type PlanDTO struct {
	ID                   string           `json:"id"`
	CustomerID           string           `json:"customer_id"`
	RentalID             string           `json:"rental_id,omitempty"`
	Status               string           `json:"status"`
	NumberOfInstallments int              `json:"number_of_installments"`
	InstallmentAmount    string           `json:"installment_amount"`
	TotalInstallable     string           `json:"total_installable"`
	PaidInstallments     int              `json:"paid_installments"`
	TotalPaid            string           `json:"total_paid"`
	NextDueDate          string           `json:"next_due_date,omitempty"`
	UpfrontAmount        string           `json:"upfront_amount"`
	Installments         []InstallmentDTO `json:"installments,omitempty"`
}

// InstallmentDTO is one scheduled installment.
type InstallmentDTO struct {
	ID           string `json:"id"`
	Number       int    `json:"number"`
	Amount       string `json:"amount"`
	DueDate      string `json:"due_date"`
	Status       string `json:"status"`
	FailureCount int    `json:"failure_count,omitempty"`
	PaidAt       string `json:"paid_at,omitempty"`
	PaymentID    string `json:"payment_id,omitempty"`
}

// NextPaymentDTO is the customer's next upcoming installment.
type NextPaymentDTO struct {
	PlanID  string `json:"plan_id"`
	Number  int    `json:"number"`
	Amount  string `json:"amount"`
	DueDate string `json:"due_date"`
}

// SweepReportDTO reports a due-date sweep run.
type SweepReportDTO struct {
	Due       int      `json:"due"`
	Captured  int      `json:"captured"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// SweepRequest triggers a manual sweep. AsOf defaults to today.
type SweepRequest struct {
	AsOf string `json:"as_of,omitempty"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
