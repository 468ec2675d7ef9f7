/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements ledger.TxStore and installment.Store using SQLite. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  ledger_entries:          Dated financial rows (charges, payments, credits,
                           adjustments). Insert-only apart from the
                           remaining_amount column.
  payments:                Captured and manually recorded payments
  payment_applications:    Payment-to-charge join rows
  pnl_entries:             Revenue recognition, keyed by payment
  fines:                   Fine dispute status
  installment_plans:       Plan definitions and derived bookkeeping
  scheduled_installments:  The dated schedule, unique (plan, number)

MUTATION DISCIPLINE:
  ledger_entries has exactly one UPDATE statement in this file, and it
  touches only remaining_amount. No DELETE ever runs against it. The only
  deletes in the package target payment_applications and pnl_entries, both
  owned by the reversal flow.

CONCURRENCY:
  Uses sync.Mutex around writes plus WAL mode. In production with
  PostgreSQL, row-level locking takes over this job.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - installments.go: Plan and schedule persistence
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/CortekUK/drive-247-sub010/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		rental_id TEXT,
		vehicle_id TEXT,
		kind TEXT NOT NULL,
		category TEXT,
		amount TEXT NOT NULL,
		remaining_amount TEXT NOT NULL,
		due_date TEXT,
		entry_date TEXT NOT NULL,
		reference TEXT,
		description TEXT,
		created_at TEXT NOT NULL
	);

	-- Allocation hot path: open charges ordered by due date
	CREATE INDEX IF NOT EXISTS idx_entries_customer_kind
		ON ledger_entries(tenant_id, customer_id, kind, due_date);
	CREATE INDEX IF NOT EXISTS idx_entries_reference
		ON ledger_entries(tenant_id, reference);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		rental_id TEXT,
		amount TEXT NOT NULL,
		remaining_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		verification TEXT NOT NULL,
		refund_status TEXT,
		capture_ref TEXT,
		reason TEXT,
		reversed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_customer
		ON payments(tenant_id, customer_id);

	CREATE TABLE IF NOT EXISTS payment_applications (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		payment_id TEXT NOT NULL,
		charge_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_applications_payment
		ON payment_applications(tenant_id, payment_id);

	CREATE TABLE IF NOT EXISTS pnl_entries (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		payment_id TEXT NOT NULL,
		reference TEXT NOT NULL,
		amount TEXT NOT NULL,
		recognized_on TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pnl_payment
		ON pnl_entries(tenant_id, payment_id);

	CREATE TABLE IF NOT EXISTS fines (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		rental_id TEXT,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		issued_on TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS installment_plans (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		rental_id TEXT,
		status TEXT NOT NULL,
		number_of_installments INTEGER NOT NULL,
		installment_amount TEXT NOT NULL,
		total_installable TEXT NOT NULL,
		interval_n INTEGER NOT NULL,
		interval_unit TEXT NOT NULL,
		paid_installments INTEGER NOT NULL DEFAULT 0,
		total_paid TEXT NOT NULL,
		next_due_date TEXT,
		upfront_amount TEXT NOT NULL,
		upfront_paid TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_plans_customer
		ON installment_plans(tenant_id, customer_id, created_at);

	CREATE TABLE IF NOT EXISTS scheduled_installments (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		number INTEGER NOT NULL,
		amount TEXT NOT NULL,
		due_date TEXT NOT NULL,
		status TEXT NOT NULL,
		failure_count INTEGER NOT NULL DEFAULT 0,
		last_failure_reason TEXT,
		paid_at TEXT,
		payment_id TEXT,
		UNIQUE(plan_id, number)
	);

	CREATE INDEX IF NOT EXISTS idx_installments_due
		ON scheduled_installments(status, due_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes a function within a database transaction. The closure
// receives a store view bound to the transaction; any error rolls back.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is the transactional store view handed to WithTx closures.
type txStore struct {
	q *sql.Tx
}

// =============================================================================
// ENTRIES
// =============================================================================

func (s *Store) InsertEntry(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertEntry(ctx, s.db, e)
}

func (t *txStore) InsertEntry(ctx context.Context, e ledger.Entry) error {
	return insertEntry(ctx, t.q, e)
}

func insertEntry(ctx context.Context, q querier, e ledger.Entry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO ledger_entries
			(id, tenant_id, customer_id, rental_id, vehicle_id, kind, category,
			 amount, remaining_amount, due_date, entry_date, reference, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.CustomerID, e.RentalID, e.VehicleID, string(e.Kind), string(e.Category),
		e.Amount.String(), e.Remaining.String(), dateOrNull(e.DueDate), e.EntryDate.String(),
		e.Reference, e.Description, e.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *Store) GetEntry(ctx context.Context, scope ledger.Scope, id string) (*ledger.Entry, error) {
	return getEntry(ctx, s.db, scope, id)
}

func (t *txStore) GetEntry(ctx context.Context, scope ledger.Scope, id string) (*ledger.Entry, error) {
	return getEntry(ctx, t.q, scope, id)
}

func getEntry(ctx context.Context, q querier, scope ledger.Scope, id string) (*ledger.Entry, error) {
	entries, err := queryEntries(ctx, q, entrySelect+`
		WHERE id = ? AND tenant_id = ? AND customer_id = ?`, id, scope.TenantID, scope.CustomerID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ledger.ErrEntryNotFound
	}
	return &entries[0], nil
}

func (s *Store) OpenCharges(ctx context.Context, scope ledger.Scope) ([]ledger.Entry, error) {
	return openCharges(ctx, s.db, scope)
}

func (t *txStore) OpenCharges(ctx context.Context, scope ledger.Scope) ([]ledger.Entry, error) {
	return openCharges(ctx, t.q, scope)
}

func openCharges(ctx context.Context, q querier, scope ledger.Scope) ([]ledger.Entry, error) {
	// Oldest due date first; ties break by creation time, then id. This
	// ordering is the allocation contract.
	return queryEntries(ctx, q, entrySelect+`
		WHERE tenant_id = ? AND customer_id = ? AND kind = 'charge'
		  AND CAST(remaining_amount AS REAL) > 0
		ORDER BY due_date ASC, created_at ASC, id ASC`,
		scope.TenantID, scope.CustomerID)
}

func (s *Store) OpenFineCharges(ctx context.Context, scope ledger.Scope, fineID string) ([]ledger.Entry, error) {
	return openFineCharges(ctx, s.db, scope, fineID)
}

func (t *txStore) OpenFineCharges(ctx context.Context, scope ledger.Scope, fineID string) ([]ledger.Entry, error) {
	return openFineCharges(ctx, t.q, scope, fineID)
}

func openFineCharges(ctx context.Context, q querier, scope ledger.Scope, fineID string) ([]ledger.Entry, error) {
	return queryEntries(ctx, q, entrySelect+`
		WHERE tenant_id = ? AND customer_id = ? AND kind = 'charge' AND category = 'fine'
		  AND reference = ? AND CAST(remaining_amount AS REAL) > 0
		ORDER BY due_date ASC, created_at ASC, id ASC`,
		scope.TenantID, scope.CustomerID, fineID)
}

func (s *Store) SetEntryRemaining(ctx context.Context, scope ledger.Scope, id string, remaining decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setEntryRemaining(ctx, s.db, scope, id, remaining)
}

func (t *txStore) SetEntryRemaining(ctx context.Context, scope ledger.Scope, id string, remaining decimal.Decimal) error {
	return setEntryRemaining(ctx, t.q, scope, id, remaining)
}

// setEntryRemaining is the single sanctioned UPDATE on ledger_entries.
func setEntryRemaining(ctx context.Context, q querier, scope ledger.Scope, id string, remaining decimal.Decimal) error {
	if remaining.IsNegative() {
		return ledger.ErrNegativeRemaining
	}
	res, err := q.ExecContext(ctx, `
		UPDATE ledger_entries SET remaining_amount = ?
		WHERE id = ? AND tenant_id = ? AND customer_id = ?`,
		remaining.String(), id, scope.TenantID, scope.CustomerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

func (s *Store) PaymentEntry(ctx context.Context, scope ledger.Scope, paymentID string) (*ledger.Entry, error) {
	return paymentEntry(ctx, s.db, scope, paymentID)
}

func (t *txStore) PaymentEntry(ctx context.Context, scope ledger.Scope, paymentID string) (*ledger.Entry, error) {
	return paymentEntry(ctx, t.q, scope, paymentID)
}

func paymentEntry(ctx context.Context, q querier, scope ledger.Scope, paymentID string) (*ledger.Entry, error) {
	entries, err := queryEntries(ctx, q, entrySelect+`
		WHERE tenant_id = ? AND customer_id = ? AND kind = 'payment' AND reference = ?`,
		scope.TenantID, scope.CustomerID, paymentID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (s *Store) EntriesByCustomer(ctx context.Context, scope ledger.Scope) ([]ledger.Entry, error) {
	return entriesByCustomer(ctx, s.db, scope)
}

func (t *txStore) EntriesByCustomer(ctx context.Context, scope ledger.Scope) ([]ledger.Entry, error) {
	return entriesByCustomer(ctx, t.q, scope)
}

func entriesByCustomer(ctx context.Context, q querier, scope ledger.Scope) ([]ledger.Entry, error) {
	return queryEntries(ctx, q, entrySelect+`
		WHERE tenant_id = ? AND customer_id = ?
		ORDER BY entry_date ASC, created_at ASC`,
		scope.TenantID, scope.CustomerID)
}

const entrySelect = `
	SELECT id, tenant_id, customer_id, rental_id, vehicle_id, kind, category,
	       amount, remaining_amount, due_date, entry_date, reference, description, created_at
	FROM ledger_entries`

func queryEntries(ctx context.Context, q querier, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e                      ledger.Entry
			kind, category         string
			amount, remaining      string
			dueDate                sql.NullString
			entryDate, createdAt   string
			rentalID, vehicleID    sql.NullString
			reference, description sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.CustomerID, &rentalID, &vehicleID, &kind, &category,
			&amount, &remaining, &dueDate, &entryDate, &reference, &description, &createdAt); err != nil {
			return nil, err
		}
		e.RentalID = rentalID.String
		e.VehicleID = vehicleID.String
		e.Kind = ledger.EntryKind(kind)
		e.Category = ledger.ChargeCategory(category)
		e.Reference = reference.String
		e.Description = description.String
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount for entry %s: %w", e.ID, err)
		}
		if e.Remaining, err = decimal.NewFromString(remaining); err != nil {
			return nil, fmt.Errorf("parse remaining for entry %s: %w", e.ID, err)
		}
		if dueDate.Valid {
			if e.DueDate, err = parseDate(dueDate.String); err != nil {
				return nil, err
			}
		}
		if e.EntryDate, err = parseDate(entryDate); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) InsertPayment(ctx context.Context, p ledger.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPayment(ctx, s.db, p)
}

func (t *txStore) InsertPayment(ctx context.Context, p ledger.Payment) error {
	return insertPayment(ctx, t.q, p)
}

func insertPayment(ctx context.Context, q querier, p ledger.Payment) error {
	var reversedAt any
	if p.ReversedAt != nil {
		reversedAt = p.ReversedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO payments
			(id, tenant_id, customer_id, rental_id, amount, remaining_amount,
			 status, verification, refund_status, capture_ref, reason, reversed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TenantID, p.CustomerID, p.RentalID, p.Amount.String(), p.Remaining.String(),
		string(p.Status), string(p.Verification), string(p.RefundStatus), p.CaptureRef,
		p.Reason, reversedAt, p.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *Store) GetPayment(ctx context.Context, scope ledger.Scope, id string) (*ledger.Payment, error) {
	return getPayment(ctx, s.db, scope, id)
}

func (t *txStore) GetPayment(ctx context.Context, scope ledger.Scope, id string) (*ledger.Payment, error) {
	return getPayment(ctx, t.q, scope, id)
}

func getPayment(ctx context.Context, q querier, scope ledger.Scope, id string) (*ledger.Payment, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, tenant_id, customer_id, rental_id, amount, remaining_amount,
		       status, verification, refund_status, capture_ref, reason, reversed_at, created_at
		FROM payments
		WHERE id = ? AND tenant_id = ? AND customer_id = ?`,
		id, scope.TenantID, scope.CustomerID)

	var (
		p                                ledger.Payment
		amount, remaining                string
		status, verification             string
		refundStatus, captureRef, reason sql.NullString
		rentalID, reversedAt             sql.NullString
		createdAt                        string
	)
	err := row.Scan(&p.ID, &p.TenantID, &p.CustomerID, &rentalID, &amount, &remaining,
		&status, &verification, &refundStatus, &captureRef, &reason, &reversedAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	p.RentalID = rentalID.String
	p.Status = ledger.PaymentStatus(status)
	p.Verification = ledger.VerificationStatus(verification)
	p.RefundStatus = ledger.RefundStatus(refundStatus.String)
	p.CaptureRef = captureRef.String
	p.Reason = reason.String
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount for payment %s: %w", p.ID, err)
	}
	if p.Remaining, err = decimal.NewFromString(remaining); err != nil {
		return nil, fmt.Errorf("parse remaining for payment %s: %w", p.ID, err)
	}
	if reversedAt.Valid {
		ts, err := time.Parse(time.RFC3339Nano, reversedAt.String)
		if err != nil {
			return nil, err
		}
		p.ReversedAt = &ts
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SetPaymentRemaining(ctx context.Context, scope ledger.Scope, id string, remaining decimal.Decimal, status ledger.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setPaymentRemaining(ctx, s.db, scope, id, remaining, status)
}

func (t *txStore) SetPaymentRemaining(ctx context.Context, scope ledger.Scope, id string, remaining decimal.Decimal, status ledger.PaymentStatus) error {
	return setPaymentRemaining(ctx, t.q, scope, id, remaining, status)
}

func setPaymentRemaining(ctx context.Context, q querier, scope ledger.Scope, id string, remaining decimal.Decimal, status ledger.PaymentStatus) error {
	if remaining.IsNegative() {
		return ledger.ErrNegativeRemaining
	}
	res, err := q.ExecContext(ctx, `
		UPDATE payments SET remaining_amount = ?, status = ?
		WHERE id = ? AND tenant_id = ? AND customer_id = ?`,
		remaining.String(), string(status), id, scope.TenantID, scope.CustomerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) SetPaymentVerification(ctx context.Context, scope ledger.Scope, id string, v ledger.VerificationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setPaymentVerification(ctx, s.db, scope, id, v)
}

func (t *txStore) SetPaymentVerification(ctx context.Context, scope ledger.Scope, id string, v ledger.VerificationStatus) error {
	return setPaymentVerification(ctx, t.q, scope, id, v)
}

func setPaymentVerification(ctx context.Context, q querier, scope ledger.Scope, id string, v ledger.VerificationStatus) error {
	res, err := q.ExecContext(ctx, `
		UPDATE payments SET verification = ?
		WHERE id = ? AND tenant_id = ? AND customer_id = ?`,
		string(v), id, scope.TenantID, scope.CustomerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) MarkPaymentReversed(ctx context.Context, scope ledger.Scope, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markPaymentReversed(ctx, s.db, scope, id, reason)
}

func (t *txStore) MarkPaymentReversed(ctx context.Context, scope ledger.Scope, id string, reason string) error {
	return markPaymentReversed(ctx, t.q, scope, id, reason)
}

func markPaymentReversed(ctx context.Context, q querier, scope ledger.Scope, id string, reason string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE payments
		SET status = 'reversed', remaining_amount = '0', reason = ?, reversed_at = ?
		WHERE id = ? AND tenant_id = ? AND customer_id = ?`,
		reason, time.Now().UTC().Format(time.RFC3339Nano), id, scope.TenantID, scope.CustomerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrPaymentNotFound
	}
	return nil
}

// =============================================================================
// APPLICATIONS
// =============================================================================

func (s *Store) InsertApplication(ctx context.Context, a ledger.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertApplication(ctx, s.db, a)
}

func (t *txStore) InsertApplication(ctx context.Context, a ledger.Application) error {
	return insertApplication(ctx, t.q, a)
}

func insertApplication(ctx context.Context, q querier, a ledger.Application) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO payment_applications (id, tenant_id, payment_id, charge_id, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.TenantID, a.PaymentID, a.ChargeID, a.Amount.String(),
		a.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *Store) ApplicationsByPayment(ctx context.Context, scope ledger.Scope, paymentID string) ([]ledger.Application, error) {
	return applicationsByPayment(ctx, s.db, scope, paymentID)
}

func (t *txStore) ApplicationsByPayment(ctx context.Context, scope ledger.Scope, paymentID string) ([]ledger.Application, error) {
	return applicationsByPayment(ctx, t.q, scope, paymentID)
}

func applicationsByPayment(ctx context.Context, q querier, scope ledger.Scope, paymentID string) ([]ledger.Application, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, tenant_id, payment_id, charge_id, amount, created_at
		FROM payment_applications
		WHERE tenant_id = ? AND payment_id = ?
		ORDER BY created_at ASC, id ASC`,
		scope.TenantID, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []ledger.Application
	for rows.Next() {
		var (
			a         ledger.Application
			amount    string
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.TenantID, &a.PaymentID, &a.ChargeID, &amount, &createdAt); err != nil {
			return nil, err
		}
		if a.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount for application %s: %w", a.ID, err)
		}
		if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (s *Store) DeleteApplicationsByPayment(ctx context.Context, scope ledger.Scope, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteApplicationsByPayment(ctx, s.db, scope, paymentID)
}

func (t *txStore) DeleteApplicationsByPayment(ctx context.Context, scope ledger.Scope, paymentID string) error {
	return deleteApplicationsByPayment(ctx, t.q, scope, paymentID)
}

func deleteApplicationsByPayment(ctx context.Context, q querier, scope ledger.Scope, paymentID string) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM payment_applications WHERE tenant_id = ? AND payment_id = ?`,
		scope.TenantID, paymentID)
	return err
}

// =============================================================================
// P&L
// =============================================================================

func (s *Store) InsertPnL(ctx context.Context, e ledger.PnLEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPnL(ctx, s.db, e)
}

func (t *txStore) InsertPnL(ctx context.Context, e ledger.PnLEntry) error {
	return insertPnL(ctx, t.q, e)
}

func insertPnL(ctx context.Context, q querier, e ledger.PnLEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO pnl_entries (id, tenant_id, customer_id, payment_id, reference, amount, recognized_on)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.CustomerID, e.PaymentID, e.Reference, e.Amount.String(), e.RecognizedOn.String())
	return err
}

func (s *Store) PnLByPayment(ctx context.Context, scope ledger.Scope, paymentID string) ([]ledger.PnLEntry, error) {
	return pnlByPayment(ctx, s.db, scope, paymentID)
}

func (t *txStore) PnLByPayment(ctx context.Context, scope ledger.Scope, paymentID string) ([]ledger.PnLEntry, error) {
	return pnlByPayment(ctx, t.q, scope, paymentID)
}

func pnlByPayment(ctx context.Context, q querier, scope ledger.Scope, paymentID string) ([]ledger.PnLEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, tenant_id, customer_id, payment_id, reference, amount, recognized_on
		FROM pnl_entries
		WHERE tenant_id = ? AND payment_id = ?
		ORDER BY reference ASC`,
		scope.TenantID, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.PnLEntry
	for rows.Next() {
		var (
			e            ledger.PnLEntry
			amount       string
			recognizedOn string
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.CustomerID, &e.PaymentID, &e.Reference, &amount, &recognizedOn); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount for pnl entry %s: %w", e.ID, err)
		}
		if e.RecognizedOn, err = parseDate(recognizedOn); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) DeletePnLByPayment(ctx context.Context, scope ledger.Scope, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletePnLByPayment(ctx, s.db, scope, paymentID)
}

func (t *txStore) DeletePnLByPayment(ctx context.Context, scope ledger.Scope, paymentID string) error {
	return deletePnLByPayment(ctx, t.q, scope, paymentID)
}

func deletePnLByPayment(ctx context.Context, q querier, scope ledger.Scope, paymentID string) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM pnl_entries WHERE tenant_id = ? AND payment_id = ?`,
		scope.TenantID, paymentID)
	return err
}

// =============================================================================
// FINES
// =============================================================================

func (s *Store) InsertFine(ctx context.Context, f ledger.Fine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertFine(ctx, s.db, f)
}

func (t *txStore) InsertFine(ctx context.Context, f ledger.Fine) error {
	return insertFine(ctx, t.q, f)
}

func insertFine(ctx context.Context, q querier, f ledger.Fine) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO fines (id, tenant_id, customer_id, rental_id, amount, status, reason, issued_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.TenantID, f.CustomerID, f.RentalID, f.Amount.String(), string(f.Status), f.Reason, f.IssuedOn.String())
	return err
}

func (s *Store) GetFine(ctx context.Context, scope ledger.Scope, id string) (*ledger.Fine, error) {
	return getFine(ctx, s.db, scope, id)
}

func (t *txStore) GetFine(ctx context.Context, scope ledger.Scope, id string) (*ledger.Fine, error) {
	return getFine(ctx, t.q, scope, id)
}

func getFine(ctx context.Context, q querier, scope ledger.Scope, id string) (*ledger.Fine, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, tenant_id, customer_id, rental_id, amount, status, reason, issued_on
		FROM fines
		WHERE id = ? AND tenant_id = ? AND customer_id = ?`,
		id, scope.TenantID, scope.CustomerID)

	var (
		f                ledger.Fine
		rentalID, reason sql.NullString
		amount, status   string
		issuedOn         string
	)
	err := row.Scan(&f.ID, &f.TenantID, &f.CustomerID, &rentalID, &amount, &status, &reason, &issuedOn)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrFineNotFound
	}
	if err != nil {
		return nil, err
	}
	f.RentalID = rentalID.String
	f.Reason = reason.String
	f.Status = ledger.FineStatus(status)
	if f.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount for fine %s: %w", f.ID, err)
	}
	if f.IssuedOn, err = parseDate(issuedOn); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) SetFineStatus(ctx context.Context, scope ledger.Scope, id string, status ledger.FineStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setFineStatus(ctx, s.db, scope, id, status)
}

func (t *txStore) SetFineStatus(ctx context.Context, scope ledger.Scope, id string, status ledger.FineStatus) error {
	return setFineStatus(ctx, t.q, scope, id, status)
}

func setFineStatus(ctx context.Context, q querier, scope ledger.Scope, id string, status ledger.FineStatus) error {
	res, err := q.ExecContext(ctx, `
		UPDATE fines SET status = ?
		WHERE id = ? AND tenant_id = ? AND customer_id = ?`,
		string(status), id, scope.TenantID, scope.CustomerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrFineNotFound
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDate(s string) (ledger.Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return ledger.Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return ledger.DateOf(t), nil
}

func dateOrNull(d ledger.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}
