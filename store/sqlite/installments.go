/*
installments.go - SQLite persistence for installment plans and schedules

PURPOSE:
  Implements installment.Store on the same database handle as the ledger
  tables. Plans and their schedules live alongside the ledger so a sweep's
  charge, payment, and installment updates share one file.

SEE ALSO:
  - installment/service.go: Store interface definition and the sweep
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CortekUK/drive-247-sub010/installment"
	"github.com/CortekUK/drive-247-sub010/ledger"
)

// =============================================================================
// PLANS
// =============================================================================

func (s *Store) InsertPlan(ctx context.Context, p installment.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO installment_plans
			(id, tenant_id, customer_id, rental_id, status,
			 number_of_installments, installment_amount, total_installable,
			 interval_n, interval_unit, paid_installments, total_paid,
			 next_due_date, upfront_amount, upfront_paid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TenantID, p.CustomerID, p.RentalID, string(p.Status),
		p.NumberOfInstallments, p.InstallmentAmount.String(), p.TotalInstallable.String(),
		p.Interval.N, string(p.Interval.Unit), p.PaidInstallments, p.TotalPaid.String(),
		dateOrNull(p.NextDueDate), p.UpfrontAmount.String(), p.UpfrontPaid.String(),
		p.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *Store) GetPlan(ctx context.Context, scope ledger.Scope, id string) (*installment.Plan, error) {
	plans, err := s.queryPlans(ctx, planSelect+`
		WHERE id = ? AND tenant_id = ? AND customer_id = ?`, id, scope.TenantID, scope.CustomerID)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, ledger.ErrPlanNotFound
	}
	return &plans[0], nil
}

func (s *Store) PlansByCustomer(ctx context.Context, scope ledger.Scope) ([]installment.Plan, error) {
	return s.queryPlans(ctx, planSelect+`
		WHERE tenant_id = ? AND customer_id = ?
		ORDER BY created_at ASC, id ASC`, scope.TenantID, scope.CustomerID)
}

func (s *Store) UpdatePlan(ctx context.Context, p installment.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE installment_plans
		SET status = ?, paid_installments = ?, total_paid = ?, next_due_date = ?,
		    upfront_paid = ?
		WHERE id = ? AND tenant_id = ? AND customer_id = ?`,
		string(p.Status), p.PaidInstallments, p.TotalPaid.String(), dateOrNull(p.NextDueDate),
		p.UpfrontPaid.String(), p.ID, p.TenantID, p.CustomerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrPlanNotFound
	}
	return nil
}

const planSelect = `
	SELECT id, tenant_id, customer_id, rental_id, status,
	       number_of_installments, installment_amount, total_installable,
	       interval_n, interval_unit, paid_installments, total_paid,
	       next_due_date, upfront_amount, upfront_paid, created_at
	FROM installment_plans`

func (s *Store) queryPlans(ctx context.Context, query string, args ...any) ([]installment.Plan, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []installment.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (installment.Plan, error) {
	var (
		p                  installment.Plan
		rentalID           sql.NullString
		status, unit       string
		amount, total      string
		paid               string
		nextDue            sql.NullString
		upAmount, upPaid   string
		createdAt          string
	)
	if err := row.Scan(&p.ID, &p.TenantID, &p.CustomerID, &rentalID, &status,
		&p.NumberOfInstallments, &amount, &total,
		&p.Interval.N, &unit, &p.PaidInstallments, &paid,
		&nextDue, &upAmount, &upPaid, &createdAt); err != nil {
		return p, err
	}
	p.RentalID = rentalID.String
	p.Status = installment.PlanStatus(status)
	p.Interval.Unit = installment.IntervalUnit(unit)

	var err error
	if p.InstallmentAmount, err = decimal.NewFromString(amount); err != nil {
		return p, fmt.Errorf("parse installment amount for plan %s: %w", p.ID, err)
	}
	if p.TotalInstallable, err = decimal.NewFromString(total); err != nil {
		return p, fmt.Errorf("parse total installable for plan %s: %w", p.ID, err)
	}
	if p.TotalPaid, err = decimal.NewFromString(paid); err != nil {
		return p, fmt.Errorf("parse total paid for plan %s: %w", p.ID, err)
	}
	if p.UpfrontAmount, err = decimal.NewFromString(upAmount); err != nil {
		return p, fmt.Errorf("parse upfront amount for plan %s: %w", p.ID, err)
	}
	if p.UpfrontPaid, err = decimal.NewFromString(upPaid); err != nil {
		return p, fmt.Errorf("parse upfront paid for plan %s: %w", p.ID, err)
	}
	if nextDue.Valid {
		if p.NextDueDate, err = parseDate(nextDue.String); err != nil {
			return p, err
		}
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return p, err
	}
	return p, nil
}

// =============================================================================
// SCHEDULED INSTALLMENTS
// =============================================================================

func (s *Store) InsertInstallments(ctx context.Context, installments []installment.ScheduledInstallment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, si := range installments {
		if err := execInsertInstallment(ctx, tx, si); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func execInsertInstallment(ctx context.Context, q querier, si installment.ScheduledInstallment) error {
	var paidAt any
	if si.PaidAt != nil {
		paidAt = si.PaidAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO scheduled_installments
			(id, plan_id, number, amount, due_date, status,
			 failure_count, last_failure_reason, paid_at, payment_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		si.ID, si.PlanID, si.Number, si.Amount.String(), si.DueDate.String(), string(si.Status),
		si.FailureCount, si.LastFailureReason, paidAt, si.PaymentID)
	return err
}

func (s *Store) InstallmentsByPlan(ctx context.Context, planID string) ([]installment.ScheduledInstallment, error) {
	rows, err := s.db.QueryContext(ctx, installmentSelect+`
		WHERE plan_id = ?
		ORDER BY number ASC`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInstallments(rows)
}

func (s *Store) UpdateInstallment(ctx context.Context, si installment.ScheduledInstallment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var paidAt any
	if si.PaidAt != nil {
		paidAt = si.PaidAt.UTC().Format(time.RFC3339Nano)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_installments
		SET status = ?, failure_count = ?, last_failure_reason = ?, paid_at = ?, payment_id = ?
		WHERE id = ?`,
		string(si.Status), si.FailureCount, si.LastFailureReason, paidAt, si.PaymentID, si.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("installment %s not found", si.ID)
	}
	return nil
}

// DueInstallments returns pending installments due on or before asOf, joined
// with their plans. Cancelled and completed plans never surface here.
func (s *Store) DueInstallments(ctx context.Context, tenantID string, asOf ledger.Date) ([]installment.DueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.tenant_id, p.customer_id, p.rental_id, p.status,
		       p.number_of_installments, p.installment_amount, p.total_installable,
		       p.interval_n, p.interval_unit, p.paid_installments, p.total_paid,
		       p.next_due_date, p.upfront_amount, p.upfront_paid, p.created_at,
		       i.id, i.plan_id, i.number, i.amount, i.due_date, i.status,
		       i.failure_count, i.last_failure_reason, i.paid_at, i.payment_id
		FROM scheduled_installments i
		JOIN installment_plans p ON p.id = i.plan_id
		WHERE p.tenant_id = ?
		  AND p.status NOT IN ('cancelled', 'completed')
		  AND i.status IN ('scheduled', 'failed')
		  AND i.due_date <= ?
		ORDER BY i.due_date ASC, i.number ASC`,
		tenantID, asOf.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []installment.DueItem
	for rows.Next() {
		var (
			p                installment.Plan
			rentalID         sql.NullString
			pStatus, unit    string
			amount, total    string
			paid             string
			nextDue          sql.NullString
			upAmount, upPaid string
			createdAt        string

			si             installment.ScheduledInstallment
			siAmount       string
			siDue, siStat  string
			failureReason  sql.NullString
			paidAt, payID  sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.TenantID, &p.CustomerID, &rentalID, &pStatus,
			&p.NumberOfInstallments, &amount, &total,
			&p.Interval.N, &unit, &p.PaidInstallments, &paid,
			&nextDue, &upAmount, &upPaid, &createdAt,
			&si.ID, &si.PlanID, &si.Number, &siAmount, &siDue, &siStat,
			&si.FailureCount, &failureReason, &paidAt, &payID); err != nil {
			return nil, err
		}
		p.RentalID = rentalID.String
		p.Status = installment.PlanStatus(pStatus)
		p.Interval.Unit = installment.IntervalUnit(unit)
		if p.InstallmentAmount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse installment amount for plan %s: %w", p.ID, err)
		}
		if p.TotalInstallable, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("parse total installable for plan %s: %w", p.ID, err)
		}
		if p.TotalPaid, err = decimal.NewFromString(paid); err != nil {
			return nil, fmt.Errorf("parse total paid for plan %s: %w", p.ID, err)
		}
		if p.UpfrontAmount, err = decimal.NewFromString(upAmount); err != nil {
			return nil, fmt.Errorf("parse upfront amount for plan %s: %w", p.ID, err)
		}
		if p.UpfrontPaid, err = decimal.NewFromString(upPaid); err != nil {
			return nil, fmt.Errorf("parse upfront paid for plan %s: %w", p.ID, err)
		}
		if nextDue.Valid {
			if p.NextDueDate, err = parseDate(nextDue.String); err != nil {
				return nil, err
			}
		}
		if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}

		si.Status = installment.Status(siStat)
		si.LastFailureReason = failureReason.String
		si.PaymentID = payID.String
		if si.Amount, err = decimal.NewFromString(siAmount); err != nil {
			return nil, fmt.Errorf("parse amount for installment %s: %w", si.ID, err)
		}
		if si.DueDate, err = parseDate(siDue); err != nil {
			return nil, err
		}
		if paidAt.Valid {
			ts, err := time.Parse(time.RFC3339Nano, paidAt.String)
			if err != nil {
				return nil, err
			}
			si.PaidAt = &ts
		}

		items = append(items, installment.DueItem{Plan: p, Installment: si})
	}
	return items, rows.Err()
}

const installmentSelect = `
	SELECT id, plan_id, number, amount, due_date, status,
	       failure_count, last_failure_reason, paid_at, payment_id
	FROM scheduled_installments`

func scanInstallments(rows *sql.Rows) ([]installment.ScheduledInstallment, error) {
	var out []installment.ScheduledInstallment
	for rows.Next() {
		var (
			si            installment.ScheduledInstallment
			amount        string
			due, status   string
			failureReason sql.NullString
			paidAt, payID sql.NullString
		)
		if err := rows.Scan(&si.ID, &si.PlanID, &si.Number, &amount, &due, &status,
			&si.FailureCount, &failureReason, &paidAt, &payID); err != nil {
			return nil, err
		}
		si.Status = installment.Status(status)
		si.LastFailureReason = failureReason.String
		si.PaymentID = payID.String
		var err error
		if si.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount for installment %s: %w", si.ID, err)
		}
		if si.DueDate, err = parseDate(due); err != nil {
			return nil, err
		}
		if paidAt.Valid {
			ts, err := time.Parse(time.RFC3339Nano, paidAt.String)
			if err != nil {
				return nil, err
			}
			si.PaidAt = &ts
		}
		out = append(out, si)
	}
	return out, rows.Err()
}
