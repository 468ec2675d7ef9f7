// Package store provides ledger store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CortekUK/drive-247-sub010/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.TxStore in memory. WithTx clones the maps, runs
// the closure against the clone, and swaps it in on success, so rollback
// semantics match the SQL store.
type Memory struct {
	mu   sync.RWMutex
	data *tables
}

type tables struct {
	entries      map[string]ledger.Entry
	payments     map[string]ledger.Payment
	applications map[string]ledger.Application
	pnl          map[string]ledger.PnLEntry
	fines        map[string]ledger.Fine
}

func newTables() *tables {
	return &tables{
		entries:      make(map[string]ledger.Entry),
		payments:     make(map[string]ledger.Payment),
		applications: make(map[string]ledger.Application),
		pnl:          make(map[string]ledger.PnLEntry),
		fines:        make(map[string]ledger.Fine),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.entries {
		c.entries[k] = v
	}
	for k, v := range t.payments {
		c.payments[k] = v
	}
	for k, v := range t.applications {
		c.applications[k] = v
	}
	for k, v := range t.pnl {
		c.pnl[k] = v
	}
	for k, v := range t.fines {
		c.fines[k] = v
	}
	return c
}

func NewMemory() *Memory {
	return &Memory{data: newTables()}
}

func inScope(scope ledger.Scope, tenantID, customerID string) bool {
	return tenantID == scope.TenantID && customerID == scope.CustomerID
}

// =============================================================================
// ENTRIES
// =============================================================================

func (m *Memory) InsertEntry(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.entries[e.ID] = e
	return nil
}

func (m *Memory) GetEntry(_ context.Context, scope ledger.Scope, id string) (*ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data.entries[id]
	if !ok || !inScope(scope, e.TenantID, e.CustomerID) {
		return nil, ledger.ErrEntryNotFound
	}
	return &e, nil
}

func (m *Memory) OpenCharges(_ context.Context, scope ledger.Scope) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Entry
	for _, e := range m.data.entries {
		if e.Kind == ledger.KindCharge && e.Open() && inScope(scope, e.TenantID, e.CustomerID) {
			out = append(out, e)
		}
	}
	sortCharges(out)
	return out, nil
}

// sortCharges orders by due date, then creation time, then ID. This is the
// allocation ordering contract.
func sortCharges(entries []ledger.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func (m *Memory) OpenFineCharges(_ context.Context, scope ledger.Scope, fineID string) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Entry
	for _, e := range m.data.entries {
		if e.Kind == ledger.KindCharge && e.Category == ledger.CategoryFine &&
			e.Reference == fineID && e.Open() && inScope(scope, e.TenantID, e.CustomerID) {
			out = append(out, e)
		}
	}
	sortCharges(out)
	return out, nil
}

func (m *Memory) SetEntryRemaining(_ context.Context, scope ledger.Scope, id string, remaining decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.data.entries[id]
	if !ok || !inScope(scope, e.TenantID, e.CustomerID) {
		return ledger.ErrEntryNotFound
	}
	if remaining.IsNegative() {
		return ledger.ErrNegativeRemaining
	}
	e.Remaining = remaining
	m.data.entries[id] = e
	return nil
}

func (m *Memory) PaymentEntry(_ context.Context, scope ledger.Scope, paymentID string) (*ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.data.entries {
		if e.Kind == ledger.KindPayment && e.Reference == paymentID && inScope(scope, e.TenantID, e.CustomerID) {
			return &e, nil
		}
	}
	return nil, nil
}

func (m *Memory) EntriesByCustomer(_ context.Context, scope ledger.Scope) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Entry
	for _, e := range m.data.entries {
		if inScope(scope, e.TenantID, e.CustomerID) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].EntryDate.Equal(out[j].EntryDate) {
			return out[i].EntryDate.Before(out[j].EntryDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) InsertPayment(_ context.Context, p ledger.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.payments[p.ID] = p
	return nil
}

func (m *Memory) GetPayment(_ context.Context, scope ledger.Scope, id string) (*ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.data.payments[id]
	if !ok || !inScope(scope, p.TenantID, p.CustomerID) {
		return nil, ledger.ErrPaymentNotFound
	}
	return &p, nil
}

func (m *Memory) SetPaymentRemaining(_ context.Context, scope ledger.Scope, id string, remaining decimal.Decimal, status ledger.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.data.payments[id]
	if !ok || !inScope(scope, p.TenantID, p.CustomerID) {
		return ledger.ErrPaymentNotFound
	}
	if remaining.IsNegative() {
		return ledger.ErrNegativeRemaining
	}
	p.Remaining = remaining
	p.Status = status
	m.data.payments[id] = p
	return nil
}

func (m *Memory) SetPaymentVerification(_ context.Context, scope ledger.Scope, id string, v ledger.VerificationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.data.payments[id]
	if !ok || !inScope(scope, p.TenantID, p.CustomerID) {
		return ledger.ErrPaymentNotFound
	}
	p.Verification = v
	m.data.payments[id] = p
	return nil
}

func (m *Memory) MarkPaymentReversed(_ context.Context, scope ledger.Scope, id string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.data.payments[id]
	if !ok || !inScope(scope, p.TenantID, p.CustomerID) {
		return ledger.ErrPaymentNotFound
	}
	now := nowPtr()
	p.Status = ledger.PaymentReversed
	p.Remaining = decimal.Zero
	p.Reason = reason
	p.ReversedAt = now
	m.data.payments[id] = p
	return nil
}

// =============================================================================
// APPLICATIONS
// =============================================================================

func (m *Memory) InsertApplication(_ context.Context, a ledger.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.applications[a.ID] = a
	return nil
}

func (m *Memory) ApplicationsByPayment(_ context.Context, scope ledger.Scope, paymentID string) ([]ledger.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Application
	for _, a := range m.data.applications {
		if a.PaymentID == paymentID && a.TenantID == scope.TenantID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeleteApplicationsByPayment(_ context.Context, scope ledger.Scope, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, a := range m.data.applications {
		if a.PaymentID == paymentID && a.TenantID == scope.TenantID {
			delete(m.data.applications, id)
		}
	}
	return nil
}

// =============================================================================
// P&L
// =============================================================================

func (m *Memory) InsertPnL(_ context.Context, e ledger.PnLEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.pnl[e.ID] = e
	return nil
}

func (m *Memory) PnLByPayment(_ context.Context, scope ledger.Scope, paymentID string) ([]ledger.PnLEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.PnLEntry
	for _, e := range m.data.pnl {
		if e.PaymentID == paymentID && e.TenantID == scope.TenantID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return strings.Compare(out[i].Reference, out[j].Reference) < 0 })
	return out, nil
}

func (m *Memory) DeletePnLByPayment(_ context.Context, scope ledger.Scope, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.data.pnl {
		if e.PaymentID == paymentID && e.TenantID == scope.TenantID {
			delete(m.data.pnl, id)
		}
	}
	return nil
}

// =============================================================================
// FINES
// =============================================================================

func (m *Memory) InsertFine(_ context.Context, f ledger.Fine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.fines[f.ID] = f
	return nil
}

func (m *Memory) GetFine(_ context.Context, scope ledger.Scope, id string) (*ledger.Fine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.data.fines[id]
	if !ok || !inScope(scope, f.TenantID, f.CustomerID) {
		return nil, ledger.ErrFineNotFound
	}
	return &f, nil
}

func (m *Memory) SetFineStatus(_ context.Context, scope ledger.Scope, id string, status ledger.FineStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.data.fines[id]
	if !ok || !inScope(scope, f.TenantID, f.CustomerID) {
		return ledger.ErrFineNotFound
	}
	f.Status = status
	m.data.fines[id] = f
	return nil
}

// =============================================================================
// TRANSACTIONS - Copy-on-write snapshot
// =============================================================================

// WithTx clones the tables, runs fn against a store view of the clone, and
// swaps the clone in only if fn succeeds. The outer mutex serializes
// transactions, which matches SQLite's single-writer behavior.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	view := &Memory{data: snapshot}
	if err := fn(view); err != nil {
		return err
	}
	m.data = snapshot
	return nil
}

func nowPtr() *time.Time {
	t := time.Now().UTC()
	return &t
}
