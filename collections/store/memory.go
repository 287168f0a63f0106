// Package store provides an in-memory collections.Store for tests/dev.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/recobro/collections-engine/collections"
	"github.com/recobro/collections-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	cases     map[engine.CaseNumber]*engine.Case
	payments  map[engine.PaymentID]engine.Payment
	companies map[engine.CompanyID]*engine.Company
	schemes   map[engine.SchemeID]*engine.CommissionScheme
}

func NewMemory() *Memory {
	return &Memory{
		cases:     make(map[engine.CaseNumber]*engine.Case),
		payments:  make(map[engine.PaymentID]engine.Payment),
		companies: make(map[engine.CompanyID]*engine.Company),
		schemes:   make(map[engine.SchemeID]*engine.CommissionScheme),
	}
}

// =============================================================================
// CASES
// =============================================================================

func (m *Memory) GetCase(_ context.Context, number engine.CaseNumber) (*engine.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCaseLocked(number)
}

func (m *Memory) getCaseLocked(number engine.CaseNumber) (*engine.Case, error) {
	c, ok := m.cases[number]
	if !ok {
		return nil, engine.ErrCaseNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) InsertCase(_ context.Context, c *engine.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertCaseLocked(c)
}

func (m *Memory) insertCaseLocked(c *engine.Case) error {
	if _, exists := m.cases[c.Number]; exists {
		return engine.ErrConcurrentModification
	}
	cp := *c
	cp.Version = 1
	m.cases[c.Number] = &cp
	c.Version = 1
	return nil
}

func (m *Memory) UpdateCase(_ context.Context, c *engine.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCaseLocked(c)
}

func (m *Memory) updateCaseLocked(c *engine.Case) error {
	stored, ok := m.cases[c.Number]
	if !ok {
		return engine.ErrCaseNotFound
	}
	if stored.Version != c.Version {
		return engine.ErrConcurrentModification
	}
	cp := *c
	cp.Version = c.Version + 1
	m.cases[c.Number] = &cp
	c.Version = cp.Version
	return nil
}

func (m *Memory) ListCases(_ context.Context, filter collections.CaseFilter) ([]*engine.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCasesLocked(filter)
}

func (m *Memory) listCasesLocked(filter collections.CaseFilter) ([]*engine.Case, error) {
	var result []*engine.Case
	for _, c := range m.cases {
		if c.Lifecycle.IsArchived() != filter.Archived {
			continue
		}
		if filter.CompanyID != "" && c.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

func (m *Memory) DeleteCase(_ context.Context, number engine.CaseNumber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCaseLocked(number)
}

func (m *Memory) deleteCaseLocked(number engine.CaseNumber) error {
	if _, ok := m.cases[number]; !ok {
		return engine.ErrCaseNotFound
	}
	delete(m.cases, number)
	for id, p := range m.payments {
		if p.CaseNumber == number {
			delete(m.payments, id)
		}
	}
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) InsertPayment(_ context.Context, p engine.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
	return nil
}

func (m *Memory) UpdatePayment(_ context.Context, p engine.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePaymentLocked(p)
}

func (m *Memory) updatePaymentLocked(p engine.Payment) error {
	if _, ok := m.payments[p.ID]; !ok {
		return engine.ErrPaymentNotFound
	}
	m.payments[p.ID] = p
	return nil
}

func (m *Memory) DeletePayment(_ context.Context, id engine.PaymentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletePaymentLocked(id)
}

func (m *Memory) deletePaymentLocked(id engine.PaymentID) error {
	if _, ok := m.payments[id]; !ok {
		return engine.ErrPaymentNotFound
	}
	delete(m.payments, id)
	return nil
}

func (m *Memory) GetPayment(_ context.Context, id engine.PaymentID) (*engine.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, engine.ErrPaymentNotFound
	}
	cp := p
	return &cp, nil
}

func (m *Memory) PaymentsByCase(_ context.Context, number engine.CaseNumber) ([]engine.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paymentsByCaseLocked(number)
}

func (m *Memory) paymentsByCaseLocked(number engine.CaseNumber) ([]engine.Payment, error) {
	var result []engine.Payment
	for _, p := range m.payments {
		if p.CaseNumber == number {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].PaidAt.Equal(result[j].PaidAt) {
			return result[i].PaidAt.Before(result[j].PaidAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// =============================================================================
// COMPANIES AND SCHEMES
// =============================================================================

func (m *Memory) SaveCompany(_ context.Context, co *engine.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *co
	m.companies[co.ID] = &cp
	return nil
}

func (m *Memory) GetCompany(_ context.Context, id engine.CompanyID) (*engine.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	co, ok := m.companies[id]
	if !ok {
		return nil, engine.ErrCompanyNotFound
	}
	cp := *co
	return &cp, nil
}

func (m *Memory) ListCompanies(_ context.Context) ([]*engine.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*engine.Company
	for _, co := range m.companies {
		cp := *co
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) SaveScheme(_ context.Context, s *engine.CommissionScheme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.schemes[s.ID] = &cp
	return nil
}

func (m *Memory) DeleteScheme(_ context.Context, id engine.SchemeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.schemes, id)
	return nil
}

func (m *Memory) SchemesByCompany(_ context.Context, id engine.CompanyID, category engine.CaseCategory) ([]*engine.CommissionScheme, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schemesByCompanyLocked(id, category)
}

func (m *Memory) schemesByCompanyLocked(id engine.CompanyID, category engine.CaseCategory) ([]*engine.CommissionScheme, error) {
	var result []*engine.CommissionScheme
	for _, s := range m.schemes {
		if s.CompanyID == id && s.Category == category {
			cp := *s
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// TRANSACTIONS - Snapshot + rollback on error
// =============================================================================

// WithTx executes fn atomically. For the memory store this is simulated
// with a full snapshot restored on error.
func (m *Memory) WithTx(_ context.Context, fn func(collections.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	view := &txView{parent: m}
	if err := fn(view); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	cases     map[engine.CaseNumber]*engine.Case
	payments  map[engine.PaymentID]engine.Payment
	companies map[engine.CompanyID]*engine.Company
	schemes   map[engine.SchemeID]*engine.CommissionScheme
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		cases:     make(map[engine.CaseNumber]*engine.Case, len(m.cases)),
		payments:  make(map[engine.PaymentID]engine.Payment, len(m.payments)),
		companies: make(map[engine.CompanyID]*engine.Company, len(m.companies)),
		schemes:   make(map[engine.SchemeID]*engine.CommissionScheme, len(m.schemes)),
	}
	for k, v := range m.cases {
		cp := *v
		s.cases[k] = &cp
	}
	for k, v := range m.payments {
		s.payments[k] = v
	}
	for k, v := range m.companies {
		cp := *v
		s.companies[k] = &cp
	}
	for k, v := range m.schemes {
		cp := *v
		s.schemes[k] = &cp
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.cases = s.cases
	m.payments = s.payments
	m.companies = s.companies
	m.schemes = s.schemes
}

// txView routes the transactional calls to the locked parent methods.
type txView struct {
	parent *Memory
}

func (tv *txView) GetCase(_ context.Context, number engine.CaseNumber) (*engine.Case, error) {
	return tv.parent.getCaseLocked(number)
}

func (tv *txView) InsertCase(_ context.Context, c *engine.Case) error {
	return tv.parent.insertCaseLocked(c)
}

func (tv *txView) UpdateCase(_ context.Context, c *engine.Case) error {
	return tv.parent.updateCaseLocked(c)
}

func (tv *txView) ListCases(_ context.Context, filter collections.CaseFilter) ([]*engine.Case, error) {
	return tv.parent.listCasesLocked(filter)
}

func (tv *txView) DeleteCase(_ context.Context, number engine.CaseNumber) error {
	return tv.parent.deleteCaseLocked(number)
}

func (tv *txView) InsertPayment(_ context.Context, p engine.Payment) error {
	tv.parent.payments[p.ID] = p
	return nil
}

func (tv *txView) UpdatePayment(_ context.Context, p engine.Payment) error {
	return tv.parent.updatePaymentLocked(p)
}

func (tv *txView) DeletePayment(_ context.Context, id engine.PaymentID) error {
	return tv.parent.deletePaymentLocked(id)
}

func (tv *txView) GetPayment(_ context.Context, id engine.PaymentID) (*engine.Payment, error) {
	p, ok := tv.parent.payments[id]
	if !ok {
		return nil, engine.ErrPaymentNotFound
	}
	cp := p
	return &cp, nil
}

func (tv *txView) PaymentsByCase(_ context.Context, number engine.CaseNumber) ([]engine.Payment, error) {
	return tv.parent.paymentsByCaseLocked(number)
}

func (tv *txView) SaveCompany(_ context.Context, co *engine.Company) error {
	cp := *co
	tv.parent.companies[co.ID] = &cp
	return nil
}

func (tv *txView) GetCompany(_ context.Context, id engine.CompanyID) (*engine.Company, error) {
	co, ok := tv.parent.companies[id]
	if !ok {
		return nil, engine.ErrCompanyNotFound
	}
	cp := *co
	return &cp, nil
}

func (tv *txView) ListCompanies(_ context.Context) ([]*engine.Company, error) {
	var result []*engine.Company
	for _, co := range tv.parent.companies {
		cp := *co
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (tv *txView) SaveScheme(_ context.Context, s *engine.CommissionScheme) error {
	cp := *s
	tv.parent.schemes[s.ID] = &cp
	return nil
}

func (tv *txView) DeleteScheme(_ context.Context, id engine.SchemeID) error {
	delete(tv.parent.schemes, id)
	return nil
}

func (tv *txView) SchemesByCompany(_ context.Context, id engine.CompanyID, category engine.CaseCategory) ([]*engine.CommissionScheme, error) {
	return tv.parent.schemesByCompanyLocked(id, category)
}

func (tv *txView) WithTx(_ context.Context, fn func(collections.Store) error) error {
	// Already inside a transaction; nested calls share it.
	return fn(tv)
}
