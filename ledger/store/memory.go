// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/festpay/wallet-engine/ledger"
)

// =============================================================================
// MEMORY STORE - Map-based implementation
// =============================================================================

// Memory keeps all state in maps. Order of insertion is preserved for
// roster listings; the transaction log is kept newest-first.
type Memory struct {
	mu           sync.RWMutex
	students     map[string]ledger.Student
	stalls       map[string]ledger.Stall
	studentOrder []string
	stallOrder   []string
	transactions []ledger.Transaction // newest first
}

func NewMemory() *Memory {
	return &Memory{
		students: make(map[string]ledger.Student),
		stalls:   make(map[string]ledger.Stall),
	}
}

// --- Students ---

func (m *Memory) SaveStudent(_ context.Context, s ledger.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.students[s.ID]; !exists {
		m.studentOrder = append(m.studentOrder, s.ID)
	}
	m.students[s.ID] = s
	return nil
}

func (m *Memory) GetStudent(_ context.Context, id string) (*ledger.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.students[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) ListStudents(_ context.Context) ([]ledger.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Student, 0, len(m.studentOrder))
	for _, id := range m.studentOrder {
		result = append(result, m.students[id])
	}
	return result, nil
}

func (m *Memory) DeleteStudent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.students, id)
	m.studentOrder = removeID(m.studentOrder, id)
	m.transactions = filterTx(m.transactions, func(tx ledger.Transaction) bool {
		return tx.StudentID != id
	})
	return nil
}

// --- Stalls ---

func (m *Memory) SaveStall(_ context.Context, s ledger.Stall) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.stalls[s.ID]; !exists {
		m.stallOrder = append(m.stallOrder, s.ID)
	}
	s.Menu = append([]ledger.MenuItem{}, s.Menu...)
	m.stalls[s.ID] = s
	return nil
}

func (m *Memory) GetStall(_ context.Context, id string) (*ledger.Stall, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.stalls[id]
	if !ok {
		return nil, nil
	}
	s.Menu = append([]ledger.MenuItem{}, s.Menu...)
	return &s, nil
}

func (m *Memory) ListStalls(_ context.Context) ([]ledger.Stall, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Stall, 0, len(m.stallOrder))
	for _, id := range m.stallOrder {
		s := m.stalls[id]
		s.Menu = append([]ledger.MenuItem{}, s.Menu...)
		result = append(result, s)
	}
	return result, nil
}

func (m *Memory) DeleteStall(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.stalls, id)
	m.stallOrder = removeID(m.stallOrder, id)
	m.transactions = filterTx(m.transactions, func(tx ledger.Transaction) bool {
		return tx.StallID != id
	})
	return nil
}

// --- Transactions ---

// ApplyTransaction adjusts the balance and prepends the log record
// under one lock acquisition, so no reader ever sees one without the
// other.
func (m *Memory) ApplyTransaction(_ context.Context, studentID string, delta decimal.Decimal, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.students[studentID]
	if !ok {
		return ledger.ErrNotFound
	}
	s.Balance = s.Balance.Add(delta)
	m.students[studentID] = s

	m.transactions = append([]ledger.Transaction{copyTx(tx)}, m.transactions...)
	return nil
}

func (m *Memory) ListTransactions(_ context.Context) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Transaction, len(m.transactions))
	for i, tx := range m.transactions {
		result[i] = copyTx(tx)
	}
	return result, nil
}

func (m *Memory) ListTransactionsByStudent(_ context.Context, studentID string) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Transaction
	for _, tx := range m.transactions {
		if tx.StudentID == studentID {
			result = append(result, copyTx(tx))
		}
	}
	return result, nil
}

// --- Lifecycle ---

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.students = make(map[string]ledger.Student)
	m.stalls = make(map[string]ledger.Stall)
	m.studentOrder = nil
	m.stallOrder = nil
	m.transactions = nil
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func filterTx(txs []ledger.Transaction, keep func(ledger.Transaction) bool) []ledger.Transaction {
	var out []ledger.Transaction
	for _, tx := range txs {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// copyTx deep-copies the Items slice so callers cannot mutate history.
func copyTx(tx ledger.Transaction) ledger.Transaction {
	if tx.Items != nil {
		tx.Items = append([]ledger.PurchaseItem{}, tx.Items...)
	}
	return tx
}
