/*
store.go - Persistence interface for roster, menus, and the transaction log

PURPOSE:
  Defines the interface between the wallet engine and storage. State is
  process-scoped by contract - implementations exist so the engine can
  swap between a plain in-memory store and an in-memory SQLite database,
  not to survive restarts.

KEY METHODS:
  Students/Stalls:  Roster and catalog CRUD
  ApplyTransaction: The ONLY balance mutation - atomically adjusts one
                    student balance and appends one log record
  Delete*:          Cascading removal of a principal and its transactions

ATOMICITY CONTRACT:
  ApplyTransaction must apply the balance delta and the log append
  as one unit: either both land or neither does. The Service performs
  all precondition checks (sufficiency, existence) under its own mutex
  before calling it, so implementations never re-validate business
  rules - they only guarantee the write is not partially applied.

MUTATION VS HISTORY:
  The transaction log is append-only with one deliberate exception:
  removing a student or stall purges its transactions. This erases
  financial history and is preserved intentionally from the product's
  behavior; a stricter design would mark records deleted instead.
  See DESIGN.md.

IMPLEMENTATIONS:
  - ledger/store/memory.go: Map-based in-memory store
  - store/sqlite/sqlite.go: SQLite store, ":memory:" by default

SEE ALSO:
  - service.go: The only caller of the mutating methods
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Interface for wallet state persistence
// =============================================================================

// Store persists the roster, stall catalog, and transaction log.
// The Service serializes all mutating calls; implementations only need
// to make each individual call atomic.
type Store interface {
	// --- Students ---

	// SaveStudent inserts or replaces a student record.
	SaveStudent(ctx context.Context, s Student) error

	// GetStudent returns the student or nil if absent.
	GetStudent(ctx context.Context, id string) (*Student, error)

	// ListStudents returns all students in insertion order.
	ListStudents(ctx context.Context) ([]Student, error)

	// DeleteStudent removes the student and every transaction whose
	// StudentID matches. No-op if absent.
	DeleteStudent(ctx context.Context, id string) error

	// --- Stalls ---

	// SaveStall inserts or replaces a stall record including its menu.
	SaveStall(ctx context.Context, s Stall) error

	// GetStall returns the stall or nil if absent.
	GetStall(ctx context.Context, id string) (*Stall, error)

	// ListStalls returns all stalls in insertion order.
	ListStalls(ctx context.Context) ([]Stall, error)

	// DeleteStall removes the stall and every transaction whose
	// StallID matches. No-op if absent.
	DeleteStall(ctx context.Context, id string) error

	// --- Transactions ---

	// ApplyTransaction atomically adds delta to the student's balance
	// and appends tx to the log. Either both apply or neither does.
	// The caller has already validated the resulting balance.
	ApplyTransaction(ctx context.Context, studentID string, delta decimal.Decimal, tx Transaction) error

	// ListTransactions returns the log newest-first.
	ListTransactions(ctx context.Context) ([]Transaction, error)

	// ListTransactionsByStudent returns the student's log newest-first.
	ListTransactionsByStudent(ctx context.Context, studentID string) ([]Transaction, error)

	// --- Lifecycle ---

	// Reset clears all state. Used by scenario loading and tests.
	Reset(ctx context.Context) error
}
