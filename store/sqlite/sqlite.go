/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Implements the wallet storage contract on SQLite. The engine's state
  is process-scoped by product contract, so the default DSN is
  ":memory:"; a file path works too and behaves exactly like the
  in-memory database plus durability, which the product does not
  promise.

ATOMICITY:
  ApplyTransaction runs the balance update and the log insert inside
  one database transaction. Either both land or neither does.

KEY TABLES:
  students:     Roster with balances (balance stored as decimal text)
  stalls:       Stall records with the menu serialized as JSON
  transactions: The log; purchase item snapshots serialized as JSON

HISTORY PURGE:
  DeleteStudent/DeleteStall also delete the matching transactions.
  This mirrors the product's destructive roster removal; see DESIGN.md
  for the audit-trail implication.

CONCURRENCY:
  Uses sync.RWMutex around the connection. The ledger service already
  serializes mutations; the lock here protects direct store use in
  tests and scenario loading.

USAGE:
  store, err := sqlite.New(":memory:")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definition
  - ledger/store/memory.go: Map-based implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/festpay/wallet-engine/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store. Use ":memory:" for a process-scoped
// database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A ":memory:" DSN gets a fresh database per connection; cap the
	// pool at one so every query sees the same state.
	db.SetMaxOpenConns(1)

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
	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		class TEXT NOT NULL,
		balance TEXT NOT NULL,
		seq INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stalls (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		menu_json TEXT NOT NULL,
		seq INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		student_id TEXT NOT NULL,
		student_name TEXT NOT NULL,
		admin_id TEXT,
		stall_id TEXT,
		stall_name TEXT,
		items_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_student
		ON transactions(student_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_stall
		ON transactions(stall_id) WHERE stall_id IS NOT NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// nextSeq returns an insertion-order counter for roster listings.
func (s *Store) nextSeq(ctx context.Context, table string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM "+table).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq.Int64 + 1, nil
}

// =============================================================================
// STUDENTS
// =============================================================================

func (s *Store) SaveStudent(ctx context.Context, st ledger.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.nextSeq(ctx, "students")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO students (id, name, class, balance, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			class = excluded.class,
			balance = excluded.balance`,
		st.ID, st.Name, st.Class, st.Balance.String(), seq)
	return err
}

func (s *Store) GetStudent(ctx context.Context, id string) (*ledger.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, class, balance FROM students WHERE id = ?", id)
	st, err := scanStudent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) ListStudents(ctx context.Context) ([]ledger.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, class, balance FROM students ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	students := []ledger.Student{}
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, *st)
	}
	return students, rows.Err()
}

func (s *Store) DeleteStudent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM students WHERE id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE student_id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(r rowScanner) (*ledger.Student, error) {
	var st ledger.Student
	var balance string
	if err := r.Scan(&st.ID, &st.Name, &st.Class, &balance); err != nil {
		return nil, err
	}
	b, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("corrupt balance for student %s: %w", st.ID, err)
	}
	st.Balance = b
	return &st, nil
}

// =============================================================================
// STALLS
// =============================================================================

// menuItemJSON is the storage shape for a menu item. Prices travel as
// decimal strings.
type menuItemJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

func (s *Store) SaveStall(ctx context.Context, st ledger.Stall) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	menu := make([]menuItemJSON, len(st.Menu))
	for i, m := range st.Menu {
		menu[i] = menuItemJSON{ID: m.ID, Name: m.Name, Price: m.Price.String()}
	}
	menuJSON, err := json.Marshal(menu)
	if err != nil {
		return err
	}

	seq, err := s.nextSeq(ctx, "stalls")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stalls (id, name, menu_json, seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			menu_json = excluded.menu_json`,
		st.ID, st.Name, string(menuJSON), seq)
	return err
}

func (s *Store) GetStall(ctx context.Context, id string) (*ledger.Stall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, menu_json FROM stalls WHERE id = ?", id)
	st, err := scanStall(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) ListStalls(ctx context.Context) ([]ledger.Stall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, menu_json FROM stalls ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stalls := []ledger.Stall{}
	for rows.Next() {
		st, err := scanStall(rows)
		if err != nil {
			return nil, err
		}
		stalls = append(stalls, *st)
	}
	return stalls, rows.Err()
}

func (s *Store) DeleteStall(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM stalls WHERE id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE stall_id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

func scanStall(r rowScanner) (*ledger.Stall, error) {
	var st ledger.Stall
	var menuJSON string
	if err := r.Scan(&st.ID, &st.Name, &menuJSON); err != nil {
		return nil, err
	}

	var menu []menuItemJSON
	if err := json.Unmarshal([]byte(menuJSON), &menu); err != nil {
		return nil, fmt.Errorf("corrupt menu for stall %s: %w", st.ID, err)
	}
	st.Menu = make([]ledger.MenuItem, len(menu))
	for i, m := range menu {
		price, err := decimal.NewFromString(m.Price)
		if err != nil {
			return nil, fmt.Errorf("corrupt price for item %s: %w", m.ID, err)
		}
		st.Menu[i] = ledger.MenuItem{ID: m.ID, Name: m.Name, Price: price}
	}
	return &st, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type purchaseItemJSON struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

// ApplyTransaction applies the balance delta and appends the log
// record in one database transaction.
func (s *Store) ApplyTransaction(ctx context.Context, studentID string, delta decimal.Decimal, t ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	var balance string
	err = dbTx.QueryRowContext(ctx,
		"SELECT balance FROM students WHERE id = ?", studentID).Scan(&balance)
	if err == sql.ErrNoRows {
		return ledger.ErrNotFound
	}
	if err != nil {
		return err
	}
	current, err := decimal.NewFromString(balance)
	if err != nil {
		return fmt.Errorf("corrupt balance for student %s: %w", studentID, err)
	}

	_, err = dbTx.ExecContext(ctx,
		"UPDATE students SET balance = ? WHERE id = ?",
		current.Add(delta).String(), studentID)
	if err != nil {
		return err
	}

	var itemsJSON sql.NullString
	if t.Items != nil {
		items := make([]purchaseItemJSON, len(t.Items))
		for i, it := range t.Items {
			items[i] = purchaseItemJSON{Name: it.Name, Price: it.Price.String(), Quantity: it.Quantity}
		}
		raw, err := json.Marshal(items)
		if err != nil {
			return err
		}
		itemsJSON = sql.NullString{String: string(raw), Valid: true}
	}

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO transactions
			(id, tx_type, amount, timestamp, student_id, student_name,
			 admin_id, stall_id, stall_name, items_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Type), t.Amount.String(), t.Timestamp.Format(time.RFC3339Nano),
		t.StudentID, t.StudentName,
		nullable(t.AdminID), nullable(t.StallID), nullable(t.StallName), itemsJSON)
	if err != nil {
		return err
	}
	return dbTx.Commit()
}

func (s *Store) ListTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	return s.queryTransactions(ctx,
		selectTransactions+" ORDER BY seq DESC")
}

func (s *Store) ListTransactionsByStudent(ctx context.Context, studentID string) ([]ledger.Transaction, error) {
	return s.queryTransactions(ctx,
		selectTransactions+" WHERE student_id = ? ORDER BY seq DESC", studentID)
}

const selectTransactions = `
	SELECT id, tx_type, amount, timestamp, student_id, student_name,
	       admin_id, stall_id, stall_name, items_json
	FROM transactions`

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := []ledger.Transaction{}
	for rows.Next() {
		var t ledger.Transaction
		var txType, amount, timestamp string
		var adminID, stallID, stallName, itemsJSON sql.NullString
		if err := rows.Scan(&t.ID, &txType, &amount, &timestamp,
			&t.StudentID, &t.StudentName, &adminID, &stallID, &stallName, &itemsJSON); err != nil {
			return nil, err
		}

		t.Type = ledger.TransactionType(txType)
		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount for transaction %s: %w", t.ID, err)
		}
		t.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("corrupt timestamp for transaction %s: %w", t.ID, err)
		}
		t.AdminID = adminID.String
		t.StallID = stallID.String
		t.StallName = stallName.String

		if itemsJSON.Valid {
			var items []purchaseItemJSON
			if err := json.Unmarshal([]byte(itemsJSON.String), &items); err != nil {
				return nil, fmt.Errorf("corrupt items for transaction %s: %w", t.ID, err)
			}
			t.Items = make([]ledger.PurchaseItem, len(items))
			for i, it := range items {
				price, err := decimal.NewFromString(it.Price)
				if err != nil {
					return nil, fmt.Errorf("corrupt item price for transaction %s: %w", t.ID, err)
				}
				t.Items[i] = ledger.PurchaseItem{Name: it.Name, Price: price, Quantity: it.Quantity}
			}
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Reset clears all tables. Used by scenario loading and tests.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"transactions", "students", "stalls"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
