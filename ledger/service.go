/*
service.go - The ledger service: the only code allowed to mutate wallet state

PURPOSE:
  Owns the session, the roster, the stall catalog, and the transaction
  log. Authenticates principals (by credential or by QR token payload)
  and executes the two money-moving operations, recharge and purchase.

CONCURRENCY:
  One mutex guards the whole ledger. Every mutating operation runs
  check-then-write under that single lock, so a purchase's sufficiency
  check can never interleave with a concurrent recharge or purchase on
  the same student. Per-student locking would not be enough: roster
  deletion and login touch cross-cutting state.

FAILURE CONTRACT:
  Preconditions are checked in a fixed order and the first violation
  wins. On failure nothing is written - no partial effects ever leak.
  All expected failures are sentinel errors from errors.go; the process
  never panics on business-rule violations.

SESSION MODEL:
  At most one logged-in principal. This is a single-operator kiosk
  model: the session is engine state, not per-connection state.

SEE ALSO:
  - types.go: Domain types
  - store.go: Persistence contract
  - token package: QR token codec consumed via TokenDecoder
*/
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// TOKEN DECODER - Collaborator interface
// =============================================================================

// TokenDecoder turns a scanned QR payload into an identity claim.
// Implementations return ErrMalformedToken when the payload cannot be
// parsed or is missing a field. Admin claims are never valid.
type TokenDecoder interface {
	Decode(payload string) (id string, role Role, err error)
}

// =============================================================================
// SERVICE
// =============================================================================

// Service is the ledger service. Construct with New; the zero value is
// not usable.
type Service struct {
	mu sync.RWMutex

	store      Store
	decoder    TokenDecoder
	admin      Admin
	passphrase string

	session Principal // nil when nobody is logged in
}

// New creates a ledger service. The admin principal and its plaintext
// passphrase come from configuration; the admin is immutable for the
// process lifetime.
func New(store Store, decoder TokenDecoder, admin Admin, passphrase string) *Service {
	return &Service{
		store:      store,
		decoder:    decoder,
		admin:      admin,
		passphrase: passphrase,
	}
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

// LoginByCredential authenticates a principal and makes it the session.
// Admin requires the configured id and passphrase; students and stalls
// authenticate by existence alone (possession of the id is the claim).
func (s *Service) LoginByCredential(ctx context.Context, role Role, id, secret string) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch role {
	case RoleAdmin:
		if id != s.admin.ID || secret != s.passphrase {
			return nil, ErrInvalidCredentials
		}
		s.session = s.admin
		return s.admin, nil

	case RoleStudent:
		student, err := s.store.GetStudent(ctx, id)
		if err != nil {
			return nil, err
		}
		if student == nil {
			return nil, ErrNotFound
		}
		s.session = *student
		return *student, nil

	case RoleStall:
		stall, err := s.store.GetStall(ctx, id)
		if err != nil {
			return nil, err
		}
		if stall == nil {
			return nil, ErrNotFound
		}
		s.session = *stall
		return *stall, nil

	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrNotFound, role)
	}
}

// LoginByToken authenticates from a scanned QR payload. Admin is never
// reachable this way: the decoder rejects admin claims as malformed.
func (s *Service) LoginByToken(ctx context.Context, payload string) (Principal, error) {
	id, role, err := s.decoder.Decode(payload)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch role {
	case RoleStudent:
		student, err := s.store.GetStudent(ctx, id)
		if err != nil {
			return nil, err
		}
		if student == nil {
			return nil, ErrNotFound
		}
		s.session = *student
		return *student, nil

	case RoleStall:
		stall, err := s.store.GetStall(ctx, id)
		if err != nil {
			return nil, err
		}
		if stall == nil {
			return nil, ErrNotFound
		}
		s.session = *stall
		return *stall, nil

	default:
		return nil, ErrMalformedToken
	}
}

// Logout clears the session. It cannot fail.
func (s *Service) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
}

// =============================================================================
// MONEY MOVEMENT
// =============================================================================

// Recharge credits a student's balance. Only the admin session may
// recharge. Returns the updated balance.
//
// Precondition order: session is admin, amount > 0, student exists.
func (s *Service) Recharge(ctx context.Context, studentID string, amount decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.session.PrincipalRole() != RoleAdmin {
		return decimal.Zero, fmt.Errorf("%w: only admins can recharge accounts", ErrUnauthorized)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: recharge amount must be positive", ErrInvalidAmount)
	}

	student, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return decimal.Zero, err
	}
	if student == nil {
		return decimal.Zero, fmt.Errorf("%w: student %s", ErrNotFound, studentID)
	}

	tx := Transaction{
		ID:          newID("trans"),
		Type:        TxRecharge,
		Amount:      amount,
		Timestamp:   time.Now().UTC(),
		StudentID:   student.ID,
		StudentName: student.Name,
		AdminID:     s.session.PrincipalID(),
	}
	if err := s.store.ApplyTransaction(ctx, student.ID, amount, tx); err != nil {
		return decimal.Zero, err
	}
	return student.Balance.Add(amount), nil
}

// Purchase debits a student's balance for a cart of menu items. Only
// the stall being charged against may execute it. Non-positive
// quantities and unknown item ids are skipped, not errors. Returns the
// updated balance and the computed total.
//
// Precondition order: session is this stall, stall exists, total > 0,
// student exists, balance covers total.
func (s *Service) Purchase(ctx context.Context, studentID, stallID string, cart map[string]int) (balance, total decimal.Decimal, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.session.PrincipalRole() != RoleStall || s.session.PrincipalID() != stallID {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: unauthorized transaction", ErrUnauthorized)
	}

	stall, err := s.store.GetStall(ctx, stallID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if stall == nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: stall %s", ErrNotFound, stallID)
	}

	// Menu order determines item order in the snapshot, so results are
	// stable regardless of map iteration order.
	var items []PurchaseItem
	total = decimal.Zero
	for _, m := range stall.Menu {
		qty, ok := cart[m.ID]
		if !ok || qty <= 0 {
			continue
		}
		items = append(items, PurchaseItem{Name: m.Name, Price: m.Price, Quantity: qty})
		total = total.Add(m.Price.Mul(decimal.NewFromInt(int64(qty))))
	}
	if !total.IsPositive() {
		return decimal.Zero, decimal.Zero, ErrEmptyCart
	}

	student, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if student == nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: student %s", ErrNotFound, studentID)
	}
	if student.Balance.LessThan(total) {
		return decimal.Zero, decimal.Zero, &InsufficientBalanceError{
			StudentID: student.ID,
			Balance:   student.Balance,
			Requested: total,
		}
	}

	tx := Transaction{
		ID:          newID("trans"),
		Type:        TxPurchase,
		Amount:      total,
		Timestamp:   time.Now().UTC(),
		StudentID:   student.ID,
		StudentName: student.Name,
		StallID:     stall.ID,
		StallName:   stall.Name,
		Items:       items,
	}
	if err := s.store.ApplyTransaction(ctx, student.ID, total.Neg(), tx); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return student.Balance.Sub(total), total, nil
}

// =============================================================================
// ROSTER AND CATALOG MANAGEMENT
// =============================================================================

// AddStudent creates a student with a zero balance and a fresh id.
func (s *Service) AddStudent(ctx context.Context, name, class string) (Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	student := Student{
		ID:      newID("user"),
		Name:    name,
		Class:   class,
		Balance: decimal.Zero,
	}
	if err := s.store.SaveStudent(ctx, student); err != nil {
		return Student{}, err
	}
	return student, nil
}

// RemoveStudent deletes the student and purges every transaction that
// references it, recharges and purchases alike. This destroys history
// and is not recoverable.
func (s *Service) RemoveStudent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	student, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return err
	}
	if student == nil {
		return fmt.Errorf("%w: student %s", ErrNotFound, id)
	}
	if err := s.store.DeleteStudent(ctx, id); err != nil {
		return err
	}
	// A deleted principal cannot stay logged in.
	if s.session != nil && s.session.PrincipalRole() == RoleStudent && s.session.PrincipalID() == id {
		s.session = nil
	}
	return nil
}

// AddStall creates a stall with an empty menu and a fresh id.
func (s *Service) AddStall(ctx context.Context, name string) (Stall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stall := Stall{
		ID:   newID("stall"),
		Name: name,
		Menu: []MenuItem{},
	}
	if err := s.store.SaveStall(ctx, stall); err != nil {
		return Stall{}, err
	}
	return stall, nil
}

// RemoveStall deletes the stall and purges every transaction that
// references it.
func (s *Service) RemoveStall(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stall, err := s.store.GetStall(ctx, id)
	if err != nil {
		return err
	}
	if stall == nil {
		return fmt.Errorf("%w: stall %s", ErrNotFound, id)
	}
	if err := s.store.DeleteStall(ctx, id); err != nil {
		return err
	}
	if s.session != nil && s.session.PrincipalRole() == RoleStall && s.session.PrincipalID() == id {
		s.session = nil
	}
	return nil
}

// SetMenu replaces the stall's menu wholesale. Every item needs a
// positive price; one bad item rejects the whole replacement. Items
// without an id get a fresh one.
func (s *Service) SetMenu(ctx context.Context, stallID string, items []MenuItem) (Stall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stall, err := s.store.GetStall(ctx, stallID)
	if err != nil {
		return Stall{}, err
	}
	if stall == nil {
		return Stall{}, fmt.Errorf("%w: stall %s", ErrNotFound, stallID)
	}

	menu := make([]MenuItem, len(items))
	for i, item := range items {
		if !item.Price.IsPositive() {
			return Stall{}, fmt.Errorf("%w: %q must have a positive price", ErrInvalidMenuItem, item.Name)
		}
		if item.ID == "" {
			item.ID = newID("item")
		}
		menu[i] = item
	}

	stall.Menu = menu
	if err := s.store.SaveStall(ctx, *stall); err != nil {
		return Stall{}, err
	}
	return *stall, nil
}

// =============================================================================
// READ ACCESSORS
// =============================================================================

// Session returns the logged-in principal, or nil.
func (s *Service) Session() Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Admin returns the configured admin principal.
func (s *Service) Admin() Admin {
	return s.admin
}

// Students returns the roster in insertion order.
func (s *Service) Students(ctx context.Context) ([]Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.ListStudents(ctx)
}

// Student returns one student, or ErrNotFound.
func (s *Service) Student(ctx context.Context, id string) (Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	student, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if student == nil {
		return Student{}, fmt.Errorf("%w: student %s", ErrNotFound, id)
	}
	return *student, nil
}

// Stalls returns all stalls in insertion order.
func (s *Service) Stalls(ctx context.Context) ([]Stall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.ListStalls(ctx)
}

// Stall returns one stall, or ErrNotFound.
func (s *Service) Stall(ctx context.Context, id string) (Stall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stall, err := s.store.GetStall(ctx, id)
	if err != nil {
		return Stall{}, err
	}
	if stall == nil {
		return Stall{}, fmt.Errorf("%w: stall %s", ErrNotFound, id)
	}
	return *stall, nil
}

// Transactions returns the full log, newest first.
func (s *Service) Transactions(ctx context.Context) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.ListTransactions(ctx)
}

// TransactionsByStudent returns one student's history, newest first.
func (s *Service) TransactionsByStudent(ctx context.Context, studentID string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.ListTransactionsByStudent(ctx, studentID)
}

// =============================================================================
// ID GENERATION
// =============================================================================

// newID returns a process-unique opaque id. The prefix aids debugging;
// only uniqueness is contractual.
func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
