/*
Package ledger provides the core wallet engine for an event-fest
cashless payment system.

PURPOSE:
  This package owns all mutable domain state: the roster of students,
  the list of stalls and their menus, the append-only transaction log,
  and the single logged-in principal. Every balance-affecting operation
  (recharge, purchase) goes through the Service in service.go.

KEY CONCEPTS IN THIS FILE (types.go):
  - Role: The discriminant for the principal sum type
  - Principal: Admin, Student, or Stall (tagged union via interface)
  - MenuItem: A priced item sold by a stall
  - Transaction: An immutable record of one balance change
  - PurchaseItem: A value snapshot of a purchased menu item

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified once appended
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Snapshots: Transactions carry copies of names and prices at the
     time of the event, never live references - later menu edits or
     renames must not rewrite history
  4. Tagged union: All principal lookups switch on Role, never on
     concrete type identity

SEE ALSO:
  - service.go: The operations permitted to change state
  - store.go: Persistence interface
  - errors.go: Error taxonomy
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROLE - Principal discriminant
// =============================================================================

// Role identifies which variant of Principal an identifier refers to.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
	RoleStall   Role = "stall"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent || r == RoleStall
}

// =============================================================================
// PRINCIPAL - Tagged union over {Admin, Student, Stall}
// =============================================================================

// Principal is an authenticated actor. The concrete types are Admin,
// Student, and Stall; code switches on PrincipalRole(), never on the
// concrete type.
type Principal interface {
	PrincipalID() string
	PrincipalName() string
	PrincipalRole() Role
}

// Admin is the singleton operator account. It is created once from
// configuration at process start and is immutable thereafter.
type Admin struct {
	ID   string
	Name string
}

func (a Admin) PrincipalID() string   { return a.ID }
func (a Admin) PrincipalName() string { return a.Name }
func (a Admin) PrincipalRole() Role   { return RoleAdmin }

// Student holds a wallet balance.
//
// INVARIANT: Balance >= 0 at all times. Any operation that would drive
// it negative fails without applying.
type Student struct {
	ID      string
	Name    string
	Class   string
	Balance decimal.Decimal
}

func (s Student) PrincipalID() string   { return s.ID }
func (s Student) PrincipalName() string { return s.Name }
func (s Student) PrincipalRole() Role   { return RoleStudent }

// Stall sells menu items against student balances. Menu order reflects
// insertion order; it is display-relevant only.
type Stall struct {
	ID   string
	Name string
	Menu []MenuItem
}

func (s Stall) PrincipalID() string   { return s.ID }
func (s Stall) PrincipalName() string { return s.Name }
func (s Stall) PrincipalRole() Role   { return RoleStall }

// MenuItem is one sellable item. ID is unique within its stall.
//
// INVARIANT: Price > 0, enforced at menu replacement.
type MenuItem struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// =============================================================================
// TRANSACTION - Immutable record of one balance change
// =============================================================================

type TransactionType string

const (
	TxRecharge TransactionType = "recharge" // Admin credits a student wallet
	TxPurchase TransactionType = "purchase" // Stall debits a student wallet
)

// Transaction records a single balance-affecting event. StudentName,
// StallName, and Items are denormalized value copies taken at
// transaction time so the log survives later edits and deletions.
type Transaction struct {
	ID        string
	Type      TransactionType
	Amount    decimal.Decimal
	Timestamp time.Time

	StudentID   string
	StudentName string

	// Recharge only.
	AdminID string

	// Purchase only.
	StallID   string
	StallName string
	Items     []PurchaseItem
}

// PurchaseItem is a snapshot of one purchased menu item. Price is the
// unit price at the time of purchase.
type PurchaseItem struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// Total returns price * quantity for this line.
func (p PurchaseItem) Total() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Quantity)))
}
