/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the ledger's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts arrive as JSON numbers and are decoded straight into
  decimal.Decimal, so precision survives the trip. Responses render
  amounts as float64 for display.

VALIDATION:
  Validation is done in handlers and the ledger service, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/festpay/wallet-engine/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// LoginRequest is a credential login. Password is only meaningful for
// the admin role.
type LoginRequest struct {
	Role     string `json:"role"`
	ID       string `json:"id"`
	Password string `json:"password,omitempty"`
}

// LoginQRRequest carries a scanned QR payload.
type LoginQRRequest struct {
	QRData string `json:"qr_data"`
}

// RechargeRequest credits a student wallet.
type RechargeRequest struct {
	StudentID string          `json:"student_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// PurchaseRequest debits a student wallet for a cart of menu items.
// Cart maps menu item id to requested quantity.
type PurchaseRequest struct {
	StudentID string         `json:"student_id"`
	StallID   string         `json:"stall_id"`
	Cart      map[string]int `json:"cart"`
}

// CreateStudentRequest adds a student to the roster.
type CreateStudentRequest struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

// CreateStallRequest adds a stall.
type CreateStallRequest struct {
	Name string `json:"name"`
}

// MenuItemInput is one item in a menu replacement. ID may be empty for
// new items.
type MenuItemInput struct {
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// SetMenuRequest replaces a stall's menu wholesale.
type SetMenuRequest struct {
	Items []MenuItemInput `json:"items"`
}

// LookupRequest resolves a scanned student token without logging in.
type LookupRequest struct {
	QRData string `json:"qr_data"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ErrorResponse is the failure shape for every endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ResultDTO is the success shape for mutations without a richer body.
type ResultDTO struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SessionDTO describes the logged-in principal.
type SessionDTO struct {
	LoggedIn bool   `json:"logged_in"`
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
}

// StudentDTO represents a student in API responses. Token is the QR
// payload for the student's printable pass.
type StudentDTO struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Class   string  `json:"class"`
	Balance float64 `json:"balance"`
	Token   string  `json:"token,omitempty"`
}

// StallDTO represents a stall and its menu.
type StallDTO struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Menu  []MenuItemDTO `json:"menu"`
	Token string        `json:"token,omitempty"`
}

// MenuItemDTO represents one sellable item.
type MenuItemDTO struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// TransactionDTO represents one log entry.
type TransactionDTO struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Amount      float64           `json:"amount"`
	Timestamp   string            `json:"timestamp"`
	StudentID   string            `json:"student_id"`
	StudentName string            `json:"student_name"`
	AdminID     string            `json:"admin_id,omitempty"`
	StallID     string            `json:"stall_id,omitempty"`
	StallName   string            `json:"stall_name,omitempty"`
	Items       []PurchaseItemDTO `json:"items,omitempty"`
}

// PurchaseItemDTO is a purchased-item snapshot.
type PurchaseItemDTO struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// RechargeResponseDTO reports the credited balance.
type RechargeResponseDTO struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Balance float64 `json:"balance"`
}

// PurchaseResponseDTO reports the charged total and remaining balance.
type PurchaseResponseDTO struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Total   float64 `json:"total"`
	Balance float64 `json:"balance"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toStudentDTO(s ledger.Student, tokenPayload string) StudentDTO {
	balance, _ := s.Balance.Float64()
	return StudentDTO{
		ID:      s.ID,
		Name:    s.Name,
		Class:   s.Class,
		Balance: balance,
		Token:   tokenPayload,
	}
}

func toStallDTO(s ledger.Stall, tokenPayload string) StallDTO {
	menu := make([]MenuItemDTO, len(s.Menu))
	for i, m := range s.Menu {
		price, _ := m.Price.Float64()
		menu[i] = MenuItemDTO{ID: m.ID, Name: m.Name, Price: price}
	}
	return StallDTO{ID: s.ID, Name: s.Name, Menu: menu, Token: tokenPayload}
}

func toTransactionDTO(t ledger.Transaction) TransactionDTO {
	amount, _ := t.Amount.Float64()
	dto := TransactionDTO{
		ID:          t.ID,
		Type:        string(t.Type),
		Amount:      amount,
		Timestamp:   t.Timestamp.Format(time.RFC3339),
		StudentID:   t.StudentID,
		StudentName: t.StudentName,
		AdminID:     t.AdminID,
		StallID:     t.StallID,
		StallName:   t.StallName,
	}
	if t.Items != nil {
		dto.Items = make([]PurchaseItemDTO, len(t.Items))
		for i, it := range t.Items {
			price, _ := it.Price.Float64()
			dto.Items[i] = PurchaseItemDTO{Name: it.Name, Price: price, Quantity: it.Quantity}
		}
	}
	return dto
}

func toSessionDTO(p ledger.Principal) SessionDTO {
	if p == nil {
		return SessionDTO{LoggedIn: false}
	}
	return SessionDTO{
		LoggedIn: true,
		ID:       p.PrincipalID(),
		Name:     p.PrincipalName(),
		Role:     string(p.PrincipalRole()),
	}
}
