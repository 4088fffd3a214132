/*
handlers.go - HTTP API handlers for the wallet engine

PURPOSE:
  Exposes the ledger service via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Session:
    POST   /api/session/login     Credential login (admin/student/stall)
    POST   /api/session/login-qr  QR token login (student/stall only)
    POST   /api/session/logout    Clear the session
    GET    /api/session           Current principal

  Students:
    GET    /api/students                    Roster
    POST   /api/students                    Add student
    GET    /api/students/{id}               One student with balance
    DELETE /api/students/{id}               Remove student + history
    GET    /api/students/{id}/pass          Printable pass QR (PNG)
    GET    /api/students/{id}/transactions  Wallet history
    POST   /api/students/lookup             Resolve a scanned student token

  Stalls:
    GET    /api/stalls             All stalls with menus
    POST   /api/stalls             Add stall
    GET    /api/stalls/{id}        One stall
    DELETE /api/stalls/{id}        Remove stall + its transactions
    PUT    /api/stalls/{id}/menu   Replace menu wholesale
    GET    /api/stalls/{id}/pass   Printable pass QR (PNG)

  Money:
    POST   /api/recharge           Admin credits a student
    POST   /api/purchase           Stall charges a student
    GET    /api/transactions       Full log, newest first

  Scenarios:
    GET    /api/scenarios          List demo scenarios
    POST   /api/scenarios/load     Load a demo scenario
    POST   /api/scenarios/reset    Wipe all state

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, malformed tokens, invalid input
  - 401: Unauthorized operation or bad credentials
  - 404: Student or stall not found
  - 409: Insufficient balance
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/festpay/wallet-engine/ledger"
	"github.com/festpay/wallet-engine/token"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger *ledger.Service
	Store  ledger.Store

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler around the ledger service. The
// store is used directly only by scenario loading.
func NewHandler(svc *ledger.Service, store ledger.Store) *Handler {
	return &Handler{Ledger: svc, Store: store}
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// Login authenticates by credential and sets the session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	role := ledger.Role(req.Role)
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown role", nil)
		return
	}

	principal, err := h.Ledger.LoginByCredential(r.Context(), role, req.ID, req.Password)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials for admin.", nil)
			return
		}
		if ledger.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "User or stall not found.", nil)
			return
		}
		writeLedgerError(w, "Login failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(principal))
}

// LoginQR authenticates from a scanned QR payload.
func (h *Handler) LoginQR(w http.ResponseWriter, r *http.Request) {
	var req LoginQRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	principal, err := h.Ledger.LoginByToken(r.Context(), req.QRData)
	if err != nil {
		if errors.Is(err, ledger.ErrMalformedToken) {
			writeError(w, http.StatusBadRequest, "Invalid QR code format. Please scan again.", err)
			return
		}
		if ledger.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "User or stall for this QR code not found.", nil)
			return
		}
		writeLedgerError(w, "Login failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(principal))
}

// Logout clears the session. Always succeeds.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Ledger.Logout()
	writeJSON(w, http.StatusOK, ResultDTO{Success: true})
}

// GetSession returns the current principal.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSessionDTO(h.Ledger.Session()))
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// ListStudents returns the roster.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.Ledger.Students(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list students", err)
		return
	}

	dtos := make([]StudentDTO, len(students))
	for i, s := range students {
		dtos[i] = toStudentDTO(s, studentToken(s.ID))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateStudent adds a student with a zero balance.
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Student name is required", nil)
		return
	}

	student, err := h.Ledger.AddStudent(r.Context(), req.Name, req.Class)
	if err != nil {
		writeLedgerError(w, "Failed to add student", err)
		return
	}
	writeJSON(w, http.StatusCreated, toStudentDTO(student, studentToken(student.ID)))
}

// GetStudent returns one student with its live balance.
func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	student, err := h.Ledger.Student(r.Context(), id)
	if err != nil {
		writeLedgerError(w, "Student not found.", err)
		return
	}
	writeJSON(w, http.StatusOK, toStudentDTO(student, studentToken(student.ID)))
}

// DeleteStudent removes the student and purges its transactions.
func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Ledger.RemoveStudent(r.Context(), id); err != nil {
		writeLedgerError(w, "Failed to remove student", err)
		return
	}
	writeJSON(w, http.StatusOK, ResultDTO{Success: true, Message: "Student removed."})
}

// GetStudentPass renders the printable entry-pass QR code.
func (h *Handler) GetStudentPass(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// 404 for unknown students rather than minting passes blindly.
	if _, err := h.Ledger.Student(r.Context(), id); err != nil {
		writeLedgerError(w, "Student not found.", err)
		return
	}

	png, err := token.PassPNG(id, ledger.RoleStudent, token.DefaultPassSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render pass", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// GetStudentTransactions returns one student's wallet history.
func (h *Handler) GetStudentTransactions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.Ledger.Student(r.Context(), id); err != nil {
		writeLedgerError(w, "Student not found.", err)
		return
	}

	txs, err := h.Ledger.TransactionsByStudent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// LookupStudent resolves a scanned student token to a roster entry.
// Used by the stall checkout flow; does not touch the session.
func (h *Handler) LookupStudent(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id, role, err := token.Codec{}.Decode(req.QRData)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid QR code format. Please scan again.", err)
		return
	}
	if role != ledger.RoleStudent {
		writeError(w, http.StatusBadRequest, "Not a student pass", nil)
		return
	}

	student, err := h.Ledger.Student(r.Context(), id)
	if err != nil {
		writeLedgerError(w, "Student not found.", err)
		return
	}
	writeJSON(w, http.StatusOK, toStudentDTO(student, ""))
}

// =============================================================================
// STALL HANDLERS
// =============================================================================

// ListStalls returns all stalls with their menus.
func (h *Handler) ListStalls(w http.ResponseWriter, r *http.Request) {
	stalls, err := h.Ledger.Stalls(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list stalls", err)
		return
	}

	dtos := make([]StallDTO, len(stalls))
	for i, s := range stalls {
		dtos[i] = toStallDTO(s, stallToken(s.ID))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateStall adds a stall with an empty menu.
func (h *Handler) CreateStall(w http.ResponseWriter, r *http.Request) {
	var req CreateStallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Stall name is required", nil)
		return
	}

	stall, err := h.Ledger.AddStall(r.Context(), req.Name)
	if err != nil {
		writeLedgerError(w, "Failed to add stall", err)
		return
	}
	writeJSON(w, http.StatusCreated, toStallDTO(stall, stallToken(stall.ID)))
}

// GetStall returns one stall.
func (h *Handler) GetStall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stall, err := h.Ledger.Stall(r.Context(), id)
	if err != nil {
		writeLedgerError(w, "Stall not found.", err)
		return
	}
	writeJSON(w, http.StatusOK, toStallDTO(stall, stallToken(stall.ID)))
}

// DeleteStall removes the stall and purges its transactions.
func (h *Handler) DeleteStall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Ledger.RemoveStall(r.Context(), id); err != nil {
		writeLedgerError(w, "Failed to remove stall", err)
		return
	}
	writeJSON(w, http.StatusOK, ResultDTO{Success: true, Message: "Stall removed."})
}

// SetMenu replaces the stall's menu wholesale.
func (h *Handler) SetMenu(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SetMenuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	items := make([]ledger.MenuItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = ledger.MenuItem{ID: it.ID, Name: it.Name, Price: it.Price}
	}

	stall, err := h.Ledger.SetMenu(r.Context(), id, items)
	if err != nil {
		writeLedgerError(w, "Failed to update menu", err)
		return
	}
	writeJSON(w, http.StatusOK, toStallDTO(stall, ""))
}

// GetStallPass renders the stall's printable entry-pass QR code.
func (h *Handler) GetStallPass(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.Ledger.Stall(r.Context(), id); err != nil {
		writeLedgerError(w, "Stall not found.", err)
		return
	}

	png, err := token.PassPNG(id, ledger.RoleStall, token.DefaultPassSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render pass", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// =============================================================================
// MONEY HANDLERS
// =============================================================================

// Recharge credits a student wallet. Admin session required.
func (h *Handler) Recharge(w http.ResponseWriter, r *http.Request) {
	var req RechargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	balance, err := h.Ledger.Recharge(r.Context(), req.StudentID, req.Amount)
	if err != nil {
		writeLedgerError(w, "Recharge failed", err)
		return
	}

	b, _ := balance.Float64()
	writeJSON(w, http.StatusOK, RechargeResponseDTO{
		Success: true,
		Message: "Recharge successful.",
		Balance: b,
	})
}

// Purchase charges a student wallet for a cart. Stall session required.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	balance, total, err := h.Ledger.Purchase(r.Context(), req.StudentID, req.StallID, req.Cart)
	if err != nil {
		writeLedgerError(w, "Purchase failed", err)
		return
	}

	b, _ := balance.Float64()
	t, _ := total.Float64()
	writeJSON(w, http.StatusOK, PurchaseResponseDTO{
		Success: true,
		Message: "Purchase successful!",
		Total:   t,
		Balance: b,
	})
}

// ListTransactions returns the log newest-first. Optional student_id
// and stall_id query parameters filter the view.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Ledger.Transactions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}

	studentID := r.URL.Query().Get("student_id")
	stallID := r.URL.Query().Get("stall_id")
	if studentID != "" || stallID != "" {
		filtered := txs[:0]
		for _, tx := range txs {
			if studentID != "" && tx.StudentID != studentID {
				continue
			}
			if stallID != "" && tx.StallID != stallID {
				continue
			}
			filtered = append(filtered, tx)
		}
		txs = filtered
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError maps ledger error kinds to HTTP statuses. Order
// matters: insufficient balance is also a client error, but deserves
// its own status.
func writeLedgerError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsUnauthorized(err):
		writeError(w, http.StatusUnauthorized, message, err)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, "Insufficient balance.", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// Token payloads for roster DTOs. Encoding a known-good role cannot
// fail, so errors are dropped.
func studentToken(id string) string {
	payload, _ := token.Codec{}.Encode(id, ledger.RoleStudent)
	return payload
}

func stallToken(id string) string {
	payload, _ := token.Codec{}.Encode(id, ledger.RoleStall)
	return payload
}
