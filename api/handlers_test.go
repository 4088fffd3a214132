package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festpay/wallet-engine/api"
	"github.com/festpay/wallet-engine/ledger"
	"github.com/festpay/wallet-engine/ledger/store"
	"github.com/festpay/wallet-engine/token"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// testServer bundles the router with enough handles to drive it.
type testServer struct {
	router  http.Handler
	handler *api.Handler
}

// newTestServer wires a full stack over a memory store, seeded with the
// fest-day fixture: Alice (1000), Bob (500), Charlie (750), Snack Shack,
// and Game Zone.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mem := store.NewMemory()
	admin := ledger.Admin{ID: "admin-1", Name: "Principal Smith"}
	svc := ledger.New(mem, token.Codec{}, admin, "admin123")
	h := api.NewHandler(svc, mem)
	require.NoError(t, h.SeedScenario(context.Background(), "fest-day"))

	return &testServer{router: api.NewRouter(h), handler: h}
}

// do issues a request and decodes the JSON response into out (when out
// is non-nil).
func (ts *testServer) do(t *testing.T, method, path string, body, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if out != nil {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(out),
			"%s %s returned unparseable body: %s", method, path, rec.Body.String())
	}
	return rec
}

func (ts *testServer) loginAdmin(t *testing.T) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/session/login",
		api.LoginRequest{Role: "admin", ID: "admin-1", Password: "admin123"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func (ts *testServer) loginStall(t *testing.T, stallID string) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/session/login",
		api.LoginRequest{Role: "stall", ID: stallID}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// SESSION ENDPOINT TESTS
// =============================================================================

func TestSessionFlow(t *testing.T) {
	ts := newTestServer(t)

	// Nobody logged in yet.
	var session api.SessionDTO
	rec := ts.do(t, http.MethodGet, "/api/session", nil, &session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, session.LoggedIn)

	// Admin login.
	rec = ts.do(t, http.MethodPost, "/api/session/login",
		api.LoginRequest{Role: "admin", ID: "admin-1", Password: "admin123"}, &session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, session.LoggedIn)
	assert.Equal(t, "admin", session.Role)
	assert.Equal(t, "Principal Smith", session.Name)

	// Session endpoint reflects it.
	ts.do(t, http.MethodGet, "/api/session", nil, &session)
	assert.Equal(t, "admin-1", session.ID)

	// Logout clears it.
	rec = ts.do(t, http.MethodPost, "/api/session/logout", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ts.do(t, http.MethodGet, "/api/session", nil, &session)
	assert.False(t, session.LoggedIn)
}

func TestLogin_AdminWrongPassword(t *testing.T) {
	ts := newTestServer(t)

	var errResp api.ErrorResponse
	rec := ts.do(t, http.MethodPost, "/api/session/login",
		api.LoginRequest{Role: "admin", ID: "admin-1", Password: "wrong"}, &errResp)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials for admin.", errResp.Error)
}

func TestLogin_UnknownStudent(t *testing.T) {
	ts := newTestServer(t)

	var errResp api.ErrorResponse
	rec := ts.do(t, http.MethodPost, "/api/session/login",
		api.LoginRequest{Role: "student", ID: "user-999"}, &errResp)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User or stall not found.", errResp.Error)
}

func TestLogin_UnknownRole(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/session/login",
		api.LoginRequest{Role: "wizard", ID: "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginQR_StudentToken(t *testing.T) {
	// GIVEN: The roster listing includes each student's token payload
	// WHEN: That payload is presented to the QR login endpoint
	// THEN: The student becomes the session

	ts := newTestServer(t)

	var students []api.StudentDTO
	rec := ts.do(t, http.MethodGet, "/api/students", nil, &students)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, students)
	require.NotEmpty(t, students[0].Token)

	var session api.SessionDTO
	rec = ts.do(t, http.MethodPost, "/api/session/login-qr",
		api.LoginQRRequest{QRData: students[0].Token}, &session)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, session.LoggedIn)
	assert.Equal(t, students[0].ID, session.ID)
	assert.Equal(t, "student", session.Role)
}

func TestLoginQR_Malformed(t *testing.T) {
	ts := newTestServer(t)

	var errResp api.ErrorResponse
	rec := ts.do(t, http.MethodPost, "/api/session/login-qr",
		api.LoginQRRequest{QRData: "not a token"}, &errResp)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid QR code format. Please scan again.", errResp.Error)
}

// =============================================================================
// RECHARGE ENDPOINT TESTS
// =============================================================================

func rechargeBody(studentID string, amount float64) map[string]any {
	return map[string]any{"student_id": studentID, "amount": amount}
}

func TestRecharge_HappyPath(t *testing.T) {
	ts := newTestServer(t)
	ts.loginAdmin(t)

	var resp api.RechargeResponseDTO
	rec := ts.do(t, http.MethodPost, "/api/recharge", rechargeBody("user-1", 200), &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Recharge successful.", resp.Message)
	assert.Equal(t, 1200.0, resp.Balance)

	var txs []api.TransactionDTO
	ts.do(t, http.MethodGet, "/api/transactions", nil, &txs)
	require.Len(t, txs, 1)
	assert.Equal(t, "recharge", txs[0].Type)
	assert.Equal(t, "admin-1", txs[0].AdminID)
}

func TestRecharge_WithoutAdminSession(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/recharge", rechargeBody("user-1", 200), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ts.loginStall(t, "stall-1")
	rec = ts.do(t, http.MethodPost, "/api/recharge", rechargeBody("user-1", 200), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecharge_InvalidAmount(t *testing.T) {
	ts := newTestServer(t)
	ts.loginAdmin(t)

	rec := ts.do(t, http.MethodPost, "/api/recharge", rechargeBody("user-1", 0), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/recharge", rechargeBody("user-1", -10), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecharge_UnknownStudent(t *testing.T) {
	ts := newTestServer(t)
	ts.loginAdmin(t)

	rec := ts.do(t, http.MethodPost, "/api/recharge", rechargeBody("user-999", 100), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// PURCHASE ENDPOINT TESTS
// =============================================================================

func purchaseBody(studentID, stallID string, cart map[string]int) api.PurchaseRequest {
	return api.PurchaseRequest{StudentID: studentID, StallID: stallID, Cart: cart}
}

func TestPurchase_HappyPath(t *testing.T) {
	ts := newTestServer(t)
	ts.loginStall(t, "stall-1")

	var resp api.PurchaseResponseDTO
	rec := ts.do(t, http.MethodPost, "/api/purchase",
		purchaseBody("user-1", "stall-1", map[string]int{"item-1-1": 2}), &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Purchase successful!", resp.Message)
	assert.Equal(t, 100.0, resp.Total)
	assert.Equal(t, 900.0, resp.Balance)

	var txs []api.TransactionDTO
	ts.do(t, http.MethodGet, "/api/transactions", nil, &txs)
	require.Len(t, txs, 1)
	assert.Equal(t, "purchase", txs[0].Type)
	assert.Equal(t, "Snack Shack", txs[0].StallName)
	require.Len(t, txs[0].Items, 1)
	assert.Equal(t, "Popcorn", txs[0].Items[0].Name)
	assert.Equal(t, 2, txs[0].Items[0].Quantity)
}

func TestPurchase_InsufficientBalance(t *testing.T) {
	ts := newTestServer(t)
	ts.loginStall(t, "stall-2")

	// Bob has 500; 6 ring tosses cost 600.
	var errResp api.ErrorResponse
	rec := ts.do(t, http.MethodPost, "/api/purchase",
		purchaseBody("user-2", "stall-2", map[string]int{"item-2-1": 6}), &errResp)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Insufficient balance.", errResp.Error)
}

func TestPurchase_EmptyCart(t *testing.T) {
	ts := newTestServer(t)
	ts.loginStall(t, "stall-1")

	rec := ts.do(t, http.MethodPost, "/api/purchase",
		purchaseBody("user-1", "stall-1", map[string]int{}), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurchase_WrongStallSession(t *testing.T) {
	ts := newTestServer(t)
	ts.loginStall(t, "stall-2")

	rec := ts.do(t, http.MethodPost, "/api/purchase",
		purchaseBody("user-1", "stall-1", map[string]int{"item-1-1": 1}), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =============================================================================
// STUDENT ENDPOINT TESTS
// =============================================================================

func TestStudents_CreateAndGet(t *testing.T) {
	ts := newTestServer(t)

	var created api.StudentDTO
	rec := ts.do(t, http.MethodPost, "/api/students",
		api.CreateStudentRequest{Name: "Dana", Class: "Class 8C"}, &created)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 0.0, created.Balance)
	assert.NotEmpty(t, created.Token)

	var got api.StudentDTO
	rec = ts.do(t, http.MethodGet, "/api/students/"+created.ID, nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Dana", got.Name)
}

func TestStudents_CreateRequiresName(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/students",
		api.CreateStudentRequest{Class: "Class 8C"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStudents_GetUnknown(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/students/user-999", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStudents_DeletePurgesHistory(t *testing.T) {
	ts := newTestServer(t)
	ts.loginAdmin(t)

	rec := ts.do(t, http.MethodPost, "/api/recharge", rechargeBody("user-1", 100), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/students/user-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/students/user-1", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var txs []api.TransactionDTO
	ts.do(t, http.MethodGet, "/api/transactions", nil, &txs)
	assert.Empty(t, txs)
}

func TestStudents_PassIsPNG(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/students/user-1/pass", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte{0x89, 'P', 'N', 'G'}))
}

func TestStudents_PassUnknownStudent(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/students/user-999/pass", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStudents_TransactionHistory(t *testing.T) {
	ts := newTestServer(t)
	ts.loginAdmin(t)

	for _, studentID := range []string{"user-1", "user-2", "user-1"} {
		rec := ts.do(t, http.MethodPost, "/api/recharge", rechargeBody(studentID, 50), nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	var txs []api.TransactionDTO
	rec := ts.do(t, http.MethodGet, "/api/students/user-1/transactions", nil, &txs)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, txs, 2)
	for _, tx := range txs {
		assert.Equal(t, "user-1", tx.StudentID)
	}
}

func TestStudents_Lookup(t *testing.T) {
	ts := newTestServer(t)

	payload, err := token.Codec{}.Encode("user-3", ledger.RoleStudent)
	require.NoError(t, err)

	var got api.StudentDTO
	rec := ts.do(t, http.MethodPost, "/api/students/lookup",
		api.LookupRequest{QRData: payload}, &got)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Charlie", got.Name)
	assert.Equal(t, 750.0, got.Balance)
}

func TestStudents_LookupRejectsStallToken(t *testing.T) {
	ts := newTestServer(t)

	payload, err := token.Codec{}.Encode("stall-1", ledger.RoleStall)
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/api/students/lookup",
		api.LookupRequest{QRData: payload}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// STALL ENDPOINT TESTS
// =============================================================================

func TestStalls_ListSeeded(t *testing.T) {
	ts := newTestServer(t)

	var stalls []api.StallDTO
	rec := ts.do(t, http.MethodGet, "/api/stalls", nil, &stalls)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, stalls, 2)
	assert.Equal(t, "Snack Shack", stalls[0].Name)
	assert.Len(t, stalls[0].Menu, 3)
	assert.Equal(t, "Game Zone", stalls[1].Name)
	assert.Len(t, stalls[1].Menu, 2)
}

func TestStalls_SetMenu(t *testing.T) {
	ts := newTestServer(t)

	var created api.StallDTO
	rec := ts.do(t, http.MethodPost, "/api/stalls", api.CreateStallRequest{Name: "Book Nook"}, &created)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, created.Menu)

	var updated api.StallDTO
	rec = ts.do(t, http.MethodPut, fmt.Sprintf("/api/stalls/%s/menu", created.ID),
		map[string]any{"items": []map[string]any{
			{"name": "Notebook", "price": 40},
			{"name": "Pen", "price": 15},
		}}, &updated)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, updated.Menu, 2)
	assert.Equal(t, "Notebook", updated.Menu[0].Name)
	assert.Equal(t, 40.0, updated.Menu[0].Price)
	assert.NotEmpty(t, updated.Menu[0].ID)
}

func TestStalls_SetMenuRejectsFreeItems(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPut, "/api/stalls/stall-1/menu",
		map[string]any{"items": []map[string]any{
			{"name": "Freebie", "price": 0},
		}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStalls_DeletePurgesItsTransactions(t *testing.T) {
	ts := newTestServer(t)
	ts.loginStall(t, "stall-1")

	rec := ts.do(t, http.MethodPost, "/api/purchase",
		purchaseBody("user-1", "stall-1", map[string]int{"item-1-1": 1}), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/stalls/stall-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var txs []api.TransactionDTO
	ts.do(t, http.MethodGet, "/api/transactions", nil, &txs)
	assert.Empty(t, txs)
}

// =============================================================================
// TRANSACTION LOG TESTS
// =============================================================================

func TestTransactions_NewestFirstAndFiltered(t *testing.T) {
	ts := newTestServer(t)
	ts.loginAdmin(t)

	rec := ts.do(t, http.MethodPost, "/api/recharge", rechargeBody("user-1", 100), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	ts.loginStall(t, "stall-1")
	rec = ts.do(t, http.MethodPost, "/api/purchase",
		purchaseBody("user-2", "stall-1", map[string]int{"item-1-2": 1}), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var txs []api.TransactionDTO
	ts.do(t, http.MethodGet, "/api/transactions", nil, &txs)
	require.Len(t, txs, 2)
	assert.Equal(t, "purchase", txs[0].Type, "newest first")
	assert.Equal(t, "recharge", txs[1].Type)

	ts.do(t, http.MethodGet, "/api/transactions?student_id=user-1", nil, &txs)
	require.Len(t, txs, 1)
	assert.Equal(t, "recharge", txs[0].Type)

	ts.do(t, http.MethodGet, "/api/transactions?stall_id=stall-1", nil, &txs)
	require.Len(t, txs, 1)
	assert.Equal(t, "purchase", txs[0].Type)
}

// =============================================================================
// SCENARIO ENDPOINT TESTS
// =============================================================================

func TestScenarios_ListAndLoad(t *testing.T) {
	ts := newTestServer(t)

	var scenarios []api.ScenarioDTO
	rec := ts.do(t, http.MethodGet, "/api/scenarios", nil, &scenarios)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, scenarios, 2)

	rec = ts.do(t, http.MethodPost, "/api/scenarios/load",
		api.LoadScenarioRequest{ScenarioID: "empty-fest"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var students []api.StudentDTO
	ts.do(t, http.MethodGet, "/api/students", nil, &students)
	assert.Empty(t, students)
}

func TestScenarios_LoadUnknown(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load",
		api.LoadScenarioRequest{ScenarioID: "nope"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenarios_LoadClearsSession(t *testing.T) {
	ts := newTestServer(t)
	ts.loginAdmin(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load",
		api.LoadScenarioRequest{ScenarioID: "fest-day"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var session api.SessionDTO
	ts.do(t, http.MethodGet, "/api/session", nil, &session)
	assert.False(t, session.LoggedIn)
}

func TestScenarios_Reset(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/reset", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var students []api.StudentDTO
	ts.do(t, http.MethodGet, "/api/students", nil, &students)
	assert.Empty(t, students)

	var stalls []api.StallDTO
	ts.do(t, http.MethodGet, "/api/stalls", nil, &stalls)
	assert.Empty(t, stalls)
}
