/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the ledger with realistic
  data for demos and manual testing. Loading a scenario resets all
  state first.

AVAILABLE SCENARIOS:
  fest-day:    Three students with funded wallets, two stalls with
               priced menus. The standard demo fixture.
  empty-fest:  Clean slate with no roster, for walking through setup.

HOW SCENARIOS WORK:
  1. Reset the store (clear all data)
  2. Insert students and stalls with fixed ids via the store
  3. The fixed ids make printed passes and demo scripts reproducible

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "fest-day"}

NOTE:
  Scenarios reset the ledger. Only use in development/demo setups.

SEE ALSO:
  - handlers.go: Shared response helpers
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/festpay/wallet-engine/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fest-day",
		Name:        "Fest Day",
		Description: "Three funded students and two stalls with full menus",
	},
	{
		ID:          "empty-fest",
		Name:        "Empty Fest",
		Description: "No roster or stalls; start from scratch",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario resets the ledger and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.SeedScenario(r.Context(), req.ScenarioID); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, ResultDTO{Success: true, Message: "Scenario loaded: " + req.ScenarioID})
}

// ResetState wipes all ledger state.
func (h *Handler) ResetState(w http.ResponseWriter, r *http.Request) {
	h.Ledger.Logout()
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset state", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, ResultDTO{Success: true, Message: "State cleared."})
}

// SeedScenario loads a scenario by id. Exported so main can seed at
// startup from configuration.
func (h *Handler) SeedScenario(ctx context.Context, scenarioID string) error {
	h.Ledger.Logout()
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	h.currentScenario = ""

	switch scenarioID {
	case "fest-day":
		if err := loadFestDay(ctx, h.Store); err != nil {
			return err
		}
	case "empty-fest":
		// Reset already did the work.
	default:
		return ledger.ErrNotFound
	}
	h.currentScenario = scenarioID
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadFestDay inserts the standard demo fixture: three students with
// funded wallets and two stalls. Fixed ids keep printed passes stable
// across reloads.
func loadFestDay(ctx context.Context, store ledger.Store) error {
	students := []ledger.Student{
		{ID: "user-1", Name: "Alice", Class: "Class 9A", Balance: decimal.NewFromInt(1000)},
		{ID: "user-2", Name: "Bob", Class: "Class 10B", Balance: decimal.NewFromInt(500)},
		{ID: "user-3", Name: "Charlie", Class: "Class 9A", Balance: decimal.NewFromInt(750)},
	}
	for _, s := range students {
		if err := store.SaveStudent(ctx, s); err != nil {
			return err
		}
	}

	stalls := []ledger.Stall{
		{ID: "stall-1", Name: "Snack Shack", Menu: []ledger.MenuItem{
			{ID: "item-1-1", Name: "Popcorn", Price: decimal.NewFromInt(50)},
			{ID: "item-1-2", Name: "Soda", Price: decimal.NewFromInt(30)},
			{ID: "item-1-3", Name: "Chips", Price: decimal.NewFromInt(20)},
		}},
		{ID: "stall-2", Name: "Game Zone", Menu: []ledger.MenuItem{
			{ID: "item-2-1", Name: "Ring Toss", Price: decimal.NewFromInt(100)},
			{ID: "item-2-2", Name: "Dart Throw", Price: decimal.NewFromInt(75)},
		}},
	}
	for _, s := range stalls {
		if err := store.SaveStall(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
