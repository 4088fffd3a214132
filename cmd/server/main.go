/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the fest wallet server. Handles configuration,
  dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env / environment)
  2. Parse command-line flags (flags win over environment)
  3. Initialize SQLite store (":memory:" by default - wallet state is
     process-scoped by product contract)
  4. Create the ledger service with the configured admin
  5. Optionally seed a demo scenario
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default from PORT, else 8080)
  -db      SQLite database path (default from DB_PATH, else ":memory:")
  -seed    Scenario to load at startup (default from SEED_SCENARIO)

ENVIRONMENT:
  PORT, DB_PATH, ADMIN_ID, ADMIN_NAME, ADMIN_PASSPHRASE, SEED_SCENARIO.
  A .env file is honored if present.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the database connection
  4. Exit

EXAMPLES:
  # Demo setup: in-memory state with the standard fixture
  ./server -seed=fest-day

  # Different port
  ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment loading
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/festpay/wallet-engine/api"
	"github.com/festpay/wallet-engine/config"
	"github.com/festpay/wallet-engine/ledger"
	"github.com/festpay/wallet-engine/store/sqlite"
	"github.com/festpay/wallet-engine/token"
)

func main() {
	cfg := config.Load()

	// Flags
	port := flag.String("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	seed := flag.String("seed", cfg.SeedScenario, "scenario to load at startup")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize ledger service
	admin := ledger.Admin{ID: cfg.AdminID, Name: cfg.AdminName}
	svc := ledger.New(store, token.Codec{}, admin, cfg.AdminPassphrase)

	// Initialize handler and optionally seed
	handler := api.NewHandler(svc, store)
	if *seed != "" {
		if err := handler.SeedScenario(context.Background(), *seed); err != nil {
			log.Fatalf("Failed to seed scenario %q: %v", *seed, err)
		}
		log.Printf("Seeded scenario %q", *seed)
	}

	// Create router and server
	router := api.NewRouter(handler)
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Fest wallet server starting on http://localhost:%s", *port)
		log.Printf("API available at http://localhost:%s/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
