// Package config loads server configuration from the environment.
package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
//
// AdminPassphrase is compared in plaintext; there is no password
// hashing anywhere in the product.
type Config struct {
	Port            string
	DBPath          string
	AdminID         string
	AdminName       string
	AdminPassphrase string
	SeedScenario    string // scenario loaded at startup, empty for none
}

// Load reads configuration from environment variables, consulting a
// .env file first if one exists. Missing values fall back to the
// demo defaults.
func Load() *Config {
	// Missing .env is fine.
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getenv("PORT", "8080"),
		DBPath:          getenv("DB_PATH", ":memory:"),
		AdminID:         getenv("ADMIN_ID", "admin-1"),
		AdminName:       getenv("ADMIN_NAME", "Principal Smith"),
		AdminPassphrase: getenv("ADMIN_PASSPHRASE", ""),
		SeedScenario:    os.Getenv("SEED_SCENARIO"),
	}
	if cfg.AdminPassphrase == "" {
		cfg.AdminPassphrase = "admin123"
		log.Println("Warning: ADMIN_PASSPHRASE not set, using the demo default")
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
