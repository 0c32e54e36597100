package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// loadEnvFile loads environment variables from .env/.env.local files before the
// YAML is expanded, so ${VAR} references in the config can resolve to values kept
// out of version control (publish tokens, webhook secrets).
// It attempts each supported filename in order and stops at the first successfully
// parsed file. Existing process environment variables are never overwritten.
func loadEnvFile() error {
	envPaths := []string{".env", ".env.local"}
	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("parsing %s: %w", envPath, err)
		}
		fmt.Fprintf(os.Stderr, "Loaded environment variables from %s\n", envPath)
		return nil
	}
	return fmt.Errorf("no .env file found")
}
