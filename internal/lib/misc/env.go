package misc

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvSettings loads .env.local then .env, if present. Values already in
// the environment win.
func LoadEnvSettings(logger *slog.Logger) {
	if err := godotenv.Load(".env.local"); err == nil {
		Debugf(logger, "loaded .env.local")
	}
	if err := godotenv.Load(); err == nil {
		Debugf(logger, "loaded .env")
	}
}

// LoadEnvFile loads a specific env file, failing loudly since the caller
// asked for it by name.
func LoadEnvFile(name string) error {
	if _, err := os.Stat(name); err != nil {
		return fmt.Errorf("env file %s not readable: %w", name, err)
	}
	return godotenv.Load(name)
}
