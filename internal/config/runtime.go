package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const defaultRuntimeDir = ".tuskmem"

// GetRuntimePath resolves TUSK_RUNTIME_PATH; relative paths live under $HOME.
func GetRuntimePath() string {
	path := os.Getenv("TUSK_RUNTIME_PATH")
	if path == "" {
		path = defaultRuntimeDir
	}

	if !filepath.IsAbs(path) {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path)
	}
	return path
}

// LoadEnvFile loads <runtime>/.env without overriding variables that are
// already set. A missing file is not an error.
func LoadEnvFile(runtimePath string) error {
	path := filepath.Join(runtimePath, ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
