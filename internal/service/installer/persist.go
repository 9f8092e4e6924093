package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/providers/mcp"
	"github.com/sandevgo/tuskmem/internal/service/agent"
	"gopkg.in/yaml.v3"
)

// WriteRuntime creates the runtime directory with .env, profile.yaml and
// mcp_config.json. Existing files are left alone unless overwrite is set.
func WriteRuntime(ctx context.Context, path string, state *InstallState, overwrite bool) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create runtime directory: %w", err)
	}

	envPath := filepath.Join(path, ".env")
	if err := writeFile(envPath, []byte(state.EnvFile()), 0600, overwrite); err != nil {
		return err
	}

	profile, err := yaml.Marshal(config.Profile{SystemPrompt: agent.DefaultSystemPrompt})
	if err != nil {
		return fmt.Errorf("failed to render profile: %w", err)
	}
	if err := writeFile(filepath.Join(path, "profile.yaml"), profile, 0644, overwrite); err != nil {
		return err
	}

	// loading creates an empty config when none exists yet
	if _, err := mcp.NewFileStorage(filepath.Join(path, "mcp_config.json")).Load(ctx); err != nil {
		return fmt.Errorf("failed to initialise mcp config: %w", err)
	}
	return nil
}

func writeFile(path string, data []byte, perm os.FileMode, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
