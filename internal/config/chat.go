package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
	"gopkg.in/yaml.v3"
)

type ChatEnv struct {
	UserID      string        `env:"TUSK_USER_ID" envDefault:"owner"`
	Delay       time.Duration `env:"TUSK_MEMORY_DELAY" envDefault:"30s"`
	MemoryTypes []string      `env:"TUSK_MEMORY_TYPES" envSeparator:"," envDefault:"preference,user_fact,project,instruction"`
	Target      string        `env:"TUSK_MEMORY_TARGET"`
}

// Profile is the optional profile.yaml. Set fields win over the environment.
type Profile struct {
	UserID       string   `yaml:"user_id,omitempty"`
	SystemPrompt string   `yaml:"system_prompt,omitempty"`
	MemoryTarget string   `yaml:"memory_target,omitempty"`
	Delay        string   `yaml:"memory_delay,omitempty"`
	MemoryTypes  []string `yaml:"memory_types,omitempty"`
}

// LoadChatConfig builds the per-turn chat configuration from the
// environment and the profile at profilePath.
func LoadChatConfig(ctx context.Context, profilePath string, opts env.Options) (core.ChatConfig, error) {
	var e ChatEnv
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return core.ChatConfig{}, fmt.Errorf("parse chat env: %w", err)
	}

	cfg := core.ChatConfig{
		UserID:       e.UserID,
		MemoryTarget: e.Target,
		Delay:        e.Delay,
		MemoryTypes:  e.MemoryTypes,
	}

	profile, err := ReadProfile(profilePath)
	if err != nil {
		return core.ChatConfig{}, err
	}
	if profile == nil {
		return cfg, nil
	}
	log.FromCtx(ctx).Debug().Str("path", profilePath).Msg("applying chat profile")

	if profile.UserID != "" {
		cfg.UserID = profile.UserID
	}
	if profile.SystemPrompt != "" {
		cfg.SystemPrompt = profile.SystemPrompt
	}
	if profile.MemoryTarget != "" {
		cfg.MemoryTarget = profile.MemoryTarget
	}
	if len(profile.MemoryTypes) > 0 {
		cfg.MemoryTypes = profile.MemoryTypes
	}
	if profile.Delay != "" {
		d, err := time.ParseDuration(profile.Delay)
		if err != nil {
			return core.ChatConfig{}, fmt.Errorf("profile memory_delay: %w", err)
		}
		cfg.Delay = d
	}

	if cfg.Delay < 0 {
		return core.ChatConfig{}, fmt.Errorf("memory delay must not be negative: %s", cfg.Delay)
	}
	return cfg, nil
}

// ReadProfile returns nil when the file does not exist.
func ReadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return &p, nil
}
