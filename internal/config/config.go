// Package config loads and saves the YAML settings file shared with the
// settings UI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/combatlog/combatlog-go/internal/aggregate"
	"github.com/combatlog/combatlog-go/internal/safefile"
)

// MaxFileSize is the largest settings file Load accepts.
const MaxFileSize = 64 * 1024

// FileName is the settings file name inside the user config directory.
const FileName = "combatlog.yaml"

// Config is the persisted settings.
type Config struct {
	// PlayerName is the user's own character, used by auto-target.
	PlayerName string `yaml:"player_name"`
	// AutoTarget enables target selection from the player's opening spells.
	AutoTarget bool `yaml:"auto_target"`
	// AllowAutoTargetSelf lets the player's own name become the target.
	AllowAutoTargetSelf bool `yaml:"allow_auto_target_self"`
	// SearchEverywhere walks the whole home directory when locating logs.
	SearchEverywhere bool `yaml:"search_everywhere"`
	// LogPath is the selected combat log. Empty means locate one.
	LogPath string `yaml:"log_path,omitempty"`
	// InitiatingSpells replaces the default opening spell list when non-empty.
	InitiatingSpells []string `yaml:"initiating_spells,omitempty"`
	// PatternFiles are extra YAML grammars appended after the built-ins.
	PatternFiles []string `yaml:"pattern_files,omitempty"`
	// HistoryLimit caps each player's incoming and outgoing lists. 0 is unbounded.
	HistoryLimit int `yaml:"history_limit,omitempty"`
}

// ValidationError describes an invalid settings value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Default returns the settings used when no file exists.
func Default() Config {
	return Config{}
}

// DefaultPath returns the settings file location in the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "combatlog", FileName), nil
}

// Load reads the settings at path. A missing file yields Default().
func Load(path string) (Config, error) {
	f, info, err := safefile.OpenRegular(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	if info.Size() > MaxFileSize {
		return Config{}, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxFileSize)
	}
	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes settings from YAML. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	if len(data) > MaxFileSize {
		return Config{}, fmt.Errorf("config file too large: %d bytes (max %d)", len(data), MaxFileSize)
	}

	cfg := Default()
	if len(data) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to path atomically.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := safefile.WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks field values.
func (c Config) Validate() error {
	if c.HistoryLimit < 0 {
		return &ValidationError{Field: "history_limit", Message: fmt.Sprintf("must be non-negative, got %d", c.HistoryLimit)}
	}
	if c.AutoTarget && c.PlayerName == "" {
		return &ValidationError{Field: "player_name", Message: "required when auto_target is enabled"}
	}
	if slices.Contains(c.InitiatingSpells, "") {
		return &ValidationError{Field: "initiating_spells", Message: "spell names must not be empty"}
	}
	return nil
}

// TargetConfig converts the auto-target settings.
func (c Config) TargetConfig() aggregate.TargetConfig {
	return aggregate.TargetConfig{
		Enabled:          c.AutoTarget,
		PlayerName:       c.PlayerName,
		AllowSelf:        c.AllowAutoTargetSelf,
		InitiatingSpells: slices.Clone(c.InitiatingSpells),
	}
}
