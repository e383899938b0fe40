/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"muralsynth/internal/canvas"
	"muralsynth/internal/genai"
	"muralsynth/internal/synth"
	"muralsynth/internal/undo"
	"muralsynth/internal/viewport"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

type SynthesisConfig struct {
	Model         string  `yaml:"model"`
	AspectRatio   string  `yaml:"aspect_ratio"`
	TargetSize    float64 `yaml:"target_size"`
	Radius        float64 `yaml:"radius"`
	PromptModel   string  `yaml:"prompt_model"`
	DefaultPrompt string  `yaml:"default_prompt"`
}

type CanvasConfig struct {
	MinScale     float64 `yaml:"min_scale"`
	MaxScale     float64 `yaml:"max_scale"`
	UndoCapacity int     `yaml:"undo_capacity"`
	UndoMaxBytes int     `yaml:"undo_max_bytes"`
}

type BackendConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// The API key is not stored on disk; it lives in the OS keychain.
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // "sqlite" | "postgres"
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	General       GeneralConfig   `yaml:"general"`
	Synthesis     SynthesisConfig `yaml:"synthesis"`
	Canvas        CanvasConfig    `yaml:"canvas"`
	Backend       BackendConfig   `yaml:"backend"`
	Store         StoreConfig     `yaml:"store"`
	Logging       LoggingConfig   `yaml:"logging"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultTargetSize = 512.0
)

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false},
		Synthesis: SynthesisConfig{
			Model:       genai.DefaultImageModel,
			AspectRatio: string(synth.AspectSquare),
			TargetSize:  DefaultTargetSize,
			Radius:      synth.DefaultRadius,
			PromptModel: genai.DefaultPromptModel,
		},
		Canvas: CanvasConfig{
			MinScale:     viewport.DefaultMinScale,
			MaxScale:     viewport.DefaultMaxScale,
			UndoCapacity: undo.DefaultCapacity,
			UndoMaxBytes: undo.DefaultMaxBytes,
		},
		Backend: BackendConfig{BaseURL: genai.DefaultBaseURL, TimeoutMs: 120000},
		Store:   StoreConfig{Driver: DriverSQLite},
		Logging: LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigDir        = "MSY_CONFIG_DIR"
	EnvAPIKey           = "MSY_API_KEY"
	EnvModel            = "MSY_MODEL"
	EnvAspectRatio      = "MSY_ASPECT_RATIO"
	EnvPromptModel      = "MSY_PROMPT_MODEL"
	EnvBackendURL       = "MSY_BACKEND_URL"
	EnvBackendTimeoutMs = "MSY_BACKEND_TIMEOUT_MS"
	EnvTelemetryOptIn   = "MSY_TELEMETRY_OPT_IN"
	EnvStoreDriver      = "MSY_STORE_DRIVER"
	EnvStorePath        = "MSY_STORE_PATH"
	EnvPGDSN            = "MSY_PG_DSN"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "MSY_LOG_LEVEL"
	EnvLogFormat = "MSY_LOG_FORMAT"
	EnvLogSource = "MSY_LOG_SOURCE"
	EnvLogFile   = "MSY_LOG_FILE"
)

// ConfigDir returns the per-user configuration directory. MSY_CONFIG_DIR overrides it.
func ConfigDir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvConfigDir)); v != "" {
		return v, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "MuralSynth")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "MuralSynth")
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "muralsynth")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "muralsynth")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// StorePath returns the SQLite database path: the configured one or boards.sqlite in the config dir.
func (c AppConfig) StorePath() (string, error) {
	if p := strings.TrimSpace(c.Store.Path); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "boards.sqlite"), nil
}

// Load reads the user config file (if present), applies defaults and merges environment overrides.
// The API key is returned separately: MSY_API_KEY wins over the keychain.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	key, _ := APIKey()
	return cfg, key, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate reports settings that would make every synthesis fail.
func (c AppConfig) Validate() error {
	if _, err := synth.ParseAspectRatio(c.Synthesis.AspectRatio); err != nil {
		return err
	}
	if c.Synthesis.TargetSize < canvas.MinItemSize {
		return fmt.Errorf("%w: target_size %v below %v", synth.ErrConfiguration, c.Synthesis.TargetSize, canvas.MinItemSize)
	}
	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: unknown store driver %q", synth.ErrConfiguration, c.Store.Driver)
	}
	return nil
}

// Timeout returns the backend HTTP timeout.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// BoardSettings returns the synthesis defaults stored with new boards.
func (s SynthesisConfig) BoardSettings() canvas.Settings {
	return canvas.Settings{Model: s.Model, AspectRatio: s.AspectRatio, TargetSize: s.TargetSize, Radius: s.Radius}
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn

	if v := strings.TrimSpace(src.Synthesis.Model); v != "" {
		dst.Synthesis.Model = v
	}
	if v := strings.TrimSpace(src.Synthesis.AspectRatio); v != "" {
		dst.Synthesis.AspectRatio = v
	}
	if src.Synthesis.TargetSize > 0 {
		dst.Synthesis.TargetSize = src.Synthesis.TargetSize
	}
	if src.Synthesis.Radius > 0 {
		dst.Synthesis.Radius = src.Synthesis.Radius
	}
	if v := strings.TrimSpace(src.Synthesis.PromptModel); v != "" {
		dst.Synthesis.PromptModel = v
	}
	if v := strings.TrimSpace(src.Synthesis.DefaultPrompt); v != "" {
		dst.Synthesis.DefaultPrompt = v
	}

	if src.Canvas.MinScale > 0 {
		dst.Canvas.MinScale = src.Canvas.MinScale
	}
	if src.Canvas.MaxScale > 0 {
		dst.Canvas.MaxScale = src.Canvas.MaxScale
	}
	if src.Canvas.UndoCapacity > 0 {
		dst.Canvas.UndoCapacity = src.Canvas.UndoCapacity
	}
	if src.Canvas.UndoMaxBytes > 0 {
		dst.Canvas.UndoMaxBytes = src.Canvas.UndoMaxBytes
	}

	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}

	if v := strings.ToLower(strings.TrimSpace(src.Store.Driver)); v != "" {
		dst.Store.Driver = v
	}
	if v := strings.TrimSpace(src.Store.Path); v != "" {
		dst.Store.Path = v
	}
	if v := strings.TrimSpace(src.Store.DSN); v != "" {
		dst.Store.DSN = v
	}

	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvModel)); v != "" {
		cfg.Synthesis.Model = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAspectRatio)); v != "" {
		cfg.Synthesis.AspectRatio = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPromptModel)); v != "" {
		cfg.Synthesis.PromptModel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoreDriver)); v != "" {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorePath)); v != "" {
		cfg.Store.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPGDSN)); v != "" {
		cfg.Store.DSN = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envByKey = map[string]string{
	"synthesis.model":          EnvModel,
	"synthesis.aspect_ratio":   EnvAspectRatio,
	"synthesis.prompt_model":   EnvPromptModel,
	"backend.base_url":         EnvBackendURL,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"store.driver":             EnvStoreDriver,
	"store.path":               EnvStorePath,
	"store.dsn":                EnvPGDSN,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envByKey[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}
