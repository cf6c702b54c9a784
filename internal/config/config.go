// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/chatdesk/internal/util"
)

// Defaults taken from the DeepSeek API.
const (
	DefaultAPIURL         = "https://api.deepseek.com/v1/chat/completions"
	DefaultConnectTimeout = 10 // seconds
	DefaultReadTimeout    = 30 // seconds
	DefaultTemperature    = 0.7
	DefaultMaxTokens      = 2000
	DefaultLogLevel       = "info"
	DefaultTheme          = "auto"
)

// DefaultModels lists the models offered by the model selector.
var DefaultModels = []string{"deepseek-chat", "deepseek-reasoner"}

// ErrConfigNotFound is returned by LoadFile when the file does not exist.
var ErrConfigNotFound = errors.New("config file not found")

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chatdesk configuration.
type Config struct {
	API        APIConfig        `toml:"api"`
	Network    NetworkConfig    `toml:"network"`
	Generation GenerationConfig `toml:"generation"`
	UI         UIConfig         `toml:"ui"`
	Logging    LoggingConfig    `toml:"logging"`
}

// APIConfig holds the completion endpoint and credentials.
type APIConfig struct {
	URL          string   `toml:"url"`
	Key          string   `toml:"key"`
	Model        string   `toml:"model"`
	Models       []string `toml:"models"`
	SystemPrompt string   `toml:"system_prompt"`
}

// NetworkConfig controls proxying, TLS verification and timeouts.
type NetworkConfig struct {
	ProxyEnabled bool   `toml:"proxy_enabled"`
	ProxyURL     string `toml:"proxy_url"`
	VerifyTLS    bool   `toml:"verify_tls"`

	// Timeouts in seconds.
	ConnectTimeout int `toml:"connect_timeout"`
	ReadTimeout    int `toml:"read_timeout"`
}

// GenerationConfig holds sampling parameters. They are not shown in the form.
type GenerationConfig struct {
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

// UIConfig contains display preferences.
type UIConfig struct {
	Markdown bool   `toml:"markdown"`
	Theme    string `toml:"theme"` // auto, dark or light
}

// LoggingConfig controls the log file.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"` // empty means <config dir>/chatdesk.log
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			URL:    DefaultAPIURL,
			Model:  DefaultModels[0],
			Models: slices.Clone(DefaultModels),
		},
		Network: NetworkConfig{
			VerifyTLS:      true,
			ConnectTimeout: DefaultConnectTimeout,
			ReadTimeout:    DefaultReadTimeout,
		},
		Generation: GenerationConfig{
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		},
		UI: UIConfig{
			Markdown: true,
			Theme:    DefaultTheme,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
	}
}

// ConnectTimeoutDuration returns the connect timeout as a duration.
func (c *Config) ConnectTimeoutDuration() time.Duration {
	return time.Duration(c.Network.ConnectTimeout) * time.Second
}

// ReadTimeoutDuration returns the read timeout as a duration.
func (c *Config) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.Network.ReadTimeout) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the chatdesk configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatdesk"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) to protect API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the configuration from path, or from ConfigPath when path is
// empty. A missing file is not an error; defaults are used instead.
//
// Order: defaults, file, .env files, environment overrides, validation.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if err := LoadFile(cfg, path); err != nil && !errors.Is(err, ErrConfigNotFound) {
		return nil, err
	}

	LoadEnvFiles(filepath.Dir(path))
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFile decodes a TOML file over cfg.
// SECURITY: Checks and fixes file permissions on load.
func LoadFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	if err := ensureSecurePermissions(path); err != nil {
		// Not fatal: permissions might not be fixable on all systems.
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadEnvFiles loads .env from the working directory and from dir.
// Variables already set in the environment are never overwritten.
func LoadEnvFiles(dir string) {
	_ = godotenv.Load() // current directory
	if dir != "" {
		if envFile := filepath.Join(dir, ".env"); fileExists(envFile) {
			_ = godotenv.Load(envFile)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SetDefaults fills zero values left by a partial config file.
func (c *Config) SetDefaults() {
	d := Default()
	if c.API.URL == "" {
		c.API.URL = d.API.URL
	}
	if len(c.API.Models) == 0 {
		c.API.Models = d.API.Models
	}
	if c.API.Model == "" {
		c.API.Model = c.API.Models[0]
	}
	if !slices.Contains(c.API.Models, c.API.Model) {
		c.API.Models = append([]string{c.API.Model}, c.API.Models...)
	}
	if c.Network.ConnectTimeout == 0 {
		c.Network.ConnectTimeout = d.Network.ConnectTimeout
	}
	if c.Network.ReadTimeout == 0 {
		c.Network.ReadTimeout = d.Network.ReadTimeout
	}
	if c.Generation.MaxTokens == 0 {
		c.Generation.MaxTokens = d.Generation.MaxTokens
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - CHATDESK_API_KEY (or DEEPSEEK_API_KEY): overrides api.key
//   - CHATDESK_API_URL: overrides api.url
//   - CHATDESK_MODEL: overrides api.model
//   - CHATDESK_SYSTEM_PROMPT: overrides api.system_prompt
//   - CHATDESK_PROXY_URL: sets network.proxy_url and enables the proxy
//   - CHATDESK_VERIFY_TLS: overrides network.verify_tls
//   - CHATDESK_LOG_LEVEL: overrides logging.level
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		c.API.Key = key
	}
	if key := os.Getenv("CHATDESK_API_KEY"); key != "" {
		c.API.Key = key
	}

	if apiURL := os.Getenv("CHATDESK_API_URL"); apiURL != "" {
		c.API.URL = apiURL
	}

	if model := os.Getenv("CHATDESK_MODEL"); model != "" {
		c.API.Model = model
	}

	if prompt := os.Getenv("CHATDESK_SYSTEM_PROMPT"); prompt != "" {
		c.API.SystemPrompt = prompt
	}

	if proxy := os.Getenv("CHATDESK_PROXY_URL"); proxy != "" {
		c.Network.ProxyURL = proxy
		c.Network.ProxyEnabled = true
	}

	if verify := os.Getenv("CHATDESK_VERIFY_TLS"); verify != "" {
		if b, err := strconv.ParseBool(verify); err == nil {
			c.Network.VerifyTLS = b
		}
	}

	if level := os.Getenv("CHATDESK_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
// The API key is not required here; the form asks for it.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if err := validateHTTPURL(c.API.URL); err != nil {
		errs = append(errs, ValidationError{Field: "api.url", Message: err.Error()})
	}

	if len(c.API.Models) == 0 {
		errs = append(errs, ValidationError{Field: "api.models", Message: "at least one model is required"})
	}
	for i, m := range c.API.Models {
		if strings.TrimSpace(m) == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("api.models[%d]", i), Message: "model name cannot be empty"})
		}
	}

	if c.Network.ProxyEnabled {
		if strings.TrimSpace(c.Network.ProxyURL) == "" {
			errs = append(errs, ValidationError{Field: "network.proxy_url", Message: "proxy enabled but no proxy URL set"})
		} else if err := validateHTTPURL(c.Network.ProxyURL); err != nil {
			errs = append(errs, ValidationError{Field: "network.proxy_url", Message: err.Error()})
		}
	}

	if c.Network.ConnectTimeout <= 0 || c.Network.ConnectTimeout > 300 {
		errs = append(errs, ValidationError{
			Field:   "network.connect_timeout",
			Message: fmt.Sprintf("must be between 1 and 300 seconds, got %d", c.Network.ConnectTimeout),
		})
	}
	if c.Network.ReadTimeout <= 0 || c.Network.ReadTimeout > 3600 {
		errs = append(errs, ValidationError{
			Field:   "network.read_timeout",
			Message: fmt.Sprintf("must be between 1 and 3600 seconds, got %d", c.Network.ReadTimeout),
		})
	}

	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "generation.temperature",
			Message: fmt.Sprintf("must be between 0 and 2, got %g", c.Generation.Temperature),
		})
	}
	if c.Generation.MaxTokens <= 0 {
		errs = append(errs, ValidationError{
			Field:   "generation.max_tokens",
			Message: fmt.Sprintf("must be positive, got %d", c.Generation.MaxTokens),
		})
	}

	switch strings.ToLower(c.UI.Theme) {
	case "auto", "dark", "light":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme, got '%s'", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL must include a host")
	}
	return nil
}

// =============================================================================
// SAVE
// =============================================================================

// Save writes the configuration to path as TOML.
// SECURITY: Config files are written 0600 (owner read/write only).
// RELIABILITY: Atomic write with fsync prevents data loss on crash.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# chatdesk configuration file")
	fmt.Fprintln(&buf, "# The API key may also be set with CHATDESK_API_KEY or a .env file.")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	clone.API.Models = slices.Clone(c.API.Models)
	return &clone
}

// String renders the config as TOML with the API key redacted.
// SECURITY: Secrets must not appear in output that could be logged or displayed.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.API.Key != "" {
		safe.API.Key = "[REDACTED]"
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(safe); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}
