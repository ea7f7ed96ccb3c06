// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/efgfdsdfdf/edutrack/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete edutrack configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	User     UserConfig     `toml:"user" json:"user"`
	Backend  BackendConfig  `toml:"backend" json:"backend"`
	Store    StoreConfig    `toml:"store" json:"store"`
	Delivery DeliveryConfig `toml:"delivery" json:"delivery"`
	Typing   TypingConfig   `toml:"typing" json:"typing"`
	UI       UIConfig       `toml:"ui" json:"ui"`
	Logging  LoggingConfig  `toml:"logging" json:"logging"`
}

// UserConfig identifies whose chats are loaded.
type UserConfig struct {
	// Name scopes every persisted key. "Guest" or empty cannot chat.
	Name string `toml:"name" json:"name"`
}

// BackendConfig describes the REST proxy in front of the model.
type BackendConfig struct {
	URL string `toml:"url" json:"url"`
	// Mock skips the network entirely and answers with local mock replies.
	Mock bool `toml:"mock" json:"mock"`

	ChatTimeoutSecs   int     `toml:"chat_timeout_secs" json:"chat_timeout_secs"`
	ProbeTimeoutSecs  int     `toml:"probe_timeout_secs" json:"probe_timeout_secs"`
	ProbeIntervalSecs int     `toml:"probe_interval_secs" json:"probe_interval_secs"`
	MaxFailures       int     `toml:"max_failures" json:"max_failures"`
	MaxTokens         int     `toml:"max_tokens" json:"max_tokens"`
	Temperature       float64 `toml:"temperature" json:"temperature"`

	// Outgoing request limiter.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst"`
}

// StoreConfig selects the key/value backend.
type StoreConfig struct {
	// Kind is one of sqlite, bolt, redis, memory.
	Kind      string `toml:"kind" json:"kind"`
	Path      string `toml:"path" json:"path"`
	Namespace string `toml:"namespace" json:"namespace"`

	RedisAddr     string `toml:"redis_addr" json:"redis_addr"`
	RedisPassword string `toml:"redis_password" json:"redis_password"`
	RedisDB       int    `toml:"redis_db" json:"redis_db"`

	// Watch reloads when another process writes the store file.
	Watch bool `toml:"watch" json:"watch"`
}

// DeliveryConfig tunes message delivery.
type DeliveryConfig struct {
	BackgroundProcessing bool `toml:"background_processing" json:"background_processing"`
	WebSearch            bool `toml:"web_search" json:"web_search"`
	// HistoryWindow is how many prior messages go with each request.
	HistoryWindow        int `toml:"history_window" json:"history_window"`
	ActivityWindowSecs   int `toml:"activity_window_secs" json:"activity_window_secs"`
	AnalysisCacheTTLMins int `toml:"analysis_cache_ttl_mins" json:"analysis_cache_ttl_mins"`
}

// TypingConfig controls the incremental reveal of replies.
type TypingConfig struct {
	Enabled            bool `toml:"enabled" json:"enabled"`
	CharDelayMs        int  `toml:"char_delay_ms" json:"char_delay_ms"`
	CompactCharDelayMs int  `toml:"compact_char_delay_ms" json:"compact_char_delay_ms"`
	// Compact is the small-terminal profile: slower typing, longer dictation silence.
	Compact bool `toml:"compact" json:"compact"`
}

// UIConfig holds terminal presentation settings.
type UIConfig struct {
	// Theme is auto, dark, light or notty.
	Theme    string `toml:"theme" json:"theme"`
	WordWrap int    `toml:"word_wrap" json:"word_wrap"`
}

// LoggingConfig controls the rotating log file.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level"`
	File       string `toml:"file" json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		User:    UserConfig{Name: ""},
		Backend: BackendConfig{
			URL:               "http://localhost:3000",
			ChatTimeoutSecs:   60,
			ProbeTimeoutSecs:  10,
			ProbeIntervalSecs: 15,
			MaxFailures:       5,
			MaxTokens:         3000,
			Temperature:       0.7,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Store: StoreConfig{
			Kind:      "sqlite",
			Namespace: "edutrack",
			RedisAddr: "localhost:6379",
		},
		Delivery: DeliveryConfig{
			BackgroundProcessing: true,
			WebSearch:            false,
			HistoryWindow:        10,
			ActivityWindowSecs:   30,
			AnalysisCacheTTLMins: 60,
		},
		Typing: TypingConfig{
			Enabled:            true,
			CharDelayMs:        10,
			CompactCharDelayMs: 20,
		},
		UI: UIConfig{
			Theme:    "auto",
			WordWrap: 100,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// ChatTimeout returns the chat request deadline.
func (b BackendConfig) ChatTimeout() time.Duration {
	return time.Duration(b.ChatTimeoutSecs) * time.Second
}

// ProbeTimeout returns the per-endpoint health check deadline.
func (b BackendConfig) ProbeTimeout() time.Duration {
	return time.Duration(b.ProbeTimeoutSecs) * time.Second
}

// ProbeInterval returns the delay between scheduled health checks.
func (b BackendConfig) ProbeInterval() time.Duration {
	return time.Duration(b.ProbeIntervalSecs) * time.Second
}

// ActivityWindow returns how recent an interaction must be to count as active.
func (d DeliveryConfig) ActivityWindow() time.Duration {
	return time.Duration(d.ActivityWindowSecs) * time.Second
}

// AnalysisCacheTTL returns how long attachment analyses are reused.
func (d DeliveryConfig) AnalysisCacheTTL() time.Duration {
	return time.Duration(d.AnalysisCacheTTLMins) * time.Minute
}

// CharDelay returns the per-character typing budget for the active profile.
func (t TypingConfig) CharDelay() time.Duration {
	if t.Compact {
		return time.Duration(t.CompactCharDelayMs) * time.Millisecond
	}
	return time.Duration(t.CharDelayMs) * time.Millisecond
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the edutrack directory, honouring EDUTRACK_HOME.
func ConfigDir() (string, error) {
	if dir := os.Getenv("EDUTRACK_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".edutrack"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir creates the config directory if needed.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o700)
}

// ensureSecurePermissions tightens config files to 0600; they may hold a
// redis password.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		if err := os.Chmod(path, 0o600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config file (TOML first, then JSON) and falls back to
// defaults. Environment overrides are applied last. When a file exists but
// cannot be decoded, the defaults are returned together with the load error.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
				cfg = Default()
			} else {
				return finish(cfg)
			}
		}
	}

	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
				cfg = Default()
			} else {
				return finish(cfg)
			}
		}
	}

	cfg, err := finish(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, loadErr
}

func finish(cfg *Config) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads a specific file (by extension) with overrides and
// validation applied.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

// fillDefaults fills missing string values that decoding may have cleared.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = defaults.Backend.URL
	}
	if cfg.Store.Kind == "" {
		cfg.Store.Kind = defaults.Store.Kind
	}
	if cfg.Store.Namespace == "" {
		cfg.Store.Namespace = defaults.Store.Namespace
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	return nil
}

// SetDefaults replaces zero or out-of-range numeric values with defaults
// and resolves paths that depend on the config directory.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Backend.ChatTimeoutSecs <= 0 {
		c.Backend.ChatTimeoutSecs = d.Backend.ChatTimeoutSecs
	}
	if c.Backend.ProbeTimeoutSecs <= 0 {
		c.Backend.ProbeTimeoutSecs = d.Backend.ProbeTimeoutSecs
	}
	if c.Backend.ProbeIntervalSecs <= 0 {
		c.Backend.ProbeIntervalSecs = d.Backend.ProbeIntervalSecs
	}
	if c.Backend.MaxFailures <= 0 {
		c.Backend.MaxFailures = d.Backend.MaxFailures
	}
	if c.Backend.MaxTokens <= 0 {
		c.Backend.MaxTokens = d.Backend.MaxTokens
	}
	if c.Backend.RequestsPerSecond <= 0 {
		c.Backend.RequestsPerSecond = d.Backend.RequestsPerSecond
	}
	if c.Backend.Burst <= 0 {
		c.Backend.Burst = d.Backend.Burst
	}
	if c.Delivery.HistoryWindow <= 0 {
		c.Delivery.HistoryWindow = d.Delivery.HistoryWindow
	}
	if c.Delivery.ActivityWindowSecs <= 0 {
		c.Delivery.ActivityWindowSecs = d.Delivery.ActivityWindowSecs
	}
	if c.Delivery.AnalysisCacheTTLMins <= 0 {
		c.Delivery.AnalysisCacheTTLMins = d.Delivery.AnalysisCacheTTLMins
	}
	if c.Typing.CharDelayMs <= 0 {
		c.Typing.CharDelayMs = d.Typing.CharDelayMs
	}
	if c.Typing.CompactCharDelayMs <= 0 {
		c.Typing.CompactCharDelayMs = d.Typing.CompactCharDelayMs
	}
	if c.UI.WordWrap <= 0 {
		c.UI.WordWrap = d.UI.WordWrap
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = d.Logging.MaxSizeMB
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = d.Logging.MaxBackups
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = d.Logging.MaxAgeDays
	}

	dir, err := ConfigDir()
	if err != nil {
		return
	}
	if c.Store.Path == "" {
		switch c.Store.Kind {
		case "bolt":
			c.Store.Path = filepath.Join(dir, "edutrack.bolt")
		case "sqlite":
			c.Store.Path = filepath.Join(dir, "edutrack.db")
		}
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(dir, "logs", "edutrack.log")
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# edutrack configuration file\n")
	b.WriteString("# Environment variables (EDUTRACK_*) override these values.\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is a single invalid field.
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

// Validate checks every field and returns ValidateErrors, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if err := ValidateBackendURL(c.Backend.URL); err != nil {
		errs = append(errs, ValidationError{Field: "backend.url", Message: err.Error()})
	}
	if c.Backend.Temperature < 0 || c.Backend.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "backend.temperature",
			Message: fmt.Sprintf("%.2f out of range, must be between 0 and 2", c.Backend.Temperature),
		})
	}
	if c.Backend.ProbeTimeoutSecs > c.Backend.ProbeIntervalSecs*4 {
		errs = append(errs, ValidationError{
			Field:   "backend.probe_timeout_secs",
			Message: "probe timeout is far longer than the probe interval",
		})
	}

	validKinds := map[string]bool{"sqlite": true, "bolt": true, "redis": true, "memory": true}
	if !validKinds[strings.ToLower(c.Store.Kind)] {
		errs = append(errs, ValidationError{
			Field:   "store.kind",
			Message: fmt.Sprintf("invalid store '%s', must be one of: sqlite, bolt, redis, memory", c.Store.Kind),
		})
	}
	if strings.EqualFold(c.Store.Kind, "redis") && c.Store.RedisAddr == "" {
		errs = append(errs, ValidationError{Field: "store.redis_addr", Message: "required for the redis store"})
	}
	if c.Store.RedisDB < 0 {
		errs = append(errs, ValidationError{Field: "store.redis_db", Message: "must not be negative"})
	}

	validThemes := map[string]bool{"auto": true, "dark": true, "light": true, "notty": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light, notty", c.UI.Theme),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
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

// ValidateBackendURL accepts absolute http(s) URLs with a host.
func ValidateBackendURL(raw string) error {
	if raw == "" {
		return errors.New("backend URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q, must be http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL has no host")
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// LoadDotEnv exports the variables of ConfigDir/.env that are not already
// set in the environment. A missing file is not an error.
func LoadDotEnv() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}

// ApplyEnvOverrides applies EDUTRACK_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if user := os.Getenv("EDUTRACK_USER"); user != "" {
		c.User.Name = user
	}
	if u := os.Getenv("EDUTRACK_BACKEND_URL"); u != "" {
		c.Backend.URL = u
	}
	if kind := os.Getenv("EDUTRACK_STORE"); kind != "" {
		c.Store.Kind = kind
	}
	if path := os.Getenv("EDUTRACK_STORE_PATH"); path != "" {
		c.Store.Path = path
	}
	if addr := os.Getenv("EDUTRACK_REDIS_ADDR"); addr != "" {
		c.Store.RedisAddr = addr
	}
	if v := os.Getenv("EDUTRACK_BACKGROUND"); v != "" {
		c.Delivery.BackgroundProcessing = parseBool(v)
	}
	if v := os.Getenv("EDUTRACK_WEB_SEARCH"); v != "" {
		c.Delivery.WebSearch = parseBool(v)
	}
	if level := os.Getenv("EDUTRACK_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if v := os.Getenv("EDUTRACK_MOCK"); v != "" {
		c.Backend.Mock = parseBool(v)
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get returns a value by dot-notation key such as "backend.url".
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value by dot-notation key. String input is converted to the
// field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName turns snake_case or kebab-case into a Go field name.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var result strings.Builder
	for _, part := range parts {
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(strings.ToLower(part[1:]))
	}
	return result.String()
}

func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %w", err)
			}
			field.SetInt(n)
			return nil
		case reflect.Float64:
			f, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %w", err)
			}
			field.SetFloat(f)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every settable key in dot notation.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		section := f.Tag.Get("toml")
		if f.Type.Kind() != reflect.Struct {
			keys = append(keys, section)
			continue
		}
		for j := 0; j < f.Type.NumField(); j++ {
			keys = append(keys, section+"."+f.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// String renders the config as JSON with the redis password redacted.
func (c *Config) String() string {
	safe := *c
	if safe.Store.RedisPassword != "" {
		safe.Store.RedisPassword = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first use.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
			cfg.SetDefaults()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting clears the global config between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
