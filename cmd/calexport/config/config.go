package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-calexport/export"
	"gopkg.in/yaml.v3"
)

// Config holds the calexport server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Render  RenderConfig  `yaml:"render"`
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	// Transport is "fiber" (go-router) or "http" (net/http).
	Transport    string `yaml:"transport"`
	BasePath     string `yaml:"base_path"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// EngineConfig selects and tunes the rendering engine.
type EngineConfig struct {
	// Profile forces local, constrained or remote. Empty means detect.
	Profile       string        `yaml:"profile"`
	ChromiumPath  string        `yaml:"chromium_path"`
	BundlePath    string        `yaml:"bundle_path"`
	Args          []string      `yaml:"args"`
	RemoteURL     string        `yaml:"remote_url"`
	Headless      bool          `yaml:"headless"`
	LaunchTimeout time.Duration `yaml:"launch_timeout"`
}

// RenderConfig bounds a single render.
type RenderConfig struct {
	QuiescenceTimeout time.Duration `yaml:"quiescence_timeout"`
	IdleWindow        time.Duration `yaml:"idle_window"`
	// MaxConcurrent caps engines running at once. Zero sizes from GOMAXPROCS.
	MaxConcurrent int  `yaml:"max_concurrent"`
	Sanitize      bool `yaml:"sanitize"`
}

// HistoryConfig controls render history storage.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`
	// DSN selects SQLite storage through bun. Empty keeps history in memory.
	DSN        string `yaml:"dsn"`
	MaxRecords int    `yaml:"max_records"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         "8080",
			Transport:    "fiber",
			BasePath:     "/api/export",
			MaxBodyBytes: 8 << 20,
		},
		Engine: EngineConfig{
			Headless:      true,
			LaunchTimeout: 30 * time.Second,
		},
		Render: RenderConfig{
			QuiescenceTimeout: export.DefaultQuiescenceTimeout,
			IdleWindow:        export.DefaultIdleWindow,
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxRecords: 1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from environment variables read through lookup.
// A nil lookup reads the process environment.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if cfg == nil {
		return nil
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) string {
		value, ok := lookup(key)
		if !ok {
			return ""
		}
		return strings.TrimSpace(value)
	}

	if port := get("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if host := get("HOST"); host != "" {
		cfg.Server.Host = host
	}
	if profile := get(export.ProfileOverrideEnv); profile != "" {
		cfg.Engine.Profile = profile
	}
	if path := get("EXPORT_CHROMIUM_PATH"); path != "" {
		cfg.Engine.ChromiumPath = path
	}
	if bundle := get("EXPORT_CHROMIUM_BUNDLE"); bundle != "" {
		cfg.Engine.BundlePath = bundle
	}
	if args := get("EXPORT_CHROMIUM_ARGS"); args != "" {
		cfg.Engine.Args = SplitCSV(args)
	}
	if url := get(export.RemoteURLEnv); url != "" {
		cfg.Engine.RemoteURL = url
	}
	if timeout := get("EXPORT_RENDER_TIMEOUT"); timeout != "" {
		parsed, err := parseDuration(timeout)
		if err != nil {
			return fmt.Errorf("EXPORT_RENDER_TIMEOUT: %w", err)
		}
		cfg.Render.QuiescenceTimeout = parsed
	}
	if limit := get("EXPORT_MAX_CONCURRENT"); limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil {
			return fmt.Errorf("EXPORT_MAX_CONCURRENT: %w", err)
		}
		cfg.Render.MaxConcurrent = parsed
	}
	if dsn := get("EXPORT_HISTORY_DSN"); dsn != "" {
		cfg.History.DSN = dsn
	}
	if sanitize := get("EXPORT_SANITIZE"); sanitize != "" {
		parsed, err := strconv.ParseBool(sanitize)
		if err != nil {
			return fmt.Errorf("EXPORT_SANITIZE: %w", err)
		}
		cfg.Render.Sanitize = parsed
	}
	if level := get("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch c.Server.Transport {
	case "fiber", "http":
	default:
		return fmt.Errorf("server.transport must be fiber or http, got %q", c.Server.Transport)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must not be negative")
	}
	if c.Engine.Profile != "" {
		class, ok := export.ParseProfileClass(c.Engine.Profile)
		if !ok {
			return fmt.Errorf("engine.profile %q is not one of local, constrained, remote", c.Engine.Profile)
		}
		if class == export.ProfileRemote && strings.TrimSpace(c.Engine.RemoteURL) == "" {
			return fmt.Errorf("engine.remote_url is required for the remote profile")
		}
	}
	if c.Engine.LaunchTimeout < 0 {
		return fmt.Errorf("engine.launch_timeout must not be negative")
	}
	if c.Render.QuiescenceTimeout < 0 || c.Render.IdleWindow < 0 {
		return fmt.Errorf("render timeouts must not be negative")
	}
	if c.Render.MaxConcurrent < 0 {
		return fmt.Errorf("render.max_concurrent must not be negative")
	}
	if c.History.MaxRecords < 0 {
		return fmt.Errorf("history.max_records must not be negative")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info or error, got %q", c.Logging.Level)
	}
	return nil
}

// Addr returns host:port.
func (c Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// SplitCSV splits a comma separated list, dropping blanks.
func SplitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// parseDuration accepts Go durations or plain milliseconds.
func parseDuration(value string) (time.Duration, error) {
	if ms, err := strconv.Atoi(value); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative duration %q", value)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", value)
	}
	return d, nil
}
