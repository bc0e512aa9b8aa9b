package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/toolscript/script"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Default values.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultHTTPAddr  = "127.0.0.1:8080"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvLogLevel      = "TOOLSCRIPT_LOG_LEVEL"
	EnvLogFormat     = "TOOLSCRIPT_LOG_FORMAT"
	EnvPreset        = "TOOLSCRIPT_PRESET"
	EnvTimeout       = "TOOLSCRIPT_TIMEOUT"
	EnvMaxOperations = "TOOLSCRIPT_MAX_OPERATIONS"
	EnvMaxToolCalls  = "TOOLSCRIPT_MAX_TOOL_CALLS"
	EnvHTTPAddr      = "TOOLSCRIPT_HTTP_ADDR"
)

// Config is the file-level configuration shared by the CLI and servers.
type Config struct {
	Log        LogConfig    `toml:"log" yaml:"log"`
	Limits     LimitsConfig `toml:"limits" yaml:"limits"`
	Accounting string       `toml:"accounting" yaml:"accounting"`
	HTTP       HTTPConfig   `toml:"http" yaml:"http"`
	Tools      []ToolConfig `toml:"tools" yaml:"tools"`
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // text or json
}

// HTTPConfig configures the HTTP API listener.
type HTTPConfig struct {
	Addr         string   `toml:"addr" yaml:"addr"`
	AllowOrigins []string `toml:"allow_origins" yaml:"allow_origins"`
}

// LimitsConfig is a preset plus optional overrides. Unset fields keep the
// preset's value.
type LimitsConfig struct {
	Preset        string  `toml:"preset" yaml:"preset"`
	MaxOperations *uint64 `toml:"max_operations" yaml:"max_operations"`
	MaxToolCalls  *int    `toml:"max_tool_calls" yaml:"max_tool_calls"`
	Timeout       string  `toml:"timeout" yaml:"timeout"`                 // e.g. "250ms"
	MaxStringSize string  `toml:"max_string_size" yaml:"max_string_size"` // e.g. "10MB"
	MaxArraySize  *int    `toml:"max_array_size" yaml:"max_array_size"`
	MaxMapSize    *int    `toml:"max_map_size" yaml:"max_map_size"`
}

// ToolConfig declares a shell-command tool registered at startup.
type ToolConfig struct {
	Name        string            `toml:"name" yaml:"name"`
	Description string            `toml:"description" yaml:"description"`
	Command     string            `toml:"command" yaml:"command"`
	Timeout     string            `toml:"timeout" yaml:"timeout"`
	Dir         string            `toml:"dir" yaml:"dir"`
	Env         map[string]string `toml:"env" yaml:"env"`
	Tags        []string          `toml:"tags" yaml:"tags"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:        LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Limits:     LimitsConfig{Preset: "default"},
		Accounting: script.AccountingShared.String(),
		HTTP:       HTTPConfig{Addr: DefaultHTTPAddr},
	}
}

// Load reads the file at path over the defaults. The format is chosen by
// extension: .toml, .yaml or .yml. An empty path returns the defaults.
// Environment overrides are not applied; call ApplyEnv for that.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := loadTOML(path, &cfg); err != nil {
			return Config{}, err
		}
	case ".yaml", ".yml":
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("%w: unsupported config format %q", ErrInvalid, filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadTOML overlays only the keys present in the file.
func loadTOML(path string, cfg *Config) error {
	var raw Config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.TrimSpace(raw.Log.Format)
	}
	if meta.IsDefined("limits") {
		preset := cfg.Limits.Preset
		cfg.Limits = raw.Limits
		if !meta.IsDefined("limits", "preset") {
			cfg.Limits.Preset = preset
		}
	}
	if meta.IsDefined("accounting") {
		cfg.Accounting = strings.TrimSpace(raw.Accounting)
	}
	if meta.IsDefined("http", "addr") {
		cfg.HTTP.Addr = strings.TrimSpace(raw.HTTP.Addr)
	}
	if meta.IsDefined("http", "allow_origins") {
		cfg.HTTP.AllowOrigins = raw.HTTP.AllowOrigins
	}
	if meta.IsDefined("tools") {
		cfg.Tools = raw.Tools
	}
	return nil
}

// loadYAML decodes over the defaults; absent keys keep their value.
func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from TOOLSCRIPT_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok {
		c.Log.Format = v
	}
	if v, ok := lookup(EnvPreset); ok {
		c.Limits.Preset = v
	}
	if v, ok := lookup(EnvTimeout); ok {
		c.Limits.Timeout = v
	}
	if v, ok := lookup(EnvMaxOperations); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, EnvMaxOperations, err)
		}
		c.Limits.MaxOperations = &n
	}
	if v, ok := lookup(EnvMaxToolCalls); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, EnvMaxToolCalls, err)
		}
		c.Limits.MaxToolCalls = &n
	}
	if v, ok := lookup(EnvHTTPAddr); ok {
		c.HTTP.Addr = v
	}
	return c.Validate()
}

// Validate checks every field and reports the first problem found.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalid, c.Log.Format)
	}
	if _, err := script.ParseAccounting(c.Accounting); err != nil {
		return fmt.Errorf("%w: accounting: %v", ErrInvalid, err)
	}
	if _, err := c.Limits.Resolve(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Tools))
	for i, t := range c.Tools {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("%w: tools[%d]: name is required", ErrInvalid, i)
		}
		if strings.TrimSpace(t.Command) == "" {
			return fmt.Errorf("%w: tool %q: command is required", ErrInvalid, t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: tool %q declared twice", ErrInvalid, t.Name)
		}
		seen[t.Name] = true
		if _, err := t.TimeoutDuration(); err != nil {
			return err
		}
	}
	return nil
}

// Resolve applies the overrides to the named preset.
func (l LimitsConfig) Resolve() (script.ExecutionLimits, error) {
	limits, ok := script.Preset(l.Preset)
	if !ok {
		return script.ExecutionLimits{}, fmt.Errorf("%w: unknown limits preset %q (expected one of %s)",
			ErrInvalid, l.Preset, strings.Join(script.PresetNames(), ", "))
	}

	if l.MaxOperations != nil {
		limits = limits.WithMaxOperations(*l.MaxOperations)
	}
	if l.MaxToolCalls != nil {
		if *l.MaxToolCalls < 0 {
			return script.ExecutionLimits{}, fmt.Errorf("%w: max_tool_calls must not be negative", ErrInvalid)
		}
		limits = limits.WithMaxToolCalls(*l.MaxToolCalls)
	}
	if l.Timeout != "" {
		d, err := time.ParseDuration(l.Timeout)
		if err != nil {
			return script.ExecutionLimits{}, fmt.Errorf("%w: timeout: %v", ErrInvalid, err)
		}
		if d <= 0 {
			return script.ExecutionLimits{}, fmt.Errorf("%w: timeout must be positive", ErrInvalid)
		}
		limits = limits.WithTimeout(d)
	}
	if l.MaxStringSize != "" {
		n, err := units.FromHumanSize(l.MaxStringSize)
		if err != nil {
			return script.ExecutionLimits{}, fmt.Errorf("%w: max_string_size: %v", ErrInvalid, err)
		}
		limits = limits.WithMaxStringSize(int(n))
	}
	if l.MaxArraySize != nil {
		limits = limits.WithMaxArraySize(*l.MaxArraySize)
	}
	if l.MaxMapSize != nil {
		limits = limits.WithMaxMapSize(*l.MaxMapSize)
	}
	return limits, nil
}

// TimeoutDuration parses the tool's timeout. An empty value means none.
func (t ToolConfig) TimeoutDuration() (time.Duration, error) {
	if t.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(t.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: tool %q timeout: %v", ErrInvalid, t.Name, err)
	}
	return d, nil
}

// NewLogger builds a logrus logger from the log settings.
func (l LogConfig) NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()
	if err := l.Configure(logger); err != nil {
		return nil, err
	}
	return logger, nil
}

// Configure applies level and formatter to logger.
func (l LogConfig) Configure(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	logger.SetLevel(level)
	if l.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
