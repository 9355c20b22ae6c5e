// Package config loads mcpagent settings from a YAML file, MCPAGENT_*
// environment variables and command-line flags, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/martinemde/mcpagent/agentloop"
	"github.com/martinemde/mcpagent/toolhost"
	"gopkg.in/yaml.v3"
)

// Providers understood by the gateway wiring in cmd/mcpagent.
const (
	ProviderOpenAI = "openai" // any OpenAI-compatible /chat/completions endpoint
	ProviderGollm  = "gollm"  // github.com/teilomillet/gollm backends
)

// Config is the full runtime configuration.
type Config struct {
	Model      ModelConfig      `yaml:"model"`
	ToolServer ToolServerConfig `yaml:"tool_server"`
	Loop       LoopConfig       `yaml:"loop"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ModelConfig selects the completion endpoint.
type ModelConfig struct {
	Provider string `yaml:"provider" env:"PROVIDER" validate:"oneof=openai gollm"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL"`
	APIKey   string `yaml:"api_key" env:"API_KEY"`
	Name     string `yaml:"name" env:"MODEL" validate:"required"`

	// Backend is the gollm provider name ("ollama", "openai", ...). Only
	// read when Provider is "gollm".
	Backend string `yaml:"backend" env:"BACKEND"`

	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT" validate:"gt=0"`

	// RateLimitPerMin caps completions per minute; 0 disables the limit.
	RateLimitPerMin int `yaml:"rate_limit_per_min" env:"RATE_LIMIT_PER_MIN" validate:"gte=0"`
}

// ToolServerConfig describes how to reach the MCP tool server.
type ToolServerConfig struct {
	// Transport is a command line for a stdio server or an http(s)/sse URL.
	Transport      string            `yaml:"transport" env:"TOOL_SERVER"`
	Dir            string            `yaml:"dir" env:"TOOL_SERVER_DIR"`
	Env            map[string]string `yaml:"env" env:"-"`
	ConnectTimeout time.Duration     `yaml:"connect_timeout" env:"CONNECT_TIMEOUT" validate:"gte=0"`
}

// LoopConfig tunes the orchestration loop.
type LoopConfig struct {
	MaxToolRounds      int  `yaml:"max_tool_rounds" env:"MAX_TOOL_ROUNDS" validate:"gte=1"`
	LegacyFinishMarker bool `yaml:"legacy_finish_marker" env:"LEGACY_FINISH_MARKER"`

	// ToolTimeout bounds one tool call. Zero, the default, waits for as
	// long as the tool server takes.
	ToolTimeout     time.Duration `yaml:"tool_timeout" env:"TOOL_TIMEOUT" validate:"gte=0"`
	ToolOutputChars int           `yaml:"tool_output_chars" env:"TOOL_OUTPUT_CHARS"`
	ToolOutputLines int           `yaml:"tool_output_lines" env:"TOOL_OUTPUT_LINES"`
	LoopDetection   bool          `yaml:"loop_detection" env:"LOOP_DETECTION"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"` // debug, info, warn, error
	Format string `yaml:"format" env:"LOG_FORMAT" validate:"oneof=text json"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"METRICS_ADDR"`
}

// Default returns the built-in configuration: a local Ollama endpoint
// and the bundled search server.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider: ProviderOpenAI,
			BaseURL:  "http://localhost:11434/v1",
			APIKey:   "ollama",
			Name:     "gpt-oss:20b",
			Backend:  "ollama",
			Timeout:  120 * time.Second,
		},
		ToolServer: ToolServerConfig{
			Transport:      "python ./search_mcp.py",
			ConnectTimeout: 30 * time.Second,
		},
		Loop: LoopConfig{
			MaxToolRounds:      10,
			LegacyFinishMarker: true,
			LoopDetection:      true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadOption adjusts how Load reads its layers.
type LoadOption func(*loadOptions)

type loadOptions struct {
	environ   map[string]string
	overrides []func(*Config)
}

// WithEnvironment replaces the process environment as the source of
// MCPAGENT_* overrides and of MCPAGENT_CONFIG.
func WithEnvironment(environ map[string]string) LoadOption {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// WithOverride applies fn after the environment and before validation.
// Command-line flags use it to take the highest precedence.
func WithOverride(fn func(*Config)) LoadOption {
	return func(o *loadOptions) {
		o.overrides = append(o.overrides, fn)
	}
}

// Load builds a Config from defaults, the YAML file at path, the
// environment and any overrides, then validates it. An empty path falls
// back to MCPAGENT_CONFIG; when both are empty no file is read.
func Load(path string, opts ...LoadOption) (*Config, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.environ == nil {
		o.environ = processEnviron()
	}

	if path == "" {
		path = o.environ[EnvConfigPath]
	}
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := cfg.Merge(data); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(o.environ); err != nil {
		return nil, err
	}
	for _, fn := range o.overrides {
		fn(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// Merge decodes YAML over the current values. Keys absent from data keep
// their current value; unknown keys are rejected.
func (c *Config) Merge(data []byte) error {
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if err := structValidator.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = append(errs, fieldError(fe))
		}
	}

	switch c.Model.Provider {
	case ProviderOpenAI:
		if c.Model.BaseURL == "" {
			errs = append(errs, errors.New("model.base_url is required for the openai provider"))
		}
	case ProviderGollm:
		if c.Model.Backend == "" {
			errs = append(errs, errors.New("model.backend is required for the gollm provider"))
		}
	}
	if strings.TrimSpace(c.ToolServer.Transport) == "" {
		errs = append(errs, errors.New("tool_server.transport is required"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			errs = append(errs, fmt.Errorf("metrics.addr: %w", err))
		}
	}

	return errors.Join(errs...)
}

// structValidator checks the validate tags and names fields by their YAML
// key so messages match the config file.
var structValidator = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}()

func fieldError(fe validator.FieldError) error {
	// Namespace is "Config.model.name"; drop the root type.
	_, key, _ := strings.Cut(fe.Namespace(), ".")
	rule := fe.Tag()
	if fe.Param() != "" {
		rule += " " + fe.Param()
	}
	return fmt.Errorf("%s: value %v does not satisfy %q", key, fe.Value(), rule)
}

// SessionConfig maps the loop settings onto an agentloop.SessionConfig.
func (c *Config) SessionConfig() agentloop.SessionConfig {
	sc := agentloop.DefaultSessionConfig()
	sc.Model = c.Model.Name
	sc.Provider = c.Model.Provider
	sc.MaxToolRounds = c.Loop.MaxToolRounds
	sc.LegacyFinishMarker = c.Loop.LegacyFinishMarker
	sc.ToolTimeout = c.Loop.ToolTimeout
	sc.EnableLoopDetection = c.Loop.LoopDetection
	sc.Truncation = agentloop.TruncationLimits{
		MaxChars: c.Loop.ToolOutputChars,
		MaxLines: c.Loop.ToolOutputLines,
	}
	return sc
}

// ToolHostConfig maps the tool server settings onto a toolhost.Config.
func (c *Config) ToolHostConfig(stderr io.Writer, logger *slog.Logger) toolhost.Config {
	keys := make([]string, 0, len(c.ToolServer.Env))
	for k := range c.ToolServer.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var env []string
	for _, k := range keys {
		env = append(env, k+"="+c.ToolServer.Env[k])
	}
	return toolhost.Config{
		Transport:      c.ToolServer.Transport,
		Dir:            c.ToolServer.Dir,
		Env:            env,
		Stderr:         stderr,
		ConnectTimeout: c.ToolServer.ConnectTimeout,
		Logger:         logger,
	}
}

// NewLogger builds the slog logger described by the log settings.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q must be debug, info, warn or error", s)
	}
	return level, nil
}
