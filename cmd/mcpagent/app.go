package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/martinemde/mcpagent/agentloop"
	"github.com/martinemde/mcpagent/config"
	"github.com/martinemde/mcpagent/toolhost"
	"github.com/martinemde/mcpagent/unifiedllm"
	"github.com/spf13/cobra"
)

// app is the wired process: gateway, tool host and session.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	llm     *unifiedllm.Client
	tools   *toolhost.Client
	session *agentloop.Session

	shutdownTracing func(context.Context) error
}

// loadConfig layers defaults, the config file, the environment and the
// flags the user actually set.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	flags := cmd.Flags()
	return config.Load(opts.configPath, config.WithOverride(func(cfg *config.Config) {
		if flags.Changed("provider") {
			cfg.Model.Provider = opts.provider
		}
		if flags.Changed("model") {
			cfg.Model.Name = opts.model
		}
		if flags.Changed("base-url") {
			cfg.Model.BaseURL = opts.baseURL
		}
		if flags.Changed("tool-server") {
			cfg.ToolServer.Transport = opts.toolServer
		}
		if flags.Changed("max-tool-rounds") {
			cfg.Loop.MaxToolRounds = opts.maxToolRounds
		}
		if flags.Changed("log-level") {
			cfg.Log.Level = opts.logLevel
		}
		if flags.Changed("log-format") {
			cfg.Log.Format = opts.logFormat
		}
		if flags.Changed("metrics-addr") {
			cfg.Metrics.Addr = opts.metricsAddr
		}
	}))
}

// buildClient creates the completion gateway for the configured provider.
func buildClient(cfg *config.Config, logger *slog.Logger) (*unifiedllm.Client, error) {
	var adapter unifiedllm.ProviderAdapter
	switch cfg.Model.Provider {
	case config.ProviderOpenAI:
		adapter = unifiedllm.NewOpenAIAdapter(cfg.Model.BaseURL, cfg.Model.APIKey, cfg.Model.Name,
			unifiedllm.WithTimeout(cfg.Model.Timeout))
	case config.ProviderGollm:
		ga, err := unifiedllm.NewGollmAdapter(cfg.Model.Backend, cfg.Model.APIKey,
			unifiedllm.WithModel(cfg.Model.Name))
		if err != nil {
			return nil, err
		}
		adapter = ga
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Model.Provider)
	}

	middleware := []unifiedllm.Middleware{
		unifiedllm.LoggingMiddleware(logger),
		unifiedllm.MetricsMiddleware(),
		unifiedllm.TracingMiddleware(),
	}
	if cfg.Model.RateLimitPerMin > 0 {
		middleware = append(middleware,
			unifiedllm.RateLimitMiddleware(unifiedllm.NewPerMinuteLimiter(cfg.Model.RateLimitPerMin)))
	}

	return unifiedllm.NewClient(
		unifiedllm.WithProvider(cfg.Model.Provider, adapter),
		unifiedllm.WithDefaultProvider(cfg.Model.Provider),
		unifiedllm.WithMiddleware(middleware...),
	), nil
}

func dialTools(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*toolhost.Client, error) {
	hc := cfg.ToolHostConfig(os.Stderr, logger)
	hc.ClientVersion = version
	tools, err := toolhost.Dial(ctx, hc)
	if err != nil {
		return nil, err
	}
	info := tools.ServerInfo()
	logger.Info("connected to tool server",
		slog.String("transport", cfg.ToolServer.Transport),
		slog.String("server", info.Name),
		slog.String("server_version", info.Version),
	)
	return tools, nil
}

// setup loads configuration and connects every component. On error,
// everything already opened is closed.
func setup(ctx context.Context, cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger(cmd.ErrOrStderr())
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	if err := a.connect(ctx, cmd.ErrOrStderr(), opts.trace); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) connect(ctx context.Context, traceOut io.Writer, trace bool) error {
	var err error
	if trace {
		a.shutdownTracing, err = setupTracing(traceOut)
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
	}

	a.llm, err = buildClient(a.cfg, a.logger)
	if err != nil {
		return err
	}

	a.tools, err = dialTools(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}

	sc := a.cfg.SessionConfig()
	a.session = agentloop.NewSession(a.llm, a.tools, &sc, agentloop.WithLogger(a.logger))
	return a.session.Start(ctx)
}

// drainEvents logs session events at debug level until the session closes.
func (a *app) drainEvents() {
	for ev := range a.session.Events() {
		attrs := []any{
			slog.String("kind", string(ev.Kind)),
			slog.String("query_id", ev.QueryID),
		}
		for k, v := range ev.Data {
			attrs = append(attrs, slog.Any(k, v))
		}
		a.logger.Debug("session event", attrs...)
	}
}

func (a *app) close() {
	var errs []error
	if a.session != nil {
		a.session.Close()
	}
	if a.tools != nil {
		errs = append(errs, a.tools.Close())
	}
	if a.llm != nil {
		errs = append(errs, a.llm.Close())
	}
	if a.shutdownTracing != nil {
		errs = append(errs, a.shutdownTracing(context.Background()))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Debug("shutdown", slog.Any("error", err))
	}
}
