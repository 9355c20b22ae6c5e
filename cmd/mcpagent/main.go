// Command mcpagent answers questions with a chat model that can call tools
// served by an MCP tool server.
//
// Usage:
//
//	mcpagent                      # interactive console (same as "mcpagent chat")
//	mcpagent ask "What is MCP?"   # one query, answer on stdout
//	mcpagent tools                # list the tool server's tools
//
// Settings come from --config (or MCPAGENT_CONFIG), then MCPAGENT_*
// environment variables, then flags.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/martinemde/mcpagent/shell"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	if err := newRootCommand(&rootOptions{}).Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags shared by all commands.
type rootOptions struct {
	configPath    string
	provider      string
	model         string
	baseURL       string
	toolServer    string
	maxToolRounds int
	logLevel      string
	logFormat     string
	metricsAddr   string
	trace         bool
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:          "mcpagent",
		Short:        "Tool-using chat agent for MCP tool servers",
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "YAML config file (default $MCPAGENT_CONFIG)")
	f.StringVar(&opts.provider, "provider", "", "completion provider: openai or gollm")
	f.StringVar(&opts.model, "model", "", "model name")
	f.StringVar(&opts.baseURL, "base-url", "", "OpenAI-compatible endpoint base URL")
	f.StringVar(&opts.toolServer, "tool-server", "", "tool server command line or URL")
	f.IntVar(&opts.maxToolRounds, "max-tool-rounds", 0, "maximum tool calls per query")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.BoolVar(&opts.trace, "trace", false, "print OpenTelemetry spans to stderr")

	root.AddCommand(
		newChatCommand(opts),
		newAskCommand(opts),
		newToolsCommand(opts),
	)
	return root
}

func newChatCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Answer queries read from stdin until 'quit'",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts)
		},
	}
}

func newAskCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer a single query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, opts, strings.Join(args, " "), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func newToolsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools advertised by the tool server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTools(cmd, opts)
		},
	}
}

func runChat(cmd *cobra.Command, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		sh := shell.New(a.session,
			shell.WithInput(cmd.InOrStdin()),
			shell.WithOutput(cmd.OutOrStdout()),
			shell.WithErrorOutput(cmd.ErrOrStderr()),
			shell.WithLogger(a.logger),
		)
		return sh.Run(gctx)
	})
	if a.cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, a.cfg.Metrics.Addr, a.logger)
		})
	}
	g.Go(func() error {
		a.drainEvents()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// Closing the session ends the event stream.
		a.session.Close()
		return nil
	})

	return g.Wait()
}

func runAsk(cmd *cobra.Command, opts *rootOptions, query string, asJSON bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer a.close()
	go a.drainEvents()

	res, err := a.session.Run(ctx, query)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err = fmt.Fprintln(out, res.Answer)
	return err
}

func runTools(cmd *cobra.Command, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(cmd.ErrOrStderr())

	tools, err := dialTools(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer tools.Close()

	list, err := tools.ListTools(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, t := range list {
		desc, _, _ := strings.Cut(t.Description, "\n")
		fmt.Fprintf(w, "%s\t%s\n", t.Name, desc)
	}
	return w.Flush()
}
