// Package shell is the interactive console: it reads one query per line,
// runs it, and prints the answer until the user types quit or input ends.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/martinemde/mcpagent/agentloop"
	"github.com/martinemde/mcpagent/toolhost"
	"github.com/mattn/go-isatty"
)

const (
	promptText   = "\nQuery: "
	quitCommand  = "quit"
	maxLineBytes = 1 << 20
)

// Runner answers one query. *agentloop.Session satisfies it.
type Runner interface {
	Run(ctx context.Context, query string) (*agentloop.Result, error)
}

// InterruptFunc derives the context one query runs under. The returned
// stop function is called when the query ends.
type InterruptFunc func(ctx context.Context) (context.Context, context.CancelFunc)

// Option configures a Shell.
type Option func(*Shell)

// WithInput sets the query source. Defaults to os.Stdin.
func WithInput(r io.Reader) Option {
	return func(s *Shell) { s.in = r }
}

// WithOutput sets where answers are printed. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Shell) { s.out = w }
}

// WithErrorOutput sets where query errors are reported. Defaults to os.Stderr.
func WithErrorOutput(w io.Writer) Option {
	return func(s *Shell) { s.errOut = w }
}

// WithLogger sets the shell logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Shell) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPrompt forces the "Query: " prompt on or off. By default it is shown
// only when the input is a terminal.
func WithPrompt(show bool) Option {
	return func(s *Shell) { s.prompt = &show }
}

// WithInterrupt replaces the per-query interrupt handling, which by
// default cancels the running query on SIGINT.
func WithInterrupt(fn InterruptFunc) Option {
	return func(s *Shell) { s.interrupt = fn }
}

// Shell is a line-oriented read-eval-print loop over a Runner.
type Shell struct {
	runner    Runner
	in        io.Reader
	out       io.Writer
	errOut    io.Writer
	logger    *slog.Logger
	prompt    *bool
	interrupt InterruptFunc
}

// New creates a Shell around runner.
func New(runner Runner, opts ...Option) *Shell {
	s := &Shell{
		runner: runner,
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		logger: slog.Default(),
		interrupt: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Shell) showPrompt() bool {
	if s.prompt != nil {
		return *s.prompt
	}
	f, ok := s.in.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Run reads queries until quit, end of input, or ctx ends. A failed query
// is reported and the loop continues, except when the tool host is gone:
// that error is returned.
func (s *Shell) Run(ctx context.Context) error {
	prompt := s.showPrompt()
	if prompt {
		fmt.Fprintln(s.out, "Type your queries or 'quit' to exit.")
	}
	s.logger.Info("shell started", slog.Bool("interactive", prompt))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go s.scan(ctx, lines, scanErr)

	for {
		if prompt {
			fmt.Fprint(s.out, promptText)
		}

		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return fmt.Errorf("reading input: %w", err)
				}
				s.logger.Info("input closed")
				return nil
			}
			line = l
		}

		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}
		if strings.EqualFold(query, quitCommand) {
			s.logger.Info("quit requested")
			return nil
		}

		if err := s.runQuery(ctx, query); err != nil {
			return err
		}
	}
}

func (s *Shell) scan(ctx context.Context, lines chan<- string, scanErr chan<- error) {
	defer close(lines)
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			scanErr <- nil
			return
		}
	}
	scanErr <- scanner.Err()
}

// runQuery returns an error only when the shell must stop.
func (s *Shell) runQuery(ctx context.Context, query string) error {
	qctx, stop := s.interrupt(ctx)
	res, err := s.runner.Run(qctx, query)
	stop()

	if err == nil {
		fmt.Fprintln(s.out, res.Answer)
		return nil
	}

	var unavailable *toolhost.UnavailableError
	switch {
	case errors.As(err, &unavailable):
		s.logger.Error("tool host unavailable", slog.Any("error", err))
		fmt.Fprintf(s.errOut, "Error: %v\n", err)
		return err
	case ctx.Err() != nil:
		return nil
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(s.errOut, "Query interrupted.")
	default:
		s.logger.Error("query failed", slog.Any("error", err))
		fmt.Fprintf(s.errOut, "Error: %v\n", err)
	}
	return nil
}
