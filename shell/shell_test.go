package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/martinemde/mcpagent/agentloop"
	"github.com/martinemde/mcpagent/toolhost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu      sync.Mutex
	queries []string
	answer  func(ctx context.Context, query string) (*agentloop.Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, query string) (*agentloop.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.answer != nil {
		return f.answer(ctx, query)
	}
	return &agentloop.Result{Query: query, Answer: "answer to " + query}, nil
}

func newTestShell(runner Runner, input string, opts ...Option) (*Shell, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	base := []Option{
		WithInput(strings.NewReader(input)),
		WithOutput(&out),
		WithErrorOutput(&errOut),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithInterrupt(func(ctx context.Context) (context.Context, context.CancelFunc) {
			return context.WithCancel(ctx)
		}),
	}
	return New(runner, append(base, opts...)...), &out, &errOut
}

func TestShellAnswersUntilEOF(t *testing.T) {
	runner := &fakeRunner{}
	sh, out, _ := newTestShell(runner, "first question\n\n   \nsecond question\n")

	require.NoError(t, sh.Run(context.Background()))
	assert.Equal(t, []string{"first question", "second question"}, runner.queries)
	assert.Equal(t, "answer to first question\nanswer to second question\n", out.String())
}

func TestShellQuit(t *testing.T) {
	for _, word := range []string{"quit", "QUIT", "  Quit  "} {
		t.Run(word, func(t *testing.T) {
			runner := &fakeRunner{}
			sh, _, _ := newTestShell(runner, "one\n"+word+"\ntwo\n")
			require.NoError(t, sh.Run(context.Background()))
			assert.Equal(t, []string{"one"}, runner.queries)
		})
	}
}

func TestShellPrompt(t *testing.T) {
	sh, out, _ := newTestShell(&fakeRunner{}, "hi\n", WithPrompt(true))
	require.NoError(t, sh.Run(context.Background()))
	assert.Contains(t, out.String(), "'quit' to exit")
	assert.Equal(t, 2, strings.Count(out.String(), "Query: "), "prompt before each read")
}

func TestShellNoPromptForPipes(t *testing.T) {
	sh, out, _ := newTestShell(&fakeRunner{}, "hi\n")
	require.NoError(t, sh.Run(context.Background()))
	assert.NotContains(t, out.String(), "Query: ")
}

func TestShellReportsErrorsAndContinues(t *testing.T) {
	runner := &fakeRunner{answer: func(ctx context.Context, q string) (*agentloop.Result, error) {
		if q == "bad" {
			return nil, &agentloop.ModelUnreachableError{Stage: agentloop.StageFirstReply, Cause: errors.New("connection refused")}
		}
		return &agentloop.Result{Answer: "ok"}, nil
	}}
	sh, out, errOut := newTestShell(runner, "bad\ngood\n")

	require.NoError(t, sh.Run(context.Background()))
	assert.Equal(t, []string{"bad", "good"}, runner.queries)
	assert.Contains(t, errOut.String(), "Error: model unreachable during first_reply")
	assert.Equal(t, "ok\n", out.String())
}

func TestShellStopsWhenToolHostGone(t *testing.T) {
	gone := &toolhost.UnavailableError{Op: "call_tool", Cause: errors.New("broken pipe")}
	runner := &fakeRunner{answer: func(context.Context, string) (*agentloop.Result, error) {
		return nil, gone
	}}
	sh, _, errOut := newTestShell(runner, "one\ntwo\n")

	err := sh.Run(context.Background())
	require.ErrorIs(t, err, gone)
	assert.Equal(t, []string{"one"}, runner.queries)
	assert.Contains(t, errOut.String(), "tool host unavailable")
}

func TestShellInterruptCancelsOnlyTheQuery(t *testing.T) {
	runner := &fakeRunner{answer: func(ctx context.Context, q string) (*agentloop.Result, error) {
		if q == "slow" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &agentloop.Result{Answer: "fast answer"}, nil
	}}
	interrupt := func(ctx context.Context) (context.Context, context.CancelFunc) {
		qctx, cancel := context.WithCancel(ctx)
		cancel()
		return qctx, cancel
	}
	sh, out, errOut := newTestShell(runner, "slow\nfast\n", WithInterrupt(interrupt))

	require.NoError(t, sh.Run(context.Background()))
	assert.Equal(t, []string{"slow", "fast"}, runner.queries)
	assert.Contains(t, errOut.String(), "Query interrupted.")
	assert.Equal(t, "fast answer\n", out.String())
}

func TestShellStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{answer: func(context.Context, string) (*agentloop.Result, error) {
		cancel()
		return nil, context.Canceled
	}}
	pr, pw := io.Pipe()
	defer pw.Close()
	sh, _, errOut := newTestShell(runner, "")
	sh.in = pr

	go func() { _, _ = pw.Write([]byte("one\n")) }()

	require.NoError(t, sh.Run(ctx))
	assert.Equal(t, []string{"one"}, runner.queries)
	assert.Empty(t, errOut.String())
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestShellInputError(t *testing.T) {
	sh, _, _ := newTestShell(&fakeRunner{}, "")
	sh.in = errReader{}
	assert.ErrorContains(t, sh.Run(context.Background()), "disk on fire")
}
