package toolhost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	defaultClientName     = "mcpagent"
	defaultClientVersion  = "dev"
	defaultConnectTimeout = 30 * time.Second
	healthCheckTimeout    = 5 * time.Second
)

// Config describes how to reach the tool server.
type Config struct {
	// Transport is a command line ("python ./search_mcp.py"), a stdio://
	// command, or an http(s)/sse endpoint. See buildTransport.
	Transport string

	Dir    string    // working directory of a stdio subprocess
	Env    []string  // extra KEY=VALUE pairs for a stdio subprocess
	Stderr io.Writer // subprocess stderr; discarded when nil

	ClientName     string
	ClientVersion  string
	ConnectTimeout time.Duration

	Logger *slog.Logger
}

// ToolDescriptor is what the tool server advertises for one tool.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// ServerInfo identifies the tool server after the handshake.
type ServerInfo struct {
	Name    string
	Version string
}

// Client is a live MCP session with one tool server.
type Client struct {
	session *mcp.ClientSession
	info    ServerInfo
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Dial starts or connects to the tool server and completes the MCP
// initialize handshake. Any failure is an *UnavailableError.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.ClientName
	if name == "" {
		name = defaultClientName
	}
	version := cfg.ClientVersion
	if version == "" {
		version = defaultClientVersion
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	transport, err := transportBuilder(ctx, cfg)
	if err != nil {
		return nil, &UnavailableError{Op: "dial", Cause: fmt.Errorf("build transport: %w", err)}
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	impl := mcp.NewClient(&mcp.Implementation{Name: name, Version: version}, nil)
	session, err := impl.Connect(connectCtx, transport, nil)
	if err != nil {
		return nil, &UnavailableError{Op: "dial", Cause: err}
	}

	c := &Client{session: session, logger: logger}
	if res := session.InitializeResult(); res != nil && res.ServerInfo != nil {
		c.info = ServerInfo{Name: res.ServerInfo.Name, Version: res.ServerInfo.Version}
	}
	logger.Info("tool server connected",
		slog.String("server", c.info.Name),
		slog.String("server_version", c.info.Version),
	)
	return c, nil
}

// ServerInfo returns the peer identity reported during the handshake.
func (c *Client) ServerInfo() ServerInfo {
	return c.info
}

// ListTools drains the server's paginated tool list.
func (c *Client) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	if err := c.checkOpen("list_tools"); err != nil {
		return nil, err
	}
	var tools []ToolDescriptor
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, &UnavailableError{Op: "list_tools", Cause: err}
		}
		tools = append(tools, toToolDescriptor(tool))
	}
	return tools, nil
}

// CallTool invokes the named tool and returns its text output. A failure
// confined to this call is an *ExecutionError; a dead session is an
// *UnavailableError.
func (c *Client) CallTool(ctx context.Context, name string, params map[string]any) (string, error) {
	if err := c.checkOpen("call_tool"); err != nil {
		return "", err
	}
	if params == nil {
		params = map[string]any{}
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: params})
	if err != nil {
		if ctx.Err() == nil && !c.healthy(ctx) {
			return "", &UnavailableError{Op: "call_tool", Cause: err}
		}
		return "", &ExecutionError{Name: name, Cause: err}
	}

	text := resultText(result)
	if result.IsError {
		return "", &ExecutionError{Name: name, Message: text}
	}
	return text, nil
}

// healthy pings the server to tell a failed call from a dead session.
func (c *Client) healthy(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), healthCheckTimeout)
	defer cancel()
	if err := c.session.Ping(pingCtx, nil); err != nil {
		c.logger.Warn("tool server health check failed", slog.Any("error", err))
		return false
	}
	return true
}

func (c *Client) checkOpen(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.session == nil {
		return &UnavailableError{Op: op, Cause: errors.New("session closed")}
	}
	return nil
}

// Close ends the session and, for stdio transports, reaps the subprocess.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.session == nil {
		return nil
	}
	c.closed = true
	return c.session.Close()
}

func toToolDescriptor(tool *mcp.Tool) ToolDescriptor {
	if tool == nil {
		return ToolDescriptor{}
	}
	desc := ToolDescriptor{Name: tool.Name, Description: tool.Description}
	if tool.InputSchema != nil {
		if raw, err := json.Marshal(tool.InputSchema); err == nil {
			desc.InputSchema = raw
		}
	}
	return desc
}

// resultText joins text parts with newlines. Non-text parts are rendered as
// their JSON encoding.
func resultText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	parts := make([]string, 0, len(res.Content))
	for _, content := range res.Content {
		switch v := content.(type) {
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				continue
			}
			parts = append(parts, string(raw))
		}
	}
	return strings.Join(parts, "\n")
}
