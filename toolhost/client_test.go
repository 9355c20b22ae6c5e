package toolhost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialListAndCall(t *testing.T) {
	client := setupTestClient(t)

	assert.Equal(t, "test-server", client.ServerInfo().Name)

	tools, err := client.ListTools(context.Background())
	require.NoError(t, err)
	names := map[string]ToolDescriptor{}
	for _, tool := range tools {
		names[tool.Name] = tool
	}
	require.Len(t, names, 3)
	require.Contains(t, names, "add")
	assert.Equal(t, "Add two numbers", names["add"].Description)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(names["add"].InputSchema, &schema))
	assert.Equal(t, "object", schema["type"])

	out, err := client.CallTool(context.Background(), "add", map[string]any{"a": 2, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, "4", out)
}

func TestCallToolJoinsTextParts(t *testing.T) {
	client := setupTestClient(t)

	out, err := client.CallTool(context.Background(), "multi", nil)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", out)
}

func TestCallToolErrorResult(t *testing.T) {
	client := setupTestClient(t)

	_, err := client.CallTool(context.Background(), "fail", map[string]any{})
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "fail", execErr.Name)
	assert.Contains(t, execErr.Error(), "search backend down")
}

func TestCallToolUnknownNameIsExecutionError(t *testing.T) {
	client := setupTestClient(t)

	_, err := client.CallTool(context.Background(), "missing", map[string]any{})
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "missing", execErr.Name)

	// The session survives a failed call.
	out, err := client.CallTool(context.Background(), "add", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, "3", out)
}

func TestCallAfterCloseIsUnavailable(t *testing.T) {
	client := setupTestClient(t)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err := client.CallTool(context.Background(), "add", nil)
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "call_tool", unavailable.Op)

	_, err = client.ListTools(context.Background())
	require.ErrorAs(t, err, &unavailable)
}

func TestDialTransportError(t *testing.T) {
	original := transportBuilder
	t.Cleanup(func() { transportBuilder = original })
	transportBuilder = func(context.Context, Config) (mcp.Transport, error) {
		return nil, fmt.Errorf("boom")
	}

	_, err := Dial(context.Background(), Config{Transport: "anything"})
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "dial", unavailable.Op)
	assert.Contains(t, err.Error(), "boom")
}

func TestDialConnectFailure(t *testing.T) {
	original := transportBuilder
	t.Cleanup(func() { transportBuilder = original })
	transportBuilder = func(context.Context, Config) (mcp.Transport, error) {
		return failingTransport{}, nil
	}

	_, err := Dial(context.Background(), Config{Transport: "anything"})
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestDialMissingCommand(t *testing.T) {
	_, err := Dial(context.Background(), Config{Transport: "./definitely-not-a-real-tool-server-binary"})
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("root")
	assert.ErrorIs(t, &UnavailableError{Op: "dial", Cause: cause}, cause)
	assert.ErrorIs(t, &ExecutionError{Name: "x", Cause: cause}, cause)
	assert.Equal(t, `tool "x" failed: root`, (&ExecutionError{Name: "x", Cause: cause}).Error())
	assert.Equal(t, "tool host unavailable: dial", (&UnavailableError{Op: "dial"}).Error())
}

func TestToToolDescriptorNil(t *testing.T) {
	assert.Equal(t, ToolDescriptor{}, toToolDescriptor(nil))
	assert.Equal(t, "", resultText(nil))
}

// setupTestClient dials an in-memory MCP server carrying the test tools.
func setupTestClient(t *testing.T) *Client {
	t.Helper()
	server := mcp.NewServer(&mcp.Implementation{Name: "test-server", Version: "test"}, nil)
	registerTestTools(server)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ctx, cancel := context.WithCancel(context.Background())
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	original := transportBuilder
	transportBuilder = func(context.Context, Config) (mcp.Transport, error) {
		return clientTransport, nil
	}

	client, err := Dial(ctx, Config{Transport: "inmemory"})
	require.NoError(t, err)

	t.Cleanup(func() {
		transportBuilder = original
		_ = client.Close()
		_ = serverSession.Close()
		cancel()
	})
	return client
}

func registerTestTools(server *mcp.Server) {
	server.AddTool(&mcp.Tool{
		Name:        "add",
		Description: "Add two numbers",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"a": map[string]any{"type": "number"},
				"b": map[string]any{"type": "number"},
			},
			"required": []any{"a", "b"},
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			A float64 `json:"a"`
			B float64 `json:"b"`
		}
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: strconv.FormatFloat(args.A+args.B, 'f', -1, 64)}},
		}, nil
	})

	server.AddTool(&mcp.Tool{
		Name:        "multi",
		Description: "Two text parts",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "first"}, &mcp.TextContent{Text: "second"}},
		}, nil
	})

	server.AddTool(&mcp.Tool{
		Name:        "fail",
		Description: "Always fails",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "search backend down"}},
		}, nil
	})
}

type failingTransport struct{}

func (failingTransport) Connect(context.Context) (mcp.Connection, error) {
	return nil, fmt.Errorf("connect failed")
}
