package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

type mockMCPCaller struct {
	result *mcp.CallToolResult
	err    error
	last   mcp.CallToolRequest
}

func (m *mockMCPCaller) CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m.last = request
	return m.result, m.err
}

func TestMCPTool_RunReturnsTextContent(t *testing.T) {
	caller := &mockMCPCaller{result: &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "remote says hi"}},
	}}
	tool := &mcpTool{name: "remote_tool", client: caller, schema: emptyObjectSchema}

	out, err := tool.Run(context.Background(), map[string]any{"key": "value"})
	require.NoError(t, err)
	require.Equal(t, "remote says hi", out)
	require.Equal(t, "remote_tool", caller.last.Params.Name)
}

func TestMCPTool_RemoteErrorContentIsOrdinaryResult(t *testing.T) {
	caller := &mockMCPCaller{result: &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "remote failure detail"}},
	}}
	tool := &mcpTool{name: "remote_tool", client: caller}

	out, err := tool.Run(context.Background(), nil)
	require.NoError(t, err, "IsError results are content for the model, not raised errors")
	require.Equal(t, "remote failure detail", out)
}

func TestMCPTool_TransportFailureRaises(t *testing.T) {
	caller := &mockMCPCaller{err: errors.New("connection refused")}
	tool := &mcpTool{name: "remote_tool", client: caller}

	_, err := tool.Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrToolExecution)
}

func TestInputSchemaFor_PrefersRawSchema(t *testing.T) {
	raw := json.RawMessage(`{"type": "object", "properties": {"q": {"type": "string"}}}`)
	schema := inputSchemaFor(mcp.Tool{Name: "t", RawInputSchema: raw}, "server")
	require.Equal(t, raw, schema)

	schema = inputSchemaFor(mcp.Tool{Name: "t"}, "server")
	require.NotEmpty(t, schema)
}
