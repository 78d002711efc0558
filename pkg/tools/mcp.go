package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/comigor/stockagent-go/internal/config"
	"github.com/comigor/stockagent-go/internal/logger"
)

// MCPCaller is the subset of the MCP client used to execute a remote tool.
type MCPCaller interface {
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// mcpTool adapts one tool exported by an MCP server to the Tool interface.
type mcpTool struct {
	name        string
	description string
	schema      json.RawMessage
	client      MCPCaller
}

func (t *mcpTool) Name() string        { return t.name }
func (t *mcpTool) Description() string { return t.description }
func (t *mcpTool) Parameters() any     { return t.schema }

func (t *mcpTool) Run(ctx context.Context, args map[string]any) (string, error) {
	result, err := t.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      t.name,
			Arguments: args,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrToolExecution, t.name, err)
	}
	if result == nil {
		return "", fmt.Errorf("%w: %s: empty result", ErrToolExecution, t.name)
	}

	var text string
	for _, item := range result.Content {
		if content, ok := item.(mcp.TextContent); ok {
			text = content.Text
			break
		}
	}
	if result.IsError {
		if text == "" {
			text = "Tool execution resulted in an error without specific text."
		}
		// Remote tools report failures as content; feed them back to the
		// model like any other result string.
		return text, nil
	}
	if text == "" {
		raw, err := json.Marshal(result)
		if err != nil {
			return "Tool executed successfully, but result could not be formatted.", nil
		}
		text = string(raw)
	}
	return text, nil
}

// RegisterMCPServers connects to each configured MCP server and registers
// its tools into the registry. Servers that fail to connect are skipped with
// a log entry; a name already present in the registry is never replaced by a
// remote tool.
func RegisterMCPServers(ctx context.Context, registry *Registry, servers []config.MCPServerConfig) {
	registered := make(map[string]bool)
	for _, name := range registry.Names() {
		registered[name] = true
	}

	for _, serverCfg := range servers {
		var mcpC *client.Client
		var err error

		switch serverCfg.Type {
		case config.ClientTypeSSE:
			var sseOpts []transport.ClientOption
			if len(serverCfg.Headers) > 0 {
				sseOpts = append(sseOpts, transport.WithHeaders(serverCfg.Headers))
			}
			mcpC, err = client.NewSSEMCPClient(serverCfg.URL, sseOpts...)
		case config.ClientTypeStreamableHTTP:
			var httpOpts []transport.StreamableHTTPCOption
			if len(serverCfg.Headers) > 0 {
				httpOpts = append(httpOpts, transport.WithHTTPHeaders(serverCfg.Headers))
			}
			mcpC, err = client.NewStreamableHttpClient(serverCfg.URL, httpOpts...)
		case config.ClientTypeStdio:
			mcpC, err = client.NewStdioMCPClient(serverCfg.Command, serverCfg.Env, serverCfg.Args...)
		default:
			logger.L.Warn("unsupported MCP server type, skipping", "type", serverCfg.Type, "name", serverCfg.Name)
			continue
		}
		if err != nil {
			logger.L.Error("failed to create MCP client", "name", serverCfg.Name, "error", err)
			continue
		}

		// stdio transports start themselves.
		if serverCfg.Type != config.ClientTypeStdio {
			if err := mcpC.Start(ctx); err != nil {
				logger.L.Error("failed to start MCP client transport", "name", serverCfg.Name, "error", err)
				if cerr := mcpC.Close(); cerr != nil {
					logger.L.Warn("MCP client close error after start failure", "error", cerr)
				}
				continue
			}
		}

		initReq := mcp.InitializeRequest{
			Params: mcp.InitializeParams{Capabilities: mcp.ClientCapabilities{}},
		}
		if _, err := mcpC.Initialize(ctx, initReq); err != nil {
			logger.L.Error("failed to initialize MCP client", "name", serverCfg.Name, "error", err)
			if cerr := mcpC.Close(); cerr != nil {
				logger.L.Warn("MCP client close error after init failure", "error", cerr)
			}
			continue
		}

		serverTools, err := mcpC.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			logger.L.Warn("failed to list tools for MCP client", "name", serverCfg.Name, "error", err)
			continue
		}

		for _, remote := range serverTools.Tools {
			if registered[remote.Name] {
				logger.L.Warn("MCP tool name already registered, skipping", "tool", remote.Name, "name", serverCfg.Name)
				continue
			}
			registry.Register(&mcpTool{
				name:        remote.Name,
				description: remote.Description,
				schema:      inputSchemaFor(remote, serverCfg.Name),
				client:      mcpC,
			})
			registered[remote.Name] = true
			logger.L.Info("registered tool from MCP server", "tool", remote.Name, "name", serverCfg.Name)
		}
	}
}

var emptyObjectSchema = json.RawMessage(`{"type": "object", "properties": {}}`)

// inputSchemaFor prefers the server's raw schema, falling back to the parsed
// one and finally to the empty object schema.
func inputSchemaFor(tool mcp.Tool, serverName string) json.RawMessage {
	if len(tool.RawInputSchema) > 0 && string(tool.RawInputSchema) != "null" {
		return tool.RawInputSchema
	}
	raw, err := json.Marshal(tool.InputSchema)
	if err != nil {
		logger.L.Error("failed to marshal input schema for tool, using empty schema", "tool", tool.Name, "error", err)
		return emptyObjectSchema
	}
	if string(raw) == "{}" || string(raw) == "null" {
		logger.L.Warn("MCP tool has an empty schema, using empty object schema", "tool", tool.Name, "name", serverName)
		return emptyObjectSchema
	}
	return raw
}
