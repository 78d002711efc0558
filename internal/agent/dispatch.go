package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/stockagent-go/internal/history"
	"github.com/comigor/stockagent-go/internal/logger"
	"github.com/comigor/stockagent-go/pkg/tools"
)

// dispatcher resolves and executes the tool calls of one assistant turn.
type dispatcher struct {
	registry *tools.Registry
}

// execute runs the calls strictly in request order and returns one tool
// message per call, correlated by tool call id. Calls run sequentially: the
// price lookup's cache and rate limiter are globally serialized anyway, and
// a later call may be served from a cache entry an earlier call populated.
//
// An unknown tool name or a tool that raises aborts the whole turn; a tool
// that *returns* failure text is ordinary content for the model.
func (d *dispatcher) execute(ctx context.Context, calls []openai.ToolCall) ([]history.Message, error) {
	results := make([]history.Message, 0, len(calls))
	for _, call := range calls {
		name := call.Function.Name

		tool, err := d.registry.Get(name)
		if err != nil {
			return nil, err
		}

		var args map[string]any
		if raw := call.Function.Arguments; raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				logger.L.Error("failed to unmarshal tool arguments", "tool", name, "error", err)
				results = append(results, history.NewToolMessage(
					"Error: could not parse arguments for tool "+name, call.ID, name))
				continue
			}
		}

		output, err := tool.Run(ctx, args)
		if err != nil {
			if errors.Is(err, tools.ErrInvalidInput) || errors.Is(err, tools.ErrToolExecution) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s: %v", tools.ErrToolExecution, name, err)
		}

		logger.L.Debug("tool executed", "tool", name, "tool_call_id", call.ID)
		results = append(results, history.NewToolMessage(output, call.ID, name))
	}
	return results, nil
}
