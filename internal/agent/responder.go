package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/stockagent-go/internal/history"
	"github.com/comigor/stockagent-go/internal/llm"
	"github.com/comigor/stockagent-go/internal/logger"
)

// responder produces the next assistant message for a conversation by
// invoking the language model with the full history and the bound tool
// schemas.
type responder struct {
	client       llm.Client
	model        string
	systemPrompt string
}

// respond prepends the system prompt when the history does not already start
// with one, calls the model, and stamps the returned assistant message with
// a generation timestamp. A collaborator failure surfaces as
// ErrModelInvocation; there is no retry.
func (r *responder) respond(ctx context.Context, messages []history.Message, toolSchemas []openai.Tool) (history.Message, error) {
	wire := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if len(messages) == 0 || messages[0].Role != openai.ChatMessageRoleSystem {
		wire = append(wire, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: r.systemPrompt,
		})
	}
	for _, msg := range messages {
		wire = append(wire, msg.ToChatCompletionMessage())
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: wire,
		Tools:    toolSchemas,
	})
	if err != nil {
		return history.Message{}, fmt.Errorf("%w: %v", ErrModelInvocation, err)
	}
	if len(resp.Choices) == 0 {
		return history.Message{}, fmt.Errorf("%w: response has no choices", ErrModelInvocation)
	}

	choice := resp.Choices[0].Message
	logger.L.Debug("assistant message generated",
		"tool_calls", len(choice.ToolCalls), "content_len", len(choice.Content))

	return history.Message{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   choice.Content,
		ToolCalls: choice.ToolCalls,
		CreatedAt: time.Now().UTC(),
	}, nil
}
