package history

import (
	"time"

	"github.com/sashabaranov/go-openai"
)

// Message is a single entry in a thread's conversation log. Role carries the
// discriminating kind (system/user/assistant/tool) using the openai role
// constants; ToolCalls is only meaningful on assistant messages and ToolCallID
// only on tool messages, where it names the assistant tool call it answers.
type Message struct {
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []openai.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	Name       string            `json:"name,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// NewUserMessage builds a user message stamped with the current time.
func NewUserMessage(content string) Message {
	return Message{
		Role:      openai.ChatMessageRoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// NewToolMessage builds a tool-result message correlated to the tool call
// that requested it.
func NewToolMessage(content, toolCallID, toolName string) Message {
	return Message{
		Role:       openai.ChatMessageRoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		Name:       toolName,
		CreatedAt:  time.Now().UTC(),
	}
}

// ToChatCompletionMessage converts the message to its wire representation.
func (m Message) ToChatCompletionMessage() openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role:       m.Role,
		Content:    m.Content,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
		Name:       m.Name,
	}
}
