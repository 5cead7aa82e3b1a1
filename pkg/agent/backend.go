package agent

import (
	"context"

	"persona-rag-be/internal/entity"
	"persona-rag-be/pkg/llm"
)

// Backend is the narrow capability the loop needs from a vendor. One
// generic loop runs against any backend; differences in wire shape,
// completion signalling and message threading live behind this
// interface instead of in per-vendor loop copies.
type Backend interface {
	// Submit sends the conversation and tool schemas to the model.
	// force asks for a mandatory tool call this turn.
	Submit(ctx context.Context, turns []entity.AgentTurn, tools []llm.ToolSchema, force bool) (*llm.Completion, error)

	// IsComplete reports whether the completion ends the loop.
	IsComplete(c *llm.Completion) bool

	// ParseToolRequests extracts requested tool calls.
	ParseToolRequests(c *llm.Completion) []llm.ToolCall

	// ExtractText pulls the user-facing text.
	ExtractText(c *llm.Completion) string

	// AppendExchange threads the completion and tool results back onto
	// the conversation in the shape the vendor expects on resubmit.
	AppendExchange(turns []entity.AgentTurn, c *llm.Completion, results []entity.ToolResult) []entity.AgentTurn
}

// ProviderBackend adapts any llm.CompletionProvider to the Backend
// capability. OpenAI-compatible endpoints (DeepSeek, Moonshot, Hermes)
// all thread tool exchanges the same way, so one adapter covers them.
type ProviderBackend struct {
	provider llm.CompletionProvider
}

var _ Backend = &ProviderBackend{}

func NewProviderBackend(provider llm.CompletionProvider) *ProviderBackend {
	return &ProviderBackend{provider: provider}
}

func (b *ProviderBackend) Submit(ctx context.Context, turns []entity.AgentTurn, tools []llm.ToolSchema, force bool) (*llm.Completion, error) {
	messages := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case "tool":
			for _, res := range turn.ToolResults {
				messages = append(messages, llm.Message{
					Role:       "tool",
					Content:    res.Content,
					ToolCallId: res.CallId,
					Name:       res.Name,
				})
			}
		default:
			msg := llm.Message{Role: turn.Role, Content: turn.Content}
			for _, tc := range turn.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
					Id:        tc.Id,
					Name:      tc.Name,
					Arguments: tc.Arguments,
				})
			}
			messages = append(messages, msg)
		}
	}

	return b.provider.Complete(ctx, llm.CompletionRequest{
		Messages:     messages,
		Tools:        tools,
		ForceToolUse: force,
	})
}

func (b *ProviderBackend) IsComplete(c *llm.Completion) bool {
	if len(c.ToolCalls) > 0 {
		return false
	}
	switch c.FinishReason {
	case "tool_calls", "tool_use":
		return false
	}
	return true
}

func (b *ProviderBackend) ParseToolRequests(c *llm.Completion) []llm.ToolCall {
	return c.ToolCalls
}

func (b *ProviderBackend) ExtractText(c *llm.Completion) string {
	return c.Text
}

func (b *ProviderBackend) AppendExchange(turns []entity.AgentTurn, c *llm.Completion, results []entity.ToolResult) []entity.AgentTurn {
	assistant := entity.AgentTurn{
		Role:    "assistant",
		Content: c.Text,
	}
	for _, tc := range c.ToolCalls {
		assistant.ToolCalls = append(assistant.ToolCalls, entity.ToolCall{
			Id:        tc.Id,
			Name:      tc.Name,
			Arguments: tc.Arguments,
		})
	}
	turns = append(turns, assistant)

	if len(results) > 0 {
		turns = append(turns, entity.AgentTurn{
			Role:        "tool",
			ToolResults: results,
		})
	}
	return turns
}
