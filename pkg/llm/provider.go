package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system", "tool"
	Content string

	// Populated on assistant turns that requested tools, and on tool
	// turns carrying results back.
	ToolCalls  []ToolCall
	ToolCallId string
	Name       string
}

// ToolCall is a model-requested tool invocation in wire-neutral form.
type ToolCall struct {
	Id        string
	Name      string
	Arguments map[string]interface{}
}

// ToolSchema describes one callable tool to the model.
type ToolSchema struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object: {"type":"object","properties":{...},"required":[...]}
	Parameters map[string]interface{}
}

// Completion is one model response, text and/or tool calls.
type Completion struct {
	Text         string
	ToolCalls    []ToolCall
	FinishReason string // "stop", "tool_calls", "length", backend-specific otherwise
}

// CompletionRequest carries everything one call needs.
type CompletionRequest struct {
	Messages []Message
	Tools    []ToolSchema
	// ForceToolUse asks the backend to require a tool call this turn.
	ForceToolUse bool
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// CompletionProvider defines the contract for any completion backend.
type CompletionProvider interface {
	// Complete sends messages (plus optional tool schemas) and returns
	// the model's completion.
	Complete(ctx context.Context, req CompletionRequest, options ...Option) (*Completion, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)

	// SupportsTools reports whether this backend handles native tool
	// calling. Backends without it are served by the staged pipeline.
	SupportsTools() bool
}

// StreamingProvider is implemented by backends that can stream text.
type StreamingProvider interface {
	// CompleteStream sends one request and invokes onDelta for each
	// text fragment as it arrives. Returns the final completion.
	CompleteStream(ctx context.Context, req CompletionRequest, onDelta func(text string), options ...Option) (*Completion, error)
}
