package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"
	"persona-rag-be/pkg/llm"
	"persona-rag-be/pkg/persona"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBackend replays a fixed sequence of completions and records
// how it was called.
type scriptedBackend struct {
	script     []*llm.Completion
	err        error
	errAtCall  int
	calls      int
	forceFlags []bool
}

func (b *scriptedBackend) Submit(ctx context.Context, turns []entity.AgentTurn, tools []llm.ToolSchema, force bool) (*llm.Completion, error) {
	b.calls++
	b.forceFlags = append(b.forceFlags, force)
	if b.err != nil && b.calls >= b.errAtCall {
		return nil, b.err
	}
	idx := b.calls - 1
	if idx >= len(b.script) {
		idx = len(b.script) - 1
	}
	return b.script[idx], nil
}

func (b *scriptedBackend) IsComplete(c *llm.Completion) bool {
	return len(c.ToolCalls) == 0 && c.FinishReason != "length"
}

func (b *scriptedBackend) ParseToolRequests(c *llm.Completion) []llm.ToolCall {
	return c.ToolCalls
}

func (b *scriptedBackend) ExtractText(c *llm.Completion) string {
	return c.Text
}

func (b *scriptedBackend) AppendExchange(turns []entity.AgentTurn, c *llm.Completion, results []entity.ToolResult) []entity.AgentTurn {
	turns = append(turns, entity.AgentTurn{Role: "assistant", Content: c.Text})
	if len(results) > 0 {
		turns = append(turns, entity.AgentTurn{Role: "tool", ToolResults: results})
	}
	return turns
}

type echoTool struct{}

func (echoTool) Schema() llm.ToolSchema {
	return llm.ToolSchema{
		Name:        "search_corpus",
		Description: "test tool",
		Parameters:  map[string]interface{}{"type": "object"},
	}
}

func (echoTool) Execute(ctx context.Context, persona string, args map[string]interface{}) (string, error) {
	return "retrieved material", nil
}

func newTestLoop(t *testing.T, backend Backend, cfg Config) *Loop {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mentor.md"), []byte("You are the mentor."), 0o644))

	prompts := NewPromptBuilder(persona.NewStore(dir), nil, logger.NewTestLogger())
	registry := NewToolRegistry(echoTool{})
	return NewLoop(backend, registry, prompts, cfg, logger.NewTestLogger())
}

func toolCallCompletion() *llm.Completion {
	return &llm.Completion{
		FinishReason: "tool_calls",
		ToolCalls: []llm.ToolCall{
			{Id: "call_1", Name: "search_corpus", Arguments: map[string]interface{}{"query": "x"}},
		},
	}
}

func TestLoopCompletesAfterToolUse(t *testing.T) {
	backend := &scriptedBackend{
		script: []*llm.Completion{
			toolCallCompletion(),
			{Text: "Here is my grounded answer.", FinishReason: "stop"},
		},
	}
	loop := newTestLoop(t, backend, Config{MaxIterations: 20, ForceToolUse: true})

	result := loop.Respond(context.Background(), "mentor", "what do you think?", nil)

	assert.Equal(t, "Here is my grounded answer.", result.Response)
	assert.False(t, result.Degraded)
	assert.Empty(t, result.Err)
	assert.Equal(t, 2, result.Iterations)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "search_corpus", result.ToolCalls[0].Name)
}

func TestLoopNeverExceedsIterationCeiling(t *testing.T) {
	// The model asks for a tool on every turn and never finishes.
	backend := &scriptedBackend{
		script: []*llm.Completion{toolCallCompletion()},
	}
	loop := newTestLoop(t, backend, Config{MaxIterations: 5, ForceToolUse: true})

	result := loop.Respond(context.Background(), "mentor", "q", nil)

	assert.Equal(t, 5, result.Iterations)
	assert.Equal(t, 5, backend.calls)
	assert.True(t, result.Degraded)
	assert.Equal(t, llm.ErrIterationExhausted.Error(), result.Err)
	assert.NotEmpty(t, result.Response, "exhaustion must still produce a response")
}

func TestLoopEndpointFaultYieldsTerminalResponse(t *testing.T) {
	backend := &scriptedBackend{
		script:    []*llm.Completion{toolCallCompletion()},
		err:       errors.New("connection refused"),
		errAtCall: 2,
	}
	loop := newTestLoop(t, backend, Config{MaxIterations: 20, ForceToolUse: true})

	result := loop.Respond(context.Background(), "mentor", "q", nil)

	assert.True(t, result.Degraded)
	assert.Contains(t, result.Err, "connection refused")
	assert.NotEmpty(t, result.Response, "faults must convert to a well-formed response")
}

func TestLoopForcedToolUseRejectsBareText(t *testing.T) {
	// First turn ignores forcing and answers in prose; the loop must
	// resubmit instead of accepting it.
	backend := &scriptedBackend{
		script: []*llm.Completion{
			{Text: "I'll just answer without searching.", FinishReason: "stop"},
			toolCallCompletion(),
			{Text: "Grounded answer.", FinishReason: "stop"},
		},
	}
	loop := newTestLoop(t, backend, Config{MaxIterations: 20, ForceToolUse: true})

	result := loop.Respond(context.Background(), "mentor", "q", nil)

	assert.Equal(t, "Grounded answer.", result.Response)
	assert.Equal(t, 3, backend.calls)
	// Forcing holds until the first tool call lands, then releases.
	assert.Equal(t, []bool{true, true, false}, backend.forceFlags)
}

func TestLoopForceDisabledAcceptsDirectAnswer(t *testing.T) {
	backend := &scriptedBackend{
		script: []*llm.Completion{
			{Text: "Direct answer.", FinishReason: "stop"},
		},
	}
	loop := newTestLoop(t, backend, Config{MaxIterations: 20, ForceToolUse: false})

	result := loop.Respond(context.Background(), "mentor", "q", nil)

	assert.Equal(t, "Direct answer.", result.Response)
	assert.Equal(t, 1, result.Iterations)
	assert.Empty(t, result.ToolCalls)
}

func TestLoopUnknownPersona(t *testing.T) {
	backend := &scriptedBackend{script: []*llm.Completion{{Text: "x"}}}
	loop := newTestLoop(t, backend, DefaultConfig())

	result := loop.Respond(context.Background(), "nobody", "q", nil)

	assert.True(t, result.Degraded)
	assert.Contains(t, result.Err, "unknown persona")
	assert.Zero(t, backend.calls)
}

func TestLoopStreamEmitsTerminalResult(t *testing.T) {
	backend := &scriptedBackend{
		script: []*llm.Completion{
			toolCallCompletion(),
			{Text: "Streamed answer.", FinishReason: "stop"},
		},
	}
	loop := newTestLoop(t, backend, Config{MaxIterations: 20, ForceToolUse: true})

	var terminal *Result
	sawStatus := false
	for ev := range loop.RespondStream(context.Background(), "mentor", "q", nil) {
		switch ev.Type {
		case "status":
			sawStatus = true
		case "result":
			terminal = ev.Result
		}
	}

	require.NotNil(t, terminal, "stream must end with a result event")
	assert.Equal(t, "Streamed answer.", terminal.Response)
	assert.True(t, sawStatus)
}
