package agent

import (
	"context"
	"fmt"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"
	"persona-rag-be/pkg/llm"
	"persona-rag-be/pkg/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// loop states
type state int

const (
	stateAwaitModel state = iota
	stateExecuteTools
	stateDone
)

// Config tunes the agent loop.
type Config struct {
	MaxIterations int
	ForceToolUse  bool
}

func DefaultConfig() Config {
	return Config{
		MaxIterations: 20,
		ForceToolUse:  true,
	}
}

// ToolCallRecord logs one executed tool call for the caller.
type ToolCallRecord struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
	Result    string                 `json:"result"`
	IsError   bool                   `json:"is_error"`
}

// Result is the terminal outcome of one agent conversation. It is
// always well-formed: faults and exhaustion set Err and Degraded but
// still produce a usable Response.
type Result struct {
	Response   string           `json:"response"`
	ToolCalls  []ToolCallRecord `json:"tool_calls"`
	Iterations int              `json:"iterations"`
	Degraded   bool             `json:"degraded"`
	Err        string           `json:"error,omitempty"`
}

// Event is one progress notification from a streaming run.
type Event struct {
	Type    string  `json:"type"` // "status" or "result"
	Message string  `json:"message,omitempty"`
	Result  *Result `json:"result,omitempty"`
}

// Loop is the generic tool-calling conversation driver. Vendor
// differences live in the Backend; the iteration discipline, forced
// tool use and fault conversion live here, once.
type Loop struct {
	backend  Backend
	registry *ToolRegistry
	prompts  *PromptBuilder
	cfg      Config
	log      logger.ILogger
}

func NewLoop(backend Backend, registry *ToolRegistry, prompts *PromptBuilder, cfg Config, log logger.ILogger) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 20
	}
	return &Loop{
		backend:  backend,
		registry: registry,
		prompts:  prompts,
		cfg:      cfg,
		log:      log,
	}
}

// Respond runs the conversation to completion.
func (l *Loop) Respond(ctx context.Context, persona, query string, history []entity.AgentTurn) *Result {
	return l.run(ctx, persona, query, history, nil)
}

// RespondStream runs the conversation while emitting status events.
// The returned channel closes after the terminal result event.
func (l *Loop) RespondStream(ctx context.Context, persona, query string, history []entity.AgentTurn) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		result := l.run(ctx, persona, query, history, events)
		events <- Event{Type: "result", Result: result}
	}()
	return events
}

func (l *Loop) run(ctx context.Context, persona, query string, history []entity.AgentTurn, events chan<- Event) *Result {
	system, err := l.prompts.Build(ctx, persona)
	if err != nil {
		return &Result{
			Response: "I can't take that persona right now.",
			Degraded: true,
			Err:      err.Error(),
		}
	}

	turns := make([]entity.AgentTurn, 0, len(history)+2)
	turns = append(turns, entity.AgentTurn{Role: "system", Content: system})
	turns = append(turns, history...)
	turns = append(turns, entity.AgentTurn{Role: "user", Content: query})

	tools := l.registry.Schemas()

	result := &Result{}
	current := stateAwaitModel
	toolCallCount := 0
	var lastText string

	tracer := otel.Tracer("agent")

	for result.Iterations < l.cfg.MaxIterations && current != stateDone {
		result.Iterations++

		iterCtx, span := tracer.Start(ctx, "agent.iteration",
			trace.WithAttributes(attribute.Int("iteration", result.Iterations)))

		switch current {
		case stateAwaitModel:
			l.emit(events, fmt.Sprintf("thinking (iteration %d)", result.Iterations))

			// Forcing applies only until the first tool call lands.
			force := l.cfg.ForceToolUse && toolCallCount == 0

			completion, err := l.backend.Submit(iterCtx, turns, tools, force)
			if err != nil {
				span.End()
				l.log.Error("agent", "model submission failed", map[string]interface{}{
					"iteration": result.Iterations,
					"error":     err.Error(),
				})
				result.Response = "Something went wrong while I was thinking this through. Please try again."
				result.Degraded = true
				result.Err = err.Error()
				return result
			}

			calls := l.backend.ParseToolRequests(completion)
			if text := l.backend.ExtractText(completion); text != "" {
				lastText = text
			}

			if len(calls) == 0 {
				if force {
					// A forced turn that produced bare text is not
					// acceptable; resubmit. The ceiling still binds.
					l.log.Warn("agent", "forced turn returned no tool call, resubmitting", map[string]interface{}{
						"iteration": result.Iterations,
					})
					span.End()
					continue
				}
				if l.backend.IsComplete(completion) {
					result.Response = l.backend.ExtractText(completion)
					current = stateDone
					span.End()
					continue
				}
				// No calls, not complete (truncation or similar):
				// thread the partial turn and continue.
				turns = l.backend.AppendExchange(turns, completion, nil)
				span.End()
				continue
			}

			// EXECUTE_TOOLS
			current = stateExecuteTools
			results := make([]entity.ToolResult, 0, len(calls))
			for _, call := range calls {
				l.emit(events, fmt.Sprintf("running %s", call.Name))
				res := l.registry.Execute(iterCtx, persona, call)
				results = append(results, res)
				toolCallCount++

				preview := utils.TruncateRunes(res.Content, 300)
				result.ToolCalls = append(result.ToolCalls, ToolCallRecord{
					Name:      call.Name,
					Arguments: call.Arguments,
					Result:    preview,
					IsError:   res.IsError,
				})
			}

			turns = l.backend.AppendExchange(turns, completion, results)
			current = stateAwaitModel
		}

		span.End()
	}

	if current != stateDone {
		result.Degraded = true
		result.Err = llm.ErrIterationExhausted.Error()
		if lastText != "" {
			result.Response = lastText
		} else {
			result.Response = "I couldn't reach a confident answer within my reasoning budget."
		}
		l.log.Warn("agent", "iteration ceiling reached", map[string]interface{}{
			"iterations": result.Iterations,
		})
	}

	return result
}

func (l *Loop) emit(events chan<- Event, message string) {
	if events == nil {
		return
	}
	select {
	case events <- Event{Type: "status", Message: message}:
	default:
	}
}
