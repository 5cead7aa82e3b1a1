package service

import (
	"context"

	"persona-rag-be/internal/dto"
	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"
	"persona-rag-be/internal/pkg/serverutils"
	"persona-rag-be/pkg/agent"
	"persona-rag-be/pkg/llm"
	"persona-rag-be/pkg/persona"
	"persona-rag-be/pkg/pipeline"
)

// IRespondService dispatches requests to the right engine mode.
type IRespondService interface {
	Respond(ctx context.Context, request *dto.RespondRequest) (*dto.RespondResult, error)
	RespondStream(ctx context.Context, request *dto.RespondRequest) (<-chan dto.StreamEvent, error)
	Critique(ctx context.Context, request *dto.CritiqueRequest) (*dto.RespondResult, error)
	ListPersonas() ([]string, error)
}

type respondService struct {
	provider llm.CompletionProvider
	loop     *agent.Loop
	pipeline *pipeline.Pipeline
	personas *persona.Store
	log      logger.ILogger
}

func NewRespondService(
	provider llm.CompletionProvider,
	loop *agent.Loop,
	pl *pipeline.Pipeline,
	personas *persona.Store,
	log logger.ILogger,
) IRespondService {
	return &respondService{
		provider: provider,
		loop:     loop,
		pipeline: pl,
		personas: personas,
		log:      log,
	}
}

var _ IRespondService = &respondService{}

// Respond answers a query in the persona's voice. Backends with native
// tool calling run the agent loop; the rest run the staged pipeline.
func (s *respondService) Respond(ctx context.Context, request *dto.RespondRequest) (*dto.RespondResult, error) {
	if err := serverutils.ValidateRequest(request); err != nil {
		return nil, err
	}

	history := toHistory(request.History)

	if s.provider.SupportsTools() {
		s.log.Info("respond-service", "dispatching to agent loop", map[string]interface{}{
			"persona": request.Persona,
		})
		return fromAgentResult(s.loop.Respond(ctx, request.Persona, request.Query, history)), nil
	}

	s.log.Info("respond-service", "dispatching to staged pipeline", map[string]interface{}{
		"persona": request.Persona,
	})
	return s.pipeline.Respond(ctx, request.Persona, request.Query, history), nil
}

// RespondStream is Respond with stage and text events.
func (s *respondService) RespondStream(ctx context.Context, request *dto.RespondRequest) (<-chan dto.StreamEvent, error) {
	if err := serverutils.ValidateRequest(request); err != nil {
		return nil, err
	}

	history := toHistory(request.History)

	if s.provider.SupportsTools() {
		out := make(chan dto.StreamEvent, 16)
		go func() {
			defer close(out)
			for event := range s.loop.RespondStream(ctx, request.Persona, request.Query, history) {
				switch event.Type {
				case "status":
					out <- dto.StreamEvent{Type: "status", Message: event.Message}
				case "result":
					out <- dto.StreamEvent{Type: "result", Result: fromAgentResult(event.Result)}
				}
			}
		}()
		return out, nil
	}

	return s.pipeline.RespondStream(ctx, request.Persona, request.Query, history), nil
}

// Critique reviews a document through the persona's worldview. Critic
// mode always runs the staged pipeline; its two-pass structure does not
// map onto the free-form loop.
func (s *respondService) Critique(ctx context.Context, request *dto.CritiqueRequest) (*dto.RespondResult, error) {
	if err := serverutils.ValidateRequest(request); err != nil {
		return nil, err
	}
	return s.pipeline.Critique(ctx, request.Persona, request.Document), nil
}

func (s *respondService) ListPersonas() ([]string, error) {
	return s.personas.List()
}

func toHistory(turns []dto.HistoryTurn) []entity.AgentTurn {
	history := make([]entity.AgentTurn, 0, len(turns))
	for _, turn := range turns {
		history = append(history, entity.AgentTurn{Role: turn.Role, Content: turn.Content})
	}
	return history
}

func fromAgentResult(result *agent.Result) *dto.RespondResult {
	if result == nil {
		return &dto.RespondResult{Mode: "agent", Degraded: true, Err: "missing result"}
	}
	calls := make([]dto.ToolCallLog, 0, len(result.ToolCalls))
	for _, call := range result.ToolCalls {
		calls = append(calls, dto.ToolCallLog{
			Name:      call.Name,
			Arguments: call.Arguments,
			Result:    call.Result,
			IsError:   call.IsError,
		})
	}
	return &dto.RespondResult{
		Response:   result.Response,
		ToolCalls:  calls,
		Iterations: result.Iterations,
		Mode:       "agent",
		Degraded:   result.Degraded,
		Err:        result.Err,
	}
}
