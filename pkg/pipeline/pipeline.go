package pipeline

import (
	"context"
	"fmt"
	"strings"

	"persona-rag-be/internal/dto"
	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"
	"persona-rag-be/pkg/persona"
	"persona-rag-be/pkg/rag/retrieve"
	"persona-rag-be/pkg/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Config tunes the staged pipeline.
type Config struct {
	MaxRetrievalLoops int
	WorldviewMaxK     int
	EvidenceMaxK      int
}

func DefaultConfig() Config {
	return Config{
		MaxRetrievalLoops: 3,
		WorldviewMaxK:     40,
		EvidenceMaxK:      25,
	}
}

// Pipeline is the staged emulation engine for backends without native
// tool calling: plan, retrieve, evaluate, synthesize. Critic mode adds
// worldview reconstruction, style extraction and evidence-grounded
// feedback.
type Pipeline struct {
	planner     *Planner
	retriever   *retrieve.Retriever
	evaluator   *Evaluator
	synthesizer *Synthesizer
	worldview   *WorldviewPlanner
	style       *StyleExtractor
	critic      *CriticReader
	personas    *persona.Store
	publisher   *StagePublisher
	cfg         Config
	log         logger.ILogger
}

func New(
	planner *Planner,
	retriever *retrieve.Retriever,
	evaluator *Evaluator,
	synthesizer *Synthesizer,
	worldview *WorldviewPlanner,
	style *StyleExtractor,
	critic *CriticReader,
	personas *persona.Store,
	publisher *StagePublisher,
	cfg Config,
	log logger.ILogger,
) *Pipeline {
	if cfg.MaxRetrievalLoops <= 0 {
		cfg.MaxRetrievalLoops = 3
	}
	if cfg.WorldviewMaxK <= 0 {
		cfg.WorldviewMaxK = 40
	}
	if cfg.EvidenceMaxK <= 0 {
		cfg.EvidenceMaxK = 25
	}
	return &Pipeline{
		planner:     planner,
		retriever:   retriever,
		evaluator:   evaluator,
		synthesizer: synthesizer,
		worldview:   worldview,
		style:       style,
		critic:      critic,
		personas:    personas,
		publisher:   publisher,
		cfg:         cfg,
		log:         log,
	}
}

// Respond runs emulation mode to completion.
func (p *Pipeline) Respond(ctx context.Context, personaName, query string, history []entity.AgentTurn) *dto.RespondResult {
	return p.respond(ctx, personaName, query, history, nil)
}

// RespondStream runs emulation mode while emitting stage and text
// events. The channel closes after the terminal result event.
func (p *Pipeline) RespondStream(ctx context.Context, personaName, query string, history []entity.AgentTurn) <-chan dto.StreamEvent {
	events := make(chan dto.StreamEvent, 32)
	go func() {
		defer close(events)
		result := p.respond(ctx, personaName, query, history, events)
		events <- dto.StreamEvent{Type: "result", Result: result}
	}()
	return events
}

func (p *Pipeline) respond(ctx context.Context, personaName, query string, history []entity.AgentTurn, events chan<- dto.StreamEvent) *dto.RespondResult {
	requestId := uuid.NewString()
	tracer := otel.Tracer("pipeline")

	personaPrompt, err := p.personas.Load(personaName)
	if err != nil {
		return &dto.RespondResult{
			Response: "I can't take that persona right now.",
			Mode:     "pipeline",
			Degraded: true,
			Err:      err.Error(),
		}
	}

	// [PHASE 1] Plan
	p.stage(events, requestId, personaName, "pipeline", "plan", nil)
	p.log.Info("pipeline", "[PHASE 1] planning searches", map[string]interface{}{
		"request_id": requestId,
		"query":      truncate(query, 80),
	})

	planCtx, span := tracer.Start(ctx, "pipeline.plan")
	specs := p.planner.Plan(planCtx, personaName, query, history)
	span.End()

	// [PHASE 2] Retrieve and evaluate, up to the loop ceiling
	state := &entity.RetrievalState{}
	for loop := 1; loop <= p.cfg.MaxRetrievalLoops; loop++ {
		state.Loops = loop
		p.stage(events, requestId, personaName, "pipeline", "retrieve", map[string]interface{}{
			"loop":     loop,
			"searches": len(specs),
		})
		p.log.Info("pipeline", "[PHASE 2] retrieving", map[string]interface{}{
			"request_id": requestId,
			"loop":       loop,
			"searches":   len(specs),
		})

		loopCtx, span := tracer.Start(ctx, "pipeline.retrieve",
			trace.WithAttributes(attribute.Int("loop", loop)))
		results := p.retriever.Execute(loopCtx, personaName, specs)
		state.Results = append(state.Results, results...)

		eval := p.evaluator.Evaluate(loopCtx, query, state, loop)
		state.Evaluations = append(state.Evaluations, eval)
		span.End()

		if eval.Sufficient || len(eval.AdditionalSearches) == 0 {
			break
		}
		specs = eval.AdditionalSearches
	}

	// [PHASE 3] Synthesize
	p.stage(events, requestId, personaName, "pipeline", "synthesize", nil)
	p.log.Info("pipeline", "[PHASE 3] synthesizing", map[string]interface{}{
		"request_id": requestId,
		"fragments":  len(state.AllFragments()),
		"loops":      state.Loops,
	})

	synthCtx, span := tracer.Start(ctx, "pipeline.synthesize")
	var text string
	if events != nil {
		text, err = p.synthesizer.SynthesizeStream(synthCtx, personaPrompt, query, state, history, func(delta string) {
			select {
			case events <- dto.StreamEvent{Type: "text", Text: delta}:
			default:
			}
		})
	} else {
		text, err = p.synthesizer.Synthesize(synthCtx, personaPrompt, query, state, history)
	}
	span.End()

	if err != nil {
		p.log.Error("pipeline", "synthesis failed", map[string]interface{}{
			"request_id": requestId,
			"error":      err.Error(),
		})
		return &dto.RespondResult{
			Response:   "Something went wrong while composing the answer. Please try again.",
			Iterations: state.Loops,
			Mode:       "pipeline",
			Degraded:   true,
			Err:        err.Error(),
		}
	}

	return &dto.RespondResult{
		Response:   text,
		Iterations: state.Loops,
		Mode:       "pipeline",
	}
}

// Critique runs critic mode: two passes over the document, grounded in
// the persona's corpus.
func (p *Pipeline) Critique(ctx context.Context, personaName, document string) *dto.RespondResult {
	requestId := uuid.NewString()
	tracer := otel.Tracer("pipeline")

	personaPrompt, err := p.personas.Load(personaName)
	if err != nil {
		return &dto.RespondResult{
			Response: "I can't take that persona right now.",
			Mode:     "critic",
			Degraded: true,
			Err:      err.Error(),
		}
	}

	// [PHASE 1] Topic hint + worldview retrieval
	p.log.Info("pipeline", "[PHASE 1] reconstructing worldview", map[string]interface{}{
		"request_id": requestId,
		"doc_chars":  len(document),
	})
	hintCtx, span := tracer.Start(ctx, "critic.worldview")
	hint := topicHint(hintCtx, p.planner.provider, document, p.log)
	wvSpecs := p.worldview.Plan(hintCtx, personaName, hint)
	wvResults := p.retriever.ExecuteWithCeiling(hintCtx, personaName, wvSpecs, p.cfg.WorldviewMaxK)
	span.End()

	wvState := &entity.RetrievalState{Results: wvResults, Loops: 1}
	worldviewContext := formatWorldview(wvResults)

	// [PHASE 2] Style profile
	styleCtx, span := tracer.Start(ctx, "critic.style")
	profile := p.style.Extract(styleCtx, personaName, wvState.AllFragments())
	span.End()

	// [PHASE 3] Critic read
	p.log.Info("pipeline", "[PHASE 3] reading document", map[string]interface{}{
		"request_id": requestId,
	})
	readCtx, span := tracer.Start(ctx, "critic.read")
	issues := p.critic.Read(readCtx, personaName, document, worldviewContext)
	span.End()

	if len(issues) == 0 {
		// Generic-read degraded path: no parseable issues, still give
		// an overall grounded reaction.
		return p.genericCritique(ctx, requestId, personaName, personaPrompt, document, profile, wvState)
	}

	// [PHASE 4] Evidence retrieval per issue
	evidenceSpecs := make([]entity.SearchSpec, len(issues))
	for i, issue := range issues {
		evidenceSpecs[i] = issue.EvidenceSearch
	}
	evCtx, span := tracer.Start(ctx, "critic.evidence")
	evidenceResults := p.retriever.ExecuteWithCeiling(evCtx, personaName, evidenceSpecs, p.cfg.EvidenceMaxK)
	span.End()

	// [PHASE 5] Feedback synthesis
	p.log.Info("pipeline", "[PHASE 5] composing feedback", map[string]interface{}{
		"request_id": requestId,
		"issues":     len(issues),
	})
	synthCtx, span := tracer.Start(ctx, "critic.synthesize")
	feedback := p.synthesizeFeedback(synthCtx, personaPrompt, document, profile, issues, evidenceResults, wvState)
	span.End()

	return &dto.RespondResult{
		Response: renderFeedbackSummary(feedback),
		Mode:     "critic",
		Feedback: feedback,
	}
}

func (p *Pipeline) stage(events chan<- dto.StreamEvent, requestId, personaName, mode, stage string, detail map[string]interface{}) {
	if p.publisher != nil {
		p.publisher.Publish(StageEvent{
			RequestId: requestId,
			Persona:   personaName,
			Mode:      mode,
			Stage:     stage,
			Detail:    detail,
		})
	}
	if events != nil {
		select {
		case events <- dto.StreamEvent{Type: "status", Stage: stage}:
		default:
		}
	}
}

// formatWorldview groups retrieved fragments by the category each
// search carried in its Reason field.
func formatWorldview(results []entity.SearchResult) string {
	grouped := make(map[string][]entity.Fragment)
	var order []string
	seen := make(map[string]bool)

	for _, res := range results {
		category := res.Spec.Reason
		if category == "" {
			category = "themes"
		}
		if _, ok := grouped[category]; !ok {
			order = append(order, category)
		}
		for _, frag := range res.Fragments {
			if seen[frag.Id.String()] {
				continue
			}
			seen[frag.Id.String()] = true
			grouped[category] = append(grouped[category], frag)
		}
	}

	var sb strings.Builder
	for _, category := range order {
		frags := grouped[category]
		if len(frags) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("### %s\n\n", category))
		used := 0
		for _, frag := range frags {
			chunk := frag.Content
			if used+len(chunk) > 6000 {
				break
			}
			sb.WriteString(fmt.Sprintf("[%s] %s\n\n", frag.SourceFile, chunk))
			used += len(chunk)
		}
	}
	return sb.String()
}

func truncate(s string, n int) string {
	cut := utils.TruncateRunes(s, n)
	if cut == s {
		return s
	}
	return cut + "..."
}
