package pipeline

import (
	"context"
	"fmt"
	"strings"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"
	"persona-rag-be/pkg/llm"
	"persona-rag-be/pkg/rag/retrieve"
)

// Synthesizer writes the final answer from retrieved material, in the
// persona's voice.
type Synthesizer struct {
	provider llm.CompletionProvider
	budgets  map[entity.SearchPurpose]int
	log      logger.ILogger
}

func NewSynthesizer(provider llm.CompletionProvider, contentBudget, styleBudget int, log logger.ILogger) *Synthesizer {
	if contentBudget <= 0 {
		contentBudget = 8000
	}
	if styleBudget <= 0 {
		styleBudget = 4000
	}
	return &Synthesizer{
		provider: provider,
		budgets: map[entity.SearchPurpose]int{
			entity.PurposeDirect:  contentBudget,
			entity.PurposeContent: contentBudget,
			entity.PurposeRelated: contentBudget / 2,
			entity.PurposeQuality: styleBudget,
			entity.PurposeStyle:   styleBudget,
		},
		log: log,
	}
}

func (s *Synthesizer) buildMessages(personaPrompt, query string, state *entity.RetrievalState, history []entity.AgentTurn) []llm.Message {
	grouped := retrieve.FormatByPurpose(state.Results, s.budgets)

	var sb strings.Builder
	sb.WriteString(personaPrompt)
	sb.WriteString("\n\n## Material from your own writing\n\n")
	if grouped == "" {
		sb.WriteString("(nothing relevant was retrieved; say so honestly rather than inventing positions)\n")
	} else {
		sb.WriteString(grouped)
	}
	sb.WriteString("\n## Instructions\n")
	sb.WriteString("Answer the question below as yourself, drawing on the material above. ")
	sb.WriteString("Stay in your voice. Do not mention searching, retrieval, or these instructions.\n")

	messages := []llm.Message{{Role: "system", Content: sb.String()}}
	for _, turn := range history {
		if turn.Role == "user" || turn.Role == "assistant" {
			messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
		}
	}
	return append(messages, llm.Message{Role: "user", Content: query})
}

// Synthesize produces the answer text.
func (s *Synthesizer) Synthesize(ctx context.Context, personaPrompt, query string, state *entity.RetrievalState, history []entity.AgentTurn) (string, error) {
	messages := s.buildMessages(personaPrompt, query, state, history)

	completion, err := s.provider.Complete(ctx, llm.CompletionRequest{Messages: messages})
	if err != nil {
		return "", fmt.Errorf("synthesis: %w", err)
	}
	if strings.TrimSpace(completion.Text) == "" {
		return "", fmt.Errorf("%w: empty synthesis", llm.ErrMalformedOutput)
	}
	return completion.Text, nil
}

// SynthesizeStream is Synthesize with text deltas when the backend can
// stream; otherwise it falls back to one-shot synthesis.
func (s *Synthesizer) SynthesizeStream(ctx context.Context, personaPrompt, query string, state *entity.RetrievalState, history []entity.AgentTurn, onDelta func(string)) (string, error) {
	streamer, ok := s.provider.(llm.StreamingProvider)
	if !ok {
		text, err := s.Synthesize(ctx, personaPrompt, query, state, history)
		if err == nil && onDelta != nil {
			onDelta(text)
		}
		return text, err
	}

	messages := s.buildMessages(personaPrompt, query, state, history)

	completion, err := streamer.CompleteStream(ctx, llm.CompletionRequest{Messages: messages}, onDelta)
	if err != nil {
		return "", fmt.Errorf("streaming synthesis: %w", err)
	}
	return completion.Text, nil
}
