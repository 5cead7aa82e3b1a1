package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"persona-rag-be/internal/entity"
	"persona-rag-be/pkg/llm"
	"persona-rag-be/pkg/rag/reason"
	"persona-rag-be/pkg/rag/search"
)

// Tool is one capability the agent can invoke mid-conversation.
type Tool interface {
	Schema() llm.ToolSchema
	Execute(ctx context.Context, persona string, args map[string]interface{}) (string, error)
}

// ToolRegistry holds the tools offered to the model, in registration
// order so schemas render deterministically.
type ToolRegistry struct {
	tools  []Tool
	byName map[string]Tool
}

func NewToolRegistry(tools ...Tool) *ToolRegistry {
	r := &ToolRegistry{byName: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

func (r *ToolRegistry) Register(t Tool) {
	name := t.Schema().Name
	if _, exists := r.byName[name]; exists {
		return
	}
	r.tools = append(r.tools, t)
	r.byName[name] = t
}

func (r *ToolRegistry) Schemas() []llm.ToolSchema {
	schemas := make([]llm.ToolSchema, len(r.tools))
	for i, t := range r.tools {
		schemas[i] = t.Schema()
	}
	return schemas
}

func (r *ToolRegistry) Execute(ctx context.Context, persona string, call llm.ToolCall) entity.ToolResult {
	tool, ok := r.byName[call.Name]
	if !ok {
		return entity.ToolResult{
			CallId:  call.Id,
			Name:    call.Name,
			Content: fmt.Sprintf("unknown tool: %s", call.Name),
			IsError: true,
		}
	}

	content, err := tool.Execute(ctx, persona, call.Arguments)
	if err != nil {
		return entity.ToolResult{
			CallId:  call.Id,
			Name:    call.Name,
			Content: fmt.Sprintf("tool error: %v", err),
			IsError: true,
		}
	}
	return entity.ToolResult{
		CallId:  call.Id,
		Name:    call.Name,
		Content: content,
	}
}

// --- search_corpus ---

// SearchCorpusTool exposes hybrid corpus search to the agent.
type SearchCorpusTool struct {
	tool *search.CorpusSearchTool
}

func NewSearchCorpusTool(tool *search.CorpusSearchTool) *SearchCorpusTool {
	return &SearchCorpusTool{tool: tool}
}

func (t *SearchCorpusTool) Schema() llm.ToolSchema {
	return llm.ToolSchema{
		Name:        "search_corpus",
		Description: "Search your own writings for relevant material. Use this before answering any substantive question so your answer stays grounded in what you have actually written.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What to search for",
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "How many fragments to return (default 5)",
				},
				"time_range": map[string]interface{}{
					"type":        "object",
					"description": "Optional time filter",
					"properties": map[string]interface{}{
						"start": map[string]interface{}{
							"type":        "string",
							"description": "ISO datetime or date, or null",
						},
						"end": map[string]interface{}{
							"type":        "string",
							"description": "ISO datetime or date, or null",
						},
					},
				},
				"source_filter": map[string]interface{}{
					"type":        "array",
					"description": "Optional filter by source type",
					"items": map[string]interface{}{
						"enum": []string{"essay", "book", "dialogue", "note"},
					},
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *SearchCorpusTool) Execute(ctx context.Context, persona string, args map[string]interface{}) (string, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is required")
	}

	k := 0
	if raw, ok := args["k"].(float64); ok {
		k = int(raw)
	}

	fragments, err := t.tool.Search(ctx, query, k, parseSearchFilters(persona, args))
	if err != nil {
		return "", err
	}

	if len(fragments) == 0 {
		return "No relevant material found in your corpus for that query.", nil
	}

	var sb strings.Builder
	for i, frag := range fragments {
		sb.WriteString(fmt.Sprintf("[%d] source: %s (chunk %d, score %.3f)\n%s\n\n",
			i+1, frag.SourceFile, frag.ChunkIndex, frag.Similarity, frag.Content))
	}
	return sb.String(), nil
}

// parseSearchFilters maps the optional time_range and source_filter
// arguments onto SearchFilters. Unparseable timestamps and unknown
// source types are dropped rather than failing the call.
func parseSearchFilters(persona string, args map[string]interface{}) entity.SearchFilters {
	filters := entity.SearchFilters{Persona: persona}

	if tr, ok := args["time_range"].(map[string]interface{}); ok {
		if start, ok := tr["start"].(string); ok {
			if ts, ok := parseTimestamp(start); ok {
				filters.TimeRange.Start = ts
			}
		}
		if end, ok := tr["end"].(string); ok {
			if ts, ok := parseTimestamp(end); ok {
				filters.TimeRange.End = ts
			}
		}
	}

	if raw, ok := args["source_filter"].([]interface{}); ok {
		for _, v := range raw {
			s, ok := v.(string)
			if !ok {
				continue
			}
			switch st := entity.SourceType(s); st {
			case entity.SourceEssay, entity.SourceBook, entity.SourceDialogue, entity.SourceNote:
				filters.SourceTypes = append(filters.SourceTypes, st)
			}
		}
	}

	return filters
}

// parseTimestamp accepts RFC 3339 or a bare date, since models emit both.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, true
	}
	if ts, err := time.Parse("2006-01-02", s); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

// --- check_incremental_reasoning ---

// CheckReasoningTool lets the agent verify a reasoning step against the
// corpus before committing to it.
type CheckReasoningTool struct {
	checker *reason.Checker
}

func NewCheckReasoningTool(checker *reason.Checker) *CheckReasoningTool {
	return &CheckReasoningTool{checker: checker}
}

func (t *CheckReasoningTool) Schema() llm.ToolSchema {
	return llm.ToolSchema{
		Name:        "check_incremental_reasoning",
		Description: "Verify that a reasoning step you are about to take stays consistent with your corpus. Returns a JSON verdict with guidance and the nearest corpus concepts.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"reasoning_step": map[string]interface{}{
					"type":        "string",
					"description": "The reasoning step to check",
				},
			},
			"required": []string{"reasoning_step"},
		},
	}
}

func (t *CheckReasoningTool) Execute(ctx context.Context, persona string, args map[string]interface{}) (string, error) {
	step, _ := args["reasoning_step"].(string)
	if strings.TrimSpace(step) == "" {
		return "", fmt.Errorf("reasoning_step is required")
	}

	result, err := t.checker.CheckAndGuide(ctx, persona, step)
	if err != nil {
		return "", err
	}

	serialized, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("serialize check result: %w", err)
	}
	return string(serialized), nil
}
