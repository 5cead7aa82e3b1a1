package pipeline

import (
	"context"
	"fmt"
	"strings"

	"persona-rag-be/internal/dto"
	"persona-rag-be/internal/entity"
	"persona-rag-be/pkg/llm"
)

type feedbackResponse struct {
	Feedback []feedbackItem `json:"feedback"`
}

type feedbackItem struct {
	Type          string   `json:"type"`
	Category      string   `json:"category"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Severity      string   `json:"severity"`
	Confidence    float64  `json:"confidence"`
	CorpusSources []string `json:"corpus_sources"`
}

// synthesizeFeedback turns critic issues plus retrieved evidence into
// the final feedback items. Every item is forced back onto corpus
// ground: cited sources must be files that were actually retrieved,
// and the item count mirrors the issue count.
func (p *Pipeline) synthesizeFeedback(
	ctx context.Context,
	personaPrompt, document string,
	profile entity.StyleProfile,
	issues []entity.CritiqueIssue,
	evidence []entity.SearchResult,
	worldview *entity.RetrievalState,
) []dto.FeedbackItem {
	retrieved := worldview.SourceFiles()
	evidenceState := &entity.RetrievalState{Results: evidence}
	for file := range evidenceState.SourceFiles() {
		retrieved[file] = true
	}

	prompt := composeFeedbackPrompt(personaPrompt, document, profile, issues, evidence)
	response, err := p.synthesizer.provider.Generate(ctx, prompt, llm.WithTemperature(0.4))
	var parsed feedbackResponse
	if err == nil {
		err = llm.UnmarshalResponse(response, &parsed)
	}
	if err != nil {
		p.log.Warn("pipeline", "feedback synthesis unparseable, deriving from issues", map[string]interface{}{
			"error": err.Error(),
		})
		parsed.Feedback = nil
	}

	// Index-map issues to items: position i of the model's list covers
	// issue i. Missing items are reconstructed from the issue itself so
	// nothing the critic flagged silently disappears.
	items := make([]dto.FeedbackItem, 0, len(issues))
	for i, issue := range issues {
		var item dto.FeedbackItem
		if i < len(parsed.Feedback) {
			item = groundItem(parsed.Feedback[i], retrieved)
		}
		if item.Content == "" {
			item = itemFromIssue(issue)
		}
		if item.Type == "" {
			item.Type = issueTypeToFeedbackType(issue.Type)
		}
		if item.Category == "" {
			item.Category = string(issue.Type)
		}
		if item.Severity == "" {
			item.Severity = issue.Severity
		}
		if item.Confidence <= 0 || item.Confidence > 1 {
			item.Confidence = 0.5
		}
		if len(item.CorpusSources) == 0 {
			item.CorpusSources = evidenceSources(evidence, i, retrieved)
		}
		item.TextPositions = [][2]int{{issue.PositionStart, issue.PositionEnd}}
		items = append(items, item)
	}

	// Extra model items beyond the issue list are kept only when they
	// are praise with valid grounding.
	for i := len(issues); i < len(parsed.Feedback); i++ {
		extra := groundItem(parsed.Feedback[i], retrieved)
		if extra.Type == "praise" && len(extra.CorpusSources) > 0 && extra.Content != "" {
			if extra.Confidence <= 0 || extra.Confidence > 1 {
				extra.Confidence = 0.5
			}
			items = append(items, extra)
		}
	}
	return items
}

// genericCritique is the degraded path when the critic read yields no
// parseable issues: one overall reaction, still in the persona's voice
// and grounded in whatever the worldview pass retrieved.
func (p *Pipeline) genericCritique(
	ctx context.Context,
	requestId, personaName, personaPrompt, document string,
	profile entity.StyleProfile,
	worldview *entity.RetrievalState,
) *dto.RespondResult {
	p.log.Warn("pipeline", "no parseable issues, falling back to generic read", map[string]interface{}{
		"request_id": requestId,
		"persona":    personaName,
	})

	var sb strings.Builder
	sb.WriteString(personaPrompt)
	sb.WriteString("\n\n")
	sb.WriteString(RenderProfile(profile))
	sb.WriteString("\n## Your task\n")
	sb.WriteString("Read the document below and give your honest overall reaction in 2-3 paragraphs, ")
	sb.WriteString("as yourself. Draw on your own positions where they bear on it.\n\n")
	sb.WriteString("## Document\n\n")
	sb.WriteString(document)

	text, err := p.synthesizer.provider.Generate(ctx, sb.String(), llm.WithTemperature(0.6))
	if err != nil || strings.TrimSpace(text) == "" {
		return &dto.RespondResult{
			Response: "I wasn't able to form a useful reading of this document.",
			Mode:     "critic",
			Degraded: true,
			Err:      "critic read produced no issues and generic read failed",
		}
	}

	sources := make([]string, 0, len(worldview.SourceFiles()))
	for file := range worldview.SourceFiles() {
		sources = append(sources, file)
	}
	return &dto.RespondResult{
		Response: text,
		Mode:     "critic",
		Degraded: true,
		Err:      "structured critique unavailable, general reaction only",
		Feedback: []dto.FeedbackItem{{
			Type:          "question",
			Category:      "overall",
			Title:         "Overall reaction",
			Content:       text,
			Severity:      "low",
			Confidence:    0.3,
			CorpusSources: sources,
		}},
	}
}

func composeFeedbackPrompt(
	personaPrompt, document string,
	profile entity.StyleProfile,
	issues []entity.CritiqueIssue,
	evidence []entity.SearchResult,
) string {
	var sb strings.Builder
	sb.WriteString(personaPrompt)
	sb.WriteString("\n\n")
	sb.WriteString(RenderProfile(profile))
	sb.WriteString("\n## Points you flagged while reading\n\n")
	for i, issue := range issues {
		sb.WriteString(fmt.Sprintf("%d. [%s, %s] %q\n", i+1, issue.Type, issue.Severity, truncate(issue.ClaimOrPassage, 200)))
		if issue.Reaction != "" {
			sb.WriteString(fmt.Sprintf("   Your reaction: %s\n", issue.Reaction))
		}
		if issue.TensionWithWorldview != "" {
			sb.WriteString(fmt.Sprintf("   Tension: %s\n", issue.TensionWithWorldview))
		}
		if i < len(evidence) {
			for j, frag := range evidence[i].Fragments {
				if j >= 3 {
					break
				}
				sb.WriteString(fmt.Sprintf("   Evidence [%s]: %s\n", frag.SourceFile, truncate(frag.Content, 300)))
			}
		}
	}
	sb.WriteString("\n## Document under review\n\n")
	sb.WriteString(document)
	sb.WriteString("\n\n## Instructions\n")
	sb.WriteString("Write one feedback entry per flagged point, in order, in your own voice. ")
	sb.WriteString("Cite only the source files shown in the evidence above. ")
	sb.WriteString("Respond with JSON only:\n")
	sb.WriteString(`{"feedback": [{"type": "issue|suggestion|praise|question", "category": "...", "title": "...", "content": "...", "severity": "low|medium|high", "confidence": 0.0, "corpus_sources": ["file"]}]}`)
	sb.WriteString("\n")
	return sb.String()
}

// groundItem drops cited sources that were never actually retrieved.
func groundItem(raw feedbackItem, retrieved map[string]bool) dto.FeedbackItem {
	var sources []string
	for _, src := range raw.CorpusSources {
		if retrieved[src] {
			sources = append(sources, src)
		}
	}
	return dto.FeedbackItem{
		Type:          raw.Type,
		Category:      raw.Category,
		Title:         raw.Title,
		Content:       raw.Content,
		Severity:      raw.Severity,
		Confidence:    raw.Confidence,
		CorpusSources: sources,
	}
}

func itemFromIssue(issue entity.CritiqueIssue) dto.FeedbackItem {
	content := issue.Reaction
	if content == "" {
		content = fmt.Sprintf("This passage deserves another look: %s", truncate(issue.ClaimOrPassage, 200))
	}
	return dto.FeedbackItem{
		Type:     issueTypeToFeedbackType(issue.Type),
		Category: string(issue.Type),
		Title:    truncate(issue.ClaimOrPassage, 60),
		Content:  content,
		Severity: issue.Severity,
	}
}

func issueTypeToFeedbackType(t entity.IssueType) string {
	switch t {
	case entity.IssueContest, entity.IssueGap:
		return "issue"
	case entity.IssueEnrichment, entity.IssueCraft:
		return "suggestion"
	default:
		return "issue"
	}
}

func evidenceSources(evidence []entity.SearchResult, index int, retrieved map[string]bool) []string {
	if index >= len(evidence) {
		return nil
	}
	seen := make(map[string]bool)
	var sources []string
	for _, frag := range evidence[index].Fragments {
		if seen[frag.SourceFile] || !retrieved[frag.SourceFile] {
			continue
		}
		seen[frag.SourceFile] = true
		sources = append(sources, frag.SourceFile)
	}
	return sources
}

func renderFeedbackSummary(items []dto.FeedbackItem) string {
	if len(items) == 0 {
		return "I read it through and have nothing substantial to flag."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("I have %d points of feedback.\n\n", len(items)))
	for i, item := range items {
		sb.WriteString(fmt.Sprintf("%d. [%s] %s\n%s\n\n", i+1, item.Severity, item.Title, item.Content))
	}
	return strings.TrimRight(sb.String(), "\n")
}
