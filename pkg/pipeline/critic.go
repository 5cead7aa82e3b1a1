package pipeline

import (
	"context"
	"fmt"
	"strings"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"
	"persona-rag-be/pkg/llm"
	"persona-rag-be/pkg/utils"
)

// CriticReader reads a document through the persona's worldview and
// flags the spans worth responding to, each with the evidence search
// that should ground the eventual feedback.
type CriticReader struct {
	provider  llm.CompletionProvider
	evidenceK int
	log       logger.ILogger
}

func NewCriticReader(provider llm.CompletionProvider, evidenceK int, log logger.ILogger) *CriticReader {
	if evidenceK <= 0 {
		evidenceK = 25
	}
	return &CriticReader{provider: provider, evidenceK: evidenceK, log: log}
}

type criticRead struct {
	Issues []entity.CritiqueIssue `json:"issues"`
}

// maxIssues bounds the flagged list. Each issue costs one evidence
// retrieval and one feedback item, so a verbose model must not be able
// to inflate the critique without limit.
const maxIssues = 12

// Read returns flagged issues. An unparseable read returns an empty
// list; the pipeline degrades to a generic reading rather than failing.
func (c *CriticReader) Read(ctx context.Context, persona, document, worldviewContext string) []entity.CritiqueIssue {
	prompt := c.composePrompt(persona, document, worldviewContext)

	response, err := c.provider.Generate(ctx, prompt, llm.WithTemperature(0.4))
	if err != nil {
		c.log.Warn("critic", "read failed, degrading to generic read", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	var read criticRead
	if err := llm.UnmarshalResponse(response, &read); err != nil {
		c.log.Warn("critic", "read unparseable, degrading to generic read", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	return c.sanitize(read.Issues, len(document))
}

func (c *CriticReader) sanitize(issues []entity.CritiqueIssue, docLen int) []entity.CritiqueIssue {
	if len(issues) > maxIssues {
		c.log.Warn("critic", "issue list capped", map[string]interface{}{
			"flagged": len(issues),
			"kept":    maxIssues,
		})
		issues = issues[:maxIssues]
	}
	out := make([]entity.CritiqueIssue, 0, len(issues))
	for _, issue := range issues {
		switch issue.Type {
		case entity.IssueContest, entity.IssueGap, entity.IssueEnrichment, entity.IssueCraft:
		default:
			issue.Type = entity.IssueEnrichment
		}
		switch issue.Severity {
		case "low", "medium", "high":
		default:
			issue.Severity = "medium"
		}
		if issue.PositionStart < 0 {
			issue.PositionStart = 0
		}
		if issue.PositionEnd > docLen {
			issue.PositionEnd = docLen
		}
		if issue.PositionEnd < issue.PositionStart {
			issue.PositionEnd = issue.PositionStart
		}
		if strings.TrimSpace(issue.EvidenceSearch.Query) == "" {
			issue.EvidenceSearch.Query = issue.ClaimOrPassage
		}
		if issue.EvidenceSearch.K <= 0 {
			issue.EvidenceSearch.K = 8
		}
		if issue.EvidenceSearch.K > c.evidenceK {
			issue.EvidenceSearch.K = c.evidenceK
		}
		if issue.EvidenceSearch.Purpose == "" {
			issue.EvidenceSearch.Purpose = entity.PurposeContent
		}
		out = append(out, issue)
	}
	return out
}

func (c *CriticReader) composePrompt(persona, document, worldviewContext string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are reading a document as %q would: through their positions, values and standards of craft.\n\n", persona))

	sb.WriteString("## What this persona believes (from their own writing)\n\n")
	sb.WriteString(worldviewContext)

	sb.WriteString("\n\n## The document under review\n\n")
	sb.WriteString(document)

	sb.WriteString("\n\n## Your task\n")
	sb.WriteString(fmt.Sprintf("Flag the spans this persona would actually react to: between 5 and %d substantive issues, never more. Issue types:\n", maxIssues))
	sb.WriteString("- contest: the persona would push back on this claim\n")
	sb.WriteString("- gap: a consideration the persona would insist on is missing\n")
	sb.WriteString("- enrichment: the persona's corpus has material that would deepen this\n")
	sb.WriteString("- craft: prose-level weakness by the persona's standards\n\n")

	sb.WriteString("For each issue also design one evidence_search: the corpus query that retrieves the persona's own material backing the reaction.\n\n")

	sb.WriteString("Respond with ONLY a JSON object:\n")
	sb.WriteString(`{"issues": [{"type": "contest", "claim_or_passage": "...", "position_start": 0, "position_end": 0, "your_reaction": "...", "tension_with_worldview": "...", "severity": "medium", "evidence_search": {"query": "...", "purpose": "content", "k": 8}}]}`)

	return sb.String()
}

// topicHint extracts a 1-2 sentence summary of what a document is
// about, for worldview planning. Works from the head of the document
// only; the full text comes later in the critic read.
func topicHint(ctx context.Context, provider llm.CompletionProvider, document string, log logger.ILogger) string {
	head := utils.TruncateRunes(document, 2000)

	prompt := fmt.Sprintf(`State in one or two sentences what this document is about. Respond with the sentences only.

%s`, head)

	hint, err := provider.Generate(ctx, prompt, llm.WithTemperature(0.0))
	if err != nil {
		log.Warn("critic", "topic hint failed, using document head", map[string]interface{}{
			"error": err.Error(),
		})
		return utils.TruncateRunes(head, 300)
	}
	return strings.TrimSpace(hint)
}
