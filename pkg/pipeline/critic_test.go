package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func issueListJSON(n int) string {
	var sb strings.Builder
	sb.WriteString(`{"issues": [`)
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf(`{"type": "contest", "claim_or_passage": "claim %d", "position_start": 0, "position_end": 10, "your_reaction": "pushback", "severity": "medium", "evidence_search": {"query": "claim %d", "purpose": "content", "k": 5}}`, i, i))
	}
	sb.WriteString("]}")
	return sb.String()
}

func TestCriticReadCapsIssueCount(t *testing.T) {
	provider := &scriptedProvider{generates: []string{issueListJSON(50)}}
	reader := NewCriticReader(provider, 25, logger.NewTestLogger())

	issues := reader.Read(context.Background(), "mentor", strings.Repeat("text ", 100), "worldview context")

	assert.Len(t, issues, maxIssues, "a verbose model must not inflate the critique")
	assert.Equal(t, "claim 0", issues[0].ClaimOrPassage)
}

func TestCriticReadKeepsSmallLists(t *testing.T) {
	provider := &scriptedProvider{generates: []string{issueListJSON(3)}}
	reader := NewCriticReader(provider, 25, logger.NewTestLogger())

	issues := reader.Read(context.Background(), "mentor", strings.Repeat("text ", 100), "worldview context")

	assert.Len(t, issues, 3)
	for _, issue := range issues {
		assert.Equal(t, entity.IssueContest, issue.Type)
	}
}
