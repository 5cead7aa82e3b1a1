package retrieve

import (
	"context"
	"fmt"
	"strings"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"
)

// Searcher is the single capability the retriever needs. Satisfied by
// search.CorpusSearchTool.
type Searcher interface {
	SearchBroad(ctx context.Context, query string, k, ceiling int, filters entity.SearchFilters) ([]entity.Fragment, error)
}

// Retriever executes planned searches against the corpus. It is fully
// deterministic: specs run sequentially in plan order and a failed
// search is recorded rather than aborting the batch.
type Retriever struct {
	searcher Searcher
	maxK     int
	log      logger.ILogger
}

func NewRetriever(searcher Searcher, maxK int, log logger.ILogger) *Retriever {
	if maxK <= 0 {
		maxK = 20
	}
	return &Retriever{
		searcher: searcher,
		maxK:     maxK,
		log:      log,
	}
}

// Execute runs every spec and returns one result per spec, in order.
func (r *Retriever) Execute(ctx context.Context, persona string, specs []entity.SearchSpec) []entity.SearchResult {
	return r.ExecuteWithCeiling(ctx, persona, specs, r.maxK)
}

// ExecuteWithCeiling allows stage-specific k ceilings (worldview and
// evidence sweeps go wider than standard retrieval).
func (r *Retriever) ExecuteWithCeiling(ctx context.Context, persona string, specs []entity.SearchSpec, ceiling int) []entity.SearchResult {
	results := make([]entity.SearchResult, 0, len(specs))

	for _, spec := range specs {
		filters := entity.SearchFilters{Persona: persona}

		fragments, err := r.searcher.SearchBroad(ctx, spec.Query, spec.K, ceiling, filters)
		if err != nil {
			r.log.Warn("retriever", "search failed", map[string]interface{}{
				"query":   spec.Query,
				"purpose": string(spec.Purpose),
				"error":   err.Error(),
			})
			results = append(results, entity.SearchResult{
				Spec:      spec,
				Fragments: []entity.Fragment{},
				Err:       err.Error(),
			})
			continue
		}

		results = append(results, entity.SearchResult{
			Spec:      spec,
			Fragments: dedupe(fragments),
		})
	}

	return results
}

// FormatByPurpose renders results grouped by search purpose, each group
// held to a character budget. The synthesizer prompt consumes this.
func FormatByPurpose(results []entity.SearchResult, budgets map[entity.SearchPurpose]int) string {
	grouped := make(map[entity.SearchPurpose][]entity.Fragment)
	var order []entity.SearchPurpose
	seen := make(map[string]bool)

	for _, res := range results {
		purpose := res.Spec.Purpose
		if _, ok := grouped[purpose]; !ok {
			order = append(order, purpose)
		}
		for _, frag := range res.Fragments {
			if seen[frag.Id.String()] {
				continue
			}
			seen[frag.Id.String()] = true
			grouped[purpose] = append(grouped[purpose], frag)
		}
	}

	var sb strings.Builder
	for _, purpose := range order {
		frags := grouped[purpose]
		if len(frags) == 0 {
			continue
		}

		budget := budgets[purpose]
		if budget <= 0 {
			budget = 4000
		}

		sb.WriteString(fmt.Sprintf("## Retrieved for %s\n\n", purpose))
		used := 0
		for _, frag := range frags {
			chunk := frag.Content
			if used+len(chunk) > budget {
				remaining := budget - used
				if remaining < 200 {
					break
				}
				chunk = chunk[:remaining]
			}
			sb.WriteString(fmt.Sprintf("[%s #%d]\n%s\n\n", frag.SourceFile, frag.ChunkIndex, chunk))
			used += len(chunk)
			if used >= budget {
				break
			}
		}
	}
	return sb.String()
}

func dedupe(fragments []entity.Fragment) []entity.Fragment {
	seen := make(map[string]bool, len(fragments))
	out := make([]entity.Fragment, 0, len(fragments))
	for _, frag := range fragments {
		if seen[frag.Id.String()] {
			continue
		}
		seen[frag.Id.String()] = true
		out = append(out, frag)
	}
	return out
}
