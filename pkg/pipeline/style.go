package pipeline

import (
	"context"
	"fmt"
	"strings"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"
	"persona-rag-be/pkg/llm"
)

// StyleConfig bounds the sampling the extractor feeds the model.
type StyleConfig struct {
	MaxSamples     int
	MaxSampleChars int
	MinChunkChars  int
}

func DefaultStyleConfig() StyleConfig {
	return StyleConfig{
		MaxSamples:     25,
		MaxSampleChars: 30000,
		MinChunkChars:  100,
	}
}

// StyleExtractor distills a StyleProfile from retrieved corpus
// material, sampling across source files so one document's register
// doesn't dominate.
type StyleExtractor struct {
	provider llm.CompletionProvider
	cfg      StyleConfig
	log      logger.ILogger
}

func NewStyleExtractor(provider llm.CompletionProvider, cfg StyleConfig, log logger.ILogger) *StyleExtractor {
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = 25
	}
	if cfg.MaxSampleChars <= 0 {
		cfg.MaxSampleChars = 30000
	}
	if cfg.MinChunkChars <= 0 {
		cfg.MinChunkChars = 100
	}
	return &StyleExtractor{provider: provider, cfg: cfg, log: log}
}

// Extract builds the profile. Failures yield the default profile; a
// partial parse yields whatever fields arrived plus defaults.
func (s *StyleExtractor) Extract(ctx context.Context, persona string, fragments []entity.Fragment) entity.StyleProfile {
	samples := s.selectSamples(fragments)
	if len(samples) == 0 {
		s.log.Warn("style", "no usable samples, using default profile", map[string]interface{}{
			"persona": persona,
		})
		return defaultStyleProfile()
	}

	prompt := s.composePrompt(samples)

	response, err := s.provider.Generate(ctx, prompt, llm.WithTemperature(0.2))
	if err != nil {
		s.log.Warn("style", "extraction failed, using default profile", map[string]interface{}{
			"error": err.Error(),
		})
		return defaultStyleProfile()
	}

	var profile entity.StyleProfile
	if err := llm.UnmarshalResponse(response, &profile); err != nil {
		s.log.Warn("style", "profile unparseable, using default profile", map[string]interface{}{
			"error": err.Error(),
		})
		return defaultStyleProfile()
	}

	applyProfileDefaults(&profile)
	return profile
}

// selectSamples round-robins across distinct source files, skipping
// fragments too short to show style, until the sample or char budget
// is spent.
func (s *StyleExtractor) selectSamples(fragments []entity.Fragment) []entity.Fragment {
	bySource := make(map[string][]entity.Fragment)
	var order []string
	for _, frag := range fragments {
		if len(frag.Content) < s.cfg.MinChunkChars {
			continue
		}
		key := frag.SourceFile
		if _, seen := bySource[key]; !seen {
			order = append(order, key)
		}
		bySource[key] = append(bySource[key], frag)
	}

	var samples []entity.Fragment
	usedChars := 0
	for depth := 0; len(samples) < s.cfg.MaxSamples; depth++ {
		progressed := false
		for _, key := range order {
			frags := bySource[key]
			if depth >= len(frags) {
				continue
			}
			frag := frags[depth]
			if usedChars+len(frag.Content) > s.cfg.MaxSampleChars {
				continue
			}
			samples = append(samples, frag)
			usedChars += len(frag.Content)
			progressed = true
			if len(samples) == s.cfg.MaxSamples {
				break
			}
		}
		if !progressed {
			break
		}
	}
	return samples
}

func (s *StyleExtractor) composePrompt(samples []entity.Fragment) string {
	var sb strings.Builder

	sb.WriteString("Study these writing samples and describe the author's style precisely.\n\n")
	for i, frag := range samples {
		sb.WriteString(fmt.Sprintf("--- Sample %d (%s) ---\n%s\n\n", i+1, frag.SourceFile, frag.Content))
	}

	sb.WriteString("Respond with ONLY a JSON object:\n")
	sb.WriteString(`{
  "sentence_patterns": ["..."],
  "vocabulary": ["..."],
  "rhetorical_moves": ["..."],
  "tone": ["..."],
  "distinctive_features": ["..."],
  "exemplar_sentences": ["verbatim sentences from the samples"],
  "style_summary": "two or three sentences"
}`)

	return sb.String()
}

func applyProfileDefaults(p *entity.StyleProfile) {
	if len(p.SentencePatterns) == 0 {
		p.SentencePatterns = []string{"varied sentence length with a preference for directness"}
	}
	if len(p.Vocabulary) == 0 {
		p.Vocabulary = []string{"plain words over jargon"}
	}
	if len(p.RhetoricalMoves) == 0 {
		p.RhetoricalMoves = []string{"concrete examples before abstractions"}
	}
	if len(p.Tone) == 0 {
		p.Tone = []string{"direct", "engaged"}
	}
	if len(p.DistinctiveFeatures) == 0 {
		p.DistinctiveFeatures = []string{"first-person argument"}
	}
	if p.StyleSummary == "" {
		p.StyleSummary = "Direct, example-driven prose in the first person."
	}
}

func defaultStyleProfile() entity.StyleProfile {
	var p entity.StyleProfile
	applyProfileDefaults(&p)
	return p
}

// RenderProfile formats a profile as a prompt section.
func RenderProfile(p entity.StyleProfile) string {
	var sb strings.Builder
	sb.WriteString("## How you write\n")
	sb.WriteString(p.StyleSummary)
	sb.WriteString("\n\nSentence patterns: ")
	sb.WriteString(strings.Join(p.SentencePatterns, "; "))
	sb.WriteString("\nVocabulary: ")
	sb.WriteString(strings.Join(p.Vocabulary, "; "))
	sb.WriteString("\nRhetorical moves: ")
	sb.WriteString(strings.Join(p.RhetoricalMoves, "; "))
	sb.WriteString("\nTone: ")
	sb.WriteString(strings.Join(p.Tone, "; "))
	sb.WriteString("\nDistinctive features: ")
	sb.WriteString(strings.Join(p.DistinctiveFeatures, "; "))
	if len(p.ExemplarSentences) > 0 {
		sb.WriteString("\n\nSentences of yours to calibrate against:\n")
		for _, s := range p.ExemplarSentences {
			sb.WriteString("- ")
			sb.WriteString(s)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
