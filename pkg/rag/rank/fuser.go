package rank

import (
	"sort"

	"persona-rag-be/internal/entity"
)

// Config tunes reciprocal rank fusion.
type Config struct {
	// SemanticWeight splits scoring mass between the semantic and
	// lexical arms. 0.7 favors meaning over exact wording.
	SemanticWeight float64
	// RRFConstant dampens the rank contribution (the classic 60).
	RRFConstant int
	// BothArmsBonus multiplies the fused score of fragments found by
	// both arms.
	BothArmsBonus float64
	// MinLexicalRatio: when the lexical arm returns fewer than
	// k*MinLexicalRatio fragments it is considered too restrictive and
	// fusion falls back to the semantic arm alone.
	MinLexicalRatio float64
}

func DefaultConfig() Config {
	return Config{
		SemanticWeight:  0.7,
		RRFConstant:     60,
		BothArmsBonus:   1.2,
		MinLexicalRatio: 0.5,
	}
}

// Fuser merges ranked result lists with reciprocal rank fusion.
type Fuser struct {
	cfg Config
}

func NewFuser(cfg Config) *Fuser {
	if cfg.SemanticWeight <= 0 || cfg.SemanticWeight > 1 {
		cfg.SemanticWeight = 0.7
	}
	if cfg.RRFConstant <= 0 {
		cfg.RRFConstant = 60
	}
	if cfg.BothArmsBonus <= 0 {
		cfg.BothArmsBonus = 1.2
	}
	if cfg.MinLexicalRatio <= 0 {
		cfg.MinLexicalRatio = 0.5
	}
	return &Fuser{cfg: cfg}
}

// Fuse merges the semantic and lexical arms into the top-k fragments.
// Both inputs must already be ordered best-first. The semantic arm
// carries raw cosine similarity; fused results carry the RRF score in
// Similarity instead.
//
// When the lexical arm is too restrictive (fewer than k*MinLexicalRatio
// hits) the semantic ordering is returned untouched, so raw similarity
// scores survive for threshold-sensitive callers.
func (f *Fuser) Fuse(semantic []entity.Fragment, lexical []entity.Fragment, k int) []entity.Fragment {
	if k <= 0 {
		return nil
	}

	minLexical := int(float64(k) * f.cfg.MinLexicalRatio)
	if len(lexical) < minLexical {
		return truncate(semantic, k)
	}

	// Ranks are 1-based: the top hit contributes w/(c+1).
	semRank := make(map[string]int, len(semantic))
	for i, frag := range semantic {
		id := frag.Id.String()
		if _, ok := semRank[id]; !ok {
			semRank[id] = i + 1
		}
	}
	lexRank := make(map[string]int, len(lexical))
	for i, frag := range lexical {
		id := frag.Id.String()
		if _, ok := lexRank[id]; !ok {
			lexRank[id] = i + 1
		}
	}

	byId := make(map[string]entity.Fragment, len(semantic)+len(lexical))
	for _, frag := range semantic {
		byId[frag.Id.String()] = frag
	}
	for _, frag := range lexical {
		if _, ok := byId[frag.Id.String()]; !ok {
			byId[frag.Id.String()] = frag
		}
	}

	c := float64(f.cfg.RRFConstant)
	w := f.cfg.SemanticWeight

	type scored struct {
		frag  entity.Fragment
		score float64
	}
	fused := make([]scored, 0, len(byId))

	for id, frag := range byId {
		var score float64
		sRank, inSem := semRank[id]
		lRank, inLex := lexRank[id]
		if inSem {
			score += w / (c + float64(sRank))
		}
		if inLex {
			score += (1 - w) / (c + float64(lRank))
		}
		if inSem && inLex {
			score *= f.cfg.BothArmsBonus
		}
		frag.Similarity = score
		fused = append(fused, scored{frag: frag, score: score})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		// Stable ordering across runs
		return fused[i].frag.Id.String() < fused[j].frag.Id.String()
	})

	out := make([]entity.Fragment, 0, k)
	for _, s := range fused {
		if len(out) == k {
			break
		}
		out = append(out, s.frag)
	}
	return out
}

func truncate(fragments []entity.Fragment, k int) []entity.Fragment {
	if len(fragments) <= k {
		return fragments
	}
	return fragments[:k]
}
