package rank

import (
	"testing"

	"persona-rag-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func frag(id byte, similarity float64) entity.Fragment {
	var raw [16]byte
	raw[0] = id
	u, _ := uuid.FromBytes(raw[:])
	return entity.Fragment{Id: u, Similarity: similarity, Content: "fragment"}
}

func ids(fragments []entity.Fragment) []byte {
	out := make([]byte, len(fragments))
	for i, f := range fragments {
		out[i] = f.Id[0]
	}
	return out
}

func TestFuseLexicalFallback(t *testing.T) {
	// Three semantic hits, no lexical hits: lexical arm is too
	// restrictive for k=4 and the semantic ordering survives with raw
	// similarity scores.
	f := NewFuser(DefaultConfig())

	semantic := []entity.Fragment{frag(1, 0.91), frag(2, 0.88), frag(3, 0.5)}
	got := f.Fuse(semantic, nil, 4)

	assert.Equal(t, []byte{1, 2, 3}, ids(got))
	assert.Equal(t, 0.91, got[0].Similarity)
	assert.Equal(t, 0.88, got[1].Similarity)
	assert.Equal(t, 0.5, got[2].Similarity)
}

func TestFuseLexicalFallbackThreshold(t *testing.T) {
	tests := []struct {
		name       string
		k          int
		lexCount   int
		wantFallen bool
	}{
		{"zero lexical falls back", 10, 0, true},
		{"below half falls back", 10, 4, true},
		{"exactly half fuses", 10, 5, false},
		{"above half fuses", 10, 9, false},
	}

	f := NewFuser(DefaultConfig())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			semantic := []entity.Fragment{frag(1, 0.9), frag(2, 0.8)}
			var lexical []entity.Fragment
			for i := 0; i < tt.lexCount; i++ {
				lexical = append(lexical, frag(byte(100+i), 0))
			}

			got := f.Fuse(semantic, lexical, tt.k)
			if len(got) == 0 {
				t.Fatalf("empty fusion result")
			}

			fellBack := got[0].Similarity == 0.9
			if fellBack != tt.wantFallen {
				t.Errorf("fallback = %v, want %v (top score %f)", fellBack, tt.wantFallen, got[0].Similarity)
			}
		})
	}
}

func TestFuseBothArmsBonus(t *testing.T) {
	// Fragment 2 ranks second in both arms; fragment 1 leads only the
	// semantic arm. The both-arms bonus must lift fragment 2 above it.
	f := NewFuser(DefaultConfig())

	semantic := []entity.Fragment{frag(1, 0.95), frag(2, 0.90)}
	lexical := []entity.Fragment{frag(3, 0), frag(2, 0)}

	got := f.Fuse(semantic, lexical, 2)

	assert.Equal(t, byte(2), got[0].Id[0], "fragment in both arms should rank first")
}

func TestFuseIdempotent(t *testing.T) {
	f := NewFuser(DefaultConfig())

	semantic := []entity.Fragment{frag(1, 0.9), frag(2, 0.8), frag(3, 0.7)}
	lexical := []entity.Fragment{frag(3, 0), frag(4, 0), frag(1, 0)}

	first := f.Fuse(semantic, lexical, 3)
	for i := 0; i < 10; i++ {
		again := f.Fuse(semantic, lexical, 3)
		assert.Equal(t, ids(first), ids(again), "fusion must be deterministic")
	}
}

func TestFuseTruncatesToK(t *testing.T) {
	f := NewFuser(DefaultConfig())

	var semantic, lexical []entity.Fragment
	for i := 0; i < 10; i++ {
		semantic = append(semantic, frag(byte(i+1), 0.9-float64(i)*0.01))
		lexical = append(lexical, frag(byte(i+1), 0))
	}

	got := f.Fuse(semantic, lexical, 4)
	assert.Len(t, got, 4)
}

func TestFuseScoreFormula(t *testing.T) {
	// Single fragment in the semantic arm only, enough lexical volume
	// to trigger fusion: score must be exactly w/(60+rank) with the
	// top hit at rank 1.
	f := NewFuser(DefaultConfig())

	semantic := []entity.Fragment{frag(1, 0.9)}
	lexical := []entity.Fragment{frag(2, 0), frag(3, 0)}

	got := f.Fuse(semantic, lexical, 2)

	want := 0.7 / 61.0
	var seen bool
	for _, g := range got {
		if g.Id[0] == 1 {
			seen = true
			assert.InDelta(t, want, g.Similarity, 1e-12)
		}
	}
	assert.True(t, seen, "semantic-only fragment missing from fusion")
}
