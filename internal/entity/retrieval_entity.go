package entity

// SearchPurpose tags what a planned search is trying to gather.
type SearchPurpose string

const (
	PurposeContent SearchPurpose = "content"
	PurposeStyle   SearchPurpose = "style"
	PurposeQuality SearchPurpose = "quality"
	PurposeDirect  SearchPurpose = "direct"
	PurposeRelated SearchPurpose = "related"
)

// SearchSpec is one planned corpus search.
type SearchSpec struct {
	Query   string        `json:"query"`
	Purpose SearchPurpose `json:"purpose"`
	K       int           `json:"k"`
	Reason  string        `json:"reason,omitempty"`
}

// SearchResult pairs a spec with what it retrieved. A failed search
// keeps its spec, carries Err and an empty fragment list; it never
// aborts the batch it belongs to.
type SearchResult struct {
	Spec      SearchSpec
	Fragments []Fragment
	Err       string
}

// Failed reports whether the search errored.
func (r SearchResult) Failed() bool {
	return r.Err != ""
}

// Evaluation is the sufficiency judgement over one retrieval loop.
type Evaluation struct {
	Sufficient         bool         `json:"sufficient"`
	ContentScore       float64      `json:"content_score"`
	StyleScore         float64      `json:"style_score"`
	GroundingScore     float64      `json:"grounding_score"`
	Gaps               []string     `json:"gaps"`
	AdditionalSearches []SearchSpec `json:"additional_searches"`
}

// RetrievalState accumulates results and evaluations across loops.
type RetrievalState struct {
	Results     []SearchResult
	Loops       int
	Evaluations []Evaluation
}

// Fragments flattens all successfully retrieved fragments, deduplicated
// by fragment id, preserving first-seen order.
func (s *RetrievalState) AllFragments() []Fragment {
	seen := make(map[string]bool)
	var out []Fragment
	for _, res := range s.Results {
		for _, f := range res.Fragments {
			key := f.Id.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, f)
		}
	}
	return out
}

// SourceFiles lists the distinct source files present in the state.
func (s *RetrievalState) SourceFiles() map[string]bool {
	files := make(map[string]bool)
	for _, res := range s.Results {
		for _, f := range res.Fragments {
			if f.SourceFile != "" {
				files[f.SourceFile] = true
			}
		}
	}
	return files
}
