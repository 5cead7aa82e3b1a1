package entity

// IssueType classifies what a critic flagged in a document.
type IssueType string

const (
	IssueContest    IssueType = "contest"    // the persona would push back
	IssueGap        IssueType = "gap"        // missing consideration
	IssueEnrichment IssueType = "enrichment" // corpus material would deepen it
	IssueCraft      IssueType = "craft"      // prose-level weakness
)

// CritiqueIssue is one flagged span of the reviewed document, with the
// evidence search that should ground the eventual feedback.
type CritiqueIssue struct {
	Type                 IssueType  `json:"type"`
	ClaimOrPassage       string     `json:"claim_or_passage"`
	PositionStart        int        `json:"position_start"`
	PositionEnd          int        `json:"position_end"`
	Reaction             string     `json:"your_reaction"`
	TensionWithWorldview string     `json:"tension_with_worldview"`
	Severity             string     `json:"severity"`
	EvidenceSearch       SearchSpec `json:"evidence_search"`
}

// StyleProfile captures how the persona writes, distilled from corpus
// samples. Every field has a usable default so a partial extraction
// still yields a workable profile.
type StyleProfile struct {
	SentencePatterns    []string `json:"sentence_patterns"`
	Vocabulary          []string `json:"vocabulary"`
	RhetoricalMoves     []string `json:"rhetorical_moves"`
	Tone                []string `json:"tone"`
	DistinctiveFeatures []string `json:"distinctive_features"`
	ExemplarSentences   []string `json:"exemplar_sentences"`
	StyleSummary        string   `json:"style_summary"`
}
