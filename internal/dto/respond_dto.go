package dto

// RespondRequest is the transport-facing request for a persona answer.
type RespondRequest struct {
	Persona string        `json:"persona" validate:"required,min=1,max=64"`
	Query   string        `json:"query" validate:"required,min=1,max=8000"`
	History []HistoryTurn `json:"history,omitempty" validate:"max=40,dive"`
}

type HistoryTurn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// CritiqueRequest asks a persona to review a document.
type CritiqueRequest struct {
	Persona  string `json:"persona" validate:"required,min=1,max=64"`
	Document string `json:"document" validate:"required,min=1"`
}

// RespondResult is the terminal outcome of either engine mode.
type RespondResult struct {
	Response   string         `json:"response"`
	ToolCalls  []ToolCallLog  `json:"tool_calls,omitempty"`
	Iterations int            `json:"iterations"`
	Mode       string         `json:"mode"` // "agent" or "pipeline"
	Degraded   bool           `json:"degraded,omitempty"`
	Err        string         `json:"error,omitempty"`
	Feedback   []FeedbackItem `json:"feedback,omitempty"`
}

type ToolCallLog struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
	Result    string                 `json:"result"`
	IsError   bool                   `json:"is_error,omitempty"`
}

// FeedbackItem is one piece of grounded critic feedback.
type FeedbackItem struct {
	Type          string   `json:"type"` // issue, suggestion, praise, question
	Category      string   `json:"category"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Severity      string   `json:"severity"` // low, medium, high
	Confidence    float64  `json:"confidence"`
	CorpusSources []string `json:"corpus_sources"`
	TextPositions [][2]int `json:"text_positions,omitempty"`
}

// StreamEvent is one frame of a streaming response.
type StreamEvent struct {
	Type    string         `json:"type"` // "status", "text", "result"
	Stage   string         `json:"stage,omitempty"`
	Message string         `json:"message,omitempty"`
	Text    string         `json:"text,omitempty"`
	Result  *RespondResult `json:"result,omitempty"`
}
