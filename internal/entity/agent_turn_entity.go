package entity

// ToolCall is a vendor-neutral tool invocation requested by the model.
type ToolCall struct {
	Id        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolResult is the outcome of executing one tool call.
type ToolResult struct {
	CallId  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// AgentTurn is one exchange in the agent conversation, kept in a
// vendor-neutral shape. Backends map turns to their wire format.
type AgentTurn struct {
	Role        string       `json:"role"` // "system", "user", "assistant", "tool"
	Content     string       `json:"content"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}
