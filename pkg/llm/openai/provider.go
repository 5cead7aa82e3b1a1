package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"persona-rag-be/pkg/llm"
)

// OpenAIProvider speaks the OpenAI chat/completions wire format. Any
// compatible endpoint (DeepSeek, Moonshot, Hermes behind vLLM) works by
// pointing BaseURL at it.
type OpenAIProvider struct {
	BaseURL   string
	ApiKey    string
	ModelName string
	Client    *http.Client
}

var _ llm.CompletionProvider = &OpenAIProvider{}
var _ llm.StreamingProvider = &OpenAIProvider{}

func NewOpenAIProvider(baseURL, apiKey, modelName string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		BaseURL:   strings.TrimSuffix(baseURL, "/"),
		ApiKey:    apiKey,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 180 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	ToolChoice  interface{}   `json:"tool_choice,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCallId string         `json:"tool_call_id,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type chatToolCall struct {
	Id       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatToolCallFunc `json:"function"`
}

type chatToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// --- Interface Implementation ---

func (p *OpenAIProvider) SupportsTools() bool {
	return true
}

func (p *OpenAIProvider) Complete(ctx context.Context, req llm.CompletionRequest, opts ...llm.Option) (*llm.Completion, error) {
	payload := p.buildPayload(req, false, opts...)

	bodyBytes, err := p.post(ctx, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", llm.ErrMalformedOutput, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", llm.ErrMalformedOutput)
	}

	choice := resp.Choices[0]
	completion := &llm.Completion{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
	}

	for _, tc := range choice.Message.ToolCalls {
		args := make(map[string]interface{})
		// Some compatible endpoints fence the argument string.
		raw := llm.StripFences(tc.Function.Arguments)
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("%w: tool call arguments: %v", llm.ErrMalformedOutput, err)
			}
		}
		completion.ToolCalls = append(completion.ToolCalls, llm.ToolCall{
			Id:        tc.Id,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return completion, nil
}

func (p *OpenAIProvider) CompleteStream(ctx context.Context, req llm.CompletionRequest, onDelta func(text string), opts ...llm.Option) (*llm.Completion, error) {
	payload := p.buildPayload(req, true, opts...)

	httpReq, err := p.newRequest(ctx, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrEndpointFault, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d, body: %s", llm.ErrEndpointFault, resp.StatusCode, string(body))
	}

	var full strings.Builder
	finishReason := "stop"

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // skip keepalives and partial frames
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			full.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}
		if fr := chunk.Choices[0].FinishReason; fr != "" {
			finishReason = fr
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: stream read: %v", llm.ErrEndpointFault, err)
	}

	return &llm.Completion{Text: full.String(), FinishReason: finishReason}, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	completion, err := p.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	}, opts...)
	if err != nil {
		return "", err
	}
	return completion.Text, nil
}

// --- helpers ---

func (p *OpenAIProvider) buildPayload(req llm.CompletionRequest, stream bool, opts ...llm.Option) chatRequest {
	options := &llm.Options{
		Temperature: 0.7, // Default
	}
	for _, opt := range opts {
		opt(options)
	}

	model := p.ModelName
	if options.Model != "" {
		model = options.Model
	}

	messages := make([]chatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		m := chatMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallId: msg.ToolCallId,
		}
		for _, tc := range msg.ToolCalls {
			argBytes, _ := json.Marshal(tc.Arguments)
			m.ToolCalls = append(m.ToolCalls, chatToolCall{
				Id:   tc.Id,
				Type: "function",
				Function: chatToolCallFunc{
					Name:      tc.Name,
					Arguments: string(argBytes),
				},
			})
		}
		messages = append(messages, m)
	}

	payload := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: options.Temperature,
		MaxTokens:   options.MaxTokens,
		Stream:      stream,
	}

	for _, tool := range req.Tools {
		payload.Tools = append(payload.Tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	if req.ForceToolUse && len(payload.Tools) > 0 {
		payload.ToolChoice = "required"
	}

	return payload
}

func (p *OpenAIProvider) newRequest(ctx context.Context, path string, payload chatRequest) (*http.Request, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.BaseURL+path, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.ApiKey)
	}
	return req, nil
}

func (p *OpenAIProvider) post(ctx context.Context, path string, payload chatRequest) ([]byte, error) {
	req, err := p.newRequest(ctx, path, payload)
	if err != nil {
		return nil, err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrEndpointFault, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", llm.ErrEndpointFault, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d, body: %s", llm.ErrEndpointFault, resp.StatusCode, string(bodyBytes))
	}

	return bodyBytes, nil
}
