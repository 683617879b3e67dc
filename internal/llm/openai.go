package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pompdany/gatekeeper/internal/httpkit"
)

// OpenAIClient speaks the OpenAI chat completions protocol
// (POST /v1/chat/completions). Any service exposing that protocol works.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates a chat completions client.
func NewOpenAIClient(baseURL, apiKey string, logger *slog.Logger) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &OpenAIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: httpkit.NewClient(
			// Model calls with tools can be slow; the turn's context
			// deadline is the effective bound.
			httpkit.WithTimeout(5 * time.Minute),
		),
		logger: logger,
	}
}

// Wire types. Arguments travel as a JSON-encoded string in this protocol;
// conversion to map[string]any happens in fromWireMessage.

type wireToolCall struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatCompletionRequest struct {
	Model       string           `json:"model"`
	Messages    []wireMessage    `json:"messages"`
	Tools       []map[string]any `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"`
	// No omitempty: temperature 0 is a deliberate setting and must
	// reach the provider, or it substitutes its own default.
	Temperature float64 `json:"temperature"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends one chat completion request. Tool schemas are offered only
// when tools is non-empty; tool_choice stays unset otherwise so the
// model cannot be steered toward capabilities the agent does not have.
func (c *OpenAIClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any, temperature float64) (*ChatResponse, error) {
	req := chatCompletionRequest{
		Model:       model,
		Messages:    toWireMessages(messages),
		Tools:       tools,
		Temperature: temperature,
	}
	if len(tools) > 0 {
		req.ToolChoice = "auto"
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if c.logger != nil {
		c.logger.Log(ctx, slog.Level(-8), "chat completion request", "payload", string(jsonData))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 4096))
	}

	var ccResp chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&ccResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(ccResp.Choices) == 0 {
		return nil, fmt.Errorf("empty choices in response")
	}

	out := &ChatResponse{
		Model:        ccResp.Model,
		CreatedAt:    time.Unix(ccResp.Created, 0),
		Message:      fromWireMessage(ccResp.Choices[0].Message),
		InputTokens:  ccResp.Usage.PromptTokens,
		OutputTokens: ccResp.Usage.CompletionTokens,
	}
	return out, nil
}

func toWireMessages(messages []Message) []wireMessage {
	out := make([]wireMessage, len(messages))
	for i, m := range messages {
		wm := wireMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			var wtc wireToolCall
			wtc.ID = tc.ID
			wtc.Type = "function"
			wtc.Function.Name = tc.Function.Name
			if tc.Function.Arguments != nil {
				argsBytes, _ := json.Marshal(tc.Function.Arguments)
				wtc.Function.Arguments = string(argsBytes)
			} else {
				wtc.Function.Arguments = "{}"
			}
			wm.ToolCalls = append(wm.ToolCalls, wtc)
		}
		out[i] = wm
	}
	return out
}

func fromWireMessage(wm wireMessage) Message {
	m := Message{
		Role:       wm.Role,
		Content:    wm.Content,
		ToolCallID: wm.ToolCallID,
	}
	for _, wtc := range wm.ToolCalls {
		var tc ToolCall
		tc.ID = wtc.ID
		tc.Function.Name = wtc.Function.Name
		if wtc.Function.Arguments != "" {
			// A malformed arguments blob still produces a dispatchable
			// call; argument validation rejects it downstream.
			_ = json.Unmarshal([]byte(wtc.Function.Arguments), &tc.Function.Arguments)
		}
		m.ToolCalls = append(m.ToolCalls, tc)
	}
	return m
}
