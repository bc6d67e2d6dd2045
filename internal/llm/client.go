package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// UpstreamError reports a non-success status or malformed payload from the
// completion endpoint.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("completion endpoint error (status %d): %s", e.StatusCode, e.Message)
	}
	return "completion endpoint error: " + e.Message
}

// Client calls an OpenAI-compatible /v1/chat/completions endpoint.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient builds a client for baseURL. Request deadlines come from the
// caller's context, not from the http.Client.
func NewClient(apiKey, baseURL string) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = "https://api.openai.com"
	}
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: base,
		http:    &http.Client{},
	}
}

// Enabled reports whether an API key is configured. The chat surface is
// advertised as disabled without one.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type wireRequest struct {
	Model      string    `json:"model"`
	Messages   []Message `json:"messages"`
	Tools      []Tool    `json:"tools,omitempty"`
	ToolChoice string    `json:"tool_choice,omitempty"`
}

type wireResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete performs one chat completion. Tool choice is "auto" whenever a
// manifest is supplied.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	if c.apiKey == "" {
		return Response{}, &UpstreamError{Message: "no API key configured"}
	}

	body := wireRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Tools:    req.Tools,
	}
	if len(req.Tools) > 0 {
		body.ToolChoice = "auto"
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, &UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return Response{}, &UpstreamError{StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(payload))
		var wire wireResponse
		if json.Unmarshal(payload, &wire) == nil && wire.Error != nil && wire.Error.Message != "" {
			msg = wire.Error.Message
		}
		return Response{}, &UpstreamError{StatusCode: resp.StatusCode, Message: msg}
	}

	var wire wireResponse
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Response{}, &UpstreamError{StatusCode: resp.StatusCode, Message: "malformed completion payload: " + err.Error()}
	}
	if len(wire.Choices) == 0 {
		return Response{}, &UpstreamError{StatusCode: resp.StatusCode, Message: "completion payload contains no choices"}
	}
	return Response{
		Message:      wire.Choices[0].Message,
		FinishReason: wire.Choices[0].FinishReason,
	}, nil
}
