package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_Complete_DecodesToolCalls(t *testing.T) {
	var gotAuth string
	var gotBody wireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "execute_sql", "arguments": "{\"sql\":\"SELECT 1\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`))
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL)
	resp, err := c.Complete(context.Background(), Request{
		Model:    "gpt-4o",
		Messages: []Message{User("run it")},
		Tools:    []Tool{NewFunctionTool("execute_sql", "run sql", map[string]any{"type": "object"})},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotBody.ToolChoice != "auto" {
		t.Fatalf("tool_choice = %q", gotBody.ToolChoice)
	}
	if !resp.HasToolCalls() {
		t.Fatalf("expected tool calls, got %+v", resp)
	}
	tc := resp.Message.ToolCalls[0]
	if tc.Function.Name != "execute_sql" || tc.ID != "call_1" {
		t.Fatalf("tool call = %+v", tc)
	}
	if resp.FinishReason != "tool_calls" {
		t.Fatalf("finish reason = %q", resp.FinishReason)
	}
}

func TestClient_Complete_UpstreamStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit exceeded"}}`))
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL)
	_, err := c.Complete(context.Background(), Request{Model: "gpt-4o", Messages: []Message{User("hi")}})
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if ue.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d", ue.StatusCode)
	}
	if !strings.Contains(ue.Message, "rate limit exceeded") {
		t.Fatalf("message = %q", ue.Message)
	}
}

func TestClient_Complete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL)
	_, err := c.Complete(context.Background(), Request{Model: "gpt-4o"})
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
}

func TestClient_Complete_ContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient("sk-test", srv.URL)
	_, err := c.Complete(ctx, Request{Model: "gpt-4o"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestClient_Complete_NoAPIKey(t *testing.T) {
	c := NewClient("", "http://unused.invalid")
	if c.Enabled() {
		t.Fatalf("Enabled() = true without key")
	}
	_, err := c.Complete(context.Background(), Request{Model: "gpt-4o"})
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
}
