package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ai-tel/mcp-gateway/internal/catalog"
	"github.com/ai-tel/mcp-gateway/internal/chat"
	"github.com/ai-tel/mcp-gateway/internal/dag"
	"github.com/ai-tel/mcp-gateway/internal/llm"
	"github.com/ai-tel/mcp-gateway/internal/sqltool"
	"github.com/ai-tel/mcp-gateway/internal/thread"
	"github.com/ai-tel/mcp-gateway/internal/tool"
)

// scriptedClient replays canned completions.
type scriptedClient struct {
	responses []llm.Response
	err       error
}

func (c *scriptedClient) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if c.err != nil {
		return llm.Response{}, c.err
	}
	if len(c.responses) == 0 {
		return llm.Response{}, errors.New("script exhausted")
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

func newTestServer(t *testing.T, client llm.CompletionClient) *Server {
	t.Helper()
	reg := tool.NewRegistry()
	if err := sqltool.NewService(0).Register(reg); err != nil {
		t.Fatalf("sqltool: %v", err)
	}
	if err := catalog.NewService(catalog.NewStore(), 0).Register(reg); err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if err := dag.NewService(dag.NewStore(t.TempDir()), 0).Register(reg); err != nil {
		t.Fatalf("dag: %v", err)
	}

	store := thread.NewStore()
	disp := tool.NewDispatcher(reg, 0, zerolog.Nop())
	if client == nil {
		client = &scriptedClient{}
	}
	orch := chat.New(client, disp, reg, store, chat.Config{Model: "gpt-4o-mini"}, zerolog.Nop())
	return New(Config{Addr: ":0"}, reg, disp, store, orch, true, zerolog.Nop())
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
	servers := body["servers"].(map[string]any)
	for _, name := range []string{"sql-validator", "datahub", "airflow"} {
		if servers[name] != "running" {
			t.Fatalf("server %s = %v", name, servers[name])
		}
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestToolsListing(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/tools", nil)
	body := decode(t, rec)
	if body["total"].(float64) != 11 {
		t.Fatalf("total = %v", body["total"])
	}
	tools := body["tools"].([]any)
	first := tools[0].(map[string]any)
	if first["name"] == "" || first["server"] == "" {
		t.Fatalf("tool entry = %v", first)
	}
}

func TestServersListing(t *testing.T) {
	s := newTestServer(t, nil)
	body := decode(t, doJSON(t, s.Handler(), http.MethodGet, "/servers", nil))
	servers := body["servers"].([]any)
	if len(servers) != 3 {
		t.Fatalf("servers = %v", servers)
	}
	for _, sv := range servers {
		m := sv.(map[string]any)
		if m["status"] != "running" || len(m["tools"].([]any)) == 0 {
			t.Fatalf("server = %v", m)
		}
	}
}

func TestToolCall_Success(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/mcp/tools/call", map[string]any{
		"tool":      "validate_syntax",
		"arguments": map[string]any{"sql": "SELECT stb_id FROM iptv.tb_stb_master LIMIT 5"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["success"] != true || body["server"] != "sql-validator" {
		t.Fatalf("body = %v", body)
	}
	result := body["result"].(map[string]any)
	if result["valid"] != true {
		t.Fatalf("result = %v", result)
	}
}

func TestToolCall_UnknownTool(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/mcp/tools/call", map[string]any{"tool": "nope"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode(t, rec)
	if body["error"] != true || body["code"] != "TOOL_NOT_FOUND" || body["timestamp"] == "" {
		t.Fatalf("body = %v", body)
	}
}

func TestToolCall_MissingToolField(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/mcp/tools/call", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decode(t, rec); body["code"] != "INVALID_REQUEST" {
		t.Fatalf("body = %v", body)
	}
}

func TestToolCall_ValidationFailureIs400(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/mcp/tools/call", map[string]any{
		"tool":      "execute_sql",
		"arguments": map[string]any{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if body := decode(t, rec); body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("body = %v", body)
	}
}

func TestToolCall_DomainErrorIs500(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/mcp/tools/call", map[string]any{
		"tool":      "execute_sql",
		"arguments": map[string]any{"sql": "SELECT * FROM iptv.missing"},
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decode(t, rec); body["code"] != "TABLE_NOT_FOUND" {
		t.Fatalf("body = %v", body)
	}
}

func TestChatStatus(t *testing.T) {
	s := newTestServer(t, nil)
	body := decode(t, doJSON(t, s.Handler(), http.MethodGet, "/chat/status", nil))
	if body["enabled"] != true || body["model"] != "gpt-4o-mini" {
		t.Fatalf("body = %v", body)
	}
	if tools := body["tools"].([]any); len(tools) != 11 {
		t.Fatalf("tools = %d", len(tools))
	}
	if body["activeThreads"].(float64) != 0 {
		t.Fatalf("activeThreads = %v", body["activeThreads"])
	}
}

func TestStatelessChat(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		{Message: llm.Message{Role: llm.RoleAssistant, Content: "hi"}, FinishReason: "stop"},
	}}
	s := newTestServer(t, client)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/chat", map[string]any{"message": "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["message"] != "hi" {
		t.Fatalf("body = %v", body)
	}
	if _, ok := body["toolCalls"].([]any); !ok {
		t.Fatalf("toolCalls missing: %v", body)
	}

	// A stateless chat never creates threads.
	status := decode(t, doJSON(t, s.Handler(), http.MethodGet, "/chat/status", nil))
	if status["activeThreads"].(float64) != 0 {
		t.Fatalf("activeThreads = %v", status["activeThreads"])
	}
}

func TestChat_MissingMessage(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/chat", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decode(t, rec); body["code"] != "INVALID_REQUEST" {
		t.Fatalf("body = %v", body)
	}
}

func TestChat_UpstreamFailure(t *testing.T) {
	client := &scriptedClient{err: &llm.UpstreamError{StatusCode: 500, Message: "boom"}}
	s := newTestServer(t, client)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/chat", map[string]any{"message": "hello"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decode(t, rec); body["code"] != "UPSTREAM_ERROR" {
		t.Fatalf("body = %v", body)
	}
}

func TestThreadedChat_RoundTrip(t *testing.T) {
	args, _ := json.Marshal(map[string]any{"query": "quality"})
	client := &scriptedClient{responses: []llm.Response{
		{Message: llm.Message{
			Role: llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{{
				ID:   "c1",
				Type: "function",
				Function: llm.FunctionCall{
					Name:      "search_tables",
					Arguments: string(args),
				},
			}},
		}, FinishReason: "tool_calls"},
		{Message: llm.Message{Role: llm.RoleAssistant, Content: "found two tables"}, FinishReason: "stop"},
	}}
	s := newTestServer(t, client)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/chat/sess-1/messages", map[string]any{
		"message": "find quality tables",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["threadId"] != "sess-1" || body["message"] != "found two tables" {
		t.Fatalf("body = %v", body)
	}
	calls := body["toolCalls"].([]any)
	if len(calls) != 1 {
		t.Fatalf("toolCalls = %v", calls)
	}
	first := calls[0].(map[string]any)
	if first["name"] != "search_tables" {
		t.Fatalf("call = %v", first)
	}

	// Transcript is readable and carries both messages.
	hist := decode(t, doJSON(t, s.Handler(), http.MethodGet, "/chat/sess-1/messages", nil))
	msgs := hist["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d", len(msgs))
	}

	// Thread shows up in listings and status.
	threads := decode(t, doJSON(t, s.Handler(), http.MethodGet, "/chat/threads", nil))
	if threads["total"].(float64) != 1 {
		t.Fatalf("threads = %v", threads)
	}
	status := decode(t, doJSON(t, s.Handler(), http.MethodGet, "/chat/sess-1/status", nil))
	th := status["thread"].(map[string]any)
	if th["messageCount"].(float64) != 2 {
		t.Fatalf("thread status = %v", th)
	}
}

func TestThreadHistory_NotFound(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/chat/ghost/messages", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decode(t, rec); body["code"] != "THREAD_NOT_FOUND" {
		t.Fatalf("body = %v", body)
	}
}

func TestThreadStatus_UnknownThreadIsNull(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/chat/ghost/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decode(t, rec); body["thread"] != nil {
		t.Fatalf("thread = %v", body["thread"])
	}
}

func TestDeleteThread(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		{Message: llm.Message{Role: llm.RoleAssistant, Content: "ok"}, FinishReason: "stop"},
	}}
	s := newTestServer(t, client)
	if rec := doJSON(t, s.Handler(), http.MethodPost, "/chat/doomed/messages", map[string]any{"message": "hi"}); rec.Code != http.StatusOK {
		t.Fatalf("setup status = %d", rec.Code)
	}

	rec := doJSON(t, s.Handler(), http.MethodDelete, "/chat/doomed", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	rec = doJSON(t, s.Handler(), http.MethodDelete, "/chat/doomed", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
}

func TestCSRF_CrossOriginPostBlocked(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(`{"message":"hi"}`))
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}
