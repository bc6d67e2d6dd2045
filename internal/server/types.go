package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ai-tel/mcp-gateway/internal/llm"
	"github.com/ai-tel/mcp-gateway/internal/thread"
)

// errorEnvelope is the uniform failure body for every endpoint.
type errorEnvelope struct {
	Error     bool   `json:"error"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Request codes owned by the transport layer.
const codeInvalidRequest = "INVALID_REQUEST"

type toolCallRequest struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolCallResponse struct {
	Success bool   `json:"success"`
	Tool    string `json:"tool"`
	Server  string `json:"server"`
	Result  any    `json:"result"`
}

type chatRequest struct {
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
	History []historyEntry `json:"history,omitempty"`
}

type historyEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Success   bool                    `json:"success"`
	ThreadID  string                  `json:"threadId,omitempty"`
	MessageID string                  `json:"messageId,omitempty"`
	Message   string                  `json:"message"`
	ToolCalls []thread.ToolCallRecord `json:"toolCalls"`
}

func (r chatRequest) wireHistory() []llm.Message {
	out := make([]llm.Message, 0, len(r.History))
	for _, h := range r.History {
		out = append(out, llm.Message{Role: h.Role, Content: h.Content})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{
		Error:     true,
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// statusForCode maps failure codes to HTTP status. Domain codes from tool
// handlers fall through to 500 like any other execution failure.
func statusForCode(code string) int {
	switch code {
	case codeInvalidRequest, "VALIDATION_ERROR":
		return http.StatusBadRequest
	case "TOOL_NOT_FOUND", "THREAD_NOT_FOUND":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
