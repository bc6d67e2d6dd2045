package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/ai-tel/mcp-gateway/internal/chat"
	"github.com/ai-tel/mcp-gateway/internal/tool"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	servers := map[string]string{}
	for name := range s.registry.Subsystems() {
		servers[name] = "running"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"servers":   servers,
	})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	descs := s.registry.List()
	tools := make([]map[string]string, 0, len(descs))
	for _, d := range descs {
		tools = append(tools, map[string]string{
			"name":   d.Name,
			"server": d.Subsystem,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": tools,
		"total": len(tools),
	})
}

func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	subsystems := s.registry.Subsystems()
	servers := make([]map[string]any, 0, len(subsystems))
	for _, name := range sortedKeys(subsystems) {
		servers = append(servers, map[string]any{
			"name":   name,
			"status": "running",
			"tools":  subsystems[name],
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"servers": servers})
}

// handleToolCall invokes one tool directly, bypassing the model.
func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	var req toolCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Tool == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Missing required field: tool")
		return
	}

	desc, ok := s.registry.Describe(req.Tool)
	if !ok {
		writeError(w, http.StatusNotFound, tool.CodeToolNotFound, "Unknown tool: "+req.Tool)
		return
	}

	result := s.dispatcher.Invoke(r.Context(), req.Tool, req.Arguments)
	if !result.OK {
		writeError(w, statusForCode(result.Code), result.Code, result.Message)
		return
	}
	writeJSON(w, http.StatusOK, toolCallResponse{
		Success: true,
		Tool:    req.Tool,
		Server:  desc.Subsystem,
		Result:  result.Value,
	})
}

// handleChat runs a stateless turn with caller-supplied history.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Missing required field: message")
		return
	}

	res, err := s.orch.Stateless(r.Context(), chat.TurnRequest{
		Message: req.Message,
		Context: req.Context,
		History: req.wireHistory(),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("chat turn failed")
		writeError(w, http.StatusInternalServerError, chat.ErrorCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Success:   true,
		Message:   res.Message,
		ToolCalls: emptyIfNil(res.ToolCalls),
	})
}

func (s *Server) handleChatStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":       s.chatEnabled,
		"model":         s.orch.Model(),
		"tools":         s.orch.ToolNames(),
		"activeThreads": s.threads.Len(),
	})
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	summaries := s.threads.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"threads": summaries,
		"total":   len(summaries),
	})
}

// handleThreadMessage runs one threaded turn.
func (s *Server) handleThreadMessage(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("threadId")

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Missing required field: message")
		return
	}

	res, err := s.orch.Threaded(r.Context(), threadID, chat.TurnRequest{
		Message: req.Message,
		Context: req.Context,
	})
	if err != nil {
		s.log.Error().Err(err).Str("thread", threadID).Msg("chat turn failed")
		writeError(w, http.StatusInternalServerError, chat.ErrorCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Success:   true,
		ThreadID:  res.ThreadID,
		MessageID: res.MessageID,
		Message:   res.Message,
		ToolCalls: emptyIfNil(res.ToolCalls),
	})
}

func (s *Server) handleThreadHistory(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("threadId")
	t, ok := s.threads.Get(threadID)
	if !ok {
		writeError(w, http.StatusNotFound, "THREAD_NOT_FOUND", "Thread "+threadID+" not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"threadId":  t.ID,
		"messages":  t.Messages,
		"createdAt": t.CreatedAt,
		"updatedAt": t.UpdatedAt,
	})
}

func (s *Server) handleThreadStatus(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("threadId")
	body := map[string]any{
		"enabled": s.chatEnabled,
		"model":   s.orch.Model(),
		"tools":   s.orch.ToolNames(),
		"thread":  nil,
	}
	if t, ok := s.threads.Get(threadID); ok {
		body["thread"] = map[string]any{
			"id":           t.ID,
			"messageCount": len(t.Messages),
			"createdAt":    t.CreatedAt,
			"updatedAt":    t.UpdatedAt,
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("threadId")
	if !s.threads.Delete(threadID) {
		writeError(w, http.StatusNotFound, "THREAD_NOT_FOUND", "Thread "+threadID+" not found")
		return
	}
	s.log.Info().Str("thread", threadID).Msg("thread deleted")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Thread " + threadID + " deleted",
	})
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
