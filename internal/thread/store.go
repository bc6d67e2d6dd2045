// Package thread holds in-memory conversation state. Threads live for the
// life of the process and are deleted only on explicit request.
package thread

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ai-tel/mcp-gateway/internal/tool"
)

// ErrNotFound is returned when a thread id has no stored conversation.
var ErrNotFound = errors.New("thread not found")

// Message roles. The set is closed; system messages are synthesized per
// request and never stored.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// ToolCallRecord captures one tool invocation executed while producing an
// assistant message, envelope included.
type ToolCallRecord struct {
	Name   string      `json:"name"`
	Result tool.Result `json:"result"`
}

// Message is one stored transcript entry.
type Message struct {
	ID        string           `json:"id"`
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ToolCallRecord `json:"toolCalls,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Thread is an ordered, append-only conversation transcript.
type Thread struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary is the listing view of a thread.
type Summary struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store is the process-wide thread map. Appends are atomic per thread; all
// accessors return copies so callers can never mutate stored state.
type Store struct {
	mu      sync.RWMutex
	threads map[string]*Thread
}

func NewStore() *Store {
	return &Store{threads: map[string]*Thread{}}
}

// NewMessageID returns a fresh ULID for a message.
func NewMessageID() string {
	return "msg_" + ulid.Make().String()
}

// NewThreadID returns a fresh ULID for a server-generated thread.
func NewThreadID() string {
	return "thr_" + ulid.Make().String()
}

// GetOrCreate returns the thread for id, creating an empty one on first
// reference. Identifiers are opaque caller-supplied strings; the store does
// not validate their shape.
func (s *Store) GetOrCreate(id string) Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		now := time.Now().UTC()
		t = &Thread{ID: id, CreatedAt: now, UpdatedAt: now}
		s.threads[id] = t
	}
	return snapshot(t)
}

// Append adds a message to the end of the thread's transcript and bumps its
// update timestamp. The thread must already exist.
func (s *Store) Append(id string, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		return ErrNotFound
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	t.Messages = append(t.Messages, m)
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Get returns a copy of the thread.
func (s *Store) Get(id string) (Thread, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[id]
	if !ok {
		return Thread{}, false
	}
	return snapshot(t), true
}

// Delete removes a thread. Returns false when nothing was stored under id.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[id]; !ok {
		return false
	}
	delete(s.threads, id)
	return true
}

// List returns summaries of all threads, most recently updated first.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.threads))
	for _, t := range s.threads {
		out = append(out, Summary{
			ID:           t.ID,
			MessageCount: len(t.Messages),
			CreatedAt:    t.CreatedAt,
			UpdatedAt:    t.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// Len reports the number of active threads.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}

func snapshot(t *Thread) Thread {
	cp := *t
	cp.Messages = append([]Message(nil), t.Messages...)
	return cp
}
