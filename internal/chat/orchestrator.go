// Package chat runs the agentic loop: it feeds conversation state to the
// model, executes the tool calls the model asks for, and feeds the results
// back until the model produces a final answer or the round cap trips.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	"github.com/ai-tel/mcp-gateway/internal/llm"
	"github.com/ai-tel/mcp-gateway/internal/thread"
	"github.com/ai-tel/mcp-gateway/internal/tool"
)

// SystemPrompt is the default persona advertised to the model.
const SystemPrompt = `You are a helpful data platform assistant. You can:
- Search for tables and get schema information
- Execute SQL queries on mock data (IPTV STB quality metrics)
- View and manage data lineage
- Generate and manage Airflow DAGs

Available tables:
- iptv.tb_stb_5min_qual: STB 5분 단위 품질 지표
- iptv.tb_stb_quality_daily_dist: 일별 품질 통계
- iptv.tb_stb_master: STB 장비 마스터
- iptv.tb_channel_schedule: 채널 편성표

Respond in Korean when the user speaks Korean. Be concise and helpful.`

// ErrRoundLimit reports that the model kept requesting tools past the
// configured cap.
var ErrRoundLimit = errors.New("tool round limit exceeded")

// Error codes surfaced to transports.
const (
	CodeToolLoopExceeded = "TOOL_LOOP_EXCEEDED"
	CodeUpstreamError    = "UPSTREAM_ERROR"
	CodeTimeout          = "TIMEOUT"
	CodeChatError        = "CHAT_ERROR"
)

// ErrorCode classifies an orchestrator failure for the error envelope.
func ErrorCode(err error) string {
	var ue *llm.UpstreamError
	switch {
	case errors.Is(err, ErrRoundLimit):
		return CodeToolLoopExceeded
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.As(err, &ue):
		return CodeUpstreamError
	default:
		return CodeChatError
	}
}

// Config tunes one orchestrator.
type Config struct {
	Model             string
	SystemPrompt      string
	MaxToolRounds     int
	HistoryWindow     int
	CompletionTimeout time.Duration
	ToolTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.SystemPrompt == "" {
		c.SystemPrompt = SystemPrompt
	}
	if c.MaxToolRounds <= 0 {
		c.MaxToolRounds = 8
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 10
	}
	return c
}

// TurnRequest is one inbound user turn.
type TurnRequest struct {
	Message string
	Context map[string]any
	History []llm.Message
}

// TurnResult is the outcome of a completed turn.
type TurnResult struct {
	ThreadID  string
	MessageID string
	Message   string
	ToolCalls []thread.ToolCallRecord
	Rounds    int
}

// Orchestrator drives the model/tool loop over a thread store.
type Orchestrator struct {
	client     llm.CompletionClient
	dispatcher *tool.Dispatcher
	registry   *tool.Registry
	store      *thread.Store
	cfg        Config
	log        zerolog.Logger

	mu      sync.Mutex
	threads map[string]*sync.Mutex
}

// New builds an orchestrator. The registry supplies the function-calling
// manifest; the dispatcher executes what the model asks for.
func New(client llm.CompletionClient, dispatcher *tool.Dispatcher, registry *tool.Registry, store *thread.Store, cfg Config, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		client:     client,
		dispatcher: dispatcher,
		registry:   registry,
		store:      store,
		cfg:        cfg.withDefaults(),
		threads:    map[string]*sync.Mutex{},
		log:        log,
	}
}

// Model returns the configured model name.
func (o *Orchestrator) Model() string { return o.cfg.Model }

// ToolNames lists the tools offered to the model.
func (o *Orchestrator) ToolNames() []string { return o.registry.Names() }

// threadLock serializes turns per thread so interleaved requests cannot
// corrupt transcript order.
func (o *Orchestrator) threadLock(id string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.threads[id]
	if !ok {
		l = &sync.Mutex{}
		o.threads[id] = l
	}
	return l
}

// manifest converts registered tools into the function-calling wire shape.
func (o *Orchestrator) manifest() []llm.Tool {
	descs := o.registry.List()
	out := make([]llm.Tool, 0, len(descs))
	for _, d := range descs {
		out = append(out, llm.NewFunctionTool(d.Name, d.Description, d.InputSchema))
	}
	return out
}

func (o *Orchestrator) systemMessage(ctxData map[string]any) llm.Message {
	prompt := o.cfg.SystemPrompt
	if len(ctxData) > 0 {
		if raw, err := json.MarshalIndent(ctxData, "", "  "); err == nil {
			prompt += "\n\nCurrent context:\n" + string(raw)
		}
	}
	return llm.System(prompt)
}

// Threaded runs one turn against a stored thread. The user message is
// persisted before the first model call; the assistant message is persisted
// only when the turn succeeds.
func (o *Orchestrator) Threaded(ctx context.Context, threadID string, req TurnRequest) (TurnResult, error) {
	lock := o.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	o.store.GetOrCreate(threadID)
	history := o.history(threadID)

	if err := o.store.Append(threadID, thread.Message{
		ID:      thread.NewMessageID(),
		Role:    thread.RoleUser,
		Content: req.Message,
	}); err != nil {
		return TurnResult{}, err
	}

	messages := append([]llm.Message{o.systemMessage(req.Context)}, history...)
	messages = append(messages, llm.User(req.Message))

	res, err := o.runLoop(ctx, threadID, messages)
	if err != nil {
		return TurnResult{}, err
	}

	msgID := thread.NewMessageID()
	if err := o.store.Append(threadID, thread.Message{
		ID:        msgID,
		Role:      thread.RoleAssistant,
		Content:   res.Message,
		ToolCalls: res.ToolCalls,
	}); err != nil {
		return TurnResult{}, err
	}

	res.ThreadID = threadID
	res.MessageID = msgID
	return res, nil
}

// Stateless runs one turn with caller-supplied history and persists nothing.
func (o *Orchestrator) Stateless(ctx context.Context, req TurnRequest) (TurnResult, error) {
	messages := append([]llm.Message{o.systemMessage(req.Context)}, req.History...)
	messages = append(messages, llm.User(req.Message))
	return o.runLoop(ctx, "", messages)
}

// history returns the last HistoryWindow user/assistant messages of the
// thread as wire messages.
func (o *Orchestrator) history(threadID string) []llm.Message {
	t, ok := o.store.Get(threadID)
	if !ok {
		return nil
	}
	var filtered []llm.Message
	for _, m := range t.Messages {
		if m.Role == thread.RoleUser || m.Role == thread.RoleAssistant {
			filtered = append(filtered, llm.Message{Role: m.Role, Content: m.Content})
		}
	}
	if len(filtered) > o.cfg.HistoryWindow {
		filtered = filtered[len(filtered)-o.cfg.HistoryWindow:]
	}
	return filtered
}

func (o *Orchestrator) runLoop(ctx context.Context, threadID string, messages []llm.Message) (TurnResult, error) {
	manifest := o.manifest()
	var records []thread.ToolCallRecord
	seen := map[[32]byte]int{}

	for round := 0; ; round++ {
		if round >= o.cfg.MaxToolRounds {
			o.log.Warn().Str("thread", threadID).Int("rounds", round).Msg("tool round cap reached")
			return TurnResult{}, fmt.Errorf("%w after %d rounds", ErrRoundLimit, round)
		}

		resp, err := o.complete(ctx, llm.Request{
			Model:    o.cfg.Model,
			Messages: messages,
			Tools:    manifest,
		})
		if err != nil {
			return TurnResult{}, err
		}

		if !resp.HasToolCalls() {
			return TurnResult{
				Message:   resp.Message.Content,
				ToolCalls: records,
				Rounds:    round,
			}, nil
		}

		messages = append(messages, resp.Message)

		// Identical tool batches hint the model is stuck in a loop.
		fp := fingerprint(resp.Message.ToolCalls)
		seen[fp]++
		if n := seen[fp]; n > 1 {
			o.log.Warn().Str("thread", threadID).Int("repeats", n).Msg("model repeated an identical tool batch")
		}

		for _, call := range resp.Message.ToolCalls {
			result := o.invokeTool(ctx, call)
			records = append(records, thread.ToolCallRecord{
				Name:   call.Function.Name,
				Result: result,
			})
			raw, err := json.Marshal(result)
			if err != nil {
				raw = []byte(`{"success":false,"code":"INTERNAL_ERROR","message":"unserializable tool result"}`)
			}
			messages = append(messages, llm.ToolResult(call.ID, call.Function.Name, string(raw)))
		}
	}
}

func (o *Orchestrator) complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if o.cfg.CompletionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.CompletionTimeout)
		defer cancel()
	}
	return o.client.Complete(ctx, req)
}

// invokeTool executes one call through the dispatcher. Failures come back as
// envelopes, never as errors: the model decides how to react.
func (o *Orchestrator) invokeTool(ctx context.Context, call llm.ToolCall) tool.Result {
	if o.cfg.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.ToolTimeout)
		defer cancel()
	}
	o.log.Debug().Str("tool", call.Function.Name).Msg("executing model tool call")
	return o.dispatcher.Invoke(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
}

// fingerprint hashes a batch of tool calls by name and arguments.
func fingerprint(calls []llm.ToolCall) [32]byte {
	h := blake3.New()
	for _, c := range calls {
		h.Write([]byte(c.Function.Name))
		h.Write([]byte{0})
		h.Write([]byte(c.Function.Arguments))
		h.Write([]byte{0})
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
