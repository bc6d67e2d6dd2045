// Package stdio bridges the tool registry onto a line-delimited JSON-RPC 2.0
// transport, for clients that speak MCP over stdin/stdout instead of HTTP.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ai-tel/mcp-gateway/internal/tool"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

// Larger than any DAG payload we expect on a single line.
const maxLineBytes = 4 << 20

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolEntry struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Result content mirrors the MCP tool-call response shape.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// Bridge serves JSON-RPC requests against a local registry and dispatcher.
type Bridge struct {
	registry   *tool.Registry
	dispatcher *tool.Dispatcher
	log        zerolog.Logger

	mu  sync.Mutex // serializes writes
	out *json.Encoder
}

func New(registry *tool.Registry, dispatcher *tool.Dispatcher, log zerolog.Logger) *Bridge {
	return &Bridge{
		registry:   registry,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Run reads line-delimited JSON-RPC requests from r until EOF or ctx
// cancellation, writing one response line per request to w.
func (b *Bridge) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	b.out = json.NewEncoder(w)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			b.write(response{
				JSONRPC: "2.0",
				Error:   &rpcError{Code: codeParseError, Message: "invalid JSON: " + err.Error()},
			})
			continue
		}
		b.write(b.handle(ctx, req))
	}
	return scanner.Err()
}

func (b *Bridge) handle(ctx context.Context, req request) response {
	switch req.Method {
	case "tools/list":
		return response{JSONRPC: "2.0", ID: req.ID, Result: b.listTools()}
	case "tools/call":
		return b.callTool(ctx, req)
	default:
		return response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcError{Code: codeMethodNotFound, Message: "Method not found: " + req.Method},
		}
	}
}

func (b *Bridge) listTools() map[string]any {
	descs := b.registry.List()
	tools := make([]toolEntry, 0, len(descs))
	for _, d := range descs {
		tools = append(tools, toolEntry{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	return map[string]any{"tools": tools}
}

func (b *Bridge) callTool(ctx context.Context, req request) response {
	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcError{Code: codeInternalError, Message: "invalid params: " + err.Error()},
		}
	}
	if _, ok := b.registry.Resolve(params.Name); !ok {
		return response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcError{Code: codeMethodNotFound, Message: "Unknown tool: " + params.Name},
		}
	}

	result := b.dispatcher.Invoke(ctx, params.Name, params.Arguments)

	var payload any
	if result.OK {
		payload = result.Value
	} else {
		payload = map[string]any{
			"error":   true,
			"code":    result.Code,
			"message": result.Message,
		}
	}
	text, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcError{Code: codeInternalError, Message: fmt.Sprintf("encode result: %v", err)},
		}
	}

	return response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: callResult{
			Content: []contentBlock{{Type: "text", Text: string(text)}},
			IsError: !result.OK,
		},
	}
}

func (b *Bridge) write(resp response) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.out.Encode(resp); err != nil {
		b.log.Error().Err(err).Msg("write response")
	}
}
