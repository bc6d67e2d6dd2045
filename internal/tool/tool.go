// Package tool implements the gateway's tool registry and dispatcher: a typed
// mapping from tool name to handler, argument validation against each tool's
// declared JSON schema, and a uniform success/failure envelope that never lets
// a handler fault escape the dispatch boundary.
package tool

import (
	"context"
	"fmt"
)

// Dispatcher-level error codes. Handler-level domain codes (TABLE_NOT_FOUND,
// DAG_EXISTS, ...) pass through the envelope verbatim.
const (
	CodeToolNotFound    = "TOOL_NOT_FOUND"
	CodeValidationError = "VALIDATION_ERROR"
	CodeExecutionError  = "EXECUTION_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Descriptor identifies one invocable capability. Immutable after registration.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Subsystem   string         `json:"server"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Handler executes one tool call. Arguments have already passed schema
// validation. A returned error becomes a failure envelope; it is never
// propagated as a Go error to the dispatcher's caller.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Result is the envelope returned by every dispatch. Exactly one of the two
// arms is populated: OK carries Value, !OK carries Code and Message.
type Result struct {
	OK      bool   `json:"success"`
	Value   any    `json:"value,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Error is a domain failure raised by a handler. Handlers return it to attach
// a machine-readable code; any other error is reported as EXECUTION_ERROR.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds a coded handler error.
func Errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func success(v any) Result {
	return Result{OK: true, Value: v}
}

func failure(code, message string) Result {
	return Result{Code: code, Message: message}
}
