package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Dispatcher resolves tool names against a Registry, validates arguments and
// invokes handlers. It is stateless and safe for concurrent use; any per-tool
// state (the DAG file store, the lineage map) belongs to the handler.
type Dispatcher struct {
	reg     *Registry
	timeout time.Duration
	log     zerolog.Logger
}

// NewDispatcher builds a dispatcher. timeout bounds each handler invocation;
// zero means no bound beyond the caller's context.
func NewDispatcher(reg *Registry, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{reg: reg, timeout: timeout, log: log}
}

// Invoke runs one tool call and always returns an envelope, never an error.
// Failure envelopes carry TOOL_NOT_FOUND for unknown names, VALIDATION_ERROR
// for malformed or schema-violating arguments, the handler's own code for
// domain failures, and INTERNAL_ERROR if a handler panics.
func (d *Dispatcher) Invoke(ctx context.Context, name string, rawArgs json.RawMessage) Result {
	t, ok := d.reg.lookup(name)
	if !ok {
		return failure(CodeToolNotFound, fmt.Sprintf("unknown tool: %s", name))
	}

	args := map[string]any{}
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return failure(CodeValidationError, fmt.Sprintf("invalid tool arguments JSON: %v", err))
		}
	}
	if err := t.schema.Validate(anyify(args)); err != nil {
		return failure(CodeValidationError, fmt.Sprintf("arguments for %s failed schema validation: %v", name, err))
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	v, err := d.invokeGuarded(ctx, t.handler, args)
	d.log.Debug().
		Str("tool", name).
		Dur("elapsed", time.Since(start)).
		Bool("ok", err == nil).
		Msg("tool invoked")

	if err != nil {
		var te *Error
		if errors.As(err, &te) {
			return failure(te.Code, te.Message)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return failure(CodeExecutionError, fmt.Sprintf("tool %s timed out", name))
		}
		return failure(CodeExecutionError, err.Error())
	}
	return success(v)
}

// invokeGuarded converts a handler panic into an INTERNAL_ERROR failure.
// Tool faults are data, not control flow; nothing may cross this boundary
// as a panic.
func (d *Dispatcher) invokeGuarded(ctx context.Context, h Handler, args map[string]any) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Msg("tool handler panicked")
			err = &Error{Code: CodeInternalError, Message: fmt.Sprintf("internal error: %v", r)}
		}
	}()
	return h(ctx, args)
}

// anyify round-trips args through interface{} so jsonschema sees plain JSON
// values. Arguments decoded from the wire already satisfy this; the round
// trip matters only for handler tests that build args from Go literals.
func anyify(args map[string]any) any {
	b, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return args
	}
	return v
}
