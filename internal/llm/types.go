// Package llm talks to an OpenAI-compatible chat-completions endpoint with
// function calling enabled.
package llm

import "context"

// Message roles on the wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one chat-completions message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the requested tool name and JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool is a function-calling manifest entry.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function describes one callable function to the model.
type Function struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewFunctionTool wraps a schema in the standard function-tool shape.
func NewFunctionTool(name, description string, parameters map[string]any) Tool {
	return Tool{
		Type: "function",
		Function: Function{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// Request is one completion call.
type Request struct {
	Model    string
	Messages []Message
	Tools    []Tool
}

// Response is the assistant message chosen from the completion.
type Response struct {
	Message      Message
	FinishReason string
}

// HasToolCalls reports whether the model requested tool execution.
func (r Response) HasToolCalls() bool {
	return len(r.Message.ToolCalls) > 0
}

// CompletionClient is the outbound dependency of the chat orchestrator.
// Tests substitute a scripted implementation.
type CompletionClient interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// System, User and Assistant build plain text messages.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message   { return Message{Role: RoleUser, Content: content} }

// ToolResult builds a tool-role message answering the given call.
func ToolResult(callID, name, content string) Message {
	return Message{Role: RoleTool, ToolCallID: callID, Name: name, Content: content}
}
