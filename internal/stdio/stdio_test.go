package stdio

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ai-tel/mcp-gateway/internal/sqltool"
	"github.com/ai-tel/mcp-gateway/internal/tool"
)

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	reg := tool.NewRegistry()
	if err := sqltool.NewService(0).Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	disp := tool.NewDispatcher(reg, 0, zerolog.Nop())
	return New(reg, disp, zerolog.Nop())
}

func run(t *testing.T, b *Bridge, lines ...string) []map[string]any {
	t.Helper()
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	var out bytes.Buffer
	if err := b.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	var responses []map[string]any
	dec := json.NewDecoder(&out)
	for dec.More() {
		var resp map[string]any
		if err := dec.Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestToolsList(t *testing.T) {
	b := newTestBridge(t)
	resps := run(t, b, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	if len(resps) != 1 {
		t.Fatalf("responses = %d", len(resps))
	}
	resp := resps[0]
	if resp["jsonrpc"] != "2.0" || resp["id"].(float64) != 1 {
		t.Fatalf("resp = %v", resp)
	}
	tools := resp["result"].(map[string]any)["tools"].([]any)
	if len(tools) != 2 {
		t.Fatalf("tools = %d", len(tools))
	}
	first := tools[0].(map[string]any)
	if first["name"] == "" || first["inputSchema"] == nil {
		t.Fatalf("tool = %v", first)
	}
}

func TestToolsCall(t *testing.T) {
	b := newTestBridge(t)
	resps := run(t, b, `{"jsonrpc":"2.0","id":"a1","method":"tools/call","params":{"name":"validate_syntax","arguments":{"sql":"SELECT stb_id FROM iptv.tb_stb_master LIMIT 5"}}}`)
	resp := resps[0]
	if resp["id"] != "a1" {
		t.Fatalf("id = %v", resp["id"])
	}
	result := resp["result"].(map[string]any)
	if result["isError"] != nil {
		t.Fatalf("isError set: %v", result)
	}
	content := result["content"].([]any)[0].(map[string]any)
	if content["type"] != "text" {
		t.Fatalf("content = %v", content)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(content["text"].(string)), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["valid"] != true {
		t.Fatalf("payload = %v", payload)
	}
}

func TestToolsCall_FailureCarriesEnvelope(t *testing.T) {
	b := newTestBridge(t)
	resps := run(t, b, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"execute_sql","arguments":{"sql":"SELECT * FROM iptv.missing"}}}`)
	result := resps[0]["result"].(map[string]any)
	if result["isError"] != true {
		t.Fatalf("result = %v", result)
	}
	content := result["content"].([]any)[0].(map[string]any)
	var payload map[string]any
	if err := json.Unmarshal([]byte(content["text"].(string)), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["error"] != true || payload["code"] != "TABLE_NOT_FOUND" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestUnknownToolAndMethod(t *testing.T) {
	b := newTestBridge(t)
	resps := run(t, b,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"nope"}}`,
		`{"jsonrpc":"2.0","id":4,"method":"resources/list"}`,
	)
	for i, resp := range resps {
		errObj, ok := resp["error"].(map[string]any)
		if !ok {
			t.Fatalf("resp %d has no error: %v", i, resp)
		}
		if errObj["code"].(float64) != -32601 {
			t.Fatalf("resp %d code = %v", i, errObj["code"])
		}
	}
}

func TestMalformedLine(t *testing.T) {
	b := newTestBridge(t)
	resps := run(t, b, `{not json`)
	errObj := resps[0]["error"].(map[string]any)
	if errObj["code"].(float64) != -32700 {
		t.Fatalf("code = %v", errObj["code"])
	}
}
