package sqlgate_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/sqlgate/sqlgate"
)

// startToolServer runs a stateless streamable-HTTP MCP server over a
// gateway whose target host does not resolve. Tool calls that settle
// before touching the pool (unknown targets, gate violations) work
// without a database.
func startToolServer(t *testing.T) string {
	t.Helper()

	config := sqlgate.Config{
		Targets: []sqlgate.Target{
			{Name: "orders", Host: "db.invalid", Port: 5432, User: "app", Database: "orders"},
		},
		ConnectTimeout: time.Second,
		ReadTimeout:    time.Second,
		WriteTimeout:   time.Second,
		ReadOnly:       true,
		MaxPoolSize:    2,
		MaxResults:     100,
	}
	gw := sqlgate.New(config, zerolog.Nop())
	t.Cleanup(func() { gw.Close(context.Background()) })

	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	mcpServer := server.NewMCPServer("sqlgate-test", "0.0.0",
		server.WithToolCapabilities(true),
	)
	sqlgate.RegisterMCPTools(mcpServer, gw)

	addr := fmt.Sprintf(":%d", port)
	mux := http.NewServeMux()
	httpSrv := &http.Server{Addr: addr, Handler: mux}
	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)
	mux.Handle("/mcp", streamableServer)

	go func() {
		if err := streamableServer.Start(addr); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	time.Sleep(200 * time.Millisecond)
	t.Cleanup(func() { streamableServer.Shutdown(context.Background()) })

	return fmt.Sprintf("http://localhost:%d", port)
}

// callTool sends a tools/call JSON-RPC request and returns the tool
// result object.
func callTool(t *testing.T, baseURL, tool string, args map[string]any) map[string]any {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": tool, "arguments": args},
	})
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	resp, err := http.Post(baseURL+"/mcp", "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("JSON-RPC request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		t.Fatalf("failed to parse response JSON: %v; body: %s", err, respBody)
	}
	result, ok := parsed["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected result object, got: %s", respBody)
	}
	return result
}

func resultText(t *testing.T, result map[string]any) string {
	t.Helper()
	content, ok := result["content"].([]any)
	if !ok || len(content) == 0 {
		t.Fatalf("expected content array, got %v", result["content"])
	}
	first := content[0].(map[string]any)
	text, _ := first["text"].(string)
	return text
}

// The tool arguments are the wire names the original clients send:
// database_name, table_name, sql_query. A database_name for an unknown
// target must be honored, not silently dropped in favor of the default
// target.
func TestMCPServer_WireArgumentNames(t *testing.T) {
	t.Parallel()
	baseURL := startToolServer(t)

	// list_tables: unknown database_name → empty list. If the key were
	// ignored the handler would fall through to the default target and
	// surface a connection error instead.
	result := callTool(t, baseURL, "list_tables", map[string]any{
		"database_name": "missing",
	})
	if result["isError"] == true {
		t.Fatalf("list_tables returned error: %v", result)
	}
	if got := resultText(t, result); got != "[]" {
		t.Fatalf("list_tables for unknown database = %s, want []", got)
	}

	// get_table_schema: unknown database_name → empty descriptor.
	result = callTool(t, baseURL, "get_table_schema", map[string]any{
		"database_name": "missing",
		"table_name":    "countries",
	})
	if result["isError"] == true {
		t.Fatalf("get_table_schema returned error: %v", result)
	}
	if got := resultText(t, result); got != "{}" {
		t.Fatalf("schema for unknown database = %s, want {}", got)
	}

	// execute_sql reads sql_query and database_name.
	result = callTool(t, baseURL, "execute_sql", map[string]any{
		"sql_query":     "SELECT 1",
		"database_name": "missing",
	})
	if result["isError"] != true {
		t.Fatalf("expected error result, got %v", result)
	}
	if got := resultText(t, result); !strings.Contains(got, `unknown database target "missing"`) {
		t.Fatalf("execute_sql error = %q, want unknown-target message", got)
	}
}

func TestMCPServer_ExecuteRequiresSQLQuery(t *testing.T) {
	t.Parallel()
	baseURL := startToolServer(t)

	result := callTool(t, baseURL, "execute_sql", map[string]any{
		"database_name": "orders",
	})
	if result["isError"] != true {
		t.Fatalf("expected error result, got %v", result)
	}
	if got := resultText(t, result); !strings.Contains(got, "sql_query parameter is required") {
		t.Fatalf("error = %q, want missing sql_query message", got)
	}
}

func TestMCPServer_ReadOnlyViolationOverWire(t *testing.T) {
	t.Parallel()
	baseURL := startToolServer(t)

	result := callTool(t, baseURL, "execute_sql", map[string]any{
		"sql_query": "DELETE FROM users",
	})
	if result["isError"] != true {
		t.Fatalf("expected error result, got %v", result)
	}
	if got := resultText(t, result); !strings.Contains(got, "read-only mode") {
		t.Fatalf("error = %q, want read-only violation", got)
	}
}

func TestMCPServer_ToolsList(t *testing.T) {
	t.Parallel()
	baseURL := startToolServer(t)

	body, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/list",
		"params":  map[string]any{},
	})
	resp, err := http.Post(baseURL+"/mcp", "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("JSON-RPC request failed: %v", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	var parsed struct {
		Result struct {
			Tools []struct {
				Name        string `json:"name"`
				InputSchema struct {
					Required []string `json:"required"`
				} `json:"inputSchema"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		t.Fatalf("failed to parse response: %v; body: %s", err, respBody)
	}

	required := map[string][]string{}
	for _, tool := range parsed.Result.Tools {
		required[tool.Name] = tool.InputSchema.Required
	}
	if len(required) != 5 {
		t.Fatalf("expected 5 tools, got %d: %v", len(required), required)
	}
	if got := required["execute_sql"]; len(got) != 1 || got[0] != "sql_query" {
		t.Errorf("execute_sql required = %v, want [sql_query]", got)
	}
	if got := required["get_table_schema"]; len(got) != 1 || got[0] != "table_name" {
		t.Errorf("get_table_schema required = %v, want [table_name]", got)
	}
}
