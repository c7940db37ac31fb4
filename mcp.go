package sqlgate

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers the five gateway operations as MCP tools
// on the given server. The protocol layer stays a thin adapter: it
// parses arguments, calls the gateway, and renders results or typed
// errors as tool output.
func RegisterMCPTools(mcpServer *server.MCPServer, gw *Gateway) {
	listDatabasesTool := mcp.NewTool("list_databases",
		mcp.WithDescription("List databases visible on the default target's server."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(listDatabasesTool, gw.loggedToolHandler("list_databases", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		names, err := gw.ListDatabases(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalToolResult(names)
	}))

	listTablesTool := mcp.NewTool("list_tables",
		mcp.WithDescription("List tables and views in a logical database. Unknown names return an empty list."),
		mcp.WithString("database_name",
			mcp.Description("Logical database name (defaults to the first configured target)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(listTablesTool, gw.loggedToolHandler("list_tables", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		names, err := gw.ListTables(ctx, req.GetString("database_name", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalToolResult(names)
	}))

	schemaTool := mcp.NewTool("get_table_schema",
		mcp.WithDescription("Describe a table's columns: type, nullability, default, and key flags, in declared order."),
		mcp.WithString("table_name",
			mcp.Required(),
			mcp.Description("The table name to describe"),
		),
		mcp.WithString("database_name",
			mcp.Description("Logical database name (defaults to the first configured target)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(schemaTool, gw.loggedToolHandler("get_table_schema", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table_name")
		if err != nil {
			return mcp.NewToolResultError("table_name parameter is required"), nil
		}
		schema, err := gw.TableSchema(ctx, req.GetString("database_name", ""), table)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalToolResult(schema)
	}))

	schemaRelationsTool := mcp.NewTool("get_table_schema_with_relations",
		mcp.WithDescription("Describe a table's columns including resolved foreign-key relationships."),
		mcp.WithString("table_name",
			mcp.Required(),
			mcp.Description("The table name to describe"),
		),
		mcp.WithString("database_name",
			mcp.Description("Logical database name (defaults to the first configured target)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(schemaRelationsTool, gw.loggedToolHandler("get_table_schema_with_relations", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table_name")
		if err != nil {
			return mcp.NewToolResultError("table_name parameter is required"), nil
		}
		schema, err := gw.TableSchemaWithRelations(ctx, req.GetString("database_name", ""), table)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalToolResult(schema)
	}))

	executeTool := mcp.NewTool("execute_sql",
		mcp.WithDescription("Execute a SQL statement. Results are row objects keyed by column name, capped at the configured row limit. Write statements are blocked in read-only mode."),
		mcp.WithString("sql_query",
			mcp.Required(),
			mcp.Description("The SQL statement to execute"),
		),
		mcp.WithString("database_name",
			mcp.Description("Logical database name (defaults to the first configured target)"),
		),
		mcp.WithArray("parameters",
			mcp.Description("Positional parameters bound as $1..$n"),
		),
	)

	mcpServer.AddTool(executeTool, gw.loggedToolHandler("execute_sql", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("sql_query")
		if err != nil {
			return mcp.NewToolResultError("sql_query parameter is required"), nil
		}
		params, _ := req.GetArguments()["parameters"].([]any)

		out, err := gw.Execute(ctx, ExecuteInput{
			SQL:      sql,
			Database: req.GetString("database_name", ""),
			Params:   params,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalToolResult(out)
	}))
}

// marshalToolResult renders v as a JSON text tool result.
func marshalToolResult(v any) (*mcp.CallToolResult, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("failed to marshal tool result"), nil
	}
	return mcp.NewToolResultText(string(encoded)), nil
}

// loggedToolHandler wraps a tool handler to log request and response
// sizes per call.
func (g *Gateway) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := handler(ctx, req)
		g.logger.Info().
			Str("tool", tool).
			Int("request_bytes", requestLength(req)).
			Int("response_bytes", resultLength(result)).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request
// arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(encoded)
}

// resultLength returns the total byte length of text content in a
// tool result.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
