// Package sqlgate provides safe, policy-enforced access to one or more
// PostgreSQL databases for tool-style callers such as MCP agents.
//
// It exposes five operations — Execute, ListDatabases, ListTables,
// TableSchema, and TableSchemaWithRelations — behind a Gateway that
// owns a lazily-created connection pool per configured target and
// enforces the safety policy on every call: read-only gating via the
// real PostgreSQL parser (pg_query), extended-protocol parameter
// binding, per-statement timeouts, and a hard row cap with truncation
// reporting.
//
// Statement classification is AST-based rather than keyword-based, so
// a write hidden behind a CTE (WITH x AS (INSERT ...) SELECT ...) or a
// leading comment is still blocked in read-only mode.
//
// # Library Usage
//
//	cfg, warnings, err := sqlgate.FromEnv()
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, w := range warnings {
//		logger.Warn().Msg(w)
//	}
//	gw := sqlgate.New(cfg, logger)
//	defer gw.Close(context.Background())
//
//	// Use directly
//	out, err := gw.Execute(ctx, sqlgate.ExecuteInput{
//		SQL:    "SELECT name FROM cities WHERE country_id = $1",
//		Params: []any{42},
//	})
//
//	// Or register as MCP tools
//	sqlgate.RegisterMCPTools(mcpServer, gw)
//
// All Gateway methods are safe for concurrent use. Failures surface as
// typed errors (UnknownTargetError, PoolExhaustedError,
// ReadOnlyViolationError, ParameterBindingError, TimeoutError,
// ExecutionError) so callers can branch with errors.As; driver error
// text is redacted and length-capped before it reaches a caller.
package sqlgate
