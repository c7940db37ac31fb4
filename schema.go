package sqlgate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sqlgate/sqlgate/internal/redact"
)

// defaultSchema is the namespace assumed for unqualified table names.
// Schema-qualified names ("sales.orders") address other namespaces.
const defaultSchema = "public"

// splitTableName separates an optional schema qualifier from a table
// name. "orders" → (public, orders); "sales.orders" → (sales, orders).
func splitTableName(table string) (string, string) {
	if i := strings.IndexByte(table, '.'); i >= 0 {
		return table[:i], table[i+1:]
	}
	return defaultSchema, table
}

const listDatabasesSQL = `
SELECT datname
FROM pg_catalog.pg_database
WHERE NOT datistemplate
  AND datallowconn
ORDER BY datname;
`

// Tables outside public are listed schema-qualified so the names
// round-trip into the schema lookups unchanged.
const listTablesSQL = `
SELECT CASE
    WHEN table_schema = 'public' THEN table_name
    ELSE table_schema || '.' || table_name
END AS name
FROM information_schema.tables
WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
  AND table_type IN ('BASE TABLE', 'VIEW')
ORDER BY table_schema, table_name;
`

const tableColumnsSQL = `
SELECT
    c.column_name AS name,
    c.data_type AS type,
    CASE c.is_nullable WHEN 'YES' THEN true ELSE false END AS nullable,
    c.column_default AS default_val,
    CASE WHEN pk.column_name IS NOT NULL THEN true ELSE false END AS is_primary_key,
    CASE WHEN uq.column_name IS NOT NULL THEN true ELSE false END AS is_unique
FROM information_schema.columns c
LEFT JOIN (
    SELECT kcu.column_name
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
        ON tc.constraint_name = kcu.constraint_name
        AND tc.table_schema = kcu.table_schema
    WHERE tc.constraint_type = 'PRIMARY KEY'
        AND tc.table_schema = $1
        AND tc.table_name = $2
) pk ON pk.column_name = c.column_name
LEFT JOIN (
    SELECT kcu.column_name
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
        ON tc.constraint_name = kcu.constraint_name
        AND tc.table_schema = kcu.table_schema
    WHERE tc.constraint_type = 'UNIQUE'
        AND tc.table_schema = $1
        AND tc.table_name = $2
) uq ON uq.column_name = c.column_name
WHERE c.table_schema = $1
    AND c.table_name = $2
ORDER BY c.ordinal_position;
`

// Per-column foreign-key resolution via pg_constraint, pairing each
// local column with the referenced column by conkey/confkey position.
const foreignKeysSQL = `
SELECT
    a.attname AS column_name,
    fc.relname AS referenced_table,
    fa.attname AS referenced_column
FROM pg_catalog.pg_constraint con
JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
JOIN pg_catalog.pg_class fc ON fc.oid = con.confrelid
JOIN LATERAL unnest(con.conkey, con.confkey) AS cols(attnum, fattnum) ON true
JOIN pg_catalog.pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = cols.attnum
JOIN pg_catalog.pg_attribute fa ON fa.attrelid = con.confrelid AND fa.attnum = cols.fattnum
WHERE con.contype = 'f'
  AND n.nspname = $1
  AND c.relname = $2;
`

// ListDatabases returns the names of databases visible on the default
// target's server, excluding templates and databases that refuse
// connections. Never nil on success.
func (g *Gateway) ListDatabases(ctx context.Context) ([]string, error) {
	target, err := g.registry.Resolve("")
	if err != nil {
		return nil, err
	}
	return g.listNames(ctx, target, listDatabasesSQL, "ListDatabases")
}

// ListTables returns the table and view names of the named logical
// database. An unknown name yields an empty slice, not an error —
// callers distinguish "not found" from "error" by emptiness.
func (g *Gateway) ListTables(ctx context.Context, database string) ([]string, error) {
	target, err := g.registry.Resolve(database)
	if err != nil {
		var unknown *UnknownTargetError
		if errors.As(err, &unknown) {
			return []string{}, nil
		}
		return nil, err
	}
	return g.listNames(ctx, target, listTablesSQL, "ListTables")
}

// listNames runs a single-column catalog query against target under
// the read timeout.
func (g *Gateway) listNames(ctx context.Context, target Target, sql, op string) ([]string, error) {
	startTime := time.Now()

	lease, err := g.pools.Acquire(ctx, target)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, g.timeouts.ForStatement(false))
	defer cancel()

	names, err := scanNames(queryCtx, lease, sql)
	if err != nil {
		lease.Discard()
		if queryCtx.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{Op: op, Limit: g.timeouts.ForStatement(false)}
		}
		return nil, &ExecutionError{Message: redact.Message(fmt.Sprintf("%s failed: %v", op, err))}
	}
	lease.Release()

	g.logger.Info().
		Str("target", target.Name).
		Dur("duration", time.Since(startTime)).
		Int("count", len(names)).
		Msg(op + " executed")
	return names, nil
}

func scanNames(ctx context.Context, lease *Lease, sql string) ([]string, error) {
	rows, err := lease.Conn().Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// TableSchema returns the ordered column metadata for a table, read
// live from the catalog on every call. An unknown database or table
// yields an empty descriptor, not an error.
func (g *Gateway) TableSchema(ctx context.Context, database, table string) (*TableSchema, error) {
	return g.tableSchema(ctx, database, table, false)
}

// TableSchemaWithRelations is TableSchema plus foreign-key resolution:
// each column participating in a foreign key carries a ForeignKey
// entry naming the referenced table and column. Columns without one
// carry no entry at all.
func (g *Gateway) TableSchemaWithRelations(ctx context.Context, database, table string) (*TableSchema, error) {
	return g.tableSchema(ctx, database, table, true)
}

func (g *Gateway) tableSchema(ctx context.Context, database, table string, withRelations bool) (*TableSchema, error) {
	startTime := time.Now()

	target, err := g.registry.Resolve(database)
	if err != nil {
		var unknown *UnknownTargetError
		if errors.As(err, &unknown) {
			return NewTableSchema(), nil
		}
		return nil, err
	}

	lease, err := g.pools.Acquire(ctx, target)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, g.timeouts.ForStatement(false))
	defer cancel()

	schema, err := fetchTableSchema(queryCtx, lease, table, withRelations)
	if err != nil {
		lease.Discard()
		if queryCtx.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{Op: "TableSchema", Limit: g.timeouts.ForStatement(false)}
		}
		return nil, &ExecutionError{Message: redact.Message(fmt.Sprintf("TableSchema failed: %v", err))}
	}
	lease.Release()

	g.logger.Info().
		Str("target", target.Name).
		Str("table", table).
		Dur("duration", time.Since(startTime)).
		Int("column_count", schema.Len()).
		Bool("with_relations", withRelations).
		Msg("TableSchema executed")
	return schema, nil
}

// fetchTableSchema reads columns (and optionally foreign keys) in one
// transaction so both views reflect the same catalog snapshot.
func fetchTableSchema(ctx context.Context, lease *Lease, table string, withRelations bool) (*TableSchema, error) {
	tx, err := lease.Conn().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	schemaName, tableName := splitTableName(table)

	schema, err := fetchColumns(ctx, tx, schemaName, tableName)
	if err != nil {
		return nil, err
	}

	if withRelations && schema.Len() > 0 {
		if err := annotateForeignKeys(ctx, tx, schemaName, tableName, schema); err != nil {
			return nil, err
		}
	}
	return schema, nil
}

func fetchColumns(ctx context.Context, tx pgx.Tx, schemaName, table string) (*TableSchema, error) {
	rows, err := tx.Query(ctx, tableColumnsSQL, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch columns: %w", err)
	}
	defer rows.Close()

	schema := NewTableSchema()
	for rows.Next() {
		var name string
		var col ColumnInfo
		if err := rows.Scan(&name, &col.Type, &col.Nullable, &col.Default, &col.PrimaryKey, &col.Unique); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		schema.Set(name, col)
	}
	return schema, rows.Err()
}

func annotateForeignKeys(ctx context.Context, tx pgx.Tx, schemaName, table string, schema *TableSchema) error {
	rows, err := tx.Query(ctx, foreignKeysSQL, schemaName, table)
	if err != nil {
		return fmt.Errorf("failed to fetch foreign keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var column string
		var ref ForeignKeyRef
		if err := rows.Scan(&column, &ref.ReferencedTable, &ref.ReferencedColumn); err != nil {
			return fmt.Errorf("failed to scan foreign key: %w", err)
		}
		if col, ok := schema.Get(column); ok {
			col.ForeignKey = &ref
			schema.Set(column, col)
		}
	}
	return rows.Err()
}
