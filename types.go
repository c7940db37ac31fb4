package sqlgate

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Row is a single result row: column name → normalized value. The map
// preserves insertion order, so JSON output keeps the result set's
// column names in their original case and order.
type Row = orderedmap.OrderedMap[string, any]

// ExecuteInput is the input for the execute_sql tool. Params are bound
// as $1..$n through the extended query protocol, never interpolated.
type ExecuteInput struct {
	SQL      string `json:"sql"`
	Database string `json:"database,omitempty"`
	Params   []any  `json:"parameters,omitempty"`
}

// ExecuteOutput is the result of a successful Execute call. Rows holds
// at most the configured row cap; Truncated reports whether the
// underlying result set had more.
type ExecuteOutput struct {
	Columns      []string `json:"columns"`
	Rows         []*Row   `json:"rows"`
	RowsAffected int64    `json:"rows_affected"`
	Truncated    bool     `json:"truncated,omitempty"`
}

// ForeignKeyRef names the column a foreign-key column references.
type ForeignKeyRef struct {
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// ColumnInfo describes a single column. ForeignKey is only set for
// columns that participate in a foreign key; it is omitted from JSON
// otherwise, never emitted as a null placeholder.
type ColumnInfo struct {
	Type       string         `json:"type"`
	Nullable   bool           `json:"nullable"`
	Default    *string        `json:"default"`
	PrimaryKey bool           `json:"primary_key"`
	Unique     bool           `json:"unique,omitempty"`
	ForeignKey *ForeignKeyRef `json:"foreign_key,omitempty"`
}

// TableSchema is an ordered mapping from column name to ColumnInfo;
// insertion order follows the catalog's ordinal_position, so JSON
// output reflects the declared column order.
type TableSchema = orderedmap.OrderedMap[string, ColumnInfo]

// NewRow returns an empty Row with capacity for n columns.
func NewRow(n int) *Row {
	return orderedmap.New[string, any](n)
}

// NewTableSchema returns an empty TableSchema.
func NewTableSchema() *TableSchema {
	return orderedmap.New[string, ColumnInfo]()
}
