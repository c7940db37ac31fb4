// Package guard is the stateless policy layer: statement
// classification, placeholder arity checking, and result-size capping.
// It holds no connection state and is safe for concurrent use.
package guard

import (
	"strconv"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Kind classifies a statement as reading or writing.
type Kind int

const (
	Read Kind = iota
	Write
)

func (k Kind) String() string {
	if k == Read {
		return "read"
	}
	return "write"
}

// Classify inspects sql with the PostgreSQL parser and reports whether
// it only reads. Anything that fails to parse, contains more than one
// statement, or modifies data anywhere — including inside a CTE
// (WITH x AS (INSERT ...) SELECT ...) — is classified as a write,
// conservatively. Leading comments are handled by the parser, not by
// keyword sniffing.
func Classify(sql string) Kind {
	result, err := pg_query.Parse(sql)
	if err != nil || len(result.Stmts) != 1 {
		return Write
	}
	if isReadNode(result.Stmts[0].Stmt) {
		return Read
	}
	return Write
}

func isReadNode(node *pg_query.Node) bool {
	if node == nil {
		return false
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		return ctesAreRead(n.SelectStmt.WithClause)
	case *pg_query.Node_VariableShowStmt:
		return true
	case *pg_query.Node_ExplainStmt:
		// EXPLAIN ANALYZE executes the inner statement, so EXPLAIN is
		// only a read when its subject is.
		return isReadNode(n.ExplainStmt.Query)
	default:
		return false
	}
}

func ctesAreRead(with *pg_query.WithClause) bool {
	if with == nil {
		return true
	}
	for _, cte := range with.Ctes {
		c, ok := cte.Node.(*pg_query.Node_CommonTableExpr)
		if !ok {
			continue
		}
		if !isReadNode(c.CommonTableExpr.Ctequery) {
			return false
		}
	}
	return true
}

// CountPlaceholders returns the highest $n placeholder index referenced
// by sql, skipping string literals, quoted identifiers, dollar-quoted
// strings, and comments. A statement with no placeholders returns 0.
func CountPlaceholders(sql string) int {
	highest := 0
	i := 0
	for i < len(sql) {
		switch c := sql[i]; {
		case c == '\'':
			i = skipQuoted(sql, i, '\'')
		case c == '"':
			i = skipQuoted(sql, i, '"')
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			i = skipLineComment(sql, i)
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			i = skipBlockComment(sql, i)
		case c == '$':
			var n int
			n, i = scanDollar(sql, i)
			if n > highest {
				highest = n
			}
		default:
			i++
		}
	}
	return highest
}

// skipQuoted advances past a quoted region starting at i, where a
// doubled quote char is an escape.
func skipQuoted(sql string, i int, quote byte) int {
	i++
	for i < len(sql) {
		if sql[i] == quote {
			if i+1 < len(sql) && sql[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}

func skipLineComment(sql string, i int) int {
	for i < len(sql) && sql[i] != '\n' {
		i++
	}
	return i
}

func skipBlockComment(sql string, i int) int {
	depth := 0
	for i < len(sql) {
		if i+1 < len(sql) && sql[i] == '/' && sql[i+1] == '*' {
			depth++
			i += 2
			continue
		}
		if i+1 < len(sql) && sql[i] == '*' && sql[i+1] == '/' {
			depth--
			i += 2
			if depth == 0 {
				return i
			}
			continue
		}
		i++
	}
	return i
}

// scanDollar handles the two meanings of '$': a positional placeholder
// ($1, $2, ...) or a dollar-quoted string ($$...$$, $tag$...$tag$).
// Returns the placeholder index (0 if none) and the next scan offset.
func scanDollar(sql string, i int) (int, int) {
	j := i + 1
	for j < len(sql) && sql[j] >= '0' && sql[j] <= '9' {
		j++
	}
	if j > i+1 {
		n, _ := strconv.Atoi(sql[i+1 : j])
		return n, j
	}

	// Possible dollar-quote opener: $tag$ with an identifier-ish tag.
	k := i + 1
	for k < len(sql) && isTagChar(sql[k]) {
		k++
	}
	if k < len(sql) && sql[k] == '$' {
		open := sql[i : k+1]
		rest := sql[k+1:]
		end := strings.Index(rest, open)
		if end < 0 {
			return 0, len(sql)
		}
		return 0, k + 1 + end + len(open)
	}
	return 0, i + 1
}

func isTagChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Cap truncates rows to at most limit entries and reports whether
// anything was dropped. A limit <= 0 disables capping.
func Cap[T any](rows []T, limit int) ([]T, bool) {
	if limit <= 0 || len(rows) <= limit {
		return rows, false
	}
	return rows[:limit], true
}
