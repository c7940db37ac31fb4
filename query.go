package sqlgate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sqlgate/sqlgate/internal/guard"
	"github.com/sqlgate/sqlgate/internal/qcache"
	"github.com/sqlgate/sqlgate/internal/redact"
)

// Execute runs the full execution pipeline for one statement and
// returns normalized rows, bounded by the configured row cap. Errors
// are typed (see errors.go); the borrowed connection is returned to
// its pool on success and discarded on any failure.
func (g *Gateway) Execute(ctx context.Context, input ExecuteInput) (*ExecuteOutput, error) {
	startTime := time.Now()

	// 1. Resolve the logical database name to a target.
	target, err := g.registry.Resolve(input.Database)
	if err != nil {
		return nil, err
	}

	// 2. Classify and gate before touching the pool. A blocked write
	// never reaches a connection.
	kind := guard.Classify(input.SQL)
	if kind == guard.Write && g.config.ReadOnly {
		return nil, &ReadOnlyViolationError{Statement: summarizeSQL(input.SQL)}
	}

	// 3. Placeholder arity check. Parameters only ever travel through
	// extended-protocol binding, never string interpolation.
	if n := guard.CountPlaceholders(input.SQL); n != len(input.Params) {
		return nil, &ParameterBindingError{Placeholders: n, Args: len(input.Params)}
	}

	// 4. Read-query cache, when configured. Cache failures degrade to
	// a miss rather than failing the query.
	var cacheKey string
	if g.cache != nil && kind == guard.Read {
		cacheKey = qcache.Key(target.Name, input.SQL, input.Params)
		var cached ExecuteOutput
		if hit, err := g.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			g.logger.Debug().Str("target", target.Name).Msg("query served from cache")
			return &cached, nil
		}
	}

	// 5. Acquire a pooled connection; the lease is settled on every
	// exit path below.
	lease, err := g.pools.Acquire(ctx, target)
	if err != nil {
		return nil, err
	}

	// 6. Apply the read or write deadline.
	limit := g.timeouts.ForStatement(kind == guard.Write)
	queryCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	out, err := g.runStatement(queryCtx, ctx, lease, kind, input)
	if err != nil {
		// Protocol state unknown after a failure: never pool it.
		lease.Discard()
		if queryCtx.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{Op: kind.String() + " statement", Limit: limit}
		}
		return nil, &ExecutionError{Message: redact.Message(err.Error())}
	}
	lease.Release()

	if cacheKey != "" {
		if err := g.cache.Set(ctx, cacheKey, out); err != nil {
			g.logger.Debug().Err(err).Msg("failed to store query result in cache")
		}
	}

	g.logger.Info().
		Str("target", target.Name).
		Str("kind", kind.String()).
		Dur("duration", time.Since(startTime)).
		Int("row_count", len(out.Rows)).
		Bool("truncated", out.Truncated).
		Msg("statement executed")

	return out, nil
}

// runStatement executes input inside an explicit transaction.
// Auto-commit stays off: reads are rolled back once collected, writes
// commit only here and only when the read-only gate is off (a write
// cannot reach this point otherwise).
func (g *Gateway) runStatement(queryCtx, parentCtx context.Context, lease *Lease, kind guard.Kind, input ExecuteInput) (*ExecuteOutput, error) {
	tx, err := lease.Conn().Begin(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Parent ctx, not queryCtx: if the query timed out, queryCtx is
	// already cancelled and the rollback itself would fail.
	defer tx.Rollback(parentCtx)

	rows, err := tx.Query(queryCtx, input.SQL, input.Params...)
	if err != nil {
		return nil, err
	}

	out, err := g.collectRows(rows)
	if err != nil {
		return nil, err
	}

	if kind == guard.Read {
		if err := tx.Rollback(parentCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			return nil, err
		}
		return out, nil
	}
	if err := tx.Commit(queryCtx); err != nil {
		return nil, err
	}
	return out, nil
}

// collectRows reads at most MaxResults+1 rows — one past the cap, so
// truncation is detected without draining an unbounded result set —
// then caps the slice and sets the truncation flag.
func (g *Gateway) collectRows(rows pgx.Rows) (*ExecuteOutput, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	fetchLimit := g.config.MaxResults + 1
	collected := make([]*Row, 0)
	for len(collected) < fetchLimit && rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := NewRow(len(columns))
		for i, col := range columns {
			row.Set(col, convertValue(values[i]))
		}
		collected = append(collected, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	capped, truncated := guard.Cap(collected, g.config.MaxResults)
	return &ExecuteOutput{
		Columns:      columns,
		Rows:         capped,
		RowsAffected: rows.CommandTag().RowsAffected(),
		Truncated:    truncated,
	}, nil
}

// convertValue normalizes a driver-native value to the portable value
// set: JSON-representable primitives, with binary and temporal values
// rendered as strings. All coercion lives here so JSON compatibility
// is enforced in one place.
func convertValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case float32:
		return normalizeFloat(float64(val))
	case float64:
		return normalizeFloat(val)
	case netip.Prefix:
		return val.String()
	case netip.Addr:
		return val.String()
	case net.HardwareAddr:
		return val.String()
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if val.NaN {
			return "NaN"
		}
		encoded, err := val.MarshalJSON()
		if err != nil {
			return nil
		}
		return string(encoded)
	case pgtype.Time:
		if !val.Valid {
			return nil
		}
		return formatMicroseconds(val.Microseconds)
	case [16]byte:
		// UUID
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []byte:
		// bytea — base64 keeps arbitrary binary JSON-safe
		return base64.StdEncoding.EncodeToString(val)
	case json.Number:
		return val
	case string:
		return val
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v := range val {
			result[k] = convertValue(v)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v := range val {
			result[i] = convertValue(v)
		}
		return result
	default:
		return val
	}
}

// normalizeFloat maps non-finite floats onto strings, since JSON has
// no representation for them.
func normalizeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		return f
	}
}

// formatMicroseconds renders a time-of-day microsecond count as
// HH:MM:SS[.ffffff].
func formatMicroseconds(us int64) string {
	hours := us / 3_600_000_000
	us -= hours * 3_600_000_000
	minutes := us / 60_000_000
	us -= minutes * 60_000_000
	seconds := us / 1_000_000
	us -= seconds * 1_000_000
	if us > 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%06d", hours, minutes, seconds, us)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// summarizeSQL shortens a statement for inclusion in error messages
// and logs without echoing the full query text.
func summarizeSQL(sql string) string {
	const maxLen = 80
	sql = strings.Join(strings.Fields(sql), " ")
	if len(sql) <= maxLen {
		return sql
	}
	return sql[:maxLen] + "...[truncated]"
}
