package sqlgate

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/sqlgate/sqlgate/internal/redact"
)

// acquireTimeout bounds how long a caller waits for a free connection
// before the pool is declared exhausted.
const acquireTimeout = 30 * time.Second

// drainTimeout bounds how long Shutdown waits for borrowed connections
// to come back before moving on to the next pool.
const drainTimeout = 10 * time.Second

// PoolManager owns one pgxpool.Pool per distinct server/credential
// pair. Pools are created lazily on first acquisition and torn down on
// Shutdown. Safe for concurrent use; the pools map is the only shared
// mutable state in the gateway.
type PoolManager struct {
	config Config
	logger zerolog.Logger

	mu     sync.Mutex
	pools  map[string]*pgxpool.Pool
	closed bool
}

// NewPoolManager creates a PoolManager. No connections are made here.
func NewPoolManager(config Config, logger zerolog.Logger) *PoolManager {
	return &PoolManager{
		config: config,
		logger: logger,
		pools:  make(map[string]*pgxpool.Pool),
	}
}

// poolKey identifies the physical server/credential pair behind a
// target. Targets that point at the same server with the same
// credentials share one pool.
func poolKey(t Target) string {
	return fmt.Sprintf("%s:%d/%s@%s", t.Host, t.Port, t.Database, t.User)
}

// connString builds a pgx connection URL for a target. URL form keeps
// passwords containing spaces or punctuation intact.
func connString(t Target) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", t.Host, t.Port),
		Path:   "/" + t.Database,
	}
	if t.User != "" {
		u.User = url.UserPassword(t.User, t.Password)
	}
	q := url.Values{}
	if t.Charset != "" {
		q.Set("client_encoding", t.Charset)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// pool returns the pool for target, creating it on first use.
func (m *PoolManager) pool(ctx context.Context, t Target) (*pgxpool.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, &ExecutionError{Message: "pool manager is shut down"}
	}
	key := poolKey(t)
	if p, ok := m.pools[key]; ok {
		return p, nil
	}

	poolConfig, err := pgxpool.ParseConfig(connString(t))
	if err != nil {
		return nil, &ExecutionError{Message: redact.Message(fmt.Sprintf("invalid connection config for target %q: %v", t.Name, err))}
	}
	poolConfig.MaxConns = int32(m.config.MaxPoolSize)
	poolConfig.ConnConfig.ConnectTimeout = m.config.ConnectTimeout
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	p, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, &ExecutionError{Message: redact.Message(fmt.Sprintf("failed to create pool for target %q: %v", t.Name, err))}
	}
	m.pools[key] = p

	m.logger.Info().
		Str("target", t.Name).
		Int("max_conns", m.config.MaxPoolSize).
		Msg("connection pool created")
	return p, nil
}

// Acquire borrows a connection for target, blocking until one is free
// or the acquire timeout elapses. The returned lease must be settled
// exactly once via Release or Discard on every exit path.
func (m *PoolManager) Acquire(ctx context.Context, t Target) (*Lease, error) {
	p, err := m.pool(ctx, t)
	if err != nil {
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	conn, err := p.Acquire(acquireCtx)
	if err != nil {
		if acquireCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, &PoolExhaustedError{Target: t.Name, Wait: acquireTimeout}
		}
		return nil, &ExecutionError{Message: redact.Message(fmt.Sprintf("failed to acquire connection for target %q: %v", t.Name, err))}
	}
	return &Lease{conn: conn}, nil
}

// Ping checks connectivity to a target, creating its pool if needed.
func (m *PoolManager) Ping(ctx context.Context, t Target) error {
	lease, err := m.Acquire(ctx, t)
	if err != nil {
		return err
	}
	defer lease.Release()
	return lease.Conn().Ping(ctx)
}

// Shutdown closes every pool, waiting up to drainTimeout per pool for
// in-flight borrows to return. Idempotent; further acquisitions fail.
func (m *PoolManager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	pools := m.pools
	m.pools = nil
	m.mu.Unlock()

	for key, p := range pools {
		done := make(chan struct{})
		go func(p *pgxpool.Pool) {
			p.Close()
			close(done)
		}(p)
		select {
		case <-done:
		case <-time.After(drainTimeout):
			m.logger.Warn().Str("pool", key).
				Msg("pool drain timed out; remaining connections close on release")
		case <-ctx.Done():
			m.logger.Warn().Str("pool", key).
				Msg("shutdown cancelled while draining pool")
		}
	}
}

// Lease is one scoped borrow of a pooled connection. A connection is
// never shared between two leases.
type Lease struct {
	conn    *pgxpool.Conn
	settled bool
}

// Conn exposes the borrowed connection.
func (l *Lease) Conn() *pgxpool.Conn {
	return l.conn
}

// Release returns a healthy connection to its pool. Safe to call after
// Discard; only the first settlement takes effect.
func (l *Lease) Release() {
	if l.settled {
		return
	}
	l.settled = true
	l.conn.Release()
}

// Discard closes the underlying connection instead of pooling it.
// Used after errors and timeouts, when the connection's protocol state
// is unknown; the pool replaces it on the next acquisition.
func (l *Lease) Discard() {
	if l.settled {
		return
	}
	l.settled = true
	conn := l.conn.Hijack()
	_ = conn.Close(context.Background())
}
