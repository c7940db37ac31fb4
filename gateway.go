package sqlgate

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sqlgate/sqlgate/internal/qcache"
	"github.com/sqlgate/sqlgate/internal/timeout"
)

// Gateway wires the target registry, pool manager, and policy guard
// together behind the five tool operations. All exported methods are
// safe for concurrent use from multiple goroutines.
type Gateway struct {
	config   Config
	registry *Registry
	pools    *PoolManager
	timeouts *timeout.Manager
	cache    *qcache.Cache // nil when caching is disabled
	logger   zerolog.Logger

	closeOnce sync.Once
}

// New validates config and creates a Gateway. Panics on invalid
// config. No connection is made here — each target's pool is created
// lazily on first use, so one unreachable target never prevents the
// process from serving healthy ones.
func New(config Config, logger zerolog.Logger) *Gateway {
	if len(config.Targets) == 0 {
		panic("sqlgate: at least one target must be configured")
	}
	if config.MaxPoolSize <= 0 {
		panic("sqlgate: max pool size must be > 0")
	}
	if config.MaxResults <= 0 {
		panic("sqlgate: max results must be > 0")
	}
	if config.ConnectTimeout <= 0 || config.ReadTimeout <= 0 || config.WriteTimeout <= 0 {
		panic("sqlgate: connect/read/write timeouts must be > 0")
	}

	var cache *qcache.Cache
	if config.Cache.RedisAddr != "" {
		ttl := config.Cache.TTL
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		cache = qcache.New(config.Cache.RedisAddr, ttl)
	}

	return &Gateway{
		config:   config,
		registry: NewRegistry(config.Targets),
		pools:    NewPoolManager(config, logger),
		timeouts: timeout.NewManager(timeout.Config{
			Connect: config.ConnectTimeout,
			Read:    config.ReadTimeout,
			Write:   config.WriteTimeout,
		}),
		cache:  cache,
		logger: logger,
	}
}

// InitializePool probes every configured target so startup problems
// surface early. A target that cannot be reached is logged and left to
// lazy initialization; the call fails only when no target is usable.
func (g *Gateway) InitializePool(ctx context.Context) error {
	var firstErr error
	healthy := 0
	for _, t := range g.registry.Targets() {
		if err := g.pools.Ping(ctx, t); err != nil {
			g.logger.Warn().Str("target", t.Name).Err(err).
				Msg("target unreachable at startup; pool stays lazy")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		healthy++
	}
	if healthy == 0 {
		return firstErr
	}
	return nil
}

// Close drains and closes every pool. Idempotent; safe to call from
// shutdown hooks that may fire more than once.
func (g *Gateway) Close(ctx context.Context) {
	g.closeOnce.Do(func() {
		g.pools.Shutdown(ctx)
		if g.cache != nil {
			if err := g.cache.Close(); err != nil {
				g.logger.Warn().Err(err).Msg("failed to close query cache")
			}
		}
	})
}

// Ping checks connectivity to the named logical database, resolving
// it like any other operation.
func (g *Gateway) Ping(ctx context.Context, database string) error {
	target, err := g.registry.Resolve(database)
	if err != nil {
		return err
	}
	return g.pools.Ping(ctx, target)
}

// ReadOnly reports whether the write-statement gate is active.
func (g *Gateway) ReadOnly() bool {
	return g.config.ReadOnly
}
