package sqlgate

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the gateway configuration. Zero values are filled in by
// FromEnv; callers constructing Config by hand must satisfy the same
// constraints New validates.
type Config struct {
	Targets        []Target
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ReadOnly       bool
	MaxPoolSize    int
	MaxResults     int
	Cache          CacheConfig
}

// CacheConfig controls the optional Redis-backed read-query cache.
// The cache is disabled unless RedisAddr is set. Schema lookups are
// never cached — they must always reflect live catalog state.
type CacheConfig struct {
	RedisAddr string
	TTL       time.Duration
}

// Configuration defaults, matching the documented env surface.
const (
	DefaultPort           = 5432
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 30 * time.Second
	DefaultMaxPoolSize    = 10
	DefaultMaxResults     = 10000
	DefaultCacheTTL       = 30 * time.Second
)

// FromEnv builds a Config from environment variables. It returns
// human-readable warnings for recoverable misconfiguration (mismatched
// comma-list lengths are truncated to the shortest list rather than
// failing startup) and an error only for values that cannot be parsed
// at all.
func FromEnv() (Config, []string, error) {
	var warnings []string

	hosts := envList("DB_HOSTS", "DB_HOST", "localhost")
	users := envList("DB_USERS", "DB_USER", "")
	passwords := envList("DB_PASSWORDS", "DB_PASSWORD", "")
	names := envList("DB_NAMES", "DB_NAME", "")
	charsets := envList("DB_CHARSETS", "DB_CHARSET", "")

	ports, err := envIntList("DB_PORTS", "DB_PORT", DefaultPort)
	if err != nil {
		return Config{}, nil, err
	}

	// Parallel lists must agree in length. Truncate to the shortest
	// rather than failing, so a partially misconfigured deployment
	// still serves its valid targets.
	if len(hosts) > 1 && (len(hosts) != len(users) || len(hosts) != len(passwords)) {
		n := min(len(hosts), len(users), len(passwords))
		warnings = append(warnings, fmt.Sprintf(
			"database config length mismatch: DB_HOSTS=%d, DB_USERS=%d, DB_PASSWORDS=%d; using first %d entries",
			len(hosts), len(users), len(passwords), n))
		hosts = hosts[:n]
		users = users[:n]
		passwords = passwords[:n]
	}

	targets := make([]Target, 0, len(hosts))
	for i, host := range hosts {
		t := Target{
			Name:     pick(names, i),
			Host:     host,
			Port:     pickInt(ports, i, DefaultPort),
			User:     pick(users, i),
			Password: pick(passwords, i),
			Database: pick(names, i),
			Charset:  pick(charsets, i),
		}
		if t.Name == "" {
			// Unnamed targets stay addressable via the empty-name
			// default resolution and by their host.
			t.Name = host
		}
		targets = append(targets, t)
	}

	connectTimeout, err := envSeconds("DB_CONNECT_TIMEOUT", DefaultConnectTimeout)
	if err != nil {
		return Config{}, nil, err
	}
	readTimeout, err := envSeconds("DB_READ_TIMEOUT", DefaultReadTimeout)
	if err != nil {
		return Config{}, nil, err
	}
	writeTimeout, err := envSeconds("DB_WRITE_TIMEOUT", DefaultWriteTimeout)
	if err != nil {
		return Config{}, nil, err
	}
	maxPoolSize, err := envInt("MCP_MAX_POOL_SIZE", DefaultMaxPoolSize)
	if err != nil {
		return Config{}, nil, err
	}
	maxResults, err := envInt("MCP_MAX_RESULTS", DefaultMaxResults)
	if err != nil {
		return Config{}, nil, err
	}
	cacheTTL, err := envSeconds("CACHE_TTL_SECONDS", DefaultCacheTTL)
	if err != nil {
		return Config{}, nil, err
	}

	return Config{
		Targets:        targets,
		ConnectTimeout: connectTimeout,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		ReadOnly:       envBool("MCP_READ_ONLY", true),
		MaxPoolSize:    maxPoolSize,
		MaxResults:     maxResults,
		Cache: CacheConfig{
			RedisAddr: os.Getenv("CACHE_REDIS_ADDR"),
			TTL:       cacheTTL,
		},
	}, warnings, nil
}

// envList reads a comma-separated list from key, falling back to the
// singular key, then to def. Entries are not trimmed: charset and
// password values may legitimately contain spaces.
func envList(key, singularKey, def string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = os.Getenv(singularKey)
	}
	if v == "" {
		v = def
	}
	if v == "" {
		return []string{""}
	}
	return strings.Split(v, ",")
}

func envIntList(key, singularKey string, def int) ([]int, error) {
	v := os.Getenv(key)
	if v == "" {
		v = os.Getenv(singularKey)
	}
	if v == "" {
		return []int{def}, nil
	}
	parts := strings.Split(v, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q: %w", key, p, err)
		}
		out[i] = n
	}
	return out, nil
}

// pick returns list[i], or the first element when the list is shorter
// than the host list (a single value fans out to every target).
func pick(list []string, i int) string {
	if i < len(list) {
		return list[i]
	}
	if len(list) > 0 {
		return list[0]
	}
	return ""
}

func pickInt(list []int, i, def int) int {
	if i < len(list) {
		return list[i]
	}
	if len(list) > 0 {
		return list[0]
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envSeconds(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return time.Duration(n) * time.Second, nil
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}
