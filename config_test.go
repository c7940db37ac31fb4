package sqlgate_test

import (
	"strings"
	"testing"
	"time"

	"github.com/sqlgate/sqlgate"
)

// clearDBEnv blanks every recognized option so ambient environment
// cannot bleed into config tests.
func clearDBEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"DB_HOSTS", "DB_HOST", "DB_PORTS", "DB_PORT",
		"DB_USERS", "DB_USER", "DB_PASSWORDS", "DB_PASSWORD",
		"DB_NAMES", "DB_NAME", "DB_CHARSETS", "DB_CHARSET",
		"DB_CONNECT_TIMEOUT", "DB_READ_TIMEOUT", "DB_WRITE_TIMEOUT",
		"MCP_READ_ONLY", "MCP_MAX_POOL_SIZE", "MCP_MAX_RESULTS",
		"CACHE_REDIS_ADDR", "CACHE_TTL_SECONDS",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearDBEnv(t)

	config, warnings, err := sqlgate.FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(config.Targets) != 1 {
		t.Fatalf("expected 1 default target, got %d", len(config.Targets))
	}
	target := config.Targets[0]
	if target.Host != "localhost" || target.Port != 5432 {
		t.Errorf("default target = %s:%d, want localhost:5432", target.Host, target.Port)
	}
	if !config.ReadOnly {
		t.Error("read-only mode must default to true")
	}
	if config.MaxPoolSize != 10 || config.MaxResults != 10000 {
		t.Errorf("pool/results defaults = %d/%d, want 10/10000", config.MaxPoolSize, config.MaxResults)
	}
	if config.ConnectTimeout != 10*time.Second || config.ReadTimeout != 30*time.Second || config.WriteTimeout != 30*time.Second {
		t.Errorf("timeout defaults = %v/%v/%v", config.ConnectTimeout, config.ReadTimeout, config.WriteTimeout)
	}
	if config.Cache.RedisAddr != "" {
		t.Error("cache must be disabled by default")
	}
}

func TestFromEnv_MultipleTargets(t *testing.T) {
	clearDBEnv(t)
	t.Setenv("DB_HOSTS", "db1.internal,db2.internal")
	t.Setenv("DB_PORTS", "5432,5433")
	t.Setenv("DB_USERS", "app,reporting")
	t.Setenv("DB_PASSWORDS", "pw1,pw2")
	t.Setenv("DB_NAMES", "orders,analytics")
	t.Setenv("DB_CHARSETS", "UTF8,UTF8")

	config, warnings, err := sqlgate.FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(config.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(config.Targets))
	}
	second := config.Targets[1]
	if second.Name != "analytics" || second.Host != "db2.internal" || second.Port != 5433 || second.User != "reporting" {
		t.Errorf("unexpected second target: %+v", second)
	}
}

func TestFromEnv_MismatchedListsTruncateWithWarning(t *testing.T) {
	clearDBEnv(t)
	t.Setenv("DB_HOSTS", "db1,db2,db3")
	t.Setenv("DB_USERS", "app,reporting")
	t.Setenv("DB_PASSWORDS", "pw1,pw2")
	t.Setenv("DB_NAMES", "orders,analytics,archive")

	config, warnings, err := sqlgate.FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(config.Targets) != 2 {
		t.Fatalf("expected truncation to 2 targets, got %d", len(config.Targets))
	}
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", warnings)
	}
	if !strings.Contains(warnings[0], "length mismatch") {
		t.Fatalf("warning should explain the mismatch, got %q", warnings[0])
	}
}

func TestFromEnv_SingularFallback(t *testing.T) {
	clearDBEnv(t)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "orders")

	config, _, err := sqlgate.FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(config.Targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(config.Targets))
	}
	target := config.Targets[0]
	if target.Name != "orders" || target.Host != "db.internal" || target.User != "app" {
		t.Errorf("unexpected target: %+v", target)
	}
}

func TestFromEnv_SingleValueFansOut(t *testing.T) {
	clearDBEnv(t)
	t.Setenv("DB_HOSTS", "db1,db2")
	t.Setenv("DB_USERS", "app,app")
	t.Setenv("DB_PASSWORDS", "pw,pw")
	t.Setenv("DB_PORT", "6432")
	t.Setenv("DB_NAMES", "orders,analytics")

	config, _, err := sqlgate.FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, target := range config.Targets {
		if target.Port != 6432 {
			t.Errorf("target %d port = %d, want 6432 fanned out", i, target.Port)
		}
	}
}

func TestFromEnv_ReadOnlyDisabled(t *testing.T) {
	clearDBEnv(t)
	t.Setenv("MCP_READ_ONLY", "false")

	config, _, err := sqlgate.FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.ReadOnly {
		t.Error("MCP_READ_ONLY=false should disable the gate")
	}
}

func TestFromEnv_InvalidNumbersFail(t *testing.T) {
	clearDBEnv(t)
	t.Setenv("MCP_MAX_RESULTS", "lots")

	if _, _, err := sqlgate.FromEnv(); err == nil {
		t.Fatal("expected error for non-numeric MCP_MAX_RESULTS")
	}
}

func TestFromEnv_CacheConfig(t *testing.T) {
	clearDBEnv(t)
	t.Setenv("CACHE_REDIS_ADDR", "localhost:6379")
	t.Setenv("CACHE_TTL_SECONDS", "120")

	config, _, err := sqlgate.FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("cache addr = %q", config.Cache.RedisAddr)
	}
	if config.Cache.TTL != 120*time.Second {
		t.Errorf("cache ttl = %v, want 2m", config.Cache.TTL)
	}
}
