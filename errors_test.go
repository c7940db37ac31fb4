package sqlgate

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrors_MatchThroughWrapping(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("handling tool call: %w", &PoolExhaustedError{Target: "orders", Wait: 30 * time.Second})
	var poolErr *PoolExhaustedError
	if !errors.As(wrapped, &poolErr) {
		t.Fatal("*PoolExhaustedError not matchable through wrapping")
	}
	if poolErr.Target != "orders" {
		t.Errorf("target = %q, want orders", poolErr.Target)
	}
}

func TestErrors_Messages(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want string
	}{
		{&UnknownTargetError{Name: "nope"}, `unknown database target "nope"`},
		{&PoolExhaustedError{Target: "orders", Wait: 30 * time.Second}, "no connection became free within 30s"},
		{&ReadOnlyViolationError{Statement: "DELETE FROM users"}, "read-only mode"},
		{&ParameterBindingError{Placeholders: 2, Args: 1}, "2 placeholder(s), 1 argument(s)"},
		{&TimeoutError{Op: "read statement", Limit: 30 * time.Second}, "exceeded the 30s timeout"},
		{&ExecutionError{Message: `relation "users" does not exist`}, "does not exist"},
	}
	for _, tc := range tests {
		if got := tc.err.Error(); !strings.Contains(got, tc.want) {
			t.Errorf("%T message %q does not contain %q", tc.err, got, tc.want)
		}
	}
}
