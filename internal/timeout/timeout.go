// Package timeout resolves per-operation wall-clock deadlines from the
// configured connect/read/write limits.
package timeout

import "time"

// Config holds the configured per-operation limits.
type Config struct {
	Connect time.Duration
	Read    time.Duration
	Write   time.Duration
}

// Manager hands out the deadline matching a statement's classification.
// Read-only after construction; no locking needed.
type Manager struct {
	config Config
}

// NewManager creates a Manager.
func NewManager(config Config) *Manager {
	return &Manager{config: config}
}

// ForStatement returns the write limit for write statements and the
// read limit otherwise.
func (m *Manager) ForStatement(write bool) time.Duration {
	if write {
		return m.config.Write
	}
	return m.config.Read
}

// Connect returns the connection-establishment limit.
func (m *Manager) Connect() time.Duration {
	return m.config.Connect
}
