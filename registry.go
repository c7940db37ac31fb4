package sqlgate

// Target is one logical database endpoint addressable by name.
// Targets are built from configuration at process start and are
// immutable afterwards, so the registry needs no locking.
type Target struct {
	Name     string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Charset  string
}

// Registry resolves logical database names to connection targets.
type Registry struct {
	targets []Target
	byName  map[string]Target
}

// NewRegistry builds a registry from the configured targets. When two
// targets share a name the first entry wins, matching the legacy
// single-target behavior.
func NewRegistry(targets []Target) *Registry {
	byName := make(map[string]Target, len(targets))
	for _, t := range targets {
		if _, ok := byName[t.Name]; ok {
			continue
		}
		byName[t.Name] = t
	}
	return &Registry{targets: targets, byName: byName}
}

// Resolve returns the target for name. An empty name selects the first
// configured target (single-target convenience). An unknown non-empty
// name fails with *UnknownTargetError.
func (r *Registry) Resolve(name string) (Target, error) {
	if name == "" {
		if len(r.targets) == 0 {
			return Target{}, &UnknownTargetError{Name: name}
		}
		return r.targets[0], nil
	}
	t, ok := r.byName[name]
	if !ok {
		return Target{}, &UnknownTargetError{Name: name}
	}
	return t, nil
}

// Targets returns the configured targets in declaration order.
func (r *Registry) Targets() []Target {
	out := make([]Target, len(r.targets))
	copy(out, r.targets)
	return out
}
