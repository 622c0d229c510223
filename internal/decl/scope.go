package decl

import (
	"fmt"
	"strings"
)

// Scope is the lifetime policy of an injectable unit.
type Scope int

const (
	// Singleton units are constructed once and shared graph-wide.
	Singleton Scope = iota
	// Request units are keyed by an external per-call context identity.
	Request
	// Transient units are constructed anew on every resolution.
	Transient
)

func (s Scope) String() string {
	switch s {
	case Singleton:
		return "singleton"
	case Request:
		return "request"
	case Transient:
		return "transient"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// ParseScope converts a manifest scope name into a Scope. The empty string
// is the default singleton scope.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "singleton", "default":
		return Singleton, nil
	case "request":
		return Request, nil
	case "transient":
		return Transient, nil
	}
	return Singleton, fmt.Errorf("unknown scope %q: must be 'singleton', 'request' or 'transient'", s)
}
