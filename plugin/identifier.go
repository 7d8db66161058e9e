// Package plugin implements the plugin lifecycle and dependency-resolution
// core: manifest model, candidate registry, dependency resolver, lifecycle
// engine, and the service façade that drives plugins through setup, start,
// and shutdown.
package plugin

import (
	"fmt"
	"strings"
)

// Identifier is a (group, name) pair identifying a plugin unit. Two
// identifiers are equal iff both components match exactly, case-sensitive.
type Identifier struct {
	Group string
	Name  string
}

// NewIdentifier constructs an Identifier from its two components.
func NewIdentifier(group, name string) Identifier {
	return Identifier{Group: group, Name: name}
}

// String returns the canonical "group:name" form.
func (id Identifier) String() string {
	return id.Group + ":" + id.Name
}

// IsZero reports whether the identifier has an empty group or name.
func (id Identifier) IsZero() bool {
	return id.Group == "" || id.Name == ""
}

// MarshalText implements encoding.TextMarshaler so Identifier can be used as
// a JSON/YAML map key.
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identifier) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentifier(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseIdentifier parses a canonical "group:name" string. It fails if the
// string is empty, has no colon, has more than one colon, or either
// component is empty.
func ParseIdentifier(s string) (Identifier, error) {
	if s == "" {
		return Identifier{}, fmt.Errorf("plugin: empty identifier")
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Identifier{}, fmt.Errorf("plugin: identifier %q must have exactly one colon", s)
	}
	group, name := parts[0], parts[1]
	if group == "" || name == "" {
		return Identifier{}, fmt.Errorf("plugin: identifier %q has an empty group or name", s)
	}
	return Identifier{Group: group, Name: name}, nil
}
