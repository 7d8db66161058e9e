package plugin

import (
	"fmt"
)

// Manifest is the immutable declared metadata for a plugin unit.
//
// Manifests are never mutated after candidate registration finishes (see
// Candidate.expandSubPlugins, the one place a derived manifest is built).
type Manifest struct {
	Group       string   `json:"group" yaml:"group"`
	Name        string   `json:"name" yaml:"name"`
	Version     string   `json:"version,omitempty" yaml:"version,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Website     string   `json:"website,omitempty" yaml:"website,omitempty"`
	Authors     []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Main is an opaque type descriptor the instance factory resolves to a
	// constructible type. Empty means "no entry point" — the unit cannot be
	// instantiated.
	Main string `json:"main,omitempty" yaml:"main,omitempty"`

	// ServerVersion is an optional version range the host must satisfy.
	ServerVersion string `json:"serverVersion,omitempty" yaml:"serverVersion,omitempty"`

	// Dependencies is a hard-dependency map: missing or unsatisfied is fatal
	// for this unit.
	Dependencies map[Identifier]string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	// OptionalDependencies only influence load order when present.
	OptionalDependencies map[Identifier]string `json:"optionalDependencies,omitempty" yaml:"optionalDependencies,omitempty"`

	// LoadBefore records identifiers this unit must be ordered before. A
	// listed identifier that is not among the candidates being resolved
	// fails resolution.
	LoadBefore map[Identifier]string `json:"loadBefore,omitempty" yaml:"loadBefore,omitempty"`

	// SubPlugins is an ordered list of child manifests. Each child inherits
	// unset fields from the parent and gains an implicit hard dependency on
	// the parent (see expandSubPlugins).
	SubPlugins []*Manifest `json:"subPlugins,omitempty" yaml:"subPlugins,omitempty"`

	DisabledByDefault bool `json:"disabledByDefault,omitempty" yaml:"disabledByDefault,omitempty"`
	IncludesAssetPack bool `json:"includesAssetPack,omitempty" yaml:"includesAssetPack,omitempty"`

	// IsCore segregates units shipped inside the host binary from
	// externally discovered units. Serialized under the source's original
	// name for compatibility with manifests authored against it.
	IsCore bool `json:"inServerClasspath,omitempty" yaml:"inServerClasspath,omitempty"`

	// Tags, Repository, and License are descriptive, not load-bearing.
	Tags       []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Repository string   `json:"repository,omitempty" yaml:"repository,omitempty"`
	License    string   `json:"license,omitempty" yaml:"license,omitempty"`
}

// Identifier returns the (group, name) pair identifying this manifest.
func (m *Manifest) Identifier() Identifier {
	return Identifier{Group: m.Group, Name: m.Name}
}

// HasEntryPoint reports whether the manifest declares a constructible type.
func (m *Manifest) HasEntryPoint() bool {
	return m.Main != ""
}

// ParsedVersion parses Version, if set.
func (m *Manifest) ParsedVersion() (Semver, bool, error) {
	if m.Version == "" {
		return Semver{}, false, nil
	}
	v, err := ParseSemver(m.Version)
	if err != nil {
		return Semver{}, true, err
	}
	return v, true, nil
}

// Validate checks structural invariants: non-empty name, valid version (if
// set), and disjoint hard/optional dependency sets.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("plugin: manifest has an empty name")
	}
	if m.Group == "" {
		return fmt.Errorf("plugin: manifest %q has an empty group", m.Name)
	}
	if m.Version != "" {
		if _, err := ParseSemver(m.Version); err != nil {
			return fmt.Errorf("plugin: manifest %s has invalid version %q: %w", m.Identifier(), m.Version, err)
		}
	}
	for id, rng := range m.Dependencies {
		if _, err := ParseVersionRange(rng); err != nil {
			return fmt.Errorf("plugin: manifest %s dependency %s has invalid range %q: %w", m.Identifier(), id, rng, err)
		}
		if _, dup := m.OptionalDependencies[id]; dup {
			return fmt.Errorf("plugin: manifest %s declares %s as both a hard and optional dependency", m.Identifier(), id)
		}
	}
	for id, rng := range m.OptionalDependencies {
		if _, err := ParseVersionRange(rng); err != nil {
			return fmt.Errorf("plugin: manifest %s optional dependency %s has invalid range %q: %w", m.Identifier(), id, rng, err)
		}
	}
	for id, rng := range m.LoadBefore {
		if _, err := ParseVersionRange(rng); err != nil {
			return fmt.Errorf("plugin: manifest %s loadBefore %s has invalid range %q: %w", m.Identifier(), id, rng, err)
		}
	}
	if m.ServerVersion != "" {
		if _, err := ParseVersionRange(m.ServerVersion); err != nil {
			return fmt.Errorf("plugin: manifest %s has invalid serverVersion %q: %w", m.Identifier(), m.ServerVersion, err)
		}
	}
	for i, sub := range m.SubPlugins {
		if sub == nil {
			return fmt.Errorf("plugin: manifest %s has a nil sub-plugin at index %d", m.Identifier(), i)
		}
		if sub.Identifier() == m.Identifier() {
			return fmt.Errorf("plugin: sub-plugin %d of %s shares its parent's identifier", i, m.Identifier())
		}
	}
	return nil
}

// inheritFrom fills empty/zero fields of m from parent, per §4.1: group,
// version, description, authors (if empty), website, and disabledByDefault
// (only when the child's is false). It does not touch m.Name — sub-plugins
// keep their own declared name (see DESIGN.md's sub-plugin identifier
// decision: this is not a hierarchical namespace).
func (m *Manifest) inheritFrom(parent *Manifest) {
	if m.Group == "" {
		m.Group = parent.Group
	}
	if m.Version == "" {
		m.Version = parent.Version
	}
	if m.Description == "" {
		m.Description = parent.Description
	}
	if len(m.Authors) == 0 {
		m.Authors = parent.Authors
	}
	if m.Website == "" {
		m.Website = parent.Website
	}
	if !m.DisabledByDefault {
		m.DisabledByDefault = parent.DisabledByDefault
	}

	if m.Dependencies == nil {
		m.Dependencies = make(map[Identifier]string, 1)
	}
	m.Dependencies[parent.Identifier()] = parent.Version
}

// cloneManifest copies m by value and deep-copies its reference-typed
// fields (the dependency maps, Authors, Tags, and the SubPlugins slice
// header). Used before inheritFrom so mutating the clone — in particular
// inheritFrom's injection of the implicit parent dependency — never
// aliases a map or slice still reachable from the original manifest.
func cloneManifest(m *Manifest) Manifest {
	clone := *m
	clone.Authors = append([]string(nil), m.Authors...)
	clone.Tags = append([]string(nil), m.Tags...)
	clone.Dependencies = cloneIdentifierMap(m.Dependencies)
	clone.OptionalDependencies = cloneIdentifierMap(m.OptionalDependencies)
	clone.LoadBefore = cloneIdentifierMap(m.LoadBefore)
	clone.SubPlugins = append([]*Manifest(nil), m.SubPlugins...)
	return clone
}

func cloneIdentifierMap(m map[Identifier]string) map[Identifier]string {
	if m == nil {
		return nil
	}
	out := make(map[Identifier]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
