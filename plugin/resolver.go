package plugin

import (
	"fmt"
	"sort"
)

// VersionFailure describes why a candidate was dropped during the
// pre-resolution version validation pass.
type VersionFailure struct {
	ID     Identifier
	Reason string
}

func (f VersionFailure) Error() string {
	return fmt.Sprintf("plugin: %s: %s", f.ID, f.Reason)
}

// versionSource is consulted to find an already-declared version for an
// identifier that a candidate depends on hard — either another pending
// candidate or an already-loaded instance.
type versionSource interface {
	lookupVersion(id Identifier) (Semver, bool)
}

// candidateVersionSource looks up versions among the pending candidate set.
type candidateVersionSource map[Identifier]*Candidate

func (s candidateVersionSource) lookupVersion(id Identifier) (Semver, bool) {
	c, ok := s[id]
	if !ok {
		return Semver{}, false
	}
	v, has, err := c.Manifest.ParsedVersion()
	if err != nil || !has {
		return Semver{}, false
	}
	return v, true
}

// chainVersionSource tries multiple sources in order.
type chainVersionSource []versionSource

func (c chainVersionSource) lookupVersion(id Identifier) (Semver, bool) {
	for _, s := range c {
		if v, ok := s.lookupVersion(id); ok {
			return v, true
		}
	}
	return Semver{}, false
}

// ValidateVersions checks, for every candidate: that serverVersion (if set)
// is satisfied by hostVersion, and that every hard dependency resolves to a
// version (found among the pending set or in extra, typically the live
// instance map) satisfying its declared range. Candidates that fail are
// dropped and reported; candidates that pass are returned for resolution.
func ValidateVersions(candidates map[Identifier]*Candidate, hostVersion Semver, extra versionSource) (map[Identifier]*Candidate, []VersionFailure) {
	valid := make(map[Identifier]*Candidate, len(candidates))
	var failures []VersionFailure

	sources := chainVersionSource{candidateVersionSource(candidates)}
	if extra != nil {
		sources = append(sources, extra)
	}

	ids := sortedIdentifiers(candidates)
	for _, id := range ids {
		c := candidates[id]
		if reason, ok := validateOne(c, hostVersion, sources); !ok {
			failures = append(failures, VersionFailure{ID: id, Reason: reason})
			continue
		}
		valid[id] = c
	}
	return valid, failures
}

func validateOne(c *Candidate, hostVersion Semver, sources versionSource) (string, bool) {
	m := c.Manifest
	if m.ServerVersion != "" {
		rng, err := ParseVersionRange(m.ServerVersion)
		if err != nil {
			return fmt.Sprintf("invalid serverVersion %q: %v", m.ServerVersion, err), false
		}
		if !rng.Satisfies(hostVersion) {
			return fmt.Sprintf("requires server version %s, host is %s", rng, hostVersion), false
		}
	}

	depIDs := make([]Identifier, 0, len(m.Dependencies))
	for id := range m.Dependencies {
		depIDs = append(depIDs, id)
	}
	sort.Slice(depIDs, func(i, j int) bool { return depIDs[i].String() < depIDs[j].String() })

	for _, depID := range depIDs {
		rngStr := m.Dependencies[depID]
		depVersion, found := sources.lookupVersion(depID)
		if !found {
			return fmt.Sprintf("requires %s which is missing or has no declared version", depID), false
		}
		rng, err := ParseVersionRange(rngStr)
		if err != nil {
			return fmt.Sprintf("dependency %s has invalid range %q: %v", depID, rngStr, err), false
		}
		if !rng.Satisfies(depVersion) {
			return fmt.Sprintf("requires %s%s, found %s", depID, rangeSuffix(rng), depVersion), false
		}
	}
	return "", true
}

func rangeSuffix(r VersionRange) string {
	if r.IsEmpty() {
		return ""
	}
	return " " + r.String()
}

// node is the resolver's working representation of a candidate: a set of
// identifiers that must be extracted before this node can be.
type node struct {
	id         Identifier
	waitingOn  map[Identifier]bool
	optionalOf map[Identifier]bool // present only for diagnostics, not gating
}

// Resolve builds the dependency graph over candidates and produces a
// topologically ordered list, or a *ResolutionError.
//
// live is optional (pass nothing, or nil, for a from-scratch resolution). A
// hard dependency on an identifier present in live is treated as already
// satisfied rather than missing, and does not enter the waiting set — it's
// already up, so there is nothing left for the graph to order it against.
// Only the first element of live is consulted; callers pass at most one.
//
// Tie-breaking policy (fixed, documented, and load-bearing for the
// determinism law in spec.md §8): within each extraction pass, nodes whose
// waiting set just became empty are appended in ascending identifier
// string order. This makes the output independent of Go's unordered map
// iteration, so identical input always yields identical output.
func Resolve(candidates map[Identifier]*Candidate, live ...map[Identifier]bool) ([]*Candidate, error) {
	var alreadyLive map[Identifier]bool
	if len(live) > 0 {
		alreadyLive = live[0]
	}
	nodes := make(map[Identifier]*node, len(candidates))
	for id := range candidates {
		nodes[id] = &node{id: id, waitingOn: make(map[Identifier]bool)}
	}

	var missingRequired = make(map[Identifier][]string)
	var missingLoadBefore = make(map[Identifier][]string)

	ids := sortedIdentifiers(candidates)
	for _, id := range ids {
		c := candidates[id]
		n := nodes[id]
		m := c.Manifest

		hardIDs := sortedKeys(m.Dependencies)
		for _, depID := range hardIDs {
			switch {
			case candidates[depID] != nil:
				n.waitingOn[depID] = true
			case alreadyLive[depID]:
				// satisfied by an instance already running; nothing to order against
			default:
				missingRequired[id] = append(missingRequired[id], fmt.Sprintf("requires %s", depID))
			}
		}

		optIDs := sortedKeys(m.OptionalDependencies)
		for _, depID := range optIDs {
			if _, ok := candidates[depID]; ok {
				n.waitingOn[depID] = true
			}
		}

		lbIDs := sortedKeys(m.LoadBefore)
		for _, targetID := range lbIDs {
			if target, ok := nodes[targetID]; ok {
				target.waitingOn[id] = true
			} else {
				missingLoadBefore[id] = append(missingLoadBefore[id], fmt.Sprintf("must load before %s", targetID))
			}
		}
	}

	// Core units always order before external units.
	var coreIDs []Identifier
	for _, id := range ids {
		if candidates[id].IsCore {
			coreIDs = append(coreIDs, id)
		}
	}
	for _, id := range ids {
		if candidates[id].IsCore {
			continue
		}
		for _, coreID := range coreIDs {
			nodes[id].waitingOn[coreID] = true
		}
	}

	if len(missingRequired) > 0 || len(missingLoadBefore) > 0 {
		resErr := &ResolutionError{}
		offenders := make(map[Identifier]bool)
		for id := range missingRequired {
			offenders[id] = true
		}
		for id := range missingLoadBefore {
			offenders[id] = true
		}
		for _, id := range sortedSet(offenders) {
			reasons := append(append([]string{}, missingRequired[id]...), missingLoadBefore[id]...)
			resErr.Nodes = append(resErr.Nodes, nodeFailure{id: id, missing: reasons})
		}
		return nil, resErr
	}

	var out []*Candidate
	remaining := make(map[Identifier]*node, len(nodes))
	for id, n := range nodes {
		remaining[id] = n
	}

	for len(remaining) > 0 {
		var ready []Identifier
		for id, n := range remaining {
			if len(n.waitingOn) == 0 {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			resErr := &ResolutionError{IsCycle: true}
			for _, id := range sortedSet(setOf(remaining)) {
				waiting := sortedKeysBool(remaining[id].waitingOn)
				reasons := make([]string, len(waiting))
				for i, w := range waiting {
					reasons[i] = w.String()
				}
				resErr.Nodes = append(resErr.Nodes, nodeFailure{id: id, missing: reasons})
			}
			return nil, resErr
		}
		sort.Slice(ready, func(i, j int) bool { return ready[i].String() < ready[j].String() })

		for _, id := range ready {
			out = append(out, candidates[id])
			delete(remaining, id)
		}
		for _, n := range remaining {
			for _, id := range ready {
				delete(n.waitingOn, id)
			}
		}
	}

	return out, nil
}

func sortedIdentifiers(m map[Identifier]*Candidate) []Identifier {
	out := make([]Identifier, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func sortedKeys(m map[Identifier]string) []Identifier {
	out := make([]Identifier, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func sortedKeysBool(m map[Identifier]bool) []Identifier {
	out := make([]Identifier, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func setOf(m map[Identifier]*node) map[Identifier]bool {
	out := make(map[Identifier]bool, len(m))
	for id := range m {
		out[id] = true
	}
	return out
}

func sortedSet(m map[Identifier]bool) []Identifier {
	out := make([]Identifier, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
