package plugin

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for category identity (errors.Is). Wrapped with
// fmt.Errorf("...: %w", ...) for context throughout the package.
var (
	// ErrAlreadyRegistered is returned by CandidateRegistry.Register when an
	// identifier is already present.
	ErrAlreadyRegistered = errors.New("plugin: identifier already registered")

	// ErrNotFound is returned when a lookup by identifier fails.
	ErrNotFound = errors.New("plugin: not found")

	// ErrInvalidState is raised when an operation's preconditions on the
	// service-wide state are violated — a non-recoverable programmer error.
	ErrInvalidState = errors.New("plugin: invalid service state for operation")

	// ErrHasDependents is returned by Unload when the target has enabled
	// dependents; Unload never cascades (see DESIGN.md).
	ErrHasDependents = errors.New("plugin: cannot unload, dependents are still enabled")
)

// nodeFailure is one offending node in a composite resolver diagnostic.
type nodeFailure struct {
	id      Identifier
	missing []string
}

// ResolutionError is a composite diagnostic raised when the resolver cannot
// produce a load order: missing hard dependencies, missing loadBefore
// targets, or (with IsCycle set) a dependency cycle. It reports, for every
// offending node, the identifier and the unresolved relations.
type ResolutionError struct {
	IsCycle bool
	Nodes   []nodeFailure
}

func (e *ResolutionError) Error() string {
	kind := "unresolved dependencies"
	if e.IsCycle {
		kind = "cyclic dependency"
	}
	sorted := make([]nodeFailure, len(e.Nodes))
	copy(sorted, e.Nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].id.String() < sorted[j].id.String() })

	var b strings.Builder
	fmt.Fprintf(&b, "plugin: %s:\n", kind)
	for _, n := range sorted {
		fmt.Fprintf(&b, "  %s waiting on: %s\n", n.id, strings.Join(n.missing, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Unwrap exposes one error per offending node, each carrying that node's
// line of the report. The per-node errors wrap no sentinel, so errors.Is
// cannot match a specific stuck identifier through them.
func (e *ResolutionError) Unwrap() []error {
	out := make([]error, len(e.Nodes))
	for i, n := range e.Nodes {
		out[i] = fmt.Errorf("plugin: %s waiting on: %s", n.id, strings.Join(n.missing, ", "))
	}
	return out
}

// gateError records a failed dependency gate check for logging and for
// driving the instance to Disabled.
type gateError struct {
	stage      string
	dependency Identifier
	want, got  State
}

func (e *gateError) Error() string {
	return fmt.Sprintf("plugin: dependency %s must be %s to enter %s, currently %s", e.dependency, e.want, e.stage, e.got)
}
