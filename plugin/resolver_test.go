package plugin

import "testing"

func candSet(cands ...*Candidate) map[Identifier]*Candidate {
	out := make(map[Identifier]*Candidate, len(cands))
	for _, c := range cands {
		out[c.Identifier()] = c
	}
	return out
}

func cand(group, name string, deps map[Identifier]string) *Candidate {
	return &Candidate{Manifest: &Manifest{Group: group, Name: name, Dependencies: deps}}
}

func idsOf(cands []*Candidate) []Identifier {
	out := make([]Identifier, len(cands))
	for i, c := range cands {
		out[i] = c.Identifier()
	}
	return out
}

func indexOf(ids []Identifier, id Identifier) int {
	for i, existing := range ids {
		if existing == id {
			return i
		}
	}
	return -1
}

func TestResolveLinearChain(t *testing.T) {
	t.Parallel()
	a := cand("core", "a", nil)
	b := cand("core", "b", map[Identifier]string{a.Identifier(): ""})
	c := cand("core", "c", map[Identifier]string{b.Identifier(): ""})

	order, err := Resolve(candSet(c, a, b))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ids := idsOf(order)
	if indexOf(ids, a.Identifier()) > indexOf(ids, b.Identifier()) ||
		indexOf(ids, b.Identifier()) > indexOf(ids, c.Identifier()) {
		t.Errorf("expected a before b before c, got %v", ids)
	}
}

func TestResolveOptionalDependencyReorders(t *testing.T) {
	t.Parallel()
	a := cand("core", "a", nil)
	b := &Candidate{Manifest: &Manifest{
		Group: "core", Name: "b",
		OptionalDependencies: map[Identifier]string{a.Identifier(): ""},
	}}

	order, err := Resolve(candSet(b, a))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ids := idsOf(order)
	if indexOf(ids, a.Identifier()) > indexOf(ids, b.Identifier()) {
		t.Errorf("optional dependency present in the set should still order before its dependent, got %v", ids)
	}
}

func TestResolveOptionalDependencyAbsentNeverFails(t *testing.T) {
	t.Parallel()
	b := &Candidate{Manifest: &Manifest{
		Group: "core", Name: "b",
		OptionalDependencies: map[Identifier]string{NewIdentifier("core", "missing"): ""},
	}}
	if _, err := Resolve(candSet(b)); err != nil {
		t.Fatalf("missing optional dependency should never fail resolution: %v", err)
	}
}

func TestResolveLoadBeforeFlipsEdge(t *testing.T) {
	t.Parallel()
	a := &Candidate{Manifest: &Manifest{
		Group: "core", Name: "a",
		LoadBefore: map[Identifier]string{NewIdentifier("core", "b"): ""},
	}}
	b := cand("core", "b", nil)

	order, err := Resolve(candSet(b, a))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ids := idsOf(order)
	if indexOf(ids, a.Identifier()) > indexOf(ids, b.Identifier()) {
		t.Errorf("a declares loadBefore b, expected a first, got %v", ids)
	}
}

func TestResolveMissingRequiredDependency(t *testing.T) {
	t.Parallel()
	b := cand("core", "b", map[Identifier]string{NewIdentifier("core", "missing"): ""})

	_, err := Resolve(candSet(b))
	if err == nil {
		t.Fatal("expected a resolution error for a missing hard dependency")
	}
	resErr, ok := err.(*ResolutionError)
	if !ok {
		t.Fatalf("expected *ResolutionError, got %T", err)
	}
	if resErr.IsCycle {
		t.Error("a missing dependency is not a cycle")
	}
}

func TestResolveTreatsAlreadyLiveHardDependencyAsSatisfied(t *testing.T) {
	t.Parallel()
	b := cand("core", "b", map[Identifier]string{NewIdentifier("core", "base"): ""})
	live := map[Identifier]bool{NewIdentifier("core", "base"): true}

	order, err := Resolve(candSet(b), live)
	if err != nil {
		t.Fatalf("Resolve should not fail on a dependency satisfied by an already-live instance: %v", err)
	}
	if len(order) != 1 || order[0].Identifier() != b.Identifier() {
		t.Errorf("expected b alone in the order, got %v", idsOf(order))
	}
}

func TestResolveCycleDetected(t *testing.T) {
	t.Parallel()
	a := &Candidate{Manifest: &Manifest{Group: "core", Name: "a"}}
	b := &Candidate{Manifest: &Manifest{Group: "core", Name: "b"}}
	a.Manifest.Dependencies = map[Identifier]string{b.Identifier(): ""}
	b.Manifest.Dependencies = map[Identifier]string{a.Identifier(): ""}

	_, err := Resolve(candSet(a, b))
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	resErr, ok := err.(*ResolutionError)
	if !ok {
		t.Fatalf("expected *ResolutionError, got %T", err)
	}
	if !resErr.IsCycle {
		t.Error("expected IsCycle to be true")
	}
}

func TestResolveCoreOrdersBeforeExternal(t *testing.T) {
	t.Parallel()
	core := &Candidate{Manifest: &Manifest{Group: "core", Name: "engine"}, IsCore: true}
	external := &Candidate{Manifest: &Manifest{Group: "ext", Name: "widget"}}

	order, err := Resolve(candSet(external, core))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ids := idsOf(order)
	if indexOf(ids, core.Identifier()) > indexOf(ids, external.Identifier()) {
		t.Errorf("core units must order before external units, got %v", ids)
	}
}

func TestResolveIsDeterministicAcrossRuns(t *testing.T) {
	t.Parallel()
	a := cand("core", "a", nil)
	b := cand("core", "b", nil)
	c := cand("core", "c", nil)

	first, err := Resolve(candSet(c, b, a))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Resolve(candSet(c, b, a))
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got, want := idsOf(again), idsOf(first); !idsEqual(got, want) {
			t.Fatalf("run %d: got %v, want %v (resolution must be deterministic)", i, got, want)
		}
	}
}

func idsEqual(a, b []Identifier) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestValidateVersionsDropsUnsatisfiedServerVersion(t *testing.T) {
	t.Parallel()
	c := &Candidate{Manifest: &Manifest{Group: "core", Name: "a", ServerVersion: ">=2.0.0"}}
	host := Semver{Major: 1, Minor: 0, Patch: 0}

	valid, failures := ValidateVersions(candSet(c), host, nil)
	if len(valid) != 0 {
		t.Error("expected the candidate to be dropped")
	}
	if len(failures) != 1 {
		t.Fatalf("expected one failure, got %d", len(failures))
	}
}

func TestValidateVersionsAcceptsSatisfiedDependency(t *testing.T) {
	t.Parallel()
	a := &Candidate{Manifest: &Manifest{Group: "core", Name: "a", Version: "1.5.0"}}
	b := cand("core", "b", map[Identifier]string{a.Identifier(): ">=1.0.0"})

	valid, failures := ValidateVersions(candSet(a, b), Semver{}, nil)
	if len(failures) != 0 {
		t.Fatalf("expected no failures, got %v", failures)
	}
	if len(valid) != 2 {
		t.Fatalf("expected both candidates to survive, got %d", len(valid))
	}
}

func TestValidateVersionsUsesExtraSourceForAlreadyLoaded(t *testing.T) {
	t.Parallel()
	depID := NewIdentifier("core", "dep")
	b := cand("core", "b", map[Identifier]string{depID: ">=1.0.0"})

	extra := fakeVersionSource{depID: {Major: 1, Minor: 2, Patch: 0}}
	valid, failures := ValidateVersions(candSet(b), Semver{}, extra)
	if len(failures) != 0 {
		t.Fatalf("expected the already-loaded dependency to satisfy validation, got %v", failures)
	}
	if len(valid) != 1 {
		t.Fatal("expected b to survive")
	}
}

type fakeVersionSource map[Identifier]Semver

func (f fakeVersionSource) lookupVersion(id Identifier) (Semver, bool) {
	v, ok := f[id]
	return v, ok
}
