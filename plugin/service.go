package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ServiceState is the coarse lifecycle of the service façade itself, as
// distinct from any individual Instance's State.
type ServiceState int

const (
	ServiceCreated ServiceState = iota
	ServiceSetup
	ServiceRunning
	ServiceStopped
)

// Service is the single entry point a host application uses to load,
// resolve, and drive a set of plugin units through their lifecycle. It
// owns one mutex guarding both its own state and the live instance map —
// deliberately coarse-grained rather than per-plugin locking, matching the
// teacher's single-manager-mutex idiom; this domain's operations are rare
// (host boot, admin reload) and never on a request hot path.
type Service struct {
	hostVersion Semver
	factory     InstanceFactory
	logger      Logger
	metrics     Metrics
	engine      *LifecycleEngine

	mu         sync.Mutex
	state      ServiceState
	registry   *CandidateRegistry
	live       map[Identifier]*Instance
	loadOrder  []Identifier // order in which instances entered the live set, for reverse-order shutdown
}

// NewService constructs a Service. factory is required; logger and metrics
// default to slog and no-op respectively.
func NewService(hostVersion Semver, factory InstanceFactory, logger Logger, metrics Metrics) *Service {
	if logger == nil {
		logger = NewSlogLogger(nil)
	}
	m := metricsOrNoop(metrics)
	return &Service{
		hostVersion: hostVersion,
		factory:     factory,
		logger:      logger,
		metrics:     m,
		engine:      NewLifecycleEngine(logger, m),
		registry:    NewCandidateRegistry(),
		live:        make(map[Identifier]*Instance),
	}
}

// Register adds a candidate unit to the pending registry. Newly registered
// units only take effect on a later Setup call, and Setup is accepted only
// before Start; units registered after Start are never set up.
func (s *Service) Register(c *Candidate) error {
	return s.registry.Register(c)
}

// Setup drains the candidate registry, validates versions against the host
// and already-live instances, resolves a load order, instantiates each
// surviving candidate, and runs the gated setup pass over that order.
// Candidates that fail version validation, instantiation, gating, or the
// setup hook are skipped. Setup fails if it is called out of turn, and
// returns the *ResolutionError when no load order can be produced (a
// missing hard dependency or loadBefore target, or a cycle); in that case
// no candidate of this call is instantiated.
func (s *Service) Setup(ctx context.Context) error {
	s.mu.Lock()
	if s.state != ServiceCreated && s.state != ServiceSetup {
		s.mu.Unlock()
		return fmt.Errorf("plugin: Setup called in state %d: %w", s.state, ErrInvalidState)
	}
	s.state = ServiceSetup
	candidates := s.registry.Drain()
	live := s.live
	s.mu.Unlock()

	candidates, versionFailures := ValidateVersions(candidates, s.hostVersion, liveVersionSource(live))
	for _, f := range versionFailures {
		s.logger.Warn("candidate dropped by version validation", "plugin", f.ID, "reason", f.Reason)
	}

	// Skip candidates already live (e.g. a second Setup call after more
	// units were registered) and those disabled by default.
	s.mu.Lock()
	for id := range live {
		delete(candidates, id)
	}
	s.mu.Unlock()
	for id, c := range candidates {
		if c.Manifest.DisabledByDefault {
			delete(candidates, id)
		}
	}

	s.mu.Lock()
	liveIDs := make(map[Identifier]bool, len(s.live))
	for id := range s.live {
		liveIDs[id] = true
	}
	s.mu.Unlock()

	order, err := Resolve(candidates, liveIDs)
	if err != nil {
		s.metrics.ResolutionOutcome("failed", len(candidates))
		return err
	}
	s.metrics.ResolutionOutcome("ok", len(order))

	for _, c := range order {
		inst, err := s.instantiate(ctx, c)
		if err != nil {
			s.logger.Error("instantiation failed", "plugin", c.Identifier(), "error", err)
			continue
		}

		s.mu.Lock()
		s.live[inst.Identifier()] = inst
		s.loadOrder = append(s.loadOrder, inst.Identifier())
		snapshot := s.liveSnapshotLocked()
		s.mu.Unlock()

		if err := s.engine.Setup(ctx, inst, snapshot); err != nil {
			s.mu.Lock()
			delete(s.live, inst.Identifier())
			s.removeFromLoadOrderLocked(inst.Identifier())
			s.mu.Unlock()
		}
	}

	s.mu.Lock()
	s.metrics.LiveInstanceCount(len(s.live))
	s.mu.Unlock()
	return nil
}

// Start runs the gated start pass over every instance currently in Setup
// state, in cached load order. Instances that fail gating or the start
// hook are stopped and removed from the live set.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != ServiceSetup && s.state != ServiceRunning {
		s.mu.Unlock()
		return fmt.Errorf("plugin: Start called in state %d: %w", s.state, ErrInvalidState)
	}
	s.state = ServiceRunning
	order := append([]Identifier(nil), s.loadOrder...)
	s.mu.Unlock()

	for _, id := range order {
		s.mu.Lock()
		inst, ok := s.live[id]
		if !ok || inst.State() != StateSetup {
			s.mu.Unlock()
			continue
		}
		snapshot := s.liveSnapshotLocked()
		s.mu.Unlock()

		if err := s.engine.Start(ctx, inst, snapshot); err != nil {
			s.mu.Lock()
			delete(s.live, id)
			s.removeFromLoadOrderLocked(id)
			s.mu.Unlock()
		}
	}

	s.mu.Lock()
	s.metrics.LiveInstanceCount(len(s.live))
	s.mu.Unlock()
	return nil
}

// Stop shuts down every live instance in strict reverse load order (the
// order in which instances entered the live set: each Setup call appends
// its resolved order, and Load appends the unit it adds), so that no
// instance is stopped before the units that depend on it.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	s.state = ServiceStopped
	order := append([]Identifier(nil), s.loadOrder...)
	s.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		s.mu.Lock()
		inst, ok := s.live[id]
		s.mu.Unlock()
		if !ok {
			continue
		}
		s.engine.Stop(ctx, inst)
		s.mu.Lock()
		delete(s.live, id)
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.loadOrder = nil
	s.metrics.LiveInstanceCount(len(s.live))
	s.mu.Unlock()
}

// Unload stops and removes a single live instance. It refuses when any
// other enabled instance hard-depends on id, rather than silently
// orphaning a dependent (the cascade decision recorded in DESIGN.md).
func (s *Service) Unload(ctx context.Context, id Identifier) error {
	s.mu.Lock()
	inst, ok := s.live[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("plugin: %s: %w", id, ErrNotFound)
	}
	for depID, dep := range s.live {
		if depID == id {
			continue
		}
		if !dep.State().IsEnabled() {
			continue
		}
		if _, hard := dep.Manifest.Dependencies[id]; hard {
			s.mu.Unlock()
			return fmt.Errorf("plugin: %s is required by %s: %w", id, depID, ErrHasDependents)
		}
	}
	delete(s.live, id)
	s.removeFromLoadOrderLocked(id)
	s.mu.Unlock()

	s.engine.Stop(ctx, inst)

	s.mu.Lock()
	s.metrics.LiveInstanceCount(len(s.live))
	s.mu.Unlock()
	return nil
}

// Load instantiates a single candidate and drives it directly through the
// gated setup and start hooks against the current live set, without
// invoking Resolve or touching the candidate registry — the single-instance
// path for adding one unit to an already-running service. If id is already
// live, Load is a no-op. A setup or start failure leaves the instance
// stopped and absent from the live set, exactly as the batch Setup/Start
// pipeline does for any other candidate.
func (s *Service) Load(ctx context.Context, c *Candidate) error {
	id := c.Identifier()

	s.mu.Lock()
	if _, exists := s.live[id]; exists {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	inst, err := s.instantiate(ctx, c)
	if err != nil {
		return fmt.Errorf("plugin: loading %s: %w", id, err)
	}

	s.mu.Lock()
	if _, exists := s.live[id]; exists {
		s.mu.Unlock()
		return nil
	}
	s.live[id] = inst
	s.loadOrder = append(s.loadOrder, id)
	snapshot := s.liveSnapshotLocked()
	s.mu.Unlock()

	if err := s.engine.Setup(ctx, inst, snapshot); err != nil {
		s.mu.Lock()
		delete(s.live, id)
		s.removeFromLoadOrderLocked(id)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	snapshot = s.liveSnapshotLocked()
	s.mu.Unlock()

	if err := s.engine.Start(ctx, inst, snapshot); err != nil {
		s.mu.Lock()
		delete(s.live, id)
		s.removeFromLoadOrderLocked(id)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.metrics.LiveInstanceCount(len(s.live))
	s.mu.Unlock()
	return nil
}

// Reload unloads the live instance sharing c's identifier, if any, then
// loads c via Load — the single-instance setup-then-start path, not the
// batch Resolve pipeline. Reloading a unit that isn't currently live is
// equivalent to a fresh Load.
func (s *Service) Reload(ctx context.Context, c *Candidate) error {
	id := c.Identifier()
	if err := s.Unload(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.Load(ctx, c)
}

// GetPlugin returns the live instance for id, or ErrNotFound.
func (s *Service) GetPlugin(id Identifier) (*Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.live[id]
	if !ok {
		return nil, fmt.Errorf("plugin: %s: %w", id, ErrNotFound)
	}
	return inst, nil
}

// TryGetPlugin returns the live instance for id and whether it was found,
// never an error.
func (s *Service) TryGetPlugin(id Identifier) (*Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.live[id]
	return inst, ok
}

// HasPlugin reports whether id is live and, if rng is non-empty, whether
// its declared version satisfies rng.
func (s *Service) HasPlugin(id Identifier, rng VersionRange) bool {
	s.mu.Lock()
	inst, ok := s.live[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	if rng.IsEmpty() {
		return true
	}
	v, has, err := inst.Manifest.ParsedVersion()
	if err != nil || !has {
		return false
	}
	return rng.Satisfies(v)
}

// GetPlugins returns every live instance, sorted by identifier for
// deterministic iteration.
func (s *Service) GetPlugins() []*Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Instance, 0, len(s.live))
	for _, inst := range s.live {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier().String() < out[j].Identifier().String() })
	return out
}

func (s *Service) instantiate(ctx context.Context, c *Candidate) (*Instance, error) {
	if !c.Manifest.HasEntryPoint() {
		return nil, fmt.Errorf("plugin: %s has no entry point", c.Identifier())
	}
	hook, err := s.factory.New(ctx, c.Manifest.Main)
	if err != nil {
		return nil, fmt.Errorf("plugin: constructing %s: %w", c.Identifier(), err)
	}
	id := c.Identifier()
	scoped := scopedLogger(s.logger, id, "instance")
	if aware, ok := hook.(Aware); ok {
		aware.SetManifest(c.Manifest)
		aware.SetIdentifier(id)
		aware.SetLogger(scoped)
	}
	return newInstance(c.Manifest, hook, scoped), nil
}

// liveSnapshotLocked returns a shallow copy of s.live. Callers must hold s.mu.
func (s *Service) liveSnapshotLocked() map[Identifier]*Instance {
	out := make(map[Identifier]*Instance, len(s.live))
	for id, inst := range s.live {
		out[id] = inst
	}
	return out
}

func (s *Service) removeFromLoadOrderLocked(id Identifier) {
	for i, existing := range s.loadOrder {
		if existing == id {
			s.loadOrder = append(s.loadOrder[:i], s.loadOrder[i+1:]...)
			return
		}
	}
}

// liveVersionSource adapts a live instance map to versionSource so
// ValidateVersions can also satisfy a pending candidate's hard dependency
// against an already-loaded instance's version.
type liveVersionSource map[Identifier]*Instance

func (l liveVersionSource) lookupVersion(id Identifier) (Semver, bool) {
	inst, ok := l[id]
	if !ok {
		return Semver{}, false
	}
	v, has, err := inst.Manifest.ParsedVersion()
	if err != nil || !has {
		return Semver{}, false
	}
	return v, true
}
