package plugin

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// LifecycleEngine drives a single Instance through setup, start, and
// shutdown, gating each transition on the states of its declared hard
// dependencies and isolating hook faults so they never bubble to peers.
type LifecycleEngine struct {
	logger  Logger
	metrics Metrics
}

// NewLifecycleEngine creates an engine. A nil logger defaults to slog; a
// nil metrics is a no-op.
func NewLifecycleEngine(logger Logger, metrics Metrics) *LifecycleEngine {
	if logger == nil {
		logger = NewSlogLogger(nil)
	}
	return &LifecycleEngine{logger: logger, metrics: metricsOrNoop(metrics)}
}

// Setup drives inst from None to Setup. It gates on every hard dependency
// being present in live and in state Setup; on gate failure or hook
// failure, inst ends Disabled (stopped first) and the error is returned.
func (e *LifecycleEngine) Setup(ctx context.Context, inst *Instance, live map[Identifier]*Instance) error {
	corrID := uuid.NewString()
	if err := e.gate("setup", inst, live, StateSetup); err != nil {
		e.logger.Error("dependency gate failed", "plugin", inst.Identifier(), "stage", "setup", "correlation_id", corrID, "error", err)
		e.fail(ctx, inst, "setup", "gate")
		return err
	}

	inst.setState(StateSetup)
	if err := runHook(ctx, inst.hook.Setup); err != nil {
		e.logger.Error("setup hook failed", "plugin", inst.Identifier(), "correlation_id", corrID, "error", err)
		e.fail(ctx, inst, "setup", "hook")
		return err
	}

	e.logger.Debug("setup complete", "plugin", inst.Identifier(), "correlation_id", corrID)
	e.metrics.LifecycleTransition(inst.Identifier(), "setup", "ok")
	return nil
}

// Start drives inst from Setup to Enabled via Start. It gates on every hard
// dependency being Enabled (the gating stage name is "start", per spec.md
// §4.4's "current stage Start" wording). On gate or hook failure, inst ends
// Disabled.
func (e *LifecycleEngine) Start(ctx context.Context, inst *Instance, live map[Identifier]*Instance) error {
	corrID := uuid.NewString()
	if err := e.gate("start", inst, live, StateEnabled); err != nil {
		e.logger.Error("dependency gate failed", "plugin", inst.Identifier(), "stage", "start", "correlation_id", corrID, "error", err)
		e.fail(ctx, inst, "start", "gate")
		return err
	}

	inst.setState(StateStart)
	if err := runHook(ctx, inst.hook.Start); err != nil {
		e.logger.Error("start hook failed", "plugin", inst.Identifier(), "correlation_id", corrID, "error", err)
		e.fail(ctx, inst, "start", "hook")
		return err
	}

	inst.setState(StateEnabled)
	e.logger.Debug("start complete", "plugin", inst.Identifier(), "correlation_id", corrID)
	e.metrics.LifecycleTransition(inst.Identifier(), "start", "ok")
	return nil
}

// Stop runs the stop hook and always leaves inst in Disabled. Stop hook
// exceptions are caught and logged but never propagated; Stop is never
// cancelled by ctx (it must run to completion so resources are released),
// so it runs against a context stripped of cancellation but carrying the
// same values.
func (e *LifecycleEngine) Stop(ctx context.Context, inst *Instance) {
	stopCtx := context.WithoutCancel(ctx)
	if err := runHook(stopCtx, inst.hook.Stop); err != nil {
		e.logger.Warn("stop hook failed", "plugin", inst.Identifier(), "error", err)
	}
	inst.setState(StateDisabled)
	e.metrics.LifecycleTransition(inst.Identifier(), "stop", "disabled")
}

// fail runs stop and marks inst Disabled after a gate or hook failure.
func (e *LifecycleEngine) fail(ctx context.Context, inst *Instance, stage, cause string) {
	e.Stop(ctx, inst)
	e.metrics.LifecycleTransition(inst.Identifier(), stage, "failed:"+cause)
}

// gate checks that every hard dependency of inst is present in live and in
// the required state.
func (e *LifecycleEngine) gate(stage string, inst *Instance, live map[Identifier]*Instance, required State) error {
	deps := make([]Identifier, 0, len(inst.Manifest.Dependencies))
	for id := range inst.Manifest.Dependencies {
		deps = append(deps, id)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].String() < deps[j].String() })

	for _, depID := range deps {
		dep, ok := live[depID]
		got := StateNone
		if ok {
			got = dep.State()
		}
		if !ok || got != required {
			return &gateError{stage: stage, dependency: depID, want: required, got: got}
		}
	}
	return nil
}

// runHook executes fn in a goroutine raced against ctx's cancellation. If
// ctx is cancelled first, runHook returns ctx.Err() immediately — the
// engine treats this as a failed stage — while the hook goroutine is
// expected to observe cancellation itself and return. Grounded on the
// errgroup.WithContext race used to drive plugin lifecycle hooks in the
// pipe-cd plugin SDK (see SPEC_FULL.md's domain-stack notes).
func runHook(ctx context.Context, fn func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	result := make(chan error, 1)
	g.Go(func() error {
		result <- fn(gctx)
		return nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-result:
		return err
	}
}
