package plugin

import (
	"context"
	"log/slog"
)

// Logger is the structured log sink consumed by the lifecycle engine and
// service façade. The default implementation wraps log/slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// slogLogger adapts *slog.Logger to Logger.
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l as a Logger. A nil l defaults to slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

// scopedLogger returns a Logger carrying a "plugin" field with the
// plugin's identifier and a "source" context field of the plugin's name
// plus the given suffix ("name/suffix"). Only the slog adapter is scoped;
// any other Logger is returned unchanged.
func scopedLogger(base Logger, id Identifier, suffix string) Logger {
	if sl, ok := base.(*slogLogger); ok {
		return &slogLogger{l: sl.l.With("plugin", id.String(), "source", id.Name+"/"+suffix)}
	}
	return base
}

// InstanceFactory constructs a plugin instance from the manifest's Main
// type descriptor. It is the consumed "service locator" collaborator from
// spec.md §6.
type InstanceFactory interface {
	New(ctx context.Context, descriptor string) (Plugin, error)
}

// InstanceFactoryFunc adapts a function to InstanceFactory.
type InstanceFactoryFunc func(ctx context.Context, descriptor string) (Plugin, error)

func (f InstanceFactoryFunc) New(ctx context.Context, descriptor string) (Plugin, error) {
	return f(ctx, descriptor)
}

// Plugin is the hook contract a constructed plugin instance implements.
// Setup/Start/Stop correspond to the setup/start/stop hooks of spec.md §4.4.
type Plugin interface {
	Setup(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Aware is optionally implemented by a Plugin so the engine can inject its
// manifest, identifier, and a scoped logger after construction (spec.md §6:
// "the engine must inject the manifest, identifier, and a logger scoped to
// the plugin after construction").
type Aware interface {
	SetManifest(*Manifest)
	SetIdentifier(Identifier)
	SetLogger(Logger)
}

// Base provides no-op defaults for Aware and the hook contract. Embed this
// in concrete plugin implementations to only override what's needed,
// mirroring the teacher's BaseEnginePlugin/BaseNativePlugin embeddable-
// defaults idiom.
type Base struct {
	Manifest   *Manifest
	Identifier Identifier
	Logger     Logger
}

func (b *Base) SetManifest(m *Manifest)     { b.Manifest = m }
func (b *Base) SetIdentifier(id Identifier) { b.Identifier = id }
func (b *Base) SetLogger(l Logger)          { b.Logger = l }

func (b *Base) Setup(_ context.Context) error { return nil }
func (b *Base) Start(_ context.Context) error { return nil }
func (b *Base) Stop(_ context.Context) error  { return nil }
