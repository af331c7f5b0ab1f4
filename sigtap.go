// Package sigtap augments a running program with automatic structured
// logging. It intercepts built-in NOTICE, WARNING, and FATAL signal emission
// and redirects each occurrence, unmodified in content, through a structured
// logging sink, and it watches a reactive key/value store for changes,
// logging one event per observed field transition.
//
// Interception is installed at explicit call time on existing dispatch
// slots; call sites raising signals are never rewritten. See core/hook for
// the interception mechanism and core/watch for the snapshot-diff watcher.
package sigtap

import (
	"context"
	"fmt"

	"github.com/fennwick/sigtap/config"
	"github.com/fennwick/sigtap/core/hook"
	"github.com/fennwick/sigtap/core/signal"
	"github.com/fennwick/sigtap/core/watch"
	"github.com/fennwick/sigtap/internal/observability"
	"github.com/fennwick/sigtap/internal/sink"
	"github.com/fennwick/sigtap/lib/telemetry"
)

// Tap bundles the components wired by Bootstrap: logger, sink, hook
// registry, and telemetry shutdown.
type Tap struct {
	registry          *hook.Registry
	sink              signal.Sink
	hooks             []*hook.Hook
	logger            *observability.ZapLogger
	shutdownTelemetry func(context.Context) error
}

// Bootstrap assembles the default sigtap stack from settings: a zap-backed
// structured logger installed as the process logger, interception for each
// enabled signal kind, and OTLP metric export when an endpoint is configured.
// Hook registrations are process-wide, so a second Bootstrap reuses the
// existing interceptors rather than stacking new ones.
func Bootstrap(ctx context.Context, cfg config.Settings) (*Tap, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := observability.NewZapAt(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	observability.SetLogger(logger)

	t := &Tap{
		registry: hook.NewRegistry(),
		sink:     sink.NewLoggerSink(logger),
		logger:   logger,
	}

	enabled := map[signal.Kind]bool{
		signal.KindNotice:  cfg.Hooks.Notice,
		signal.KindWarning: cfg.Hooks.Warning,
		signal.KindFatal:   cfg.Hooks.Fatal,
	}
	for _, kind := range []signal.Kind{signal.KindNotice, signal.KindWarning, signal.KindFatal} {
		if !enabled[kind] {
			continue
		}
		h, err := t.registry.Install(kind, t.sink)
		if err != nil {
			t.removeHooks()
			return nil, fmt.Errorf("install %s hook: %w", kind, err)
		}
		t.hooks = append(t.hooks, h)
	}

	// Telemetry starts a periodic reader goroutine, so it comes up only after
	// every fallible step above; its own failure path must unwind the hooks.
	providers, shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		t.removeHooks()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	observability.SetMetrics(observability.NewOtelMetrics(
		providers.MeterProvider.Meter("github.com/fennwick/sigtap")))
	t.shutdownTelemetry = shutdown
	return t, nil
}

// Sink returns the structured logging sink signal events flow into.
func (t *Tap) Sink() signal.Sink {
	return t.sink
}

// Installed reports whether the tap holds an active registration for kind.
func (t *Tap) Installed(kind signal.Kind) bool {
	return t.registry.Installed(kind)
}

// Watch starts a reactive watch on store, emitting field transitions through
// the tap's sink.
func (t *Tap) Watch(store watch.Store) (*watch.Session, error) {
	return watch.Start(store, t.sink)
}

// Shutdown removes installed hooks, flushes telemetry, and syncs the logger.
func (t *Tap) Shutdown(ctx context.Context) error {
	t.removeHooks()
	var err error
	if t.shutdownTelemetry != nil {
		err = t.shutdownTelemetry(ctx)
	}
	// stderr sync failures are expected on some platforms
	_ = t.logger.Sync()
	return err
}

func (t *Tap) removeHooks() {
	for _, h := range t.hooks {
		h.Remove()
	}
	t.hooks = nil
}
