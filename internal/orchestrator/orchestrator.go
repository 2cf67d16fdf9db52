package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fleetsim/fleetsim-core/internal/refcache"
	"github.com/fleetsim/fleetsim-core/internal/telemetry"
)

// Cache provides reference snapshots and on-demand refreshes.
type Cache interface {
	Snapshot() *refcache.Snapshot
	Refresh(ctx context.Context) error
}

// Generator synthesizes a reading batch from a snapshot.
type Generator interface {
	Generate(snap *refcache.Snapshot) ([]telemetry.Reading, error)
}

// Enqueuer accepts serialized batches for delivery.
type Enqueuer interface {
	Enqueue(payload []byte) error
}

// Archiver persists individual readings to the time-series archive.
// It is optional; a nil Archiver disables archiving.
type Archiver interface {
	WriteReading(deviceID string, value float64, uom string, ts time.Time)
}

// Logger defines the logging interface used by the Orchestrator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Orchestrator drives the periodic synthesis cycle.
//
// Each tick reads the current reference snapshot, generates a batch, and
// hands the serialized batch to the delivery pipeline. Ticks never wait on
// delivery; a slow broker stretches the pipeline queue, not the cadence.
type Orchestrator struct {
	cache     Cache
	generator Generator
	pipeline  Enqueuer
	archiver  Archiver
	interval  time.Duration
	logger    Logger
}

// New creates an Orchestrator.
//
// Parameters:
//   - cache: Reference data source, refreshed once before the first tick
//   - generator: Reading synthesizer
//   - pipeline: Delivery intake
//   - archiver: Optional readings archive, nil to disable
//   - interval: Tick cadence (minimum 1 second)
//
// Returns:
//   - *Orchestrator: The orchestrator, driven by Run
func New(cache Cache, generator Generator, pipeline Enqueuer, archiver Archiver, interval time.Duration) *Orchestrator {
	if interval < time.Second {
		interval = time.Second
	}
	return &Orchestrator{
		cache:     cache,
		generator: generator,
		pipeline:  pipeline,
		archiver:  archiver,
		interval:  interval,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the orchestrator.
func (o *Orchestrator) SetLogger(logger Logger) {
	o.logger = logger
}

// Run performs the initial reference load and then ticks until ctx is
// cancelled.
//
// The initial refresh is synchronous and fatal: without reference data
// there is nothing to synthesize, so a failed first load aborts startup.
// After that, per-tick failures and panics are contained at the tick
// boundary; the cycle itself never dies.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.cache.Refresh(ctx); err != nil {
		return fmt.Errorf("initial reference load failed: %w", err)
	}

	o.logger.Info("synthesis cycle starting", "interval", o.interval)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("synthesis cycle stopping")
			return nil
		case <-ticker.C:
			o.tick()
		}
	}
}

// tick generates and enqueues one batch. Failures are logged, never
// propagated; a panic in generation is recovered here so one bad tick
// cannot stop the cycle.
func (o *Orchestrator) tick() {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("tick panicked", "panic", r)
		}
	}()

	snap := o.cache.Snapshot()

	readings, err := o.generator.Generate(snap)
	if err != nil {
		if errors.Is(err, telemetry.ErrNoData) {
			o.logger.Debug("no eligible devices, skipping publish")
			return
		}
		o.logger.Error("reading generation failed", "error", err)
		return
	}

	payload, err := json.Marshal(readings)
	if err != nil {
		o.logger.Error("batch serialization failed", "error", err)
		return
	}

	if err := o.pipeline.Enqueue(payload); err != nil {
		o.logger.Error("batch enqueue failed", "error", err)
		return
	}
	o.logger.Debug("batch enqueued", "readings", len(readings))

	if o.archiver != nil {
		for _, r := range readings {
			o.archiver.WriteReading(r.DeviceID, r.RawValue, r.UOM, r.At)
		}
	}
}
