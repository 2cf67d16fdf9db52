package telemetry

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/fleetsim/fleetsim-core/internal/ident"
	"github.com/fleetsim/fleetsim-core/internal/refcache"
)

// ErrNoData is returned when zero devices produced a reading.
//
// It is distinct from an empty slice on purpose: the caller skips publishing
// entirely instead of sending an empty payload.
var ErrNoData = errors.New("telemetry: no devices resolved, nothing to publish")

// Logger defines the logging interface used by the Generator.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Generator synthesizes reading batches from a reference snapshot.
//
// Generate performs no I/O and only reads the snapshot, so it is safe to
// call from overlapping ticks. Sites are processed in parallel; result
// ordering carries no meaning and is not reproducible.
type Generator struct {
	logger Logger

	// now is the clock, swappable in tests.
	now func() time.Time
}

// NewGenerator creates a Generator.
func NewGenerator() *Generator {
	return &Generator{
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the generator.
func (g *Generator) SetLogger(logger Logger) {
	g.logger = logger
}

// Generate produces one reading per eligible device in the snapshot.
//
// Eligibility rules, applied per device:
//   - soft-deleted devices never produce readings
//   - a device whose type is unresolvable (invalid or missing in the
//     device-type map) is skipped with a log, never failing the batch
//   - a device type with an inverted range (MinVal > MaxVal) is treated as
//     an empty range and skipped
//
// Eligible devices sample uniform(MinVal, MaxVal), formatted to exactly two
// decimal digits, with the unit of measure copied verbatim.
//
// Parameters:
//   - snap: An immutable reference snapshot
//
// Returns:
//   - []Reading: The unordered batch
//   - error: ErrNoData when zero devices resolved
func (g *Generator) Generate(snap *refcache.Snapshot) ([]Reading, error) {
	var (
		mu       sync.Mutex
		readings []Reading
		wg       sync.WaitGroup
	)

	for _, site := range snap.Sites {
		wg.Add(1)
		go func(site refcache.Site) {
			defer wg.Done()
			batch := g.generateSite(site, snap.DeviceTypes)
			if len(batch) == 0 {
				return
			}
			mu.Lock()
			readings = append(readings, batch...)
			mu.Unlock()
		}(site)
	}
	wg.Wait()

	if len(readings) == 0 {
		return nil, ErrNoData
	}
	return readings, nil
}

// generateSite produces readings for one site's devices.
func (g *Generator) generateSite(site refcache.Site, types map[ident.ID]refcache.DeviceType) []Reading {
	readings := make([]Reading, 0, len(site.Devices))
	for _, dev := range site.Devices {
		if dev.Deleted {
			g.logger.Debug("skipping soft-deleted device", "device", dev.ID)
			continue
		}

		dt, ok := types[dev.TypeID]
		if !dev.TypeID.Valid() || !ok {
			g.logger.Debug("skipping device with unresolvable type",
				"device", dev.ID,
				"type", dev.TypeID,
			)
			continue
		}

		if dt.MinVal > dt.MaxVal {
			g.logger.Warn("skipping device type with inverted range",
				"type", dt.ID,
				"min", dt.MinVal,
				"max", dt.MaxVal,
			)
			continue
		}

		value := dt.MinVal + rand.Float64()*(dt.MaxVal-dt.MinVal)
		now := g.now().UTC()

		readings = append(readings, Reading{
			DeviceID:  dev.ID.String(),
			Value:     formatValue(value),
			UOM:       dt.UOM,
			Timestamp: now.Format(TimestampLayout),
			RawValue:  value,
			At:        now,
		})
	}
	return readings
}
