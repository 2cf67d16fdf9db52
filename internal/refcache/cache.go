package refcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fleetsim/fleetsim-core/internal/ident"
)

// Logger defines the logging interface used by the cache.
// This allows different logging implementations to be used.
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

// Store is the read interface to the backing reference store.
//
// Both fetches return complete collections; there is no delta protocol.
// Identifier resolution happens at decode time, so returned records may
// carry ident.Invalid keys, which the cache filters out.
type Store interface {
	// FetchSites returns every (site, devices) pair in the store.
	FetchSites(ctx context.Context) ([]Site, error)

	// FetchDeviceTypes returns every device type in the store.
	FetchDeviceTypes(ctx context.Context) ([]DeviceType, error)
}

// Cache mirrors remote reference configuration in memory.
//
// Readers call Snapshot and get an immutable pair of lookup maps; refreshes
// build brand-new maps and swap them in atomically (copy-on-write), so a
// reader holding an old snapshot keeps using it safely. Refreshes are
// serialized with each other but never block readers.
//
// Refresh triggers:
//   - a poll ticker (Run)
//   - invalidation signals posted via Invalidate (Run consumes them)
//   - one mandatory synchronous Refresh before the orchestrator's first tick
//
// A failed refresh keeps the existing snapshot, logs, and waits for the
// next trigger (fail-soft).
type Cache struct {
	store        Store
	pollInterval time.Duration
	logger       Logger

	// snapMu guards the snapshot pointer only; the pointed-to value is
	// immutable. Readers take the read lock for the pointer load.
	snapMu sync.RWMutex
	snap   *Snapshot

	// refreshMu serializes fetch-and-swap sequences.
	refreshMu sync.Mutex

	// invalidate carries coalesced refresh requests to the Run loop.
	// Capacity 1: a signal posted while one is pending is redundant.
	invalidate chan struct{}
}

// New creates a Cache over the given store.
//
// The cache starts with an empty snapshot; callers must Refresh once before
// relying on its contents.
//
// Parameters:
//   - store: Source of reference collections
//   - pollInterval: How often Run refreshes regardless of invalidations
func New(store Store, pollInterval time.Duration) *Cache {
	return &Cache{
		store:        store,
		pollInterval: pollInterval,
		logger:       noopLogger{},
		snap:         emptySnapshot(),
		invalidate:   make(chan struct{}, 1),
	}
}

// SetLogger sets the logger for the cache.
func (c *Cache) SetLogger(logger Logger) {
	c.logger = logger
}

// Snapshot returns the latest stable snapshot.
//
// Non-blocking with respect to concurrent refreshes: at worst it waits for
// the pointer swap itself. The returned snapshot must not be mutated.
func (c *Cache) Snapshot() *Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// Invalidate schedules an immediate refresh on the Run loop.
//
// Never blocks: if a refresh request is already pending the signal coalesces
// into it (the trailing refresh observes the store state both signals care
// about).
func (c *Cache) Invalidate() {
	select {
	case c.invalidate <- struct{}{}:
	default:
	}
}

// Refresh fetches both collections, rebuilds the lookup maps, and swaps the
// snapshot.
//
// Concurrent calls are serialized; the trailing call's result wins. On any
// fetch error the previous snapshot remains in place and the error is
// returned wrapped in ErrFetchFailed.
//
// Parameters:
//   - ctx: Context for the store fetches
//
// Returns:
//   - error: nil on success; ErrFetchFailed-wrapped on store failure
func (c *Cache) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	sites, err := c.store.FetchSites(ctx)
	if err != nil {
		return fmt.Errorf("%w: sites: %w", ErrFetchFailed, err)
	}

	types, err := c.store.FetchDeviceTypes(ctx)
	if err != nil {
		return fmt.Errorf("%w: device types: %w", ErrFetchFailed, err)
	}

	snap := c.buildSnapshot(sites, types)

	c.snapMu.Lock()
	c.snap = snap
	c.snapMu.Unlock()

	c.logger.Info("reference snapshot swapped",
		"sites", len(snap.Sites),
		"devices", snap.DeviceCount(),
		"device_types", len(snap.DeviceTypes),
	)
	return nil
}

// buildSnapshot constructs fresh lookup maps from fetched collections.
//
// Records keyed by an unresolvable identifier are dropped here rather than
// propagated: a malformed store document costs one record, not the refresh.
func (c *Cache) buildSnapshot(sites []Site, types []DeviceType) *Snapshot {
	siteMap := make(map[ident.ID]Site, len(sites))
	for _, site := range sites {
		if !site.ID.Valid() {
			c.logger.Warn("dropping site with unresolvable identifier",
				"devices", len(site.Devices),
			)
			continue
		}
		siteMap[site.ID] = site
	}

	typeMap := make(map[ident.ID]DeviceType, len(types))
	for _, dt := range types {
		if !dt.ID.Valid() {
			c.logger.Warn("dropping device type with unresolvable identifier",
				"uom", dt.UOM,
			)
			continue
		}
		typeMap[dt.ID] = dt
	}

	return &Snapshot{
		Sites:       siteMap,
		DeviceTypes: typeMap,
		RefreshedAt: time.Now().UTC(),
	}
}

// Run drives scheduled refreshes until ctx is cancelled.
//
// One dedicated loop performs all triggered refreshes serially: the poll
// ticker and Invalidate signals both land here, so a notification storm
// collapses into at most one pending refresh. Errors are logged and the
// loop continues; Run never returns an error.
//
// The initial synchronous population is NOT performed here; the orchestrator
// owns that so startup failures can be fatal.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("cache refresh loop stopped")
			return
		case <-ticker.C:
			c.refreshLogged(ctx, "poll")
		case <-c.invalidate:
			c.refreshLogged(ctx, "invalidation")
		}
	}
}

// refreshLogged runs one refresh and logs failures (fail-soft).
func (c *Cache) refreshLogged(ctx context.Context, trigger string) {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Error("cache refresh failed, keeping stale snapshot",
			"trigger", trigger,
			"error", err,
		)
	}
}
