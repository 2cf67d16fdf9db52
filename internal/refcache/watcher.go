package refcache

import (
	"context"
	"time"

	"github.com/lib/pq"
)

// watcherPingInterval is how often the watcher pings an idle listener to
// detect a silently dead connection.
const watcherPingInterval = 90 * time.Second

// Listener is the subset of pq.Listener the watcher needs.
// Narrowed to an interface so tests can drive the watcher without Postgres.
type Listener interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// Invalidator receives staleness signals. Satisfied by *Cache.
type Invalidator interface {
	Invalidate()
}

// Watcher turns device-type change notifications into cache invalidations.
//
// The store NOTIFYs on inserts to the device_types collection. The payload
// is never trusted: every event, including the nil event pq emits after a
// listener reconnect (notifications may have been missed), just marks the
// cache as possibly stale. The cache's own refresh loop does the actual
// store read, so the watcher never blocks on a refresh.
type Watcher struct {
	listener Listener
	cache    Invalidator
	logger   Logger
}

// NewWatcher creates a Watcher feeding the given cache.
func NewWatcher(listener Listener, cache Invalidator) *Watcher {
	return &Watcher{
		listener: listener,
		cache:    cache,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the watcher.
func (w *Watcher) SetLogger(logger Logger) {
	w.logger = logger
}

// Run consumes notifications until ctx is cancelled, then closes the
// listener. Close failures are logged, never propagated.
func (w *Watcher) Run(ctx context.Context) {
	defer func() {
		if err := w.listener.Close(); err != nil {
			w.logger.Warn("closing change listener", "error", err)
		}
	}()

	notifications := w.listener.NotificationChannel()
	ping := time.NewTicker(watcherPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("change watcher stopped")
			return

		case n := <-notifications:
			if n == nil {
				// Listener reconnected; notifications may have been lost.
				w.logger.Warn("change listener reconnected, forcing refresh")
			} else {
				w.logger.Debug("device type change notification", "channel", n.Channel)
			}
			w.cache.Invalidate()

		case <-ping.C:
			if err := w.listener.Ping(); err != nil {
				w.logger.Warn("change listener ping failed", "error", err)
			}
		}
	}
}
