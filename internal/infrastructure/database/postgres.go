package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/fleetsim/fleetsim-core/internal/infrastructure/config"
)

// Connection constants.
const (
	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// connMaxIdleTime is how long idle connections are kept open.
	connMaxIdleTime = 30 * time.Minute

	// listenerMinReconnect is the minimum delay between listener reconnect attempts.
	listenerMinReconnect = 10 * time.Second

	// listenerMaxReconnect is the maximum delay between listener reconnect attempts.
	listenerMaxReconnect = time.Minute
)

// DB wraps a sql.DB connection to the PostgreSQL reference store.
// It provides health checks and proper lifecycle management.
type DB struct {
	*sql.DB
	dsn string
}

// Open creates a new connection pool to the reference store.
//
// It performs the following setup:
//  1. Opens the pool with the lib/pq driver
//  2. Applies pool limits from config
//  3. Verifies the connection with a ping
//
// Parameters:
//   - ctx: Context for the connectivity check
//   - cfg: Store configuration (DSN, pool limits)
//
// Returns:
//   - *DB: Connected database wrapper
//   - error: If connection or configuration fails
func Open(ctx context.Context, cfg config.StoreConfig) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening store connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxIdleTime(connMaxIdleTime)

	// Verify connectivity
	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging store: %w", err)
	}

	return &DB{DB: db, dsn: cfg.DSN}, nil
}

// HealthCheck verifies the store connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (db *DB) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("store health check: %w", err)
	}
	return nil
}

// NewListener creates a LISTEN/NOTIFY listener on the given channel.
//
// The listener maintains its own dedicated connection and reconnects with
// backoff if the connection drops; dropped notifications during a reconnect
// window surface as a nil event on the Notify channel, which consumers treat
// as "possibly stale".
//
// Parameters:
//   - channel: The NOTIFY channel to LISTEN on
//   - onEvent: Optional callback for listener lifecycle events (may be nil)
//
// Returns:
//   - *pq.Listener: Listener already subscribed to the channel
//   - error: If the initial LISTEN fails
func (db *DB) NewListener(channel string, onEvent pq.EventCallbackType) (*pq.Listener, error) {
	listener := pq.NewListener(db.dsn, listenerMinReconnect, listenerMaxReconnect, onEvent)
	if err := listener.Listen(channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listening on %q: %w", channel, err)
	}
	return listener, nil
}

// Stats returns connection pool statistics for the ops API.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}
