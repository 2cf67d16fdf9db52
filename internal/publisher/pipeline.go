package publisher

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Transport delivers serialized batches to a downstream broker.
//
// Implementations own the connection lifecycle. Connect must be safe to
// call repeatedly; the pipeline calls it lazily before each delivery
// attempt when the transport reports itself disconnected.
type Transport interface {
	// Publish sends one serialized batch. It returns an error when the
	// broker rejects or the connection fails mid-send.
	Publish(payload []byte) error

	// Connected reports whether the transport currently holds a live
	// connection.
	Connected() bool

	// Connect establishes the connection. Calling it while connected is
	// a no-op.
	Connect() error

	// Close tears down the connection.
	Close() error
}

// Logger defines the logging interface used by the Pipeline.
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

// idleInterval is how long the dispatcher sleeps when the queue is empty.
const idleInterval = 100 * time.Millisecond

// Stats is a point-in-time view of pipeline counters.
type Stats struct {
	Delivered int64 `json:"delivered"`
	Dropped   int64 `json:"dropped"`
	InFlight  int64 `json:"in_flight"`
	Depth     int   `json:"depth"`
}

// Pipeline accepts batches and delivers them to a Transport with bounded
// concurrency and per-batch retry.
//
// The intake queue is unbounded: Enqueue never blocks the caller even when
// the broker is down or slow. A single dispatcher goroutine drains the
// queue in FIFO order, holding at most maxSlots deliveries in flight. Each
// delivery retries up to maxRetries attempts with exponential backoff,
// then drops the batch. A dropped batch is never requeued.
type Pipeline struct {
	transport  Transport
	logger     Logger
	maxRetries int
	backoff    float64

	mu    sync.Mutex
	queue [][]byte

	// slots bounds concurrent deliveries.
	slots chan struct{}

	// connMu serializes reconnect attempts so a dead broker is probed
	// once, not once per in-flight delivery.
	connMu sync.Mutex

	delivered atomic.Int64
	dropped   atomic.Int64
	inFlight  atomic.Int64

	started   atomic.Bool
	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup

	// sleep is the backoff clock, swappable in tests.
	sleep func(time.Duration)
}

// New creates a Pipeline delivering to transport.
//
// Parameters:
//   - transport: The downstream delivery target
//   - maxSlots: Maximum concurrent deliveries (minimum 1)
//   - maxRetries: Attempts per batch before dropping (minimum 1)
//   - backoffBase: Base for exponential backoff in seconds between attempts
//
// Returns:
//   - *Pipeline: The pipeline, not yet running; call Start
func New(transport Transport, maxSlots, maxRetries int, backoffBase float64) *Pipeline {
	if maxSlots < 1 {
		maxSlots = 1
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	if backoffBase <= 0 {
		backoffBase = 2
	}

	return &Pipeline{
		transport:  transport,
		logger:     noopLogger{},
		maxRetries: maxRetries,
		backoff:    backoffBase,
		slots:      make(chan struct{}, maxSlots),
		closed:     make(chan struct{}),
		sleep:      time.Sleep,
	}
}

// SetLogger sets the logger for the pipeline.
func (p *Pipeline) SetLogger(logger Logger) {
	p.logger = logger
}

// Start launches the dispatcher. It returns immediately; the dispatcher
// runs until ctx is cancelled or Close is called.
func (p *Pipeline) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.wg.Add(1)
	go p.dispatch(ctx)
}

// Enqueue appends a batch to the intake queue.
//
// It never blocks: the queue grows without bound so callers are insulated
// from broker outages. After Close it returns ErrClosed and the batch is
// discarded.
func (p *Pipeline) Enqueue(payload []byte) error {
	if !p.started.Load() {
		return ErrNotStarted
	}
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}

	p.mu.Lock()
	p.queue = append(p.queue, payload)
	depth := len(p.queue)
	p.mu.Unlock()

	p.logger.Debug("batch enqueued", "depth", depth)
	return nil
}

// Stats returns current pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	depth := len(p.queue)
	p.mu.Unlock()

	return Stats{
		Delivered: p.delivered.Load(),
		Dropped:   p.dropped.Load(),
		InFlight:  p.inFlight.Load(),
		Depth:     depth,
	}
}

// Close stops the dispatcher, waits for in-flight deliveries to finish,
// and closes the transport. Batches still queued are discarded. Transport
// close failures are logged, never returned; Close always succeeds.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.wg.Wait()

		p.mu.Lock()
		remaining := len(p.queue)
		p.queue = nil
		p.mu.Unlock()
		if remaining > 0 {
			p.logger.Warn("discarding queued batches on close", "count", remaining)
		}

		if err := p.transport.Close(); err != nil {
			p.logger.Warn("transport close failed", "error", err)
		}
	})
	return nil
}

// dispatch drains the queue, bounding concurrency via the slot channel.
func (p *Pipeline) dispatch(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.closed:
			return
		default:
		}

		payload, ok := p.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-p.closed:
				return
			case <-time.After(idleInterval):
			}
			continue
		}

		select {
		case p.slots <- struct{}{}:
		case <-ctx.Done():
			return
		case <-p.closed:
			return
		}

		p.wg.Add(1)
		p.inFlight.Add(1)
		go func(payload []byte) {
			defer func() {
				p.inFlight.Add(-1)
				<-p.slots
				p.wg.Done()
			}()
			p.deliver(payload)
		}(payload)
	}
}

// pop removes and returns the oldest queued batch.
func (p *Pipeline) pop() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil, false
	}
	payload := p.queue[0]
	p.queue = p.queue[1:]
	return payload, true
}

// deliver attempts one batch up to maxRetries times, then drops it.
func (p *Pipeline) deliver(payload []byte) {
	var lastErr error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if attempt > 0 {
			p.sleep(p.backoffDelay(attempt))
		}

		if err := p.ensureConnected(); err != nil {
			lastErr = err
			p.logger.Debug("delivery attempt failed, broker unreachable",
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if err := p.transport.Publish(payload); err != nil {
			lastErr = err
			p.logger.Debug("delivery attempt failed",
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		p.delivered.Add(1)
		return
	}

	p.dropped.Add(1)
	p.logger.Error("batch dropped after retries exhausted",
		"attempts", p.maxRetries,
		"error", lastErr,
	)
}

// backoffDelay returns the pause before the given attempt (attempt >= 1).
func (p *Pipeline) backoffDelay(attempt int) time.Duration {
	seconds := math.Pow(p.backoff, float64(attempt))
	return time.Duration(seconds * float64(time.Second))
}

// ensureConnected probes the transport and reconnects when needed.
// Reconnects are serialized so concurrent deliveries against a dead
// broker produce one dial, not many.
func (p *Pipeline) ensureConnected() error {
	if p.transport.Connected() {
		return nil
	}
	p.connMu.Lock()
	defer p.connMu.Unlock()
	if p.transport.Connected() {
		return nil
	}
	return p.transport.Connect()
}
