package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fleetsim/fleetsim-core/internal/refcache"
	"github.com/fleetsim/fleetsim-core/internal/telemetry"
)

type fakeCache struct {
	refreshErr  error
	refreshes   atomic.Int64
	snapshots   atomic.Int64
	currentSnap *refcache.Snapshot
}

func (f *fakeCache) Refresh(ctx context.Context) error {
	f.refreshes.Add(1)
	return f.refreshErr
}

func (f *fakeCache) Snapshot() *refcache.Snapshot {
	f.snapshots.Add(1)
	if f.currentSnap != nil {
		return f.currentSnap
	}
	return &refcache.Snapshot{}
}

type fakeGenerator struct {
	readings []telemetry.Reading
	err      error
	panics   bool
	calls    atomic.Int64
}

func (f *fakeGenerator) Generate(snap *refcache.Snapshot) ([]telemetry.Reading, error) {
	f.calls.Add(1)
	if f.panics {
		panic("generator exploded")
	}
	return f.readings, f.err
}

type fakePipeline struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (f *fakePipeline) Enqueue(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakePipeline) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

type fakeArchiver struct {
	mu     sync.Mutex
	writes []string
}

func (f *fakeArchiver) WriteReading(deviceID string, value float64, uom string, ts time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, deviceID)
}

func testReadings() []telemetry.Reading {
	return []telemetry.Reading{
		{DeviceID: "dev-a", Value: "10.50", UOM: "celsius", Timestamp: "03-07-2026/14:30:05", RawValue: 10.5, At: time.Now()},
		{DeviceID: "dev-b", Value: "0.75", UOM: "ratio", Timestamp: "03-07-2026/14:30:05", RawValue: 0.75, At: time.Now()},
	}
}

func TestRunFailsOnInitialRefreshError(t *testing.T) {
	cache := &fakeCache{refreshErr: errors.New("store unreachable")}
	o := New(cache, &fakeGenerator{}, &fakePipeline{}, nil, time.Second)

	err := o.Run(context.Background())
	if err == nil {
		t.Fatal("Run() error = nil, want initial refresh failure")
	}
	if !errors.Is(err, cache.refreshErr) {
		t.Errorf("Run() error = %v, want wrapped %v", err, cache.refreshErr)
	}
}

func TestRunRefreshesBeforeFirstTick(t *testing.T) {
	cache := &fakeCache{}
	gen := &fakeGenerator{readings: testReadings()}
	pipe := &fakePipeline{}
	o := New(cache, gen, pipe, nil, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := cache.refreshes.Load(); got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}
	if got := gen.calls.Load(); got != 0 {
		t.Errorf("generator calls before any tick = %d, want 0", got)
	}
}

func TestTickEnqueuesBatch(t *testing.T) {
	gen := &fakeGenerator{readings: testReadings()}
	pipe := &fakePipeline{}
	o := New(&fakeCache{}, gen, pipe, nil, time.Second)

	o.tick()

	if got := pipe.count(); got != 1 {
		t.Fatalf("enqueued batches = %d, want 1", got)
	}

	var decoded []map[string]string
	if err := json.Unmarshal(pipe.payloads[0], &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d readings, want 2", len(decoded))
	}
	if got, want := decoded[0]["deviceId"], "dev-a"; got != want {
		t.Errorf("deviceId = %q, want %q", got, want)
	}
	if got, want := decoded[0]["value"], "10.50"; got != want {
		t.Errorf("value = %q, want %q", got, want)
	}
}

func TestTickSkipsPublishOnNoData(t *testing.T) {
	gen := &fakeGenerator{err: telemetry.ErrNoData}
	pipe := &fakePipeline{}
	o := New(&fakeCache{}, gen, pipe, nil, time.Second)

	o.tick()

	if got := pipe.count(); got != 0 {
		t.Errorf("enqueued batches = %d, want 0 on no data", got)
	}
}

func TestTickSurvivesGeneratorPanic(t *testing.T) {
	gen := &fakeGenerator{panics: true}
	pipe := &fakePipeline{}
	o := New(&fakeCache{}, gen, pipe, nil, time.Second)

	// Must not propagate the panic.
	o.tick()

	if got := pipe.count(); got != 0 {
		t.Errorf("enqueued batches = %d, want 0 after panic", got)
	}
}

func TestTickSurvivesEnqueueFailure(t *testing.T) {
	gen := &fakeGenerator{readings: testReadings()}
	pipe := &fakePipeline{err: errors.New("pipeline closed")}
	o := New(&fakeCache{}, gen, pipe, nil, time.Second)

	o.tick()
	o.tick()

	if got := gen.calls.Load(); got != 2 {
		t.Errorf("generator calls = %d, want 2", got)
	}
}

func TestTickArchivesReadings(t *testing.T) {
	gen := &fakeGenerator{readings: testReadings()}
	archiver := &fakeArchiver{}
	o := New(&fakeCache{}, gen, &fakePipeline{}, archiver, time.Second)

	o.tick()

	archiver.mu.Lock()
	defer archiver.mu.Unlock()
	if len(archiver.writes) != 2 {
		t.Fatalf("archived %d readings, want 2", len(archiver.writes))
	}
	if archiver.writes[0] != "dev-a" || archiver.writes[1] != "dev-b" {
		t.Errorf("archived devices = %v, want [dev-a dev-b]", archiver.writes)
	}
}

func TestTickSkipsArchiveOnNoData(t *testing.T) {
	gen := &fakeGenerator{err: telemetry.ErrNoData}
	archiver := &fakeArchiver{}
	o := New(&fakeCache{}, gen, &fakePipeline{}, archiver, time.Second)

	o.tick()

	archiver.mu.Lock()
	defer archiver.mu.Unlock()
	if len(archiver.writes) != 0 {
		t.Errorf("archived %d readings, want 0", len(archiver.writes))
	}
}

func TestRunTicksOnInterval(t *testing.T) {
	gen := &fakeGenerator{readings: testReadings()}
	pipe := &fakePipeline{}
	o := New(&fakeCache{}, gen, pipe, nil, time.Second)
	o.interval = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := pipe.count(); got < 2 {
		t.Errorf("enqueued batches = %d, want at least 2", got)
	}
}
