package refcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fleetsim/fleetsim-core/internal/ident"
)

// MockStore is a test implementation of Store.
type MockStore struct {
	mu         sync.Mutex
	sites      []Site
	types      []DeviceType
	sitesErr   error
	typesErr   error
	fetchCount int
}

func (m *MockStore) FetchSites(_ context.Context) ([]Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCount++
	if m.sitesErr != nil {
		return nil, m.sitesErr
	}
	return append([]Site(nil), m.sites...), nil
}

func (m *MockStore) FetchDeviceTypes(_ context.Context) ([]DeviceType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.typesErr != nil {
		return nil, m.typesErr
	}
	return append([]DeviceType(nil), m.types...), nil
}

func (m *MockStore) set(sites []Site, types []DeviceType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites = sites
	m.types = types
}

func (m *MockStore) setErrs(sitesErr, typesErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sitesErr = sitesErr
	m.typesErr = typesErr
}

func (m *MockStore) fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCount
}

// testID returns a deterministic valid identifier for tests.
func testID(t *testing.T, s string) ident.ID {
	t.Helper()
	id := ident.FromString(s)
	if !id.Valid() {
		t.Fatalf("test identifier %q did not resolve", s)
	}
	return id
}

func testFixtures(t *testing.T) ([]Site, []DeviceType, ident.ID, ident.ID) {
	t.Helper()
	siteID := testID(t, "11111111-1111-1111-1111-111111111111")
	typeID := testID(t, "22222222-2222-2222-2222-222222222222")
	deviceID := testID(t, "33333333-3333-3333-3333-333333333333")

	sites := []Site{{
		ID: siteID,
		Devices: []Device{
			{ID: deviceID, TypeID: typeID},
		},
	}}
	types := []DeviceType{{
		ID: typeID, MinVal: 10, MaxVal: 20, UOM: "C",
	}}
	return sites, types, siteID, typeID
}

func TestSnapshotEmptyBeforeRefresh(t *testing.T) {
	cache := New(&MockStore{}, time.Hour)

	snap := cache.Snapshot()
	if snap == nil {
		t.Fatal("Snapshot() = nil, want empty snapshot")
	}
	if len(snap.Sites) != 0 || len(snap.DeviceTypes) != 0 {
		t.Errorf("fresh cache snapshot not empty: %d sites, %d types",
			len(snap.Sites), len(snap.DeviceTypes))
	}
	if !snap.RefreshedAt.IsZero() {
		t.Error("fresh cache snapshot has non-zero RefreshedAt")
	}
}

func TestRefreshPopulatesSnapshot(t *testing.T) {
	sites, types, siteID, typeID := testFixtures(t)
	store := &MockStore{}
	store.set(sites, types)
	cache := New(store, time.Hour)

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	snap := cache.Snapshot()
	if _, ok := snap.Sites[siteID]; !ok {
		t.Error("site missing from snapshot")
	}
	if _, ok := snap.DeviceTypes[typeID]; !ok {
		t.Error("device type missing from snapshot")
	}
	if snap.RefreshedAt.IsZero() {
		t.Error("RefreshedAt not set after refresh")
	}
}

func TestRefreshFailureKeepsStaleSnapshot(t *testing.T) {
	sites, types, siteID, _ := testFixtures(t)
	store := &MockStore{}
	store.set(sites, types)
	cache := New(store, time.Hour)

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	before := cache.Snapshot()

	store.setErrs(errors.New("store down"), nil)
	err := cache.Refresh(context.Background())
	if err == nil {
		t.Fatal("Refresh() = nil, want error")
	}
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Refresh() error = %v, want ErrFetchFailed", err)
	}

	after := cache.Snapshot()
	if after != before {
		t.Error("failed refresh replaced the snapshot")
	}
	if _, ok := after.Sites[siteID]; !ok {
		t.Error("stale snapshot lost its site")
	}
}

func TestRefreshDeviceTypeFailureKeepsStaleSnapshot(t *testing.T) {
	sites, types, _, _ := testFixtures(t)
	store := &MockStore{}
	store.set(sites, types)
	cache := New(store, time.Hour)

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	before := cache.Snapshot()

	store.setErrs(nil, errors.New("store down"))
	if err := cache.Refresh(context.Background()); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Refresh() error = %v, want ErrFetchFailed", err)
	}

	if cache.Snapshot() != before {
		t.Error("partially failed refresh replaced the snapshot")
	}
}

func TestRefreshDropsInvalidIdentifiers(t *testing.T) {
	sites, types, siteID, _ := testFixtures(t)
	sites = append(sites, Site{ID: ident.Invalid, Devices: []Device{{}}})
	types = append(types, DeviceType{ID: ident.Invalid, UOM: "kWh"})

	store := &MockStore{}
	store.set(sites, types)
	cache := New(store, time.Hour)

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	snap := cache.Snapshot()
	if len(snap.Sites) != 1 {
		t.Errorf("len(Sites) = %d, want 1 (invalid dropped)", len(snap.Sites))
	}
	if len(snap.DeviceTypes) != 1 {
		t.Errorf("len(DeviceTypes) = %d, want 1 (invalid dropped)", len(snap.DeviceTypes))
	}
	if _, ok := snap.Sites[siteID]; !ok {
		t.Error("valid site was dropped alongside the invalid one")
	}
	if _, ok := snap.Sites[ident.Invalid]; ok {
		t.Error("invalid-keyed site present in snapshot")
	}
}

func TestRefreshIdempotent(t *testing.T) {
	sites, types, _, _ := testFixtures(t)
	store := &MockStore{}
	store.set(sites, types)
	cache := New(store, time.Hour)

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("first Refresh() error = %v", err)
	}
	first := cache.Snapshot()

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}
	second := cache.Snapshot()

	if first == second {
		t.Fatal("second refresh did not build a new snapshot")
	}
	if len(first.Sites) != len(second.Sites) {
		t.Errorf("site count changed: %d vs %d", len(first.Sites), len(second.Sites))
	}
	for id, site := range first.Sites {
		other, ok := second.Sites[id]
		if !ok {
			t.Errorf("site %s missing after identical refresh", id)
			continue
		}
		if len(site.Devices) != len(other.Devices) {
			t.Errorf("site %s device count changed", id)
		}
	}
	for id, dt := range first.DeviceTypes {
		if second.DeviceTypes[id] != dt {
			t.Errorf("device type %s changed after identical refresh", id)
		}
	}
}

// TestSnapshotAtomicity hammers Snapshot while refreshes alternate between
// two datasets; a reader must never see maps from different generations.
func TestSnapshotAtomicity(t *testing.T) {
	siteA := testID(t, "11111111-1111-1111-1111-111111111111")
	typeA := testID(t, "22222222-2222-2222-2222-222222222222")
	siteB := testID(t, "44444444-4444-4444-4444-444444444444")
	typeB := testID(t, "55555555-5555-5555-5555-555555555555")

	genA := struct {
		sites []Site
		types []DeviceType
	}{
		[]Site{{ID: siteA}},
		[]DeviceType{{ID: typeA, UOM: "C"}},
	}
	genB := struct {
		sites []Site
		types []DeviceType
	}{
		[]Site{{ID: siteB}},
		[]DeviceType{{ID: typeB, UOM: "kWh"}},
	}

	store := &MockStore{}
	store.set(genA.sites, genA.types)
	cache := New(store, time.Hour)
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup

	// Writer: alternate generations as fast as possible.
	wg.Add(1)
	go func() {
		defer wg.Done()
		flip := false
		for {
			select {
			case <-done:
				return
			default:
			}
			if flip {
				store.set(genB.sites, genB.types)
			} else {
				store.set(genA.sites, genA.types)
			}
			flip = !flip
			_ = cache.Refresh(context.Background())
		}
	}()

	// Readers: every observed snapshot must be internally consistent.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := cache.Snapshot()
				_, hasSiteA := snap.Sites[siteA]
				_, hasTypeA := snap.DeviceTypes[typeA]
				_, hasSiteB := snap.Sites[siteB]
				_, hasTypeB := snap.DeviceTypes[typeB]
				switch {
				case hasSiteA && hasTypeA && !hasSiteB && !hasTypeB:
				case hasSiteB && hasTypeB && !hasSiteA && !hasTypeA:
				default:
					t.Errorf("mixed-generation snapshot: siteA=%v typeA=%v siteB=%v typeB=%v",
						hasSiteA, hasTypeA, hasSiteB, hasTypeB)
					return
				}
			}
		}()
	}

	time.Sleep(200 * time.Millisecond)
	close(done)
	wg.Wait()
}

func TestInvalidateCoalesces(t *testing.T) {
	cache := New(&MockStore{}, time.Hour)

	// Many signals with no consumer must neither block nor queue up.
	for i := 0; i < 10; i++ {
		cache.Invalidate()
	}

	if len(cache.invalidate) != 1 {
		t.Errorf("pending invalidations = %d, want 1", len(cache.invalidate))
	}
}

func TestRunRefreshesOnInvalidate(t *testing.T) {
	sites, types, _, _ := testFixtures(t)
	store := &MockStore{}
	store.set(sites, types)
	cache := New(store, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go cache.Run(ctx)

	cache.Invalidate()

	deadline := time.After(2 * time.Second)
	for store.fetches() == 0 {
		select {
		case <-deadline:
			t.Fatal("Run loop never consumed the invalidation")
		case <-time.After(10 * time.Millisecond):
		}
	}

	snap := cache.Snapshot()
	if len(snap.Sites) == 0 {
		t.Error("snapshot still empty after invalidation-triggered refresh")
	}
}

func TestRunPollTicker(t *testing.T) {
	store := &MockStore{}
	cache := New(store, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go cache.Run(ctx)

	deadline := time.After(2 * time.Second)
	for store.fetches() < 2 {
		select {
		case <-deadline:
			t.Fatal("poll ticker never fired twice")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
