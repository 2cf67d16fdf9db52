package refcache

import (
	"time"

	"github.com/fleetsim/fleetsim-core/internal/ident"
)

// Device is one fleet device belonging to a site.
type Device struct {
	// ID is the canonical device identifier.
	ID ident.ID

	// TypeID references the DeviceType describing this device's sampling
	// range. It may be Invalid or dangling; the generator skips such devices.
	TypeID ident.ID

	// Deleted marks a soft-deleted device. Soft-deleted devices stay in the
	// snapshot (the store still returns them) but never produce readings.
	Deleted bool
}

// Site groups an ordered list of devices under one site identifier.
type Site struct {
	ID      ident.ID
	Devices []Device
}

// DeviceType describes the sampling range for a class of devices.
//
// MinVal <= MaxVal is expected but not enforced by the store; consumers must
// treat an inverted range as empty/invalid rather than assuming order.
type DeviceType struct {
	ID     ident.ID
	MinVal float64
	MaxVal float64
	UOM    string
}

// Snapshot is an immutable point-in-time view of the reference data.
//
// Both maps are built fresh on every refresh and swapped in as a pair, so a
// holder of a Snapshot never observes a mix of pre- and post-refresh data.
// Snapshots must not be mutated after construction.
type Snapshot struct {
	Sites       map[ident.ID]Site
	DeviceTypes map[ident.ID]DeviceType

	// RefreshedAt is when this snapshot was built. Zero for the initial
	// empty snapshot that exists before the first successful refresh.
	RefreshedAt time.Time
}

// emptySnapshot returns the snapshot a cache holds before first population.
func emptySnapshot() *Snapshot {
	return &Snapshot{
		Sites:       map[ident.ID]Site{},
		DeviceTypes: map[ident.ID]DeviceType{},
	}
}

// DeviceCount returns the total number of devices across all sites.
func (s *Snapshot) DeviceCount() int {
	n := 0
	for _, site := range s.Sites {
		n += len(site.Devices)
	}
	return n
}
