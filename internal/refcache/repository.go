package refcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fleetsim/fleetsim-core/internal/ident"
)

// PostgresStore reads reference collections from the PostgreSQL store.
//
// The store holds two JSONB collections:
//
//   - customers: nested customer aggregates; each document carries a "sites"
//     array whose elements hold "site_id" and "devices". Sites are flattened
//     out of the aggregates with jsonb_array_elements (the SQL equivalent of
//     an unwind/project), so customers themselves never surface here.
//   - device_types: flat documents with "type_id", "min_val", "max_val", "uom".
//
// Every fetch re-reads the entire collection; there is no delta protocol.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store reader over an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// fetchSitesQuery unwinds customer aggregates into (site_id, devices) rows.
const fetchSitesQuery = `
SELECT site -> 'site_id', site -> 'devices'
FROM customers
CROSS JOIN LATERAL jsonb_array_elements(doc -> 'sites') AS site
`

// fetchDeviceTypesQuery scans the flat device-type collection.
const fetchDeviceTypesQuery = `SELECT doc FROM device_types`

// deviceDoc is the JSON shape of one device inside a site's devices array.
// Identifier fields stay raw: the store writes them in several encodings
// and ident.FromDocument resolves them.
type deviceDoc struct {
	DeviceID json.RawMessage `json:"device_id"`
	TypeID   json.RawMessage `json:"type_id"`
	Deleted  bool            `json:"deleted"`
}

// deviceTypeDoc is the JSON shape of one device_types document.
type deviceTypeDoc struct {
	TypeID json.RawMessage `json:"type_id"`
	MinVal float64         `json:"min_val"`
	MaxVal float64         `json:"max_val"`
	UOM    string          `json:"uom"`
}

// FetchSites returns every (site, devices) pair in the store.
//
// Identifiers are canonicalized during decode; a site or device whose
// identifier cannot be resolved comes back keyed by ident.Invalid and is
// filtered by the cache. A row whose devices array fails to parse is an
// error: that is store corruption, not a malformed identifier.
func (s *PostgresStore) FetchSites(ctx context.Context) ([]Site, error) {
	rows, err := s.db.QueryContext(ctx, fetchSitesQuery)
	if err != nil {
		return nil, fmt.Errorf("querying customer sites: %w", err)
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		var idRaw, devicesRaw []byte
		if err := rows.Scan(&idRaw, &devicesRaw); err != nil {
			return nil, fmt.Errorf("scanning site row: %w", err)
		}

		site, err := decodeSiteRow(idRaw, devicesRaw)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating site rows: %w", err)
	}

	return sites, nil
}

// FetchDeviceTypes returns every device type in the store.
func (s *PostgresStore) FetchDeviceTypes(ctx context.Context) ([]DeviceType, error) {
	rows, err := s.db.QueryContext(ctx, fetchDeviceTypesQuery)
	if err != nil {
		return nil, fmt.Errorf("querying device types: %w", err)
	}
	defer rows.Close()

	var types []DeviceType
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning device type row: %w", err)
		}

		dt, err := decodeDeviceTypeDoc(doc)
		if err != nil {
			return nil, err
		}
		types = append(types, dt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device type rows: %w", err)
	}

	return types, nil
}

// decodeSiteRow builds a Site from the raw site_id and devices columns.
//
// Device order within a site is preserved as stored.
func decodeSiteRow(idRaw, devicesRaw []byte) (Site, error) {
	site := Site{
		ID: ident.FromDocument(idRaw),
	}

	var docs []deviceDoc
	if err := json.Unmarshal(devicesRaw, &docs); err != nil {
		return Site{}, fmt.Errorf("parsing devices for site %s: %w", site.ID, err)
	}

	site.Devices = make([]Device, 0, len(docs))
	for _, doc := range docs {
		site.Devices = append(site.Devices, Device{
			ID:      ident.FromDocument(doc.DeviceID),
			TypeID:  ident.FromDocument(doc.TypeID),
			Deleted: doc.Deleted,
		})
	}

	return site, nil
}

// decodeDeviceTypeDoc builds a DeviceType from one store document.
func decodeDeviceTypeDoc(raw []byte) (DeviceType, error) {
	var doc deviceTypeDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return DeviceType{}, fmt.Errorf("parsing device type document: %w", err)
	}

	return DeviceType{
		ID:     ident.FromDocument(doc.TypeID),
		MinVal: doc.MinVal,
		MaxVal: doc.MaxVal,
		UOM:    doc.UOM,
	}, nil
}
