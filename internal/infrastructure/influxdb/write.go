package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteReading archives a single generated reading.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Disconnected clients silently drop points: the archive is best-effort and
// must never slow a tick down.
//
// Parameters:
//   - deviceID: Canonical device identifier the reading was generated for
//   - value: The sampled value (numeric form, before string formatting)
//   - uom: Unit of measure copied from the device type
//   - ts: The reading timestamp
func (c *Client) WriteReading(deviceID string, value float64, uom string, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"readings",
		map[string]string{
			"device_id": deviceID,
			"uom":       uom,
		},
		map[string]interface{}{
			"value": value,
		},
		ts,
	)

	c.writeAPI.WritePoint(point)
}
