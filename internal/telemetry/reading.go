package telemetry

import (
	"strconv"
	"time"
)

// TimestampLayout is the wire format for reading timestamps: MM-DD-YYYY/HH:MM:SS.
// Timestamps are always UTC.
const TimestampLayout = "01-02-2006/15:04:05"

// Reading is one synthesized sensor reading.
//
// The JSON field names and string-typed value are the downstream contract:
// consumers expect value as a string with exactly two decimal digits and the
// unit under "UOM". RawValue and At carry the pre-formatting forms for the
// readings archive; they are not serialized.
type Reading struct {
	DeviceID  string `json:"deviceId"`
	Value     string `json:"value"`
	UOM       string `json:"UOM"`
	Timestamp string `json:"timestamp"`

	RawValue float64   `json:"-"`
	At       time.Time `json:"-"`
}

// formatValue renders a sampled value with exactly two decimal digits.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
