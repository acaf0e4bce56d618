package exporter

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// formatFloat uses the shortest representation that round-trips; NaN and
// infinities become empty cells.
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatInt formats an int64 value for CSV output
func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

func formatUint(i uint32) string {
	return strconv.FormatUint(uint64(i), 10)
}

// formatTime writes RFC 3339 with nanoseconds; the zero time is empty.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func formatDecimal(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func formatOptionalInt(i *int64) string {
	if i == nil {
		return ""
	}
	return formatInt(*i)
}
