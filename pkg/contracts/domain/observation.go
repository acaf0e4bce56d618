package domain

import (
	"sort"
	"time"
)

// Observation is one timestamped row of per-instrument data. Values holds
// the numeric columns by name (open, high, low, close, price, volume...).
type Observation struct {
	InstrumentID uint32             `json:"instrument_id"`
	Time         time.Time          `json:"time"`
	Values       map[string]float64 `json:"values"`
}

// Value returns the named column and whether it is present.
func (o Observation) Value(col string) (float64, bool) {
	v, ok := o.Values[col]
	return v, ok
}

// Clone returns a copy of o whose Values map can be modified freely.
func (o Observation) Clone() Observation {
	values := make(map[string]float64, len(o.Values))
	for k, v := range o.Values {
		values[k] = v
	}
	o.Values = values
	return o
}

// Frame is an ordered table of observations. Columns lists the value
// columns in output order.
type Frame struct {
	Columns []string      `json:"columns"`
	Rows    []Observation `json:"rows"`
}

// HasColumn reports whether col is one of the frame's value columns.
func (f Frame) HasColumn(col string) bool {
	for _, c := range f.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// ByInstrument groups rows by instrument id, each group ordered by time.
func (f Frame) ByInstrument() map[uint32][]Observation {
	groups := make(map[uint32][]Observation)
	for _, row := range f.Rows {
		groups[row.InstrumentID] = append(groups[row.InstrumentID], row)
	}
	for _, rows := range groups {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Time.Before(rows[j].Time)
		})
	}
	return groups
}

// Location returns the location of the frame's timestamps, UTC for an
// empty frame.
func (f Frame) Location() *time.Location {
	if len(f.Rows) == 0 {
		return time.UTC
	}
	return f.Rows[0].Time.Location()
}
