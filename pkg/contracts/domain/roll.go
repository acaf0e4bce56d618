package domain

import (
	"fmt"
	"time"
)

// RollSegment says which instrument stands in for a continuous contract
// over the half-open date range [D0, D1).
type RollSegment struct {
	D0           Date   `json:"d0"`
	D1           Date   `json:"d1"`
	InstrumentID uint32 `json:"s,string"`
}

func (s RollSegment) String() string {
	return fmt.Sprintf("%s..%s:%d", s.D0, s.D1, s.InstrumentID)
}

// RollWindow is one constant-maturity window: over [D0, D1) the target
// maturity falls between the expirations of Pre and Next.
type RollWindow struct {
	D0   Date   `json:"d0"`
	D1   Date   `json:"d1"`
	Pre  uint32 `json:"p,string"`
	Next uint32 `json:"n,string"`
}

// Bounds returns the window as instants at midnight in loc.
func (w RollWindow) Bounds(loc *time.Location) (time.Time, time.Time) {
	return w.D0.In(loc), w.D1.In(loc)
}

// Contains reports whether t falls in [D0, D1) using midnight in loc.
func (w RollWindow) Contains(t time.Time, loc *time.Location) bool {
	d0, d1 := w.Bounds(loc)
	return !t.Before(d0) && t.Before(d1)
}

func (w RollWindow) String() string {
	return fmt.Sprintf("%s..%s:%d/%d", w.D0, w.D1, w.Pre, w.Next)
}

// ContractPrice is a single price observation tagged with the contract's
// expiration, the input to constant-maturity blending.
type ContractPrice struct {
	InstrumentID uint32    `json:"instrument_id"`
	Time         time.Time `json:"datetime"`
	Price        float64   `json:"price"`
	Expiration   time.Time `json:"expiration"`
}

// ConstantMaturityPoint is one blended observation of a constant-maturity
// series together with the legs it was built from.
type ConstantMaturityPoint struct {
	Time           time.Time `json:"datetime"`
	PrePrice       float64   `json:"pre_price"`
	PreID          uint32    `json:"pre_id"`
	PreExpiration  time.Time `json:"pre_expiration"`
	NextPrice      float64   `json:"next_price"`
	NextID         uint32    `json:"next_id"`
	NextExpiration time.Time `json:"next_expiration"`
	PreWeight      float64   `json:"pre_weight"`
	Price          float64   `json:"price"`
}
