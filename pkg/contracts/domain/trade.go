package domain

import (
	"time"
)

// Trade represents a single matched trade from a "trades" schema.
type Trade struct {
	Symbol       string    `json:"symbol" csv:"symbol" validate:"required"`
	InstrumentID uint32    `json:"instrument_id,omitempty" csv:"instrument_id"`
	TsRecv       time.Time `json:"ts_recv" csv:"ts_recv" validate:"required"`
	Price        float64   `json:"price" csv:"price"`
	Size         int64     `json:"size" csv:"size" validate:"min=0"`
	Side         TradeSide `json:"side,omitempty" csv:"side"`
}

// TradeSide is the aggressor side of a trade.
type TradeSide string

const (
	TradeSideAsk  TradeSide = "A"
	TradeSideBid  TradeSide = "B"
	TradeSideNone TradeSide = "N"
)

// Bar is an OHLCV summary of the trades of one symbol in one interval.
type Bar struct {
	TsEvent time.Time `json:"ts_event" csv:"ts_event"`
	Symbol  string    `json:"symbol" csv:"symbol"`
	Open    float64   `json:"open" csv:"open"`
	High    float64   `json:"high" csv:"high"`
	Low     float64   `json:"low" csv:"low"`
	Close   float64   `json:"close" csv:"close"`
	Volume  int64     `json:"volume" csv:"volume"`
}
