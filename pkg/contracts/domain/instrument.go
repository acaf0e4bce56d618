package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentClass is the exchange classification of an instrument definition.
type InstrumentClass string

const (
	InstrumentClassFuture InstrumentClass = "F"
	InstrumentClassSpread InstrumentClass = "S"
	InstrumentClassCall   InstrumentClass = "C"
	InstrumentClassPut    InstrumentClass = "P"
	// InstrumentClassMixedSpread covers option strategies such as calendar spreads.
	InstrumentClassMixedSpread InstrumentClass = "T"
)

// IsOption reports whether c is a call or a put.
func (c InstrumentClass) IsOption() bool {
	return c == InstrumentClassCall || c == InstrumentClassPut
}

// InstrumentDefinition is one row of a market data "definition" schema.
// Definitions are re-sent whenever they change, so the same InstrumentID may
// appear more than once with different TsRecv values.
type InstrumentDefinition struct {
	InstrumentID          uint32          `json:"instrument_id" csv:"instrument_id"`
	RawSymbol             string          `json:"raw_symbol" csv:"raw_symbol"`
	Expiration            time.Time       `json:"expiration" csv:"expiration"`
	InstrumentClass       InstrumentClass `json:"instrument_class" csv:"instrument_class"`
	TsRecv                time.Time       `json:"ts_recv" csv:"ts_recv"`
	UnitOfMeasure         string          `json:"unit_of_measure,omitempty" csv:"unit_of_measure"`
	UnitOfMeasureQty      decimal.Decimal `json:"unit_of_measure_qty" csv:"unit_of_measure_qty"`
	MinPriceIncrement     decimal.Decimal `json:"min_price_increment" csv:"min_price_increment"`
	Currency              string          `json:"currency,omitempty" csv:"currency"`
	Group                 string          `json:"group,omitempty" csv:"group"`
	Exchange              string          `json:"exchange,omitempty" csv:"exchange"`
	SecurityType          string          `json:"security_type,omitempty" csv:"security_type"`
	TradingReferencePrice decimal.Decimal `json:"trading_reference_price" csv:"trading_reference_price"`
	Underlying            string          `json:"underlying,omitempty" csv:"underlying"`
	StrikePrice           decimal.Decimal `json:"strike_price" csv:"strike_price"`
}

// FavoriteDefinitionColumns are the definition fields worth showing when
// inspecting a futures product.
var FavoriteDefinitionColumns = []string{
	"instrument_id",
	"raw_symbol",
	"expiration",
	"unit_of_measure",
	"unit_of_measure_qty",
	"min_price_increment",
	"currency",
	"group",
	"exchange",
	"security_type",
	"trading_reference_price",
}

// IsFuture reports whether the definition is an outright future.
func (d InstrumentDefinition) IsFuture() bool {
	return d.InstrumentClass == InstrumentClassFuture
}

// LiveOn reports whether the instrument had been published by the end of
// the UTC calendar date day.
func (d InstrumentDefinition) LiveOn(day Date) bool {
	return !DateOf(d.TsRecv.UTC()).After(day)
}

// RoundToTick rounds price to the nearest multiple of the minimum price
// increment. Definitions without an increment return price unchanged.
func (d InstrumentDefinition) RoundToTick(price decimal.Decimal) decimal.Decimal {
	if d.MinPriceIncrement.IsZero() {
		return price
	}
	ticks := price.Div(d.MinPriceIncrement).Round(0)
	return ticks.Mul(d.MinPriceIncrement)
}
