package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatType is the statistic code of a "statistics" schema record.
type StatType uint16

const (
	StatTypeOpeningPrice      StatType = 1
	StatTypeIndicativeOpening StatType = 2
	StatTypeSettlementPrice   StatType = 3
	StatTypeTradingSessionLow StatType = 4
	StatTypeTradingSessionHi  StatType = 5
	StatTypeClearedVolume     StatType = 6
	StatTypeLowestOffer       StatType = 7
	StatTypeHighestBid        StatType = 8
	StatTypeOpenInterest      StatType = 9
)

// SettlementFinalActual is the stat_flags value of a final, actual
// settlement price: bit 0 final, bit 1 actual.
const SettlementFinalActual uint8 = 3

// Statistic is one raw statistics record.
type Statistic struct {
	TsRef        time.Time           `json:"ts_ref"`
	TsRecv       time.Time           `json:"ts_recv"`
	InstrumentID uint32              `json:"instrument_id"`
	StatType     StatType            `json:"stat_type"`
	StatFlags    uint8               `json:"stat_flags"`
	Price        decimal.NullDecimal `json:"price"`
	Quantity     *int64              `json:"quantity,omitempty"`
}

// OfficialStat is the official end-of-day summary of one contract on one
// trade date. Nil fields were not published for that date.
type OfficialStat struct {
	TradeDate       Date             `json:"trade_date" csv:"Trade date"`
	Symbol          string           `json:"symbol" csv:"Symbol"`
	SettlementPrice *decimal.Decimal `json:"settlement_price" csv:"Settlement price"`
	ClearedVolume   *int64           `json:"cleared_volume" csv:"Cleared volume"`
	OpenInterest    *int64           `json:"open_interest" csv:"Open interest"`
	Expiration      time.Time        `json:"expiration" csv:"expiration"`
}
