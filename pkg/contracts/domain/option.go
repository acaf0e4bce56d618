package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OptionType is the right conveyed by an option.
type OptionType string

const (
	OptionTypeCall OptionType = "Call"
	OptionTypePut  OptionType = "Put"
)

// Sign is +1 for calls and -1 for puts.
func (t OptionType) Sign() float64 {
	if t == OptionTypePut {
		return -1
	}
	return 1
}

// ParseOptionType accepts "Call"/"Put" as well as the instrument class
// letters "C"/"P", case-insensitively.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "C", "CALL":
		return OptionTypeCall, nil
	case "P", "PUT":
		return OptionTypePut, nil
	default:
		return "", fmt.Errorf("invalid option type: %q", s)
	}
}

// OptionTypeOf maps an instrument class to the option type it denotes.
func OptionTypeOf(class InstrumentClass) (OptionType, error) {
	return ParseOptionType(string(class))
}

// BookLevel is the top price level of an mbp-1 record.
type BookLevel struct {
	Symbol  string          `json:"symbol"`
	TsRecv  time.Time       `json:"ts_recv"`
	BidPx   decimal.Decimal `json:"bid_px_00"`
	AskPx   decimal.Decimal `json:"ask_px_00"`
	BidSize int64           `json:"bid_sz_00"`
	AskSize int64           `json:"ask_sz_00"`
}

// Quote is the last top-of-book of a symbol with derived mid prices.
// WeightedMid leans towards the side with the larger resting size:
// bid*(1-w) + ask*w with w = bidq/(bidq+askq).
type Quote struct {
	Symbol      string  `json:"symbol"`
	Bid         float64 `json:"bid"`
	Ask         float64 `json:"ask"`
	Mid         float64 `json:"midprice"`
	BidQty      int64   `json:"bidq"`
	AskQty      int64   `json:"askq"`
	WeightedMid float64 `json:"weighted_midprice"`
}
