// Package stats derives official daily statistics for futures legs.
package stats

import (
	"sort"
	"time"

	"futurescli/pkg/contracts/domain"
)

// FilterLegs keeps the outright futures of defs ordered by expiration.
func FilterLegs(defs []domain.InstrumentDefinition) []domain.InstrumentDefinition {
	var legs []domain.InstrumentDefinition
	for _, d := range defs {
		if d.IsFuture() {
			legs = append(legs, d)
		}
	}
	sort.SliceStable(legs, func(i, j int) bool {
		return legs[i].Expiration.Before(legs[j].Expiration)
	})
	return legs
}

// LegSymbols returns the distinct raw symbols of legs in order.
func LegSymbols(legs []domain.InstrumentDefinition) []string {
	seen := make(map[string]bool, len(legs))
	var symbols []string
	for _, l := range legs {
		if !seen[l.RawSymbol] {
			seen[l.RawSymbol] = true
			symbols = append(symbols, l.RawSymbol)
		}
	}
	return symbols
}

type statKey struct {
	date   domain.Date
	symbol string
}

// OfficialStats joins raw statistics with their definitions and reduces
// them to one row per (trade date, symbol). The trade date is the UTC date
// of ts_ref. Only final, actual settlement prices count; cleared volume and
// open interest come from their stat types. Within a group the last value
// seen for each column wins. Rows are ordered by trade date, then
// expiration. Statistics for instruments without a definition are dropped.
func OfficialStats(raw []domain.Statistic, defs []domain.InstrumentDefinition) []domain.OfficialStat {
	byID := make(map[uint32]domain.InstrumentDefinition, len(defs))
	for _, d := range defs {
		byID[d.InstrumentID] = d
	}

	groups := make(map[statKey]*domain.OfficialStat)
	var order []statKey
	for _, s := range raw {
		def, ok := byID[s.InstrumentID]
		if !ok {
			continue
		}
		key := statKey{date: domain.DateOf(s.TsRef.UTC()), symbol: def.RawSymbol}
		row, ok := groups[key]
		if !ok {
			row = &domain.OfficialStat{TradeDate: key.date, Symbol: def.RawSymbol}
			groups[key] = row
			order = append(order, key)
		}
		row.Expiration = def.Expiration

		switch s.StatType {
		case domain.StatTypeSettlementPrice:
			if s.StatFlags == domain.SettlementFinalActual && s.Price.Valid {
				price := s.Price.Decimal
				row.SettlementPrice = &price
			}
		case domain.StatTypeClearedVolume:
			if s.Quantity != nil {
				qty := *s.Quantity
				row.ClearedVolume = &qty
			}
		case domain.StatTypeOpenInterest:
			if s.Quantity != nil {
				qty := *s.Quantity
				row.OpenInterest = &qty
			}
		}
	}

	out := make([]domain.OfficialStat, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TradeDate != out[j].TradeDate {
			return out[i].TradeDate.Before(out[j].TradeDate)
		}
		if !out[i].Expiration.Equal(out[j].Expiration) {
			return out[i].Expiration.Before(out[j].Expiration)
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// ForDate returns the rows of stats on day.
func ForDate(stats []domain.OfficialStat, day domain.Date) []domain.OfficialStat {
	var out []domain.OfficialStat
	for _, s := range stats {
		if s.TradeDate == day {
			out = append(out, s)
		}
	}
	return out
}

// FrontMonth returns the leg with the earliest expiration strictly after t.
func FrontMonth(legs []domain.InstrumentDefinition, t time.Time) (domain.InstrumentDefinition, bool) {
	for _, l := range FilterLegs(legs) {
		if l.Expiration.After(t) {
			return l, true
		}
	}
	return domain.InstrumentDefinition{}, false
}
