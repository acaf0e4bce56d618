package options

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"futurescli/pkg/contracts/domain"
)

// DefaultDaysPerYear normalizes day counts to years.
const DefaultDaysPerYear = 365.0

// Contract is an option definition with its time to expiry.
type Contract struct {
	InstrumentID      uint32                 `json:"instrument_id"`
	Symbol            string                 `json:"raw_symbol"`
	Class             domain.InstrumentClass `json:"instrument_class"`
	Underlying        string                 `json:"underlying"`
	Strike            float64                `json:"strike_price"`
	Expiration        time.Time              `json:"expiration"`
	YearsToExpiration float64                `json:"years_to_expiration"`
}

// FilterChain turns option definitions into a chain as of start. An empty
// underlying keeps every underlying; spreads carry no underlying so they
// need one. A nil classes keeps every class. The chain is sorted by strike.
func FilterChain(defs []domain.InstrumentDefinition, start time.Time, underlying string, classes []domain.InstrumentClass, daysPerYear float64) []Contract {
	if daysPerYear <= 0 {
		daysPerYear = DefaultDaysPerYear
	}
	keep := func(c domain.InstrumentClass) bool {
		if classes == nil {
			return true
		}
		for _, k := range classes {
			if k == c {
				return true
			}
		}
		return false
	}

	var chain []Contract
	for _, d := range defs {
		if underlying != "" && d.Underlying != underlying {
			continue
		}
		if !keep(d.InstrumentClass) {
			continue
		}
		chain = append(chain, Contract{
			InstrumentID:      d.InstrumentID,
			Symbol:            d.RawSymbol,
			Class:             d.InstrumentClass,
			Underlying:        d.Underlying,
			Strike:            d.StrikePrice.InexactFloat64(),
			Expiration:        d.Expiration,
			YearsToExpiration: d.Expiration.Sub(start).Seconds() / daysPerYear / 24 / 60 / 60,
		})
	}
	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].Strike < chain[j].Strike
	})
	return chain
}

// TopOfBook keeps the last book level of each symbol and derives its mid
// and size-weighted mid.
func TopOfBook(levels []domain.BookLevel) map[string]domain.Quote {
	last := make(map[string]domain.BookLevel)
	for _, l := range levels {
		last[l.Symbol] = l
	}

	quotes := make(map[string]domain.Quote, len(last))
	for symbol, l := range last {
		bid := l.BidPx.InexactFloat64()
		ask := l.AskPx.InexactFloat64()
		q := domain.Quote{
			Symbol: symbol,
			Bid:    bid,
			Ask:    ask,
			Mid:    (bid + ask) / 2,
			BidQty: l.BidSize,
			AskQty: l.AskSize,
		}
		if total := l.BidSize + l.AskSize; total > 0 {
			wt := float64(l.BidSize) / float64(total)
			q.WeightedMid = bid*(1-wt) + ask*wt
		} else {
			q.WeightedMid = math.NaN()
		}
		quotes[symbol] = q
	}
	return quotes
}

// VolRow is one option of a chain with its quote and implied vols.
type VolRow struct {
	Contract
	Quote           domain.Quote `json:"quote"`
	UnderlyingPrice float64      `json:"underlying_price"`
	InterestRate    float64      `json:"interest_rate"`

	IVBid         float64 `json:"iv_bid"`
	IVMid         float64 `json:"iv_midprice"`
	IVAsk         float64 `json:"iv_ask"`
	IVWeightedMid float64 `json:"iv_weighted_midprice"`
	EuropeanVol   float64 `json:"european_vol"`
}

// Inputs returns the pricing inputs of the row.
func (r VolRow) Inputs() (Inputs, error) {
	typ, err := domain.OptionTypeOf(r.Class)
	if err != nil {
		return Inputs{}, err
	}
	return Inputs{
		Symbol:  r.Symbol,
		Forward: r.UnderlyingPrice,
		Strike:  r.Strike,
		Years:   r.YearsToExpiration,
		Rate:    r.InterestRate,
		Type:    typ,
	}, nil
}

// CalculateOptionVols joins the chain with its quotes, prices the
// underlying at its mid, and implies American vols at the bid, mid, ask and
// weighted mid plus a Black-76 vol at the mid. Options without a quote are
// dropped. It returns the rows and the underlying price.
func CalculateOptionVols(quotes map[string]domain.Quote, underlying string, chain []Contract, rate float64, logger *slog.Logger) ([]VolRow, float64, error) {
	u, ok := quotes[underlying]
	if !ok || math.IsNaN(u.Mid) {
		return nil, math.NaN(), fmt.Errorf("no quote for underlying %s", underlying)
	}
	solver := NewVolSolver(logger)

	var rows []VolRow
	for _, c := range chain {
		q, ok := quotes[c.Symbol]
		if !ok || math.IsNaN(q.Mid) {
			continue
		}
		row := VolRow{Contract: c, Quote: q, UnderlyingPrice: u.Mid, InterestRate: rate}
		in, err := row.Inputs()
		if err != nil {
			return nil, u.Mid, fmt.Errorf("option %s: %w", c.Symbol, err)
		}
		row.IVBid = solver.American(q.Bid, in)
		row.IVMid = solver.American(q.Mid, in)
		row.IVAsk = solver.American(q.Ask, in)
		row.IVWeightedMid = solver.American(q.WeightedMid, in)
		row.EuropeanVol = solver.European(q.Mid, in)
		rows = append(rows, row)
	}
	return rows, u.Mid, nil
}
