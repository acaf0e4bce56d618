// Package constmaturity blends pairs of futures contracts into a series of
// constant time to maturity.
package constmaturity

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"futurescli/internal/rollspec"
	"futurescli/pkg/contracts/domain"
)

var (
	ErrMissingInstrument = errors.New("no prices for instrument")
	ErrZeroSpan          = errors.New("pre and next contracts share an expiration")
	ErrMissingExpiration = errors.New("no expiration for instrument")
)

// PreWeight is the weight of the pre contract at t for a target maturity m:
// (next - (t+m)) / (next - pre). It is 1 when the target sits on the pre
// expiration and 0 when it sits on the next one.
func PreWeight(t time.Time, maturity time.Duration, preExp, nextExp time.Time) (float64, error) {
	span := nextExp.Sub(preExp)
	if span == 0 {
		return 0, ErrZeroSpan
	}
	return float64(nextExp.Sub(t.Add(maturity))) / float64(span), nil
}

// Splice builds the constant-maturity series for symbol. Within every
// window the pre and next prices are matched on identical timestamps in
// [d0, d1) with the bounds taken as UTC midnight; timestamps present for only
// one leg are dropped.
func Splice(symbol string, windows []domain.RollWindow, prices []domain.ContractPrice) ([]domain.ConstantMaturityPoint, error) {
	days, err := rollspec.MaturityDays(symbol)
	if err != nil {
		return nil, err
	}
	maturity := time.Duration(days) * 24 * time.Hour

	byID := make(map[uint32][]domain.ContractPrice)
	for _, p := range prices {
		byID[p.InstrumentID] = append(byID[p.InstrumentID], p)
	}

	var out []domain.ConstantMaturityPoint
	for _, w := range windows {
		pre, ok := byID[w.Pre]
		if !ok {
			return nil, fmt.Errorf("window %s: %w %d", w, ErrMissingInstrument, w.Pre)
		}
		next, ok := byID[w.Next]
		if !ok {
			return nil, fmt.Errorf("window %s: %w %d", w, ErrMissingInstrument, w.Next)
		}

		d0, d1 := w.Bounds(time.UTC)
		nextAt := make(map[int64]domain.ContractPrice)
		for _, p := range next {
			if inWindow(p.Time, d0, d1) {
				nextAt[p.Time.UnixNano()] = p
			}
		}

		var points []domain.ConstantMaturityPoint
		for _, p := range pre {
			if !inWindow(p.Time, d0, d1) {
				continue
			}
			n, ok := nextAt[p.Time.UnixNano()]
			if !ok {
				continue
			}
			weight, err := PreWeight(p.Time, maturity, p.Expiration, n.Expiration)
			if err != nil {
				return nil, fmt.Errorf("window %s: %w", w, err)
			}
			points = append(points, domain.ConstantMaturityPoint{
				Time:           p.Time,
				PrePrice:       p.Price,
				PreID:          w.Pre,
				PreExpiration:  p.Expiration,
				NextPrice:      n.Price,
				NextID:         w.Next,
				NextExpiration: n.Expiration,
				PreWeight:      weight,
				Price:          weight*p.Price + (1-weight)*n.Price,
			})
		}
		sort.SliceStable(points, func(i, j int) bool {
			return points[i].Time.Before(points[j].Time)
		})
		out = append(out, points...)
	}
	return out, nil
}

func inWindow(t, d0, d1 time.Time) bool {
	return !t.Before(d0) && t.Before(d1)
}

// Expirations indexes the expiration of every definition by instrument id.
func Expirations(defs []domain.InstrumentDefinition) map[uint32]time.Time {
	out := make(map[uint32]time.Time, len(defs))
	for _, d := range defs {
		out[d.InstrumentID] = d.Expiration
	}
	return out
}

// PricesFromFrame turns column col of frame into contract prices tagged
// with their expiration. Rows missing the column are skipped.
func PricesFromFrame(frame domain.Frame, col string, expirations map[uint32]time.Time) ([]domain.ContractPrice, error) {
	prices := make([]domain.ContractPrice, 0, len(frame.Rows))
	for _, row := range frame.Rows {
		v, ok := row.Value(col)
		if !ok {
			continue
		}
		exp, ok := expirations[row.InstrumentID]
		if !ok {
			return nil, fmt.Errorf("%w %d", ErrMissingExpiration, row.InstrumentID)
		}
		prices = append(prices, domain.ContractPrice{
			InstrumentID: row.InstrumentID,
			Time:         row.Time,
			Price:        v,
			Expiration:   exp,
		})
	}
	return prices, nil
}
