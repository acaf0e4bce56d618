// Package bars aggregates trades into OHLCV bars.
package bars

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"futurescli/pkg/contracts/domain"
)

var ErrInvalidInterval = errors.New("bar interval must be positive")

// ParseInterval accepts Go durations ("5s", "1m") and the day suffix "d".
func ParseInterval(s string) (time.Duration, error) {
	if n := len(s); n > 1 && (s[n-1] == 'd' || s[n-1] == 'D') {
		days, err := strconv.Atoi(s[:n-1])
		if err != nil {
			return 0, fmt.Errorf("parse interval %q: %w", s, err)
		}
		s = fmt.Sprintf("%dh", days*24)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse interval %q: %w", s, err)
	}
	if d <= 0 {
		return 0, ErrInvalidInterval
	}
	return d, nil
}

type bucketKey struct {
	symbol string
	start  int64
}

// MakeOHLCV groups trades by symbol and by interval-aligned bucket of
// ts_recv. Buckets are multiples of interval counted from UTC midnight of the
// day of the symbol's first trade, so a 7m series starts at 00:00, 00:07 and
// keeps that phase across later days. Trades within a
// bucket are taken in time order: open is the first price, close the last,
// and volume sums the sizes. Buckets with no trades produce no bar. Bars
// are ordered by bucket start then symbol.
func MakeOHLCV(trades []domain.Trade, interval time.Duration) ([]domain.Bar, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}

	ordered := make([]domain.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TsRecv.Before(ordered[j].TsRecv)
	})

	origins := make(map[string]time.Time)
	bars := make(map[bucketKey]*domain.Bar)
	for _, tr := range ordered {
		ts := tr.TsRecv.UTC()
		origin, ok := origins[tr.Symbol]
		if !ok {
			origin = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
			origins[tr.Symbol] = origin
		}
		start := origin.Add(ts.Sub(origin).Truncate(interval))
		key := bucketKey{symbol: tr.Symbol, start: start.UnixNano()}
		bar, ok := bars[key]
		if !ok {
			bars[key] = &domain.Bar{
				TsEvent: start,
				Symbol:  tr.Symbol,
				Open:    tr.Price,
				High:    tr.Price,
				Low:     tr.Price,
				Close:   tr.Price,
				Volume:  tr.Size,
			}
			continue
		}
		if tr.Price > bar.High {
			bar.High = tr.Price
		}
		if tr.Price < bar.Low {
			bar.Low = tr.Price
		}
		bar.Close = tr.Price
		bar.Volume += tr.Size
	}

	out := make([]domain.Bar, 0, len(bars))
	for _, bar := range bars {
		out = append(out, *bar)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TsEvent.Equal(out[j].TsEvent) {
			return out[i].TsEvent.Before(out[j].TsEvent)
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}
