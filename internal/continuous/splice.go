// Package continuous stitches individual futures contracts into a single
// back-adjusted continuous series.
//
// A roll schedule lists, in order, which instrument represents the series
// over each [d0, d1) window. At every roll the incoming contract is compared
// with the outgoing one at the outgoing piece's last timestamp and the
// difference (or ratio) is accumulated into an adjustment applied from the
// roll onward. The earliest piece is never adjusted, so the series is
// forward-adjusted: the latest prices carry the full accumulated offset.
package continuous

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"futurescli/pkg/contracts/domain"
)

// DefaultAdjustBy is the column used to measure the roll gap.
const DefaultAdjustBy = "close"

// Adjustment column names appended to spliced frames.
const (
	AdditiveColumn       = "additive_adjustment"
	MultiplicativeColumn = "multiplicative_adjustment"
)

var (
	ErrUnknownInstrument = errors.New("instrument not present in data")
	ErrEmptySegment      = errors.New("no observations in roll segment")
	ErrMissingRollPrice  = errors.New("no observation for incoming contract at roll time")
	ErrMissingColumn     = errors.New("missing adjustment column")
	ErrZeroPrice         = errors.New("zero price at roll")
	ErrUnknownMethod     = errors.New("unknown adjustment method")
)

// Method selects how roll gaps are removed.
type Method string

const (
	Additive       Method = "additive"
	Multiplicative Method = "multiplicative"
)

// ParseMethod maps a user supplied name to a Method.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case Additive:
		return Additive, nil
	case Multiplicative:
		return Multiplicative, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Options configures a splice. The zero value adjusts the close column.
type Options struct {
	// AdjustBy is the column compared across a roll.
	AdjustBy string
	// AdjustmentCols are the columns shifted by the accumulated adjustment.
	// Empty means just AdjustBy.
	AdjustmentCols []string
}

func (o Options) normalized() Options {
	if o.AdjustBy == "" {
		o.AdjustBy = DefaultAdjustBy
	}
	if len(o.AdjustmentCols) == 0 {
		o.AdjustmentCols = []string{o.AdjustBy}
	}
	return o
}

type adjuster struct {
	column   string
	identity float64
	gap      func(incoming, outgoing float64) (float64, error)
	combine  func(cum, gap float64) float64
	apply    func(value, cum float64) float64
}

var additive = adjuster{
	column:   AdditiveColumn,
	identity: 0,
	gap: func(incoming, outgoing float64) (float64, error) {
		return incoming - outgoing, nil
	},
	combine: func(cum, gap float64) float64 { return cum + gap },
	apply:   func(value, cum float64) float64 { return value + cum },
}

var multiplicative = adjuster{
	column:   MultiplicativeColumn,
	identity: 1,
	gap: func(incoming, outgoing float64) (float64, error) {
		if outgoing == 0 {
			return 0, ErrZeroPrice
		}
		return incoming / outgoing, nil
	},
	combine: func(cum, gap float64) float64 { return cum * gap },
	apply:   func(value, cum float64) float64 { return value * cum },
}

// AdditiveSplice splices frame according to segments, adding the running
// sum of roll differences to the adjustment columns.
func AdditiveSplice(segments []domain.RollSegment, frame domain.Frame, opts Options) (domain.Frame, error) {
	return splice(additive, segments, frame, opts)
}

// MultiplicativeSplice splices frame according to segments, scaling the
// adjustment columns by the running product of roll ratios.
func MultiplicativeSplice(segments []domain.RollSegment, frame domain.Frame, opts Options) (domain.Frame, error) {
	return splice(multiplicative, segments, frame, opts)
}

// Splice dispatches to the splice for method.
func Splice(method Method, segments []domain.RollSegment, frame domain.Frame, opts Options) (domain.Frame, error) {
	switch method {
	case Additive:
		return AdditiveSplice(segments, frame, opts)
	case Multiplicative:
		return MultiplicativeSplice(segments, frame, opts)
	default:
		return domain.Frame{}, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

// Unadjusted concatenates the raw pieces of each segment in order.
func Unadjusted(segments []domain.RollSegment, frame domain.Frame) (domain.Frame, error) {
	pieces, err := cut(segments, frame)
	if err != nil {
		return domain.Frame{}, err
	}
	out := domain.Frame{Columns: append([]string(nil), frame.Columns...)}
	for _, p := range pieces {
		for _, row := range p.rows {
			out.Rows = append(out.Rows, row.Clone())
		}
	}
	return out, nil
}

type piece struct {
	segment domain.RollSegment
	rows    []domain.Observation
	all     []domain.Observation
}

func cut(segments []domain.RollSegment, frame domain.Frame) ([]piece, error) {
	groups := frame.ByInstrument()
	loc := frame.Location()

	pieces := make([]piece, 0, len(segments))
	for _, seg := range segments {
		rows, ok := groups[seg.InstrumentID]
		if !ok {
			return nil, fmt.Errorf("segment %s: %w", seg, ErrUnknownInstrument)
		}
		d0, d1 := seg.D0.In(loc), seg.D1.In(loc)
		p := piece{segment: seg, all: rows}
		for _, row := range rows {
			if !row.Time.Before(d0) && row.Time.Before(d1) {
				p.rows = append(p.rows, row)
			}
		}
		pieces = append(pieces, p)
	}
	return pieces, nil
}

func splice(adj adjuster, segments []domain.RollSegment, frame domain.Frame, opts Options) (domain.Frame, error) {
	opts = opts.normalized()

	pieces, err := cut(segments, frame)
	if err != nil {
		return domain.Frame{}, err
	}

	columns := append([]string(nil), frame.Columns...)
	out := domain.Frame{Columns: append(columns, adj.column)}

	cum := adj.identity
	var last *domain.Observation
	for _, p := range pieces {
		if len(p.rows) == 0 {
			return domain.Frame{}, fmt.Errorf("segment %s: %w", p.segment, ErrEmptySegment)
		}

		if last != nil {
			outgoing, ok := last.Value(opts.AdjustBy)
			if !ok {
				return domain.Frame{}, fmt.Errorf("%w %q at %s", ErrMissingColumn, opts.AdjustBy, last.Time)
			}
			incoming, err := valueAt(p.all, last.Time, opts.AdjustBy)
			if err != nil {
				return domain.Frame{}, fmt.Errorf("segment %s: %w", p.segment, err)
			}
			gap, err := adj.gap(incoming, outgoing)
			if err != nil {
				return domain.Frame{}, fmt.Errorf("segment %s: %w", p.segment, err)
			}
			cum = adj.combine(cum, gap)
		}

		for _, row := range p.rows {
			adjusted := row.Clone()
			for _, col := range opts.AdjustmentCols {
				if v, ok := adjusted.Values[col]; ok {
					adjusted.Values[col] = adj.apply(v, cum)
				}
			}
			adjusted.Values[adj.column] = cum
			out.Rows = append(out.Rows, adjusted)
		}

		tail := p.rows[len(p.rows)-1]
		last = &tail
	}
	return out, nil
}

// valueAt returns col of the last row of rows stamped exactly at t.
func valueAt(rows []domain.Observation, t time.Time, col string) (float64, error) {
	found := false
	var value float64
	for _, row := range rows {
		if !row.Time.Equal(t) {
			continue
		}
		v, ok := row.Value(col)
		if !ok {
			return 0, fmt.Errorf("%w %q at %s", ErrMissingColumn, col, row.Time)
		}
		value, found = v, true
	}
	if !found {
		return 0, ErrMissingRollPrice
	}
	return value, nil
}
