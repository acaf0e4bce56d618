package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"futurescli/pkg/contracts/domain"
)

// undefStatQuantity marks a statistics record that carries no quantity.
// Newer encodings widen it to math.MaxInt64.
const undefStatQuantity = math.MaxInt32

// DefaultFrameColumns are the value columns DecodeFrame keeps when none are
// requested and the file has them.
var DefaultFrameColumns = []string{"open", "high", "low", "close", "volume", "price", "size"}

var ErrMissingColumn = errors.New("missing column")

type table struct {
	cols   map[string]int
	reader *csv.Reader
	line   int
}

func newTable(r io.Reader, required ...string) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV: %w", io.ErrUnexpectedEOF)
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, name)
		}
	}
	return &table{cols: cols, reader: reader, line: 1}, nil
}

func (t *table) has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// each calls fn for every data row until EOF or the first error.
func (t *table) each(fn func(r *record) error) error {
	for {
		fields, err := t.reader.Read()
		if err == io.EOF {
			return nil
		}
		t.line++
		if err != nil {
			return fmt.Errorf("line %d: %w", t.line, err)
		}
		rec := &record{cols: t.cols, fields: fields}
		if err := fn(rec); err != nil {
			return fmt.Errorf("line %d: %w", t.line, err)
		}
		if rec.err != nil {
			return fmt.Errorf("line %d: %w", t.line, rec.err)
		}
	}
}

// record reads typed fields by column name. The first parse failure sticks
// in err and later reads return zero values.
type record struct {
	cols   map[string]int
	fields []string
	err    error
}

func (r *record) str(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r *record) fail(name, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("column %s: parse %q: %w", name, value, err)
	}
}

func (r *record) time(name string) time.Time {
	s := r.str(name)
	if s == "" || r.err != nil {
		return time.Time{}
	}
	t, err := parseTimestamp(s)
	if err != nil {
		r.fail(name, s, err)
	}
	return t
}

func (r *record) decimal(name string) decimal.Decimal {
	return r.nullDecimal(name).Decimal
}

func (r *record) nullDecimal(name string) decimal.NullDecimal {
	s := r.str(name)
	if s == "" || r.err != nil {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		r.fail(name, s, err)
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func (r *record) float(name string) float64 {
	s := r.str(name)
	if s == "" || r.err != nil {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(name, s, err)
	}
	return f
}

func (r *record) int64(name string) int64 {
	s := r.str(name)
	if s == "" || r.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		r.fail(name, s, err)
	}
	return n
}

func (r *record) uint32(name string) uint32 {
	s := r.str(name)
	if s == "" || r.err != nil {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		r.fail(name, s, err)
	}
	return uint32(n)
}

// parseTimestamp accepts ISO 8601 (pretty_ts) or integer nanoseconds since
// the Unix epoch, always returning UTC.
func parseTimestamp(s string) (time.Time, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(0, n).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// DecodeDefinitions reads a "definition" schema CSV.
func DecodeDefinitions(r io.Reader) ([]domain.InstrumentDefinition, error) {
	t, err := newTable(r, "instrument_id", "raw_symbol", "expiration", "instrument_class", "ts_recv")
	if err != nil {
		return nil, fmt.Errorf("definitions: %w", err)
	}

	var defs []domain.InstrumentDefinition
	err = t.each(func(rec *record) error {
		defs = append(defs, domain.InstrumentDefinition{
			InstrumentID:          rec.uint32("instrument_id"),
			RawSymbol:             rec.str("raw_symbol"),
			Expiration:            rec.time("expiration"),
			InstrumentClass:       domain.InstrumentClass(rec.str("instrument_class")),
			TsRecv:                rec.time("ts_recv"),
			UnitOfMeasure:         rec.str("unit_of_measure"),
			UnitOfMeasureQty:      rec.decimal("unit_of_measure_qty"),
			MinPriceIncrement:     rec.decimal("min_price_increment"),
			Currency:              rec.str("currency"),
			Group:                 rec.str("group"),
			Exchange:              rec.str("exchange"),
			SecurityType:          rec.str("security_type"),
			TradingReferencePrice: rec.decimal("trading_reference_price"),
			Underlying:            rec.str("underlying"),
			StrikePrice:           rec.decimal("strike_price"),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("definitions: %w", err)
	}
	return defs, nil
}

// DecodeStatistics reads a "statistics" schema CSV. Empty prices and the
// undefined quantity sentinel decode as absent.
func DecodeStatistics(r io.Reader) ([]domain.Statistic, error) {
	t, err := newTable(r, "ts_ref", "ts_recv", "instrument_id", "stat_type")
	if err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}

	var stats []domain.Statistic
	err = t.each(func(rec *record) error {
		s := domain.Statistic{
			TsRef:        rec.time("ts_ref"),
			TsRecv:       rec.time("ts_recv"),
			InstrumentID: rec.uint32("instrument_id"),
			StatType:     domain.StatType(rec.int64("stat_type")),
			StatFlags:    uint8(rec.int64("stat_flags")),
			Price:        rec.nullDecimal("price"),
		}
		if rec.str("quantity") != "" {
			if q := rec.int64("quantity"); q != undefStatQuantity && q != math.MaxInt64 {
				s.Quantity = &q
			}
		}
		stats = append(stats, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	return stats, nil
}

// DecodeTrades reads a "trades" schema CSV. ts_event stands in for ts_recv
// when the latter is absent.
func DecodeTrades(r io.Reader) ([]domain.Trade, error) {
	t, err := newTable(r, "price", "size", "symbol")
	if err != nil {
		return nil, fmt.Errorf("trades: %w", err)
	}
	tsCol := "ts_recv"
	if !t.has(tsCol) {
		tsCol = "ts_event"
		if !t.has(tsCol) {
			return nil, fmt.Errorf("trades: %w \"ts_recv\"", ErrMissingColumn)
		}
	}

	var trades []domain.Trade
	err = t.each(func(rec *record) error {
		trades = append(trades, domain.Trade{
			Symbol:       rec.str("symbol"),
			InstrumentID: rec.uint32("instrument_id"),
			TsRecv:       rec.time(tsCol),
			Price:        rec.float("price"),
			Size:         rec.int64("size"),
			Side:         domain.TradeSide(rec.str("side")),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("trades: %w", err)
	}
	return trades, nil
}

// DecodeBookLevels reads the top level of an "mbp-1" schema CSV. Rows with
// an empty side are skipped, so the last level of a symbol is its last
// two-sided quote.
func DecodeBookLevels(r io.Reader) ([]domain.BookLevel, error) {
	t, err := newTable(r, "ts_recv", "symbol", "bid_px_00", "ask_px_00", "bid_sz_00", "ask_sz_00")
	if err != nil {
		return nil, fmt.Errorf("mbp-1: %w", err)
	}

	var levels []domain.BookLevel
	err = t.each(func(rec *record) error {
		bid := rec.nullDecimal("bid_px_00")
		ask := rec.nullDecimal("ask_px_00")
		if !bid.Valid || !ask.Valid {
			return nil
		}
		levels = append(levels, domain.BookLevel{
			Symbol:  rec.str("symbol"),
			TsRecv:  rec.time("ts_recv"),
			BidPx:   bid.Decimal,
			AskPx:   ask.Decimal,
			BidSize: rec.int64("bid_sz_00"),
			AskSize: rec.int64("ask_sz_00"),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mbp-1: %w", err)
	}
	return levels, nil
}

// DecodeFrame reads per-instrument rows keyed by timeCol (ts_event when
// empty). columns selects the value columns, all of which must exist; nil
// keeps whichever DefaultFrameColumns are present. Timestamps are UTC.
func DecodeFrame(r io.Reader, timeCol string, columns []string) (domain.Frame, error) {
	if timeCol == "" {
		timeCol = "ts_event"
	}
	t, err := newTable(r, append([]string{timeCol, "instrument_id"}, columns...)...)
	if err != nil {
		return domain.Frame{}, fmt.Errorf("frame: %w", err)
	}
	if columns == nil {
		for _, c := range DefaultFrameColumns {
			if t.has(c) {
				columns = append(columns, c)
			}
		}
	}

	frame := domain.Frame{Columns: columns}
	err = t.each(func(rec *record) error {
		obs := domain.Observation{
			InstrumentID: rec.uint32("instrument_id"),
			Time:         rec.time(timeCol),
			Values:       make(map[string]float64, len(columns)),
		}
		for _, c := range columns {
			obs.Values[c] = rec.float(c)
		}
		frame.Rows = append(frame.Rows, obs)
		return nil
	})
	if err != nil {
		return domain.Frame{}, fmt.Errorf("frame: %w", err)
	}
	return frame, nil
}
