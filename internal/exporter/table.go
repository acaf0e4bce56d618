package exporter

import (
	"futurescli/pkg/contracts/domain"
)

// Table is a header row plus string records, ready for CSV or XLSX.
type Table struct {
	Headers []string
	Records [][]string
}

// Len returns the number of records.
func (t Table) Len() int {
	return len(t.Records)
}

// FrameTable lays out a frame as instrument_id, time and then its value
// columns in order. Missing values are empty cells.
func FrameTable(frame domain.Frame) Table {
	t := Table{Headers: append([]string{"instrument_id", "time"}, frame.Columns...)}
	t.Records = make([][]string, 0, len(frame.Rows))
	for _, row := range frame.Rows {
		record := make([]string, 0, len(t.Headers))
		record = append(record, formatUint(row.InstrumentID), formatTime(row.Time))
		for _, col := range frame.Columns {
			if v, ok := row.Value(col); ok {
				record = append(record, formatFloat(v))
			} else {
				record = append(record, "")
			}
		}
		t.Records = append(t.Records, record)
	}
	return t
}

// ConstantMaturityTable lays out a blended series with its legs.
func ConstantMaturityTable(points []domain.ConstantMaturityPoint) Table {
	t := Table{Headers: []string{
		"datetime", "pre_price", "pre_id", "pre_expiration",
		"next_price", "next_id", "next_expiration", "pre_weight", "price",
	}}
	t.Records = make([][]string, 0, len(points))
	for _, p := range points {
		t.Records = append(t.Records, []string{
			formatTime(p.Time),
			formatFloat(p.PrePrice),
			formatUint(p.PreID),
			formatTime(p.PreExpiration),
			formatFloat(p.NextPrice),
			formatUint(p.NextID),
			formatTime(p.NextExpiration),
			formatFloat(p.PreWeight),
			formatFloat(p.Price),
		})
	}
	return t
}

// RollWindowTable lays out a roll schedule as d0, d1, p, n.
func RollWindowTable(windows []domain.RollWindow) Table {
	t := Table{Headers: []string{"d0", "d1", "p", "n"}}
	t.Records = make([][]string, 0, len(windows))
	for _, w := range windows {
		t.Records = append(t.Records, []string{w.D0.String(), w.D1.String(), formatUint(w.Pre), formatUint(w.Next)})
	}
	return t
}

// RollSegmentTable lays out continuous-contract segments as d0, d1, s.
func RollSegmentTable(segments []domain.RollSegment) Table {
	t := Table{Headers: []string{"d0", "d1", "s"}}
	t.Records = make([][]string, 0, len(segments))
	for _, s := range segments {
		t.Records = append(t.Records, []string{s.D0.String(), s.D1.String(), formatUint(s.InstrumentID)})
	}
	return t
}

// BarTable lays out OHLCV bars.
func BarTable(bars []domain.Bar) Table {
	t := Table{Headers: []string{"ts_event", "symbol", "open", "high", "low", "close", "volume"}}
	t.Records = make([][]string, 0, len(bars))
	for _, b := range bars {
		t.Records = append(t.Records, []string{
			formatTime(b.TsEvent),
			b.Symbol,
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatInt(b.Volume),
		})
	}
	return t
}

// OfficialStatTable lays out daily official statistics under the exchange's
// column names.
func OfficialStatTable(stats []domain.OfficialStat) Table {
	t := Table{Headers: []string{"Trade date", "Symbol", "Settlement price", "Cleared volume", "Open interest", "expiration"}}
	t.Records = make([][]string, 0, len(stats))
	for _, s := range stats {
		t.Records = append(t.Records, []string{
			s.TradeDate.String(),
			s.Symbol,
			formatDecimal(s.SettlementPrice),
			formatOptionalInt(s.ClearedVolume),
			formatOptionalInt(s.OpenInterest),
			formatTime(s.Expiration),
		})
	}
	return t
}
