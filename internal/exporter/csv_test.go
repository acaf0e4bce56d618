package exporter

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futurescli/internal/config"
	"futurescli/pkg/contracts/domain"
)

func setupTestWriter(t *testing.T) (*CSVWriter, *config.Paths) {
	t.Helper()
	paths := config.NewPaths(t.TempDir())
	require.NoError(t, paths.EnsureDirectories())
	return NewCSVWriter(paths), paths
}

func readCSV(t *testing.T, path string) (bom bool, rows [][]string) {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	bom = bytes.HasPrefix(content, utf8BOM)
	content = bytes.TrimPrefix(content, utf8BOM)
	rows, err = csv.NewReader(bytes.NewReader(content)).ReadAll()
	require.NoError(t, err)
	return bom, rows
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	tests := []struct {
		name    string
		options WriteOptions
		wantBOM bool
		want    [][]string
	}{
		{
			name: "headers and records with BOM",
			options: WriteOptions{
				Headers:   []string{"d0", "d1"},
				Records:   [][]string{{"2025-01-01", "2025-01-15"}},
				BOMPrefix: true,
			},
			wantBOM: true,
			want:    [][]string{{"d0", "d1"}, {"2025-01-01", "2025-01-15"}},
		},
		{
			name: "fields needing quotes",
			options: WriteOptions{
				Headers: []string{"Symbol", "Note"},
				Records: [][]string{{"SR3H5", "a, b"}, {"SR3M5", `say "hi"`}},
			},
			want: [][]string{{"Symbol", "Note"}, {"SR3H5", "a, b"}, {"SR3M5", `say "hi"`}},
		},
		{
			name:    "headers only",
			options: WriteOptions{Headers: []string{"a"}},
			want:    [][]string{{"a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer, paths := setupTestWriter(t)
			require.NoError(t, writer.WriteCSV("out.csv", tt.options))

			bom, rows := readCSV(t, filepath.Join(paths.ExportsDir, "out.csv"))
			assert.Equal(t, tt.wantBOM, bom)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestCSVWriter_AppendWritesHeadersOnce(t *testing.T) {
	writer, paths := setupTestWriter(t)
	table := Table{Headers: []string{"d0", "d1", "p", "n"}, Records: [][]string{{"2025-01-01", "2025-01-15", "7", "8"}}}

	require.NoError(t, writer.AppendTable("schedule.csv", table))
	require.NoError(t, writer.AppendTable("schedule.csv", table))

	_, rows := readCSV(t, filepath.Join(paths.ExportsDir, "schedule.csv"))
	require.Len(t, rows, 3)
	assert.Equal(t, table.Headers, rows[0])
	assert.Equal(t, rows[1], rows[2])
}

func TestCSVWriter_AbsolutePathAndNilPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bars.csv")
	writer := NewCSVWriter(nil)

	require.NoError(t, writer.WriteTable(path, Table{Headers: []string{"x"}, Records: [][]string{{"1"}}}))
	bom, rows := readCSV(t, path)
	assert.True(t, bom)
	assert.Equal(t, [][]string{{"x"}, {"1"}}, rows)
}

func TestCSVWriter_CreateStreamWriter(t *testing.T) {
	writer, paths := setupTestWriter(t)

	stream, err := writer.CreateStreamWriter("stream.csv", []string{"Name", "Value"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, stream.WriteRecord([]string{"row", formatInt(int64(i))}))
	}
	require.NoError(t, stream.Close())

	bom, rows := readCSV(t, filepath.Join(paths.ExportsDir, "stream.csv"))
	assert.True(t, bom)
	assert.Equal(t, [][]string{{"Name", "Value"}, {"row", "0"}, {"row", "1"}, {"row", "2"}}, rows)
}

func TestWriteTableTo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTableTo(&buf, Table{Headers: []string{"a", "b"}, Records: [][]string{{"1", ""}}}, false))
	assert.Equal(t, "a,b\n1,\n", buf.String())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "95.875", formatFloat(95.875))
	assert.Equal(t, "0.1", formatFloat(0.1))
	assert.Equal(t, "", formatFloat(math.NaN()))
	assert.Equal(t, "", formatFloat(math.Inf(1)))
	assert.Equal(t, "", formatTime(time.Time{}))
	assert.Equal(t, "2025-03-07T22:00:00Z", formatTime(time.Date(2025, 3, 7, 22, 0, 0, 0, time.UTC)))

	d := decimal.RequireFromString("95.8750")
	assert.Equal(t, "95.875", formatDecimal(&d))
	assert.Equal(t, "", formatDecimal(nil))
	assert.Equal(t, "", formatOptionalInt(nil))
}

func TestFrameTable(t *testing.T) {
	t0 := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	frame := domain.Frame{
		Columns: []string{"close", "additive_adjustment"},
		Rows: []domain.Observation{
			{InstrumentID: 10, Time: t0, Values: map[string]float64{"close": 100.5, "additive_adjustment": 0}},
			{InstrumentID: 11, Time: t0.AddDate(0, 0, 1), Values: map[string]float64{"close": math.NaN()}},
		},
	}

	table := FrameTable(frame)
	assert.Equal(t, []string{"instrument_id", "time", "close", "additive_adjustment"}, table.Headers)
	assert.Equal(t, [][]string{
		{"10", "2025-01-02T00:00:00Z", "100.5", "0"},
		{"11", "2025-01-03T00:00:00Z", "", ""},
	}, table.Records)
}

func TestDomainTables(t *testing.T) {
	exp := time.Date(2025, 6, 17, 21, 0, 0, 0, time.UTC)
	windows := []domain.RollWindow{{
		D0: domain.MustParseDate("2025-01-01"), D1: domain.MustParseDate("2025-01-15"), Pre: 7, Next: 8,
	}}
	assert.Equal(t, [][]string{{"2025-01-01", "2025-01-15", "7", "8"}}, RollWindowTable(windows).Records)

	segments := []domain.RollSegment{{D0: domain.MustParseDate("2025-09-12"), D1: domain.MustParseDate("2025-09-17"), InstrumentID: 651434}}
	assert.Equal(t, [][]string{{"2025-09-12", "2025-09-17", "651434"}}, RollSegmentTable(segments).Records)

	points := []domain.ConstantMaturityPoint{{
		Time: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), PrePrice: 7, PreID: 7, PreExpiration: exp,
		NextPrice: 8, NextID: 8, NextExpiration: exp.AddDate(0, 0, 28), PreWeight: 0.5, Price: 7.5,
	}}
	cm := ConstantMaturityTable(points)
	require.Equal(t, 1, cm.Len())
	assert.Equal(t, len(cm.Headers), len(cm.Records[0]))
	assert.Equal(t, "7.5", cm.Records[0][8])

	bars := BarTable([]domain.Bar{{TsEvent: exp, Symbol: "ESH5", Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 7}})
	assert.Equal(t, []string{"2025-06-17T21:00:00Z", "ESH5", "1", "2", "0.5", "1.5", "7"}, bars.Records[0])

	settle := decimal.RequireFromString("95.875")
	volume := int64(1200)
	stats := OfficialStatTable([]domain.OfficialStat{{
		TradeDate: domain.MustParseDate("2025-01-06"), Symbol: "SR3H5", SettlementPrice: &settle,
		ClearedVolume: &volume, Expiration: exp,
	}})
	assert.Equal(t, []string{"2025-01-06", "SR3H5", "95.875", "1200", "", "2025-06-17T21:00:00Z"}, stats.Records[0])
}
