package rollspec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futurescli/pkg/contracts/domain"
)

func def(id uint32, symbol, expiration string, class domain.InstrumentClass, live string) domain.InstrumentDefinition {
	exp, err := time.Parse("2006-01-02 15:04", expiration)
	if err != nil {
		panic(err)
	}
	return domain.InstrumentDefinition{
		InstrumentID:    id,
		RawSymbol:       symbol,
		Expiration:      exp,
		InstrumentClass: class,
		TsRecv:          domain.MustParseDate(live).In(time.UTC),
	}
}

// sofrDefinitions is a strip of SOFR futures with spreads mixed in and a few
// contracts listed part way through the quarter.
func sofrDefinitions() []domain.InstrumentDefinition {
	f, s := domain.InstrumentClassFuture, domain.InstrumentClassSpread
	return []domain.InstrumentDefinition{
		def(1, "SR3V4", "2025-01-14 22:00", f, "2025-01-01"),
		def(2, "SR3X4", "2025-02-18 22:00", f, "2025-01-01"),
		def(3, "SR3Z4", "2025-03-18 21:00", f, "2025-01-01"),
		def(4, "SR3F5", "2025-04-15 21:00", f, "2025-01-01"),
		def(5, "SR3F5-SR3H5", "2025-04-15 21:00", s, "2025-01-01"),
		def(6, "SR3G5", "2025-05-20 21:00", f, "2025-01-01"),
		def(7, "SR3H5", "2025-06-17 21:00", f, "2025-01-01"),
		def(8, "SR3J5", "2025-07-15 21:00", f, "2025-01-01"),
		def(9, "SR3K5", "2025-08-19 21:00", f, "2025-01-01"),
		def(10, "SR3M5-SR3N5", "2025-09-16 21:00", s, "2025-01-01"),
		def(11, "SR3M5", "2025-09-16 21:00", f, "2025-01-01"),
		def(12, "SR3N5", "2025-10-14 21:00", f, "2025-01-01"),
		def(13, "SR3Q5", "2025-11-18 22:00", f, "2025-01-30"),
		def(14, "SR3U5", "2025-12-16 22:00", f, "2025-01-01"),
		def(15, "SR3V5", "2026-01-20 22:00", f, "2025-03-31"),
		def(20, "SR3X5", "2026-02-17 22:00", f, "2025-04-30"),
		def(25, "SR3Z5", "2026-03-17 22:00", f, "2025-01-01"),
	}
}

func window(d0, d1 string, pre, next uint32) domain.RollWindow {
	return domain.RollWindow{D0: domain.MustParseDate(d0), D1: domain.MustParseDate(d1), Pre: pre, Next: next}
}

func TestBuild(t *testing.T) {
	start := domain.MustParseDate("2025-01-01")
	end := domain.MustParseDate("2025-03-31")

	tests := []struct {
		symbol string
		want   []domain.RollWindow
	}{
		{
			symbol: "SR3.cm.182",
			want: []domain.RollWindow{
				window("2025-01-01", "2025-01-15", 7, 8),
				window("2025-01-15", "2025-02-19", 8, 9),
				window("2025-02-19", "2025-03-19", 9, 11),
				window("2025-03-19", "2025-03-31", 11, 12),
			},
		},
		{
			symbol: "SR3.cm.273",
			want: []domain.RollWindow{
				window("2025-01-01", "2025-01-15", 11, 12),
				window("2025-01-15", "2025-01-30", 12, 14),
				window("2025-01-30", "2025-02-19", 12, 13),
				window("2025-02-19", "2025-03-19", 13, 14),
				window("2025-03-19", "2025-03-31", 14, 25),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			got, err := Build(tt.symbol, sofrDefinitions(), start, end, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildIgnoresDuplicatesAndOtherRoots(t *testing.T) {
	defs := sofrDefinitions()
	// A re-sent definition and a different product must not change the schedule.
	defs = append(defs, def(8, "SR3J5", "2025-07-15 21:00", domain.InstrumentClassFuture, "2025-02-10"))
	defs = append(defs, def(99, "ESH5", "2025-07-10 13:30", domain.InstrumentClassFuture, "2025-01-01"))

	got, err := Build("SR3.cm.182", defs, domain.MustParseDate("2025-01-01"), domain.MustParseDate("2025-03-31"), Options{MatchRoot: true})
	require.NoError(t, err)
	assert.Equal(t, window("2025-01-01", "2025-01-15", 7, 8), got[0])
	assert.Len(t, got, 4)
}

func TestBuildSkipsDaysWithoutPair(t *testing.T) {
	defs := []domain.InstrumentDefinition{
		def(1, "SR3H5", "2025-03-18 21:00", domain.InstrumentClassFuture, "2025-01-01"),
		def(2, "SR3M5", "2025-06-17 21:00", domain.InstrumentClassFuture, "2025-01-10"),
	}

	got, err := Build("SR3.cm.30", defs, domain.MustParseDate("2025-01-01"), domain.MustParseDate("2025-03-01"), Options{})
	require.NoError(t, err)
	// Until the target date passes the first expiry there is no pre contract.
	assert.Equal(t, []domain.RollWindow{window("2025-02-17", "2025-03-01", 1, 2)}, got)
}

func TestBuildNoContracts(t *testing.T) {
	got, err := Build("SR3.cm.91", nil, domain.MustParseDate("2025-01-01"), domain.MustParseDate("2025-02-01"), Options{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBuildErrors(t *testing.T) {
	_, err := Build("SR3.182", nil, domain.MustParseDate("2025-01-01"), domain.MustParseDate("2025-02-01"), Options{})
	assert.ErrorIs(t, err, ErrInvalidSymbol)

	_, err = Build("SR3.cm.91", nil, domain.MustParseDate("2025-02-01"), domain.MustParseDate("2025-02-01"), Options{})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestParseSymbol(t *testing.T) {
	tests := []struct {
		input   string
		want    Symbol
		wantErr bool
	}{
		{input: "SR3.cm.182", want: Symbol{Root: "SR3", MaturityDays: 182}},
		{input: " ES.cm.91 ", want: Symbol{Root: "ES", MaturityDays: 91}},
		{input: "SR3.cm.abc", wantErr: true},
		{input: "SR3.cm.0", wantErr: true},
		{input: "SR3.c.182", wantErr: true},
		{input: ".cm.182", wantErr: true},
		{input: "SR3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSymbol(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSymbol)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}

	days, err := MaturityDays("SR3.cm.273")
	require.NoError(t, err)
	assert.Equal(t, 273, days)
}

func TestInstruments(t *testing.T) {
	ids := Instruments([]domain.RollWindow{
		window("2025-01-01", "2025-01-15", 7, 8),
		window("2025-01-15", "2025-02-19", 8, 9),
	})
	assert.Equal(t, []uint32{7, 8, 9}, ids)
}
