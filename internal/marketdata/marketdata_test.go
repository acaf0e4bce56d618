package marketdata

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futurescli/pkg/contracts/domain"
)

const definitionsCSV = `ts_recv,ts_event,rtype,publisher_id,instrument_id,raw_symbol,expiration,instrument_class,min_price_increment,unit_of_measure_qty,strike_price,underlying,symbol
2025-01-14T00:00:00.000000000Z,2025-01-14T00:00:00.000000000Z,19,1,42140878,SR3H5,2025-06-17T21:00:00.000000000Z,F,0.005,2500,,,SR3H5
2025-01-14T00:00:00.000000000Z,2025-01-14T00:00:00.000000000Z,19,1,42140879,SR3M5,2025-09-16T21:00:00.000000000Z,F,0.005,2500,,,SR3M5
2025-01-14T00:00:00.000000000Z,2025-01-14T00:00:00.000000000Z,19,1,42140880,SR3H5-SR3M5,2025-06-17T21:00:00.000000000Z,S,0.005,2500,,,SR3H5-SR3M5
`

const statisticsCSV = `ts_recv,ts_event,rtype,publisher_id,instrument_id,ts_ref,price,quantity,sequence,ts_in_delta,stat_type,channel_id,update_action,stat_flags,symbol
2025-01-14T22:00:00.000000000Z,2025-01-14T22:00:00.000000000Z,24,1,42140878,2025-01-14T00:00:00.000000000Z,95.8125,2147483647,1,0,3,0,1,3,SR3H5
2025-01-14T22:00:00.000000000Z,2025-01-14T22:00:00.000000000Z,24,1,42140878,2025-01-14T00:00:00.000000000Z,,81234,2,0,6,0,1,0,SR3H5
2025-01-14T22:00:00.000000000Z,2025-01-14T22:00:00.000000000Z,24,1,42140878,2025-01-14T00:00:00.000000000Z,,1021000,3,0,9,0,1,0,SR3H5
2025-01-14T22:00:00.000000000Z,2025-01-14T22:00:00.000000000Z,24,1,42140879,2025-01-14T00:00:00.000000000Z,95.9,2147483647,4,0,3,0,1,1,SR3M5
`

const bookCSV = `ts_recv,ts_event,rtype,publisher_id,instrument_id,action,side,depth,price,size,flags,ts_in_delta,sequence,bid_px_00,ask_px_00,bid_sz_00,ask_sz_00,bid_ct_00,ask_ct_00,symbol
2025-03-03T15:00:00.000000000Z,2025-03-03T15:00:00.000000000Z,1,1,1,A,B,0,5900.25,3,0,0,1,5900.25,5900.50,3,1,1,1,ESH5
2025-03-03T15:00:01.000000000Z,2025-03-03T15:00:01.000000000Z,1,1,1,A,B,0,5900.50,1,0,0,2,5900.50,5900.75,1,3,1,1,ESH5
2025-03-03T15:00:02.000000000Z,2025-03-03T15:00:02.000000000Z,1,1,1,C,A,0,,0,0,0,3,5900.50,,1,0,1,0,ESH5
`

// fakeAPI serves range requests by schema and counts the hits.
type fakeAPI struct {
	t      *testing.T
	hits   atomic.Int32
	bodies map[string]string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	user, pass, ok := r.BasicAuth()
	if !ok || user != "db-test-key" || pass != "" {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Authentication failed."}`))
		return
	}
	assert.NoError(f.t, r.ParseForm())

	switch r.URL.Path {
	case getRangePath:
		assert.Equal(f.t, "csv", r.Form.Get("encoding"))
		assert.Equal(f.t, "true", r.Form.Get("pretty_px"))
		body, ok := f.bodies[r.Form.Get("schema")]
		if !ok {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"detail":"Invalid schema."}`))
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(body))
	case resolvePath:
		assert.Equal(f.t, "continuous", r.Form.Get("stype_in"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":{"SR3.c.0":[{"d0":"2025-01-02","d1":"2025-03-18","s":"42140878"},{"d0":"2025-03-18","d1":"2025-04-01","s":"42140879"}]},"symbols":["SR3.c.0","XX.c.0"],"stype_in":"continuous","stype_out":"instrument_id","start_date":"2025-01-02","end_date":"2025-04-01","partial":[],"not_found":["XX.c.0"],"message":"Not found","status":2}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, bodies map[string]string) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{t: t, bodies: bodies}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "db-test-key", MaxConcurrent: 2}, nil)
	require.NoError(t, err)
	return client, api
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestGetRange(t *testing.T) {
	client, api := newTestClient(t, map[string]string{SchemaDefinition: definitionsCSV})
	start := time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)

	data, err := client.GetRange(context.Background(), RangeRequest{
		Schema:  SchemaDefinition,
		Symbols: []string{"SR3.FUT"},
		SType:   STypeParent,
		Start:   start,
	})
	require.NoError(t, err)
	assert.Equal(t, definitionsCSV, string(data))
	assert.EqualValues(t, 1, api.hits.Load())

	_, err = client.GetRange(context.Background(), RangeRequest{Schema: SchemaDefinition, Start: start})
	assert.ErrorIs(t, err, ErrEmptySymbols)
}

func TestGetRangeAPIError(t *testing.T) {
	client, _ := newTestClient(t, nil)

	_, err := client.GetRange(context.Background(), RangeRequest{
		Schema:  "bogus",
		Symbols: []string{"ESH5"},
		Start:   time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC),
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "Invalid schema.", apiErr.Detail)
}

func TestGetRangeStore(t *testing.T) {
	client, api := newTestClient(t, map[string]string{SchemaTrades: "ts_recv,price,size,symbol\n"})
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	rec := &countingRecorder{}
	client.WithStore(store).WithRecorder(rec)

	req := RangeRequest{
		Schema:  SchemaTrades,
		Symbols: []string{"ESH5"},
		Start:   time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
	}
	first, err := client.GetRange(context.Background(), req)
	require.NoError(t, err)
	second, err := client.GetRange(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, api.hits.Load())
	assert.Equal(t, 1, rec.remote)
	assert.Equal(t, 1, rec.cached)
}

type countingRecorder struct {
	remote, cached int
}

func (r *countingRecorder) RecordMarketData(_ context.Context, _ string, _ int, cached bool) {
	if cached {
		r.cached++
	} else {
		r.remote++
	}
}

func TestResolveSymbology(t *testing.T) {
	client, _ := newTestClient(t, nil)

	got, err := client.ResolveSymbology(context.Background(), SymbologyRequest{
		Symbols: []string{"SR3.c.0", "XX.c.0"},
		Start:   domain.MustParseDate("2025-01-02"),
		End:     domain.MustParseDate("2025-04-01"),
	})
	assert.ErrorIs(t, err, ErrNotFound)
	require.Len(t, got["SR3.c.0"], 2)
	assert.Equal(t, domain.RollSegment{
		D0:           domain.MustParseDate("2025-01-02"),
		D1:           domain.MustParseDate("2025-03-18"),
		InstrumentID: 42140878,
	}, got["SR3.c.0"][0])
}

func TestLegsOn(t *testing.T) {
	client, api := newTestClient(t, map[string]string{
		SchemaDefinition: definitionsCSV,
		SchemaStatistics: statisticsCSV,
	})

	legs, err := client.LegsOn(context.Background(), domain.MustParseDate("2025-01-14"), "SR3.FUT")
	require.NoError(t, err)
	assert.EqualValues(t, 2, api.hits.Load())

	require.Len(t, legs.Definitions, 2)
	assert.Equal(t, "SR3H5", legs.Definitions[0].RawSymbol)

	require.Len(t, legs.Stats, 2)
	h5 := legs.Stats[0]
	assert.Equal(t, "SR3H5", h5.Symbol)
	require.NotNil(t, h5.SettlementPrice)
	assert.True(t, h5.SettlementPrice.Equal(decimal.RequireFromString("95.8125")))
	require.NotNil(t, h5.ClearedVolume)
	assert.EqualValues(t, 81234, *h5.ClearedVolume)
	require.NotNil(t, h5.OpenInterest)
	assert.EqualValues(t, 1021000, *h5.OpenInterest)

	// Preliminary settlement only.
	assert.Equal(t, "SR3M5", legs.Stats[1].Symbol)
	assert.Nil(t, legs.Stats[1].SettlementPrice)
}

func TestTopOfBook(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{SchemaMBP1: bookCSV})
	start := time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC)

	quotes, err := client.TopOfBook(context.Background(), []string{"ESH5"}, start, start.Add(time.Minute))
	require.NoError(t, err)
	q := quotes["ESH5"]
	assert.Equal(t, 5900.5, q.Bid)
	assert.Equal(t, 5900.75, q.Ask)
	assert.Equal(t, 5900.625, q.Mid)
	assert.InDelta(t, 5900.5*0.75+5900.75*0.25, q.WeightedMid, 1e-9)
}

func TestFetchChunks(t *testing.T) {
	client, api := newTestClient(t, map[string]string{SchemaTrades: "ts_recv,price,size,symbol\n"})

	symbols := make([]string, MaxSymbolsPerRequest+10)
	for i := range symbols {
		symbols[i] = "ESH5"
	}
	trades, err := client.Trades(context.Background(), symbols, time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.EqualValues(t, 2, api.hits.Load())
}

func TestDecodeDefinitions(t *testing.T) {
	defs, err := DecodeDefinitions(strings.NewReader("\ufeff" + definitionsCSV))
	require.NoError(t, err)
	require.Len(t, defs, 3)

	d := defs[0]
	assert.Equal(t, uint32(42140878), d.InstrumentID)
	assert.Equal(t, domain.InstrumentClassFuture, d.InstrumentClass)
	assert.Equal(t, time.Date(2025, 6, 17, 21, 0, 0, 0, time.UTC), d.Expiration)
	assert.True(t, d.MinPriceIncrement.Equal(decimal.RequireFromString("0.005")))
	assert.True(t, d.StrikePrice.IsZero())

	_, err = DecodeDefinitions(strings.NewReader("instrument_id,raw_symbol\n1,ESH5\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestDecodeStatistics(t *testing.T) {
	stats, err := DecodeStatistics(strings.NewReader(statisticsCSV))
	require.NoError(t, err)
	require.Len(t, stats, 4)

	assert.Equal(t, domain.StatTypeSettlementPrice, stats[0].StatType)
	assert.Equal(t, domain.SettlementFinalActual, stats[0].StatFlags)
	assert.True(t, stats[0].Price.Valid)
	assert.Nil(t, stats[0].Quantity)

	assert.False(t, stats[1].Price.Valid)
	require.NotNil(t, stats[1].Quantity)
	assert.EqualValues(t, 81234, *stats[1].Quantity)
}

func TestDecodeTrades(t *testing.T) {
	csv := "ts_event,instrument_id,side,price,size,symbol\n" +
		"1741014000000000000,5002,A,5900.25,2,ESH5\n"
	trades, err := DecodeTrades(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, time.Unix(0, 1741014000000000000).UTC(), trades[0].TsRecv)
	assert.Equal(t, domain.TradeSideAsk, trades[0].Side)
	assert.Equal(t, int64(2), trades[0].Size)

	_, err = DecodeTrades(strings.NewReader("ts_recv,price,size,symbol\nnot-a-time,1,1,ESH5\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestDecodeBookLevelsSkipsOneSided(t *testing.T) {
	levels, err := DecodeBookLevels(strings.NewReader(bookCSV))
	require.NoError(t, err)
	assert.Len(t, levels, 2)
}

func TestDecodeFrame(t *testing.T) {
	csv := "ts_event,rtype,publisher_id,instrument_id,open,high,low,close,volume,symbol\n" +
		"2025-01-02T00:00:00.000000000Z,35,1,42140878,95.8,95.9,95.7,95.85,1000,SR3H5\n" +
		"2025-01-03T00:00:00.000000000Z,35,1,42140878,95.85,95.95,95.8,95.9,,SR3H5\n"

	frame, err := DecodeFrame(strings.NewReader(csv), "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"open", "high", "low", "close", "volume"}, frame.Columns)
	require.Len(t, frame.Rows, 2)
	assert.Equal(t, 95.85, frame.Rows[0].Values["close"])
	v, ok := frame.Rows[1].Value("volume")
	assert.True(t, ok)
	assert.True(t, math.IsNaN(v), "empty cells decode as NaN")

	_, err = DecodeFrame(strings.NewReader(csv), "", []string{"settle"})
	assert.ErrorIs(t, err, ErrMissingColumn)
}
