package marketdata

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"futurescli/internal/options"
	"futurescli/internal/stats"
	"futurescli/pkg/contracts/domain"
)

// MaxSymbolsPerRequest caps the symbols sent in one range request. Longer
// lists are split and fetched concurrently.
const MaxSymbolsPerRequest = 2000

// fetchChunks splits symbols into request-sized chunks and fetches them
// with at most c.maxConcurrent requests in flight. Results keep the order
// of the chunks.
func fetchChunks[T any](ctx context.Context, c *Client, symbols []string, fetch func(context.Context, []string) ([]T, error)) ([]T, error) {
	if len(symbols) == 0 {
		return nil, ErrEmptySymbols
	}
	var chunks [][]string
	for start := 0; start < len(symbols); start += MaxSymbolsPerRequest {
		chunks = append(chunks, symbols[start:min(start+MaxSymbolsPerRequest, len(symbols))])
	}

	results := make([][]T, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)
	for i, chunk := range chunks {
		g.Go(func() error {
			out, err := fetch(ctx, chunk)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []T
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// Definitions fetches instrument definitions published over [start, end).
func (c *Client) Definitions(ctx context.Context, symbols []string, stype string, start, end time.Time) ([]domain.InstrumentDefinition, error) {
	return fetchChunks(ctx, c, symbols, func(ctx context.Context, chunk []string) ([]domain.InstrumentDefinition, error) {
		data, err := c.GetRange(ctx, RangeRequest{Schema: SchemaDefinition, Symbols: chunk, SType: stype, Start: start, End: end})
		if err != nil {
			return nil, err
		}
		return DecodeDefinitions(bytes.NewReader(data))
	})
}

// Statistics fetches raw statistics of raw symbols over [start, end).
func (c *Client) Statistics(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Statistic, error) {
	return fetchChunks(ctx, c, symbols, func(ctx context.Context, chunk []string) ([]domain.Statistic, error) {
		data, err := c.GetRange(ctx, RangeRequest{Schema: SchemaStatistics, Symbols: chunk, Start: start, End: end})
		if err != nil {
			return nil, err
		}
		return DecodeStatistics(bytes.NewReader(data))
	})
}

// Trades fetches the trades of raw symbols over [start, end).
func (c *Client) Trades(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Trade, error) {
	return fetchChunks(ctx, c, symbols, func(ctx context.Context, chunk []string) ([]domain.Trade, error) {
		data, err := c.GetRange(ctx, RangeRequest{Schema: SchemaTrades, Symbols: chunk, Start: start, End: end})
		if err != nil {
			return nil, err
		}
		return DecodeTrades(bytes.NewReader(data))
	})
}

// BookLevels fetches top-of-book updates of raw symbols over [start, end).
func (c *Client) BookLevels(ctx context.Context, symbols []string, start, end time.Time) ([]domain.BookLevel, error) {
	return fetchChunks(ctx, c, symbols, func(ctx context.Context, chunk []string) ([]domain.BookLevel, error) {
		data, err := c.GetRange(ctx, RangeRequest{Schema: SchemaMBP1, Symbols: chunk, Start: start, End: end})
		if err != nil {
			return nil, err
		}
		return DecodeBookLevels(bytes.NewReader(data))
	})
}

// Frame fetches one schema keyed by ts_event, for example ohlcv-1d bars of
// the instruments of a roll schedule.
func (c *Client) Frame(ctx context.Context, schema string, symbols []string, stype string, start, end time.Time, columns []string) (domain.Frame, error) {
	rows, err := fetchChunks(ctx, c, symbols, func(ctx context.Context, chunk []string) ([]domain.Frame, error) {
		data, err := c.GetRange(ctx, RangeRequest{Schema: schema, Symbols: chunk, SType: stype, Start: start, End: end})
		if err != nil {
			return nil, err
		}
		f, err := DecodeFrame(bytes.NewReader(data), "", columns)
		if err != nil {
			return nil, err
		}
		return []domain.Frame{f}, nil
	})
	if err != nil {
		return domain.Frame{}, err
	}

	var frame domain.Frame
	for _, f := range rows {
		if frame.Columns == nil {
			frame.Columns = f.Columns
		}
		frame.Rows = append(frame.Rows, f.Rows...)
	}
	return frame, nil
}

// Legs are the outright futures of a product on one date with their
// official statistics.
type Legs struct {
	Stats       []domain.OfficialStat         `json:"stats"`
	Definitions []domain.InstrumentDefinition `json:"definitions"`
}

// LegsOn fetches every futures leg of parent (for example "SR3.FUT")
// defined on date and the official statistics published for them.
func (c *Client) LegsOn(ctx context.Context, date domain.Date, parent string) (Legs, error) {
	start := date.In(time.UTC)
	end := start.AddDate(0, 0, 1)

	defs, err := c.Definitions(ctx, []string{parent}, STypeParent, start, end)
	if err != nil {
		return Legs{}, fmt.Errorf("definitions of %s: %w", parent, err)
	}
	legs := stats.FilterLegs(defs)
	symbols := stats.LegSymbols(legs)
	if len(symbols) == 0 {
		c.logger.WarnContext(ctx, "no futures legs defined",
			slog.String("parent", parent),
			slog.String("date", date.String()),
		)
		return Legs{Definitions: legs}, nil
	}

	raw, err := c.Statistics(ctx, symbols, start, end)
	if err != nil {
		return Legs{}, fmt.Errorf("statistics of %s legs: %w", parent, err)
	}
	official := stats.OfficialStats(raw, legs)
	c.logger.InfoContext(ctx, "legs fetched",
		slog.String("parent", parent),
		slog.Int("legs", len(legs)),
		slog.Int("stats", len(official)),
	)
	return Legs{Stats: official, Definitions: legs}, nil
}

// OptionsChain fetches the option definitions of parent (for example "ES")
// published on the UTC date of start and turns them into a chain as of
// start. See options.FilterChain for underlying and classes.
func (c *Client) OptionsChain(ctx context.Context, parent string, start time.Time, underlying string, classes []domain.InstrumentClass, daysPerYear float64) ([]options.Contract, error) {
	day := domain.DateOf(start.UTC()).In(time.UTC)
	defs, err := c.Definitions(ctx, []string{parent + ".OPT"}, STypeParent, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("option definitions of %s: %w", parent, err)
	}
	return options.FilterChain(defs, start, underlying, classes, daysPerYear), nil
}

// TopOfBook fetches mbp-1 updates over [start, end) and keeps the last
// quote of each symbol.
func (c *Client) TopOfBook(ctx context.Context, symbols []string, start, end time.Time) (map[string]domain.Quote, error) {
	levels, err := c.BookLevels(ctx, symbols, start, end)
	if err != nil {
		return nil, fmt.Errorf("top of book: %w", err)
	}
	return options.TopOfBook(levels), nil
}
