// Command ohlcv aggregates trades into OHLCV bars, from a Databento trades
// CSV or fetched for the given symbols.
package main

import (
	"flag"
	"log/slog"

	"futurescli/internal/cli"
	"futurescli/internal/exporter"
	"futurescli/internal/services"
)

func main() {
	symbols := flag.String("symbols", "", "comma-separated raw symbols, e.g. ESH5,ESM5")
	start := flag.String("start", "", "first date, YYYY-MM-DD")
	end := flag.String("end", "", "end date (exclusive), YYYY-MM-DD")
	interval := flag.String("interval", "", "bar width such as 1m, 5m, 1h, 1d (default from config)")
	trades := flag.String("trades", "", "Databento trades CSV; fetched when empty")
	out := flag.String("out", "", "output .csv or .xlsx (default: dated file in exports, - for stdout)")
	flag.Parse()

	env, err := cli.Setup("ohlcv")
	if err != nil {
		cli.Exit(nil, "Setup failed", err)
	}

	input, err := cli.ReadTrades(*trades)
	if err != nil {
		cli.Exit(env.Logger, "Cannot read trades", err)
	}

	ctx, cancel := env.Context()
	res, err := env.Service.Bars(ctx, services.BarsRequest{
		Interval: *interval,
		Symbols:  cli.SplitList(*symbols),
		Start:    *start,
		End:      *end,
		Trades:   input,
	})
	cancel()
	if err != nil {
		cli.Exit(env.Logger, "Bar aggregation failed", err)
	}

	path, err := env.Write(*out, "ohlcv", res.Interval,
		exporter.Sheet{Name: "bars", Table: exporter.BarTable(res.Bars)})
	if err != nil {
		cli.Exit(env.Logger, "Cannot write output", err)
	}
	env.Logger.Info("Bars written",
		slog.String("path", path),
		slog.String("interval", res.Interval),
		slog.Int("bars", len(res.Bars)))
}
