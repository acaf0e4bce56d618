// Command splice builds a continuous futures series, such as ES.v.0, from
// Databento roll segments and back-adjusts it.
package main

import (
	"flag"
	"log/slog"
	"strings"

	"futurescli/internal/cli"
	"futurescli/internal/exporter"
	"futurescli/internal/services"
)

func main() {
	symbol := flag.String("symbol", "", "continuous symbol, e.g. ES.v.0 or ES.c.1")
	start := flag.String("start", "", "first date, YYYY-MM-DD")
	end := flag.String("end", "", "end date (exclusive), YYYY-MM-DD")
	method := flag.String("method", "additive", "adjustment method: "+strings.Join(services.ContinuousMethods, ", "))
	schema := flag.String("schema", "ohlcv-1d", "price schema: ohlcv-1d, ohlcv-1h or ohlcv-1m")
	adjustBy := flag.String("adjust-by", "", "column the roll gaps are measured on (default from config)")
	adjustCols := flag.String("adjust-cols", "", "comma-separated columns to adjust (default: the adjust-by column)")
	out := flag.String("out", "", "output .csv or .xlsx (default: dated file in exports, - for stdout)")
	flag.Parse()

	env, err := cli.Setup("splice")
	if err != nil {
		cli.Exit(nil, "Setup failed", err)
	}

	ctx, cancel := env.Context()
	res, err := env.Service.Continuous(ctx, *method, services.ContinuousRequest{
		Symbol:         *symbol,
		Start:          *start,
		End:            *end,
		Schema:         *schema,
		AdjustBy:       *adjustBy,
		AdjustmentCols: cli.SplitList(*adjustCols),
	})
	cancel()
	if err != nil {
		cli.Exit(env.Logger, "Splice failed", err)
	}

	path, err := env.Write(*out, "continuous", res.Symbol,
		exporter.Sheet{Name: res.Method, Table: exporter.FrameTable(res.Frame)},
		exporter.Sheet{Name: "segments", Table: exporter.RollSegmentTable(res.Segments)})
	if err != nil {
		cli.Exit(env.Logger, "Cannot write output", err)
	}
	env.Logger.Info("Continuous series written",
		slog.String("path", path),
		slog.String("method", res.Method),
		slog.Int("rows", len(res.Frame.Rows)),
		slog.Int("segments", len(res.Segments)))
}
