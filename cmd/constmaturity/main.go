// Command constmaturity blends the two contracts bracketing a fixed
// maturity into a constant-maturity series.
package main

import (
	"flag"
	"log/slog"

	"futurescli/internal/cli"
	"futurescli/internal/exporter"
	"futurescli/internal/services"
)

func main() {
	symbol := flag.String("symbol", "", "constant-maturity symbol, e.g. SR3.cm.182")
	start := flag.String("start", "", "first date, YYYY-MM-DD")
	end := flag.String("end", "", "end date (exclusive), YYYY-MM-DD")
	schema := flag.String("schema", "ohlcv-1d", "price schema: ohlcv-1d, ohlcv-1h or ohlcv-1m")
	column := flag.String("column", "close", "price column to blend")
	matchRoot := flag.Bool("match-root", false, "keep only definitions whose raw symbol starts with the root")
	definitions := flag.String("definitions", "", "Databento definition CSV; fetched when empty")
	out := flag.String("out", "", "output .csv or .xlsx (default: dated file in exports, - for stdout)")
	flag.Parse()

	env, err := cli.Setup("constmaturity")
	if err != nil {
		cli.Exit(nil, "Setup failed", err)
	}

	defs, err := cli.ReadDefinitions(*definitions)
	if err != nil {
		cli.Exit(env.Logger, "Cannot read definitions", err)
	}

	ctx, cancel := env.Context()
	res, err := env.Service.ConstantMaturity(ctx, services.ConstantMaturityRequest{
		Symbol:      *symbol,
		Start:       *start,
		End:         *end,
		Schema:      *schema,
		Column:      *column,
		MatchRoot:   *matchRoot,
		Definitions: defs,
	})
	cancel()
	if err != nil {
		cli.Exit(env.Logger, "Constant maturity failed", err)
	}

	path, err := env.Write(*out, "constmaturity", res.Symbol,
		exporter.Sheet{Name: res.Symbol, Table: exporter.ConstantMaturityTable(res.Points)},
		exporter.Sheet{Name: "windows", Table: exporter.RollWindowTable(res.Windows)})
	if err != nil {
		cli.Exit(env.Logger, "Cannot write output", err)
	}
	env.Logger.Info("Constant-maturity series written",
		slog.String("path", path),
		slog.Int("points", len(res.Points)),
		slog.Int("windows", len(res.Windows)))
}
