// Command rollspec writes the constant-maturity roll schedule of a symbol
// such as SR3.cm.182: the windows [d0, d1) and the contracts (p, n)
// bracketing the target maturity in each.
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
	matchRoot := flag.Bool("match-root", false, "keep only definitions whose raw symbol starts with the root")
	definitions := flag.String("definitions", "", "Databento definition CSV; fetched when empty")
	out := flag.String("out", "", "output .csv or .xlsx (default: dated file in exports, - for stdout)")
	flag.Parse()

	env, err := cli.Setup("rollspec")
	if err != nil {
		cli.Exit(nil, "Setup failed", err)
	}

	defs, err := cli.ReadDefinitions(*definitions)
	if err != nil {
		cli.Exit(env.Logger, "Cannot read definitions", err)
	}

	ctx, cancel := env.Context()
	res, err := env.Service.RollSpec(ctx, services.RollSpecRequest{
		Symbol:      *symbol,
		Start:       *start,
		End:         *end,
		MatchRoot:   *matchRoot,
		Definitions: defs,
	})
	cancel()
	if err != nil {
		cli.Exit(env.Logger, "Roll schedule failed", err)
	}

	path, err := env.Write(*out, "rollspec", res.Symbol,
		exporter.Sheet{Name: "windows", Table: exporter.RollWindowTable(res.Windows)})
	if err != nil {
		cli.Exit(env.Logger, "Cannot write output", err)
	}
	env.Logger.Info("Roll schedule written",
		slog.String("path", path),
		slog.Int("windows", len(res.Windows)),
		slog.Int("instruments", len(res.Instruments)))
}
