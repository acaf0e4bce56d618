// Command legs lists the futures legs of a parent symbol on a date with
// their official settlement, cleared volume and open interest.
package main

import (
	"flag"
	"log/slog"

	"futurescli/internal/cli"
	"futurescli/internal/exporter"
	"futurescli/internal/services"
)

func main() {
	parent := flag.String("parent", "", "parent symbol, e.g. SR3.FUT")
	date := flag.String("date", "", "trade date, YYYY-MM-DD")
	out := flag.String("out", "", "output .csv or .xlsx (default: dated file in exports, - for stdout)")
	flag.Parse()

	env, err := cli.Setup("legs")
	if err != nil {
		cli.Exit(nil, "Setup failed", err)
	}

	ctx, cancel := env.Context()
	legs, err := env.Service.Legs(ctx, services.LegsRequest{Parent: *parent, Date: *date})
	cancel()
	if err != nil {
		cli.Exit(env.Logger, "Legs failed", err)
	}

	path, err := env.Write(*out, "legs", *parent,
		exporter.Sheet{Name: "stats", Table: exporter.OfficialStatTable(legs.Stats)})
	if err != nil {
		cli.Exit(env.Logger, "Cannot write output", err)
	}
	env.Logger.Info("Official statistics written",
		slog.String("path", path),
		slog.Int("legs", len(legs.Stats)))
}
