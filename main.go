package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"taxharvest/internal/commands"
)

func main() {
	app := &cli.App{
		Name:  "taxharvest",
		Usage: "extract property tax amounts from county tax portals",
		Commands: []*cli.Command{
			{
				Name:   "extract",
				Usage:  "run a full batch from a portfolio CSV",
				Action: commands.ExtractAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "portfolio CSV to read", Required: true},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "results CSV to write", Value: "results.csv"},
					&cli.StringFlag{Name: "summary", Usage: "summary JSON to write"},
					&cli.StringFlag{Name: "xlsx", Usage: "Excel workbook to write"},
					&cli.StringFlag{Name: "db", Usage: "sqlite database to persist the run into"},
					&cli.StringFlag{Name: "config", Usage: "YAML config file"},
					&cli.IntFlag{Name: "workers", Usage: "max concurrent browser sessions"},
					&cli.IntFlag{Name: "retries", Usage: "attempts per record for transient failures"},
					&cli.BoolFlag{Name: "headless", Usage: "run browsers headless", Value: true},
					&cli.StringFlag{Name: "artifact-dir", Usage: "directory for failure screenshots and page dumps"},
					&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "errors only"},
					&cli.BoolFlag{Name: "verbose", Usage: "debug logging"},
				},
			},
			{
				Name:   "single",
				Usage:  "extract one property described by flags",
				Action: commands.SingleAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "property id"},
					&cli.StringFlag{Name: "name", Usage: "property name"},
					&cli.StringFlag{Name: "jurisdiction", Aliases: []string{"j"}, Usage: "jurisdiction name", Required: true},
					&cli.StringFlag{Name: "link", Aliases: []string{"l"}, Usage: "tax bill link"},
					&cli.StringFlag{Name: "account", Aliases: []string{"a"}, Usage: "account or parcel number"},
					&cli.StringFlag{Name: "steps", Usage: "extraction steps text"},
					&cli.StringFlag{Name: "config", Usage: "YAML config file"},
					&cli.BoolFlag{Name: "headless", Usage: "run browsers headless", Value: true},
					&cli.StringFlag{Name: "artifact-dir", Usage: "directory for failure screenshots and page dumps"},
					&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "errors only"},
					&cli.BoolFlag{Name: "verbose", Usage: "debug logging"},
				},
			},
			{
				Name:   "jurisdictions",
				Usage:  "list supported jurisdictions",
				Action: commands.JurisdictionsAction,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "emit JSON instead of a table"},
				},
			},
			{
				Name:   "summary",
				Usage:  "show run history from the results database",
				Action: commands.SummaryAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "db", Usage: "sqlite database", Value: "taxharvest.db"},
					&cli.IntFlag{Name: "limit", Usage: "max runs to show", Value: 20},
					&cli.Int64Flag{Name: "failed", Usage: "print failed property ids for a run"},
					&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "errors only"},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
