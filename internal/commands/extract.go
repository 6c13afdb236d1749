package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/urfave/cli/v2"

	"taxharvest/models"
	"taxharvest/pkg/csvio"
	"taxharvest/pkg/store"
)

// ExtractAction runs a full batch: read the portfolio CSV, extract every
// record, write results, summary and optional workbook, and persist the
// run.
func ExtractAction(c *cli.Context) error {
	logger := newLogger(c)

	cfg, err := buildConfig(c)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	records, err := csvio.ReadRecords(c.String("input"))
	if err != nil {
		logger.Error("failed to read input", "error", err, "path", c.String("input"))
		os.Exit(2)
	}
	if len(records) == 0 {
		logger.Error("input file has no records", "path", c.String("input"))
		os.Exit(2)
	}
	logger.Info("loaded portfolio", "records", len(records), "path", c.String("input"))

	eng, stop, err := buildEngine(cfg, logger)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(2)
	}
	defer stop()

	if !c.Bool("quiet") {
		// The engine calls the observer from worker goroutines.
		var done atomic.Int64
		total := len(records)
		eng.SetProgress(func(res models.ExtractionResult) {
			fmt.Fprintf(os.Stderr, "[%d/%d] %s -> %s\n", done.Add(1), total, res.PropertyID, res.Status)
		})
	}

	results, summary := eng.ExtractBatch(c.Context, records)

	if err := csvio.WriteResults(c.String("output"), results); err != nil {
		logger.Error("failed to write results", "error", err)
		os.Exit(2)
	}
	if path := c.String("summary"); path != "" {
		if err := csvio.WriteSummary(path, summary); err != nil {
			logger.Error("failed to write summary", "error", err)
			os.Exit(2)
		}
	}
	if path := c.String("xlsx"); path != "" {
		if err := csvio.WriteWorkbook(path, results, summary); err != nil {
			logger.Error("failed to write workbook", "error", err)
			os.Exit(2)
		}
	}

	if path := c.String("db"); path != "" {
		db, err := store.Open(path)
		if err != nil {
			logger.Error("failed to open results database", "error", err)
			os.Exit(2)
		}
		defer db.Close()

		summaryJSON, _ := json.Marshal(summary)
		runID, err := db.SaveRun(summary, string(summaryJSON), results)
		if err != nil {
			logger.Error("failed to persist run", "error", err)
			os.Exit(2)
		}
		logger.Info("run persisted", "run_id", runID, "db", path)
	}

	logger.Info("extraction complete",
		"total", summary.TotalRecords,
		"successful", summary.Successful,
		"partial", summary.Partial,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"unsupported", summary.Unsupported,
		"requires_manual", summary.RequiresManual,
		"output", c.String("output"))
	return nil
}
