package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"taxharvest/pkg/store"
)

// SummaryAction shows run history from the results database.
func SummaryAction(c *cli.Context) error {
	logger := newLogger(c)

	db, err := store.Open(c.String("db"))
	if err != nil {
		logger.Error("failed to open results database", "error", err, "db", c.String("db"))
		os.Exit(2)
	}
	defer db.Close()

	if runID := c.Int64("failed"); runID > 0 {
		ids, err := db.FailedProperties(runID)
		if err != nil {
			logger.Error("failed to list failed properties", "error", err, "run_id", runID)
			os.Exit(2)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}

	runs, err := db.Runs(c.Int("limit"))
	if err != nil {
		logger.Error("failed to list runs", "error", err)
		os.Exit(2)
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tFINISHED\tSUMMARY")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.FinishedAt.Format("2006-01-02 15:04:05"),
			r.Summary)
	}
	return w.Flush()
}
