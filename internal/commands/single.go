package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"taxharvest/models"
)

// SingleAction extracts one property from flags and prints the result as
// JSON. Mainly for tuning a jurisdiction's routine without a full batch.
func SingleAction(c *cli.Context) error {
	logger := newLogger(c)

	cfg, err := buildConfig(c)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	rec := models.PropertyRecord{
		PropertyID:      c.String("id"),
		PropertyName:    c.String("name"),
		Jurisdiction:    c.String("jurisdiction"),
		TaxBillLink:     c.String("link"),
		AccountNumber:   c.String("account"),
		ExtractionSteps: c.String("steps"),
		PropertyType:    models.PropertyTypeProperty,
	}
	if rec.PropertyID == "" {
		rec.PropertyID = "single"
	}

	eng, stop, err := buildEngine(cfg, logger)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(2)
	}
	defer stop()

	res := eng.ExtractOne(c.Context, rec)

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(out))

	if res.Status == models.StatusFailed {
		os.Exit(1)
	}
	return nil
}
