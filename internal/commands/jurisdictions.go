package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"taxharvest/pkg/registry"
)

// JurisdictionsAction lists the supported jurisdictions.
func JurisdictionsAction(c *cli.Context) error {
	entries := registry.New().Entries()

	if c.Bool("json") {
		type entryJSON struct {
			Key        string `json:"key"`
			Name       string `json:"name"`
			Method     string `json:"method"`
			Browser    string `json:"browser,omitempty"`
			Routine    string `json:"routine"`
			Confidence string `json:"confidence"`
			URLPattern string `json:"url_pattern,omitempty"`
		}
		out := make([]entryJSON, 0, len(entries))
		for _, e := range entries {
			out = append(out, entryJSON{
				Key:        e.Key,
				Name:       e.Name,
				Method:     string(e.Method),
				Browser:    string(e.BrowserType),
				Routine:    e.RoutineKey(),
				Confidence: string(e.Confidence),
				URLPattern: e.URLPattern,
			})
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding jurisdictions: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tMETHOD\tROUTINE\tCONFIDENCE")
	for _, e := range entries {
		method := string(e.Method)
		if e.BrowserType != "" {
			method = fmt.Sprintf("%s (%s)", method, e.BrowserType)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Key, e.Name, method, e.RoutineKey(), e.Confidence)
	}
	return w.Flush()
}
