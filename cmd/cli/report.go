package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"edgeproof/domain/result"
	"edgeproof/internal/report"
)

func newReportCmd() *cobra.Command {
	var (
		in     string
		out    string
		asHTML bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a stored validation record as Markdown or HTML",
		Long: `Render the JSON record written by validate as a readable summary.

Example: edgeproof report --in result.json --html --out result.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("read record: %w", err)
			}
			var rec result.Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("decode record %s: %w", in, err)
			}

			body := report.Markdown(rec)
			if asHTML {
				body = report.HTML(rec)
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			return os.WriteFile(out, body, 0o644)
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Record JSON written by validate")
	cmd.Flags().StringVar(&out, "out", "-", "Output file, - for stdout")
	cmd.Flags().BoolVar(&asHTML, "html", false, "Render a complete HTML page instead of Markdown")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}
