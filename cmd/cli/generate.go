package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"edgeproof/internal/testkit"
)

type generateOptions struct {
	config         testkit.ReturnsGeneratorConfig
	meanTurnover   float64
	out            string
	walkForwardOut string
	splits         int
}

func newGenerateCmd() *cobra.Command {
	opts := generateOptions{config: testkit.DefaultReturnsConfig()}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic returns table for trying out validate",
		Long: `Write a deterministic csv of synthetic strategy returns with a turnover
column. The first hypothesis carries --edge-drift on top of --drift.

Example: edgeproof generate --hypotheses 20 --periods 1000 --edge-drift 0.001 --out returns.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, cmd.OutOrStdout())
		},
	}

	c := &opts.config
	cmd.Flags().IntVar(&c.Hypotheses, "hypotheses", c.Hypotheses, "Number of hypothesis columns")
	cmd.Flags().IntVar(&c.Periods, "periods", c.Periods, "Number of daily periods")
	cmd.Flags().Float64Var(&c.Drift, "drift", c.Drift, "Per-period mean of every hypothesis")
	cmd.Flags().Float64Var(&c.EdgeDrift, "edge-drift", c.EdgeDrift, "Extra per-period mean of the first hypothesis")
	cmd.Flags().Float64Var(&c.Vol, "vol", c.Vol, "Per-period idiosyncratic volatility")
	cmd.Flags().Float64Var(&c.FactorLoading, "factor-loading", c.FactorLoading, "Common factor loading in [0, 1]")
	cmd.Flags().Float64Var(&c.NaNRate, "nan-rate", c.NaNRate, "Share of missing observations")
	cmd.Flags().IntVar(&c.BreakAt, "break-at", c.BreakAt, "Period of a mean shift, 0 for none")
	cmd.Flags().Float64Var(&c.BreakShift, "break-shift", c.BreakShift, "Size of the mean shift")
	cmd.Flags().Int64Var(&c.Seed, "seed", c.Seed, "Generator seed")
	cmd.Flags().Float64Var(&opts.meanTurnover, "turnover", 0.2, "Mean per-period turnover")
	cmd.Flags().StringVar(&opts.out, "out", "-", "Output csv, - for stdout")
	cmd.Flags().StringVar(&opts.walkForwardOut, "walk-forward-out", "", "Also write synthetic walk-forward rows as YAML")
	cmd.Flags().IntVar(&opts.splits, "splits", 12, "Number of walk-forward rows")

	return cmd
}

func runGenerate(opts generateOptions, stdout io.Writer) error {
	if opts.config.Hypotheses < 1 || opts.config.Periods < 1 {
		return fmt.Errorf("--hypotheses and --periods must be positive")
	}
	gen := testkit.NewReturnsGenerator(opts.config)
	set, err := gen.Generate()
	if err != nil {
		return err
	}
	turnover := gen.Turnover(opts.config.Periods, opts.meanTurnover)

	w := stdout
	if opts.out != "" && opts.out != "-" {
		f, err := os.Create(opts.out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	ids := set.IDs()
	cw := csv.NewWriter(w)
	header := []string{"date"}
	for _, id := range ids {
		header = append(header, string(id))
	}
	if err := cw.Write(append(header, "turnover")); err != nil {
		return err
	}
	times := set[ids[0]].Times()
	columns := make([][]float64, len(ids))
	for k, id := range ids {
		columns[k] = set[id].Values()
	}
	for i, ts := range times {
		row := []string{ts.Format("2006-01-02")}
		for k := range ids {
			row = append(row, formatValue(columns[k][i]))
		}
		row = append(row, formatValue(turnover[i]))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	if opts.walkForwardOut != "" {
		body, err := yaml.Marshal(gen.WalkForwardRows(opts.splits))
		if err != nil {
			return err
		}
		return os.WriteFile(opts.walkForwardOut, body, 0o644)
	}
	return nil
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
