package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"edgeproof/adapters/cache"
	"edgeproof/adapters/excel"
	"edgeproof/adapters/postgres"
	"edgeproof/domain/core"
	"edgeproof/domain/result"
	"edgeproof/internal"
	"edgeproof/internal/config"
	"edgeproof/internal/pbo"
	"edgeproof/internal/validation"
)

type validateOptions struct {
	input       string
	configPath  string
	out         string
	runID       string
	primary     string
	sheet       string
	walkForward string
	persist     bool
}

func newValidateCmd() *cobra.Command {
	var opts validateOptions

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the hypotheses of a wide returns table",
		Long: `Read a returns table (xlsx or csv: one date column, one column per
hypothesis, optional turnover column) and write the validation record as JSON.

Example: edgeproof validate --input returns.xlsx --config validation.yaml --out result.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "Returns table (.xlsx or .csv)")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Validation config YAML (defaults to $VALIDATION_CONFIG)")
	cmd.Flags().StringVar(&opts.out, "out", "-", "Output file for the record, - for stdout")
	cmd.Flags().StringVar(&opts.runID, "run-id", "", "Run identifier (generated when empty)")
	cmd.Flags().StringVar(&opts.primary, "primary", "", "Primary hypothesis (defaults to the best observed)")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "Worksheet name (defaults to the first sheet)")
	cmd.Flags().StringVar(&opts.walkForward, "walk-forward", "", "YAML or JSON file of walk-forward rows")
	cmd.Flags().BoolVar(&opts.persist, "persist", false, "Store the record in $DATABASE_URL")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runValidate(ctx context.Context, opts validateOptions, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	appCfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := internal.NewDefaultLogger().With("cli")

	configPath := opts.configPath
	if configPath == "" {
		configPath = appCfg.Validation.ConfigPath
	}
	cfg, err := validation.LoadConfigFile(configPath)
	if err != nil {
		return err
	}

	readerCfg := excel.DefaultReaderConfig(opts.input)
	readerCfg.Sheet = opts.sheet
	reader := excel.NewReturnsReader(readerCfg)
	set, err := reader.ReadHypothesisSet(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.input, err)
	}
	turnover, err := reader.ReadTurnover(ctx)
	if err != nil {
		return fmt.Errorf("read turnover: %w", err)
	}
	walkForward, err := loadWalkForward(opts.walkForward)
	if err != nil {
		return err
	}

	resultCache, closeCache, err := cache.Open(ctx, appCfg.Cache)
	if err != nil {
		logger.Warn("cache %s unavailable, running without: %v", appCfg.Cache.Backend, err)
		resultCache = nil
	}
	defer closeCache()

	orchOpts := []validation.Option{validation.WithLogger(logger)}
	if resultCache != nil {
		orchOpts = append(orchOpts, validation.WithCache(resultCache, appCfg.Cache.TTL))
	}
	rec, err := validation.NewOrchestrator(orchOpts...).Run(ctx, validation.Request{
		RunID:       core.RunID(opts.runID),
		Set:         set,
		Primary:     core.HypothesisID(opts.primary),
		Turnover:    turnover,
		WalkForward: walkForward,
		Config:      cfg,
	})
	if err != nil {
		return err
	}

	if err := writeRecord(rec, opts.out, stdout); err != nil {
		return err
	}
	logger.Info("run %s: primary %s over %d periods", rec.RunID, rec.Primary, rec.NPeriods)

	if opts.persist {
		if !appCfg.Database.Enabled() {
			return fmt.Errorf("--persist requires DATABASE_URL")
		}
		db, err := postgres.Open(ctx, appCfg.Database.URL, appCfg.Database.MaxOpenConns, appCfg.Database.MaxIdleConns)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.NewResultRepository(db).Save(ctx, rec); err != nil {
			return err
		}
		logger.Info("run %s stored", rec.RunID)
	}
	return nil
}

func loadWalkForward(path string) ([]pbo.WalkForwardRow, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read walk-forward rows: %w", err)
	}
	rows := []pbo.WalkForwardRow{}
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: walk-forward rows: %v", core.ErrInvalidConfig, err)
	}
	return rows, nil
}

func writeRecord(rec result.Record, path string, stdout io.Writer) error {
	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	body = append(body, '\n')
	if path == "" || path == "-" {
		_, err = stdout.Write(body)
		return err
	}
	return os.WriteFile(path, body, 0o644)
}
