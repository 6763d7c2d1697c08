package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"edgeproof/domain/core"
	"edgeproof/internal/seeding"
)

func newSeedCmd() *cobra.Command {
	var (
		base     int64
		runID    string
		salt     string
		fold     int
		strategy string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Print the derived seed of one resampling stage",
		Long: `Print the seed a run derives for a stage, so that a single bootstrap or
CSCV draw can be reproduced outside the service.

Example: edgeproof seed --run-id 0192f3c4-... --salt reality_check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := seeding.ByName(strategy)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Seed(base, core.RunID(runID), salt, fold))
			return nil
		},
	}

	cmd.Flags().Int64Var(&base, "base", 42, "Configured base seed")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run identifier")
	cmd.Flags().StringVar(&salt, "salt", seeding.SaltRealityCheck, "Stage salt (reality_check, cscv)")
	cmd.Flags().IntVar(&fold, "fold", seeding.NoFold, "Fold index, -1 for none")
	cmd.Flags().StringVar(&strategy, "strategy", "sha256", "Seed strategy (sha256, djb2, fixed)")

	return cmd
}
