package ports

import "edgeproof/domain/core"

// SeedStrategy derives the base seed of one resampling stage. Derivation must
// be a pure function of its arguments so that reruns reproduce every draw.
type SeedStrategy interface {
	// Seed mixes the configured seed with the run identity, a stage salt
	// ("reality_check", "cscv", ...) and an optional fold index (-1 for none)
	Seed(base int64, runID core.RunID, salt string, fold int) int64
}
