// Package seeding derives per-stage seeds from a run's identity
package seeding

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"strings"

	"edgeproof/domain/core"
	"edgeproof/ports"
)

// Stage salts used by the orchestrator
const (
	SaltRealityCheck = "reality_check"
	SaltCSCV         = "cscv"
)

// NoFold marks a derivation outside any cross-validation fold
const NoFold = -1

// SHA256Strategy hashes (base, run id, salt, fold) and keeps the leading 63 bits
type SHA256Strategy struct{}

var _ ports.SeedStrategy = SHA256Strategy{}

func (SHA256Strategy) Seed(base int64, runID core.RunID, salt string, fold int) int64 {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(base))
	h.Write(buf[:])
	writeString(h, runID.String())
	writeString(h, salt)
	binary.BigEndian.PutUint64(buf[:], uint64(int64(fold)))
	h.Write(buf[:])

	sum := h.Sum(nil)
	return int64(binary.BigEndian.Uint64(sum[:8]) >> 1)
}

func writeString(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}

// DJB2Strategy adds djb2 string hashes of the run id, salt and fold to the
// base seed. Cheap and stable, but collisions are far more likely than with
// SHA256Strategy.
type DJB2Strategy struct{}

var _ ports.SeedStrategy = DJB2Strategy{}

func (DJB2Strategy) Seed(base int64, runID core.RunID, salt string, fold int) int64 {
	seed := base
	if !runID.IsEmpty() {
		seed += int64(djb2(runID.String()))
	}
	if salt != "" {
		seed += int64(djb2(salt))
	}
	if fold != NoFold {
		seed += int64(djb2(fmt.Sprintf("fold:%d", fold)))
	}
	return seed
}

func djb2(s string) uint32 {
	var sum uint32 = 5381
	for _, c := range s {
		sum = ((sum << 5) + sum) + uint32(c)
	}
	return sum
}

// FixedStrategy ignores identity and returns the configured seed, so a run
// can be replayed with seeds copied verbatim from an earlier record
type FixedStrategy struct{}

var _ ports.SeedStrategy = FixedStrategy{}

func (FixedStrategy) Seed(base int64, _ core.RunID, _ string, _ int) int64 { return base }

// ByName resolves the config spelling of a strategy
func ByName(name string) (ports.SeedStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sha256":
		return SHA256Strategy{}, nil
	case "djb2":
		return DJB2Strategy{}, nil
	case "fixed":
		return FixedStrategy{}, nil
	}
	return nil, core.NewValidationError("seed_strategy", fmt.Sprintf("unknown strategy %q (want sha256, djb2 or fixed)", name))
}
