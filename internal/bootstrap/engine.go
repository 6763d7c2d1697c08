// Package bootstrap generates dependence-preserving resample index
// sequences: fixed-length block and stationary (geometric block length with
// wraparound). Every draw is a pure function of (base seed, draw index,
// method, block parameter) so draws can run in any order.
package bootstrap

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"edgeproof/domain/core"
)

// Method selects the block scheme
type Method string

const (
	Stationary Method = "stationary"
	Fixed      Method = "fixed"
)

// ParseMethod accepts the config spelling of a method
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case Stationary:
		return Stationary, nil
	case Fixed:
		return Fixed, nil
	}
	return "", core.NewValidationError("rc_method", fmt.Sprintf("unknown method %q (want stationary or fixed)", s))
}

// Engine produces NullDraws for one configuration
type Engine struct {
	method         Method
	avgBlockLength float64
	blockSize      int
	baseSeed       int64
}

// NewEngine validates the block parameter relevant to method. avgBlockLength
// is used by Stationary, blockSize by Fixed.
func NewEngine(method Method, avgBlockLength float64, blockSize int, baseSeed int64) (*Engine, error) {
	switch method {
	case Stationary:
		if !(avgBlockLength >= 1) || math.IsInf(avgBlockLength, 0) {
			return nil, core.NewValidationError("avg_block_length", fmt.Sprintf("must be a finite value >= 1, got %v", avgBlockLength))
		}
	case Fixed:
		if blockSize < 1 {
			return nil, core.NewValidationError("block_size", fmt.Sprintf("must be >= 1, got %d", blockSize))
		}
	default:
		return nil, core.NewValidationError("rc_method", fmt.Sprintf("unknown method %q", method))
	}
	return &Engine{
		method:         method,
		avgBlockLength: avgBlockLength,
		blockSize:      blockSize,
		baseSeed:       baseSeed,
	}, nil
}

func (e *Engine) Method() Method { return e.method }

// BlockParam returns the parameter in effect for the engine's method
func (e *Engine) BlockParam() float64 {
	if e.method == Fixed {
		return float64(e.blockSize)
	}
	return e.avgBlockLength
}

// DrawSeed derives the seed of draw b
func (e *Engine) DrawSeed(b int) int64 { return DrawSeed(e.baseSeed, b) }

// Draw returns the index sequence of draw b for a series of length n
func (e *Engine) Draw(b, n int) []int {
	rng := rand.New(rand.NewSource(e.DrawSeed(b)))
	if e.method == Fixed {
		return FixedBlock(rng, n, e.blockSize)
	}
	return StationaryBlock(rng, n, e.avgBlockLength)
}

// DrawSeed is base + b
func DrawSeed(base int64, b int) int64 { return base + int64(b) }

// FixedBlock concatenates contiguous blocks of length blockLen whose start is
// uniform on [0, n-blockLen], without wraparound, truncating the final block.
// A block longer than the series is clamped to n.
func FixedBlock(rng *rand.Rand, n, blockLen int) []int {
	if n <= 0 {
		return nil
	}
	if blockLen > n {
		blockLen = n
	}
	if blockLen < 1 {
		blockLen = 1
	}

	idx := make([]int, 0, n)
	for len(idx) < n {
		start := rng.Intn(n - blockLen + 1)
		for j := 0; j < blockLen && len(idx) < n; j++ {
			idx = append(idx, start+j)
		}
	}
	return idx
}

// StationaryBlock concatenates blocks with a uniform start on [0, n-1] and a
// geometric length (p = 1/avgLen, support 1, 2, ...) that wrap modulo n.
func StationaryBlock(rng *rand.Rand, n int, avgLen float64) []int {
	if n <= 0 {
		return nil
	}
	p := 1 / avgLen

	idx := make([]int, 0, n)
	for len(idx) < n {
		start := rng.Intn(n)
		length := geometric(rng, p)
		for j := 0; j < length && len(idx) < n; j++ {
			idx = append(idx, (start+j)%n)
		}
	}
	return idx
}

// geometric samples the number of Bernoulli(p) trials up to and including the first success
func geometric(rng *rand.Rand, p float64) int {
	if p >= 1 {
		return 1
	}
	u := 1 - rng.Float64() // (0, 1]
	l := 1 + math.Floor(math.Log(u)/math.Log1p(-p))
	if l > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(l)
}

// Apply gathers xs at idx
func Apply(xs []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = xs[j]
	}
	return out
}
