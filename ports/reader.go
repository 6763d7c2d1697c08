package ports

import (
	"context"

	"edgeproof/domain/series"
)

// SeriesReader loads a hypothesis set from an external source (file, table)
type SeriesReader interface {
	ReadHypothesisSet(ctx context.Context) (series.HypothesisSet, error)
}

// TurnoverReader is implemented by readers that can also supply a turnover
// column for the capacity curve
type TurnoverReader interface {
	ReadTurnover(ctx context.Context) ([]float64, error)
}
