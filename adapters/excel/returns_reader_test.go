package excel

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"edgeproof/domain/core"
)

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "returns.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReturnsReader_CSV(t *testing.T) {
	path := writeCSV(t, "date,alpha,beta,turnover\n"+
		"2024-01-02,0.01,-0.5%,0.2\n"+
		"2024-01-03,,0.002,0.3\n"+
		"2024-01-04,NaN,0.004,0.1\n")

	r := NewReturnsReader(DefaultReaderConfig(path))
	set, err := r.ReadHypothesisSet(context.Background())
	require.NoError(t, err)
	require.Len(t, set, 2)

	alpha := set["alpha"].Values()
	require.Len(t, alpha, 3)
	assert.InDelta(t, 0.01, alpha[0], 1e-12)
	assert.True(t, math.IsNaN(alpha[1]))
	assert.True(t, math.IsNaN(alpha[2]))

	beta := set["beta"].Values()
	assert.InDelta(t, -0.005, beta[0], 1e-12)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), set["beta"].Times()[1])

	turnover, err := r.ReadTurnover(context.Background())
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.2, 0.3, 0.1}, turnover, 1e-12)
}

func TestReturnsReader_NoTurnoverColumn(t *testing.T) {
	path := writeCSV(t, "day,alpha\n2024-01-02,0.01\n2024-01-03,0.02\n")

	r := NewReturnsReader(DefaultReaderConfig(path))
	set, err := r.ReadHypothesisSet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.HypothesisID{"alpha"}, set.IDs())

	turnover, err := r.ReadTurnover(context.Background())
	require.NoError(t, err)
	assert.Nil(t, turnover)
}

func TestReturnsReader_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		is   error
	}{
		{"unsorted dates", "date,alpha\n2024-01-03,0.01\n2024-01-02,0.02\n", core.ErrUnsortedIndex},
		{"bad number", "date,alpha\n2024-01-02,abc\n", core.ErrInvalidConfig},
		{"bad date", "date,alpha\nyesterday,0.01\n", core.ErrInvalidConfig},
		{"no hypotheses", "date,turnover\n2024-01-02,0.1\n", core.ErrInsufficientData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReturnsReader(DefaultReaderConfig(writeCSV(t, tt.body)))
			_, err := r.ReadHypothesisSet(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.is)
		})
	}
}

func TestReturnsReader_MissingFile(t *testing.T) {
	r := NewReturnsReader(DefaultReaderConfig(filepath.Join(t.TempDir(), "absent.xlsx")))
	_, err := r.ReadHypothesisSet(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReturnsReader_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "returns.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"date", "alpha", "beta", "turnover"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"2024-01-02", 0.01, 0.03, 0.5}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"2024-01-03", -0.02, 0.04, 0.25}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	r := NewReturnsReader(DefaultReaderConfig(path))
	set, err := r.ReadHypothesisSet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.HypothesisID{"alpha", "beta"}, set.IDs())
	assert.InDeltaSlice(t, []float64{0.01, -0.02}, set["alpha"].Values(), 1e-12)

	turnover, err := r.ReadTurnover(context.Background())
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.25}, turnover, 1e-12)
}

func TestParseDate_ExcelSerial(t *testing.T) {
	got, err := parseDate("45293", nil)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), got, time.Second)
}
