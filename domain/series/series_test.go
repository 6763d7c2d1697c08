package series

import (
	"errors"
	"math"
	"testing"
	"time"

	"edgeproof/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(i int) time.Time { return day0.AddDate(0, 0, i) }

func TestNew_RejectsUnsortedAndDuplicate(t *testing.T) {
	_, err := New("a", []Point{{at(0), 1}, {at(0), 2}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnsortedIndex))

	_, err = New("a", []Point{{at(1), 1}, {at(0), 2}})
	assert.True(t, errors.Is(err, core.ErrUnsortedIndex))

	s, err := New("a", []Point{{at(0), 1}, {at(1), math.NaN()}, {at(2), 3}})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 1, s.NaNCount())
}

func TestNew_CopiesInput(t *testing.T) {
	points := []Point{{at(0), 1}, {at(1), 2}}
	s, err := New("a", points)
	require.NoError(t, err)

	points[0].Value = 99
	assert.Equal(t, 1.0, s.Values()[0])
}

func TestAlign_IntersectsTimestamps(t *testing.T) {
	a, _ := New("a", []Point{{at(0), 1}, {at(1), 2}, {at(2), 3}, {at(3), 4}})
	b, _ := New("b", []Point{{at(1), 10}, {at(2), math.NaN()}, {at(3), 30}, {at(4), 40}})

	set := HypothesisSet{}
	require.NoError(t, set.Add(a))
	require.NoError(t, set.Add(b))

	aligned, err := set.Align()
	require.NoError(t, err)

	assert.Equal(t, []core.HypothesisID{"a", "b"}, aligned.IDs)
	assert.Equal(t, []time.Time{at(1), at(2), at(3)}, aligned.Index)
	assert.Equal(t, []float64{2, 3, 4}, aligned.Columns[0])
	assert.Equal(t, 10.0, aligned.Columns[1][0])
	assert.True(t, math.IsNaN(aligned.Columns[1][1]), "NaN must survive alignment")
	assert.Equal(t, 1, aligned.Dropped["a"])
	assert.Equal(t, 1, aligned.Dropped["b"])

	rows := aligned.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, []float64{4, 30}, rows[2])
}

func TestAlign_NoOverlap(t *testing.T) {
	a, _ := New("a", []Point{{at(0), 1}})
	b, _ := New("b", []Point{{at(1), 1}})
	set := HypothesisSet{"a": a, "b": b}

	_, err := set.Align()
	assert.True(t, errors.Is(err, core.ErrInsufficientData))
}

func TestHypothesisSet_AddDuplicate(t *testing.T) {
	set := HypothesisSet{}
	require.NoError(t, set.Add(FromValues("a", day0, []float64{1})))
	assert.Error(t, set.Add(FromValues("a", day0, []float64{2})))
}

func TestAlignedSet_FingerprintStable(t *testing.T) {
	set := HypothesisSet{
		"a": FromValues("a", day0, []float64{1, 2, 3}),
		"b": FromValues("b", day0, []float64{3, 2, 1}),
	}
	a1, err := set.Align()
	require.NoError(t, err)
	a2, err := set.Align()
	require.NoError(t, err)

	h1 := a1.Fingerprint(core.NewFingerprinter("t")).Sum()
	h2 := a2.Fingerprint(core.NewFingerprinter("t")).Sum()
	assert.Equal(t, h1, h2)
}
