package diff

import (
	"maps"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func side(m map[string]int64, total int64) Side[string] {
	return Side[string]{Weights: maps.All(m), Total: total}
}

func TestCompute(t *testing.T) {
	left := map[string]int64{"both": 50, "leftonly": 25}
	right := map[string]int64{"both": 30, "rightonly": 10}

	d, err := Compute(side(left, 100), side(right, 200))
	require.NoError(t, err)

	assert.Len(t, d, 3)
	assert.InDelta(t, 15.0-50.0, d["both"], 1e-9)
	assert.InDelta(t, -25.0, d["leftonly"], 1e-9)
	assert.InDelta(t, 5.0, d["rightonly"], 1e-9)
}

func TestComputeSelfIsZero(t *testing.T) {
	m := map[string]int64{"main": 7, "work": 3, "idle": 11}
	d, err := Compute(side(m, 13), side(m, 13))
	require.NoError(t, err)
	for k, v := range d {
		assert.Zero(t, v, k)
	}
	assert.Len(t, d, 3)
}

func TestComputeAntisymmetric(t *testing.T) {
	a := map[string]int64{"x": 3, "y": 7, "z": 1}
	b := map[string]int64{"x": 11, "w": 2, "z": 5}

	ab, err := Compute(side(a, 17), side(b, 29))
	require.NoError(t, err)
	ba, err := Compute(side(b, 29), side(a, 17))
	require.NoError(t, err)

	require.Equal(t, len(ab), len(ba))
	for k, v := range ab {
		assert.Equal(t, -v, ba[k], k)
	}
}

func TestComputeDoesNotModifyInputs(t *testing.T) {
	a := map[string]int64{"x": 3}
	b := map[string]int64{"y": 4}
	_, err := Compute(side(a, 3), side(b, 4))
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"x": 3}, a)
	assert.Equal(t, map[string]int64{"y": 4}, b)
}

func TestComputeZeroTotal(t *testing.T) {
	m := map[string]int64{}
	_, err := Compute(side(m, 0), side(map[string]int64{"x": 1}, 1))
	assert.ErrorIs(t, err, ErrInvalidProfile)

	_, err = Compute(side(map[string]int64{"x": 1}, 1), side(m, 0))
	assert.ErrorIs(t, err, ErrInvalidProfile)
}

func TestComputeEqualShares(t *testing.T) {
	// work is 100% of both traces even though raw weights differ.
	d, err := Compute(
		side(map[string]int64{"work": 5}, 5),
		side(map[string]int64{"work": 8}, 8),
	)
	require.NoError(t, err)
	assert.Equal(t, 0.0, d["work"])
}

func TestClassify(t *testing.T) {
	tests := []struct {
		delta float64
		want  Severity
	}{
		{0, SeverityNone},
		{-0.4, SeverityNone},
		{1.5, SeverityMinor},
		{-3, SeverityModerate},
		{7.5, SeverityRegress},
		{-12, SeverityImprovement},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.delta), tt.delta)
	}
}
