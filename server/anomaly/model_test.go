package anomaly

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samples(rows ...[]float64) []FeatureVector {
	out := make([]FeatureVector, 0, len(rows))
	for _, row := range rows {
		out = append(out, FeatureVector{Values: row})
	}
	return out
}

func TestGaussianModel_TrainRejectsEmpty(t *testing.T) {
	m := NewGaussianModel()
	assert.Error(t, m.Train(nil))
	assert.False(t, m.IsTrained())
}

func TestGaussianModel_TrainRejectsInconsistentWidth(t *testing.T) {
	m := NewGaussianModel()
	err := m.Train(samples([]float64{1, 2}, []float64{1}))
	assert.Error(t, err)
	assert.False(t, m.IsTrained())
}

func TestGaussianModel_UntrainedScoresZero(t *testing.T) {
	m := NewGaussianModel()
	assert.Zero(t, m.Score(FeatureVector{Values: []float64{100, 100}}))
}

func TestGaussianModel_ConstantFeatureSkipped(t *testing.T) {
	m := NewGaussianModel()
	require.NoError(t, m.Train(samples(
		[]float64{5, 0.1},
		[]float64{5, 0.2},
		[]float64{5, 0.3},
	)))

	// First feature has zero variance; a wild value there must not
	// dominate the score.
	low := m.Score(FeatureVector{Values: []float64{999, 0.2}})
	high := m.Score(FeatureVector{Values: []float64{5, 5.0}})

	assert.Less(t, low, 0.1)
	assert.Greater(t, high, 0.9)
}

func TestGaussianModel_ScoreBounded(t *testing.T) {
	m := NewGaussianModel()
	require.NoError(t, m.Train(samples(
		[]float64{0.1},
		[]float64{0.2},
		[]float64{0.3},
	)))

	score := m.Score(FeatureVector{Values: []float64{1e9}})
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestGaussianModel_LoadRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	m := NewGaussianModel()
	assert.Error(t, m.Load(path))
	assert.False(t, m.IsTrained())

	mismatched := filepath.Join(dir, "mismatch.json")
	require.NoError(t, os.WriteFile(mismatched,
		[]byte(`{"mean":[1,2],"stddev":[1],"trained":true,"samples":3}`), 0o644))
	assert.Error(t, m.Load(mismatched))
	assert.False(t, m.IsTrained())
}

func TestExtractFeatures_Deterministic(t *testing.T) {
	at := localTime(14, 30, 0)
	result := observation(at, 0.25, 3, 1)
	result.Objects[0].Attributes = map[string]string{"recognitionStatus": "unknown"}

	fv := ExtractFeatures(result, at)
	require.Len(t, fv.Values, 6)

	decoded := fv.Decode()
	assert.Equal(t, 14*3600+30*60, decoded.SecondOfDay)
	assert.Equal(t, 0.25, decoded.MotionLevel)
	assert.Equal(t, 3, decoded.PersonCount)
	assert.Equal(t, 1, decoded.VehicleCount)
	assert.InDelta(t, 1.0/3.0, decoded.UnknownRatio, 1e-9)

	again := ExtractFeatures(result, at)
	assert.Equal(t, fv, again)
}
