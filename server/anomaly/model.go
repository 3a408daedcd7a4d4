package anomaly

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// stddev values at or below this are treated as constant features and
// skipped during scoring.
const minStddev = 1e-5

// GaussianModel is an independent per-feature Gaussian baseline. One model
// covers one hour-of-day slot for one camera.
type GaussianModel struct {
	Mean    []float64 `json:"mean"`
	Stddev  []float64 `json:"stddev"`
	Trained bool      `json:"trained"`
	Samples int       `json:"samples"`
}

func NewGaussianModel() *GaussianModel {
	return &GaussianModel{}
}

// Train fits the model to the given sample set. Training on an empty set is
// a no-op; the model keeps its previous state.
func (m *GaussianModel) Train(samples []FeatureVector) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples to train on")
	}

	width := len(samples[0].Values)
	mean := make([]float64, width)
	stddev := make([]float64, width)

	for _, s := range samples {
		if len(s.Values) != width {
			return fmt.Errorf("inconsistent feature width: got %d, want %d", len(s.Values), width)
		}
		for i, v := range s.Values {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float64(len(samples))
	}

	for _, s := range samples {
		for i, v := range s.Values {
			d := v - mean[i]
			stddev[i] += d * d
		}
	}
	for i := range stddev {
		stddev[i] = math.Sqrt(stddev[i] / float64(len(samples)))
	}

	m.Mean = mean
	m.Stddev = stddev
	m.Samples = len(samples)
	m.Trained = true
	return nil
}

// Score returns the normalized anomaly score in [0,1) for a feature vector.
// An untrained model scores everything as 0.
func (m *GaussianModel) Score(features FeatureVector) float64 {
	if !m.Trained || len(m.Mean) == 0 {
		return 0
	}

	sum := 0.0
	n := 0
	for i, v := range features.Values {
		if i >= len(m.Mean) {
			break
		}
		if m.Stddev[i] <= minStddev {
			continue
		}
		d := (v - m.Mean[i]) / m.Stddev[i]
		sum += d * d
		n++
	}

	if n == 0 {
		return 0
	}

	return 1.0 - math.Exp(-sum/(2.0*float64(n)))
}

func (m *GaussianModel) IsTrained() bool {
	return m.Trained
}

// Save writes the model to path as JSON.
func (m *GaussianModel) Save(path string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return nil
}

// Load reads a model from path. A malformed file leaves the model untrained
// and returns the parse error.
func (m *GaussianModel) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var loaded GaussianModel
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse model file: %w", err)
	}
	if len(loaded.Mean) != len(loaded.Stddev) {
		return fmt.Errorf("corrupt model file: mean/stddev width mismatch")
	}

	*m = loaded
	return nil
}
