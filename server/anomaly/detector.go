package anomaly

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/san-kum/sentinel-core/server/models"
	"go.uber.org/zap"
)

// Number of accumulated samples per hour slot that triggers a retrain.
const retrainBatchSize = 100

// Label applied when a statistical deviation is the only anomaly signal.
const statisticalAnomalyType = "StatisticalAnomaly"

// Detector maintains 24 hourly baseline models for one camera. All methods
// are safe for concurrent use from multiple frame pipelines.
type Detector struct {
	cameraID  string
	dataPath  string
	threshold float64
	learning  bool

	models  [24]*GaussianModel
	buffers [24][]FeatureVector

	mutex  sync.Mutex
	logger *zap.Logger
}

func NewDetector(cameraID, dataPath string, threshold float64, enableLearning bool, logger *zap.Logger) *Detector {
	d := &Detector{
		cameraID:  cameraID,
		dataPath:  dataPath,
		threshold: threshold,
		learning:  enableLearning,
		logger:    logger,
	}
	for h := range d.models {
		d.models[h] = NewGaussianModel()
	}

	if err := d.LoadModels(); err != nil {
		logger.Info("No persisted baseline models loaded",
			zap.String("camera_id", cameraID),
			zap.Error(err))
	}

	return d
}

// AddToBaseline accumulates an observation for learning. When an hour slot
// reaches the retrain batch size its model is retrained and all trained
// models are persisted.
func (d *Detector) AddToBaseline(result *models.FrameAnalysisResult) {
	if !d.isLearning() {
		return
	}

	at := result.Timestamp()
	features := ExtractFeatures(result, at)
	hour := at.Hour()

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.buffers[hour] = append(d.buffers[hour], features)
	if len(d.buffers[hour]) < retrainBatchSize {
		return
	}

	if err := d.models[hour].Train(d.buffers[hour]); err != nil {
		d.logger.Warn("Baseline training skipped",
			zap.String("camera_id", d.cameraID),
			zap.Int("hour", hour),
			zap.Error(err))
		return
	}
	d.buffers[hour] = nil

	d.logger.Info("Baseline model retrained",
		zap.String("camera_id", d.cameraID),
		zap.Int("hour", hour))

	if err := d.saveModelsLocked(); err != nil {
		d.logger.Error("Failed to persist baseline models",
			zap.String("camera_id", d.cameraID),
			zap.Error(err))
	}
}

// DetectAnomaly scores an observation against the hour's baseline model and
// annotates the result in place. An untrained hour reports not-anomalous.
func (d *Detector) DetectAnomaly(result *models.FrameAnalysisResult) bool {
	at := result.Timestamp()
	features := ExtractFeatures(result, at)
	hour := at.Hour()

	d.mutex.Lock()
	model := d.models[hour]
	threshold := d.threshold
	score := model.Score(features)
	trained := model.IsTrained()
	d.mutex.Unlock()

	if !trained {
		return false
	}

	result.RaiseAnomalyScore(score)

	if score > threshold {
		result.IsAnomaly = true
		if result.AnomalyType == "" {
			result.AnomalyType = statisticalAnomalyType
			result.AnomalyDescription = fmt.Sprintf(
				"Activity deviates from the learned baseline for hour %d (score %.2f)", hour, score)
		}
		return true
	}

	return false
}

// ScoreAt scores a raw feature vector against a specific hour slot.
func (d *Detector) ScoreAt(hour int, features FeatureVector) (float64, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	model := d.models[hour%24]
	return model.Score(features), model.IsTrained()
}

// TrainHour force-trains one hour slot with the given samples.
func (d *Detector) TrainHour(hour int, samples []FeatureVector) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.models[hour%24].Train(samples)
}

// ResetBaseline discards all trained models and accumulation buffers.
// Calling it on an already-clean detector is a no-op.
func (d *Detector) ResetBaseline() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for h := range d.models {
		d.models[h] = NewGaussianModel()
		d.buffers[h] = nil
	}

	d.logger.Info("Baseline reset", zap.String("camera_id", d.cameraID))
}

// SetThreshold updates the anomaly threshold, clamped to [0,1].
func (d *Detector) SetThreshold(threshold float64) {
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}

	d.mutex.Lock()
	d.threshold = threshold
	d.mutex.Unlock()
}

// SetLearning toggles baseline accumulation.
func (d *Detector) SetLearning(enabled bool) {
	d.mutex.Lock()
	d.learning = enabled
	d.mutex.Unlock()
}

func (d *Detector) isLearning() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.learning
}

// TrainedHours returns which hour slots currently hold a trained model.
func (d *Detector) TrainedHours() []int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	var hours []int
	for h, m := range d.models {
		if m.IsTrained() {
			hours = append(hours, h)
		}
	}
	return hours
}

func (d *Detector) modelDir() string {
	return filepath.Join(d.dataPath, "models", d.cameraID)
}

func (d *Detector) modelFile(hour int) string {
	return filepath.Join(d.modelDir(), fmt.Sprintf("hour_%02d.json", hour))
}

// SaveModels persists every trained hour slot to its own file.
func (d *Detector) SaveModels() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.saveModelsLocked()
}

func (d *Detector) saveModelsLocked() error {
	if err := os.MkdirAll(d.modelDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	for h, m := range d.models {
		if !m.IsTrained() {
			continue
		}
		if err := m.Save(d.modelFile(h)); err != nil {
			return fmt.Errorf("hour %d: %w", h, err)
		}
	}
	return nil
}

// LoadModels loads any persisted hour models. Missing files are skipped;
// malformed files are logged and the slot stays untrained.
func (d *Detector) LoadModels() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	loaded := 0
	for h := range d.models {
		model := NewGaussianModel()
		err := model.Load(d.modelFile(h))
		if err != nil {
			if !os.IsNotExist(err) {
				d.logger.Warn("Skipping malformed baseline model",
					zap.String("camera_id", d.cameraID),
					zap.Int("hour", h),
					zap.Error(err))
			}
			continue
		}
		d.models[h] = model
		loaded++
	}

	if loaded == 0 {
		return fmt.Errorf("no baseline models found for camera %s", d.cameraID)
	}

	d.logger.Info("Baseline models loaded",
		zap.String("camera_id", d.cameraID),
		zap.Int("hours", loaded))
	return nil
}

// PendingSamples reports how many samples are buffered for an hour slot.
func (d *Detector) PendingSamples(hour int) int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.buffers[hour%24])
}
