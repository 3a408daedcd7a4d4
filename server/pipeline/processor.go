package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/san-kum/sentinel-core/server/anomaly"
	"github.com/san-kum/sentinel-core/server/config"
	"github.com/san-kum/sentinel-core/server/models"
	"github.com/san-kum/sentinel-core/server/response"
	"go.uber.org/zap"
)

// processor holds the per-camera analysis state: the baseline detector, the
// response gate, and the unknown-visitor tracking clocks.
type processor struct {
	cameraID string
	cfg      *config.DeviceConfig
	detector *anomaly.Detector
	gate     *response.Gate

	unknownSince map[string]time.Time

	mutex  sync.Mutex
	logger *zap.Logger
}

func newProcessor(cameraID string, cfg *config.DeviceConfig, dataPath string, gate *response.Gate, logger *zap.Logger) *processor {
	return &processor{
		cameraID:     cameraID,
		cfg:          cfg,
		detector:     anomaly.NewDetector(cameraID, dataPath, cfg.AnomalyThreshold, cfg.EnableLearning, logger),
		gate:         gate,
		unknownSince: make(map[string]time.Time),
		logger:       logger,
	}
}

// analyze runs the heuristic scene scoring, unknown-visitor detection and
// statistical baseline detection over one observation, annotating it in
// place.
func (p *processor) analyze(result *models.FrameAnalysisResult) {
	p.mutex.Lock()
	cfg := p.cfg
	p.mutex.Unlock()

	heuristic := p.sceneScore(result, cfg)
	result.RaiseAnomalyScore(heuristic)

	unknownVisitor := p.detectUnknownVisitors(result, cfg)

	p.detector.AddToBaseline(result)
	p.detector.DetectAnomaly(result)

	if unknownVisitor {
		result.IsAnomaly = true
		result.AnomalyType = "UnknownVisitor"
		result.AnomalyDescription = "Unknown visitor detected for extended period"
	} else if !result.IsAnomaly && result.AnomalyScore > cfg.AnomalyThreshold {
		result.IsAnomaly = true
		if result.AnomalyType == "" {
			result.AnomalyType = "GeneralAnomaly"
			result.AnomalyDescription = "General unusual activity detected"
		}
	}
}

// sceneScore is the rule-based activity score: motion above the adaptive
// threshold, object counts weighted by schedule, and an after-hours bump.
func (p *processor) sceneScore(result *models.FrameAnalysisResult, cfg *config.DeviceConfig) float64 {
	motionThreshold := 0.01 + (1.0-cfg.AnomalyThreshold)*0.1

	score := 0.0
	motion := result.MotionInfo.OverallMotionLevel
	if motion > motionThreshold {
		score += motion * 0.5
	}

	persons, unknown := result.PersonCount()
	vehicles := result.VehicleCount()

	at := result.Timestamp()
	secondOfDay := at.Hour()*3600 + at.Minute()*60 + at.Second()
	business := cfg.InBusinessHours(secondOfDay)

	if business {
		score += float64(unknown) * 0.05
	} else {
		score += float64(persons) * 0.15
		score += float64(vehicles) * 0.1
		if persons > 0 || motion > 0.05 {
			score += 0.3 + motion
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// detectUnknownVisitors flags unknown-recognition persons that stay past
// the configured threshold. Clocks start on first sight; departed tracks
// are pruned so a returning id starts over.
func (p *processor) detectUnknownVisitors(result *models.FrameAnalysisResult, cfg *config.DeviceConfig) bool {
	if !cfg.EnableUnknownVisitorDetection {
		return false
	}

	now := result.Timestamp()
	detected := false

	p.mutex.Lock()
	defer p.mutex.Unlock()

	present := make(map[string]bool, len(result.Objects))
	for i := range result.Objects {
		obj := &result.Objects[i]
		if obj.TrackID != "" {
			present[obj.TrackID] = true
		}

		if obj.TypeID != "person" || obj.TrackID == "" {
			continue
		}
		if obj.Attributes["recognitionStatus"] != "unknown" {
			continue
		}

		since, tracked := p.unknownSince[obj.TrackID]
		if !tracked {
			p.unknownSince[obj.TrackID] = now
			continue
		}

		duration := now.Sub(since)
		if duration > time.Duration(cfg.UnknownVisitorThresholdSecs)*time.Second {
			detected = true
			if obj.Attributes == nil {
				obj.Attributes = make(map[string]string)
			}
			obj.Attributes["durationSecs"] = fmt.Sprintf("%d", int(duration.Seconds()))
		}
	}

	for trackID := range p.unknownSince {
		if !present[trackID] {
			delete(p.unknownSince, trackID)
		}
	}

	return detected
}

// applyConfig installs a new device config snapshot.
func (p *processor) applyConfig(cfg *config.DeviceConfig) {
	p.mutex.Lock()
	p.cfg = cfg
	p.mutex.Unlock()

	p.detector.SetThreshold(cfg.AnomalyThreshold)
	p.detector.SetLearning(cfg.EnableLearning)
}
