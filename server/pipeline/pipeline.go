package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/san-kum/sentinel-core/server/cache"
	"github.com/san-kum/sentinel-core/server/cognitive"
	"github.com/san-kum/sentinel-core/server/config"
	"github.com/san-kum/sentinel-core/server/metrics"
	"github.com/san-kum/sentinel-core/server/models"
	"github.com/san-kum/sentinel-core/server/response"
	"github.com/san-kum/sentinel-core/server/strategy"
	"go.uber.org/zap"
)

// EventHooks lets the outer surface (websocket stream) observe the frame
// path without being part of it.
type EventHooks struct {
	OnObjectReport     func(cameraID string, result *models.FrameAnalysisResult)
	OnAnomalyConfirmed func(cameraID string, result *models.FrameAnalysisResult)
}

// Pipeline orchestrates the per-frame path: heuristic and statistical
// analysis, subject correlation, verification, and cognitive ingestion.
// One processor per camera; shared strategy manager and cognitive system.
type Pipeline struct {
	configs   *config.Service
	strategy  *strategy.Manager
	cognitive *cognitive.System
	metrics   *metrics.Metrics
	store     cache.Cache

	processors map[string]*processor
	mutex      sync.Mutex

	hooks    EventHooks
	response config.ResponseConfig

	dataPath string
	logger   *zap.Logger
}

func New(configs *config.Service, strategyMgr *strategy.Manager, cognitiveSys *cognitive.System,
	m *metrics.Metrics, store cache.Cache, dataPath string, responseCfg config.ResponseConfig,
	logger *zap.Logger) *Pipeline {
	return &Pipeline{
		configs:    configs,
		strategy:   strategyMgr,
		cognitive:  cognitiveSys,
		metrics:    m,
		store:      store,
		processors: make(map[string]*processor),
		response:   responseCfg,
		dataPath:   dataPath,
		logger:     logger,
	}
}

// SetEventHooks registers outer-surface observers. Must be called before
// the first observation flows.
func (p *Pipeline) SetEventHooks(hooks EventHooks) {
	p.hooks = hooks
}

// ProcessObservation runs one observation through the full path. Safe for
// concurrent calls from multiple camera feeds.
func (p *Pipeline) ProcessObservation(cameraID string, result *models.FrameAnalysisResult) error {
	if cameraID == "" {
		return fmt.Errorf("camera id is required")
	}
	if result == nil {
		return fmt.Errorf("observation is required")
	}

	proc := p.processor(cameraID)
	proc.analyze(result)

	p.strategy.ProcessAnalysisResult(cameraID, result)

	if result.IsAnomaly {
		p.metrics.AnomaliesDetected.WithLabelValues(cameraID, result.AnomalyType).Inc()
		proc.gate.ProcessAnomaly(result)
	}

	p.cognitive.ProcessAnalysisResult(cameraID, result)

	if len(result.Objects) > 0 && p.hooks.OnObjectReport != nil {
		p.hooks.OnObjectReport(cameraID, result)
	}

	p.metrics.FramesProcessed.WithLabelValues(cameraID).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.store.SetWithTTL(ctx, cache.GenerateCacheKey("latest", cameraID), result, 5*time.Minute); err != nil {
		p.logger.Warn("Failed to cache observation", zap.String("camera_id", cameraID), zap.Error(err))
	}

	return nil
}

// LatestObservation returns the most recent cached observation for a
// camera, if one is present.
func (p *Pipeline) LatestObservation(cameraID string) (*models.FrameAnalysisResult, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var value any
	if err := p.store.Get(ctx, cache.GenerateCacheKey("latest", cameraID), &value); err != nil {
		return nil, false
	}
	result, ok := value.(*models.FrameAnalysisResult)
	return result, ok
}

// processor returns the per-camera processor, creating it (with its gate
// wired into the cognitive core) on first use.
func (p *Pipeline) processor(cameraID string) *processor {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if proc, ok := p.processors[cameraID]; ok {
		return proc
	}

	cfg := p.configs.DeviceConfig(cameraID)

	gate := response.NewGate(cameraID, p.logger)
	p.registerCallOuts(gate)
	gate.SetEventCallback(func(camID string, result *models.FrameAnalysisResult) {
		p.metrics.AnomaliesConfirmed.WithLabelValues(camID).Inc()
		p.cognitive.OnAnomalyConfirmed(camID, result)
		if p.hooks.OnAnomalyConfirmed != nil {
			p.hooks.OnAnomalyConfirmed(camID, result)
		}
	})

	proc := newProcessor(cameraID, cfg, p.dataPath, gate, p.logger)
	p.processors[cameraID] = proc

	p.logger.Info("Camera pipeline initialized", zap.String("camera_id", cameraID))
	return proc
}

// Anomaly types that warrant an alarm call, not just a notification.
var callOutAnomalyTypes = []string{"UnknownVisitor", "Intrusion"}

// registerCallOuts installs the configured outbound response actions on a
// freshly built gate: the webhook for every anomaly type, the SIP alarm
// call for high-priority types only.
func (p *Pipeline) registerCallOuts(gate *response.Gate) {
	if p.response.WebhookURL != "" {
		gate.AddAction("default", &response.Action{
			Type:        response.ActionHTTPRequest,
			Name:        "notify-webhook",
			Description: "Deliver the confirmed anomaly to the notification webhook",
			Target:      p.response.WebhookURL,
			Priority:    5,
		})
	}

	if p.response.EnableSIP && p.response.SIPNumber != "" {
		for _, anomalyType := range callOutAnomalyTypes {
			gate.AddAction(anomalyType, &response.Action{
				Type:        response.ActionSIPCall,
				Name:        "alarm-call",
				Description: "Place an alarm call for a high-priority anomaly",
				Target:      p.response.SIPNumber,
				Priority:    8,
			})
		}
	}
}

// ApplyDeviceConfig pushes an updated device config into the running
// processor for that camera.
func (p *Pipeline) ApplyDeviceConfig(cfg *config.DeviceConfig) {
	p.mutex.Lock()
	proc, ok := p.processors[cfg.DeviceID]
	p.mutex.Unlock()

	if ok {
		proc.applyConfig(cfg)
	}
}

// ResetBaseline clears the learned baseline for one camera.
func (p *Pipeline) ResetBaseline(cameraID string) {
	p.processor(cameraID).detector.ResetBaseline()
}

// Gate exposes a camera's verification gate for response configuration.
func (p *Pipeline) Gate(cameraID string) *response.Gate {
	return p.processor(cameraID).gate
}

// Detector exposes a camera's anomaly detector for admin introspection.
func (p *Pipeline) Detector(cameraID string) interface{ TrainedHours() []int } {
	return p.processor(cameraID).detector
}

// Shutdown persists all trained baseline models.
func (p *Pipeline) Shutdown() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var firstErr error
	for cameraID, proc := range p.processors {
		if err := proc.detector.SaveModels(); err != nil {
			p.logger.Error("Failed to save baseline models",
				zap.String("camera_id", cameraID),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
