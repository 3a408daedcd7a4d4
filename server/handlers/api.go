package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/san-kum/sentinel-core/server/cognitive"
	"github.com/san-kum/sentinel-core/server/config"
	"github.com/san-kum/sentinel-core/server/models"
	"github.com/san-kum/sentinel-core/server/pipeline"
	"github.com/san-kum/sentinel-core/server/strategy"
	"go.uber.org/zap"
)

type APIHandler struct {
	pipeline  *pipeline.Pipeline
	strategy  *strategy.Manager
	cognitive *cognitive.System
	configs   *config.Service
	logger    *zap.Logger
}

func NewAPIHandler(p *pipeline.Pipeline, s *strategy.Manager, c *cognitive.System,
	cfg *config.Service, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		pipeline:  p,
		strategy:  s,
		cognitive: c,
		configs:   cfg,
		logger:    logger,
	}
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, models.APIResponse{
		Success: status < 400,
		Data:    data,
		Meta: &models.ResponseMeta{
			RequestID: uuid.NewString(),
			Timestamp: time.Now(),
			Version:   "1.0",
		},
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.APIResponse{
		Success: false,
		Error:   &models.APIError{Code: code, Message: message},
		Meta: &models.ResponseMeta{
			RequestID: uuid.NewString(),
			Timestamp: time.Now(),
			Version:   "1.0",
		},
	})
}

// IngestObservation accepts one per-frame observation for a camera and
// runs it through the reasoning pipeline.
func (h *APIHandler) IngestObservation(c *gin.Context) {
	cameraID := c.Param("id")

	var result models.FrameAnalysisResult
	if err := c.ShouldBindJSON(&result); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_observation", err.Error())
		return
	}

	if result.TimestampUs == 0 {
		result.TimestampUs = time.Now().UnixMicro()
	}

	if err := h.pipeline.ProcessObservation(cameraID, &result); err != nil {
		h.logger.Error("Observation processing failed",
			zap.String("camera_id", cameraID),
			zap.Error(err))
		respondError(c, http.StatusInternalServerError, "processing_failed", err.Error())
		return
	}

	respond(c, http.StatusOK, gin.H{
		"camera_id":     cameraID,
		"anomaly":       result.IsAnomaly,
		"anomaly_type":  result.AnomalyType,
		"anomaly_score": result.AnomalyScore,
	})
}

// RegisterCamera adds a topology node.
func (h *APIHandler) RegisterCamera(c *gin.Context) {
	var info models.CameraInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_camera", err.Error())
		return
	}
	if info.ID == "" {
		respondError(c, http.StatusBadRequest, "invalid_camera", "camera id is required")
		return
	}

	info.Active = true
	h.strategy.RegisterCamera(info)
	respond(c, http.StatusCreated, info)
}

func (h *APIHandler) GetReport(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"report": h.strategy.GenerateSituationReport()})
}

func (h *APIHandler) GetIncidents(c *gin.Context) {
	respond(c, http.StatusOK, h.strategy.GetActiveIncidents())
}

func (h *APIHandler) GetSubjects(c *gin.Context) {
	respond(c, http.StatusOK, h.strategy.GetTrackedSubjects())
}

func (h *APIHandler) GetPlans(c *gin.Context) {
	respond(c, http.StatusOK, h.strategy.GetActivePlans())
}

// GetLatestObservation serves the most recent cached observation.
func (h *APIHandler) GetLatestObservation(c *gin.Context) {
	cameraID := c.Param("id")
	result, ok := h.pipeline.LatestObservation(cameraID)
	if !ok {
		respondError(c, http.StatusNotFound, "no_observation", "no recent observation for camera")
		return
	}
	respond(c, http.StatusOK, result)
}

func (h *APIHandler) GetDeviceConfig(c *gin.Context) {
	respond(c, http.StatusOK, h.configs.DeviceConfig(c.Param("id")))
}

// UpdateDeviceConfig stores a new device config and pushes it into the
// running pipeline.
func (h *APIHandler) UpdateDeviceConfig(c *gin.Context) {
	cameraID := c.Param("id")

	cfg := config.NewDeviceConfig(cameraID)
	if err := c.ShouldBindJSON(cfg); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_config", err.Error())
		return
	}
	cfg.DeviceID = cameraID

	if err := h.configs.UpdateDeviceConfig(cfg); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_config", err.Error())
		return
	}

	h.pipeline.ApplyDeviceConfig(cfg)
	respond(c, http.StatusOK, cfg)
}

// ResetBaseline clears the learned baseline models for a camera.
func (h *APIHandler) ResetBaseline(c *gin.Context) {
	cameraID := c.Param("id")
	h.pipeline.ResetBaseline(cameraID)
	h.logger.Info("Baseline reset requested", zap.String("camera_id", cameraID))
	respond(c, http.StatusOK, gin.H{"camera_id": cameraID, "reset": true})
}

// CognitiveStatus exposes the goal/action/queue snapshot for operators.
func (h *APIHandler) CognitiveStatus(c *gin.Context) {
	respond(c, http.StatusOK, h.cognitive.Status())
}
