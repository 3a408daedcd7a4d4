package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/san-kum/sentinel-core/server/cache"
	"github.com/san-kum/sentinel-core/server/cognitive"
	"github.com/san-kum/sentinel-core/server/config"
	"github.com/san-kum/sentinel-core/server/metrics"
	"github.com/san-kum/sentinel-core/server/models"
	"github.com/san-kum/sentinel-core/server/pipeline"
	"github.com/san-kum/sentinel-core/server/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	logger := zap.NewNop()

	store := cache.NewMemoryCache(100, time.Minute, logger)
	t.Cleanup(func() { store.Close() })

	configs := config.NewService(t.TempDir(), logger)
	strategyMgr := strategy.NewManager(logger)
	cognitiveSys := cognitive.NewSystem(strategyMgr, nil, time.Minute, logger)
	t.Cleanup(func() { cognitiveSys.Shutdown(2 * time.Second) })

	pipe := pipeline.New(configs, strategyMgr, cognitiveSys, metrics.New(nil), store, t.TempDir(),
		config.ResponseConfig{}, logger)
	h := NewAPIHandler(pipe, strategyMgr, cognitiveSys, configs, logger)

	r := gin.New()
	api := r.Group("/api/v1")
	api.POST("/cameras", h.RegisterCamera)
	api.POST("/cameras/:id/observations", h.IngestObservation)
	api.GET("/cameras/:id/observations/latest", h.GetLatestObservation)
	api.GET("/report", h.GetReport)
	api.GET("/incidents", h.GetIncidents)
	api.GET("/subjects", h.GetSubjects)
	api.GET("/plans", h.GetPlans)
	api.GET("/admin/cameras/:id/config", h.GetDeviceConfig)
	api.PUT("/admin/cameras/:id/config", h.UpdateDeviceConfig)
	api.POST("/admin/cameras/:id/baseline/reset", h.ResetBaseline)
	api.GET("/admin/cognitive/status", h.CognitiveStatus)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

func TestIngestObservation_ReturnsVerdict(t *testing.T) {
	r := testRouter(t)

	quiet := models.FrameAnalysisResult{
		TimestampUs: time.Date(2026, 1, 5, 12, 0, 0, 0, time.Local).UnixMicro(),
	}
	w, envelope := doJSON(t, r, http.MethodPost, "/api/v1/cameras/cam-1/observations", quiet)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, envelope["success"])

	data := envelope["data"].(map[string]any)
	assert.Equal(t, "cam-1", data["camera_id"])
	assert.Equal(t, false, data["anomaly"])
}

func TestIngestObservation_RejectsMalformedBody(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cameras/cam-1/observations",
		bytes.NewReader([]byte("{not json")))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_observation")
}

func TestRegisterCamera(t *testing.T) {
	r := testRouter(t)

	w, envelope := doJSON(t, r, http.MethodPost, "/api/v1/cameras",
		models.CameraInfo{ID: "cam-1", Name: "Front entrance"})
	require.Equal(t, http.StatusCreated, w.Code)

	data := envelope["data"].(map[string]any)
	assert.Equal(t, true, data["active"], "registered cameras start active")

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/cameras", models.CameraInfo{Name: "no id"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetLatestObservation(t *testing.T) {
	r := testRouter(t)

	w, _ := doJSON(t, r, http.MethodGet, "/api/v1/cameras/cam-1/observations/latest", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	quiet := models.FrameAnalysisResult{
		TimestampUs: time.Date(2026, 1, 5, 12, 0, 0, 0, time.Local).UnixMicro(),
	}
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/cameras/cam-1/observations", quiet)
	require.Equal(t, http.StatusOK, w.Code)

	w, envelope := doJSON(t, r, http.MethodGet, "/api/v1/cameras/cam-1/observations/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := envelope["data"].(map[string]any)
	assert.Equal(t, float64(quiet.TimestampUs), data["timestamp_us"])
}

func TestUpdateDeviceConfig_RoundTrip(t *testing.T) {
	r := testRouter(t)

	update := config.NewDeviceConfig("cam-1")
	update.AnomalyThreshold = 0.55
	w, _ := doJSON(t, r, http.MethodPut, "/api/v1/admin/cameras/cam-1/config", update)
	require.Equal(t, http.StatusOK, w.Code)

	w, envelope := doJSON(t, r, http.MethodGet, "/api/v1/admin/cameras/cam-1/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := envelope["data"].(map[string]any)
	assert.Equal(t, 0.55, data["anomaly_threshold"])
}

func TestUpdateDeviceConfig_RejectsInvalid(t *testing.T) {
	r := testRouter(t)

	update := config.NewDeviceConfig("cam-1")
	update.AnomalyThreshold = 5.0
	w, envelope := doJSON(t, r, http.MethodPut, "/api/v1/admin/cameras/cam-1/config", update)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, envelope["success"])
}

func TestResetBaseline(t *testing.T) {
	r := testRouter(t)

	w, envelope := doJSON(t, r, http.MethodPost, "/api/v1/admin/cameras/cam-1/baseline/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := envelope["data"].(map[string]any)
	assert.Equal(t, true, data["reset"])
}

func TestCognitiveStatus(t *testing.T) {
	r := testRouter(t)

	w, envelope := doJSON(t, r, http.MethodGet, "/api/v1/admin/cognitive/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := envelope["data"].(map[string]any)
	goals := data["goals"].([]any)
	assert.Len(t, goals, 2, "standing goals are seeded at startup")
}

func TestReadSurfaces_ReturnEnvelope(t *testing.T) {
	r := testRouter(t)

	for _, path := range []string{
		"/api/v1/report",
		"/api/v1/incidents",
		"/api/v1/subjects",
		"/api/v1/plans",
	} {
		w, envelope := doJSON(t, r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, true, envelope["success"], path)
		meta := envelope["meta"].(map[string]any)
		assert.NotEmpty(t, meta["request_id"], path)
	}
}
