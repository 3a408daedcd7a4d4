package pipeline

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/san-kum/sentinel-core/server/cache"
	"github.com/san-kum/sentinel-core/server/cognitive"
	"github.com/san-kum/sentinel-core/server/config"
	"github.com/san-kum/sentinel-core/server/metrics"
	"github.com/san-kum/sentinel-core/server/models"
	"github.com/san-kum/sentinel-core/server/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPipeline(t *testing.T, responseCfg config.ResponseConfig) *Pipeline {
	t.Helper()
	logger := zap.NewNop()

	store := cache.NewMemoryCache(100, time.Minute, logger)
	t.Cleanup(func() { store.Close() })

	strategyMgr := strategy.NewManager(logger)
	cognitiveSys := cognitive.NewSystem(strategyMgr, nil, time.Minute, logger)
	t.Cleanup(func() { cognitiveSys.Shutdown(2 * time.Second) })

	return New(config.NewService(t.TempDir(), logger), strategyMgr, cognitiveSys,
		metrics.New(nil), store, t.TempDir(), responseCfg, logger)
}

func TestProcessObservation_WebhookFiresOnConfirmedAnomaly(t *testing.T) {
	var mu sync.Mutex
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := testPipeline(t, config.ResponseConfig{WebhookURL: server.URL})

	// An after-hours frame with heavy motion and multiple persons scores
	// past the immediate-verification bar.
	at := afterHours()
	result := &models.FrameAnalysisResult{
		TimestampUs: at.UnixMicro(),
		MotionInfo:  models.MotionInfo{OverallMotionLevel: 0.9},
		Objects: []models.DetectedObject{
			{TypeID: "person", TrackID: "trk-1", Confidence: 0.9, TimestampUs: at.UnixMicro()},
			{TypeID: "person", TrackID: "trk-2", Confidence: 0.9, TimestampUs: at.UnixMicro()},
		},
	}
	require.NoError(t, p.ProcessObservation("cam-1", result))
	require.True(t, result.IsAnomaly)

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, received, "webhook was not called")
	assert.Equal(t, "cam-1", received["camera_id"])
	assert.Equal(t, "notify-webhook", received["action_name"])
}

func TestProcessObservation_RequiresCameraID(t *testing.T) {
	p := testPipeline(t, config.ResponseConfig{})

	assert.Error(t, p.ProcessObservation("", &models.FrameAnalysisResult{}))
	assert.Error(t, p.ProcessObservation("cam-1", nil))
}
