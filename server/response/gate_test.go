package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/san-kum/sentinel-core/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func anomaly(anomalyType string, score float64) *models.FrameAnalysisResult {
	return &models.FrameAnalysisResult{
		TimestampUs:  time.Now().UnixMicro(),
		AnomalyScore: score,
		AnomalyType:  anomalyType,
		IsAnomaly:    true,
	}
}

func TestProcessAnomaly_IgnoresNonAnomalies(t *testing.T) {
	g := NewGate("cam-1", zap.NewNop())

	assert.False(t, g.ProcessAnomaly(&models.FrameAnalysisResult{}))
	assert.False(t, g.ProcessAnomaly(&models.FrameAnalysisResult{IsAnomaly: true}))
	assert.Empty(t, g.Trackers())
}

func TestVerify_HighScoreImmediate(t *testing.T) {
	g := NewGate("cam-1", zap.NewNop())
	assert.True(t, g.ProcessAnomaly(anomaly("Intrusion", 0.9)))
}

func TestVerify_MediumScoreNeedsTwoDetections(t *testing.T) {
	g := NewGate("cam-1", zap.NewNop())

	assert.False(t, g.ProcessAnomaly(anomaly("Intrusion", 0.75)))
	assert.True(t, g.ProcessAnomaly(anomaly("Intrusion", 0.75)))
}

func TestVerify_LowScoreNeedsThreeDetections(t *testing.T) {
	g := NewGate("cam-1", zap.NewNop())

	assert.False(t, g.ProcessAnomaly(anomaly("Loitering", 0.4)))
	assert.False(t, g.ProcessAnomaly(anomaly("Loitering", 0.4)))
	assert.True(t, g.ProcessAnomaly(anomaly("Loitering", 0.4)))
}

func TestVerify_Monotonic(t *testing.T) {
	g := NewGate("cam-1", zap.NewNop())

	require.True(t, g.ProcessAnomaly(anomaly("Intrusion", 0.9)))

	// A weaker follow-up detection stays verified.
	assert.True(t, g.ProcessAnomaly(anomaly("Intrusion", 0.2)))

	states := g.Trackers()
	require.Len(t, states, 1)
	assert.True(t, states[0].Verified)
	assert.Equal(t, 2, states[0].Consecutive)
}

func TestProcessAnomaly_RespondsOncePerOccurrence(t *testing.T) {
	g := NewGate("cam-1", zap.NewNop())

	var mu sync.Mutex
	fired := 0
	g.SetEventCallback(func(cameraID string, result *models.FrameAnalysisResult) {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	for i := 0; i < 5; i++ {
		g.ProcessAnomaly(anomaly("Intrusion", 0.9))
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fired)
}

func TestProcessAnomaly_IndependentTypes(t *testing.T) {
	g := NewGate("cam-1", zap.NewNop())

	var mu sync.Mutex
	var types []string
	g.SetEventCallback(func(cameraID string, result *models.FrameAnalysisResult) {
		mu.Lock()
		types = append(types, result.AnomalyType)
		mu.Unlock()
	})

	// Back-to-back verified anomalies of different types. Each type gets
	// its own copies of the built-in actions, so the first event's cooldown
	// must not swallow the second type's event.
	require.True(t, g.ProcessAnomaly(anomaly("Intrusion", 0.9)))
	require.True(t, g.ProcessAnomaly(anomaly("UnknownVisitor", 0.9)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Intrusion", "UnknownVisitor"}, types)

	states := g.Trackers()
	assert.Len(t, states, 2)
}

func TestTriggerResponses_CooldownWindow(t *testing.T) {
	g := NewGate("cam-1", zap.NewNop())

	var mu sync.Mutex
	events := 0
	g.SetEventCallback(func(cameraID string, result *models.FrameAnalysisResult) {
		mu.Lock()
		events++
		mu.Unlock()
	})

	expireTracker := func() {
		g.mutex.Lock()
		g.pruneTrackers(time.Now().Add(trackerRetention + time.Second))
		g.mutex.Unlock()
	}
	eventCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return events
	}

	require.True(t, g.ProcessAnomaly(anomaly("Intrusion", 0.9)))
	assert.Equal(t, 1, eventCount())

	// A fresh occurrence of the same type inside the cooldown window is
	// verified but its event is suppressed.
	expireTracker()
	require.True(t, g.ProcessAnomaly(anomaly("Intrusion", 0.9)))
	assert.Equal(t, 1, eventCount())

	// Once the cooldown has elapsed the event fires again.
	g.mutex.Lock()
	for _, a := range g.actions["Intrusion"] {
		a.lastTriggered = a.lastTriggered.Add(-defaultCooldown - time.Second)
	}
	g.mutex.Unlock()

	expireTracker()
	require.True(t, g.ProcessAnomaly(anomaly("Intrusion", 0.9)))
	assert.Equal(t, 2, eventCount())
}

func TestAddAction_CooldownDefaults(t *testing.T) {
	g := NewGate("cam-1", zap.NewNop())

	call := &Action{Type: ActionSIPCall, Name: "call-out", Target: "sip:100"}
	g.AddAction("Intrusion", call)
	assert.Equal(t, 300*time.Second, call.Cooldown)

	hook := &Action{Type: ActionHTTPRequest, Name: "webhook", Target: "http://example.invalid"}
	g.AddAction("Intrusion", hook)
	assert.Equal(t, 60*time.Second, hook.Cooldown)
}

func TestRemoveAction(t *testing.T) {
	g := NewGate("cam-1", zap.NewNop())
	g.AddAction("Intrusion", &Action{Type: ActionLogOnly, Name: "extra-log"})
	g.RemoveAction("Intrusion", "extra-log")

	g.mutex.Lock()
	defer g.mutex.Unlock()
	require.Len(t, g.actions["Intrusion"], 2, "the default copies stay in place")
	for _, a := range g.actions["Intrusion"] {
		assert.NotEqual(t, "extra-log", a.Name)
	}
}

func TestTriggerResponses_HTTPAction(t *testing.T) {
	var mu sync.Mutex
	var received notification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	g := NewGate("cam-1", zap.NewNop())
	g.AddAction("Intrusion", &Action{
		Type:     ActionHTTPRequest,
		Name:     "notify-webhook",
		Target:   server.URL,
		Payload:  "zone-3",
		Priority: 5,
	})

	require.True(t, g.ProcessAnomaly(anomaly("Intrusion", 0.9)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "cam-1", received.CameraID)
	assert.Equal(t, "notify-webhook", received.ActionName)
	assert.Equal(t, "zone-3", received.Payload)
	require.NotNil(t, received.Observation)
	assert.Equal(t, "Intrusion", received.Observation.AnomalyType)
}

func TestPruneTrackers(t *testing.T) {
	g := NewGate("cam-1", zap.NewNop())
	g.ProcessAnomaly(anomaly("Loitering", 0.4))
	require.Len(t, g.Trackers(), 1)

	g.mutex.Lock()
	g.pruneTrackers(time.Now().Add(121 * time.Second))
	g.mutex.Unlock()

	assert.Empty(t, g.Trackers())
}

func TestDispatcher_RejectsUnknownType(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	err := d.Execute(&Action{Type: "TELEPORT"}, "cam-1", anomaly("Intrusion", 0.9))
	assert.Error(t, err)
}
