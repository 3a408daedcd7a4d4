package strategy

import (
	"testing"
	"time"

	"github.com/san-kum/sentinel-core/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func subjectWithTrack(records ...models.PositionRecord) *models.TrackedSubject {
	return &models.TrackedSubject{
		ID:        "SUB-test",
		TrackID:   "trk-1",
		Type:      "person",
		Positions: records,
		Active:    true,
	}
}

func record(cameraID string, x, y float64, atUs int64) models.PositionRecord {
	return models.PositionRecord{
		CameraID:    cameraID,
		Position:    models.Point{X: x, Y: y},
		TimestampUs: atUs,
		Confidence:  0.9,
	}
}

func TestPredictNextPosition_NeedsTwoRecords(t *testing.T) {
	subject := subjectWithTrack(record("cam-a", 0.5, 0.5, 0))
	_, ok := PredictNextPosition(subject, 1.0)
	assert.False(t, ok)
}

func TestPredictNextPosition_LinearExtrapolation(t *testing.T) {
	base := time.Now().UnixMicro()
	subject := subjectWithTrack(
		record("cam-a", 0.4, 0.5, base),
		record("cam-a", 0.5, 0.5, base+1_000_000),
	)

	predicted, ok := PredictNextPosition(subject, 2.0)
	require.True(t, ok)
	assert.InDelta(t, 0.7, predicted.X, 1e-9)
	assert.InDelta(t, 0.5, predicted.Y, 1e-9)
}

func TestPredictNextPosition_PrefersSameCameraPair(t *testing.T) {
	base := time.Now().UnixMicro()
	subject := subjectWithTrack(
		record("cam-a", 0.2, 0.5, base),
		record("cam-b", 0.9, 0.9, base+500_000),
		record("cam-a", 0.3, 0.5, base+1_000_000),
	)

	// Velocity comes from the cam-a pair: 0.1 x-units per second.
	predicted, ok := PredictNextPosition(subject, 1.0)
	require.True(t, ok)
	assert.InDelta(t, 0.4, predicted.X, 1e-9)
	assert.InDelta(t, 0.5, predicted.Y, 1e-9)
}

func TestPredictNextPosition_ClampsToFrame(t *testing.T) {
	base := time.Now().UnixMicro()
	subject := subjectWithTrack(
		record("cam-a", 0.1, 0.5, base),
		record("cam-a", 0.9, 0.5, base+1_000),
	)

	predicted, ok := PredictNextPosition(subject, 5.0)
	require.True(t, ok)
	assert.Equal(t, 1.0, predicted.X)
}

func TestPredictNextCameras_DirectionalFilter(t *testing.T) {
	m := NewManager(zap.NewNop())
	m.RegisterCamera(models.CameraInfo{
		ID:                "cam-a",
		Position:          models.Point{X: 10, Y: 0},
		AdjacentCameraIDs: []string{"cam-left", "cam-right"},
		Active:            true,
	})
	m.RegisterCamera(models.CameraInfo{
		ID:       "cam-left",
		Position: models.Point{X: 5, Y: 0},
		Active:   true,
	})
	m.RegisterCamera(models.CameraInfo{
		ID:       "cam-right",
		Position: models.Point{X: 15, Y: 0},
		Active:   true,
	})

	base := time.Now().UnixMicro()
	subject := subjectWithTrack(
		record("cam-a", 0.3, 0.5, base),
		record("cam-a", 0.15, 0.5, base+1_000_000),
	)

	// Heading left, predicted past the left edge: only cam-left qualifies.
	candidates := m.PredictNextCameras(subject, 1.0)
	assert.Equal(t, []string{"cam-left"}, candidates)
}

func TestPredictNextCameras_NoEdgeNoPrediction(t *testing.T) {
	m := NewManager(zap.NewNop())
	m.RegisterCamera(models.CameraInfo{
		ID:                "cam-a",
		AdjacentCameraIDs: []string{"cam-b"},
		Active:            true,
	})
	m.RegisterCamera(models.CameraInfo{ID: "cam-b", Active: true})

	base := time.Now().UnixMicro()
	subject := subjectWithTrack(
		record("cam-a", 0.5, 0.5, base),
		record("cam-a", 0.51, 0.5, base+1_000_000),
	)

	assert.Nil(t, m.PredictNextCameras(subject, 1.0))
}

func TestGeneratePlan_DefaultStrategy(t *testing.T) {
	m := NewManager(zap.NewNop())
	m.RegisterCamera(models.CameraInfo{
		ID:                "cam-a",
		AdjacentCameraIDs: []string{"cam-b", "cam-c"},
		Active:            true,
	})

	incident := m.CreateIncident(models.IncidentIntrusion, models.SeverityHigh, "cam-a", "fence breach")
	planID, err := m.GeneratePlan(incident.ID)
	require.NoError(t, err)
	require.NotEmpty(t, planID)

	plans := m.GetActivePlans()
	require.Len(t, plans, 1)
	plan := plans[0]

	require.Len(t, plan.Strategies, 1)
	strategy := plan.Strategies[0]
	assert.Equal(t, models.MonitoringActive, strategy.Mode)
	assert.Equal(t, 0.7, strategy.PriorityScore)
	assert.Equal(t, []string{"cam-a", "cam-b", "cam-c"}, strategy.CameraIDs)
	assert.Equal(t, 30*time.Minute, strategy.Duration)
	assert.Equal(t, 5, strategy.SamplingRate)
	assert.True(t, strategy.EnablePrediction)
	assert.True(t, strategy.AlertOnLoss)
	assert.True(t, strategy.CrossCameraTracking)

	require.NotEmpty(t, plan.Actions)
	for i, action := range plan.Actions {
		assert.Equal(t, 10-i, action.Priority)
		if i > 0 {
			gap := action.DueAt.Sub(plan.Actions[i-1].DueAt)
			assert.Equal(t, 5*time.Minute, gap)
		}
	}
}

func TestGeneratePlan_UnknownIncident(t *testing.T) {
	m := NewManager(zap.NewNop())
	_, err := m.GeneratePlan("INC-missing")
	assert.Error(t, err)
}
