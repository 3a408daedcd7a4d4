package strategy

import (
	"testing"
	"time"

	"github.com/san-kum/sentinel-core/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func personDetection(trackID string, x, y float64, at time.Time) models.DetectedObject {
	return models.DetectedObject{
		TypeID:      "person",
		Confidence:  0.9,
		TrackID:     trackID,
		TimestampUs: at.UnixMicro(),
		BoundingBox: models.BoundingBox{X: x - 0.05, Y: y - 0.05, Width: 0.1, Height: 0.1},
	}
}

func anomalousResult(objects []models.DetectedObject, score float64, anomalyType string) *models.FrameAnalysisResult {
	return &models.FrameAnalysisResult{
		TimestampUs:        time.Now().UnixMicro(),
		Objects:            objects,
		AnomalyScore:       score,
		AnomalyType:        anomalyType,
		AnomalyDescription: "test anomaly",
		IsAnomaly:          true,
	}
}

func TestUpdateTrackedSubject_MatchesByTrackIDOnly(t *testing.T) {
	m := NewManager(zap.NewNop())
	now := time.Now()

	m.ProcessAnalysisResult("cam-a", &models.FrameAnalysisResult{
		TimestampUs: now.UnixMicro(),
		Objects:     []models.DetectedObject{personDetection("trk-1", 0.5, 0.5, now)},
	})
	m.ProcessAnalysisResult("cam-a", &models.FrameAnalysisResult{
		TimestampUs: now.UnixMicro(),
		Objects: []models.DetectedObject{
			personDetection("trk-1", 0.6, 0.5, now),
			personDetection("trk-2", 0.6, 0.5, now),
		},
	})

	subjects := m.GetTrackedSubjects()
	require.Len(t, subjects, 2)

	var first *models.TrackedSubject
	for i := range subjects {
		if subjects[i].TrackID == "trk-1" {
			first = &subjects[i]
		}
	}
	require.NotNil(t, first)
	assert.Len(t, first.Positions, 2)
}

func TestUpdateTrackedSubject_UnknownRecognitionRaisesThreat(t *testing.T) {
	m := NewManager(zap.NewNop())
	now := time.Now()

	obj := personDetection("trk-1", 0.5, 0.5, now)
	obj.Attributes = map[string]string{"recognitionStatus": "unknown"}

	for i := 0; i < 3; i++ {
		m.ProcessAnalysisResult("cam-a", &models.FrameAnalysisResult{
			TimestampUs: now.UnixMicro(),
			Objects:     []models.DetectedObject{obj},
		})
	}

	subjects := m.GetTrackedSubjects()
	require.Len(t, subjects, 1)
	assert.InDelta(t, 0.15, subjects[0].ThreatScore, 1e-9)
	assert.Equal(t, "unknown", subjects[0].Attributes["recognitionStatus"])
}

func TestProcessAnalysisResult_AnomalyOpensIncidentAndPlan(t *testing.T) {
	m := NewManager(zap.NewNop())

	created := 0
	m.SetIncidentHook(func() { created++ })

	now := time.Now()
	m.ProcessAnalysisResult("cam-a", anomalousResult(
		[]models.DetectedObject{personDetection("trk-1", 0.5, 0.5, now)}, 0.9, "UnknownVisitor"))

	incidents := m.GetActiveIncidents()
	require.Len(t, incidents, 1)
	assert.Equal(t, models.IncidentUnknownSubject, incidents[0].Type)
	assert.Equal(t, models.SeverityCritical, incidents[0].Severity)
	assert.Equal(t, []string{"cam-a"}, incidents[0].CameraIDs)
	assert.Equal(t, 1, created)

	plans := m.GetActivePlans()
	require.Len(t, plans, 1)
	assert.Equal(t, incidents[0].ID, plans[0].IncidentID)
	assert.Equal(t, models.PlanActive, plans[0].Status)
}

func TestIncidentTypeMapping(t *testing.T) {
	cases := map[string]models.IncidentType{
		"UnknownVisitor":   models.IncidentUnknownSubject,
		"Loitering":        models.IncidentLoitering,
		"Intrusion":        models.IncidentIntrusion,
		"CrowdFormation":   models.IncidentCrowdFormation,
		"AbnormalMovement": models.IncidentUnusualMovement,
		"AbandonedObject":  models.IncidentAbandonedObject,
		"GeneralAnomaly":   models.IncidentSuspiciousBehavior,
		"":                 models.IncidentSuspiciousBehavior,
	}
	for anomalyType, want := range cases {
		assert.Equal(t, want, incidentTypeForAnomaly(anomalyType), "anomaly type %q", anomalyType)
	}
}

func TestIncidentThreatBoost_BySeverity(t *testing.T) {
	m := NewManager(zap.NewNop())
	now := time.Now()

	// First frame creates the subject and a critical incident tied to it.
	m.ProcessAnalysisResult("cam-a", anomalousResult(
		[]models.DetectedObject{personDetection("trk-1", 0.5, 0.5, now)}, 0.9, "Intrusion"))

	before := m.GetTrackedSubjects()[0].ThreatScore

	// The next sighting picks up the +0.3 critical-incident boost.
	m.ProcessAnalysisResult("cam-a", &models.FrameAnalysisResult{
		TimestampUs: now.UnixMicro(),
		Objects:     []models.DetectedObject{personDetection("trk-1", 0.55, 0.5, now)},
	})

	after := m.GetTrackedSubjects()[0].ThreatScore
	assert.InDelta(t, 0.3, after-before, 1e-9)
}

func TestCleanupSubjects_DropsIdle(t *testing.T) {
	m := NewManager(zap.NewNop())
	now := time.Now()

	m.ProcessAnalysisResult("cam-a", &models.FrameAnalysisResult{
		TimestampUs: now.UnixMicro(),
		Objects:     []models.DetectedObject{personDetection("trk-1", 0.5, 0.5, now)},
	})
	require.Len(t, m.GetTrackedSubjects(), 1)

	m.cleanupSubjects(now.Add(11 * time.Minute))
	assert.Empty(t, m.GetTrackedSubjects())
}

func TestCleanupIncidents_AutoResolvesStale(t *testing.T) {
	m := NewManager(zap.NewNop())

	incident := m.CreateIncident(models.IncidentLoitering, models.SeverityMedium, "cam-a", "lingering person")
	require.Len(t, m.GetActiveIncidents(), 1)

	m.cleanupIncidents(time.Now().Add(31 * time.Minute))

	assert.Empty(t, m.GetActiveIncidents())

	m.incidentsMutex.Lock()
	resolved := m.incidents[incident.ID]
	m.incidentsMutex.Unlock()
	assert.Equal(t, models.IncidentResolved, resolved.Status)
	assert.Contains(t, resolved.ResponseActions, "system_timeout")
}

func TestCleanupPlans_KeepsActive(t *testing.T) {
	m := NewManager(zap.NewNop())

	incident := m.CreateIncident(models.IncidentIntrusion, models.SeverityHigh, "cam-a", "fence breach")
	planID, err := m.GeneratePlan(incident.ID)
	require.NoError(t, err)

	m.cleanupPlans(time.Now().Add(25 * time.Hour))
	require.Len(t, m.GetActivePlans(), 1, "active plans never age out")

	require.NoError(t, m.UpdatePlanStatus(planID, models.PlanCompleted))
	m.cleanupPlans(time.Now().Add(25 * time.Hour))

	m.plansMutex.Lock()
	_, stillThere := m.plans[planID]
	m.plansMutex.Unlock()
	assert.False(t, stillThere)
}

func TestGetRecommendedCamera_Ladder(t *testing.T) {
	m := NewManager(zap.NewNop())
	assert.Empty(t, m.GetRecommendedCamera())

	m.RegisterCamera(models.CameraInfo{ID: "cam-idle", Active: true})
	assert.Equal(t, "cam-idle", m.GetRecommendedCamera())

	now := time.Now()
	m.ProcessAnalysisResult("cam-subject", &models.FrameAnalysisResult{
		TimestampUs: now.UnixMicro(),
		Objects:     []models.DetectedObject{personDetection("trk-1", 0.5, 0.5, now)},
	})
	assert.Equal(t, "cam-subject", m.GetRecommendedCamera())

	m.CreateIncident(models.IncidentIntrusion, models.SeverityCritical, "cam-incident", "breach")
	assert.Equal(t, "cam-incident", m.GetRecommendedCamera())
}

func TestGenerateSituationReport(t *testing.T) {
	m := NewManager(zap.NewNop())
	now := time.Now()

	m.ProcessAnalysisResult("cam-a", anomalousResult(
		[]models.DetectedObject{personDetection("trk-1", 0.5, 0.5, now)}, 0.8, "Loitering"))

	report := m.GenerateSituationReport()
	assert.Contains(t, report, "Tracked subjects: 1")
	assert.Contains(t, report, "Active incidents: 1")
	assert.Contains(t, report, "Active plans: 1")
	assert.Contains(t, report, "cam-a")
}

func TestUpdateCameraStatus(t *testing.T) {
	m := NewManager(zap.NewNop())

	assert.Error(t, m.UpdateCameraStatus("cam-a", false), "unknown camera is rejected")

	m.RegisterCamera(models.CameraInfo{ID: "cam-a", Active: true})
	require.NoError(t, m.UpdateCameraStatus("cam-a", false))

	cam, ok := m.Camera("cam-a")
	require.True(t, ok)
	assert.False(t, cam.Active)
}
