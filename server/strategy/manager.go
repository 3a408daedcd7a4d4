package strategy

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/san-kum/sentinel-core/server/models"
	"go.uber.org/zap"
)

const (
	subjectIdleTimeout     = 10 * time.Minute
	incidentStaleTimeout   = 30 * time.Minute
	planRetention          = 24 * time.Hour
	unknownThreatIncrement = 0.05
)

// Manager owns cross-camera subject tracking, incident lifecycle and
// strategic plan generation. Each state store has its own lock; cross-store
// operations never hold two locks at once.
type Manager struct {
	cameras      map[string]*models.CameraInfo
	camerasMutex sync.Mutex

	subjects      map[string]*models.TrackedSubject
	subjectsMutex sync.Mutex

	incidents      map[string]*models.SecurityIncident
	incidentsMutex sync.Mutex

	plans      map[string]*models.StrategicPlan
	plansMutex sync.Mutex

	onIncidentCreated func()

	logger *zap.Logger
}

// SetIncidentHook registers a callback fired whenever an incident is
// opened. Set before observations flow.
func (m *Manager) SetIncidentHook(hook func()) {
	m.onIncidentCreated = hook
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		cameras:   make(map[string]*models.CameraInfo),
		subjects:  make(map[string]*models.TrackedSubject),
		incidents: make(map[string]*models.SecurityIncident),
		plans:     make(map[string]*models.StrategicPlan),
		logger:    logger,
	}
}

// RegisterCamera adds or replaces a topology node.
func (m *Manager) RegisterCamera(info models.CameraInfo) {
	m.camerasMutex.Lock()
	defer m.camerasMutex.Unlock()

	stored := info
	m.cameras[info.ID] = &stored
	m.logger.Info("Camera registered",
		zap.String("camera_id", info.ID),
		zap.Strings("adjacent", info.AdjacentCameraIDs))
}

// UpdateCameraStatus marks a camera active or inactive.
func (m *Manager) UpdateCameraStatus(cameraID string, active bool) error {
	m.camerasMutex.Lock()
	defer m.camerasMutex.Unlock()

	cam, ok := m.cameras[cameraID]
	if !ok {
		return fmt.Errorf("unknown camera %s", cameraID)
	}
	cam.Active = active
	return nil
}

// Camera returns a copy of the topology node for the camera id.
func (m *Manager) Camera(cameraID string) (models.CameraInfo, bool) {
	m.camerasMutex.Lock()
	defer m.camerasMutex.Unlock()

	cam, ok := m.cameras[cameraID]
	if !ok {
		return models.CameraInfo{}, false
	}
	return *cam, true
}

// ProcessAnalysisResult correlates one observation into the tracked state:
// subjects are matched by tracking id, anomalies open incidents with plans,
// and stale state is swept.
func (m *Manager) ProcessAnalysisResult(cameraID string, result *models.FrameAnalysisResult) {
	now := time.Now()

	for i := range result.Objects {
		m.updateTrackedSubject(cameraID, &result.Objects[i], now)
	}

	if result.IsAnomaly {
		incident := m.createIncidentFromAnomaly(cameraID, result, now)
		if incident != nil {
			if _, err := m.GeneratePlan(incident.ID); err != nil {
				m.logger.Error("Failed to generate plan for incident",
					zap.String("incident_id", incident.ID),
					zap.Error(err))
			}
		}
	}

	m.cleanupSubjects(now)
	m.cleanupIncidents(now)
	m.cleanupPlans(now)
}

// updateTrackedSubject matches by tracking id only; a detection with an
// unseen id always creates a new subject.
func (m *Manager) updateTrackedSubject(cameraID string, obj *models.DetectedObject, now time.Time) {
	if obj.TrackID == "" {
		return
	}

	record := models.PositionRecord{
		CameraID:    cameraID,
		Position:    obj.BoundingBox.Center(),
		TimestampUs: obj.TimestampUs,
		Confidence:  obj.Confidence,
	}

	m.subjectsMutex.Lock()
	subject, ok := m.subjects[obj.TrackID]
	if !ok {
		subject = &models.TrackedSubject{
			ID:          models.NewID("SUB"),
			TrackID:     obj.TrackID,
			Type:        obj.TypeID,
			Attributes:  make(map[string]string),
			Active:      true,
			FirstSeenAt: now,
		}
		m.subjects[obj.TrackID] = subject
	}

	subject.Positions = append(subject.Positions, record)
	subject.LastSeenAt = now
	subject.Active = true
	for k, v := range obj.Attributes {
		subject.Attributes[k] = v
	}

	if obj.Attributes["recognitionStatus"] == "unknown" {
		subject.ThreatScore = clamp01(subject.ThreatScore + unknownThreatIncrement)
	}
	subjectID := subject.ID
	m.subjectsMutex.Unlock()

	m.applyIncidentThreatBoost(subjectID, obj.TrackID)
}

// applyIncidentThreatBoost raises a subject's threat score when it is
// associated with an active incident, weighted by incident severity.
func (m *Manager) applyIncidentThreatBoost(subjectID, trackID string) {
	boost := 0.0

	m.incidentsMutex.Lock()
	for _, inc := range m.incidents {
		if inc.Status == models.IncidentResolved || inc.Status == models.IncidentFalseAlarm {
			continue
		}
		if !containsString(inc.SubjectIDs, subjectID) {
			continue
		}
		switch inc.Severity {
		case models.SeverityCritical:
			boost += 0.3
		case models.SeverityHigh:
			boost += 0.2
		case models.SeverityMedium:
			boost += 0.1
		default:
			boost += 0.05
		}
	}
	m.incidentsMutex.Unlock()

	if boost == 0 {
		return
	}

	m.subjectsMutex.Lock()
	if subject, ok := m.subjects[trackID]; ok {
		subject.ThreatScore = clamp01(subject.ThreatScore + boost)
	}
	m.subjectsMutex.Unlock()
}

func (m *Manager) createIncidentFromAnomaly(cameraID string, result *models.FrameAnalysisResult, now time.Time) *models.SecurityIncident {
	incident := &models.SecurityIncident{
		ID:            models.NewID("INC"),
		Type:          incidentTypeForAnomaly(result.AnomalyType),
		Status:        models.IncidentNew,
		Severity:      models.SeverityForScore(result.AnomalyScore),
		Description:   result.AnomalyDescription,
		CameraIDs:     []string{cameraID},
		DetectedAt:    now,
		LastUpdatedAt: now,
	}

	for _, obj := range result.Objects {
		if obj.TrackID == "" {
			continue
		}
		m.subjectsMutex.Lock()
		if subject, ok := m.subjects[obj.TrackID]; ok {
			incident.SubjectIDs = append(incident.SubjectIDs, subject.ID)
		}
		m.subjectsMutex.Unlock()
	}

	m.incidentsMutex.Lock()
	m.incidents[incident.ID] = incident
	m.incidentsMutex.Unlock()

	if m.onIncidentCreated != nil {
		m.onIncidentCreated()
	}

	m.logger.Info("Incident created",
		zap.String("incident_id", incident.ID),
		zap.String("type", string(incident.Type)),
		zap.String("severity", string(incident.Severity)),
		zap.String("camera_id", cameraID))

	return incident
}

// CreateIncident opens an incident directly, for callers outside the
// per-frame path (e.g. the cognitive core's INITIATE_RESPONSE action).
func (m *Manager) CreateIncident(incidentType models.IncidentType, severity models.Severity, cameraID, description string) *models.SecurityIncident {
	now := time.Now()
	incident := &models.SecurityIncident{
		ID:            models.NewID("INC"),
		Type:          incidentType,
		Status:        models.IncidentNew,
		Severity:      severity,
		Description:   description,
		CameraIDs:     []string{cameraID},
		DetectedAt:    now,
		LastUpdatedAt: now,
	}

	m.incidentsMutex.Lock()
	m.incidents[incident.ID] = incident
	m.incidentsMutex.Unlock()

	if m.onIncidentCreated != nil {
		m.onIncidentCreated()
	}

	return incident
}

// UpdateIncident applies a status transition and appends a response note.
func (m *Manager) UpdateIncident(incidentID string, status models.IncidentStatus, note string) error {
	m.incidentsMutex.Lock()
	defer m.incidentsMutex.Unlock()

	incident, ok := m.incidents[incidentID]
	if !ok {
		return fmt.Errorf("unknown incident %s", incidentID)
	}

	incident.Status = status
	incident.LastUpdatedAt = time.Now()
	if note != "" {
		incident.ResponseActions = append(incident.ResponseActions, note)
	}
	return nil
}

func (m *Manager) cleanupSubjects(now time.Time) {
	m.subjectsMutex.Lock()
	defer m.subjectsMutex.Unlock()

	for trackID, subject := range m.subjects {
		if now.Sub(subject.LastSeenAt) > subjectIdleTimeout {
			delete(m.subjects, trackID)
			m.logger.Debug("Idle subject dropped", zap.String("subject_id", subject.ID))
		}
	}
}

func (m *Manager) cleanupIncidents(now time.Time) {
	m.incidentsMutex.Lock()
	defer m.incidentsMutex.Unlock()

	for _, incident := range m.incidents {
		if incident.Status == models.IncidentResolved || incident.Status == models.IncidentFalseAlarm {
			continue
		}
		if now.Sub(incident.LastUpdatedAt) > incidentStaleTimeout {
			incident.Status = models.IncidentResolved
			incident.LastUpdatedAt = now
			incident.ResponseActions = append(incident.ResponseActions, "system_timeout")
			m.logger.Info("Stale incident auto-resolved", zap.String("incident_id", incident.ID))
		}
	}
}

func (m *Manager) cleanupPlans(now time.Time) {
	m.plansMutex.Lock()
	defer m.plansMutex.Unlock()

	for id, plan := range m.plans {
		if plan.Status != models.PlanActive && now.Sub(plan.CreatedAt) > planRetention {
			delete(m.plans, id)
		}
	}
}

// GetTrackedSubjects returns copies of all active subjects.
func (m *Manager) GetTrackedSubjects() []models.TrackedSubject {
	m.subjectsMutex.Lock()
	defer m.subjectsMutex.Unlock()

	out := make([]models.TrackedSubject, 0, len(m.subjects))
	for _, s := range m.subjects {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ThreatScore > out[j].ThreatScore })
	return out
}

// GetActiveIncidents returns copies of incidents that are not closed.
func (m *Manager) GetActiveIncidents() []models.SecurityIncident {
	m.incidentsMutex.Lock()
	defer m.incidentsMutex.Unlock()

	var out []models.SecurityIncident
	for _, inc := range m.incidents {
		if inc.Status == models.IncidentResolved || inc.Status == models.IncidentFalseAlarm {
			continue
		}
		out = append(out, *inc)
	}
	sort.Slice(out, func(i, j int) bool { return severityRank(out[i].Severity) > severityRank(out[j].Severity) })
	return out
}

// GetActivePlans returns copies of plans in DRAFT or ACTIVE status.
func (m *Manager) GetActivePlans() []models.StrategicPlan {
	m.plansMutex.Lock()
	defer m.plansMutex.Unlock()

	var out []models.StrategicPlan
	for _, plan := range m.plans {
		if plan.Status == models.PlanDraft || plan.Status == models.PlanActive {
			out = append(out, *plan)
		}
	}
	return out
}

// GetRecommendedCamera picks the camera most worth attention right now:
// the primary camera of the highest-severity incident, else the last camera
// of the highest-threat subject, else any active camera.
func (m *Manager) GetRecommendedCamera() string {
	incidents := m.GetActiveIncidents()
	if len(incidents) > 0 && len(incidents[0].CameraIDs) > 0 {
		return incidents[0].CameraIDs[0]
	}

	subjects := m.GetTrackedSubjects()
	for _, s := range subjects {
		if cam := s.LastCamera(); cam != "" {
			return cam
		}
	}

	m.camerasMutex.Lock()
	defer m.camerasMutex.Unlock()
	for id, cam := range m.cameras {
		if cam.Active {
			return id
		}
	}
	return ""
}

// GenerateSituationReport summarizes the tracked state as text.
func (m *Manager) GenerateSituationReport() string {
	subjects := m.GetTrackedSubjects()
	incidents := m.GetActiveIncidents()
	plans := m.GetActivePlans()

	var b strings.Builder
	fmt.Fprintf(&b, "SITUATION REPORT %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "Tracked subjects: %d\n", len(subjects))
	for _, s := range subjects {
		fmt.Fprintf(&b, "  - %s (%s) threat=%.2f last_camera=%s\n",
			s.ID, s.Type, s.ThreatScore, s.LastCamera())
	}
	fmt.Fprintf(&b, "Active incidents: %d\n", len(incidents))
	for _, inc := range incidents {
		fmt.Fprintf(&b, "  - %s %s/%s on %s: %s\n",
			inc.ID, inc.Type, inc.Severity, strings.Join(inc.CameraIDs, ","), inc.Description)
	}
	fmt.Fprintf(&b, "Active plans: %d\n", len(plans))
	for _, plan := range plans {
		fmt.Fprintf(&b, "  - %s status=%s actions=%d\n", plan.ID, plan.Status, len(plan.Actions))
	}
	return b.String()
}

func incidentTypeForAnomaly(anomalyType string) models.IncidentType {
	switch anomalyType {
	case "UnknownVisitor":
		return models.IncidentUnknownSubject
	case "Loitering":
		return models.IncidentLoitering
	case "Intrusion":
		return models.IncidentIntrusion
	case "CrowdFormation":
		return models.IncidentCrowdFormation
	case "AbnormalMovement":
		return models.IncidentUnusualMovement
	case "AbandonedObject":
		return models.IncidentAbandonedObject
	default:
		return models.IncidentSuspiciousBehavior
	}
}

func severityRank(s models.Severity) int {
	switch s {
	case models.SeverityCritical:
		return 3
	case models.SeverityHigh:
		return 2
	case models.SeverityMedium:
		return 1
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
