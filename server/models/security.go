package models

import "time"

type IncidentType string

const (
	IncidentIntrusion          IncidentType = "INTRUSION"
	IncidentLoitering          IncidentType = "LOITERING"
	IncidentUnusualMovement    IncidentType = "UNUSUAL_MOVEMENT"
	IncidentUnknownSubject     IncidentType = "UNKNOWN_SUBJECT"
	IncidentCrowdFormation     IncidentType = "CROWD_FORMATION"
	IncidentAbandonedObject    IncidentType = "ABANDONED_OBJECT"
	IncidentSuspiciousBehavior IncidentType = "SUSPICIOUS_BEHAVIOR"
)

type IncidentStatus string

const (
	IncidentNew           IncidentStatus = "NEW"
	IncidentInvestigating IncidentStatus = "INVESTIGATING"
	IncidentConfirmed     IncidentStatus = "CONFIRMED"
	IncidentResolved      IncidentStatus = "RESOLVED"
	IncidentFalseAlarm    IncidentStatus = "FALSE_ALARM"
)

type SecurityIncident struct {
	ID              string         `json:"id"`
	Type            IncidentType   `json:"type"`
	Status          IncidentStatus `json:"status"`
	Severity        Severity       `json:"severity"`
	Description     string         `json:"description"`
	CameraIDs       []string       `json:"camera_ids"`
	SubjectIDs      []string       `json:"subject_ids,omitempty"`
	DetectedAt      time.Time      `json:"detected_at"`
	LastUpdatedAt   time.Time      `json:"last_updated_at"`
	ResponseActions []string       `json:"response_actions,omitempty"`
}

// PositionRecord is one point of a subject's cross-camera trajectory.
// Position is normalized to [0,1]² within the camera frame.
type PositionRecord struct {
	CameraID    string  `json:"camera_id"`
	Position    Point   `json:"position"`
	TimestampUs int64   `json:"timestamp_us"`
	Confidence  float64 `json:"confidence"`
}

type TrackedSubject struct {
	ID          string            `json:"id"`
	TrackID     string            `json:"track_id"`
	Type        string            `json:"type"`
	Positions   []PositionRecord  `json:"positions"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	ThreatScore float64           `json:"threat_score"`
	Active      bool              `json:"active"`
	FirstSeenAt time.Time         `json:"first_seen_at"`
	LastSeenAt  time.Time         `json:"last_seen_at"`
}

// LastCamera returns the camera of the most recent position record.
func (s *TrackedSubject) LastCamera() string {
	if len(s.Positions) == 0 {
		return ""
	}
	return s.Positions[len(s.Positions)-1].CameraID
}

type CameraInfo struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Position          Point    `json:"position"`
	FieldOfViewDeg    float64  `json:"field_of_view_deg"`
	DirectionDeg      float64  `json:"direction_deg"`
	AdjacentCameraIDs []string `json:"adjacent_camera_ids"`
	Active            bool     `json:"active"`
}

type PlanStatus string

const (
	PlanDraft     PlanStatus = "DRAFT"
	PlanActive    PlanStatus = "ACTIVE"
	PlanCompleted PlanStatus = "COMPLETED"
	PlanCancelled PlanStatus = "CANCELLED"
)

type MonitoringMode string

const (
	MonitoringPassive MonitoringMode = "PASSIVE"
	MonitoringActive  MonitoringMode = "ACTIVE"
)

type MonitoringStrategy struct {
	SubjectID           string         `json:"subject_id,omitempty"`
	Mode                MonitoringMode `json:"mode"`
	PriorityScore       float64        `json:"priority_score"`
	CameraIDs           []string       `json:"camera_ids"`
	Duration            time.Duration  `json:"duration"`
	SamplingRate        int            `json:"sampling_rate"`
	EnablePrediction    bool           `json:"enable_prediction"`
	AlertOnLoss         bool           `json:"alert_on_loss"`
	CrossCameraTracking bool           `json:"cross_camera_tracking"`
}

type PlannedAction struct {
	Description string    `json:"description"`
	Priority    int       `json:"priority"`
	DueAt       time.Time `json:"due_at"`
	Completed   bool      `json:"completed"`
}

type StrategicPlan struct {
	ID         string               `json:"id"`
	IncidentID string               `json:"incident_id,omitempty"`
	Status     PlanStatus           `json:"status"`
	Strategies []MonitoringStrategy `json:"strategies"`
	Actions    []PlannedAction      `json:"actions"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}
