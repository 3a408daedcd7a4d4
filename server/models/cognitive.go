package models

import "time"

type GoalType string

const (
	GoalMonitor  GoalType = "MONITOR"
	GoalVerify   GoalType = "VERIFY"
	GoalRespond  GoalType = "RESPOND"
	GoalOptimize GoalType = "OPTIMIZE"
)

type GoalPriority int

const (
	PriorityBackground GoalPriority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p GoalPriority) String() string {
	switch p {
	case PriorityCritical:
		return "CRITICAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityLow:
		return "LOW"
	default:
		return "BACKGROUND"
	}
}

type GoalStatus string

const (
	GoalPending    GoalStatus = "PENDING"
	GoalInProgress GoalStatus = "IN_PROGRESS"
	GoalAchieved   GoalStatus = "ACHIEVED"
	GoalFailed     GoalStatus = "FAILED"
	GoalAbandoned  GoalStatus = "ABANDONED"
)

type Goal struct {
	ID           string       `json:"id"`
	Type         GoalType     `json:"type"`
	Description  string       `json:"description"`
	Priority     GoalPriority `json:"priority"`
	Status       GoalStatus   `json:"status"`
	Progress     float64      `json:"progress"`
	CreatedAt    time.Time    `json:"created_at"`
	Deadline     time.Time    `json:"deadline,omitempty"`
	ParentID     string       `json:"parent_id,omitempty"`
	ChildIDs     []string     `json:"child_ids,omitempty"`
	DependsOnIDs []string     `json:"depends_on_ids,omitempty"`
}

type KnowledgeType string

const (
	KnowledgeObservation KnowledgeType = "OBSERVATION"
	KnowledgeInference   KnowledgeType = "INFERENCE"
	KnowledgeFact        KnowledgeType = "FACT"
)

// KnowledgeItem is a typed, confidence-scored fact with a validity horizon.
type KnowledgeItem struct {
	ID         string        `json:"id"`
	Type       KnowledgeType `json:"type"`
	Subject    string        `json:"subject"`
	Content    string        `json:"content"`
	Confidence float64       `json:"confidence"`
	CreatedAt  time.Time     `json:"created_at"`
	ValidFor   time.Duration `json:"valid_for"`
	CameraID   string        `json:"camera_id,omitempty"`
}

// Expired reports whether the item has outlived its validity horizon.
func (k *KnowledgeItem) Expired(now time.Time) bool {
	return now.Sub(k.CreatedAt) > k.ValidFor
}

// Reasoning records one inference step, rule-based or oracle-driven.
type Reasoning struct {
	ID         string    `json:"id"`
	InputIDs   []string  `json:"input_ids,omitempty"`
	OutputIDs  []string  `json:"output_ids,omitempty"`
	Trace      string    `json:"trace"`
	Confidence float64   `json:"confidence"`
	FromOracle bool      `json:"from_oracle"`
	CreatedAt  time.Time `json:"created_at"`
}

type ActionType string

const (
	ActionFocusCamera       ActionType = "FOCUS_CAMERA"
	ActionVerifyAnomaly     ActionType = "VERIFY_ANOMALY"
	ActionGatherContext     ActionType = "GATHER_CONTEXT"
	ActionGenerateAlert     ActionType = "GENERATE_ALERT"
	ActionTrackSubject      ActionType = "TRACK_SUBJECT"
	ActionInitiateResponse  ActionType = "INITIATE_RESPONSE"
	ActionCoordinateSystem  ActionType = "COORDINATE_SYSTEM"
	ActionUpdateModel       ActionType = "UPDATE_MODEL"
	ActionLogInformation    ActionType = "LOG_INFORMATION"
	ActionRequestAssistance ActionType = "REQUEST_ASSISTANCE"
)

type ActionStatus string

const (
	ActionPending    ActionStatus = "PENDING"
	ActionInProgress ActionStatus = "IN_PROGRESS"
	ActionCompleted  ActionStatus = "COMPLETED"
	ActionFailed     ActionStatus = "FAILED"
	ActionCancelled  ActionStatus = "CANCELLED"
)

type Action struct {
	ID              string         `json:"id"`
	Type            ActionType     `json:"type"`
	GoalID          string         `json:"goal_id,omitempty"`
	Description     string         `json:"description"`
	Status          ActionStatus   `json:"status"`
	Priority        int            `json:"priority"`
	ExpectedUtility float64        `json:"expected_utility"`
	Parameters      map[string]any `json:"parameters,omitempty"`
	Result          string         `json:"result,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	CompletedAt     time.Time      `json:"completed_at,omitempty"`
}

type TaskType string

const (
	TaskProcessAnalysis TaskType = "PROCESS_ANALYSIS"
	TaskUpdateKnowledge TaskType = "UPDATE_KNOWLEDGE"
	TaskEvaluateGoals   TaskType = "EVALUATE_GOALS"
	TaskSelectActions   TaskType = "SELECT_ACTIONS"
	TaskExecuteAction   TaskType = "EXECUTE_ACTION"
	TaskReflect         TaskType = "REFLECT"
)

// CognitiveTask is one unit of work for the cognitive worker. Priority is
// advisory metadata only; the worker consumes strictly FIFO.
type CognitiveTask struct {
	Type       TaskType       `json:"type"`
	Priority   int            `json:"priority"`
	Payload    map[string]any `json:"payload,omitempty"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}
