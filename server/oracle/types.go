package oracle

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/sentinel-core/server/models"
)

type RequestType string

const (
	RequestAnomalyAnalysis     RequestType = "ANOMALY_ANALYSIS"
	RequestSituationAssessment RequestType = "SITUATION_ASSESSMENT"
	RequestResponsePlanning    RequestType = "RESPONSE_PLANNING"
	RequestPredictiveAnalysis  RequestType = "PREDICTIVE_ANALYSIS"
	RequestCrossCameraAnalysis RequestType = "CROSS_CAMERA_ANALYSIS"
)

type ContextType string

const (
	ContextObjectDetection  ContextType = "OBJECT"
	ContextMotionEvent      ContextType = "MOTION"
	ContextAnomalyDetection ContextType = "ANOMALY"
	ContextEnvironmentInfo  ContextType = "INFO"
	ContextHistoricalPattern ContextType = "PATTERN"
	ContextCrossCamera      ContextType = "CROSS-CAM"
	ContextSystemEvent      ContextType = "SYSTEM"
)

// ContextItem is one typed, timestamped line of evidence handed to the
// reasoning service.
type ContextItem struct {
	Type        ContextType `json:"type"`
	Description string      `json:"description"`
	TimestampUs int64       `json:"timestamp_us"`
	Confidence  float64     `json:"confidence"`
}

func (c ContextItem) String() string {
	ts := time.UnixMicro(c.TimestampUs).Format("2006-01-02 15:04:05")
	return fmt.Sprintf("[%s] [%s] %s", ts, c.Type, c.Description)
}

// ContextFromObject describes a detection as a context line.
func ContextFromObject(obj *models.DetectedObject) ContextItem {
	desc := fmt.Sprintf("Detected %s with confidence %.2f at position [x:%.2f, y:%.2f]",
		obj.TypeID, obj.Confidence, obj.BoundingBox.X, obj.BoundingBox.Y)
	if status, ok := obj.Attributes["recognitionStatus"]; ok {
		desc += fmt.Sprintf(" (Recognition: %s)", status)
	}
	return ContextItem{
		Type:        ContextObjectDetection,
		Description: desc,
		TimestampUs: obj.TimestampUs,
		Confidence:  obj.Confidence,
	}
}

// ContextFromResult summarizes an observation as a context line: anomaly,
// motion, or normal activity, whichever is most informative.
func ContextFromResult(result *models.FrameAnalysisResult) ContextItem {
	switch {
	case result.IsAnomaly:
		return ContextItem{
			Type:        ContextAnomalyDetection,
			Description: fmt.Sprintf("Anomaly detected: %s - %s", result.AnomalyType, result.AnomalyDescription),
			TimestampUs: result.TimestampUs,
			Confidence:  result.AnomalyScore,
		}
	case result.MotionInfo.OverallMotionLevel > 0.05:
		return ContextItem{
			Type:        ContextMotionEvent,
			Description: fmt.Sprintf("Motion detected with level %.2f", result.MotionInfo.OverallMotionLevel),
			TimestampUs: result.TimestampUs,
			Confidence:  result.MotionInfo.OverallMotionLevel,
		}
	default:
		return ContextItem{
			Type:        ContextEnvironmentInfo,
			Description: "Normal scene activity",
			TimestampUs: result.TimestampUs,
			Confidence:  1.0 - result.AnomalyScore,
		}
	}
}

type Request struct {
	ID       string
	CameraID string
	Type     RequestType
	Context  []ContextItem
}

func NewRequest(cameraID string, requestType RequestType) *Request {
	return &Request{
		ID:       uuid.NewString(),
		CameraID: cameraID,
		Type:     requestType,
	}
}

func (r *Request) AddContext(item ContextItem) {
	r.Context = append(r.Context, item)
}

// Prompt renders the request as a task header, the current time, the
// timestamp-sorted context lines, and per-type instructions.
func (r *Request) Prompt() string {
	var b strings.Builder

	switch r.Type {
	case RequestAnomalyAnalysis:
		b.WriteString("TASK: Analyze the anomaly detected in the security camera and provide context.\n\n")
	case RequestSituationAssessment:
		b.WriteString("TASK: Assess the overall situation in the security camera view.\n\n")
	case RequestResponsePlanning:
		b.WriteString("TASK: Plan an appropriate response to the situation in the security camera.\n\n")
	case RequestPredictiveAnalysis:
		b.WriteString("TASK: Predict potential future behavior based on the observed activity.\n\n")
	case RequestCrossCameraAnalysis:
		b.WriteString("TASK: Analyze information from multiple cameras to understand the overall security situation.\n\n")
	}

	fmt.Fprintf(&b, "CURRENT TIME: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	b.WriteString("CONTEXT:\n")
	sorted := append([]ContextItem(nil), r.Context...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TimestampUs < sorted[j].TimestampUs })
	for _, item := range sorted {
		fmt.Fprintf(&b, "- %s\n", item.String())
	}

	b.WriteString("\nINSTRUCTIONS:\n")
	switch r.Type {
	case RequestAnomalyAnalysis:
		b.WriteString("1. Analyze the anomaly described in the context.\n" +
			"2. Determine the potential security implications.\n" +
			"3. Assess whether this might be a false alarm or a genuine security concern.\n" +
			"4. Provide reasoning for your assessment.\n" +
			"5. Recommend whether this requires human attention.\n")
	case RequestSituationAssessment:
		b.WriteString("1. Assess the overall situation in the camera view.\n" +
			"2. Identify any potential security concerns.\n" +
			"3. Consider the time of day and normal patterns for this location.\n" +
			"4. Determine the level of concern (Normal, Low, Medium, High).\n" +
			"5. Provide reasoning for your assessment.\n")
	case RequestResponsePlanning:
		b.WriteString("1. Analyze the security situation described in the context.\n" +
			"2. Determine the appropriate security response level.\n" +
			"3. Suggest specific actions that should be taken.\n" +
			"4. Prioritize these actions.\n" +
			"5. Provide reasoning for your recommendations.\n")
	case RequestPredictiveAnalysis:
		b.WriteString("1. Analyze the patterns of behavior described in the context.\n" +
			"2. Predict likely next movements or actions.\n" +
			"3. Identify which cameras are likely to observe the subject next.\n" +
			"4. Provide reasoning for your predictions.\n")
	case RequestCrossCameraAnalysis:
		b.WriteString("1. Correlate the observations across cameras.\n" +
			"2. Determine whether they describe the same subject or event.\n" +
			"3. Summarize the overall security situation.\n" +
			"4. Provide reasoning for your conclusions.\n")
	}

	return b.String()
}

type RecommendedActionType string

const (
	RecommendMonitor        RecommendedActionType = "MONITOR"
	RecommendAlert          RecommendedActionType = "ALERT"
	RecommendTrack          RecommendedActionType = "TRACK"
	RecommendAnalyzeFurther RecommendedActionType = "ANALYZE_FURTHER"
	RecommendCrossReference RecommendedActionType = "CROSS_REFERENCE"
	RecommendPredict        RecommendedActionType = "PREDICT"
	RecommendAction         RecommendedActionType = "RECOMMEND"
)

type RecommendedAction struct {
	Type        RecommendedActionType `json:"type"`
	Description string                `json:"description"`
	Confidence  float64               `json:"confidence"`
}

type Response struct {
	RequestID    string              `json:"request_id"`
	Reasoning    string              `json:"reasoning"`
	Actions      []RecommendedAction `json:"actions"`
	Confidence   float64             `json:"confidence"`
	Success      bool                `json:"success"`
	ErrorMessage string              `json:"error_message,omitempty"`
}
