package models

import "time"

// FrameAnalysisResult is the per-frame observation record produced by the
// upstream analyzer. Detectors only ever raise AnomalyScore, never lower it.
type FrameAnalysisResult struct {
	TimestampUs        int64            `json:"timestamp_us"`
	Objects            []DetectedObject `json:"objects"`
	MotionInfo         MotionInfo       `json:"motion_info"`
	AnomalyScore       float64          `json:"anomaly_score"`
	AnomalyType        string           `json:"anomaly_type,omitempty"`
	AnomalyDescription string           `json:"anomaly_description,omitempty"`
	IsAnomaly          bool             `json:"is_anomaly"`
}

type DetectedObject struct {
	TypeID      string            `json:"type_id"`
	Confidence  float64           `json:"confidence"`
	BoundingBox BoundingBox       `json:"bounding_box"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	TrackID     string            `json:"track_id,omitempty"`
	TimestampUs int64             `json:"timestamp_us"`
}

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the normalized center point of the box.
func (b BoundingBox) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type MotionInfo struct {
	OverallMotionLevel float64 `json:"overall_motion_level"`
	MotionAreas        []Point `json:"motion_areas,omitempty"`
}

// PersonCount counts detected persons and how many of them carry an
// "unknown" recognition status.
func (r *FrameAnalysisResult) PersonCount() (persons, unknown int) {
	for _, obj := range r.Objects {
		if obj.TypeID != "person" {
			continue
		}
		persons++
		if obj.Attributes["recognitionStatus"] == "unknown" {
			unknown++
		}
	}
	return persons, unknown
}

func (r *FrameAnalysisResult) VehicleCount() int {
	count := 0
	for _, obj := range r.Objects {
		if obj.TypeID == "vehicle" {
			count++
		}
	}
	return count
}

// RaiseAnomalyScore applies the monotone-increase rule for detector scores.
func (r *FrameAnalysisResult) RaiseAnomalyScore(score float64) {
	if score > r.AnomalyScore {
		r.AnomalyScore = score
	}
}

// Timestamp converts the microsecond timestamp to wall-clock time.
func (r *FrameAnalysisResult) Timestamp() time.Time {
	return time.UnixMicro(r.TimestampUs)
}

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// SeverityForScore buckets an anomaly score into a severity level.
func SeverityForScore(score float64) Severity {
	switch {
	case score > 0.85:
		return SeverityCritical
	case score > 0.7:
		return SeverityHigh
	case score > 0.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

type APIResponse struct {
	Success bool          `json:"success"`
	Data    any           `json:"data"`
	Error   *APIError     `json:"error,omitempty"`
	Meta    *ResponseMeta `json:"meta,omitempty"`
}

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}
