package cognitive

import (
	"fmt"
	"time"

	"github.com/san-kum/sentinel-core/server/models"
	"github.com/san-kum/sentinel-core/server/oracle"
)

// handleProcessAnalysis is the perception step: it turns one observation
// into OBSERVATION knowledge items, derives rule-based INFERENCE items, and
// hands off to the cognition step.
func (s *System) handleProcessAnalysis(task *models.CognitiveTask) error {
	cameraID, _ := task.Payload["camera_id"].(string)
	result, ok := task.Payload["result"].(*models.FrameAnalysisResult)
	if !ok || result == nil {
		return fmt.Errorf("PROCESS_ANALYSIS task without observation payload")
	}

	now := time.Now()
	s.extractFacts(cameraID, result, now)
	s.updateSituationModel(cameraID, result, now)

	cm := s.contextManager(cameraID)
	cm.Add(oracle.ContextFromResult(result))
	for i := range result.Objects {
		cm.Add(oracle.ContextFromObject(&result.Objects[i]))
	}

	s.queue.Enqueue(&models.CognitiveTask{
		Type:     models.TaskUpdateKnowledge,
		Priority: task.Priority,
		Payload:  map[string]any{"camera_id": cameraID},
	})

	return nil
}

// extractFacts records one OBSERVATION item per notable fact in the frame.
func (s *System) extractFacts(cameraID string, result *models.FrameAnalysisResult, now time.Time) {
	add := func(subject, content string, confidence float64) {
		s.knowledge.put(&models.KnowledgeItem{
			ID:         models.NewID("KNOW"),
			Type:       models.KnowledgeObservation,
			Subject:    subject,
			Content:    content,
			Confidence: confidence,
			CreatedAt:  now,
			ValidFor:   knowledgeValidity,
			CameraID:   cameraID,
		})
	}

	add("frame", fmt.Sprintf("Frame processed on camera %s", cameraID), 1.0)

	if result.MotionInfo.OverallMotionLevel > 0.01 {
		add("motion", fmt.Sprintf("Motion level %.2f on camera %s",
			result.MotionInfo.OverallMotionLevel, cameraID),
			result.MotionInfo.OverallMotionLevel)
	}

	for _, obj := range result.Objects {
		content := fmt.Sprintf("Detected %s on camera %s", obj.TypeID, cameraID)
		if status, ok := obj.Attributes["recognitionStatus"]; ok {
			content += fmt.Sprintf(" (recognition: %s)", status)
		}
		add("object", content, obj.Confidence)
	}

	if result.IsAnomaly {
		add("anomaly", fmt.Sprintf("Anomaly detected on camera %s: %s - %s",
			cameraID, result.AnomalyType, result.AnomalyDescription),
			result.AnomalyScore)
	}
}

// updateSituationModel derives INFERENCE items from simple temporal rules.
func (s *System) updateSituationModel(cameraID string, result *models.FrameAnalysisResult, now time.Time) {
	infer := func(subject, content string, confidence float64) {
		s.knowledge.put(&models.KnowledgeItem{
			ID:         models.NewID("KNOW"),
			Type:       models.KnowledgeInference,
			Subject:    subject,
			Content:    content,
			Confidence: confidence,
			CreatedAt:  now,
			ValidFor:   knowledgeValidity,
			CameraID:   cameraID,
		})
	}

	hour := now.Hour()
	nighttime := hour >= 22 || hour < 6
	businessHours := hour >= 9 && hour < 17

	persons, _ := result.PersonCount()
	vehicles := result.VehicleCount()

	if nighttime && result.MotionInfo.OverallMotionLevel > 0.1 {
		infer("off-hours-access",
			fmt.Sprintf("Off-hours activity on camera %s during nighttime", cameraID), 0.85)
	}

	if persons > 5 && !businessHours {
		infer("occupancy",
			fmt.Sprintf("Unusual number of people (%d) outside business hours on camera %s",
				persons, cameraID), 0.75)
	}

	if vehicles > 3 && nighttime {
		infer("occupancy",
			fmt.Sprintf("Unusual vehicle activity (%d vehicles) at night on camera %s",
				vehicles, cameraID), 0.8)
	}

	if result.IsAnomaly {
		switch result.AnomalyType {
		case "UnknownVisitor":
			infer("unknown-visitor",
				"An unidentified person has been present beyond the allowed duration",
				result.AnomalyScore*0.8)
		default:
			infer("anomaly-context",
				fmt.Sprintf("Scene activity deviates from baseline (%s)", result.AnomalyType),
				result.AnomalyScore*0.7)
		}
	}
}
