package strategy

import (
	"fmt"
	"time"

	"github.com/san-kum/sentinel-core/server/models"
	"go.uber.org/zap"
)

// Spacing between the due times of consecutive recommended actions.
const actionDueSpacing = 5 * time.Minute

// GeneratePlan builds a strategic plan for an incident: a default active
// monitoring strategy over the primary camera and its neighbors, plus the
// recommended action list for the incident type, priority descending.
func (m *Manager) GeneratePlan(incidentID string) (string, error) {
	m.incidentsMutex.Lock()
	incident, ok := m.incidents[incidentID]
	if !ok {
		m.incidentsMutex.Unlock()
		return "", fmt.Errorf("unknown incident %s", incidentID)
	}
	incidentCopy := *incident
	m.incidentsMutex.Unlock()

	now := time.Now()

	cameraIDs := append([]string(nil), incidentCopy.CameraIDs...)
	if len(cameraIDs) > 0 {
		if cam, found := m.Camera(cameraIDs[0]); found {
			for _, adj := range cam.AdjacentCameraIDs {
				if !containsString(cameraIDs, adj) {
					cameraIDs = append(cameraIDs, adj)
				}
			}
		}
	}

	strategy := models.MonitoringStrategy{
		Mode:                models.MonitoringActive,
		PriorityScore:       0.7,
		CameraIDs:           cameraIDs,
		Duration:            30 * time.Minute,
		SamplingRate:        5,
		EnablePrediction:    true,
		AlertOnLoss:         true,
		CrossCameraTracking: true,
	}
	if len(incidentCopy.SubjectIDs) > 0 {
		strategy.SubjectID = incidentCopy.SubjectIDs[0]
	}

	descriptions := recommendedActions(incidentCopy.Type)
	actions := make([]models.PlannedAction, 0, len(descriptions))
	for i, desc := range descriptions {
		actions = append(actions, models.PlannedAction{
			Description: desc,
			Priority:    10 - i,
			DueAt:       now.Add(time.Duration(i) * actionDueSpacing),
		})
	}

	plan := &models.StrategicPlan{
		ID:         models.NewID("PLAN"),
		IncidentID: incidentID,
		Status:     models.PlanActive,
		Strategies: []models.MonitoringStrategy{strategy},
		Actions:    actions,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	m.plansMutex.Lock()
	m.plans[plan.ID] = plan
	m.plansMutex.Unlock()

	m.logger.Info("Strategic plan generated",
		zap.String("plan_id", plan.ID),
		zap.String("incident_id", incidentID),
		zap.Int("actions", len(actions)))

	return plan.ID, nil
}

// UpdatePlanStatus applies a plan status transition.
func (m *Manager) UpdatePlanStatus(planID string, status models.PlanStatus) error {
	m.plansMutex.Lock()
	defer m.plansMutex.Unlock()

	plan, ok := m.plans[planID]
	if !ok {
		return fmt.Errorf("unknown plan %s", planID)
	}
	plan.Status = status
	plan.UpdatedAt = time.Now()
	return nil
}

func recommendedActions(incidentType models.IncidentType) []string {
	switch incidentType {
	case models.IncidentIntrusion:
		return []string{
			"Verify intrusion on primary camera feed",
			"Track subject across adjacent cameras",
			"Notify security personnel",
			"Record extended footage for evidence",
		}
	case models.IncidentUnknownSubject:
		return []string{
			"Capture best available face view",
			"Cross-check against recent visitor activity",
			"Monitor subject until identity resolved",
		}
	case models.IncidentLoitering:
		return []string{
			"Confirm loitering duration and location",
			"Monitor for escalation in behavior",
			"Log presence for pattern analysis",
		}
	case models.IncidentCrowdFormation:
		return []string{
			"Estimate crowd size and growth rate",
			"Widen monitoring to surrounding cameras",
			"Alert operators if crowd keeps growing",
		}
	case models.IncidentUnusualMovement:
		return []string{
			"Replay movement trajectory for review",
			"Track subject with prediction enabled",
			"Correlate with other camera activity",
		}
	case models.IncidentAbandonedObject:
		return []string{
			"Verify object is stationary and unattended",
			"Identify who left the object",
			"Escalate to operators for inspection",
		}
	default:
		return []string{
			"Review triggering footage",
			"Continue monitoring the area",
			"Log event for baseline refinement",
		}
	}
}
