package cognitive

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/san-kum/sentinel-core/server/models"
	"github.com/san-kum/sentinel-core/server/oracle"
	"go.uber.org/zap"
)

// handleSelectActions plans actions for the highest-priority active goal
// and enqueues one EXECUTE_ACTION task per planned action, highest action
// priority first.
func (s *System) handleSelectActions(task *models.CognitiveTask) error {
	goals := s.goals.active()
	if len(goals) == 0 {
		return nil
	}

	goal := goals[0]
	if s.actions.hasOpenActions(goal.ID) {
		return nil
	}

	planned := s.planActions(goal)
	if len(planned) == 0 {
		return nil
	}

	sort.Slice(planned, func(i, j int) bool { return planned[i].Priority > planned[j].Priority })

	for _, action := range planned {
		stored := action
		s.actions.put(&stored)
		s.queue.Enqueue(&models.CognitiveTask{
			Type:     models.TaskExecuteAction,
			Priority: action.Priority,
			Payload:  map[string]any{"action_id": action.ID},
		})
	}

	s.goals.update(goal.ID, func(g *models.Goal) {
		if g.Status == models.GoalPending {
			g.Status = models.GoalInProgress
		}
	})

	return nil
}

// planActions consults the oracle for a response plan when available and
// otherwise falls back to the per-goal-type default action set.
func (s *System) planActions(goal models.Goal) []models.Action {
	now := time.Now()

	if s.oracle.Available() {
		req := oracle.NewRequest("", oracle.RequestResponsePlanning)
		for _, item := range s.knowledge.recent(10, now) {
			req.AddContext(oracle.ContextItem{
				Type:        oracle.ContextSystemEvent,
				Description: item.Content,
				TimestampUs: item.CreatedAt.UnixMicro(),
				Confidence:  item.Confidence,
			})
		}
		req.AddContext(oracle.ContextItem{
			Type:        oracle.ContextSystemEvent,
			Description: fmt.Sprintf("Active goal: %s - %s", goal.Type, goal.Description),
			TimestampUs: now.UnixMicro(),
			Confidence:  1.0,
		})

		resp := s.oracle.Ask(req)
		if resp.Success && len(resp.Actions) > 0 {
			return s.actionsFromOracle(goal, resp, now)
		}
	}

	return fallbackActions(goal, now)
}

// actionsFromOracle maps oracle-recommended action types onto internal ones.
func (s *System) actionsFromOracle(goal models.Goal, resp oracle.Response, now time.Time) []models.Action {
	var out []models.Action
	for i, rec := range resp.Actions {
		var actionType models.ActionType
		switch rec.Type {
		case oracle.RecommendMonitor:
			actionType = models.ActionFocusCamera
		case oracle.RecommendAlert:
			actionType = models.ActionGenerateAlert
		case oracle.RecommendTrack:
			actionType = models.ActionTrackSubject
		case oracle.RecommendAnalyzeFurther:
			actionType = models.ActionGatherContext
		case oracle.RecommendCrossReference:
			actionType = models.ActionCoordinateSystem
		case oracle.RecommendPredict:
			actionType = models.ActionUpdateModel
		default:
			actionType = models.ActionLogInformation
		}

		out = append(out, models.Action{
			ID:              models.NewID("ACT"),
			Type:            actionType,
			GoalID:          goal.ID,
			Description:     rec.Description,
			Status:          models.ActionPending,
			Priority:        len(resp.Actions) - i,
			ExpectedUtility: rec.Confidence,
			CreatedAt:       now,
		})
	}

	s.reasoning.put(&models.Reasoning{
		ID:         models.NewID("REAS"),
		Trace:      "Oracle response plan: " + resp.Reasoning,
		Confidence: resp.Confidence,
		FromOracle: true,
		CreatedAt:  now,
	})

	return out
}

// fallbackActions is the deterministic per-goal-type default action set.
func fallbackActions(goal models.Goal, now time.Time) []models.Action {
	newAction := func(t models.ActionType, desc string, priority int, utility float64, params map[string]any) models.Action {
		return models.Action{
			ID:              models.NewID("ACT"),
			Type:            t,
			GoalID:          goal.ID,
			Description:     desc,
			Status:          models.ActionPending,
			Priority:        priority,
			ExpectedUtility: utility,
			Parameters:      params,
			CreatedAt:       now,
		}
	}

	switch goal.Type {
	case models.GoalMonitor:
		return []models.Action{
			newAction(models.ActionFocusCamera,
				"Focus monitoring on the most relevant camera", 5, 0.7,
				map[string]any{"duration_secs": 300}),
		}
	case models.GoalVerify:
		return []models.Action{
			newAction(models.ActionVerifyAnomaly,
				"Verify the detected anomaly against recent knowledge", 8, 0.9, nil),
			newAction(models.ActionGatherContext,
				"Gather additional context around the anomaly", 7, 0.8, nil),
		}
	case models.GoalRespond:
		return []models.Action{
			newAction(models.ActionGenerateAlert,
				"Generate an operator alert for the confirmed threat", 9, 0.95,
				map[string]any{"priority": "high"}),
			newAction(models.ActionTrackSubject,
				"Track the highest-threat subject across cameras", 8, 0.9, nil),
		}
	default:
		return []models.Action{
			newAction(models.ActionLogInformation,
				"Log current system state for later analysis", 3, 0.5, nil),
		}
	}
}

// handleExecuteAction runs one action's side effects and always records a
// result string and terminal status.
func (s *System) handleExecuteAction(task *models.CognitiveTask) error {
	actionID, _ := task.Payload["action_id"].(string)
	action, ok := s.actions.get(actionID)
	if !ok {
		return fmt.Errorf("unknown action %s", actionID)
	}

	s.actions.update(actionID, func(a *models.Action) {
		a.Status = models.ActionInProgress
	})

	result, err := s.executeAction(&action)

	status := models.ActionCompleted
	if err != nil {
		status = models.ActionFailed
		result = err.Error()
	}

	s.actions.update(actionID, func(a *models.Action) {
		a.Status = status
		a.Result = result
		a.CompletedAt = time.Now()
	})

	s.logger.Info("Action executed",
		zap.String("action_id", actionID),
		zap.String("type", string(action.Type)),
		zap.String("status", string(status)),
		zap.String("result", result))

	return nil
}

func (s *System) executeAction(action *models.Action) (string, error) {
	now := time.Now()

	switch action.Type {
	case models.ActionFocusCamera:
		camera := s.strategy.GetRecommendedCamera()
		if camera == "" {
			return "", fmt.Errorf("no camera available to focus on")
		}
		return fmt.Sprintf("Focused monitoring on camera %s", camera), nil

	case models.ActionVerifyAnomaly:
		items := s.knowledge.search([]string{"anomaly"}, now)
		if len(items) == 0 {
			return "No anomaly knowledge remains; nothing to verify", nil
		}
		return fmt.Sprintf("Reviewed %d anomaly-related knowledge item(s); strongest: %s",
			len(items), items[0].Content), nil

	case models.ActionGatherContext:
		recent := s.knowledge.recent(20, now)
		return fmt.Sprintf("Collected %d recent knowledge item(s) for context", len(recent)), nil

	case models.ActionGenerateAlert:
		message := s.draftAlertMessage(now)
		return "Alert generated: " + message, nil

	case models.ActionTrackSubject:
		subjects := s.strategy.GetTrackedSubjects()
		if len(subjects) == 0 {
			return "", fmt.Errorf("no tracked subjects to follow")
		}
		top := subjects[0]
		if next := s.strategy.PredictNextCameras(&top, 5.0); len(next) > 0 {
			return fmt.Sprintf("Tracking subject %s (threat %.2f) last seen on camera %s, heading toward %s",
				top.ID, top.ThreatScore, top.LastCamera(), strings.Join(next, ", ")), nil
		}
		return fmt.Sprintf("Tracking subject %s (threat %.2f) last seen on camera %s",
			top.ID, top.ThreatScore, top.LastCamera()), nil

	case models.ActionInitiateResponse:
		camera := s.strategy.GetRecommendedCamera()
		incident := s.strategy.CreateIncident(
			models.IncidentSuspiciousBehavior,
			models.SeverityHigh,
			camera,
			"Incident opened by cognitive response action",
		)
		if _, err := s.strategy.GeneratePlan(incident.ID); err != nil {
			return "", fmt.Errorf("incident %s created but plan generation failed: %w", incident.ID, err)
		}
		return fmt.Sprintf("Incident %s created with response plan", incident.ID), nil

	case models.ActionCoordinateSystem:
		report := s.strategy.GenerateSituationReport()
		lines := strings.Count(report, "\n")
		return fmt.Sprintf("Situation report compiled (%d lines)", lines), nil

	case models.ActionUpdateModel:
		return "Baseline model refresh noted for the next learning cycle", nil

	case models.ActionLogInformation:
		return fmt.Sprintf("State logged: %d knowledge item(s), %d goal(s)",
			s.knowledge.size(), len(s.goals.all())), nil

	case models.ActionRequestAssistance:
		if !s.oracle.Available() {
			return "Assistance request logged for operator review (oracle unavailable)", nil
		}
		req := oracle.NewRequest("", oracle.RequestAnomalyAnalysis)
		for _, item := range s.knowledge.recent(10, now) {
			req.AddContext(oracle.ContextItem{
				Type:        oracle.ContextSystemEvent,
				Description: item.Content,
				TimestampUs: item.CreatedAt.UnixMicro(),
				Confidence:  item.Confidence,
			})
		}
		resp := s.oracle.Ask(req)
		if !resp.Success {
			return "Assistance request failed: " + resp.ErrorMessage, nil
		}
		return "External analysis received: " + firstLine(resp.Reasoning), nil

	default:
		return "", fmt.Errorf("unsupported action type %s", action.Type)
	}
}

// draftAlertMessage builds the alert text from the most relevant threat
// knowledge, falling back to anomaly knowledge, then a generic notice.
func (s *System) draftAlertMessage(now time.Time) string {
	if items := s.knowledge.search([]string{"threat"}, now); len(items) > 0 {
		return items[0].Content
	}
	if items := s.knowledge.search([]string{"anomaly"}, now); len(items) > 0 {
		return items[0].Content
	}
	return "Security attention required: unspecified elevated activity"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
