package cognitive

import (
	"fmt"
	"strings"
	"time"

	"github.com/san-kum/sentinel-core/server/models"
	"github.com/san-kum/sentinel-core/server/oracle"
	"go.uber.org/zap"
)

// Vocabulary scanned over recent knowledge to surface threats.
var threatIndicators = []string{
	"unknown",
	"unauthorized",
	"suspicious",
	"unusual",
	"anomaly",
	"unusual activity",
	"unexpected",
}

type threat struct {
	content     string
	score       float64
	knowledgeID string
}

// handleUpdateKnowledge is the cognition step: assess the situation,
// identify threats, and update the goal set accordingly.
func (s *System) handleUpdateKnowledge(task *models.CognitiveTask) error {
	cameraID, _ := task.Payload["camera_id"].(string)
	now := time.Now()

	s.assessSituation(cameraID, now)
	threats := s.identifyThreats(now)
	s.updateGoals(threats, now)

	s.queue.Enqueue(&models.CognitiveTask{
		Type:     models.TaskEvaluateGoals,
		Priority: task.Priority,
	})

	return nil
}

// assessSituation summarizes recent knowledge into a threat-level judgement
// recorded as a Reasoning step, consulting the oracle when available and
// falling back to a keyword scan.
func (s *System) assessSituation(cameraID string, now time.Time) {
	recent := s.knowledge.recent(20, now)

	if s.oracle.Available() && len(recent) > 0 {
		req := oracle.NewRequest(cameraID, oracle.RequestSituationAssessment)
		for _, item := range s.contextManager(cameraID).Recent(15) {
			req.AddContext(item)
		}
		resp := s.oracle.Ask(req)
		if resp.Success {
			s.reasoning.put(&models.Reasoning{
				ID:         models.NewID("REAS"),
				Trace:      resp.Reasoning,
				Confidence: resp.Confidence,
				FromOracle: true,
				CreatedAt:  now,
			})
			return
		}
		s.logger.Warn("Oracle situation assessment failed, using keyword fallback")
	}

	// Rule-based fallback: scan recent knowledge for anomaly and threat
	// language and grade the concern level from the hit count.
	hits := 0
	var lines []string
	for _, item := range recent {
		content := strings.ToLower(item.Content)
		if strings.Contains(content, "anomaly detected") || strings.Contains(content, "threat") {
			hits++
			lines = append(lines, item.Content)
		}
	}

	level := "Normal"
	confidence := 0.6
	switch {
	case hits >= 3:
		level = "High"
		confidence = 0.8
	case hits == 2:
		level = "Medium"
		confidence = 0.7
	case hits == 1:
		level = "Low"
		confidence = 0.65
	}

	s.reasoning.put(&models.Reasoning{
		ID: models.NewID("REAS"),
		Trace: fmt.Sprintf("Rule-based assessment: concern level %s (%d indicators). %s",
			level, hits, strings.Join(lines, "; ")),
		Confidence: confidence,
		FromOracle: false,
		CreatedAt:  now,
	})
}

// identifyThreats scans valid knowledge against the indicator vocabulary.
// Threat score is the item confidence scaled by 0.8; only scores above 0.5
// are kept.
func (s *System) identifyThreats(now time.Time) []threat {
	matches := s.knowledge.search(threatIndicators, now)

	var threats []threat
	for _, item := range matches {
		score := item.Confidence * 0.8
		if score > 0.5 {
			threats = append(threats, threat{
				content:     item.Content,
				score:       score,
				knowledgeID: item.ID,
			})
		}
	}
	return threats
}

// updateGoals ensures a VERIFY goal whenever threats are present and
// escalates to a CRITICAL RESPOND goal when the strongest threat exceeds
// 0.7.
func (s *System) updateGoals(threats []threat, now time.Time) {
	if len(threats) == 0 {
		return
	}

	maxScore := 0.0
	for _, t := range threats {
		if t.score > maxScore {
			maxScore = t.score
		}
	}

	if _, exists := s.goals.activeOfType(models.GoalVerify); !exists {
		s.goals.put(&models.Goal{
			ID:          models.NewID("GOAL"),
			Type:        models.GoalVerify,
			Description: fmt.Sprintf("Verify %d potential threat(s): %s", len(threats), threats[0].content),
			Priority:    models.PriorityHigh,
			Status:      models.GoalPending,
			CreatedAt:   now,
		})
		s.logger.Info("Verification goal created")
	}

	if maxScore > 0.7 {
		if _, exists := s.goals.activeOfType(models.GoalRespond); !exists {
			s.goals.put(&models.Goal{
				ID:          models.NewID("GOAL"),
				Type:        models.GoalRespond,
				Description: fmt.Sprintf("Respond to high-confidence threat (score %.2f)", maxScore),
				Priority:    models.PriorityCritical,
				Status:      models.GoalPending,
				CreatedAt:   now,
			})
			s.logger.Info("Response goal escalated", zap.Float64("threat_score", maxScore))
		}
	}
}

// handleEvaluateGoals recomputes goal progress from linked action completion
// and promotes finished goals, then moves on to action selection.
func (s *System) handleEvaluateGoals(task *models.CognitiveTask) error {
	for _, goal := range s.goals.active() {
		progress, hasActions := s.actions.progressForGoal(goal.ID)
		if !hasActions {
			continue
		}

		s.goals.update(goal.ID, func(g *models.Goal) {
			g.Progress = progress
			if progress >= 1.0 {
				g.Status = models.GoalAchieved
			} else if g.Status == models.GoalPending {
				g.Status = models.GoalInProgress
			}
		})
	}

	s.queue.Enqueue(&models.CognitiveTask{
		Type:     models.TaskSelectActions,
		Priority: task.Priority,
	})

	return nil
}
