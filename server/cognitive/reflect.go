package cognitive

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/san-kum/sentinel-core/server/models"
	"github.com/san-kum/sentinel-core/server/oracle"
	"go.uber.org/zap"
)

const (
	reflectionCapacity  = 100
	reflectionMinStates = 5
	maxInsights         = 5
)

// Sentences containing these markers are extracted as insights from oracle
// reflection output.
var insightIndicators = []string{"insight", "pattern", "recommend", "improve", "observe", "trend"}

type stateSnapshot struct {
	Goals     []models.Goal   `json:"goals"`
	Actions   []models.Action `json:"actions"`
	Timestamp time.Time       `json:"timestamp"`
}

// reflectionLog is a bounded ring of state snapshots used as reflection
// history.
type reflectionLog struct {
	states []stateSnapshot
	mutex  sync.Mutex
}

func newReflectionLog() *reflectionLog {
	return &reflectionLog{}
}

func (r *reflectionLog) add(snapshot stateSnapshot) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.states = append(r.states, snapshot)
	if len(r.states) > reflectionCapacity {
		r.states = r.states[len(r.states)-reflectionCapacity:]
	}
}

func (r *reflectionLog) len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.states)
}

func (r *reflectionLog) last(n int) []stateSnapshot {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if n > len(r.states) {
		n = len(r.states)
	}
	out := make([]stateSnapshot, n)
	copy(out, r.states[len(r.states)-n:])
	return out
}

// handleReflect snapshots the current goal/action state and, when enough
// history exists, extracts insights that may adjust the goal set.
func (s *System) handleReflect(_ *models.CognitiveTask) error {
	now := time.Now()

	s.reflection.add(stateSnapshot{
		Goals:     s.goals.all(),
		Actions:   s.actions.all(),
		Timestamp: now,
	})

	if s.reflection.len() < reflectionMinStates {
		return nil
	}

	if s.oracle.Available() {
		return s.reflectWithOracle(now)
	}

	s.reflectRuleBased(now)
	return nil
}

func (s *System) reflectWithOracle(now time.Time) error {
	req := oracle.NewRequest("", oracle.RequestPredictiveAnalysis)
	for _, snapshot := range s.reflection.last(reflectionMinStates) {
		achieved, failed := 0, 0
		completed, failedActions := 0, 0
		for _, g := range snapshot.Goals {
			switch g.Status {
			case models.GoalAchieved:
				achieved++
			case models.GoalFailed:
				failed++
			}
		}
		for _, a := range snapshot.Actions {
			switch a.Status {
			case models.ActionCompleted:
				completed++
			case models.ActionFailed:
				failedActions++
			}
		}
		req.AddContext(oracle.ContextItem{
			Type: oracle.ContextSystemEvent,
			Description: fmt.Sprintf(
				"State at %s: %d goals (%d achieved, %d failed), %d actions (%d completed, %d failed)",
				snapshot.Timestamp.Format(time.RFC3339),
				len(snapshot.Goals), achieved, failed,
				len(snapshot.Actions), completed, failedActions),
			TimestampUs: snapshot.Timestamp.UnixMicro(),
			Confidence:  1.0,
		})
	}

	resp := s.oracle.Ask(req)
	if !resp.Success {
		s.logger.Warn("Oracle reflection failed, using rule-based reflection")
		s.reflectRuleBased(now)
		return nil
	}

	insights := extractInsights(resp.Reasoning)
	for _, insight := range insights {
		s.reasoning.put(&models.Reasoning{
			ID:         models.NewID("REAS"),
			Trace:      "Reflection insight: " + insight,
			Confidence: resp.Confidence,
			FromOracle: true,
			CreatedAt:  now,
		})
	}

	for _, rec := range resp.Actions {
		switch rec.Type {
		case oracle.RecommendPredict, oracle.RecommendAnalyzeFurther:
			s.actions.put(&models.Action{
				ID:              models.NewID("ACT"),
				Type:            models.ActionUpdateModel,
				Description:     rec.Description,
				Status:          models.ActionPending,
				Priority:        2,
				ExpectedUtility: rec.Confidence,
				CreatedAt:       now,
			})
		case oracle.RecommendAction:
			if _, exists := s.goals.activeOfType(models.GoalOptimize); !exists {
				s.goals.put(&models.Goal{
					ID:          models.NewID("GOAL"),
					Type:        models.GoalOptimize,
					Description: rec.Description,
					Priority:    models.PriorityLow,
					Status:      models.GoalPending,
					CreatedAt:   now,
				})
			}
		}
	}

	s.logger.Info("Reflection complete",
		zap.Int("insights", len(insights)),
		zap.Int("recommendations", len(resp.Actions)))
	return nil
}

// reflectRuleBased spawns an OPTIMIZE goal when recent actions fail often.
func (s *System) reflectRuleBased(now time.Time) {
	actions := s.actions.all()
	if len(actions) == 0 {
		return
	}

	failed := 0
	terminal := 0
	for _, a := range actions {
		switch a.Status {
		case models.ActionFailed:
			failed++
			terminal++
		case models.ActionCompleted, models.ActionCancelled:
			terminal++
		}
	}
	if terminal == 0 {
		return
	}

	failureRatio := float64(failed) / float64(terminal)
	s.reasoning.put(&models.Reasoning{
		ID: models.NewID("REAS"),
		Trace: fmt.Sprintf("Rule-based reflection: %d/%d terminal actions failed (%.0f%%)",
			failed, terminal, failureRatio*100),
		Confidence: 0.6,
		FromOracle: false,
		CreatedAt:  now,
	})

	if failureRatio > 0.5 {
		if _, exists := s.goals.activeOfType(models.GoalOptimize); !exists {
			s.goals.put(&models.Goal{
				ID:          models.NewID("GOAL"),
				Type:        models.GoalOptimize,
				Description: "Review recurring action failures and adjust planning",
				Priority:    models.PriorityLow,
				Status:      models.GoalPending,
				CreatedAt:   now,
			})
		}
	}
}

// extractInsights pulls up to maxInsights sentences containing an insight
// marker from free-form reflection text.
func extractInsights(text string) []string {
	var insights []string
	for _, sentence := range strings.Split(text, ".") {
		trimmed := strings.TrimSpace(sentence)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		for _, indicator := range insightIndicators {
			if strings.Contains(lower, indicator) {
				insights = append(insights, trimmed)
				break
			}
		}
		if len(insights) >= maxInsights {
			break
		}
	}
	return insights
}
