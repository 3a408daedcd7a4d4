package cognitive

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/san-kum/sentinel-core/server/models"
)

// Each store guards its own map with its own lock. Cross-store operations
// snapshot one store at a time and never hold two locks together.

type goalStore struct {
	goals map[string]*models.Goal
	mutex sync.Mutex
}

func newGoalStore() *goalStore {
	return &goalStore{goals: make(map[string]*models.Goal)}
}

func (s *goalStore) put(goal *models.Goal) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.goals[goal.ID] = goal
}

func (s *goalStore) get(id string) (models.Goal, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	goal, ok := s.goals[id]
	if !ok {
		return models.Goal{}, false
	}
	return *goal, true
}

func (s *goalStore) update(id string, fn func(*models.Goal)) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	goal, ok := s.goals[id]
	if !ok {
		return false
	}
	fn(goal)
	return true
}

// active returns pending and in-progress goals, highest priority first.
func (s *goalStore) active() []models.Goal {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var out []models.Goal
	for _, goal := range s.goals {
		if goal.Status == models.GoalPending || goal.Status == models.GoalInProgress {
			out = append(out, *goal)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// activeOfType finds an open goal of the given type.
func (s *goalStore) activeOfType(goalType models.GoalType) (models.Goal, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, goal := range s.goals {
		if goal.Type == goalType &&
			(goal.Status == models.GoalPending || goal.Status == models.GoalInProgress) {
			return *goal, true
		}
	}
	return models.Goal{}, false
}

func (s *goalStore) all() []models.Goal {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make([]models.Goal, 0, len(s.goals))
	for _, goal := range s.goals {
		out = append(out, *goal)
	}
	return out
}

type knowledgeStore struct {
	items map[string]*models.KnowledgeItem
	mutex sync.Mutex
}

func newKnowledgeStore() *knowledgeStore {
	return &knowledgeStore{items: make(map[string]*models.KnowledgeItem)}
}

func (s *knowledgeStore) put(item *models.KnowledgeItem) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.items[item.ID] = item
}

// recent returns up to max valid items, newest first.
func (s *knowledgeStore) recent(max int, now time.Time) []models.KnowledgeItem {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var out []models.KnowledgeItem
	for _, item := range s.items {
		if !item.Expired(now) {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// search returns valid items whose content contains any of the terms.
func (s *knowledgeStore) search(terms []string, now time.Time) []models.KnowledgeItem {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var out []models.KnowledgeItem
	for _, item := range s.items {
		if item.Expired(now) {
			continue
		}
		content := strings.ToLower(item.Content)
		for _, term := range terms {
			if strings.Contains(content, strings.ToLower(term)) {
				out = append(out, *item)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// sweep removes items older than maxAge regardless of validity horizon.
func (s *knowledgeStore) sweep(maxAge time.Duration, now time.Time) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for id, item := range s.items {
		if now.Sub(item.CreatedAt) > maxAge {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

func (s *knowledgeStore) size() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.items)
}

type actionStore struct {
	actions map[string]*models.Action
	mutex   sync.Mutex
}

func newActionStore() *actionStore {
	return &actionStore{actions: make(map[string]*models.Action)}
}

func (s *actionStore) put(action *models.Action) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.actions[action.ID] = action
}

func (s *actionStore) get(id string) (models.Action, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	action, ok := s.actions[id]
	if !ok {
		return models.Action{}, false
	}
	return *action, true
}

func (s *actionStore) update(id string, fn func(*models.Action)) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	action, ok := s.actions[id]
	if !ok {
		return false
	}
	fn(action)
	return true
}

// hasOpenActions reports whether a goal still has non-terminal actions.
func (s *actionStore) hasOpenActions(goalID string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, action := range s.actions {
		if action.GoalID != goalID {
			continue
		}
		if action.Status == models.ActionPending || action.Status == models.ActionInProgress {
			return true
		}
	}
	return false
}

// progressForGoal computes completed/total over actions linked to a goal.
func (s *actionStore) progressForGoal(goalID string) (float64, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	total := 0
	completed := 0
	for _, action := range s.actions {
		if action.GoalID != goalID {
			continue
		}
		total++
		if action.Status == models.ActionCompleted {
			completed++
		}
	}
	if total == 0 {
		return 0, false
	}
	return float64(completed) / float64(total), true
}

// sweepCompleted drops terminal actions older than maxAge.
func (s *actionStore) sweepCompleted(maxAge time.Duration, now time.Time) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for id, action := range s.actions {
		terminal := action.Status == models.ActionCompleted ||
			action.Status == models.ActionFailed ||
			action.Status == models.ActionCancelled
		if terminal && !action.CompletedAt.IsZero() && now.Sub(action.CompletedAt) > maxAge {
			delete(s.actions, id)
			removed++
		}
	}
	return removed
}

func (s *actionStore) all() []models.Action {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make([]models.Action, 0, len(s.actions))
	for _, action := range s.actions {
		out = append(out, *action)
	}
	return out
}

type reasoningStore struct {
	records map[string]*models.Reasoning
	mutex   sync.Mutex
}

func newReasoningStore() *reasoningStore {
	return &reasoningStore{records: make(map[string]*models.Reasoning)}
}

func (s *reasoningStore) put(record *models.Reasoning) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.records[record.ID] = record
}

func (s *reasoningStore) sweep(maxAge time.Duration, now time.Time) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for id, record := range s.records {
		if now.Sub(record.CreatedAt) > maxAge {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}

func (s *reasoningStore) size() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.records)
}
