package cognitive

import (
	"sync"
	"time"

	"github.com/san-kum/sentinel-core/server/models"
	"github.com/san-kum/sentinel-core/server/oracle"
	"github.com/san-kum/sentinel-core/server/strategy"
	"go.uber.org/zap"
)

const (
	defaultQueueSize    = 256
	knowledgeValidity   = 60 * time.Second
	knowledgeMaxAge     = 24 * time.Hour
	completedRetention  = 1 * time.Hour
	maintenanceInterval = 60 * time.Second
)

// System is the goal-directed cognitive core: it ingests observations and
// confirmed anomalies as knowledge, maintains goals, and plans and executes
// actions through a single FIFO task worker.
type System struct {
	goals     *goalStore
	knowledge *knowledgeStore
	actions   *actionStore
	reasoning *reasoningStore

	queue    *TaskQueue
	strategy *strategy.Manager
	oracle   *oracle.Client

	contexts      map[string]*oracle.ContextManager
	contextsMutex sync.Mutex

	reflection *reflectionLog

	reflectInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup

	logger *zap.Logger
}

func NewSystem(strategyMgr *strategy.Manager, oracleClient *oracle.Client, reflectInterval time.Duration, logger *zap.Logger) *System {
	if reflectInterval <= 0 {
		reflectInterval = 60 * time.Second
	}

	s := &System{
		goals:           newGoalStore(),
		knowledge:       newKnowledgeStore(),
		actions:         newActionStore(),
		reasoning:       newReasoningStore(),
		strategy:        strategyMgr,
		oracle:          oracleClient,
		contexts:        make(map[string]*oracle.ContextManager),
		reflection:      newReflectionLog(),
		reflectInterval: reflectInterval,
		stopCh:          make(chan struct{}),
		logger:          logger,
	}

	s.queue = NewTaskQueue(defaultQueueSize, s.dispatch, logger)
	s.seedGoals()

	s.wg.Add(2)
	go s.maintenanceLoop()
	go s.reflectLoop()

	return s
}

// seedGoals installs the standing goals every fresh system starts with.
func (s *System) seedGoals() {
	s.goals.put(&models.Goal{
		ID:          models.NewID("GOAL"),
		Type:        models.GoalMonitor,
		Description: "Maintain continuous monitoring of all active cameras",
		Priority:    models.PriorityMedium,
		Status:      models.GoalPending,
		CreatedAt:   time.Now(),
	})
	s.goals.put(&models.Goal{
		ID:          models.NewID("GOAL"),
		Type:        models.GoalOptimize,
		Description: "Improve detection baselines from accumulated observations",
		Priority:    models.PriorityLow,
		Status:      models.GoalPending,
		CreatedAt:   time.Now(),
	})
}

// ProcessAnalysisResult enqueues one observation for perception. Anomalous
// observations are tagged with a higher advisory priority.
func (s *System) ProcessAnalysisResult(cameraID string, result *models.FrameAnalysisResult) bool {
	priority := 5
	if result.IsAnomaly {
		priority = 10
	}

	return s.queue.Enqueue(&models.CognitiveTask{
		Type:     models.TaskProcessAnalysis,
		Priority: priority,
		Payload: map[string]any{
			"camera_id": cameraID,
			"result":    result,
		},
	})
}

// OnAnomalyConfirmed is the response gate's event callback. A confirmed
// anomaly enters the knowledge base as a high-confidence fact and triggers
// a cognition pass.
func (s *System) OnAnomalyConfirmed(cameraID string, result *models.FrameAnalysisResult) {
	s.knowledge.put(&models.KnowledgeItem{
		ID:         models.NewID("KNOW"),
		Type:       models.KnowledgeFact,
		Subject:    "anomaly-confirmed",
		Content:    "Confirmed anomaly " + result.AnomalyType + ": " + result.AnomalyDescription,
		Confidence: result.AnomalyScore,
		CreatedAt:  time.Now(),
		ValidFor:   knowledgeValidity,
		CameraID:   cameraID,
	})

	s.contextManager(cameraID).Add(oracle.ContextItem{
		Type:        oracle.ContextSystemEvent,
		Description: "Anomaly confirmed by verification gate: " + result.AnomalyType,
		TimestampUs: result.TimestampUs,
		Confidence:  result.AnomalyScore,
	})

	s.queue.Enqueue(&models.CognitiveTask{
		Type:     models.TaskUpdateKnowledge,
		Priority: 10,
		Payload:  map[string]any{"camera_id": cameraID},
	})
}

// dispatch routes one task to its handler. Handler errors are logged and
// never stop the worker.
func (s *System) dispatch(task *models.CognitiveTask) {
	var err error

	switch task.Type {
	case models.TaskProcessAnalysis:
		err = s.handleProcessAnalysis(task)
	case models.TaskUpdateKnowledge:
		err = s.handleUpdateKnowledge(task)
	case models.TaskEvaluateGoals:
		err = s.handleEvaluateGoals(task)
	case models.TaskSelectActions:
		err = s.handleSelectActions(task)
	case models.TaskExecuteAction:
		err = s.handleExecuteAction(task)
	case models.TaskReflect:
		err = s.handleReflect(task)
	default:
		s.logger.Warn("Unknown cognitive task type", zap.String("type", string(task.Type)))
		return
	}

	if err != nil {
		s.logger.Error("Cognitive task failed",
			zap.String("type", string(task.Type)),
			zap.Error(err))
	}
}

func (s *System) contextManager(cameraID string) *oracle.ContextManager {
	s.contextsMutex.Lock()
	defer s.contextsMutex.Unlock()

	cm, ok := s.contexts[cameraID]
	if !ok {
		cm = oracle.NewContextManager(cameraID)
		s.contexts[cameraID] = cm
	}
	return cm
}

func (s *System) maintenanceLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			knowledgeRemoved := s.knowledge.sweep(knowledgeMaxAge, now)
			actionsRemoved := s.actions.sweepCompleted(completedRetention, now)
			reasoningRemoved := s.reasoning.sweep(completedRetention, now)
			if knowledgeRemoved+actionsRemoved+reasoningRemoved > 0 {
				s.logger.Debug("Cognitive maintenance sweep",
					zap.Int("knowledge_removed", knowledgeRemoved),
					zap.Int("actions_removed", actionsRemoved),
					zap.Int("reasoning_removed", reasoningRemoved))
			}
		case <-s.stopCh:
			return
		}
	}
}

// reflectLoop periodically enqueues a REFLECT task at the lowest advisory
// priority. Scheduling from a ticker keeps reflection off the hot path.
func (s *System) reflectLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.reflectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.queue.Enqueue(&models.CognitiveTask{
				Type:     models.TaskReflect,
				Priority: 1,
			})
		case <-s.stopCh:
			return
		}
	}
}

// Status is a snapshot for operators.
type Status struct {
	Goals          []models.Goal   `json:"goals"`
	Actions        []models.Action `json:"actions"`
	KnowledgeCount int             `json:"knowledge_count"`
	ReasoningCount int             `json:"reasoning_count"`
	Queue          QueueStats      `json:"queue"`
}

func (s *System) Status() Status {
	return Status{
		Goals:          s.goals.all(),
		Actions:        s.actions.all(),
		KnowledgeCount: s.knowledge.size(),
		ReasoningCount: s.reasoning.size(),
		Queue:          s.queue.Stats(),
	}
}

func (s *System) Shutdown(timeout time.Duration) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	return s.queue.Shutdown(timeout)
}
