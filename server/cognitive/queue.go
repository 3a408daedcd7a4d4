package cognitive

import (
	"fmt"
	"sync"
	"time"

	"github.com/san-kum/sentinel-core/server/models"
	"go.uber.org/zap"
)

// TaskQueue feeds the cognitive worker. Consumption is strictly FIFO; the
// priority recorded on each task is advisory metadata for observability and
// is deliberately not a scheduling key.
type TaskQueue struct {
	items     chan *models.CognitiveTask
	taskFunc  func(*models.CognitiveTask)
	wg        sync.WaitGroup
	shutdown  chan struct{}
	isRunning bool
	mutex     sync.RWMutex
	logger    *zap.Logger
}

func NewTaskQueue(queueSize int, taskFunc func(*models.CognitiveTask), logger *zap.Logger) *TaskQueue {
	q := &TaskQueue{
		items:     make(chan *models.CognitiveTask, queueSize),
		taskFunc:  taskFunc,
		shutdown:  make(chan struct{}),
		isRunning: true,
		logger:    logger,
	}

	q.wg.Add(1)
	go q.worker()

	return q
}

func (q *TaskQueue) worker() {
	defer q.wg.Done()

	for {
		select {
		case task := <-q.items:
			if task != nil {
				q.runTask(task)
			}
		case <-q.shutdown:
			return
		}
	}
}

// runTask executes one task; a panic in a handler is logged and never
// stops the worker.
func (q *TaskQueue) runTask(task *models.CognitiveTask) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Cognitive task panicked",
				zap.String("type", string(task.Type)),
				zap.Any("panic", r))
		}
	}()

	q.taskFunc(task)
}

// Enqueue adds a task without blocking; a full queue rejects the task.
func (q *TaskQueue) Enqueue(task *models.CognitiveTask) bool {
	q.mutex.RLock()
	if !q.isRunning {
		q.mutex.RUnlock()
		return false
	}
	q.mutex.RUnlock()

	task.EnqueuedAt = time.Now()

	select {
	case q.items <- task:
		return true
	default:
		q.logger.Warn("Cognitive queue full, task dropped",
			zap.String("type", string(task.Type)))
		return false
	}
}

func (q *TaskQueue) Size() int {
	return len(q.items)
}

func (q *TaskQueue) Capacity() int {
	return cap(q.items)
}

func (q *TaskQueue) IsRunning() bool {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	return q.isRunning
}

// Shutdown stops the worker; queued tasks are discarded.
func (q *TaskQueue) Shutdown(timeout time.Duration) error {
	q.mutex.Lock()
	if !q.isRunning {
		q.mutex.Unlock()
		return nil
	}
	q.isRunning = false
	q.mutex.Unlock()

	close(q.shutdown)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("cognitive queue shutdown timeout exceeded")
	}
}

type QueueStats struct {
	CurrentSize        int     `json:"current_size"`
	MaxCapacity        int     `json:"max_capacity"`
	IsRunning          bool    `json:"is_running"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

func (q *TaskQueue) Stats() QueueStats {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	return QueueStats{
		CurrentSize:        q.Size(),
		MaxCapacity:        q.Capacity(),
		IsRunning:          q.isRunning,
		UtilizationPercent: float64(q.Size()) / float64(q.Capacity()) * 100,
	}
}
