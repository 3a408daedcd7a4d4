package cognitive

import (
	"sync"
	"testing"
	"time"

	"github.com/san-kum/sentinel-core/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTaskQueue_FIFOOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []int

	block := make(chan struct{})
	q := NewTaskQueue(16, func(task *models.CognitiveTask) {
		<-block
		mu.Lock()
		seen = append(seen, task.Priority)
		mu.Unlock()
	}, zap.NewNop())
	defer q.Shutdown(time.Second)

	// Enqueue with priorities out of order while the worker is held; the
	// consumption order must still be enqueue order.
	for _, priority := range []int{1, 10, 5, 7, 2} {
		require.True(t, q.Enqueue(&models.CognitiveTask{Type: models.TaskReflect, Priority: priority}))
	}
	close(block)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 5
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 10, 5, 7, 2}, seen)
}

func TestTaskQueue_FullQueueDropsTask(t *testing.T) {
	block := make(chan struct{})
	q := NewTaskQueue(1, func(*models.CognitiveTask) { <-block }, zap.NewNop())
	defer func() {
		close(block)
		q.Shutdown(time.Second)
	}()

	// One task occupies the worker, one fills the buffer; the next drops.
	q.Enqueue(&models.CognitiveTask{Type: models.TaskReflect})
	time.Sleep(20 * time.Millisecond)
	require.True(t, q.Enqueue(&models.CognitiveTask{Type: models.TaskReflect}))
	assert.False(t, q.Enqueue(&models.CognitiveTask{Type: models.TaskReflect}))
}

func TestTaskQueue_PanicDoesNotKillWorker(t *testing.T) {
	var mu sync.Mutex
	processed := 0

	q := NewTaskQueue(16, func(task *models.CognitiveTask) {
		if task.Priority == 0 {
			panic("handler blew up")
		}
		mu.Lock()
		processed++
		mu.Unlock()
	}, zap.NewNop())
	defer q.Shutdown(time.Second)

	q.Enqueue(&models.CognitiveTask{Type: models.TaskReflect, Priority: 0})
	q.Enqueue(&models.CognitiveTask{Type: models.TaskReflect, Priority: 1})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return processed == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTaskQueue_ShutdownRejectsEnqueue(t *testing.T) {
	q := NewTaskQueue(16, func(*models.CognitiveTask) {}, zap.NewNop())
	require.NoError(t, q.Shutdown(time.Second))

	assert.False(t, q.IsRunning())
	assert.False(t, q.Enqueue(&models.CognitiveTask{Type: models.TaskReflect}))
	assert.NoError(t, q.Shutdown(time.Second), "second shutdown is a no-op")
}

func TestTaskQueue_Stats(t *testing.T) {
	q := NewTaskQueue(10, func(*models.CognitiveTask) {}, zap.NewNop())
	defer q.Shutdown(time.Second)

	stats := q.Stats()
	assert.Equal(t, 10, stats.MaxCapacity)
	assert.True(t, stats.IsRunning)
}
