package oracle

import (
	"sync"
)

// Cap on retained context items per camera; oldest entries are dropped.
const maxContextItems = 1000

// ContextManager keeps the rolling evidence window for one camera.
type ContextManager struct {
	cameraID string
	items    []ContextItem
	mutex    sync.Mutex
}

func NewContextManager(cameraID string) *ContextManager {
	return &ContextManager{cameraID: cameraID}
}

func (cm *ContextManager) Add(item ContextItem) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.items = append(cm.items, item)
	if len(cm.items) > maxContextItems {
		cm.items = cm.items[len(cm.items)-maxContextItems:]
	}
}

// Recent returns up to max of the newest items, oldest first.
func (cm *ContextManager) Recent(max int) []ContextItem {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if max <= 0 || max > len(cm.items) {
		max = len(cm.items)
	}
	out := make([]ContextItem, max)
	copy(out, cm.items[len(cm.items)-max:])
	return out
}

// Range returns items whose timestamps fall within [startUs, endUs].
func (cm *ContextManager) Range(startUs, endUs int64) []ContextItem {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	var out []ContextItem
	for _, item := range cm.items {
		if item.TimestampUs >= startUs && item.TimestampUs <= endUs {
			out = append(out, item)
		}
	}
	return out
}

// ClearOld drops items older than the given timestamp.
func (cm *ContextManager) ClearOld(olderThanUs int64) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	kept := cm.items[:0]
	for _, item := range cm.items {
		if item.TimestampUs >= olderThanUs {
			kept = append(kept, item)
		}
	}
	cm.items = kept
}

func (cm *ContextManager) Len() int {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	return len(cm.items)
}
