package models

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var idMutex sync.Mutex

// NewID generates an id of the form PREFIX-<unixMillis>-<4 digits>. The
// random suffix keeps ids unique when several entities are created within
// the same millisecond.
func NewID(prefix string) string {
	idMutex.Lock()
	defer idMutex.Unlock()
	return fmt.Sprintf("%s-%d-%04d", prefix, time.Now().UnixMilli(), rand.Intn(10000))
}
