package response

import (
	"sort"
	"sync"
	"time"

	"github.com/san-kum/sentinel-core/server/models"
	"go.uber.org/zap"
)

const (
	// Detections persisting this long are verified regardless of score.
	persistenceThreshold = 30 * time.Second

	// Trackers idle this long are pruned.
	trackerRetention = 120 * time.Second

	defaultCooldown = 60 * time.Second
	callOutCooldown = 300 * time.Second

	// Bucket name for actions that apply to every anomaly type.
	defaultBucket = "default"
)

// EventCallback is invoked at most once per verified anomaly occurrence,
// subject to action cooldowns. The cognitive core subscribes here.
type EventCallback func(cameraID string, result *models.FrameAnalysisResult)

// tracker follows one anomaly type through repeated detections.
type tracker struct {
	anomalyType   string
	initialScore  float64
	consecutive   int
	firstDetected time.Time
	lastDetected  time.Time
	verified      bool
	responded     bool
}

// Gate verifies anomalies for one camera before any response fires.
// Default actions are templates: each anomaly type receives its own copies
// on first sight, so cooldown state is never shared across types.
type Gate struct {
	cameraID string

	defaults      []*Action
	actions       map[string][]*Action
	trackers      map[string]*tracker
	mutex         sync.Mutex
	eventCallback EventCallback

	dispatcher *Dispatcher
	logger     *zap.Logger
}

func NewGate(cameraID string, logger *zap.Logger) *Gate {
	g := &Gate{
		cameraID:   cameraID,
		actions:    make(map[string][]*Action),
		trackers:   make(map[string]*tracker),
		dispatcher: NewDispatcher(logger),
		logger:     logger,
	}

	// Every anomaly type gets at least a log entry and the host event.
	g.AddAction(defaultBucket, &Action{
		Type:        ActionLogOnly,
		Name:        "log-anomaly",
		Description: "Record the verified anomaly in the system log",
		Priority:    1,
		Cooldown:    defaultCooldown,
	})
	g.AddAction(defaultBucket, &Action{
		Type:        ActionEvent,
		Name:        "raise-event",
		Description: "Raise the confirmed-anomaly event",
		Priority:    10,
		Cooldown:    defaultCooldown,
	})

	return g
}

// SetEventCallback registers the confirmed-anomaly subscriber.
func (g *Gate) SetEventCallback(callback EventCallback) {
	g.mutex.Lock()
	g.eventCallback = callback
	g.mutex.Unlock()
}

// AddAction registers a response action. Actions added to the "default"
// bucket become templates copied into every anomaly type seen afterwards;
// type-specific actions extend that type's own bucket.
func (g *Gate) AddAction(anomalyType string, action *Action) {
	if action.Cooldown <= 0 {
		action.Cooldown = defaultCooldown
		if action.Type == ActionSIPCall {
			action.Cooldown = callOutCooldown
		}
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if anomalyType == defaultBucket {
		g.defaults = append(g.defaults, action)
		return
	}
	g.actions[anomalyType] = append(g.typeBucket(anomalyType), action)
}

// RemoveAction removes a named action from an anomaly type's bucket, or
// from the default templates.
func (g *Gate) RemoveAction(anomalyType, name string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if anomalyType == defaultBucket {
		g.defaults = removeByName(g.defaults, name)
		return
	}
	g.actions[anomalyType] = removeByName(g.typeBucket(anomalyType), name)
}

func removeByName(bucket []*Action, name string) []*Action {
	kept := bucket[:0]
	for _, a := range bucket {
		if a.Name != name {
			kept = append(kept, a)
		}
	}
	return kept
}

// ProcessAnomaly runs the verification ladder for one anomalous observation
// and fires responses on the first verification. Returns whether the
// anomaly is currently verified.
func (g *Gate) ProcessAnomaly(result *models.FrameAnalysisResult) bool {
	if !result.IsAnomaly || result.AnomalyType == "" {
		return false
	}

	now := time.Now()

	g.mutex.Lock()
	g.pruneTrackers(now)

	t, ok := g.trackers[result.AnomalyType]
	if !ok {
		t = &tracker{
			anomalyType:   result.AnomalyType,
			initialScore:  result.AnomalyScore,
			consecutive:   1,
			firstDetected: now,
			lastDetected:  now,
		}
		g.trackers[result.AnomalyType] = t
	} else {
		t.consecutive++
		t.lastDetected = now
	}

	// Verification is monotonic: once set it never reverts.
	if !t.verified {
		t.verified = g.verify(result, t, now)
	}

	verified := t.verified
	shouldRespond := verified && !t.responded
	if shouldRespond {
		t.responded = true
	}

	var callback EventCallback
	var bucket []*Action
	if shouldRespond {
		callback = g.eventCallback
		bucket = append([]*Action(nil), g.typeBucket(result.AnomalyType)...)
	}
	g.mutex.Unlock()

	if shouldRespond {
		g.triggerResponses(result, bucket, callback, now)
	}

	return verified
}

// verify applies the ladder; first rule that matches wins.
func (g *Gate) verify(result *models.FrameAnalysisResult, t *tracker, now time.Time) bool {
	switch {
	case result.AnomalyScore > 0.85:
		return true
	case result.AnomalyScore > 0.7 && t.consecutive >= 2:
		return true
	case t.consecutive >= 3:
		return true
	case now.Sub(t.firstDetected) > persistenceThreshold:
		return true
	default:
		return false
	}
}

// typeBucket returns the action list for the type, materializing value
// copies of the default templates on first sight. Each copy carries its own
// cooldown stamp. Caller holds the mutex.
func (g *Gate) typeBucket(anomalyType string) []*Action {
	bucket, ok := g.actions[anomalyType]
	if !ok {
		bucket = make([]*Action, 0, len(g.defaults))
		for _, template := range g.defaults {
			copied := *template
			bucket = append(bucket, &copied)
		}
		g.actions[anomalyType] = bucket
	}
	return bucket
}

// triggerResponses fires the bucket's actions in descending priority order,
// each gated by its own cooldown.
func (g *Gate) triggerResponses(result *models.FrameAnalysisResult, bucket []*Action, callback EventCallback, now time.Time) {
	sort.Slice(bucket, func(i, j int) bool { return bucket[i].Priority > bucket[j].Priority })

	for _, action := range bucket {
		g.mutex.Lock()
		onCooldown := !action.lastTriggered.IsZero() && now.Sub(action.lastTriggered) < action.Cooldown
		if !onCooldown {
			action.lastTriggered = now
		}
		g.mutex.Unlock()

		if onCooldown {
			g.logger.Debug("Response action skipped by cooldown",
				zap.String("camera_id", g.cameraID),
				zap.String("action", action.Name))
			continue
		}

		if action.Type == ActionEvent {
			if callback != nil {
				callback(g.cameraID, result)
			}
			continue
		}

		if err := g.dispatcher.Execute(action, g.cameraID, result); err != nil {
			g.logger.Error("Response action failed",
				zap.String("camera_id", g.cameraID),
				zap.String("action", action.Name),
				zap.Error(err))
		}
	}
}

// pruneTrackers drops trackers idle beyond the retention window. Caller
// holds the mutex.
func (g *Gate) pruneTrackers(now time.Time) {
	for anomalyType, t := range g.trackers {
		if now.Sub(t.lastDetected) > trackerRetention {
			delete(g.trackers, anomalyType)
		}
	}
}

// TrackerState is the externally visible view of one tracker, for tests
// and operator introspection.
type TrackerState struct {
	AnomalyType string    `json:"anomaly_type"`
	Consecutive int       `json:"consecutive"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Verified    bool      `json:"verified"`
	Responded   bool      `json:"responded"`
}

func (g *Gate) Trackers() []TrackerState {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	out := make([]TrackerState, 0, len(g.trackers))
	for _, t := range g.trackers {
		out = append(out, TrackerState{
			AnomalyType: t.anomalyType,
			Consecutive: t.consecutive,
			FirstSeen:   t.firstDetected,
			LastSeen:    t.lastDetected,
			Verified:    t.verified,
			Responded:   t.responded,
		})
	}
	return out
}
