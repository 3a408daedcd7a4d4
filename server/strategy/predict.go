package strategy

import (
	"math"

	"github.com/san-kum/sentinel-core/server/models"
)

// Predicted positions within this distance of a frame edge trigger
// next-camera prediction.
const edgeThreshold = 0.1

// Minimum time base for velocity estimation, in seconds.
const minVelocityDt = 0.001

// PredictNextPosition linearly extrapolates a subject's position dtSecs
// into the future. Velocity is estimated from the two most recent records
// on the same camera when available, else the two most recent overall.
// The result is clamped to the [0,1]² frame.
func PredictNextPosition(subject *models.TrackedSubject, dtSecs float64) (models.Point, bool) {
	n := len(subject.Positions)
	if n < 2 {
		return models.Point{}, false
	}

	last := subject.Positions[n-1]

	// Prefer the most recent pair seen by the same camera.
	var prev *models.PositionRecord
	for i := n - 2; i >= 0; i-- {
		if subject.Positions[i].CameraID == last.CameraID {
			prev = &subject.Positions[i]
			break
		}
	}
	if prev == nil {
		prev = &subject.Positions[n-2]
	}

	dt := float64(last.TimestampUs-prev.TimestampUs) / 1e6
	if dt < minVelocityDt {
		dt = minVelocityDt
	}

	vx := (last.Position.X - prev.Position.X) / dt
	vy := (last.Position.Y - prev.Position.Y) / dt

	predicted := models.Point{
		X: clamp01(last.Position.X + vx*dtSecs),
		Y: clamp01(last.Position.Y + vy*dtSecs),
	}
	return predicted, true
}

// PredictNextCameras returns the adjacent cameras a subject is plausibly
// heading toward. Prediction triggers only when the extrapolated position is
// within edgeThreshold of a frame edge; candidates are filtered by the
// spatial direction of the neighbor relative to the current camera.
func (m *Manager) PredictNextCameras(subject *models.TrackedSubject, dtSecs float64) []string {
	predicted, ok := PredictNextPosition(subject, dtSecs)
	if !ok {
		return nil
	}

	currentID := subject.LastCamera()
	current, found := m.Camera(currentID)
	if !found {
		return nil
	}

	atLeft := predicted.X < edgeThreshold
	atRight := predicted.X > 1-edgeThreshold
	atTop := predicted.Y < edgeThreshold
	atBottom := predicted.Y > 1-edgeThreshold

	if !atLeft && !atRight && !atTop && !atBottom {
		return nil
	}

	var candidates []string
	for _, adjID := range current.AdjacentCameraIDs {
		adj, ok := m.Camera(adjID)
		if !ok {
			continue
		}

		dx := adj.Position.X - current.Position.X
		dy := adj.Position.Y - current.Position.Y

		switch {
		case atLeft && dx < 0:
			candidates = append(candidates, adjID)
		case atRight && dx > 0:
			candidates = append(candidates, adjID)
		case atTop && dy < 0:
			candidates = append(candidates, adjID)
		case atBottom && dy > 0:
			candidates = append(candidates, adjID)
		case math.Abs(dx) < 1e-9 && math.Abs(dy) < 1e-9:
			// Co-located cameras stay plausible in any direction.
			candidates = append(candidates, adjID)
		}
	}
	return candidates
}
