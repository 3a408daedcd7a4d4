package oracle

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	confidenceLine = regexp.MustCompile(`(?im)^\s*CONFIDENCE:\s*([0-9]*\.?[0-9]+)\s*$`)
	actionLine     = regexp.MustCompile(`(?im)^\s*ACTION:\s*([A-Z_]+)\s*-\s*(.+)$`)
)

// parseResponse extracts reasoning text, a confidence score and typed
// recommended actions from the oracle's free-text output. Output that
// carries no recognizable structure still succeeds, with a conservative
// default confidence.
func parseResponse(text string) Response {
	resp := Response{
		Reasoning:  strings.TrimSpace(text),
		Confidence: 0.5,
		Success:    true,
	}

	if m := confidenceLine.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 0 && v <= 1 {
			resp.Confidence = v
		}
	}

	for _, m := range actionLine.FindAllStringSubmatch(text, -1) {
		actionType, ok := recommendedActionType(m[1])
		if !ok {
			continue
		}
		resp.Actions = append(resp.Actions, RecommendedAction{
			Type:        actionType,
			Description: strings.TrimSpace(m[2]),
			Confidence:  resp.Confidence,
		})
	}

	return resp
}

func recommendedActionType(s string) (RecommendedActionType, bool) {
	switch RecommendedActionType(s) {
	case RecommendMonitor, RecommendAlert, RecommendTrack, RecommendAnalyzeFurther,
		RecommendCrossReference, RecommendPredict, RecommendAction:
		return RecommendedActionType(s), true
	default:
		return "", false
	}
}
