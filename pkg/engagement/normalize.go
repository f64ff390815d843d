package engagement

import "math"

// Engagement level labels assigned by Classify.
const (
	LevelHigh    = "high"
	LevelHealthy = "healthy"
	LevelPassive = "passive"
	LevelLow     = "low"
)

const (
	normalizationAlpha = 0.8
	normalizationCap   = 0.25
)

// RawFromSummary reduces a summary to a single raw engagement value in
// [0, 1]: the mean of the overall series divided by 100.
func RawFromSummary(s *Summary) float64 {
	if len(s.Overall) == 0 {
		return 0
	}
	var sum float64
	for _, p := range s.Overall {
		sum += p.Value
	}
	return sum / float64(len(s.Overall)) / 100.0
}

// Normalize boosts a raw engagement value to compensate for meeting size:
// in large meetings most participants are silent most of the time, so the
// same raw score means more. The boost shrinks logarithmically with the
// participant count and is capped both multiplicatively and additively.
func Normalize(raw float64, maxParticipants int) float64 {
	if maxParticipants < 1 {
		maxParticipants = 1
	}
	boost := 1 + normalizationAlpha/math.Log2(float64(maxParticipants)+1)
	normalized := raw * boost
	if capped := raw + normalizationCap; normalized > capped {
		normalized = capped
	}
	if normalized > 1.0 {
		normalized = 1.0
	}
	return normalized
}

// Classify maps a normalized engagement value to its level label.
func Classify(normalized float64) string {
	switch {
	case normalized >= 0.60:
		return LevelHigh
	case normalized >= 0.40:
		return LevelHealthy
	case normalized >= 0.20:
		return LevelPassive
	default:
		return LevelLow
	}
}
