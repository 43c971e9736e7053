package services

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ExtractScore reads the "score" field. Numbers and numeric strings are
// accepted; anything else yields 0 so a verdict is never lost to a bad score.
func ExtractScore(fields map[string]any) float64 {
	var score float64

	switch v := fields["score"].(type) {
	case float64:
		score = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		score = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		score = f
	default:
		return 0
	}

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}
