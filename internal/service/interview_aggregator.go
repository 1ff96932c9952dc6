package service

import (
	"math"

	"github.com/noah-isme/gema-interview-api/internal/models"
)

// readinessThresholds maps the minimum rounded average score onto a readiness tier,
// checked from the highest tier down.
var readinessThresholds = []struct {
	min  float64
	tier string
}{
	{min: 8.5, tier: models.ReadinessHighlyReady},
	{min: 7.0, tier: models.ReadinessReady},
	{min: 5.0, tier: models.ReadinessNeedsWork},
}

// AverageScore returns the arithmetic mean of the scores rounded to one decimal place.
func AverageScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}

	total := 0.0
	for _, score := range scores {
		total += score
	}

	return math.Round(total/float64(len(scores))*10) / 10
}

// ReadinessFor maps an average score onto its readiness tier. Equal averages always map to the same tier.
func ReadinessFor(average float64) string {
	for _, threshold := range readinessThresholds {
		if average >= threshold.min {
			return threshold.tier
		}
	}
	return models.ReadinessNotReady
}
