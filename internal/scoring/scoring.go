// Package scoring turns a level's answers into a score and reward currencies.
//
// All functions are pure and total. Confidence values outside 1..5 are not
// rejected here; they propagate through the arithmetic unchanged.
package scoring

import (
	"math"

	"github.com/pavelanni/alicorn/internal/model"
)

// GleamsPerAlicorn is the conversion rate between the two currencies.
const GleamsPerAlicorn = 100

// Round rounds to the nearest integer with halves rounded up (2.5 -> 3, -2.5 -> -2).
func Round(x float64) int {
	return int(math.Floor(x + 0.5))
}

// RoundCents rounds x to two decimal places with the same half-up rule as Round.
func RoundCents(x float64) float64 {
	return math.Floor(x*100+0.5) / 100
}

// LevelScore returns the percentage of the maximum confidence the answers reach.
// An empty map scores 0.
func LevelScore(answers model.AnswerMap) int {
	if len(answers) == 0 {
		return 0
	}
	sum := 0
	for _, v := range answers {
		sum += v
	}
	return Round(float64(sum) / float64(len(answers)*model.MaxConfidence) * 100)
}

// GleamsForLevel weights each question's gleams by its confidence fraction.
// Every question of the level contributes, unanswered ones with 0. The sum is
// rounded once at the end.
func GleamsForLevel(answers model.AnswerMap, level model.Level) int {
	var total float64
	for _, q := range level.Questions {
		total += float64(answers[q.Code]) / model.MaxConfidence * q.Gleams
	}
	return Round(total)
}

// AlicornsForLevel converts the level's integer gleams to alicorns with two
// decimal places. The gleams are rounded before the conversion.
func AlicornsForLevel(answers model.AnswerMap, level model.Level) float64 {
	return GleamsToAlicorns(GleamsForLevel(answers, level))
}

// GleamsToAlicorns applies the lossy 100:1 conversion to an integer gleam amount.
func GleamsToAlicorns(gleams int) float64 {
	return float64(Round(float64(gleams)/GleamsPerAlicorn*100)) / 100
}
