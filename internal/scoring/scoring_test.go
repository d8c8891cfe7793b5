package scoring

import (
	"fmt"
	"math"
	"testing"

	"github.com/pavelanni/alicorn/internal/model"
)

func testLevel(gleams ...float64) model.Level {
	lvl := model.Level{ID: "L0", Name: "Test"}
	for i, g := range gleams {
		lvl.Questions = append(lvl.Questions, model.Question{
			Category: model.CategoryDimension,
			Code:     fmt.Sprintf("q%d", i+1),
			Gleams:   g,
		})
	}
	return lvl
}

func TestLevelScore(t *testing.T) {
	tests := []struct {
		name    string
		answers model.AnswerMap
		want    int
	}{
		{"empty", model.AnswerMap{}, 0},
		{"nil", nil, 0},
		{"single max", model.AnswerMap{"q": 5}, 100},
		{"two minimum", model.AnswerMap{"q": 1, "r": 1}, 20},
		{"mixed", model.AnswerMap{"q": 3, "r": 4}, 70},
		{"rounds half up", model.AnswerMap{"a": 1, "b": 1, "c": 1, "d": 1, "e": 1, "f": 1, "g": 1, "h": 2}, 23},
		{"one third", model.AnswerMap{"a": 1, "b": 2, "c": 2}, 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LevelScore(tt.answers); got != tt.want {
				t.Errorf("LevelScore(%v) = %d, want %d", tt.answers, got, tt.want)
			}
		})
	}
}

func TestLevelScoreAllMaxIsHundred(t *testing.T) {
	for n := 1; n <= 25; n++ {
		answers := model.AnswerMap{}
		for i := 0; i < n; i++ {
			answers[fmt.Sprintf("q%d", i)] = 5
		}
		if got := LevelScore(answers); got != 100 {
			t.Errorf("LevelScore with %d max answers = %d, want 100", n, got)
		}
	}
}

func TestGleamsForLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   model.Level
		answers model.AnswerMap
		want    int
	}{
		{"all max", testLevel(10, 10), model.AnswerMap{"q1": 5, "q2": 5}, 20},
		{"unanswered contributes zero", testLevel(10, 10), model.AnswerMap{"q1": 3}, 6},
		{"nothing answered", testLevel(10, 10), model.AnswerMap{}, 0},
		{"zero weights", testLevel(0, 0), model.AnswerMap{"q1": 5, "q2": 5}, 0},
		{"rounded once at the end", testLevel(1, 1, 1), model.AnswerMap{"q1": 3, "q2": 3, "q3": 3}, 2},
		{"answers outside the level ignored", testLevel(10), model.AnswerMap{"q1": 5, "zz": 5}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GleamsForLevel(tt.answers, tt.level); got != tt.want {
				t.Errorf("GleamsForLevel() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGleamsMonotonic(t *testing.T) {
	lvl := testLevel(7, 13, 25)
	for _, code := range []string{"q1", "q2", "q3"} {
		prev := -1
		for v := 1; v <= 5; v++ {
			answers := model.AnswerMap{"q1": 2, "q2": 4, "q3": 1}
			answers[code] = v
			got := GleamsForLevel(answers, lvl)
			if got < prev {
				t.Errorf("gleams decreased for %s=%d: %d < %d", code, v, got, prev)
			}
			prev = got
		}
	}
}

func TestAlicornsForLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   model.Level
		answers model.AnswerMap
		want    float64
	}{
		{"twenty gleams", testLevel(10, 10), model.AnswerMap{"q1": 5, "q2": 5}, 0.2},
		{"nothing", testLevel(10), model.AnswerMap{}, 0},
		{"large", testLevel(500, 250), model.AnswerMap{"q1": 5, "q2": 4}, 7},
		{"odd gleams", testLevel(37), model.AnswerMap{"q1": 5}, 0.37},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AlicornsForLevel(tt.answers, tt.level); got != tt.want {
				t.Errorf("AlicornsForLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAlicornsRoundTripLaw(t *testing.T) {
	lvl := testLevel(3, 17, 41, 99)
	for a := 1; a <= 5; a++ {
		for b := 1; b <= 5; b++ {
			answers := model.AnswerMap{"q1": a, "q2": b, "q3": a, "q4": b}
			g := GleamsForLevel(answers, lvl)
			want := math.Floor(float64(g)/100*100+0.5) / 100
			if got := AlicornsForLevel(answers, lvl); got != want {
				t.Errorf("answers %v: alicorns = %v, want %v (gleams %d)", answers, got, want, g)
			}
		}
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{0.49, 0},
		{0.5, 1},
		{2.5, 3},
		{-2.5, -2},
		{99.5, 100},
	}
	for _, tt := range tests {
		if got := Round(tt.in); got != tt.want {
			t.Errorf("Round(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}

	if got := RoundCents(0.8000000000000002); got != 0.8 {
		t.Errorf("RoundCents = %v, want 0.8", got)
	}
}
