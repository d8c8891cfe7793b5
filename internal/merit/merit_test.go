package merit

import (
	"errors"
	"testing"

	"github.com/pavelanni/alicorn/internal/model"
)

func TestResolve(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name         string
		score        int
		wantLevel    string
		wantNext     int // 0 means absent
		wantProgress float64
	}{
		{"zero", 0, "L0", 100, 0},
		{"just below first step", 99, "L0", 100, 99},
		{"exactly first step", 100, "L1", 300, 0},
		{"halfway L1", 200, "L1", 300, 50},
		{"negative score", -50, "L0", 100, 0},
		{"L7", 2800, "L7", 3600, 0},
		{"max tier", 3600, "L8", 0, 100},
		{"beyond max", 99999, "L8", 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := table.Resolve(tt.score)
			if res.MeritLevel != tt.wantLevel {
				t.Errorf("MeritLevel = %q, want %q", res.MeritLevel, tt.wantLevel)
			}
			if tt.wantNext == 0 {
				if res.NextThreshold != nil {
					t.Errorf("expected no next threshold, got %d", *res.NextThreshold)
				}
				if !res.Max() {
					t.Error("expected Max() to be true")
				}
			} else {
				if res.NextThreshold == nil || *res.NextThreshold != tt.wantNext {
					t.Errorf("NextThreshold = %v, want %d", res.NextThreshold, tt.wantNext)
				}
			}
			if res.ProgressPercentage != tt.wantProgress {
				t.Errorf("ProgressPercentage = %v, want %v", res.ProgressPercentage, tt.wantProgress)
			}
		})
	}
}

func TestProgressAlwaysInRange(t *testing.T) {
	table := DefaultTable()
	for score := -100; score <= 4000; score += 7 {
		p := table.Resolve(score).ProgressPercentage
		if p < 0 || p > 100 {
			t.Fatalf("score %d: progress %v out of range", score, p)
		}
	}
}

func TestNextLevel(t *testing.T) {
	table := DefaultTable()
	tests := []struct {
		in, want string
	}{
		{"L0", "L1"},
		{"L7", "L8"},
		{"L8", MaxLevel},
		{"L42", ""},
	}
	for _, tt := range tests {
		if got := table.NextLevel(tt.in); got != tt.want {
			t.Errorf("NextLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewTableValidation(t *testing.T) {
	tests := []struct {
		name       string
		thresholds []int
	}{
		{"empty", nil},
		{"not starting at zero", []int{10, 20}},
		{"not increasing", []int{0, 100, 100}},
		{"decreasing", []int{0, 300, 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.thresholds...)
			if !errors.Is(err, ErrInvalidTable) {
				t.Errorf("expected ErrInvalidTable, got %v", err)
			}
		})
	}

	table, err := NewTable(0, 10)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if n := len(table.Tiers()); n != 2 {
		t.Errorf("expected 2 tiers, got %d", n)
	}
}

func TestParseThresholds(t *testing.T) {
	got, err := ParseThresholds(" 0, 100 ,300,")
	if err != nil {
		t.Fatalf("ParseThresholds: %v", err)
	}
	want := []int{0, 100, 300}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	if _, err := ParseThresholds("0,abc"); err == nil {
		t.Error("expected error for non-numeric threshold")
	}
}

func TestStatus(t *testing.T) {
	table := DefaultTable()
	st := table.Status(model.Account{ExecutionScore: 450, TotalGleams: 1200, TotalAlicorns: 12})
	if st.MeritLevel != "L2" {
		t.Errorf("MeritLevel = %q, want L2", st.MeritLevel)
	}
	if st.NextLevelThreshold == nil || *st.NextLevelThreshold != 600 {
		t.Errorf("NextLevelThreshold = %v, want 600", st.NextLevelThreshold)
	}
	if st.ProgressPercentage != 50 {
		t.Errorf("ProgressPercentage = %v, want 50", st.ProgressPercentage)
	}
	if st.TotalGleams != 1200 || st.TotalAlicorns != 12 {
		t.Errorf("totals not carried over: %+v", st)
	}
	if st.MaxAchieved {
		t.Error("MaxAchieved should be false")
	}
}
