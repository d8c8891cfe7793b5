// Package merit maps a lifetime execution score to a merit tier.
//
// The score itself belongs to the account service; callers pass it in.
package merit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pavelanni/alicorn/internal/model"
)

// MaxLevel is returned by NextLevel for the highest tier.
const MaxLevel = "MAX"

// ErrInvalidTable is returned for threshold tables that cannot be resolved against.
var ErrInvalidTable = errors.New("invalid merit table")

// DefaultThresholds are the execution score thresholds for tiers L0..L8.
var DefaultThresholds = []int{0, 100, 300, 600, 1000, 1500, 2100, 2800, 3600}

// Tier is one rank of the table.
type Tier struct {
	Name      string `json:"name"`
	Threshold int    `json:"threshold"`
}

// Resolution is the outcome of resolving a score.
type Resolution struct {
	MeritLevel         string
	NextThreshold      *int
	ProgressPercentage float64
}

// Max reports whether the resolved tier is the highest one.
func (r Resolution) Max() bool {
	return r.NextThreshold == nil
}

// Table is an ordered, immutable list of tiers. The last tier is the MAX tier.
type Table struct {
	tiers []Tier
}

// NewTable builds a table named L0, L1, ... from strictly increasing thresholds
// starting at 0.
func NewTable(thresholds ...int) (*Table, error) {
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("%w: no thresholds", ErrInvalidTable)
	}
	if thresholds[0] != 0 {
		return nil, fmt.Errorf("%w: first threshold must be 0, got %d", ErrInvalidTable, thresholds[0])
	}
	tiers := make([]Tier, len(thresholds))
	for i, th := range thresholds {
		if i > 0 && th <= thresholds[i-1] {
			return nil, fmt.Errorf("%w: threshold %d is not greater than %d", ErrInvalidTable, th, thresholds[i-1])
		}
		tiers[i] = Tier{Name: "L" + strconv.Itoa(i), Threshold: th}
	}
	return &Table{tiers: tiers}, nil
}

// DefaultTable returns the table built from DefaultThresholds.
func DefaultTable() *Table {
	t, err := NewTable(DefaultThresholds...)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseThresholds parses a comma-separated threshold list such as "0,100,300".
func ParseThresholds(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("parse threshold %q: %w", part, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Tiers returns a copy of the table's tiers.
func (t *Table) Tiers() []Tier {
	out := make([]Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// Resolve returns the highest tier whose threshold is <= score and the progress
// toward the next tier. Scores below 0 resolve to the lowest tier.
func (t *Table) Resolve(score int) Resolution {
	idx := 0
	for i, tier := range t.tiers {
		if tier.Threshold <= score {
			idx = i
		}
	}

	res := Resolution{MeritLevel: t.tiers[idx].Name}
	if idx == len(t.tiers)-1 {
		res.ProgressPercentage = 100
		return res
	}

	current := t.tiers[idx].Threshold
	next := t.tiers[idx+1].Threshold
	res.NextThreshold = &next
	res.ProgressPercentage = clamp(float64(score-current)/float64(next-current)*100, 0, 100)
	return res
}

// NextLevel returns the name of the tier after name, or MaxLevel when name is the
// highest tier. Unknown names yield "".
func (t *Table) NextLevel(name string) string {
	for i, tier := range t.tiers {
		if tier.Name != name {
			continue
		}
		if i == len(t.tiers)-1 {
			return MaxLevel
		}
		return t.tiers[i+1].Name
	}
	return ""
}

// Status builds the merit view of an account.
func (t *Table) Status(acct model.Account) model.MeritStatus {
	res := t.Resolve(acct.ExecutionScore)
	return model.MeritStatus{
		MeritLevel:         res.MeritLevel,
		ExecutionScore:     acct.ExecutionScore,
		TotalGleams:        acct.TotalGleams,
		TotalAlicorns:      acct.TotalAlicorns,
		NextLevelThreshold: res.NextThreshold,
		ProgressPercentage: res.ProgressPercentage,
		MaxAchieved:        res.Max(),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
