package model

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Stakeholder identifies the perspective a quest is answered from.
type Stakeholder string

const (
	StakeholderFounder          Stakeholder = "founder"
	StakeholderInvestor         Stakeholder = "investor"
	StakeholderCorporatePartner Stakeholder = "corporate_partner"
	StakeholderMentor           Stakeholder = "mentor"
	StakeholderEmployee         Stakeholder = "employee"
	StakeholderCustomer         Stakeholder = "customer"
	StakeholderGovernment       Stakeholder = "government"
	StakeholderAcademia         Stakeholder = "academia"
	StakeholderServiceProvider  Stakeholder = "service_provider"
)

// Stakeholders lists every stakeholder in display order.
var Stakeholders = []Stakeholder{
	StakeholderFounder,
	StakeholderInvestor,
	StakeholderCorporatePartner,
	StakeholderMentor,
	StakeholderEmployee,
	StakeholderCustomer,
	StakeholderGovernment,
	StakeholderAcademia,
	StakeholderServiceProvider,
}

// Valid reports whether s is one of the fixed stakeholders.
func (s Stakeholder) Valid() bool {
	for _, v := range Stakeholders {
		if v == s {
			return true
		}
	}
	return false
}

// Category separates regular dimension questions from blind-spot questions.
type Category string

const (
	CategoryDimension         Category = "dimension"
	CategoryElephantInTheRoom Category = "elephant_in_the_room"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryDimension || c == CategoryElephantInTheRoom
}

// Confidence bounds for a single answer.
const (
	MinConfidence = 1
	MaxConfidence = 5
)

// Question is a single catalog entry.
type Question struct {
	Category              Category                       `json:"category"`
	Dimension             string                         `json:"dimension,omitempty"`
	Code                  string                         `json:"code"`
	Gleams                float64                        `json:"gleams"`
	Alicorns              float64                        `json:"alicorns"`
	TextByStakeholder     map[Stakeholder]string         `json:"text"`
	GuidanceByStakeholder map[Stakeholder]map[int]string `json:"guidance,omitempty"`
}

// Level is one ordered step of the journey.
type Level struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Focus     string     `json:"focus"`
	Questions []Question `json:"questions"`
}

// AnswerMap maps question code to a confidence value. Unanswered questions are absent.
type AnswerMap map[string]int

// Clone returns an independent copy of m.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Pass names one traversal of the catalog.
type Pass string

const (
	PassCurrent      Pass = "current"
	PassAspirational Pass = "aspirational"
)

// PassFor converts the aspirational flag to a Pass.
func PassFor(aspirational bool) Pass {
	if aspirational {
		return PassAspirational
	}
	return PassCurrent
}

// LevelPass is the composite key under which a level's answers are stored.
// It marshals as "L3:aspirational" so maps keyed by it stay flat JSON objects.
type LevelPass struct {
	Level        string
	Aspirational bool
}

// String implements fmt.Stringer.
func (k LevelPass) String() string {
	return k.Level + ":" + string(PassFor(k.Aspirational))
}

// MarshalText implements encoding.TextMarshaler.
func (k LevelPass) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *LevelPass) UnmarshalText(b []byte) error {
	level, pass, ok := strings.Cut(string(b), ":")
	if !ok || level == "" {
		return fmt.Errorf("invalid level pass key %q", string(b))
	}
	switch Pass(pass) {
	case PassCurrent:
		k.Aspirational = false
	case PassAspirational:
		k.Aspirational = true
	default:
		return fmt.Errorf("invalid pass %q in key %q", pass, string(b))
	}
	k.Level = level
	return nil
}

// LevelRecord is the scored outcome of one level in one pass.
type LevelRecord struct {
	Level          string    `json:"level"`
	IsAspirational bool      `json:"is_aspirational"`
	Score          int       `json:"score"`
	Gleams         int       `json:"gleams"`
	Alicorns       float64   `json:"alicorns"`
	Responses      AnswerMap `json:"responses"`
}

// AssessmentResult is the immutable outcome of one quest.
type AssessmentResult struct {
	QuestID           string        `json:"quest_id"`
	AccountID         int64         `json:"account_id,omitempty"`
	Stakeholder       Stakeholder   `json:"stakeholder"`
	CurrentLevel      string        `json:"current_level"`
	AspirationalLevel string        `json:"aspirational_level"`
	CurrentScore      int           `json:"current_score"`
	AspirationalScore int           `json:"aspirational_score"`
	Gap               int           `json:"gap"`
	GleamsEarned      int           `json:"gleams_earned"`
	AlicornsEarned    float64       `json:"alicorns_earned"`
	Complete          bool          `json:"complete"`
	Timestamp         time.Time     `json:"timestamp"`
	Responses         []LevelRecord `json:"responses"`
}

// Account is the lifetime state owned outside the engine.
type Account struct {
	ID             int64     `json:"id"`
	DisplayName    string    `json:"display_name"`
	ExecutionScore int       `json:"execution_score"`
	TotalGleams    int       `json:"total_gleams"`
	TotalAlicorns  float64   `json:"total_alicorns"`
	CreatedAt      time.Time `json:"created_at"`
}

// MeritStatus is the tier view derived from an Account.
type MeritStatus struct {
	MeritLevel         string  `json:"merit_level"`
	ExecutionScore     int     `json:"execution_score"`
	TotalGleams        int     `json:"total_gleams"`
	TotalAlicorns      float64 `json:"total_alicorns"`
	NextLevelThreshold *int    `json:"next_level_threshold,omitempty"`
	ProgressPercentage float64 `json:"progress_percentage"`
	MaxAchieved        bool    `json:"max_achieved"`
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	Lang        string
	BasePath    string // URL prefix for sub-path deployments (e.g. "/quest")
	Leaderboard string // sqlite or redis
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}
