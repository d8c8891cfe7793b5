package quest

import (
	"github.com/pavelanni/alicorn/internal/model"
	"github.com/pavelanni/alicorn/internal/scoring"
)

// Aggregate summarizes the levels scored so far into a result. Scores come from
// the deepest level reached in each pass, or 0 when a pass has no scored level.
// Complete is left false; the session sets it when the quest actually finished.
func Aggregate(s *Session) model.AssessmentResult {
	res := model.AssessmentResult{
		QuestID:     s.id,
		Stakeholder: s.stakeholder,
		Timestamp:   s.now(),
		Responses:   cloneRecords(s.records),
	}

	var alicorns float64
	currentIdx, aspirationalIdx := -1, -1
	for _, r := range s.records {
		res.GleamsEarned += r.Gleams
		alicorns += r.Alicorns

		idx, ok := s.catalog.LevelIndex(r.Level)
		if !ok {
			continue
		}
		if r.IsAspirational {
			if idx >= aspirationalIdx {
				aspirationalIdx = idx
				res.AspirationalLevel = r.Level
				res.AspirationalScore = r.Score
			}
		} else if idx >= currentIdx {
			currentIdx = idx
			res.CurrentLevel = r.Level
			res.CurrentScore = r.Score
		}
	}

	res.AlicornsEarned = scoring.RoundCents(alicorns)
	res.Gap = res.AspirationalScore - res.CurrentScore
	return res
}
