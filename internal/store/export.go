package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/alicorn/internal/model"
)

// ExportResults builds export-ready results together with their owners.
func (s *Store) ExportResults(includePartial bool) (model.ResultExport, error) {
	out := model.ResultExport{ExportedAt: time.Now().UTC()}

	version, err := s.GetMetadata(MetaCatalogVersion)
	if err != nil {
		return out, fmt.Errorf("read catalog version: %w", err)
	}
	out.CatalogVersion = version

	results, err := s.ListResults(includePartial)
	if err != nil {
		return out, fmt.Errorf("list results: %w", err)
	}

	// Track quest count per account for quest_number.
	questCount := make(map[int64]int)
	names := make(map[int64]string)

	for _, r := range results {
		questCount[r.AccountID]++

		name, ok := names[r.AccountID]
		if !ok && r.AccountID != 0 {
			acct, err := s.GetAccount(r.AccountID)
			if err != nil {
				return out, fmt.Errorf("get account %d: %w", r.AccountID, err)
			}
			if acct != nil {
				name = acct.DisplayName
			}
			names[r.AccountID] = name
		}

		out.Results = append(out.Results, model.AccountResult{
			DisplayName: name,
			QuestNumber: questCount[r.AccountID],
			Result:      r,
		})
	}
	out.NumResults = len(out.Results)
	return out, nil
}
