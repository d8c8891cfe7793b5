package model

import "time"

// ResultExport is the top-level JSON structure for the results export.
type ResultExport struct {
	ExportedAt     time.Time       `json:"exported_at"`
	CatalogVersion string          `json:"catalog_version"`
	NumResults     int             `json:"num_results"`
	Results        []AccountResult `json:"results"`
}

// AccountResult holds one stored quest result together with its owner for export.
type AccountResult struct {
	DisplayName string           `json:"display_name"`
	QuestNumber int              `json:"quest_number"`
	Result      AssessmentResult `json:"result"`
}
