package models

import "time"

// OriginalQuery is the anchor record for a follow-up conversation: the
// user's first medication question, the answer it received, and the FDA
// reference data that was fetched to produce that answer.
type OriginalQuery struct {
	ID              string              `json:"id"`
	UserID          string              `json:"userId"`
	UserQuery       string              `json:"userQuery"`
	AIResponse      string              `json:"aiResponse"`
	MedicationName  string              `json:"medicationName,omitempty"`
	FDARawData      map[string][]string `json:"fdaRawData,omitempty"`
	FDASectionsUsed []string            `json:"fdaSectionsUsed,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
}

// HasSavedData reports whether the query carries reference data that the
// saved-data path could answer from.
func (q *OriginalQuery) HasSavedData() bool {
	return len(q.FDARawData) > 0 && len(q.FDASectionsUsed) > 0
}
