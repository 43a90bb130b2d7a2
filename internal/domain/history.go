package domain

import "time"

// HistorySnapshot captures forensic context around a phase change.
type HistorySnapshot struct {
	StatusBefore Status `json:"status_before,omitempty"`
	StatusAfter  Status `json:"status_after,omitempty"`
	OwnerBefore  string `json:"owner_before,omitempty"`
	OwnerAfter   string `json:"owner_after,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// PhaseHistoryEntry is one immutable audit record of an accepted phase
// mutation. Exactly one entry exists per accepted creation and per accepted
// transition; entries are never updated or deleted.
type PhaseHistoryEntry struct {
	ID         int64
	WorkItemID string

	// FromPhase is empty for the entry recorded at item creation.
	FromPhase Phase
	ToPhase   Phase

	ActorID    string
	Snapshot   HistorySnapshot
	OccurredAt time.Time
}
