package domain

import (
	"slices"
	"strings"
	"time"
)

// Status tracks delivery progress orthogonally to the lifecycle phase.
type Status string

// Status values.
const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusInReview   Status = "in_review"
	StatusDone       Status = "done"
	StatusArchived   Status = "archived"
)

// NormalizeStatus canonicalizes status aliases.
func NormalizeStatus(s Status) Status {
	switch strings.TrimSpace(strings.ToLower(string(s))) {
	case "open", "new":
		return StatusOpen
	case "in_progress", "in-progress", "progress", "doing":
		return StatusInProgress
	case "blocked":
		return StatusBlocked
	case "in_review", "in-review", "review":
		return StatusInReview
	case "done", "complete", "completed":
		return StatusDone
	case "archived", "archive":
		return StatusArchived
	default:
		return Status(strings.TrimSpace(strings.ToLower(string(s))))
	}
}

// IsValidStatus reports whether the status is canonical.
func IsValidStatus(s Status) bool {
	return slices.Contains([]Status{
		StatusOpen,
		StatusInProgress,
		StatusBlocked,
		StatusInReview,
		StatusDone,
		StatusArchived,
	}, NormalizeStatus(s))
}

// WorkItem is a lifecycle-managed product item owned by a workspace/team pair.
// Phase mutations go through the authorization evaluator; items are archived,
// never hard-deleted.
type WorkItem struct {
	ID          string
	TeamID      string
	WorkspaceID string
	Type        ItemType
	Phase       Phase
	Status      Status
	Title       string
	Description string
	OwnerID     string
	AssigneeID  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ArchivedAt  *time.Time

	// Rev is the optimistic-concurrency revision. The storage layer rejects
	// updates whose Rev no longer matches the persisted row.
	Rev int64
}

// WorkItemInput carries the fields needed to construct a work item.
type WorkItemInput struct {
	ID           string
	TeamID       string
	WorkspaceID  string
	Type         ItemType
	InitialPhase Phase
	Title        string
	Description  string
	OwnerID      string
	AssigneeID   string
}

// NewWorkItem validates input and constructs a work item. An empty
// InitialPhase defaults to the type's canonical first phase.
func NewWorkItem(in WorkItemInput, now time.Time) (WorkItem, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.TeamID = strings.TrimSpace(in.TeamID)
	in.WorkspaceID = strings.TrimSpace(in.WorkspaceID)
	in.Title = strings.TrimSpace(in.Title)
	in.Type = NormalizeItemType(in.Type)

	if in.ID == "" {
		return WorkItem{}, ErrInvalidID
	}
	if in.TeamID == "" {
		return WorkItem{}, ErrInvalidTeamID
	}
	if in.WorkspaceID == "" {
		return WorkItem{}, ErrInvalidWorkspaceID
	}
	if in.Title == "" {
		return WorkItem{}, ErrInvalidTitle
	}
	if !IsValidItemType(in.Type) {
		return WorkItem{}, ErrInvalidItemType
	}

	phase := NormalizePhase(in.InitialPhase)
	if phase == "" {
		initial, ok := InitialPhaseFor(in.Type)
		if !ok {
			return WorkItem{}, ErrInvalidItemType
		}
		phase = initial
	}
	if !PhaseInVocabulary(in.Type, phase) {
		return WorkItem{}, ErrInvalidPhaseForType
	}

	ts := now.UTC()
	return WorkItem{
		ID:          in.ID,
		TeamID:      in.TeamID,
		WorkspaceID: in.WorkspaceID,
		Type:        in.Type,
		Phase:       phase,
		Status:      StatusOpen,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		OwnerID:     strings.TrimSpace(in.OwnerID),
		AssigneeID:  strings.TrimSpace(in.AssigneeID),
		CreatedAt:   ts,
		UpdatedAt:   ts,
		Rev:         1,
	}, nil
}

// SetPhase moves the item to a new phase after the vocabulary check.
// Authorization is the caller's responsibility.
func (w *WorkItem) SetPhase(phase Phase, now time.Time) error {
	phase = NormalizePhase(phase)
	if !PhaseInVocabulary(w.Type, phase) {
		return ErrInvalidPhaseForType
	}
	w.Phase = phase
	w.UpdatedAt = now.UTC()
	return nil
}

// SetStatus updates the orthogonal status attribute.
func (w *WorkItem) SetStatus(status Status, now time.Time) error {
	status = NormalizeStatus(status)
	if !IsValidStatus(status) {
		return ErrInvalidStatus
	}
	w.Status = status
	w.UpdatedAt = now.UTC()
	return nil
}

// UpdateDetails updates title, description, and assignment fields.
func (w *WorkItem) UpdateDetails(title, description, ownerID, assigneeID string, now time.Time) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrInvalidTitle
	}
	w.Title = title
	w.Description = strings.TrimSpace(description)
	w.OwnerID = strings.TrimSpace(ownerID)
	w.AssigneeID = strings.TrimSpace(assigneeID)
	w.UpdatedAt = now.UTC()
	return nil
}

// Archive soft-deletes the item and parks its status.
func (w *WorkItem) Archive(now time.Time) {
	ts := now.UTC()
	w.ArchivedAt = &ts
	w.Status = StatusArchived
	w.UpdatedAt = ts
}

// IsArchived reports whether the item is soft-deleted.
func (w *WorkItem) IsArchived() bool {
	return w.ArchivedAt != nil
}
