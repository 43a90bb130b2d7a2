package domain

import (
	"strings"
	"time"
)

// AdvisoryLeadCap is the recommended maximum number of leads per
// (workspace, phase) pair. A soft policy: the service warns when exceeded
// but never rejects, so admin overrides during handoffs stay possible.
const AdvisoryLeadCap = 2

// PhaseAssignment grants one user edit authority over one (workspace, phase)
// pair. At most one assignment row exists per (workspace, user, phase).
type PhaseAssignment struct {
	WorkspaceID string
	UserID      string
	Phase       Phase
	CanEdit     bool
	IsLead      bool
	GrantedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewPhaseAssignment validates and constructs an assignment.
func NewPhaseAssignment(workspaceID, userID string, phase Phase, canEdit, isLead bool, grantedBy string, now time.Time) (PhaseAssignment, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	userID = strings.TrimSpace(userID)
	phase = NormalizePhase(phase)
	if workspaceID == "" {
		return PhaseAssignment{}, ErrInvalidWorkspaceID
	}
	if userID == "" {
		return PhaseAssignment{}, ErrInvalidUserID
	}
	if phase == "" {
		return PhaseAssignment{}, ErrInvalidPhase
	}
	ts := now.UTC()
	return PhaseAssignment{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Phase:       phase,
		CanEdit:     canEdit,
		IsLead:      isLead,
		GrantedBy:   strings.TrimSpace(grantedBy),
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}, nil
}

// Grant updates the edit and lead flags on an existing assignment.
func (a *PhaseAssignment) Grant(canEdit, isLead bool, grantedBy string, now time.Time) {
	a.CanEdit = canEdit
	a.IsLead = isLead
	a.GrantedBy = strings.TrimSpace(grantedBy)
	a.UpdatedAt = now.UTC()
}
