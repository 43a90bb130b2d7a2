package app

import (
	"context"

	"github.com/ebersole/phasegate/internal/domain"
)

// Repository is the storage port for the phase engine. Mutating methods are
// atomic units of work: the state change, the audit append, and the workload
// cache refresh for the affected workspace commit or roll back together.
type Repository interface {
	CreateWorkspace(context.Context, domain.Workspace) error
	GetWorkspace(context.Context, string) (domain.Workspace, error)
	ListWorkspaces(context.Context, string) ([]domain.Workspace, error)

	// CreateWorkItem inserts the item and its creation audit entry.
	CreateWorkItem(context.Context, domain.WorkItem, domain.PhaseHistoryEntry) error

	// UpdateWorkItem persists the item iff the stored revision still equals
	// expectedRev, bumping the revision; otherwise it fails with
	// ErrConcurrentModification. A non-nil entry is appended to the audit
	// trail in the same transaction (phase changes only).
	UpdateWorkItem(ctx context.Context, item domain.WorkItem, expectedRev int64, entry *domain.PhaseHistoryEntry) error

	GetWorkItem(context.Context, string) (domain.WorkItem, error)
	ListWorkItems(ctx context.Context, workspaceID string, includeArchived bool) ([]domain.WorkItem, error)

	UpsertPhaseAssignment(context.Context, domain.PhaseAssignment) error
	GetPhaseAssignment(ctx context.Context, workspaceID, userID string, phase domain.Phase) (domain.PhaseAssignment, error)
	ListPhaseAssignments(ctx context.Context, workspaceID string, phase domain.Phase) ([]domain.PhaseAssignment, error)
	DeletePhaseAssignment(ctx context.Context, workspaceID, userID string, phase domain.Phase) error

	CreateAccessRequest(context.Context, domain.AccessRequest) error
	GetAccessRequest(context.Context, string) (domain.AccessRequest, error)
	ListAccessRequests(ctx context.Context, workspaceID string, status domain.AccessRequestStatus) ([]domain.AccessRequest, error)

	// ResolveAccessRequest persists a terminal request state. The stored row
	// must still be pending, otherwise it fails with
	// domain.ErrAlreadyResolved. A non-nil grant is upserted in the same
	// transaction (the approval side effect).
	ResolveAccessRequest(ctx context.Context, request domain.AccessRequest, grant *domain.PhaseAssignment) error

	// ListHistory returns audit entries for a work item, newest first.
	ListHistory(ctx context.Context, workItemID string, limit int) ([]domain.PhaseHistoryEntry, error)

	GetWorkload(ctx context.Context, workspaceID string) ([]domain.WorkloadEntry, error)

	// RefreshWorkload rebuilds the cache rows for one workspace from the
	// work-item source of truth.
	RefreshWorkload(ctx context.Context, workspaceID string) error
}

// AssignmentReader is the slice of Repository the authorization evaluator
// depends on.
type AssignmentReader interface {
	GetPhaseAssignment(ctx context.Context, workspaceID, userID string, phase domain.Phase) (domain.PhaseAssignment, error)
}

// MembershipOracle resolves a user's role within a team. Team membership is
// owned by an external registry; the engine only consults it.
type MembershipOracle interface {
	// RoleOf returns the user's role in the team. The second result is false
	// when the user is not a member.
	RoleOf(ctx context.Context, teamID, userID string) (domain.TeamRole, bool, error)
}
