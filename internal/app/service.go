package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ebersole/phasegate/internal/domain"
)

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	// LeadCap is the advisory maximum number of leads per (workspace, phase).
	// Zero falls back to domain.AdvisoryLeadCap. Exceeding it logs a warning
	// but never rejects the assignment.
	LeadCap int
}

// Service exposes every public operation of the phase engine. All mutations
// run through the authorization evaluator before touching storage.
type Service struct {
	repo    Repository
	oracle  MembershipOracle
	authz   *Evaluator
	idGen   IDGenerator
	clock   Clock
	leadCap int
}

// NewService constructs the application service.
func NewService(repo Repository, oracle MembershipOracle, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	leadCap := cfg.LeadCap
	if leadCap <= 0 {
		leadCap = domain.AdvisoryLeadCap
	}
	return &Service{
		repo:    repo,
		oracle:  oracle,
		authz:   NewEvaluator(repo, oracle),
		idGen:   idGen,
		clock:   clock,
		leadCap: leadCap,
	}
}

// Evaluator exposes the authorization decision point for adapters that gate
// their own surfaces.
func (s *Service) Evaluator() *Evaluator {
	return s.authz
}

// RegisterWorkspace records the workspace → team mapping. Restricted to team
// owners and admins.
func (s *Service) RegisterWorkspace(ctx context.Context, teamID, name, actorID string) (domain.Workspace, error) {
	role, err := s.authz.MemberRole(ctx, teamID, actorID)
	if err != nil {
		return domain.Workspace{}, err
	}
	if !role.BypassesPhaseRestriction() {
		return domain.Workspace{}, fmt.Errorf("%w: only owners and admins may register workspaces", domain.ErrUnauthorized)
	}
	workspace, err := domain.NewWorkspace(s.idGen(), teamID, name, s.clock())
	if err != nil {
		return domain.Workspace{}, err
	}
	if err := s.repo.CreateWorkspace(ctx, workspace); err != nil {
		return domain.Workspace{}, err
	}
	return workspace, nil
}

// ListWorkspaces lists the workspaces owned by one team.
func (s *Service) ListWorkspaces(ctx context.Context, teamID, actorID string) ([]domain.Workspace, error) {
	if _, err := s.authz.MemberRole(ctx, teamID, actorID); err != nil {
		return nil, err
	}
	return s.repo.ListWorkspaces(ctx, teamID)
}

// CreateWorkItemInput holds input values for work item creation.
type CreateWorkItemInput struct {
	WorkspaceID  string
	Type         domain.ItemType
	InitialPhase domain.Phase
	Title        string
	Description  string
	OwnerID      string
	AssigneeID   string
	ActorID      string
}

// CreateWorkItem creates a work item in its type's initial phase (or an
// explicit valid phase) and records the creation audit entry.
func (s *Service) CreateWorkItem(ctx context.Context, in CreateWorkItemInput) (domain.WorkItem, error) {
	workspace, err := s.repo.GetWorkspace(ctx, strings.TrimSpace(in.WorkspaceID))
	if err != nil {
		return domain.WorkItem{}, err
	}

	now := s.clock()
	item, err := domain.NewWorkItem(domain.WorkItemInput{
		ID:           s.idGen(),
		TeamID:       workspace.TeamID,
		WorkspaceID:  workspace.ID,
		Type:         in.Type,
		InitialPhase: in.InitialPhase,
		Title:        in.Title,
		Description:  in.Description,
		OwnerID:      in.OwnerID,
		AssigneeID:   in.AssigneeID,
	}, now)
	if err != nil {
		return domain.WorkItem{}, err
	}

	if err := s.authz.CanMutate(ctx, in.ActorID, item.TeamID, item.WorkspaceID, item.Phase); err != nil {
		return domain.WorkItem{}, err
	}

	entry := domain.PhaseHistoryEntry{
		WorkItemID: item.ID,
		ToPhase:    item.Phase,
		ActorID:    strings.TrimSpace(in.ActorID),
		Snapshot: domain.HistorySnapshot{
			StatusAfter: item.Status,
			OwnerAfter:  item.OwnerID,
		},
		OccurredAt: now.UTC(),
	}
	if err := s.repo.CreateWorkItem(ctx, item, entry); err != nil {
		return domain.WorkItem{}, err
	}
	return item, nil
}

// TransitionPhase moves a work item to a new phase. The actor must hold edit
// authority over both the phase being left and the phase being entered.
func (s *Service) TransitionPhase(ctx context.Context, itemID string, newPhase domain.Phase, actorID, reason string) (domain.WorkItem, error) {
	item, err := s.repo.GetWorkItem(ctx, itemID)
	if err != nil {
		return domain.WorkItem{}, err
	}
	newPhase = domain.NormalizePhase(newPhase)
	if !domain.PhaseInVocabulary(item.Type, newPhase) {
		return domain.WorkItem{}, fmt.Errorf("%w: %q is not a phase of type %q", domain.ErrInvalidPhaseForType, newPhase, item.Type)
	}
	if err := s.authz.CanMutate(ctx, actorID, item.TeamID, item.WorkspaceID, item.Phase, newPhase); err != nil {
		return domain.WorkItem{}, err
	}

	now := s.clock()
	fromPhase := item.Phase
	statusBefore := item.Status
	expectedRev := item.Rev
	if err := item.SetPhase(newPhase, now); err != nil {
		return domain.WorkItem{}, err
	}

	entry := domain.PhaseHistoryEntry{
		WorkItemID: item.ID,
		FromPhase:  fromPhase,
		ToPhase:    item.Phase,
		ActorID:    strings.TrimSpace(actorID),
		Snapshot: domain.HistorySnapshot{
			StatusBefore: statusBefore,
			StatusAfter:  item.Status,
			OwnerBefore:  item.OwnerID,
			OwnerAfter:   item.OwnerID,
			Reason:       strings.TrimSpace(reason),
		},
		OccurredAt: now.UTC(),
	}
	if err := s.repo.UpdateWorkItem(ctx, item, expectedRev, &entry); err != nil {
		return domain.WorkItem{}, err
	}
	item.Rev = expectedRev + 1
	return item, nil
}

// SetWorkItemStatus updates the orthogonal status attribute. Gated by the
// same evaluator against the item's current phase; no audit entry is written
// because the phase does not change, but the workload cache refreshes.
func (s *Service) SetWorkItemStatus(ctx context.Context, itemID string, status domain.Status, actorID string) (domain.WorkItem, error) {
	item, err := s.repo.GetWorkItem(ctx, itemID)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if err := s.authz.CanMutate(ctx, actorID, item.TeamID, item.WorkspaceID, item.Phase); err != nil {
		return domain.WorkItem{}, err
	}
	expectedRev := item.Rev
	if err := item.SetStatus(status, s.clock()); err != nil {
		return domain.WorkItem{}, err
	}
	if err := s.repo.UpdateWorkItem(ctx, item, expectedRev, nil); err != nil {
		return domain.WorkItem{}, err
	}
	item.Rev = expectedRev + 1
	return item, nil
}

// UpdateWorkItemDetails edits title, description, and people fields. Gated
// against the item's current phase; no audit entry is written because the
// phase does not change.
func (s *Service) UpdateWorkItemDetails(ctx context.Context, itemID, title, description, ownerID, assigneeID, actorID string) (domain.WorkItem, error) {
	item, err := s.repo.GetWorkItem(ctx, itemID)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if err := s.authz.CanMutate(ctx, actorID, item.TeamID, item.WorkspaceID, item.Phase); err != nil {
		return domain.WorkItem{}, err
	}
	expectedRev := item.Rev
	if err := item.UpdateDetails(title, description, ownerID, assigneeID, s.clock()); err != nil {
		return domain.WorkItem{}, err
	}
	if err := s.repo.UpdateWorkItem(ctx, item, expectedRev, nil); err != nil {
		return domain.WorkItem{}, err
	}
	item.Rev = expectedRev + 1
	return item, nil
}

// ArchiveWorkItem soft-deletes a work item. Authorization is evaluated
// against the item's current phase.
func (s *Service) ArchiveWorkItem(ctx context.Context, itemID, actorID string) (domain.WorkItem, error) {
	item, err := s.repo.GetWorkItem(ctx, itemID)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if err := s.authz.CanMutate(ctx, actorID, item.TeamID, item.WorkspaceID, item.Phase); err != nil {
		return domain.WorkItem{}, err
	}
	expectedRev := item.Rev
	item.Archive(s.clock())
	if err := s.repo.UpdateWorkItem(ctx, item, expectedRev, nil); err != nil {
		return domain.WorkItem{}, err
	}
	item.Rev = expectedRev + 1
	return item, nil
}

// GetWorkItem returns one work item. Reads are team-visible, not
// phase-restricted.
func (s *Service) GetWorkItem(ctx context.Context, itemID, actorID string) (domain.WorkItem, error) {
	item, err := s.repo.GetWorkItem(ctx, itemID)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if _, err := s.authz.MemberRole(ctx, item.TeamID, actorID); err != nil {
		return domain.WorkItem{}, err
	}
	return item, nil
}

// ListWorkItems lists a workspace's items for any team member.
func (s *Service) ListWorkItems(ctx context.Context, workspaceID, actorID string, includeArchived bool) ([]domain.WorkItem, error) {
	workspace, err := s.repo.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.MemberRole(ctx, workspace.TeamID, actorID); err != nil {
		return nil, err
	}
	return s.repo.ListWorkItems(ctx, workspace.ID, includeArchived)
}

// AssignPhaseInput holds input values for phase assignment.
type AssignPhaseInput struct {
	WorkspaceID string
	UserID      string
	Phase       domain.Phase
	CanEdit     bool
	IsLead      bool
	ActorID     string
}

// AssignPhase creates or updates a phase assignment. The actor must be a
// team owner/admin or a lead of the same phase. The lead cap is advisory:
// exceeding it logs a warning, never an error.
func (s *Service) AssignPhase(ctx context.Context, in AssignPhaseInput) (domain.PhaseAssignment, error) {
	workspace, err := s.repo.GetWorkspace(ctx, strings.TrimSpace(in.WorkspaceID))
	if err != nil {
		return domain.PhaseAssignment{}, err
	}
	phase := domain.NormalizePhase(in.Phase)
	if err := s.authz.CanReview(ctx, in.ActorID, workspace.TeamID, workspace.ID, phase); err != nil {
		return domain.PhaseAssignment{}, err
	}
	if _, err := s.authz.MemberRole(ctx, workspace.TeamID, in.UserID); err != nil {
		return domain.PhaseAssignment{}, fmt.Errorf("assignee outside team boundary: %w", err)
	}

	now := s.clock()
	assignment, err := s.repo.GetPhaseAssignment(ctx, workspace.ID, strings.TrimSpace(in.UserID), phase)
	switch {
	case err == nil:
		assignment.Grant(in.CanEdit, in.IsLead, in.ActorID, now)
	case isNotFound(err):
		assignment, err = domain.NewPhaseAssignment(workspace.ID, in.UserID, phase, in.CanEdit, in.IsLead, in.ActorID, now)
		if err != nil {
			return domain.PhaseAssignment{}, err
		}
	default:
		return domain.PhaseAssignment{}, err
	}

	if err := s.repo.UpsertPhaseAssignment(ctx, assignment); err != nil {
		return domain.PhaseAssignment{}, err
	}
	if assignment.IsLead {
		s.warnLeadCap(ctx, workspace.ID, phase)
	}
	return assignment, nil
}

// RemovePhaseAssignment revokes one assignment. Same authority as AssignPhase.
func (s *Service) RemovePhaseAssignment(ctx context.Context, workspaceID, userID string, phase domain.Phase, actorID string) error {
	workspace, err := s.repo.GetWorkspace(ctx, strings.TrimSpace(workspaceID))
	if err != nil {
		return err
	}
	phase = domain.NormalizePhase(phase)
	if err := s.authz.CanReview(ctx, actorID, workspace.TeamID, workspace.ID, phase); err != nil {
		return err
	}
	return s.repo.DeletePhaseAssignment(ctx, workspace.ID, strings.TrimSpace(userID), phase)
}

// ListPhaseAssignments lists a workspace's assignments, optionally filtered
// by phase. Visible to any team member.
func (s *Service) ListPhaseAssignments(ctx context.Context, workspaceID string, phase domain.Phase, actorID string) ([]domain.PhaseAssignment, error) {
	workspace, err := s.repo.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.MemberRole(ctx, workspace.TeamID, actorID); err != nil {
		return nil, err
	}
	return s.repo.ListPhaseAssignments(ctx, workspace.ID, domain.NormalizePhase(phase))
}

// RequestPhaseAccessInput holds input values for access requests.
type RequestPhaseAccessInput struct {
	RequesterID string
	WorkspaceID string
	Phase       domain.Phase
	Reason      string
	Urgency     domain.Urgency
}

// RequestPhaseAccess files a self-service access request. Open to any team
// member; no phase authority is required to ask.
func (s *Service) RequestPhaseAccess(ctx context.Context, in RequestPhaseAccessInput) (domain.AccessRequest, error) {
	workspace, err := s.repo.GetWorkspace(ctx, strings.TrimSpace(in.WorkspaceID))
	if err != nil {
		return domain.AccessRequest{}, err
	}
	if _, err := s.authz.MemberRole(ctx, workspace.TeamID, in.RequesterID); err != nil {
		return domain.AccessRequest{}, err
	}
	request, err := domain.NewAccessRequest(s.idGen(), in.RequesterID, workspace.ID, in.Phase, in.Reason, in.Urgency, s.clock())
	if err != nil {
		return domain.AccessRequest{}, err
	}
	if err := s.repo.CreateAccessRequest(ctx, request); err != nil {
		return domain.AccessRequest{}, err
	}
	return request, nil
}

// ReviewAccessRequest applies a reviewer decision. Approval atomically
// upserts the requester's can_edit assignment for the requested phase.
func (s *Service) ReviewAccessRequest(ctx context.Context, requestID string, decision domain.Decision, reviewerID, note string) (domain.AccessRequest, error) {
	request, err := s.repo.GetAccessRequest(ctx, requestID)
	if err != nil {
		return domain.AccessRequest{}, err
	}
	workspace, err := s.repo.GetWorkspace(ctx, request.WorkspaceID)
	if err != nil {
		return domain.AccessRequest{}, err
	}
	if err := s.authz.CanReview(ctx, reviewerID, workspace.TeamID, workspace.ID, request.Phase); err != nil {
		return domain.AccessRequest{}, err
	}

	now := s.clock()
	if err := request.Resolve(decision, reviewerID, note, now); err != nil {
		return domain.AccessRequest{}, err
	}

	var grant *domain.PhaseAssignment
	if request.Status == domain.RequestApproved {
		assignment, err := s.buildApprovalGrant(ctx, request, reviewerID, now)
		if err != nil {
			return domain.AccessRequest{}, err
		}
		grant = &assignment
	}
	if err := s.repo.ResolveAccessRequest(ctx, request, grant); err != nil {
		return domain.AccessRequest{}, err
	}
	return request, nil
}

// CancelAccessRequest withdraws a pending request. Requester only.
func (s *Service) CancelAccessRequest(ctx context.Context, requestID, actorID string) (domain.AccessRequest, error) {
	request, err := s.repo.GetAccessRequest(ctx, requestID)
	if err != nil {
		return domain.AccessRequest{}, err
	}
	if strings.TrimSpace(actorID) != request.RequesterID {
		return domain.AccessRequest{}, fmt.Errorf("%w: only the requester may cancel", domain.ErrUnauthorized)
	}
	if err := request.Cancel(s.clock()); err != nil {
		return domain.AccessRequest{}, err
	}
	if err := s.repo.ResolveAccessRequest(ctx, request, nil); err != nil {
		return domain.AccessRequest{}, err
	}
	return request, nil
}

// ListAccessRequests lists a workspace's requests, optionally filtered by
// status. Visible to any team member.
func (s *Service) ListAccessRequests(ctx context.Context, workspaceID string, status domain.AccessRequestStatus, actorID string) ([]domain.AccessRequest, error) {
	workspace, err := s.repo.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.MemberRole(ctx, workspace.TeamID, actorID); err != nil {
		return nil, err
	}
	return s.repo.ListAccessRequests(ctx, workspace.ID, status)
}

// GetWorkload reads the derived workload cache for one workspace. Always
// consistent as of the last committed write.
func (s *Service) GetWorkload(ctx context.Context, workspaceID, actorID string) ([]domain.WorkloadEntry, error) {
	workspace, err := s.repo.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.MemberRole(ctx, workspace.TeamID, actorID); err != nil {
		return nil, err
	}
	return s.repo.GetWorkload(ctx, workspace.ID)
}

// RefreshWorkload rebuilds one workspace's cache from the work-item source
// of truth. A trusted maintenance operation with no actor gate; exposed via
// the CLI for rebuild-after-drop.
func (s *Service) RefreshWorkload(ctx context.Context, workspaceID string) error {
	return s.repo.RefreshWorkload(ctx, strings.TrimSpace(workspaceID))
}

// GetHistory returns the audit trail for one work item, newest first.
func (s *Service) GetHistory(ctx context.Context, itemID, actorID string, limit int) ([]domain.PhaseHistoryEntry, error) {
	item, err := s.repo.GetWorkItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.MemberRole(ctx, item.TeamID, actorID); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, item.ID, limit)
}

// buildApprovalGrant creates or upgrades the requester's assignment for the
// requested phase. An existing assignment keeps its lead flag.
func (s *Service) buildApprovalGrant(ctx context.Context, request domain.AccessRequest, reviewerID string, now time.Time) (domain.PhaseAssignment, error) {
	existing, err := s.repo.GetPhaseAssignment(ctx, request.WorkspaceID, request.RequesterID, request.Phase)
	switch {
	case err == nil:
		existing.Grant(true, existing.IsLead, reviewerID, now)
		return existing, nil
	case isNotFound(err):
		return domain.NewPhaseAssignment(request.WorkspaceID, request.RequesterID, request.Phase, true, false, reviewerID, now)
	default:
		return domain.PhaseAssignment{}, err
	}
}

// warnLeadCap logs when a phase exceeds the advisory lead cap.
func (s *Service) warnLeadCap(ctx context.Context, workspaceID string, phase domain.Phase) {
	assignments, err := s.repo.ListPhaseAssignments(ctx, workspaceID, phase)
	if err != nil {
		log.Warn("lead cap check failed", "workspace_id", workspaceID, "phase", phase, "err", err)
		return
	}
	leads := 0
	for _, assignment := range assignments {
		if assignment.IsLead {
			leads++
		}
	}
	if leads > s.leadCap {
		log.Warn("advisory lead cap exceeded", "workspace_id", workspaceID, "phase", phase, "leads", leads, "cap", s.leadCap)
	}
}

// isNotFound reports whether err is the repository's missing-row sentinel.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
