package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ebersole/phasegate/internal/domain"
)

// Evaluator is the single authorization decision point for every mutation in
// the phase engine. It composes three independent access paths: direct phase
// assignment, delegated phase-lead authority, and role-based bypass. Team
// isolation is checked first and is never bypassable.
type Evaluator struct {
	assignments AssignmentReader
	oracle      MembershipOracle
}

// NewEvaluator constructs an authorization evaluator.
func NewEvaluator(assignments AssignmentReader, oracle MembershipOracle) *Evaluator {
	return &Evaluator{assignments: assignments, oracle: oracle}
}

// MemberRole resolves the actor's role in the team, failing with
// domain.ErrUnauthorized for non-members.
func (e *Evaluator) MemberRole(ctx context.Context, teamID, actorID string) (domain.TeamRole, error) {
	role, ok, err := e.oracle.RoleOf(ctx, teamID, actorID)
	if err != nil {
		return "", fmt.Errorf("resolve team role: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: user %q is not a member of team %q", domain.ErrUnauthorized, actorID, teamID)
	}
	return role, nil
}

// CanMutate decides whether the actor may mutate a work item with respect to
// every listed phase. A transition passes both the current and the target
// phase so an actor cannot park an item in a phase they could not
// subsequently edit.
func (e *Evaluator) CanMutate(ctx context.Context, actorID, teamID, workspaceID string, phases ...domain.Phase) error {
	role, err := e.MemberRole(ctx, teamID, actorID)
	if err != nil {
		return err
	}
	if role.BypassesPhaseRestriction() {
		return nil
	}
	for _, phase := range phases {
		assignment, err := e.assignments.GetPhaseAssignment(ctx, workspaceID, actorID, phase)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: no assignment for phase %q in workspace %q", domain.ErrUnauthorized, phase, workspaceID)
			}
			return fmt.Errorf("load phase assignment: %w", err)
		}
		if !assignment.CanEdit {
			return fmt.Errorf("%w: assignment for phase %q does not grant edit", domain.ErrUnauthorized, phase)
		}
	}
	return nil
}

// CanReview decides whether the actor may review access requests or manage
// assignments for one (workspace, phase) pair: team admins and owners, or a
// lead of that exact phase.
func (e *Evaluator) CanReview(ctx context.Context, actorID, teamID, workspaceID string, phase domain.Phase) error {
	role, err := e.MemberRole(ctx, teamID, actorID)
	if err != nil {
		return err
	}
	if role.BypassesPhaseRestriction() {
		return nil
	}
	assignment, err := e.assignments.GetPhaseAssignment(ctx, workspaceID, actorID, phase)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: user %q is not a lead for phase %q", domain.ErrUnauthorized, actorID, phase)
		}
		return fmt.Errorf("load phase assignment: %w", err)
	}
	if !assignment.IsLead {
		return fmt.Errorf("%w: user %q is not a lead for phase %q", domain.ErrUnauthorized, actorID, phase)
	}
	return nil
}
