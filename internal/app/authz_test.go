package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ebersole/phasegate/internal/domain"
)

func newEvaluatorFixture() (*Evaluator, *fakeRepo, *fakeOracle) {
	repo := newFakeRepo()
	oracle := newFakeOracle()
	oracle.add("team-a", "owner-1", domain.RoleOwner)
	oracle.add("team-a", "admin-1", domain.RoleAdmin)
	oracle.add("team-a", "member-1", domain.RoleMember)
	return NewEvaluator(repo, oracle), repo, oracle
}

func TestMemberRoleRejectsOutsiders(t *testing.T) {
	ctx := context.Background()
	eval, _, _ := newEvaluatorFixture()

	role, err := eval.MemberRole(ctx, "team-a", "member-1")
	if err != nil {
		t.Fatalf("MemberRole() error = %v", err)
	}
	if role != domain.RoleMember {
		t.Fatalf("role = %q, want member", role)
	}

	if _, err := eval.MemberRole(ctx, "team-a", "stranger"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for outsider, got %v", err)
	}
	if _, err := eval.MemberRole(ctx, "team-b", "member-1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong team, got %v", err)
	}
}

func TestCanMutatePhaseAssignmentGate(t *testing.T) {
	ctx := context.Background()
	eval, repo, _ := newEvaluatorFixture()
	now := time.Now()

	// No assignment: denied.
	err := eval.CanMutate(ctx, "member-1", "team-a", "ws-a", domain.PhaseBuild)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	// can_edit=false is visibility only, never mutation authority.
	viewOnly, _ := domain.NewPhaseAssignment("ws-a", "member-1", domain.PhaseBuild, false, false, "owner-1", now)
	repo.assignments[assignmentKey("ws-a", "member-1", domain.PhaseBuild)] = viewOnly
	err = eval.CanMutate(ctx, "member-1", "team-a", "ws-a", domain.PhaseBuild)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for view-only assignment, got %v", err)
	}

	editable, _ := domain.NewPhaseAssignment("ws-a", "member-1", domain.PhaseBuild, true, false, "owner-1", now)
	repo.assignments[assignmentKey("ws-a", "member-1", domain.PhaseBuild)] = editable
	if err := eval.CanMutate(ctx, "member-1", "team-a", "ws-a", domain.PhaseBuild); err != nil {
		t.Fatalf("CanMutate() error = %v", err)
	}

	// Every listed phase must be editable, not just one.
	err = eval.CanMutate(ctx, "member-1", "team-a", "ws-a", domain.PhaseBuild, domain.PhaseRefine)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized with one missing phase, got %v", err)
	}
}

func TestCanMutateRoleBypass(t *testing.T) {
	ctx := context.Background()
	eval, _, _ := newEvaluatorFixture()

	for _, actor := range []string{"owner-1", "admin-1"} {
		if err := eval.CanMutate(ctx, actor, "team-a", "ws-a", domain.PhaseBuild, domain.PhaseLaunch); err != nil {
			t.Fatalf("CanMutate(%s) error = %v", actor, err)
		}
	}

	// The bypass never crosses the team boundary.
	err := eval.CanMutate(ctx, "admin-1", "team-b", "ws-b", domain.PhaseBuild)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized across teams, got %v", err)
	}
}

func TestCanReviewLeadOrRole(t *testing.T) {
	ctx := context.Background()
	eval, repo, _ := newEvaluatorFixture()
	now := time.Now()

	if err := eval.CanReview(ctx, "admin-1", "team-a", "ws-a", domain.PhaseBuild); err != nil {
		t.Fatalf("CanReview(admin) error = %v", err)
	}

	// An editor who is not a lead cannot review.
	editor, _ := domain.NewPhaseAssignment("ws-a", "member-1", domain.PhaseBuild, true, false, "owner-1", now)
	repo.assignments[assignmentKey("ws-a", "member-1", domain.PhaseBuild)] = editor
	err := eval.CanReview(ctx, "member-1", "team-a", "ws-a", domain.PhaseBuild)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-lead, got %v", err)
	}

	lead, _ := domain.NewPhaseAssignment("ws-a", "member-1", domain.PhaseBuild, true, true, "owner-1", now)
	repo.assignments[assignmentKey("ws-a", "member-1", domain.PhaseBuild)] = lead
	if err := eval.CanReview(ctx, "member-1", "team-a", "ws-a", domain.PhaseBuild); err != nil {
		t.Fatalf("CanReview(lead) error = %v", err)
	}

	// Lead authority is scoped to the exact (workspace, phase) pair.
	err = eval.CanReview(ctx, "member-1", "team-a", "ws-a", domain.PhaseDesign)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for other phase, got %v", err)
	}
}
