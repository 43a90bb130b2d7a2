package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ebersole/phasegate/internal/app"
	"github.com/ebersole/phasegate/internal/domain"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "phasegate.db")
	repo, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func seedWorkspace(t *testing.T, repo *Repository, now time.Time) domain.Workspace {
	t.Helper()
	workspace, err := domain.NewWorkspace("ws-1", "team-1", "Platform", now)
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}
	if err := repo.CreateWorkspace(context.Background(), workspace); err != nil {
		t.Fatalf("CreateWorkspace() error = %v", err)
	}
	return workspace
}

func newItem(t *testing.T, id string, itemType domain.ItemType, now time.Time) domain.WorkItem {
	t.Helper()
	item, err := domain.NewWorkItem(domain.WorkItemInput{
		ID:          id,
		TeamID:      "team-1",
		WorkspaceID: "ws-1",
		Type:        itemType,
		Title:       "Item " + id,
	}, now)
	if err != nil {
		t.Fatalf("NewWorkItem() error = %v", err)
	}
	return item
}

func creationEntry(item domain.WorkItem) domain.PhaseHistoryEntry {
	return domain.PhaseHistoryEntry{
		WorkItemID: item.ID,
		ToPhase:    item.Phase,
		ActorID:    "user-1",
		Snapshot:   domain.HistorySnapshot{StatusAfter: item.Status},
		OccurredAt: item.CreatedAt,
	}
}

func TestRepository_WorkItemLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	seedWorkspace(t, repo, now)

	item := newItem(t, "wi-1", domain.ItemTypeBug, now)
	if err := repo.CreateWorkItem(ctx, item, creationEntry(item)); err != nil {
		t.Fatalf("CreateWorkItem() error = %v", err)
	}

	loaded, err := repo.GetWorkItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetWorkItem() error = %v", err)
	}
	if loaded.Phase != domain.PhaseTriage || loaded.Rev != 1 {
		t.Fatalf("unexpected loaded item phase=%q rev=%d", loaded.Phase, loaded.Rev)
	}

	if err := loaded.SetPhase(domain.PhaseFixing, now.Add(time.Minute)); err != nil {
		t.Fatalf("SetPhase() error = %v", err)
	}
	entry := domain.PhaseHistoryEntry{
		WorkItemID: loaded.ID,
		FromPhase:  domain.PhaseTriage,
		ToPhase:    domain.PhaseFixing,
		ActorID:    "user-1",
		Snapshot:   domain.HistorySnapshot{Reason: "repro confirmed"},
		OccurredAt: now.Add(time.Minute),
	}
	if err := repo.UpdateWorkItem(ctx, loaded, loaded.Rev, &entry); err != nil {
		t.Fatalf("UpdateWorkItem() error = %v", err)
	}

	reloaded, err := repo.GetWorkItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetWorkItem() after update error = %v", err)
	}
	if reloaded.Phase != domain.PhaseFixing {
		t.Fatalf("phase = %q, want fixing", reloaded.Phase)
	}
	if reloaded.Rev != 2 {
		t.Fatalf("rev = %d, want 2", reloaded.Rev)
	}

	history, err := repo.ListHistory(ctx, item.ID, 10)
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history))
	}
	if history[0].FromPhase != domain.PhaseTriage || history[0].ToPhase != domain.PhaseFixing {
		t.Fatalf("unexpected newest entry %+v", history[0])
	}
	if history[0].Snapshot.Reason != "repro confirmed" {
		t.Fatalf("snapshot reason = %q", history[0].Snapshot.Reason)
	}
	if history[1].FromPhase != "" {
		t.Fatalf("creation entry FromPhase = %q, want empty", history[1].FromPhase)
	}
}

func TestRepository_UpdateWorkItemRevConflict(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	seedWorkspace(t, repo, now)

	item := newItem(t, "wi-1", domain.ItemTypeFeature, now)
	if err := repo.CreateWorkItem(ctx, item, creationEntry(item)); err != nil {
		t.Fatalf("CreateWorkItem() error = %v", err)
	}

	// Two readers load rev 1; the second writer loses.
	first, _ := repo.GetWorkItem(ctx, item.ID)
	second, _ := repo.GetWorkItem(ctx, item.ID)

	if err := first.SetPhase(domain.PhaseBuild, now.Add(time.Minute)); err != nil {
		t.Fatalf("SetPhase() error = %v", err)
	}
	if err := repo.UpdateWorkItem(ctx, first, first.Rev, nil); err != nil {
		t.Fatalf("first UpdateWorkItem() error = %v", err)
	}

	if err := second.SetPhase(domain.PhaseRefine, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("SetPhase() error = %v", err)
	}
	err := repo.UpdateWorkItem(ctx, second, second.Rev, nil)
	if !errors.Is(err, app.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}

	// The losing write left no trace.
	stored, _ := repo.GetWorkItem(ctx, item.ID)
	if stored.Phase != domain.PhaseBuild || stored.Rev != 2 {
		t.Fatalf("stored phase=%q rev=%d after lost race", stored.Phase, stored.Rev)
	}

	err = repo.UpdateWorkItem(ctx, newItem(t, "missing", domain.ItemTypeBug, now), 1, nil)
	if !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing row, got %v", err)
	}
}

func TestRepository_WorkloadCacheMatchesSource(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	seedWorkspace(t, repo, now)

	for _, id := range []string{"wi-1", "wi-2"} {
		item := newItem(t, id, domain.ItemTypeBug, now)
		if err := repo.CreateWorkItem(ctx, item, creationEntry(item)); err != nil {
			t.Fatalf("CreateWorkItem(%s) error = %v", id, err)
		}
	}
	feature := newItem(t, "wi-3", domain.ItemTypeFeature, now)
	if err := repo.CreateWorkItem(ctx, feature, creationEntry(feature)); err != nil {
		t.Fatalf("CreateWorkItem(wi-3) error = %v", err)
	}

	want := []domain.WorkloadEntry{
		{WorkspaceID: "ws-1", Phase: domain.PhaseDesign, Status: domain.StatusOpen, Count: 1},
		{WorkspaceID: "ws-1", Phase: domain.PhaseTriage, Status: domain.StatusOpen, Count: 2},
	}
	got, err := repo.GetWorkload(ctx, "ws-1")
	if err != nil {
		t.Fatalf("GetWorkload() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("workload mismatch (-want +got):\n%s", diff)
	}

	// Archiving drops the item from the counts within the same commit.
	archived, _ := repo.GetWorkItem(ctx, "wi-2")
	archived.Archive(now.Add(time.Minute))
	if err := repo.UpdateWorkItem(ctx, archived, archived.Rev, nil); err != nil {
		t.Fatalf("UpdateWorkItem(archive) error = %v", err)
	}
	want[1].Count = 1
	got, err = repo.GetWorkload(ctx, "ws-1")
	if err != nil {
		t.Fatalf("GetWorkload() after archive error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("workload after archive mismatch (-want +got):\n%s", diff)
	}

	// A dropped cache rebuilds from the source of truth.
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM workload_cache`); err != nil {
		t.Fatalf("drop cache error = %v", err)
	}
	if err := repo.RefreshWorkload(ctx, "ws-1"); err != nil {
		t.Fatalf("RefreshWorkload() error = %v", err)
	}
	got, err = repo.GetWorkload(ctx, "ws-1")
	if err != nil {
		t.Fatalf("GetWorkload() after rebuild error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("workload after rebuild mismatch (-want +got):\n%s", diff)
	}
}

func TestRepository_PhaseAssignmentUpsert(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	seedWorkspace(t, repo, now)

	assignment, err := domain.NewPhaseAssignment("ws-1", "user-1", domain.PhaseBuild, true, false, "owner-1", now)
	if err != nil {
		t.Fatalf("NewPhaseAssignment() error = %v", err)
	}
	if err := repo.UpsertPhaseAssignment(ctx, assignment); err != nil {
		t.Fatalf("UpsertPhaseAssignment() error = %v", err)
	}

	assignment.Grant(true, true, "owner-1", now.Add(time.Minute))
	if err := repo.UpsertPhaseAssignment(ctx, assignment); err != nil {
		t.Fatalf("UpsertPhaseAssignment() upgrade error = %v", err)
	}

	all, err := repo.ListPhaseAssignments(ctx, "ws-1", "")
	if err != nil {
		t.Fatalf("ListPhaseAssignments() error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("assignment rows = %d, want 1", len(all))
	}
	if !all[0].IsLead {
		t.Fatal("expected lead flag after upgrade")
	}

	if err := repo.DeletePhaseAssignment(ctx, "ws-1", "user-1", domain.PhaseBuild); err != nil {
		t.Fatalf("DeletePhaseAssignment() error = %v", err)
	}
	if _, err := repo.GetPhaseAssignment(ctx, "ws-1", "user-1", domain.PhaseBuild); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRepository_ResolveAccessRequestOnce(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	seedWorkspace(t, repo, now)

	request, err := domain.NewAccessRequest("req-1", "user-1", "ws-1", domain.PhaseBuild, "need to land fixes", domain.UrgencyHigh, now)
	if err != nil {
		t.Fatalf("NewAccessRequest() error = %v", err)
	}
	if err := repo.CreateAccessRequest(ctx, request); err != nil {
		t.Fatalf("CreateAccessRequest() error = %v", err)
	}

	if err := request.Resolve(domain.DecisionApprove, "admin-1", "ok", now.Add(time.Minute)); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	grant, err := domain.NewPhaseAssignment("ws-1", "user-1", domain.PhaseBuild, true, false, "admin-1", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("NewPhaseAssignment() error = %v", err)
	}
	if err := repo.ResolveAccessRequest(ctx, request, &grant); err != nil {
		t.Fatalf("ResolveAccessRequest() error = %v", err)
	}

	stored, err := repo.GetAccessRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("GetAccessRequest() error = %v", err)
	}
	if stored.Status != domain.RequestApproved || stored.ReviewedBy != "admin-1" {
		t.Fatalf("unexpected stored request %+v", stored)
	}
	if _, err := repo.GetPhaseAssignment(ctx, "ws-1", "user-1", domain.PhaseBuild); err != nil {
		t.Fatalf("grant missing after approval: %v", err)
	}

	// A second resolve against a terminal row is rejected atomically.
	err = repo.ResolveAccessRequest(ctx, request, nil)
	if !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}

	pending, err := repo.ListAccessRequests(ctx, "ws-1", domain.RequestPending)
	if err != nil {
		t.Fatalf("ListAccessRequests() error = %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending rows = %d, want 0", len(pending))
	}
}

func TestDirectory_RoleOf(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	dir, err := NewDirectory(repo)
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	member, err := domain.NewTeamMember("team-1", "user-1", domain.RoleAdmin, now)
	if err != nil {
		t.Fatalf("NewTeamMember() error = %v", err)
	}
	if err := dir.UpsertMember(ctx, member); err != nil {
		t.Fatalf("UpsertMember() error = %v", err)
	}

	role, ok, err := dir.RoleOf(ctx, "team-1", "user-1")
	if err != nil || !ok {
		t.Fatalf("RoleOf() = %q, %v, %v", role, ok, err)
	}
	if role != domain.RoleAdmin {
		t.Fatalf("role = %q, want admin", role)
	}

	if _, ok, err := dir.RoleOf(ctx, "team-1", "stranger"); err != nil || ok {
		t.Fatalf("RoleOf(stranger) = %v, %v; want not a member", ok, err)
	}

	if err := dir.RemoveMember(ctx, "team-1", "user-1"); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	if _, ok, _ := dir.RoleOf(ctx, "team-1", "user-1"); ok {
		t.Fatal("membership survived removal")
	}
}
