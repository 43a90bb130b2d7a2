package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ebersole/phasegate/internal/app"
	"github.com/ebersole/phasegate/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository persists the phase engine's state in a single sqlite database.
type Repository struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens an in-memory database, used by tests and dry runs.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate applies the idempotent schema.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS workspaces (
			id TEXT PRIMARY KEY,
			team_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS work_items (
			id TEXT PRIMARY KEY,
			team_id TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			item_type TEXT NOT NULL,
			phase TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'open',
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL DEFAULT '',
			assignee_id TEXT NOT NULL DEFAULT '',
			rev INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			archived_at TEXT,
			FOREIGN KEY(workspace_id) REFERENCES workspaces(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS phase_assignments (
			workspace_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			phase TEXT NOT NULL,
			can_edit INTEGER NOT NULL DEFAULT 0,
			is_lead INTEGER NOT NULL DEFAULT 0,
			granted_by TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (workspace_id, user_id, phase),
			FOREIGN KEY(workspace_id) REFERENCES workspaces(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS phase_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			work_item_id TEXT NOT NULL,
			from_phase TEXT NOT NULL DEFAULT '',
			to_phase TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			snapshot_json TEXT NOT NULL DEFAULT '{}',
			occurred_at TEXT NOT NULL,
			FOREIGN KEY(work_item_id) REFERENCES work_items(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS access_requests (
			id TEXT PRIMARY KEY,
			requester_id TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			phase TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			urgency TEXT NOT NULL DEFAULT 'normal',
			status TEXT NOT NULL DEFAULT 'pending',
			reviewed_by TEXT NOT NULL DEFAULT '',
			reviewed_at TEXT,
			review_note TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(workspace_id) REFERENCES workspaces(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS workload_cache (
			workspace_id TEXT NOT NULL,
			phase TEXT NOT NULL,
			status TEXT NOT NULL,
			item_count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (workspace_id, phase, status)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_workspaces_team ON workspaces(team_id);`,
		`CREATE INDEX IF NOT EXISTS idx_work_items_workspace_phase ON work_items(workspace_id, phase);`,
		`CREATE INDEX IF NOT EXISTS idx_work_items_workspace_archived ON work_items(workspace_id, archived_at);`,
		`CREATE INDEX IF NOT EXISTS idx_phase_history_item_occurred ON phase_history(work_item_id, occurred_at DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_access_requests_workspace_status ON access_requests(workspace_id, status, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_phase_assignments_workspace_phase ON phase_assignments(workspace_id, phase);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateWorkspace creates a workspace record.
func (r *Repository) CreateWorkspace(ctx context.Context, w domain.Workspace) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workspaces(id, team_id, name, created_at)
		VALUES (?, ?, ?, ?)
	`, w.ID, w.TeamID, w.Name, ts(w.CreatedAt))
	return err
}

// GetWorkspace returns one workspace.
func (r *Repository) GetWorkspace(ctx context.Context, id string) (domain.Workspace, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, team_id, name, created_at
		FROM workspaces
		WHERE id = ?
	`, id)
	return scanWorkspace(row)
}

// ListWorkspaces lists one team's workspaces.
func (r *Repository) ListWorkspaces(ctx context.Context, teamID string) ([]domain.Workspace, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, team_id, name, created_at
		FROM workspaces
		WHERE team_id = ?
		ORDER BY created_at ASC, id ASC
	`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Workspace{}
	for rows.Next() {
		workspace, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, workspace)
	}
	return out, rows.Err()
}

// CreateWorkItem inserts the item, appends its creation audit entry, and
// refreshes the workspace's workload cache in one transaction.
func (r *Repository) CreateWorkItem(ctx context.Context, item domain.WorkItem, entry domain.PhaseHistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO work_items(
			id, team_id, workspace_id, item_type, phase, status, title, description,
			owner_id, assignee_id, rev, created_at, updated_at, archived_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.ID,
		item.TeamID,
		item.WorkspaceID,
		string(item.Type),
		string(item.Phase),
		string(item.Status),
		item.Title,
		item.Description,
		item.OwnerID,
		item.AssigneeID,
		item.Rev,
		ts(item.CreatedAt),
		ts(item.UpdatedAt),
		nullableTS(item.ArchivedAt),
	)
	if err != nil {
		return err
	}

	if err = insertHistoryEntry(ctx, tx, entry); err != nil {
		return err
	}
	if err = recomputeWorkload(ctx, tx, item.WorkspaceID); err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

// UpdateWorkItem persists the item guarded by its optimistic revision. The
// optional audit entry and the workload refresh commit in the same
// transaction as the row update.
func (r *Repository) UpdateWorkItem(ctx context.Context, item domain.WorkItem, expectedRev int64, entry *domain.PhaseHistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE work_items
		SET phase = ?, status = ?, title = ?, description = ?, owner_id = ?, assignee_id = ?,
		    rev = rev + 1, updated_at = ?, archived_at = ?
		WHERE id = ? AND rev = ?
	`,
		string(item.Phase),
		string(item.Status),
		item.Title,
		item.Description,
		item.OwnerID,
		item.AssigneeID,
		ts(item.UpdatedAt),
		nullableTS(item.ArchivedAt),
		item.ID,
		expectedRev,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish a missing row from a lost optimistic race.
		var exists int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM work_items WHERE id = ?`, item.ID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			err = app.ErrNotFound
			return err
		}
		err = app.ErrConcurrentModification
		return err
	}

	if entry != nil {
		if err = insertHistoryEntry(ctx, tx, *entry); err != nil {
			return err
		}
	}
	if err = recomputeWorkload(ctx, tx, item.WorkspaceID); err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

// GetWorkItem returns one work item.
func (r *Repository) GetWorkItem(ctx context.Context, id string) (domain.WorkItem, error) {
	return getWorkItemByID(ctx, r.db, id)
}

// ListWorkItems lists a workspace's work items.
func (r *Repository) ListWorkItems(ctx context.Context, workspaceID string, includeArchived bool) ([]domain.WorkItem, error) {
	query := `
		SELECT
			id, team_id, workspace_id, item_type, phase, status, title, description,
			owner_id, assignee_id, rev, created_at, updated_at, archived_at
		FROM work_items
		WHERE workspace_id = ?
	`
	if !includeArchived {
		query += ` AND archived_at IS NULL`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.WorkItem{}
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// UpsertPhaseAssignment creates or replaces one (workspace, user, phase) row.
func (r *Repository) UpsertPhaseAssignment(ctx context.Context, a domain.PhaseAssignment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO phase_assignments(workspace_id, user_id, phase, can_edit, is_lead, granted_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace_id, user_id, phase) DO UPDATE SET
			can_edit = excluded.can_edit,
			is_lead = excluded.is_lead,
			granted_by = excluded.granted_by,
			updated_at = excluded.updated_at
	`,
		a.WorkspaceID,
		a.UserID,
		string(a.Phase),
		boolToInt(a.CanEdit),
		boolToInt(a.IsLead),
		a.GrantedBy,
		ts(a.CreatedAt),
		ts(a.UpdatedAt),
	)
	return err
}

// GetPhaseAssignment returns one assignment row.
func (r *Repository) GetPhaseAssignment(ctx context.Context, workspaceID, userID string, phase domain.Phase) (domain.PhaseAssignment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT workspace_id, user_id, phase, can_edit, is_lead, granted_by, created_at, updated_at
		FROM phase_assignments
		WHERE workspace_id = ? AND user_id = ? AND phase = ?
	`, workspaceID, userID, string(phase))
	return scanAssignment(row)
}

// ListPhaseAssignments lists a workspace's assignments, optionally filtered
// by phase.
func (r *Repository) ListPhaseAssignments(ctx context.Context, workspaceID string, phase domain.Phase) ([]domain.PhaseAssignment, error) {
	query := `
		SELECT workspace_id, user_id, phase, can_edit, is_lead, granted_by, created_at, updated_at
		FROM phase_assignments
		WHERE workspace_id = ?
	`
	args := []any{workspaceID}
	if phase != "" {
		query += ` AND phase = ?`
		args = append(args, string(phase))
	}
	query += ` ORDER BY phase ASC, user_id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.PhaseAssignment{}
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, assignment)
	}
	return out, rows.Err()
}

// DeletePhaseAssignment removes one assignment row.
func (r *Repository) DeletePhaseAssignment(ctx context.Context, workspaceID, userID string, phase domain.Phase) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM phase_assignments
		WHERE workspace_id = ? AND user_id = ? AND phase = ?
	`, workspaceID, userID, string(phase))
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// CreateAccessRequest inserts a pending request.
func (r *Repository) CreateAccessRequest(ctx context.Context, request domain.AccessRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_requests(
			id, requester_id, workspace_id, phase, reason, urgency, status,
			reviewed_by, reviewed_at, review_note, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		request.ID,
		request.RequesterID,
		request.WorkspaceID,
		string(request.Phase),
		request.Reason,
		string(request.Urgency),
		string(request.Status),
		request.ReviewedBy,
		nullableTS(request.ReviewedAt),
		request.ReviewNote,
		ts(request.CreatedAt),
		ts(request.UpdatedAt),
	)
	return err
}

// GetAccessRequest returns one access request.
func (r *Repository) GetAccessRequest(ctx context.Context, id string) (domain.AccessRequest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, requester_id, workspace_id, phase, reason, urgency, status,
		       reviewed_by, reviewed_at, review_note, created_at, updated_at
		FROM access_requests
		WHERE id = ?
	`, id)
	return scanAccessRequest(row)
}

// ListAccessRequests lists a workspace's requests, optionally filtered
// by status.
func (r *Repository) ListAccessRequests(ctx context.Context, workspaceID string, status domain.AccessRequestStatus) ([]domain.AccessRequest, error) {
	query := `
		SELECT id, requester_id, workspace_id, phase, reason, urgency, status,
		       reviewed_by, reviewed_at, review_note, created_at, updated_at
		FROM access_requests
		WHERE workspace_id = ?
	`
	args := []any{workspaceID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.AccessRequest{}
	for rows.Next() {
		request, err := scanAccessRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, request)
	}
	return out, rows.Err()
}

// ResolveAccessRequest persists a terminal request state. The update only
// lands if the stored row is still pending, and an approval grant (if any)
// upserts in the same transaction.
func (r *Repository) ResolveAccessRequest(ctx context.Context, request domain.AccessRequest, grant *domain.PhaseAssignment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE access_requests
		SET status = ?, reviewed_by = ?, reviewed_at = ?, review_note = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'
	`,
		string(request.Status),
		request.ReviewedBy,
		nullableTS(request.ReviewedAt),
		request.ReviewNote,
		ts(request.UpdatedAt),
		request.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM access_requests WHERE id = ?`, request.ID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			err = app.ErrNotFound
			return err
		}
		err = domain.ErrAlreadyResolved
		return err
	}

	if grant != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO phase_assignments(workspace_id, user_id, phase, can_edit, is_lead, granted_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(workspace_id, user_id, phase) DO UPDATE SET
				can_edit = excluded.can_edit,
				is_lead = excluded.is_lead,
				granted_by = excluded.granted_by,
				updated_at = excluded.updated_at
		`,
			grant.WorkspaceID,
			grant.UserID,
			string(grant.Phase),
			boolToInt(grant.CanEdit),
			boolToInt(grant.IsLead),
			grant.GrantedBy,
			ts(grant.CreatedAt),
			ts(grant.UpdatedAt),
		)
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

// ListHistory returns the audit trail for one work item, newest first.
func (r *Repository) ListHistory(ctx context.Context, workItemID string, limit int) ([]domain.PhaseHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, work_item_id, from_phase, to_phase, actor_id, snapshot_json, occurred_at
		FROM phase_history
		WHERE work_item_id = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`, workItemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.PhaseHistoryEntry{}
	for rows.Next() {
		var (
			entry       domain.PhaseHistoryEntry
			fromRaw     string
			toRaw       string
			snapshotRaw string
			occurredRaw string
		)
		if err := rows.Scan(&entry.ID, &entry.WorkItemID, &fromRaw, &toRaw, &entry.ActorID, &snapshotRaw, &occurredRaw); err != nil {
			return nil, err
		}
		entry.FromPhase = domain.Phase(fromRaw)
		entry.ToPhase = domain.Phase(toRaw)
		entry.OccurredAt = parseTS(occurredRaw)
		if strings.TrimSpace(snapshotRaw) == "" {
			snapshotRaw = "{}"
		}
		if err := json.Unmarshal([]byte(snapshotRaw), &entry.Snapshot); err != nil {
			return nil, fmt.Errorf("decode phase_history.snapshot_json: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// GetWorkload reads the cached per-phase, per-status counts for a workspace.
func (r *Repository) GetWorkload(ctx context.Context, workspaceID string) ([]domain.WorkloadEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT workspace_id, phase, status, item_count
		FROM workload_cache
		WHERE workspace_id = ?
		ORDER BY phase ASC, status ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.WorkloadEntry{}
	for rows.Next() {
		var (
			entry     domain.WorkloadEntry
			phaseRaw  string
			statusRaw string
		)
		if err := rows.Scan(&entry.WorkspaceID, &phaseRaw, &statusRaw, &entry.Count); err != nil {
			return nil, err
		}
		entry.Phase = domain.Phase(phaseRaw)
		entry.Status = domain.Status(statusRaw)
		out = append(out, entry)
	}
	return out, rows.Err()
}

// RefreshWorkload rebuilds one workspace's cache rows from work_items.
func (r *Repository) RefreshWorkload(ctx context.Context, workspaceID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = recomputeWorkload(ctx, tx, workspaceID); err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

// queryRower represents a query-only DB contract used by DB and Tx implementations.
type queryRower interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// getWorkItemByID returns one work item row.
func getWorkItemByID(ctx context.Context, q queryRower, id string) (domain.WorkItem, error) {
	row := q.QueryRowContext(ctx, `
		SELECT
			id, team_id, workspace_id, item_type, phase, status, title, description,
			owner_id, assignee_id, rev, created_at, updated_at, archived_at
		FROM work_items
		WHERE id = ?
	`, id)
	return scanWorkItem(row)
}

// insertHistoryEntry appends an immutable audit record.
func insertHistoryEntry(ctx context.Context, execer execerContext, entry domain.PhaseHistoryEntry) error {
	snapshotJSON, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("encode history snapshot: %w", err)
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO phase_history(work_item_id, from_phase, to_phase, actor_id, snapshot_json, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		entry.WorkItemID,
		string(entry.FromPhase),
		string(entry.ToPhase),
		entry.ActorID,
		string(snapshotJSON),
		ts(normalizeEventTS(entry.OccurredAt)),
	)
	if err != nil {
		return fmt.Errorf("insert phase history: %w", err)
	}
	return nil
}

// recomputeWorkload replaces a workspace's cache rows with fresh counts from
// the work-item source of truth. Archived items never count.
func recomputeWorkload(ctx context.Context, execer execerContext, workspaceID string) error {
	if _, err := execer.ExecContext(ctx, `DELETE FROM workload_cache WHERE workspace_id = ?`, workspaceID); err != nil {
		return fmt.Errorf("clear workload cache: %w", err)
	}
	_, err := execer.ExecContext(ctx, `
		INSERT INTO workload_cache(workspace_id, phase, status, item_count)
		SELECT workspace_id, phase, status, COUNT(*)
		FROM work_items
		WHERE workspace_id = ? AND archived_at IS NULL
		GROUP BY workspace_id, phase, status
	`, workspaceID)
	if err != nil {
		return fmt.Errorf("rebuild workload cache: %w", err)
	}
	return nil
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// scanWorkspace handles scan workspace.
func scanWorkspace(s scanner) (domain.Workspace, error) {
	var (
		w          domain.Workspace
		createdRaw string
	)
	if err := s.Scan(&w.ID, &w.TeamID, &w.Name, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Workspace{}, app.ErrNotFound
		}
		return domain.Workspace{}, err
	}
	w.CreatedAt = parseTS(createdRaw)
	return w, nil
}

// scanWorkItem handles scan work item.
func scanWorkItem(s scanner) (domain.WorkItem, error) {
	var (
		item        domain.WorkItem
		typeRaw     string
		phaseRaw    string
		statusRaw   string
		createdRaw  string
		updatedRaw  string
		archivedRaw sql.NullString
	)
	if err := s.Scan(
		&item.ID,
		&item.TeamID,
		&item.WorkspaceID,
		&typeRaw,
		&phaseRaw,
		&statusRaw,
		&item.Title,
		&item.Description,
		&item.OwnerID,
		&item.AssigneeID,
		&item.Rev,
		&createdRaw,
		&updatedRaw,
		&archivedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.WorkItem{}, app.ErrNotFound
		}
		return domain.WorkItem{}, err
	}
	item.Type = domain.ItemType(typeRaw)
	item.Phase = domain.Phase(phaseRaw)
	item.Status = domain.NormalizeStatus(domain.Status(statusRaw))
	item.CreatedAt = parseTS(createdRaw)
	item.UpdatedAt = parseTS(updatedRaw)
	item.ArchivedAt = parseNullTS(archivedRaw)
	return item, nil
}

// scanAssignment handles scan assignment.
func scanAssignment(s scanner) (domain.PhaseAssignment, error) {
	var (
		a          domain.PhaseAssignment
		phaseRaw   string
		canEdit    int
		isLead     int
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&a.WorkspaceID, &a.UserID, &phaseRaw, &canEdit, &isLead, &a.GrantedBy, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PhaseAssignment{}, app.ErrNotFound
		}
		return domain.PhaseAssignment{}, err
	}
	a.Phase = domain.Phase(phaseRaw)
	a.CanEdit = canEdit != 0
	a.IsLead = isLead != 0
	a.CreatedAt = parseTS(createdRaw)
	a.UpdatedAt = parseTS(updatedRaw)
	return a, nil
}

// scanAccessRequest handles scan access request.
func scanAccessRequest(s scanner) (domain.AccessRequest, error) {
	var (
		request     domain.AccessRequest
		phaseRaw    string
		urgencyRaw  string
		statusRaw   string
		reviewedRaw sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := s.Scan(
		&request.ID,
		&request.RequesterID,
		&request.WorkspaceID,
		&phaseRaw,
		&request.Reason,
		&urgencyRaw,
		&statusRaw,
		&request.ReviewedBy,
		&reviewedRaw,
		&request.ReviewNote,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AccessRequest{}, app.ErrNotFound
		}
		return domain.AccessRequest{}, err
	}
	request.Phase = domain.Phase(phaseRaw)
	request.Urgency = domain.NormalizeUrgency(domain.Urgency(urgencyRaw))
	request.Status = domain.AccessRequestStatus(statusRaw)
	request.ReviewedAt = parseNullTS(reviewedRaw)
	request.CreatedAt = parseTS(createdRaw)
	request.UpdatedAt = parseTS(updatedRaw)
	return request, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// boolToInt stores booleans as sqlite integers.
func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// normalizeEventTS ensures audit timestamps are always populated and UTC-normalized.
func normalizeEventTS(in time.Time) time.Time {
	if in.IsZero() {
		return time.Now().UTC()
	}
	return in.UTC()
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}
