package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ebersole/phasegate/internal/app"
	"github.com/ebersole/phasegate/internal/domain"
)

// Directory is a sqlite-backed team membership oracle. Membership is owned by
// the platform's team registry; this table is a local mirror kept current by
// the seed tooling, not a second source of truth.
type Directory struct {
	db *sql.DB
}

// Directory implements the app-level membership port.
var _ app.MembershipOracle = (*Directory)(nil)

// NewDirectory binds a directory to an open repository's database.
func NewDirectory(repo *Repository) (*Directory, error) {
	d := &Directory{db: repo.db}
	if err := d.migrate(context.Background()); err != nil {
		return nil, err
	}
	return d, nil
}

// migrate applies the membership schema.
func (d *Directory) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS team_members (
			team_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'member',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (team_id, user_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_team_members_user ON team_members(user_id);`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate team_members: %w", err)
		}
	}
	return nil
}

// RoleOf returns the user's role in the team; the second result is false for
// non-members.
func (d *Directory) RoleOf(ctx context.Context, teamID, userID string) (domain.TeamRole, bool, error) {
	var roleRaw string
	err := d.db.QueryRowContext(ctx, `
		SELECT role
		FROM team_members
		WHERE team_id = ? AND user_id = ?
	`, strings.TrimSpace(teamID), strings.TrimSpace(userID)).Scan(&roleRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	role := domain.NormalizeTeamRole(domain.TeamRole(roleRaw))
	if !domain.IsValidTeamRole(role) {
		return "", false, fmt.Errorf("team_members row (%s, %s) has unknown role %q", teamID, userID, roleRaw)
	}
	return role, true, nil
}

// UpsertMember mirrors one membership row from the platform registry.
func (d *Directory) UpsertMember(ctx context.Context, member domain.TeamMember) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO team_members(team_id, user_id, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(team_id, user_id) DO UPDATE SET
			role = excluded.role,
			updated_at = excluded.updated_at
	`,
		member.TeamID,
		member.UserID,
		string(member.Role),
		ts(member.CreatedAt),
		ts(time.Now().UTC()),
	)
	return err
}

// RemoveMember drops one membership row.
func (d *Directory) RemoveMember(ctx context.Context, teamID, userID string) error {
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM team_members
		WHERE team_id = ? AND user_id = ?
	`, strings.TrimSpace(teamID), strings.TrimSpace(userID))
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// ListMembers lists one team's membership rows.
func (d *Directory) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT team_id, user_id, role, created_at
		FROM team_members
		WHERE team_id = ?
		ORDER BY user_id ASC
	`, strings.TrimSpace(teamID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.TeamMember{}
	for rows.Next() {
		var (
			member     domain.TeamMember
			roleRaw    string
			createdRaw string
		)
		if err := rows.Scan(&member.TeamID, &member.UserID, &roleRaw, &createdRaw); err != nil {
			return nil, err
		}
		member.Role = domain.NormalizeTeamRole(domain.TeamRole(roleRaw))
		member.CreatedAt = parseTS(createdRaw)
		out = append(out, member)
	}
	return out, rows.Err()
}
