package domain

import (
	"strings"
	"time"
)

// Workspace maps a workspace to its owning team so authorization can resolve
// the team boundary for workspace-scoped entities. Deliberately minimal; the
// platform's workspace CRUD lives outside this engine.
type Workspace struct {
	ID        string
	TeamID    string
	Name      string
	CreatedAt time.Time
}

// NewWorkspace validates and constructs a workspace record.
func NewWorkspace(id, teamID, name string, now time.Time) (Workspace, error) {
	id = strings.TrimSpace(id)
	teamID = strings.TrimSpace(teamID)
	name = strings.TrimSpace(name)
	if id == "" {
		return Workspace{}, ErrInvalidWorkspaceID
	}
	if teamID == "" {
		return Workspace{}, ErrInvalidTeamID
	}
	if name == "" {
		return Workspace{}, ErrInvalidName
	}
	return Workspace{
		ID:        id,
		TeamID:    teamID,
		Name:      name,
		CreatedAt: now.UTC(),
	}, nil
}
