package domain

import (
	"slices"
	"strings"
	"time"
)

// TeamRole is a user's role within one team.
type TeamRole string

// TeamRole values.
const (
	RoleOwner  TeamRole = "owner"
	RoleAdmin  TeamRole = "admin"
	RoleMember TeamRole = "member"
)

// NormalizeTeamRole canonicalizes a role value.
func NormalizeTeamRole(r TeamRole) TeamRole {
	return TeamRole(strings.TrimSpace(strings.ToLower(string(r))))
}

// IsValidTeamRole reports whether the role is supported.
func IsValidTeamRole(r TeamRole) bool {
	return slices.Contains([]TeamRole{RoleOwner, RoleAdmin, RoleMember}, NormalizeTeamRole(r))
}

// BypassesPhaseRestriction reports whether the role carries full phase
// authority. Team isolation still applies regardless.
func (r TeamRole) BypassesPhaseRestriction() bool {
	switch NormalizeTeamRole(r) {
	case RoleOwner, RoleAdmin:
		return true
	default:
		return false
	}
}

// TeamMember links a user to a team with a role. The membership registry is
// an external collaborator; this is its value type at the interface boundary.
type TeamMember struct {
	TeamID    string
	UserID    string
	Role      TeamRole
	CreatedAt time.Time
}

// NewTeamMember validates and constructs a membership record.
func NewTeamMember(teamID, userID string, role TeamRole, now time.Time) (TeamMember, error) {
	teamID = strings.TrimSpace(teamID)
	userID = strings.TrimSpace(userID)
	role = NormalizeTeamRole(role)
	if teamID == "" {
		return TeamMember{}, ErrInvalidTeamID
	}
	if userID == "" {
		return TeamMember{}, ErrInvalidUserID
	}
	if !IsValidTeamRole(role) {
		return TeamMember{}, ErrInvalidRole
	}
	return TeamMember{
		TeamID:    teamID,
		UserID:    userID,
		Role:      role,
		CreatedAt: now.UTC(),
	}, nil
}
