package domain

import "errors"

// IsValidationError reports whether err is one of the input validation
// sentinels. Transport adapters map these to a 422 as a group.
func IsValidationError(err error) bool {
	for _, sentinel := range []error{
		ErrInvalidID,
		ErrInvalidTitle,
		ErrInvalidTeamID,
		ErrInvalidWorkspaceID,
		ErrInvalidUserID,
		ErrInvalidItemType,
		ErrInvalidStatus,
		ErrInvalidPhase,
		ErrInvalidRole,
		ErrInvalidUrgency,
		ErrInvalidDecision,
		ErrInvalidName,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// Authorization and workflow errors surfaced to callers as distinct kinds.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidPhaseForType = errors.New("invalid phase for work item type")
	ErrAlreadyResolved     = errors.New("access request already resolved")
)

// Validation errors for malformed input.
var (
	ErrInvalidID          = errors.New("invalid id")
	ErrInvalidTitle       = errors.New("invalid title")
	ErrInvalidTeamID      = errors.New("invalid team id")
	ErrInvalidWorkspaceID = errors.New("invalid workspace id")
	ErrInvalidUserID      = errors.New("invalid user id")
	ErrInvalidItemType    = errors.New("invalid work item type")
	ErrInvalidStatus      = errors.New("invalid work item status")
	ErrInvalidPhase       = errors.New("invalid phase")
	ErrInvalidRole        = errors.New("invalid team role")
	ErrInvalidUrgency     = errors.New("invalid urgency")
	ErrInvalidDecision    = errors.New("invalid review decision")
	ErrInvalidName        = errors.New("invalid name")
)
