package domain

import (
	"slices"
	"strings"
	"time"
)

// AccessRequestStatus is the review state of a self-service access request.
type AccessRequestStatus string

// AccessRequestStatus values. Pending is the only non-terminal state.
const (
	RequestPending   AccessRequestStatus = "pending"
	RequestApproved  AccessRequestStatus = "approved"
	RequestRejected  AccessRequestStatus = "rejected"
	RequestCancelled AccessRequestStatus = "cancelled"
)

// Urgency is the requester-declared priority of an access request.
type Urgency string

// Urgency values.
const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

// Decision is a reviewer's verdict on a pending request.
type Decision string

// Decision values.
const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// NormalizeUrgency canonicalizes an urgency value, defaulting to normal.
func NormalizeUrgency(u Urgency) Urgency {
	u = Urgency(strings.TrimSpace(strings.ToLower(string(u))))
	if u == "" {
		return UrgencyNormal
	}
	return u
}

// IsValidUrgency reports whether the urgency is supported.
func IsValidUrgency(u Urgency) bool {
	return slices.Contains([]Urgency{UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyUrgent}, NormalizeUrgency(u))
}

// NormalizeDecision canonicalizes a review decision.
func NormalizeDecision(d Decision) Decision {
	switch strings.TrimSpace(strings.ToLower(string(d))) {
	case "approve", "approved":
		return DecisionApprove
	case "reject", "rejected":
		return DecisionReject
	default:
		return Decision(strings.TrimSpace(strings.ToLower(string(d))))
	}
}

// IsValidDecision reports whether the decision is supported.
func IsValidDecision(d Decision) bool {
	return slices.Contains([]Decision{DecisionApprove, DecisionReject}, NormalizeDecision(d))
}

// AccessRequest is a self-service request for a phase assignment.
type AccessRequest struct {
	ID          string
	RequesterID string
	WorkspaceID string
	Phase       Phase
	Reason      string
	Urgency     Urgency
	Status      AccessRequestStatus
	ReviewedBy  string
	ReviewedAt  *time.Time
	ReviewNote  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewAccessRequest validates and constructs a pending request.
func NewAccessRequest(id, requesterID, workspaceID string, phase Phase, reason string, urgency Urgency, now time.Time) (AccessRequest, error) {
	id = strings.TrimSpace(id)
	requesterID = strings.TrimSpace(requesterID)
	workspaceID = strings.TrimSpace(workspaceID)
	phase = NormalizePhase(phase)
	urgency = NormalizeUrgency(urgency)
	if id == "" {
		return AccessRequest{}, ErrInvalidID
	}
	if requesterID == "" {
		return AccessRequest{}, ErrInvalidUserID
	}
	if workspaceID == "" {
		return AccessRequest{}, ErrInvalidWorkspaceID
	}
	if phase == "" {
		return AccessRequest{}, ErrInvalidPhase
	}
	if !IsValidUrgency(urgency) {
		return AccessRequest{}, ErrInvalidUrgency
	}
	ts := now.UTC()
	return AccessRequest{
		ID:          id,
		RequesterID: requesterID,
		WorkspaceID: workspaceID,
		Phase:       phase,
		Reason:      strings.TrimSpace(reason),
		Urgency:     urgency,
		Status:      RequestPending,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}, nil
}

// IsTerminal reports whether the request has left the pending state.
func (r *AccessRequest) IsTerminal() bool {
	return r.Status != RequestPending
}

// Resolve applies a reviewer decision. A request already in a terminal state
// cannot be reviewed again.
func (r *AccessRequest) Resolve(decision Decision, reviewerID, note string, now time.Time) error {
	if r.IsTerminal() {
		return ErrAlreadyResolved
	}
	decision = NormalizeDecision(decision)
	if !IsValidDecision(decision) {
		return ErrInvalidDecision
	}
	ts := now.UTC()
	switch decision {
	case DecisionApprove:
		r.Status = RequestApproved
	case DecisionReject:
		r.Status = RequestRejected
	}
	r.ReviewedBy = strings.TrimSpace(reviewerID)
	r.ReviewedAt = &ts
	r.ReviewNote = strings.TrimSpace(note)
	r.UpdatedAt = ts
	return nil
}

// Cancel withdraws a pending request. Only the requester may cancel; the
// caller enforces that check.
func (r *AccessRequest) Cancel(now time.Time) error {
	if r.IsTerminal() {
		return ErrAlreadyResolved
	}
	ts := now.UTC()
	r.Status = RequestCancelled
	r.UpdatedAt = ts
	return nil
}
