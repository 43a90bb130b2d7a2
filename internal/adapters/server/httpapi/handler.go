// Package httpapi provides the REST HTTP adapter for the phase engine.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ebersole/phasegate/internal/app"
	"github.com/ebersole/phasegate/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// actorHeader carries the authenticated platform user id. The platform
// gateway authenticates and sets it; this adapter only reads it.
const actorHeader = "X-Actor-ID"

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	service *app.Service
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the application service.
func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	segments := splitPath(r.URL.Path)
	switch {
	case len(segments) == 1 && segments[0] == "workspaces":
		switch r.Method {
		case http.MethodGet:
			h.handleListWorkspaces(w, r)
		case http.MethodPost:
			h.handleRegisterWorkspace(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(segments) == 3 && segments[0] == "workspaces":
		h.serveWorkspaceSubresource(w, r, segments[1], segments[2])
	case len(segments) == 1 && segments[0] == "work-items":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleCreateWorkItem(w, r)
	case len(segments) == 2 && segments[0] == "work-items":
		switch r.Method {
		case http.MethodGet:
			h.handleGetWorkItem(w, r, segments[1])
		case http.MethodPatch:
			h.handleUpdateWorkItem(w, r, segments[1])
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPatch)
		}
	case len(segments) == 3 && segments[0] == "work-items":
		h.serveWorkItemSubresource(w, r, segments[1], segments[2])
	case len(segments) == 1 && segments[0] == "access-requests":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleRequestAccess(w, r)
	case len(segments) == 3 && segments[0] == "access-requests":
		h.serveAccessRequestAction(w, r, segments[1], segments[2])
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// serveWorkspaceSubresource routes `/workspaces/{id}/{sub}`.
func (h *Handler) serveWorkspaceSubresource(w http.ResponseWriter, r *http.Request, workspaceID, sub string) {
	switch sub {
	case "work-items":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListWorkItems(w, r, workspaceID)
	case "assignments":
		switch r.Method {
		case http.MethodGet:
			h.handleListAssignments(w, r, workspaceID)
		case http.MethodPut:
			h.handleAssignPhase(w, r, workspaceID)
		case http.MethodDelete:
			h.handleRemoveAssignment(w, r, workspaceID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case "access-requests":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListAccessRequests(w, r, workspaceID)
	case "workload":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleGetWorkload(w, r, workspaceID)
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// serveWorkItemSubresource routes `/work-items/{id}/{action}`.
func (h *Handler) serveWorkItemSubresource(w http.ResponseWriter, r *http.Request, itemID, action string) {
	switch action {
	case "transition":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleTransition(w, r, itemID)
	case "status":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleSetStatus(w, r, itemID)
	case "archive":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleArchive(w, r, itemID)
	case "history":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleHistory(w, r, itemID)
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// serveAccessRequestAction routes `/access-requests/{id}/{action}`.
func (h *Handler) serveAccessRequestAction(w http.ResponseWriter, r *http.Request, requestID, action string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	switch action {
	case "review":
		h.handleReviewAccessRequest(w, r, requestID)
	case "cancel":
		h.handleCancelAccessRequest(w, r, requestID)
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// registerWorkspaceRequest is the POST `/workspaces` payload.
type registerWorkspaceRequest struct {
	TeamID string `json:"team_id"`
	Name   string `json:"name"`
}

func (h *Handler) handleRegisterWorkspace(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req registerWorkspaceRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	workspace, err := h.service.RegisterWorkspace(r.Context(), req.TeamID, req.Name, actorID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, workspaceView(workspace))
}

func (h *Handler) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	teamID := strings.TrimSpace(r.URL.Query().Get("team_id"))
	if teamID == "" {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "team_id is required",
		})
		return
	}
	workspaces, err := h.service.ListWorkspaces(r.Context(), teamID, actorID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	views := make([]map[string]any, 0, len(workspaces))
	for _, workspace := range workspaces {
		views = append(views, workspaceView(workspace))
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspaces": views})
}

// createWorkItemRequest is the POST `/work-items` payload.
type createWorkItemRequest struct {
	WorkspaceID  string `json:"workspace_id"`
	Type         string `json:"type"`
	InitialPhase string `json:"initial_phase,omitempty"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	OwnerID      string `json:"owner_id,omitempty"`
	AssigneeID   string `json:"assignee_id,omitempty"`
}

func (h *Handler) handleCreateWorkItem(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createWorkItemRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	item, err := h.service.CreateWorkItem(r.Context(), app.CreateWorkItemInput{
		WorkspaceID:  req.WorkspaceID,
		Type:         domain.ItemType(req.Type),
		InitialPhase: domain.Phase(req.InitialPhase),
		Title:        req.Title,
		Description:  req.Description,
		OwnerID:      req.OwnerID,
		AssigneeID:   req.AssigneeID,
		ActorID:      actorID,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, workItemView(item))
}

// updateWorkItemRequest is the PATCH `/work-items/{id}` payload.
type updateWorkItemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
	AssigneeID  string `json:"assignee_id,omitempty"`
}

func (h *Handler) handleUpdateWorkItem(w http.ResponseWriter, r *http.Request, itemID string) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updateWorkItemRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	item, err := h.service.UpdateWorkItemDetails(r.Context(), itemID, req.Title, req.Description, req.OwnerID, req.AssigneeID, actorID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workItemView(item))
}

func (h *Handler) handleGetWorkItem(w http.ResponseWriter, r *http.Request, itemID string) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	item, err := h.service.GetWorkItem(r.Context(), itemID, actorID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workItemView(item))
}

func (h *Handler) handleListWorkItems(w http.ResponseWriter, r *http.Request, workspaceID string) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	includeArchived := r.URL.Query().Get("include_archived") == "true"
	items, err := h.service.ListWorkItems(r.Context(), workspaceID, actorID, includeArchived)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	views := make([]map[string]any, 0, len(items))
	for _, item := range items {
		views = append(views, workItemView(item))
	}
	writeJSON(w, http.StatusOK, map[string]any{"work_items": views})
}

// transitionRequest is the POST `/work-items/{id}/transition` payload.
type transitionRequest struct {
	Phase  string `json:"phase"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, itemID string) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	item, err := h.service.TransitionPhase(r.Context(), itemID, domain.Phase(req.Phase), actorID, req.Reason)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workItemView(item))
}

// statusRequest is the POST `/work-items/{id}/status` payload.
type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request, itemID string) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	item, err := h.service.SetWorkItemStatus(r.Context(), itemID, domain.Status(req.Status), actorID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workItemView(item))
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request, itemID string) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	item, err := h.service.ArchiveWorkItem(r.Context(), itemID, actorID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workItemView(item))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request, itemID string) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "limit must be a non-negative integer",
			})
			return
		}
		limit = parsed
	}
	entries, err := h.service.GetHistory(r.Context(), itemID, actorID, limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	views := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		views = append(views, historyView(entry))
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": views})
}

// assignPhaseRequest is the PUT `/workspaces/{id}/assignments` payload.
type assignPhaseRequest struct {
	UserID  string `json:"user_id"`
	Phase   string `json:"phase"`
	CanEdit bool   `json:"can_edit"`
	IsLead  bool   `json:"is_lead"`
}

func (h *Handler) handleAssignPhase(w http.ResponseWriter, r *http.Request, workspaceID string) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req assignPhaseRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	assignment, err := h.service.AssignPhase(r.Context(), app.AssignPhaseInput{
		WorkspaceID: workspaceID,
		UserID:      req.UserID,
		Phase:       domain.Phase(req.Phase),
		CanEdit:     req.CanEdit,
		IsLead:      req.IsLead,
		ActorID:     actorID,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignmentView(assignment))
}

func (h *Handler) handleRemoveAssignment(w http.ResponseWriter, r *http.Request, workspaceID string) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	phase := strings.TrimSpace(r.URL.Query().Get("phase"))
	if userID == "" || phase == "" {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "user_id and phase are required",
		})
		return
	}
	if err := h.service.RemovePhaseAssignment(r.Context(), workspaceID, userID, domain.Phase(phase), actorID); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request, workspaceID string) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	phase := domain.Phase(strings.TrimSpace(r.URL.Query().Get("phase")))
	assignments, err := h.service.ListPhaseAssignments(r.Context(), workspaceID, phase, actorID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	views := make([]map[string]any, 0, len(assignments))
	for _, assignment := range assignments {
		views = append(views, assignmentView(assignment))
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": views})
}

// requestAccessRequest is the POST `/access-requests` payload.
type requestAccessRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Phase       string `json:"phase"`
	Reason      string `json:"reason,omitempty"`
	Urgency     string `json:"urgency,omitempty"`
}

func (h *Handler) handleRequestAccess(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req requestAccessRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	request, err := h.service.RequestPhaseAccess(r.Context(), app.RequestPhaseAccessInput{
		RequesterID: actorID,
		WorkspaceID: req.WorkspaceID,
		Phase:       domain.Phase(req.Phase),
		Reason:      req.Reason,
		Urgency:     domain.Urgency(req.Urgency),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, accessRequestView(request))
}

// reviewRequest is the POST `/access-requests/{id}/review` payload.
type reviewRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note,omitempty"`
}

func (h *Handler) handleReviewAccessRequest(w http.ResponseWriter, r *http.Request, requestID string) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	request, err := h.service.ReviewAccessRequest(r.Context(), requestID, domain.Decision(req.Decision), actorID, req.Note)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accessRequestView(request))
}

func (h *Handler) handleCancelAccessRequest(w http.ResponseWriter, r *http.Request, requestID string) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	request, err := h.service.CancelAccessRequest(r.Context(), requestID, actorID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accessRequestView(request))
}

func (h *Handler) handleListAccessRequests(w http.ResponseWriter, r *http.Request, workspaceID string) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	status := domain.AccessRequestStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	requests, err := h.service.ListAccessRequests(r.Context(), workspaceID, status, actorID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	views := make([]map[string]any, 0, len(requests))
	for _, request := range requests {
		views = append(views, accessRequestView(request))
	}
	writeJSON(w, http.StatusOK, map[string]any{"access_requests": views})
}

func (h *Handler) handleGetWorkload(w http.ResponseWriter, r *http.Request, workspaceID string) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	entries, err := h.service.GetWorkload(r.Context(), workspaceID, actorID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	views := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		views = append(views, map[string]any{
			"workspace_id": entry.WorkspaceID,
			"phase":        string(entry.Phase),
			"status":       string(entry.Status),
			"count":        entry.Count,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"workload": views})
}

// requireActor reads the authenticated actor header, failing the request
// when absent.
func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actorID := strings.TrimSpace(r.Header.Get(actorHeader))
	if actorID == "" {
		writeJSONError(w, http.StatusUnauthorized, APIError{
			Code:    "missing_actor",
			Message: "authenticated actor header is required",
			Hint:    "Set the " + actorHeader + " header.",
		})
		return "", false
	}
	return actorID, true
}

// splitPath canonicalizes one request path into route segments.
func splitPath(path string) []string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// workspaceView shapes one workspace response body.
func workspaceView(w domain.Workspace) map[string]any {
	return map[string]any{
		"id":         w.ID,
		"team_id":    w.TeamID,
		"name":       w.Name,
		"created_at": w.CreatedAt,
	}
}

// workItemView shapes one work item response body.
func workItemView(item domain.WorkItem) map[string]any {
	view := map[string]any{
		"id":           item.ID,
		"team_id":      item.TeamID,
		"workspace_id": item.WorkspaceID,
		"type":         string(item.Type),
		"phase":        string(item.Phase),
		"status":       string(item.Status),
		"title":        item.Title,
		"description":  item.Description,
		"owner_id":     item.OwnerID,
		"assignee_id":  item.AssigneeID,
		"rev":          item.Rev,
		"created_at":   item.CreatedAt,
		"updated_at":   item.UpdatedAt,
	}
	if item.ArchivedAt != nil {
		view["archived_at"] = *item.ArchivedAt
	}
	return view
}

// assignmentView shapes one phase assignment response body.
func assignmentView(a domain.PhaseAssignment) map[string]any {
	return map[string]any{
		"workspace_id": a.WorkspaceID,
		"user_id":      a.UserID,
		"phase":        string(a.Phase),
		"can_edit":     a.CanEdit,
		"is_lead":      a.IsLead,
		"granted_by":   a.GrantedBy,
		"created_at":   a.CreatedAt,
		"updated_at":   a.UpdatedAt,
	}
}

// accessRequestView shapes one access request response body.
func accessRequestView(r domain.AccessRequest) map[string]any {
	view := map[string]any{
		"id":           r.ID,
		"requester_id": r.RequesterID,
		"workspace_id": r.WorkspaceID,
		"phase":        string(r.Phase),
		"reason":       r.Reason,
		"urgency":      string(r.Urgency),
		"status":       string(r.Status),
		"review_note":  r.ReviewNote,
		"created_at":   r.CreatedAt,
		"updated_at":   r.UpdatedAt,
	}
	if r.ReviewedBy != "" {
		view["reviewed_by"] = r.ReviewedBy
	}
	if r.ReviewedAt != nil {
		view["reviewed_at"] = *r.ReviewedAt
	}
	return view
}

// historyView shapes one audit entry response body.
func historyView(entry domain.PhaseHistoryEntry) map[string]any {
	return map[string]any{
		"id":           entry.ID,
		"work_item_id": entry.WorkItemID,
		"from_phase":   string(entry.FromPhase),
		"to_phase":     string(entry.ToPhase),
		"actor_id":     entry.ActorID,
		"snapshot":     entry.Snapshot,
		"occurred_at":  entry.OccurredAt,
	}
}

// writeErrorFrom maps application errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSONError(w, http.StatusForbidden, APIError{
			Code:    "unauthorized",
			Message: err.Error(),
		})
	case errors.Is(err, domain.ErrInvalidPhaseForType):
		writeJSONError(w, http.StatusUnprocessableEntity, APIError{
			Code:    "invalid_phase_for_type",
			Message: err.Error(),
		})
	case errors.Is(err, domain.ErrAlreadyResolved):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "already_resolved",
			Message: err.Error(),
		})
	case errors.Is(err, app.ErrConcurrentModification):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "concurrent_modification",
			Message: err.Error(),
			Hint:    "Reload the work item and retry the transition.",
		})
	case errors.Is(err, app.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case domain.IsValidationError(err):
		writeJSONError(w, http.StatusUnprocessableEntity, APIError{
			Code:    "validation_failed",
			Message: err.Error(),
		})
	case errors.Is(err, errBadRequestBody):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// errBadRequestBody marks malformed request payloads.
var errBadRequestBody = errors.New("invalid request body")

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(errBadRequestBody, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", errBadRequestBody)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
