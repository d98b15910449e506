/*
handlers.go - HTTP API handlers for the elective booking engine

PURPOSE:
  Exposes the elective engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Selections:
    GET    /api/users/{userID}/instances/{instanceID}/selection
    POST   /api/users/{userID}/instances/{instanceID}/selection/toggle
    DELETE /api/users/{userID}/instances/{instanceID}/selection

  Credits:
    GET    /api/users/{userID}/instances/{instanceID}/credits

  Combination rules:
    GET    /api/options/{optionID}/combinations?kind=must-combine
    PUT    /api/options/{optionID}/combinations

  Reconciliation:
    GET    /api/options/due
    POST   /api/admin/reconcile
    GET    /api/reconciliation/runs

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Stale selection state
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization; the engine sits behind the
  platform's own auth layer.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/campus/elective-engine/elective"
)

// UserDirectory resolves user records for the credits summary.
type UserDirectory interface {
	User(ctx context.Context, id elective.UserID) (*elective.User, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Selections *elective.SelectionStore
	Registry   *elective.Registry
	Engine     *elective.Engine
	Reconciler *elective.Reconciler
	Options    elective.OptionStore
	Instances  elective.InstanceStore
	Runs       elective.RunStore
	Users      UserDirectory
	Log        zerolog.Logger
}

// =============================================================================
// SELECTION HANDLERS
// =============================================================================

// GetSelection returns the staged option ids for (user, instance).
func (h *Handler) GetSelection(w http.ResponseWriter, r *http.Request) {
	userID, instanceID, ok := h.userInstanceParams(w, r)
	if !ok {
		return
	}
	ids, err := h.Selections.Selected(r.Context(), userID, instanceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load selection", err)
		return
	}
	writeJSON(w, http.StatusOK, selectionDTO(userID, instanceID, ids))
}

// ToggleSelection flips one option in the staged selection and returns the
// resulting list.
func (h *Handler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	userID, instanceID, ok := h.userInstanceParams(w, r)
	if !ok {
		return
	}
	var req ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OptionID <= 0 {
		writeError(w, http.StatusBadRequest, "optionId must be positive", nil)
		return
	}
	ids, err := h.Selections.Toggle(r.Context(), userID, instanceID, elective.OptionID(req.OptionID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to toggle selection", err)
		return
	}
	writeJSON(w, http.StatusOK, selectionDTO(userID, instanceID, ids))
}

// ResetSelection clears the staged selection for (user, instance).
func (h *Handler) ResetSelection(w http.ResponseWriter, r *http.Request) {
	userID, instanceID, ok := h.userInstanceParams(w, r)
	if !ok {
		return
	}
	if err := h.Selections.Reset(r.Context(), userID, instanceID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset selection", err)
		return
	}
	writeJSON(w, http.StatusOK, selectionDTO(userID, instanceID, nil))
}

// =============================================================================
// CREDITS HANDLER
// =============================================================================

// GetCredits returns the user's budget summary for an instance.
func (h *Handler) GetCredits(w http.ResponseWriter, r *http.Request) {
	userID, instanceID, ok := h.userInstanceParams(w, r)
	if !ok {
		return
	}
	inst, err := h.Instances.Instance(r.Context(), instanceID)
	if err != nil {
		if elective.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Instance not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load instance", err)
		return
	}

	user, err := h.Users.User(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load user", err)
		return
	}

	summary, err := h.Engine.CreditsMessage(r.Context(), inst, user)
	if err != nil {
		if errors.Is(err, elective.ErrStaleReference) {
			writeError(w, http.StatusConflict, "Selection references a removed option", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to compute credits", err)
		return
	}
	if summary == nil {
		writeJSON(w, http.StatusOK, CreditsDTO{Enabled: false})
		return
	}
	writeJSON(w, http.StatusOK, CreditsDTO{
		Enabled:    true,
		Remaining:  summary.Remaining.Int(),
		MaxCredits: summary.MaxCredits.Int(),
		OverBudget: summary.OverBudget(),
		Warned:     summary.Warned,
	})
}

// =============================================================================
// COMBINATION RULE HANDLERS
// =============================================================================

// GetCombinations lists the related option ids for (option, kind).
func (h *Handler) GetCombinations(w http.ResponseWriter, r *http.Request) {
	optionID, ok := h.int64Param(w, r, "optionID")
	if !ok {
		return
	}
	kind := elective.CombineKind(r.URL.Query().Get("kind"))
	related, err := h.Registry.GetCombinations(r.Context(), elective.OptionID(optionID), kind)
	if err != nil {
		if errors.Is(err, elective.ErrInvalidCombineKind) {
			writeError(w, http.StatusBadRequest, "Invalid combine kind", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load combinations", err)
		return
	}
	dto := CombinationsDTO{OptionID: optionID, Kind: string(kind), RelatedIDs: make([]int64, len(related))}
	for i, id := range related {
		dto.RelatedIDs[i] = int64(id)
	}
	writeJSON(w, http.StatusOK, dto)
}

// SetCombinations replaces the rule set for (option, kind) with the
// request's related ids.
func (h *Handler) SetCombinations(w http.ResponseWriter, r *http.Request) {
	optionID, ok := h.int64Param(w, r, "optionID")
	if !ok {
		return
	}
	var req SetCombinationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	related := make([]elective.OptionID, len(req.RelatedIDs))
	for i, id := range req.RelatedIDs {
		related[i] = elective.OptionID(id)
	}
	err := h.Registry.SetCombinations(r.Context(), elective.OptionID(optionID), related, elective.CombineKind(req.Kind))
	if err != nil {
		if errors.Is(err, elective.ErrInvalidCombineKind) {
			writeError(w, http.StatusBadRequest, "Invalid combine kind", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to store combinations", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// ListDueOptions returns the options the next reconciler run would process.
func (h *Handler) ListDueOptions(w http.ResponseWriter, r *http.Request) {
	due, err := h.Options.DueOptions(r.Context(), time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to scan due options", err)
		return
	}
	dtos := make([]OptionDTO, len(due))
	for i, opt := range due {
		dtos[i] = optionDTO(opt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// TriggerReconcile runs one reconciliation pass immediately.
func (h *Handler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.Reconciler.Run(r.Context(), time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Reconciliation run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, runDTO(*report))
}

// ListRuns returns recent reconciliation run records, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	runs, err := h.Runs.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = runDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) userInstanceParams(w http.ResponseWriter, r *http.Request) (elective.UserID, elective.InstanceID, bool) {
	userID, ok := h.int64Param(w, r, "userID")
	if !ok {
		return 0, 0, false
	}
	instanceID, ok := h.int64Param(w, r, "instanceID")
	if !ok {
		return 0, 0, false
	}
	return elective.UserID(userID), elective.InstanceID(instanceID), true
}

func (h *Handler) int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid "+name, err)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	dto := ErrorDTO{Error: msg}
	if err != nil {
		dto.Details = err.Error()
	}
	writeJSON(w, status, dto)
}
