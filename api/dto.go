/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/campus/elective-engine/elective"
)

// =============================================================================
// SELECTIONS
// =============================================================================

type SelectionDTO struct {
	UserID     int64   `json:"userId"`
	InstanceID int64   `json:"instanceId"`
	OptionIDs  []int64 `json:"optionIds"`
}

type ToggleRequest struct {
	OptionID int64 `json:"optionId"`
}

func selectionDTO(userID elective.UserID, instanceID elective.InstanceID, ids []elective.OptionID) SelectionDTO {
	out := SelectionDTO{
		UserID:     int64(userID),
		InstanceID: int64(instanceID),
		OptionIDs:  make([]int64, len(ids)),
	}
	for i, id := range ids {
		out.OptionIDs[i] = int64(id)
	}
	return out
}

// =============================================================================
// CREDITS
// =============================================================================

// CreditsDTO reports the budget state. Enabled is false when the instance
// has no credit maximum configured; the remaining fields are then zero.
type CreditsDTO struct {
	Enabled    bool `json:"enabled"`
	Remaining  int  `json:"remaining,omitempty"`
	MaxCredits int  `json:"maxCredits,omitempty"`
	OverBudget bool `json:"overBudget,omitempty"`
	Warned     bool `json:"warned,omitempty"`
}

// =============================================================================
// COMBINATION RULES
// =============================================================================

type CombinationsDTO struct {
	OptionID   int64   `json:"optionId"`
	Kind       string  `json:"kind"`
	RelatedIDs []int64 `json:"relatedIds"`
}

type SetCombinationsRequest struct {
	Kind       string  `json:"kind"`
	RelatedIDs []int64 `json:"relatedIds"`
}

// =============================================================================
// OPTIONS
// =============================================================================

type OptionDTO struct {
	ID          int64     `json:"id"`
	InstanceID  int64     `json:"instanceId"`
	CourseID    int64     `json:"courseId"`
	Credits     int       `json:"credits"`
	CourseStart time.Time `json:"courseStart"`
	Reconciled  bool      `json:"reconciled"`
}

func optionDTO(opt elective.BookingOption) OptionDTO {
	return OptionDTO{
		ID:          int64(opt.ID),
		InstanceID:  int64(opt.InstanceID),
		CourseID:    int64(opt.CourseID),
		Credits:     opt.Credits.Int(),
		CourseStart: opt.CourseStart,
		Reconciled:  opt.Reconciled,
	}
}

// =============================================================================
// RECONCILIATION RUNS
// =============================================================================

type RunDTO struct {
	ID                string    `json:"id"`
	StartedAt         time.Time `json:"startedAt"`
	CompletedAt       time.Time `json:"completedAt"`
	OptionsScanned    int       `json:"optionsScanned"`
	OptionsReconciled int       `json:"optionsReconciled"`
	UsersEnrolled     int       `json:"usersEnrolled"`
	UsersSkipped      int       `json:"usersSkipped"`
	UsersFailed       int       `json:"usersFailed"`
	OptionsSkipped    int       `json:"optionsSkipped"`
	Error             string    `json:"error,omitempty"`
}

func runDTO(run elective.RunReport) RunDTO {
	return RunDTO{
		ID:                run.ID,
		StartedAt:         run.StartedAt,
		CompletedAt:       run.CompletedAt,
		OptionsScanned:    run.OptionsScanned,
		OptionsReconciled: run.OptionsReconciled,
		UsersEnrolled:     run.UsersEnrolled,
		UsersSkipped:      run.UsersSkipped,
		UsersFailed:       run.UsersFailed,
		OptionsSkipped:    run.OptionsSkipped,
		Error:             run.Error,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorDTO struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
