/*
store.go - Persistence and collaborator interfaces

PURPOSE:
  Defines the boundary between the elective engine and everything it does
  not own: record storage, the per-user preference blob, the enrolment
  subsystem, the completion oracle, and the precedence declaration.
  Different implementations can use SQLite, PostgreSQL, or in-memory
  storage.

KEY INTERFACES:
  OptionStore:        Booking option reads + the reconciled-flag batch write
  InstanceStore:      Booking instance configuration reads
  AnswerStore:        Committed booking reads
  RuleStore/TxRuleStore: Combination rule CRUD, transactional
  PreferenceStore:    Opaque per-user string blob (selection staging)
  Enroller:           Idempotent "enrol user into course"
  CompletionOracle:   Course completion lookups for the ordering gate
  PrecedenceProvider: Which options must precede an option
  RunStore:           Reconciliation run audit records

TRANSACTIONAL RULE RECONCILIATION:
  SetCombinations applies a delta (inserts + deletes) that must be
  all-or-nothing: a partially applied delta leaves an inconsistent rule
  set. TxRuleStore.WithTx provides that scope with rollback on error.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - elective/store/memory.go: In-memory for testing and dev

SEE ALSO:
  - combinations.go, credits.go, selection.go, policy.go, reconcile.go
*/
package elective

import (
	"context"
	"time"
)

// =============================================================================
// RECORD STORES
// =============================================================================

// OptionStore reads booking options and carries the single mutation this
// engine performs on them: flipping the reconciled flag.
type OptionStore interface {
	// Option returns one option. Returns ErrOptionNotFound when absent.
	Option(ctx context.Context, id OptionID) (*BookingOption, error)

	// DueOptions returns every option that is not yet reconciled and whose
	// course start lies before now.
	DueOptions(ctx context.Context, now time.Time) ([]BookingOption, error)

	// MarkReconciled sets the reconciled flag on the given options in one
	// batch write. An empty slice is a no-op.
	MarkReconciled(ctx context.Context, ids []OptionID) error
}

// InstanceStore reads booking instance configuration.
type InstanceStore interface {
	// Instance returns one instance. Returns ErrInstanceNotFound when absent.
	Instance(ctx context.Context, id InstanceID) (*Instance, error)
}

// AnswerStore reads committed bookings.
type AnswerStore interface {
	// AnswersForOption returns every committed booking on an option.
	AnswersForOption(ctx context.Context, id OptionID) ([]BookingAnswer, error)

	// AnswersForUser returns every committed booking of a user, across all
	// options and instances.
	AnswersForUser(ctx context.Context, id UserID) ([]BookingAnswer, error)

	// HasAnswer reports whether the user has a committed booking on the option.
	HasAnswer(ctx context.Context, optionID OptionID, userID UserID) (bool, error)
}

// =============================================================================
// COMBINATION RULE STORE
// =============================================================================

// RuleStore is raw combination rule CRUD. Uniqueness of
// (option, other, kind) is the Registry's job, not the store's.
type RuleStore interface {
	Rules(ctx context.Context, optionID OptionID, kind CombineKind) ([]CombinationRule, error)
	InsertRule(ctx context.Context, rule CombinationRule) (RuleID, error)
	DeleteRule(ctx context.Context, id RuleID) error
}

// TxRuleStore wraps RuleStore with transaction support. If fn returns an
// error the delta is rolled back, otherwise committed.
type TxRuleStore interface {
	RuleStore
	WithTx(ctx context.Context, fn func(RuleStore) error) error
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// PreferenceStore is the per-user key-value blob store backing the selection
// staging area. Get returns the empty string when the key is unset.
type PreferenceStore interface {
	Get(ctx context.Context, userID UserID, key string) (string, error)
	Set(ctx context.Context, userID UserID, key, value string) error
}

// Enroller enrols a user into a course. The operation is idempotent: calling
// it again for an already-enrolled pair succeeds without effect.
type Enroller interface {
	Enrol(ctx context.Context, userID UserID, courseID CourseID) error
}

// CompletionOracle answers whether a user has completed a course.
type CompletionOracle interface {
	IsComplete(ctx context.Context, userID UserID, courseID CourseID) (bool, error)
}

// PrecedenceProvider declares which options must precede an option. How
// precedence is declared is external input this engine does not own; the
// provider is the seam it arrives through.
type PrecedenceProvider interface {
	Predecessors(ctx context.Context, id OptionID) ([]OptionID, error)
}

// =============================================================================
// RUN AUDIT
// =============================================================================

// RunStore persists reconciliation run records for operator visibility.
type RunStore interface {
	SaveRun(ctx context.Context, run RunReport) error
	Runs(ctx context.Context, limit int) ([]RunReport, error)
}
