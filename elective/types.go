/*
Package elective provides the core course-booking elective engine.

PURPOSE:
  This package contains the domain types and algorithms for elective
  bookings: learners stage a limited set of course options under a shared
  per-user credit budget and pairwise combination constraints, and a
  periodic reconciler later enrols booked users into their target courses
  once eligibility gates (course started, prerequisites completed) pass.

KEY CONCEPTS IN THIS FILE (types.go):
  - Credits: A whole-number credit quantity (decimal-backed arithmetic)
  - BookingOption: One enrollable course offering within an instance
  - CombinationRule: A must-combine/cannot-combine constraint between options
  - BookingAnswer: A committed booking linking a user to an option
  - Instance: Per-booking-instance configuration (credit max, ordering)

DESIGN PRINCIPLES:
  1. Explicit dependencies: every operation takes its store handles and
     identifiers as parameters; no ambient globals.
  2. Typed entities: no dynamic records; shape mismatches are errors.
  3. Graceful config degradation: missing configuration means a feature
     is disabled, never an error surfaced to the learner.

SEE ALSO:
  - combinations.go: Combination rule reconciliation
  - credits.go: Booked/selected credit sums and remaining budget
  - selection.go: Staged (uncommitted) selections
  - policy.go: Elective predicates and the enrolment ordering gate
  - reconcile.go: The scheduled enrolment reconciler
*/
package elective

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OptionID int64
type InstanceID int64
type UserID int64
type CourseID int64
type RuleID int64

// =============================================================================
// CREDITS - Whole-number credit quantity
// =============================================================================

// Credits is a credit amount. Values are whole numbers in practice, but
// arithmetic goes through decimal.Decimal so sums and budgets never pick up
// floating-point noise.
type Credits struct {
	Value decimal.Decimal
}

func NewCredits(v int) Credits {
	return Credits{Value: decimal.NewFromInt(int64(v))}
}

func ZeroCredits() Credits {
	return Credits{Value: decimal.Zero}
}

func (c Credits) Add(o Credits) Credits { return Credits{Value: c.Value.Add(o.Value)} }
func (c Credits) Sub(o Credits) Credits { return Credits{Value: c.Value.Sub(o.Value)} }
func (c Credits) IsZero() bool          { return c.Value.IsZero() }
func (c Credits) IsNegative() bool      { return c.Value.IsNegative() }
func (c Credits) Equal(o Credits) bool  { return c.Value.Equal(o.Value) }
func (c Credits) Int() int              { return int(c.Value.IntPart()) }
func (c Credits) String() string        { return c.Value.String() }

// =============================================================================
// COMBINATION RULES
// =============================================================================

// CombineKind discriminates the two pairwise constraints between options.
type CombineKind string

const (
	// CombineMust declares that booking OptionID requires booking OtherOptionID.
	CombineMust CombineKind = "must-combine"

	// CombineForbidden declares that OptionID and OtherOptionID are mutually
	// exclusive.
	CombineForbidden CombineKind = "cannot-combine"
)

func (k CombineKind) Valid() bool {
	return k == CombineMust || k == CombineForbidden
}

// CombinationRule is a directed relationship between two options.
//
// INVARIANT: at most one rule exists per (OptionID, OtherOptionID, Kind)
// triple. The Registry enforces this via set reconciliation; the raw store
// does not.
type CombinationRule struct {
	ID            RuleID
	OptionID      OptionID
	OtherOptionID OptionID
	Kind          CombineKind
}

// =============================================================================
// BOOKING ENTITIES
// =============================================================================

// BookingOption is one enrollable course offering within a booking instance.
// Created by an admin workflow outside this engine; the reconciler is the
// only writer here (the Reconciled flag), everything else reads.
type BookingOption struct {
	ID          OptionID
	InstanceID  InstanceID
	CourseID    CourseID
	Credits     Credits
	CourseStart time.Time

	// Reconciled is set once the reconciler has processed this option.
	// Elective options are never marked reconciled: new users may book them
	// after the course has started, so they are rescanned every run.
	Reconciled bool
}

// Due reports whether the option is ready for reconciliation at the given
// time: not yet reconciled and past its course start.
func (o BookingOption) Due(now time.Time) bool {
	return !o.Reconciled && o.CourseStart.Before(now)
}

// BookingAnswer is a committed booking of an option by a user, distinct from
// a staged Selection. Credits attached to answers are "booked" credits.
type BookingAnswer struct {
	ID       int64
	OptionID OptionID
	UserID   UserID
}

// User carries the fields the engine needs; identity management lives
// elsewhere.
type User struct {
	ID       UserID
	Username string
}

// =============================================================================
// INSTANCE - Per-booking-instance configuration
// =============================================================================

// EventTypeElective marks an instance whose options compete for a shared
// per-user credit budget.
const EventTypeElective = "elective"

// Instance holds the configuration of one booking instance. Zero values mean
// "feature disabled", never an error: an unset MaxCredits disables the credit
// budget, an unset EnforceOrder disables the ordering gate.
type Instance struct {
	ID        InstanceID
	Name      string
	EventType string

	// MaxCredits is the per-user credit budget. Zero means no limit enforced.
	MaxCredits Credits

	// EnforceOrder gates enrolment on completion of predecessor options.
	EnforceOrder bool

	// BanUsernames is a comma-separated list of username substrings that
	// trigger an advisory warning in the credits summary.
	BanUsernames string
}

// HasCreditLimit reports whether a per-user credit budget is configured.
func (i Instance) HasCreditLimit() bool {
	return !i.MaxCredits.IsZero()
}

// =============================================================================
// SELECTION - Staged, uncommitted choices
// =============================================================================

// Selection is the per-user staging area: for each instance, the ordered
// list of option identifiers the user has picked but not yet committed.
// Persisted as a single opaque blob per user (see selection.go).
type Selection map[InstanceID][]OptionID
