/*
policy.go - Elective policy engine

PURPOSE:
  The decision layer: which instances are elective, what the user-facing
  credit summary says, and whether a booked user may actually be enrolled
  yet (the ordering gate consulted by the reconciler).

CONFIG DEGRADATION:
  Every configuration read here degrades to "feature disabled" when the
  value is missing: no MaxCredits means no credit summary, EnforceOrder
  off means the ordering gate always passes. Misconfiguration never
  surfaces as an error to the learner.

ORDERING GATE:
  With EnforceOrder on, a user is allowed into an option only once every
  predecessor option (per the precedence collaborator) is both booked by
  the user and completed. Precedence declaration is external input this
  engine does not own.

SEE ALSO:
  - credits.go: The ledger backing CreditsMessage
  - reconcile.go: The reconciler consulting AllowedToEnrol
*/
package elective

import (
	"context"
	"strings"
)

// Engine evaluates elective policy. Stateless; all lookups go through the
// injected collaborators.
type Engine struct {
	ledger     *Ledger
	instances  InstanceStore
	answers    AnswerStore
	options    OptionStore
	precedence PrecedenceProvider
	completion CompletionOracle
}

func NewEngine(
	ledger *Ledger,
	instances InstanceStore,
	answers AnswerStore,
	options OptionStore,
	precedence PrecedenceProvider,
	completion CompletionOracle,
) *Engine {
	return &Engine{
		ledger:     ledger,
		instances:  instances,
		answers:    answers,
		options:    options,
		precedence: precedence,
		completion: completion,
	}
}

// IsElective reports whether the instance's options compete for a shared
// per-user credit budget. Pure predicate, no side effects.
func (e *Engine) IsElective(inst *Instance) bool {
	return inst != nil && inst.EventType == EventTypeElective
}

// CreditsSummary is the displayable budget state for one user.
type CreditsSummary struct {
	Remaining  Credits
	MaxCredits Credits

	// Warned is set when the username matched the instance's ban list.
	Warned bool
}

// OverBudget reports whether the user has staged or booked past the limit.
func (s *CreditsSummary) OverBudget() bool {
	return s.Remaining.IsNegative()
}

// CreditsMessage returns the budget summary for the user, or nil when the
// instance has no credit maximum configured (feature disabled). The ban
// list is a comma-separated set of substrings matched case-sensitively
// against the username after trimming.
func (e *Engine) CreditsMessage(ctx context.Context, inst *Instance, user *User) (*CreditsSummary, error) {
	if !inst.HasCreditLimit() {
		return nil, nil
	}

	left, err := e.ledger.CreditsLeft(ctx, inst, user.ID)
	if err != nil {
		return nil, err
	}

	summary := &CreditsSummary{Remaining: left, MaxCredits: inst.MaxCredits}
	if inst.BanUsernames != "" {
		for _, banned := range strings.Split(inst.BanUsernames, ",") {
			banned = strings.TrimSpace(banned)
			if banned != "" && strings.Contains(user.Username, banned) {
				summary.Warned = true
				break
			}
		}
	}
	return summary, nil
}

// AllowedToEnrol is the ordering gate. With the owning instance's
// EnforceOrder off it always passes. With it on, every predecessor option
// must have a committed booking by the user AND a completed course.
func (e *Engine) AllowedToEnrol(ctx context.Context, opt *BookingOption, userID UserID) (bool, error) {
	inst, err := e.instances.Instance(ctx, opt.InstanceID)
	if err != nil {
		return false, err
	}
	if !inst.EnforceOrder {
		return true, nil
	}

	preds, err := e.precedence.Predecessors(ctx, opt.ID)
	if err != nil {
		return false, err
	}
	for _, predID := range preds {
		booked, err := e.answers.HasAnswer(ctx, predID, userID)
		if err != nil {
			return false, err
		}
		if !booked {
			return false, nil
		}

		pred, err := e.options.Option(ctx, predID)
		if err != nil {
			return false, err
		}
		complete, err := e.completion.IsComplete(ctx, userID, pred.CourseID)
		if err != nil {
			return false, err
		}
		if !complete {
			return false, nil
		}
	}
	return true, nil
}
