/*
credits.go - Per-user credit ledger

PURPOSE:
  Computes a user's committed ("booked") and staged ("selected") credit
  totals for a booking instance and derives the remaining budget.

BOOKED vs SELECTED:
  Booked credits come from BookingAnswers - bookings the user has actually
  committed. Selected credits come from the staging area - options picked
  but not yet committed. Both count against the budget so a user cannot
  overshoot by staging.

STALE SELECTIONS:
  A staged option id that no longer resolves indicates stale selection
  state. The sum short-circuits with a StaleReferenceError rather than
  silently skipping: a silently wrong budget is worse than a visible one.

SEE ALSO:
  - selection.go: The staging area feeding SelectedCredits
  - policy.go: CreditsMessage, the user-facing budget summary
*/
package elective

import "context"

// Ledger derives credit totals. It holds no state of its own.
type Ledger struct {
	options    OptionStore
	answers    AnswerStore
	selections *SelectionStore
}

func NewLedger(options OptionStore, answers AnswerStore, selections *SelectionStore) *Ledger {
	return &Ledger{options: options, answers: answers, selections: selections}
}

// BookedCredits sums option credits over the user's committed bookings
// within the instance. Zero when the user has no answers there.
func (l *Ledger) BookedCredits(ctx context.Context, instanceID InstanceID, userID UserID) (Credits, error) {
	answers, err := l.answers.AnswersForUser(ctx, userID)
	if err != nil {
		return ZeroCredits(), err
	}

	total := ZeroCredits()
	for _, ans := range answers {
		opt, err := l.options.Option(ctx, ans.OptionID)
		if err != nil {
			if IsNotFound(err) {
				return ZeroCredits(), &StaleReferenceError{UserID: userID, InstanceID: instanceID, OptionID: ans.OptionID}
			}
			return ZeroCredits(), err
		}
		if opt.InstanceID != instanceID {
			continue
		}
		total = total.Add(opt.Credits)
	}
	return total, nil
}

// SelectedCredits sums option credits over the user's staged selection for
// the instance. A staged id that no longer resolves short-circuits with a
// StaleReferenceError.
func (l *Ledger) SelectedCredits(ctx context.Context, instanceID InstanceID, userID UserID) (Credits, error) {
	selected, err := l.selections.Selected(ctx, userID, instanceID)
	if err != nil {
		return ZeroCredits(), err
	}

	total := ZeroCredits()
	for _, id := range selected {
		opt, err := l.options.Option(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				return ZeroCredits(), &StaleReferenceError{UserID: userID, InstanceID: instanceID, OptionID: id}
			}
			return ZeroCredits(), err
		}
		total = total.Add(opt.Credits)
	}
	return total, nil
}

// CreditsLeft derives the remaining budget:
//
//	maxCredits - (bookedCredits + selectedCredits)
//
// The result may be negative; callers present that as over-budget, not as
// available credit. Callers must check Instance.HasCreditLimit first - with
// no configured maximum the budget feature is disabled and this value is
// meaningless.
func (l *Ledger) CreditsLeft(ctx context.Context, inst *Instance, userID UserID) (Credits, error) {
	booked, err := l.BookedCredits(ctx, inst.ID, userID)
	if err != nil {
		return ZeroCredits(), err
	}
	selected, err := l.SelectedCredits(ctx, inst.ID, userID)
	if err != nil {
		return ZeroCredits(), err
	}
	return inst.MaxCredits.Sub(booked.Add(selected)), nil
}
