/*
combinations.go - Combination rule registry

PURPOSE:
  Stores and queries the declared pairwise relationships between booking
  options: "must be combined with" and "cannot be combined with".

RECONCILIATION, NOT INSERTION:
  An admin edits an option's combination list as a whole, so writes are
  desired-state reconciliation: after SetCombinations the stored rule set
  for (option, kind) exactly equals the desired set. Only deltas touch the
  store - existing rules that survive are kept untouched, missing ones are
  inserted, leftovers deleted.

ATOMICITY:
  The delta is applied inside a single store transaction. A half-applied
  delta (deletes done, inserts failed) would leave an inconsistent rule
  set, so the whole pass commits or rolls back as one.

SEE ALSO:
  - store.go: TxRuleStore interface
  - policy.go: Consumers of the declared rules
*/
package elective

import "context"

// Registry reconciles and queries combination rules.
type Registry struct {
	rules TxRuleStore
}

func NewRegistry(rules TxRuleStore) *Registry {
	return &Registry{rules: rules}
}

// SetCombinations replaces the rule set for (optionID, kind) with the
// desired related options. Duplicates in related are ignored; a zero
// optionID or related id never produces a rule. Calling it twice with the
// same set performs no writes on the second call.
func (r *Registry) SetCombinations(ctx context.Context, optionID OptionID, related []OptionID, kind CombineKind) error {
	if !kind.Valid() {
		return ErrInvalidCombineKind
	}
	if optionID == 0 {
		// No relation can involve an absent option.
		return nil
	}

	desired := make(map[OptionID]bool, len(related))
	for _, id := range related {
		if id == 0 {
			continue
		}
		desired[id] = true
	}

	return r.rules.WithTx(ctx, func(s RuleStore) error {
		existing, err := s.Rules(ctx, optionID, kind)
		if err != nil {
			return err
		}

		keep := make(map[RuleID]bool, len(existing))
		present := make(map[OptionID]RuleID, len(existing))
		for _, rule := range existing {
			present[rule.OtherOptionID] = rule.ID
		}

		for other := range desired {
			if id, ok := present[other]; ok {
				keep[id] = true
				continue
			}
			_, err := s.InsertRule(ctx, CombinationRule{
				OptionID:      optionID,
				OtherOptionID: other,
				Kind:          kind,
			})
			if err != nil {
				return err
			}
		}

		// Anything not re-declared is deleted. Duplicate rows for the same
		// pair are never both marked keep, so this also repairs them.
		for _, rule := range existing {
			if !keep[rule.ID] {
				if err := s.DeleteRule(ctx, rule.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// GetCombinations returns the related option ids for (optionID, kind).
// An empty result is an empty slice, never an error.
func (r *Registry) GetCombinations(ctx context.Context, optionID OptionID, kind CombineKind) ([]OptionID, error) {
	if !kind.Valid() {
		return nil, ErrInvalidCombineKind
	}
	if optionID == 0 {
		return []OptionID{}, nil
	}
	rules, err := r.rules.Rules(ctx, optionID, kind)
	if err != nil {
		return nil, err
	}
	out := make([]OptionID, 0, len(rules))
	for _, rule := range rules {
		out = append(out, rule.OtherOptionID)
	}
	return out, nil
}
