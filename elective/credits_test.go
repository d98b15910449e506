package elective_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus/elective-engine/elective"
	"github.com/campus/elective-engine/elective/store"
)

// newLedger wires a ledger over a fresh memory store.
func newLedger(mem *store.Memory) *elective.Ledger {
	return elective.NewLedger(mem, mem, elective.NewSelectionStore(mem))
}

func option(id elective.OptionID, instanceID elective.InstanceID, credits int) elective.BookingOption {
	return elective.BookingOption{
		ID:          id,
		InstanceID:  instanceID,
		CourseID:    elective.CourseID(id + 1000),
		Credits:     elective.NewCredits(credits),
		CourseStart: time.Now().Add(24 * time.Hour),
	}
}

func TestCreditsLeft_BookedAndSelectedCountAgainstBudget(t *testing.T) {
	// GIVEN: instance max 10, one booked option worth 4, one staged worth 3
	// THEN: creditsLeft = 10 - (4 + 3) = 3

	ctx := context.Background()
	mem := store.NewMemory()
	selections := elective.NewSelectionStore(mem)
	ledger := elective.NewLedger(mem, mem, selections)

	inst := elective.Instance{ID: 1, EventType: elective.EventTypeElective, MaxCredits: elective.NewCredits(10)}
	mem.PutInstance(inst)
	mem.PutOption(option(11, 1, 4))
	mem.PutOption(option(12, 1, 3))
	mem.PutAnswer(11, 7)
	_, err := selections.Toggle(ctx, 7, 1, 12)
	require.NoError(t, err)

	left, err := ledger.CreditsLeft(ctx, &inst, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, left.Int())
}

func TestBookedCredits_NoAnswers_Zero(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	ledger := newLedger(mem)

	booked, err := ledger.BookedCredits(ctx, 1, 7)
	require.NoError(t, err)
	assert.True(t, booked.IsZero())
}

func TestBookedCredits_OtherInstancesExcluded(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	ledger := newLedger(mem)

	mem.PutOption(option(11, 1, 4))
	mem.PutOption(option(21, 2, 9))
	mem.PutAnswer(11, 7)
	mem.PutAnswer(21, 7)

	booked, err := ledger.BookedCredits(ctx, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, 4, booked.Int())
}

func TestSelectedCredits_EmptySelection_Zero(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	ledger := newLedger(mem)

	selected, err := ledger.SelectedCredits(ctx, 1, 7)
	require.NoError(t, err)
	assert.True(t, selected.IsZero())
}

func TestSelectedCredits_StaleReference_ShortCircuits(t *testing.T) {
	// A staged option that no longer resolves must surface as a
	// distinguishable error, never be silently skipped.

	ctx := context.Background()
	mem := store.NewMemory()
	selections := elective.NewSelectionStore(mem)
	ledger := elective.NewLedger(mem, mem, selections)

	mem.PutOption(option(11, 1, 4))
	_, err := selections.Toggle(ctx, 7, 1, 11)
	require.NoError(t, err)
	mem.DeleteOption(11)

	_, err = ledger.SelectedCredits(ctx, 1, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, elective.ErrStaleReference)

	var stale *elective.StaleReferenceError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, elective.OptionID(11), stale.OptionID)
}

func TestCreditsLeft_CanGoNegative(t *testing.T) {
	// Over-budget state is reported as a negative remainder, not clamped.

	ctx := context.Background()
	mem := store.NewMemory()
	ledger := newLedger(mem)

	inst := elective.Instance{ID: 1, MaxCredits: elective.NewCredits(2)}
	mem.PutInstance(inst)
	mem.PutOption(option(11, 1, 5))
	mem.PutAnswer(11, 7)

	left, err := ledger.CreditsLeft(ctx, &inst, 7)
	require.NoError(t, err)
	assert.True(t, left.IsNegative())
	assert.Equal(t, -3, left.Int())
}
