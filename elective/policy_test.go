package elective_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus/elective-engine/elective"
	"github.com/campus/elective-engine/elective/store"
)

// newEngine wires the full policy engine over one memory store.
func newEngine(mem *store.Memory) *elective.Engine {
	ledger := elective.NewLedger(mem, mem, elective.NewSelectionStore(mem))
	return elective.NewEngine(ledger, mem, mem, mem, mem, mem)
}

func TestIsElective(t *testing.T) {
	engine := newEngine(store.NewMemory())

	assert.True(t, engine.IsElective(&elective.Instance{EventType: elective.EventTypeElective}))
	assert.False(t, engine.IsElective(&elective.Instance{EventType: "standard"}))
	assert.False(t, engine.IsElective(&elective.Instance{}))
	assert.False(t, engine.IsElective(nil))
}

func TestCreditsMessage_NoLimit_ReturnsNothing(t *testing.T) {
	// No configured credit maximum means the feature is disabled,
	// regardless of what the user has selected or booked.

	ctx := context.Background()
	mem := store.NewMemory()
	engine := newEngine(mem)

	inst := elective.Instance{ID: 1, EventType: elective.EventTypeElective}
	mem.PutInstance(inst)
	mem.PutOption(option(11, 1, 4))
	mem.PutAnswer(11, 7)

	summary, err := engine.CreditsMessage(ctx, &inst, &elective.User{ID: 7, Username: "alice"})
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestCreditsMessage_ReportsRemainingAndMax(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	engine := newEngine(mem)

	inst := elective.Instance{ID: 1, MaxCredits: elective.NewCredits(10)}
	mem.PutInstance(inst)
	mem.PutOption(option(11, 1, 4))
	mem.PutAnswer(11, 7)

	summary, err := engine.CreditsMessage(ctx, &inst, &elective.User{ID: 7, Username: "alice"})
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 6, summary.Remaining.Int())
	assert.Equal(t, 10, summary.MaxCredits.Int())
	assert.False(t, summary.OverBudget())
	assert.False(t, summary.Warned)
}

func TestCreditsMessage_BanListWarning(t *testing.T) {
	// The ban list is comma-separated, entries trimmed, matched as a
	// case-sensitive substring of the username.

	ctx := context.Background()
	mem := store.NewMemory()
	engine := newEngine(mem)

	inst := elective.Instance{
		ID:           1,
		MaxCredits:   elective.NewCredits(10),
		BanUsernames: "guest, demo",
	}
	mem.PutInstance(inst)

	cases := []struct {
		username string
		warned   bool
	}{
		{"guest-123", true},
		{"my_demo_account", true},
		{"Guest-123", false}, // case-sensitive
		{"alice", false},
	}
	for _, tc := range cases {
		summary, err := engine.CreditsMessage(ctx, &inst, &elective.User{ID: 7, Username: tc.username})
		require.NoError(t, err)
		require.NotNil(t, summary)
		assert.Equal(t, tc.warned, summary.Warned, "username %q", tc.username)
	}
}

func TestAllowedToEnrol_OrderNotEnforced_AlwaysTrue(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	engine := newEngine(mem)

	mem.PutInstance(elective.Instance{ID: 1, EventType: elective.EventTypeElective})
	opt := option(12, 1, 3)
	mem.PutOption(opt)
	// A declared predecessor is irrelevant while EnforceOrder is off.
	mem.SetPredecessors(12, []elective.OptionID{11})

	ok, err := engine.AllowedToEnrol(ctx, &opt, 7)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllowedToEnrol_PredecessorNotBooked_False(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	engine := newEngine(mem)

	mem.PutInstance(elective.Instance{ID: 1, EventType: elective.EventTypeElective, EnforceOrder: true})
	mem.PutOption(option(11, 1, 3))
	opt := option(12, 1, 3)
	mem.PutOption(opt)
	mem.SetPredecessors(12, []elective.OptionID{11})

	ok, err := engine.AllowedToEnrol(ctx, &opt, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllowedToEnrol_PredecessorBookedButIncomplete_False(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	engine := newEngine(mem)

	mem.PutInstance(elective.Instance{ID: 1, EventType: elective.EventTypeElective, EnforceOrder: true})
	pred := option(11, 1, 3)
	mem.PutOption(pred)
	opt := option(12, 1, 3)
	mem.PutOption(opt)
	mem.SetPredecessors(12, []elective.OptionID{11})
	mem.PutAnswer(11, 7)

	ok, err := engine.AllowedToEnrol(ctx, &opt, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllowedToEnrol_AllGatesPass_True(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	engine := newEngine(mem)

	mem.PutInstance(elective.Instance{ID: 1, EventType: elective.EventTypeElective, EnforceOrder: true})
	pred := option(11, 1, 3)
	mem.PutOption(pred)
	opt := option(12, 1, 3)
	mem.PutOption(opt)
	mem.SetPredecessors(12, []elective.OptionID{11})
	mem.PutAnswer(11, 7)
	mem.SetComplete(7, pred.CourseID)

	ok, err := engine.AllowedToEnrol(ctx, &opt, 7)
	require.NoError(t, err)
	assert.True(t, ok)
}
