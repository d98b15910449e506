package elective_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus/elective-engine/elective"
	"github.com/campus/elective-engine/elective/store"
)

func TestToggle_IsItsOwnInverse(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	selections := elective.NewSelectionStore(mem)

	ids, err := selections.Toggle(ctx, 7, 1, 11)
	require.NoError(t, err)
	assert.Equal(t, []elective.OptionID{11}, ids)

	ids, err = selections.Toggle(ctx, 7, 1, 11)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestToggle_PreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	selections := elective.NewSelectionStore(store.NewMemory())

	for _, id := range []elective.OptionID{11, 13, 12} {
		_, err := selections.Toggle(ctx, 7, 1, id)
		require.NoError(t, err)
	}
	_, err := selections.Toggle(ctx, 7, 1, 13)
	require.NoError(t, err)

	ids, err := selections.Selected(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, []elective.OptionID{11, 12}, ids)
}

func TestSelected_AbsentBlob_Empty(t *testing.T) {
	selections := elective.NewSelectionStore(store.NewMemory())
	ids, err := selections.Selected(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSelected_MalformedBlob_TreatedAsEmpty(t *testing.T) {
	// Malformed persisted state decodes as an empty selection, never an
	// error, and self-heals on the next write.

	ctx := context.Background()
	mem := store.NewMemory()
	selections := elective.NewSelectionStore(mem)

	for _, blob := range []string{
		"not json at all",
		`{"1": "not-a-list"}`,
		`{"zero": [1,2]}`,
		`[1,2,3]`,
	} {
		require.NoError(t, mem.Set(ctx, 7, elective.SelectionKey, blob))
		ids, err := selections.Selected(ctx, 7, 1)
		require.NoError(t, err, "blob %q", blob)
		assert.Empty(t, ids, "blob %q", blob)
	}

	// Next toggle rewrites a valid blob.
	ids, err := selections.Toggle(ctx, 7, 1, 11)
	require.NoError(t, err)
	assert.Equal(t, []elective.OptionID{11}, ids)

	ids, err = selections.Selected(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, []elective.OptionID{11}, ids)
}

func TestReset_ClearsOnlyTheInstance(t *testing.T) {
	ctx := context.Background()
	selections := elective.NewSelectionStore(store.NewMemory())

	_, err := selections.Toggle(ctx, 7, 1, 11)
	require.NoError(t, err)
	_, err = selections.Toggle(ctx, 7, 2, 21)
	require.NoError(t, err)

	require.NoError(t, selections.Reset(ctx, 7, 1))

	ids, err := selections.Selected(ctx, 7, 1)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = selections.Selected(ctx, 7, 2)
	require.NoError(t, err)
	assert.Equal(t, []elective.OptionID{21}, ids)
}

func TestSelections_IndependentPerUser(t *testing.T) {
	ctx := context.Background()
	selections := elective.NewSelectionStore(store.NewMemory())

	_, err := selections.Toggle(ctx, 7, 1, 11)
	require.NoError(t, err)

	ids, err := selections.Selected(ctx, 8, 1)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
