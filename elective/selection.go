/*
selection.go - Staged selection store

PURPOSE:
  Tracks, per user and per booking instance, the options currently
  selected but not yet committed. The backing store is a single opaque
  per-user preference blob: JSON mapping instance id -> ordered list of
  option ids. The preference collaborator has no partial-update primitive,
  so every toggle re-encodes and rewrites the whole blob.

MALFORMED BLOBS:
  A blob that fails to decode, or decodes to the wrong shape, is treated
  as an empty selection - never an error. The next write re-encodes a
  valid blob, so the store self-heals.

CONCURRENCY:
  Read-modify-write over one shared blob races under concurrent toggles
  for the same user: two decoders snapshot the same state and the second
  write wins. Toggle and Reset therefore serialize per user through a
  striped lock set. That protects a single process; cross-process callers
  need locking in the preference store itself.

SEE ALSO:
  - credits.go: SelectedCredits reads the staged list
  - store.go: PreferenceStore interface
*/
package elective

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
)

// SelectionKey is the preference key holding a user's selection blob.
const SelectionKey = "elective_selections"

const selectionLockStripes = 64

// SelectionStore stages uncommitted option choices per (user, instance).
type SelectionStore struct {
	prefs PreferenceStore
	locks [selectionLockStripes]sync.Mutex
}

func NewSelectionStore(prefs PreferenceStore) *SelectionStore {
	return &SelectionStore{prefs: prefs}
}

func (s *SelectionStore) lock(userID UserID) *sync.Mutex {
	return &s.locks[uint64(userID)%selectionLockStripes]
}

// Selected returns the ordered staged option ids for (user, instance).
// Absent or malformed state decodes as an empty sequence.
func (s *SelectionStore) Selected(ctx context.Context, userID UserID, instanceID InstanceID) ([]OptionID, error) {
	sel, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	list := sel[instanceID]
	out := make([]OptionID, len(list))
	copy(out, list)
	return out, nil
}

// Toggle flips the presence of optionID in the instance's staged list:
// absent appends, present removes exactly one occurrence. Returns the list
// after the toggle.
func (s *SelectionStore) Toggle(ctx context.Context, userID UserID, instanceID InstanceID, optionID OptionID) ([]OptionID, error) {
	mu := s.lock(userID)
	mu.Lock()
	defer mu.Unlock()

	sel, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	list := sel[instanceID]
	found := -1
	for i, id := range list {
		if id == optionID {
			found = i
			break
		}
	}
	if found >= 0 {
		list = append(list[:found], list[found+1:]...)
	} else {
		list = append(list, optionID)
	}
	sel[instanceID] = list

	if err := s.save(ctx, userID, sel); err != nil {
		return nil, err
	}
	out := make([]OptionID, len(list))
	copy(out, list)
	return out, nil
}

// Reset clears the staged list for (user, instance).
func (s *SelectionStore) Reset(ctx context.Context, userID UserID, instanceID InstanceID) error {
	mu := s.lock(userID)
	mu.Lock()
	defer mu.Unlock()

	sel, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	delete(sel, instanceID)
	return s.save(ctx, userID, sel)
}

// =============================================================================
// BLOB CODEC
// =============================================================================
// Wire shape is JSON: {"<instanceID>": [optionID, ...], ...}. JSON object
// keys are strings, so instance ids go through strconv. Any shape mismatch
// means a malformed blob, decoded as empty.

func (s *SelectionStore) load(ctx context.Context, userID UserID) (Selection, error) {
	raw, err := s.prefs.Get(ctx, userID, SelectionKey)
	if err != nil {
		return nil, err
	}
	return decodeSelection(raw), nil
}

func (s *SelectionStore) save(ctx context.Context, userID UserID, sel Selection) error {
	raw, err := encodeSelection(sel)
	if err != nil {
		return err
	}
	return s.prefs.Set(ctx, userID, SelectionKey, raw)
}

func decodeSelection(raw string) Selection {
	sel := make(Selection)
	if raw == "" {
		return sel
	}
	var wire map[string][]int64
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return make(Selection)
	}
	for key, list := range wire {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 {
			// Malformed key taints the whole blob.
			return make(Selection)
		}
		options := make([]OptionID, len(list))
		for i, v := range list {
			options[i] = OptionID(v)
		}
		sel[InstanceID(id)] = options
	}
	return sel
}

func encodeSelection(sel Selection) (string, error) {
	wire := make(map[string][]int64, len(sel))
	for instanceID, list := range sel {
		ids := make([]int64, len(list))
		for i, v := range list {
			ids[i] = int64(v)
		}
		wire[strconv.FormatInt(int64(instanceID), 10)] = ids
	}
	raw, err := json.Marshal(wire)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
