/*
handlers_test.go - HTTP-level tests for the API

Each test runs real requests through the full router against a
memory-backed handler, asserting status codes and JSON payloads.
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus/elective-engine/api"
	"github.com/campus/elective-engine/elective"
	"github.com/campus/elective-engine/elective/store"
)

// newServer wires a full engine over one memory store and returns the
// store for seeding plus a running test server.
func newServer(t *testing.T) (*store.Memory, *httptest.Server) {
	t.Helper()

	mem := store.NewMemory()
	selections := elective.NewSelectionStore(mem)
	ledger := elective.NewLedger(mem, mem, selections)
	engine := elective.NewEngine(ledger, mem, mem, mem, mem, mem)

	h := &api.Handler{
		Selections: selections,
		Registry:   elective.NewRegistry(mem),
		Engine:     engine,
		Reconciler: elective.NewReconciler(mem, mem, mem, engine, mem, mem, zerolog.Nop()),
		Options:    mem,
		Instances:  mem,
		Runs:       mem,
		Users:      mem,
		Log:        zerolog.Nop(),
	}

	srv := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(srv.Close)
	return mem, srv
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestSelectionEndpoints_ToggleGetReset(t *testing.T) {
	_, srv := newServer(t)
	base := srv.URL + "/api/users/7/instances/1/selection"

	var sel api.SelectionDTO
	resp := doJSON(t, http.MethodPost, base+"/toggle", api.ToggleRequest{OptionID: 11}, &sel)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int64{11}, sel.OptionIDs)

	resp = doJSON(t, http.MethodPost, base+"/toggle", api.ToggleRequest{OptionID: 12}, &sel)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int64{11, 12}, sel.OptionIDs)

	// Toggling again removes.
	resp = doJSON(t, http.MethodPost, base+"/toggle", api.ToggleRequest{OptionID: 11}, &sel)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int64{12}, sel.OptionIDs)

	resp = doJSON(t, http.MethodGet, base, nil, &sel)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int64{12}, sel.OptionIDs)

	resp = doJSON(t, http.MethodDelete, base, nil, &sel)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, sel.OptionIDs)
}

func TestToggleSelection_RejectsBadBody(t *testing.T) {
	_, srv := newServer(t)
	base := srv.URL + "/api/users/7/instances/1/selection/toggle"

	resp := doJSON(t, http.MethodPost, base, api.ToggleRequest{OptionID: 0}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, base, bytes.NewBufferString("not json"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestGetCredits_ReportsBudget(t *testing.T) {
	mem, srv := newServer(t)

	mem.PutInstance(elective.Instance{
		ID:         1,
		EventType:  elective.EventTypeElective,
		MaxCredits: elective.NewCredits(10),
	})
	mem.PutOption(elective.BookingOption{
		ID: 11, InstanceID: 1, CourseID: 1011,
		Credits:     elective.NewCredits(4),
		CourseStart: time.Now().Add(24 * time.Hour),
	})
	mem.PutOption(elective.BookingOption{
		ID: 12, InstanceID: 1, CourseID: 1012,
		Credits:     elective.NewCredits(3),
		CourseStart: time.Now().Add(24 * time.Hour),
	})
	mem.PutAnswer(11, 7)

	var sel api.SelectionDTO
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/users/7/instances/1/selection/toggle", api.ToggleRequest{OptionID: 12}, &sel)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var credits api.CreditsDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/users/7/instances/1/credits", nil, &credits)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, credits.Enabled)
	assert.Equal(t, 3, credits.Remaining)
	assert.Equal(t, 10, credits.MaxCredits)
	assert.False(t, credits.OverBudget)
}

func TestGetCredits_NoLimitConfigured_Disabled(t *testing.T) {
	mem, srv := newServer(t)
	mem.PutInstance(elective.Instance{ID: 1, EventType: elective.EventTypeElective})

	var credits api.CreditsDTO
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/users/7/instances/1/credits", nil, &credits)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, credits.Enabled)
	assert.Zero(t, credits.Remaining)
}

func TestGetCredits_UnknownInstance_NotFound(t *testing.T) {
	_, srv := newServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/users/7/instances/99/credits", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetCredits_StaleSelection_Conflict(t *testing.T) {
	mem, srv := newServer(t)
	mem.PutInstance(elective.Instance{ID: 1, MaxCredits: elective.NewCredits(10)})
	mem.PutOption(elective.BookingOption{
		ID: 11, InstanceID: 1, CourseID: 1011,
		Credits:     elective.NewCredits(4),
		CourseStart: time.Now().Add(24 * time.Hour),
	})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/users/7/instances/1/selection/toggle", api.ToggleRequest{OptionID: 11}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mem.DeleteOption(11)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/users/7/instances/1/credits", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCombinationEndpoints_SetAndGet(t *testing.T) {
	_, srv := newServer(t)
	base := srv.URL + "/api/options/5/combinations"

	resp := doJSON(t, http.MethodPut, base, api.SetCombinationsRequest{
		Kind:       string(elective.CombineMust),
		RelatedIDs: []int64{7, 9},
	}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var dto api.CombinationsDTO
	resp = doJSON(t, http.MethodGet, base+"?kind="+string(elective.CombineMust), nil, &dto)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.ElementsMatch(t, []int64{7, 9}, dto.RelatedIDs)

	// Replace with a smaller set.
	resp = doJSON(t, http.MethodPut, base, api.SetCombinationsRequest{
		Kind:       string(elective.CombineMust),
		RelatedIDs: []int64{9},
	}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, base+"?kind="+string(elective.CombineMust), nil, &dto)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int64{9}, dto.RelatedIDs)
}

func TestSetCombinations_InvalidKind_BadRequest(t *testing.T) {
	_, srv := newServer(t)
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/options/5/combinations", api.SetCombinationsRequest{
		Kind:       "sometimes",
		RelatedIDs: []int64{7},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReconcileEndpoints_TriggerAndListRuns(t *testing.T) {
	mem, srv := newServer(t)

	mem.PutInstance(elective.Instance{ID: 1, EventType: "standard"})
	mem.PutOption(elective.BookingOption{
		ID: 11, InstanceID: 1, CourseID: 1011,
		Credits:     elective.NewCredits(1),
		CourseStart: time.Now().Add(-time.Hour),
	})
	mem.PutAnswer(11, 7)

	var due []api.OptionDTO
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/options/due", nil, &due)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, due, 1)
	assert.Equal(t, int64(11), due[0].ID)

	var run api.RunDTO
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/admin/reconcile", nil, &run)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, run.UsersEnrolled)
	assert.Equal(t, 1, run.OptionsReconciled)
	assert.Equal(t, 1, mem.EnrolCount(7, 1011))

	var runs []api.RunDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/reconciliation/runs", nil, &runs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestInvalidPathParams_BadRequest(t *testing.T) {
	_, srv := newServer(t)
	for _, url := range []string{
		srv.URL + "/api/users/abc/instances/1/selection",
		srv.URL + "/api/users/7/instances/0/selection",
		srv.URL + "/api/options/-1/combinations?kind=" + string(elective.CombineMust),
	} {
		resp := doJSON(t, http.MethodGet, url, nil, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, url)
	}
}
