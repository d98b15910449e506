// Package store provides in-memory implementations of the elective
// engine's store and collaborator interfaces, for testing and dev mode.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campus/elective-engine/elective"
)

// =============================================================================
// MEMORY STORE - Implements every interface in elective/store.go
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	options   map[elective.OptionID]elective.BookingOption
	instances map[elective.InstanceID]elective.Instance
	answers   []elective.BookingAnswer
	rules     map[elective.RuleID]elective.CombinationRule
	prefs     map[prefKey]string
	preceding map[elective.OptionID][]elective.OptionID
	completed map[enrolKey]bool
	users     map[elective.UserID]elective.User
	runs      []elective.RunReport

	nextRuleID   elective.RuleID
	nextAnswerID int64

	// Enrolments records every Enrol invocation in order, including
	// repeats, so tests can assert call counts.
	Enrolments []Enrolment

	// EnrolErr, when set for a user, makes Enrol fail for that user.
	EnrolErr map[elective.UserID]error

	// RuleInsertErr, when set, makes the next InsertRule fail. Used to
	// exercise transactional rollback.
	RuleInsertErr error
}

type prefKey struct {
	UserID elective.UserID
	Key    string
}

type enrolKey struct {
	UserID   elective.UserID
	CourseID elective.CourseID
}

type Enrolment struct {
	UserID   elective.UserID
	CourseID elective.CourseID
}

func NewMemory() *Memory {
	return &Memory{
		options:   make(map[elective.OptionID]elective.BookingOption),
		instances: make(map[elective.InstanceID]elective.Instance),
		rules:     make(map[elective.RuleID]elective.CombinationRule),
		prefs:     make(map[prefKey]string),
		preceding: make(map[elective.OptionID][]elective.OptionID),
		completed: make(map[enrolKey]bool),
		users:     make(map[elective.UserID]elective.User),
		EnrolErr:  make(map[elective.UserID]error),
	}
}

// =============================================================================
// SEEDING HELPERS
// =============================================================================

func (m *Memory) PutInstance(inst elective.Instance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[inst.ID] = inst
}

func (m *Memory) PutOption(opt elective.BookingOption) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.options[opt.ID] = opt
}

func (m *Memory) DeleteOption(id elective.OptionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.options, id)
}

func (m *Memory) PutAnswer(optionID elective.OptionID, userID elective.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAnswerID++
	m.answers = append(m.answers, elective.BookingAnswer{
		ID:       m.nextAnswerID,
		OptionID: optionID,
		UserID:   userID,
	})
}

func (m *Memory) SetPredecessors(id elective.OptionID, preds []elective.OptionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preceding[id] = preds
}

func (m *Memory) PutUser(user elective.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

// User resolves a user record. Unknown users still get a zero-username
// record, matching the SQLite store.
func (m *Memory) User(_ context.Context, id elective.UserID) (*elective.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if user, ok := m.users[id]; ok {
		return &user, nil
	}
	return &elective.User{ID: id}, nil
}

func (m *Memory) SetComplete(userID elective.UserID, courseID elective.CourseID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed[enrolKey{UserID: userID, CourseID: courseID}] = true
}

// =============================================================================
// OPTION STORE
// =============================================================================

func (m *Memory) Option(_ context.Context, id elective.OptionID) (*elective.BookingOption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	opt, ok := m.options[id]
	if !ok {
		return nil, elective.ErrOptionNotFound
	}
	return &opt, nil
}

func (m *Memory) DueOptions(_ context.Context, now time.Time) ([]elective.BookingOption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []elective.BookingOption
	for _, opt := range m.options {
		if opt.Due(now) {
			due = append(due, opt)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (m *Memory) MarkReconciled(_ context.Context, ids []elective.OptionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if opt, ok := m.options[id]; ok {
			opt.Reconciled = true
			m.options[id] = opt
		}
	}
	return nil
}

// =============================================================================
// INSTANCE STORE
// =============================================================================

func (m *Memory) Instance(_ context.Context, id elective.InstanceID) (*elective.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	if !ok {
		return nil, elective.ErrInstanceNotFound
	}
	return &inst, nil
}

// =============================================================================
// ANSWER STORE
// =============================================================================

func (m *Memory) AnswersForOption(_ context.Context, id elective.OptionID) ([]elective.BookingAnswer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []elective.BookingAnswer
	for _, ans := range m.answers {
		if ans.OptionID == id {
			out = append(out, ans)
		}
	}
	return out, nil
}

func (m *Memory) AnswersForUser(_ context.Context, id elective.UserID) ([]elective.BookingAnswer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []elective.BookingAnswer
	for _, ans := range m.answers {
		if ans.UserID == id {
			out = append(out, ans)
		}
	}
	return out, nil
}

func (m *Memory) HasAnswer(_ context.Context, optionID elective.OptionID, userID elective.UserID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ans := range m.answers {
		if ans.OptionID == optionID && ans.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// RULE STORE (transactional)
// =============================================================================

func (m *Memory) Rules(_ context.Context, optionID elective.OptionID, kind elective.CombineKind) ([]elective.CombinationRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rulesLocked(optionID, kind), nil
}

func (m *Memory) rulesLocked(optionID elective.OptionID, kind elective.CombineKind) []elective.CombinationRule {
	var out []elective.CombinationRule
	for _, rule := range m.rules {
		if rule.OptionID == optionID && rule.Kind == kind {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) InsertRule(_ context.Context, rule elective.CombinationRule) (elective.RuleID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertRuleLocked(rule)
}

func (m *Memory) insertRuleLocked(rule elective.CombinationRule) (elective.RuleID, error) {
	if m.RuleInsertErr != nil {
		err := m.RuleInsertErr
		m.RuleInsertErr = nil
		return 0, err
	}
	m.nextRuleID++
	rule.ID = m.nextRuleID
	m.rules[rule.ID] = rule
	return rule.ID, nil
}

func (m *Memory) DeleteRule(_ context.Context, id elective.RuleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rules, id)
	return nil
}

// WithTx executes fn against a transactional view. For the memory store
// this is simulated with a snapshot restored on error.
func (m *Memory) WithTx(_ context.Context, fn func(elective.RuleStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[elective.RuleID]elective.CombinationRule, len(m.rules))
	for id, rule := range m.rules {
		snapshot[id] = rule
	}
	snapshotNextID := m.nextRuleID

	if err := fn(&txRuleView{parent: m}); err != nil {
		m.rules = snapshot
		m.nextRuleID = snapshotNextID
		return err
	}
	return nil
}

// txRuleView operates under the parent's already-held lock.
type txRuleView struct {
	parent *Memory
}

func (v *txRuleView) Rules(_ context.Context, optionID elective.OptionID, kind elective.CombineKind) ([]elective.CombinationRule, error) {
	return v.parent.rulesLocked(optionID, kind), nil
}

func (v *txRuleView) InsertRule(_ context.Context, rule elective.CombinationRule) (elective.RuleID, error) {
	return v.parent.insertRuleLocked(rule)
}

func (v *txRuleView) DeleteRule(_ context.Context, id elective.RuleID) error {
	delete(v.parent.rules, id)
	return nil
}

// =============================================================================
// PREFERENCE STORE
// =============================================================================

func (m *Memory) Get(_ context.Context, userID elective.UserID, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.prefs[prefKey{UserID: userID, Key: key}], nil
}

func (m *Memory) Set(_ context.Context, userID elective.UserID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[prefKey{UserID: userID, Key: key}] = value
	return nil
}

// =============================================================================
// ENROLLER / COMPLETION ORACLE / PRECEDENCE PROVIDER
// =============================================================================

// Enrol records the enrolment. Idempotent in effect; every invocation is
// still recorded so tests can count calls.
func (m *Memory) Enrol(_ context.Context, userID elective.UserID, courseID elective.CourseID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.EnrolErr[userID]; err != nil {
		return err
	}
	m.Enrolments = append(m.Enrolments, Enrolment{UserID: userID, CourseID: courseID})
	return nil
}

// EnrolCount returns how many times Enrol succeeded for the pair.
func (m *Memory) EnrolCount(userID elective.UserID, courseID elective.CourseID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.Enrolments {
		if e.UserID == userID && e.CourseID == courseID {
			n++
		}
	}
	return n
}

func (m *Memory) IsComplete(_ context.Context, userID elective.UserID, courseID elective.CourseID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.completed[enrolKey{UserID: userID, CourseID: courseID}], nil
}

func (m *Memory) Predecessors(_ context.Context, id elective.OptionID) ([]elective.OptionID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	preds := make([]elective.OptionID, len(m.preceding[id]))
	copy(preds, m.preceding[id])
	return preds, nil
}

// =============================================================================
// RUN STORE
// =============================================================================

func (m *Memory) SaveRun(_ context.Context, run elective.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) Runs(_ context.Context, limit int) ([]elective.RunReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]elective.RunReport, len(m.runs))
	copy(out, m.runs)
	// Newest first.
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
