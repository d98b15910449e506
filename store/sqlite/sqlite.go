/*
Package sqlite provides the SQLite-backed implementation of the elective
engine's store interfaces.

PURPOSE:
  Implements every persistence interface in elective/store.go using
  SQLite. The same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

INTERFACES IMPLEMENTED:
  elective.OptionStore        Booking option reads + reconciled batch write
  elective.InstanceStore      Instance configuration
  elective.AnswerStore        Committed bookings
  elective.TxRuleStore        Combination rules, transactional
  elective.PreferenceStore    Per-user selection blob
  elective.PrecedenceProvider Plain edge table as one precedence source
  elective.Enroller           Enrolment ledger (INSERT OR IGNORE = idempotent)
  elective.CompletionOracle   Course completion lookups
  elective.RunStore           Reconciliation run audit

KEY TABLES:
  booking_instances    Per-instance configuration (credit max, ordering)
  booking_options      Enrollable course offerings
  booking_answers      Committed bookings (user x option)
  booking_combinations Must/cannot combine rules
  option_precedence    Predecessor edges for the ordering gate
  user_preferences     Opaque per-user blobs (selection staging)
  course_enrolments    Enrolment ledger, unique on (user, course)
  course_completions   Completion flags consumed by the ordering gate
  reconciliation_runs  Run audit records

TRANSACTIONS:
  WithTx wraps combination-rule reconciliation in a single SQL
  transaction so a delta is applied all-or-nothing.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool with versioned migrations.

SEE ALSO:
  - elective/store.go: Interface definitions
  - elective/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/campus/elective-engine/elective"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS booking_instances (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		event_type TEXT NOT NULL DEFAULT '',
		max_credits TEXT NOT NULL DEFAULT '0',
		enforce_order INTEGER NOT NULL DEFAULT 0,
		ban_usernames TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS booking_options (
		id INTEGER PRIMARY KEY,
		instance_id INTEGER NOT NULL,
		course_id INTEGER NOT NULL,
		credits TEXT NOT NULL DEFAULT '0',
		course_start TEXT NOT NULL,
		reconciled INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_options_due
		ON booking_options(reconciled, course_start);
	CREATE INDEX IF NOT EXISTS idx_options_instance
		ON booking_options(instance_id);

	CREATE TABLE IF NOT EXISTS booking_answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		option_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		UNIQUE(option_id, user_id)
	);
	CREATE INDEX IF NOT EXISTS idx_answers_user ON booking_answers(user_id);

	CREATE TABLE IF NOT EXISTS booking_combinations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		option_id INTEGER NOT NULL,
		other_option_id INTEGER NOT NULL,
		kind TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_combinations_option_kind
		ON booking_combinations(option_id, kind);

	CREATE TABLE IF NOT EXISTS option_precedence (
		option_id INTEGER NOT NULL,
		predecessor_id INTEGER NOT NULL,
		PRIMARY KEY(option_id, predecessor_id)
	);

	CREATE TABLE IF NOT EXISTS user_preferences (
		user_id INTEGER NOT NULL,
		pref_key TEXT NOT NULL,
		pref_value TEXT NOT NULL,
		PRIMARY KEY(user_id, pref_key)
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		username TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS course_enrolments (
		user_id INTEGER NOT NULL,
		course_id INTEGER NOT NULL,
		enrolled_at TEXT NOT NULL,
		PRIMARY KEY(user_id, course_id)
	);

	CREATE TABLE IF NOT EXISTS course_completions (
		user_id INTEGER NOT NULL,
		course_id INTEGER NOT NULL,
		PRIMARY KEY(user_id, course_id)
	);

	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		completed_at TEXT NOT NULL,
		options_scanned INTEGER NOT NULL DEFAULT 0,
		options_reconciled INTEGER NOT NULL DEFAULT 0,
		users_enrolled INTEGER NOT NULL DEFAULT 0,
		users_skipped INTEGER NOT NULL DEFAULT 0,
		users_failed INTEGER NOT NULL DEFAULT 0,
		options_skipped INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// OPTION STORE
// =============================================================================

func (s *Store) Option(ctx context.Context, id elective.OptionID) (*elective.BookingOption, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, instance_id, course_id, credits, course_start, reconciled
		FROM booking_options WHERE id = ?`, int64(id))
	opt, err := scanOption(row)
	if err == sql.ErrNoRows {
		return nil, elective.ErrOptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return opt, nil
}

func (s *Store) DueOptions(ctx context.Context, now time.Time) ([]elective.BookingOption, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, instance_id, course_id, credits, course_start, reconciled
		FROM booking_options
		WHERE reconciled < 1 AND course_start < ?
		ORDER BY id`, now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []elective.BookingOption
	for rows.Next() {
		opt, err := scanOption(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, *opt)
	}
	return due, rows.Err()
}

func (s *Store) MarkReconciled(ctx context.Context, ids []elective.OptionID) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = int64(id)
	}
	query := fmt.Sprintf(`UPDATE booking_options SET reconciled = 1 WHERE id IN (%s)`,
		strings.Join(placeholders, ","))
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// SaveOption upserts a booking option (admin/seed path).
func (s *Store) SaveOption(ctx context.Context, opt elective.BookingOption) error {
	reconciled := 0
	if opt.Reconciled {
		reconciled = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO booking_options (id, instance_id, course_id, credits, course_start, reconciled)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			instance_id = excluded.instance_id,
			course_id = excluded.course_id,
			credits = excluded.credits,
			course_start = excluded.course_start,
			reconciled = excluded.reconciled`,
		int64(opt.ID), int64(opt.InstanceID), int64(opt.CourseID),
		opt.Credits.String(), opt.CourseStart.UTC().Format(time.RFC3339), reconciled)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOption(row rowScanner) (*elective.BookingOption, error) {
	var (
		id, instanceID, courseID int64
		creditsRaw, startRaw     string
		reconciled               int
	)
	if err := row.Scan(&id, &instanceID, &courseID, &creditsRaw, &startRaw, &reconciled); err != nil {
		return nil, err
	}
	credits, err := decimal.NewFromString(creditsRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid credits value %q: %w", creditsRaw, err)
	}
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid course_start value %q: %w", startRaw, err)
	}
	return &elective.BookingOption{
		ID:          elective.OptionID(id),
		InstanceID:  elective.InstanceID(instanceID),
		CourseID:    elective.CourseID(courseID),
		Credits:     elective.Credits{Value: credits},
		CourseStart: start,
		Reconciled:  reconciled >= 1,
	}, nil
}

// =============================================================================
// INSTANCE STORE
// =============================================================================

func (s *Store) Instance(ctx context.Context, id elective.InstanceID) (*elective.Instance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, event_type, max_credits, enforce_order, ban_usernames
		FROM booking_instances WHERE id = ?`, int64(id))

	var (
		instID        int64
		name, event   string
		maxCreditsRaw string
		enforceOrder  int
		banUsernames  string
	)
	err := row.Scan(&instID, &name, &event, &maxCreditsRaw, &enforceOrder, &banUsernames)
	if err == sql.ErrNoRows {
		return nil, elective.ErrInstanceNotFound
	}
	if err != nil {
		return nil, err
	}
	maxCredits, err := decimal.NewFromString(maxCreditsRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid max_credits value %q: %w", maxCreditsRaw, err)
	}
	return &elective.Instance{
		ID:           elective.InstanceID(instID),
		Name:         name,
		EventType:    event,
		MaxCredits:   elective.Credits{Value: maxCredits},
		EnforceOrder: enforceOrder >= 1,
		BanUsernames: banUsernames,
	}, nil
}

// SaveInstance upserts a booking instance (admin/seed path).
func (s *Store) SaveInstance(ctx context.Context, inst elective.Instance) error {
	enforce := 0
	if inst.EnforceOrder {
		enforce = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO booking_instances (id, name, event_type, max_credits, enforce_order, ban_usernames)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			event_type = excluded.event_type,
			max_credits = excluded.max_credits,
			enforce_order = excluded.enforce_order,
			ban_usernames = excluded.ban_usernames`,
		int64(inst.ID), inst.Name, inst.EventType,
		inst.MaxCredits.String(), enforce, inst.BanUsernames)
	return err
}

// =============================================================================
// ANSWER STORE
// =============================================================================

func (s *Store) AnswersForOption(ctx context.Context, id elective.OptionID) ([]elective.BookingAnswer, error) {
	return s.queryAnswers(ctx, `
		SELECT id, option_id, user_id FROM booking_answers
		WHERE option_id = ? ORDER BY id`, int64(id))
}

func (s *Store) AnswersForUser(ctx context.Context, id elective.UserID) ([]elective.BookingAnswer, error) {
	return s.queryAnswers(ctx, `
		SELECT id, option_id, user_id FROM booking_answers
		WHERE user_id = ? ORDER BY id`, int64(id))
}

func (s *Store) HasAnswer(ctx context.Context, optionID elective.OptionID, userID elective.UserID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM booking_answers WHERE option_id = ? AND user_id = ?`,
		int64(optionID), int64(userID)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SaveAnswer records a committed booking (the booking workflow path).
func (s *Store) SaveAnswer(ctx context.Context, optionID elective.OptionID, userID elective.UserID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO booking_answers (option_id, user_id) VALUES (?, ?)`,
		int64(optionID), int64(userID))
	return err
}

func (s *Store) queryAnswers(ctx context.Context, query string, args ...any) ([]elective.BookingAnswer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []elective.BookingAnswer
	for rows.Next() {
		var id, optionID, userID int64
		if err := rows.Scan(&id, &optionID, &userID); err != nil {
			return nil, err
		}
		out = append(out, elective.BookingAnswer{
			ID:       id,
			OptionID: elective.OptionID(optionID),
			UserID:   elective.UserID(userID),
		})
	}
	return out, rows.Err()
}

// =============================================================================
// RULE STORE (transactional)
// =============================================================================

// ruleStore issues rule statements against either the pool or an open
// transaction, so the same code serves both paths.
type ruleStore struct {
	q queryer
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r ruleStore) Rules(ctx context.Context, optionID elective.OptionID, kind elective.CombineKind) ([]elective.CombinationRule, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, option_id, other_option_id, kind FROM booking_combinations
		WHERE option_id = ? AND kind = ? ORDER BY id`, int64(optionID), string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []elective.CombinationRule
	for rows.Next() {
		var id, opt, other int64
		var k string
		if err := rows.Scan(&id, &opt, &other, &k); err != nil {
			return nil, err
		}
		out = append(out, elective.CombinationRule{
			ID:            elective.RuleID(id),
			OptionID:      elective.OptionID(opt),
			OtherOptionID: elective.OptionID(other),
			Kind:          elective.CombineKind(k),
		})
	}
	return out, rows.Err()
}

func (r ruleStore) InsertRule(ctx context.Context, rule elective.CombinationRule) (elective.RuleID, error) {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO booking_combinations (option_id, other_option_id, kind)
		VALUES (?, ?, ?)`,
		int64(rule.OptionID), int64(rule.OtherOptionID), string(rule.Kind))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return elective.RuleID(id), nil
}

func (r ruleStore) DeleteRule(ctx context.Context, id elective.RuleID) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM booking_combinations WHERE id = ?`, int64(id))
	return err
}

func (s *Store) Rules(ctx context.Context, optionID elective.OptionID, kind elective.CombineKind) ([]elective.CombinationRule, error) {
	return ruleStore{q: s.db}.Rules(ctx, optionID, kind)
}

func (s *Store) InsertRule(ctx context.Context, rule elective.CombinationRule) (elective.RuleID, error) {
	return ruleStore{q: s.db}.InsertRule(ctx, rule)
}

func (s *Store) DeleteRule(ctx context.Context, id elective.RuleID) error {
	return ruleStore{q: s.db}.DeleteRule(ctx, id)
}

// WithTx runs fn inside a single SQL transaction. Rule reconciliation
// deltas commit or roll back as one.
func (s *Store) WithTx(ctx context.Context, fn func(elective.RuleStore) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(ruleStore{q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// =============================================================================
// PREFERENCE STORE
// =============================================================================

func (s *Store) Get(ctx context.Context, userID elective.UserID, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT pref_value FROM user_preferences WHERE user_id = ? AND pref_key = ?`,
		int64(userID), key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, userID elective.UserID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, pref_key, pref_value)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, pref_key) DO UPDATE SET pref_value = excluded.pref_value`,
		int64(userID), key, value)
	return err
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, user elective.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET username = excluded.username`,
		int64(user.ID), user.Username)
	return err
}

func (s *Store) User(ctx context.Context, id elective.UserID) (*elective.User, error) {
	var userID int64
	var username string
	err := s.db.QueryRowContext(ctx, `SELECT id, username FROM users WHERE id = ?`,
		int64(id)).Scan(&userID, &username)
	if err == sql.ErrNoRows {
		// Unknown users still get a budget; the ban list just can't match.
		return &elective.User{ID: id}, nil
	}
	if err != nil {
		return nil, err
	}
	return &elective.User{ID: elective.UserID(userID), Username: username}, nil
}

// =============================================================================
// ENROLLER / COMPLETION ORACLE
// =============================================================================

// Enrol records the enrolment. INSERT OR IGNORE makes repeat calls for the
// same (user, course) pair a no-op, which is the idempotency the
// reconciler relies on.
func (s *Store) Enrol(ctx context.Context, userID elective.UserID, courseID elective.CourseID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO course_enrolments (user_id, course_id, enrolled_at)
		VALUES (?, ?, ?)`,
		int64(userID), int64(courseID), time.Now().UTC().Format(time.RFC3339))
	return err
}

// IsEnrolled reports whether the enrolment ledger holds the pair.
func (s *Store) IsEnrolled(ctx context.Context, userID elective.UserID, courseID elective.CourseID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM course_enrolments WHERE user_id = ? AND course_id = ?`,
		int64(userID), int64(courseID)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) IsComplete(ctx context.Context, userID elective.UserID, courseID elective.CourseID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM course_completions WHERE user_id = ? AND course_id = ?`,
		int64(userID), int64(courseID)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetComplete flags a course as completed for a user (fed by the
// platform's completion tracking, surfaced here for seeding and admin
// tooling).
func (s *Store) SetComplete(ctx context.Context, userID elective.UserID, courseID elective.CourseID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO course_completions (user_id, course_id) VALUES (?, ?)`,
		int64(userID), int64(courseID))
	return err
}

// =============================================================================
// PRECEDENCE PROVIDER
// =============================================================================

func (s *Store) Predecessors(ctx context.Context, id elective.OptionID) ([]elective.OptionID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT predecessor_id FROM option_precedence WHERE option_id = ? ORDER BY predecessor_id`,
		int64(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []elective.OptionID
	for rows.Next() {
		var pred int64
		if err := rows.Scan(&pred); err != nil {
			return nil, err
		}
		out = append(out, elective.OptionID(pred))
	}
	return out, rows.Err()
}

// AddPrecedence declares that predecessor must be completed before option.
func (s *Store) AddPrecedence(ctx context.Context, optionID, predecessorID elective.OptionID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO option_precedence (option_id, predecessor_id) VALUES (?, ?)`,
		int64(optionID), int64(predecessorID))
	return err
}

// =============================================================================
// RUN STORE
// =============================================================================

func (s *Store) SaveRun(ctx context.Context, run elective.RunReport) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconciliation_runs
			(id, started_at, completed_at, options_scanned, options_reconciled,
			 users_enrolled, users_skipped, users_failed, options_skipped, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			completed_at = excluded.completed_at,
			options_scanned = excluded.options_scanned,
			options_reconciled = excluded.options_reconciled,
			users_enrolled = excluded.users_enrolled,
			users_skipped = excluded.users_skipped,
			users_failed = excluded.users_failed,
			options_skipped = excluded.options_skipped,
			error = excluded.error`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.CompletedAt.UTC().Format(time.RFC3339),
		run.OptionsScanned, run.OptionsReconciled,
		run.UsersEnrolled, run.UsersSkipped, run.UsersFailed, run.OptionsSkipped,
		run.Error)
	return err
}

func (s *Store) Runs(ctx context.Context, limit int) ([]elective.RunReport, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, completed_at, options_scanned, options_reconciled,
		       users_enrolled, users_skipped, users_failed, options_skipped, error
		FROM reconciliation_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []elective.RunReport
	for rows.Next() {
		var run elective.RunReport
		var startedRaw, completedRaw string
		if err := rows.Scan(&run.ID, &startedRaw, &completedRaw,
			&run.OptionsScanned, &run.OptionsReconciled,
			&run.UsersEnrolled, &run.UsersSkipped, &run.UsersFailed,
			&run.OptionsSkipped, &run.Error); err != nil {
			return nil, err
		}
		if run.StartedAt, err = time.Parse(time.RFC3339, startedRaw); err != nil {
			return nil, fmt.Errorf("invalid started_at %q: %w", startedRaw, err)
		}
		if run.CompletedAt, err = time.Parse(time.RFC3339, completedRaw); err != nil {
			return nil, fmt.Errorf("invalid completed_at %q: %w", completedRaw, err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
