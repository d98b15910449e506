/*
reconcile.go - Enrolment reconciler

PURPOSE:
  The scheduled batch that converts committed bookings into actual course
  enrolments. Each run scans every due option (not reconciled, course
  already started), applies the ordering gate where the owning instance
  demands it, and calls the idempotent enrolment collaborator per booked
  user.

STATE MACHINE (per option):
  PENDING    reconciled=false, course not started yet
  DUE        course started, reconciled still false
  RECONCILED reconciled=true, skipped by future scans

  Elective options never leave DUE: users may book them after the course
  start, so they are rescanned every run. Enrolment idempotency makes the
  repeat calls safe.

FAILURE ISOLATION:
  - Instance resolution failure: log, skip that option, continue the batch.
  - Per-user enrolment failure: log, continue with remaining users.
  - An option with any failed user this run is NOT marked reconciled, so
    the failed users are retried on the next run instead of being silently
    abandoned.

SCHEDULING:
  Run is designed for a single periodic, non-overlapping invocation; an
  internal mutex serializes accidental overlap. The scheduler lives in the
  api package.

SEE ALSO:
  - policy.go: AllowedToEnrol, IsElective
  - api/scheduler.go: The ticker driving Run
*/
package elective

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RunReport is the audit record of one reconciler run.
type RunReport struct {
	ID          string
	StartedAt   time.Time
	CompletedAt time.Time

	OptionsScanned    int
	OptionsReconciled int
	UsersEnrolled     int
	UsersSkipped      int // ordering gate not passed
	UsersFailed       int
	OptionsSkipped    int // instance resolution failures

	Error string
}

// Reconciler runs the periodic enrolment pass.
type Reconciler struct {
	options   OptionStore
	instances InstanceStore
	answers   AnswerStore
	engine    *Engine
	enroller  Enroller
	runs      RunStore
	log       zerolog.Logger

	mu sync.Mutex
}

func NewReconciler(
	options OptionStore,
	instances InstanceStore,
	answers AnswerStore,
	engine *Engine,
	enroller Enroller,
	runs RunStore,
	log zerolog.Logger,
) *Reconciler {
	return &Reconciler{
		options:   options,
		instances: instances,
		answers:   answers,
		engine:    engine,
		enroller:  enroller,
		runs:      runs,
		log:       log,
	}
}

// Run executes one reconciliation pass as of now. Failures inside the batch
// are isolated and reported through the RunReport; Run itself only errors
// when the due-option scan fails.
func (r *Reconciler) Run(ctx context.Context, now time.Time) (*RunReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := &RunReport{
		ID:        uuid.NewString(),
		StartedAt: now,
	}

	due, err := r.options.DueOptions(ctx, now)
	if err != nil {
		report.Error = err.Error()
		report.CompletedAt = time.Now()
		r.saveRun(ctx, report)
		return report, err
	}
	report.OptionsScanned = len(due)

	var markDone []OptionID
	for _, opt := range due {
		inst, err := r.instances.Instance(ctx, opt.InstanceID)
		if err != nil {
			r.log.Warn().
				Int64("option", int64(opt.ID)).
				Err(err).
				Msg("cannot resolve owning instance, skipping option")
			report.OptionsSkipped++
			continue
		}

		failed := r.processOption(ctx, &opt, inst, report)

		// Elective options stay due forever; failed options retry next run.
		if !r.engine.IsElective(inst) && !failed {
			markDone = append(markDone, opt.ID)
		}
	}

	if err := r.options.MarkReconciled(ctx, markDone); err != nil {
		report.Error = err.Error()
		report.CompletedAt = time.Now()
		r.saveRun(ctx, report)
		return report, err
	}
	report.OptionsReconciled = len(markDone)
	report.CompletedAt = time.Now()
	r.saveRun(ctx, report)

	r.log.Info().
		Str("run", report.ID).
		Int("scanned", report.OptionsScanned).
		Int("reconciled", report.OptionsReconciled).
		Int("enrolled", report.UsersEnrolled).
		Int("skipped", report.UsersSkipped).
		Int("failed", report.UsersFailed).
		Msg("reconciliation run completed")

	return report, nil
}

// processOption enrols every eligible booked user of one option. Returns
// true when at least one user failed, which blocks the reconciled flag for
// this run.
func (r *Reconciler) processOption(ctx context.Context, opt *BookingOption, inst *Instance, report *RunReport) bool {
	answers, err := r.answers.AnswersForOption(ctx, opt.ID)
	if err != nil {
		r.log.Warn().
			Int64("option", int64(opt.ID)).
			Err(err).
			Msg("cannot load answers, skipping option")
		report.OptionsSkipped++
		return true
	}

	gated := r.engine.IsElective(inst) && inst.EnforceOrder
	failed := false

	for _, ans := range answers {
		if gated {
			ok, err := r.engine.AllowedToEnrol(ctx, opt, ans.UserID)
			if err != nil {
				r.log.Warn().
					Int64("option", int64(opt.ID)).
					Int64("user", int64(ans.UserID)).
					Err(err).
					Msg("ordering gate check failed")
				report.UsersFailed++
				failed = true
				continue
			}
			if !ok {
				report.UsersSkipped++
				continue
			}
		}

		if err := r.enroller.Enrol(ctx, ans.UserID, opt.CourseID); err != nil {
			enrolErr := &EnrolmentError{UserID: ans.UserID, CourseID: opt.CourseID, Err: err}
			r.log.Warn().Err(enrolErr).Msg("enrolment failed")
			report.UsersFailed++
			failed = true
			continue
		}
		report.UsersEnrolled++
	}
	return failed
}

func (r *Reconciler) saveRun(ctx context.Context, report *RunReport) {
	if r.runs == nil {
		return
	}
	if err := r.runs.SaveRun(ctx, *report); err != nil {
		r.log.Warn().Err(err).Msg("failed to persist run record")
	}
}
