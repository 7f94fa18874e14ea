package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NordCoder/GetMoreSeo/internal/domain/credit"
	"github.com/NordCoder/GetMoreSeo/internal/domain/kafka"
	"github.com/NordCoder/GetMoreSeo/internal/domain/schedule"
	"github.com/NordCoder/GetMoreSeo/internal/domain/schedulelog"
	"github.com/NordCoder/GetMoreSeo/internal/nextrun"
	"github.com/NordCoder/GetMoreSeo/internal/obs"
	"github.com/NordCoder/GetMoreSeo/internal/services/scheduler/repo"
)

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
	// OutcomeAdvanceFailed means the job ran but the schedule was not advanced,
	// so it will fire again once its claim expires.
	OutcomeAdvanceFailed OutcomeStatus = "advance_failed"
	OutcomeNoCredits     OutcomeStatus = "no_credits"
)

const noSchedulesMessage = "no schedules processed"

type Outcome struct {
	ScheduleID  uuid.UUID     `json:"schedule_id"`
	Target      string        `json:"website_url"`
	Status      OutcomeStatus `json:"status"`
	ResultID    *uuid.UUID    `json:"blog_id,omitempty"`
	NextRun     *time.Time    `json:"next_run,omitempty"`
	Error       string        `json:"error,omitempty"`
	Deactivated bool          `json:"deactivated,omitempty"`
}

type Report struct {
	At            time.Time `json:"at"`
	Message       string    `json:"message,omitempty"`
	Considered    int       `json:"considered"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	PartialFailed int       `json:"partial_failed"`
	Outcomes      []Outcome `json:"outcomes"`
}

type Options struct {
	BatchLimit  int
	Lookahead   time.Duration
	ClaimTTL    time.Duration
	MaxFailures int
	// Parallelism caps concurrent jobs in one sweep; 0 runs all at once.
	Parallelism int
	JobTimeout  time.Duration
	Location    *time.Location
	Overflow    nextrun.MonthOverflow
}

type Usecase struct {
	Store  repo.Schedules
	Runner schedule.JobRunner
	Tx     repo.Transactor
	// Optional collaborators; nil disables them.
	Logs    schedulelog.Repo
	Credits credit.Store
	Events  repo.EventSink

	Opts Options
	Log  *zap.Logger
	Now  func() time.Time
}

func NewUC(store repo.Schedules, runner schedule.JobRunner, tx repo.Transactor, opts Options, log *zap.Logger) *Usecase {
	if tx == nil {
		tx = repo.NoTx{}
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = 100
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = 15 * time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{
		Store:  store,
		Runner: runner,
		Tx:     tx,
		Opts:   opts,
		Log:    log.With(zap.String("component", "scheduler.uc")),
		Now:    time.Now,
	}
}

// Sweep claims every due schedule, runs the jobs concurrently and advances
// the ones that succeeded. Only a failure to list due schedules is returned as
// an error; everything else ends up in the report.
func (u *Usecase) Sweep(ctx context.Context) (*Report, error) {
	now := u.Now().UTC()

	tr := otel.Tracer("scheduler.uc")
	ctx, span := tr.Start(ctx, "scheduler.sweep",
		trace.WithAttributes(
			attribute.Int("batch.limit", u.Opts.BatchLimit),
			attribute.String("sweep.at", now.Format(time.RFC3339)),
		),
	)
	defer span.End()

	due, err := u.Store.ClaimDue(ctx, now.Add(u.Opts.Lookahead), u.Opts.BatchLimit, u.Opts.ClaimTTL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim due")
		return nil, fmt.Errorf("claim due: %w", err)
	}
	span.SetAttributes(attribute.Int("batch.claimed", len(due)))

	rep := &Report{At: now, Considered: len(due), Outcomes: make([]Outcome, len(due))}
	if len(due) == 0 {
		rep.Message = noSchedulesMessage
		return rep, nil
	}

	// started jobs outlive the caller's cancellation
	jobCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	if u.Opts.Parallelism > 0 {
		g.SetLimit(u.Opts.Parallelism)
	}
	for i, s := range due {
		g.Go(func() error {
			rep.Outcomes[i] = u.process(jobCtx, s, now)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range rep.Outcomes {
		switch o.Status {
		case OutcomeSuccess:
			rep.Succeeded++
		case OutcomeAdvanceFailed:
			rep.PartialFailed++
		default:
			rep.Failed++
		}
	}
	span.SetAttributes(
		attribute.Int("batch.succeeded", rep.Succeeded),
		attribute.Int("batch.failed", rep.Failed),
		attribute.Int("batch.partial_failed", rep.PartialFailed),
	)
	return rep, nil
}

func (u *Usecase) process(ctx context.Context, s *schedule.Schedule, now time.Time) Outcome {
	ctx, span := otel.Tracer("scheduler.uc").Start(ctx, "scheduler.process",
		trace.WithAttributes(
			attribute.String("schedule.id", s.ID.String()),
			attribute.String("schedule.target", s.Target),
			attribute.String("schedule.frequency", string(s.Frequency)),
		),
	)
	defer span.End()

	log := obs.WithTrace(ctx, u.Log).With(
		zap.String("schedule_id", s.ID.String()),
		zap.String("website_url", s.Target),
	)
	out := Outcome{ScheduleID: s.ID, Target: s.Target}

	next, err := u.nextRun(s, now)
	if err != nil {
		span.RecordError(err)
		return u.fail(ctx, log, s, out, fmt.Errorf("compute next run: %w", err))
	}

	if u.Credits != nil {
		n, err := u.Credits.Available(ctx, s.UserID)
		if err != nil {
			span.RecordError(err)
			return u.fail(ctx, log, s, out, fmt.Errorf("check credits: %w", err))
		}
		if n < 1 {
			if err := u.Store.Deactivate(ctx, s.ID, schedule.StatusNoCredits); err != nil {
				log.Error("pause schedule", zap.Error(err))
			}
			u.writeLog(ctx, log, s, schedulelog.StatusFailed, schedule.StatusNoCredits, nil)
			log.Info("schedule paused", zap.String("reason", schedule.StatusNoCredits))
			out.Status = OutcomeNoCredits
			out.Error = schedule.StatusNoCredits
			out.Deactivated = true
			return out
		}
	}

	runCtx := ctx
	if u.Opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, u.Opts.JobTimeout)
		defer cancel()
	}
	res, err := u.Runner.Run(runCtx, s)
	if err != nil {
		span.RecordError(err)
		return u.fail(ctx, log, s, out, err)
	}
	out.ResultID = &res.ResultID

	err = u.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := u.Store.Advance(ctx, s.ID, now, next); err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		if u.Credits != nil {
			if err := u.Credits.Deduct(ctx, s.UserID, 1); err != nil {
				if !errors.Is(err, credit.ErrInsufficient) {
					return fmt.Errorf("deduct credit: %w", err)
				}
				log.Warn("credit already spent", zap.String("user_id", s.UserID.String()))
			}
		}
		if u.Events != nil {
			if err := u.Events.ScheduleExecuted(ctx, kafka.ScheduleExecuted{
				ScheduleID: s.ID,
				UserID:     s.UserID,
				BlogID:     res.ResultID,
				Target:     s.Target,
				RanAt:      now,
				NextRun:    next,
			}); err != nil {
				return fmt.Errorf("enqueue event: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "advance failed")
		log.Error("job succeeded but schedule was not advanced",
			zap.String("blog_id", res.ResultID.String()), zap.Error(err))
		out.Status = OutcomeAdvanceFailed
		out.Error = err.Error()
		return out
	}

	u.writeLog(ctx, log, s, schedulelog.StatusSuccess, "Blog generated", &res.ResultID)
	out.Status = OutcomeSuccess
	out.NextRun = &next
	log.Debug("schedule advanced", zap.Time("next_run", next))
	return out
}

// nextRun computes the slot after the one being run. A schedule claimed
// early through the lookahead window is advanced past its own next_run, not
// past the sweep time.
func (u *Usecase) nextRun(s *schedule.Schedule, now time.Time) (time.Time, error) {
	r, err := nextrun.FromSchedule(s, u.Opts.Location, u.Opts.Overflow)
	if err != nil {
		return time.Time{}, err
	}
	ref := now
	if s.NextRun.After(now) {
		ref = s.NextRun
	}
	return nextrun.Next(r, ref)
}

// fail records a failed attempt: next_run and last_run stay as they are so the
// schedule is retried by a later sweep.
func (u *Usecase) fail(ctx context.Context, log *zap.Logger, s *schedule.Schedule, out Outcome, cause error) Outcome {
	out.Status = OutcomeFailed
	out.Error = cause.Error()

	deactivated, err := u.Store.RecordFailure(ctx, s.ID, cause.Error(), u.Opts.MaxFailures)
	if err != nil {
		log.Error("record failure", zap.Error(err))
	}
	out.Deactivated = deactivated

	u.writeLog(ctx, log, s, schedulelog.StatusFailed, cause.Error(), nil)
	log.Warn("job failed", zap.Error(cause), zap.Bool("deactivated", deactivated))
	return out
}

func (u *Usecase) writeLog(ctx context.Context, log *zap.Logger, s *schedule.Schedule, st schedulelog.Status, msg string, blogID *uuid.UUID) {
	if u.Logs == nil {
		return
	}
	err := u.Logs.Insert(ctx, &schedulelog.Entry{
		ScheduleID: s.ID,
		UserID:     s.UserID,
		Status:     st,
		Message:    msg,
		BlogID:     blogID,
	})
	if err != nil {
		log.Warn("write schedule log", zap.Error(err))
	}
}
