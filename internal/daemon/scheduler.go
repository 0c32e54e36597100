package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/docship/internal/config"
	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/history"
	"git.home.luguber.info/inful/docship/internal/logfields"
)

// Enqueuer accepts build jobs produced by the scheduler.
type Enqueuer interface {
	EnqueueBuild(project *config.ProjectConfig, trigger BuildType, priority Priority) (*Job, error)
}

// HeadResolver reports the current remote head of a branch without cloning.
type HeadResolver interface {
	ResolveRemoteHead(url, branch string, auth *config.AuthConfig) (string, error)
}

// LastFinisher answers what the last finished build of a project produced.
// The build history projection satisfies this; a nil value disables the
// unchanged-source skip.
type LastFinisher interface {
	LastFinished(project string) (history.BuildSummary, bool)
}

// Scheduler owns the cron jobs behind per-project `schedule` entries plus
// the nightly history prune. Each build job runs in singleton mode so a slow
// build reschedules instead of stacking.
type Scheduler struct {
	cron  gocron.Scheduler
	enq   Enqueuer
	heads HeadResolver
	last  LastFinisher

	mu sync.Mutex
	// projectJobs tracks the cron jobs owned by the current config so a
	// reload can replace them without touching the prune job.
	projectJobs []uuid.UUID
}

// NewScheduler creates an idle scheduler; Apply installs project jobs and
// Start begins firing them.
func NewScheduler(enq Enqueuer, heads HeadResolver, last LastFinisher) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "create scheduler").Build()
	}
	return &Scheduler{cron: cron, enq: enq, heads: heads, last: last}, nil
}

// Apply replaces the per-project cron jobs with those from cfg. Projects
// with an invalid schedule are skipped and reported; valid ones still run.
func (s *Scheduler) Apply(cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.projectJobs {
		if err := s.cron.RemoveJob(id); err != nil {
			slog.Warn("failed to remove stale schedule", logfields.ScheduleID(id.String()), logfields.Error(err))
		}
	}
	s.projectJobs = s.projectJobs[:0]

	var errs []error
	scheduled := 0
	for _, p := range cfg.Projects {
		if p == nil || p.Schedule == "" {
			continue
		}
		job, err := s.cron.NewJob(
			gocron.CronJob(p.Schedule, false),
			gocron.NewTask(s.runScheduled, p),
			gocron.WithName("build-"+p.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			errs = append(errs, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid schedule for project "+p.Name).
				WithContext("schedule", p.Schedule).
				Build())
			continue
		}
		s.projectJobs = append(s.projectJobs, job.ID())
		scheduled++
		slog.Info("scheduled project build",
			logfields.Project(p.Name),
			logfields.ScheduleName(p.Schedule),
			logfields.ScheduleID(job.ID().String()))
	}
	slog.Info("schedules applied", "projects", scheduled)
	return errors.Join(errs...)
}

// SchedulePrune installs a daily job trimming history rows older than maxAge.
func (s *Scheduler) SchedulePrune(store *history.Store, maxAge time.Duration) error {
	if store == nil || maxAge <= 0 {
		return nil
	}
	_, err := s.cron.NewJob(
		gocron.CronJob("0 3 * * *", false),
		gocron.NewTask(s.runPrune, store, maxAge),
		gocron.WithName("history-prune"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "schedule history prune").Build()
	}
	return nil
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	slog.Info("starting scheduler")
	s.cron.Start()
}

// Stop shuts down the scheduler, waiting for running tasks.
func (s *Scheduler) Stop() error {
	slog.Info("stopping scheduler")
	return s.cron.Shutdown()
}

// runScheduled enqueues one scheduled build, unless the remote head matches
// the last finished build's commit, in which case there is nothing new to
// document and the tick is skipped. Head resolution failures fall through to
// a normal build so the pipeline can surface the real error.
func (s *Scheduler) runScheduled(p *config.ProjectConfig) {
	if s.last != nil {
		if prev, ok := s.last.LastFinished(p.Name); ok && prev.Commit != "" {
			head, err := s.heads.ResolveRemoteHead(p.Source.URL, p.Source.Branch, p.Source.Auth)
			if err != nil {
				slog.Warn("remote head probe failed, building anyway",
					logfields.Project(p.Name),
					logfields.Error(err))
			} else if head == prev.Commit {
				slog.Info("scheduled build skipped, source unchanged",
					logfields.Project(p.Name),
					logfields.Commit(head))
				return
			}
		}
	}

	job, err := s.enq.EnqueueBuild(p, BuildTypeScheduled, PriorityNormal)
	switch {
	case errors.Is(err, ErrProjectQueued):
		slog.Info("scheduled build coalesced into queued job", logfields.Project(p.Name))
	case err != nil:
		slog.Error("failed to enqueue scheduled build", logfields.Project(p.Name), logfields.Error(err))
	default:
		slog.Info("scheduled build enqueued", logfields.Project(p.Name), logfields.JobID(job.ID))
	}
}

func (s *Scheduler) runPrune(store *history.Store, maxAge time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-maxAge)
	removed, err := store.Prune(ctx, cutoff)
	if err != nil {
		slog.Error("history prune failed", logfields.Error(err))
		return
	}
	if removed > 0 {
		slog.Info("history pruned", "removed", removed, "cutoff", cutoff.Format(time.RFC3339))
	}
}
