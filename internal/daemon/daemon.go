// Package daemon runs docship as a long-lived service: a worker pool builds
// documentation jobs fed by cron schedules and push webhooks, while an admin
// server exposes health, status, and build history.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docship/internal/config"
	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/git"
	"git.home.luguber.info/inful/docship/internal/history"
	"git.home.luguber.info/inful/docship/internal/logfields"
	"git.home.luguber.info/inful/docship/internal/metrics"
	"git.home.luguber.info/inful/docship/internal/notify"
	"git.home.luguber.info/inful/docship/internal/pipeline"
	"git.home.luguber.info/inful/docship/internal/retry"
	"git.home.luguber.info/inful/docship/internal/toolchain"
	"git.home.luguber.info/inful/docship/internal/version"
	"git.home.luguber.info/inful/docship/internal/workspace"
)

// Status is the daemon lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

// recentBuilds bounds the in-memory build history projection.
const recentBuilds = 100

// Daemon wires the pipeline, queue, scheduler, watcher, and HTTP surface
// into one service.
type Daemon struct {
	configPath string

	mu  sync.RWMutex
	cfg *config.Config

	status    atomic.Value // Status
	startTime time.Time

	ws         *workspace.Manager
	gitClient  *git.Client
	runner     *pipeline.Runner
	queue      *Queue
	scheduler  *Scheduler
	watcher    *ConfigWatcher
	store      *history.Store
	projection *history.Projection
	notifier   *notify.Notifier
	recorder   metrics.Recorder
	registry   *prometheus.Registry
	http       *HTTPServer
}

// New assembles a daemon from a loaded configuration. configPath enables hot
// reload when non-empty; an unreachable NATS broker degrades notifications
// to warnings instead of failing startup.
func New(cfg *config.Config, configPath string) (*Daemon, error) {
	if cfg == nil {
		return nil, ferrors.ConfigError("configuration is required").Build()
	}
	if cfg.Daemon == nil {
		return nil, ferrors.ConfigError("daemon section is required to run as a service").
			Hint("add a `daemon:` section to the configuration file").
			Build()
	}

	d := &Daemon{
		configPath: configPath,
		cfg:        cfg,
		ws:         workspace.NewManager(cfg.Workspace.Root, cfg.Workspace.Keep),
		gitClient:  git.NewClient(&cfg.Git),
		recorder:   metrics.NoopRecorder{},
	}
	d.status.Store(StatusStopped)

	if cfg.Monitoring != nil && cfg.Monitoring.Metrics.Enabled {
		d.registry = prometheus.NewRegistry()
		d.recorder = metrics.NewPrometheusRecorder(d.registry)
	}
	d.runner = pipeline.NewRunner(d.ws, d.gitClient, toolchain.NewManager(nil), d.recorder)

	if cfg.HistoryEnabled() {
		store, err := history.NewStore(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		d.store = store
		d.projection = history.NewProjection(store, recentBuilds)
	}

	if nc := cfg.Notifications; nc != nil && nc.NATS != nil && nc.NATS.Enabled {
		notifier, err := notify.New(nc.NATS)
		if err != nil {
			slog.Warn("notifications unavailable, continuing without them", logfields.Error(err))
		} else {
			d.notifier = notifier
		}
	}

	d.queue = NewQueue(cfg.Daemon.Queue, JobRunnerFunc(d.runJob), retry.DefaultPolicy(), d.recorder)

	var last LastFinisher
	if d.projection != nil {
		last = d.projection
	}
	scheduler, err := NewScheduler(d, d.gitClient, last)
	if err != nil {
		d.closeStores()
		return nil, err
	}
	d.scheduler = scheduler
	if d.store != nil {
		if err := d.scheduler.SchedulePrune(d.store, cfg.HistoryMaxAge()); err != nil {
			slog.Warn("history prune not scheduled", logfields.Error(err))
		}
	}

	d.http = NewHTTPServer(d)

	if configPath != "" && cfg.Daemon.ConfigWatchEnabled() {
		watcher, err := NewConfigWatcher(configPath, d)
		if err != nil {
			d.closeStores()
			return nil, err
		}
		d.watcher = watcher
	}

	return d, nil
}

// Run starts every component and blocks until ctx is canceled, then shuts
// everything down in reverse order.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.status.CompareAndSwap(StatusStopped, StatusStarting) {
		return ferrors.NewError(ferrors.CategoryDaemon, "daemon is already running").
			WithContext("status", string(d.Status())).
			Build()
	}
	d.startTime = time.Now()

	cfg := d.Config()
	slog.Info("starting docship daemon",
		slog.String("version", version.Version),
		slog.Int("projects", len(cfg.Projects)))

	if err := d.ws.EnsureRoot(); err != nil {
		d.status.Store(StatusStopped)
		return err
	}

	if d.projection != nil {
		if err := d.projection.Rebuild(ctx); err != nil {
			slog.Warn("failed to rebuild build history projection", logfields.Error(err))
		}
	}

	if err := d.http.Start(ctx); err != nil {
		d.status.Store(StatusStopped)
		return err
	}

	d.queue.Start(ctx)
	if err := d.scheduler.Apply(cfg); err != nil {
		slog.Warn("some schedules were not installed", logfields.Error(err))
	}
	d.scheduler.Start()

	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			slog.Error("config watcher failed to start, hot reload disabled", logfields.Error(err))
			d.watcher = nil
		}
	}

	d.status.Store(StatusRunning)
	slog.Info("daemon running",
		slog.Int("webhook_port", cfg.Daemon.HTTP.WebhookPort),
		slog.Int("admin_port", cfg.Daemon.HTTP.AdminPort),
		slog.Int("workers", d.queue.Workers()))

	<-ctx.Done()
	return d.shutdown()
}

// shutdown stops components in reverse start order, draining the queue last
// so in-flight builds can finish and record their reports.
func (d *Daemon) shutdown() error {
	d.status.Store(StatusStopping)
	slog.Info("daemon shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	if d.watcher != nil {
		d.watcher.Stop()
	}
	if err := d.scheduler.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := d.http.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := d.queue.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	d.closeStores()

	d.status.Store(StatusStopped)
	slog.Info("daemon stopped")
	return errors.Join(errs...)
}

func (d *Daemon) closeStores() {
	if d.notifier != nil {
		d.notifier.Close()
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			slog.Warn("closing history store", logfields.Error(err))
		}
	}
}

// Status returns the current lifecycle state.
func (d *Daemon) Status() Status {
	return d.status.Load().(Status)
}

// StartTime returns when Run began.
func (d *Daemon) StartTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.startTime
}

// Config returns the currently active configuration. The pointer is
// replaced wholesale on reload, never mutated, so callers may read it
// without further locking.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// ReloadConfig swaps in a new configuration and reapplies the schedules.
// Builds already queued or running keep the project snapshot they were
// created with. Port changes need a restart and only produce a warning.
func (d *Daemon) ReloadConfig(ctx context.Context, newCfg *config.Config) error {
	old := d.Config()
	if newCfg.Version != old.Version {
		return ferrors.ConfigError("config version change requires a daemon restart").
			WithContext("from", old.Version).
			WithContext("to", newCfg.Version).
			Build()
	}
	if nd, od := newCfg.Daemon, old.Daemon; nd != nil && od != nil {
		if nd.HTTP.WebhookPort != od.HTTP.WebhookPort || nd.HTTP.AdminPort != od.HTTP.AdminPort {
			slog.Warn("HTTP port changes take effect after a restart")
		}
	}

	d.mu.Lock()
	d.cfg = newCfg
	d.mu.Unlock()

	if err := d.scheduler.Apply(newCfg); err != nil {
		slog.Warn("some schedules were not installed", logfields.Error(err))
	}
	slog.Info("configuration applied", "projects", len(newCfg.Projects))
	return nil
}

// EnqueueBuild queues a build for the given project snapshot.
func (d *Daemon) EnqueueBuild(project *config.ProjectConfig, trigger BuildType, priority Priority) (*Job, error) {
	if project == nil {
		return nil, ferrors.ValidationError("cannot enqueue a build without a project").Build()
	}
	job := &Job{
		ID:        uuid.NewString(),
		Project:   project.Name,
		Type:      trigger,
		Priority:  priority,
		CreatedAt: time.Now(),
		snapshot:  project,
	}
	if err := d.queue.Enqueue(job); err != nil {
		return nil, err
	}
	return job, nil
}

// runJob is the queue's JobRunner: it brackets one pipeline run with history
// events and the NATS report publication. Recording failures never fail the
// build itself.
func (d *Daemon) runJob(ctx context.Context, job *Job) (*pipeline.RunReport, error) {
	d.recordStarted(ctx, job)

	report, runErr := d.runner.Run(ctx, pipeline.Request{
		Project: job.snapshot,
		Trigger: string(job.Type),
		BuildID: job.ID,
	})

	if report != nil {
		d.recordFinished(ctx, job, report)
	}
	return report, runErr
}

func (d *Daemon) recordStarted(ctx context.Context, job *Job) {
	if d.store == nil {
		return
	}
	event, err := history.NewBuildStarted(job.ID, job.Project, string(job.Type))
	if err != nil {
		slog.Warn("build start not recorded", logfields.JobID(job.ID), logfields.Error(err))
		return
	}
	if err := d.store.Append(ctx, event); err != nil {
		slog.Warn("build start not recorded", logfields.JobID(job.ID), logfields.Error(err))
		return
	}
	d.projection.Apply(event)
}

// recordFinished persists the final report into history and publishes it to
// NATS. It runs detached from the job context so a canceled build still
// leaves a trace.
func (d *Daemon) recordFinished(ctx context.Context, job *Job, report *pipeline.RunReport) {
	reportJSON, err := report.JSON()
	if err != nil {
		slog.Warn("build report not serializable", logfields.JobID(job.ID), logfields.Error(err))
		return
	}
	detached := context.WithoutCancel(ctx)

	if d.store != nil {
		event := history.NewBuildFinished(job.ID, job.Project, reportJSON)
		if err := d.store.Append(detached, event); err != nil {
			slog.Warn("build result not recorded", logfields.JobID(job.ID), logfields.Error(err))
		} else {
			d.projection.Apply(event)
		}
	}

	if d.notifier != nil {
		if err := d.notifier.PublishReport(detached, job.Project, reportJSON); err != nil {
			slog.Warn("build report not published", logfields.JobID(job.ID), logfields.Error(err))
		}
	}
}

// CheckoutHead reports the commit currently checked out for a project, or
// empty when no checkout exists yet.
func (d *Daemon) CheckoutHead(project string) string {
	dir, err := d.ws.CheckoutDir(project)
	if err != nil {
		return ""
	}
	head, err := git.ReadRepoHead(dir)
	if err != nil {
		return ""
	}
	return head
}
