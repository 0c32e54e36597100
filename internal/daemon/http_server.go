package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/docship/internal/config"
	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/history"
	"git.home.luguber.info/inful/docship/internal/metrics"
	"git.home.luguber.info/inful/docship/internal/server/handlers"
	"git.home.luguber.info/inful/docship/internal/server/middleware"
	"git.home.luguber.info/inful/docship/internal/server/responses"
)

// HTTPServer owns the daemon's two listeners: the webhook receiver and the
// admin/status API.
type HTTPServer struct {
	daemon        *Daemon
	webhookServer *http.Server
	adminServer   *http.Server
	mchain        func(http.Handler) http.Handler

	webhook *handlers.WebhookHandlers
	builds  *handlers.BuildHandlers
	status  *handlers.StatusHandlers
}

// NewHTTPServer wires the handler modules against the daemon.
func NewHTTPServer(d *Daemon) *HTTPServer {
	adapter := &daemonAdapter{d: d}
	errorAdapter := ferrors.NewHTTPErrorAdapter(slog.Default())

	s := &HTTPServer{daemon: d}
	s.mchain = middleware.Chain(slog.Default(), errorAdapter)
	s.webhook = handlers.NewWebhookHandlers(adapter)
	s.status = handlers.NewStatusHandlers(adapter)

	var hist handlers.BuildHistory
	if d.projection != nil {
		hist = d.projection
	}
	s.builds = handlers.NewBuildHandlers(hist, adapter)
	return s
}

// daemonAdapter narrows *Daemon to the interfaces the handler modules need.
type daemonAdapter struct {
	d *Daemon
}

func (a *daemonAdapter) Config() *config.Config {
	return a.d.Config()
}

func (a *daemonAdapter) Status() string {
	return string(a.d.Status())
}

func (a *daemonAdapter) StartTime() time.Time {
	return a.d.StartTime()
}

func (a *daemonAdapter) CheckoutHead(project string) string {
	return a.d.CheckoutHead(project)
}

func (a *daemonAdapter) QueueStats() responses.QueueStats {
	q := a.d.queue
	return responses.QueueStats{
		Depth:    q.Depth(),
		Capacity: q.Capacity(),
		Workers:  q.Workers(),
		Active:   len(q.Active()),
	}
}

func (a *daemonAdapter) LastFinished(project string) (history.BuildSummary, bool) {
	if a.d.projection == nil {
		return history.BuildSummary{}, false
	}
	return a.d.projection.LastFinished(project)
}

func (a *daemonAdapter) EnqueueWebhookBuild(p *config.ProjectConfig) (string, bool, error) {
	return a.enqueue(p, BuildTypeWebhook, PriorityHigh)
}

func (a *daemonAdapter) EnqueueManualBuild(p *config.ProjectConfig) (string, bool, error) {
	return a.enqueue(p, BuildTypeManual, PriorityHigh)
}

func (a *daemonAdapter) enqueue(p *config.ProjectConfig, bt BuildType, prio Priority) (string, bool, error) {
	job, err := a.d.EnqueueBuild(p, bt, prio)
	switch {
	case errors.Is(err, ErrProjectQueued):
		return "", true, nil
	case errors.Is(err, ErrQueueFull), errors.Is(err, ErrQueueStopped):
		return "", false, ferrors.WrapError(err, ferrors.CategoryDaemon, "build queue unavailable").Build()
	case err != nil:
		return "", false, err
	}
	return job.ID, false, nil
}

// Start binds both ports before serving on either, so a taken port fails
// startup with one aggregate error instead of a half-started daemon.
func (s *HTTPServer) Start(ctx context.Context) error {
	cfg := s.daemon.Config()

	type preBind struct {
		name string
		port int
		ln   net.Listener
	}
	binds := []preBind{
		{name: "webhook", port: cfg.Daemon.HTTP.WebhookPort},
		{name: "admin", port: cfg.Daemon.HTTP.AdminPort},
	}
	var bindErrs []error
	for i := range binds {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", binds[i].port))
		if err != nil {
			bindErrs = append(bindErrs, fmt.Errorf("%s port %d: %w", binds[i].name, binds[i].port, err))
			continue
		}
		binds[i].ln = ln
	}
	if len(bindErrs) > 0 {
		for _, b := range binds {
			if b.ln != nil {
				_ = b.ln.Close()
			}
		}
		return ferrors.WrapError(errors.Join(bindErrs...), ferrors.CategoryDaemon, "http startup failed").
			Hint("free the configured ports or change daemon.http in the config").
			Build()
	}

	s.startWebhookServer(binds[0].ln)
	s.startAdminServer(cfg, binds[1].ln)

	slog.Info("http servers started",
		slog.Int("webhook_port", cfg.Daemon.HTTP.WebhookPort),
		slog.Int("admin_port", cfg.Daemon.HTTP.AdminPort))
	return nil
}

// Stop shuts both servers down, webhook first so status stays readable while
// pushes stop being accepted.
func (s *HTTPServer) Stop(ctx context.Context) error {
	var errs []error
	if s.webhookServer != nil {
		if err := s.webhookServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("webhook server shutdown: %w", err))
		}
	}
	if s.adminServer != nil {
		if err := s.adminServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("admin server shutdown: %w", err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	slog.Info("http servers stopped")
	return nil
}

func (s *HTTPServer) startWebhookServer(ln net.Listener) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /hooks/push", s.webhook.HandlePush)

	s.webhookServer = &http.Server{
		Handler:      s.mchain(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := s.webhookServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("webhook server error", "error", err)
		}
	}()
}

func (s *HTTPServer) startAdminServer(cfg *config.Config, ln net.Listener) {
	healthPath := "/healthz"
	if cfg.Monitoring != nil && cfg.Monitoring.Health.Path != "" {
		healthPath = cfg.Monitoring.Health.Path
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+healthPath, s.daemon.HealthzHandler)
	mux.HandleFunc("GET /api/status", s.status.HandleStatus)
	mux.HandleFunc("GET /api/builds", s.builds.HandleRecent)
	mux.HandleFunc("GET /api/builds/{id}", s.builds.HandleByID)
	mux.HandleFunc("POST /api/projects/{name}/build", s.builds.HandleTrigger)

	if cfg.Monitoring != nil && cfg.Monitoring.Metrics.Enabled && s.daemon.registry != nil {
		metricsPath := cfg.Monitoring.Metrics.Path
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		mux.Handle("GET "+metricsPath, metrics.HTTPHandler(s.daemon.registry))
	}

	s.adminServer = &http.Server{
		Handler:      s.mchain(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		if err := s.adminServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin server error", "error", err)
		}
	}()
}
