package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/version"
)

// HealthStatus grades a component or the daemon as a whole.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is the result of probing one component.
type HealthCheck struct {
	Name      string       `json:"name"`
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	CheckedAt time.Time    `json:"checked_at"`
}

// HealthReport aggregates all component checks.
type HealthReport struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Version   string        `json:"version"`
	Checks    []HealthCheck `json:"checks"`
}

// Health probes every component and grades the daemon. Disabled components
// report healthy; only enabled-but-broken ones degrade the verdict.
func (d *Daemon) Health() *HealthReport {
	checks := []HealthCheck{
		d.checkLifecycle(),
		d.checkQueue(),
		d.checkWorkspace(),
		d.checkHistory(),
		d.checkNotifications(),
	}

	overall := HealthHealthy
	for _, c := range checks {
		switch c.Status {
		case HealthUnhealthy:
			overall = HealthUnhealthy
		case HealthDegraded:
			if overall == HealthHealthy {
				overall = HealthDegraded
			}
		}
	}

	return &HealthReport{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(d.StartTime()).Truncate(time.Second).String(),
		Version:   version.Version,
		Checks:    checks,
	}
}

func (d *Daemon) checkLifecycle() HealthCheck {
	check := HealthCheck{Name: "daemon", CheckedAt: time.Now().UTC()}
	switch status := d.Status(); status {
	case StatusRunning:
		check.Status = HealthHealthy
		check.Message = "running"
	case StatusStarting, StatusStopping:
		check.Status = HealthDegraded
		check.Message = string(status)
	default:
		check.Status = HealthUnhealthy
		check.Message = string(status)
	}
	return check
}

func (d *Daemon) checkQueue() HealthCheck {
	check := HealthCheck{Name: "queue", CheckedAt: time.Now().UTC()}
	if d.queue == nil {
		check.Status = HealthUnhealthy
		check.Message = "build queue not initialized"
		return check
	}
	depth := d.queue.Depth()
	capacity := d.queue.Capacity()
	check.Message = fmt.Sprintf("%d/%d queued, %d active", depth, capacity, len(d.queue.Active()))
	if depth >= capacity {
		check.Status = HealthDegraded
		check.Message = "queue full: " + check.Message
		return check
	}
	check.Status = HealthHealthy
	return check
}

func (d *Daemon) checkWorkspace() HealthCheck {
	check := HealthCheck{Name: "workspace", CheckedAt: time.Now().UTC()}
	root := d.ws.Root()
	info, err := os.Stat(root)
	switch {
	case err != nil:
		check.Status = HealthDegraded
		check.Message = fmt.Sprintf("workspace root unavailable: %v", err)
	case !info.IsDir():
		check.Status = HealthUnhealthy
		check.Message = "workspace root is not a directory"
	default:
		check.Status = HealthHealthy
		check.Message = root
	}
	return check
}

func (d *Daemon) checkHistory() HealthCheck {
	check := HealthCheck{Name: "history", CheckedAt: time.Now().UTC()}
	if d.store == nil {
		check.Status = HealthHealthy
		check.Message = "disabled"
		return check
	}
	ctx, cancel := contextWithProbeTimeout()
	defer cancel()
	if _, err := d.store.Recent(ctx, 1); err != nil {
		check.Status = HealthDegraded
		check.Message = fmt.Sprintf("store query failed: %v", err)
		return check
	}
	check.Status = HealthHealthy
	check.Message = "store reachable"
	return check
}

func contextWithProbeTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Second)
}

func (d *Daemon) checkNotifications() HealthCheck {
	check := HealthCheck{Name: "nats", CheckedAt: time.Now().UTC()}
	if d.notifier == nil {
		check.Status = HealthHealthy
		check.Message = "disabled"
		return check
	}
	if !d.notifier.Connected() {
		check.Status = HealthDegraded
		check.Message = "not connected"
		return check
	}
	check.Status = HealthHealthy
	check.Message = "connected"
	return check
}

// HealthzHandler serves the aggregated health report. Degraded still returns
// 200 so orchestrators do not restart a daemon that is merely backlogged;
// only unhealthy flips to 503.
func (d *Daemon) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	report := d.Health()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if report.Status == HealthUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if err := json.NewEncoder(w).Encode(report); err != nil {
		adapter := ferrors.NewHTTPErrorAdapter(nil)
		e := ferrors.WrapError(err, ferrors.CategoryInternal, "encode health report").Build()
		adapter.WriteErrorResponse(w, r, e)
	}
}
