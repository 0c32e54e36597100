package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/docship/internal/config"
	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/history"
	"git.home.luguber.info/inful/docship/internal/server/responses"
	"git.home.luguber.info/inful/docship/internal/version"
)

// StatusSource is the slice of the daemon the status handler reads from.
type StatusSource interface {
	Config() *config.Config
	Status() string
	StartTime() time.Time
	QueueStats() responses.QueueStats
	CheckoutHead(project string) string
	LastFinished(project string) (history.BuildSummary, bool)
}

// StatusHandlers serves the daemon status endpoint.
type StatusHandlers struct {
	source       StatusSource
	errorAdapter *ferrors.HTTPErrorAdapter
}

// NewStatusHandlers creates a new status handlers instance.
func NewStatusHandlers(source StatusSource) *StatusHandlers {
	return &StatusHandlers{
		source:       source,
		errorAdapter: ferrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleStatus reports daemon state, queue stats, and a per-project summary.
// Publish tokens and webhook secrets never appear in this view.
func (h *StatusHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		err := ferrors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", "GET").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	cfg := h.source.Config()
	start := h.source.StartTime()

	resp := &responses.StatusResponse{
		Status:    h.source.Status(),
		Version:   version.Version,
		StartTime: start,
		Uptime:    time.Since(start).Seconds(),
		Queue:     h.source.QueueStats(),
		Projects:  h.projectStatuses(cfg),
		Timestamp: time.Now().UTC(),
	}

	if err := writeJSONPretty(w, r, http.StatusOK, resp); err != nil {
		internalErr := ferrors.WrapError(err, ferrors.CategoryInternal, "failed to encode daemon status").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}

func (h *StatusHandlers) projectStatuses(cfg *config.Config) []responses.ProjectStatus {
	statuses := make([]responses.ProjectStatus, 0, len(cfg.Projects))
	for _, p := range cfg.Projects {
		if p == nil {
			continue
		}
		ps := responses.ProjectStatus{
			Name:          p.Name,
			SourceURL:     p.Source.URL,
			SourceBranch:  p.Source.Branch,
			Schedule:      p.Schedule,
			Toolchain:     p.Toolchain.Primary,
			Fallback:      p.Toolchain.Fallback,
			PagesRepo:     p.Publish.Repository,
			PagesBranch:   p.Publish.Branch,
			CheckedOutRef: h.source.CheckoutHead(p.Name),
		}
		if last, ok := h.source.LastFinished(p.Name); ok {
			ps.LastBuild = &last
		}
		statuses = append(statuses, ps)
	}
	return statuses
}
