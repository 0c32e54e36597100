package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"git.home.luguber.info/inful/docship/internal/config"
	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/history"
	"git.home.luguber.info/inful/docship/internal/logfields"
	"git.home.luguber.info/inful/docship/internal/server/responses"
)

const (
	defaultBuildListLimit = 20
	maxBuildListLimit     = 200
)

// BuildHistory is the read side of the build event store these handlers serve.
type BuildHistory interface {
	Recent(limit int) []history.BuildSummary
	Get(buildID string) (history.BuildSummary, bool)
}

// BuildTrigger enqueues operator-requested builds for the trigger endpoint.
type BuildTrigger interface {
	Config() *config.Config
	EnqueueManualBuild(p *config.ProjectConfig) (jobID string, coalesced bool, err error)
}

// BuildHandlers serves build history queries and the manual trigger endpoint.
// A nil history source means the store is disabled; list queries return empty
// and lookups return 404.
type BuildHandlers struct {
	history      BuildHistory
	trigger      BuildTrigger
	errorAdapter *ferrors.HTTPErrorAdapter
}

// NewBuildHandlers creates a new build handlers instance.
func NewBuildHandlers(history BuildHistory, trigger BuildTrigger) *BuildHandlers {
	return &BuildHandlers{
		history:      history,
		trigger:      trigger,
		errorAdapter: ferrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleRecent lists recent builds, newest first. The limit query parameter
// bounds the result set.
func (h *BuildHandlers) HandleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		err := ferrors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", "GET").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	limit := defaultBuildListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			derr := ferrors.ValidationError("invalid limit parameter").
				WithContext("limit", raw).
				Build()
			h.errorAdapter.WriteErrorResponse(w, r, derr)
			return
		}
		limit = min(n, maxBuildListLimit)
	}

	var builds []history.BuildSummary
	if h.history != nil {
		builds = h.history.Recent(limit)
	}
	if builds == nil {
		builds = []history.BuildSummary{}
	}

	resp := &responses.BuildListResponse{Builds: builds, Count: len(builds)}
	if err := writeJSONPretty(w, r, http.StatusOK, resp); err != nil {
		internalErr := ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write build list response").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}

// HandleByID returns one build summary by its build ID.
func (h *BuildHandlers) HandleByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		err := ferrors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", "GET").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		derr := ferrors.ValidationError("missing build id").Build()
		h.errorAdapter.WriteErrorResponse(w, r, derr)
		return
	}

	if h.history == nil {
		derr := ferrors.NewError(ferrors.CategoryNotFound, "build history is disabled").Build()
		h.errorAdapter.WriteErrorResponse(w, r, derr)
		return
	}

	summary, ok := h.history.Get(id)
	if !ok {
		derr := ferrors.NewError(ferrors.CategoryNotFound, "unknown build").
			WithContext("build_id", id).
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, derr)
		return
	}

	if err := writeJSONPretty(w, r, http.StatusOK, &summary); err != nil {
		internalErr := ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write build response").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}

// HandleTrigger enqueues a manual build for one project.
func (h *BuildHandlers) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		err := ferrors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", "POST").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	name := r.PathValue("name")
	if name == "" {
		derr := ferrors.ValidationError("missing project name").Build()
		h.errorAdapter.WriteErrorResponse(w, r, derr)
		return
	}

	project := h.trigger.Config().Project(name)
	if project == nil {
		derr := ferrors.NewError(ferrors.CategoryNotFound, "unknown project").
			WithContext("project", name).
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, derr)
		return
	}

	jobID, coalesced, err := h.trigger.EnqueueManualBuild(project)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	resp := &responses.EnqueueResponse{Status: "queued", Project: project.Name, JobID: jobID}
	if coalesced {
		resp.Status = "coalesced"
		resp.JobID = ""
	}
	slog.Info("manual build triggered",
		logfields.Project(project.Name),
		slog.String("disposition", resp.Status))

	if err := writeJSONPretty(w, r, http.StatusAccepted, resp); err != nil {
		internalErr := ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write trigger response").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}
