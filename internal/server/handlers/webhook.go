// Package handlers provides the HTTP handler for push webhook reception.
package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"git.home.luguber.info/inful/docship/internal/config"
	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/logfields"
	"git.home.luguber.info/inful/docship/internal/server/responses"
)

// maxPushPayload caps the webhook body; push events are small and anything
// larger is hostile or misconfigured.
const maxPushPayload = 1 << 20

// PushTarget is the slice of the daemon the webhook handler needs: the live
// configuration and a way to enqueue a build for a project.
type PushTarget interface {
	Config() *config.Config
	EnqueueWebhookBuild(p *config.ProjectConfig) (jobID string, coalesced bool, err error)
}

// WebhookHandlers contains HTTP handlers for push webhook reception.
type WebhookHandlers struct {
	target       PushTarget
	errorAdapter *ferrors.HTTPErrorAdapter
}

// NewWebhookHandlers constructs a new WebhookHandlers.
func NewWebhookHandlers(target PushTarget) *WebhookHandlers {
	return &WebhookHandlers{
		target:       target,
		errorAdapter: ferrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// pushEvent is the GitHub-compatible push payload. Gitea and Forgejo send the
// same shape, so one decoder covers the forges we care about.
type pushEvent struct {
	Ref        string         `json:"ref"`
	After      string         `json:"after"`
	Repository pushRepository `json:"repository"`
	HeadCommit *pushCommit    `json:"head_commit"`
}

type pushRepository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	CloneURL string `json:"clone_url"`
	HTMLURL  string `json:"html_url"`
}

type pushCommit struct {
	ID string `json:"id"`
}

// commit returns the pushed head commit, preferring head_commit over after.
func (e *pushEvent) commit() string {
	if e.HeadCommit != nil && e.HeadCommit.ID != "" {
		return e.HeadCommit.ID
	}
	return e.After
}

// HandlePush receives push events, validates their signature against the
// project's webhook secret, and enqueues a build when the pushed branch is
// the one the project tracks.
//
// Responses: 202 queued or coalesced, 200 ignored (wrong branch, tag push),
// 400 malformed payload, 401 bad signature, 404 unknown repository, 503 queue
// unavailable.
func (h *WebhookHandlers) HandlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		err := ferrors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", "POST").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPushPayload))
	if err != nil {
		derr := ferrors.ValidationError("unreadable webhook payload").
			WithContext("error", err.Error()).
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, derr)
		return
	}

	var ev pushEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		derr := ferrors.ValidationError("invalid JSON payload").
			WithContext("content_type", r.Header.Get("Content-Type")).
			WithContext("error", err.Error()).
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, derr)
		return
	}
	if ev.Ref == "" {
		derr := ferrors.ValidationError("push event missing ref").Build()
		h.errorAdapter.WriteErrorResponse(w, r, derr)
		return
	}

	cfg := h.target.Config()
	project := matchProject(cfg, &ev)
	if project == nil {
		derr := ferrors.NewError(ferrors.CategoryNotFound, "no project tracks this repository").
			WithContext("repository", ev.Repository.FullName).
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, derr)
		return
	}

	secret := cfg.EffectiveWebhookSecret(project)
	if secret != "" {
		sig := pushSignature(r)
		if !validPushSignature(body, sig, secret) {
			derr := ferrors.AuthError("webhook signature validation failed").
				WithContext("project", project.Name).
				Build()
			h.errorAdapter.WriteErrorResponse(w, r, derr)
			return
		}
	} else {
		slog.Debug("push accepted without signature validation, no webhook secret configured",
			logfields.Project(project.Name))
	}

	branch, isBranch := strings.CutPrefix(ev.Ref, "refs/heads/")
	if !isBranch {
		h.writeIgnored(w, r, project.Name, "not a branch push")
		return
	}
	if project.Source.Branch != "" && branch != project.Source.Branch {
		h.writeIgnored(w, r, project.Name, "branch not tracked")
		return
	}

	jobID, coalesced, err := h.target.EnqueueWebhookBuild(project)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	resp := &responses.EnqueueResponse{Status: "queued", Project: project.Name, JobID: jobID}
	if coalesced {
		resp.Status = "coalesced"
		resp.JobID = ""
	}
	slog.Info("push event accepted",
		logfields.Project(project.Name),
		slog.String("branch", branch),
		logfields.Commit(ev.commit()),
		slog.String("disposition", resp.Status))

	if err := writeJSONPretty(w, r, http.StatusAccepted, resp); err != nil {
		derr := ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write webhook response").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, derr)
	}
}

func (h *WebhookHandlers) writeIgnored(w http.ResponseWriter, r *http.Request, project, reason string) {
	resp := &responses.EnqueueResponse{Status: "ignored", Project: project, Reason: reason}
	if err := writeJSONPretty(w, r, http.StatusOK, resp); err != nil {
		derr := ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write webhook response").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, derr)
	}
}

// pushSignature extracts the HMAC signature header, accepting both the GitHub
// convention and our own header name.
func pushSignature(r *http.Request) string {
	if sig := r.Header.Get("X-Hub-Signature-256"); sig != "" {
		return sig
	}
	return r.Header.Get("X-Docship-Signature-256")
}

// validPushSignature checks an HMAC-SHA256 signature in sha256=<hex> form
// against the payload and secret.
func validPushSignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	calc := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(calc))
}

// matchProject resolves the pushed repository to a configured project, first
// by clone URL and then by repository name for forges that omit URLs.
func matchProject(cfg *config.Config, ev *pushEvent) *config.ProjectConfig {
	cloneURL := normalizeRepoURL(ev.Repository.CloneURL)
	htmlURL := normalizeRepoURL(ev.Repository.HTMLURL)
	for _, p := range cfg.Projects {
		if p == nil {
			continue
		}
		src := normalizeRepoURL(p.Source.URL)
		if src != "" && (src == cloneURL || src == htmlURL) {
			return p
		}
	}
	for _, p := range cfg.Projects {
		if p == nil {
			continue
		}
		if ev.Repository.FullName != "" && p.Name == ev.Repository.FullName {
			return p
		}
		if ev.Repository.Name != "" && p.Name == ev.Repository.Name {
			return p
		}
	}
	return nil
}

// normalizeRepoURL reduces a clone URL to lowercase host/path form so the
// https, ssh, and scp-like spellings of the same repository compare equal.
func normalizeRepoURL(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")
	if s == "" {
		return ""
	}

	if !strings.Contains(s, "://") {
		// scp-like syntax: git@host:org/repo
		if at := strings.Index(s, "@"); at >= 0 {
			rest := s[at+1:]
			if colon := strings.Index(rest, ":"); colon > 0 {
				return strings.ToLower(rest[:colon] + "/" + strings.TrimPrefix(rest[colon+1:], "/"))
			}
		}
		return strings.ToLower(s)
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return strings.ToLower(s)
	}
	return strings.ToLower(u.Host + strings.TrimSuffix(u.Path, "/"))
}
