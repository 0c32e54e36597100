// Package responses defines API response types used by DocShip HTTP handlers.
package responses

import (
	"time"

	"git.home.luguber.info/inful/docship/internal/history"
)

// QueueStats summarizes the build queue for the status API.
type QueueStats struct {
	Depth    int `json:"depth"`
	Capacity int `json:"capacity"`
	Workers  int `json:"workers"`
	Active   int `json:"active"`
}

// StatusResponse represents the daemon's operational status.
type StatusResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	StartTime time.Time       `json:"start_time"`
	Uptime    float64         `json:"uptime"`
	Queue     QueueStats      `json:"queue"`
	Projects  []ProjectStatus `json:"projects"`
	Timestamp time.Time       `json:"timestamp"`
}

// ProjectStatus summarizes one configured project. The publish token is
// never part of this view.
type ProjectStatus struct {
	Name          string                `json:"name"`
	SourceURL     string                `json:"source_url"`
	SourceBranch  string                `json:"source_branch,omitempty"`
	Schedule      string                `json:"schedule,omitempty"`
	Toolchain     string                `json:"toolchain,omitempty"`
	Fallback      string                `json:"fallback,omitempty"`
	PagesRepo     string                `json:"pages_repo,omitempty"`
	PagesBranch   string                `json:"pages_branch,omitempty"`
	CheckedOutRef string                `json:"checked_out_commit,omitempty"`
	LastBuild     *history.BuildSummary `json:"last_build,omitempty"`
}

// BuildListResponse represents the recent-builds API response.
type BuildListResponse struct {
	Builds []history.BuildSummary `json:"builds"`
	Count  int                    `json:"count"`
}

// EnqueueResponse acknowledges a push event or a manual trigger.
// Status is "queued", "coalesced", or "ignored".
type EnqueueResponse struct {
	Status  string `json:"status"`
	Project string `json:"project,omitempty"`
	JobID   string `json:"job_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}
