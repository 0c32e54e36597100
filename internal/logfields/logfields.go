package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyJobID       = "job_id"
	KeyJobType     = "job_type"
	KeyJobPriority = "job_priority"
	KeyJobStatus   = "job_status"
	KeyProject     = "project"
	KeyStage       = "stage"
	KeyToolchain   = "toolchain"
	KeyBranch      = "branch"
	KeyCommit      = "commit"
	KeyOutcome     = "outcome"
	KeyDurationMS  = "duration_ms"
	KeyScheduleID  = "schedule_id"
	KeySchedule    = "schedule_name"
	KeyRepo        = "repository"
	KeyWorker      = "worker"
	KeyPath        = "path"
	KeyFile        = "file"
	KeyURL         = "url"
	KeyName        = "name"
	KeyMethod      = "method"
	KeyStatus      = "status"
	KeyResponseSz  = "response_size"
	KeyContentLen  = "content_length"
	KeyUserAgent   = "user_agent"
	KeyRemoteAddr  = "remote_addr"
	KeyRequestID   = "request_id"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func JobID(id string) slog.Attr        { return slog.String(KeyJobID, id) }
func JobType(t string) slog.Attr       { return slog.String(KeyJobType, t) }
func JobPriority(p int) slog.Attr      { return slog.Int(KeyJobPriority, p) }
func JobStatus(s string) slog.Attr     { return slog.String(KeyJobStatus, s) }
func Project(p string) slog.Attr       { return slog.String(KeyProject, p) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Toolchain(tc string) slog.Attr    { return slog.String(KeyToolchain, tc) }
func Branch(b string) slog.Attr        { return slog.String(KeyBranch, b) }
func Commit(c string) slog.Attr        { return slog.String(KeyCommit, c) }
func Outcome(o string) slog.Attr       { return slog.String(KeyOutcome, o) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func ScheduleID(id string) slog.Attr   { return slog.String(KeyScheduleID, id) }
func ScheduleName(n string) slog.Attr  { return slog.String(KeySchedule, n) }
func Repository(r string) slog.Attr    { return slog.String(KeyRepo, r) }
func Worker(w string) slog.Attr        { return slog.String(KeyWorker, w) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func File(f string) slog.Attr          { return slog.String(KeyFile, f) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Name(n string) slog.Attr          { return slog.String(KeyName, n) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func ResponseSize(n int) slog.Attr     { return slog.Int(KeyResponseSz, n) }
func ContentLength(n int64) slog.Attr  { return slog.Int64(KeyContentLen, n) }
func UserAgent(ua string) slog.Attr    { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(addr string) slog.Attr { return slog.String(KeyRemoteAddr, addr) }
func RequestID(id string) slog.Attr    { return slog.String(KeyRequestID, id) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
