package history

import (
	"encoding/json"
	"time"
)

// Event types recorded per build. A build appends build_started when it is
// dequeued and build_finished with the full run report JSON as payload.
const (
	EventBuildStarted  = "build_started"
	EventBuildFinished = "build_finished"
)

// StartedPayload is the build_started event body.
type StartedPayload struct {
	Project string `json:"project"`
	Trigger string `json:"trigger"`
}

// finishedPayload is the slice of the run report JSON the projection reads.
// The full report stays in the payload forByBuildID consumers.
type finishedPayload struct {
	Project      string    `json:"project"`
	Trigger      string    `json:"trigger"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Commit       string    `json:"commit"`
	Toolchain    string    `json:"toolchain"`
	FallbackUsed bool      `json:"fallback_used"`
	Outcome      string    `json:"outcome"`
	Errors       []string  `json:"errors"`
	Publish      *struct {
		Result string `json:"result"`
	} `json:"publish"`
}

// NewBuildStarted builds the event appended when a build begins.
func NewBuildStarted(buildID, project, trigger string) (Event, error) {
	payload, err := json.Marshal(StartedPayload{Project: project, Trigger: trigger})
	if err != nil {
		return Event{}, err
	}
	return Event{BuildID: buildID, Project: project, Type: EventBuildStarted, Payload: payload}, nil
}

// NewBuildFinished builds the event appended when a build completes, with the
// serialized run report as payload.
func NewBuildFinished(buildID, project string, reportJSON []byte) Event {
	return Event{BuildID: buildID, Project: project, Type: EventBuildFinished, Payload: reportJSON}
}
