// Package tasks implements the asynchronous job pipeline: submission from the
// web process, transport over a Broker, execution by a Worker pool and the
// Redis result store that status polling reads from.
package tasks

import (
	"encoding/json"
	"errors"
	"time"
)

// Job types accepted by Submit.
const (
	TypeHello                = "hello"
	TypeInterfaceDescription = "sh_int_desc"
)

// InterfaceDescriptionCommand is the only command sh_int_desc jobs run.
const InterfaceDescriptionCommand = "show interface description"

var (
	ErrMissingField        = errors.New("missing task type or data")
	ErrUnsupportedTaskType = errors.New("unsupported task type")
	ErrForbidden           = errors.New("forbidden")
	ErrNoMessage           = errors.New("no message available")
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusStarted Status = "STARTED"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Ready reports whether s is terminal.
func (s Status) Ready() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Message is what travels on the job queue. It is never modified after publishing.
type Message struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Data        json.RawMessage `json:"data"`
	Host        string          `json:"host,omitempty"`
	Command     string          `json:"command,omitempty"`
	Credential  string          `json:"credential,omitempty"`
	Submitter   string          `json:"submitter"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// Result is the record kept in the result store for one job.
type Result struct {
	TaskID   string          `json:"task_id"`
	Type     string          `json:"type,omitempty"`
	Status   Status          `json:"status"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	DateDone *time.Time      `json:"date_done,omitempty"`
}

// Caller is the authenticated identity submitting a job, taken from the session.
type Caller struct {
	Username       string
	SealedPassword string
	Roles          []string
}
