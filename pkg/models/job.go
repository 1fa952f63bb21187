package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JobID identifies an asynchronous job on the indexing API. It is issued by the
// server on submission and used as the key for status and result polling.
type JobID string

func (id JobID) String() string { return string(id) }

// Status is a job or action lifecycle state as reported by the server.
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinished   Status = "FINISHED"
	StatusFailed     Status = "FAILED"
)

// ParseStatus normalises a wire status ("finished", "in progress") to its
// upper-case constant form. Unknown values are kept so newer server states
// still parse.
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return Status(strings.ToUpper(s))
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusFailed
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("status must be a string: %w", err)
	}
	*s = ParseStatus(raw)
	return nil
}

// JobStatus is the body returned by the job status and job result endpoints.
// T is the per-API result payload carried by each action.
type JobStatus[T any] struct {
	JobID   JobID       `json:"jobID"`
	Status  Status      `json:"status"`
	Actions []Action[T] `json:"actions"`
}

// Action is one recorded step of a job's execution.
type Action[T any] struct {
	Action  string     `json:"action"`
	Status  Status     `json:"status"`
	Errors  []IodError `json:"errors"`
	Result  *T         `json:"result"`
	Version string     `json:"version"`
}

// Errors flattens the errors reported by every action, in order.
func (j *JobStatus[T]) Errors() []IodError {
	var out []IodError
	for _, a := range j.Actions {
		out = append(out, a.Errors...)
	}
	return out
}

// FirstResult returns the result of the first action that carries one.
func (j *JobStatus[T]) FirstResult() (*T, bool) {
	for _, a := range j.Actions {
		if a.Result != nil {
			return a.Result, true
		}
	}
	return nil, false
}
