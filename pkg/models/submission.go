// Package models contains the job model of the indexing API and the records
// the gateway keeps about its own tenants, keys and submissions.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Content sources accepted by the add-to-text-index API. Exactly one is used per submission.
const (
	SourceJSON      = "json"
	SourceFile      = "file"
	SourceReference = "reference"
	SourceURL       = "url"
)

// Submission tracks a job the gateway submitted on behalf of a tenant. The API
// returns a job_id on POST /api/v1/indexes/{index}/...; the caller polls
// GET /api/v1/jobs/{job_id} until status is FINISHED or FAILED.
type Submission struct {
	ID              uuid.UUID  `db:"id"               json:"id"`
	TenantID        uuid.UUID  `db:"tenant_id"        json:"tenant_id"`
	JobID           JobID      `db:"job_id"           json:"job_id"`
	Index           string     `db:"index_name"       json:"index"`
	Source          string     `db:"source"           json:"source"`
	Target          string     `db:"target"           json:"target,omitempty"`
	Status          Status     `db:"status"           json:"status"`
	ReferencesAdded int        `db:"references_added" json:"references_added"`
	ErrorMessage    *string    `db:"error_message"    json:"error_message,omitempty"`
	CompletedAt     *time.Time `db:"completed_at"     json:"completed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"       json:"updated_at"`
}
