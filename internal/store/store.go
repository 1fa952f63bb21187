package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/textindex/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid submission status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	CreateSubmission(ctx context.Context, sub *models.Submission) error
	GetSubmission(ctx context.Context, jobID models.JobID, tenantID uuid.UUID) (*models.Submission, error)
	ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]*models.Submission, int, error)
	UpdateSubmissionStatus(ctx context.Context, jobID models.JobID, status models.Status, opts ...SubmissionUpdateOption) error
}

type SubmissionFilter struct {
	TenantID uuid.UUID
	Index    string
	Status   models.Status
	Page     int
	Limit    int
}

// SubmissionUpdate holds the optional fields written alongside a status change.
type SubmissionUpdate struct {
	ErrorMessage    *string
	ReferencesAdded *int
}

type SubmissionUpdateOption func(*SubmissionUpdate)

// ApplyUpdateOptions folds opts into a SubmissionUpdate.
func ApplyUpdateOptions(opts ...SubmissionUpdateOption) SubmissionUpdate {
	var u SubmissionUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

func WithErrorMessage(msg string) SubmissionUpdateOption {
	return func(p *SubmissionUpdate) {
		p.ErrorMessage = &msg
	}
}

func WithReferencesAdded(n int) SubmissionUpdateOption {
	return func(p *SubmissionUpdate) {
		p.ReferencesAdded = &n
	}
}

// NormalizePage clamps pagination to page >= 1 and 1 <= limit <= 100 (default 20).
func NormalizePage(page, limit int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	return page, limit
}
