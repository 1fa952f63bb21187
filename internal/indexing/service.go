// Package indexing submits documents to the text index API on behalf of
// gateway tenants and keeps track of the jobs it started.
package indexing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/textindex/internal/cache"
	"github.com/kiranshivaraju/textindex/internal/store"
	"github.com/kiranshivaraju/textindex/pkg/models"
	"github.com/kiranshivaraju/textindex/pkg/textindex"
)

var (
	ErrNotFound      = errors.New("submission not found")
	ErrUnknownSource = errors.New("unknown content source")
)

// maxErrorMessage bounds the action error summary kept on a submission.
const maxErrorMessage = 2000

// SubmitRequest describes one submission. Source selects which of Documents,
// File, Reference or URL is sent.
type SubmitRequest struct {
	TenantID  uuid.UUID
	Index     string
	Source    string
	Documents textindex.Documents
	File      textindex.File
	Reference string
	URL       string
	Params    textindex.Params
}

// Service submits jobs upstream and tracks them per tenant.
type Service struct {
	client    textindex.Client
	store     store.Store
	cache     cache.Cache
	statusTTL time.Duration
	resultTTL time.Duration
}

// NewService creates a new Service. Terminal statuses are cached for statusTTL
// and terminal results for resultTTL.
func NewService(client textindex.Client, st store.Store, ca cache.Cache, statusTTL, resultTTL time.Duration) *Service {
	return &Service{
		client:    client,
		store:     st,
		cache:     ca,
		statusTTL: statusTTL,
		resultTTL: resultTTL,
	}
}

// Submit sends the request upstream with the service's API key and records
// the returned job as a QUEUED submission.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.Submission, error) {
	var (
		jobID  models.JobID
		target string
		err    error
	)

	switch req.Source {
	case models.SourceJSON:
		target = strconv.Itoa(req.Documents.Len()) + " documents"
		jobID, err = s.client.SubmitJSON(ctx, "", req.Documents, req.Index, req.Params)
	case models.SourceFile:
		target = req.File.Name
		jobID, err = s.client.SubmitFile(ctx, "", req.File, req.Index, req.Params)
	case models.SourceReference:
		target = req.Reference
		jobID, err = s.client.SubmitReference(ctx, "", req.Reference, req.Index, req.Params)
	case models.SourceURL:
		target = req.URL
		jobID, err = s.client.SubmitURL(ctx, "", req.URL, req.Index, req.Params)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, req.Source)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &models.Submission{
		ID:        uuid.New(),
		TenantID:  req.TenantID,
		JobID:     jobID,
		Index:     req.Index,
		Source:    req.Source,
		Target:    target,
		Status:    models.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		slog.Error("submission accepted upstream but not recorded", "job_id", jobID, "error", err)
		return nil, fmt.Errorf("recording submission %s: %w", jobID, err)
	}

	slog.Info("submission queued", "job_id", jobID, "index", req.Index, "source", req.Source)
	return sub, nil
}

// Status returns the latest status of a tenant's job. A terminal status is
// served from cache; anything else is polled upstream.
func (s *Service) Status(ctx context.Context, tenantID uuid.UUID, jobID models.JobID) (*textindex.JobStatus, error) {
	sub, err := s.submission(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}

	body, found, err := s.cache.GetJobStatus(ctx, jobID)
	if cached, ok := decodeCached(cache.JobStatusKey(jobID), body, found, err); ok && cached.Status.Terminal() {
		return cached, nil
	}

	status, err := s.client.GetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, sub, status)
	s.cacheStatus(ctx, status)
	return status, nil
}

// Result returns the result of a tenant's job. Terminal results are cached
// for the result TTL.
func (s *Service) Result(ctx context.Context, tenantID uuid.UUID, jobID models.JobID) (*textindex.JobStatus, error) {
	sub, err := s.submission(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}

	key := cache.JobResultKey(jobID)
	body, found, err := s.cache.Get(ctx, key)
	if cached, ok := decodeCached(key, body, found, err); ok {
		return cached, nil
	}

	result, err := s.client.GetResult(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, sub, result)
	if result.Status.Terminal() {
		s.set(ctx, key, result, s.resultTTL)
		s.cacheStatus(ctx, result)
	}
	return result, nil
}

// List returns a page of the tenant's submissions and the total count.
func (s *Service) List(ctx context.Context, filter store.SubmissionFilter) ([]*models.Submission, int, error) {
	subs, total, err := s.store.ListSubmissions(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("listing submissions: %w", err)
	}
	return subs, total, nil
}

func (s *Service) submission(ctx context.Context, tenantID uuid.UUID, jobID models.JobID) (*models.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, jobID, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading submission: %w", err)
	}
	return sub, nil
}

// record writes an upstream status to the store when it moves the submission forward.
func (s *Service) record(ctx context.Context, sub *models.Submission, status *textindex.JobStatus) {
	if sub.Status == status.Status {
		return
	}

	var opts []store.SubmissionUpdateOption
	if res, ok := status.FirstResult(); ok {
		opts = append(opts, store.WithReferencesAdded(len(res.References)))
	}
	if msg := summarizeErrors(status.Errors()); msg != "" {
		opts = append(opts, store.WithErrorMessage(msg))
	}

	err := s.store.UpdateSubmissionStatus(ctx, sub.JobID, status.Status, opts...)
	switch {
	case errors.Is(err, store.ErrInvalidTransition):
		slog.Warn("ignoring status change of completed submission",
			"job_id", sub.JobID, "from", sub.Status, "to", status.Status)
	case err != nil:
		slog.Error("failed to update submission", "job_id", sub.JobID, "error", err)
	default:
		slog.Info("submission status changed", "job_id", sub.JobID, "from", sub.Status, "to", status.Status)
	}
}

func (s *Service) cacheStatus(ctx context.Context, status *textindex.JobStatus) {
	body, err := json.Marshal(status)
	if err != nil {
		slog.Error("failed to encode job status", "job_id", status.JobID, "error", err)
		return
	}
	if err := s.cache.SetJobStatus(ctx, status.JobID, body, s.statusTTL); err != nil {
		slog.Warn("failed to cache job status", "job_id", status.JobID, "error", err)
	}
}

func (s *Service) set(ctx context.Context, key string, status *textindex.JobStatus, ttl time.Duration) {
	body, err := json.Marshal(status)
	if err != nil {
		slog.Error("failed to encode job status", "job_id", status.JobID, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, body, ttl); err != nil {
		slog.Warn("failed to cache job status", "key", key, "error", err)
	}
}

func decodeCached(key string, body []byte, found bool, err error) (*textindex.JobStatus, bool) {
	if err != nil {
		slog.Warn("cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var status textindex.JobStatus
	if err := json.Unmarshal(body, &status); err != nil {
		slog.Warn("discarding unreadable cache entry", "key", key, "error", err)
		return nil, false
	}
	return &status, true
}

// summarizeErrors joins action errors into one message for the submission record.
func summarizeErrors(errs []models.IodError) string {
	if len(errs) == 0 {
		return ""
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return truncateString(strings.Join(msgs, "; "), maxErrorMessage)
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
