package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/textindex/internal/api/middleware"
	"github.com/kiranshivaraju/textindex/internal/api/response"
	"github.com/kiranshivaraju/textindex/internal/store"
	"github.com/kiranshivaraju/textindex/pkg/models"
	"github.com/kiranshivaraju/textindex/pkg/textindex"
)

const timeFormat = time.RFC3339

// JobTracker defines the interface the job handlers depend on.
type JobTracker interface {
	Status(ctx context.Context, tenantID uuid.UUID, jobID models.JobID) (*textindex.JobStatus, error)
	Result(ctx context.Context, tenantID uuid.UUID, jobID models.JobID) (*textindex.JobStatus, error)
	List(ctx context.Context, filter store.SubmissionFilter) ([]*models.Submission, int, error)
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
// Supports ?index=, ?status=, ?page= and ?limit=.
func NewListJobsHandler(svc JobTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		q := r.URL.Query()
		page, err := intQuery(q.Get("page"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "page must be an integer", nil)
			return
		}
		limit, err := intQuery(q.Get("limit"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be an integer", nil)
			return
		}
		page, limit = store.NormalizePage(page, limit)

		var status models.Status
		if raw := q.Get("status"); raw != "" {
			status = models.ParseStatus(raw)
			if !knownStatus(status) {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"status must be one of QUEUED, IN_PROGRESS, FINISHED, FAILED", nil)
				return
			}
		}

		subs, total, err := svc.List(r.Context(), store.SubmissionFilter{
			TenantID: tenantID,
			Index:    strings.TrimSpace(q.Get("index")),
			Status:   status,
			Page:     page,
			Limit:    limit,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		items := make([]job, len(subs))
		for i, s := range subs {
			items[i] = jobResponse(s)
		}
		response.Collection(w, items, response.NewPaginationMeta(page, limit, total))
	}
}

// NewJobStatusHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewJobStatusHandler(svc JobTracker) http.HandlerFunc {
	return pollHandler(svc.Status)
}

// NewJobResultHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}/result.
func NewJobResultHandler(svc JobTracker) http.HandlerFunc {
	return pollHandler(svc.Result)
}

func pollHandler(poll func(context.Context, uuid.UUID, models.JobID) (*textindex.JobStatus, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		jobID := models.JobID(strings.TrimSpace(chi.URLParam(r, "jobID")))
		if jobID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_JOB_ID", "Job ID is required", nil)
			return
		}

		status, err := poll(r.Context(), tenantID, jobID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		response.JSON(w, status)
	}
}

func intQuery(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func knownStatus(s models.Status) bool {
	switch s {
	case models.StatusQueued, models.StatusInProgress, models.StatusFinished, models.StatusFailed:
		return true
	}
	return false
}

type job struct {
	submission
	ReferencesAdded int     `json:"references_added"`
	ErrorMessage    *string `json:"error_message,omitempty"`
	CompletedAt     *string `json:"completed_at,omitempty"`
	UpdatedAt       string  `json:"updated_at"`
}

func jobResponse(sub *models.Submission) job {
	j := job{
		submission:      submissionResponse(sub),
		ReferencesAdded: sub.ReferencesAdded,
		ErrorMessage:    sub.ErrorMessage,
		UpdatedAt:       sub.UpdatedAt.UTC().Format(timeFormat),
	}
	if sub.CompletedAt != nil {
		completed := sub.CompletedAt.UTC().Format(timeFormat)
		j.CompletedAt = &completed
	}
	return j
}
