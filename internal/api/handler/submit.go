package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/textindex/internal/api/middleware"
	"github.com/kiranshivaraju/textindex/internal/api/response"
	"github.com/kiranshivaraju/textindex/internal/indexing"
	"github.com/kiranshivaraju/textindex/pkg/models"
	"github.com/kiranshivaraju/textindex/pkg/textindex"
)

// multipartMemory is how much of an upload is held in memory before spilling
// to temporary files.
const multipartMemory = 8 << 20

// Submitter defines the interface the submit handlers depend on.
type Submitter interface {
	Submit(ctx context.Context, req indexing.SubmitRequest) (*models.Submission, error)
}

// NewSubmitDocumentsHandler returns an http.HandlerFunc for
// POST /api/v1/indexes/{index}/documents.
func NewSubmitDocumentsHandler(svc Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Documents []json.RawMessage `json:"documents"`
			Params    textindex.Params  `json:"params"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if len(req.Documents) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "documents must contain at least one document", nil)
			return
		}

		submit(w, r, svc, indexing.SubmitRequest{
			Source:    models.SourceJSON,
			Documents: textindex.NewDocuments(req.Documents...),
			Params:    req.Params,
		})
	}
}

// NewSubmitReferenceHandler returns an http.HandlerFunc for
// POST /api/v1/indexes/{index}/references.
func NewSubmitReferenceHandler(svc Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reference string           `json:"reference"`
			Params    textindex.Params `json:"params"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Reference) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "reference is required", nil)
			return
		}

		submit(w, r, svc, indexing.SubmitRequest{
			Source:    models.SourceReference,
			Reference: req.Reference,
			Params:    req.Params,
		})
	}
}

// NewSubmitURLHandler returns an http.HandlerFunc for
// POST /api/v1/indexes/{index}/urls.
func NewSubmitURLHandler(svc Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL    string           `json:"url"`
			Params textindex.Params `json:"params"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.URL) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "url is required", nil)
			return
		}
		if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "url must be an http or https URL", nil)
			return
		}

		submit(w, r, svc, indexing.SubmitRequest{
			Source: models.SourceURL,
			URL:    req.URL,
			Params: req.Params,
		})
	}
}

// NewSubmitFileHandler returns an http.HandlerFunc for
// POST /api/v1/indexes/{index}/files. The upload is a multipart form with a
// "file" part; every other form field is forwarded as a parameter.
func NewSubmitFileHandler(svc Submitter, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE",
					"Upload exceeds the maximum allowed size", map[string]int64{"max_bytes": maxUploadBytes})
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid multipart form", nil)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "file is required", nil)
			return
		}
		defer file.Close()

		submit(w, r, svc, indexing.SubmitRequest{
			Source: models.SourceFile,
			File:   textindex.File{Name: header.Filename, Content: file},
			Params: formParams(r.MultipartForm.Value),
		})
	}
}

func submit(w http.ResponseWriter, r *http.Request, svc Submitter, req indexing.SubmitRequest) {
	tenantID, ok := mw.GetTenantID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
		return
	}
	req.TenantID = tenantID
	req.Index = chi.URLParam(r, "index")

	sub, err := svc.Submit(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Accepted(w, submissionResponse(sub))
}

// decodeBody decodes a JSON request body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return false
	}
	return true
}

// formParams converts multipart form values to parameters. Repeated fields
// keep all their values.
func formParams(values map[string][]string) textindex.Params {
	if len(values) == 0 {
		return nil
	}
	params := make(textindex.Params, len(values))
	for k, v := range values {
		if len(v) == 1 {
			params[k] = v[0]
			continue
		}
		params[k] = v
	}
	return params
}

type submission struct {
	ID        uuid.UUID     `json:"id"`
	JobID     models.JobID  `json:"job_id"`
	Index     string        `json:"index"`
	Source    string        `json:"source"`
	Target    string        `json:"target,omitempty"`
	Status    models.Status `json:"status"`
	CreatedAt string        `json:"created_at"`
}

func submissionResponse(sub *models.Submission) submission {
	return submission{
		ID:        sub.ID,
		JobID:     sub.JobID,
		Index:     sub.Index,
		Source:    sub.Source,
		Target:    sub.Target,
		Status:    sub.Status,
		CreatedAt: sub.CreatedAt.UTC().Format(timeFormat),
	}
}
