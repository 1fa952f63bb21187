package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/textindex/internal/api/response"
	"github.com/kiranshivaraju/textindex/internal/indexing"
	"github.com/kiranshivaraju/textindex/pkg/textindex"
)

// statusClientClosedRequest is sent when the caller went away before the
// upstream call completed. Nobody reads it; it keeps access logs honest.
const statusClientClosedRequest = 499

// writeServiceError maps indexing and upstream API errors to gateway responses.
func writeServiceError(w http.ResponseWriter, err error) {
	var upstream *textindex.Error
	errors.As(err, &upstream)

	switch {
	case errors.Is(err, indexing.ErrNotFound):
		response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
	case errors.Is(err, indexing.ErrUnknownSource):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, textindex.ErrInvalidRequest), errors.Is(err, textindex.ErrMissingAPIKey):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, textindex.ErrCanceled), errors.Is(err, context.Canceled):
		slog.Debug("request canceled by client", "error", err)
		response.Error(w, statusClientClosedRequest, "REQUEST_CANCELED", "The request was canceled", nil)
	case errors.Is(err, textindex.ErrTimeout):
		response.Error(w, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT",
			"The indexing API did not respond in time", nil)
	case errors.Is(err, textindex.ErrServer) && upstream != nil && upstream.StatusCode < http.StatusInternalServerError:
		response.Error(w, http.StatusBadGateway, "UPSTREAM_REJECTED",
			"The indexing API rejected the request", detailsOf(upstream))
	case errors.Is(err, textindex.ErrServer), errors.Is(err, textindex.ErrInvalidResponse):
		slog.Warn("indexing API error", "error", err)
		response.Error(w, http.StatusBadGateway, "UPSTREAM_ERROR",
			"The indexing API returned an error", detailsOf(upstream))
	case errors.Is(err, textindex.ErrUnreachable):
		slog.Warn("indexing API unreachable", "error", err)
		response.Error(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE",
			"The indexing API is not reachable", nil)
	default:
		slog.Error("request failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

func detailsOf(e *textindex.Error) any {
	if e == nil || len(e.Details) == 0 {
		return nil
	}
	return e.Details
}
