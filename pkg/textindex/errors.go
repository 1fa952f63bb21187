package textindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/kiranshivaraju/textindex/pkg/models"
)

// Sentinel errors wrapped by Error. Use errors.Is to classify a failure.
var (
	ErrUnreachable     = errors.New("indexing api unreachable")
	ErrTimeout         = errors.New("indexing api timeout")
	ErrCanceled        = errors.New("indexing api call canceled")
	ErrServer          = errors.New("indexing api returned an error")
	ErrInvalidResponse = errors.New("indexing api returned an invalid response")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrMissingAPIKey   = errors.New("no api key configured or supplied")
)

// Error is the only error type returned by Client methods. Details carries the
// errors reported by the server, when the failed response contained any.
type Error struct {
	Op         string
	StatusCode int
	Details    []models.IodError
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "textindex %s: %v", e.Op, e.Err)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	for _, d := range e.Details {
		b.WriteString("; ")
		b.WriteString(d.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %w", ErrUnreachable, err)
}

// parseIodErrors extracts server errors from a response body. The API reports
// either a single error object or a list of them; anything else yields nil.
func parseIodErrors(body []byte) []models.IodError {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var list []models.IodError
		if err := json.Unmarshal(body, &list); err != nil {
			return nil
		}
		var out []models.IodError
		for _, e := range list {
			if e.Code != 0 || e.Reason != "" {
				out = append(out, e)
			}
		}
		return out
	}

	var single models.IodError
	if err := json.Unmarshal(body, &single); err != nil {
		return nil
	}
	if single.Code == 0 && single.Reason == "" {
		return nil
	}
	return []models.IodError{single}
}
