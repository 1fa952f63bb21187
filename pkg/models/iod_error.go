package models

import (
	"encoding/json"
	"fmt"
)

// IodError is an error reported by the indexing API, either as the body of a
// failed HTTP response or inside an action of a job status.
type IodError struct {
	Code    int             `json:"error"`
	Reason  string          `json:"reason"`
	Detail  json.RawMessage `json:"detail,omitempty"`
	Action  string          `json:"action,omitempty"`
	Version string          `json:"version,omitempty"`
}

func (e IodError) Error() string {
	if len(e.Detail) > 0 {
		return fmt.Sprintf("iod error %d: %s (%s)", e.Code, e.Reason, string(e.Detail))
	}
	return fmt.Sprintf("iod error %d: %s", e.Code, e.Reason)
}
