package textindex

import (
	"context"
	"time"

	"github.com/kiranshivaraju/textindex/pkg/models"
)

// DefaultPollInterval is used by Wait when no interval is given.
const DefaultPollInterval = 2 * time.Second

// Wait polls the status of a job at a fixed interval until it is FINISHED or
// FAILED, then fetches and returns its result. The first error ends the wait;
// nothing is retried.
func Wait(ctx context.Context, c Client, jobID models.JobID, interval time.Duration, opts ...CallOption) (*JobStatus, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.GetStatus(ctx, jobID, opts...)
		if err != nil {
			return nil, err
		}
		if status.Status.Terminal() {
			return c.GetResult(ctx, jobID, opts...)
		}

		select {
		case <-ctx.Done():
			return nil, &Error{Op: "wait", Err: classifyError(ctx.Err())}
		case <-ticker.C:
		}
	}
}
