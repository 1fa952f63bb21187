package cache

import (
	"fmt"

	"github.com/kiranshivaraju/textindex/pkg/models"
)

func JobStatusKey(jobID models.JobID) string {
	return fmt.Sprintf("textindex:status:%s", jobID)
}

func JobResultKey(jobID models.JobID) string {
	return fmt.Sprintf("textindex:result:%s", jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
