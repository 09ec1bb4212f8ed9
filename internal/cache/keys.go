package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(spaceID, jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s:%s", spaceID, jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
