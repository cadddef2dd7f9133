package session

import (
	"time"

	"github.com/google/uuid"
)

// NewSessionID generates a sortable session id: timestamp plus a short
// random suffix so concurrent debates started in the same second cannot
// collide. The result always passes session id validation.
func NewSessionID(now time.Time) string {
	return now.Format("20060102-150405") + "-" + uuid.NewString()[:8]
}
