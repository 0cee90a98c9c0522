package port

import (
	"time"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
)

// FailedLoginTracker keeps per-username failure counters in memory.
// Implementations must be safe for concurrent use.
type FailedLoginTracker interface {
	Get(username string) (domain.LoginAttempts, bool)
	// RecordFailure increments the counter and returns the updated record.
	// When the count reaches maxAttempts a lockout ending at lockUntil is set.
	RecordFailure(username string, maxAttempts int, lockUntil time.Time) domain.LoginAttempts
	Reset(username string)
}
