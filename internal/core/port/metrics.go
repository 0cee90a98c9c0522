package port

import "time"

// AuthMetrics records authentication outcomes.
type AuthMetrics interface {
	LoginSucceeded()
	LoginFailed(reason string)
	AccountLocked()
	SessionExpired()
}

// Clock returns the current time. Services default to time.Now in UTC.
type Clock func() time.Time
