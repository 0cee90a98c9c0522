package domain

import "time"

// Session is the single operator session held by the authentication service.
type Session struct {
	User         User
	StartedAt    time.Time
	LastActivity time.Time
}

// IdleFor returns how long the session has been idle at the supplied moment.
func (s Session) IdleFor(at time.Time) time.Duration {
	return at.Sub(s.LastActivity)
}

// Expired reports whether the session has been idle for longer than timeout.
// A session idle for exactly timeout is still valid.
func (s Session) Expired(at time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	return s.IdleFor(at) > timeout
}

// Touch refreshes the activity timestamp.
func (s *Session) Touch(at time.Time) {
	s.LastActivity = at
}

// LoginAttempts is the per-username failure record used for brute-force protection.
// It lives in memory only.
type LoginAttempts struct {
	Username    string
	Count       int
	LockedUntil *time.Time
}

// LockedAt reports whether the lockout window is still open at the supplied moment.
func (a LoginAttempts) LockedAt(at time.Time) bool {
	return a.LockedUntil != nil && at.Before(*a.LockedUntil)
}

// LockoutElapsed reports whether a lockout was set and has since ended.
func (a LoginAttempts) LockoutElapsed(at time.Time) bool {
	return a.LockedUntil != nil && !at.Before(*a.LockedUntil)
}
