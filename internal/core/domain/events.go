package domain

import "time"

// UserRegisteredEvent represents the payload for belsign.user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Username     string
	Email        *string
	RegisteredAt time.Time
	Metadata     map[string]any
}

// UserDecisionEvent represents the payload for belsign.user.approved and belsign.user.rejected messages.
type UserDecisionEvent struct {
	EventID   string
	UserID    string
	Username  string
	Decision  ApprovalKind
	Reviewer  string
	Reason    string
	DecidedAt time.Time
	Metadata  map[string]any
}

// UserLockedEvent represents the payload for belsign.user.locked messages, emitted when
// repeated failed logins persist a rejected state.
type UserLockedEvent struct {
	EventID        string
	UserID         string
	Username       string
	FailedAttempts int
	LockedAt       time.Time
	LockedUntil    time.Time
	Metadata       map[string]any
}

// RolesChangedEvent represents the payload for belsign.user.roles.changed messages.
type RolesChangedEvent struct {
	EventID   string
	UserID    string
	Added     []Role
	Removed   []Role
	ChangedBy string
	ChangedAt time.Time
	Metadata  map[string]any
}

// PhotoDecisionEvent represents the payload for belsign.photo.approved and belsign.photo.rejected messages.
type PhotoDecisionEvent struct {
	EventID   string
	PhotoID   string
	OrderID   string
	Template  PhotoTemplate
	Decision  ApprovalStatus
	Reviewer  string
	Reason    string
	DecidedAt time.Time
	Metadata  map[string]any
}
