package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ApprovalKind enumerates the lifecycle positions of an approval state.
type ApprovalKind string

const (
	ApprovalPending  ApprovalKind = "pending"
	ApprovalApproved ApprovalKind = "approved"
	ApprovalRejected ApprovalKind = "rejected"
)

var (
	// ErrInvalidTransition matches every *TransitionError.
	ErrInvalidTransition = errors.New("invalid approval transition")
	// ErrReasonRequired indicates a rejection was attempted without a reason.
	ErrReasonRequired = errors.New("rejection reason is required")
	// ErrReviewerRequired indicates a decision was attempted without a reviewer.
	ErrReviewerRequired = errors.New("reviewer is required")
)

// TransitionError reports an approve/reject attempt on an already decided entity.
type TransitionError struct {
	From   string
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s: already %s", e.Action, e.From)
}

// Is lets errors.Is(err, ErrInvalidTransition) match transition errors.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ApprovalState is the tri-state approval lifecycle attached to users.
// The zero value is Pending.
type ApprovalState struct {
	kind      ApprovalKind
	reviewer  string
	decidedAt time.Time
	reason    string
}

// PendingState returns the initial approval state.
func PendingState() ApprovalState {
	return ApprovalState{kind: ApprovalPending}
}

// ApprovedState builds a decided Approved state.
func ApprovedState(reviewer string, at time.Time) ApprovalState {
	return ApprovalState{kind: ApprovalApproved, reviewer: reviewer, decidedAt: at.UTC()}
}

// RejectedState builds a decided Rejected state carrying the rejection reason.
func RejectedState(reviewer string, at time.Time, reason string) ApprovalState {
	return ApprovalState{kind: ApprovalRejected, reviewer: reviewer, decidedAt: at.UTC(), reason: reason}
}

// ParseApprovalState restores a persisted state. Unknown kinds are an error.
func ParseApprovalState(kind, reviewer string, decidedAt *time.Time, reason string) (ApprovalState, error) {
	var at time.Time
	if decidedAt != nil {
		at = *decidedAt
	}

	switch ApprovalKind(strings.ToLower(strings.TrimSpace(kind))) {
	case ApprovalPending, "":
		return PendingState(), nil
	case ApprovalApproved:
		return ApprovedState(reviewer, at), nil
	case ApprovalRejected:
		return RejectedState(reviewer, at, reason), nil
	default:
		return ApprovalState{}, fmt.Errorf("unknown approval state %q", kind)
	}
}

// Kind returns the state discriminator.
func (s ApprovalState) Kind() ApprovalKind {
	if s.kind == "" {
		return ApprovalPending
	}
	return s.kind
}

func (s ApprovalState) IsPending() bool  { return s.Kind() == ApprovalPending }
func (s ApprovalState) IsApproved() bool { return s.Kind() == ApprovalApproved }
func (s ApprovalState) IsRejected() bool { return s.Kind() == ApprovalRejected }

// IsSystemLock reports whether the state is a rejection issued by the service
// itself rather than a reviewer.
func (s ApprovalState) IsSystemLock() bool {
	return s.IsRejected() && s.reviewer == SystemReviewer
}

// Reviewer returns who decided the state; empty while pending.
func (s ApprovalState) Reviewer() string { return s.reviewer }

// DecidedAt returns when the state was decided; zero while pending.
func (s ApprovalState) DecidedAt() time.Time { return s.decidedAt }

// Reason returns the rejection reason; empty unless rejected.
func (s ApprovalState) Reason() string { return s.reason }

// Approve transitions Pending to Approved. Decided states return a *TransitionError.
func (s ApprovalState) Approve(reviewer string, at time.Time) (ApprovalState, error) {
	if !s.IsPending() {
		return s, &TransitionError{From: string(s.Kind()), Action: "approve"}
	}
	if strings.TrimSpace(reviewer) == "" {
		return s, ErrReviewerRequired
	}
	return ApprovedState(reviewer, at), nil
}

// Reject transitions Pending to Rejected. Decided states return a *TransitionError.
func (s ApprovalState) Reject(reviewer string, at time.Time, reason string) (ApprovalState, error) {
	if !s.IsPending() {
		return s, &TransitionError{From: string(s.Kind()), Action: "reject"}
	}
	if strings.TrimSpace(reviewer) == "" {
		return s, ErrReviewerRequired
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return s, ErrReasonRequired
	}
	return RejectedState(reviewer, at, reason), nil
}

func (s ApprovalState) String() string {
	if s.IsRejected() && s.reason != "" {
		return fmt.Sprintf("%s(%s)", s.Kind(), s.reason)
	}
	return string(s.Kind())
}
