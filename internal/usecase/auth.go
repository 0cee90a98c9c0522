package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/port"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/config"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/logger"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/repository"
)

const (
	DefaultMaxFailedAttempts  = 5
	DefaultLockoutDuration    = 15 * time.Minute
	DefaultSessionIdleTimeout = 30 * time.Minute
)

var (
	// ErrAuthenticationFailed is the single error callers see for any rejected login.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrNotAuthenticated indicates there is no live operator session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// AuthFailureReason classifies a rejected login for logs and metrics.
type AuthFailureReason string

const (
	ReasonInvalidInput AuthFailureReason = "invalid_input"
	ReasonLockedOut    AuthFailureReason = "locked_out"
	ReasonUnknownUser  AuthFailureReason = "unknown_user"
	ReasonNotApproved  AuthFailureReason = "not_approved"
	ReasonRejected     AuthFailureReason = "rejected"
	ReasonBadPassword  AuthFailureReason = "bad_password"
)

// AuthError reports why a login was rejected. It matches ErrAuthenticationFailed.
type AuthError struct {
	Reason AuthFailureReason
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAuthenticationFailed, e.Reason)
}

func (e *AuthError) Unwrap() error {
	return ErrAuthenticationFailed
}

var failureMessages = map[AuthFailureReason]string{
	ReasonInvalidInput: "login rejected: username or password missing",
	ReasonLockedOut:    "login rejected: account temporarily locked",
	ReasonUnknownUser:  "login rejected: unknown username",
	ReasonNotApproved:  "login rejected: account awaiting approval",
	ReasonRejected:     "login rejected: account rejected",
	ReasonBadPassword:  "login rejected: password mismatch",
}

// AuthService authenticates operators, protects accounts against brute force
// and holds the single operator session of this process.
type AuthService struct {
	cfg     config.AuthSettings
	users   port.UserRepository
	hasher  port.PasswordHasher
	tracker port.FailedLoginTracker
	events  port.EventPublisher
	metrics port.AuthMetrics
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time

	mu      sync.Mutex
	session *domain.Session
}

// NewAuthService constructs an AuthService. Zero settings fall back to the defaults.
func NewAuthService(
	cfg config.AuthSettings,
	users port.UserRepository,
	hasher port.PasswordHasher,
	tracker port.FailedLoginTracker,
	events port.EventPublisher,
	logger *zap.Logger,
) *AuthService {
	if cfg.MaxFailedAttempts <= 0 {
		cfg.MaxFailedAttempts = DefaultMaxFailedAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = DefaultLockoutDuration
	}
	if cfg.SessionIdleTimeout <= 0 {
		cfg.SessionIdleTimeout = DefaultSessionIdleTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthService{
		cfg:     cfg,
		users:   users,
		hasher:  hasher,
		tracker: tracker,
		events:  events,
		logger:  logger,
		tracer:  otel.Tracer("github.com/Travinkel/belsign-photo-doc-sub006/internal/usecase"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithMetrics attaches authentication metrics.
func (s *AuthService) WithMetrics(metrics port.AuthMetrics) *AuthService {
	s.metrics = metrics
	return s
}

// Settings returns the effective settings after defaults were applied.
func (s *AuthService) Settings() config.AuthSettings {
	return s.cfg
}

// Authenticate never fails loudly: every rejection, infrastructure error or
// panic yields (zero, false). On success the operator session is started.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (user domain.User, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("authentication aborted by panic", zap.Any("panic", r))
			user, ok = domain.User{}, false
		}
	}()

	authenticated, err := s.Login(ctx, username, password)
	if err != nil {
		return domain.User{}, false
	}
	return authenticated, true
}

// Login authenticates and starts the operator session. Business rejections are
// *AuthError values; anything else is an infrastructure error.
//
// Checks run in order: blank input, lockout, lookup, approval, password.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	name := strings.TrimSpace(username)
	if name == "" || strings.TrimSpace(password) == "" {
		return domain.User{}, s.reject(span, name, ReasonInvalidInput)
	}

	now := s.now()
	if attempts, found := s.tracker.Get(name); found {
		if attempts.LockedAt(now) {
			return domain.User{}, s.reject(span, name, ReasonLockedOut,
				zap.Time("locked_until", *attempts.LockedUntil))
		}
		if attempts.LockoutElapsed(now) {
			s.tracker.Reset(name)
		}
	}

	user, err := s.users.FindByUsername(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, s.recordFailure(ctx, span, name, nil, ReasonUnknownUser)
		}
		return domain.User{}, s.infraError(span, name, fmt.Errorf("lookup user: %w", err))
	}

	if user.LockExpired(now, s.cfg.LockoutDuration) {
		if user, err = s.releaseLock(ctx, user, now); err != nil {
			return domain.User{}, s.infraError(span, name, fmt.Errorf("release expired lock: %w", err))
		}
	}

	switch {
	case user.Approval.IsRejected():
		return domain.User{}, s.recordFailure(ctx, span, name, user, ReasonRejected)
	case !user.Approval.IsApproved():
		return domain.User{}, s.recordFailure(ctx, span, name, user, ReasonNotApproved)
	}

	matched, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return domain.User{}, s.infraError(span, name, fmt.Errorf("verify password: %w", err))
	}
	if !matched {
		return domain.User{}, s.recordFailure(ctx, span, name, user, ReasonBadPassword)
	}

	s.tracker.Reset(name)
	sanitized := user.Sanitized()

	s.mu.Lock()
	s.session = &domain.Session{User: sanitized, StartedAt: now, LastActivity: now}
	s.mu.Unlock()

	span.SetAttributes(attribute.String("auth.outcome", "success"))
	if s.metrics != nil {
		s.metrics.LoginSucceeded()
	}
	s.logger.Info("operator logged in",
		zap.String("user_id", sanitized.ID),
		zap.String("username", logger.MaskUsername(name)),
		zap.Strings("roles", sanitized.Roles.Strings()),
	)

	return sanitized, nil
}

func (s *AuthService) reject(span trace.Span, name string, reason AuthFailureReason, fields ...zap.Field) error {
	span.SetAttributes(attribute.String("auth.outcome", string(reason)))
	if s.metrics != nil {
		s.metrics.LoginFailed(string(reason))
	}
	s.logger.Warn(failureMessages[reason],
		append([]zap.Field{zap.String("username", logger.MaskUsername(name))}, fields...)...,
	)
	return &AuthError{Reason: reason}
}

func (s *AuthService) infraError(span trace.Span, name string, err error) error {
	span.RecordError(err)
	span.SetAttributes(attribute.String("auth.outcome", "error"))
	if s.metrics != nil {
		s.metrics.LoginFailed("error")
	}
	s.logger.Error("authentication error",
		zap.String("username", logger.MaskUsername(name)),
		zap.Error(err),
	)
	return err
}

// recordFailure counts a failed attempt and locks the account on reaching the threshold.
func (s *AuthService) recordFailure(ctx context.Context, span trace.Span, name string, user *domain.User, reason AuthFailureReason) error {
	now := s.now()
	attempts := s.tracker.RecordFailure(name, s.cfg.MaxFailedAttempts, now.Add(s.cfg.LockoutDuration))

	err := s.reject(span, name, reason, zap.Int("failed_attempts", attempts.Count))
	if attempts.Count == s.cfg.MaxFailedAttempts && attempts.LockedUntil != nil {
		s.lockAccount(ctx, name, user, attempts, now)
	}
	return err
}

func (s *AuthService) lockAccount(ctx context.Context, name string, user *domain.User, attempts domain.LoginAttempts, now time.Time) {
	if s.metrics != nil {
		s.metrics.AccountLocked()
	}
	s.logger.Warn("account locked after repeated failed logins",
		zap.String("username", logger.MaskUsername(name)),
		zap.Int("failed_attempts", attempts.Count),
		zap.Time("locked_until", *attempts.LockedUntil),
	)

	if user == nil {
		return
	}

	reason := fmt.Sprintf("account locked after %d failed login attempts", s.cfg.MaxFailedAttempts)
	locked, changed, err := updateStoredUser(ctx, s.users, *user, func(u *domain.User) bool {
		return u.Lock(now, reason)
	})
	if err != nil {
		s.logger.Error("persist account lock failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	if !changed || s.events == nil {
		return
	}

	event := domain.UserLockedEvent{
		EventID:        uuid.NewString(),
		UserID:         locked.ID,
		Username:       locked.Username,
		FailedAttempts: attempts.Count,
		LockedAt:       now,
		LockedUntil:    *attempts.LockedUntil,
	}
	if err := s.events.PublishUserLocked(ctx, event); err != nil {
		s.logger.Warn("publish user locked event failed", zap.String("user_id", locked.ID), zap.Error(err))
	}
}

// releaseLock restores approval of an account whose automatic lock is older
// than the lockout window and returns the stored user.
func (s *AuthService) releaseLock(ctx context.Context, user *domain.User, now time.Time) (*domain.User, error) {
	released, changed, err := updateStoredUser(ctx, s.users, *user, func(u *domain.User) bool {
		return u.LockExpired(now, s.cfg.LockoutDuration) && u.Unlock(domain.SystemReviewer, now)
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return &released, nil
	}

	s.logger.Info("account lock expired",
		zap.String("user_id", released.ID),
		zap.Duration("lockout", s.cfg.LockoutDuration),
	)
	if s.events != nil {
		event := domain.UserDecisionEvent{
			EventID:   uuid.NewString(),
			UserID:    released.ID,
			Username:  released.Username,
			Decision:  domain.ApprovalApproved,
			Reviewer:  domain.SystemReviewer,
			DecidedAt: now,
		}
		if err := s.events.PublishUserDecision(ctx, event); err != nil {
			s.logger.Warn("publish user decision event failed", zap.String("user_id", released.ID), zap.Error(err))
		}
	}
	return &released, nil
}

// CurrentUser returns the session user and refreshes its activity. A session
// idle for longer than the timeout is ended instead. The user is re-read from
// the repository so role changes apply at once; a user that is gone or no
// longer approved ends the session.
func (s *AuthService) CurrentUser(ctx context.Context) (domain.User, bool) {
	sessionUser, ok := s.touchSession()
	if !ok {
		return domain.User{}, false
	}

	stored, err := s.users.GetByID(ctx, sessionUser.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("session user lookup failed", zap.String("user_id", sessionUser.ID), zap.Error(err))
		return domain.User{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.session.User.ID != sessionUser.ID {
		return domain.User{}, false
	}
	if err != nil || !stored.Approval.IsApproved() {
		s.logger.Info("session ended: account no longer approved", zap.String("user_id", sessionUser.ID))
		s.session = nil
		return domain.User{}, false
	}

	s.session.User = stored.Sanitized()
	return s.session.User.Sanitized(), true
}

// touchSession expires an idle session or refreshes its activity.
func (s *AuthService) touchSession() (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return domain.User{}, false
	}

	now := s.now()
	if s.session.Expired(now, s.cfg.SessionIdleTimeout) {
		s.logger.Info("session expired",
			zap.String("user_id", s.session.User.ID),
			zap.Duration("idle", s.session.IdleFor(now)),
		)
		s.session = nil
		if s.metrics != nil {
			s.metrics.SessionExpired()
		}
		return domain.User{}, false
	}

	s.session.Touch(now)
	return s.session.User, true
}

// IsLoggedIn applies the same expiry check and refresh as CurrentUser.
func (s *AuthService) IsLoggedIn(ctx context.Context) bool {
	_, ok := s.CurrentUser(ctx)
	return ok
}

// Logout ends the session. Calling it without a session is a no-op.
func (s *AuthService) Logout(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return
	}
	s.logger.Info("operator logged out", zap.String("user_id", s.session.User.ID))
	s.session = nil
}

// Session returns a copy of the live session without refreshing it.
func (s *AuthService) Session(_ context.Context) (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.session.Expired(s.now(), s.cfg.SessionIdleTimeout) {
		return domain.Session{}, false
	}
	snapshot := *s.session
	snapshot.User = s.session.User.Sanitized()
	return snapshot, true
}
