package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/port"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/logger"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/repository"
)

const (
	defaultPendingPageSize = 50
	// maxSaveAttempts bounds the reload-and-retry loop of system writes.
	maxSaveAttempts = 3
)

var (
	// ErrUserNotFound indicates the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken indicates a registration collided with an existing username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrPasswordPolicyViolation wraps the validator error for a rejected password.
	ErrPasswordPolicyViolation = errors.New("password does not meet policy")
	// ErrUserModified indicates the user changed between loading and saving.
	ErrUserModified = errors.New("user was modified concurrently")
)

// RegisterInput carries a self-service registration.
type RegisterInput struct {
	Username  string
	Password  string
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
}

// UserService manages operator accounts and their roles.
type UserService struct {
	users     port.UserRepository
	hasher    port.PasswordHasher
	passwords port.PasswordPolicyValidator
	events    port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewUserService(
	users port.UserRepository,
	hasher port.PasswordHasher,
	passwords port.PasswordPolicyValidator,
	events port.EventPublisher,
	logger *zap.Logger,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:     users,
		hasher:    hasher,
		passwords: passwords,
		events:    events,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *UserService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Register creates a pending account without roles. An administrator has to
// approve it before it can log in.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	username, err := domain.NormalizeUsername(in.Username)
	if err != nil {
		return domain.User{}, err
	}

	email := trimmedOrNil(in.Email)
	phone := trimmedOrNil(in.Phone)

	if s.passwords != nil {
		pwCtx := domain.PasswordContext{Username: username, Phone: phone}
		if email != nil {
			pwCtx.Email = *email
		}
		if err := s.passwords.Validate(in.Password, pwCtx); err != nil {
			return domain.User{}, fmt.Errorf("%w: %w", ErrPasswordPolicyViolation, err)
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := domain.NewUser(uuid.NewString(), username, hash, s.now())
	if err != nil {
		return domain.User{}, err
	}
	user.FirstName = trimmedOrNil(in.FirstName)
	user.LastName = trimmedOrNil(in.LastName)
	user.Email = email
	user.Phone = phone

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.User{}, ErrUsernameTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("username", logger.MaskUsername(user.Username)),
	)

	if s.events != nil {
		event := domain.UserRegisteredEvent{
			EventID:      uuid.NewString(),
			UserID:       user.ID,
			Username:     user.Username,
			Email:        user.Email,
			RegisteredAt: user.CreatedAt,
		}
		if err := s.events.PublishUserRegistered(ctx, event); err != nil {
			s.logger.Warn("publish user registered event failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	return user.Sanitized(), nil
}

// Get returns the user without its password hash.
func (s *UserService) Get(ctx context.Context, id string) (domain.User, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	return user.Sanitized(), nil
}

// ListPending lists accounts awaiting a decision, oldest first. Only administrators may call it.
func (s *UserService) ListPending(ctx context.Context, actor domain.User, limit, offset int) ([]domain.User, error) {
	if err := domain.AdminPolicy.CheckAccess(actor); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPendingPageSize
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.users.List(ctx, port.UserFilter{Approval: domain.ApprovalPending, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("list pending users: %w", err)
	}
	out := make([]domain.User, len(users))
	for i, u := range users {
		out[i] = u.Sanitized()
	}
	return out, nil
}

// AssignRole grants role to the user. Granting a held role changes nothing.
func (s *UserService) AssignRole(ctx context.Context, actor domain.User, userID, role string) (domain.User, error) {
	return s.changeRole(ctx, actor, userID, role, true)
}

// RevokeRole removes role from the user. Revoking a role that is not held changes nothing.
func (s *UserService) RevokeRole(ctx context.Context, actor domain.User, userID, role string) (domain.User, error) {
	return s.changeRole(ctx, actor, userID, role, false)
}

func (s *UserService) changeRole(ctx context.Context, actor domain.User, userID, roleName string, grant bool) (domain.User, error) {
	if err := domain.AdminPolicy.CheckAccess(actor); err != nil {
		return domain.User{}, err
	}
	role, err := domain.ParseRole(roleName)
	if err != nil {
		return domain.User{}, err
	}

	user, err := s.load(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if user.HasRole(role) == grant {
		return user.Sanitized(), nil
	}

	if grant {
		err = user.AddRole(role)
	} else {
		err = user.RemoveRole(role)
	}
	if err != nil {
		return domain.User{}, err
	}
	now := s.now()
	user.UpdatedAt = now

	if err := s.users.Save(ctx, user); err != nil {
		return domain.User{}, saveUserError("save user roles", err)
	}

	event := domain.RolesChangedEvent{
		EventID:   uuid.NewString(),
		UserID:    user.ID,
		ChangedBy: actor.Username,
		ChangedAt: now,
	}
	if grant {
		event.Added = []domain.Role{role}
	} else {
		event.Removed = []domain.Role{role}
	}

	s.logger.Info("user roles changed",
		zap.String("user_id", user.ID),
		zap.String("role", string(role)),
		zap.Bool("granted", grant),
		zap.String("changed_by", actor.ID),
	)
	if s.events != nil {
		if err := s.events.PublishRolesChanged(ctx, event); err != nil {
			s.logger.Warn("publish roles changed event failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	return user.Sanitized(), nil
}

func (s *UserService) load(ctx context.Context, id string) (domain.User, error) {
	if strings.TrimSpace(id) == "" {
		return domain.User{}, ErrUserNotFound
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return *user, nil
}

// saveUserError turns a version conflict into ErrUserModified so callers can
// reload before deciding again.
func saveUserError(op string, err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%s: %w", op, ErrUserModified)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// updateStoredUser applies change to user and saves it. On a version conflict
// it reloads the stored user and applies change again, up to maxSaveAttempts.
// It reports false without saving once change has nothing to do.
func updateStoredUser(ctx context.Context, users port.UserRepository, user domain.User, change func(*domain.User) bool) (domain.User, bool, error) {
	current := user
	for attempt := 1; ; attempt++ {
		if !change(&current) {
			return current, false, nil
		}
		err := users.Save(ctx, current)
		if err == nil {
			current.Version++
			return current, true, nil
		}
		if !errors.Is(err, repository.ErrConflict) || attempt == maxSaveAttempts {
			return domain.User{}, false, err
		}

		fresh, err := users.GetByID(ctx, current.ID)
		if err != nil {
			return domain.User{}, false, fmt.Errorf("reload user: %w", err)
		}
		current = *fresh
	}
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
