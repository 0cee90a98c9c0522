package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/port"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/repository"
)

// ErrIncompletePhotoSet indicates an order cannot be approved with its current photos.
var ErrIncompletePhotoSet = errors.New("photo set incomplete")

// IncompletePhotoSetError carries the report explaining what is missing.
type IncompletePhotoSetError struct {
	Report domain.QualityReport
}

func (e *IncompletePhotoSetError) Error() string {
	return fmt.Sprintf("%s: %d of %d photos, %d templates missing, %d photos unannotated",
		ErrIncompletePhotoSet, e.Report.PhotoCount, e.Report.RequiredCount,
		len(e.Report.MissingTemplates), len(e.Report.UnannotatedPhotos))
}

func (e *IncompletePhotoSetError) Unwrap() error {
	return ErrIncompletePhotoSet
}

// ReviewService records approval decisions on accounts and photos.
type ReviewService struct {
	users   port.UserRepository
	orders  port.OrderRepository
	photos  port.PhotoRepository
	objects port.PhotoObjectStore
	events  port.EventPublisher
	tracker port.FailedLoginTracker
	policy  domain.PhotoQualityPolicy
	logger  *zap.Logger
	now     func() time.Time
}

func NewReviewService(
	users port.UserRepository,
	orders port.OrderRepository,
	photos port.PhotoRepository,
	objects port.PhotoObjectStore,
	events port.EventPublisher,
	logger *zap.Logger,
) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		users:   users,
		orders:  orders,
		photos:  photos,
		objects: objects,
		events:  events,
		policy:  domain.NewPhotoQualityPolicy(),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *ReviewService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithLoginTracker lets UnlockUser clear the in-memory lockout as well.
func (s *ReviewService) WithLoginTracker(tracker port.FailedLoginTracker) *ReviewService {
	s.tracker = tracker
	return s
}

// ApproveUser approves a pending account.
func (s *ReviewService) ApproveUser(ctx context.Context, actor domain.User, userID string) (domain.User, error) {
	return s.decideUser(ctx, actor, userID, domain.ApprovalApproved, "")
}

// RejectUser rejects a pending account. A reason is required.
func (s *ReviewService) RejectUser(ctx context.Context, actor domain.User, userID, reason string) (domain.User, error) {
	return s.decideUser(ctx, actor, userID, domain.ApprovalRejected, reason)
}

func (s *ReviewService) decideUser(ctx context.Context, actor domain.User, userID string, decision domain.ApprovalKind, reason string) (domain.User, error) {
	if err := domain.AdminPolicy.CheckAccess(actor); err != nil {
		return domain.User{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	now := s.now()
	if decision == domain.ApprovalApproved {
		err = user.Approve(actor.Username, now)
	} else {
		err = user.Reject(actor.Username, now, reason)
	}
	if err != nil {
		return domain.User{}, err
	}

	if err := s.users.Save(ctx, *user); err != nil {
		return domain.User{}, saveUserError("save user decision", err)
	}

	s.logger.Info("user decision recorded",
		zap.String("user_id", user.ID),
		zap.String("decision", string(decision)),
		zap.String("reviewer_id", actor.ID),
	)
	s.publishUserDecision(ctx, *user, actor.Username, now)

	return user.Sanitized(), nil
}

// UnlockUser lifts an automatic lock after repeated failed logins and restores
// the approved state. Only administrators may call it; a user that is not
// system-locked returns a *domain.TransitionError.
func (s *ReviewService) UnlockUser(ctx context.Context, actor domain.User, userID string) (domain.User, error) {
	if err := domain.AdminPolicy.CheckAccess(actor); err != nil {
		return domain.User{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	now := s.now()
	if !user.Unlock(actor.Username, now) {
		return domain.User{}, &domain.TransitionError{From: string(user.Approval.Kind()), Action: "unlock"}
	}
	if err := s.users.Save(ctx, *user); err != nil {
		return domain.User{}, saveUserError("save user unlock", err)
	}
	if s.tracker != nil {
		s.tracker.Reset(user.Username)
	}

	s.logger.Info("user unlocked",
		zap.String("user_id", user.ID),
		zap.String("reviewer_id", actor.ID),
	)
	s.publishUserDecision(ctx, *user, actor.Username, now)

	return user.Sanitized(), nil
}

func (s *ReviewService) publishUserDecision(ctx context.Context, user domain.User, reviewer string, at time.Time) {
	if s.events == nil {
		return
	}
	event := domain.UserDecisionEvent{
		EventID:   uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		Decision:  user.Approval.Kind(),
		Reviewer:  reviewer,
		Reason:    user.Approval.Reason(),
		DecidedAt: at,
	}
	if err := s.events.PublishUserDecision(ctx, event); err != nil {
		s.logger.Warn("publish user decision event failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

// ApprovePhoto approves a pending photo.
func (s *ReviewService) ApprovePhoto(ctx context.Context, actor domain.User, photoID string) (domain.PhotoDocument, error) {
	if err := domain.QAPolicy.CheckAccess(actor); err != nil {
		return domain.PhotoDocument{}, err
	}
	photo, err := loadPhoto(ctx, s.photos, photoID)
	if err != nil {
		return domain.PhotoDocument{}, err
	}
	if err := s.approvePhoto(ctx, actor, &photo); err != nil {
		return domain.PhotoDocument{}, err
	}
	return photo, nil
}

// RejectPhoto rejects a pending photo. A reason is required.
func (s *ReviewService) RejectPhoto(ctx context.Context, actor domain.User, photoID, reason string) (domain.PhotoDocument, error) {
	if err := domain.QAPolicy.CheckAccess(actor); err != nil {
		return domain.PhotoDocument{}, err
	}
	photo, err := loadPhoto(ctx, s.photos, photoID)
	if err != nil {
		return domain.PhotoDocument{}, err
	}

	now := s.now()
	if err := photo.Reject(actor.Username, now, reason); err != nil {
		return domain.PhotoDocument{}, err
	}
	if err := s.storeDecision(ctx, actor, photo, "reject"); err != nil {
		return domain.PhotoDocument{}, err
	}
	return photo, nil
}

// ApproveOrder approves every pending photo of the order once the photo set
// satisfies the order's requirements. An incomplete set returns an
// *IncompletePhotoSetError and changes nothing.
func (s *ReviewService) ApproveOrder(ctx context.Context, actor domain.User, orderID string) (domain.QualityReport, []domain.PhotoDocument, error) {
	if err := domain.QAPolicy.CheckAccess(actor); err != nil {
		return domain.QualityReport{}, nil, err
	}
	order, err := loadOrder(ctx, s.orders, orderID)
	if err != nil {
		return domain.QualityReport{}, nil, err
	}
	photos, err := s.photos.ListByOrder(ctx, order.ID)
	if err != nil {
		return domain.QualityReport{}, nil, fmt.Errorf("list order photos: %w", err)
	}

	report := s.policy.Evaluate(order, photos)
	if !report.Complete() {
		s.logger.Info("order approval refused: photo set incomplete",
			zap.String("order_id", order.ID),
			zap.Int("photo_count", report.PhotoCount),
			zap.Int("required_count", report.RequiredCount),
		)
		return report, nil, &IncompletePhotoSetError{Report: report}
	}

	approved := make([]domain.PhotoDocument, 0, len(photos))
	for i := range photos {
		if photos[i].Status != domain.PhotoPending {
			continue
		}
		if err := s.approvePhoto(ctx, actor, &photos[i]); err != nil {
			return report, approved, fmt.Errorf("approve photo %s: %w", photos[i].ID, err)
		}
		approved = append(approved, photos[i])
	}

	s.logger.Info("order approved",
		zap.String("order_id", order.ID),
		zap.Int("approved_photos", len(approved)),
		zap.String("reviewer_id", actor.ID),
	)
	return report, approved, nil
}

// PhotoURL returns a time-limited download URL for the photo binary.
func (s *ReviewService) PhotoURL(ctx context.Context, actor domain.User, photoID string) (string, error) {
	if err := domain.QAPolicy.CheckAccess(actor); err != nil {
		return "", err
	}
	photo, err := loadPhoto(ctx, s.photos, photoID)
	if err != nil {
		return "", err
	}
	url, err := s.objects.PresignedURL(ctx, photo.ObjectKey)
	if err != nil {
		return "", fmt.Errorf("presign photo: %w", err)
	}
	return url, nil
}

func (s *ReviewService) approvePhoto(ctx context.Context, actor domain.User, photo *domain.PhotoDocument) error {
	if err := photo.Approve(actor.Username, s.now()); err != nil {
		return err
	}
	return s.storeDecision(ctx, actor, *photo, "approve")
}

func (s *ReviewService) storeDecision(ctx context.Context, actor domain.User, photo domain.PhotoDocument, action string) error {
	if err := s.photos.UpdateReview(ctx, photo); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			// Another reviewer decided the photo after it was loaded.
			return &domain.TransitionError{From: "decided", Action: action}
		case errors.Is(err, repository.ErrNotFound):
			// The photo was removed after it was loaded.
			return ErrPhotoNotFound
		}
		return fmt.Errorf("save photo review: %w", err)
	}

	s.logger.Info("photo decision recorded",
		zap.String("photo_id", photo.ID),
		zap.String("order_id", photo.OrderID),
		zap.String("decision", string(photo.Status)),
		zap.String("reviewer_id", actor.ID),
	)

	if s.events == nil {
		return nil
	}
	event := domain.PhotoDecisionEvent{
		EventID:  uuid.NewString(),
		PhotoID:  photo.ID,
		OrderID:  photo.OrderID,
		Template: photo.Template,
		Decision: photo.Status,
		Reviewer: actor.Username,
	}
	if photo.ReviewedAt != nil {
		event.DecidedAt = *photo.ReviewedAt
	}
	if photo.RejectionReason != nil {
		event.Reason = *photo.RejectionReason
	}
	if err := s.events.PublishPhotoDecision(ctx, event); err != nil {
		s.logger.Warn("publish photo decision event failed", zap.String("photo_id", photo.ID), zap.Error(err))
	}
	return nil
}
