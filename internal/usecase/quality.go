package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/port"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/repository"
)

var (
	// ErrOrderNotFound indicates the order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPhotoNotFound indicates the photo does not exist.
	ErrPhotoNotFound = errors.New("photo not found")
)

// QualityService answers photo requirement questions for orders.
type QualityService struct {
	orders port.OrderRepository
	photos port.PhotoRepository
	policy domain.PhotoQualityPolicy
	logger *zap.Logger
}

func NewQualityService(orders port.OrderRepository, photos port.PhotoRepository, logger *zap.Logger) *QualityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QualityService{
		orders: orders,
		photos: photos,
		policy: domain.NewPhotoQualityPolicy(),
		logger: logger,
	}
}

// Requirements returns the photo requirements for the order's category.
func (s *QualityService) Requirements(ctx context.Context, orderID string) (domain.PhotoRequirements, error) {
	order, err := loadOrder(ctx, s.orders, orderID)
	if err != nil {
		return domain.PhotoRequirements{}, err
	}
	return s.policy.Requirements(order), nil
}

// Evaluate measures the order's current photo set against its requirements.
func (s *QualityService) Evaluate(ctx context.Context, orderID string) (domain.QualityReport, error) {
	order, err := loadOrder(ctx, s.orders, orderID)
	if err != nil {
		return domain.QualityReport{}, err
	}
	photos, err := s.photos.ListByOrder(ctx, order.ID)
	if err != nil {
		return domain.QualityReport{}, fmt.Errorf("list order photos: %w", err)
	}

	report := s.policy.Evaluate(order, photos)
	s.logger.Debug("quality report evaluated",
		zap.String("order_id", order.ID),
		zap.String("category", string(report.Category)),
		zap.Bool("complete", report.Complete()),
	)
	return report, nil
}

func loadOrder(ctx context.Context, orders port.OrderRepository, id string) (domain.Order, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Order{}, ErrOrderNotFound
	}
	order, err := orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Order{}, ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("lookup order: %w", err)
	}
	return *order, nil
}

func loadPhoto(ctx context.Context, photos port.PhotoRepository, id string) (domain.PhotoDocument, error) {
	if strings.TrimSpace(id) == "" {
		return domain.PhotoDocument{}, ErrPhotoNotFound
	}
	photo, err := photos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.PhotoDocument{}, ErrPhotoNotFound
		}
		return domain.PhotoDocument{}, fmt.Errorf("lookup photo: %w", err)
	}
	return *photo, nil
}
