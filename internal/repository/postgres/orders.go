package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/port"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/repository"
)

const ordersTable = "belsign.orders"

// OrderRepository implements port.OrderRepository using PostgreSQL.
type OrderRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewOrderRepository wires a PostgreSQL-backed order repository.
func NewOrderRepository(exec pgExecutor) *OrderRepository {
	return &OrderRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID retrieves an order by identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	stmt, args, err := r.builder.
		Select("id", "order_number", "product_name", "specification", "notes", "category", "created_at").
		From(ordersTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select order sql: %w", err)
	}

	var (
		order         domain.Order
		specification sql.NullString
		notes         sql.NullString
		category      sql.NullString
	)

	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&order.ID,
		&order.OrderNumber,
		&order.ProductName,
		&specification,
		&notes,
		&category,
		&order.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	order.Specification = specification.String
	order.Notes = notes.String
	order.CreatedAt = order.CreatedAt.UTC()
	if category.Valid && category.String != "" {
		parsed, err := domain.ParseProductCategory(category.String)
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", order.ID, err)
		}
		order.Category = &parsed
	}

	return &order, nil
}

var _ port.OrderRepository = (*OrderRepository)(nil)
