package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/port"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/repository"
)

const photosTable = "belsign.photo_documents"

var photoColumns = []string{
	"id",
	"order_id",
	"template",
	"object_key",
	"taken_by",
	"taken_at",
	"annotations",
	"status",
	"reviewed_by",
	"reviewed_at",
	"rejection_reason",
}

// annotationRecord is the jsonb shape of a stored annotation.
type annotationRecord struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// PhotoRepository implements port.PhotoRepository using PostgreSQL.
type PhotoRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPhotoRepository wires a PostgreSQL-backed photo repository.
func NewPhotoRepository(exec pgExecutor) *PhotoRepository {
	return &PhotoRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *PhotoRepository) WithTx(tx pgx.Tx) *PhotoRepository {
	if tx == nil {
		return r
	}
	return &PhotoRepository{exec: tx, builder: r.builder}
}

// GetByID retrieves a single photo document.
func (r *PhotoRepository) GetByID(ctx context.Context, id string) (*domain.PhotoDocument, error) {
	stmt, args, err := r.builder.
		Select(photoColumns...).
		From(photosTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select photo sql: %w", err)
	}

	photo, err := scanPhoto(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &photo, nil
}

// ListByOrder returns every photo of an order in capture order.
func (r *PhotoRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.PhotoDocument, error) {
	stmt, args, err := r.builder.
		Select(photoColumns...).
		From(photosTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("taken_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list photos sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	photos := make([]domain.PhotoDocument, 0)
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return photos, nil
}

// UpdateReview stores the decision of a photo that is still pending in the
// database. A concurrent decision yields repository.ErrConflict and an unknown
// id repository.ErrNotFound.
func (r *PhotoRepository) UpdateReview(ctx context.Context, photo domain.PhotoDocument) error {
	stmt, args, err := r.builder.Update(photosTable).
		Set("status", string(photo.Status)).
		Set("reviewed_by", optionalString(photo.ReviewedBy)).
		Set("reviewed_at", optionalTime(photo.ReviewedAt)).
		Set("rejection_reason", optionalString(photo.RejectionReason)).
		Where(squirrel.Eq{"id": photo.ID, "status": string(domain.PhotoPending)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update photo sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update photo review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err := missingOrConflict(ctx, r.exec, r.builder, photosTable, photo.ID)
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("photo %s already reviewed: %w", photo.ID, err)
		}
		return err
	}
	return nil
}

func scanPhoto(row pgx.Row) (domain.PhotoDocument, error) {
	var (
		photo           domain.PhotoDocument
		template        string
		status          string
		annotationsJSON []byte
		reviewedBy      sql.NullString
		reviewedAt      sql.NullTime
		rejection       sql.NullString
	)

	if err := row.Scan(
		&photo.ID,
		&photo.OrderID,
		&template,
		&photo.ObjectKey,
		&photo.TakenBy,
		&photo.TakenAt,
		&annotationsJSON,
		&status,
		&reviewedBy,
		&reviewedAt,
		&rejection,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PhotoDocument{}, err
		}
		return domain.PhotoDocument{}, fmt.Errorf("scan photo: %w", err)
	}

	parsed, err := domain.ParseApprovalStatus(status)
	if err != nil {
		return domain.PhotoDocument{}, fmt.Errorf("photo %s: %w", photo.ID, err)
	}

	photo.Template = domain.PhotoTemplate(template)
	photo.TakenAt = photo.TakenAt.UTC()
	photo.Status = parsed
	photo.ReviewedBy = nullableStringPtr(reviewedBy)
	photo.ReviewedAt = nullableTimePtr(reviewedAt)
	photo.RejectionReason = nullableStringPtr(rejection)

	if len(annotationsJSON) > 0 {
		var records []annotationRecord
		if err := json.Unmarshal(annotationsJSON, &records); err != nil {
			return domain.PhotoDocument{}, fmt.Errorf("decode annotations for photo %s: %w", photo.ID, err)
		}
		photo.Annotations = make([]domain.Annotation, len(records))
		for i, rec := range records {
			photo.Annotations[i] = domain.Annotation{
				ID:        rec.ID,
				Text:      rec.Text,
				X:         rec.X,
				Y:         rec.Y,
				CreatedBy: rec.CreatedBy,
				CreatedAt: rec.CreatedAt,
			}
		}
	}

	return photo, nil
}

var _ port.PhotoRepository = (*PhotoRepository)(nil)
