package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/repository"
)

const uniqueViolation = "23505"

// pgExecutor is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pinger is implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck pings the database; used by the readiness probe.
func HealthCheck(ctx context.Context, db Pinger) error {
	if db == nil {
		return errors.New("postgres not configured")
	}
	return db.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// missingOrConflict explains an update that matched no row: ErrNotFound when
// the id is absent, ErrConflict when a guard in the WHERE clause failed.
func missingOrConflict(ctx context.Context, exec pgExecutor, builder squirrel.StatementBuilderType, table, id string) error {
	stmt, args, err := builder.Select("1").From(table).Where(squirrel.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return fmt.Errorf("build exists sql: %w", err)
	}

	var found int
	if err := exec.QueryRow(ctx, stmt, args...).Scan(&found); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("check %s row: %w", table, err)
	}
	return repository.ErrConflict
}

func optionalString(value *string) any {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}

func optionalTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return (*value).UTC()
}

func emptyAsNull(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := strings.TrimSpace(value.String)
	if v == "" {
		return nil
	}
	return &v
}

func nullableTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}
