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

const usersTable = "belsign.users"

var userColumns = []string{
	"id",
	"username",
	"password_hash",
	"first_name",
	"last_name",
	"email",
	"phone",
	"approval_status",
	"approval_reviewer",
	"approval_decided_at",
	"approval_reason",
	"roles",
	"created_at",
	"updated_at",
	"version",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{exec: tx, builder: r.builder}
}

// Create inserts a new user row. A taken username yields repository.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	approval := approvalColumns(user.Approval)

	stmt, args, err := r.builder.Insert(usersTable).
		Columns(userColumns...).
		Values(
			user.ID,
			user.Username,
			user.PasswordHash,
			optionalString(user.FirstName),
			optionalString(user.LastName),
			optionalString(user.Email),
			optionalString(user.Phone),
			approval.status,
			approval.reviewer,
			approval.decidedAt,
			approval.reason,
			user.Roles.Strings(),
			user.CreatedAt.UTC(),
			user.UpdatedAt.UTC(),
			user.Version,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert user: %w", repository.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// FindByUsername retrieves a user by exact username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"username": username})
}

func (r *UserRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From(usersTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Save persists the mutable fields of an existing user and bumps its version.
// The write only applies while the stored version still equals user.Version;
// otherwise it returns repository.ErrConflict, or repository.ErrNotFound when
// the user no longer exists.
func (r *UserRepository) Save(ctx context.Context, user domain.User) error {
	approval := approvalColumns(user.Approval)

	stmt, args, err := r.builder.Update(usersTable).
		Set("first_name", optionalString(user.FirstName)).
		Set("last_name", optionalString(user.LastName)).
		Set("email", optionalString(user.Email)).
		Set("phone", optionalString(user.Phone)).
		Set("approval_status", approval.status).
		Set("approval_reviewer", approval.reviewer).
		Set("approval_decided_at", approval.decidedAt).
		Set("approval_reason", approval.reason).
		Set("roles", user.Roles.Strings()).
		Set("updated_at", user.UpdatedAt.UTC()).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": user.ID, "version": user.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update user sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err := missingOrConflict(ctx, r.exec, r.builder, usersTable, user.ID)
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("user %s changed since version %d: %w", user.ID, user.Version, err)
		}
		return err
	}
	return nil
}

// List returns users ordered by creation time, optionally filtered by approval kind.
func (r *UserRepository) List(ctx context.Context, filter port.UserFilter) ([]domain.User, error) {
	query := r.builder.
		Select(userColumns...).
		From(usersTable).
		OrderBy("created_at ASC", "id ASC")

	if filter.Approval != "" {
		query = query.Where(squirrel.Eq{"approval_status": string(filter.Approval)})
	}
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list users sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

type approvalRow struct {
	status    string
	reviewer  any
	decidedAt any
	reason    any
}

func approvalColumns(state domain.ApprovalState) approvalRow {
	row := approvalRow{status: string(state.Kind())}
	if state.IsPending() {
		return row
	}
	row.reviewer = emptyAsNull(state.Reviewer())
	decided := state.DecidedAt()
	row.decidedAt = optionalTime(&decided)
	row.reason = emptyAsNull(state.Reason())
	return row
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		id, username, hash string
		firstName          sql.NullString
		lastName           sql.NullString
		email              sql.NullString
		phone              sql.NullString
		status             string
		reviewer           sql.NullString
		decidedAt          sql.NullTime
		reason             sql.NullString
		roleNames          []string
		user               domain.User
	)

	if err := row.Scan(
		&id,
		&username,
		&hash,
		&firstName,
		&lastName,
		&email,
		&phone,
		&status,
		&reviewer,
		&decidedAt,
		&reason,
		&roleNames,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, err
		}
		return domain.User{}, fmt.Errorf("scan user: %w", err)
	}

	approval, err := domain.ParseApprovalState(status, reviewer.String, nullableTimePtr(decidedAt), reason.String)
	if err != nil {
		return domain.User{}, fmt.Errorf("user %s: %w", id, err)
	}

	roles := domain.NewRoleSet()
	for _, name := range roleNames {
		role, err := domain.ParseRole(name)
		if err != nil {
			return domain.User{}, fmt.Errorf("user %s: %w", id, err)
		}
		roles.Add(role)
	}

	updatedAt, version := user.UpdatedAt, user.Version
	user = domain.ReconstituteUser(id, username, hash, approval, roles, user.CreatedAt.UTC())
	user.UpdatedAt = updatedAt.UTC()
	user.Version = version
	user.FirstName = nullableStringPtr(firstName)
	user.LastName = nullableStringPtr(lastName)
	user.Email = nullableStringPtr(email)
	user.Phone = nullableStringPtr(phone)

	return user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
