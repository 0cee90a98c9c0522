package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/port"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/repository"
)

var userRowColumns = []string{
	"id", "username", "password_hash", "first_name", "last_name", "email", "phone",
	"approval_status", "approval_reviewer", "approval_decided_at", "approval_reason",
	"roles", "created_at", "updated_at", "version",
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		mock.Close()
	})
	return mock
}

func TestUserRepository_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	createdAt := time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
	user, err := domain.NewUser("user-1", "  inspector ", "argon2id$hash", createdAt)
	if err != nil {
		t.Fatalf("NewUser returned error: %v", err)
	}

	mock.ExpectExec(`INSERT INTO belsign\.users`).
		WithArgs(
			"user-1", "inspector", "argon2id$hash",
			nil, nil, nil, nil,
			"pending", nil, nil, nil,
			[]string{}, createdAt, createdAt, int64(0),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
}

func TestUserRepository_CreateDuplicateUsername(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	user, _ := domain.NewUser("user-1", "inspector", "hash", time.Now())

	mock.ExpectExec(`INSERT INTO belsign\.users`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	err := repo.Create(context.Background(), user)
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestUserRepository_FindByUsernameRestoresApproval(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	createdAt := time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
	decidedAt := createdAt.Add(time.Hour)

	rows := pgxmock.NewRows(userRowColumns).AddRow(
		"user-1", "inspector", "hash", "Jane", nil, "jane@example.com", nil,
		"rejected", "admin", decidedAt, "unknown employee",
		[]string{"QA"}, createdAt, decidedAt, int64(4),
	)
	mock.ExpectQuery(`SELECT .* FROM belsign\.users WHERE username = \$1 LIMIT 1`).
		WithArgs("inspector").
		WillReturnRows(rows)

	user, err := repo.FindByUsername(context.Background(), "inspector")
	if err != nil {
		t.Fatalf("FindByUsername returned error: %v", err)
	}
	if !user.Approval.IsRejected() {
		t.Fatalf("expected rejected state, got %s", user.Approval)
	}
	if user.Approval.Reviewer() != "admin" || user.Approval.Reason() != "unknown employee" {
		t.Fatalf("unexpected approval details: %s by %s", user.Approval, user.Approval.Reviewer())
	}
	if !user.Approval.DecidedAt().Equal(decidedAt) {
		t.Fatalf("unexpected decided at %v", user.Approval.DecidedAt())
	}
	if !user.HasRole(domain.RoleQA) || user.HasRole(domain.RoleAdmin) {
		t.Fatalf("unexpected roles %v", user.Roles.Strings())
	}
	if user.FirstName == nil || *user.FirstName != "Jane" || user.LastName != nil {
		t.Fatalf("unexpected name fields: %v %v", user.FirstName, user.LastName)
	}
	if !user.UpdatedAt.Equal(decidedAt) {
		t.Fatalf("expected updated_at to be restored, got %v", user.UpdatedAt)
	}
	if user.Version != 4 {
		t.Fatalf("expected version 4, got %d", user.Version)
	}
}

func TestUserRepository_GetByIDNotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT .* FROM belsign\.users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(userRowColumns))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_SaveLockedUser(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	createdAt := time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
	lockedAt := createdAt.Add(2 * time.Hour)
	user := domain.ReconstituteUser("user-1", "inspector", "hash", domain.ApprovedState("admin", createdAt), domain.NewRoleSet(domain.RoleProduction), createdAt)
	user.Version = 3
	user.Lock(lockedAt, "account locked after 5 failed login attempts")

	mock.ExpectExec(`UPDATE belsign\.users SET .*, version = version \+ 1 WHERE id = \$11 AND version = \$12`).
		WithArgs(
			nil, nil, nil, nil,
			"rejected", domain.SystemReviewer, lockedAt, "account locked after 5 failed login attempts",
			[]string{"PRODUCTION"}, lockedAt,
			"user-1", int64(3),
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.Save(context.Background(), user); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
}

func anyUserUpdateArgs(id string, version int64) []any {
	args := make([]any, 0, 12)
	for i := 0; i < 10; i++ {
		args = append(args, pgxmock.AnyArg())
	}
	return append(args, id, version)
}

func TestUserRepository_SaveMissingUser(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	user := domain.ReconstituteUser("ghost", "ghost", "hash", domain.PendingState(), nil, time.Now())

	mock.ExpectExec(`UPDATE belsign\.users SET`).
		WithArgs(anyUserUpdateArgs("ghost", 0)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM belsign\.users WHERE id = \$1 LIMIT 1`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}))

	if err := repo.Save(context.Background(), user); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_SaveStaleVersionConflicts(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	// Loaded at version 1 while an automatic lock already moved the row to version 2.
	createdAt := time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
	stale := domain.ReconstituteUser("user-1", "inspector", "hash", domain.ApprovedState("admin", createdAt), domain.NewRoleSet(domain.RoleQA), createdAt)
	stale.Version = 1
	_ = stale.AddRole(domain.RoleAdmin)

	mock.ExpectExec(`UPDATE belsign\.users SET`).
		WithArgs(anyUserUpdateArgs("user-1", 1)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM belsign\.users WHERE id = \$1 LIMIT 1`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	err := repo.Save(context.Background(), stale)
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestUserRepository_ListPending(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows(userRowColumns).
		AddRow("user-1", "alpha", "hash", nil, nil, nil, nil, "pending", nil, nil, nil, []string{}, now, now, int64(0)).
		AddRow("user-2", "bravo", "hash", nil, nil, nil, nil, "pending", nil, nil, nil, []string{}, now, now, int64(0))

	mock.ExpectQuery(`SELECT .* FROM belsign\.users WHERE approval_status = \$1 ORDER BY created_at ASC, id ASC LIMIT 50`).
		WithArgs("pending").
		WillReturnRows(rows)

	users, err := repo.List(context.Background(), port.UserFilter{Approval: domain.ApprovalPending, Limit: 50})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(users) != 2 || users[0].Username != "alpha" || users[1].Username != "bravo" {
		t.Fatalf("unexpected users %+v", users)
	}
	for _, u := range users {
		if !u.Approval.IsPending() {
			t.Fatalf("expected pending user, got %s", u.Approval)
		}
	}
}

func TestUserRepository_RejectsUnknownStoredRole(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows(userRowColumns).
		AddRow("user-1", "alpha", "hash", nil, nil, nil, nil, "approved", "admin", now, nil, []string{"JANITOR"}, now, now, int64(0))

	mock.ExpectQuery(`SELECT .* FROM belsign\.users`).WithArgs("user-1").WillReturnRows(rows)

	if _, err := repo.GetByID(context.Background(), "user-1"); !errors.Is(err, domain.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}
