package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/security"
)

func newUserFixture(t *testing.T, users ...domain.User) (*UserService, *fakeUserRepo, *recordingPublisher) {
	t.Helper()
	repo := newFakeUserRepo(users...)
	events := &recordingPublisher{}
	svc := NewUserService(repo, &fakeHasher{}, security.NewPasswordPolicy(), events, zaptest.NewLogger(t))
	svc.WithClock(newManualClock().Now)
	return svc, repo, events
}

func strPtr(s string) *string { return &s }

func TestUserService_RegisterCreatesPendingUser(t *testing.T) {
	svc, repo, events := newUserFixture(t)

	user, err := svc.Register(context.Background(), RegisterInput{
		Username:  "  worker1 ",
		Password:  "C0mplex!Passphrase#2025",
		FirstName: strPtr("Wren"),
		Email:     strPtr(" wren@example.com "),
		Phone:     strPtr("   "),
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.Username != "worker1" || !user.Approval.IsPending() || len(user.Roles) != 0 {
		t.Fatalf("unexpected registered user %+v", user)
	}
	if user.PasswordHash != "" {
		t.Fatal("expected sanitized result")
	}
	if user.Email == nil || *user.Email != "wren@example.com" || user.Phone != nil {
		t.Fatalf("unexpected contact fields: email=%v phone=%v", user.Email, user.Phone)
	}
	if stored := repo.get(user.ID); stored.PasswordHash != "hashed:C0mplex!Passphrase#2025" {
		t.Fatalf("expected stored hash, got %q", stored.PasswordHash)
	}
	if len(events.registered) != 1 || events.registered[0].UserID != user.ID {
		t.Fatalf("expected registered event, got %+v", events.registered)
	}
}

func TestUserService_RegisterValidation(t *testing.T) {
	svc, _, _ := newUserFixture(t, pendingUser("u1", "taken", "pw"))
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "ab", Password: "C0mplex!Passphrase#2025"}); !errors.Is(err, domain.ErrInvalidUsername) {
		t.Fatalf("expected invalid username, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Username: "SYSTEM", Password: "C0mplex!Passphrase#2025"}); !errors.Is(err, domain.ErrReservedUsername) {
		t.Fatalf("expected reserved username, got %v", err)
	}

	_, err := svc.Register(ctx, RegisterInput{Username: "newbie", Password: "short"})
	if !errors.Is(err, ErrPasswordPolicyViolation) {
		t.Fatalf("expected password policy violation, got %v", err)
	}
	var vErr *security.PasswordValidationError
	if !errors.As(err, &vErr) || vErr.Code != "min_length" {
		t.Fatalf("expected min_length violation, got %v", err)
	}

	if _, err := svc.Register(ctx, RegisterInput{Username: "taken", Password: "C0mplex!Passphrase#2025"}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected username taken, got %v", err)
	}
}

func TestUserService_ListPendingRequiresAdmin(t *testing.T) {
	admin := approvedUser("a1", "ada", "pw", domain.RoleAdmin)
	svc, _, _ := newUserFixture(t, admin, pendingUser("u1", "bob", "pw"), approvedUser("u2", "carl", "pw"))
	ctx := context.Background()

	if _, err := svc.ListPending(ctx, approvedUser("q1", "quinn", "pw", domain.RoleQA), 0, 0); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}

	pending, err := svc.ListPending(ctx, admin, 0, 0)
	if err != nil {
		t.Fatalf("ListPending returned error: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "u1" || pending[0].PasswordHash != "" {
		t.Fatalf("unexpected pending list %+v", pending)
	}
}

func TestUserService_AssignAndRevokeRole(t *testing.T) {
	admin := approvedUser("a1", "ada", "pw", domain.RoleAdmin)
	svc, repo, events := newUserFixture(t, admin, approvedUser("u1", "bob", "pw"))
	ctx := context.Background()

	user, err := svc.AssignRole(ctx, admin, "u1", "qa")
	if err != nil {
		t.Fatalf("AssignRole returned error: %v", err)
	}
	if !user.HasRole(domain.RoleQA) || !repo.get("u1").HasRole(domain.RoleQA) {
		t.Fatal("expected QA role to be stored")
	}

	// Granting again is a no-op.
	if _, err := svc.AssignRole(ctx, admin, "u1", "QA"); err != nil {
		t.Fatalf("repeated AssignRole returned error: %v", err)
	}
	if len(events.roles) != 1 || len(events.roles[0].Added) != 1 || events.roles[0].ChangedBy != "ada" {
		t.Fatalf("expected a single roles changed event, got %+v", events.roles)
	}

	if _, err := svc.RevokeRole(ctx, admin, "u1", "QA"); err != nil {
		t.Fatalf("RevokeRole returned error: %v", err)
	}
	if repo.get("u1").HasRole(domain.RoleQA) {
		t.Fatal("expected QA role to be removed")
	}
	if len(events.roles) != 2 || len(events.roles[1].Removed) != 1 {
		t.Fatalf("expected revoke event, got %+v", events.roles)
	}

	if _, err := svc.AssignRole(ctx, admin, "u1", "janitor"); !errors.Is(err, domain.ErrUnknownRole) {
		t.Fatalf("expected unknown role, got %v", err)
	}
	if _, err := svc.AssignRole(ctx, admin, "missing", "QA"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
	if _, err := svc.AssignRole(ctx, repo.get("u1"), "a1", "QA"); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected access denied for non-admin actor, got %v", err)
	}
}
