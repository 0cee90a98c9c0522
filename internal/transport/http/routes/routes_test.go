package routes_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/config"
	httproutes "github.com/Travinkel/belsign-photo-doc-sub006/internal/transport/http/routes"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/usecase"
)

type stubAuth struct {
	user *domain.User
}

func (s *stubAuth) Login(context.Context, string, string) (domain.User, error) {
	return domain.User{}, &usecase.AuthError{Reason: usecase.ReasonBadPassword}
}

func (s *stubAuth) CurrentUser(context.Context) (domain.User, bool) {
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

func (s *stubAuth) Session(ctx context.Context) (domain.Session, bool) {
	u, ok := s.CurrentUser(ctx)
	return domain.Session{User: u}, ok
}

func (s *stubAuth) Logout(context.Context) { s.user = nil }

type stubReviews struct {
	orderApprovals int
}

func (s *stubReviews) ApproveUser(context.Context, domain.User, string) (domain.User, error) {
	return domain.User{}, usecase.ErrUserNotFound
}

func (s *stubReviews) RejectUser(context.Context, domain.User, string, string) (domain.User, error) {
	return domain.User{}, usecase.ErrUserNotFound
}

func (s *stubReviews) UnlockUser(context.Context, domain.User, string) (domain.User, error) {
	return domain.User{}, usecase.ErrUserNotFound
}

func (s *stubReviews) ApprovePhoto(context.Context, domain.User, string) (domain.PhotoDocument, error) {
	return domain.PhotoDocument{}, usecase.ErrPhotoNotFound
}

func (s *stubReviews) RejectPhoto(context.Context, domain.User, string, string) (domain.PhotoDocument, error) {
	return domain.PhotoDocument{}, usecase.ErrPhotoNotFound
}

func (s *stubReviews) PhotoURL(context.Context, domain.User, string) (string, error) {
	return "", usecase.ErrPhotoNotFound
}

func (s *stubReviews) ApproveOrder(_ context.Context, _ domain.User, orderID string) (domain.QualityReport, []domain.PhotoDocument, error) {
	s.orderApprovals++
	return domain.QualityReport{OrderID: orderID}, nil, nil
}

type stubQuality struct{}

func (stubQuality) Requirements(context.Context, string) (domain.PhotoRequirements, error) {
	return domain.DefaultQualityRules[domain.CategoryStandard], nil
}

func (stubQuality) Evaluate(_ context.Context, orderID string) (domain.QualityReport, error) {
	return domain.QualityReport{OrderID: orderID}, nil
}

type failingChecker struct{}

func (failingChecker) HealthCheck(context.Context) error { return errors.New("bucket missing") }

func operator(roles ...domain.Role) *domain.User {
	u := domain.ReconstituteUser("u1", "operator", "", domain.ApprovedState(domain.SystemReviewer, time.Now()), domain.NewRoleSet(roles...), time.Now())
	return &u
}

func newRouter(t *testing.T, auth *stubAuth, reviews *stubReviews, cfg *config.AppConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if cfg == nil {
		cfg = &config.AppConfig{App: config.AppSettings{Env: "test"}}
	}
	return httproutes.Register(httproutes.Dependencies{
		Config: cfg,
		Logger: zaptest.NewLogger(t),
		Services: httproutes.ServiceSet{
			Auth:    auth,
			Reviews: reviews,
			Quality: stubQuality{},
		},
	})
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.AppConfig{App: config.AppSettings{Env: "test"}}

	r := httproutes.Register(httproutes.Dependencies{
		Config: cfg,
		Logger: zaptest.NewLogger(t),
	})

	if w := serve(r, http.MethodGet, "/healthz"); w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/metrics"); w.Code != http.StatusOK {
		t.Fatalf("expected metrics endpoint, got %d", w.Code)
	}
}

func TestReadinessReportsStorage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := httproutes.Register(httproutes.Dependencies{
		Config:  &config.AppConfig{App: config.AppSettings{Env: "test"}},
		Logger:  zaptest.NewLogger(t),
		Storage: failingChecker{},
	})

	if w := serve(r, http.MethodGet, "/readyz"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestRoleGuards(t *testing.T) {
	cases := []struct {
		name   string
		user   *domain.User
		method string
		path   string
		status int
	}{
		{"anonymous requirements", nil, http.MethodGet, "/api/v1/orders/o1/requirements", http.StatusUnauthorized},
		{"production requirements", operator(domain.RoleProduction), http.MethodGet, "/api/v1/orders/o1/requirements", http.StatusOK},
		{"production order approval", operator(domain.RoleProduction), http.MethodPost, "/api/v1/orders/o1/approve", http.StatusForbidden},
		{"qa order approval", operator(domain.RoleQA), http.MethodPost, "/api/v1/orders/o1/approve", http.StatusOK},
		{"qa photo approval", operator(domain.RoleQA), http.MethodPost, "/api/v1/photos/p1/approve", http.StatusNotFound},
		{"production photo approval", operator(domain.RoleProduction), http.MethodPost, "/api/v1/photos/p1/approve", http.StatusForbidden},
		{"admin photo url", operator(domain.RoleAdmin), http.MethodGet, "/api/v1/photos/p1/url", http.StatusNotFound},
		{"user without roles", operator(), http.MethodGet, "/api/v1/orders/o1/quality", http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reviews := &stubReviews{}
			r := newRouter(t, &stubAuth{user: tc.user}, reviews, nil)

			w := serve(r, tc.method, tc.path)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			if tc.status == http.StatusForbidden && reviews.orderApprovals != 0 {
				t.Fatal("handler must not run when access is denied")
			}
		})
	}
}

func TestSessionRoutes(t *testing.T) {
	auth := &stubAuth{user: operator(domain.RoleQA)}
	r := newRouter(t, auth, &stubReviews{}, nil)

	if w := serve(r, http.MethodGet, "/api/v1/session"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := serve(r, http.MethodDelete, "/api/v1/session"); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := serve(r, http.MethodPost, "/api/v1/orders/o1/approve"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", w.Code)
	}
}

func TestCORSEnabledByConfig(t *testing.T) {
	cfg := &config.AppConfig{App: config.AppSettings{Env: "test", AllowedOrigins: []string{"https://qa.belsign.test"}}}
	r := newRouter(t, &stubAuth{}, &stubReviews{}, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/session/login", nil)
	req.Header.Set("Origin", "https://qa.belsign.test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected preflight 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://qa.belsign.test" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
