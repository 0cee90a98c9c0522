package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/usecase"
)

type stubChecker struct {
	user domain.User
	err  error
}

func (s stubChecker) CheckAccess(context.Context) (domain.User, error) {
	return s.user, s.err
}

func TestRequireAccess(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		checker stubChecker
		status  int
		message string
	}{
		{"allowed", stubChecker{user: domain.User{ID: "u1"}}, http.StatusOK, ""},
		{"no session", stubChecker{err: usecase.ErrNotAuthenticated}, http.StatusUnauthorized, "authentication required"},
		{"wrong role", stubChecker{err: domain.ErrAccessDenied}, http.StatusForbidden, "insufficient permissions"},
		{"unexpected", stubChecker{err: errors.New("boom")}, http.StatusInternalServerError, "authorization failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.Use(EnrichContext())
			router.GET("/secure", RequireAccess(tc.checker), func(c *gin.Context) {
				user, ok := CurrentUser(c)
				if !ok {
					t.Fatal("expected current user in context")
				}
				c.String(http.StatusOK, user.ID)
			})

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/secure", nil))

			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if tc.status == http.StatusOK {
				if rr.Body.String() != "u1" {
					t.Fatalf("unexpected body %q", rr.Body.String())
				}
				return
			}
			var body ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error != tc.message || body.TraceID == "" {
				t.Fatalf("unexpected error body %+v", body)
			}
		})
	}
}

func TestEnrichContextKeepsIncomingTraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(EnrichContext(), RequestID())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetTraceID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceIDHeader, "trace-123")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Body.String() != "trace-123" || rr.Header().Get(TraceIDHeader) != "trace-123" {
		t.Fatalf("expected incoming trace id to be kept, got body=%q header=%q", rr.Body.String(), rr.Header().Get(TraceIDHeader))
	}
	if rr.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected a generated request id header")
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(CORS([]string{"https://qc.belsign.example/"}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://qc.belsign.example")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://qc.belsign.example" {
		t.Fatalf("expected origin to be echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected preflight 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unknown origin must not be allowed, got %q", got)
	}
}
