package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/usecase"
)

// authFailedMessage is the only message clients see for a failed login.
const authFailedMessage = "authentication failed"

// SessionService is the slice of the authentication service the session endpoints use.
type SessionService interface {
	Login(ctx context.Context, username, password string) (domain.User, error)
	CurrentUser(ctx context.Context) (domain.User, bool)
	Session(ctx context.Context) (domain.Session, bool)
	Logout(ctx context.Context)
}

// SessionHandler exposes the operator session.
type SessionHandler struct {
	auth        SessionService
	idleTimeout string
}

// NewSessionHandler constructs a session handler. idleTimeout is reported to clients.
func NewSessionHandler(auth SessionService, idleTimeout string) *SessionHandler {
	return &SessionHandler{auth: auth, idleTimeout: idleTimeout}
}

// RegisterRoutes binds the session routes. loginMiddlewares run in front of login only.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	if r == nil {
		return
	}

	login := append(append([]gin.HandlerFunc{}, loginMiddlewares...), h.Login)
	r.POST("/login", login...)
	r.GET("", h.Status)
	r.DELETE("", h.Logout)
}

// Login authenticates the operator and starts the session. Every failure,
// including infrastructure errors, answers 401 with the same body.
func (h *SessionHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	if _, err := h.auth.Login(c.Request.Context(), req.Username, req.Password); err != nil {
		if !errors.Is(err, usecase.ErrAuthenticationFailed) {
			_ = c.Error(err)
		}
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, authFailedMessage))
		return
	}

	h.writeSession(c)
}

// Status returns the live session and refreshes its activity.
func (h *SessionHandler) Status(c *gin.Context) {
	if _, ok := h.auth.CurrentUser(c.Request.Context()); !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "not logged in"))
		return
	}
	h.writeSession(c)
}

// Logout ends the session. It succeeds without a session too.
func (h *SessionHandler) Logout(c *gin.Context) {
	h.auth.Logout(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) writeSession(c *gin.Context) {
	session, ok := h.auth.Session(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "not logged in"))
		return
	}
	c.JSON(http.StatusOK, SessionResponse{
		User:         newUserSummary(session.User),
		StartedAt:    session.StartedAt,
		LastActivity: session.LastActivity,
		IdleTimeout:  h.idleTimeout,
	})
}
