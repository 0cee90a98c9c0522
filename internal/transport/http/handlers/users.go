package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/transport/http/middleware"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/usecase"
)

// AccountService manages registrations and roles.
type AccountService interface {
	Register(ctx context.Context, in usecase.RegisterInput) (domain.User, error)
	ListPending(ctx context.Context, actor domain.User, limit, offset int) ([]domain.User, error)
	AssignRole(ctx context.Context, actor domain.User, userID, role string) (domain.User, error)
	RevokeRole(ctx context.Context, actor domain.User, userID, role string) (domain.User, error)
}

// UserReviewer records decisions on pending accounts.
type UserReviewer interface {
	ApproveUser(ctx context.Context, actor domain.User, userID string) (domain.User, error)
	RejectUser(ctx context.Context, actor domain.User, userID, reason string) (domain.User, error)
	UnlockUser(ctx context.Context, actor domain.User, userID string) (domain.User, error)
}

// UserHandler exposes registration and account administration.
type UserHandler struct {
	accounts AccountService
	reviews  UserReviewer
}

func NewUserHandler(accounts AccountService, reviews UserReviewer) *UserHandler {
	return &UserHandler{accounts: accounts, reviews: reviews}
}

// RegisterRoutes binds the user routes. Every route except registration is
// guarded by adminOnly.
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup, adminOnly gin.HandlerFunc) {
	if r == nil {
		return
	}

	r.POST("", h.Register)

	admin := r.Group("", adminOnly)
	admin.GET("/pending", h.ListPending)
	admin.POST("/:id/approve", h.Approve)
	admin.POST("/:id/reject", h.Reject)
	admin.POST("/:id/unlock", h.Unlock)
	admin.POST("/:id/roles/:role", h.AssignRole)
	admin.DELETE("/:id/roles/:role", h.RevokeRole)
}

// Register creates a pending account.
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username and password are required"))
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), usecase.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		respondDomainError(c, err, "failed to register user")
		return
	}

	c.JSON(http.StatusCreated, newUserSummary(user))
}

// ListPending pages through accounts awaiting a decision.
func (h *UserHandler) ListPending(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	users, err := h.accounts.ListPending(c.Request.Context(), actor, limit, offset)
	if err != nil {
		respondDomainError(c, err, "failed to list pending users")
		return
	}

	c.JSON(http.StatusOK, UserListResponse{Users: newUserSummaries(users), Limit: limit, Offset: offset})
}

func (h *UserHandler) Approve(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	user, err := h.reviews.ApproveUser(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondDomainError(c, err, "failed to approve user")
		return
	}
	c.JSON(http.StatusOK, newUserSummary(user))
}

func (h *UserHandler) Reject(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "a reason is required"))
		return
	}

	user, err := h.reviews.RejectUser(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		respondDomainError(c, err, "failed to reject user")
		return
	}
	c.JSON(http.StatusOK, newUserSummary(user))
}

// Unlock lifts an automatic lock before the lockout window has passed.
func (h *UserHandler) Unlock(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	user, err := h.reviews.UnlockUser(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondDomainError(c, err, "failed to unlock user")
		return
	}
	c.JSON(http.StatusOK, newUserSummary(user))
}

func (h *UserHandler) AssignRole(c *gin.Context) {
	h.changeRole(c, h.accounts.AssignRole, "failed to assign role")
}

func (h *UserHandler) RevokeRole(c *gin.Context) {
	h.changeRole(c, h.accounts.RevokeRole, "failed to revoke role")
}

type roleChange func(ctx context.Context, actor domain.User, userID, role string) (domain.User, error)

func (h *UserHandler) changeRole(c *gin.Context, change roleChange, fallback string) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	user, err := change(c.Request.Context(), actor, c.Param("id"), c.Param("role"))
	if err != nil {
		respondDomainError(c, err, fallback)
		return
	}
	c.JSON(http.StatusOK, newUserSummary(user))
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
