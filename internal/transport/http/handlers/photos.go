package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/transport/http/middleware"
)

// PhotoReviewer records photo decisions and hands out download links.
type PhotoReviewer interface {
	ApprovePhoto(ctx context.Context, actor domain.User, photoID string) (domain.PhotoDocument, error)
	RejectPhoto(ctx context.Context, actor domain.User, photoID, reason string) (domain.PhotoDocument, error)
	PhotoURL(ctx context.Context, actor domain.User, photoID string) (string, error)
}

// PhotoHandler exposes photo review endpoints for QA.
type PhotoHandler struct {
	reviews PhotoReviewer
}

func NewPhotoHandler(reviews PhotoReviewer) *PhotoHandler {
	return &PhotoHandler{reviews: reviews}
}

// RegisterRoutes binds photo routes, all guarded by qaOnly.
func (h *PhotoHandler) RegisterRoutes(r *gin.RouterGroup, qaOnly gin.HandlerFunc) {
	if r == nil {
		return
	}

	r.Use(qaOnly)
	r.POST("/:id/approve", h.Approve)
	r.POST("/:id/reject", h.Reject)
	r.GET("/:id/url", h.URL)
}

func (h *PhotoHandler) Approve(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	photo, err := h.reviews.ApprovePhoto(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondDomainError(c, err, "failed to approve photo")
		return
	}
	c.JSON(http.StatusOK, newPhotoSummary(photo))
}

func (h *PhotoHandler) Reject(c *gin.Context) {
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

	photo, err := h.reviews.RejectPhoto(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		respondDomainError(c, err, "failed to reject photo")
		return
	}
	c.JSON(http.StatusOK, newPhotoSummary(photo))
}

// URL returns a presigned link to the photo binary.
func (h *PhotoHandler) URL(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	url, err := h.reviews.PhotoURL(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondDomainError(c, err, "failed to sign photo url")
		return
	}
	c.JSON(http.StatusOK, PhotoURLResponse{URL: url})
}
