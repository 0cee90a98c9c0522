package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/transport/http/middleware"
)

// QualityQueries answers photo requirement questions.
type QualityQueries interface {
	Requirements(ctx context.Context, orderID string) (domain.PhotoRequirements, error)
	Evaluate(ctx context.Context, orderID string) (domain.QualityReport, error)
}

// OrderApprover approves a complete order.
type OrderApprover interface {
	ApproveOrder(ctx context.Context, actor domain.User, orderID string) (domain.QualityReport, []domain.PhotoDocument, error)
}

// OrderHandler exposes quality requirements and order approval.
type OrderHandler struct {
	quality  QualityQueries
	approver OrderApprover
}

func NewOrderHandler(quality QualityQueries, approver OrderApprover) *OrderHandler {
	return &OrderHandler{quality: quality, approver: approver}
}

// RegisterRoutes binds order routes; reads need production access, approval needs QA.
func (h *OrderHandler) RegisterRoutes(r *gin.RouterGroup, productionOnly, qaOnly gin.HandlerFunc) {
	if r == nil {
		return
	}

	r.GET("/:id/requirements", productionOnly, h.Requirements)
	r.GET("/:id/quality", productionOnly, h.Quality)
	r.POST("/:id/approve", qaOnly, h.Approve)
}

func (h *OrderHandler) Requirements(c *gin.Context) {
	orderID := c.Param("id")
	req, err := h.quality.Requirements(c.Request.Context(), orderID)
	if err != nil {
		respondDomainError(c, err, "failed to load requirements")
		return
	}

	c.JSON(http.StatusOK, RequirementsResponse{
		OrderID:             orderID,
		Category:            req.Category,
		Templates:           req.Templates,
		MinimumPhotoCount:   req.MinimumPhotoCount,
		AnnotationsRequired: req.AnnotationsRequired,
	})
}

func (h *OrderHandler) Quality(c *gin.Context) {
	report, err := h.quality.Evaluate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err, "failed to evaluate photos")
		return
	}
	c.JSON(http.StatusOK, newQualityReportResponse(report))
}

// Approve approves every pending photo of a complete order. An incomplete
// order answers 422 with the report.
func (h *OrderHandler) Approve(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	report, approved, err := h.approver.ApproveOrder(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondDomainError(c, err, "failed to approve order")
		return
	}

	photos := make([]PhotoSummary, len(approved))
	for i, p := range approved {
		photos[i] = newPhotoSummary(p)
	}
	c.JSON(http.StatusOK, OrderApprovalResponse{Report: newQualityReportResponse(report), Approved: photos})
}
