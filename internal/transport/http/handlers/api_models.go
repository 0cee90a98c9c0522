package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// ApprovalSummary describes an account's approval decision.
type ApprovalSummary struct {
	Status    domain.ApprovalKind `json:"status"`
	Reviewer  string              `json:"reviewer,omitempty"`
	DecidedAt *time.Time          `json:"decided_at,omitempty"`
	Reason    string              `json:"reason,omitempty"`
}

// UserSummary is the API view of an operator account.
type UserSummary struct {
	ID          string          `json:"id"`
	Username    string          `json:"username"`
	DisplayName string          `json:"display_name"`
	Email       *string         `json:"email,omitempty"`
	Phone       *string         `json:"phone,omitempty"`
	Approval    ApprovalSummary `json:"approval"`
	Roles       []string        `json:"roles"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newUserSummary(user domain.User) UserSummary {
	approval := ApprovalSummary{
		Status:   user.Approval.Kind(),
		Reviewer: user.Approval.Reviewer(),
		Reason:   user.Approval.Reason(),
	}
	if !user.Approval.IsPending() {
		decided := user.Approval.DecidedAt()
		approval.DecidedAt = &decided
	}
	return UserSummary{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName(),
		Email:       user.Email,
		Phone:       user.Phone,
		Approval:    approval,
		Roles:       user.Roles.Strings(),
		CreatedAt:   user.CreatedAt,
	}
}

func newUserSummaries(users []domain.User) []UserSummary {
	out := make([]UserSummary, len(users))
	for i, u := range users {
		out[i] = newUserSummary(u)
	}
	return out
}

// LoginRequest is the payload for POST /session/login. Blank fields are
// rejected by the authentication service, not by binding.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse describes the live operator session.
type SessionResponse struct {
	User         UserSummary `json:"user"`
	StartedAt    time.Time   `json:"started_at"`
	LastActivity time.Time   `json:"last_activity"`
	IdleTimeout  string      `json:"idle_timeout"`
}

// RegisterRequest is the payload for POST /users.
type RegisterRequest struct {
	Username  string  `json:"username" binding:"required"`
	Password  string  `json:"password" binding:"required"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email" binding:"omitempty,email"`
	Phone     *string `json:"phone"`
}

// RejectRequest carries the mandatory reason of a rejection.
type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// UserListResponse wraps a page of users.
type UserListResponse struct {
	Users  []UserSummary `json:"users"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// PhotoSummary is the API view of a photo document.
type PhotoSummary struct {
	ID              string                `json:"id"`
	OrderID         string                `json:"order_id"`
	Template        domain.PhotoTemplate  `json:"template"`
	Status          domain.ApprovalStatus `json:"status"`
	TakenBy         string                `json:"taken_by"`
	TakenAt         time.Time             `json:"taken_at"`
	Annotations     int                   `json:"annotations"`
	ReviewedBy      *string               `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time            `json:"reviewed_at,omitempty"`
	RejectionReason *string               `json:"rejection_reason,omitempty"`
}

func newPhotoSummary(photo domain.PhotoDocument) PhotoSummary {
	return PhotoSummary{
		ID:              photo.ID,
		OrderID:         photo.OrderID,
		Template:        photo.Template,
		Status:          photo.Status,
		TakenBy:         photo.TakenBy,
		TakenAt:         photo.TakenAt,
		Annotations:     len(photo.Annotations),
		ReviewedBy:      photo.ReviewedBy,
		ReviewedAt:      photo.ReviewedAt,
		RejectionReason: photo.RejectionReason,
	}
}

// PhotoURLResponse carries a presigned download link.
type PhotoURLResponse struct {
	URL string `json:"url"`
}

// RequirementsResponse describes the photos an order needs.
type RequirementsResponse struct {
	OrderID             string                 `json:"order_id"`
	Category            domain.ProductCategory `json:"category"`
	Templates           []domain.PhotoTemplate `json:"templates"`
	MinimumPhotoCount   int                    `json:"minimum_photo_count"`
	AnnotationsRequired bool                   `json:"annotations_required"`
}

// QualityReportResponse is the API view of a quality evaluation.
type QualityReportResponse struct {
	OrderID            string                 `json:"order_id"`
	Category           domain.ProductCategory `json:"category"`
	Complete           bool                   `json:"complete"`
	RequiredCount      int                    `json:"required_count"`
	PhotoCount         int                    `json:"photo_count"`
	MissingTemplates   []domain.PhotoTemplate `json:"missing_templates"`
	UnannotatedPhotos  []string               `json:"unannotated_photos"`
	AnnotationRequired bool                   `json:"annotation_required"`
}

func newQualityReportResponse(report domain.QualityReport) QualityReportResponse {
	resp := QualityReportResponse{
		OrderID:            report.OrderID,
		Category:           report.Category,
		Complete:           report.Complete(),
		RequiredCount:      report.RequiredCount,
		PhotoCount:         report.PhotoCount,
		MissingTemplates:   report.MissingTemplates,
		UnannotatedPhotos:  report.UnannotatedPhotos,
		AnnotationRequired: report.AnnotationRequired,
	}
	if resp.MissingTemplates == nil {
		resp.MissingTemplates = []domain.PhotoTemplate{}
	}
	if resp.UnannotatedPhotos == nil {
		resp.UnannotatedPhotos = []string{}
	}
	return resp
}

// IncompleteOrderResponse is returned when an order cannot be approved yet.
type IncompleteOrderResponse struct {
	Error   string                `json:"error"`
	TraceID string                `json:"trace_id,omitempty"`
	Report  QualityReportResponse `json:"report"`
}

// OrderApprovalResponse lists the photos approved with the order.
type OrderApprovalResponse struct {
	Report   QualityReportResponse `json:"report"`
	Approved []PhotoSummary        `json:"approved"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports the state of every dependency.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
