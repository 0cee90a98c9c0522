package domain

import (
	"fmt"
	"strings"
	"time"
)

// ApprovalStatus is the review status of a photo document.
type ApprovalStatus string

const (
	PhotoPending  ApprovalStatus = "PENDING"
	PhotoApproved ApprovalStatus = "APPROVED"
	PhotoRejected ApprovalStatus = "REJECTED"
)

// ParseApprovalStatus accepts status names case-insensitively.
func ParseApprovalStatus(s string) (ApprovalStatus, error) {
	status := ApprovalStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case PhotoPending, PhotoApproved, PhotoRejected:
		return status, nil
	case "":
		return PhotoPending, nil
	}
	return "", fmt.Errorf("unknown photo status %q", s)
}

// PhotoTemplate names a required shot (angle or detail) for an order.
type PhotoTemplate string

const (
	TemplateFrontView  PhotoTemplate = "FRONT_VIEW"
	TemplateBackView   PhotoTemplate = "BACK_VIEW"
	TemplateLeftSide   PhotoTemplate = "LEFT_SIDE"
	TemplateRightSide  PhotoTemplate = "RIGHT_SIDE"
	TemplateTopView    PhotoTemplate = "TOP_VIEW"
	TemplateBottomView PhotoTemplate = "BOTTOM_VIEW"
	TemplateCloseUp    PhotoTemplate = "CLOSE_UP"
	TemplateDetailView PhotoTemplate = "DETAIL_VIEW"
)

// Annotation is a reviewer-visible mark on a photo.
type Annotation struct {
	ID        string
	Text      string
	X, Y      float64
	CreatedBy string
	CreatedAt time.Time
}

// PhotoDocument is a photo taken for an order along with its review outcome.
type PhotoDocument struct {
	ID              string
	OrderID         string
	Template        PhotoTemplate
	ObjectKey       string
	TakenBy         string
	TakenAt         time.Time
	Annotations     []Annotation
	Status          ApprovalStatus
	ReviewedBy      *string
	ReviewedAt      *time.Time
	RejectionReason *string
}

// IsDecided reports whether the photo has been approved or rejected.
func (p PhotoDocument) IsDecided() bool {
	return p.Status == PhotoApproved || p.Status == PhotoRejected
}

// HasAnnotations reports whether at least one non-blank annotation exists.
func (p PhotoDocument) HasAnnotations() bool {
	for _, a := range p.Annotations {
		if strings.TrimSpace(a.Text) != "" {
			return true
		}
	}
	return false
}

// Approve records an approval. Already decided photos return a *TransitionError.
func (p *PhotoDocument) Approve(reviewer string, at time.Time) error {
	if p.IsDecided() {
		return &TransitionError{From: strings.ToLower(string(p.Status)), Action: "approve"}
	}
	if strings.TrimSpace(reviewer) == "" {
		return ErrReviewerRequired
	}
	at = at.UTC()
	p.Status = PhotoApproved
	p.ReviewedBy = &reviewer
	p.ReviewedAt = &at
	p.RejectionReason = nil
	return nil
}

// Reject records a rejection with its reason. Already decided photos return a *TransitionError.
func (p *PhotoDocument) Reject(reviewer string, at time.Time, reason string) error {
	if p.IsDecided() {
		return &TransitionError{From: strings.ToLower(string(p.Status)), Action: "reject"}
	}
	if strings.TrimSpace(reviewer) == "" {
		return ErrReviewerRequired
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	at = at.UTC()
	p.Status = PhotoRejected
	p.ReviewedBy = &reviewer
	p.ReviewedAt = &at
	p.RejectionReason = &reason
	return nil
}

// Order is a production order whose product is photographed for QC.
type Order struct {
	ID            string
	OrderNumber   string
	ProductName   string
	Specification string
	Notes         string
	Category      *ProductCategory
	CreatedAt     time.Time
}
