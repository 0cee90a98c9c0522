package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ProductCategory is the coarse product classification driving photo requirements.
type ProductCategory string

const (
	CategoryStandard ProductCategory = "STANDARD"
	CategorySimple   ProductCategory = "SIMPLE"
	CategoryComplex  ProductCategory = "COMPLEX"
	CategoryCustom   ProductCategory = "CUSTOM"
)

// ParseProductCategory accepts category names case-insensitively.
func ParseProductCategory(s string) (ProductCategory, error) {
	c := ProductCategory(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CategoryStandard, CategorySimple, CategoryComplex, CategoryCustom:
		return c, nil
	}
	return "", fmt.Errorf("unknown product category %q", s)
}

// PhotoRequirements is one row of the quality rules table.
type PhotoRequirements struct {
	Category            ProductCategory
	Templates           []PhotoTemplate
	MinimumPhotoCount   int
	AnnotationsRequired bool
}

// categoryKeywords is checked in order; the first matching row wins.
var categoryKeywords = []struct {
	category ProductCategory
	keywords []string
}{
	{CategoryCustom, []string{"custom", "special order"}},
	{CategoryComplex, []string{"complex", "assembly"}},
	{CategorySimple, []string{"simple", "basic"}},
}

var (
	simpleTemplates   = []PhotoTemplate{TemplateFrontView, TemplateBackView}
	standardTemplates = append(append([]PhotoTemplate{}, simpleTemplates...), TemplateLeftSide, TemplateRightSide)
	complexTemplates  = append(append([]PhotoTemplate{}, standardTemplates...), TemplateTopView, TemplateCloseUp)
	customTemplates   = append(append([]PhotoTemplate{}, complexTemplates...), TemplateBottomView, TemplateDetailView)
)

// DefaultQualityRules is the requirements table used in production.
var DefaultQualityRules = map[ProductCategory]PhotoRequirements{
	CategorySimple:   {Category: CategorySimple, Templates: simpleTemplates, MinimumPhotoCount: 2, AnnotationsRequired: false},
	CategoryStandard: {Category: CategoryStandard, Templates: standardTemplates, MinimumPhotoCount: 4, AnnotationsRequired: true},
	CategoryComplex:  {Category: CategoryComplex, Templates: complexTemplates, MinimumPhotoCount: 6, AnnotationsRequired: true},
	CategoryCustom:   {Category: CategoryCustom, Templates: customTemplates, MinimumPhotoCount: 8, AnnotationsRequired: true},
}

// PhotoQualityPolicy maps orders to photo requirements. It is a fixed rules table.
type PhotoQualityPolicy struct {
	rules map[ProductCategory]PhotoRequirements
}

// NewPhotoQualityPolicy returns a policy backed by DefaultQualityRules.
func NewPhotoQualityPolicy() PhotoQualityPolicy {
	return PhotoQualityPolicy{rules: DefaultQualityRules}
}

// CategoryOf returns the explicit order category when set, otherwise derives one
// from the product name, specification and notes.
func (p PhotoQualityPolicy) CategoryOf(order Order) ProductCategory {
	if order.Category != nil && *order.Category != "" {
		return *order.Category
	}
	return CategorizeText(order.ProductName + " " + order.Specification + " " + order.Notes)
}

// CategorizeText applies the keyword table to free text.
func CategorizeText(text string) ProductCategory {
	lowered := strings.ToLower(text)
	for _, row := range categoryKeywords {
		for _, kw := range row.keywords {
			if strings.Contains(lowered, kw) {
				return row.category
			}
		}
	}
	return CategoryStandard
}

// Requirements returns the rules row for the order.
func (p PhotoQualityPolicy) Requirements(order Order) PhotoRequirements {
	rules := p.rules
	if rules == nil {
		rules = DefaultQualityRules
	}
	req, ok := rules[p.CategoryOf(order)]
	if !ok {
		req = rules[CategoryStandard]
	}
	return req
}

// RequiredTemplates returns the required templates sorted by name.
func (p PhotoQualityPolicy) RequiredTemplates(order Order) []PhotoTemplate {
	src := p.Requirements(order).Templates
	out := make([]PhotoTemplate, len(src))
	copy(out, src)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p PhotoQualityPolicy) MinimumPhotoCount(order Order) int {
	return p.Requirements(order).MinimumPhotoCount
}

func (p PhotoQualityPolicy) RequiresAnnotations(order Order) bool {
	return p.Requirements(order).AnnotationsRequired
}

// QualityReport describes how a photo set measures against the order's requirements.
type QualityReport struct {
	OrderID            string
	Category           ProductCategory
	RequiredCount      int
	PhotoCount         int
	MissingTemplates   []PhotoTemplate
	UnannotatedPhotos  []string
	AnnotationRequired bool
}

// Complete reports whether the photo set satisfies every requirement.
func (r QualityReport) Complete() bool {
	return r.PhotoCount >= r.RequiredCount && len(r.MissingTemplates) == 0 && len(r.UnannotatedPhotos) == 0
}

// Evaluate checks photos against the order's requirements. Rejected photos do not count.
func (p PhotoQualityPolicy) Evaluate(order Order, photos []PhotoDocument) QualityReport {
	req := p.Requirements(order)
	report := QualityReport{
		OrderID:            order.ID,
		Category:           req.Category,
		RequiredCount:      req.MinimumPhotoCount,
		AnnotationRequired: req.AnnotationsRequired,
	}

	covered := make(map[PhotoTemplate]struct{}, len(photos))
	for _, photo := range photos {
		if photo.Status == PhotoRejected {
			continue
		}
		report.PhotoCount++
		covered[photo.Template] = struct{}{}
		if req.AnnotationsRequired && !photo.HasAnnotations() {
			report.UnannotatedPhotos = append(report.UnannotatedPhotos, photo.ID)
		}
	}

	for _, tmpl := range p.RequiredTemplates(order) {
		if _, ok := covered[tmpl]; !ok {
			report.MissingTemplates = append(report.MissingTemplates, tmpl)
		}
	}

	return report
}
