package domain

import (
	"reflect"
	"testing"
)

func TestPhotoQualityPolicy_CategoryMatching(t *testing.T) {
	policy := NewPhotoQualityPolicy()

	cases := []struct {
		name  string
		order Order
		want  ProductCategory
	}{
		{"custom in name", Order{ProductName: "Custom Bracket"}, CategoryCustom},
		{"special order in notes", Order{ProductName: "Bracket", Notes: "SPECIAL ORDER for client"}, CategoryCustom},
		{"custom beats complex", Order{ProductName: "Complex assembly", Specification: "custom finish"}, CategoryCustom},
		{"assembly in specification field", Order{ProductName: "Frame", Specification: "Weld assembly"}, CategoryComplex},
		{"complex beats basic", Order{ProductName: "Basic complex part"}, CategoryComplex},
		{"basic", Order{ProductName: "Basic plate"}, CategorySimple},
		{"simple", Order{Notes: "simple cut"}, CategorySimple},
		{"no keyword", Order{ProductName: "Steel beam", Specification: "S355"}, CategoryStandard},
		{"empty", Order{}, CategoryStandard},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy.CategoryOf(tc.order); got != tc.want {
				t.Fatalf("CategoryOf = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestPhotoQualityPolicy_ExplicitCategoryWins(t *testing.T) {
	policy := NewPhotoQualityPolicy()
	simple := CategorySimple
	order := Order{ProductName: "Custom gate", Category: &simple}

	if got := policy.CategoryOf(order); got != CategorySimple {
		t.Fatalf("expected explicit category to win, got %s", got)
	}
}

func TestPhotoQualityPolicy_MinimumPhotoCount(t *testing.T) {
	policy := NewPhotoQualityPolicy()

	if got := policy.MinimumPhotoCount(Order{ProductName: "custom railing"}); got != 8 {
		t.Fatalf("custom count = %d, want 8", got)
	}
	if got := policy.MinimumPhotoCount(Order{ProductName: "basic hinge"}); got != 2 {
		t.Fatalf("simple count = %d, want 2", got)
	}
	if got := policy.MinimumPhotoCount(Order{ProductName: "hinge"}); got != 4 {
		t.Fatalf("standard count = %d, want 4", got)
	}
	if got := policy.MinimumPhotoCount(Order{ProductName: "pump assembly"}); got != 6 {
		t.Fatalf("complex count = %d, want 6", got)
	}
}

func TestPhotoQualityPolicy_AnnotationsAndTemplates(t *testing.T) {
	policy := NewPhotoQualityPolicy()

	if policy.RequiresAnnotations(Order{ProductName: "basic hinge"}) {
		t.Fatalf("simple products must not require annotations")
	}
	for _, name := range []string{"hinge", "pump assembly", "custom railing"} {
		if !policy.RequiresAnnotations(Order{ProductName: name}) {
			t.Fatalf("%q must require annotations", name)
		}
	}

	want := []PhotoTemplate{TemplateBackView, TemplateFrontView}
	if got := policy.RequiredTemplates(Order{ProductName: "basic hinge"}); !reflect.DeepEqual(got, want) {
		t.Fatalf("RequiredTemplates = %v, want %v", got, want)
	}

	custom := policy.RequiredTemplates(Order{ProductName: "custom"})
	if len(custom) != 8 {
		t.Fatalf("expected 8 custom templates, got %v", custom)
	}
	custom[0] = "MUTATED"
	if policy.RequiredTemplates(Order{ProductName: "custom"})[0] == "MUTATED" {
		t.Fatalf("RequiredTemplates must return a copy")
	}
}

func TestPhotoQualityPolicy_Evaluate(t *testing.T) {
	policy := NewPhotoQualityPolicy()
	order := Order{ID: "o-1", ProductName: "hinge"}
	note := []Annotation{{Text: "scratch left corner"}}

	photos := []PhotoDocument{
		{ID: "p1", Template: TemplateFrontView, Status: PhotoPending, Annotations: note},
		{ID: "p2", Template: TemplateBackView, Status: PhotoPending},
		{ID: "p3", Template: TemplateLeftSide, Status: PhotoRejected, Annotations: note},
		{ID: "p4", Template: TemplateRightSide, Status: PhotoApproved, Annotations: note},
	}

	report := policy.Evaluate(order, photos)
	if report.Complete() {
		t.Fatalf("expected incomplete report, got %+v", report)
	}
	if report.PhotoCount != 3 || report.RequiredCount != 4 {
		t.Fatalf("unexpected counts %d/%d", report.PhotoCount, report.RequiredCount)
	}
	if !reflect.DeepEqual(report.MissingTemplates, []PhotoTemplate{TemplateLeftSide}) {
		t.Fatalf("unexpected missing templates %v", report.MissingTemplates)
	}
	if !reflect.DeepEqual(report.UnannotatedPhotos, []string{"p2"}) {
		t.Fatalf("unexpected unannotated photos %v", report.UnannotatedPhotos)
	}

	photos[1].Annotations = note
	photos[2].Status = PhotoPending
	if report := policy.Evaluate(order, photos); !report.Complete() {
		t.Fatalf("expected complete report, got %+v", report)
	}
}
