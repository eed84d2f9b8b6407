package generator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"illustrator/pkg/backend/llmerrors"
	"illustrator/pkg/skeleton"
)

func TestNormalizeDefaults(t *testing.T) {
	var r Request
	r.Normalize()
	want := Style{ColorScheme: SchemeProfessional, IconStyle: IconEmoji, Density: DensityBalanced, Orientation: OrientationAuto}
	if r.Style != want {
		t.Errorf("Normalize() style = %+v, want %+v", r.Style, want)
	}

	r = Request{Style: Style{Density: DensityCompact}}
	r.Normalize()
	if r.Style.Density != DensityCompact {
		t.Errorf("Normalize() overwrote density: %s", r.Style.Density)
	}
}

func TestContextSummary(t *testing.T) {
	empty := Request{}
	if got := empty.ContextSummary(); !reflect.DeepEqual(got, []string{"General business context"}) {
		t.Errorf("empty summary = %v", got)
	}

	r := Request{PresentationTitle: "Q3 Review", Industry: "Retail", Tone: "formal"}
	want := []string{"Presentation: Q3 Review", "Industry: Retail", "Tone: formal"}
	if got := r.ContextSummary(); !reflect.DeepEqual(got, want) {
		t.Errorf("summary = %v, want %v", got, want)
	}
}

func TestResolveOrientation(t *testing.T) {
	tests := []struct {
		o    Orientation
		w, h int
		want Orientation
	}{
		{OrientationAuto, 1920, 1080, OrientationHorizontal},
		{OrientationAuto, 600, 600, OrientationHorizontal},
		{OrientationAuto, 360, 1080, OrientationVertical},
		{"", 360, 1080, OrientationVertical},
		{OrientationVertical, 1920, 360, OrientationVertical},
		{OrientationAuto, 100, 0, OrientationHorizontal},
	}
	for _, tt := range tests {
		if got := ResolveOrientation(tt.o, tt.w, tt.h); got != tt.want {
			t.Errorf("ResolveOrientation(%q, %d, %d) = %s, want %s", tt.o, tt.w, tt.h, got, tt.want)
		}
	}
}

func TestStyleEnumerations(t *testing.T) {
	if !SchemeGradient.Valid() || ColorScheme("neon").Valid() {
		t.Error("ColorScheme.Valid")
	}
	if !IconDuotone.Valid() || IconStyle("3d").Valid() {
		t.Error("IconStyle.Valid")
	}
	if !DensitySpacious.Valid() || Density("dense").Valid() {
		t.Error("Density.Valid")
	}
	if !OrientationAuto.Valid() || Orientation("diagonal").Valid() {
		t.Error("Orientation.Valid")
	}
}

func TestToErrorInfo(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{"request", &RequestConstraintError{Reason: "Grid width 40 exceeds maximum 32 for pyramid"}, CodeConstraintViolation, false},
		{"template", &TemplateNotFoundError{Type: "venn", Size: 9, Err: skeleton.ErrNotFound}, CodeTemplateNotFound, false},
		{"malformed", &MalformedArtifactError{Err: errors.New("unclosed")}, CodeGenerationFailed, true},
		{"backend rate limit", &BackendInvocationError{Err: llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "429")}, CodeGenerationFailed, true},
		{"backend bad prompt", &BackendInvocationError{Err: llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "400")}, CodeGenerationFailed, false},
		{"wrapped", fmt.Errorf("route: %w", &RequestConstraintError{Reason: "x"}), CodeConstraintViolation, false},
		{"deadline", context.DeadlineExceeded, CodeGenerationFailed, true},
		{"other", errors.New("boom"), CodeInternal, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ToErrorInfo(tt.err)
			if info.Code != tt.code || info.Retryable != tt.retryable {
				t.Errorf("ToErrorInfo() = %+v, want code %s retryable %v", info, tt.code, tt.retryable)
			}
			if info.Message == "" {
				t.Error("empty message")
			}
		})
	}
}

func TestAspectRatioRounding(t *testing.T) {
	if got := aspectRatio(1440, 660); got != 2.18 {
		t.Errorf("aspectRatio = %v, want 2.18", got)
	}
	if got := aspectRatio(10, 0); got != 1.0 {
		t.Errorf("aspectRatio with zero height = %v", got)
	}
}
