package templates

import (
	"strings"
	"testing"
)

func sampleData() *Data {
	return &Data{
		Type:         "pyramid",
		Description:  "Hierarchical pyramid with 3-6 levels",
		Topic:        "Maslow's hierarchy for product teams",
		Unit:         "levels",
		ItemCount:    4,
		WidthPx:      1440,
		HeightPx:     720,
		Orientation:  "horizontal",
		IconStyle:    "emoji",
		Density:      "balanced",
		ContextLines: []string{"Audience: engineering managers", "Tone: professional"},
		Continuity:   []PriorItem{{Sequence: 1, Title: "Why teams stall", Summary: "Three root causes"}},
		Palette:      Palette{Primary: "#1E40AF", Secondary: []string{"#3B82F6", "#60A5FA"}, Accent: "#0D9488", Background: "#F8FAFC", Text: "#1E293B"},
		Roles:        []Role{{ID: "level_4_label", Min: 5, Max: 18}, {ID: "level_1_label", Min: 12, Max: 20}},
	}
}

func TestNewRenderer(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("Failed to create renderer: %v", err)
	}
	if len(r.Available()) != 3 {
		t.Errorf("Expected 3 templates, got %d", len(r.Available()))
	}
}

func TestRenderFields(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("Failed to create renderer: %v", err)
	}

	out, err := r.Render(FieldsTemplate, sampleData())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	for _, want := range []string{
		"**pyramid**",
		"Maslow's hierarchy for product teams",
		"- Audience: engineering managers",
		"1. Why teams stall: Three root causes",
		"4 levels, rendered at 1440x720px",
		"`level_4_label`: 5-18 chars",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Fix these") {
		t.Error("Feedback section should be omitted without feedback")
	}
}

func TestRenderFieldsWithFeedback(t *testing.T) {
	r, _ := NewRenderer()
	data := sampleData()
	data.Feedback = []string{"level_4_label is 30 characters; shorten it to at most 18"}

	out, err := r.Render(FieldsTemplate, data)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(out, "- level_4_label is 30 characters") {
		t.Errorf("Expected feedback in output:\n%s", out)
	}
}

func TestRenderVector(t *testing.T) {
	r, _ := NewRenderer()
	data := sampleData()
	data.Type = "timeline"

	out, err := r.Render(VectorTemplate, data)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(out, `viewBox="0 0 1440 720"`) {
		t.Errorf("Expected viewBox hint:\n%s", out)
	}
	if !strings.Contains(out, "secondary #3B82F6, #60A5FA") {
		t.Errorf("Expected joined secondary colors:\n%s", out)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	r, _ := NewRenderer()
	if _, err := r.Render(Name("missing.tpl.md"), sampleData()); err == nil {
		t.Error("Expected error for unknown template")
	}
}
