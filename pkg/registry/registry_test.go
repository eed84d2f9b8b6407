package registry

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadEmbedded(t *testing.T) {
	r, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	ids := r.TypeIDs()
	if len(ids) != 14 {
		t.Fatalf("Expected 14 types, got %d: %v", len(ids), ids)
	}
	if ids[0] != "pyramid" {
		t.Errorf("Expected declaration order to start with pyramid, got %s", ids[0])
	}

	pyramid, ok := r.Type("pyramid")
	if !ok {
		t.Fatal("pyramid not registered")
	}
	if pyramid.Mode != ModeTemplate {
		t.Errorf("Expected pyramid to be a template type, got %s", pyramid.Mode)
	}
	if pyramid.MinItems != 3 || pyramid.MaxItems != 6 || pyramid.DefaultItems != 4 {
		t.Errorf("Unexpected pyramid item range: %+v", pyramid)
	}
	if pyramid.AspectRatio == nil || *pyramid.AspectRatio != [2]int{3, 2} {
		t.Errorf("Expected pyramid aspect 3:2, got %v", pyramid.AspectRatio)
	}

	process, _ := r.Type("process")
	if process.Mode != ModeSynthesized || process.AspectRatio != nil {
		t.Errorf("Unexpected process constraint: %+v", process)
	}
}

func TestTypesByMode(t *testing.T) {
	r := MustLoad()
	templates := r.TypesByMode(ModeTemplate)
	want := []string{"pyramid", "funnel", "concentric_circles", "concept_spread", "venn", "comparison"}
	if strings.Join(templates, ",") != strings.Join(want, ",") {
		t.Errorf("Expected template types %v, got %v", want, templates)
	}
	if len(r.TypesByMode(ModeSynthesized)) != 8 {
		t.Errorf("Expected 8 synthesized types, got %v", r.TypesByMode(ModeSynthesized))
	}
}

func TestFieldRolesTemplate(t *testing.T) {
	r := MustLoad()

	roles, err := r.FieldRoles("pyramid", 4)
	if err != nil {
		t.Fatalf("FieldRoles failed: %v", err)
	}
	byID := make(map[string]FieldRole, len(roles))
	for _, role := range roles {
		byID[role.ID] = role
	}

	top, ok := byID["level_4_label"]
	if !ok {
		t.Fatal("Expected level_4_label role")
	}
	if top.Min != 5 || top.Max != 18 || top.Position != "level_4" || top.Role != "label" {
		t.Errorf("Unexpected top label role: %+v", top)
	}
	if base := byID["level_1_label"]; base.Min != 12 || base.Max != 20 {
		t.Errorf("Unexpected base label bounds: %+v", base)
	}
	if _, ok := byID["overview_heading"]; !ok {
		t.Error("Expected overview heading for 4-level pyramid")
	}

	six, _ := r.FieldRoles("pyramid", 6)
	for _, role := range six {
		if role.Position == "overview" {
			t.Error("6-level pyramid should not declare an overview")
		}
	}

	if _, err := r.FieldRoles("pyramid", 9); err == nil {
		t.Error("Expected error for undeclared size")
	}
	if _, err := r.FieldRoles("nope", 3); err == nil {
		t.Error("Expected error for unknown type")
	}
}

func TestFieldRolesSynthesized(t *testing.T) {
	r := MustLoad()

	roles, err := r.FieldRoles("timeline", 3)
	if err != nil {
		t.Fatalf("FieldRoles failed: %v", err)
	}
	if len(roles) != 6 {
		t.Fatalf("Expected 6 roles (3 items x 2 roles), got %d", len(roles))
	}
	if roles[0].ID != "item_1_description" || roles[1].ID != "item_1_title" {
		t.Errorf("Unexpected role ordering: %s, %s", roles[0].ID, roles[1].ID)
	}
	if _, err := r.FieldRoles("timeline", 11); err == nil {
		t.Error("Expected error for item count above max")
	}
}

func TestFieldRolesNaturalOrder(t *testing.T) {
	r := MustLoad()
	roles, err := r.FieldRoles("hierarchy", 12)
	if err != nil {
		t.Fatalf("FieldRoles failed: %v", err)
	}
	last := roles[len(roles)-1]
	if last.Position != "item_12" {
		t.Errorf("Expected item_12 last, got %s", last.Position)
	}
}

func TestSizes(t *testing.T) {
	r := MustLoad()
	tests := []struct {
		typeID string
		want   []int
	}{
		{"pyramid", []int{3, 4, 5, 6}},
		{"funnel", []int{3, 4, 5}},
		{"concept_spread", []int{6}},
		{"venn", []int{2, 3, 4}},
		{"statistics", []int{2, 3, 4, 5, 6, 7, 8}},
		{"unknown", nil},
	}
	for _, tt := range tests {
		got := r.Sizes(tt.typeID)
		if len(got) != len(tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.typeID, tt.want, got)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s: expected %v, got %v", tt.typeID, tt.want, got)
				break
			}
		}
	}
}

func TestLoadFSRejectsMissingTemplateSize(t *testing.T) {
	fsys := fstest.MapFS{
		"types.yaml": {Data: []byte(`
- id: pyramid
  mode: template
  grid: {min_width: 6, min_height: 4, max_width: 32, max_height: 18}
  aspect: {class: fixed, ratio: [3, 2]}
  items: {min: 3, max: 4, default: 3}
`)},
		"field_roles.yaml": {Data: []byte(`
pyramid:
  3:
    level_1: {label: [1, 10]}
`)},
		"palettes.yaml": {Data: []byte(`
professional: {primary: "#000000", accent: "#111111"}
`)},
	}
	_, err := LoadFS(fsys)
	if err == nil || !strings.Contains(err.Error(), "size 4") {
		t.Errorf("Expected missing size error, got %v", err)
	}
}

func TestLoadFSRejectsBadBounds(t *testing.T) {
	fsys := fstest.MapFS{
		"types.yaml": {Data: []byte(`
- id: list
  mode: synthesized
  grid: {min_width: 4, min_height: 4, max_width: 32, max_height: 18}
  aspect: {class: portrait}
  items: {min: 3, max: 10}
  item_roles: {title: [40, 3]}
`)},
		"field_roles.yaml": {Data: []byte("{}")},
		"palettes.yaml":    {Data: []byte(`professional: {primary: "#000000"}`)},
	}
	if _, err := LoadFS(fsys); err == nil {
		t.Error("Expected inverted bounds to be rejected")
	}
}

func TestLoadFSRejectsUnknownMode(t *testing.T) {
	fsys := fstest.MapFS{
		"types.yaml": {Data: []byte(`
- id: list
  mode: raster
  grid: {min_width: 4, min_height: 4, max_width: 32, max_height: 18}
  aspect: {class: portrait}
  items: {min: 3, max: 10}
`)},
		"field_roles.yaml": {Data: []byte("{}")},
		"palettes.yaml":    {Data: []byte(`professional: {primary: "#000000"}`)},
	}
	_, err := LoadFS(fsys)
	if err == nil || !strings.Contains(err.Error(), "invalid mode") {
		t.Errorf("Expected invalid mode error, got %v", err)
	}
}
