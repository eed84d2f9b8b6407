// Package templates renders the embedded instruction templates sent to the generative backend.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed *.tpl.md
var templateFS embed.FS

// Name identifies an embedded template.
type Name string

const (
	// SystemTemplate is the shared system instruction.
	SystemTemplate Name = "system.tpl.md"
	// FieldsTemplate asks for a flat field map for a skeleton.
	FieldsTemplate Name = "fields.tpl.md"
	// VectorTemplate asks for a complete SVG plus an item list.
	VectorTemplate Name = "vector.tpl.md"
)

// Role is a field budget as shown to the backend.
type Role struct {
	ID  string
	Min int
	Max int
}

// PriorItem is one earlier artifact in the narrative.
type PriorItem struct {
	Sequence int
	Title    string
	Summary  string
}

// Palette is the subset of color information the templates print.
type Palette struct {
	Primary    string
	Secondary  []string
	Accent     string
	Background string
	Text       string
}

// Data holds everything a template can reference.
type Data struct {
	Type         string
	Description  string
	Topic        string
	Unit         string
	ItemCount    int
	WidthPx      int
	HeightPx     int
	Orientation  string
	IconStyle    string
	Density      string
	ContextLines []string
	Continuity   []PriorItem
	Palette      Palette
	Roles        []Role
	Feedback     []string
}

// Renderer holds the parsed templates. It is safe for concurrent use.
type Renderer struct {
	templates map[Name]*template.Template
}

// NewRenderer parses all embedded templates.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[Name]*template.Template)}
	funcs := template.FuncMap{
		"join":  strings.Join,
		"upper": strings.ToUpper,
	}
	for _, name := range []Name{SystemTemplate, FieldsTemplate, VectorTemplate} {
		content, err := templateFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}
		tmpl, err := template.New(string(name)).Funcs(funcs).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// Render executes the named template.
func (r *Renderer) Render(name Name, data *Data) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("template %s not found", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// Available lists the loaded template names.
func (r *Renderer) Available() []Name {
	names := make([]Name, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	return names
}
