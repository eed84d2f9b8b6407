package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"illustrator/pkg/backend/llmerrors"
	"illustrator/pkg/registry"
	"illustrator/pkg/templates"
)

// PriorItem summarizes an earlier artifact in the same presentation.
type PriorItem struct {
	Sequence int    `json:"sequence"`
	Title    string `json:"title"`
	Summary  string `json:"summary,omitempty"`
}

// Instructions describe what the backend should produce.
type Instructions struct {
	Type        string
	Description string
	Mode        registry.OutputMode
	Topic       string
	ItemCount   int
	Unit        string
	WidthPx     int
	HeightPx    int
	Orientation string
	IconStyle   string
	Density     string
	Context     []string
	Continuity  []PriorItem
	Palette     registry.Palette
	// Feedback lists violations from the previous attempt, empty on the first one.
	Feedback []string
}

// Constraints are the field budgets the backend is told about.
type Constraints struct {
	Roles []registry.FieldRole
}

// SynthesizedItem is one item reported alongside a vector artifact.
type SynthesizedItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Value       string `json:"value"`
	Color       string `json:"color"`
}

// Synthesis is a backend result: Fields for template mode, SVG and Items for
// synthesized mode. Lists the backend returned in template mode are kept in Content,
// keyed like Fields, for expansion into repeated markup.
type Synthesis struct {
	Fields    map[string]string
	Content   map[string]any
	SVG       string
	Items     []SynthesizedItem
	BackendID string
	Usage     Usage
}

// Synthesizer produces content for an infographic.
type Synthesizer interface {
	Synthesize(ctx context.Context, in Instructions, c Constraints) (Synthesis, error)
	ID() string
}

// LLMSynthesizer drives an LLMClient with the embedded instruction templates.
type LLMSynthesizer struct {
	client      LLMClient
	renderer    *templates.Renderer
	maxTokens   int
	temperature float32
}

// NewLLMSynthesizer returns a synthesizer. Zero maxTokens or temperature fall back to defaults.
func NewLLMSynthesizer(client LLMClient, renderer *templates.Renderer, maxTokens int, temperature float32) *LLMSynthesizer {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if temperature <= 0 {
		temperature = TemperatureDefault
	}
	return &LLMSynthesizer{client: client, renderer: renderer, maxTokens: maxTokens, temperature: temperature}
}

// ID names the backend model.
func (s *LLMSynthesizer) ID() string {
	return s.client.GetModelName()
}

// Synthesize renders the prompt, calls the backend and parses its reply.
func (s *LLMSynthesizer) Synthesize(ctx context.Context, in Instructions, c Constraints) (Synthesis, error) {
	tmpl := templates.FieldsTemplate
	temperature := s.temperature
	if in.Mode == registry.ModeSynthesized {
		tmpl = templates.VectorTemplate
		temperature = min(temperature, TemperatureStrict)
	}

	data := promptData(in, c)
	system, err := s.renderer.Render(templates.SystemTemplate, data)
	if err != nil {
		return Synthesis{}, err //nolint:wrapcheck // renderer errors already name the template
	}
	user, err := s.renderer.Render(tmpl, data)
	if err != nil {
		return Synthesis{}, err //nolint:wrapcheck // renderer errors already name the template
	}

	req := NewCompletionRequest([]CompletionMessage{NewSystemMessage(system), NewUserMessage(user)})
	req.Format = FormatJSON
	req.MaxTokens = s.maxTokens
	req.Temperature = temperature

	resp, err := s.client.Complete(ctx, req)
	if err != nil {
		return Synthesis{}, err //nolint:wrapcheck // classified by the middleware chain
	}

	out := Synthesis{BackendID: s.ID(), Usage: resp.Usage}
	if in.Mode == registry.ModeSynthesized {
		out.SVG, out.Items, err = ParseVector(resp.Content)
	} else {
		out.Fields, out.Content, err = ParseFields(resp.Content)
	}
	if err != nil {
		return Synthesis{}, err
	}
	return out, nil
}

func promptData(in Instructions, c Constraints) *templates.Data {
	roles := make([]templates.Role, len(c.Roles))
	for i, r := range c.Roles {
		roles[i] = templates.Role{ID: r.ID, Min: r.Min, Max: r.Max}
	}
	continuity := make([]templates.PriorItem, len(in.Continuity))
	for i, p := range in.Continuity {
		continuity[i] = templates.PriorItem{Sequence: p.Sequence, Title: p.Title, Summary: p.Summary}
	}
	return &templates.Data{
		Type:         in.Type,
		Description:  in.Description,
		Topic:        in.Topic,
		Unit:         in.Unit,
		ItemCount:    in.ItemCount,
		WidthPx:      in.WidthPx,
		HeightPx:     in.HeightPx,
		Orientation:  in.Orientation,
		IconStyle:    in.IconStyle,
		Density:      in.Density,
		ContextLines: in.Context,
		Continuity:   continuity,
		Palette: templates.Palette{
			Primary:    in.Palette.Primary,
			Secondary:  in.Palette.Secondary,
			Accent:     in.Palette.Accent,
			Background: in.Palette.Background,
			Text:       in.Palette.Text,
		},
		Roles:    roles,
		Feedback: in.Feedback,
	}
}

// extractJSON trims code fences and surrounding prose around the outermost object.
func extractJSON(content string) (string, bool) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

func malformed(format string, args ...any) error {
	return llmerrors.NewError(llmerrors.ErrorTypeMalformedResponse, fmt.Sprintf(format, args...))
}

// ParseFields reads {"fields": {...}} or a flat object. Scalars become fields, with
// keys of nested objects joined by "_". Lists are returned in content as decoded.
func ParseFields(content string) (map[string]string, map[string]any, error) {
	raw, ok := extractJSON(content)
	if !ok {
		return nil, nil, malformed("no JSON object in response (%d chars)", len(content))
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, nil, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeMalformedResponse, err, "invalid JSON in response")
	}
	if nested, ok := obj["fields"].(map[string]any); ok {
		obj = nested
	}
	if len(obj) == 0 {
		return nil, nil, malformed("response contains no fields")
	}

	fields := make(map[string]string, len(obj))
	lists := make(map[string]any)
	splitValues(fields, lists, "", obj)
	return fields, lists, nil
}

func splitValues(fields map[string]string, lists map[string]any, prefix string, obj map[string]any) {
	for k, v := range obj {
		key := prefix + k
		switch val := v.(type) {
		case string:
			fields[key] = val
		case nil:
			fields[key] = ""
		case map[string]any:
			splitValues(fields, lists, key+"_", val)
		case []any:
			lists[key] = val
		default:
			fields[key] = fmt.Sprint(val)
		}
	}
}

// ParseVector reads {"svg": "...", "items": [...]}; a bare <svg> document is also accepted.
func ParseVector(content string) (string, []SynthesizedItem, error) {
	if raw, ok := extractJSON(content); ok {
		var payload struct {
			SVG   string            `json:"svg"`
			Items []SynthesizedItem `json:"items"`
		}
		if err := json.Unmarshal([]byte(raw), &payload); err == nil && payload.SVG != "" {
			return payload.SVG, payload.Items, nil
		}
	}

	if start := strings.Index(content, "<svg"); start >= 0 {
		svg := content[start:]
		if end := strings.LastIndex(svg, "</svg>"); end >= 0 {
			svg = svg[:end+len("</svg>")]
		}
		return svg, nil, nil
	}
	return "", nil, malformed("no SVG in response (%d chars)", len(content))
}
