package api

import (
	"illustrator/pkg/backend"
	"illustrator/pkg/backend/middleware/metrics"
	"illustrator/pkg/backend/middleware/resilience/ratelimit"
	"illustrator/pkg/generator"
	"illustrator/pkg/router"
	"illustrator/pkg/suitability"
	"illustrator/pkg/validator"
)

// GridRequest is the canvas size in grid units.
type GridRequest struct {
	GridWidth  int `json:"gridWidth" example:"24" doc:"Canvas width in grid units (60px each)"`
	GridHeight int `json:"gridHeight" example:"12" doc:"Canvas height in grid units (60px each)"`
}

// StyleRequest holds the optional presentation options.
type StyleRequest struct {
	ColorScheme string `json:"colorScheme,omitempty" enum:"brand,professional,vibrant,pastel,monochrome,gradient,custom"`
	IconStyle   string `json:"iconStyle,omitempty" enum:"outlined,filled,duotone,minimal,illustrated,emoji,none"`
	Density     string `json:"density,omitempty" enum:"compact,balanced,spacious"`
	Orientation string `json:"orientation,omitempty" enum:"horizontal,vertical,auto"`
}

// PriorItem summarizes earlier content the new infographic should stay consistent with.
type PriorItem struct {
	Sequence int    `json:"sequence"`
	Title    string `json:"title"`
	Summary  string `json:"summary,omitempty"`
}

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	Type        string        `json:"type" example:"pyramid" doc:"Infographic type"`
	Prompt      string        `json:"prompt" example:"Maslow's hierarchy of needs" doc:"Topic to illustrate"`
	ItemCount   *int          `json:"itemCount,omitempty" doc:"Explicit item count; derived from the grid when absent"`
	Constraints GridRequest   `json:"constraints"`
	Style       *StyleRequest `json:"style,omitempty"`
	BrandColors []string      `json:"brandColors,omitempty" doc:"Up to five colors, used when colorScheme is brand"`
	Continuity  []PriorItem   `json:"continuity,omitempty"`
	Context     *SlideContext `json:"context,omitempty"`
}

// SlideContext describes the presentation the infographic belongs to.
type SlideContext struct {
	PresentationTitle string `json:"presentationTitle,omitempty"`
	SlideTitle        string `json:"slideTitle,omitempty"`
	Industry          string `json:"industry,omitempty"`
	Audience          string `json:"audience,omitempty"`
	Tone              string `json:"tone,omitempty"`
}

// toRequest converts the wire body to a generation request.
func (g *GenerateRequest) toRequest() generator.Request {
	req := generator.Request{
		Type:        g.Type,
		Topic:       g.Prompt,
		ItemCount:   g.ItemCount,
		Grid:        generator.Grid{Width: g.Constraints.GridWidth, Height: g.Constraints.GridHeight},
		BrandColors: g.BrandColors,
	}
	if g.Style != nil {
		req.Style = generator.Style{
			ColorScheme: generator.ColorScheme(g.Style.ColorScheme),
			IconStyle:   generator.IconStyle(g.Style.IconStyle),
			Density:     generator.Density(g.Style.Density),
			Orientation: generator.Orientation(g.Style.Orientation),
		}
	}
	for _, p := range g.Continuity {
		req.Continuity = append(req.Continuity, backend.PriorItem{Sequence: p.Sequence, Title: p.Title, Summary: p.Summary})
	}
	if c := g.Context; c != nil {
		req.PresentationTitle = c.PresentationTitle
		req.SlideTitle = c.SlideTitle
		req.Industry = c.Industry
		req.Audience = c.Audience
		req.Tone = c.Tone
	}
	return req
}

// InfographicData is the structured content of a result.
type InfographicData struct {
	Items  []generator.Item  `json:"items"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ValidationResponse is the final validation state.
type ValidationResponse struct {
	Valid      bool                  `json:"valid"`
	Violations []validator.Violation `json:"violations"`
}

// GenerateData is the payload of a successful generation.
type GenerateData struct {
	GenerationID    string              `json:"generationId"`
	Rendered        generator.Rendered  `json:"rendered"`
	InfographicData InfographicData     `json:"infographicData"`
	Metadata        generator.Metadata  `json:"metadata"`
	Validation      ValidationResponse  `json:"validation"`
	EditInfo        *generator.EditInfo `json:"editInfo,omitempty"`
}

// GenerateResponse is the envelope of POST /generate.
type GenerateResponse struct {
	Success bool                 `json:"success"`
	Data    *GenerateData        `json:"data,omitempty"`
	Error   *generator.ErrorInfo `json:"error,omitempty"`
}

func generateResponse(res *generator.Result) GenerateResponse {
	if !res.Success {
		return GenerateResponse{Success: false, Error: res.Error}
	}
	items := res.Items
	if items == nil {
		items = []generator.Item{}
	}
	violations := res.Validation.Violations
	if violations == nil {
		violations = []validator.Violation{}
	}
	return GenerateResponse{
		Success: true,
		Data: &GenerateData{
			GenerationID:    res.GenerationID,
			Rendered:        res.Rendered,
			InfographicData: InfographicData{Items: items, Fields: res.Fields},
			Metadata:        res.Metadata,
			Validation:      ValidationResponse{Valid: res.Validation.Valid, Violations: violations},
			EditInfo:        res.EditInfo,
		},
	}
}

// TypesResponse is the catalog.
type TypesResponse struct {
	Types         []router.TypeInfo `json:"types"`
	TemplateTypes []string          `json:"templateTypes"`
	VectorTypes   []string          `json:"vectorTypes"`
	Count         int               `json:"count"`
}

// CanHandleRequest is the body of POST /can-handle.
type CanHandleRequest struct {
	Content suitability.Content `json:"content"`
	Hints   *suitability.Hints  `json:"hints,omitempty"`
	Space   *suitability.Space  `json:"space,omitempty"`
}

// CanHandleResponse is the scorer verdict, with the per-type breakdown when requested.
type CanHandleResponse struct {
	suitability.Verdict
	Analysis *suitability.Analysis `json:"analysis,omitempty"`
}

// RecommendRequest is the body of POST /recommend-visual.
type RecommendRequest struct {
	Content     suitability.Content      `json:"content"`
	Space       *suitability.Space       `json:"space,omitempty"`
	Preferences *suitability.Preferences `json:"preferences,omitempty"`
}

// RecommendResponse ranks the template types for the content.
type RecommendResponse struct {
	suitability.Recommendations
}

// HealthResponse reports liveness and per-type generation counters.
type HealthResponse struct {
	Status           string              `json:"status"`
	Backend          string              `json:"backend"`
	Types            int                 `json:"types"`
	CachedGenerators []string            `json:"cachedGenerators"`
	Stats            []metrics.TypeStats `json:"stats"`
	// RateLimits is the backend limiter state per provider.
	RateLimits map[string]ratelimit.Stats `json:"rateLimits,omitempty"`
}
