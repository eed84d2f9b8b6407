// Package generator turns an infographic request into rendered content. A Generator
// is either a Template generator, which fills a fixed HTML skeleton, or a Synthesized
// generator, which asks the backend for a complete SVG. Both run the same constrained
// attempt/validate/retry loop.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/middleware/metrics"
	"illustrator/pkg/logx"
	"illustrator/pkg/registry"
	"illustrator/pkg/skeleton"
	"illustrator/pkg/validator"
	"illustrator/pkg/vector"
)

// Kind is the closed set of generator variants.
type Kind int

const (
	KindTemplate Kind = iota
	KindSynthesized
)

func (k Kind) String() string {
	switch k {
	case KindTemplate:
		return "template"
	case KindSynthesized:
		return "synthesized"
	default:
		return "unknown"
	}
}

// Method is the generationMethod metadata value.
func (k Kind) Method() string {
	if k == KindSynthesized {
		return "dynamic_svg"
	}
	return "template"
}

// KindFor maps a registry output mode to a generator variant.
func KindFor(mode registry.OutputMode) Kind {
	if mode == registry.ModeSynthesized {
		return KindSynthesized
	}
	return KindTemplate
}

// Deps are the shared collaborators of every generator.
type Deps struct {
	Registry    *registry.Registry
	Synthesizer backend.Synthesizer
	Skeletons   *skeleton.Store
	Recorder    metrics.Recorder
	// MaxRetries is the number of extra attempts on constraint violations. Zero allows
	// a single attempt; negative selects DefaultMaxRetries.
	MaxRetries int
}

// Generator produces results for one infographic type. It holds only immutable state
// and is safe for concurrent use.
type Generator struct {
	deps   Deps
	loop   *Constrained
	logger *logx.Logger
	tc     registry.TypeConstraint
	kind   Kind
}

// New builds the generator variant selected by typeID's output mode.
func New(typeID string, deps Deps) (*Generator, error) {
	if deps.Registry == nil || deps.Synthesizer == nil {
		return nil, errors.New("generator requires a registry and a synthesizer")
	}
	tc, ok := deps.Registry.Type(typeID)
	if !ok {
		return nil, &RequestConstraintError{Reason: "Unknown infographic type: " + typeID}
	}
	kind := KindFor(tc.Mode)
	if kind == KindTemplate && deps.Skeletons == nil {
		return nil, fmt.Errorf("template type %s requires a skeleton store", typeID)
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.Nop()
	}
	return &Generator{
		deps:   deps,
		loop:   NewConstrained(deps.Synthesizer, deps.MaxRetries, deps.Recorder),
		logger: logx.NewLogger("generator").With(typeID),
		tc:     tc,
		kind:   kind,
	}, nil
}

// Kind returns the variant.
func (g *Generator) Kind() Kind {
	return g.kind
}

// Constraint returns the type's structural limits.
func (g *Generator) Constraint() registry.TypeConstraint {
	return g.tc
}

// CalculateDimensions converts grid units to pixels.
func (g *Generator) CalculateDimensions(gridWidth, gridHeight int) (int, int) {
	return registry.PixelSize(gridWidth, gridHeight)
}

// DetermineItemCount clamps an explicit count into the type's range, or derives one
// from the grid area.
func (g *Generator) DetermineItemCount(req *Request) int {
	if req.ItemCount != nil {
		return g.tc.ClampItems(*req.ItemCount)
	}
	return g.tc.RecommendedItems(req.Grid.Width, req.Grid.Height)
}

// ResolveColorScheme returns the palette selected by the request.
func (g *Generator) ResolveColorScheme(req *Request) registry.Palette {
	return paletteFor(g.deps.Registry, req)
}

// CheckRequest rejects requests outside the type's limits.
func (g *Generator) CheckRequest(req *Request) error {
	if req.Type != "" && req.Type != g.tc.ID {
		return &RequestConstraintError{Reason: fmt.Sprintf("Generator for %s cannot handle %s", g.tc.ID, req.Type)}
	}
	if reason := CheckConstraints(g.tc, req.Grid, req.ItemCount); reason != "" {
		return &RequestConstraintError{Reason: reason}
	}
	if reason := req.CheckStyle(); reason != "" {
		return &RequestConstraintError{Reason: reason}
	}
	return nil
}

// CheckConstraints returns the reason a grid and optional item count fall outside tc,
// or "".
func CheckConstraints(tc registry.TypeConstraint, grid Grid, itemCount *int) string {
	if reason := tc.CheckGrid(grid.Width, grid.Height); reason != "" {
		return reason
	}
	if itemCount != nil {
		return tc.CheckItemCount(*itemCount)
	}
	return ""
}

// plan is the resolved per-request layout shared by both variants.
type plan struct {
	palette     registry.Palette
	orientation Orientation
	itemCount   int
	widthPx     int
	heightPx    int
}

// Generate runs one request. It never returns an error; failures are reported in
// Result.Error.
func (g *Generator) Generate(ctx context.Context, req Request) Result {
	start := time.Now()
	req.Normalize()
	if err := g.CheckRequest(&req); err != nil {
		return Failure(g.tc.ID, err)
	}
	ctx = metrics.WithType(ctx, g.tc.ID)

	p := g.plan(&req)
	g.logger.Info("Generating %s: %dx%d px, %d %s, %s", g.tc.ID, p.widthPx, p.heightPx, p.itemCount, unitFor(g.tc.ID), p.orientation)

	var (
		res Result
		err error
	)
	switch g.kind {
	case KindTemplate:
		res, err = g.generateTemplate(ctx, &req, p)
	case KindSynthesized:
		res, err = g.generateSynthesized(ctx, &req, p)
	default:
		err = fmt.Errorf("unsupported generator kind %d", g.kind)
	}
	if err != nil {
		g.logger.Error("%s generation failed: %v", g.tc.ID, err)
		failed := Failure(g.tc.ID, err)
		failed.Metadata.AttemptsUsed = res.Metadata.AttemptsUsed
		failed.Metadata.BackendID = res.Metadata.BackendID
		failed.Metadata.GenerationTimeMs = time.Since(start).Milliseconds()
		return failed
	}

	res.Success = true
	res.GenerationID = NewGenerationID()
	res.Metadata.Type = g.tc.ID
	res.Metadata.GenerationTimeMs = time.Since(start).Milliseconds()
	res.Metadata.WidthPx = p.widthPx
	res.Metadata.HeightPx = p.heightPx
	res.Metadata.AspectRatio = aspectRatio(p.widthPx, p.heightPx)
	res.Metadata.Colors = p.palette.Colors()
	res.Metadata.ItemCount = len(res.Items)
	res.Metadata.Orientation = string(p.orientation)
	res.Metadata.GenerationMethod = g.kind.Method()
	editInfo := NewEditInfo(res.Items, g.tc)
	res.EditInfo = &editInfo
	return res
}

func (g *Generator) plan(req *Request) plan {
	w, h := g.CalculateDimensions(req.Grid.Width, req.Grid.Height)
	return plan{
		palette:     g.ResolveColorScheme(req),
		orientation: ResolveOrientation(req.Style.Orientation, w, h),
		itemCount:   g.DetermineItemCount(req),
		widthPx:     w,
		heightPx:    h,
	}
}

func (g *Generator) instructions(req *Request, p plan) backend.Instructions {
	return backend.Instructions{
		Type:        g.tc.ID,
		Description: g.tc.Description,
		Mode:        g.tc.Mode,
		Topic:       req.Topic,
		ItemCount:   p.itemCount,
		Unit:        unitFor(g.tc.ID),
		WidthPx:     p.widthPx,
		HeightPx:    p.heightPx,
		Orientation: string(p.orientation),
		IconStyle:   string(req.Style.IconStyle),
		Density:     string(req.Style.Density),
		Context:     req.ContextSummary(),
		Continuity:  req.Continuity,
		Palette:     p.palette,
	}
}

func (g *Generator) generateTemplate(ctx context.Context, req *Request, p plan) (Result, error) {
	html, err := g.deps.Skeletons.Load(g.tc.ID, p.itemCount)
	if err != nil {
		if errors.Is(err, skeleton.ErrNotFound) {
			return Result{}, &TemplateNotFoundError{Type: g.tc.ID, Size: p.itemCount, Err: err}
		}
		return Result{}, fmt.Errorf("load skeleton: %w", err)
	}
	roles, err := g.deps.Registry.FieldRoles(g.tc.ID, p.itemCount)
	if err != nil {
		return Result{}, &TemplateNotFoundError{Type: g.tc.ID, Size: p.itemCount, Err: err}
	}

	shape := func(syn backend.Synthesis) (backend.Synthesis, map[string]string, error) {
		fields := declaredOnly(syn.Fields, roles)
		titleCaseLabels(fields)
		return syn, fields, nil
	}
	out, err := g.loop.Run(ctx, g.instructions(req, p), backend.Constraints{Roles: roles}, shape)
	if err != nil {
		return Result{Metadata: spent(&out)}, err
	}
	if missing := validator.Missing(out.Fields, roles); len(missing) > 0 {
		g.logger.Warn("%s: backend omitted %d fields: %v", g.tc.ID, len(missing), missing)
	}

	items := templateItems(g.tc.ID, p.itemCount, out.Fields)
	tokens, palette := fillTokens(out.Fields, out.Synthesis.Content), p.palette.Tokens()
	if empty := unfilled(html, tokens, palette); len(empty) > 0 {
		logx.Debug(ctx, "generator", "%s: %d skeleton tokens left empty: %v", g.tc.ID, len(empty), empty)
	}
	filled := skeleton.Fill(html, tokens, palette)
	return Result{
		Items:  items,
		Fields: out.Fields,
		Rendered: Rendered{
			HTML: filled,
			SVG:  vector.WrapHTMLInSVG(filled, p.widthPx, p.heightPx),
		},
		Validation: validation(&out),
		Metadata: Metadata{
			AttemptsUsed: len(out.Attempts),
			BackendID:    out.Synthesis.BackendID,
		},
	}, nil
}

func (g *Generator) generateSynthesized(ctx context.Context, req *Request, p plan) (Result, error) {
	roles, err := g.deps.Registry.FieldRoles(g.tc.ID, p.itemCount)
	if err != nil {
		return Result{}, &RequestConstraintError{Reason: err.Error()}
	}

	repaired := false
	shape := func(syn backend.Synthesis) (backend.Synthesis, map[string]string, error) {
		accepted, err := vector.Accept(syn.SVG, p.widthPx, p.heightPx)
		if err != nil {
			return syn, nil, &MalformedArtifactError{Err: err}
		}
		syn.SVG = accepted.SVG
		repaired = accepted.Repaired
		if len(syn.Items) > p.itemCount {
			syn.Items = syn.Items[:p.itemCount]
		}
		return syn, itemFields(syn.Items, roles), nil
	}
	out, err := g.loop.Run(ctx, g.instructions(req, p), backend.Constraints{Roles: roles}, shape)
	if err != nil {
		return Result{Metadata: spent(&out)}, err
	}
	if repaired {
		g.logger.Info("%s: SVG accepted after repair", g.tc.ID)
	}

	return Result{
		Items:  synthesizedItems(out.Synthesis.Items),
		Fields: out.Fields,
		Rendered: Rendered{
			HTML: vector.WrapContainer(out.Synthesis.SVG, p.widthPx, p.heightPx),
			SVG:  out.Synthesis.SVG,
		},
		Validation: validation(&out),
		Metadata: Metadata{
			AttemptsUsed: len(out.Attempts),
			BackendID:    out.Synthesis.BackendID,
			Repaired:     repaired,
		},
	}, nil
}

// spent reports the backend calls made before a failed loop ended.
func spent(out *Outcome) Metadata {
	md := Metadata{AttemptsUsed: len(out.Attempts)}
	if n := len(out.Attempts); n > 0 {
		md.BackendID = out.Attempts[n-1].BackendID
	}
	return md
}

func validation(out *Outcome) Validation {
	violations := out.Violations
	if violations == nil {
		violations = []validator.Violation{}
	}
	return Validation{Valid: out.Valid(), Violations: violations}
}
