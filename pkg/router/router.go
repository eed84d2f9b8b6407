// Package router validates infographic requests and dispatches them to a per-type
// generator, built once on first use.
package router

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"illustrator/pkg/generator"
	"illustrator/pkg/logx"
	"illustrator/pkg/registry"
)

// TypeInfo is the catalog view of one type.
type TypeInfo struct {
	registry.TypeConstraint
	Sizes    []int                        `json:"sizes"`
	Kind     string                       `json:"kind"`
	Roles    map[int][]registry.FieldRole `json:"fieldRoles,omitempty"`
	ItemUnit string                       `json:"itemUnit"`
	IsVector bool                         `json:"isVector"`
}

// Router owns the generator cache.
type Router struct {
	registry   *registry.Registry
	deps       generator.Deps
	logger     *logx.Logger
	generators map[string]*generator.Generator
	builds     int
	mu         sync.Mutex
}

// New returns a router building generators from deps.
func New(deps generator.Deps) *Router {
	return &Router{
		registry:   deps.Registry,
		deps:       deps,
		logger:     logx.NewLogger("router"),
		generators: make(map[string]*generator.Generator),
	}
}

// ValidateRequest checks the type is known, the grid lies within the type's bounds on
// both axes and an explicit item count lies within its item range.
func (r *Router) ValidateRequest(typeID string, gridWidth, gridHeight int, itemCount *int) (bool, string) {
	tc, ok := r.registry.Type(typeID)
	if !ok {
		return false, fmt.Sprintf("Unknown infographic type: %s. Supported types: %v", typeID, r.registry.TypeIDs())
	}
	if reason := generator.CheckConstraints(tc, generator.Grid{Width: gridWidth, Height: gridHeight}, itemCount); reason != "" {
		return false, reason
	}
	return true, ""
}

// Generator returns the generator for typeID, building it on first use. Concurrent
// first callers share one instance.
func (r *Router) Generator(typeID string) (*generator.Generator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.generators[typeID]; ok {
		return g, nil
	}
	g, err := generator.New(typeID, r.deps)
	if err != nil {
		return nil, err //nolint:wrapcheck // typed generator errors map to public codes
	}
	r.generators[typeID] = g
	r.builds++
	r.logger.Debug("Built %s generator for %s", g.Kind(), typeID)
	return g, nil
}

// Route validates, selects and runs. It never returns a Go error.
func (r *Router) Route(ctx context.Context, req generator.Request) generator.Result {
	if ok, reason := r.ValidateRequest(req.Type, req.Grid.Width, req.Grid.Height, req.ItemCount); !ok {
		r.logger.Warn("Rejected %s request: %s", req.Type, reason)
		return generator.Failure(req.Type, &generator.RequestConstraintError{Reason: reason})
	}
	if strings.TrimSpace(req.Topic) == "" {
		return generator.Failure(req.Type, &generator.RequestConstraintError{Reason: "Prompt must not be empty"})
	}

	g, err := r.Generator(req.Type)
	if err != nil {
		return generator.Failure(req.Type, err)
	}
	logx.DebugFlow(ctx, "router", "route", req.Type, g.Kind().String())
	return g.Generate(ctx, req)
}

// Types lists every type in declaration order.
func (r *Router) Types() []TypeInfo {
	ids := r.registry.TypeIDs()
	out := make([]TypeInfo, 0, len(ids))
	for _, id := range ids {
		info, _ := r.Describe(id, false)
		out = append(out, info)
	}
	return out
}

// Describe returns the catalog entry for typeID, with its field roles when withRoles.
func (r *Router) Describe(typeID string, withRoles bool) (TypeInfo, bool) {
	tc, ok := r.registry.Type(typeID)
	if !ok {
		return TypeInfo{}, false
	}
	kind := generator.KindFor(tc.Mode)
	info := TypeInfo{
		TypeConstraint: tc,
		Sizes:          r.registry.Sizes(typeID),
		Kind:           kind.String(),
		ItemUnit:       generator.Units[typeID],
		IsVector:       kind == generator.KindSynthesized,
	}
	if withRoles {
		info.Roles = make(map[int][]registry.FieldRole, len(info.Sizes))
		for _, size := range info.Sizes {
			if roles, err := r.registry.FieldRoles(typeID, size); err == nil {
				info.Roles[size] = roles
			}
		}
	}
	return info, true
}

// IsTemplateType reports whether typeID fills a fixed skeleton.
func (r *Router) IsTemplateType(typeID string) bool {
	tc, ok := r.registry.Type(typeID)
	return ok && tc.Mode == registry.ModeTemplate
}

// IsVectorType reports whether typeID is synthesized as SVG.
func (r *Router) IsVectorType(typeID string) bool {
	tc, ok := r.registry.Type(typeID)
	return ok && tc.Mode == registry.ModeSynthesized
}

// Cached lists the types that have a built generator, sorted.
func (r *Router) Cached() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.generators))
	for id := range r.generators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// builtCount is the number of generators constructed so far.
func (r *Router) builtCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.builds
}
