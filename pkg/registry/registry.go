// Package registry holds the static per-type structural limits, field length bounds
// and color palettes. Tables are loaded once from embedded YAML and never mutated, so a
// *Registry is safe to share across goroutines without locking.
package registry

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

// GridUnitPixels is the pixel size of one grid unit.
const GridUnitPixels = 60

// OutputMode selects the synthesis strategy for a type.
type OutputMode string

const (
	// ModeTemplate fills a fixed HTML skeleton.
	ModeTemplate OutputMode = "template"
	// ModeSynthesized asks the backend for a complete SVG artifact.
	ModeSynthesized OutputMode = "synthesized"
)

// Valid reports whether m is a known output mode.
func (m OutputMode) Valid() bool {
	return m == ModeTemplate || m == ModeSynthesized
}

// AspectClass describes the preferred canvas shape of a type.
type AspectClass string

const (
	AspectFixed    AspectClass = "fixed"
	AspectFlexible AspectClass = "flexible"
	AspectWide     AspectClass = "wide"
	AspectPortrait AspectClass = "portrait"
	AspectSquare   AspectClass = "square"
)

// Valid reports whether a is a known aspect class.
func (a AspectClass) Valid() bool {
	switch a {
	case AspectFixed, AspectFlexible, AspectWide, AspectPortrait, AspectSquare:
		return true
	}
	return false
}

// TypeConstraint is the immutable structural limit set for one infographic type.
type TypeConstraint struct {
	ID            string      `json:"type"`
	Description   string      `json:"description"`
	Mode          OutputMode  `json:"outputMode"`
	MinGridWidth  int         `json:"minGridWidth"`
	MinGridHeight int         `json:"minGridHeight"`
	MaxGridWidth  int         `json:"maxGridWidth"`
	MaxGridHeight int         `json:"maxGridHeight"`
	Aspect        AspectClass `json:"aspectClass"`
	AspectRatio   *[2]int     `json:"aspectRatio,omitempty"`
	MinItems      int         `json:"minItems"`
	MaxItems      int         `json:"maxItems"`
	DefaultItems  int         `json:"defaultItems"`

	itemRoles map[string]Bounds
}

// Bounds is an inclusive visible-character range.
type Bounds struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// FieldRole is one named content slot with its length bound. The field ID is
// Position + "_" + Role, e.g. "level_3_label" or "stage_2_bullet_1".
type FieldRole struct {
	ID       string `json:"field"`
	Position string `json:"position"`
	Role     string `json:"role"`
	Bounds
}

// Registry is the loaded constraint tables.
type Registry struct {
	types    map[string]TypeConstraint
	order    []string
	roles    map[string]map[int][]FieldRole
	palettes map[string]Palette
}

type typeRecord struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Mode        string `yaml:"mode"`
	Grid        struct {
		MinWidth  int `yaml:"min_width"`
		MinHeight int `yaml:"min_height"`
		MaxWidth  int `yaml:"max_width"`
		MaxHeight int `yaml:"max_height"`
	} `yaml:"grid"`
	Aspect struct {
		Class string `yaml:"class"`
		Ratio []int  `yaml:"ratio"`
	} `yaml:"aspect"`
	Items struct {
		Min     int `yaml:"min"`
		Max     int `yaml:"max"`
		Default int `yaml:"default"`
	} `yaml:"items"`
	ItemRoles map[string][]int `yaml:"item_roles"`
}

// type -> size -> position -> role -> [min, max]
type roleTable map[string]map[int]map[string]map[string][]int

// Load parses the embedded tables.
func Load() (*Registry, error) {
	sub, err := fs.Sub(dataFS, "data")
	if err != nil {
		return nil, fmt.Errorf("open embedded registry data: %w", err)
	}
	return LoadFS(sub)
}

// MustLoad is Load for program start and tests; it panics on malformed embedded data.
func MustLoad() *Registry {
	r, err := Load()
	if err != nil {
		panic(err)
	}
	return r
}

// LoadFS parses types.yaml, field_roles.yaml and palettes.yaml from fsys.
func LoadFS(fsys fs.FS) (*Registry, error) {
	var records []typeRecord
	if err := decodeFile(fsys, "types.yaml", &records); err != nil {
		return nil, err
	}
	var table roleTable
	if err := decodeFile(fsys, "field_roles.yaml", &table); err != nil {
		return nil, err
	}
	var palettes map[string]Palette
	if err := decodeFile(fsys, "palettes.yaml", &palettes); err != nil {
		return nil, err
	}

	r := &Registry{
		types:    make(map[string]TypeConstraint, len(records)),
		roles:    make(map[string]map[int][]FieldRole),
		palettes: palettes,
	}
	if _, ok := palettes[DefaultScheme]; !ok {
		return nil, fmt.Errorf("palettes.yaml: missing default scheme %q", DefaultScheme)
	}

	for i := range records {
		tc, err := records[i].constraint()
		if err != nil {
			return nil, fmt.Errorf("types.yaml: %w", err)
		}
		if _, dup := r.types[tc.ID]; dup {
			return nil, fmt.Errorf("types.yaml: duplicate type %q", tc.ID)
		}
		r.types[tc.ID] = tc
		r.order = append(r.order, tc.ID)
	}

	for typeID, sizes := range table {
		tc, ok := r.types[typeID]
		if !ok {
			return nil, fmt.Errorf("field_roles.yaml: unknown type %q", typeID)
		}
		if tc.Mode != ModeTemplate {
			return nil, fmt.Errorf("field_roles.yaml: %s is not a template type", typeID)
		}
		r.roles[typeID] = make(map[int][]FieldRole, len(sizes))
		for size, positions := range sizes {
			roles, err := flattenRoles(positions)
			if err != nil {
				return nil, fmt.Errorf("field_roles.yaml: %s/%d: %w", typeID, size, err)
			}
			r.roles[typeID][size] = roles
		}
	}

	// Every template size in the item range must have a role table.
	for _, id := range r.order {
		tc := r.types[id]
		if tc.Mode != ModeTemplate {
			continue
		}
		for n := tc.MinItems; n <= tc.MaxItems; n++ {
			if _, ok := r.roles[id][n]; !ok {
				return nil, fmt.Errorf("field_roles.yaml: %s has no roles for size %d", id, n)
			}
		}
	}

	return r, nil
}

func decodeFile(fsys fs.FS, name string, out any) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (rec *typeRecord) constraint() (TypeConstraint, error) {
	tc := TypeConstraint{
		ID:            rec.ID,
		Description:   rec.Description,
		Mode:          OutputMode(rec.Mode),
		MinGridWidth:  rec.Grid.MinWidth,
		MinGridHeight: rec.Grid.MinHeight,
		MaxGridWidth:  rec.Grid.MaxWidth,
		MaxGridHeight: rec.Grid.MaxHeight,
		Aspect:        AspectClass(rec.Aspect.Class),
		MinItems:      rec.Items.Min,
		MaxItems:      rec.Items.Max,
		DefaultItems:  rec.Items.Default,
	}
	switch {
	case tc.ID == "":
		return tc, fmt.Errorf("type without id")
	case !tc.Mode.Valid():
		return tc, fmt.Errorf("%s: invalid mode %q", tc.ID, rec.Mode)
	case !tc.Aspect.Valid():
		return tc, fmt.Errorf("%s: invalid aspect class %q", tc.ID, rec.Aspect.Class)
	case tc.MinGridWidth <= 0 || tc.MinGridHeight <= 0 ||
		tc.MinGridWidth > tc.MaxGridWidth || tc.MinGridHeight > tc.MaxGridHeight:
		return tc, fmt.Errorf("%s: invalid grid bounds", tc.ID)
	case tc.MinItems <= 0 || tc.MinItems > tc.MaxItems:
		return tc, fmt.Errorf("%s: invalid item range %d-%d", tc.ID, tc.MinItems, tc.MaxItems)
	}
	if tc.DefaultItems == 0 {
		tc.DefaultItems = tc.MinItems
	}
	if tc.DefaultItems < tc.MinItems || tc.DefaultItems > tc.MaxItems {
		return tc, fmt.Errorf("%s: default items %d outside %d-%d", tc.ID, tc.DefaultItems, tc.MinItems, tc.MaxItems)
	}
	if len(rec.Aspect.Ratio) > 0 {
		if len(rec.Aspect.Ratio) != 2 || rec.Aspect.Ratio[0] <= 0 || rec.Aspect.Ratio[1] <= 0 {
			return tc, fmt.Errorf("%s: aspect ratio must be two positive integers", tc.ID)
		}
		tc.AspectRatio = &[2]int{rec.Aspect.Ratio[0], rec.Aspect.Ratio[1]}
	}
	if len(rec.ItemRoles) > 0 {
		if tc.Mode != ModeSynthesized {
			return tc, fmt.Errorf("%s: item_roles only apply to synthesized types", tc.ID)
		}
		tc.itemRoles = make(map[string]Bounds, len(rec.ItemRoles))
		for role, pair := range rec.ItemRoles {
			b, err := toBounds(pair)
			if err != nil {
				return tc, fmt.Errorf("%s: item role %s: %w", tc.ID, role, err)
			}
			tc.itemRoles[role] = b
		}
	}
	return tc, nil
}

func flattenRoles(positions map[string]map[string][]int) ([]FieldRole, error) {
	var roles []FieldRole
	for position, byRole := range positions {
		for role, pair := range byRole {
			b, err := toBounds(pair)
			if err != nil {
				return nil, fmt.Errorf("%s_%s: %w", position, role, err)
			}
			roles = append(roles, FieldRole{
				ID:       position + "_" + role,
				Position: position,
				Role:     role,
				Bounds:   b,
			})
		}
	}
	sortRoles(roles)
	return roles, nil
}

func toBounds(pair []int) (Bounds, error) {
	if len(pair) != 2 {
		return Bounds{}, fmt.Errorf("bounds must be [min, max], got %v", pair)
	}
	if pair[0] < 0 || pair[0] > pair[1] {
		return Bounds{}, fmt.Errorf("invalid bounds [%d, %d]", pair[0], pair[1])
	}
	return Bounds{Min: pair[0], Max: pair[1]}, nil
}

// sortRoles orders roles by position then role, comparing numeric suffixes numerically
// so that level_10 sorts after level_9.
func sortRoles(roles []FieldRole) {
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Position != roles[j].Position {
			return naturalLess(roles[i].Position, roles[j].Position)
		}
		return naturalLess(roles[i].Role, roles[j].Role)
	})
}

func naturalLess(a, b string) bool {
	ap, an := splitIndex(a)
	bp, bn := splitIndex(b)
	if ap != bp {
		return ap < bp
	}
	return an < bn
}

func splitIndex(s string) (string, int) {
	idx := strings.LastIndexByte(s, '_')
	if idx < 0 {
		return s, 0
	}
	n, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return s, 0
	}
	return s[:idx], n
}

// Type returns the constraint for id.
func (r *Registry) Type(id string) (TypeConstraint, bool) {
	tc, ok := r.types[id]
	return tc, ok
}

// Types returns all constraints in declaration order.
func (r *Registry) Types() []TypeConstraint {
	out := make([]TypeConstraint, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.types[id])
	}
	return out
}

// TypeIDs returns all type ids in declaration order.
func (r *Registry) TypeIDs() []string {
	return append([]string(nil), r.order...)
}

// TypesByMode returns the ids of the types using mode.
func (r *Registry) TypesByMode(mode OutputMode) []string {
	var ids []string
	for _, id := range r.order {
		if r.types[id].Mode == mode {
			ids = append(ids, id)
		}
	}
	return ids
}

// FieldRoles returns the declared roles for a type at a structural size. For template
// types the size is the skeleton variant (levels, stages, ...); for synthesized types it
// is the item count and roles are expanded per item as item_<n>_<role>.
func (r *Registry) FieldRoles(typeID string, size int) ([]FieldRole, error) {
	tc, ok := r.types[typeID]
	if !ok {
		return nil, fmt.Errorf("unknown type %q", typeID)
	}
	if tc.Mode == ModeTemplate {
		roles, ok := r.roles[typeID][size]
		if !ok {
			return nil, fmt.Errorf("%s has no field roles for size %d", typeID, size)
		}
		return append([]FieldRole(nil), roles...), nil
	}

	if size < tc.MinItems || size > tc.MaxItems {
		return nil, fmt.Errorf("%s supports %d-%d items, got %d", typeID, tc.MinItems, tc.MaxItems, size)
	}
	roles := make([]FieldRole, 0, size*len(tc.itemRoles))
	for n := 1; n <= size; n++ {
		position := fmt.Sprintf("item_%d", n)
		for role, b := range tc.itemRoles {
			roles = append(roles, FieldRole{ID: position + "_" + role, Position: position, Role: role, Bounds: b})
		}
	}
	sortRoles(roles)
	return roles, nil
}

// Sizes returns the structural sizes that have declared roles, ascending.
func (r *Registry) Sizes(typeID string) []int {
	tc, ok := r.types[typeID]
	if !ok {
		return nil
	}
	var sizes []int
	if tc.Mode == ModeTemplate {
		for n := range r.roles[typeID] {
			sizes = append(sizes, n)
		}
		sort.Ints(sizes)
		return sizes
	}
	for n := tc.MinItems; n <= tc.MaxItems; n++ {
		sizes = append(sizes, n)
	}
	return sizes
}
