package registry

import "sort"

// DefaultScheme is used when a requested scheme is unknown.
const DefaultScheme = "professional"

// BrandScheme selects a palette built from caller-supplied brand colors.
const BrandScheme = "brand"

// Palette is a resolved color scheme.
type Palette struct {
	Name       string   `yaml:"-" json:"name"`
	Primary    string   `yaml:"primary" json:"primary"`
	Secondary  []string `yaml:"secondary" json:"secondary"`
	Accent     string   `yaml:"accent" json:"accent"`
	Background string   `yaml:"background" json:"background"`
	Text       string   `yaml:"text" json:"text"`
	Muted      string   `yaml:"muted" json:"muted"`
}

// Colors returns primary, secondaries and accent in that order.
func (p Palette) Colors() []string {
	out := make([]string, 0, len(p.Secondary)+2)
	out = append(out, p.Primary)
	out = append(out, p.Secondary...)
	return append(out, p.Accent)
}

// SecondaryAt returns the i-th secondary color, cycling, or primary when none are set.
func (p Palette) SecondaryAt(i int) string {
	if len(p.Secondary) == 0 {
		return p.Primary
	}
	return p.Secondary[i%len(p.Secondary)]
}

// Tokens maps {color_*} skeleton placeholders to palette values.
func (p Palette) Tokens() map[string]string {
	tokens := map[string]string{
		"color_primary":    p.Primary,
		"color_accent":     p.Accent,
		"color_background": p.Background,
		"color_text":       p.Text,
		"color_muted":      p.Muted,
	}
	for i := 0; i < 3; i++ {
		tokens[secondaryToken(i)] = p.SecondaryAt(i)
	}
	return tokens
}

func secondaryToken(i int) string {
	return "color_secondary_" + string(rune('1'+i))
}

// Palette returns a named scheme.
func (r *Registry) Palette(name string) (Palette, bool) {
	p, ok := r.palettes[name]
	if !ok {
		return Palette{}, false
	}
	p.Name = name
	p.Secondary = append([]string(nil), p.Secondary...)
	return p, true
}

// SchemeNames lists the named schemes, sorted.
func (r *Registry) SchemeNames() []string {
	names := make([]string, 0, len(r.palettes))
	for name := range r.palettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolvePalette returns the named scheme, a brand palette when scheme is "brand" and
// brand colors are supplied, or the default scheme otherwise.
func (r *Registry) ResolvePalette(scheme string, brandColors []string) Palette {
	if scheme == BrandScheme && len(brandColors) > 0 {
		return BrandPalette(brandColors)
	}
	if p, ok := r.Palette(scheme); ok {
		return p
	}
	p, _ := r.Palette(DefaultScheme)
	return p
}

// BrandPalette builds a palette from up to five brand colors:
// [0] primary, [1:4] secondary, [4] accent (defaults to [0]).
func BrandPalette(colors []string) Palette {
	p := Palette{
		Name:       BrandScheme,
		Primary:    "#1E40AF",
		Secondary:  []string{"#3B82F6"},
		Background: "#FFFFFF",
		Text:       "#1E293B",
		Muted:      "#94A3B8",
	}
	if len(colors) > 0 {
		p.Primary = colors[0]
	}
	if len(colors) > 1 {
		end := min(len(colors), 4)
		p.Secondary = append([]string(nil), colors[1:end]...)
	}
	p.Accent = p.Primary
	if len(colors) > 4 {
		p.Accent = colors[4]
	}
	return p
}
