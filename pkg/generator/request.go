package generator

import (
	"illustrator/pkg/backend"
	"illustrator/pkg/registry"
)

// ColorScheme names a palette.
type ColorScheme string

const (
	SchemeBrand        ColorScheme = "brand"
	SchemeProfessional ColorScheme = "professional"
	SchemeVibrant      ColorScheme = "vibrant"
	SchemePastel       ColorScheme = "pastel"
	SchemeMonochrome   ColorScheme = "monochrome"
	SchemeGradient     ColorScheme = "gradient"
	SchemeCustom       ColorScheme = "custom"
)

// Valid reports whether s is a known scheme.
func (s ColorScheme) Valid() bool {
	switch s {
	case SchemeBrand, SchemeProfessional, SchemeVibrant, SchemePastel, SchemeMonochrome, SchemeGradient, SchemeCustom:
		return true
	}
	return false
}

// IconStyle is the requested icon treatment.
type IconStyle string

const (
	IconOutlined    IconStyle = "outlined"
	IconFilled      IconStyle = "filled"
	IconDuotone     IconStyle = "duotone"
	IconMinimal     IconStyle = "minimal"
	IconIllustrated IconStyle = "illustrated"
	IconEmoji       IconStyle = "emoji"
	IconNone        IconStyle = "none"
)

// Valid reports whether s is a known icon style.
func (s IconStyle) Valid() bool {
	switch s {
	case IconOutlined, IconFilled, IconDuotone, IconMinimal, IconIllustrated, IconEmoji, IconNone:
		return true
	}
	return false
}

// Density is the requested spacing.
type Density string

const (
	DensityCompact  Density = "compact"
	DensityBalanced Density = "balanced"
	DensitySpacious Density = "spacious"
)

// Valid reports whether d is a known density.
func (d Density) Valid() bool {
	return d == DensityCompact || d == DensityBalanced || d == DensitySpacious
}

// Orientation is the requested layout direction.
type Orientation string

const (
	OrientationHorizontal Orientation = "horizontal"
	OrientationVertical   Orientation = "vertical"
	OrientationAuto       Orientation = "auto"
)

// Valid reports whether o is a known orientation.
func (o Orientation) Valid() bool {
	return o == OrientationHorizontal || o == OrientationVertical || o == OrientationAuto
}

// Grid is the canvas size in grid units.
type Grid struct {
	Width  int `json:"gridWidth"`
	Height int `json:"gridHeight"`
}

// Style holds the presentation options of a request.
type Style struct {
	ColorScheme ColorScheme `json:"colorScheme,omitempty"`
	IconStyle   IconStyle   `json:"iconStyle,omitempty"`
	Density     Density     `json:"density,omitempty"`
	Orientation Orientation `json:"orientation,omitempty"`
}

// Request is one generation request.
type Request struct {
	Type        string              `json:"type"`
	Topic       string              `json:"prompt"`
	ItemCount   *int                `json:"itemCount,omitempty"`
	Grid        Grid                `json:"constraints"`
	Style       Style               `json:"style"`
	BrandColors []string            `json:"brandColors,omitempty"`
	Continuity  []backend.PriorItem `json:"continuity,omitempty"`

	Tone              string `json:"tone,omitempty"`
	Audience          string `json:"audience,omitempty"`
	Industry          string `json:"industry,omitempty"`
	PresentationTitle string `json:"presentationTitle,omitempty"`
	SlideTitle        string `json:"slideTitle,omitempty"`
}

// Normalize fills unset style options with their defaults.
func (r *Request) Normalize() {
	if r.Style.ColorScheme == "" {
		r.Style.ColorScheme = SchemeProfessional
	}
	if r.Style.IconStyle == "" {
		r.Style.IconStyle = IconEmoji
	}
	if r.Style.Density == "" {
		r.Style.Density = DensityBalanced
	}
	if r.Style.Orientation == "" {
		r.Style.Orientation = OrientationAuto
	}
}

// CheckStyle returns a reason when a style option is outside its enumeration, or "".
func (r *Request) CheckStyle() string {
	switch {
	case r.Style.ColorScheme != "" && !r.Style.ColorScheme.Valid():
		return "Unknown color scheme: " + string(r.Style.ColorScheme)
	case r.Style.IconStyle != "" && !r.Style.IconStyle.Valid():
		return "Unknown icon style: " + string(r.Style.IconStyle)
	case r.Style.Density != "" && !r.Style.Density.Valid():
		return "Unknown density: " + string(r.Style.Density)
	case r.Style.Orientation != "" && !r.Style.Orientation.Valid():
		return "Unknown orientation: " + string(r.Style.Orientation)
	}
	return ""
}

// ContextSummary renders the request's presentation context as instruction lines.
func (r *Request) ContextSummary() []string {
	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, label+value)
		}
	}
	add("Presentation: ", r.PresentationTitle)
	add("Slide: ", r.SlideTitle)
	add("Industry: ", r.Industry)
	add("Audience: ", r.Audience)
	add("Tone: ", r.Tone)
	if len(lines) == 0 {
		return []string{"General business context"}
	}
	return lines
}

// ResolveOrientation turns auto into a concrete direction from the pixel aspect.
func ResolveOrientation(o Orientation, widthPx, heightPx int) Orientation {
	if o != "" && o != OrientationAuto {
		return o
	}
	if heightPx <= 0 {
		return OrientationHorizontal
	}
	aspect := float64(widthPx) / float64(heightPx)
	if aspect < 0.75 {
		return OrientationVertical
	}
	return OrientationHorizontal
}

// paletteFor resolves the palette named by the request.
func paletteFor(reg *registry.Registry, r *Request) registry.Palette {
	return reg.ResolvePalette(string(r.Style.ColorScheme), r.BrandColors)
}
