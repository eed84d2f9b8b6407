package generator

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"illustrator/pkg/backend"
	"illustrator/pkg/registry"
	"illustrator/pkg/skeleton"
)

// maxBullets bounds the bullet roles scanned per item.
const maxBullets = 5

// itemShape tells how the fields of a template type group into items.
type itemShape struct {
	position       string // field prefix of the item, e.g. "level"
	titleRole      string
	bulletPosition string // prefix holding the bullets when it differs from position
	iconRole       string
	fallback       string
	topDown        bool // item n is rendered first
	metadataKey    string
}

//nolint:gochecknoglobals // read-only lookup table
var itemShapes = map[string]itemShape{
	"pyramid":            {position: "level", titleRole: "label", fallback: "Level", topDown: true, metadataKey: "level"},
	"funnel":             {position: "stage", titleRole: "name", fallback: "Stage", metadataKey: "stage"},
	"concentric_circles": {position: "circle", titleRole: "label", bulletPosition: "legend", fallback: "Circle", metadataKey: "ring"},
	"concept_spread":     {position: "box", titleRole: "title", iconRole: "emoji", fallback: "Concept"},
	"venn":               {position: "set", titleRole: "label", fallback: "Set", metadataKey: "set"},
	"comparison":         {position: "column", titleRole: "title", fallback: "Column", metadataKey: "column"},
}

// Units names what one item of a type is called in instructions.
//
//nolint:gochecknoglobals // read-only lookup table
var Units = map[string]string{
	"pyramid":            "levels",
	"funnel":             "stages",
	"concentric_circles": "rings",
	"concept_spread":     "concepts",
	"venn":               "sets",
	"comparison":         "columns",
	"timeline":           "milestones",
	"process":            "steps",
	"statistics":         "statistics",
	"hierarchy":          "nodes",
	"list":               "items",
	"cycle":              "phases",
	"matrix":             "quadrants",
	"roadmap":            "phases",
}

func unitFor(typeID string) string {
	if u, ok := Units[typeID]; ok {
		return u
	}
	return "items"
}

// NewGenerationID returns a fresh generation identifier.
func NewGenerationID() string {
	return "gen_" + hexID(12)
}

func newItemID(index int) string {
	return fmt.Sprintf("item_%03d_%s", index, hexID(6))
}

func hexID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

// templateItems groups filled fields into items, ordered as rendered.
func templateItems(typeID string, size int, fields map[string]string) []Item {
	shape, ok := itemShapes[typeID]
	if !ok {
		return nil
	}
	bulletPosition := shape.bulletPosition
	if bulletPosition == "" {
		bulletPosition = shape.position
	}

	items := make([]Item, 0, size)
	for pos := 0; pos < size; pos++ {
		n := pos + 1
		if shape.topDown {
			n = size - pos
		}
		prefix := fmt.Sprintf("%s_%d_", shape.position, n)

		title := strings.TrimSpace(fields[prefix+shape.titleRole])
		if title == "" {
			title = fmt.Sprintf("%s %d", shape.fallback, n)
		}

		var bullets []string
		for k := 1; k <= maxBullets; k++ {
			if b := strings.TrimSpace(fields[fmt.Sprintf("%s_%d_bullet_%d", bulletPosition, n, k)]); b != "" {
				bullets = append(bullets, b)
			}
		}

		item := Item{
			ID:          newItemID(pos),
			Title:       title,
			Description: strings.Join(bullets, "; "),
			Position:    pos,
		}
		if shape.iconRole != "" {
			item.Icon = fields[prefix+shape.iconRole]
		}
		if shape.metadataKey != "" {
			item.Metadata = map[string]any{shape.metadataKey: n}
		}
		items = append(items, item)
	}
	return items
}

// synthesizedItems converts the backend's item list.
func synthesizedItems(raw []backend.SynthesizedItem) []Item {
	items := make([]Item, len(raw))
	for i, r := range raw {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = fmt.Sprintf("Item %d", i+1)
		}
		items[i] = Item{
			ID:          newItemID(i),
			Title:       title,
			Description: r.Description,
			Icon:        r.Icon,
			Value:       r.Value,
			Color:       r.Color,
			Position:    i,
		}
	}
	return items
}

// itemFields exposes the item list as item_<n>_<role> fields for the declared roles.
func itemFields(raw []backend.SynthesizedItem, roles []registry.FieldRole) map[string]string {
	declared := make(map[string]bool, len(roles))
	for _, r := range roles {
		declared[r.ID] = true
	}
	fields := make(map[string]string)
	set := func(id, value string) {
		if declared[id] {
			fields[id] = value
		}
	}
	for i, item := range raw {
		prefix := fmt.Sprintf("item_%d_", i+1)
		set(prefix+"title", item.Title)
		set(prefix+"description", item.Description)
		set(prefix+"value", item.Value)
	}
	return fields
}

// declaredOnly keeps the fields named by roles.
func declaredOnly(fields map[string]string, roles []registry.FieldRole) map[string]string {
	out := make(map[string]string, len(roles))
	for _, r := range roles {
		if v, ok := fields[r.ID]; ok {
			out[r.ID] = v
		}
	}
	return out
}

// fillTokens returns the skeleton tokens for a template fill: lists the backend
// returned, expanded into repeated markup, overlaid with the validated fields.
func fillTokens(fields map[string]string, content map[string]any) map[string]string {
	tokens := skeleton.Flatten(content)
	for k, v := range fields {
		tokens[k] = v
	}
	return tokens
}

// unfilled lists the skeleton tokens that neither tokens nor palette provide.
func unfilled(html string, tokens, palette map[string]string) []string {
	var empty []string
	for _, name := range skeleton.Placeholders(html) {
		_, inTokens := tokens[name]
		_, inPalette := palette[name]
		if !inTokens && !inPalette {
			empty = append(empty, name)
		}
	}
	return empty
}
