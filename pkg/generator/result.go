package generator

import (
	"math"
	"time"

	"illustrator/pkg/registry"
	"illustrator/pkg/validator"
)

// Item is one logical element of an infographic (a level, a stage, a milestone).
type Item struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Icon        string         `json:"icon,omitempty"`
	Value       string         `json:"value,omitempty"`
	Color       string         `json:"color,omitempty"`
	Position    int            `json:"position"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Rendered carries both output representations.
type Rendered struct {
	HTML string `json:"html"`
	SVG  string `json:"svg"`
}

// Validation is the final validation state of the returned fields.
type Validation struct {
	Valid      bool                  `json:"valid"`
	Violations []validator.Violation `json:"violations"`
}

// Metadata describes how a result was produced.
type Metadata struct {
	Type             string   `json:"type"`
	AttemptsUsed     int      `json:"attemptsUsed"`
	GenerationTimeMs int64    `json:"generationTimeMs"`
	BackendID        string   `json:"backendId,omitempty"`
	WidthPx          int      `json:"widthPx"`
	HeightPx         int      `json:"heightPx"`
	AspectRatio      float64  `json:"aspectRatio"`
	Colors           []string `json:"colorPalette"`
	ItemCount        int      `json:"itemCount"`
	Orientation      string   `json:"orientation,omitempty"`
	GenerationMethod string   `json:"generationMethod"`
	Repaired         bool     `json:"repaired,omitempty"`
}

// EditableItem is an item a client may retitle.
type EditableItem struct {
	ItemID       string `json:"itemId"`
	ItemType     string `json:"itemType"`
	CurrentValue string `json:"currentValue"`
	MaxLength    int    `json:"maxLength"`
	Position     int    `json:"position"`
}

// EditInfo tells a client which edits keep the result within the type's limits.
type EditInfo struct {
	EditableItems []EditableItem `json:"editableItems"`
	Reorderable   bool           `json:"reorderableItems"`
	Addable       bool           `json:"addableItems"`
	Deletable     bool           `json:"deletableItems"`
	MaxItems      int            `json:"maxItems"`
	MinItems      int            `json:"minItems"`
}

// editableTitleLength is the longest title a client may set on an item.
const editableTitleLength = 100

// NewEditInfo derives edit permissions for items under tc.
func NewEditInfo(items []Item, tc registry.TypeConstraint) EditInfo {
	editable := make([]EditableItem, len(items))
	for i, item := range items {
		editable[i] = EditableItem{
			ItemID:       item.ID,
			ItemType:     "title",
			CurrentValue: item.Title,
			MaxLength:    editableTitleLength,
			Position:     item.Position,
		}
	}
	return EditInfo{
		EditableItems: editable,
		Reorderable:   true,
		Addable:       len(items) < tc.MaxItems,
		Deletable:     len(items) > tc.MinItems,
		MaxItems:      tc.MaxItems,
		MinItems:      tc.MinItems,
	}
}

// ErrorInfo is the public error envelope.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Result is the outcome of one generation. Generate always returns one; failures
// are described by Error.
type Result struct {
	Success      bool              `json:"success"`
	GenerationID string            `json:"generationId,omitempty"`
	Items        []Item            `json:"items,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
	Rendered     Rendered          `json:"rendered"`
	Validation   Validation        `json:"validation"`
	Metadata     Metadata          `json:"metadata"`
	EditInfo     *EditInfo         `json:"editInfo,omitempty"`
	Error        *ErrorInfo        `json:"error,omitempty"`
}

// Failure builds an unsuccessful result for err.
func Failure(typeID string, err error) Result {
	info := ToErrorInfo(err)
	return Result{
		Metadata:   Metadata{Type: typeID},
		Validation: Validation{Violations: []validator.Violation{}},
		Error:      &info,
	}
}

// Attempt is one backend call inside the constrained loop.
type Attempt struct {
	Index     int
	Fields    map[string]string
	Elapsed   time.Duration
	BackendID string
}

func aspectRatio(widthPx, heightPx int) float64 {
	if heightPx <= 0 {
		return 1.0
	}
	return math.Round(float64(widthPx)/float64(heightPx)*100) / 100
}
