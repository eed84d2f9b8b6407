package registry

import "fmt"

// PixelSize converts grid units to pixels.
func PixelSize(gridWidth, gridHeight int) (int, int) {
	return gridWidth * GridUnitPixels, gridHeight * GridUnitPixels
}

// CheckGrid returns a human-readable reason when the grid is outside the type bounds,
// or "" when it fits.
func (tc TypeConstraint) CheckGrid(gridWidth, gridHeight int) string {
	switch {
	case gridWidth < tc.MinGridWidth:
		return fmt.Sprintf("Grid width %d is below minimum %d for %s", gridWidth, tc.MinGridWidth, tc.ID)
	case gridHeight < tc.MinGridHeight:
		return fmt.Sprintf("Grid height %d is below minimum %d for %s", gridHeight, tc.MinGridHeight, tc.ID)
	case gridWidth > tc.MaxGridWidth:
		return fmt.Sprintf("Grid width %d exceeds maximum %d for %s", gridWidth, tc.MaxGridWidth, tc.ID)
	case gridHeight > tc.MaxGridHeight:
		return fmt.Sprintf("Grid height %d exceeds maximum %d for %s", gridHeight, tc.MaxGridHeight, tc.ID)
	}
	return ""
}

// CheckItemCount returns a reason when n is outside the item range, or "".
func (tc TypeConstraint) CheckItemCount(n int) string {
	if n < tc.MinItems || n > tc.MaxItems {
		return fmt.Sprintf("Item count %d is outside range %d-%d for %s", n, tc.MinItems, tc.MaxItems, tc.ID)
	}
	return ""
}

// ClampItems clamps n into [MinItems, MaxItems].
func (tc TypeConstraint) ClampItems(n int) int {
	return max(tc.MinItems, min(n, tc.MaxItems))
}

// Area-based scaling tiers for the recommended item count.
const (
	smallGridArea  = 144
	mediumGridArea = 288
)

// RecommendedItems derives an item count from grid area: the max item count is scaled
// by 0.6, 0.8 or 1.0 for small, medium and large areas and the midpoint of
// [MinItems, scaledMax] is returned.
func (tc TypeConstraint) RecommendedItems(gridWidth, gridHeight int) int {
	area := gridWidth * gridHeight
	factor := 1.0
	switch {
	case area <= smallGridArea:
		factor = 0.6
	case area <= mediumGridArea:
		factor = 0.8
	}
	scaledMax := max(int(float64(tc.MaxItems)*factor), tc.MinItems)
	return (tc.MinItems + scaledMax) / 2
}
