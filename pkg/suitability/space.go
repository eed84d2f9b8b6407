package suitability

import (
	"fmt"
	"math"
)

// Defaults used when no space is given or a type has no space profile.
const (
	defaultSlideWidth   = 1800
	defaultSlideHeight  = 750
	defaultFillPercent  = 80
	minFillPercent      = 30
	goodFillPercent     = 50
	optimalAspectMargin = 0.3
)

//nolint:gochecknoglobals // read-only fallback
var defaultProfile = spaceProfile{
	Min:     [2]int{700, 600},
	Optimal: [2]int{1000, 700},
	Aspect:  aspectRange{Min: 0.8, Max: 2.0, Optimal: 1.5},
}

// SpaceFit reports how a type would fill the available space.
type SpaceFit struct {
	FitsWell        bool   `json:"fits_well"`
	FillPercent     int    `json:"estimated_fill_percent"`
	RequiredWidth   int    `json:"required_width"`
	RequiredHeight  int    `json:"required_height"`
	AvailableWidth  int    `json:"available_width"`
	AvailableHeight int    `json:"available_height"`
	Reason          string `json:"reason"`
}

// ValidateSpace checks typeID with itemCount items against space. A nil space is
// assumed to fit a default slide content zone.
func (s *Scorer) ValidateSpace(typeID string, space *Space, itemCount int) SpaceFit {
	profile := defaultProfile
	if t, ok := s.signals.profile(typeID); ok && t.Space.Optimal[0] > 0 {
		profile = t.Space
	}

	if space == nil {
		return SpaceFit{
			FitsWell:        true,
			FillPercent:     defaultFillPercent,
			RequiredWidth:   profile.Optimal[0],
			RequiredHeight:  profile.Optimal[1],
			AvailableWidth:  defaultSlideWidth,
			AvailableHeight: defaultSlideHeight,
			Reason:          "No space constraints provided - using defaults",
		}
	}

	minW, minH := grow(profile.Min, profile.Growth, itemCount)
	optW, optH := grow(profile.Optimal, profile.Growth, itemCount)
	fit := SpaceFit{AvailableWidth: space.Width, AvailableHeight: space.Height}

	if space.Width < minW || space.Height < minH {
		fit.RequiredWidth, fit.RequiredHeight = minW, minH
		fit.Reason = fmt.Sprintf("Space too small: need %dx%d, have %dx%d", minW, minH, space.Width, space.Height)
		return fit
	}

	fit.RequiredWidth, fit.RequiredHeight = optW, optH
	fit.FillPercent = fillPercent(optW, optH, space.Width, space.Height)
	aspectOK, aspectReason := checkAspect(typeID, profile.Aspect, space.Width, space.Height)
	fit.FitsWell = fit.FillPercent >= goodFillPercent && aspectOK

	switch {
	case fit.FitsWell && fit.FillPercent >= 80:
		fit.Reason = fmt.Sprintf("Excellent fit for %s - %d%% utilization", typeID, fit.FillPercent)
	case fit.FitsWell && fit.FillPercent >= 60:
		fit.Reason = fmt.Sprintf("Good fit for %s - %d%% utilization", typeID, fit.FillPercent)
	case fit.FitsWell:
		fit.Reason = fmt.Sprintf("Adequate fit for %s - %d%% utilization", typeID, fit.FillPercent)
	case !aspectOK:
		fit.Reason = aspectReason + " - consider different layout"
	default:
		fit.Reason = fmt.Sprintf("Poor space utilization (%d%%) for %s", fit.FillPercent, typeID)
	}
	return fit
}

// RecommendedSpace is the optimal size of typeID for itemCount items.
func (s *Scorer) RecommendedSpace(typeID string, itemCount int) Space {
	profile := defaultProfile
	if t, ok := s.signals.profile(typeID); ok && t.Space.Optimal[0] > 0 {
		profile = t.Space
	}
	w, h := grow(profile.Optimal, profile.Growth, itemCount)
	return Space{Width: w, Height: h}
}

// grow scales a size by every growth step whose item threshold is exceeded.
func grow(size [2]int, growth [][3]float64, itemCount int) (int, int) {
	w, h := size[0], size[1]
	for _, g := range growth {
		if float64(itemCount) > g[0] {
			w = int(float64(w) * g[1])
			h = int(float64(h) * g[2])
		}
	}
	return w, h
}

func fillPercent(optW, optH, availW, availH int) int {
	wr := math.Min(float64(availW)/float64(optW), 1.5)
	hr := math.Min(float64(availH)/float64(optH), 1.5)

	var fill int
	switch {
	case float64(availW) > float64(optW)*1.2 && float64(availH) > float64(optH)*1.2:
		fill = int(70 * (float64(optW) / float64(availW)) * (float64(optH) / float64(availH)))
	case availW >= optW && availH >= optH:
		fill = int(math.Min(wr, hr) * 85)
	default:
		fill = int(math.Min(wr, hr) * 100)
	}
	return max(minFillPercent, min(100, fill))
}

func checkAspect(typeID string, r aspectRange, width, height int) (bool, string) {
	if height == 0 {
		return false, "Invalid height"
	}
	aspect := float64(width) / float64(height)
	switch {
	case aspect < r.Min:
		return false, "Too narrow for " + typeID
	case aspect > r.Max:
		return false, "Too wide for " + typeID
	case math.Abs(aspect-r.Optimal) < optimalAspectMargin:
		return true, "Optimal aspect ratio"
	default:
		return true, "Acceptable aspect ratio"
	}
}
