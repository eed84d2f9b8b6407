package suitability

import (
	"fmt"
	"sort"
	"strings"
)

// Fallback service offered when no visual is a confident fit.
const (
	fallbackService    = "text-service"
	fallbackConfidence = 0.5
	defaultStyle       = "professional"
)

// Preferences steer the suggested variant.
type Preferences struct {
	Style string `json:"style,omitempty"`
}

// Variant is the suggested generation shape for a recommended type.
type Variant struct {
	ItemCount int    `json:"item_count"`
	Style     string `json:"style"`
}

// SpaceRequirements is the size a recommended type wants.
type SpaceRequirements struct {
	Width         int  `json:"width"`
	Height        int  `json:"height"`
	FitsAvailable bool `json:"fits_available"`
}

// Recommendation is a type worth generating for the content.
type Recommendation struct {
	VisualType         string            `json:"visual_type"`
	Confidence         float64           `json:"confidence"`
	Reason             string            `json:"reason"`
	Variant            Variant           `json:"variant"`
	Space              SpaceRequirements `json:"space_requirements"`
	GenerationEndpoint string            `json:"generation_endpoint,omitempty"`
}

// Rejection is a profiled type that did not clear the threshold.
type Rejection struct {
	VisualType string `json:"visual_type"`
	Reason     string `json:"reason"`
}

// Fallback points at a non-visual renderer.
type Fallback struct {
	Service string `json:"service"`
	Reason  string `json:"reason"`
}

// Recommendations ranks every profiled type for the content.
type Recommendations struct {
	Recommended    []Recommendation `json:"recommended_visuals"`
	NotRecommended []Rejection      `json:"not_recommended,omitempty"`
	Fallback       *Fallback        `json:"fallback_recommendation,omitempty"`
}

// Recommend ranks the profiled types for content, best first. A space, when given,
// lowers the confidence of types that would not fill it well. The fallback is set
// when nothing is recommended or the top pick is weak.
func (s *Scorer) Recommend(content Content, space *Space, prefs *Preferences) Recommendations {
	a := s.Analyze(content, nil)
	count := content.Count()
	style := defaultStyle
	if prefs != nil && prefs.Style != "" {
		style = prefs.Style
	}

	out := Recommendations{Recommended: []Recommendation{}}
	for _, t := range s.signals.Types {
		score := a.Scores[t.ID]
		var fit *SpaceFit
		if space != nil {
			f := s.ValidateSpace(t.ID, space, count)
			fit = &f
			if !f.FitsWell {
				score *= s.policy.SpaceFitPenalty
			}
		}

		if score < s.policy.CanHandleThreshold {
			out.NotRecommended = append(out.NotRecommended, Rejection{VisualType: t.ID, Reason: s.rejection(t.ID, &a, score, fit)})
			continue
		}

		rec := Recommendation{
			VisualType: t.ID,
			Confidence: round2(score),
			Reason:     s.typeReason(t.ID, &a),
			Variant:    Variant{ItemCount: s.variantItems(t.ID, count), Style: style},
		}
		if fit != nil {
			rec.Space = SpaceRequirements{Width: fit.RequiredWidth, Height: fit.RequiredHeight, FitsAvailable: fit.FitsWell}
		} else {
			size := s.RecommendedSpace(t.ID, count)
			rec.Space = SpaceRequirements{Width: size.Width, Height: size.Height, FitsAvailable: true}
		}
		out.Recommended = append(out.Recommended, rec)
	}

	sort.SliceStable(out.Recommended, func(i, j int) bool {
		return out.Recommended[i].Confidence > out.Recommended[j].Confidence
	})
	if len(out.Recommended) == 0 || out.Recommended[0].Confidence < fallbackConfidence {
		out.Fallback = &Fallback{
			Service: fallbackService,
			Reason:  "If visual not desired, text-service can render as structured content",
		}
	}

	s.logger.Info("Recommend: %d recommended, %d rejected", len(out.Recommended), len(out.NotRecommended))
	return out
}

func (s *Scorer) rejection(typeID string, a *Analysis, score float64, fit *SpaceFit) string {
	var reasons []string
	if a.Scores[typeID] < s.policy.MinScore {
		reasons = append(reasons, "No strong "+typeID+" indicators in content")
	}
	if len(a.NegativeSignals) > 0 {
		reasons = append(reasons, "Content appears data-heavy")
	}
	if tc, ok := s.registry.Type(typeID); ok && !a.TopicFit[typeID] {
		reasons = append(reasons, fmt.Sprintf("Item count better suited for %d-%d items", tc.MinItems, tc.MaxItems))
	}
	if fit != nil && !fit.FitsWell {
		reasons = append(reasons, fit.Reason)
	}
	if len(reasons) == 0 {
		return fmt.Sprintf("Low confidence for %s (%.2f)", typeID, score)
	}
	return strings.Join(reasons, "; ")
}

// variantItems clamps count into the type's item range.
func (s *Scorer) variantItems(typeID string, count int) int {
	tc, ok := s.registry.Type(typeID)
	if !ok {
		return count
	}
	switch {
	case count <= 0:
		return tc.DefaultItems
	case count < tc.MinItems:
		return tc.MinItems
	case count > tc.MaxItems:
		return tc.MaxItems
	}
	return count
}
