// Package suitability scores how well slide content fits the template infographic
// types. The score is advisory: it never gates generation.
package suitability

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"illustrator/pkg/config"
	"illustrator/pkg/logx"
	"illustrator/pkg/registry"
)

// NoMatch is the best match when no type scores above the minimum.
const NoMatch = "none"

// Content is the slide text to score.
type Content struct {
	Title      string   `json:"title"`
	Topics     []string `json:"topics"`
	TopicCount int      `json:"topic_count,omitempty"`
}

// Count returns TopicCount, or the number of topics when unset.
func (c Content) Count() int {
	if c.TopicCount > 0 {
		return c.TopicCount
	}
	return len(c.Topics)
}

// Hints are caller-provided content flags.
type Hints struct {
	HasNumbers       bool     `json:"has_numbers,omitempty"`
	IsComparison     bool     `json:"is_comparison,omitempty"`
	IsTimeBased      bool     `json:"is_time_based,omitempty"`
	DetectedKeywords []string `json:"detected_keywords,omitempty"`
}

// Space is the layout area available for the visual, in pixels.
type Space struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Analysis is the per-type breakdown of a score.
type Analysis struct {
	BestMatch       string              `json:"best_match"`
	Scores          map[string]float64  `json:"scores"`
	Patterns        []string            `json:"patterns_detected"`
	NegativeSignals []string            `json:"negative_signals"`
	TopicFit        map[string]bool     `json:"topic_count_fit"`
	KeywordMatches  map[string][]string `json:"keyword_matches"`
}

// Alternative is a runner-up type.
type Alternative struct {
	VisualType string  `json:"visual_type"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Verdict is the answer to "can this content be an infographic?".
type Verdict struct {
	CanHandle         bool          `json:"can_handle"`
	Confidence        float64       `json:"confidence"`
	Reason            string        `json:"reason"`
	SuggestedApproach string        `json:"suggested_approach,omitempty"`
	Space             *SpaceFit     `json:"space_utilization,omitempty"`
	Alternatives      []Alternative `json:"alternative_approaches,omitempty"`
}

// Scorer rates content against the template types.
type Scorer struct {
	signals  *signals
	registry *registry.Registry
	logger   *logx.Logger
	policy   config.SuitabilityConfig
}

// New loads the embedded signal tables. Zero-valued policies use the defaults.
func New(policy config.SuitabilityConfig, reg *registry.Registry) (*Scorer, error) {
	s, err := loadSignals()
	if err != nil {
		return nil, err
	}
	for _, t := range s.Types {
		if _, ok := reg.Type(t.ID); !ok {
			return nil, fmt.Errorf("signals.yaml: unknown type %q", t.ID)
		}
	}
	if policy == (config.SuitabilityConfig{}) {
		policy = config.DefaultSuitability()
	}
	return &Scorer{signals: s, registry: reg, logger: logx.NewLogger("suitability"), policy: policy}, nil
}

// Analyze scores content for every profiled type.
func (s *Scorer) Analyze(content Content, hints *Hints) Analysis {
	text := strings.ToLower(strings.Join(append([]string{content.Title}, content.Topics...), " "))
	count := content.Count()

	a := Analysis{
		Scores:         make(map[string]float64, len(s.signals.Types)),
		TopicFit:       make(map[string]bool, len(s.signals.Types)),
		KeywordMatches: make(map[string][]string, len(s.signals.Types)),
	}

	for _, t := range s.signals.Types {
		score, matched := s.keywordScore(text, t)
		a.Scores[t.ID] = score
		a.KeywordMatches[t.ID] = matched
		tc, _ := s.registry.Type(t.ID)
		a.TopicFit[t.ID] = count >= tc.MinItems && count <= tc.MaxItems
	}

	a.NegativeSignals = s.negativeSignals(text, hints)
	a.Patterns = s.patterns(text, content.Topics)

	for _, id := range a.Patterns {
		for _, p := range s.signals.Patterns {
			if p.ID != id {
				continue
			}
			for typeID, bonus := range p.Bonus {
				if _, ok := a.Scores[typeID]; ok {
					a.Scores[typeID] += bonus
				}
			}
		}
	}

	penalty := math.Min(float64(len(a.NegativeSignals))*s.policy.NegativePenalty, s.policy.NegativePenaltyCap)
	for _, t := range s.signals.Types {
		score := math.Max(0, a.Scores[t.ID]-penalty)
		if !a.TopicFit[t.ID] {
			score *= s.policy.CountMismatchFactor
		}
		a.Scores[t.ID] = round2(math.Min(score, 1))
	}

	a.BestMatch = NoMatch
	best := s.policy.MinScore
	for _, t := range s.signals.Types {
		if a.Scores[t.ID] > best {
			best = a.Scores[t.ID]
			a.BestMatch = t.ID
		}
	}
	logx.Debugf("suitability: best=%s scores=%v patterns=%v", a.BestMatch, a.Scores, a.Patterns)
	return a
}

func (s *Scorer) keywordScore(text string, t typeSignals) (float64, []string) {
	var score float64
	var matched []string
	tiers := []struct {
		name     string
		keywords []string
		weight   float64
	}{
		{"strong", t.Keywords.Strong, s.policy.StrongWeight},
		{"moderate", t.Keywords.Moderate, s.policy.ModerateWeight},
		{"weak", t.Keywords.Weak, s.policy.WeakWeight},
	}
	for _, tier := range tiers {
		for _, kw := range tier.keywords {
			if strings.Contains(text, kw) {
				score += tier.weight
				matched = append(matched, tier.name+":"+kw)
			}
		}
	}
	return math.Min(score, 1), matched
}

func (s *Scorer) negativeSignals(text string, hints *Hints) []string {
	var out []string
	negative := make(map[string]bool, len(s.signals.NegativeKeywords))
	for _, kw := range s.signals.NegativeKeywords {
		negative[kw] = true
		if strings.Contains(text, kw) {
			out = append(out, "keyword:"+kw)
		}
	}
	if hints == nil {
		return out
	}
	if hints.HasNumbers {
		out = append(out, "hint:has_numbers")
	}
	if hints.IsComparison {
		out = append(out, "hint:is_comparison")
	}
	if hints.IsTimeBased {
		out = append(out, "hint:is_time_based")
	}
	for _, kw := range hints.DetectedKeywords {
		if negative[strings.ToLower(kw)] {
			out = append(out, "director_keyword:"+kw)
		}
	}
	return out
}

var numberedTopic = regexp.MustCompile(`(?i)^(\d+|step\s*\d+|phase\s*\d+|stage\s*\d+)`)

func (s *Scorer) patterns(text string, topics []string) []string {
	var out []string
	for _, p := range s.signals.Patterns {
		if p.ID == sequentialPattern {
			if hasSequentialNumbering(topics) {
				out = append(out, p.ID)
			}
			continue
		}
		hits := 0
		for _, ind := range p.Indicators {
			if strings.Contains(text, ind) {
				hits++
			}
		}
		if hits >= p.MinMatches {
			out = append(out, p.ID)
		}
	}
	return out
}

// hasSequentialNumbering reports whether at least half of the topics are numbered.
func hasSequentialNumbering(topics []string) bool {
	if len(topics) == 0 {
		return false
	}
	numbered := 0
	for _, t := range topics {
		if numberedTopic.MatchString(t) {
			numbered++
		}
	}
	return float64(numbered) >= float64(len(topics))*0.5
}

// Score decides whether content suits a template type, adjusting for space when given.
func (s *Scorer) Score(content Content, hints *Hints, space *Space) Verdict {
	a := s.Analyze(content, hints)

	var confidence float64
	if a.BestMatch != NoMatch {
		confidence = a.Scores[a.BestMatch]
	}

	var fit *SpaceFit
	if space != nil && a.BestMatch != NoMatch {
		f := s.ValidateSpace(a.BestMatch, space, content.Count())
		fit = &f
		if !f.FitsWell {
			confidence *= s.policy.SpaceFitPenalty
		}
	}

	v := Verdict{
		CanHandle:    a.BestMatch != NoMatch && confidence >= s.policy.CanHandleThreshold,
		Confidence:   round2(confidence),
		Space:        fit,
		Alternatives: s.alternatives(&a),
	}
	if v.CanHandle {
		v.SuggestedApproach = a.BestMatch
	}
	v.Reason = s.reason(&a, confidence, fit)

	s.logger.Info("Can-handle: can_handle=%t confidence=%.2f suggested=%s", v.CanHandle, v.Confidence, a.BestMatch)
	return v
}

func (s *Scorer) reason(a *Analysis, confidence float64, fit *SpaceFit) string {
	if a.BestMatch == NoMatch || confidence < s.policy.CanHandleThreshold {
		if len(a.NegativeSignals) > 0 {
			return "Content appears data-heavy or comparison-focused - better suited for charts or text service"
		}
		return "No strong visual metaphor detected - content may be better as text or chart"
	}

	var parts []string
	if strong := strongMatches(a.KeywordMatches[a.BestMatch]); len(strong) > 0 {
		parts = append(parts, "Keywords: "+strings.Join(strong[:min(2, len(strong))], ", "))
	}
	if p := s.relevantPattern(a.BestMatch, a.Patterns); p != "" {
		parts = append(parts, "Pattern: "+strings.ReplaceAll(p, "_", " "))
	}
	if a.TopicFit[a.BestMatch] {
		parts = append(parts, "Item count fits well")
	}
	if fit != nil {
		if fit.FitsWell {
			parts = append(parts, fmt.Sprintf("Space: %d%% utilization", fit.FillPercent))
		} else {
			parts = append(parts, "Note: "+fit.Reason)
		}
	}
	if len(parts) == 0 {
		return "Suitable for " + a.BestMatch + " visualization"
	}
	return strings.Join(parts, " - ")
}

func (s *Scorer) alternatives(a *Analysis) []Alternative {
	ids := make([]string, 0, len(s.signals.Types))
	for _, t := range s.signals.Types {
		if t.ID != a.BestMatch && a.Scores[t.ID] >= s.policy.MinScore {
			ids = append(ids, t.ID)
		}
	}
	sort.SliceStable(ids, func(i, j int) bool { return a.Scores[ids[i]] > a.Scores[ids[j]] })
	if len(ids) > s.policy.MaxAlternatives {
		ids = ids[:s.policy.MaxAlternatives]
	}

	out := make([]Alternative, 0, len(ids))
	for _, id := range ids {
		out = append(out, Alternative{VisualType: id, Confidence: a.Scores[id], Reason: s.typeReason(id, a)})
	}
	return out
}

// typeReason explains the score of a single type.
func (s *Scorer) typeReason(typeID string, a *Analysis) string {
	var parts []string
	if strong := strongMatches(a.KeywordMatches[typeID]); len(strong) > 0 {
		parts = append(parts, "Keywords detected: "+strings.Join(strong[:min(3, len(strong))], ", "))
	}
	if p := s.relevantPattern(typeID, a.Patterns); p != "" {
		parts = append(parts, "Pattern: "+p)
	}
	if tc, ok := s.registry.Type(typeID); ok && !a.TopicFit[typeID] {
		parts = append(parts, fmt.Sprintf("ideal item count: %d-%d", tc.MinItems, tc.MaxItems))
	}
	if len(parts) == 0 {
		return "Moderate fit for " + typeID
	}
	return strings.Join(parts, " - ")
}

func (s *Scorer) relevantPattern(typeID string, detected []string) string {
	t, ok := s.signals.profile(typeID)
	if !ok {
		return ""
	}
	for _, p := range detected {
		for _, want := range t.Patterns {
			if p == want {
				return p
			}
		}
	}
	return ""
}

func strongMatches(matched []string) []string {
	var out []string
	for _, m := range matched {
		if kw, ok := strings.CutPrefix(m, "strong:"); ok {
			out = append(out, kw)
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
