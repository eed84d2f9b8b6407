package suitability

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed data/signals.yaml
var dataFS embed.FS

// sequentialPattern is detected from topic numbering rather than indicator words.
const sequentialPattern = "sequential"

type aspectRange struct {
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Optimal float64 `yaml:"optimal"`
}

type spaceProfile struct {
	Min     [2]int       `yaml:"min"`
	Optimal [2]int       `yaml:"optimal"`
	Aspect  aspectRange  `yaml:"aspect"`
	Growth  [][3]float64 `yaml:"growth"`
}

type typeSignals struct {
	ID       string `yaml:"id"`
	Keywords struct {
		Strong   []string `yaml:"strong"`
		Moderate []string `yaml:"moderate"`
		Weak     []string `yaml:"weak"`
	} `yaml:"keywords"`
	Patterns []string     `yaml:"patterns"`
	Space    spaceProfile `yaml:"space"`
}

type patternSignals struct {
	ID         string             `yaml:"id"`
	Indicators []string           `yaml:"indicators"`
	MinMatches int                `yaml:"min_matches"`
	Bonus      map[string]float64 `yaml:"bonus"`
}

type signals struct {
	Types            []typeSignals    `yaml:"types"`
	NegativeKeywords []string         `yaml:"negative_keywords"`
	Patterns         []patternSignals `yaml:"patterns"`
}

func loadSignals() (*signals, error) {
	raw, err := dataFS.ReadFile("data/signals.yaml")
	if err != nil {
		return nil, fmt.Errorf("read signals: %w", err)
	}
	var s signals
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse signals: %w", err)
	}
	if len(s.Types) == 0 {
		return nil, fmt.Errorf("signals.yaml declares no types")
	}
	for i := range s.Patterns {
		if s.Patterns[i].MinMatches == 0 {
			s.Patterns[i].MinMatches = 1
		}
	}
	return &s, nil
}

func (s *signals) profile(typeID string) (typeSignals, bool) {
	for _, t := range s.Types {
		if t.ID == typeID {
			return t, true
		}
	}
	return typeSignals{}, false
}
