package metrics

import (
	"sort"
	"sync"
	"time"
)

// TypeStats is the in-memory aggregate for one infographic type.
type TypeStats struct {
	Type             string    `json:"type"`
	Requests         int64     `json:"backendRequests"`
	FailedRequests   int64     `json:"failedBackendRequests"`
	PromptTokens     int64     `json:"promptTokens"`
	CompletionTokens int64     `json:"completionTokens"`
	Generations      int64     `json:"generations"`
	Exhausted        int64     `json:"exhausted"`
	Failed           int64     `json:"failed"`
	Attempts         int64     `json:"attempts"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

// InternalRecorder aggregates observations per infographic type in memory for the
// health endpoint. Create one per application context.
type InternalRecorder struct {
	types map[string]*TypeStats
	mu    sync.RWMutex
}

func NewInternalRecorder() *InternalRecorder {
	return &InternalRecorder{types: make(map[string]*TypeStats)}
}

func (r *InternalRecorder) entry(infographicType string) *TypeStats {
	s, ok := r.types[infographicType]
	if !ok {
		s = &TypeStats{Type: infographicType}
		r.types[infographicType] = s
	}
	s.LastUpdated = time.Now()
	return s
}

func (r *InternalRecorder) ObserveRequest(_, infographicType string, promptTokens, completionTokens int, success bool, _ string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.entry(infographicType)
	s.Requests++
	if !success {
		s.FailedRequests++
		return
	}
	s.PromptTokens += int64(promptTokens)
	s.CompletionTokens += int64(completionTokens)
}

func (r *InternalRecorder) ObserveGeneration(infographicType, outcome string, attempts, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.entry(infographicType)
	s.Generations++
	s.Attempts += int64(attempts)
	switch outcome {
	case OutcomeAccepted:
	case OutcomeExhausted:
		s.Exhausted++
	default:
		s.Failed++
	}
}

func (r *InternalRecorder) IncThrottle(_, _ string) {}

func (r *InternalRecorder) ObserveQueueWait(_ string, _ time.Duration) {}

// Snapshot returns a copy of all per-type stats sorted by type.
func (r *InternalRecorder) Snapshot() []TypeStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TypeStats, 0, len(r.types))
	for _, s := range r.types {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Reset clears all stats.
func (r *InternalRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = make(map[string]*TypeStats)
}

// Generation outcomes that are not error codes.
const (
	OutcomeAccepted = "accepted"
	OutcomeExhausted = "exhausted"
)
