package mocks

import (
	"context"
	"sync"

	"illustrator/pkg/backend"
)

// SynthesizeCall records one Synthesize invocation.
type SynthesizeCall struct {
	Instructions backend.Instructions
	Constraints  backend.Constraints
}

// StubSynthesizer implements backend.Synthesizer with a scripted response function.
type StubSynthesizer struct {
	// Func produces the result for the n-th call (0-based).
	Func func(ctx context.Context, n int, in backend.Instructions, c backend.Constraints) (backend.Synthesis, error)

	id    string
	mu    sync.Mutex
	calls []SynthesizeCall
}

// NewStubSynthesizer returns a stub that calls fn.
func NewStubSynthesizer(fn func(ctx context.Context, n int, in backend.Instructions, c backend.Constraints) (backend.Synthesis, error)) *StubSynthesizer {
	return &StubSynthesizer{Func: fn, id: "stub-backend"}
}

// FieldsFunc returns a stub that answers every call with fields built by fn from the
// declared roles.
func FieldsFunc(fn func(c backend.Constraints) map[string]string) *StubSynthesizer {
	return NewStubSynthesizer(func(_ context.Context, _ int, _ backend.Instructions, c backend.Constraints) (backend.Synthesis, error) {
		return backend.Synthesis{Fields: fn(c)}, nil
	})
}

// FailWith returns a stub whose every call fails with err.
func FailWith(err error) *StubSynthesizer {
	return NewStubSynthesizer(func(context.Context, int, backend.Instructions, backend.Constraints) (backend.Synthesis, error) {
		return backend.Synthesis{}, err
	})
}

// Synthesize implements backend.Synthesizer.
func (s *StubSynthesizer) Synthesize(ctx context.Context, in backend.Instructions, c backend.Constraints) (backend.Synthesis, error) {
	s.mu.Lock()
	n := len(s.calls)
	s.calls = append(s.calls, SynthesizeCall{Instructions: in, Constraints: c})
	s.mu.Unlock()

	out, err := s.Func(ctx, n, in, c)
	if err == nil && out.BackendID == "" {
		out.BackendID = s.id
	}
	return out, err
}

// ID implements backend.Synthesizer.
func (s *StubSynthesizer) ID() string {
	return s.id
}

// CallCount returns the number of Synthesize calls.
func (s *StubSynthesizer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Calls returns a copy of the recorded calls.
func (s *StubSynthesizer) Calls() []SynthesizeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SynthesizeCall(nil), s.calls...)
}
