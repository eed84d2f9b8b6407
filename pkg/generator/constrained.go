package generator

import (
	"context"
	"time"

	"illustrator/pkg/backend"
	"illustrator/pkg/backend/middleware/metrics"
	"illustrator/pkg/logx"
	"illustrator/pkg/validator"
)

// DefaultMaxRetries is the number of extra attempts granted when fields violate
// their bounds.
const DefaultMaxRetries = 2

// Generation outcome labels.
const (
	OutcomeAccepted     = metrics.OutcomeAccepted
	OutcomeExhausted    = metrics.OutcomeExhausted
	OutcomeBackendError = "backend_error"
	OutcomeMalformed    = "malformed"
	OutcomeCancelled    = "cancelled"
)

// shapeFunc turns a raw synthesis into the fields to validate. It may rewrite the
// synthesis (repaired SVG, trimmed items). A non-nil error ends the loop.
type shapeFunc func(backend.Synthesis) (backend.Synthesis, map[string]string, error)

// step is the discriminated result of one attempt.
type step int

const (
	outcomeAccepted step = iota
	outcomeRetryableViolation
	outcomeTerminal
)

// Constrained runs the attempt/validate/retry loop against a synthesizer.
type Constrained struct {
	synth      backend.Synthesizer
	recorder   metrics.Recorder
	logger     *logx.Logger
	maxRetries int
}

// NewConstrained returns a loop allowing maxRetries attempts after the first.
// Negative maxRetries uses DefaultMaxRetries.
func NewConstrained(synth backend.Synthesizer, maxRetries int, recorder metrics.Recorder) *Constrained {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &Constrained{
		synth:      synth,
		recorder:   recorder,
		logger:     logx.NewLogger("generator"),
		maxRetries: maxRetries,
	}
}

// MaxAttempts is the attempt budget.
func (c *Constrained) MaxAttempts() int {
	return c.maxRetries + 1
}

// Outcome is the last attempt of a finished loop.
type Outcome struct {
	Synthesis  backend.Synthesis
	Fields     map[string]string
	Summary    validator.Summary
	Violations []validator.Violation
	Attempts   []Attempt
}

// Valid reports whether the last attempt satisfied every bound.
func (o *Outcome) Valid() bool {
	return len(o.Violations) == 0
}

// Run calls the synthesizer until the shaped fields satisfy every role in cons or the
// budget is spent. On exhaustion the last attempt is returned with its violations and
// a nil error. Backend, shape and context errors end the loop immediately; the
// returned Outcome then carries only Attempts, including the failed backend call.
func (c *Constrained) Run(ctx context.Context, in backend.Instructions, cons backend.Constraints, shape shapeFunc) (Outcome, error) {
	start := time.Now()
	var out Outcome

	for i := 0; i < c.MaxAttempts(); i++ {
		next, err := c.attempt(ctx, i, &in, cons, shape, &out)
		switch next {
		case outcomeAccepted:
			c.logger.Debug("%s accepted on attempt %d", in.Type, i+1)
			c.recorder.ObserveGeneration(in.Type, OutcomeAccepted, len(out.Attempts), 0, time.Since(start))
			return out, nil
		case outcomeTerminal:
			c.recorder.ObserveGeneration(in.Type, terminalLabel(err), len(out.Attempts), 0, time.Since(start))
			return Outcome{Attempts: out.Attempts}, err
		case outcomeRetryableViolation:
			logx.Debug(ctx, "generator", "%s attempt %d: %s", in.Type, i+1, validator.Report(out.Summary))
			in.Feedback = validator.Feedback(out.Violations)
		}
	}

	c.logger.Warn("%s: %d fields still out of bounds after %d attempts", in.Type, len(out.Violations), len(out.Attempts))
	c.recorder.ObserveGeneration(in.Type, OutcomeExhausted, len(out.Attempts), len(out.Violations), time.Since(start))
	return out, nil
}

func (c *Constrained) attempt(ctx context.Context, index int, in *backend.Instructions, cons backend.Constraints,
	shape shapeFunc, out *Outcome,
) (step, error) {
	if err := ctx.Err(); err != nil {
		return outcomeTerminal, err
	}

	began := time.Now()
	syn, err := c.synth.Synthesize(ctx, *in, cons)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return outcomeTerminal, ctxErr
	}
	if err != nil {
		c.logger.Warn("%s attempt %d: backend call failed: %v", in.Type, index+1, err)
		out.Attempts = append(out.Attempts, Attempt{Index: index, Elapsed: time.Since(began), BackendID: c.synth.ID()})
		return outcomeTerminal, &BackendInvocationError{Attempt: index, Err: err}
	}
	if syn.BackendID == "" {
		syn.BackendID = c.synth.ID()
	}

	syn, fields, err := shape(syn)
	if err != nil {
		out.Attempts = append(out.Attempts, Attempt{Index: index, Elapsed: time.Since(began), BackendID: syn.BackendID})
		return outcomeTerminal, err
	}

	out.Attempts = append(out.Attempts, Attempt{
		Index:     index,
		Fields:    fields,
		Elapsed:   time.Since(began),
		BackendID: syn.BackendID,
	})
	out.Synthesis = syn
	out.Fields = fields
	out.Summary = validator.Summarize(fields, cons.Roles)
	out.Violations = out.Summary.Violations

	if len(out.Violations) == 0 {
		return outcomeAccepted, nil
	}
	return outcomeRetryableViolation, nil
}

func terminalLabel(err error) string {
	switch err.(type) {
	case *BackendInvocationError:
		return OutcomeBackendError
	case *MalformedArtifactError:
		return OutcomeMalformed
	default:
		return OutcomeCancelled
	}
}
