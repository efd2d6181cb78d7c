package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cassiomorais/settlement/pkg/saga"

// StepResult is what a step hands back on success. Output becomes the next step's input;
// Token is kept for this step's own compensation.
type StepResult struct {
	Output any
	Token  any
}

// Step represents a single step in a saga with a forward action and an optional compensation.
type Step struct {
	Name       string
	Invoke     func(ctx context.Context, input any) (StepResult, error)
	Compensate func(ctx context.Context, token any) error
}

// StepError is returned when a step fails. It unwraps to the step's original error.
type StepError struct {
	Saga            string
	Step            string
	Index           int
	Err             error
	CompensationErr error
}

func (e *StepError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("saga %s: step %q failed: %v (compensation errors: %v)", e.Saga, e.Step, e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("saga %s: step %q failed: %v", e.Saga, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Saga orchestrates a series of steps with automatic compensation on failure.
type Saga struct {
	name   string
	steps  []Step
	tracer trace.Tracer
}

// Option configures a Saga.
type Option func(*Saga)

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Saga) { s.tracer = t }
}

// New creates a new saga with the given name.
func New(name string, opts ...Option) *Saga {
	s := &Saga{name: name}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// AddStep adds a step to the saga.
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Name returns the saga name.
func (s *Saga) Name() string {
	return s.name
}

type completedStep struct {
	index int
	token any
}

// Execute runs all steps in order, feeding each step's output to the next, and returns the
// last output. If a step fails, every step that already succeeded is compensated once, in
// reverse order, with its own token. The returned error is a *StepError.
func (s *Saga) Execute(ctx context.Context, input any) (any, error) {
	ctx, span := s.tracer.Start(ctx, "saga."+s.name, trace.WithAttributes(
		attribute.String("saga.name", s.name),
		attribute.Int("saga.steps", len(s.steps)),
	))
	defer span.End()

	log := zerolog.Ctx(ctx).With().Str("saga", s.name).Logger()
	completed := make([]completedStep, 0, len(s.steps))
	current := input

	for i, step := range s.steps {
		result, err := s.invoke(ctx, i, step, current)
		if err != nil {
			log.Warn().Err(err).Str("step", step.Name).Int("index", i).
				Int("compensations", len(completed)).Msg("saga step failed, compensating")

			compErr := s.compensate(ctx, completed)
			stepErr := &StepError{Saga: s.name, Step: step.Name, Index: i, Err: err, CompensationErr: compErr}
			span.RecordError(stepErr)
			span.SetStatus(codes.Error, stepErr.Error())
			return nil, stepErr
		}
		completed = append(completed, completedStep{index: i, token: result.Token})
		current = result.Output
	}

	return current, nil
}

func (s *Saga) invoke(ctx context.Context, index int, step Step, input any) (StepResult, error) {
	ctx, span := s.tracer.Start(ctx, "saga.step."+step.Name, trace.WithAttributes(
		attribute.Int("saga.step.index", index),
	))
	defer span.End()

	if step.Invoke == nil {
		return StepResult{Output: input}, nil
	}
	result, err := step.Invoke(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

// compensate runs even when the caller's context is already done.
func (s *Saga) compensate(ctx context.Context, completed []completedStep) error {
	ctx = context.WithoutCancel(ctx)
	log := zerolog.Ctx(ctx)

	var errs []error
	for i := len(completed) - 1; i >= 0; i-- {
		step := s.steps[completed[i].index]
		if step.Compensate == nil {
			continue
		}
		if err := s.compensateStep(ctx, step, completed[i].token); err != nil {
			log.Error().Err(err).Str("saga", s.name).Str("step", step.Name).Msg("compensation failed")
			errs = append(errs, fmt.Errorf("compensate step %q: %w", step.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Saga) compensateStep(ctx context.Context, step Step, token any) (err error) {
	ctx, span := s.tracer.Start(ctx, "saga.compensate."+step.Name)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return step.Compensate(ctx, token)
}
