package returns

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/returns/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Step is one unit of work in a saga with the action that undoes it
type Step interface {
	Name() string
	Apply(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// funcStep adapts a pair of closures to Step
type funcStep struct {
	name       string
	apply      func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

// NewStep creates a Step from closures. A nil compensate is a no-op.
func NewStep(name string, apply, compensate func(ctx context.Context) error) Step {
	return &funcStep{name: name, apply: apply, compensate: compensate}
}

func (s *funcStep) Name() string { return s.name }

func (s *funcStep) Apply(ctx context.Context) error { return s.apply(ctx) }

func (s *funcStep) Compensate(ctx context.Context) error {
	if s.compensate == nil {
		return nil
	}
	return s.compensate(ctx)
}

// SagaError reports a failed saga. It unwraps to the error of the failing step
// so callers can still match domain error codes.
type SagaError struct {
	Step               string
	Err                error
	CompensationErrors []error
}

func (e *SagaError) Error() string {
	if len(e.CompensationErrors) == 0 {
		return e.Err.Error()
	}
	msgs := make([]string, len(e.CompensationErrors))
	for i, err := range e.CompensationErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%s (compensation failed: %s)", e.Err.Error(), strings.Join(msgs, "; "))
}

func (e *SagaError) Unwrap() error {
	return e.Err
}

// FullyCompensated reports whether every applied step was undone
func (e *SagaError) FullyCompensated() bool {
	return len(e.CompensationErrors) == 0
}

// SagaRunner executes steps in order and compensates applied steps in reverse on failure
type SagaRunner struct {
	logger  *zap.Logger
	metrics Metrics
}

// NewSagaRunner creates a saga runner
func NewSagaRunner(logger *zap.Logger, metrics Metrics) *SagaRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &SagaRunner{logger: logger, metrics: metrics}
}

// Run applies steps in order. When a step fails, every step applied before it is
// compensated, last first, and a *SagaError is returned.
func (r *SagaRunner) Run(ctx context.Context, steps []Step) error {
	applied := make([]Step, 0, len(steps))

	for _, step := range steps {
		if err := step.Apply(ctx); err != nil {
			r.logger.Warn("saga step failed, compensating",
				zap.String("step", step.Name()),
				zap.Int("applied_steps", len(applied)),
				zap.Error(err),
			)
			return r.compensate(ctx, step.Name(), err, applied)
		}
		applied = append(applied, step)
	}

	return nil
}

func (r *SagaRunner) compensate(ctx context.Context, failedStep string, cause error, applied []Step) error {
	sagaErr := &SagaError{Step: failedStep, Err: cause}
	span := telemetry.SpanFromContext(ctx)

	for i := len(applied) - 1; i >= 0; i-- {
		step := applied[i]
		telemetry.AddEvent(span, "compensation", telemetry.SpanAttrStep, step.Name(), "failed_step", failedStep)
		if err := step.Compensate(ctx); err != nil {
			r.logger.Error("compensation failed",
				zap.String("step", step.Name()),
				zap.String("failed_step", failedStep),
				zap.Error(err),
			)
			r.metrics.RecordCompensation(ctx, step.Name(), false)
			sagaErr.CompensationErrors = append(sagaErr.CompensationErrors, fmt.Errorf("%s: %w", step.Name(), err))
			continue
		}
		r.metrics.RecordCompensation(ctx, step.Name(), true)
	}

	return sagaErr
}

// AsSagaError extracts a *SagaError from err
func AsSagaError(err error) (*SagaError, bool) {
	var sagaErr *SagaError
	ok := errors.As(err, &sagaErr)
	return sagaErr, ok
}
