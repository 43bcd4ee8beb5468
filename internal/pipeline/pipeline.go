// Package pipeline runs a fixed sequence of steps over a state value and
// decides, after each step, whether the run goes on, fails or completes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Route is the router's verdict on a state.
type Route int

const (
	// Continue advances to the next step. After the finalize step it loops
	// back to the first step.
	Continue Route = iota
	// Error stops the run; the state carries the failure.
	Error
	// Complete stops the run; the state carries the result.
	Complete
)

func (r Route) String() string {
	switch r {
	case Continue:
		return "continue"
	case Error:
		return "error"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// ErrMaxPasses is returned when the router keeps routing the finalized state
// back to the first step.
var ErrMaxPasses = errors.New("pipeline: max passes exceeded")

// Step transforms one state into the next. Steps record their own failures
// in the state they return.
type Step[S any] interface {
	Name() string
	Apply(ctx context.Context, state S) S
}

type stepFunc[S any] struct {
	name string
	fn   func(context.Context, S) S
}

func (s stepFunc[S]) Name() string { return s.name }

func (s stepFunc[S]) Apply(ctx context.Context, state S) S { return s.fn(ctx, state) }

// NewStep adapts a function to a Step.
func NewStep[S any](name string, fn func(ctx context.Context, state S) S) Step[S] {
	return stepFunc[S]{name: name, fn: fn}
}

// Router inspects a state and picks the next edge.
type Router[S any] interface {
	Decide(state S) Route
}

// RouterFunc adapts a function to a Router.
type RouterFunc[S any] func(state S) Route

func (f RouterFunc[S]) Decide(state S) Route { return f(state) }

// Event describes one step execution.
type Event struct {
	Pipeline string
	Step     string
	Pass     int
	Route    Route
	Duration time.Duration
}

// Observer receives step lifecycle events. Route and Duration are only set
// on StepFinished.
type Observer interface {
	StepStarted(e Event)
	StepFinished(e Event)
}

// StepError wraps an error with the step it came from.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type settings struct {
	maxPasses int
	observers []Observer
}

// Option configures a Pipeline.
type Option func(*settings)

// WithMaxPasses bounds how many times the step list may run. Values below
// one are ignored.
func WithMaxPasses(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxPasses = n
		}
	}
}

// WithObserver registers an observer for step events.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// Pipeline is an ordered step list followed by a finalize step. The edge list
// is fixed at construction.
type Pipeline[S any] struct {
	name     string
	steps    []Step[S]
	finalize Step[S]
	router   Router[S]
	settings settings
}

// New builds a pipeline. Steps run in the given order, then finalize runs.
func New[S any](name string, steps []Step[S], finalize Step[S], router Router[S], opts ...Option) (*Pipeline[S], error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("pipeline %s: no steps", name)
	}
	if finalize == nil {
		return nil, fmt.Errorf("pipeline %s: no finalize step", name)
	}
	if router == nil {
		return nil, fmt.Errorf("pipeline %s: no router", name)
	}

	s := settings{maxPasses: 2}
	for _, opt := range opts {
		opt(&s)
	}

	return &Pipeline[S]{
		name:     name,
		steps:    append([]Step[S](nil), steps...),
		finalize: finalize,
		router:   router,
		settings: s,
	}, nil
}

// Name returns the pipeline name.
func (p *Pipeline[S]) Name() string {
	return p.name
}

// Steps returns the step names in execution order, finalize included.
func (p *Pipeline[S]) Steps() []string {
	names := make([]string, 0, len(p.steps)+1)
	for _, s := range p.steps {
		names = append(names, s.Name())
	}
	return append(names, p.finalize.Name())
}

// Run executes the pipeline on initial and returns the last state produced.
// Step failures live in the state; the returned error is reserved for the
// run itself failing: a panicking step, a cancelled context or too many
// passes.
func (p *Pipeline[S]) Run(ctx context.Context, initial S) (S, error) {
	state := initial
	for pass := 1; ; pass++ {
		for _, step := range p.steps {
			var (
				route Route
				err   error
			)
			state, route, err = p.apply(ctx, step, state, pass, true)
			if err != nil {
				return state, err
			}
			if route != Continue {
				return state, nil
			}
		}

		var (
			route Route
			err   error
		)
		// finalize runs even when ctx was cancelled after the last step, which
		// may already have committed its work.
		state, route, err = p.apply(ctx, p.finalize, state, pass, false)
		if err != nil {
			return state, err
		}
		if route != Continue {
			return state, nil
		}
		if pass >= p.settings.maxPasses {
			return state, ErrMaxPasses
		}
	}
}

func (p *Pipeline[S]) apply(ctx context.Context, step Step[S], state S, pass int, gated bool) (next S, route Route, err error) {
	if err := ctx.Err(); gated && err != nil {
		return state, Error, &StepError{Step: step.Name(), Err: err}
	}

	ev := Event{Pipeline: p.name, Step: step.Name(), Pass: pass}
	for _, o := range p.settings.observers {
		o.StepStarted(ev)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			next, route = state, Error
			err = &StepError{Step: step.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
		ev.Route = route
		ev.Duration = time.Since(start)
		for _, o := range p.settings.observers {
			o.StepFinished(ev)
		}
	}()

	next = step.Apply(ctx, state)
	return next, p.router.Decide(next), nil
}
