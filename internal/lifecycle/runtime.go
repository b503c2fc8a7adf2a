package lifecycle

import (
	"context"
	"errors"
	"fmt"
)

// Component is a background unit with an explicit lifecycle. Start must
// return promptly, long-running work belongs in goroutines the component
// owns until Stop.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runtime starts components in registration order and stops them in
// reverse. A failed Start unwinds whatever already started.
type Runtime struct {
	components []Component
}

func NewRuntime(components ...Component) *Runtime {
	r := &Runtime{}
	for _, c := range components {
		r.Register(c)
	}
	return r
}

func (r *Runtime) Register(c Component) {
	if c == nil {
		return
	}
	r.components = append(r.components, c)
}

func (r *Runtime) Start(ctx context.Context) error {
	for i, c := range r.components {
		if err := c.Start(ctx); err != nil {
			_ = unwind(ctx, r.components[:i])
			return fmt.Errorf("start component %d: %w", i, err)
		}
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	return unwind(ctx, r.components)
}

func unwind(ctx context.Context, components []Component) error {
	var failures error
	for i := len(components) - 1; i >= 0; i-- {
		if err := components[i].Stop(ctx); err != nil {
			failures = errors.Join(failures, fmt.Errorf("stop component %d: %w", i, err))
		}
	}
	return failures
}
