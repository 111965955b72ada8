package menu

import (
	"context"
	"errors"
	"time"
)

// View displays menu frames. Close removes or disables the display and is
// always called once Run returns.
type View interface {
	Render(ctx context.Context, f Frame) error
	Close() error
}

// Source yields the next input for a menu. It must return ctx.Err() when
// ctx ends before an input arrives.
type Source interface {
	Next(ctx context.Context) (Input, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Input, error)

func (f SourceFunc) Next(ctx context.Context) (Input, error) { return f(ctx) }

type Result struct {
	Selected  []int
	Cancelled bool
	// TimedOut is set together with Cancelled when no input arrived in time.
	TimedOut bool
}

// Run drives m until it closes. Each wait for input gets its own deadline
// of timeout; timeout <= 0 waits for ctx alone. An expired wait is a
// Timeout input. Cancellation of ctx itself is returned as an error.
func Run(ctx context.Context, m *Menu, view View, src Source, timeout time.Duration) (Result, error) {
	defer view.Close()

	if err := view.Render(ctx, m.Render()); err != nil {
		return Result{}, err
	}
	for {
		in, err := next(ctx, src, timeout)
		if err != nil {
			return Result{}, err
		}
		before := m.Revision()
		switch m.Apply(in) {
		case Finished:
			return Result{Selected: m.Selected()}, nil
		case Cancelled:
			return Result{Cancelled: true}, nil
		case TimedOut:
			return Result{Cancelled: true, TimedOut: true}, nil
		}
		if m.Revision() == before {
			continue
		}
		if err := view.Render(ctx, m.Render()); err != nil {
			return Result{}, err
		}
	}
}

func next(ctx context.Context, src Source, timeout time.Duration) (Input, error) {
	waitCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	in, err := src.Next(waitCtx)
	if err == nil {
		return in, nil
	}
	if ctx.Err() != nil {
		return Input{}, ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Input{Kind: Timeout}, nil
	}
	return Input{}, err
}
