// Package patterns produces fixed self-test frames for checking wiring and
// channel order. It is not an effects engine.
package patterns

import (
	"context"
	"fmt"
	"time"

	"github.com/coreman2200/funtimes-nightstand/internal/layout"
	"github.com/coreman2200/funtimes-nightstand/internal/led"
)

type Kind string

const (
	None       Kind = ""
	IndexSweep Kind = "index_sweep"
	RGBTest    Kind = "rgb_channels"
	RowSweep   Kind = "row_sweep"
)

// Kinds lists the runnable patterns.
var Kinds = []Kind{IndexSweep, RGBTest, RowSweep}

func Parse(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return None, fmt.Errorf("unknown test pattern %q", s)
}

type Runner struct {
	kind Kind
	grid layout.Grid
	step int
}

func NewRunner(kind Kind, g layout.Grid) *Runner { return &Runner{kind: kind, grid: g} }

func (r *Runner) Kind() Kind { return r.kind }

// Step fills buf with the next frame; returns false when complete.
func (r *Runner) Step(buf []led.Color) bool {
	for i := range buf {
		buf[i] = led.Color{}
	}
	n := len(buf)
	switch r.kind {
	case IndexSweep:
		if r.step >= n {
			return false
		}
		buf[r.step] = led.RGB(255, 255, 255)
	case RGBTest:
		if r.step >= 3 {
			return false
		}
		c := [3]led.Color{led.RGB(255, 0, 0), led.RGB(0, 255, 0), led.RGB(0, 0, 255)}[r.step]
		for i := range buf {
			buf[i] = c
		}
	case RowSweep:
		if r.step >= r.grid.Height {
			return false
		}
		for x := 0; x < r.grid.Width; x++ {
			if i := r.grid.Index(x, r.step); i < n {
				buf[i] = led.RGB(0, 255, 255) // cyan
			}
		}
	default:
		return false
	}
	r.step++
	return true
}

// Updater is the LED task operation patterns are played through.
type Updater interface {
	Update(ctx context.Context, colors []led.Color) error
}

// Play runs kind to completion, holding each frame for hold, and clears the
// strip at the end.
func Play(ctx context.Context, u Updater, kind Kind, g layout.Grid, hold time.Duration) error {
	r := NewRunner(kind, g)
	buf := make([]led.Color, g.Count())
	for r.Step(buf) {
		if err := u.Update(ctx, buf); err != nil {
			return fmt.Errorf("%s step %d: %w", kind, r.step, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(hold):
		}
	}
	for i := range buf {
		buf[i] = led.Color{}
	}
	return u.Update(ctx, buf)
}
