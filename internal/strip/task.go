// Package strip runs the LED task: it takes color buffers from any number of
// producers and sends them to the strip one at a time.
package strip

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-nightstand/internal/led"
	"github.com/coreman2200/funtimes-nightstand/internal/rmt"
)

// ErrSuperseded is reported for a queued frame replaced by a newer one
// before it could be sent.
var ErrSuperseded = errors.New("strip: frame superseded")

// ErrStopped is reported for submissions after Run returned.
var ErrStopped = errors.New("strip: task stopped")

type State int

const (
	Idle State = iota
	Transmitting
)

func (s State) String() string {
	if s == Transmitting {
		return "transmitting"
	}
	return "idle"
}

// Transmitter is the part of rmt.Transmitter the task uses.
type Transmitter interface {
	Transmit(ctx context.Context, seq led.Sequence) error
}

var _ Transmitter = (*rmt.Transmitter)(nil)

// Stats counts frame outcomes since start.
type Stats struct {
	Sent       uint64    `json:"sent"`
	Failed     uint64    `json:"failed"`
	Superseded uint64    `json:"superseded"`
	LastError  string    `json:"last_error,omitempty"`
	LastSent   time.Time `json:"last_sent"`
}

type request struct {
	colors []led.Color
	done   chan error
}

// Task owns the builder and the transmitter. Frames are built and sent
// strictly one after another; at most one frame waits behind the one in
// flight.
type Task struct {
	builder *led.Builder
	tx      Transmitter
	log     zerolog.Logger

	wake chan struct{}

	mu      sync.Mutex
	pending *request
	state   State
	stopped bool
	last    []led.Color
	stats   Stats
}

type Option func(*Task)

func WithLogger(l zerolog.Logger) Option {
	return func(t *Task) { t.log = l }
}

// New returns a task sending frames built by b through tx.
func New(b *led.Builder, tx Transmitter, opts ...Option) *Task {
	t := &Task{
		builder: b,
		tx:      tx,
		log:     log.With().Str("component", "strip").Logger(),
		wake:    make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Size is the strip length N.
func (t *Task) Size() int { return t.builder.Size() }

// Submit queues a copy of colors and returns without waiting. The returned
// channel receives the outcome of this frame: nil once it is on the strip,
// ErrSuperseded if a newer frame replaced it, or the transmit error.
// A length mismatch fails here with led.ErrConfiguration.
func (t *Task) Submit(colors []led.Color) (<-chan error, error) {
	if err := t.builder.Check(colors); err != nil {
		return nil, err
	}
	req := &request{
		colors: append([]led.Color(nil), colors...),
		done:   make(chan error, 1),
	}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil, ErrStopped
	}
	old := t.pending
	t.pending = req
	if old != nil {
		t.stats.Superseded++
	}
	t.mu.Unlock()

	if old != nil {
		old.done <- ErrSuperseded
	}
	select {
	case t.wake <- struct{}{}:
	default:
	}
	return req.done, nil
}

// Update submits colors and waits for the outcome.
func (t *Task) Update(ctx context.Context, colors []led.Color) error {
	done, err := t.Submit(colors)
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes frames until ctx is done. A frame in flight is always
// allowed to finish.
func (t *Task) Run(ctx context.Context) error {
	t.log.Info().Int("pixels", t.builder.Size()).Str("order", t.builder.Order().String()).Msg("led task started")
	defer t.stop(ctx)
	for {
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.wake:
		}
		t.mu.Lock()
		req := t.pending
		t.pending = nil
		if req != nil {
			t.state = Transmitting
		}
		t.mu.Unlock()
		if req == nil {
			continue
		}
		// The frame is committed; only the transmitter's timeout bounds it.
		err := t.send(context.WithoutCancel(ctx), req.colors)
		req.done <- err
	}
}

func (t *Task) send(ctx context.Context, colors []led.Color) error {
	seq, err := t.builder.Build(colors)
	if err == nil {
		err = t.tx.Transmit(ctx, seq)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Idle
	if err != nil {
		t.stats.Failed++
		t.stats.LastError = err.Error()
		t.log.Error().Err(err).Bool("retryable", led.Retryable(err)).Msg("frame failed; strip keeps last good frame")
		return err
	}
	t.stats.Sent++
	t.stats.LastSent = time.Now()
	t.last = colors
	t.log.Debug().Uint64("frame", t.stats.Sent).Int("symbols", len(seq)).Msg("frame on strip")
	return nil
}

func (t *Task) stop(ctx context.Context) {
	t.mu.Lock()
	t.stopped = true
	req := t.pending
	t.pending = nil
	t.mu.Unlock()
	if req != nil {
		err := ctx.Err()
		if err == nil {
			err = ErrStopped
		}
		req.done <- err
	}
	t.log.Info().Msg("led task stopped")
}

// State reports whether a frame is in flight.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// LastFrame is a copy of the last frame that reached the strip, nil if none.
func (t *Task) LastFrame() []led.Color {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return nil
	}
	return append([]led.Color(nil), t.last...)
}
