package rmt

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-nightstand/internal/led"
)

// DefaultMargin is added to the wire time of a sequence to bound the wait for
// completion.
const DefaultMargin = 5 * time.Millisecond

const (
	idle int32 = iota
	transmitting
)

// Transmitter is the single owner of a Channel.
type Transmitter struct {
	ch     Channel
	margin time.Duration
	log    zerolog.Logger
	state  atomic.Int32
	resets atomic.Uint64
}

type Option func(*Transmitter)

// WithMargin overrides DefaultMargin.
func WithMargin(d time.Duration) Option {
	return func(t *Transmitter) {
		if d > 0 {
			t.margin = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(t *Transmitter) { t.log = l }
}

// NewTransmitter takes ownership of ch.
func NewTransmitter(ch Channel, opts ...Option) *Transmitter {
	t := &Transmitter{
		ch:     ch,
		margin: DefaultMargin,
		log:    log.With().Str("component", "rmt").Logger(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Busy reports whether a transmission is in flight.
func (t *Transmitter) Busy() bool {
	return t.state.Load() == transmitting
}

// Resets counts channel resets after timeouts.
func (t *Transmitter) Resets() uint64 {
	return t.resets.Load()
}

// Timeout is how long Transmit waits for seq to complete.
func (t *Transmitter) Timeout(seq led.Sequence) time.Duration {
	return seq.Duration(t.ch.Resolution()) + t.margin
}

// Transmit sends seq and waits until the channel reports completion.
//
// ctx is only checked before the transmission starts. Once started, a frame
// is never abandoned part way; the wait is bounded by Timeout instead.
// Transmit does not retry.
func (t *Transmitter) Transmit(ctx context.Context, seq led.Sequence) error {
	if c := t.ch.Capacity(); c > 0 && len(seq) > c {
		return fmt.Errorf("%w: %d symbols, channel holds %d", led.ErrOverflow, len(seq), c)
	}
	if !t.state.CompareAndSwap(idle, transmitting) {
		return led.ErrBusy
	}
	defer t.state.Store(idle)

	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := t.Timeout(seq)
	start := time.Now()
	done, err := t.ch.Start(seq)
	if err != nil {
		return fmt.Errorf("rmt: start: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("rmt: transmit: %w", err)
		}
		t.log.Trace().Int("symbols", len(seq)).Dur("took", time.Since(start)).Msg("frame sent")
		return nil
	case <-timer.C:
		t.resets.Add(1)
		if rerr := t.ch.Reset(); rerr != nil {
			t.log.Error().Err(rerr).Msg("channel reset failed")
		}
		t.log.Warn().Int("symbols", len(seq)).Dur("timeout", timeout).Msg("no completion from channel; reset")
		return fmt.Errorf("%w after %s", led.ErrTimeout, timeout)
	}
}

// Close releases the channel.
func (t *Transmitter) Close() error {
	return t.ch.Close()
}
