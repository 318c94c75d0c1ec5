package rmt_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-nightstand/internal/led"
	"github.com/coreman2200/funtimes-nightstand/internal/rmt"
)

const res = 10 * physic.MegaHertz

func build(t *testing.T, pixels ...led.Color) led.Sequence {
	t.Helper()
	enc, err := led.NewEncoder(led.WS2812(), res)
	require.NoError(t, err)
	b, err := led.NewBuilder(len(pixels), led.GRB, enc)
	require.NoError(t, err)
	seq, err := b.Build(pixels)
	require.NoError(t, err)
	return seq
}

func TestTransmitBlackPixel(t *testing.T) {
	sim := rmt.NewSim(res, 0)
	tx := rmt.NewTransmitter(sim, rmt.WithMargin(time.Millisecond))
	seq := build(t, led.Color{})
	require.Len(t, seq, 25)

	// 24 × (T0H+T0L) + reset + margin.
	assert.Equal(t, 24*1200*time.Nanosecond+300*time.Microsecond+time.Millisecond, tx.Timeout(seq))

	start := time.Now()
	require.NoError(t, tx.Transmit(context.Background(), seq))
	assert.True(t, time.Since(start) >= seq.Duration(res), "returned before the wire time elapsed")
	assert.Equal(t, 1, sim.Starts())
	assert.Equal(t, seq, sim.Last())
	assert.False(t, tx.Busy())
}

func TestTransmitBusy(t *testing.T) {
	sim := rmt.NewSim(res, 0).Manual()
	tx := rmt.NewTransmitter(sim, rmt.WithMargin(time.Second))
	seq := build(t, led.RGB(1, 2, 3))

	first := make(chan error, 1)
	go func() { first <- tx.Transmit(context.Background(), seq) }()
	require.Eventually(t, func() bool { return sim.Starts() == 1 }, time.Second, time.Millisecond)
	assert.True(t, tx.Busy())

	err := tx.Transmit(context.Background(), seq)
	assert.ErrorIs(t, err, led.ErrBusy)
	assert.Equal(t, 1, sim.Starts(), "busy transmit must not reach the channel")

	require.True(t, sim.Complete(nil))
	require.NoError(t, <-first)
	assert.False(t, tx.Busy())
}

func TestTransmitTimeoutResetsChannel(t *testing.T) {
	sim := rmt.NewSim(res, 0)
	sim.Hang(true)
	tx := rmt.NewTransmitter(sim, rmt.WithMargin(2*time.Millisecond))
	seq := build(t, led.Color{})

	err := tx.Transmit(context.Background(), seq)
	assert.ErrorIs(t, err, led.ErrTimeout)
	assert.Equal(t, 1, sim.Resets())
	assert.Equal(t, uint64(1), tx.Resets())
	assert.False(t, tx.Busy())

	// The channel is usable again after the reset.
	sim.Hang(false)
	require.NoError(t, tx.Transmit(context.Background(), seq))
	assert.Equal(t, 2, sim.Starts())
}

func TestTransmitOverflow(t *testing.T) {
	sim := rmt.NewSim(res, 48)
	tx := rmt.NewTransmitter(sim)
	seq := build(t, led.Color{}, led.Color{}, led.Color{})

	err := tx.Transmit(context.Background(), seq)
	assert.ErrorIs(t, err, led.ErrOverflow)
	assert.Zero(t, sim.Starts())
	assert.False(t, tx.Busy())
}

func TestTransmitHardwareError(t *testing.T) {
	sim := rmt.NewSim(res, 0)
	boom := errors.New("boom")
	sim.Fail(boom)
	tx := rmt.NewTransmitter(sim)

	err := tx.Transmit(context.Background(), build(t, led.Color{}))
	assert.ErrorIs(t, err, boom)
	assert.False(t, tx.Busy())
}

func TestTransmitCanceledBeforeStart(t *testing.T) {
	sim := rmt.NewSim(res, 0)
	tx := rmt.NewTransmitter(sim)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tx.Transmit(ctx, build(t, led.Color{}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sim.Starts())
}
