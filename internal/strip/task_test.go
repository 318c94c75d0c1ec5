package strip_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-nightstand/internal/led"
	"github.com/coreman2200/funtimes-nightstand/internal/rmt"
	"github.com/coreman2200/funtimes-nightstand/internal/strip"
)

const res = 10 * physic.MegaHertz

type fixture struct {
	sim     *rmt.Sim
	task    *strip.Task
	builder *led.Builder
	cancel  context.CancelFunc
	exited  chan error
}

func start(t *testing.T, n int, sim *rmt.Sim, margin time.Duration) *fixture {
	t.Helper()
	enc, err := led.NewEncoder(led.WS2812(), res)
	require.NoError(t, err)
	b, err := led.NewBuilder(n, led.GRB, enc)
	require.NoError(t, err)
	task := strip.New(b, rmt.NewTransmitter(sim, rmt.WithMargin(margin)))

	ctx, cancel := context.WithCancel(context.Background())
	f := &fixture{sim: sim, task: task, builder: b, cancel: cancel, exited: make(chan error, 1)}
	go func() { f.exited <- task.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		sim.Complete(nil)
		<-f.exited
	})
	return f
}

func (f *fixture) lastSent(t *testing.T) []led.Color {
	t.Helper()
	got, err := led.Decode(f.sim.Last(), f.builder.Encoder(), f.builder.Order())
	require.NoError(t, err)
	return got
}

func solid(n int, c led.Color) []led.Color {
	out := make([]led.Color, n)
	for i := range out {
		out[i] = c
	}
	return out
}

func TestUpdateSendsFrame(t *testing.T) {
	f := start(t, 3, rmt.NewSim(res, 0), time.Millisecond)
	frame := []led.Color{led.RGB(255, 0, 0), led.RGB(0, 255, 0), led.RGB(0, 0, 255)}

	require.NoError(t, f.task.Update(context.Background(), frame))
	assert.Equal(t, frame, f.lastSent(t))
	assert.Equal(t, frame, f.task.LastFrame())
	assert.Equal(t, uint64(1), f.task.Stats().Sent)
	assert.Equal(t, strip.Idle, f.task.State())
}

func TestUpdateLengthMismatch(t *testing.T) {
	f := start(t, 5, rmt.NewSim(res, 0), time.Millisecond)

	err := f.task.Update(context.Background(), make([]led.Color, 4))
	assert.ErrorIs(t, err, led.ErrConfiguration)
	assert.Zero(t, f.sim.Starts())
}

func TestSubmitCopiesBuffer(t *testing.T) {
	f := start(t, 2, rmt.NewSim(res, 0), time.Millisecond)
	frame := solid(2, led.RGB(10, 20, 30))

	done, err := f.task.Submit(frame)
	require.NoError(t, err)
	frame[0] = led.RGB(255, 255, 255)
	require.NoError(t, <-done)
	assert.Equal(t, solid(2, led.RGB(10, 20, 30)), f.lastSent(t))
}

func TestPendingFramesCoalesce(t *testing.T) {
	f := start(t, 1, rmt.NewSim(res, 0).Manual(), time.Second)

	a, err := f.task.Submit(solid(1, led.RGB(1, 0, 0)))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.sim.Starts() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, strip.Transmitting, f.task.State())

	b, err := f.task.Submit(solid(1, led.RGB(2, 0, 0)))
	require.NoError(t, err)
	c, err := f.task.Submit(solid(1, led.RGB(3, 0, 0)))
	require.NoError(t, err)
	assert.ErrorIs(t, <-b, strip.ErrSuperseded)

	// The in-flight frame is never aborted by newer requests.
	assert.Equal(t, 1, f.sim.Starts())
	require.True(t, f.sim.Complete(nil))
	require.NoError(t, <-a)

	require.Eventually(t, func() bool { return f.sim.Starts() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, solid(1, led.RGB(3, 0, 0)), f.lastSent(t))
	require.True(t, f.sim.Complete(nil))
	require.NoError(t, <-c)

	st := f.task.Stats()
	assert.Equal(t, uint64(2), st.Sent)
	assert.Equal(t, uint64(1), st.Superseded)
}

func TestTimeoutSelfHeals(t *testing.T) {
	sim := rmt.NewSim(res, 0)
	sim.Hang(true)
	f := start(t, 2, sim, 2*time.Millisecond)

	err := f.task.Update(context.Background(), solid(2, led.RGB(5, 5, 5)))
	assert.ErrorIs(t, err, led.ErrTimeout)
	assert.Equal(t, strip.Idle, f.task.State())
	assert.Nil(t, f.task.LastFrame())
	assert.Equal(t, 1, sim.Resets())

	sim.Hang(false)
	require.NoError(t, f.task.Update(context.Background(), solid(2, led.RGB(6, 6, 6))))
	st := f.task.Stats()
	assert.Equal(t, uint64(1), st.Failed)
	assert.Equal(t, uint64(1), st.Sent)
	assert.NotEmpty(t, st.LastError)
}

func TestStopFailsPendingFrame(t *testing.T) {
	f := start(t, 1, rmt.NewSim(res, 0).Manual(), time.Second)

	a, err := f.task.Submit(solid(1, led.RGB(1, 1, 1)))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.sim.Starts() == 1 }, time.Second, time.Millisecond)
	b, err := f.task.Submit(solid(1, led.RGB(2, 2, 2)))
	require.NoError(t, err)

	f.cancel()
	require.True(t, f.sim.Complete(nil))
	require.NoError(t, <-a, "in-flight frame finishes")
	assert.ErrorIs(t, <-b, context.Canceled)
	require.NoError(t, <-f.exited)
	f.exited <- nil // let Cleanup drain

	_, err = f.task.Submit(solid(1, led.Color{}))
	assert.ErrorIs(t, err, strip.ErrStopped)
	assert.Equal(t, 1, f.sim.Starts())
}
