package patterns

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-nightstand/internal/layout"
	"github.com/coreman2200/funtimes-nightstand/internal/led"
)

type recorder struct {
	mu     sync.Mutex
	frames [][]led.Color
}

func (r *recorder) Update(_ context.Context, colors []led.Color) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, append([]led.Color(nil), colors...))
	return nil
}

func TestParse(t *testing.T) {
	k, err := Parse("row_sweep")
	require.NoError(t, err)
	assert.Equal(t, RowSweep, k)

	_, err = Parse("plasma")
	assert.Error(t, err)
}

func TestIndexSweep(t *testing.T) {
	r := NewRunner(IndexSweep, layout.Linear(3))
	buf := make([]led.Color, 3)
	for i := 0; i < 3; i++ {
		require.True(t, r.Step(buf))
		for j, c := range buf {
			if j == i {
				assert.Equal(t, led.RGB(255, 255, 255), c)
			} else {
				assert.Equal(t, led.Color{}, c)
			}
		}
	}
	assert.False(t, r.Step(buf))
}

func TestRowSweepSerpentine(t *testing.T) {
	g := layout.Grid{Width: 2, Height: 2, Serpentine: true}
	r := NewRunner(RowSweep, g)
	buf := make([]led.Color, 4)

	require.True(t, r.Step(buf))
	assert.Equal(t, []led.Color{led.RGB(0, 255, 255), led.RGB(0, 255, 255), {}, {}}, buf)
	require.True(t, r.Step(buf))
	assert.Equal(t, []led.Color{{}, {}, led.RGB(0, 255, 255), led.RGB(0, 255, 255)}, buf)
	assert.False(t, r.Step(buf))
}

func TestPlayClearsAtEnd(t *testing.T) {
	rec := &recorder{}
	err := Play(context.Background(), rec, RGBTest, layout.Linear(2), time.Millisecond)
	require.NoError(t, err)

	require.Len(t, rec.frames, 4)
	assert.Equal(t, led.RGB(255, 0, 0), rec.frames[0][1])
	assert.Equal(t, led.RGB(0, 255, 0), rec.frames[1][0])
	assert.Equal(t, led.RGB(0, 0, 255), rec.frames[2][0])
	assert.Equal(t, []led.Color{{}, {}}, rec.frames[3])
}

func TestPlayCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Play(ctx, &recorder{}, IndexSweep, layout.Linear(4), time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
