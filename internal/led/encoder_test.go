package led_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-nightstand/internal/led"
)

var resolutions = []physic.Frequency{
	10 * physic.MegaHertz,
	20 * physic.MegaHertz,
	40 * physic.MegaHertz,
	80 * physic.MegaHertz,
}

func TestEncoderBitsWithinTolerance(t *testing.T) {
	for _, res := range resolutions {
		t.Run(res.String(), func(t *testing.T) {
			enc, err := led.NewEncoder(led.WS2812(), res)
			require.NoError(t, err)
			for _, bit := range []uint8{0, 1} {
				assert.True(t, enc.Within(enc.Bit(bit), bit), "bit %d: %+v", bit, enc.Bit(bit))
			}
			assert.NotEqual(t, enc.Zero(), enc.One())
			assert.Zero(t, enc.Reset().High)
			assert.True(t, led.Sequence{enc.Reset()}.Duration(res) >= led.WS2812().Reset)
		})
	}
}

func TestEncoderTicksAt10MHz(t *testing.T) {
	enc, err := led.NewEncoder(led.WS2812(), 10*physic.MegaHertz)
	require.NoError(t, err)
	assert.Equal(t, led.Symbol{High: 4, Low: 8}, enc.Zero())
	assert.Equal(t, led.Symbol{High: 7, Low: 6}, enc.One())
	assert.Equal(t, led.Symbol{Low: 3000}, enc.Reset())
	assert.Equal(t, 1300*time.Nanosecond, enc.BitTime())
}

func TestEncoderByteMSBFirst(t *testing.T) {
	enc, err := led.NewEncoder(led.WS2812(), 10*physic.MegaHertz)
	require.NoError(t, err)
	seq := enc.Byte(nil, 0xA5)
	require.Len(t, seq, 8)
	want := []uint8{1, 0, 1, 0, 0, 1, 0, 1}
	for i, bit := range want {
		assert.Equal(t, enc.Bit(bit), seq[i], "bit %d", i)
	}
}

func TestEncoderRejects(t *testing.T) {
	coarse := led.WS2812()
	tooLong := led.WS2812()
	tooLong.Reset = time.Second
	same := led.WS2812()
	same.T1H, same.T1L = same.T0H, same.T0L

	tests := []struct {
		name   string
		timing led.Timing
		res    physic.Frequency
	}{
		{"zero resolution", coarse, 0},
		{"clock too coarse for tolerance", coarse, 1 * physic.MegaHertz},
		{"reset overflows ticks", tooLong, 80 * physic.MegaHertz},
		{"indistinct bits", same, 10 * physic.MegaHertz},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := led.NewEncoder(tt.timing, tt.res)
			assert.ErrorIs(t, err, led.ErrConfiguration)
		})
	}
}

func TestParseOrder(t *testing.T) {
	for _, s := range []string{"GRB", "rgb", "BRG", "GRBW", "WRGB"} {
		o, err := led.ParseOrder(s)
		require.NoError(t, err, s)
		assert.Len(t, o.Channels(), len(s))
	}
	for _, s := range []string{"", "RG", "RRB", "RGX", "RGW", "RGBWW"} {
		_, err := led.ParseOrder(s)
		assert.ErrorIs(t, err, led.ErrConfiguration, s)
	}
	assert.Equal(t, "GRB", led.GRB.String())
	assert.Equal(t, 24, led.GRB.BitsPerPixel())
	assert.Equal(t, 32, led.MustParseOrder("GRBW").BitsPerPixel())
}
