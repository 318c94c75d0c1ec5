package led

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

// MaxPixels bounds the strip size a Builder accepts.
const MaxPixels = 1024

// Sequence is the symbols of one frame in emission order. A Sequence is
// transmitted once and then dropped.
type Sequence []Symbol

// Ticks is the total length of the sequence in peripheral ticks.
func (s Sequence) Ticks() int {
	n := 0
	for _, sym := range s {
		n += sym.Ticks()
	}
	return n
}

// Duration is the wire time of the sequence at res.
func (s Sequence) Duration(res physic.Frequency) time.Duration {
	hz := int64(res / physic.Hertz)
	if hz <= 0 {
		return 0
	}
	return tickDuration(int64(s.Ticks()), hz)
}

// Raster renders the sequence as a bit stream with one bit per tick, MSB
// first, high ticks as 1. The tail of the last byte is padded low.
func (s Sequence) Raster() []byte {
	out := make([]byte, (s.Ticks()+7)/8)
	pos := 0
	for _, sym := range s {
		for i := 0; i < int(sym.High); i++ {
			out[pos>>3] |= 0x80 >> uint(pos&7)
			pos++
		}
		pos += int(sym.Low)
	}
	return out
}

// Builder assembles whole-frame sequences for a strip of fixed size.
type Builder struct {
	size  int
	order Order
	enc   *Encoder
}

// NewBuilder returns a Builder for n pixels in the given wire order.
func NewBuilder(n int, order Order, enc *Encoder) (*Builder, error) {
	if n < 1 || n > MaxPixels {
		return nil, fmt.Errorf("%w: strip size %d outside 1..%d", ErrConfiguration, n, MaxPixels)
	}
	if len(order.Channels()) == 0 {
		return nil, fmt.Errorf("%w: empty color order", ErrConfiguration)
	}
	if enc == nil {
		return nil, fmt.Errorf("%w: nil encoder", ErrConfiguration)
	}
	return &Builder{size: n, order: order, enc: enc}, nil
}

// Size is the configured pixel count N.
func (b *Builder) Size() int { return b.size }

// Order is the configured wire order.
func (b *Builder) Order() Order { return b.order }

// Encoder is the bit encoder used by Build.
func (b *Builder) Encoder() *Encoder { return b.enc }

// Len is the symbol count of every frame: N × bits-per-pixel + 1 reset.
func (b *Builder) Len() int {
	return b.size*b.order.BitsPerPixel() + 1
}

// Check fails with ErrConfiguration when buf does not hold exactly N pixels.
func (b *Builder) Check(buf []Color) error {
	if len(buf) != b.size {
		return fmt.Errorf("%w: buffer has %d pixels, strip has %d", ErrConfiguration, len(buf), b.size)
	}
	return nil
}

// Build encodes buf into a new sequence. The result does not alias buf.
func (b *Builder) Build(buf []Color) (Sequence, error) {
	if err := b.Check(buf); err != nil {
		return nil, err
	}
	seq := make(Sequence, 0, b.Len())
	for _, c := range buf {
		for _, ch := range b.order.Channels() {
			seq = b.enc.Byte(seq, c.Value(ch))
		}
	}
	return append(seq, b.enc.Reset()), nil
}

// Decode is the inverse of Build. Every data symbol must be exactly the
// encoder's zero or one symbol and the frame must end with its reset.
func Decode(seq Sequence, enc *Encoder, order Order) ([]Color, error) {
	bpp := order.BitsPerPixel()
	if bpp == 0 || len(seq) == 0 || (len(seq)-1)%bpp != 0 {
		return nil, fmt.Errorf("%w: %d symbols is not a whole frame of %s pixels", ErrConfiguration, len(seq), order)
	}
	if seq[len(seq)-1] != enc.Reset() {
		return nil, fmt.Errorf("%w: frame does not end with a reset symbol", ErrConfiguration)
	}
	out := make([]Color, (len(seq)-1)/bpp)
	i := 0
	for p := range out {
		for _, ch := range order.Channels() {
			var v uint8
			for k := 0; k < BitsPerChannel; k++ {
				switch seq[i] {
				case enc.One():
					v = v<<1 | 1
				case enc.Zero():
					v <<= 1
				default:
					return nil, fmt.Errorf("%w: symbol %d (%d/%d ticks) is neither 0 nor 1", ErrConfiguration, i, seq[i].High, seq[i].Low)
				}
				i++
			}
			out[p].set(ch, v)
		}
	}
	return out, nil
}
