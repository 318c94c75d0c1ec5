package led

import (
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/physic"
)

// BitsPerChannel is fixed by the protocol.
const BitsPerChannel = 8

// Timing is the nominal pulse table of one strip family.
type Timing struct {
	T0H, T0L  time.Duration
	T1H, T1L  time.Duration
	Reset     time.Duration // low latch period ending a frame
	Tolerance time.Duration // allowed error on each high or low period
}

// WS2812 returns the WS2812/WS2812B table. The reset period covers the 280µs
// latch of newer WS2812B parts.
func WS2812() Timing {
	return Timing{
		T0H:       350 * time.Nanosecond,
		T0L:       800 * time.Nanosecond,
		T1H:       700 * time.Nanosecond,
		T1L:       600 * time.Nanosecond,
		Reset:     300 * time.Microsecond,
		Tolerance: 150 * time.Nanosecond,
	}
}

// Symbol is one pulse: High ticks at high level followed by Low ticks at low
// level, in peripheral clock ticks.
type Symbol struct {
	High uint16
	Low  uint16
}

// Ticks is the total length of the pulse.
func (s Symbol) Ticks() int {
	return int(s.High) + int(s.Low)
}

// Encoder maps bits to symbols for one timing table at one resolution.
type Encoder struct {
	timing Timing
	res    physic.Frequency
	zero   Symbol
	one    Symbol
	reset  Symbol
}

// NewEncoder converts t into ticks of res. The clock must be fine enough for
// every realized period to fall within t.Tolerance of nominal.
func NewEncoder(t Timing, res physic.Frequency) (*Encoder, error) {
	hz := int64(res / physic.Hertz)
	if hz <= 0 {
		return nil, fmt.Errorf("%w: resolution %s is below 1Hz", ErrConfiguration, res)
	}
	e := &Encoder{timing: t, res: res}
	var err error
	conv := func(name string, d time.Duration, tolerant bool) uint16 {
		if err != nil {
			return 0
		}
		var n int64
		if n, err = ticks(d, hz); err != nil {
			err = fmt.Errorf("%w: %s=%s at %s: %v", ErrConfiguration, name, d, res, err)
			return 0
		}
		if tolerant {
			if diff := tickDuration(n, hz) - d; diff > t.Tolerance || -diff > t.Tolerance {
				err = fmt.Errorf("%w: %s=%s realized as %s at %s, outside ±%s", ErrConfiguration, name, d, tickDuration(n, hz), res, t.Tolerance)
				return 0
			}
		}
		return uint16(n)
	}
	e.zero = Symbol{High: conv("T0H", t.T0H, true), Low: conv("T0L", t.T0L, true)}
	e.one = Symbol{High: conv("T1H", t.T1H, true), Low: conv("T1L", t.T1L, true)}
	e.reset = Symbol{Low: conv("reset", t.Reset, false)}
	if err != nil {
		return nil, err
	}
	if tickDuration(int64(e.reset.Low), hz) < t.Reset {
		// Never round the latch below its minimum.
		if e.reset.Low == math.MaxUint16 {
			return nil, fmt.Errorf("%w: reset=%s does not fit at %s", ErrConfiguration, t.Reset, res)
		}
		e.reset.Low++
	}
	if e.zero == e.one {
		return nil, fmt.Errorf("%w: resolution %s cannot tell 0 from 1", ErrConfiguration, res)
	}
	return e, nil
}

func ticks(d time.Duration, hz int64) (int64, error) {
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	n := (d.Nanoseconds()*hz + int64(time.Second)/2) / int64(time.Second)
	if n < 1 {
		return 0, fmt.Errorf("shorter than one tick")
	}
	if n > math.MaxUint16 {
		return 0, fmt.Errorf("%d ticks overflow the symbol field", n)
	}
	return n, nil
}

func tickDuration(n, hz int64) time.Duration {
	return time.Duration(n * int64(time.Second) / hz)
}

// Resolution is the peripheral clock the symbols are expressed in.
func (e *Encoder) Resolution() physic.Frequency { return e.res }

// Timing returns the table the encoder was built from.
func (e *Encoder) Timing() Timing { return e.timing }

func (e *Encoder) Zero() Symbol  { return e.zero }
func (e *Encoder) One() Symbol   { return e.one }
func (e *Encoder) Reset() Symbol { return e.reset }

// Bit returns the symbol for bit. Any non-zero value encodes a one.
func (e *Encoder) Bit(bit uint8) Symbol {
	if bit != 0 {
		return e.one
	}
	return e.zero
}

// Byte appends the eight symbols of b, most significant bit first.
func (e *Encoder) Byte(dst Sequence, b uint8) Sequence {
	for i := BitsPerChannel - 1; i >= 0; i-- {
		dst = append(dst, e.Bit((b>>uint(i))&1))
	}
	return dst
}

// BitTime is the longer of the two bit periods.
func (e *Encoder) BitTime() time.Duration {
	n := e.zero.Ticks()
	if m := e.one.Ticks(); m > n {
		n = m
	}
	return tickDuration(int64(n), int64(e.res/physic.Hertz))
}

// Within reports whether s realizes bit within the tolerance of the table.
func (e *Encoder) Within(s Symbol, bit uint8) bool {
	hz := int64(e.res / physic.Hertz)
	h, l := e.timing.T0H, e.timing.T0L
	if bit != 0 {
		h, l = e.timing.T1H, e.timing.T1L
	}
	near := func(n uint16, d time.Duration) bool {
		diff := tickDuration(int64(n), hz) - d
		return diff <= e.timing.Tolerance && -diff <= e.timing.Tolerance
	}
	return near(s.High, h) && near(s.Low, l)
}
