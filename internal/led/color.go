package led

import (
	"fmt"
	"strings"
)

// Color is one pixel. W is only emitted for four-channel orders.
type Color struct {
	R, G, B, W uint8
}

// RGB is a convenience constructor for three-channel pixels.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// Channel identifies one color component.
type Channel byte

const (
	Red   Channel = 'R'
	Green Channel = 'G'
	Blue  Channel = 'B'
	White Channel = 'W'
)

// Value returns the magnitude of ch in c.
func (c Color) Value(ch Channel) uint8 {
	switch ch {
	case Red:
		return c.R
	case Green:
		return c.G
	case Blue:
		return c.B
	case White:
		return c.W
	}
	return 0
}

func (c *Color) set(ch Channel, v uint8) {
	switch ch {
	case Red:
		c.R = v
	case Green:
		c.G = v
	case Blue:
		c.B = v
	case White:
		c.W = v
	}
}

// Order is the wire order of channels for one pixel, e.g. GRB for WS2812.
type Order struct {
	ch []Channel
}

// GRB is the WS2812 wire order.
var GRB = MustParseOrder("GRB")

// ParseOrder accepts a permutation of RGB or RGBW such as "GRB" or "GRBW".
func ParseOrder(s string) (Order, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 && len(s) != 4 {
		return Order{}, fmt.Errorf("%w: color order %q must have 3 or 4 channels", ErrConfiguration, s)
	}
	seen := map[Channel]bool{}
	o := Order{ch: make([]Channel, 0, len(s))}
	for i := 0; i < len(s); i++ {
		ch := Channel(s[i])
		switch ch {
		case Red, Green, Blue, White:
		default:
			return Order{}, fmt.Errorf("%w: color order %q has unknown channel %q", ErrConfiguration, s, s[i])
		}
		if seen[ch] {
			return Order{}, fmt.Errorf("%w: color order %q repeats channel %q", ErrConfiguration, s, s[i])
		}
		seen[ch] = true
		o.ch = append(o.ch, ch)
	}
	if len(s) == 3 && seen[White] {
		return Order{}, fmt.Errorf("%w: color order %q needs red, green and blue", ErrConfiguration, s)
	}
	return o, nil
}

// MustParseOrder is ParseOrder for constants.
func MustParseOrder(s string) Order {
	o, err := ParseOrder(s)
	if err != nil {
		panic(err)
	}
	return o
}

// Channels returns the channels in emission order.
func (o Order) Channels() []Channel {
	return o.ch
}

// BitsPerPixel is 8 per channel.
func (o Order) BitsPerPixel() int {
	return len(o.ch) * BitsPerChannel
}

func (o Order) String() string {
	b := make([]byte, len(o.ch))
	for i, ch := range o.ch {
		b[i] = byte(ch)
	}
	return string(b)
}
