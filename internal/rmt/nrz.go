package rmt

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/nrzled"

	"github.com/coreman2200/funtimes-nightstand/internal/led"
)

// NRZ is a fallback for SPI ports that cannot be clocked at the symbol
// resolution. It decodes each sequence back to pixels and lets nrzled do its
// own 3-bit NRZ expansion at a lower SPI rate.
type NRZ struct {
	dev   *nrzled.Dev
	enc   *led.Encoder
	order led.Order
	tx    inflight
}

// NewNRZ opens an nrzled device on port for n pixels. enc and order must be
// the ones the sequences are built with. nrzled's SPI path only emits three
// channels, so four-channel orders are rejected.
func NewNRZ(port spi.Port, n int, enc *led.Encoder, order led.Order, freq physic.Frequency) (*NRZ, error) {
	if len(order.Channels()) != 3 {
		return nil, fmt.Errorf("%w: nrz driver supports three-channel orders only, got %s", led.ErrConfiguration, order)
	}
	if freq == 0 {
		freq = 2500 * physic.KiloHertz
	}
	d, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: n,
		Channels:  len(order.Channels()),
		Freq:      freq,
	})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	return &NRZ{dev: d, enc: enc, order: order}, nil
}

func (z *NRZ) Resolution() physic.Frequency { return z.enc.Resolution() }
func (z *NRZ) Capacity() int                { return 0 }

func (z *NRZ) String() string { return z.dev.String() }

func (z *NRZ) Start(seq led.Sequence) (<-chan error, error) {
	pixels, err := led.Decode(seq, z.enc, z.order)
	if err != nil {
		return nil, err
	}
	raw := pack(pixels, z.order)

	release, err := z.tx.begin()
	if err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		_, err := z.dev.Write(raw)
		release()
		done <- err
	}()
	return done, nil
}

// nrzled takes R,G,B input bytes and puts them on the wire as G,R,B. pack
// fills those input slots so the wire carries order's channels instead.
func pack(pixels []led.Color, order led.Order) []byte {
	ch := order.Channels()
	out := make([]byte, 0, len(pixels)*3)
	for _, c := range pixels {
		out = append(out, c.Value(ch[1]), c.Value(ch[0]), c.Value(ch[2]))
	}
	return out
}

// Reset waits for a write still in flight; nrzled cannot abort one.
func (z *NRZ) Reset() error {
	return z.tx.drain(DrainWait)
}

func (z *NRZ) Close() error {
	return z.dev.Halt()
}
