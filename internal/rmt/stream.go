package rmt

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiostream"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-nightstand/internal/led"
)

// Stream drives a pin that can play a gpiostream.BitStream, one bit per tick.
type Stream struct {
	pin      gpiostream.PinOut
	res      physic.Frequency
	capacity int
	tx       inflight
}

// NewStream returns a channel on p. p must also implement
// gpiostream.PinOut.
func NewStream(p gpio.PinOut, res physic.Frequency, capacity int) (*Stream, error) {
	s, ok := p.(gpiostream.PinOut)
	if !ok {
		return nil, fmt.Errorf("%w: pin %s cannot stream", led.ErrConfiguration, p)
	}
	if res <= 0 {
		return nil, fmt.Errorf("%w: stream resolution must be positive", led.ErrConfiguration)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("stream: %s low: %w", p, err)
	}
	return &Stream{pin: s, res: res, capacity: capacity}, nil
}

func (s *Stream) Resolution() physic.Frequency { return s.res }
func (s *Stream) Capacity() int                { return s.capacity }

func (s *Stream) Start(seq led.Sequence) (<-chan error, error) {
	release, err := s.tx.begin()
	if err != nil {
		return nil, err
	}

	b := &gpiostream.BitStream{Bits: seq.Raster(), Freq: s.res}
	done := make(chan error, 1)
	go func() {
		err := s.pin.StreamOut(b)
		release()
		if err != nil {
			err = fmt.Errorf("stream %s: %w", s.pin, err)
		}
		done <- err
	}()
	return done, nil
}

// Reset waits for a stream still playing, then drives the pin low.
func (s *Stream) Reset() error {
	if err := s.tx.drain(DrainWait); err != nil {
		return err
	}
	if o, ok := s.pin.(gpio.PinOut); ok {
		return o.Out(gpio.Low)
	}
	return nil
}

func (s *Stream) Close() error {
	return s.pin.Halt()
}
