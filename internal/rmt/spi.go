package rmt

import (
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/coreman2200/funtimes-nightstand/internal/led"
)

// SPI emulates a pulse channel on an SPI MOSI line: the port is clocked at
// the symbol resolution and every tick becomes one bit.
type SPI struct {
	port     spi.Port
	conn     spi.Conn
	res      physic.Frequency
	capacity int
	tx       inflight
}

// NewSPI connects port at res. Mode 0 keeps MOSI low between words.
func NewSPI(port spi.Port, res physic.Frequency, capacity int) (*SPI, error) {
	if res <= 0 {
		return nil, fmt.Errorf("%w: spi resolution must be positive", led.ErrConfiguration)
	}
	c, err := port.Connect(res, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("spi connect: %w", err)
	}
	return &SPI{port: port, conn: c, res: res, capacity: capacity}, nil
}

func (s *SPI) Resolution() physic.Frequency { return s.res }
func (s *SPI) Capacity() int                { return s.capacity }

func (s *SPI) String() string {
	return fmt.Sprintf("spi{%s}", s.conn)
}

func (s *SPI) Start(seq led.Sequence) (<-chan error, error) {
	bits := seq.Raster()
	if l, ok := s.conn.(conn.Limits); ok {
		if m := l.MaxTxSize(); m > 0 && len(bits) > m {
			return nil, fmt.Errorf("%w: %d bytes on the wire, spi transfers at most %d", led.ErrOverflow, len(bits), m)
		}
	}
	release, err := s.tx.begin()
	if err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		err := s.conn.Tx(bits, nil)
		release()
		if err != nil {
			err = fmt.Errorf("spi write: %w", err)
		}
		done <- err
	}()
	return done, nil
}

// Reset cannot abort a transfer already queued to the kernel; it waits for
// it to finish so the next frame never overlaps it.
func (s *SPI) Reset() error {
	return s.tx.drain(DrainWait)
}

func (s *SPI) Close() error {
	if c, ok := s.port.(spi.PortCloser); ok {
		return c.Close()
	}
	return nil
}
