package board

import (
	"fmt"

	"periph.io/x/conn/v3/spi/spireg"

	"github.com/coreman2200/funtimes-nightstand/internal/config"
	"github.com/coreman2200/funtimes-nightstand/internal/led"
	"github.com/coreman2200/funtimes-nightstand/internal/rmt"
)

// Open builds the registry for c, registering the configured pulse channel
// under c.Driver.Channel. Hardware kinds need periph's host drivers loaded.
func Open(c *config.Config, enc *led.Encoder, order led.Order) (*Registry, error) {
	r := NewRegistry()
	ch, err := openChannel(r, c, enc, order)
	if err != nil {
		return nil, err
	}
	if err := r.AddChannel(c.Driver.Channel, ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return r, nil
}

func openChannel(r *Registry, c *config.Config, enc *led.Encoder, order led.Order) (rmt.Channel, error) {
	switch c.Driver.Kind {
	case "sim":
		return rmt.NewSim(c.Resolution(), c.Driver.Capacity), nil
	case "spi", "nrz":
		port, err := spireg.Open(c.Driver.SPIDev)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", c.Driver.SPIDev, err)
		}
		var ch rmt.Channel
		if c.Driver.Kind == "spi" {
			ch, err = rmt.NewSPI(port, c.Resolution(), c.Driver.Capacity)
		} else {
			ch, err = rmt.NewNRZ(port, c.Strip.Count, enc, order, c.NRZSpeed())
		}
		if err != nil {
			_ = port.Close()
			return nil, err
		}
		return ch, nil
	case "gpio":
		// The data pin belongs to the channel; take it so nothing else can.
		p, err := r.TakePin(c.Driver.Pin)
		if err != nil {
			return nil, err
		}
		return rmt.NewStream(p, c.Resolution(), c.Driver.Capacity)
	}
	return nil, fmt.Errorf("%w: unknown driver.kind %q", led.ErrConfiguration, c.Driver.Kind)
}
