// Package blink toggles a status LED so a running device is visible.
package blink

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
)

// Run toggles p every period until ctx is done, then leaves it low.
func Run(ctx context.Context, p gpio.PinOut, period time.Duration) error {
	l := log.With().Str("component", "blink").Str("pin", p.Name()).Logger()
	l.Info().Dur("period", period).Msg("blink task started")

	level := gpio.Low
	if err := p.Out(level); err != nil {
		return err
	}
	tick := time.NewTicker(period)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return p.Out(gpio.Low)
		case <-tick.C:
			level = !level
			if err := p.Out(level); err != nil {
				l.Error().Err(err).Msg("toggle failed")
				return err
			}
		}
	}
}
