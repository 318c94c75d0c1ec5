package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"periph.io/x/host/v3"

	"github.com/coreman2200/funtimes-nightstand/internal/blink"
	"github.com/coreman2200/funtimes-nightstand/internal/board"
	"github.com/coreman2200/funtimes-nightstand/internal/config"
	"github.com/coreman2200/funtimes-nightstand/internal/layout"
	"github.com/coreman2200/funtimes-nightstand/internal/led"
	"github.com/coreman2200/funtimes-nightstand/internal/rmt"
	"github.com/coreman2200/funtimes-nightstand/internal/server"
	"github.com/coreman2200/funtimes-nightstand/internal/strip"
)

func main() {
	// ---- Flags (config.yaml fills in whatever is not set here) ----
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		count      = flag.Int("count", 0, "number of LEDs on the strip")
		colorOrder = flag.String("color", "", "LED color order (e.g. GRB, RGB, GRBW)")
		driver     = flag.String("driver", "", "driver: sim | spi | gpio | nrz")
		pin        = flag.String("pin", "", "data pin for driver=gpio")
		spiDev     = flag.String("spi", "", "SPI device for driver=spi|nrz")
		addr       = flag.String("addr", "", "HTTP listen address")
		level      = flag.String("log", "", "log level")
		writeCfg   = flag.Bool("write-config", false, "write the effective config back to -config and exit")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	// ---- Config: defaults < config.yaml < flags ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; using defaults")
		cfg = config.Default()
	}
	if *count > 0 {
		cfg.Strip.Count = *count
		cfg.Strip.Grid = config.Grid{}
	}
	cfg.Strip.ColorOrder = firstNonEmpty(*colorOrder, cfg.Strip.ColorOrder)
	cfg.Driver.Kind = firstNonEmpty(*driver, cfg.Driver.Kind)
	cfg.Driver.Pin = firstNonEmpty(*pin, cfg.Driver.Pin)
	cfg.Driver.SPIDev = firstNonEmpty(*spiDev, cfg.Driver.SPIDev)
	cfg.HTTP.Addr = firstNonEmpty(*addr, cfg.HTTP.Addr)
	cfg.Log.Level = firstNonEmpty(*level, cfg.Log.Level)

	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.Log.Level).Msg("unknown log level; keeping default")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if *writeCfg {
		if err := config.Save(*configPath, cfg); err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("write config")
		}
		log.Info().Str("path", *configPath).Msg("config written")
		return
	}

	// ---- Peripherals ----
	if _, err := host.Init(); err != nil {
		if cfg.Driver.Kind != "sim" {
			log.Fatal().Err(err).Msg("periph host init failed")
		}
		log.Warn().Err(err).Msg("periph host init failed; simulator only")
	}

	order, _ := cfg.Order()
	enc, err := led.NewEncoder(cfg.LEDTiming(), cfg.Resolution())
	if err != nil {
		log.Fatal().Err(err).Msg("encoder")
	}
	builder, err := led.NewBuilder(cfg.Strip.Count, order, enc)
	if err != nil {
		log.Fatal().Err(err).Msg("frame builder")
	}

	reg, err := board.Open(cfg, enc, order)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Driver.Kind).Msg("open pulse channel")
	}
	defer reg.Close()
	ch, err := reg.TakeChannel(cfg.Driver.Channel)
	if err != nil {
		log.Fatal().Err(err).Msg("take pulse channel")
	}
	tx := rmt.NewTransmitter(ch, rmt.WithMargin(cfg.Margin()))
	defer tx.Close()

	task := strip.New(builder, tx)

	grid := layout.Linear(cfg.Strip.Count)
	if g := cfg.Strip.Grid; g.Width > 0 && g.Height > 0 {
		grid = layout.Grid{Width: g.Width, Height: g.Height, Serpentine: g.Serpentine}
	}
	srv := server.New(task, grid, server.WithMaxBody(cfg.HTTP.MaxBody))

	log.Info().
		Int("pixels", cfg.Strip.Count).
		Str("order", order.String()).
		Str("driver", cfg.Driver.Kind).
		Dur("bit_time", enc.BitTime()).
		Int("symbols", builder.Len()).
		Msg("nightstand starting")

	// ---- Tasks ----
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return task.Run(ctx) })
	g.Go(func() error {
		err := srv.Serve(ctx, cfg.HTTP.Addr)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	if cfg.Blink.Pin != "" {
		p, err := reg.TakePin(cfg.Blink.Pin)
		if err != nil {
			log.Warn().Err(err).Str("pin", cfg.Blink.Pin).Msg("status blink disabled")
		} else {
			g.Go(func() error { return blink.Run(ctx, p, cfg.BlinkPeriod()) })
		}
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("stopped with error")
	}
	st := task.Stats()
	log.Info().Uint64("sent", st.Sent).Uint64("failed", st.Failed).Uint64("superseded", st.Superseded).Msg("shutdown complete")
}

func firstNonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
