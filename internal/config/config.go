package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-nightstand/internal/led"
)

type Grid struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Serpentine bool `yaml:"serpentine"`
}

type Strip struct {
	Count      int    `yaml:"count"`
	ColorOrder string `yaml:"color_order"` // e.g. GRB, RGB, GRBW
	Grid       Grid   `yaml:"grid"`
}

type Driver struct {
	Kind         string `yaml:"kind"`    // "sim" | "spi" | "gpio" | "nrz"
	Channel      string `yaml:"channel"` // registry name of the pulse channel
	Pin          string `yaml:"pin"`     // data pin for kind=gpio, e.g. GPIO9
	SPIDev       string `yaml:"spi_dev"` // e.g. /dev/spidev0.0
	ResolutionHz int64  `yaml:"resolution_hz"`
	NRZSpeedHz   int64  `yaml:"nrz_speed_hz"`
	Capacity     int    `yaml:"capacity"` // max symbols per frame, 0 = unbounded
	MarginMs     int    `yaml:"timeout_margin_ms"`
}

type Timing struct {
	T0HNs       int `yaml:"t0h_ns"`
	T0LNs       int `yaml:"t0l_ns"`
	T1HNs       int `yaml:"t1h_ns"`
	T1LNs       int `yaml:"t1l_ns"`
	ResetUs     int `yaml:"reset_us"`
	ToleranceNs int `yaml:"tolerance_ns"`
}

type Blink struct {
	Pin      string `yaml:"pin"` // empty disables the status blink
	PeriodMs int    `yaml:"period_ms"`
}

type HTTP struct {
	Addr    string `yaml:"addr"`
	MaxBody int64  `yaml:"max_body"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Config struct {
	Strip  Strip  `yaml:"strip"`
	Driver Driver `yaml:"driver"`
	Timing Timing `yaml:"timing"`
	Blink  Blink  `yaml:"blink"`
	HTTP   HTTP   `yaml:"http"`
	Log    Log    `yaml:"log"`
}

// Default is a 12 pixel nightstand strip (3 rows of 4) on the simulator.
func Default() *Config {
	t := led.WS2812()
	return &Config{
		Strip: Strip{
			Count:      12,
			ColorOrder: "GRB",
			Grid:       Grid{Width: 4, Height: 3},
		},
		Driver: Driver{
			Kind:         "sim",
			Channel:      "rmt0",
			Pin:          "GPIO9",
			SPIDev:       "/dev/spidev0.0",
			ResolutionHz: 10_000_000,
			NRZSpeedHz:   2_500_000,
			MarginMs:     5,
		},
		Timing: Timing{
			T0HNs:       int(t.T0H / time.Nanosecond),
			T0LNs:       int(t.T0L / time.Nanosecond),
			T1HNs:       int(t.T1H / time.Nanosecond),
			T1LNs:       int(t.T1L / time.Nanosecond),
			ResetUs:     int(t.Reset / time.Microsecond),
			ToleranceNs: int(t.Tolerance / time.Nanosecond),
		},
		Blink: Blink{Pin: "GPIO8", PeriodMs: 1000},
		HTTP:  HTTP{Addr: ":80", MaxBody: 512},
		Log:   Log{Level: "info"},
	}
}

// Load reads path over Default. Fields missing from the file keep their
// default.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Validate checks everything that can be checked without hardware.
func (c *Config) Validate() error {
	if c.Strip.Count < 1 || c.Strip.Count > led.MaxPixels {
		return fmt.Errorf("%w: strip.count %d outside 1..%d", led.ErrConfiguration, c.Strip.Count, led.MaxPixels)
	}
	order, err := c.Order()
	if err != nil {
		return err
	}
	if g := c.Strip.Grid; g.Width != 0 || g.Height != 0 {
		if g.Width*g.Height != c.Strip.Count {
			return fmt.Errorf("%w: grid %dx%d does not cover %d pixels", led.ErrConfiguration, g.Width, g.Height, c.Strip.Count)
		}
	}
	switch c.Driver.Kind {
	case "sim", "spi", "gpio", "nrz":
	default:
		return fmt.Errorf("%w: unknown driver.kind %q", led.ErrConfiguration, c.Driver.Kind)
	}
	if c.Driver.Kind == "nrz" && len(order.Channels()) != 3 {
		return fmt.Errorf("%w: driver.kind nrz needs a three-channel color_order, got %s", led.ErrConfiguration, order)
	}
	if c.Driver.ResolutionHz <= 0 {
		return fmt.Errorf("%w: driver.resolution_hz must be positive", led.ErrConfiguration)
	}
	if c.Driver.Capacity < 0 {
		return fmt.Errorf("%w: driver.capacity must not be negative", led.ErrConfiguration)
	}
	if c.Blink.Pin != "" && c.Blink.PeriodMs <= 0 {
		return fmt.Errorf("%w: blink.period_ms must be positive", led.ErrConfiguration)
	}
	if _, err := led.NewEncoder(c.LEDTiming(), c.Resolution()); err != nil {
		return err
	}
	return nil
}

func (c *Config) Order() (led.Order, error) {
	return led.ParseOrder(c.Strip.ColorOrder)
}

func (c *Config) LEDTiming() led.Timing {
	return led.Timing{
		T0H:       time.Duration(c.Timing.T0HNs) * time.Nanosecond,
		T0L:       time.Duration(c.Timing.T0LNs) * time.Nanosecond,
		T1H:       time.Duration(c.Timing.T1HNs) * time.Nanosecond,
		T1L:       time.Duration(c.Timing.T1LNs) * time.Nanosecond,
		Reset:     time.Duration(c.Timing.ResetUs) * time.Microsecond,
		Tolerance: time.Duration(c.Timing.ToleranceNs) * time.Nanosecond,
	}
}

func (c *Config) Resolution() physic.Frequency {
	return physic.Frequency(c.Driver.ResolutionHz) * physic.Hertz
}

func (c *Config) NRZSpeed() physic.Frequency {
	return physic.Frequency(c.Driver.NRZSpeedHz) * physic.Hertz
}

func (c *Config) Margin() time.Duration {
	return time.Duration(c.Driver.MarginMs) * time.Millisecond
}

func (c *Config) BlinkPeriod() time.Duration {
	return time.Duration(c.Blink.PeriodMs) * time.Millisecond
}
