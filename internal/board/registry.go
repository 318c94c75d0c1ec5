// Package board hands out the peripherals of the device. Every channel and
// pin can be taken exactly once; whoever takes it owns it.
package board

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/coreman2200/funtimes-nightstand/internal/rmt"
)

var (
	ErrUnknown = errors.New("board: no such peripheral")
	ErrTaken   = errors.New("board: peripheral already taken")
)

// Registry holds the peripherals that have not been handed out yet.
type Registry struct {
	mu       sync.Mutex
	channels map[string]rmt.Channel
	taken    map[string]bool
	lookup   func(name string) gpio.PinIO
}

func NewRegistry() *Registry {
	return &Registry{
		channels: map[string]rmt.Channel{},
		taken:    map[string]bool{},
		lookup:   gpioreg.ByName,
	}
}

// AddChannel makes ch available under name.
func (r *Registry) AddChannel(name string, ch rmt.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[name]; ok || r.taken["ch:"+name] {
		return fmt.Errorf("board: channel %q registered twice", name)
	}
	r.channels[name] = ch
	return nil
}

// TakeChannel transfers ownership of the named channel to the caller.
func (r *Registry) TakeChannel(name string) (rmt.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.taken["ch:"+name] {
		return nil, fmt.Errorf("%w: channel %q", ErrTaken, name)
	}
	ch, ok := r.channels[name]
	if !ok {
		return nil, fmt.Errorf("%w: channel %q", ErrUnknown, name)
	}
	delete(r.channels, name)
	r.taken["ch:"+name] = true
	return ch, nil
}

// TakePin transfers ownership of the named GPIO pin, looked up in periph's
// gpioreg.
func (r *Registry) TakePin(name string) (gpio.PinIO, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.lookup(name)
	if p == nil {
		return nil, fmt.Errorf("%w: pin %q", ErrUnknown, name)
	}
	// Aliases resolve to the same pin; ownership follows the real name.
	key := "pin:" + p.Name()
	if r.taken[key] {
		return nil, fmt.Errorf("%w: pin %q", ErrTaken, name)
	}
	r.taken[key] = true
	return p, nil
}

// Close closes the channels nobody took.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, ch := range r.channels {
		if err := ch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(r.channels, name)
	}
	return errors.Join(errs...)
}
