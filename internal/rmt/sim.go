package rmt

import (
	"errors"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-nightstand/internal/led"
)

// Sim is a Channel without hardware. A transmission completes after the wire
// time of its sequence, so callers wait as long as they would on a strip.
type Sim struct {
	res      physic.Frequency
	capacity int

	mu     sync.Mutex
	manual bool
	hang   bool
	fail   error
	done   chan error
	timer  *time.Timer
	starts int
	resets int
	last   led.Sequence
	closed bool
}

// NewSim returns a simulated channel. capacity 0 is unbounded.
func NewSim(res physic.Frequency, capacity int) *Sim {
	return &Sim{res: res, capacity: capacity}
}

// Manual makes transmissions complete only through Complete.
func (s *Sim) Manual() *Sim {
	s.mu.Lock()
	s.manual = true
	s.mu.Unlock()
	return s
}

// Hang makes the channel never report completion until Reset.
func (s *Sim) Hang(on bool) {
	s.mu.Lock()
	s.hang = on
	s.mu.Unlock()
}

// Fail makes the next completions report err.
func (s *Sim) Fail(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

func (s *Sim) Resolution() physic.Frequency { return s.res }
func (s *Sim) Capacity() int                { return s.capacity }

func (s *Sim) Start(seq led.Sequence) (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("sim: channel closed")
	}
	if s.done != nil {
		return nil, errors.New("sim: transmission already in flight")
	}
	done := make(chan error, 1)
	s.done = done
	s.starts++
	s.last = seq
	if s.manual || s.hang {
		return done, nil
	}
	s.timer = time.AfterFunc(seq.Duration(s.res), func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.done == done {
			s.finish(s.fail)
		}
	})
	return done, nil
}

// Complete finishes the in-flight transmission with err. It reports false if
// nothing is in flight.
func (s *Sim) Complete(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return false
	}
	s.finish(err)
	return true
}

func (s *Sim) finish(err error) {
	s.done <- err
	s.done = nil
	s.timer = nil
}

func (s *Sim) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.done = nil
	return nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Starts counts transmissions started on the channel.
func (s *Sim) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

// Resets counts Reset calls.
func (s *Sim) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// Last is the most recent sequence handed to Start.
func (s *Sim) Last() led.Sequence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
