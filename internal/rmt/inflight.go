package rmt

import (
	"errors"
	"sync"
	"time"

	"github.com/coreman2200/funtimes-nightstand/internal/led"
)

// DrainWait bounds how long Reset waits for a transfer it cannot abort.
const DrainWait = 100 * time.Millisecond

// ErrDraining is returned by Reset when the previous transfer is still on the
// wire after DrainWait. The channel stays busy until it returns.
var ErrDraining = errors.New("rmt: previous transfer still running")

// inflight tracks the single blocking transfer a backend may have running.
// Only the transfer itself releases the channel, so a timed out transfer
// keeps it busy until it has really returned.
type inflight struct {
	mu   sync.Mutex
	done chan struct{}
}

// begin claims the channel. The returned func must be called exactly once
// when the transfer has returned.
func (f *inflight) begin() (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done != nil {
		select {
		case <-f.done:
		default:
			return nil, led.ErrBusy
		}
	}
	d := make(chan struct{})
	f.done = d
	return func() { close(d) }, nil
}

// drain waits up to d for the running transfer, if any.
func (f *inflight) drain(d time.Duration) error {
	f.mu.Lock()
	c := f.done
	f.mu.Unlock()
	if c == nil {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-c:
		return nil
	case <-t.C:
		return ErrDraining
	}
}
