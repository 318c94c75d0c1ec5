package led

import "errors"

var (
	// ErrConfiguration is a length mismatch or an unsupported strip, order or
	// timing setup. It is detected before any hardware access.
	ErrConfiguration = errors.New("led: configuration error")
	// ErrBusy is a transmit attempt while another is in flight.
	ErrBusy = errors.New("led: channel busy")
	// ErrTimeout is hardware not reporting completion in time. The channel has
	// been reset when this is returned.
	ErrTimeout = errors.New("led: hardware timeout")
	// ErrOverflow is a sequence larger than the channel's symbol buffer.
	ErrOverflow = errors.New("led: symbol buffer overflow")
)

// Retryable reports whether err is a runtime condition that a later frame may
// not hit again. Configuration and overflow errors are caller or build defects.
func Retryable(err error) bool {
	return errors.Is(err, ErrBusy) || errors.Is(err, ErrTimeout)
}
