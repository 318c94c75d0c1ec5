// Package rmt drives a pulse-generation channel with symbol sequences.
//
// A Channel is the hardware (or an emulation of it). A Transmitter owns one
// Channel exclusively and is the only thing allowed to start a transmission
// on it.
package rmt

import (
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-nightstand/internal/led"
)

// Channel is one pulse-generation channel bound to one output pin.
type Channel interface {
	// Resolution is the tick rate symbols are expressed in.
	Resolution() physic.Frequency
	// Capacity is the largest sequence, in symbols, the channel can emit in
	// one transmission. 0 means unbounded.
	Capacity() int
	// Start begins emitting seq and returns without waiting. The returned
	// channel receives exactly one value once the last symbol has left the
	// peripheral. The channel takes ownership of seq.
	Start(seq led.Sequence) (<-chan error, error)
	// Reset stops any transmission and returns the output to idle low. A
	// backend that cannot abort a transfer waits for it instead, and stays
	// busy if it does not finish.
	Reset() error
	Close() error
}
