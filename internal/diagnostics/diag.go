// Package diagnostics turns driver errors into structured reports for the
// HTTP surface and the logs.
package diagnostics

import (
	"errors"
	"net/http"

	"github.com/coreman2200/funtimes-nightstand/internal/led"
	"github.com/coreman2200/funtimes-nightstand/internal/strip"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// FromError classifies err. It returns nil for a nil error.
func FromError(err error) *Diagnostic {
	if err == nil {
		return nil
	}
	d := &Diagnostic{Severity: Err, Detail: err.Error()}
	switch {
	case errors.Is(err, led.ErrConfiguration):
		d.Code = "configuration"
		d.Summary = "Frame or driver configuration rejected"
		d.LikelyCauses = []string{"frame length differs from the configured strip length", "timing not representable at the channel resolution"}
		d.SuggestedFixes = []string{"send exactly strip.count colors", "check driver.resolution_hz and the timing section"}
	case errors.Is(err, led.ErrBusy):
		d.Severity = Warn
		d.Code = "resource_busy"
		d.Summary = "Transmission channel busy"
		d.LikelyCauses = []string{"another frame is still on the wire"}
		d.SuggestedFixes = []string{"retry after the current frame completes"}
	case errors.Is(err, led.ErrTimeout):
		d.Code = "hardware_timeout"
		d.Summary = "Transmission did not complete in time"
		d.LikelyCauses = []string{"channel stalled", "data pin not connected to a working backend"}
		d.SuggestedFixes = []string{"check wiring and the driver kind", "raise driver.timeout_margin_ms"}
	case errors.Is(err, led.ErrOverflow):
		d.Code = "buffer_overflow"
		d.Summary = "Frame exceeds channel capacity"
		d.LikelyCauses = []string{"strip.count larger than the channel buffer"}
		d.SuggestedFixes = []string{"raise driver.capacity or shorten the strip"}
	case errors.Is(err, strip.ErrSuperseded):
		d.Severity = Info
		d.Code = "superseded"
		d.Summary = "Frame replaced by a newer frame before it was sent"
	case errors.Is(err, strip.ErrStopped):
		d.Severity = Warn
		d.Code = "stopped"
		d.Summary = "LED task is not running"
	default:
		d.Code = "internal"
		d.Summary = "Unexpected driver error"
	}
	return d
}

// Status maps the diagnostic onto an HTTP status code.
func (d *Diagnostic) Status() int {
	if d == nil {
		return http.StatusOK
	}
	switch d.Code {
	case "configuration":
		return http.StatusBadRequest
	case "resource_busy":
		return http.StatusConflict
	case "hardware_timeout":
		return http.StatusGatewayTimeout
	case "buffer_overflow":
		return http.StatusUnprocessableEntity
	case "superseded":
		return http.StatusAccepted
	case "stopped":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
