// Package server is the nightstand's HTTP surface: single frames over
// POST /params, streamed frames over /ws, health and self-tests.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	diag "github.com/coreman2200/funtimes-nightstand/internal/diagnostics"
	"github.com/coreman2200/funtimes-nightstand/internal/layout"
	"github.com/coreman2200/funtimes-nightstand/internal/led"
	"github.com/coreman2200/funtimes-nightstand/internal/patterns"
	"github.com/coreman2200/funtimes-nightstand/internal/strip"
)

const (
	DefaultMaxBody = 512
	Greeting       = "Nightstand online"
	writeWait      = time.Second
)

// Strip is the LED task as seen from the network side.
type Strip interface {
	Size() int
	Update(ctx context.Context, colors []led.Color) error
	State() strip.State
	Stats() strip.Stats
	LastFrame() []led.Color
}

var _ Strip = (*strip.Task)(nil)

// Pixel is the wire form of one color.
type Pixel struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	W uint8 `json:"w,omitempty"`
}

type Server struct {
	strip   Strip
	grid    layout.Grid
	maxBody int64
	hold    time.Duration
	log     zerolog.Logger
	start   time.Time

	up websocket.Upgrader

	base    context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	testing atomic.Bool
}

type Option func(*Server)

func WithMaxBody(n int64) Option { return func(s *Server) { s.maxBody = n } }

// WithHold sets how long each self-test frame stays on the strip.
func WithHold(d time.Duration) Option { return func(s *Server) { s.hold = d } }

func WithLogger(l zerolog.Logger) Option { return func(s *Server) { s.log = l } }

func New(st Strip, g layout.Grid, opts ...Option) *Server {
	s := &Server{
		strip:   st,
		grid:    g,
		maxBody: DefaultMaxBody,
		hold:    250 * time.Millisecond,
		log:     log.With().Str("component", "server").Logger(),
		start:   time.Now(),
		up:      websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
	for _, o := range opts {
		o(s)
	}
	s.base, s.cancel = context.WithCancel(context.Background())
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleRoot)
	r.Post("/params", s.handleParams)
	r.Get("/ws", s.handleWS)
	r.Get("/health", s.handleHealth)
	r.Post("/test/{kind}", s.handleTest)
	return r
}

// Serve listens on addr until ctx is done, then shuts down gracefully and
// stops any running self-test.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("http listening")

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdown)
	s.Close()
	return err
}

// Close stops a running self-test and waits for it.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	_, _ = io.WriteString(w, Greeting)
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxBody {
		http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.log.Debug().Int("bytes", len(body)).Msg("params payload")

	err = s.apply(r.Context(), body)
	d := diag.FromError(err)
	writeJSON(w, d.Status(), reply(d))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("ws upgrade")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.maxBody)
	s.log.Info().Str("remote", r.RemoteAddr).Msg("ws client connected")

	hello, _ := json.Marshal(map[string]any{"status": Greeting, "pixels": s.strip.Size()})
	if err := s.write(conn, hello); err != nil {
		return
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.log.Info().Err(err).Msg("ws client gone")
			return
		}
		d := diag.FromError(s.apply(r.Context(), data))
		b, _ := json.Marshal(reply(d))
		if err := s.write(conn, b); err != nil {
			s.log.Debug().Err(err).Msg("ws write")
			return
		}
	}
}

func (s *Server) write(conn *websocket.Conn, b []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state":      s.strip.State().String(),
		"pixels":     s.strip.Size(),
		"uptime_s":   time.Since(s.start).Seconds(),
		"stats":      s.strip.Stats(),
		"testing":    s.testing.Load(),
		"last_frame": toPixels(s.strip.LastFrame()),
	})
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	kind, err := patterns.Parse(chi.URLParam(r, "kind"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": diag.Diagnostic{
			Severity: diag.Warn, Code: "test_unknown", Summary: "Unknown test name",
			Evidence: map[string]any{"name": chi.URLParam(r, "kind"), "known": patterns.Kinds},
		}})
		return
	}
	if !s.testing.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusConflict, map[string]any{"error": diag.Diagnostic{
			Severity: diag.Warn, Code: "test_running", Summary: "A self-test is already running",
		}})
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.testing.Store(false)
		err := patterns.Play(s.base, s.strip, kind, s.grid, s.hold)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn().Err(err).Str("kind", string(kind)).Msg("self-test failed")
			return
		}
		s.log.Info().Str("kind", string(kind)).Msg("self-test done")
	}()
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "running", "kind": kind})
}

// apply decodes a JSON pixel array and sends it to the strip. An empty array
// clears the strip.
func (s *Server) apply(ctx context.Context, body []byte) error {
	var px []Pixel
	if err := json.Unmarshal(body, &px); err != nil {
		return fmt.Errorf("decode pixels: %v: %w", err, led.ErrConfiguration)
	}
	colors := make([]led.Color, s.strip.Size())
	if len(px) > 0 {
		colors = make([]led.Color, len(px))
		for i, p := range px {
			colors[i] = led.Color{R: p.R, G: p.G, B: p.B, W: p.W}
		}
	}
	return s.strip.Update(ctx, colors)
}

func reply(d *diag.Diagnostic) map[string]any {
	if d == nil {
		return map[string]any{"status": "ok"}
	}
	return map[string]any{"error": d}
}

func toPixels(colors []led.Color) []Pixel {
	out := make([]Pixel, len(colors))
	for i, c := range colors {
		out[i] = Pixel{R: c.R, G: c.G, B: c.B, W: c.W}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
