// Command stripctl talks to a running nightstand over HTTP and WebSocket.
//
//	stripctl [-host H] ping
//	stripctl [-host H] [-count N] solid R G B   (N defaults to the device's strip length)
//	stripctl [-host H] clear
//	stripctl [-host H] [-fps F] stream < frames.jsonl
//	stripctl [-host H] test index_sweep|rgb_channels|row_sweep
//	stripctl [-host H] health
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-nightstand/internal/server"
)

type client struct {
	base string
	http *http.Client
}

func main() {
	var (
		host  = flag.String("host", "nightstand.local", "device host[:port]")
		count = flag.Int("count", 0, "pixels for solid; 0 asks the device")
		fps   = flag.Float64("fps", 20, "frame rate cap for stream")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	c := &client{base: "http://" + *host, http: &http.Client{Timeout: 5 * time.Second}}
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "ping":
		err = c.get("/")
	case "health":
		err = c.get("/health")
	case "solid":
		if len(args) != 4 {
			log.Fatal().Msg("usage: solid R G B")
		}
		err = c.solid(args[1:], *count)
	case "clear":
		err = c.params([]server.Pixel{})
	case "test":
		if len(args) != 2 {
			log.Fatal().Msg("usage: test KIND")
		}
		err = c.post("/test/"+url.PathEscape(args[1]), nil)
	case "stream":
		err = c.stream(os.Stdin, *fps)
	default:
		log.Fatal().Str("cmd", args[0]).Msg("unknown command")
	}
	if err != nil {
		log.Fatal().Err(err).Str("cmd", args[0]).Msg("failed")
	}
}

func parsePixel(args []string) (server.Pixel, error) {
	var v [3]uint8
	for i, a := range args {
		n, err := strconv.ParseUint(a, 10, 8)
		if err != nil {
			return server.Pixel{}, fmt.Errorf("channel %q: %w", a, err)
		}
		v[i] = uint8(n)
	}
	return server.Pixel{R: v[0], G: v[1], B: v[2]}, nil
}

func (c *client) solid(args []string, n int) error {
	p, err := parsePixel(args)
	if err != nil {
		return err
	}
	if n <= 0 {
		if n, err = c.pixels(); err != nil {
			return fmt.Errorf("strip length: %w", err)
		}
	}
	px := make([]server.Pixel, n)
	for i := range px {
		px[i] = p
	}
	return c.params(px)
}

// pixels asks the device how long its strip is.
func (c *client) pixels() (int, error) {
	resp, err := c.http.Get(c.base + "/health")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("health: %s", resp.Status)
	}
	var h struct {
		Pixels int `json:"pixels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return 0, err
	}
	if h.Pixels <= 0 {
		return 0, fmt.Errorf("health reports %d pixels", h.Pixels)
	}
	return h.Pixels, nil
}

func (c *client) params(px []server.Pixel) error {
	b, err := json.Marshal(px)
	if err != nil {
		return err
	}
	return c.post("/params", b)
}

func (c *client) get(path string) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return err
	}
	return report(resp)
}

func (c *client) post(path string, body []byte) error {
	resp, err := c.http.Post(c.base+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	return report(resp)
}

func report(resp *http.Response) error {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n%s\n", resp.Status, bytes.TrimSpace(b))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("device answered %s", resp.Status)
	}
	return nil
}

// stream sends one frame per input line over /ws, no faster than fps.
func (c *client) stream(r io.Reader, fps float64) error {
	u := "ws" + c.base[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, hello, err := conn.ReadMessage(); err == nil {
		log.Info().RawJSON("hello", hello).Msg("connected")
	}

	if fps <= 0 {
		fps = 20
	}
	interval := time.Duration(float64(time.Second) / fps)
	tick := time.NewTicker(interval)
	defer tick.Stop()

	sc := bufio.NewScanner(r)
	frames := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, line); err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var resp map[string]json.RawMessage
		if err := conn.ReadJSON(&resp); err != nil {
			return err
		}
		if e, ok := resp["error"]; ok {
			log.Warn().RawJSON("error", e).Int("frame", frames).Msg("device rejected frame")
		}
		frames++
		<-tick.C
	}
	log.Info().Int("frames", frames).Msg("stream done")
	return sc.Err()
}
