package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-nightstand/internal/server"
)

// device answers /health with a strip length and records /params bodies.
func device(t *testing.T, pixels int) (*client, *[][]server.Pixel) {
	t.Helper()
	var got [][]server.Pixel
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"state": "idle", "pixels": pixels})
	})
	mux.HandleFunc("/params", func(w http.ResponseWriter, r *http.Request) {
		var px []server.Pixel
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &px))
		got = append(got, px)
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return &client{base: ts.URL, http: ts.Client()}, &got
}

func TestSolidUsesDeviceLength(t *testing.T) {
	c, got := device(t, 30)
	require.NoError(t, c.solid([]string{"255", "0", "16"}, 0))
	require.Len(t, *got, 1)
	require.Len(t, (*got)[0], 30)
	assert.Equal(t, server.Pixel{R: 255, B: 16}, (*got)[0][29])
}

func TestSolidExplicitCount(t *testing.T) {
	c, got := device(t, 30)
	require.NoError(t, c.solid([]string{"1", "2", "3"}, 4))
	require.Len(t, (*got)[0], 4)
}

func TestSolidRejectsBadChannel(t *testing.T) {
	c, got := device(t, 3)
	err := c.solid([]string{"256", "0", "0"}, 0)
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "256"))
	assert.Empty(t, *got)
}
