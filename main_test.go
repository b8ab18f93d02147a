package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/cabinsmart/cabin/config"
)

func TestConstants(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.Equal(t, "CabinSmart Server", AppName)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cabin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newApp(io.Discard)
	cmd.Writer = &out
	err := cmd.Run(context.Background(), append([]string{"cabinsmart"}, args...))
	return out.String(), err
}

func TestValidateConfigCommand(t *testing.T) {
	path := writeConfig(t, `
http:
  port: 9090
cabin:
  rows: 20
  seats_per_row: 4
  business_rows: 3
`)
	out, err := runApp(t, "--config", path, "validate-config")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration ok")
	assert.Contains(t, out, "cabin=20x4")
	assert.Contains(t, out, "9090")
}

func TestValidateConfigCommandRejectsBadLayout(t *testing.T) {
	path := writeConfig(t, `
cabin:
  rows: 4
  seats_per_row: 6
  business_rows: 9
`)
	_, err := runApp(t, "--config", path, "validate-config")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestResetSeatsCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "store:\n  snapshot_path: "+filepath.Join(dir, "seats.json")+"\n")

	out, err := runApp(t, "--config", path, "reset-seats")
	require.NoError(t, err)
	assert.Contains(t, out, "reset 198 seats (8 business rows)")

	data, err := os.ReadFile(filepath.Join(dir, "seats.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Pasajero 33F")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "seat", "1A")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "1A", entry["seat"])

	_, err = newLogger(config.LogConfig{Level: "loud"}, &buf)
	assert.Error(t, err)
}

func TestLoopbackAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8000", loopbackAddr(config.HTTPConfig{Host: "0.0.0.0", Port: 8000}))
	assert.Equal(t, "10.0.0.5:80", loopbackAddr(config.HTTPConfig{Host: "10.0.0.5", Port: 80}))
}

func TestNewApplicationServesAPIAndMCP(t *testing.T) {
	cfg := config.Default()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// The MCP tools need the API address, known only once the test server
	// is listening; route through a handler swapped in afterwards.
	var handler http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	defer srv.Close()

	app, err := newApplication(context.Background(), cfg, logger, srv.URL)
	require.NoError(t, err)
	defer app.Close()
	handler = app.handler

	assert.True(t, apiReachable(srv.URL))

	resp, err := http.Get(srv.URL + "/bathroom/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"bathroom_status","arguments":{}}}`
	resp, err = http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "The bathroom is free")
}

func TestApiReachableFalse(t *testing.T) {
	assert.False(t, apiReachable("http://127.0.0.1:1"))
}

func TestApiReachableRejectsForeignServers(t *testing.T) {
	for name, h := range map[string]http.HandlerFunc{
		"not found": http.NotFound,
		"other body": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ok":true}`))
		},
		"unhealthy": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"unhealthy"}`))
		},
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			assert.False(t, apiReachable(srv.URL))
		})
	}
}
