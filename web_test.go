/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Seednode/turnroom/rooms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, ts *httptest.Server, path string, header http.Header) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, body
}

func TestPlainEndpoints(t *testing.T) {
	ts, _, _ := newTestServer(t)

	tests := []struct {
		path        string
		contentType string
		body        string
	}{
		{"/healthz", "text/plain; charset=utf-8", "Ok\n"},
		{"/version", "text/plain; charset=utf-8", "turnroom v" + releaseVersion + "\n"},
		{"/robots.txt", "text/plain; charset=utf-8", "User-agent: *"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, ts, tt.path, nil)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.contentType, resp.Header.Get("Content-Type"))
			assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
			assert.True(t, strings.HasPrefix(string(body), tt.body))
		})
	}
}

func TestHomePage(t *testing.T) {
	ts, s, _ := newTestServer(t)

	_, err := s.registry.Create("<table>")
	require.NoError(t, err)

	resp, body := get(t, ts, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "&lt;table&gt;")
	assert.NotContains(t, string(body), "<table>")
	assert.Contains(t, string(body), `href="/new"`)

	_, err = s.registry.Create("50% off")
	require.NoError(t, err)

	_, body = get(t, ts, "/", nil)
	assert.Contains(t, string(body), `href="/rooms/50%25%20off">50% off</a>`)
}

func TestRoomEndpoints(t *testing.T) {
	ts, s, _ := newTestServer(t)

	resp, body := get(t, ts, "/rooms/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var msg rooms.ErrorMessage
	require.NoError(t, json.Unmarshal(body, &msg))
	assert.Equal(t, "unknown_room", msg.Code)

	room, err := s.registry.Create("table")
	require.NoError(t, err)
	_, _, err = room.Join("alice")
	require.NoError(t, err)

	resp, body = get(t, ts, "/rooms/table", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	var summary rooms.RoomSummary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, rooms.RoomSummary{Name: "table", Phase: rooms.PhaseIdle, Participants: 1, Connected: 1}, summary)

	_, err = s.registry.Create("attic")
	require.NoError(t, err)

	_, body = get(t, ts, "/rooms", nil)
	var list rooms.RoomList
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, rooms.TypeRoomList, list.Type)
	require.Len(t, list.Rooms, 2)
	assert.Equal(t, "attic", list.Rooms[0].Name)
	assert.Equal(t, "table", list.Rooms[1].Name)
}

func TestNewRoomRedirects(t *testing.T) {
	ts, s, _ := newTestServer(t)

	resp, _ := get(t, ts, "/new", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	location := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(location, "/rooms/"))

	_, ok := s.registry.Get(strings.TrimPrefix(location, "/rooms/"))
	assert.True(t, ok)
}

func TestRoomQR(t *testing.T) {
	ts, s, _ := newTestServer(t)

	resp, body := get(t, ts, "/rooms/table/qr", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var msg rooms.ErrorMessage
	require.NoError(t, json.Unmarshal(body, &msg))
	assert.Equal(t, "unknown_room", msg.Code)

	_, err := s.registry.Create("table")
	require.NoError(t, err)

	resp, body = get(t, ts, "/rooms/table/qr", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG\r\n\x1a\n")))
}

func TestRoomURL(t *testing.T) {
	cfg := newTestConfig()

	r := httptest.NewRequest(http.MethodGet, "/rooms/50%25%20off/qr", nil)
	r.Host = "games.example.com"
	assert.Equal(t, "http://games.example.com/rooms/50%25%20off", roomURL(cfg, r, "50% off"))

	r.Header.Set("X-Forwarded-Proto", "https")
	cfg.prefix = "/play"
	assert.Equal(t, "https://games.example.com/play/rooms/table", roomURL(cfg, r, "table"))
}

func TestCORS(t *testing.T) {
	ts, _, _ := newTestServer(t, func(c *Config) {
		c.corsOrigins = []string{"https://games.example.com"}
	})

	resp, _ := get(t, ts, "/rooms", http.Header{"Origin": {"https://games.example.com"}})
	assert.Equal(t, "https://games.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = get(t, ts, "/rooms", http.Header{"Origin": {"https://evil.example.com"}})
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestPrefix(t *testing.T) {
	ts, _, _ := newTestServer(t, func(c *Config) { c.prefix = "/play" })

	resp, _ := get(t, ts, "/play/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, ts, "/healthz", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHumanReadableSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{999, "999 B"},
		{1000, "1.0 kB"},
		{1536, "1.5 kB"},
		{2_500_000, "2.5 MB"},
		{3_000_000_000, "3.0 GB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, humanReadableSize(tt.n), "%d bytes", tt.n)
	}
}

func TestRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5000"
	assert.Equal(t, "10.0.0.1:5000", realIP(r))

	r.Header.Set("X-Real-IP", "192.0.2.7")
	assert.Equal(t, "192.0.2.7:5000", realIP(r))

	r.Header.Set("CF-Connecting-IP", "2001:db8::1")
	assert.Equal(t, "[2001:db8::1]:5000", realIP(r))

	r.Header.Set("CF-Connecting-IP", "not-an-ip")
	assert.Equal(t, "10.0.0.1:5000", realIP(r))
}

func TestProfileRoutes(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, _ := get(t, ts, "/pprof/cmdline", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	ts, _, _ = newTestServer(t, func(c *Config) { c.profile = true })
	for _, path := range []string{"/pprof/cmdline", "/pprof/heap"} {
		resp, _ = get(t, ts, path, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
