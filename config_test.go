/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/Seednode/turnroom/rooms"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, "--tls-key"},
		{"key without cert", func(c *Config) { c.tlsKey = "key.pem" }, "--tls-cert"},
		{"port too low", func(c *Config) { c.port = 0 }, "invalid port"},
		{"port too high", func(c *Config) { c.port = 65536 }, "invalid port"},
		{"verbose and quiet", func(c *Config) { c.verbose, c.quiet = true, true }, "mutually exclusive"},
		{"negative history", func(c *Config) { c.moveHistory = -1 }, "move history"},
		{"negative participants", func(c *Config) { c.maxParticipants = -1 }, "participant limit"},
		{"empty send buffer", func(c *Config) { c.sendBuffer = 0 }, "send buffer"},
		{"negative timeout", func(c *Config) { c.roomTimeout = -time.Second }, "room timeout"},
		{"zero ping interval", func(c *Config) { c.pingInterval = 0 }, "ping interval"},
		{"unknown policy", func(c *Config) { c.turnPolicy = "random" }, "random"},
		{"nats without subject", func(c *Config) { c.natsURL, c.natsSubject = "nats://localhost:4222", "" }, "--nats-subject"},
		{"unlimited participants", func(c *Config) { c.maxParticipants = 0 }, ""},
		{"reaping disabled", func(c *Config) { c.roomTimeout = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigScheme(t *testing.T) {
	cfg := newTestConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestNewCmdDefaults(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.Flags().Parse(nil))

	assert.Equal(t, "0.0.0.0", cfg.bind)
	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, rooms.DefaultMoveHistory, cfg.moveHistory)
	assert.Equal(t, "round-robin", cfg.turnPolicy)
	assert.Equal(t, []string{"*"}, cfg.corsOrigins)
	assert.NoError(t, cfg.validate())
}

func TestNewCmdEnvironment(t *testing.T) {
	t.Setenv("TURNROOM_PORT", "9090")
	t.Setenv("TURNROOM_TURN_POLICY", "skip-disconnected")
	t.Setenv("TURNROOM_ROOM_TIMEOUT", "5m")

	cfg := &Config{}
	cmd := newCmd(cfg)

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, "skip-disconnected", cfg.turnPolicy)
	assert.Equal(t, 5*time.Minute, cfg.roomTimeout)

	// Flags given on the command line are parsed after the environment.
	require.NoError(t, cmd.Flags().Parse([]string{"--port", "7070"}))
	assert.Equal(t, 7070, cfg.port)
}

func TestRegistryOptions(t *testing.T) {
	cfg := newTestConfig()
	cfg.maxParticipants = 1

	reg := rooms.NewRegistry(cfg.registryOptions()...)
	room, err := reg.Create("table")
	require.NoError(t, err)

	_, _, err = room.Join("alice")
	require.NoError(t, err)

	_, _, err = room.Join("bob")
	assert.ErrorIs(t, err, rooms.ErrRoomFull)
}

func TestSetupLogging(t *testing.T) {
	logger := log.Logger
	t.Cleanup(func() {
		log.Logger = logger
		zerolog.SetGlobalLevel(zerolog.Disabled)
	})

	tests := []struct {
		name string
		cfg  Config
		want zerolog.Level
	}{
		{"default", Config{}, zerolog.InfoLevel},
		{"verbose", Config{verbose: true}, zerolog.DebugLevel},
		{"quiet", Config{quiet: true}, zerolog.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupLogging(&tt.cfg, &bytes.Buffer{})
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}

	var buf bytes.Buffer
	setupLogging(&Config{logJSON: true}, &buf)
	log.Info().Str("room", "table").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "table", line["room"])
	assert.Equal(t, "info", line["level"])
}
