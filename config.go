/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Seednode/turnroom/rooms"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind            string
	corsOrigins     []string
	logJSON         bool
	maxParticipants int
	moveHistory     int
	natsSubject     string
	natsURL         string
	pingInterval    time.Duration
	port            int
	prefix          string
	profile         bool
	quiet           bool
	roomTimeout     time.Duration
	roomsFile       string
	sendBuffer      int
	tlsCert         string
	tlsKey          string
	turnPolicy      string
	verbose         bool
	version         bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.verbose && c.quiet {
		return errors.New("--verbose and --quiet are mutually exclusive")
	}
	if c.moveHistory < 0 {
		return fmt.Errorf("invalid move history (must be 0 or greater): %d", c.moveHistory)
	}
	if c.maxParticipants < 0 {
		return fmt.Errorf("invalid participant limit (must be 0 or greater): %d", c.maxParticipants)
	}
	if c.sendBuffer < 1 {
		return fmt.Errorf("invalid send buffer (must be 1 or greater): %d", c.sendBuffer)
	}
	if c.roomTimeout < 0 {
		return fmt.Errorf("invalid room timeout (must not be negative): %s", c.roomTimeout)
	}
	if c.pingInterval <= 0 {
		return fmt.Errorf("invalid ping interval (must be positive): %s", c.pingInterval)
	}
	if _, err := rooms.ParseTurnPolicy(c.turnPolicy); err != nil {
		return err
	}
	if c.natsURL != "" && c.natsSubject == "" {
		return errors.New("--nats-subject must not be empty when --nats-url is set")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// registryOptions translates the configuration into core options.
func (c *Config) registryOptions() []rooms.Option {
	policy, _ := rooms.ParseTurnPolicy(c.turnPolicy)

	return []rooms.Option{
		rooms.WithMoveHistory(c.moveHistory),
		rooms.WithMaxParticipants(c.maxParticipants),
		rooms.WithTurnPolicy(policy),
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TURNROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "turnroom",
		Short:         "Room, handshake and move-ordering server for turn-based multiplayer games.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			setupLogging(cfg, cmd.ErrOrStderr())

			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TURNROOM_BIND)")
	fs.StringSliceVar(&cfg.corsOrigins, "cors-origin", []string{"*"}, "origin allowed to call the HTTP API, may be repeated (env: TURNROOM_CORS_ORIGIN)")
	fs.BoolVar(&cfg.logJSON, "log-json", false, "write logs as JSON (env: TURNROOM_LOG_JSON)")
	fs.IntVar(&cfg.maxParticipants, "max-participants", 8, "maximum participants per room, 0 for unlimited (env: TURNROOM_MAX_PARTICIPANTS)")
	fs.IntVar(&cfg.moveHistory, "move-history", rooms.DefaultMoveHistory, "accepted moves kept per game for resync (env: TURNROOM_MOVE_HISTORY)")
	fs.StringVar(&cfg.natsSubject, "nats-subject", "turnroom", "subject prefix for published room events (env: TURNROOM_NATS_SUBJECT)")
	fs.StringVar(&cfg.natsURL, "nats-url", "", "NATS server to publish room events to, empty to disable (env: TURNROOM_NATS_URL)")
	fs.DurationVar(&cfg.pingInterval, "ping-interval", 30*time.Second, "interval between websocket pings (env: TURNROOM_PING_INTERVAL)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TURNROOM_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TURNROOM_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TURNROOM_PROFILE)")
	fs.BoolVarP(&cfg.quiet, "quiet", "q", false, "only log warnings and errors (env: TURNROOM_QUIET)")
	fs.DurationVar(&cfg.roomTimeout, "room-timeout", 60*time.Minute, "time before rooms with nobody connected are removed, 0 to disable (env: TURNROOM_ROOM_TIMEOUT)")
	fs.StringVar(&cfg.roomsFile, "rooms-file", "", "YAML file listing rooms to create at startup and never reap (env: TURNROOM_ROOMS_FILE)")
	fs.IntVar(&cfg.sendBuffer, "send-buffer", 32, "messages queued per connection before it is marked not ready (env: TURNROOM_SEND_BUFFER)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TURNROOM_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TURNROOM_TLS_KEY)")
	fs.StringVar(&cfg.turnPolicy, "turn-policy", "round-robin", "turn order policy: round-robin or skip-disconnected (env: TURNROOM_TURN_POLICY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TURNROOM_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TURNROOM_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("turnroom v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
