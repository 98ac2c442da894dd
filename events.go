/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Seednode/turnroom/rooms"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EventStarted   = "started"
	EventRestarted = "restarted"
	EventEnded     = "ended"
	EventReset     = "reset"
	EventReaped    = "reaped"
)

// RoomEvent is a room lifecycle transition as seen from outside the process.
type RoomEvent struct {
	Room      string    `json:"room"`
	Kind      string    `json:"kind"`
	StartUUID string    `json:"startUuid,omitempty"`
	Players   []string  `json:"players,omitempty"`
	At        time.Time `json:"at"`
}

// EventPublisher fans room events out of the process. Publishing is best
// effort; failures are logged and never reach the room.
type EventPublisher interface {
	RoomEvent(ev RoomEvent)
	RoomList(push rooms.RoomListPush)
	Close()
}

type nopPublisher struct{}

func (nopPublisher) RoomEvent(RoomEvent)         {}
func (nopPublisher) RoomList(rooms.RoomListPush) {}
func (nopPublisher) Close()                      {}

type natsPublisher struct {
	nc      *nats.Conn
	subject string
	log     zerolog.Logger
}

func newEventPublisher(cfg *Config) (EventPublisher, error) {
	if cfg.natsURL == "" {
		return nopPublisher{}, nil
	}

	logger := log.Logger.With().Str("component", "events").Logger()

	opts := []nats.Option{
		nats.Name("turnroom"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	logger.Info().Str("url", nc.ConnectedUrl()).Str("subject", cfg.natsSubject).Msg("publishing room events")

	return &natsPublisher{nc: nc, subject: cfg.natsSubject, log: logger}, nil
}

func (p *natsPublisher) RoomEvent(ev RoomEvent) {
	p.publish(roomSubject(p.subject, ev.Room, ev.Kind), ev)
}

func (p *natsPublisher) RoomList(push rooms.RoomListPush) {
	p.publish(lobbySubject(p.subject), push)
}

func (p *natsPublisher) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.log.Error().Err(err).Str("subject", subject).Msg("could not encode event")
		return
	}

	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("could not publish event")
		return
	}

	p.log.Debug().Str("subject", subject).Str("size", humanReadableSize(int64(len(data)))).Msg("published event")
}

func (p *natsPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.log.Warn().Err(err).Msg("could not drain NATS connection")
	}
}

// roomSubject builds <prefix>.rooms.<room>.<kind>. Room names may contain
// characters that are special in subjects, so those are replaced.
func roomSubject(prefix, room, kind string) string {
	return prefix + ".rooms." + subjectToken(room) + "." + kind
}

func lobbySubject(prefix string) string {
	return prefix + ".lobby.roomlist"
}

func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '.' || r == '*' || r == '>' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, s)
}
