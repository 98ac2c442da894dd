/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Seednode/turnroom/rooms"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10

	playerCookieName = "turnroom_id"
)

type memberKey struct {
	room string
	id   string
}

// Server is the websocket side of the rooms: it maps connections to
// participants, feeds their messages to the room they joined and delivers
// whatever the room hands back.
type Server struct {
	cfg      *Config
	registry *rooms.Registry
	lists    *rooms.Broadcaster
	events   EventPublisher
	clock    clockwork.Clock
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
	members map[memberKey]*Client
}

func newServer(cfg *Config, reg *rooms.Registry, events EventPublisher) *Server {
	return &Server{
		cfg:      cfg,
		registry: reg,
		lists:    rooms.NewBroadcaster(reg),
		events:   events,
		clock:    clockwork.NewRealClock(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(cfg.corsOrigins),
		},
		log:     log.Logger.With().Str("component", "hub").Logger(),
		clients: make(map[*Client]struct{}),
		members: make(map[memberKey]*Client),
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

// Client is one websocket connection. The send channel is never closed;
// done signals the writer to flush and hang up.
type Client struct {
	id       string
	playerID string
	room     string // empty for lobby connections

	conn      *websocket.Conn
	send      chan any
	done      chan struct{}
	closeOnce sync.Once

	// throttled is set while the send queue is backed up. readyMu keeps it
	// and the participant's readiness in the room changing together.
	readyMu   sync.Mutex
	throttled atomic.Bool

	srv *Server
	log zerolog.Logger
}

func (s *Server) newClient(conn *websocket.Conn, playerID, room string) *Client {
	id := uuid.NewString()

	return &Client{
		id:       id,
		playerID: playerID,
		room:     room,
		conn:     conn,
		send:     make(chan any, s.cfg.sendBuffer),
		done:     make(chan struct{}),
		srv:      s,
		log: s.log.With().
			Str("conn", id).
			Str("participant", playerID).
			Str("room", room).
			Logger(),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// push queues msg without blocking. A full queue drops the message and marks
// the participant not ready until the writer catches up.
func (c *Client) push(msg any) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
	}

	c.log.Debug().Msg("send queue full, dropping message")
	c.throttle(true)

	return false
}

// throttle flips the throttled flag and records the matching readiness in
// the room.
func (c *Client) throttle(on bool) {
	c.readyMu.Lock()
	defer c.readyMu.Unlock()

	if !c.throttled.CompareAndSwap(!on, on) || c.room == "" {
		return
	}
	c.srv.setReady(c, !on)
}

// drained lifts the throttle once the writer has emptied the queue.
func (c *Client) drained() {
	if len(c.send) == 0 && c.throttled.Load() {
		c.throttle(false)
	}
}

func (c *Client) pushError(err error) {
	c.push(rooms.NewErrorMessage(err))
}

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

func serveRoomWS(s *Server) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		name := ps.ByName("room")

		room, created, err := s.registry.Ensure(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		playerID := getOrSetPlayerID(w, r)

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Debug().Err(err).Str("ip", realIP(r)).Msg("websocket upgrade failed")
			return
		}

		c := s.newClient(conn, playerID, name)
		s.attach(c)
		go c.writePump()

		joined, out, err := room.Join(playerID)
		if errors.Is(err, rooms.ErrUnknownRoom) {
			// Reaped between lookup and join.
			if room, created, err = s.registry.Ensure(name); err == nil {
				joined, out, err = room.Join(playerID)
			}
		}
		if err != nil {
			c.log.Info().Err(err).Msg("join refused")
			s.forget(c)
			c.pushError(err)
			c.close()
			return
		}

		c.log.Info().
			Str("ip", realIP(r)).
			Bool("room_created", created).
			Bool("rejoined", joined.Rejoined).
			Msg("participant connected")

		s.deliver(name, out)
		s.pushRoomList(joined.Info)

		c.readPump()
	}
}

func serveLobbyWS(s *Server) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		playerID := getOrSetPlayerID(w, r)

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Debug().Err(err).Str("ip", realIP(r)).Msg("websocket upgrade failed")
			return
		}

		c := s.newClient(conn, playerID, "")
		s.attach(c)
		go c.writePump()

		c.log.Debug().Str("ip", realIP(r)).Msg("lobby connected")

		c.push(s.lists.Query())

		c.readPump()
	}
}

// attach registers c, replacing any earlier connection of the same
// participant in the same room.
func (s *Server) attach(c *Client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}

	var old *Client
	if c.room != "" {
		key := memberKey{c.room, c.playerID}
		old = s.members[key]
		s.members[key] = c
	}
	s.mu.Unlock()

	if old != nil {
		old.log.Info().Str("replaced_by", c.id).Msg("connection replaced")
		old.close()
	}
}

// forget unregisters c and reports whether it was still the participant's
// current connection.
func (s *Server) forget(c *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.clients, c)

	if c.room == "" {
		return false
	}

	key := memberKey{c.room, c.playerID}
	if s.members[key] != c {
		return false
	}
	delete(s.members, key)

	return true
}

// detach runs disconnect recovery for a connection that went away, unless a
// newer connection already took its place.
func (s *Server) detach(c *Client) {
	if !s.forget(c) {
		return
	}

	room, ok := s.registry.Get(c.room)
	if !ok {
		return
	}

	rec, out, err := room.OnParticipantLost(c.playerID)
	if err != nil {
		c.log.Debug().Err(err).Msg("disconnect ignored")
		return
	}

	c.log.Info().Msg("participant disconnected")

	s.deliver(c.room, out)
	s.afterRecovery(room, rec)
	s.pushRoomList(rec.Info)
}

func (s *Server) member(room, id string) *Client {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.members[memberKey{room, id}]
}

// deliver sends the messages a room produced. Recipients without a live
// connection are skipped.
func (s *Server) deliver(room string, out []rooms.Outbound) {
	for _, o := range out {
		for _, id := range o.To {
			if c := s.member(room, id); c != nil {
				c.push(o.Msg)
			}
		}
	}
}

// pushRoomList sends the room list after a change in a room, to the room
// itself or to everyone depending on the phase the change left it in.
func (s *Server) pushRoomList(info rooms.RoomInfo) {
	s.fanout(s.lists.After(info))
}

func (s *Server) fanout(targets rooms.Targets, push rooms.RoomListPush) {
	if targets.All {
		s.mu.RLock()
		clients := make([]*Client, 0, len(s.clients))
		for c := range s.clients {
			clients = append(clients, c)
		}
		s.mu.RUnlock()

		for _, c := range clients {
			c.push(push)
		}
		s.events.RoomList(push)

		return
	}

	name, ok := push.RoomName.Get()
	if !ok {
		return
	}
	for _, id := range targets.IDs {
		if c := s.member(name, id); c != nil {
			c.push(push)
		}
	}
}

func (s *Server) setReady(c *Client, ready bool) {
	room, ok := s.registry.Get(c.room)
	if !ok {
		return
	}
	if err := room.SetReady(c.playerID, ready); err != nil {
		c.log.Debug().Err(err).Bool("ready", ready).Msg("readiness not recorded")
		return
	}

	c.log.Debug().Bool("ready", ready).Msg("readiness changed")
}

func (s *Server) roomsReaped(names []string) {
	for _, name := range names {
		s.events.RoomEvent(RoomEvent{Room: name, Kind: EventReaped, At: s.clock.Now()})
	}
	s.fanout(s.lists.Push(rooms.None[string]()))
}

// closeAll hangs up every connection.
func (s *Server) closeAll() {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

func (s *Server) dispatch(c *Client, msg rooms.ClientMessage) {
	if msg.Type == rooms.TypeRoomListReq {
		c.push(s.lists.Query())
		return
	}

	if c.room == "" {
		c.push(rooms.ErrorMessage{
			Type:    rooms.TypeError,
			Code:    "not_in_room",
			Message: fmt.Sprintf("%s needs a room connection", msg.Type),
		})
		return
	}

	room, ok := s.registry.Get(c.room)
	if !ok {
		c.pushError(fmt.Errorf("%w: %s", rooms.ErrUnknownRoom, c.room))
		return
	}

	switch msg.Type {
	case rooms.TypeStartReq:
		res, out, err := room.RequestStart(c.playerID, msg.StartUUID)
		if err != nil {
			c.pushError(err)
			return
		}
		s.deliver(c.room, out)
		s.afterStart(room, res)

	case rooms.TypeStartAck:
		res, out, err := room.AcknowledgeStart(c.playerID, msg.StartUUID.OrElse(""))
		if err != nil {
			c.pushError(err)
			return
		}
		s.deliver(c.room, out)
		s.afterStart(room, res)

	case rooms.TypeMoveReq:
		player := msg.PlayerID
		if player == "" {
			player = c.playerID
		}
		if player != c.playerID {
			c.push(rooms.MoveReject{Type: rooms.TypeMoveRej, Reason: rooms.ReasonWrongPlayer, Got: msg.Seq})
			return
		}

		_, out, err := room.ApplyMove(player, msg.Seq, msg.Payload)
		s.deliver(c.room, out)

		var seqErr *rooms.SequenceError
		if err != nil && !errors.As(err, &seqErr) {
			c.pushError(err)
		}

	case rooms.TypeResyncReq:
		out, err := room.Resync(c.playerID, msg.Since)
		if err != nil {
			c.pushError(err)
			return
		}
		s.deliver(c.room, out)

	case rooms.TypeEndReq:
		ended, out, err := room.EndGame(c.playerID)
		if err != nil {
			c.pushError(err)
			return
		}
		s.deliver(c.room, out)
		s.events.RoomEvent(RoomEvent{Room: c.room, Kind: EventEnded, StartUUID: ended.StartUUID, At: s.clock.Now()})
		s.pushRoomList(ended.Info)

	case rooms.TypeLeave:
		s.forget(c)

		rec, out, err := room.Leave(c.playerID)
		if err != nil {
			c.pushError(err)
			c.close()
			return
		}
		c.log.Info().Msg("participant left")

		s.deliver(c.room, out)
		s.afterRecovery(room, rec)
		s.pushRoomList(rec.Info)
		c.close()

	default:
		c.push(rooms.ErrorMessage{
			Type:    rooms.TypeError,
			Code:    "unknown_type",
			Message: fmt.Sprintf("unknown message type %q", msg.Type),
		})
	}
}

func (s *Server) afterStart(room *rooms.Room, res rooms.StartResult) {
	if res.Action == rooms.ActionResendStartCnf {
		return
	}

	now := s.clock.Now()
	if res.Restarted {
		s.events.RoomEvent(RoomEvent{Room: room.Name(), Kind: EventRestarted, StartUUID: res.StartUUID, At: now})
	}
	if res.Started {
		s.events.RoomEvent(RoomEvent{Room: room.Name(), Kind: EventStarted, StartUUID: res.StartUUID, Players: res.Players, At: now})
	}
	if res.Restarted || res.Started || res.Action == rooms.ActionBeginStartHandshake {
		s.pushRoomList(res.Info)
	}
}

func (s *Server) afterRecovery(room *rooms.Room, rec rooms.Recovery) {
	now := s.clock.Now()
	if rec.Reset {
		s.events.RoomEvent(RoomEvent{Room: room.Name(), Kind: EventReset, At: now})
	}
	if rec.Started {
		ev := RoomEvent{Room: room.Name(), Kind: EventStarted, At: now}
		if game := rec.Info.Game; game != nil {
			ev.StartUUID = game.StartUUID
			ev.Players = game.Players
		}
		s.events.RoomEvent(ev)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.srv.detach(c)
		c.close()
	}()

	pongWait := 2 * c.srv.cfg.pingInterval

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		msg, err := rooms.DecodeClientMessage(data)
		if err != nil {
			c.push(rooms.ErrorMessage{Type: rooms.TypeError, Code: "bad_message", Message: err.Error()})
			continue
		}

		c.srv.dispatch(c, msg)

		select {
		case <-c.done:
			return
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := c.srv.clock.NewTicker(c.srv.cfg.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				c.log.Debug().Err(err).Msg("websocket write failed")
				c.close()
				return
			}

			c.drained()

		case <-ticker.Chan():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			c.flush()

			_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

			return
		}
	}
}

// flush writes whatever is still queued when the connection is closing.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(msg any) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}
