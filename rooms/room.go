/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Room is one independent consistency domain: a set of participants and at
// most one game. Every mutation happens under mu; methods return the messages
// to deliver instead of sending them, so no lock is held across a send.
type Room struct {
	name string
	cfg  *config
	log  zerolog.Logger

	mu           sync.Mutex
	participants []*Participant
	game         *GameState
	handshake    *HandshakeState
	tracker      *SequenceTracker
	pinned       bool
	closed       bool
	createdAt    time.Time
	lastActive   time.Time
}

func newRoom(name string, cfg *config) *Room {
	now := cfg.clock.Now()
	return &Room{
		name:       name,
		cfg:        cfg,
		log:        cfg.logger.With().Str("room", name).Logger(),
		tracker:    newSequenceTracker(),
		createdAt:  now,
		lastActive: now,
	}
}

func (r *Room) Name() string {
	return r.name
}

// JoinResult reports a join and the room it left behind.
type JoinResult struct {
	Rejoined bool
	Info     RoomInfo
}

// Join adds id to the room, or marks a known participant as connected again.
// The joiner gets the full room state; everyone else gets a notice.
func (r *Room) Join(id string) (JoinResult, []Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return JoinResult{}, nil, fmt.Errorf("%w: %s", ErrUnknownRoom, r.name)
	}

	var rejoined bool
	p := r.participantLocked(id)
	if p != nil {
		rejoined = true
	} else {
		if r.cfg.maxParticipants > 0 && len(r.participants) >= r.cfg.maxParticipants {
			return JoinResult{}, nil, ErrRoomFull
		}
		p = &Participant{ID: id, JoinedAt: r.cfg.clock.Now()}
		r.participants = append(r.participants, p)
	}
	p.Connected = true
	p.Ready = true
	r.touchLocked()

	r.log.Debug().Str("participant", id).Bool("rejoined", rejoined).Msg("participant connected")

	out := []Outbound{{To: []string{id}, Msg: r.stateLocked(id)}}
	if others := r.connectedExceptLocked(id); len(others) > 0 {
		out = append(out, Outbound{To: others, Msg: ParticipantEvent{Type: TypeParticipantJoined, ID: id}})
	}

	return JoinResult{Rejoined: rejoined, Info: r.infoLocked()}, out, nil
}

// Leave removes id from the room after running disconnect recovery for it.
// Player slots of a running game are kept.
func (r *Room) Leave(id string) (Recovery, []Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, out, err := r.loseLocked(id)
	if err != nil {
		return rec, nil, err
	}

	r.participants = slices.DeleteFunc(r.participants, func(p *Participant) bool {
		return p.ID == id
	})

	if others := r.connectedIDsLocked(); len(others) > 0 {
		out = append(out, Outbound{To: others, Msg: ParticipantEvent{Type: TypeParticipantLeft, ID: id}})
	}
	rec.Info = r.infoLocked()

	return rec, out, nil
}

// SetReady records whether id's connection can take more pushes.
func (r *Room) SetReady(id string, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.participantLocked(id)
	if p == nil {
		return ErrUnknownParticipant
	}
	p.Ready = ready

	return nil
}

// EndResult names the game an end request stopped.
type EndResult struct {
	StartUUID string
	Info      RoomInfo
}

// EndGame drops the running or pending game together with its handshake and
// sequence bookkeeping. Only a player of the running game, or a participant
// the pending start is waiting on, may end it.
func (r *Room) EndGame(id string) (EndResult, []Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.participantLocked(id) == nil {
		return EndResult{}, nil, ErrUnknownParticipant
	}

	var ended string
	switch {
	case r.game != nil:
		if !r.game.hasPlayer(id) {
			return EndResult{}, nil, ErrNotAPlayer
		}
		ended = r.game.StartUUID
	case r.handshake != nil:
		if !slices.Contains(r.handshake.expected, id) {
			return EndResult{}, nil, ErrNotAPlayer
		}
		ended = r.handshake.StartUUID
	default:
		return EndResult{}, nil, ErrNoGame
	}

	r.resetGameLocked()
	r.touchLocked()

	r.log.Info().Str("start_uuid", ended).Str("by", id).Msg("game ended")

	return EndResult{StartUUID: ended, Info: r.infoLocked()}, []Outbound{{
		To:  r.connectedIDsLocked(),
		Msg: GameEnded{Type: TypeGameEnded, StartUUID: ended, EndedBy: id},
	}}, nil
}

// Resync replays the buffered moves after since to id.
func (r *Room) Resync(id string, since uint64) ([]Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.participantLocked(id) == nil {
		return nil, ErrUnknownParticipant
	}
	if r.game == nil {
		return nil, ErrNoGame
	}

	moves, complete := r.game.movesSince(since)

	return []Outbound{{
		To: []string{id},
		Msg: ResyncMessage{
			Type:      TypeResync,
			Moves:     moves,
			MoveSeq:   r.game.MoveSeq,
			TurnIndex: r.game.TurnIndex,
			Complete:  complete,
		},
	}}, nil
}

// RoomInfo is a consistent copy of a room taken under its lock.
type RoomInfo struct {
	Name         string
	Phase        Phase
	Pinned       bool
	Participants []Participant
	Game         *GameSnapshot
	PendingUUID  string
	LastActive   time.Time
}

// RoomSummary is the lobby view of a room. It never names participants.
type RoomSummary struct {
	Name         string `json:"name"`
	Phase        Phase  `json:"phase"`
	Participants int    `json:"participants"`
	Connected    int    `json:"connected"`
	Pinned       bool   `json:"pinned,omitempty"`
}

func (i RoomInfo) Summary() RoomSummary {
	connected := 0
	for _, p := range i.Participants {
		if p.Connected {
			connected++
		}
	}

	return RoomSummary{
		Name:         i.Name,
		Phase:        i.Phase,
		Participants: len(i.Participants),
		Connected:    connected,
		Pinned:       i.Pinned,
	}
}

func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.infoLocked()
}

func (r *Room) infoLocked() RoomInfo {
	info := RoomInfo{
		Name:         r.name,
		Phase:        r.phaseLocked(),
		Pinned:       r.pinned,
		Participants: make([]Participant, 0, len(r.participants)),
		LastActive:   r.lastActive,
	}
	for _, p := range r.participants {
		info.Participants = append(info.Participants, *p)
	}
	if r.game != nil {
		info.Game = r.game.snapshot()
	}
	if r.handshake != nil {
		info.PendingUUID = r.handshake.StartUUID
	}

	return info
}

func (r *Room) stateLocked(you string) RoomState {
	info := r.infoLocked()
	return RoomState{
		Type:         TypeRoomState,
		Room:         r.name,
		You:          you,
		Phase:        info.Phase,
		Participants: info.Participants,
		Game:         info.Game,
		PendingUUID:  info.PendingUUID,
	}
}

// reapable reports whether the room has sat with nobody connected since
// before cutoff. A reapable room is closed in the same step.
func (r *Room) reapable(cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pinned || r.connectedCountLocked() > 0 || !r.lastActive.Before(cutoff) {
		return false
	}
	r.closed = true

	return true
}

func (r *Room) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *Room) pin() {
	r.mu.Lock()
	r.pinned = true
	r.mu.Unlock()
}

func (r *Room) participantLocked(id string) *Participant {
	for _, p := range r.participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) isConnectedLocked(id string) bool {
	p := r.participantLocked(id)
	return p != nil && p.Connected
}

func (r *Room) connectedIDsLocked() []string {
	return r.connectedExceptLocked("")
}

func (r *Room) connectedExceptLocked(skip string) []string {
	ids := make([]string, 0, len(r.participants))
	for _, p := range r.participants {
		if p.Connected && p.ID != skip {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (r *Room) connectedCountLocked() int {
	n := 0
	for _, p := range r.participants {
		if p.Connected {
			n++
		}
	}
	return n
}

func (r *Room) touchLocked() {
	r.lastActive = r.cfg.clock.Now()
}

// resetGameLocked tears down the game, its handshake and its sequence
// tracker together.
func (r *Room) resetGameLocked() {
	r.game = nil
	r.handshake = nil
	r.tracker.Reset()
}
