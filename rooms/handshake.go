/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import (
	"slices"

	"github.com/google/uuid"
)

// Phase is the start-handshake state of a room:
//
//	idle → pending → started
//	         ↑__________|   (restart)
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePending Phase = "pending"
	PhaseStarted Phase = "started"
)

func (r *Room) phaseLocked() Phase {
	switch {
	case r.game != nil && r.game.Started:
		return PhaseStarted
	case r.handshake != nil:
		return PhasePending
	default:
		return PhaseIdle
	}
}

// StartAction is how a start request is resolved.
type StartAction int

const (
	// ActionBeginStartHandshake discards any game or pending start and
	// begins collecting acknowledgements for a new one.
	ActionBeginStartHandshake StartAction = iota + 1

	// ActionResendStartCnf repeats start_cnf for the running game.
	ActionResendStartCnf

	// ActionAckPending counts a repeated request for the pending game as the
	// sender's acknowledgement.
	ActionAckPending
)

func (a StartAction) String() string {
	switch a {
	case ActionBeginStartHandshake:
		return "begin_start_handshake"
	case ActionResendStartCnf:
		return "resend_start_cnf"
	case ActionAckPending:
		return "ack_pending_handshake"
	default:
		return "unknown"
	}
}

// DecideStart resolves a start request against the current game and pending
// handshake. A request only counts as a retry when it carries the current
// uuid; an absent uuid always restarts.
func DecideStart(game *GameState, pending *HandshakeState, startUUID Optional[string]) StartAction {
	id, ok := startUUID.Get()

	if game != nil && game.Started {
		if ok && id == game.StartUUID {
			return ActionResendStartCnf
		}
		return ActionBeginStartHandshake
	}

	if pending != nil && ok && id == pending.StartUUID {
		return ActionAckPending
	}

	return ActionBeginStartHandshake
}

// HandshakeState exists only while a start is in flight.
type HandshakeState struct {
	StartUUID   string
	RequestedBy string

	expected []string
	acks     map[string]bool
}

func newHandshake(startUUID, requestedBy string, expected []string) *HandshakeState {
	return &HandshakeState{
		StartUUID:   startUUID,
		RequestedBy: requestedBy,
		expected:    slices.Clone(expected),
		acks:        make(map[string]bool, len(expected)),
	}
}

// Ack records id's acknowledgement. It reports false when id was not
// expected (it connected after the handshake began).
func (h *HandshakeState) Ack(id string) bool {
	if !slices.Contains(h.expected, id) {
		return false
	}
	h.acks[id] = true
	return true
}

// Drop stops waiting for id.
func (h *HandshakeState) Drop(id string) {
	h.expected = slices.DeleteFunc(h.expected, func(e string) bool { return e == id })
	delete(h.acks, id)
}

func (h *HandshakeState) Expected() []string {
	return slices.Clone(h.expected)
}

// Acked returns the acknowledged participants in expected order.
func (h *HandshakeState) Acked() []string {
	ids := make([]string, 0, len(h.acks))
	for _, id := range h.expected {
		if h.acks[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

func (h *HandshakeState) Complete() bool {
	return len(h.expected) > 0 && len(h.Acked()) == len(h.expected)
}

// StartResult reports what a start request or acknowledgement did.
type StartResult struct {
	Action    StartAction
	StartUUID string
	Restarted bool     // a running game was discarded
	Started   bool     // the handshake completed
	Players   []string // set when Started

	// Info is the room as the request left it.
	Info RoomInfo
}

// RequestStart handles start_req from id.
func (r *Room) RequestStart(id string, startUUID Optional[string]) (StartResult, []Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.participantLocked(id) == nil {
		return StartResult{}, nil, ErrUnknownParticipant
	}
	r.touchLocked()

	res := StartResult{Action: DecideStart(r.game, r.handshake, startUUID)}

	switch res.Action {
	case ActionResendStartCnf:
		res.StartUUID = r.game.StartUUID
		r.log.Debug().Str("participant", id).Str("start_uuid", res.StartUUID).Msg("resending start confirmation")
		res.Info = r.infoLocked()

		return res, []Outbound{{To: []string{id}, Msg: r.startConfirmLocked()}}, nil

	case ActionAckPending:
		res.StartUUID = r.handshake.StartUUID
		r.handshake.Ack(id)
		out := r.completeHandshakeLocked(&res)
		res.Info = r.infoLocked()

		return res, out, nil
	}

	if r.game != nil {
		res.Restarted = true
		r.log.Info().
			Str("participant", id).
			Str("previous_uuid", r.game.StartUUID).
			Msg("restarting game")
	} else if r.handshake != nil {
		r.log.Debug().
			Str("participant", id).
			Str("previous_uuid", r.handshake.StartUUID).
			Msg("replacing pending start")
	}
	r.resetGameLocked()

	res.StartUUID = startUUID.OrElse("")
	if res.StartUUID == "" {
		res.StartUUID = uuid.NewString()
	}

	r.handshake = newHandshake(res.StartUUID, id, r.connectedIDsLocked())
	r.handshake.Ack(id)

	r.log.Info().
		Str("participant", id).
		Str("start_uuid", res.StartUUID).
		Int("expected", len(r.handshake.expected)).
		Msg("start handshake begun")

	var out []Outbound
	if others := r.connectedExceptLocked(id); len(others) > 0 {
		out = append(out, Outbound{To: others, Msg: StartPrompt{
			Type:        TypeStartPrompt,
			StartUUID:   res.StartUUID,
			RequestedBy: id,
		}})
	}
	out = append(out, r.completeHandshakeLocked(&res)...)
	res.Info = r.infoLocked()

	return res, out, nil
}

// AcknowledgeStart handles start_ack from id.
func (r *Room) AcknowledgeStart(id, startUUID string) (StartResult, []Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.participantLocked(id) == nil {
		return StartResult{}, nil, ErrUnknownParticipant
	}

	if r.handshake == nil {
		// A late ack for the game that already started gets the confirmation again.
		if r.game != nil && r.game.Started && r.game.StartUUID == startUUID {
			res := StartResult{Action: ActionResendStartCnf, StartUUID: startUUID, Info: r.infoLocked()}
			return res, []Outbound{{To: []string{id}, Msg: r.startConfirmLocked()}}, nil
		}
		return StartResult{}, nil, ErrNoHandshake
	}

	if startUUID != r.handshake.StartUUID {
		return StartResult{}, nil, ErrStaleAck
	}

	r.touchLocked()
	res := StartResult{Action: ActionAckPending, StartUUID: startUUID}
	if !r.handshake.Ack(id) {
		res.Info = r.infoLocked()
		return res, nil, nil
	}

	out := r.completeHandshakeLocked(&res)
	res.Info = r.infoLocked()

	return res, out, nil
}

// completeHandshakeLocked starts the game once every expected participant
// has acknowledged.
func (r *Room) completeHandshakeLocked(res *StartResult) []Outbound {
	h := r.handshake
	if h == nil || !h.Complete() {
		return nil
	}

	r.game = newGameState(h.StartUUID, h.Acked(), r.cfg.history)
	r.handshake = nil
	r.tracker.Reset()

	res.Started = true
	res.StartUUID = r.game.StartUUID
	res.Players = slices.Clone(r.game.Players)

	r.log.Info().
		Str("start_uuid", r.game.StartUUID).
		Strs("players", r.game.Players).
		Msg("game started")

	return []Outbound{{To: r.connectedIDsLocked(), Msg: r.startConfirmLocked()}}
}

func (r *Room) startConfirmLocked() StartConfirm {
	return StartConfirm{
		Type:      TypeStartCnf,
		StartUUID: r.game.StartUUID,
		Players:   slices.Clone(r.game.Players),
	}
}
