/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import (
	"encoding/json"
	"errors"
)

// CheckMove validates a move against the game and sequence tracker without
// changing either. Sequence and turn are checked together; on success it
// returns the player slot that moved.
func CheckMove(game *GameState, tracker *SequenceTracker, policy TurnPolicy, connected func(string) bool, playerID string, seq uint64) (int, error) {
	switch {
	case game == nil:
		return 0, &SequenceError{Reason: ReasonNoGame, Got: seq}
	case !game.Started:
		return 0, &SequenceError{Reason: ReasonNotStarted, Got: seq}
	case !game.hasPlayer(playerID):
		return 0, &SequenceError{Reason: ReasonNotAPlayer, Got: seq}
	}

	next := game.MoveSeq + 1

	if seq <= tracker.Last(playerID) || seq < next {
		return 0, &SequenceError{Reason: ReasonStaleSeq, Expected: next, Got: seq}
	}
	if seq > next {
		return 0, &SequenceError{Reason: ReasonOutOfOrder, Expected: next, Got: seq}
	}

	slot := policy.Expected(game.Players, game.TurnIndex, connected)
	if game.Players[slot] != playerID {
		return 0, &SequenceError{Reason: ReasonWrongTurn, Expected: next, Got: seq}
	}

	return slot, nil
}

// MoveResult describes an accepted move.
type MoveResult struct {
	Move      Move
	TurnIndex int
	MoveSeq   uint64
}

// ApplyMove validates and applies a move from playerID. A rejected move is
// answered with move_rej to the sender and leaves the room untouched.
func (r *Room) ApplyMove(playerID string, seq uint64, payload json.RawMessage) (MoveResult, []Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.participantLocked(playerID) == nil {
		return MoveResult{}, nil, ErrUnknownParticipant
	}

	slot, err := CheckMove(r.game, r.tracker, r.cfg.policy, r.isConnectedLocked, playerID, seq)
	if err != nil {
		var se *SequenceError
		if !errors.As(err, &se) {
			return MoveResult{}, nil, err
		}

		r.log.Debug().
			Str("participant", playerID).
			Uint64("seq", seq).
			Str("reason", string(se.Reason)).
			Msg("move rejected")

		return MoveResult{}, []Outbound{{
			To:  []string{playerID},
			Msg: MoveReject{Type: TypeMoveRej, Reason: se.Reason, Expected: se.Expected, Got: seq},
		}}, err
	}

	g := r.game
	move := Move{
		Seq:      seq,
		PlayerID: playerID,
		Payload:  payload,
		At:       r.cfg.clock.Now(),
	}

	g.MoveSeq = seq
	g.TurnIndex = r.cfg.policy.Next(g.Players, slot, r.isConnectedLocked)
	g.recent.push(move)
	r.tracker.Record(playerID, seq)
	r.touchLocked()

	res := MoveResult{Move: move, TurnIndex: g.TurnIndex, MoveSeq: g.MoveSeq}

	out := []Outbound{{
		To:  []string{playerID},
		Msg: MoveAck{Type: TypeMoveAck, Seq: seq, TurnIndex: g.TurnIndex},
	}}
	if others := r.connectedExceptLocked(playerID); len(others) > 0 {
		out = append(out, Outbound{
			To:  others,
			Msg: MoveApplied{Type: TypeMoveApplied, Move: move, TurnIndex: g.TurnIndex},
		})
	}

	return res, out, nil
}
