/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownRoom        = errors.New("unknown room")
	ErrRoomExists         = errors.New("room already exists")
	ErrRoomFull           = errors.New("room is full")
	ErrInvalidRoomName    = errors.New("invalid room name")
	ErrUnknownParticipant = errors.New("participant is not in this room")
	ErrNoHandshake        = errors.New("no game start is pending")
	ErrStaleAck           = errors.New("acknowledgement does not match the pending game")
	ErrNoGame             = errors.New("no game is running")
	ErrNotAPlayer         = errors.New("participant is not playing the current game")
)

// RejectReason says why a move was refused.
type RejectReason string

const (
	ReasonNoGame      RejectReason = "no_game"
	ReasonNotStarted  RejectReason = "not_started"
	ReasonNotAPlayer  RejectReason = "not_a_player"
	ReasonWrongPlayer RejectReason = "wrong_player"
	ReasonStaleSeq    RejectReason = "stale_seq"
	ReasonOutOfOrder  RejectReason = "out_of_order"
	ReasonWrongTurn   RejectReason = "wrong_turn"
)

// SequenceError is returned for every rejected move. Room state is unchanged
// whenever one is returned.
type SequenceError struct {
	Reason   RejectReason
	Expected uint64
	Got      uint64
}

func (e *SequenceError) Error() string {
	switch e.Reason {
	case ReasonStaleSeq, ReasonOutOfOrder:
		return fmt.Sprintf("move rejected: %s (expected seq %d, got %d)", e.Reason, e.Expected, e.Got)
	default:
		return fmt.Sprintf("move rejected: %s", e.Reason)
	}
}

// ErrorCode maps an error to the short code sent to clients.
func ErrorCode(err error) string {
	var seqErr *SequenceError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &seqErr):
		return string(seqErr.Reason)
	case errors.Is(err, ErrUnknownRoom):
		return "unknown_room"
	case errors.Is(err, ErrRoomExists):
		return "room_exists"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrInvalidRoomName):
		return "invalid_room_name"
	case errors.Is(err, ErrUnknownParticipant):
		return "unknown_participant"
	case errors.Is(err, ErrNoHandshake):
		return "no_handshake"
	case errors.Is(err, ErrStaleAck):
		return "stale_ack"
	case errors.Is(err, ErrNoGame):
		return "no_game"
	case errors.Is(err, ErrNotAPlayer):
		return "not_a_player"
	default:
		return "internal"
	}
}
