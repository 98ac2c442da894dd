/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import "encoding/json"

// Message types coming from clients
const (
	TypeStartReq    = "start_req"
	TypeStartAck    = "start_ack"
	TypeMoveReq     = "move_req"
	TypeResyncReq   = "resync_req"
	TypeEndReq      = "end_req"
	TypeLeave       = "leave"
	TypeRoomListReq = "roomlist_req"
)

// Message types sent to clients
const (
	TypeStartPrompt       = "start_prompt"
	TypeStartCnf          = "start_cnf"
	TypeMoveAck           = "move_ack"
	TypeMoveRej           = "move_rej"
	TypeMoveApplied       = "move_applied"
	TypeResync            = "resync"
	TypeRoomState         = "room_state"
	TypeParticipantJoined = "participant_joined"
	TypeParticipantLost   = "participant_lost"
	TypeParticipantLeft   = "participant_left"
	TypeGameEnded         = "game_ended"
	TypeRoomList          = "roomlist"
	TypeRoomListPush      = "roomlist_push"
	TypeError             = "error"
)

// ClientMessage is the union of every inbound message.
type ClientMessage struct {
	Type      string           `json:"type"`
	StartUUID Optional[string] `json:"startUuid"`          // start_req / start_ack
	PlayerID  string           `json:"playerId,omitempty"` // move_req
	Seq       uint64           `json:"seq,omitempty"`      // move_req
	Payload   json.RawMessage  `json:"payload,omitempty"`  // move_req
	Since     uint64           `json:"since,omitempty"`    // resync_req
}

// DecodeClientMessage parses one inbound frame.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, err
	}
	msg.StartUUID = NonEmpty(msg.StartUUID)

	return msg, nil
}

// Outbound is a message for a set of participants of one room. It is built
// while the room is locked and delivered after the lock is released.
type Outbound struct {
	To  []string
	Msg any
}

// StartPrompt asks connected participants to acknowledge a pending game.
type StartPrompt struct {
	Type        string `json:"type"`
	StartUUID   string `json:"startUuid"`
	RequestedBy string `json:"requestedBy"`
}

// StartConfirm announces (or re-announces) the running game.
type StartConfirm struct {
	Type      string   `json:"type"`
	StartUUID string   `json:"startUuid"`
	Players   []string `json:"players"`
}

type MoveAck struct {
	Type      string `json:"type"`
	Seq       uint64 `json:"seq"`
	TurnIndex int    `json:"turnIndex"`
}

type MoveReject struct {
	Type     string       `json:"type"`
	Reason   RejectReason `json:"reason"`
	Expected uint64       `json:"expected,omitempty"`
	Got      uint64       `json:"got"`
}

type MoveApplied struct {
	Type      string `json:"type"`
	Move      Move   `json:"move"`
	TurnIndex int    `json:"turnIndex"`
}

// ResyncMessage replays buffered moves. Complete is false when the buffer
// no longer covers the request and the client must rebuild from room_state.
type ResyncMessage struct {
	Type      string `json:"type"`
	Moves     []Move `json:"moves"`
	MoveSeq   uint64 `json:"moveSeq"`
	TurnIndex int    `json:"turnIndex"`
	Complete  bool   `json:"complete"`
}

// RoomState is sent to a participant when it joins or reconnects.
type RoomState struct {
	Type         string        `json:"type"`
	Room         string        `json:"room"`
	You          string        `json:"you"`
	Phase        Phase         `json:"phase"`
	Participants []Participant `json:"participants"`
	Game         *GameSnapshot `json:"game,omitempty"`
	PendingUUID  string        `json:"pendingUuid,omitempty"`
}

type ParticipantEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type GameEnded struct {
	Type      string `json:"type"`
	StartUUID string `json:"startUuid"`
	EndedBy   string `json:"endedBy"`
}

// RoomList answers a roomlist_req.
type RoomList struct {
	Type  string        `json:"type"`
	Rooms []RoomSummary `json:"rooms"`
}

// RoomListPush is an unsolicited room-list update.
type RoomListPush struct {
	Type     string           `json:"type"`
	RoomName Optional[string] `json:"roomName"`
	Rooms    []RoomSummary    `json:"rooms"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorMessage builds the client-facing form of err.
func NewErrorMessage(err error) ErrorMessage {
	return ErrorMessage{
		Type:    TypeError,
		Code:    ErrorCode(err),
		Message: err.Error(),
	}
}
