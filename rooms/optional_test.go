/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptional(t *testing.T) {
	v, ok := Some("abc").Get()
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	_, ok = None[string]().Get()
	assert.False(t, ok)

	var zero Optional[int]
	assert.False(t, zero.Present())
	assert.Equal(t, 7, zero.OrElse(7))
	assert.Equal(t, 3, Some(3).OrElse(7))
}

func TestOptional_JSON(t *testing.T) {
	data, err := json.Marshal(RoomListPush{Type: TypeRoomListPush, RoomName: None[string]()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"roomlist_push","roomName":null,"rooms":null}`, string(data))

	data, err = json.Marshal(RoomListPush{Type: TypeRoomListPush, RoomName: Some("table")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"roomlist_push","roomName":"table","rooms":null}`, string(data))
}

func TestDecodeClientMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType string
		wantUUID Optional[string]
	}{
		{"uuid present", `{"type":"start_req","startUuid":"abc-123"}`, TypeStartReq, Some("abc-123")},
		{"uuid missing", `{"type":"start_req"}`, TypeStartReq, None[string]()},
		{"uuid null", `{"type":"start_req","startUuid":null}`, TypeStartReq, None[string]()},
		{"uuid empty", `{"type":"start_req","startUuid":""}`, TypeStartReq, None[string]()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeClientMessage([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, msg.Type)
			assert.Equal(t, tt.wantUUID, msg.StartUUID)
		})
	}

	msg, err := DecodeClientMessage([]byte(`{"type":"move_req","playerId":"alice","seq":4,"payload":{"card":7}}`))
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.PlayerID)
	assert.Equal(t, uint64(4), msg.Seq)
	assert.JSONEq(t, `{"card":7}`, string(msg.Payload))

	_, err = DecodeClientMessage([]byte(`{"type":`))
	assert.Error(t, err)

	_, err = DecodeClientMessage([]byte(`{"type":"start_req","startUuid":5}`))
	assert.Error(t, err)
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage(ErrRoomFull)
	assert.Equal(t, ErrorMessage{Type: TypeError, Code: "room_full", Message: "room is full"}, msg)
	assert.Equal(t, "internal", ErrorCode(assert.AnError))
	assert.Empty(t, ErrorCode(nil))
}
