/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

// ResetOrder returns the turn and sequence bookkeeping of a started game to
// its baseline. Started and StartUUID are left alone. It reports whether
// anything changed, so a second call on a reset game does nothing.
func ResetOrder(game *GameState, tracker *SequenceTracker) bool {
	if game == nil || !game.Started {
		return false
	}

	changed := game.TurnIndex != 0 ||
		game.MoveSeq != 0 ||
		len(game.recent.moves) > 0 ||
		tracker.Len() > 0

	game.TurnIndex = 0
	game.MoveSeq = 0
	game.recent.reset()
	tracker.Reset()

	return changed
}

// Recovery reports what losing a participant did to its room.
type Recovery struct {
	// Reset is set when the last connected participant left a started game
	// and its turn order was returned to the baseline.
	Reset bool

	// HandshakeAbandoned is set when a pending start lost every participant
	// it was waiting on.
	HandshakeAbandoned bool

	// Started is set when the lost participant was the last outstanding
	// acknowledgement of a pending start.
	Started bool

	// Info is the room after recovery.
	Info RoomInfo
}

// OnParticipantLost marks id as disconnected and recovers the room state
// around it. Calling it for a participant that is already disconnected is
// harmless.
func (r *Room) OnParticipantLost(id string) (Recovery, []Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, out, err := r.loseLocked(id)
	if err != nil {
		return rec, nil, err
	}

	if others := r.connectedIDsLocked(); len(others) > 0 {
		out = append(out, Outbound{To: others, Msg: ParticipantEvent{Type: TypeParticipantLost, ID: id}})
	}
	rec.Info = r.infoLocked()

	return rec, out, nil
}

func (r *Room) loseLocked(id string) (Recovery, []Outbound, error) {
	var rec Recovery

	p := r.participantLocked(id)
	if p == nil {
		return rec, nil, ErrUnknownParticipant
	}
	p.Connected = false
	r.touchLocked()

	var out []Outbound

	if h := r.handshake; h != nil {
		h.Drop(id)

		if len(h.Expected()) == 0 {
			r.log.Info().Str("start_uuid", h.StartUUID).Msg("pending start abandoned")
			r.handshake = nil
			rec.HandshakeAbandoned = true
		} else {
			var res StartResult
			out = r.completeHandshakeLocked(&res)
			rec.Started = res.Started
		}
	}

	if r.connectedCountLocked() == 0 && ResetOrder(r.game, r.tracker) {
		rec.Reset = true
		r.log.Info().Str("start_uuid", r.game.StartUUID).Msg("last participant lost, turn order reset")
	}

	return rec, out, nil
}
