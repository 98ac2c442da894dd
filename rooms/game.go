/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import (
	"encoding/json"
	"slices"
	"time"
)

// Move is one accepted move. Payload is opaque to the server.
type Move struct {
	Seq      uint64          `json:"seq"`
	PlayerID string          `json:"playerId"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	At       time.Time       `json:"at"`
}

// moveBuffer keeps the most recent moves in acceptance order, evicting the
// oldest once full.
type moveBuffer struct {
	moves []Move
	size  int
}

func newMoveBuffer(size int) *moveBuffer {
	return &moveBuffer{
		moves: make([]Move, 0, max(size, 0)),
		size:  size,
	}
}

func (b *moveBuffer) push(m Move) {
	if b.size <= 0 {
		return
	}
	if len(b.moves) == b.size {
		copy(b.moves, b.moves[1:])
		b.moves = b.moves[:len(b.moves)-1]
	}
	b.moves = append(b.moves, m)
}

func (b *moveBuffer) reset() {
	b.moves = b.moves[:0]
}

func (b *moveBuffer) list() []Move {
	return slices.Clone(b.moves)
}

// GameState is the single running game of a room.
type GameState struct {
	Started   bool
	Players   []string
	TurnIndex int
	MoveSeq   uint64
	StartUUID string

	recent *moveBuffer
}

func newGameState(startUUID string, players []string, history int) *GameState {
	return &GameState{
		Started:   true,
		Players:   slices.Clone(players),
		StartUUID: startUUID,
		recent:    newMoveBuffer(history),
	}
}

// RecentMoves returns a copy of the resync buffer, oldest first.
func (g *GameState) RecentMoves() []Move {
	return g.recent.list()
}

func (g *GameState) hasPlayer(id string) bool {
	return slices.Contains(g.Players, id)
}

// movesSince returns the buffered moves after seq. complete is false when
// some of those moves were already evicted from the buffer.
func (g *GameState) movesSince(seq uint64) (moves []Move, complete bool) {
	if seq >= g.MoveSeq {
		return []Move{}, true
	}

	buffered := g.recent.moves
	if len(buffered) == 0 || buffered[0].Seq > seq+1 {
		complete = false
	} else {
		complete = true
	}

	moves = make([]Move, 0, len(buffered))
	for _, m := range buffered {
		if m.Seq > seq {
			moves = append(moves, m)
		}
	}

	return moves, complete
}

func (g *GameState) snapshot() *GameSnapshot {
	return &GameSnapshot{
		StartUUID:   g.StartUUID,
		Players:     slices.Clone(g.Players),
		TurnIndex:   g.TurnIndex,
		MoveSeq:     g.MoveSeq,
		RecentMoves: g.RecentMoves(),
	}
}

// GameSnapshot is a copy of a GameState, safe to use without the room lock.
type GameSnapshot struct {
	StartUUID   string   `json:"startUuid"`
	Players     []string `json:"players"`
	TurnIndex   int      `json:"turnIndex"`
	MoveSeq     uint64   `json:"moveSeq"`
	RecentMoves []Move   `json:"recentMoves"`
}

// SequenceTracker records the last accepted sequence number per player.
type SequenceTracker struct {
	last map[string]uint64
}

func newSequenceTracker() *SequenceTracker {
	return &SequenceTracker{last: make(map[string]uint64)}
}

func (t *SequenceTracker) Last(player string) uint64 {
	return t.last[player]
}

func (t *SequenceTracker) Record(player string, seq uint64) {
	t.last[player] = seq
}

func (t *SequenceTracker) Reset() {
	clear(t.last)
}

func (t *SequenceTracker) Len() int {
	return len(t.last)
}
