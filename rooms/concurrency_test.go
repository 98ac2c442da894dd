/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nextSeq guesses the next sequence number from an unlocked read of the room.
func nextSeq(room *Room) uint64 {
	if game := room.Info().Game; game != nil {
		return game.MoveSeq + 1
	}
	return 1
}

// assertGameInvariants checks the room under its lock.
func assertGameInvariants(t *testing.T, room *Room) {
	t.Helper()

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.game == nil {
		assert.Zero(t, room.tracker.Len())
		return
	}

	g := room.game
	assert.True(t, g.Started)
	assert.NotEmpty(t, g.StartUUID)
	assert.Nil(t, room.handshake)

	moves := g.RecentMoves()
	require.Len(t, moves, int(g.MoveSeq))
	for i, m := range moves {
		assert.Equal(t, uint64(i+1), m.Seq)
	}

	for player, last := range room.tracker.last {
		assert.True(t, g.hasPlayer(player), player)
		assert.LessOrEqual(t, last, g.MoveSeq)
	}
}

func TestRoom_ConcurrentMoves(t *testing.T) {
	players := []string{"alice", "bob", "carol"}
	room, _ := newTestRoom(t, players, WithMoveHistory(1<<16))
	startGame(t, room, "abc-123", players...)

	const target = 300

	var accepted atomic.Uint64
	var wg sync.WaitGroup
	for _, p := range players {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for accepted.Load() < target {
				_, _, err := room.ApplyMove(p, nextSeq(room), nil)
				if err == nil {
					accepted.Add(1)
					continue
				}
				var seqErr *SequenceError
				assert.True(t, errors.As(err, &seqErr), "%v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, accepted.Load(), room.Info().Game.MoveSeq)
	assertGameInvariants(t, room)
}

func TestRoom_ConcurrentStartsAndMoves(t *testing.T) {
	players := []string{"alice", "bob", "carol"}
	room, _ := newTestRoom(t, players, WithMoveHistory(1<<16))
	startGame(t, room, "abc-123", players...)

	var wg sync.WaitGroup
	for _, p := range players {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 300 {
				var err error
				switch i % 7 {
				case 0:
					_, _, err = room.RequestStart(p, Some(fmt.Sprintf("%s-%d", p, i)))
				case 1:
					if pending := room.Info().PendingUUID; pending != "" {
						_, _, err = room.AcknowledgeStart(p, pending)
					}
				default:
					_, _, err = room.ApplyMove(p, nextSeq(room), nil)
				}
				if err == nil {
					continue
				}

				var seqErr *SequenceError
				ok := errors.As(err, &seqErr) || errors.Is(err, ErrStaleAck) || errors.Is(err, ErrNoHandshake)
				assert.True(t, ok, "%v", err)
			}
		}()
	}
	wg.Wait()

	assertGameInvariants(t, room)

	// Finish whatever start is in flight, then restart over a played game.
	if pending := room.Info().PendingUUID; pending != "" {
		for _, p := range players {
			_, _, err := room.AcknowledgeStart(p, pending)
			require.NoError(t, err)
		}
	}
	require.Equal(t, PhaseStarted, room.Info().Phase)

	for room.Info().Game.MoveSeq < 3 {
		_, _, _ = room.ApplyMove(room.Info().Game.Players[room.Info().Game.TurnIndex], nextSeq(room), nil)
	}

	res, _, err := room.RequestStart("alice", Some("final"))
	require.NoError(t, err)
	assert.True(t, res.Restarted)
	assert.Zero(t, room.tracker.Len())
	assert.Nil(t, room.game)
	assertGameInvariants(t, room)
}
