/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnPolicies(t *testing.T) {
	players := []string{"A", "B", "C"}
	online := func(ids ...string) func(string) bool {
		return func(id string) bool {
			for _, o := range ids {
				if o == id {
					return true
				}
			}
			return false
		}
	}

	tests := []struct {
		name         string
		policy       TurnPolicy
		connected    func(string) bool
		turn         int
		wantExpected int
		wantNext     int
	}{
		{"round robin", RoundRobin{}, online("A", "B", "C"), 1, 1, 2},
		{"round robin wraps", RoundRobin{}, online("A"), 2, 2, 0},
		{"skip keeps connected slot", SkipDisconnected{}, online("A", "B", "C"), 1, 1, 2},
		{"skip passes disconnected", SkipDisconnected{}, online("A", "C"), 1, 2, 0},
		{"skip wraps", SkipDisconnected{}, online("B"), 2, 1, 1},
		{"skip nobody connected", SkipDisconnected{}, online(), 1, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot := tt.policy.Expected(players, tt.turn, tt.connected)
			assert.Equal(t, tt.wantExpected, slot)
			assert.Equal(t, tt.wantNext, tt.policy.Next(players, slot, tt.connected))
		})
	}
}

func TestParseTurnPolicy(t *testing.T) {
	p, err := ParseTurnPolicy("")
	require.NoError(t, err)
	assert.Equal(t, RoundRobin{}, p)

	p, err = ParseTurnPolicy("skip-disconnected")
	require.NoError(t, err)
	assert.Equal(t, SkipDisconnected{}, p)

	_, err = ParseTurnPolicy("random")
	assert.Error(t, err)
}
