/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import "fmt"

// TurnPolicy decides whose slot in the player order may move.
type TurnPolicy interface {
	// Expected returns the slot allowed to move while turn is the stored index.
	Expected(players []string, turn int, connected func(string) bool) int

	// Next returns the stored index after the player in slot has moved.
	Next(players []string, slot int, connected func(string) bool) int
}

// RoundRobin hands the turn to the next slot regardless of liveness.
type RoundRobin struct{}

func (RoundRobin) Expected(_ []string, turn int, _ func(string) bool) int {
	return turn
}

func (RoundRobin) Next(players []string, slot int, _ func(string) bool) int {
	if len(players) == 0 {
		return 0
	}
	return (slot + 1) % len(players)
}

// SkipDisconnected passes over slots whose player is not connected. When
// nobody is connected it behaves like RoundRobin.
type SkipDisconnected struct{}

func (SkipDisconnected) Expected(players []string, turn int, connected func(string) bool) int {
	n := len(players)
	if n == 0 {
		return 0
	}
	for i := 0; i < n; i++ {
		slot := (turn + i) % n
		if connected(players[slot]) {
			return slot
		}
	}
	return turn
}

func (SkipDisconnected) Next(players []string, slot int, connected func(string) bool) int {
	n := len(players)
	if n == 0 {
		return 0
	}
	for i := 1; i <= n; i++ {
		next := (slot + i) % n
		if connected(players[next]) {
			return next
		}
	}
	return (slot + 1) % n
}

// ParseTurnPolicy maps a configuration name to a policy.
func ParseTurnPolicy(name string) (TurnPolicy, error) {
	switch name {
	case "", "round-robin":
		return RoundRobin{}, nil
	case "skip-disconnected":
		return SkipDisconnected{}, nil
	default:
		return nil, fmt.Errorf("unknown turn policy %q (want round-robin or skip-disconnected)", name)
	}
}
