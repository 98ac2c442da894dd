/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import "time"

// Participant is a connection's identity within a room.
//
// Connected follows transport liveness. Ready follows the transport's ability
// to take more pushes right now (a full send queue clears it).
type Participant struct {
	ID        string    `json:"id"`
	Connected bool      `json:"connected"`
	Ready     bool      `json:"ready"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Reachable reports whether unsolicited pushes should be sent to p.
func (p Participant) Reachable() bool {
	return p.Connected && p.Ready
}
