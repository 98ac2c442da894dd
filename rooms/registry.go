/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const (
	DefaultMoveHistory = 64
	MaxRoomNameLength  = 64
)

type config struct {
	history         int
	maxParticipants int
	policy          TurnPolicy
	clock           clockwork.Clock
	logger          zerolog.Logger
}

// Option configures a Registry and every room it creates.
type Option func(*config)

// WithMoveHistory sets how many accepted moves each game keeps for resync.
func WithMoveHistory(n int) Option {
	return func(c *config) { c.history = n }
}

// WithMaxParticipants caps room membership. Zero means unlimited.
func WithMaxParticipants(n int) Option {
	return func(c *config) { c.maxParticipants = n }
}

func WithTurnPolicy(p TurnPolicy) Option {
	return func(c *config) {
		if p != nil {
			c.policy = p
		}
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *config) { c.clock = clock }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Registry owns every room, keyed by name. The registry lock is never held
// while waiting on anything but a single room lock, and no operation holds
// two room locks at once.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	cfg   *config
}

func NewRegistry(opts ...Option) *Registry {
	cfg := &config{
		history: DefaultMoveHistory,
		policy:  RoundRobin{},
		clock:   clockwork.NewRealClock(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Registry{
		rooms: make(map[string]*Room),
		cfg:   cfg,
	}
}

func validName(name string) error {
	if name == "" || name != strings.TrimSpace(name) || utf8.RuneCountInString(name) > MaxRoomNameLength {
		return fmt.Errorf("%w: %q", ErrInvalidRoomName, name)
	}
	if strings.ContainsAny(name, "/?#") {
		return fmt.Errorf("%w: %q", ErrInvalidRoomName, name)
	}
	return nil
}

// Create adds an empty room. Names are unique.
func (reg *Registry) Create(name string) (*Room, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.rooms[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRoomExists, name)
	}

	room := newRoom(name, reg.cfg)
	reg.rooms[name] = room

	reg.cfg.logger.Info().Str("room", name).Msg("room created")

	return room, nil
}

// CreateRandom adds a room under a fresh random name.
func (reg *Registry) CreateRandom() (*Room, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		for i := range buf {
			buf[i] = letters[int(buf[i])%len(letters)]
		}

		room, err := reg.Create(string(buf))
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, ErrRoomExists) {
			return nil, err
		}
	}
}

func (reg *Registry) Get(name string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	room, ok := reg.rooms[name]
	return room, ok
}

// Ensure returns the named room, creating it when missing.
func (reg *Registry) Ensure(name string) (room *Room, created bool, err error) {
	if room, ok := reg.Get(name); ok {
		return room, false, nil
	}

	if err := validName(name); err != nil {
		return nil, false, err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if room, ok := reg.rooms[name]; ok {
		return room, false, nil
	}

	room = newRoom(name, reg.cfg)
	reg.rooms[name] = room

	reg.cfg.logger.Info().Str("room", name).Msg("room created")

	return room, true, nil
}

// Remove tears the room down. Later calls on a removed room report
// ErrUnknownRoom.
func (reg *Registry) Remove(name string) bool {
	reg.mu.Lock()
	room, ok := reg.rooms[name]
	delete(reg.rooms, name)
	reg.mu.Unlock()

	if ok {
		room.close()
		reg.cfg.logger.Info().Str("room", name).Msg("room removed")
	}

	return ok
}

// Pin exempts a room from idle reaping.
func (reg *Registry) Pin(name string) error {
	room, ok := reg.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoom, name)
	}
	room.pin()

	return nil
}

func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return len(reg.rooms)
}

func (reg *Registry) all() []*Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// Snapshot copies every room, locking one room at a time.
func (reg *Registry) Snapshot() map[string]RoomInfo {
	rooms := reg.all()

	infos := make(map[string]RoomInfo, len(rooms))
	for _, room := range rooms {
		infos[room.name] = room.Info()
	}
	return infos
}

// List returns the lobby view of every room, sorted by name.
func (reg *Registry) List() []RoomSummary {
	return summaries(reg.Snapshot())
}

func sortSummaries(list []RoomSummary) {
	slices.SortFunc(list, func(a, b RoomSummary) int {
		return strings.Compare(a.Name, b.Name)
	})
}

// Reap removes rooms that have had nobody connected for longer than idle.
// Pinned rooms are kept.
func (reg *Registry) Reap(idle time.Duration) []string {
	cutoff := reg.cfg.clock.Now().Add(-idle)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	var reaped []string
	for name, room := range reg.rooms {
		if room.reapable(cutoff) {
			delete(reg.rooms, name)
			reaped = append(reaped, name)
		}
	}
	slices.Sort(reaped)

	for _, name := range reaped {
		reg.cfg.logger.Info().Str("room", name).Dur("idle", idle).Msg("reaped idle room")
	}

	return reaped
}

// Run reaps idle rooms every idle/2 until ctx is done. onReap, if set, gets
// the names removed by each pass that removed anything.
func (reg *Registry) Run(ctx context.Context, idle time.Duration, onReap func([]string)) {
	if idle <= 0 {
		return
	}

	ticker := reg.cfg.clock.NewTicker(idle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if reaped := reg.Reap(idle); len(reaped) > 0 && onReap != nil {
				onReap(reaped)
			}
		}
	}
}
