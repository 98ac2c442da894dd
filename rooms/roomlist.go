/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

// Targets is who receives a room-list push: every connected client, or the
// listed participants of one room.
type Targets struct {
	All bool
	IDs []string
}

func (t Targets) Empty() bool {
	return !t.All && len(t.IDs) == 0
}

// ComputeTargets decides who receives a push scoped to roomName. An absent
// name is a lobby-wide change and goes to everyone. A named room's push only
// reaches its connected and ready participants; an unknown room reaches
// nobody.
func ComputeTargets(roomName Optional[string], rooms map[string]RoomInfo) Targets {
	name, ok := roomName.Get()
	if !ok {
		return Targets{All: true}
	}

	info, ok := rooms[name]
	if !ok {
		return Targets{}
	}

	ids := make([]string, 0, len(info.Participants))
	for _, p := range info.Participants {
		if p.Reachable() {
			ids = append(ids, p.ID)
		}
	}

	return Targets{IDs: ids}
}

// PushScope is the scope of a list update caused by a change in room: its
// own participants once it has started, the whole lobby otherwise.
func PushScope(info RoomInfo) Optional[string] {
	if info.Phase == PhaseStarted {
		return Some(info.Name)
	}
	return None[string]()
}

// Broadcaster builds room-list messages from a registry. It only computes
// messages and targets; delivery belongs to the transport.
type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(reg *Registry) *Broadcaster {
	return &Broadcaster{registry: reg}
}

// Query answers roomlist_req with the full list, whatever the phase of each
// room.
func (b *Broadcaster) Query() RoomList {
	return RoomList{Type: TypeRoomList, Rooms: b.registry.List()}
}

// Push builds an update scoped to roomName.
func (b *Broadcaster) Push(roomName Optional[string]) (Targets, RoomListPush) {
	return b.push(roomName, b.registry.Snapshot())
}

// After builds the update that follows a membership or game transition. info
// is the room as that transition left it, taken under the same lock, so the
// scope and the room's own entry describe the transition even when a later
// one has already landed. A room removed since is a lobby-wide change.
func (b *Broadcaster) After(info RoomInfo) (Targets, RoomListPush) {
	infos := b.registry.Snapshot()
	if _, ok := infos[info.Name]; !ok {
		return b.push(None[string](), infos)
	}
	infos[info.Name] = info

	return b.push(PushScope(info), infos)
}

func (b *Broadcaster) push(roomName Optional[string], infos map[string]RoomInfo) (Targets, RoomListPush) {
	return ComputeTargets(roomName, infos), RoomListPush{
		Type:     TypeRoomListPush,
		RoomName: roomName,
		Rooms:    summaries(infos),
	}
}

func summaries(infos map[string]RoomInfo) []RoomSummary {
	list := make([]RoomSummary, 0, len(infos))
	for _, info := range infos {
		list = append(list, info.Summary())
	}
	sortSummaries(list)

	return list
}
