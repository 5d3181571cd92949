package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/wire"
)

// StatusMirror records presence transitions in an external store. Optional; the registry works identically without
// one.
type StatusMirror interface {
	Record(ctx context.Context, chatID, userID uuid.UUID, status wire.UserStatus)
}

// MemberSession is the volatile per-(room, connection) state.
type MemberSession struct {
	Status       wire.UserStatus
	LastActivity time.Time
}

// room groups a broadcast channel with the member sessions currently attached to it. Created when the first session
// joins, destroyed when the last one leaves.
type room struct {
	channel *broadcastChannel
	members map[uuid.UUID]*MemberSession
}

// DirectEndpoint is the volatile per-user state backing out-of-room pushes. One exists per user holding at least one
// live connection.
type DirectEndpoint struct {
	UserID   uuid.UUID
	Username string
	channel  *broadcastChannel
	refs     int
}

// Registry is the in-memory map of live rooms and connections. Rooms sit behind one mutex; the connection and
// username indexes sit behind a read-write mutex and are only ever mutated together, so they stay consistent with
// each other.
type Registry struct {
	roomsMu sync.Mutex
	rooms   map[uuid.UUID]*room

	connMu      sync.RWMutex
	connections map[uuid.UUID]*DirectEndpoint
	usernames   map[string]uuid.UUID

	mirror StatusMirror
	log    zerolog.Logger
}

// NewRegistry creates an empty connection registry. mirror may be nil.
func NewRegistry(mirror StatusMirror, logger zerolog.Logger) *Registry {
	return &Registry{
		rooms:       make(map[uuid.UUID]*room),
		connections: make(map[uuid.UUID]*DirectEndpoint),
		usernames:   make(map[string]uuid.UUID),
		mirror:      mirror,
		log:         logger,
	}
}

// JoinRoom attaches the user to the room, creating the room and its broadcast channel on first use, and returns a
// fresh subscription. Joining again with the same user replaces the member session but leaves any previously issued
// subscription valid until its holder closes it.
func (r *Registry) JoinRoom(roomID, userID uuid.UUID) *Subscription {
	r.roomsMu.Lock()
	defer r.roomsMu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{
			channel: newBroadcastChannel(),
			members: make(map[uuid.UUID]*MemberSession),
		}
		r.rooms[roomID] = rm
	}

	rm.members[userID] = &MemberSession{Status: wire.StatusOnline, LastActivity: time.Now()}
	return rm.channel.subscribe()
}

// LeaveRoom detaches the user from the room. The last member leaving destroys the room; lingering subscribers observe
// the closed signal on their next Recv.
func (r *Registry) LeaveRoom(roomID, userID uuid.UUID) {
	r.roomsMu.Lock()
	defer r.roomsMu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(rm.members, userID)
	if len(rm.members) == 0 {
		delete(r.rooms, roomID)
		rm.channel.closeAll()
	}
}

// SeedRoom opportunistically inserts a member session for a user who just gained membership, so the live room's
// member view reflects them before their first connection. A no-op when the room has no live sessions.
func (r *Registry) SeedRoom(roomID, userID uuid.UUID) {
	r.roomsMu.Lock()
	defer r.roomsMu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return
	}
	if _, present := rm.members[userID]; !present {
		rm.members[userID] = &MemberSession{Status: wire.StatusJoined, LastActivity: time.Now()}
	}
}

// BroadcastToRoom publishes a frame to every subscriber of the room. Publishing to an inactive room is a no-op;
// delivery is best-effort by design since the durable copy already exists.
func (r *Registry) BroadcastToRoom(roomID, senderID uuid.UUID, frame wire.Frame) {
	r.roomsMu.Lock()
	rm, ok := r.rooms[roomID]
	r.roomsMu.Unlock()
	if !ok {
		r.log.Debug().Str("room_id", roomID.String()).Msg("Broadcast to inactive room dropped")
		return
	}

	rm.channel.publish(frame)
}

// UpdateUserStatus mutates the member session's presence and refreshes its activity timestamp. The optional mirror
// records the transition externally.
func (r *Registry) UpdateUserStatus(ctx context.Context, roomID, userID uuid.UUID, status wire.UserStatus) {
	r.roomsMu.Lock()
	if rm, ok := r.rooms[roomID]; ok {
		if ms, ok := rm.members[userID]; ok {
			ms.Status = status
			ms.LastActivity = time.Now()
		}
	}
	r.roomsMu.Unlock()

	if r.mirror != nil {
		r.mirror.Record(ctx, roomID, userID, status)
	}
}

// RegisterConnection creates (or reuses) the user's direct endpoint and returns a subscription to it. Each live
// connection holds one subscription; the endpoint survives until the last one unregisters.
func (r *Registry) RegisterConnection(userID uuid.UUID, username string) *Subscription {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	ep, ok := r.connections[userID]
	if !ok {
		ep = &DirectEndpoint{
			UserID:   userID,
			Username: username,
			channel:  newBroadcastChannel(),
		}
		r.connections[userID] = ep
		r.usernames[username] = userID
	}
	ep.refs++
	return ep.channel.subscribe()
}

// UnregisterConnection releases one connection's hold on the user's direct endpoint, destroying the endpoint and its
// username index entry when the last connection is gone.
func (r *Registry) UnregisterConnection(userID uuid.UUID) {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	ep, ok := r.connections[userID]
	if !ok {
		return
	}
	ep.refs--
	if ep.refs > 0 {
		return
	}
	delete(r.connections, userID)
	delete(r.usernames, ep.Username)
	ep.channel.closeAll()
}

// SendDirect publishes a frame to the user's direct channel. Returns ErrUserOffline when no endpoint exists.
func (r *Registry) SendDirect(userID uuid.UUID, frame wire.Frame) error {
	r.connMu.RLock()
	ep, ok := r.connections[userID]
	r.connMu.RUnlock()
	if !ok {
		return ErrUserOffline
	}

	ep.channel.publish(frame)
	return nil
}

// LookupOnline resolves a username to its live direct endpoint, if any. The returned snapshot carries no channel
// handle; use SendDirect for delivery.
func (r *Registry) LookupOnline(username string) (uuid.UUID, bool) {
	r.connMu.RLock()
	defer r.connMu.RUnlock()
	id, ok := r.usernames[username]
	return id, ok
}

// RoomMemberCount reports the number of live member sessions in a room. Zero means the room is inactive.
func (r *Registry) RoomMemberCount(roomID uuid.UUID) int {
	r.roomsMu.Lock()
	defer r.roomsMu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return 0
	}
	return len(rm.members)
}
