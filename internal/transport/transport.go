// Package transport is the namespaced publish/subscribe layer over
// client-bound sockets: join/leave a room, emit to a room or a single
// socket, and dispatch inbound events. It generalizes the teacher's
// SafeBroadcastToRoom / SafeWriteJSON pattern (a write-mutex per connection,
// a snapshot-then-send broadcast) to many named rooms instead of one room
// struct per connection.
package transport

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/kestrelgames/puzzlehall/internal/protocol"
)

// Socket wraps one client connection. gorilla/websocket forbids concurrent
// writers on the same connection, so every write goes through mu, the same
// guard the teacher puts on internal.Player.
type Socket struct {
	ID   string
	conn *websocket.Conn
	mu   sync.Mutex
}

// WriteJSON sends msg as this socket's next frame.
func (s *Socket) WriteJSON(msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(msg)
}

// Close closes the underlying connection.
func (s *Socket) Close() error {
	return s.conn.Close()
}

// Handler is invoked for every inbound event on a socket, after the
// envelope has been decoded but before its Data payload is.
type Handler func(socketID, room, event string, data []byte)

// Hub is the concrete Transport: it tracks which sockets have joined which
// rooms and fans broadcasts out to them.
type Hub struct {
	mu          sync.RWMutex
	sockets     map[string]*Socket
	roomMembers map[string]map[string]struct{} // room -> socket IDs
	socketRooms map[string]map[string]struct{} // socket -> rooms joined

	handlersMu sync.RWMutex
	handlers   []Handler
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{
		sockets:     make(map[string]*Socket),
		roomMembers: make(map[string]map[string]struct{}),
		socketRooms: make(map[string]map[string]struct{}),
	}
}

// Register adds a new socket to the hub, ungrouped, and returns it.
func (h *Hub) Register(id string, conn *websocket.Conn) *Socket {
	s := &Socket{ID: id, conn: conn}
	h.mu.Lock()
	h.sockets[id] = s
	h.socketRooms[id] = make(map[string]struct{})
	h.mu.Unlock()
	return s
}

// OnEvent registers a handler invoked for every decoded inbound message. Handlers
// run in the goroutine reading the socket; a handler that blocks stalls only
// that socket's read loop.
func (h *Hub) OnEvent(fn Handler) {
	h.handlersMu.Lock()
	h.handlers = append(h.handlers, fn)
	h.handlersMu.Unlock()
}

func (h *Hub) dispatch(socketID, room, event string, data []byte) {
	h.handlersMu.RLock()
	handlers := make([]Handler, len(h.handlers))
	copy(handlers, h.handlers)
	h.handlersMu.RUnlock()
	for _, fn := range handlers {
		fn(socketID, room, event, data)
	}
}

// Join adds socketID to room's membership.
func (h *Hub) Join(socketID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.roomMembers[room] == nil {
		h.roomMembers[room] = make(map[string]struct{})
	}
	h.roomMembers[room][socketID] = struct{}{}
	if h.socketRooms[socketID] == nil {
		h.socketRooms[socketID] = make(map[string]struct{})
	}
	h.socketRooms[socketID][room] = struct{}{}
}

// Leave removes socketID from room's membership.
func (h *Hub) Leave(socketID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.roomMembers[room]; ok {
		delete(members, socketID)
		if len(members) == 0 {
			delete(h.roomMembers, room)
		}
	}
	if rooms, ok := h.socketRooms[socketID]; ok {
		delete(rooms, room)
	}
}

// Disconnect removes socketID from the hub entirely, leaving every room it
// had joined. Returns the rooms it was a member of, for the caller to run
// room-level departure logic against.
func (h *Hub) Disconnect(socketID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms := make([]string, 0, len(h.socketRooms[socketID]))
	for room := range h.socketRooms[socketID] {
		rooms = append(rooms, room)
		if members, ok := h.roomMembers[room]; ok {
			delete(members, socketID)
			if len(members) == 0 {
				delete(h.roomMembers, room)
			}
		}
	}
	delete(h.socketRooms, socketID)
	delete(h.sockets, socketID)
	return rooms
}

// EmitToRoom broadcasts msg to every socket currently joined to room.
func (h *Hub) EmitToRoom(room, event string, data any) {
	h.emitToRoomExcept(room, event, data, "")
}

// EmitToRoomExcept broadcasts to every member of room except excludeSocketID.
func (h *Hub) EmitToRoomExcept(room, event string, data any, excludeSocketID string) {
	h.emitToRoomExcept(room, event, data, excludeSocketID)
}

func (h *Hub) emitToRoomExcept(room, event string, data any, exclude string) {
	h.mu.RLock()
	members := h.roomMembers[room]
	targets := make([]*Socket, 0, len(members))
	for id := range members {
		if id == exclude {
			continue
		}
		if s, ok := h.sockets[id]; ok {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	msg := protocol.Message[any]{Type: event, Data: data}
	sent := 0
	for _, s := range targets {
		if err := s.WriteJSON(msg); err != nil {
			log.Printf("[Transport] room=%s event=%s socket=%s: write failed: %v", room, event, s.ID, err)
			continue
		}
		sent++
	}
	log.Printf("[Transport] room=%s event=%s: sent to %d/%d sockets", room, event, sent, len(targets))
}

// EmitToSocket sends a single event directly to one socket, if it is still
// connected. Bots and other virtual members have no entry in h.sockets, so
// this is silently a no-op for them.
func (h *Hub) EmitToSocket(socketID, event string, data any) {
	h.mu.RLock()
	s, ok := h.sockets[socketID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := s.WriteJSON(protocol.Message[any]{Type: event, Data: data}); err != nil {
		log.Printf("[Transport] socket=%s event=%s: write failed: %v", socketID, event, err)
	}
}

// CloseAll closes every connected socket, used during process shutdown.
// Each closed connection makes its ReadLoop's ReadMessage return an error,
// which runs that socket's own disconnect cleanup and lets its goroutine
// exit, rather than leaving read loops blocked forever on a server that's
// already gone.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	socks := make([]*Socket, 0, len(h.sockets))
	for _, s := range h.sockets {
		socks = append(socks, s)
	}
	h.mu.RUnlock()
	for _, s := range socks {
		_ = s.Close()
	}
}

// RoomCount reports how many sockets are currently joined to room.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.roomMembers[room])
}

// Stats is a snapshot of hub-wide membership, used by the /stats debug route.
type Stats struct {
	Sockets int `json:"sockets"`
	Rooms   int `json:"rooms"`
}

// Stats returns the current socket and room counts.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{Sockets: len(h.sockets), Rooms: len(h.roomMembers)}
}

// ReadLoop decodes frames from sock until the connection errors or closes,
// dispatching each to the registered handlers. It mirrors the teacher's
// handleMessages, except that it has no cleanup of its own: it returns on the
// first read error and leaves disconnect cleanup to its caller. One malformed
// frame is logged and skipped rather than killing the loop.
func ReadLoop(h *Hub, sock *Socket, room string) {
	for {
		_, raw, err := sock.conn.ReadMessage()
		if err != nil {
			log.Printf("[Transport] socket=%s: read error: %v", sock.ID, err)
			return
		}
		env, err := decodeEnvelope(raw)
		if err != nil {
			log.Printf("[Transport] socket=%s: malformed envelope: %v", sock.ID, err)
			continue
		}
		h.dispatch(sock.ID, room, env.Type, env.Data)
	}
}
