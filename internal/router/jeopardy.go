package router

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/kestrelgames/puzzlehall/internal/jeopardy"
	"github.com/kestrelgames/puzzlehall/internal/protocol"
	"github.com/kestrelgames/puzzlehall/internal/store"
)

// JeopardyRouter binds inbound trivia events to the right room, tracking
// which room id each socket has joined.
type JeopardyRouter struct {
	registry *jeopardy.Registry
	store    store.Store
	hub      Hub

	mu         sync.Mutex
	socketRoom map[string]string
}

// NewJeopardyRouter wires a registry, store, and transport hub into a
// router ready to bind to a transport.Hub's OnEvent.
func NewJeopardyRouter(reg *jeopardy.Registry, st store.Store, hub Hub) *JeopardyRouter {
	return &JeopardyRouter{
		registry:   reg,
		store:      st,
		hub:        hub,
		socketRoom: make(map[string]string),
	}
}

func (r *JeopardyRouter) roomIDOf(socketID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.socketRoom[socketID]
	return id, ok
}

func (r *JeopardyRouter) setRoomID(socketID, roomID string) {
	r.mu.Lock()
	r.socketRoom[socketID] = roomID
	r.mu.Unlock()
}

func (r *JeopardyRouter) clearRoomID(socketID string) {
	r.mu.Lock()
	delete(r.socketRoom, socketID)
	r.mu.Unlock()
}

func (r *JeopardyRouter) roomFor(socketID string) (*jeopardy.Room, string, bool) {
	roomID, ok := r.roomIDOf(socketID)
	if !ok {
		return nil, "", false
	}
	room, ok := r.registry.Get(roomID)
	if !ok {
		return nil, roomID, false
	}
	return room, roomID, true
}

// Handle processes one decoded trivia event. It is a no-op for event names
// it doesn't recognize.
func (r *JeopardyRouter) Handle(ctx context.Context, socketID, event string, data []byte) {
	switch event {
	case protocol.InCreateRoom:
		r.handleCreateRoom(ctx, socketID, data)
	case protocol.InJoinRoom:
		r.handleJoinRoom(ctx, socketID, data)
	case protocol.InLeaveRoom:
		r.handleLeaveRoom(ctx, socketID)
	case protocol.InStartGame:
		if room, _, ok := r.roomFor(socketID); ok {
			room.StartGame(ctx, socketID)
		}
	case protocol.InChangeGame:
		r.handleChangeGame(ctx, socketID, data)
	case protocol.InRandomGame:
		if room, _, ok := r.roomFor(socketID); ok {
			if err := room.RandomGame(ctx, socketID); err != nil {
				log.Printf("[JeopardyRouter] socket=%s: random game: %v", socketID, err)
			}
		}
	case protocol.InSelectClue:
		r.handleSelectClue(ctx, socketID, data)
	case protocol.InBuzzIn:
		if room, _, ok := r.roomFor(socketID); ok {
			room.BuzzIn(ctx, socketID)
		}
	case protocol.InSubmitAnswer:
		r.handleSubmitAnswer(ctx, socketID, data)
	case protocol.InDailyDoubleWager:
		r.handleDailyDoubleWager(ctx, socketID, data)
	case protocol.InFinalWager:
		r.handleFinalWager(ctx, socketID, data)
	case protocol.InFinalAnswer:
		r.handleFinalAnswer(ctx, socketID, data)
	case protocol.InAddCPU:
		r.handleAddCPU(socketID, data)
	case protocol.InRemoveCPU:
		r.handleRemoveCPU(ctx, socketID, data)
	}
}

// HandleDisconnect runs the same teardown an explicit leave-room message
// would, for a socket whose underlying connection just dropped.
func (r *JeopardyRouter) HandleDisconnect(ctx context.Context, socketID string) {
	r.handleLeaveRoom(ctx, socketID)
}

type createRoomPayload struct {
	HostName string `json:"hostName"`
}

func (r *JeopardyRouter) handleCreateRoom(ctx context.Context, socketID string, data []byte) {
	var p createRoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	hostName := clampName(p.HostName)
	if hostName == "" {
		return
	}
	room, err := r.registry.CreateRoom(ctx, r.store, r.hub, socketID, hostName)
	if err != nil {
		log.Printf("[JeopardyRouter] socket=%s: create room: %v", socketID, err)
		return
	}
	r.hub.Join(socketID, room.RoomID)
	r.setRoomID(socketID, room.RoomID)
	r.hub.EmitToSocket(socketID, protocol.EvtTRoomState, room.Snapshot())
}

type joinRoomPayload struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

func (r *JeopardyRouter) handleJoinRoom(ctx context.Context, socketID string, data []byte) {
	var p joinRoomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		return
	}
	name := clampName(p.Name)
	if name == "" {
		return
	}
	room, ok := r.registry.Get(p.RoomID)
	if !ok {
		return
	}
	if _, err := room.JoinRoom(socketID, name); err != nil {
		log.Printf("[JeopardyRouter] socket=%s: join room %s: %v", socketID, p.RoomID, err)
		return
	}
	r.hub.Join(socketID, p.RoomID)
	r.setRoomID(socketID, p.RoomID)
}

func (r *JeopardyRouter) handleLeaveRoom(ctx context.Context, socketID string) {
	room, roomID, ok := r.roomFor(socketID)
	if !ok {
		return
	}
	room.LeaveRoom(ctx, socketID)
	r.hub.Leave(socketID, roomID)
	r.clearRoomID(socketID)
}

type changeGamePayload struct {
	GameID string `json:"gameId"`
}

func (r *JeopardyRouter) handleChangeGame(ctx context.Context, socketID string, data []byte) {
	var p changeGamePayload
	if err := json.Unmarshal(data, &p); err != nil || p.GameID == "" {
		return
	}
	room, _, ok := r.roomFor(socketID)
	if !ok {
		return
	}
	if err := room.ChangeGame(ctx, socketID, p.GameID); err != nil {
		log.Printf("[JeopardyRouter] socket=%s: change game: %v", socketID, err)
	}
}

type selectCluePayload struct {
	Cat int `json:"cat"`
	Row int `json:"row"`
}

func (r *JeopardyRouter) handleSelectClue(ctx context.Context, socketID string, data []byte) {
	var p selectCluePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	room, _, ok := r.roomFor(socketID)
	if !ok {
		return
	}
	room.SelectClue(ctx, socketID, p.Cat, p.Row)
}

type submitAnswerPayload struct {
	Answer string `json:"answer"`
}

func (r *JeopardyRouter) handleSubmitAnswer(ctx context.Context, socketID string, data []byte) {
	var p submitAnswerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	room, _, ok := r.roomFor(socketID)
	if !ok {
		return
	}
	room.SubmitAnswer(ctx, socketID, p.Answer)
}

type wagerPayload struct {
	Wager int `json:"wager"`
}

func (r *JeopardyRouter) handleDailyDoubleWager(ctx context.Context, socketID string, data []byte) {
	var p wagerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	room, _, ok := r.roomFor(socketID)
	if !ok {
		return
	}
	room.SubmitDailyDoubleWager(ctx, socketID, p.Wager)
}

func (r *JeopardyRouter) handleFinalWager(ctx context.Context, socketID string, data []byte) {
	var p wagerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	room, _, ok := r.roomFor(socketID)
	if !ok {
		return
	}
	room.FinalWager(ctx, socketID, p.Wager)
}

func (r *JeopardyRouter) handleFinalAnswer(ctx context.Context, socketID string, data []byte) {
	var p submitAnswerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	room, _, ok := r.roomFor(socketID)
	if !ok {
		return
	}
	room.FinalAnswer(ctx, socketID, p.Answer)
}

type addCPUPayload struct {
	Difficulty string `json:"difficulty"`
}

func (r *JeopardyRouter) handleAddCPU(socketID string, data []byte) {
	var p addCPUPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	room, _, ok := r.roomFor(socketID)
	if !ok {
		return
	}
	difficulty := p.Difficulty
	switch difficulty {
	case "easy", "medium", "hard":
	default:
		difficulty = "medium"
	}
	room.AddCPU(difficulty)
}

type removeCPUPayload struct {
	SocketID string `json:"socketId"`
}

func (r *JeopardyRouter) handleRemoveCPU(ctx context.Context, socketID string, data []byte) {
	var p removeCPUPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SocketID == "" {
		return
	}
	room, _, ok := r.roomFor(socketID)
	if !ok {
		return
	}
	room.RemoveCPU(ctx, p.SocketID)
}
