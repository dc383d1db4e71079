package router

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/kestrelgames/puzzlehall/internal/crossword"
	"github.com/kestrelgames/puzzlehall/internal/protocol"
	"github.com/kestrelgames/puzzlehall/internal/store"
)

// Hub is the subset of transport.Hub the crossword router drives. Its
// method set is a superset of crossword.Broadcaster, so a Hub value can be
// passed anywhere that interface is expected.
type Hub interface {
	Join(socketID, room string)
	Leave(socketID, room string)
	EmitToRoom(room, event string, data any)
	EmitToRoomExcept(room, event string, data any, exclude string)
	EmitToSocket(socketID, event string, data any)
}

// CrosswordRouter binds inbound crossword events to the right room,
// tracking which puzzle date each socket has joined.
type CrosswordRouter struct {
	registry *crossword.Registry
	store    store.Store
	hub      Hub
	progress crossword.ProgressListener

	mu         sync.Mutex
	socketDate map[string]string
}

// NewCrosswordRouter wires a registry, store, transport hub, and progress
// listener into a router ready to bind to a transport.Hub's OnEvent.
func NewCrosswordRouter(reg *crossword.Registry, st store.Store, hub Hub, progress crossword.ProgressListener) *CrosswordRouter {
	return &CrosswordRouter{
		registry:   reg,
		store:      st,
		hub:        hub,
		progress:   progress,
		socketDate: make(map[string]string),
	}
}

func (r *CrosswordRouter) dateOf(socketID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	date, ok := r.socketDate[socketID]
	return date, ok
}

func (r *CrosswordRouter) setDate(socketID, date string) {
	r.mu.Lock()
	r.socketDate[socketID] = date
	r.mu.Unlock()
}

func (r *CrosswordRouter) clearDate(socketID string) {
	r.mu.Lock()
	delete(r.socketDate, socketID)
	r.mu.Unlock()
}

func (r *CrosswordRouter) roomFor(socketID string) (*crossword.Room, string, bool) {
	date, ok := r.dateOf(socketID)
	if !ok {
		return nil, "", false
	}
	room, ok := r.registry.Get(date)
	if !ok {
		return nil, date, false
	}
	return room, date, true
}

// Handle processes one decoded crossword event. It is a no-op for event
// names it doesn't recognize, so it is safe to call on every inbound frame
// before trying the trivia router.
func (r *CrosswordRouter) Handle(ctx context.Context, socketID, event string, data []byte) {
	switch event {
	case protocol.InJoinPuzzle:
		r.handleJoin(ctx, socketID, data)
	case protocol.InLeavePuzzle:
		r.handleLeave(ctx, socketID)
	case protocol.InCellUpdate:
		r.handleCellUpdate(ctx, socketID, data)
	case protocol.InCursorMove:
		r.handleCursorMove(socketID, data)
	case protocol.InHintVote:
		if room, _, ok := r.roomFor(socketID); ok {
			room.HintVote(ctx, socketID)
		}
	case protocol.InHintAvail:
		if room, _, ok := r.roomFor(socketID); ok {
			room.HintAvailable()
		}
	case protocol.InPausePuzzle:
		if room, _, ok := r.roomFor(socketID); ok {
			room.Pause(socketID)
		}
	case protocol.InResumePuzzle:
		if room, _, ok := r.roomFor(socketID); ok {
			room.Resume(socketID)
		}
	case protocol.InClearPuzzle:
		if room, _, ok := r.roomFor(socketID); ok {
			room.ClearPuzzle(ctx)
		}
	case protocol.InAddAI, protocol.InStartAI:
		r.handleAddBot(ctx, socketID, data)
	case protocol.InRemoveAI:
		r.handleRemoveBot(ctx, socketID, data)
	case protocol.InGetAIBots:
		if room, _, ok := r.roomFor(socketID); ok {
			room.SendBotList(socketID)
		}
	}
}

// HandleDisconnect runs the same teardown an explicit leave-puzzle message
// would, for a socket whose underlying connection just dropped.
func (r *CrosswordRouter) HandleDisconnect(ctx context.Context, socketID string) {
	r.handleLeave(ctx, socketID)
}

type joinPuzzlePayload struct {
	Date     string `json:"date"`
	UserName string `json:"userName"`
	Color    string `json:"color"`
}

func (r *CrosswordRouter) handleJoin(ctx context.Context, socketID string, data []byte) {
	var p joinPuzzlePayload
	if err := json.Unmarshal(data, &p); err != nil || p.Date == "" {
		return
	}
	userName := clampName(p.UserName)
	if userName == "" {
		return
	}
	room, err := r.registry.GetOrCreate(ctx, p.Date, r.store, r.hub, r.progress)
	if err != nil {
		log.Printf("[CrosswordRouter] date=%s: load puzzle: %v", p.Date, err)
		return
	}
	r.hub.Join(socketID, p.Date)
	r.setDate(socketID, p.Date)
	room.Join(ctx, socketID, userName, p.Color, false)
}

func (r *CrosswordRouter) handleLeave(ctx context.Context, socketID string) {
	room, date, ok := r.roomFor(socketID)
	if !ok {
		return
	}
	room.Leave(ctx, socketID)
	r.hub.Leave(socketID, date)
	r.clearDate(socketID)
}

type cellUpdatePayload struct {
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Letter string `json:"letter"`
}

func (r *CrosswordRouter) handleCellUpdate(ctx context.Context, socketID string, data []byte) {
	var p cellUpdatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	room, _, ok := r.roomFor(socketID)
	if !ok {
		return
	}
	if p.Row < 0 || p.Row >= room.Puzzle.Dimensions.Rows || p.Col < 0 || p.Col >= room.Puzzle.Dimensions.Cols {
		return
	}
	room.CellUpdate(ctx, socketID, p.Row, p.Col, p.Letter)
}

type cursorMovePayload struct {
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	Direction string `json:"direction"`
}

func (r *CrosswordRouter) handleCursorMove(socketID string, data []byte) {
	var p cursorMovePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	room, _, ok := r.roomFor(socketID)
	if !ok {
		return
	}
	room.CursorMove(socketID, p.Row, p.Col, p.Direction)
}

type addBotPayload struct {
	UserName   string `json:"userName"`
	Difficulty string `json:"difficulty"`
}

func (r *CrosswordRouter) handleAddBot(ctx context.Context, socketID string, data []byte) {
	var p addBotPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	room, _, ok := r.roomFor(socketID)
	if !ok {
		return
	}
	userName := clampName(p.UserName)
	if userName == "" {
		userName = "Bot"
	}
	room.AddBot(ctx, userName, parseDifficulty(p.Difficulty))
}

type removeBotPayload struct {
	BotID string `json:"botId"`
}

func (r *CrosswordRouter) handleRemoveBot(ctx context.Context, socketID string, data []byte) {
	var p removeBotPayload
	if err := json.Unmarshal(data, &p); err != nil || p.BotID == "" {
		return
	}
	room, _, ok := r.roomFor(socketID)
	if !ok {
		return
	}
	room.RemoveBot(ctx, p.BotID)
}

func parseDifficulty(s string) crossword.Difficulty {
	switch s {
	case "easy":
		return crossword.Easy
	case "std-":
		return crossword.StdMinus
	case "std+":
		return crossword.StdPlus
	case "expert":
		return crossword.Expert
	default:
		return crossword.Std
	}
}
