package router

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kestrelgames/puzzlehall/internal/crossword"
	"github.com/kestrelgames/puzzlehall/internal/protocol"
	"github.com/kestrelgames/puzzlehall/internal/puzzle"
	"github.com/kestrelgames/puzzlehall/internal/store"
)

type hubEvent struct {
	kind     string
	socketID string
	room     string
	event    string
}

type fakeHub struct {
	events []hubEvent
	joined map[string]string
}

func newFakeHub() *fakeHub {
	return &fakeHub{joined: make(map[string]string)}
}

func (h *fakeHub) Join(socketID, room string) {
	h.joined[socketID] = room
	h.events = append(h.events, hubEvent{kind: "join", socketID: socketID, room: room})
}

func (h *fakeHub) Leave(socketID, room string) {
	delete(h.joined, socketID)
	h.events = append(h.events, hubEvent{kind: "leave", socketID: socketID, room: room})
}

func (h *fakeHub) EmitToRoom(room, event string, data any) {
	h.events = append(h.events, hubEvent{kind: "room", room: room, event: event})
}

func (h *fakeHub) EmitToRoomExcept(room, event string, data any, exclude string) {
	h.events = append(h.events, hubEvent{kind: "room-except", room: room, event: event})
}

func (h *fakeHub) EmitToSocket(socketID, event string, data any) {
	h.events = append(h.events, hubEvent{kind: "socket", socketID: socketID, event: event})
}

func (h *fakeHub) has(kind, event string) bool {
	for _, e := range h.events {
		if e.kind == kind && e.event == event {
			return true
		}
	}
	return false
}

func testCrosswordPuzzle() *puzzle.Puzzle {
	p := &puzzle.Puzzle{
		Date:       "2026-08-06",
		Dimensions: puzzle.Dimensions{Rows: 1, Cols: 3},
		Grid:       []string{"CAT"},
	}
	p.Clues.Across = []puzzle.Clue{{Number: 1, Row: 0, Col: 0, Clue: "c1", Answer: "CAT"}}
	return p
}

func newCrosswordTestRouter() (*CrosswordRouter, *fakeHub, *store.Memory) {
	mem := store.NewMemory()
	mem.SeedPuzzle(testCrosswordPuzzle())
	hub := newFakeHub()
	r := NewCrosswordRouter(crossword.NewRegistry(), mem, hub, nil)
	return r, hub, mem
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestCrosswordRouter_JoinPuzzleCreatesRoomAndJoinsHub(t *testing.T) {
	r, hub, _ := newCrosswordTestRouter()
	payload := mustJSON(t, map[string]any{"date": "2026-08-06", "userName": "Alice"})

	r.Handle(context.Background(), "sock-1", protocol.InJoinPuzzle, payload)

	if hub.joined["sock-1"] != "2026-08-06" {
		t.Errorf("joined = %q, want 2026-08-06", hub.joined["sock-1"])
	}
	room, ok := r.registry.Get("2026-08-06")
	if !ok {
		t.Fatalf("expected the room to have been created")
	}
	members, _ := room.Snapshot()["members"].([]map[string]any)
	found := false
	for _, m := range members {
		if m["socketId"] == "sock-1" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected sock-1 to be seated as a member")
	}
}

func TestCrosswordRouter_JoinPuzzleBlankNameIsNoop(t *testing.T) {
	r, hub, _ := newCrosswordTestRouter()
	payload := mustJSON(t, map[string]any{"date": "2026-08-06", "userName": "   "})

	r.Handle(context.Background(), "sock-1", protocol.InJoinPuzzle, payload)

	if _, ok := r.registry.Get("2026-08-06"); ok {
		t.Errorf("a blank name should never create a room")
	}
	if len(hub.events) != 0 {
		t.Errorf("expected no hub activity for a rejected join")
	}
}

func TestCrosswordRouter_CellUpdateRequiresPriorJoin(t *testing.T) {
	r, _, _ := newCrosswordTestRouter()
	payload := mustJSON(t, map[string]any{"row": 0, "col": 0, "letter": "C"})

	r.Handle(context.Background(), "sock-1", protocol.InCellUpdate, payload)

	if _, ok := r.registry.Get("2026-08-06"); ok {
		t.Errorf("a cell-update from an unjoined socket should not create a room")
	}
}

func TestCrosswordRouter_CellUpdateAfterJoinReachesRoom(t *testing.T) {
	r, _, _ := newCrosswordTestRouter()
	joinPayload := mustJSON(t, map[string]any{"date": "2026-08-06", "userName": "Alice"})
	r.Handle(context.Background(), "sock-1", protocol.InJoinPuzzle, joinPayload)

	cellPayload := mustJSON(t, map[string]any{"row": 0, "col": 0, "letter": "C"})
	r.Handle(context.Background(), "sock-1", protocol.InCellUpdate, cellPayload)

	room, _ := r.registry.Get("2026-08-06")
	grid, _ := room.Snapshot()["sharedGrid"].(map[string]string)
	if grid["0,0"] != "C" {
		t.Errorf("sharedGrid[0,0] = %q, want C", grid["0,0"])
	}
}

func TestCrosswordRouter_LeavePuzzleClearsSocketBinding(t *testing.T) {
	r, hub, _ := newCrosswordTestRouter()
	joinPayload := mustJSON(t, map[string]any{"date": "2026-08-06", "userName": "Alice"})
	r.Handle(context.Background(), "sock-1", protocol.InJoinPuzzle, joinPayload)

	r.Handle(context.Background(), "sock-1", protocol.InLeavePuzzle, nil)

	if _, ok := r.dateOf("sock-1"); ok {
		t.Errorf("expected the socket-to-date binding to be cleared on leave")
	}
	if _, stillJoined := hub.joined["sock-1"]; stillJoined {
		t.Errorf("expected the hub to be told to leave the room")
	}
}

func TestCrosswordRouter_UnknownEventIsNoop(t *testing.T) {
	r, hub, _ := newCrosswordTestRouter()
	r.Handle(context.Background(), "sock-1", "not-a-real-event", []byte(`{}`))

	if len(hub.events) != 0 {
		t.Errorf("expected an unrecognized event to produce no hub activity")
	}
}
