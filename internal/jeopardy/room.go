package jeopardy

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/kestrelgames/puzzlehall/internal/protocol"
	"github.com/kestrelgames/puzzlehall/internal/scheduler"
	"github.com/kestrelgames/puzzlehall/internal/store"
)

const maxPlayers = 4

// roomIDAlphabet excludes I/O/0/1, per spec.md §4.4, to avoid characters
// easily confused when read aloud or typed.
const roomIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func keyOf(cat, row int) string {
	return fmt.Sprintf("%d,%d", cat, row)
}

func newRoomID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	out := make([]byte, 4)
	for i, v := range b {
		out[i] = roomIDAlphabet[int(v)%len(roomIDAlphabet)]
	}
	return string(out)
}

// CreateRoom mints a room id, loads a random unplayed game, and seats the
// creator as host and controlling player.
func (reg *Registry) CreateRoom(ctx context.Context, st store.Store, tr Broadcaster, hostSocket, hostName string) (*Room, error) {
	game, err := st.GetRandomJeopardyGame(ctx)
	if err != nil {
		return nil, err
	}

	var id string
	for {
		id = newRoomID()
		if _, exists := reg.rooms.Get(id); !exists {
			break
		}
	}

	room := &Room{
		RoomID:            id,
		GameID:            game.GameID,
		Game:              game,
		Phase:             PhaseLobby,
		CurrentRound:      RoundJeopardy,
		UsedClues:         make(map[string]struct{}),
		players:           make(map[string]*Player),
		HostSocket:        hostSocket,
		ControllingPlayer: hostSocket,
		buzzedPlayers:     make(map[string]struct{}),
		sched:             scheduler.New(),
		store:             st,
		transport:         tr,
	}
	room.seatPlayer(hostSocket, hostName, false, "")
	reg.rooms.Set(id, room)
	return room, nil
}

func (rm *Room) seatPlayer(socketID, name string, isAI bool, difficulty string) *Player {
	taken := make(map[string]struct{}, len(rm.players))
	for _, p := range rm.players {
		taken[p.Color] = struct{}{}
	}
	color := palette[len(rm.players)%len(palette)]
	for _, c := range palette {
		if _, used := taken[c]; !used {
			color = c
			break
		}
	}
	p := &Player{SocketID: socketID, Name: name, Color: color, IsAI: isAI, AIDifficulty: difficulty}
	rm.players[socketID] = p
	rm.playerOrder = append(rm.playerOrder, socketID)
	rm.emptyAt = nil
	return p
}

// JoinRoom seats a new human player, up to four total.
func (rm *Room) JoinRoom(socketID, name string) (*Player, error) {
	rm.mu.Lock()
	if len(rm.players) >= maxPlayers {
		rm.mu.Unlock()
		return nil, fmt.Errorf("room %s is full: %d/%d", rm.RoomID, len(rm.players), maxPlayers)
	}
	p := rm.seatPlayer(socketID, name, false, "")
	rm.mu.Unlock()

	rm.broadcastRoomState()
	rm.transport.EmitToRoom(rm.RoomID, protocol.EvtPlayerJoined, map[string]any{
		"socketId": socketID, "name": name, "color": p.Color,
	})
	return p, nil
}

// LeaveRoom removes a player, reassigning host/controller and resolving any
// in-flight answer phase per spec.md §4.4's disconnect handling.
func (rm *Room) LeaveRoom(ctx context.Context, socketID string) {
	rm.mu.Lock()
	if _, ok := rm.players[socketID]; !ok {
		rm.mu.Unlock()
		return
	}
	delete(rm.players, socketID)
	for i, id := range rm.playerOrder {
		if id == socketID {
			rm.playerOrder = append(rm.playerOrder[:i], rm.playerOrder[i+1:]...)
			break
		}
	}
	delete(rm.buzzedPlayers, socketID)

	empty := len(rm.players) == 0
	wasAnswering := rm.AnsweringPlayer == socketID
	phase := rm.Phase

	if rm.HostSocket == socketID && len(rm.playerOrder) > 0 {
		rm.HostSocket = rm.playerOrder[0]
	}
	if rm.ControllingPlayer == socketID && len(rm.playerOrder) > 0 {
		rm.ControllingPlayer = rm.playerOrder[0]
	}
	if empty {
		now := time.Now()
		rm.emptyAt = &now
	}
	rm.mu.Unlock()

	if empty {
		rm.sched.CancelAll()
		return
	}

	rm.transport.EmitToRoom(rm.RoomID, protocol.EvtPlayerLeft, map[string]any{"socketId": socketID})
	rm.broadcastRoomState()

	if !wasAnswering {
		return
	}
	switch phase {
	case PhasePlayerAnswering:
		rm.mu.Lock()
		rm.buzzedPlayers[socketID] = struct{}{}
		rm.mu.Unlock()
		rm.afterWrongAnswer(ctx)
	case PhaseDailyDoubleAnswer:
		rm.toSelectingClue(ctx)
	}
}

// AddCPU seats a synthetic opponent at the given difficulty.
func (rm *Room) AddCPU(difficulty string) *Player {
	rm.mu.Lock()
	if len(rm.players) >= maxPlayers {
		rm.mu.Unlock()
		return nil
	}
	name := fmt.Sprintf("CPU-%s-%d", difficulty, len(rm.players)+1)
	p := rm.seatPlayer("cpu-"+name, name, true, difficulty)
	rm.mu.Unlock()

	rm.broadcastRoomState()
	return p
}

// RemoveCPU evicts a synthetic opponent.
func (rm *Room) RemoveCPU(ctx context.Context, socketID string) {
	rm.LeaveRoom(ctx, socketID)
}

func (rm *Room) broadcastRoomState() {
	rm.mu.RLock()
	snap := rm.snapshotLocked()
	rm.mu.RUnlock()
	rm.transport.EmitToRoom(rm.RoomID, protocol.EvtTRoomState, snap)
}

// snapshotLocked must be called with rm.mu held.
func (rm *Room) snapshotLocked() map[string]any {
	players := make([]map[string]any, 0, len(rm.players))
	for _, id := range rm.playerOrder {
		p := rm.players[id]
		players = append(players, map[string]any{
			"socketId": p.SocketID, "name": p.Name, "color": p.Color,
			"score": p.Score, "isAI": p.IsAI,
		})
	}
	return map[string]any{
		"roomId":            rm.RoomID,
		"gameId":            rm.GameID,
		"phase":             rm.Phase,
		"round":             rm.CurrentRound,
		"players":           players,
		"hostSocket":        rm.HostSocket,
		"controllingPlayer": rm.ControllingPlayer,
	}
}

// Snapshot returns a room-state view for a newly joined socket.
func (rm *Room) Snapshot() map[string]any {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.snapshotLocked()
}

func (rm *Room) scoresPayload() map[string]any {
	scores := make(map[string]int, len(rm.players))
	for id, p := range rm.players {
		scores[id] = p.Score
	}
	return map[string]any{"scores": scores}
}

func (rm *Room) broadcastScores() {
	rm.mu.RLock()
	payload := rm.scoresPayload()
	rm.mu.RUnlock()
	rm.transport.EmitToRoom(rm.RoomID, protocol.EvtScoresUpdate, payload)
}
