package crossword

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kestrelgames/puzzlehall/internal/protocol"
	"github.com/kestrelgames/puzzlehall/internal/scheduler"
	"github.com/kestrelgames/puzzlehall/internal/store"
)

func cellKey(r, c int) string {
	return fmt.Sprintf("%d,%d", r, c)
}

// GetOrCreate returns the room for date, loading its puzzle and persisted
// state from st on first access.
func (r *Registry) GetOrCreate(ctx context.Context, date string, st store.Store, tr Broadcaster, pl ProgressListener) (*Room, error) {
	var loadErr error
	room := r.rooms.GetOrCreate(date, func() *Room {
		p, err := st.GetPuzzle(ctx, date)
		if err != nil {
			loadErr = err
			return nil
		}
		room := &Room{
			Date:        date,
			Puzzle:      p,
			members:     make(map[string]*Member),
			pauses:      make(map[string]struct{}),
			sharedGrid:  make(map[string]string),
			cellFillers: make(map[string]string),
			points:      make(map[string]int),
			guesses:     make(map[string]store.GuessStats),
			hint: HintState{
				Votes:     make(map[string]struct{}),
				HintCells: make(map[string]struct{}),
			},
			bots:      make(map[string]*botState),
			store:     st,
			transport: tr,
			progress:  pl,
			sched:     scheduler.New(),
		}
		if state, err := st.GetState(ctx, date); err == nil && state != nil {
			room.sharedGrid = state.UserGrid
			room.cellFillers = state.CellFillers
			room.points = state.Points
			room.guesses = state.Guesses
		}
		if accumulated, err := st.GetTimer(ctx, date); err == nil {
			room.timerAccumulated = accumulated
		}
		return room
	})
	if room == nil {
		r.rooms.Delete(date)
		return nil, loadErr
	}
	return room, nil
}

// Get returns the room for date, if already created.
func (r *Registry) Get(date string) (*Room, bool) {
	return r.rooms.Get(date)
}

// Delete removes the room for date from the registry.
func (r *Registry) Delete(date string) {
	r.rooms.Delete(date)
}

// idleSince reports how long the room has had zero human members, if it
// currently has none.
func (rm *Room) idleSince() (time.Time, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	if rm.emptyAt == nil {
		return time.Time{}, false
	}
	return *rm.emptyAt, true
}

// EvictIdle deletes every room that has had no human member for at least
// maxIdle, cancelling its scheduler first so no stray bot timer outlives it.
func (r *Registry) EvictIdle(maxIdle time.Duration) {
	var stale []string
	r.rooms.Range(func(date string, room *Room) {
		since, empty := room.idleSince()
		if empty && time.Since(since) >= maxIdle {
			stale = append(stale, date)
		}
	})
	for _, date := range stale {
		if room, ok := r.rooms.Get(date); ok {
			room.sched.CancelAll()
		}
		r.rooms.Delete(date)
		log.Printf("[Crossword] date=%s: evicted after %s idle", date, maxIdle)
	}
}

// CancelAll cancels every pending scheduler timer across every room, used
// during process shutdown so no pending bot step or other timer fires after the
// transport it would broadcast through is gone.
func (r *Registry) CancelAll() {
	r.rooms.Range(func(_ string, room *Room) {
		room.sched.CancelAll()
	})
}

func (rm *Room) humanCount() int {
	n := 0
	for _, m := range rm.members {
		if !m.IsBot {
			n++
		}
	}
	return n
}

// Join adds a new member to the room, assigning it a color and, for the
// first joiner, starting the solve timer.
func (rm *Room) Join(ctx context.Context, socketID, userName, color string, isBot bool) *Member {
	rm.mu.Lock()

	taken := make(map[string]struct{}, len(rm.members))
	for _, m := range rm.members {
		taken[m.Color] = struct{}{}
	}
	palette := humanPalette
	if isBot {
		palette = botPalette
	}
	if color == "" {
		color = pickColor(palette, taken)
	}

	member := &Member{
		SocketID: socketID,
		UserName: userName,
		Color:    color,
		IsBot:    isBot,
	}
	rm.members[socketID] = member
	rm.emptyAt = nil

	firstJoiner := len(rm.members) == 1
	rm.mu.Unlock()

	if firstJoiner {
		rm.startTimer()
	}

	if rm.transport != nil {
		rm.transport.EmitToRoomExcept(rm.Date, protocol.EvtUserJoined, map[string]any{
			"socketId": socketID,
			"userName": userName,
			"color":    color,
			"isBot":    isBot,
		}, socketID)
		rm.transport.EmitToSocket(socketID, protocol.EvtRoomState, rm.Snapshot())
		rm.transport.EmitToSocket(socketID, protocol.EvtTimerSync, rm.timerSnapshot())
	}
	return member
}

// Leave removes socketID from the room, handling fire expiry, timer
// stop/persist on last-human departure, and bot/hint cleanup.
func (rm *Room) Leave(ctx context.Context, socketID string) {
	rm.mu.Lock()
	member, ok := rm.members[socketID]
	if !ok {
		rm.mu.Unlock()
		return
	}
	onFire := member.Fire.OnFire
	delete(rm.members, socketID)
	delete(rm.pauses, socketID)
	humansLeft := rm.humanCount()
	rm.mu.Unlock()

	if onFire {
		rm.sched.Cancel(fireTimerName(socketID))
		rm.transport.EmitToRoom(rm.Date, protocol.EvtFireExpired, map[string]any{"socketId": socketID})
	}

	if humansLeft == 0 {
		rm.stopAndPersistTimer(ctx)
		rm.evictAllBots(ctx)
		now := time.Now()
		rm.mu.Lock()
		rm.hint.Votes = make(map[string]struct{})
		rm.emptyAt = &now
		rm.mu.Unlock()
	} else if rm.allRemainingPaused() {
		rm.stopTimer()
	}

	rm.transport.EmitToRoom(rm.Date, protocol.EvtUserLeft, map[string]any{"socketId": socketID})
	rm.transport.EmitToRoom(rm.Date, protocol.EvtRoomCount, map[string]any{"count": humansLeft})
}

func (rm *Room) allRemainingPaused() bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	for id, m := range rm.members {
		if m.IsBot {
			continue
		}
		if _, paused := rm.pauses[id]; !paused {
			return false
		}
	}
	return true
}

func (rm *Room) startTimer() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	now := time.Now()
	rm.timerStartedAt = &now
}

func (rm *Room) stopTimer() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.accumulateLocked()
}

func (rm *Room) accumulateLocked() {
	if rm.timerStartedAt != nil {
		rm.timerAccumulated += time.Since(*rm.timerStartedAt)
		rm.timerStartedAt = nil
	}
}

func (rm *Room) stopAndPersistTimer(ctx context.Context) {
	rm.mu.Lock()
	rm.accumulateLocked()
	elapsed := rm.timerAccumulated
	rm.mu.Unlock()
	if err := rm.store.SaveTimer(ctx, rm.Date, elapsed); err != nil {
		log.Printf("[CrosswordRoom] date=%s: save timer: %v", rm.Date, err)
	}
}

func (rm *Room) timerSnapshot() map[string]any {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	elapsed := rm.timerAccumulated
	if rm.timerStartedAt != nil {
		elapsed += time.Since(*rm.timerStartedAt)
	}
	return map[string]any{
		"elapsedMs": elapsed.Milliseconds(),
		"running":   rm.timerStartedAt != nil,
	}
}

// Pause moves socketID into the room's pause set and stops the timer if
// every human member is now paused.
func (rm *Room) Pause(socketID string) {
	rm.mu.Lock()
	rm.pauses[socketID] = struct{}{}
	rm.mu.Unlock()
	if rm.allRemainingPaused() {
		rm.stopTimer()
		rm.transport.EmitToRoom(rm.Date, protocol.EvtTimerSync, rm.timerSnapshot())
	}
}

// Resume removes socketID from the pause set, re-arming the timer and
// broadcasting a sync if this was the last paused member.
func (rm *Room) Resume(socketID string) {
	rm.mu.Lock()
	wasFullyPaused := rm.allRemainingPausedLocked()
	delete(rm.pauses, socketID)
	rm.mu.Unlock()
	if wasFullyPaused {
		rm.startTimer()
		rm.transport.EmitToRoom(rm.Date, protocol.EvtTimerSync, rm.timerSnapshot())
	}
}

func (rm *Room) allRemainingPausedLocked() bool {
	for id, m := range rm.members {
		if m.IsBot {
			continue
		}
		if _, paused := rm.pauses[id]; !paused {
			return false
		}
	}
	return true
}

// CursorMove updates a member's cursor position and broadcasts it to peers.
func (rm *Room) CursorMove(socketID string, row, col int, direction string) {
	rm.mu.Lock()
	m, ok := rm.members[socketID]
	if ok {
		m.CursorRow, m.CursorCol, m.Direction = row, col, direction
	}
	rm.mu.Unlock()
	if !ok {
		return
	}
	rm.transport.EmitToRoomExcept(rm.Date, protocol.EvtCursorMoved, map[string]any{
		"socketId":  socketID,
		"row":       row,
		"col":       col,
		"direction": direction,
	}, socketID)
}

// ClearPuzzle evicts bots, clears persisted state, and resets the timer.
func (rm *Room) ClearPuzzle(ctx context.Context) {
	rm.evictAllBots(ctx)
	if err := rm.store.ClearState(ctx, rm.Date); err != nil {
		log.Printf("[CrosswordRoom] date=%s: clear state: %v", rm.Date, err)
	}
	rm.mu.Lock()
	rm.sharedGrid = make(map[string]string)
	rm.cellFillers = make(map[string]string)
	rm.points = make(map[string]int)
	rm.guesses = make(map[string]store.GuessStats)
	rm.timerAccumulated = 0
	now := time.Now()
	rm.timerStartedAt = &now
	rm.mu.Unlock()

	rm.transport.EmitToRoom(rm.Date, protocol.EvtTimerSync, rm.timerSnapshot())
	rm.transport.EmitToRoom(rm.Date, protocol.EvtPuzzleCleared, map[string]any{})
}

// Snapshot returns a room-state view for a newly joined socket.
func (rm *Room) Snapshot() map[string]any {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	members := make([]map[string]any, 0, len(rm.members))
	for id, m := range rm.members {
		members = append(members, map[string]any{
			"socketId": id,
			"userName": m.UserName,
			"color":    m.Color,
			"isBot":    m.IsBot,
			"onFire":   m.Fire.OnFire,
		})
	}

	grid := make(map[string]string, len(rm.sharedGrid))
	for k, v := range rm.sharedGrid {
		grid[k] = v
	}
	fillers := make(map[string]string, len(rm.cellFillers))
	for k, v := range rm.cellFillers {
		fillers[k] = v
	}
	points := make(map[string]int, len(rm.points))
	for k, v := range rm.points {
		points[k] = v
	}

	return map[string]any{
		"date":        rm.Date,
		"puzzle":      rm.Puzzle,
		"members":     members,
		"sharedGrid":  grid,
		"cellFillers": fillers,
		"points":      points,
		"hintVotes":   len(rm.hint.Votes),
		"hintTotal":   rm.humanCount(),
		"available":   rm.hint.Available,
	}
}

func (rm *Room) correctAnswer(r, c int) (string, bool) {
	return rm.Puzzle.CorrectAnswer(r, c), rm.Puzzle.IsRebus(r, c)
}

// isPuzzleComplete reports whether every non-blocked cell matches its
// correct answer.
func (rm *Room) isPuzzleComplete() bool {
	for row := 0; row < rm.Puzzle.Dimensions.Rows; row++ {
		for col := 0; col < rm.Puzzle.Dimensions.Cols; col++ {
			if rm.Puzzle.IsBlocked(row, col) {
				continue
			}
			correct := rm.Puzzle.CorrectAnswer(row, col)
			if rm.sharedGrid[cellKey(row, col)] != correct {
				return false
			}
		}
	}
	return true
}

func (rm *Room) maybeBroadcastProgress() {
	rm.sched.Arm("progress-debounce", 200*time.Millisecond, func() {
		rm.mu.RLock()
		filled := len(rm.sharedGrid)
		total := 0
		for row := 0; row < rm.Puzzle.Dimensions.Rows; row++ {
			for col := 0; col < rm.Puzzle.Dimensions.Cols; col++ {
				if !rm.Puzzle.IsBlocked(row, col) {
					total++
				}
			}
		}
		rm.mu.RUnlock()
		if rm.progress != nil {
			rm.progress.OnPuzzleProgress(rm.Date, filled, total)
		}
		rm.transport.EmitToRoom(rm.Date, protocol.EvtPuzzleProgress, map[string]any{
			"date": rm.Date, "filled": filled, "total": total,
		})
	})
}
