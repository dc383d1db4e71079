package crossword

import (
	"context"
	"time"

	"github.com/kestrelgames/puzzlehall/internal/protocol"
	"github.com/kestrelgames/puzzlehall/internal/puzzle"
)

const (
	letterBase      = 10
	rebusBase       = 50
	wrongDelta      = -30
	wordBonus2      = 250
	wordBonus1      = 50
	lastSquareBonus = 250
	fireWindow      = 30 * time.Second
	fireIgnite      = 3
	fireExtendMs    = 5000
)

func fireTimerName(socketID string) string {
	return "fire:" + socketID
}

// CellUpdate applies one edit to the shared grid: persistence, scoring, fire
// transitions, word-completion bonuses, and puzzle-completion detection, per
// spec.md §4.2. Identical whether socketID belongs to a human or a bot.
func (rm *Room) CellUpdate(ctx context.Context, socketID string, row, col int, letter string) {
	rm.mu.Lock()
	member, ok := rm.members[socketID]
	if !ok {
		rm.mu.Unlock()
		return
	}
	_, isHintCell := rm.hint.HintCells[cellKey(row, col)]

	rm.sharedGrid[cellKey(row, col)] = letter
	filler := ""
	if letter != "" {
		filler = member.UserName
	}
	rm.cellFillers[cellKey(row, col)] = filler
	rm.mu.Unlock()

	_ = rm.store.UpsertCell(ctx, rm.Date, row, col, letter)
	_ = rm.store.UpsertCellFiller(ctx, rm.Date, row, col, filler)

	if letter == "" || isHintCell {
		rm.transport.EmitToRoom(rm.Date, protocol.EvtCellUpdated, map[string]any{
			"socketId": socketID, "row": row, "col": col, "letter": letter,
		})
		rm.maybeBroadcastProgress()
		return
	}

	correct, isRebus := rm.correctAnswer(row, col)
	isCorrect := letter == correct

	rm.mu.Lock()
	wasOnFire := member.Fire.OnFire
	multiplier := member.Fire.Multiplier
	rm.mu.Unlock()

	base := letterBase
	if isRebus {
		base = rebusBase
	}

	var delta int
	fireEvent := ""
	if isCorrect && wasOnFire {
		delta = int(round(float64(base) * multiplier))
	} else if isCorrect {
		delta = base
	} else if wasOnFire {
		delta = wrongDelta
		fireEvent = "broken"
	} else {
		delta = wrongDelta
		rm.mu.Lock()
		member.Fire.recent = nil
		rm.mu.Unlock()
	}

	name := member.UserName
	_ = rm.store.AddPoints(ctx, rm.Date, name, delta)
	_ = rm.store.AddGuess(ctx, rm.Date, name, isCorrect)

	rm.mu.Lock()
	rm.points[name] += delta
	stats := rm.guesses[name]
	stats.Total++
	if !isCorrect {
		stats.Incorrect++
	}
	rm.guesses[name] = stats
	rm.mu.Unlock()

	if fireEvent == "broken" {
		rm.breakFire(socketID)
	}

	completed := 0
	var wordCells []puzzle.Cell
	if isCorrect {
		completed, wordCells = rm.wordCompletionsAt(row, col)
	}

	wordBonus := 0
	switch {
	case completed >= 2:
		wordBonus = wordBonus2
	case completed == 1:
		wordBonus = wordBonus1
	}
	if wordBonus > 0 && wasOnFire {
		wordBonus = int(round(float64(wordBonus) * multiplier))
	}

	if wordBonus > 0 {
		_ = rm.store.AddPoints(ctx, rm.Date, name, wordBonus)
		rm.mu.Lock()
		rm.points[name] += wordBonus
		rm.hint.Available = false
		rm.hint.Votes = make(map[string]struct{})
		rm.mu.Unlock()

		rm.applyFireTransition(ctx, socketID, completed, wordCells)
	}

	rm.mu.Lock()
	puzzleDone := rm.isPuzzleComplete()
	rm.mu.Unlock()

	lastSquare := 0
	if puzzleDone {
		lastSquare = lastSquareBonus
		_ = rm.store.AddPoints(ctx, rm.Date, name, lastSquare)
		rm.mu.Lock()
		rm.points[name] += lastSquare
		rm.mu.Unlock()
		rm.evictAllBots(ctx)
	}

	payload := map[string]any{
		"socketId":     socketID,
		"row":          row,
		"col":          col,
		"letter":       letter,
		"guessCorrect": isCorrect,
		"delta":        delta,
		"wordBonus":    wordBonus,
	}
	if lastSquare > 0 {
		payload["lastSquareBonus"] = lastSquare
	}
	if fireEvent != "" {
		payload["fireEvent"] = fireEvent
	}
	rm.transport.EmitToRoom(rm.Date, protocol.EvtCellUpdated, payload)
	rm.maybeBroadcastProgress()
}

func round(f float64) float64 {
	if f < 0 {
		return -round(-f)
	}
	return float64(int64(f + 0.5))
}

// wordCompletionsAt returns the number of across/down words through (r,c)
// that are now fully correct (0, 1, or 2), and the union of their cells.
func (rm *Room) wordCompletionsAt(row, col int) (int, []puzzle.Cell) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	refs := rm.Puzzle.WordsContaining(row, col)
	completed := 0
	var cells []puzzle.Cell
	for _, ref := range refs {
		wordCells := ref.Cells(rm.Puzzle)
		allCorrect := true
		for _, c := range wordCells {
			if rm.sharedGrid[cellKey(c.Row, c.Col)] != rm.Puzzle.CorrectAnswer(c.Row, c.Col) {
				allCorrect = false
				break
			}
		}
		if allCorrect {
			completed++
			cells = append(cells, wordCells...)
		}
	}
	return completed, cells
}

// breakFire clears a member's fire streak without broadcasting a bonus;
// used when an incorrect guess is made while on fire.
func (rm *Room) breakFire(socketID string) {
	rm.sched.Cancel(fireTimerName(socketID))
	rm.mu.Lock()
	member, ok := rm.members[socketID]
	if ok {
		member.Fire = FireStreak{}
	}
	rm.mu.Unlock()
	if ok {
		rm.transport.EmitToRoom(rm.Date, protocol.EvtFireExpired, map[string]any{"socketId": socketID})
	}
}

// applyFireTransition runs the ignite/extend logic from spec.md §4.2 after a
// word-completing correct fill.
func (rm *Room) applyFireTransition(ctx context.Context, socketID string, completed int, wordCells []puzzle.Cell) {
	rm.mu.Lock()
	member, ok := rm.members[socketID]
	if !ok {
		rm.mu.Unlock()
		return
	}
	now := time.Now()

	if member.Fire.OnFire {
		member.Fire.ExpiresAt = member.Fire.ExpiresAt.Add(fireExtendMs * time.Millisecond)
		member.Fire.WordsCompletedOnFire += completed
		member.Fire.Multiplier = 1.5 + 0.5*float64(member.Fire.WordsCompletedOnFire/3)
		member.Fire.FireCells = userFilledCells(rm.cellFillers, member.UserName)
		expiresAt := member.Fire.ExpiresAt
		multiplier := member.Fire.Multiplier
		rm.mu.Unlock()

		rm.sched.Arm(fireTimerName(socketID), time.Until(expiresAt), func() {
			rm.expireFire(socketID)
		})
		rm.transport.EmitToRoom(rm.Date, protocol.EvtFireUpdate, map[string]any{
			"socketId":   socketID,
			"type":       "extended",
			"multiplier": multiplier,
			"expiresAt":  expiresAt.UnixMilli(),
		})
		return
	}

	member.Fire.recent = append(member.Fire.recent, completionEvent{at: now, count: completed, wordCells: wordCells})
	cutoff := now.Add(-fireWindow)
	var kept []completionEvent
	sum := 0
	for _, ev := range member.Fire.recent {
		if ev.at.After(cutoff) {
			kept = append(kept, ev)
			sum += ev.count
		}
	}
	member.Fire.recent = kept

	if sum < fireIgnite {
		rm.mu.Unlock()
		return
	}

	member.Fire.OnFire = true
	member.Fire.ExpiresAt = now.Add(fireWindow)
	member.Fire.Multiplier = 1.5
	member.Fire.WordsCompletedOnFire = 0
	member.Fire.FireCells = userFilledCells(rm.cellFillers, member.UserName)
	member.Fire.recent = nil
	expiresAt := member.Fire.ExpiresAt
	rm.mu.Unlock()

	rm.sched.Arm(fireTimerName(socketID), fireWindow, func() {
		rm.expireFire(socketID)
	})
	rm.transport.EmitToRoom(rm.Date, protocol.EvtFireUpdate, map[string]any{
		"socketId":    socketID,
		"type":        "started",
		"remainingMs": fireWindow.Milliseconds(),
		"expiresAt":   expiresAt.UnixMilli(),
	})
}

func (rm *Room) expireFire(socketID string) {
	rm.mu.Lock()
	member, ok := rm.members[socketID]
	if !ok || !member.Fire.OnFire {
		rm.mu.Unlock()
		return
	}
	if time.Now().Before(member.Fire.ExpiresAt) {
		rm.mu.Unlock()
		return
	}
	member.Fire = FireStreak{}
	rm.mu.Unlock()
	rm.transport.EmitToRoom(rm.Date, protocol.EvtFireExpired, map[string]any{"socketId": socketID})
}

func userFilledCells(fillers map[string]string, userName string) map[string]struct{} {
	cells := make(map[string]struct{})
	for key, name := range fillers {
		if name == userName {
			cells[key] = struct{}{}
		}
	}
	return cells
}
