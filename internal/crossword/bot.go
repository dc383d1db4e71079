package crossword

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/kestrelgames/puzzlehall/internal/protocol"
	"github.com/kestrelgames/puzzlehall/internal/puzzle"
)

const minCellDelay = 40 * time.Millisecond

// botState is the per-synthetic-solver bookkeeping the room needs to cancel
// every pending timer a bot has scheduled, per spec.md §4.3's "every timer is
// recorded against the bot" requirement.
type botState struct {
	id         string
	userName   string
	difficulty Difficulty
	timerNames []string
	seq        int
}

type botWord struct {
	across bool
	clue   puzzle.Clue
	cells  []puzzle.Cell
}

func (rm *Room) allWords() []botWord {
	words := make([]botWord, 0, len(rm.Puzzle.Clues.Across)+len(rm.Puzzle.Clues.Down))
	for _, c := range rm.Puzzle.Clues.Across {
		words = append(words, botWord{across: true, clue: c, cells: rm.Puzzle.WordCells(c.Row, c.Col, true)})
	}
	for _, c := range rm.Puzzle.Clues.Down {
		words = append(words, botWord{across: false, clue: c, cells: rm.Puzzle.WordCells(c.Row, c.Col, false)})
	}
	return words
}

// AddBot seats a new synthetic solver in the room and starts its solve
// schedule. Bots share the crossword-edit pipeline with humans, per spec.md
// §9's design note — it is added via the same Join path humans use.
func (rm *Room) AddBot(ctx context.Context, userName string, difficulty Difficulty) string {
	rm.mu.RLock()
	offset := len(rm.bots)
	rm.mu.RUnlock()

	botID := fmt.Sprintf("bot-%d-%d", time.Now().UnixNano(), offset)
	rm.Join(ctx, botID, userName, "", true)

	bot := &botState{id: botID, userName: userName, difficulty: difficulty}
	rm.mu.Lock()
	rm.bots[botID] = bot
	rm.mu.Unlock()

	go rm.runBot(ctx, bot, offset)
	rm.broadcastBotList()
	return botID
}

// RemoveBot cancels every pending timer for botID, then tears it down
// through the same Leave path a disconnecting human takes.
func (rm *Room) RemoveBot(ctx context.Context, botID string) {
	rm.mu.Lock()
	bot, ok := rm.bots[botID]
	if ok {
		delete(rm.bots, botID)
	}
	rm.mu.Unlock()
	if !ok {
		return
	}
	for _, name := range bot.timerNames {
		rm.sched.Cancel(name)
	}
	rm.Leave(ctx, botID)
	rm.broadcastBotList()
}

func (rm *Room) evictAllBots(ctx context.Context) {
	rm.mu.RLock()
	ids := make([]string, 0, len(rm.bots))
	for id := range rm.bots {
		ids = append(ids, id)
	}
	rm.mu.RUnlock()
	for _, id := range ids {
		rm.RemoveBot(ctx, id)
	}
}

func (rm *Room) botList() []map[string]any {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	list := make([]map[string]any, 0, len(rm.bots))
	for id, bot := range rm.bots {
		list = append(list, map[string]any{
			"botId":      id,
			"userName":   bot.userName,
			"difficulty": difficultyName(bot.difficulty),
		})
	}
	return list
}

func (rm *Room) broadcastBotList() {
	rm.transport.EmitToRoom(rm.Date, protocol.EvtAIBotList, map[string]any{"bots": rm.botList()})
}

// SendBotList emits the current bot roster to a single requesting socket.
func (rm *Room) SendBotList(socketID string) {
	rm.transport.EmitToSocket(socketID, protocol.EvtAIBotList, map[string]any{"bots": rm.botList()})
}

func (rm *Room) scheduleBotTimer(bot *botState, d time.Duration, fn func()) {
	rm.mu.Lock()
	bot.seq++
	name := fmt.Sprintf("bot:%s:%d", bot.id, bot.seq)
	bot.timerNames = append(bot.timerNames, name)
	rm.mu.Unlock()
	rm.sched.Arm(name, d, fn)
}

func (rm *Room) botStillSeated(botID string) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	_, ok := rm.members[botID]
	return ok
}

// sharedWordOrder returns this room's word order, shuffling it once on first
// use and handing every caller its own copy. Bots rotate their starting
// offset from this one shared sequence instead of each shuffling
// independently, so two concurrent bots' queues are genuinely offset from
// each other rather than coincidentally landing on the same word.
func (rm *Room) sharedWordOrder() []botWord {
	rm.mu.Lock()
	if rm.wordOrder == nil {
		words := rm.allWords()
		rand.Shuffle(len(words), func(i, j int) { words[i], words[j] = words[j], words[i] })
		rm.wordOrder = words
	}
	order := make([]botWord, len(rm.wordOrder))
	copy(order, rm.wordOrder)
	rm.mu.Unlock()
	return order
}

// runBot derives the target solve duration, rotates this room's shared word
// queue by offset so concurrent bots rarely start on the same word, splits
// the duration into per-word think pauses and per-cell fill pauses, and
// walks the queue.
func (rm *Room) runBot(ctx context.Context, bot *botState, offset int) {
	rm.mu.RLock()
	dow := dayOfWeek(rm.Date)
	rm.mu.RUnlock()

	words := rm.sharedWordOrder()
	if n := len(words); n > 0 && offset > 0 {
		o := offset % n
		words = append(append([]botWord{}, words[o:]...), words[:o]...)
	}

	lo, hi := multiplierRange[bot.difficulty][0], multiplierRange[bot.difficulty][1]
	finalSolveSec := baseTime[dow][bot.difficulty] * (lo + rand.Float64()*(hi-lo))
	totalMs := finalSolveSec * 1000

	totalCells := 0
	for _, w := range words {
		totalCells += len(w.cells)
	}

	thinkTimes := rawThinkTimes(len(words), totalMs*0.25)
	cellTimes := rawCellTimes(totalCells, totalMs*0.75)

	rm.stepWord(ctx, bot, words, thinkTimes, cellTimes, 0, 0)
}

func (rm *Room) stepWord(ctx context.Context, bot *botState, words []botWord, thinkTimes, cellTimes []time.Duration, wordIdx, cellOffset int) {
	if wordIdx >= len(words) {
		return
	}
	if !rm.botStillSeated(bot.id) {
		return
	}
	word := words[wordIdx]
	thinkTime := time.Duration(0)
	if wordIdx < len(thinkTimes) {
		thinkTime = thinkTimes[wordIdx]
	}

	rm.wanderThen(ctx, bot, word, thinkTime, 0, func() {
		if len(word.cells) > 0 {
			first := word.cells[0]
			rm.CursorMove(bot.id, first.Row, first.Col, directionOf(word.across))
		}
		rm.fillWord(ctx, bot, words, thinkTimes, cellTimes, wordIdx, cellOffset)
	})
}

func directionOf(across bool) string {
	if across {
		return "across"
	}
	return "down"
}

// maxWanderHops is a safety ceiling, not a target: it bounds runaway
// recursion far above the geometric distribution's expected hop count.
const maxWanderHops = 20

// wanderThen re-rolls wanderChance at every hop per spec.md §4.3, so the
// number of hops before landing is geometrically distributed rather than a
// fixed burst. Each hop is delayed by thinkTime/3 (at least minCellDelay), this
// repository's resolution of spec's "undefined stepTime" open question.
func (rm *Room) wanderThen(ctx context.Context, bot *botState, word botWord, thinkTime time.Duration, hop int, next func()) {
	if hop >= maxWanderHops || !rm.botStillSeated(bot.id) {
		next()
		return
	}
	if rand.Float64() >= wanderChance[bot.difficulty] {
		next()
		return
	}
	stepDelay := thinkTime / 3
	if stepDelay < minCellDelay {
		stepDelay = minCellDelay
	}
	rm.scheduleBotTimer(bot, stepDelay, func() {
		if !rm.botStillSeated(bot.id) {
			return
		}
		dist := 2 + rand.Intn(4)
		angle := rand.Float64() * 2 * math.Pi
		rm.mu.RLock()
		m := rm.members[bot.id]
		rm.mu.RUnlock()
		if m == nil {
			return
		}
		row := clamp(m.CursorRow+int(math.Round(float64(dist)*math.Sin(angle))), 0, rm.Puzzle.Dimensions.Rows-1)
		col := clamp(m.CursorCol+int(math.Round(float64(dist)*math.Cos(angle))), 0, rm.Puzzle.Dimensions.Cols-1)
		rm.CursorMove(bot.id, row, col, m.Direction)
		rm.wanderThen(ctx, bot, word, thinkTime, hop+1, next)
	})
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// fillWord schedules one cell fill per remaining cell in word, then proceeds
// to the next word in the queue.
func (rm *Room) fillWord(ctx context.Context, bot *botState, words []botWord, thinkTimes, cellTimes []time.Duration, wordIdx, cellOffset int) {
	word := words[wordIdx]
	rm.fillCell(ctx, bot, words, thinkTimes, cellTimes, wordIdx, cellOffset, 0, len(word.cells))
}

func (rm *Room) fillCell(ctx context.Context, bot *botState, words []botWord, thinkTimes, cellTimes []time.Duration, wordIdx, cellOffset, cellIdx, cellCount int) {
	if cellIdx >= cellCount {
		rm.stepWord(ctx, bot, words, thinkTimes, cellTimes, wordIdx+1, cellOffset+cellCount)
		return
	}
	if !rm.botStillSeated(bot.id) {
		return
	}

	slot := cellOffset + cellIdx
	delay := minCellDelay
	if slot < len(cellTimes) {
		delay = cellTimes[slot]
	}

	rm.scheduleBotTimer(bot, delay, func() {
		if !rm.botStillSeated(bot.id) {
			return
		}
		word := words[wordIdx]
		cell := word.cells[cellIdx]
		rm.mu.RLock()
		current := rm.sharedGrid[cellKey(cell.Row, cell.Col)]
		correct := rm.Puzzle.CorrectAnswer(cell.Row, cell.Col)
		rm.mu.RUnlock()
		if current != correct {
			rm.CursorMove(bot.id, cell.Row, cell.Col, directionOf(word.across))
			rm.CellUpdate(ctx, bot.id, cell.Row, cell.Col, correct)
		}
		rm.fillCell(ctx, bot, words, thinkTimes, cellTimes, wordIdx, cellOffset, cellIdx+1, cellCount)
	})
}

// rawThinkTimes draws one think pause per word from the three-bucket
// distribution in spec.md §4.3 and rescales the set to sum to targetMs.
func rawThinkTimes(n int, targetMs float64) []time.Duration {
	if n == 0 {
		return nil
	}
	raw := make([]float64, n)
	sum := 0.0
	for i := range raw {
		roll := rand.Float64()
		var v float64
		switch {
		case roll < 0.25:
			v = uniform(3000, 10000)
		case roll < 0.55:
			v = uniform(800, 3000)
		default:
			v = uniform(100, 800)
		}
		raw[i] = v
		sum += v
	}
	return normalize(raw, sum, targetMs)
}

// rawCellTimes draws per-cell fill pauses in streaks of 2-8 cells at one of
// three speed classes with per-cell jitter, then rescales to sum to targetMs.
func rawCellTimes(n int, targetMs float64) []time.Duration {
	if n == 0 {
		return nil
	}
	raw := make([]float64, 0, n)
	sum := 0.0
	for len(raw) < n {
		streak := 2 + rand.Intn(7)
		if len(raw)+streak > n {
			streak = n - len(raw)
		}
		roll := rand.Float64()
		var lo, hi float64
		switch {
		case roll < 0.34:
			lo, hi = 200, 600
		case roll < 0.72:
			lo, hi = 500, 1500
		default:
			lo, hi = 1500, 4000
		}
		base := uniform(lo, hi)
		for i := 0; i < streak; i++ {
			v := base * uniform(0.6, 1.4)
			raw = append(raw, v)
			sum += v
		}
	}
	return normalize(raw, sum, targetMs)
}

func normalize(raw []float64, sum, targetMs float64) []time.Duration {
	out := make([]time.Duration, len(raw))
	if sum <= 0 {
		for i := range out {
			out[i] = minCellDelay
		}
		return out
	}
	scale := targetMs / sum
	for i, v := range raw {
		ms := v * scale
		d := time.Duration(ms) * time.Millisecond
		if d < minCellDelay {
			d = minCellDelay
		}
		out[i] = d
	}
	return out
}

func uniform(lo, hi float64) float64 {
	return lo + rand.Float64()*(hi-lo)
}
