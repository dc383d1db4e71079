package jeopardy

import (
	"context"
	"sort"
	"time"

	"github.com/kestrelgames/puzzlehall/internal/judge"
	"github.com/kestrelgames/puzzlehall/internal/protocol"
	"github.com/kestrelgames/puzzlehall/internal/puzzle"
)

const (
	roundMinJeopardy = 1000
	roundMinDouble   = 2000
)

// boardLocked returns the live round's board. Caller must hold rm.mu.
func (rm *Room) boardLocked() puzzle.JeopardyRound {
	if rm.CurrentRound == RoundDoubleJeopardy {
		return rm.Game.DJRound
	}
	return rm.Game.JRound
}

func (rm *Room) roundMin() int {
	if rm.CurrentRound == RoundDoubleJeopardy {
		return roundMinDouble
	}
	return roundMinJeopardy
}

func clampWager(wager, score, roundMin int) int {
	upper := roundMin
	if score > roundMin {
		upper = score
	}
	lower := 5
	if score < 0 {
		lower = roundMin
	}
	if wager > upper {
		wager = upper
	}
	if wager < lower {
		wager = lower
	}
	return wager
}

// ChangeGame swaps the room's loaded game for a specific one, host-only and
// lobby-only.
func (rm *Room) ChangeGame(ctx context.Context, socketID, gameID string) error {
	rm.mu.RLock()
	allowed := rm.Phase == PhaseLobby && socketID == rm.HostSocket
	rm.mu.RUnlock()
	if !allowed {
		return nil
	}
	game, err := rm.store.GetJeopardyGame(ctx, gameID)
	if err != nil {
		return err
	}
	rm.mu.Lock()
	rm.Game = game
	rm.GameID = game.GameID
	rm.CurrentRound = RoundJeopardy
	rm.UsedClues = make(map[string]struct{})
	rm.mu.Unlock()
	rm.broadcastRoomState()
	return nil
}

// RandomGame swaps the room's loaded game for a new random one, host-only
// and lobby-only.
func (rm *Room) RandomGame(ctx context.Context, socketID string) error {
	rm.mu.RLock()
	allowed := rm.Phase == PhaseLobby && socketID == rm.HostSocket
	rm.mu.RUnlock()
	if !allowed {
		return nil
	}
	game, err := rm.store.GetRandomJeopardyGame(ctx)
	if err != nil {
		return err
	}
	rm.mu.Lock()
	rm.Game = game
	rm.GameID = game.GameID
	rm.CurrentRound = RoundJeopardy
	rm.UsedClues = make(map[string]struct{})
	rm.mu.Unlock()
	rm.broadcastRoomState()
	return nil
}

// StartGame transitions lobby -> selectingClue, seeding usedClues with any
// board slots the game data doesn't actually define.
func (rm *Room) StartGame(ctx context.Context, socketID string) {
	rm.mu.Lock()
	if rm.Phase != PhaseLobby || socketID != rm.HostSocket {
		rm.mu.Unlock()
		return
	}
	board := rm.boardLocked()
	for cat := 0; cat < 6; cat++ {
		for row := 1; row <= 5; row++ {
			if _, ok := board.ClueAt(cat, row); !ok {
				rm.UsedClues[keyOf(cat, row)] = struct{}{}
			}
		}
	}
	rm.Phase = PhaseSelectingClue
	rm.mu.Unlock()

	rm.broadcastRoomState()
	rm.transport.EmitToRoom(rm.RoomID, protocol.EvtPhaseChange, map[string]any{"phase": PhaseSelectingClue})
	rm.scheduleAISelect(ctx)
}

// SelectClue is valid only from the controlling player while selectingClue.
func (rm *Room) SelectClue(ctx context.Context, socketID string, cat, row int) {
	if cat < 0 || cat >= 6 || row < 1 || row > 5 {
		return
	}
	rm.mu.Lock()
	if rm.Phase != PhaseSelectingClue || socketID != rm.ControllingPlayer {
		rm.mu.Unlock()
		return
	}
	if _, used := rm.UsedClues[keyOf(cat, row)]; used {
		rm.mu.Unlock()
		return
	}
	board := rm.boardLocked()
	clue, ok := board.ClueAt(cat, row)
	if !ok {
		rm.mu.Unlock()
		return
	}
	rm.UsedClues[keyOf(cat, row)] = struct{}{}
	rm.CurrentClue = &clue
	rm.buzzedPlayers = make(map[string]struct{})

	if clue.DailyDouble {
		rm.AnsweringPlayer = rm.ControllingPlayer
		rm.DailyDoubleWager = 0
		rm.Phase = PhaseDailyDoubleWager
		controller := rm.players[rm.ControllingPlayer]
		rm.mu.Unlock()

		rm.transport.EmitToRoom(rm.RoomID, protocol.EvtDailyDouble, map[string]any{
			"cat": cat, "row": row, "controller": socketID,
		})
		if controller != nil && controller.IsAI {
			rm.scheduleAIDailyDoubleWager(ctx, controller.SocketID, controller.Score)
		}
		return
	}

	rm.Phase = PhaseReadingClue
	rm.mu.Unlock()

	rm.transport.EmitToRoom(rm.RoomID, protocol.EvtClueSelected, map[string]any{
		"cat": cat, "row": row, "clue": clue.Clue, "value": clue.Value,
	})
	rm.sched.Arm("reading:"+rm.RoomID, 3*time.Second, func() {
		rm.openBuzzer(ctx)
	})
}

// SubmitDailyDoubleWager is valid only from the controller in
// dailyDoubleWager, and clamps per spec.md §4.4's scenario #5 formula
// before moving to the answer phase.
func (rm *Room) SubmitDailyDoubleWager(ctx context.Context, socketID string, wager int) {
	rm.mu.Lock()
	if rm.Phase != PhaseDailyDoubleWager || socketID != rm.ControllingPlayer {
		rm.mu.Unlock()
		return
	}
	player := rm.players[socketID]
	clamped := clampWager(wager, player.Score, rm.roundMin())
	rm.DailyDoubleWager = clamped
	rm.Phase = PhaseDailyDoubleAnswer
	clue := rm.CurrentClue
	rm.mu.Unlock()

	if clue != nil {
		rm.transport.EmitToRoom(rm.RoomID, protocol.EvtClueSelected, map[string]any{
			"cat": clue.Cat, "row": clue.Row, "clue": clue.Clue, "value": clamped,
		})
	}
	rm.sched.Arm("answer-timeout:"+rm.RoomID, 15*time.Second, func() {
		rm.SubmitAnswer(ctx, socketID, "")
	})

	if player.IsAI && clue != nil {
		rm.scheduleAIAnswer(ctx, socketID, aiProfiles[player.AIDifficulty], clue.Clue, clue.Answer)
	}
}

func (rm *Room) openBuzzer(ctx context.Context) {
	rm.mu.Lock()
	if rm.Phase != PhaseReadingClue && rm.Phase != PhaseShowingResult {
		rm.mu.Unlock()
		return
	}
	rm.Phase = PhaseBuzzerOpen
	rm.mu.Unlock()

	rm.transport.EmitToRoom(rm.RoomID, protocol.EvtPhaseChange, map[string]any{"phase": PhaseBuzzerOpen})
	rm.sched.Arm("buzzer-timeout:"+rm.RoomID, 5*time.Second, func() {
		rm.buzzerTimeout(ctx)
	})
	rm.scheduleAIBuzzes(ctx)
}

// BuzzIn is valid only during buzzerOpen, from a player who hasn't already
// buzzed (and failed) on this clue.
func (rm *Room) BuzzIn(ctx context.Context, socketID string) {
	rm.mu.Lock()
	if rm.Phase != PhaseBuzzerOpen {
		rm.mu.Unlock()
		return
	}
	if _, ok := rm.players[socketID]; !ok {
		rm.mu.Unlock()
		return
	}
	if _, already := rm.buzzedPlayers[socketID]; already {
		rm.mu.Unlock()
		return
	}
	rm.sched.Cancel("buzzer-timeout:" + rm.RoomID)
	rm.buzzedPlayers[socketID] = struct{}{}
	rm.AnsweringPlayer = socketID
	rm.Phase = PhasePlayerAnswering
	clue := rm.CurrentClue
	player := rm.players[socketID]
	rm.mu.Unlock()

	for _, p := range rm.aiPlayers() {
		rm.sched.Cancel("ai-buzz:" + rm.RoomID + ":" + p.SocketID)
	}

	rm.transport.EmitToRoom(rm.RoomID, protocol.EvtBuzzerResult, map[string]any{"socketId": socketID})
	rm.sched.Arm("answer-timeout:"+rm.RoomID, 10*time.Second, func() {
		rm.SubmitAnswer(ctx, socketID, "")
	})

	if player != nil && player.IsAI && clue != nil {
		rm.scheduleAIAnswer(ctx, socketID, aiProfiles[player.AIDifficulty], clue.Clue, clue.Answer)
	}
}

func (rm *Room) buzzerTimeout(ctx context.Context) {
	rm.mu.Lock()
	if rm.Phase != PhaseBuzzerOpen {
		rm.mu.Unlock()
		return
	}
	rm.Phase = PhaseShowingResult
	answer := ""
	if rm.CurrentClue != nil {
		answer = rm.CurrentClue.Answer
	}
	rm.mu.Unlock()

	rm.transport.EmitToRoom(rm.RoomID, protocol.EvtBuzzerExpired, map[string]any{"answer": answer})
	rm.sched.Arm("reveal-delay:"+rm.RoomID, 3*time.Second, func() {
		rm.toSelectingClue(ctx)
	})
}

// SubmitAnswer is valid only from the answering player in playerAnswering
// or dailyDoubleAnswer.
func (rm *Room) SubmitAnswer(ctx context.Context, socketID, answer string) {
	rm.mu.Lock()
	if socketID != rm.AnsweringPlayer || (rm.Phase != PhasePlayerAnswering && rm.Phase != PhaseDailyDoubleAnswer) {
		rm.mu.Unlock()
		return
	}
	dailyDouble := rm.Phase == PhaseDailyDoubleAnswer
	clue := rm.CurrentClue
	wager := rm.DailyDoubleWager
	rm.mu.Unlock()
	if clue == nil {
		return
	}

	rm.sched.Cancel("answer-timeout:" + rm.RoomID)
	result := judge.Check(answer, clue.Answer)

	value := clue.Value
	if dailyDouble {
		value = wager
	}
	delta := -value
	if result.Correct {
		delta = value
	}

	rm.mu.Lock()
	rm.players[socketID].Score += delta
	if result.Correct {
		rm.ControllingPlayer = socketID
	}
	rm.Phase = PhaseShowingResult
	rm.mu.Unlock()

	rm.broadcastScores()
	rm.transport.EmitToRoom(rm.RoomID, protocol.EvtAnswerResult, map[string]any{
		"socketId":    socketID,
		"correct":     result.Correct,
		"scoreChange": delta,
		"answer":      clue.Answer,
	})

	if dailyDouble {
		delay := 2500 * time.Millisecond
		if !result.Correct {
			delay = 3 * time.Second
		}
		rm.sched.Arm("reveal-delay:"+rm.RoomID, delay, func() {
			rm.toSelectingClue(ctx)
		})
		return
	}

	if result.Correct {
		rm.sched.Arm("reveal-delay:"+rm.RoomID, 2500*time.Millisecond, func() {
			rm.toSelectingClue(ctx)
		})
		return
	}
	rm.afterWrongAnswer(ctx)
}

// afterWrongAnswer rebuzzes if any player hasn't yet buzzed on this clue,
// otherwise reveals the answer and moves on.
func (rm *Room) afterWrongAnswer(ctx context.Context) {
	rm.mu.RLock()
	remaining := len(rm.players) > len(rm.buzzedPlayers)
	rm.mu.RUnlock()

	if remaining {
		rm.sched.Arm("rebuzz-delay:"+rm.RoomID, 1500*time.Millisecond, func() {
			rm.openBuzzer(ctx)
		})
		return
	}
	rm.sched.Arm("reveal-delay:"+rm.RoomID, 3*time.Second, func() {
		rm.toSelectingClue(ctx)
	})
}

// toSelectingClue persists round progress and either returns to
// selectingClue, switches rounds, or enters final Jeopardy.
func (rm *Room) toSelectingClue(ctx context.Context) {
	rm.mu.Lock()
	board := rm.boardLocked()
	allUsed := true
	for cat := 0; cat < 6; cat++ {
		for row := 1; row <= 5; row++ {
			if _, ok := board.ClueAt(cat, row); !ok {
				continue
			}
			if _, used := rm.UsedClues[keyOf(cat, row)]; !used {
				allUsed = false
			}
		}
	}
	round := rm.CurrentRound
	answered := len(rm.UsedClues)
	total := len(board.Clues)
	gameID := rm.GameID
	rm.mu.Unlock()

	_ = rm.store.SaveJeopardyProgress(ctx, gameID, answered, total, string(round), false)

	if !allUsed {
		rm.mu.Lock()
		rm.Phase = PhaseSelectingClue
		rm.mu.Unlock()
		rm.transport.EmitToRoom(rm.RoomID, protocol.EvtPhaseChange, map[string]any{"phase": PhaseSelectingClue})
		rm.scheduleAISelect(ctx)
		return
	}

	if round == RoundJeopardy {
		rm.mu.Lock()
		rm.CurrentRound = RoundDoubleJeopardy
		rm.UsedClues = make(map[string]struct{})
		board = rm.boardLocked()
		for cat := 0; cat < 6; cat++ {
			for row := 1; row <= 5; row++ {
				if _, ok := board.ClueAt(cat, row); !ok {
					rm.UsedClues[keyOf(cat, row)] = struct{}{}
				}
			}
		}
		rm.Phase = PhaseSelectingClue
		rm.mu.Unlock()
		rm.transport.EmitToRoom(rm.RoomID, protocol.EvtRoundChange, map[string]any{"round": RoundDoubleJeopardy})
		rm.scheduleAISelect(ctx)
		return
	}

	rm.startFinalJeopardy(ctx)
}

func (rm *Room) startFinalJeopardy(ctx context.Context) {
	rm.mu.Lock()
	rm.CurrentRound = RoundFinalJeopardy
	rm.Phase = PhaseFinalCategory
	rm.Final = FinalState{
		Wagers:   make(map[string]int),
		Answers:  make(map[string]string),
		Revealed: make(map[string]bool),
	}
	category := rm.Game.FJ.Category
	rm.mu.Unlock()

	rm.transport.EmitToRoom(rm.RoomID, protocol.EvtFinalCategory, map[string]any{"category": category})
	rm.sched.Arm("final-category:"+rm.RoomID, 5*time.Second, func() {
		rm.mu.Lock()
		rm.Phase = PhaseFinalWager
		rm.mu.Unlock()
		rm.transport.EmitToRoom(rm.RoomID, protocol.EvtPhaseChange, map[string]any{"phase": PhaseFinalWager})
		rm.scheduleAIFinalWagers(ctx)
	})
}

// FinalWager records one player's final wager; once every seated player has
// wagered, the room advances to finalClue.
func (rm *Room) FinalWager(ctx context.Context, socketID string, wager int) {
	rm.mu.Lock()
	if rm.Phase != PhaseFinalWager {
		rm.mu.Unlock()
		return
	}
	player, ok := rm.players[socketID]
	if !ok {
		rm.mu.Unlock()
		return
	}
	if _, already := rm.Final.Wagers[socketID]; already {
		rm.mu.Unlock()
		return
	}
	upper := player.Score
	if upper < 0 {
		upper = 0
	}
	if wager < 0 {
		wager = 0
	}
	if wager > upper {
		wager = upper
	}
	rm.Final.Wagers[socketID] = wager
	allIn := len(rm.Final.Wagers) == len(rm.players)
	clue := rm.Game.FJ.Clue
	rm.mu.Unlock()

	rm.transport.EmitToRoom(rm.RoomID, protocol.EvtFinalWagerSubmitted, map[string]any{"socketId": socketID})
	if !allIn {
		return
	}
	rm.mu.Lock()
	rm.Phase = PhaseFinalClue
	rm.mu.Unlock()
	rm.transport.EmitToRoom(rm.RoomID, protocol.EvtFinalClue, map[string]any{"clue": clue})
	rm.sched.Arm("final-clue-timeout:"+rm.RoomID, 30*time.Second, func() {
		rm.finalClueTimeout(ctx)
	})
	rm.scheduleAIFinalAnswers(ctx, rm.Game.FJ.Answer)
}

// FinalAnswer records one player's final answer; once every seated player
// has answered, the room computes the reveal order.
func (rm *Room) FinalAnswer(ctx context.Context, socketID, answer string) {
	rm.mu.Lock()
	if rm.Phase != PhaseFinalClue {
		rm.mu.Unlock()
		return
	}
	if _, ok := rm.players[socketID]; !ok {
		rm.mu.Unlock()
		return
	}
	if _, already := rm.Final.Answers[socketID]; already {
		rm.mu.Unlock()
		return
	}
	rm.Final.Answers[socketID] = answer
	allIn := len(rm.Final.Answers) == len(rm.players)
	rm.mu.Unlock()

	rm.transport.EmitToRoom(rm.RoomID, protocol.EvtFinalAnswerSubmitted, map[string]any{"socketId": socketID})
	if allIn {
		rm.sched.Cancel("final-clue-timeout:" + rm.RoomID)
		rm.beginFinalReveal(ctx)
	}
}

func (rm *Room) finalClueTimeout(ctx context.Context) {
	rm.mu.Lock()
	if rm.Phase != PhaseFinalClue {
		rm.mu.Unlock()
		return
	}
	for _, id := range rm.playerOrder {
		if _, answered := rm.Final.Answers[id]; !answered {
			rm.Final.Answers[id] = ""
		}
	}
	rm.mu.Unlock()
	rm.beginFinalReveal(ctx)
}

func (rm *Room) beginFinalReveal(ctx context.Context) {
	rm.mu.Lock()
	if rm.Phase == PhaseFinalResults {
		rm.mu.Unlock()
		return
	}
	order := append([]string{}, rm.playerOrder...)
	players := rm.players
	sort.Slice(order, func(i, j int) bool { return players[order[i]].Score < players[order[j]].Score })
	rm.Final.RevealOrder = order
	rm.Phase = PhaseFinalResults
	rm.mu.Unlock()

	rm.transport.EmitToRoom(rm.RoomID, protocol.EvtPhaseChange, map[string]any{"phase": PhaseFinalResults})
	rm.revealFinalAt(ctx, 0)
}

func (rm *Room) revealFinalAt(ctx context.Context, idx int) {
	rm.sched.Arm("final-reveal:"+rm.RoomID, 3*time.Second, func() {
		rm.mu.RLock()
		order := rm.Final.RevealOrder
		rm.mu.RUnlock()
		if idx >= len(order) {
			rm.endGame(ctx)
			return
		}
		socketID := order[idx]
		rm.mu.Lock()
		answer := rm.Final.Answers[socketID]
		wager := rm.Final.Wagers[socketID]
		result := judge.Check(answer, rm.Game.FJ.Answer)
		delta := -wager
		if result.Correct {
			delta = wager
		}
		rm.players[socketID].Score += delta
		newScore := rm.players[socketID].Score
		rm.Final.Revealed[socketID] = true
		rm.mu.Unlock()

		rm.transport.EmitToRoom(rm.RoomID, protocol.EvtFinalJeopardyReveal, map[string]any{
			"socketId": socketID, "correct": result.Correct, "scoreChange": delta, "newScore": newScore,
		})
		rm.revealFinalAt(ctx, idx+1)
	})
}

func (rm *Room) endGame(ctx context.Context) {
	rm.mu.Lock()
	rm.Phase = PhaseGameOver
	gameID := rm.GameID
	rm.mu.Unlock()

	rm.broadcastScores()
	rm.transport.EmitToRoom(rm.RoomID, protocol.EvtGameOver, map[string]any{})
	_ = rm.store.SaveJeopardyProgress(ctx, gameID, 0, 0, string(RoundFinalJeopardy), true)
}
