package jeopardy

import (
	"context"
	"math/rand"
	"time"
)

// aiPlayers returns the currently seated CPU opponents.
func (rm *Room) aiPlayers() []*Player {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]*Player, 0)
	for _, id := range rm.playerOrder {
		if p := rm.players[id]; p.IsAI {
			out = append(out, p)
		}
	}
	return out
}

// scheduleAIBuzzes rolls each un-buzzed CPU's skip chance and, if it
// doesn't skip, arms a buzz attempt at a speed derived from its profile.
func (rm *Room) scheduleAIBuzzes(ctx context.Context) {
	for _, p := range rm.aiPlayers() {
		profile := aiProfiles[p.AIDifficulty]
		if rand.Float64() < profile.SkipChance {
			continue
		}
		delay := time.Duration((maxf(1, 2-1.5*profile.BuzzSpeed)+rand.Float64()*2)*1000) * time.Millisecond
		socketID := p.SocketID
		rm.sched.Arm("ai-buzz:"+rm.RoomID+":"+socketID, delay, func() {
			rm.BuzzIn(ctx, socketID)
		})
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// scheduleAIAnswer arms a CPU's answer 1.5s after it wins the buzzer,
// correct with probability equal to its accuracy.
func (rm *Room) scheduleAIAnswer(ctx context.Context, socketID string, profile AIProfile, clue string, answer string) {
	rm.sched.Arm("ai-answer:"+rm.RoomID+":"+socketID, 1500*time.Millisecond, func() {
		submitted := ""
		if rand.Float64() < profile.Accuracy {
			submitted = answer
		}
		rm.SubmitAnswer(ctx, socketID, submitted)
	})
}

// scheduleAISelect picks a clue uniformly from the unused slots in the
// current round 1.5s after an AI becomes controller.
func (rm *Room) scheduleAISelect(ctx context.Context) {
	rm.mu.RLock()
	controller := rm.players[rm.ControllingPlayer]
	rm.mu.RUnlock()
	if controller == nil || !controller.IsAI {
		return
	}
	socketID := controller.SocketID
	rm.sched.Arm("ai-select:"+rm.RoomID, 1500*time.Millisecond, func() {
		cat, row, ok := rm.randomUnusedClue()
		if !ok {
			return
		}
		rm.SelectClue(ctx, socketID, cat, row)
	})
}

func (rm *Room) randomUnusedClue() (int, int, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	board := rm.boardLocked()
	var choices [][2]int
	for cat := 0; cat < 6; cat++ {
		for row := 1; row <= 5; row++ {
			if _, used := rm.UsedClues[keyOf(cat, row)]; used {
				continue
			}
			if _, ok := board.ClueAt(cat, row); ok {
				choices = append(choices, [2]int{cat, row})
			}
		}
	}
	if len(choices) == 0 {
		return 0, 0, false
	}
	pick := choices[rand.Intn(len(choices))]
	return pick[0], pick[1], true
}

// scheduleAIDailyDoubleWager submits a controlling CPU's daily-double wager
// 1.5s after the board reveals it, scaled the same way as its final wager.
func (rm *Room) scheduleAIDailyDoubleWager(ctx context.Context, socketID string, score int) {
	rm.mu.RLock()
	profile := aiProfiles[rm.players[socketID].AIDifficulty]
	rm.mu.RUnlock()
	rm.sched.Arm("ai-dd-wager:"+rm.RoomID+":"+socketID, 1500*time.Millisecond, func() {
		base := float64(score) * profile.Accuracy
		noise := 1 + (rand.Float64()-0.5)*0.3
		rm.SubmitDailyDoubleWager(ctx, socketID, int(base*noise))
	})
}

// scheduleAIFinalWagers submits a wager for every CPU still missing one,
// scaled by accuracy with noise per spec.md §4.4.
func (rm *Room) scheduleAIFinalWagers(ctx context.Context) {
	for _, p := range rm.aiPlayers() {
		profile := aiProfiles[p.AIDifficulty]
		socketID := p.SocketID
		score := p.Score
		rm.sched.Arm("ai-final-wager:"+rm.RoomID+":"+socketID, 500*time.Millisecond, func() {
			base := float64(score) * profile.Accuracy
			noise := 1 + (rand.Float64()-0.5)*0.3
			rm.FinalWager(ctx, socketID, int(base*noise))
		})
	}
}

// scheduleAIFinalAnswers submits a final answer for every CPU, correct with
// probability equal to its accuracy.
func (rm *Room) scheduleAIFinalAnswers(ctx context.Context, answer string) {
	for _, p := range rm.aiPlayers() {
		profile := aiProfiles[p.AIDifficulty]
		socketID := p.SocketID
		rm.sched.Arm("ai-final-answer:"+rm.RoomID+":"+socketID, 800*time.Millisecond, func() {
			submitted := ""
			if rand.Float64() < profile.Accuracy {
				submitted = answer
			}
			rm.FinalAnswer(ctx, socketID, submitted)
		})
	}
}
