package jeopardy

import (
	"context"
	"testing"
)

func TestAIPlayers_FiltersToCPUOnly(t *testing.T) {
	rm, _ := newTestRoom(t)
	rm.seatPlayer("cpu-1", "Robot", true, "medium")

	ai := rm.aiPlayers()
	if len(ai) != 1 || ai[0].SocketID != "cpu-1" {
		t.Fatalf("aiPlayers() = %v, want only cpu-1", ai)
	}
}

func TestRandomUnusedClue_PicksTheOnlyRemainingSlot(t *testing.T) {
	rm, _ := newTestRoom(t)
	rm.mu.Lock()
	rm.UsedClues[keyOf(1, 1)] = struct{}{}
	rm.mu.Unlock()

	cat, row, ok := rm.randomUnusedClue()
	if !ok {
		t.Fatalf("expected an unused clue to remain")
	}
	if cat != 0 || row != 1 {
		t.Errorf("picked (%d,%d), want the only remaining clue (0,1)", cat, row)
	}
}

func TestRandomUnusedClue_NoneLeft(t *testing.T) {
	rm, _ := newTestRoom(t)
	rm.mu.Lock()
	rm.UsedClues[keyOf(0, 1)] = struct{}{}
	rm.UsedClues[keyOf(1, 1)] = struct{}{}
	rm.mu.Unlock()

	_, _, ok := rm.randomUnusedClue()
	if ok {
		t.Errorf("expected no unused clue once every defined slot is used")
	}
}

func TestScheduleAISelect_OnlyArmsForAIController(t *testing.T) {
	rm, _ := newTestRoom(t)
	rm.scheduleAISelect(context.Background())
	if rm.sched.Active("ai-select:" + rm.RoomID) {
		t.Errorf("should not schedule an AI select when the controller is human")
	}

	rm.mu.Lock()
	rm.players["p1"].IsAI = true
	rm.players["p1"].AIDifficulty = "medium"
	rm.mu.Unlock()

	rm.scheduleAISelect(context.Background())
	if !rm.sched.Active("ai-select:" + rm.RoomID) {
		t.Errorf("expected an AI select to be scheduled once the controller is a CPU")
	}
}

func TestScheduleAIFinalWagers_ArmsOneTimerPerCPU(t *testing.T) {
	rm, _ := newTestRoom(t)
	rm.seatPlayer("cpu-1", "Robot", true, "easy")

	rm.scheduleAIFinalWagers(context.Background())

	if !rm.sched.Active("ai-final-wager:" + rm.RoomID + ":cpu-1") {
		t.Errorf("expected a final-wager timer for the seated CPU")
	}
	if rm.sched.Active("ai-final-wager:" + rm.RoomID + ":p1") {
		t.Errorf("should not schedule a final-wager timer for a human player")
	}
}

func TestScheduleAIFinalAnswers_ArmsOneTimerPerCPU(t *testing.T) {
	rm, _ := newTestRoom(t)
	rm.seatPlayer("cpu-1", "Robot", true, "hard")

	rm.scheduleAIFinalAnswers(context.Background(), "socrates")

	if !rm.sched.Active("ai-final-answer:" + rm.RoomID + ":cpu-1") {
		t.Errorf("expected a final-answer timer for the seated CPU")
	}
}
