package crossword

import (
	"context"
	"testing"
)

func TestAddBot_SeatsMemberAndBroadcastsBotList(t *testing.T) {
	rm, bc := newTestRoom(t)
	botID := rm.AddBot(context.Background(), "Rookie", Std)

	rm.mu.RLock()
	_, seated := rm.members[botID]
	_, tracked := rm.bots[botID]
	rm.mu.RUnlock()
	if !seated {
		t.Errorf("expected the bot to be seated as a member")
	}
	if !tracked {
		t.Errorf("expected the bot to be tracked in rm.bots")
	}
	if !bc.has("ai-bot-list") {
		t.Errorf("expected an ai-bot-list broadcast after adding a bot")
	}
}

func TestRemoveBot_TearsDownMemberAndTimers(t *testing.T) {
	rm, _ := newTestRoom(t)
	botID := rm.AddBot(context.Background(), "Rookie", Std)
	rm.mu.Lock()
	rm.bots[botID].timerNames = append(rm.bots[botID].timerNames, "fake-timer:"+botID)
	rm.mu.Unlock()
	rm.sched.Arm("fake-timer:"+botID, minCellDelay, func() {})

	rm.RemoveBot(context.Background(), botID)

	rm.mu.RLock()
	_, seated := rm.members[botID]
	_, tracked := rm.bots[botID]
	rm.mu.RUnlock()
	if seated {
		t.Errorf("expected the bot to be removed from members")
	}
	if tracked {
		t.Errorf("expected the bot to be removed from rm.bots")
	}
	if rm.sched.Active("fake-timer:" + botID) {
		t.Errorf("expected every recorded bot timer to be cancelled")
	}
}

func TestRemoveBot_UnknownIDIsNoop(t *testing.T) {
	rm, bc := newTestRoom(t)
	before := len(bc.events)

	rm.RemoveBot(context.Background(), "not-a-real-bot")

	if len(bc.events) != before {
		t.Errorf("expected no broadcast for removing an unknown bot id")
	}
}
