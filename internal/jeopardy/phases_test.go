package jeopardy

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelgames/puzzlehall/internal/puzzle"
	"github.com/kestrelgames/puzzlehall/internal/scheduler"
	"github.com/kestrelgames/puzzlehall/internal/store"
)

type recordedEvent struct {
	room  string
	event string
	data  any
}

type fakeBroadcaster struct {
	events []recordedEvent
}

func (f *fakeBroadcaster) EmitToRoom(room, event string, data any) {
	f.events = append(f.events, recordedEvent{room: room, event: event, data: data})
}

func (f *fakeBroadcaster) EmitToSocket(socketID, event string, data any) {
	f.events = append(f.events, recordedEvent{room: socketID, event: event, data: data})
}

type fakeStore struct{}

func (fakeStore) GetPuzzle(ctx context.Context, date string) (*puzzle.Puzzle, error) { return nil, nil }
func (fakeStore) HasPuzzle(ctx context.Context, date string) (bool, error)           { return false, nil }
func (fakeStore) GetState(ctx context.Context, date string) (*store.SharedState, error) {
	return nil, nil
}
func (fakeStore) UpsertCell(ctx context.Context, date string, row, col int, letter string) error {
	return nil
}
func (fakeStore) UpsertCellFiller(ctx context.Context, date string, row, col int, name string) error {
	return nil
}
func (fakeStore) GetCellFillers(ctx context.Context, date string) (map[string]string, error) {
	return nil, nil
}
func (fakeStore) ClearState(ctx context.Context, date string) error { return nil }
func (fakeStore) AddPoints(ctx context.Context, date, name string, delta int) error {
	return nil
}
func (fakeStore) AddGuess(ctx context.Context, date, name string, correct bool) error {
	return nil
}
func (fakeStore) GetTimer(ctx context.Context, date string) (time.Duration, error) {
	return 0, nil
}
func (fakeStore) SaveTimer(ctx context.Context, date string, elapsed time.Duration) error {
	return nil
}
func (fakeStore) GetUser(ctx context.Context, deviceID string) (*store.User, error) {
	return nil, nil
}
func (fakeStore) CreateUser(ctx context.Context, ip, name, color, deviceID string) (*store.User, error) {
	return nil, nil
}
func (fakeStore) GetUserColors(ctx context.Context, names []string) (map[string]string, error) {
	return nil, nil
}
func (fakeStore) GetUserCount(ctx context.Context) (int, error) { return 0, nil }
func (fakeStore) GetRandomJeopardyGame(ctx context.Context) (*puzzle.JeopardyGame, error) {
	return nil, nil
}
func (fakeStore) GetJeopardyGame(ctx context.Context, gameID string) (*puzzle.JeopardyGame, error) {
	return nil, nil
}
func (fakeStore) SaveJeopardyProgress(ctx context.Context, gameID string, cluesAnswered, totalClues int, currentRound string, completed bool) error {
	return nil
}

func testGame() *puzzle.JeopardyGame {
	return &puzzle.JeopardyGame{
		GameID: "game-1",
		JRound: puzzle.JeopardyRound{
			Categories: []string{"A", "B", "C", "D", "E", "F"},
			Clues: []puzzle.JeopardyClue{
				{Cat: 0, Row: 1, Value: 200, Clue: "clue-a1", Answer: "gatsby"},
				{Cat: 1, Row: 1, Value: 200, Clue: "clue-b1-dd", Answer: "einstein", DailyDouble: true},
			},
		},
		DJRound: puzzle.JeopardyRound{
			Categories: []string{"A", "B", "C", "D", "E", "F"},
			Clues: []puzzle.JeopardyClue{
				{Cat: 0, Row: 1, Value: 400, Clue: "clue-a1-dj", Answer: "plato"},
			},
		},
		FJ: puzzle.FinalJeopardy{Category: "Final", Clue: "final-clue", Answer: "socrates"},
	}
}

func newTestRoom(t *testing.T) (*Room, *fakeBroadcaster) {
	t.Helper()
	bc := &fakeBroadcaster{}
	rm := &Room{
		RoomID:            "ABCD",
		GameID:            "game-1",
		Game:              testGame(),
		Phase:             PhaseSelectingClue,
		CurrentRound:      RoundJeopardy,
		UsedClues:         make(map[string]struct{}),
		players:           make(map[string]*Player),
		playerOrder:       nil,
		HostSocket:        "p1",
		ControllingPlayer: "p1",
		buzzedPlayers:     make(map[string]struct{}),
		sched:             scheduler.New(),
		store:             fakeStore{},
		transport:         bc,
	}
	rm.seatPlayer("p1", "Alice", false, "")
	rm.seatPlayer("p2", "Bob", false, "")
	return rm, bc
}

func TestClampWager(t *testing.T) {
	cases := []struct {
		name     string
		wager    int
		score    int
		roundMin int
		want     int
	}{
		{"scenario 5: over upper clamps to roundMin when score below it", 9999, 500, roundMinJeopardy, 1000},
		{"negative scorer floors at roundMin", 10, -200, roundMinJeopardy, 1000},
		{"within bounds passes through", 50, 2000, roundMinJeopardy, 50},
		{"double jeopardy upper uses doubled roundMin", 3000, 1500, roundMinDouble, 2000},
		{"below lower clamps to 5 for non-negative scorer", 1, 2000, roundMinJeopardy, 5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := clampWager(c.wager, c.score, c.roundMin)
			if got != c.want {
				t.Errorf("clampWager(%d, %d, %d) = %d, want %d", c.wager, c.score, c.roundMin, got, c.want)
			}
		})
	}
}

func TestSelectClue_NormalClueEntersReadingPhase(t *testing.T) {
	rm, bc := newTestRoom(t)
	rm.SelectClue(context.Background(), "p1", 0, 1)

	rm.mu.RLock()
	phase := rm.Phase
	rm.mu.RUnlock()
	if phase != PhaseReadingClue {
		t.Fatalf("phase = %v, want %v", phase, PhaseReadingClue)
	}
	if !rm.sched.Active("reading:" + rm.RoomID) {
		t.Errorf("expected reading timer to be armed")
	}
	found := false
	for _, e := range bc.events {
		if e.event == "clue-selected" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a clue-selected event")
	}
}

func TestSelectClue_DailyDoubleEntersWagerPhase(t *testing.T) {
	rm, bc := newTestRoom(t)
	rm.SelectClue(context.Background(), "p1", 1, 1)

	rm.mu.RLock()
	phase := rm.Phase
	answering := rm.AnsweringPlayer
	rm.mu.RUnlock()
	if phase != PhaseDailyDoubleWager {
		t.Fatalf("phase = %v, want %v", phase, PhaseDailyDoubleWager)
	}
	if answering != "p1" {
		t.Errorf("answeringPlayer = %q, want controller p1", answering)
	}
	found := false
	for _, e := range bc.events {
		if e.event == "daily-double" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a daily-double event")
	}
}

func TestSelectClue_RejectsNonController(t *testing.T) {
	rm, _ := newTestRoom(t)
	rm.SelectClue(context.Background(), "p2", 0, 1)

	rm.mu.RLock()
	phase := rm.Phase
	rm.mu.RUnlock()
	if phase != PhaseSelectingClue {
		t.Fatalf("phase changed to %v from a non-controller call", phase)
	}
}

func TestBuzzIn_FirstBuzzerWinsAndArmsAnswerTimeout(t *testing.T) {
	rm, bc := newTestRoom(t)
	rm.mu.Lock()
	rm.Phase = PhaseBuzzerOpen
	clue := puzzle.JeopardyClue{Cat: 0, Row: 1, Value: 200, Clue: "c", Answer: "gatsby"}
	rm.CurrentClue = &clue
	rm.mu.Unlock()
	rm.sched.Arm("buzzer-timeout:"+rm.RoomID, time.Minute, func() {})

	rm.BuzzIn(context.Background(), "p2")

	rm.mu.RLock()
	phase := rm.Phase
	answering := rm.AnsweringPlayer
	rm.mu.RUnlock()
	if phase != PhasePlayerAnswering {
		t.Fatalf("phase = %v, want %v", phase, PhasePlayerAnswering)
	}
	if answering != "p2" {
		t.Errorf("answeringPlayer = %q, want p2", answering)
	}
	if rm.sched.Active("buzzer-timeout:" + rm.RoomID) {
		t.Errorf("buzzer-timeout should have been cancelled on a winning buzz")
	}
	if !rm.sched.Active("answer-timeout:" + rm.RoomID) {
		t.Errorf("expected an answer-timeout to be armed")
	}
	found := false
	for _, e := range bc.events {
		if e.event == "buzzer-result" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a buzzer-result event")
	}
}

func TestBuzzIn_SecondBuzzIsIgnored(t *testing.T) {
	rm, _ := newTestRoom(t)
	rm.mu.Lock()
	rm.Phase = PhaseBuzzerOpen
	clue := puzzle.JeopardyClue{Cat: 0, Row: 1, Value: 200, Clue: "c", Answer: "gatsby"}
	rm.CurrentClue = &clue
	rm.mu.Unlock()

	rm.BuzzIn(context.Background(), "p1")
	rm.BuzzIn(context.Background(), "p2")

	rm.mu.RLock()
	answering := rm.AnsweringPlayer
	rm.mu.RUnlock()
	if answering != "p1" {
		t.Errorf("answeringPlayer = %q, want the first buzzer p1", answering)
	}
}

func TestSubmitAnswer_CorrectAppliesScoreDeltaAndAdvancesController(t *testing.T) {
	rm, bc := newTestRoom(t)
	rm.mu.Lock()
	rm.Phase = PhasePlayerAnswering
	rm.AnsweringPlayer = "p2"
	clue := puzzle.JeopardyClue{Cat: 0, Row: 1, Value: 200, Clue: "c", Answer: "gatsby"}
	rm.CurrentClue = &clue
	rm.ControllingPlayer = "p1"
	rm.mu.Unlock()

	rm.SubmitAnswer(context.Background(), "p2", "The Great Gatsby")

	rm.mu.RLock()
	score := rm.players["p2"].Score
	controller := rm.ControllingPlayer
	rm.mu.RUnlock()
	if score != 200 {
		t.Errorf("p2 score = %d, want 200", score)
	}
	if controller != "p2" {
		t.Errorf("controllingPlayer = %q, want p2 after a correct answer", controller)
	}
	found := false
	for _, e := range bc.events {
		if e.event == "answer-result" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an answer-result event")
	}
}

func TestSubmitAnswer_WrongAppliesNegativeDelta(t *testing.T) {
	rm, _ := newTestRoom(t)
	rm.mu.Lock()
	rm.Phase = PhasePlayerAnswering
	rm.AnsweringPlayer = "p2"
	clue := puzzle.JeopardyClue{Cat: 0, Row: 1, Value: 200, Clue: "c", Answer: "gatsby"}
	rm.CurrentClue = &clue
	rm.buzzedPlayers["p2"] = struct{}{}
	rm.mu.Unlock()

	rm.SubmitAnswer(context.Background(), "p2", "moby dick")

	rm.mu.RLock()
	score := rm.players["p2"].Score
	rm.mu.RUnlock()
	if score != -200 {
		t.Errorf("p2 score = %d, want -200", score)
	}
}

func TestAfterWrongAnswer_RebuzzesWhenPlayersRemain(t *testing.T) {
	rm, _ := newTestRoom(t)
	rm.mu.Lock()
	rm.buzzedPlayers["p2"] = struct{}{}
	rm.mu.Unlock()

	rm.afterWrongAnswer(context.Background())

	if !rm.sched.Active("rebuzz-delay:" + rm.RoomID) {
		t.Errorf("expected a rebuzz-delay timer since p1 has not buzzed yet")
	}
}

func TestAfterWrongAnswer_RevealsWhenEveryoneHasBuzzed(t *testing.T) {
	rm, _ := newTestRoom(t)
	rm.mu.Lock()
	rm.buzzedPlayers["p1"] = struct{}{}
	rm.buzzedPlayers["p2"] = struct{}{}
	rm.mu.Unlock()

	rm.afterWrongAnswer(context.Background())

	if rm.sched.Active("rebuzz-delay:" + rm.RoomID) {
		t.Errorf("should not rebuzz once every seated player has buzzed")
	}
	if !rm.sched.Active("reveal-delay:" + rm.RoomID) {
		t.Errorf("expected a reveal-delay timer since no one else can buzz")
	}
}

func TestFinalWager_ClampsToNonNegativeScoreBound(t *testing.T) {
	rm, _ := newTestRoom(t)
	rm.mu.Lock()
	rm.Phase = PhaseFinalWager
	rm.players["p1"].Score = 800
	rm.Final = FinalState{Wagers: make(map[string]int), Answers: make(map[string]string), Revealed: make(map[string]bool)}
	rm.mu.Unlock()

	rm.FinalWager(context.Background(), "p1", 5000)

	rm.mu.RLock()
	wager := rm.Final.Wagers["p1"]
	rm.mu.RUnlock()
	if wager != 800 {
		t.Errorf("clamped wager = %d, want 800 (player's score)", wager)
	}
}

func TestFinalWager_NegativeScoreWagersZero(t *testing.T) {
	rm, _ := newTestRoom(t)
	rm.mu.Lock()
	rm.Phase = PhaseFinalWager
	rm.players["p1"].Score = -300
	rm.Final = FinalState{Wagers: make(map[string]int), Answers: make(map[string]string), Revealed: make(map[string]bool)}
	rm.mu.Unlock()

	rm.FinalWager(context.Background(), "p1", 200)

	rm.mu.RLock()
	wager := rm.Final.Wagers["p1"]
	rm.mu.RUnlock()
	if wager != 0 {
		t.Errorf("clamped wager = %d, want 0 for a negative-score player", wager)
	}
}

func TestFinalWager_AdvancesOnlyOnceEveryoneHasWagered(t *testing.T) {
	rm, bc := newTestRoom(t)
	rm.mu.Lock()
	rm.Phase = PhaseFinalWager
	rm.Final = FinalState{Wagers: make(map[string]int), Answers: make(map[string]string), Revealed: make(map[string]bool)}
	rm.mu.Unlock()

	rm.FinalWager(context.Background(), "p1", 100)
	rm.mu.RLock()
	phase := rm.Phase
	rm.mu.RUnlock()
	if phase != PhaseFinalWager {
		t.Fatalf("phase advanced to %v after only one of two players wagered", phase)
	}

	rm.FinalWager(context.Background(), "p2", 100)
	rm.mu.RLock()
	phase = rm.Phase
	rm.mu.RUnlock()
	if phase != PhaseFinalClue {
		t.Fatalf("phase = %v, want %v once every player has wagered", phase, PhaseFinalClue)
	}
	found := false
	for _, e := range bc.events {
		if e.event == "final-clue" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a final-clue event once wagering completed")
	}
}

func TestBeginFinalReveal_OrdersAscendingByScore(t *testing.T) {
	rm, _ := newTestRoom(t)
	rm.mu.Lock()
	rm.players["p1"].Score = 1000
	rm.players["p2"].Score = 200
	rm.Final = FinalState{Wagers: make(map[string]int), Answers: make(map[string]string), Revealed: make(map[string]bool)}
	rm.mu.Unlock()

	rm.beginFinalReveal(context.Background())

	rm.mu.RLock()
	order := rm.Final.RevealOrder
	phase := rm.Phase
	rm.mu.RUnlock()
	if phase != PhaseFinalResults {
		t.Fatalf("phase = %v, want %v", phase, PhaseFinalResults)
	}
	if len(order) != 2 || order[0] != "p2" || order[1] != "p1" {
		t.Errorf("revealOrder = %v, want [p2 p1] (ascending score)", order)
	}
}
