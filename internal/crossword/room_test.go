package crossword

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

func (f *fakeBroadcaster) EmitToRoomExcept(room, event string, data any, exclude string) {
	f.events = append(f.events, recordedEvent{room: room, event: event, data: data})
}

func (f *fakeBroadcaster) EmitToSocket(socketID, event string, data any) {
	f.events = append(f.events, recordedEvent{room: socketID, event: event, data: data})
}

func (f *fakeBroadcaster) has(event string) bool {
	for _, e := range f.events {
		if e.event == event {
			return true
		}
	}
	return false
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

// testPuzzle is three independent across-only words, each on its own row
// separated by a blocked row, so a completed word never spans a down clue.
func testPuzzle() *puzzle.Puzzle {
	p := &puzzle.Puzzle{
		Date:       "2026-08-06",
		Dimensions: puzzle.Dimensions{Rows: 5, Cols: 3},
		Grid:       []string{"CAT", "...", "DOG", "...", "FOX"},
	}
	p.Clues.Across = []puzzle.Clue{
		{Number: 1, Row: 0, Col: 0, Clue: "c1", Answer: "CAT"},
		{Number: 2, Row: 2, Col: 0, Clue: "c2", Answer: "DOG"},
		{Number: 3, Row: 4, Col: 0, Clue: "c3", Answer: "FOX"},
	}
	return p
}

func newTestRoom(t *testing.T) (*Room, *fakeBroadcaster) {
	t.Helper()
	bc := &fakeBroadcaster{}
	rm := &Room{
		Date:        "2026-08-06",
		Puzzle:      testPuzzle(),
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
		store:     fakeStore{},
		transport: bc,
		sched:     scheduler.New(),
	}
	rm.Join(context.Background(), "p1", "Alice", "", false)
	rm.Join(context.Background(), "p2", "Bob", "", false)
	return rm, bc
}

func fillWord(rm *Room, row int, letters string) {
	ctx := context.Background()
	for i, r := range letters {
		rm.CellUpdate(ctx, "p1", row, i, string(r))
	}
}

func TestJoin_FirstMemberStartsTimerAndClearsEmptyAt(t *testing.T) {
	bc := &fakeBroadcaster{}
	rm := &Room{
		Date:        "2026-08-06",
		Puzzle:      testPuzzle(),
		members:     make(map[string]*Member),
		pauses:      make(map[string]struct{}),
		sharedGrid:  make(map[string]string),
		cellFillers: make(map[string]string),
		points:      make(map[string]int),
		guesses:     make(map[string]store.GuessStats),
		hint:        HintState{Votes: make(map[string]struct{}), HintCells: make(map[string]struct{})},
		bots:        make(map[string]*botState),
		store:       fakeStore{},
		transport:   bc,
		sched:       scheduler.New(),
	}
	now := time.Now()
	rm.emptyAt = &now

	rm.Join(context.Background(), "p1", "Alice", "", false)

	rm.mu.RLock()
	started := rm.timerStartedAt != nil
	empty := rm.emptyAt
	rm.mu.RUnlock()
	if !started {
		t.Errorf("expected the solve timer to start on the first joiner")
	}
	if empty != nil {
		t.Errorf("expected emptyAt to be cleared once a member joins")
	}
}

func TestLeave_LastHumanStampsEmptyAt(t *testing.T) {
	rm, _ := newTestRoom(t)
	rm.Leave(context.Background(), "p1")
	rm.Leave(context.Background(), "p2")

	since, empty := rm.idleSince()
	if !empty {
		t.Fatalf("expected the room to be marked empty once every human left")
	}
	if time.Since(since) > time.Second {
		t.Errorf("emptyAt = %v, expected to be stamped just now", since)
	}
}

func TestLeave_NotLastHumanLeavesEmptyAtUnset(t *testing.T) {
	rm, _ := newTestRoom(t)
	rm.Leave(context.Background(), "p1")

	if _, empty := rm.idleSince(); empty {
		t.Errorf("room should not be marked empty while p2 remains")
	}
}

func TestCellUpdate_CorrectLetterAwardsBasePoints(t *testing.T) {
	rm, bc := newTestRoom(t)
	rm.CellUpdate(context.Background(), "p1", 0, 0, "C")

	rm.mu.RLock()
	points := rm.points["Alice"]
	rm.mu.RUnlock()
	if points != letterBase {
		t.Errorf("points = %d, want %d", points, letterBase)
	}
	if !bc.has("cell-updated") {
		t.Errorf("expected a cell-updated event")
	}
}

func TestCellUpdate_WrongLetterAppliesPenalty(t *testing.T) {
	rm, _ := newTestRoom(t)
	rm.CellUpdate(context.Background(), "p1", 0, 0, "Z")

	rm.mu.RLock()
	points := rm.points["Alice"]
	rm.mu.RUnlock()
	if points != wrongDelta {
		t.Errorf("points = %d, want %d", points, wrongDelta)
	}
}

func TestCellUpdate_WordCompletionAwardsBonus(t *testing.T) {
	rm, _ := newTestRoom(t)
	fillWord(rm, 0, "CA")
	before := rm.points["Alice"]
	rm.CellUpdate(context.Background(), "p1", 0, 2, "T")

	rm.mu.RLock()
	after := rm.points["Alice"]
	rm.mu.RUnlock()
	gained := after - before
	if gained != letterBase+wordBonus1 {
		t.Errorf("gained = %d, want %d (letter + single-word bonus)", gained, letterBase+wordBonus1)
	}
}

func TestCellUpdate_ThreeWordCompletionsIgniteFire(t *testing.T) {
	rm, bc := newTestRoom(t)

	fillWord(rm, 0, "CAT")
	fillWord(rm, 2, "DOG")

	rm.mu.RLock()
	onFireBeforeThird := rm.members["p1"].Fire.OnFire
	rm.mu.RUnlock()
	if onFireBeforeThird {
		t.Fatalf("should not be on fire after only two word completions")
	}

	fillWord(rm, 4, "FOX")

	rm.mu.RLock()
	fire := rm.members["p1"].Fire
	rm.mu.RUnlock()
	if !fire.OnFire {
		t.Fatalf("expected fire to ignite on the third word completion within the window")
	}
	if fire.Multiplier != 1.5 {
		t.Errorf("ignition multiplier = %v, want 1.5", fire.Multiplier)
	}
	if !bc.has("fire-update") {
		t.Errorf("expected a fire-update event on ignition")
	}
	if !rm.sched.Active(fireTimerName("p1")) {
		t.Errorf("expected a fire-expiry timer to be armed")
	}
}

func TestCellUpdate_WrongAnswerWhileOnFireBreaksIt(t *testing.T) {
	rm, bc := newTestRoom(t)
	rm.mu.Lock()
	member := rm.members["p1"]
	member.Fire.OnFire = true
	member.Fire.Multiplier = 1.5
	member.Fire.ExpiresAt = time.Now().Add(time.Minute)
	rm.mu.Unlock()
	rm.sched.Arm(fireTimerName("p1"), time.Minute, func() {})

	rm.CellUpdate(context.Background(), "p1", 0, 0, "Z")

	rm.mu.RLock()
	onFire := rm.members["p1"].Fire.OnFire
	rm.mu.RUnlock()
	if onFire {
		t.Errorf("fire should break on a wrong guess")
	}
	if rm.sched.Active(fireTimerName("p1")) {
		t.Errorf("fire-expiry timer should be cancelled once fire breaks")
	}
	if !bc.has("fire-expired") {
		t.Errorf("expected a fire-expired event")
	}
}

func TestHintVote_RevealsOnceEveryHumanVotes(t *testing.T) {
	rm, bc := newTestRoom(t)
	rm.HintVote(context.Background(), "p1")

	if bc.has("hint-reveal") {
		t.Fatalf("should not reveal a hint after only one of two members voted")
	}

	rm.HintVote(context.Background(), "p2")
	if !bc.has("hint-reveal") {
		t.Fatalf("expected a hint-reveal once every human member voted")
	}

	rm.mu.RLock()
	votes := len(rm.hint.Votes)
	rm.mu.RUnlock()
	if votes != 0 {
		t.Errorf("votes should reset to 0 after a reveal, got %d", votes)
	}
}

func TestIsPuzzleComplete(t *testing.T) {
	rm, _ := newTestRoom(t)
	if rm.isPuzzleComplete() {
		t.Fatalf("a fresh puzzle should not be complete")
	}
	fillWord(rm, 0, "CAT")
	fillWord(rm, 2, "DOG")
	fillWord(rm, 4, "FOX")
	rm.mu.RLock()
	complete := rm.isPuzzleComplete()
	rm.mu.RUnlock()
	if !complete {
		t.Errorf("expected the puzzle to be complete once every word is filled correctly")
	}
}
