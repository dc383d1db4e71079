// Package crossword implements the collaborative crossword room: shared
// grid editing, scoring, fire streaks, hint voting, and synthetic bot
// solvers. It mirrors the teacher's per-room internal.Room/Player split —
// generalized from one drawing game per room to one shared puzzle per room,
// with a membership map instead of a player map so bots and humans share
// the same edit pipeline.
package crossword

import (
	"sync"
	"time"

	"github.com/kestrelgames/puzzlehall/internal/puzzle"
	"github.com/kestrelgames/puzzlehall/internal/registry"
	"github.com/kestrelgames/puzzlehall/internal/scheduler"
	"github.com/kestrelgames/puzzlehall/internal/store"
)

// Broadcaster is the subset of transport.Hub the room needs to emit events.
// Kept as a narrow interface so this package never imports transport.
type Broadcaster interface {
	EmitToRoom(room, event string, data any)
	EmitToRoomExcept(room, event string, data any, exclude string)
	EmitToSocket(socketID, event string, data any)
}

// ProgressListener receives debounced puzzle-progress summaries, used by a
// global "calendar" view outside any single room.
type ProgressListener interface {
	OnPuzzleProgress(date string, filled, total int)
}

// completionEvent is one word completion recorded for fire-ignition
// bookkeeping, per spec.md §3's FireStreak.recentWordCompletions.
type completionEvent struct {
	at        time.Time
	count     int
	wordCells []puzzle.Cell
}

// FireStreak is strictly per-membership state, colocated on the Member
// record per spec.md §9's design note so eviction can't leak a live expiry
// timer.
type FireStreak struct {
	recent               []completionEvent
	OnFire               bool
	ExpiresAt            time.Time
	FireCells            map[string]struct{}
	Multiplier           float64
	WordsCompletedOnFire int
}

// Member is one crossword participant, human or bot.
type Member struct {
	SocketID  string
	UserID    string
	UserName  string
	Color     string
	CursorRow int
	CursorCol int
	Direction string
	IsBot     bool

	Fire FireStreak
}

// HintState tracks the group hint-vote mechanism.
type HintState struct {
	Votes     map[string]struct{}
	HintCells map[string]struct{}
	Available bool
}

// Room is one collaborative crossword, keyed by puzzle date.
type Room struct {
	mu sync.RWMutex

	Date   string
	Puzzle *puzzle.Puzzle

	members map[string]*Member // socketID/botID -> Member
	pauses  map[string]struct{}

	sharedGrid  map[string]string // "r,c" -> letter, mirrors store.SharedState
	cellFillers map[string]string
	points      map[string]int
	guesses     map[string]store.GuessStats

	hint HintState

	timerAccumulated time.Duration
	timerStartedAt   *time.Time

	bots      map[string]*botState
	wordOrder []botWord

	emptyAt *time.Time

	store     store.Store
	transport Broadcaster
	progress  ProgressListener
	sched     *scheduler.Scheduler
}

// Registry holds one Room per puzzle date, sharded per spec.md §9.
type Registry struct {
	rooms *registry.Sharded[*Room]
}

// NewRegistry returns an empty room registry.
func NewRegistry() *Registry {
	return &Registry{rooms: registry.New[*Room]()}
}
