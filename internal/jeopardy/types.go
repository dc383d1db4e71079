// Package jeopardy implements the turn-based trivia room: phase state
// machine, buzzer arbitration, daily-double wagering, final-round fan-in,
// and CPU opponents. It mirrors the teacher's per-room mutex-guarded state
// and its lock-mutate-unlock-then-broadcast shape, generalizing the
// teacher's own phase graph (lobby/waiting/drawing/revealing/ended) into
// trivia's longer, branchier one.
package jeopardy

import (
	"log"
	"sync"
	"time"

	"github.com/kestrelgames/puzzlehall/internal/puzzle"
	"github.com/kestrelgames/puzzlehall/internal/registry"
	"github.com/kestrelgames/puzzlehall/internal/scheduler"
	"github.com/kestrelgames/puzzlehall/internal/store"
)

// Broadcaster is the subset of transport.Hub the room needs to emit events.
type Broadcaster interface {
	EmitToRoom(room, event string, data any)
	EmitToSocket(socketID, event string, data any)
}

// Phase is one node of the state machine from spec.md §4.4.
type Phase string

const (
	PhaseLobby             Phase = "lobby"
	PhaseSelectingClue     Phase = "selectingClue"
	PhaseReadingClue       Phase = "readingClue"
	PhaseBuzzerOpen        Phase = "buzzerOpen"
	PhasePlayerAnswering   Phase = "playerAnswering"
	PhaseShowingResult     Phase = "showingResult"
	PhaseDailyDoubleWager  Phase = "dailyDoubleWager"
	PhaseDailyDoubleAnswer Phase = "dailyDoubleAnswer"
	PhaseFinalCategory     Phase = "finalCategory"
	PhaseFinalWager        Phase = "finalWager"
	PhaseFinalClue         Phase = "finalClue"
	PhaseFinalResults      Phase = "finalResults"
	PhaseGameOver          Phase = "gameOver"
)

// Round identifies which board is live.
type Round string

const (
	RoundJeopardy       Round = "jeopardy"
	RoundDoubleJeopardy Round = "doubleJeopardy"
	RoundFinalJeopardy  Round = "finalJeopardy"
)

// Player is one seated participant, human or CPU.
type Player struct {
	SocketID     string
	Name         string
	Color        string
	Score        int
	IsAI         bool
	AIDifficulty string
	DeviceID     string
}

// AIProfile is a CPU opponent's behavioral tuning, per spec.md §6.
type AIProfile struct {
	BuzzSpeed  float64
	Accuracy   float64
	SkipChance float64
}

var aiProfiles = map[string]AIProfile{
	"easy":   {BuzzSpeed: 0.3, Accuracy: 0.5, SkipChance: 0.35},
	"medium": {BuzzSpeed: 0.5, Accuracy: 0.7, SkipChance: 0.15},
	"hard":   {BuzzSpeed: 0.8, Accuracy: 0.9, SkipChance: 0.05},
}

// palette is the eight-color trivia palette, per spec.md §6.
var palette = []string{
	"#F44336", "#2196F3", "#4CAF50", "#FFC107",
	"#9C27B0", "#FF9800", "#00BCD4", "#795548",
}

// FinalState is the fan-in bookkeeping for the final-Jeopardy round.
type FinalState struct {
	Wagers      map[string]int
	Answers     map[string]string
	RevealOrder []string
	Revealed    map[string]bool
}

// Room is one trivia game, keyed by a 4-character room id.
type Room struct {
	mu sync.RWMutex

	RoomID string
	GameID string
	Game   *puzzle.JeopardyGame

	Phase        Phase
	CurrentRound Round
	UsedClues    map[string]struct{}

	players     map[string]*Player
	playerOrder []string

	HostSocket        string
	ControllingPlayer string

	CurrentClue      *puzzle.JeopardyClue
	buzzedPlayers    map[string]struct{}
	AnsweringPlayer  string
	DailyDoubleWager int

	Final FinalState

	emptyAt *time.Time

	sched     *scheduler.Scheduler
	store     store.Store
	transport Broadcaster
}

// Registry holds one Room per room id, sharded per spec.md §9.
type Registry struct {
	rooms *registry.Sharded[*Room]
}

// NewRegistry returns an empty room registry.
func NewRegistry() *Registry {
	return &Registry{rooms: registry.New[*Room]()}
}

// Get returns the room for id, if present.
func (r *Registry) Get(id string) (*Room, bool) {
	return r.rooms.Get(id)
}

// Delete removes the room for id.
func (r *Registry) Delete(id string) {
	r.rooms.Delete(id)
}

// idleSince reports how long the room has had zero seated players and its
// phase at the time, if it currently has none.
func (rm *Room) idleSince() (time.Time, Phase, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	if rm.emptyAt == nil {
		return time.Time{}, "", false
	}
	return *rm.emptyAt, rm.Phase, true
}

// EvictIdle deletes every empty room, cancelling its scheduler first so no
// stray CPU timer outlives it. Per spec.md §4.4's disconnect table, an empty
// room not in PhaseGameOver is deleted on sight rather than waiting out
// maxIdle — that linger is reserved for the post-gameOver "final results"
// display window.
func (r *Registry) EvictIdle(maxIdle time.Duration) {
	var stale []string
	r.rooms.Range(func(id string, room *Room) {
		since, phase, empty := room.idleSince()
		if !empty {
			return
		}
		if phase != PhaseGameOver || time.Since(since) >= maxIdle {
			stale = append(stale, id)
		}
	})
	for _, id := range stale {
		if room, ok := r.rooms.Get(id); ok {
			room.sched.CancelAll()
		}
		r.rooms.Delete(id)
		log.Printf("[Jeopardy] room=%s: evicted", id)
	}
}

// CancelAll cancels every pending scheduler timer across every room, used
// during process shutdown so no CPU turn or phase timer fires after the
// transport it would broadcast through is gone.
func (r *Registry) CancelAll() {
	r.rooms.Range(func(_ string, room *Room) {
		room.sched.CancelAll()
	})
}

func usedKey(cat, row int) string {
	return keyOf(cat, row)
}
