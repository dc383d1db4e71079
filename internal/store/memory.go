package store

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/kestrelgames/puzzlehall/internal/puzzle"
)

// Memory is an in-process Store backed by guarded maps, the same shape the
// teacher keeps its Room/Player state in. It is used for tests and for
// running the server without a configured database.
type Memory struct {
	mu sync.RWMutex

	puzzles  map[string]*puzzle.Puzzle
	states   map[string]*SharedState
	timers   map[string]time.Duration
	users    map[string]*User // by deviceID
	games    map[string]*puzzle.JeopardyGame
	progress map[string]jeopardyProgress
}

type jeopardyProgress struct {
	cluesAnswered int
	totalClues    int
	currentRound  string
	completed     bool
}

// NewMemory returns an empty in-memory store. Callers seed it with SeedPuzzle
// / SeedJeopardyGame before serving traffic.
func NewMemory() *Memory {
	return &Memory{
		puzzles:  make(map[string]*puzzle.Puzzle),
		states:   make(map[string]*SharedState),
		timers:   make(map[string]time.Duration),
		users:    make(map[string]*User),
		games:    make(map[string]*puzzle.JeopardyGame),
		progress: make(map[string]jeopardyProgress),
	}
}

// SeedPuzzle registers a crossword puzzle for lookup by date.
func (m *Memory) SeedPuzzle(p *puzzle.Puzzle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puzzles[p.Date] = p
}

// SeedJeopardyGame registers a trivia game for lookup by id.
func (m *Memory) SeedJeopardyGame(g *puzzle.JeopardyGame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.GameID] = g
}

func (m *Memory) GetPuzzle(_ context.Context, date string) (*puzzle.Puzzle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.puzzles[date]
	if !ok {
		return nil, fmt.Errorf("puzzle not found: %s", date)
	}
	return p, nil
}

func (m *Memory) HasPuzzle(_ context.Context, date string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.puzzles[date]
	return ok, nil
}

func (m *Memory) stateLocked(date string) *SharedState {
	s, ok := m.states[date]
	if !ok {
		s = &SharedState{
			UserGrid:    make(map[string]string),
			CellFillers: make(map[string]string),
			Points:      make(map[string]int),
			Guesses:     make(map[string]GuessStats),
		}
		m.states[date] = s
	}
	return s
}

func cellKey(row, col int) string {
	return fmt.Sprintf("%d,%d", row, col)
}

func (m *Memory) GetState(_ context.Context, date string) (*SharedState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[date]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) UpsertCell(_ context.Context, date string, row, col int, letter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateLocked(date)
	s.UserGrid[cellKey(row, col)] = letter
	s.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) UpsertCellFiller(_ context.Context, date string, row, col int, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateLocked(date)
	if name == "" {
		delete(s.CellFillers, cellKey(row, col))
	} else {
		s.CellFillers[cellKey(row, col)] = name
	}
	s.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) GetCellFillers(_ context.Context, date string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[date]
	if !ok {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(s.CellFillers))
	for k, v := range s.CellFillers {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) ClearState(_ context.Context, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, date)
	delete(m.timers, date)
	return nil
}

func (m *Memory) AddPoints(_ context.Context, date, name string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateLocked(date)
	s.Points[name] += delta
	return nil
}

func (m *Memory) AddGuess(_ context.Context, date, name string, correct bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateLocked(date)
	g := s.Guesses[name]
	g.Total++
	if !correct {
		g.Incorrect++
	}
	s.Guesses[name] = g
	return nil
}

func (m *Memory) GetTimer(_ context.Context, date string) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timers[date], nil
}

func (m *Memory) SaveTimer(_ context.Context, date string, elapsed time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers[date] = elapsed
	return nil
}

func (m *Memory) GetUser(_ context.Context, deviceID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[deviceID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) CreateUser(_ context.Context, ip, name, color, deviceID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &User{
		ID:       fmt.Sprintf("u-%d", rand.Int63()),
		DeviceID: deviceID,
		IP:       ip,
		Name:     name,
		Color:    color,
	}
	m.users[deviceID] = u
	cp := *u
	return &cp, nil
}

func (m *Memory) GetUserColors(_ context.Context, names []string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	out := make(map[string]string)
	for _, u := range m.users {
		if _, ok := want[u.Name]; ok {
			out[u.Name] = u.Color
		}
	}
	return out, nil
}

func (m *Memory) GetUserCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

func (m *Memory) GetRandomJeopardyGame(_ context.Context) (*puzzle.JeopardyGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.games) == 0 {
		return nil, fmt.Errorf("no jeopardy games available")
	}
	ids := make([]string, 0, len(m.games))
	for id := range m.games {
		ids = append(ids, id)
	}
	return m.games[ids[rand.Intn(len(ids))]], nil
}

func (m *Memory) GetJeopardyGame(_ context.Context, gameID string) (*puzzle.JeopardyGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil, fmt.Errorf("jeopardy game not found: %s", gameID)
	}
	return g, nil
}

func (m *Memory) SaveJeopardyProgress(_ context.Context, gameID string, cluesAnswered, totalClues int, currentRound string, completed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[gameID] = jeopardyProgress{
		cluesAnswered: cluesAnswered,
		totalClues:    totalClues,
		currentRound:  currentRound,
		completed:     completed,
	}
	return nil
}
