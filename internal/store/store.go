// Package store is the narrow persistence façade the crossword and trivia
// engines treat as a slow, fallible key/value-like collaborator. Nothing in
// internal/crossword or internal/jeopardy talks to a database directly; they
// only ever see the Store interface below.
package store

import (
	"context"
	"time"

	"github.com/kestrelgames/puzzlehall/internal/puzzle"
)

// GuessStats tracks a user's total and incorrect guess counts for a puzzle.
type GuessStats struct {
	Total     int `json:"total"`
	Incorrect int `json:"incorrect"`
}

// SharedState is the persisted authoritative state of one crossword's shared
// grid: every filled cell, who filled it, running scores, and guess tallies.
type SharedState struct {
	UserGrid    map[string]string     `json:"userGrid"`
	CellFillers map[string]string     `json:"cellFillers"`
	Points      map[string]int        `json:"points"`
	Guesses     map[string]GuessStats `json:"guesses"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// User is a self-asserted device identity, per spec.md's non-goal of
// authentication beyond a device id.
type User struct {
	ID       string
	DeviceID string
	IP       string
	Name     string
	Color    string
}

// Store is the persistence façade. Every method may fail; callers decide
// per spec.md §7 whether a fault is logged-and-dropped (writes) or must
// propagate (reads the engine cannot proceed without).
type Store interface {
	// Puzzle store.
	GetPuzzle(ctx context.Context, date string) (*puzzle.Puzzle, error)
	HasPuzzle(ctx context.Context, date string) (bool, error)

	// Shared crossword state.
	GetState(ctx context.Context, date string) (*SharedState, error)
	UpsertCell(ctx context.Context, date string, row, col int, letter string) error
	UpsertCellFiller(ctx context.Context, date string, row, col int, name string) error
	GetCellFillers(ctx context.Context, date string) (map[string]string, error)
	ClearState(ctx context.Context, date string) error

	// Scoring.
	AddPoints(ctx context.Context, date, name string, delta int) error
	AddGuess(ctx context.Context, date, name string, correct bool) error

	// Solve timer.
	GetTimer(ctx context.Context, date string) (time.Duration, error)
	SaveTimer(ctx context.Context, date string, elapsed time.Duration) error

	// Users.
	GetUser(ctx context.Context, deviceID string) (*User, error)
	CreateUser(ctx context.Context, ip, name, color, deviceID string) (*User, error)
	GetUserColors(ctx context.Context, names []string) (map[string]string, error)
	GetUserCount(ctx context.Context) (int, error)

	// Trivia.
	GetRandomJeopardyGame(ctx context.Context) (*puzzle.JeopardyGame, error)
	GetJeopardyGame(ctx context.Context, gameID string) (*puzzle.JeopardyGame, error)
	SaveJeopardyProgress(ctx context.Context, gameID string, cluesAnswered, totalClues int, currentRound string, completed bool) error
}

// HintSentinel is the reserved cellFillers value marking a cell filled by
// the group-hint mechanism rather than a named member.
const HintSentinel = "(hint)"
