package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kestrelgames/puzzlehall/internal/puzzle"
)

// Postgres implements Store against a Postgres database, matching the
// pool-per-repo shape the retrieved pack uses for its pgx-backed
// repositories. Puzzle and game content is stored as JSONB since the façade
// only ever needs whole-document reads by key; the mutable crossword state
// is normalized so point/guess/timer updates stay cheap upserts.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a connection pool and returns a Postgres store. Callers
// are expected to have already applied the schema in schema.sql.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) GetPuzzle(ctx context.Context, date string) (*puzzle.Puzzle, error) {
	row := p.pool.QueryRow(ctx, `SELECT data FROM puzzles WHERE date = $1`, date)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("store: puzzle not found: %s", date)
		}
		return nil, fmt.Errorf("store: get puzzle: %w", err)
	}
	var out puzzle.Puzzle
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("store: decode puzzle: %w", err)
	}
	return &out, nil
}

func (p *Postgres) HasPuzzle(ctx context.Context, date string) (bool, error) {
	row := p.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM puzzles WHERE date = $1)`, date)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("store: has puzzle: %w", err)
	}
	return exists, nil
}

func (p *Postgres) GetState(ctx context.Context, date string) (*SharedState, error) {
	rows, err := p.pool.Query(ctx, `SELECT row, col, letter, filler FROM crossword_cells WHERE date = $1`, date)
	if err != nil {
		return nil, fmt.Errorf("store: get state cells: %w", err)
	}
	defer rows.Close()

	state := &SharedState{
		UserGrid:    make(map[string]string),
		CellFillers: make(map[string]string),
		Points:      make(map[string]int),
		Guesses:     make(map[string]GuessStats),
	}
	found := false
	for rows.Next() {
		found = true
		var row, col int
		var letter, filler sql.NullString
		if err := rows.Scan(&row, &col, &letter, &filler); err != nil {
			return nil, fmt.Errorf("store: scan cell: %w", err)
		}
		key := cellKey(row, col)
		if letter.Valid {
			state.UserGrid[key] = letter.String
		}
		if filler.Valid {
			state.CellFillers[key] = filler.String
		}
	}
	if !found {
		return nil, nil
	}

	scoreRows, err := p.pool.Query(ctx, `SELECT name, points, guesses_total, guesses_incorrect FROM crossword_scores WHERE date = $1`, date)
	if err != nil {
		return nil, fmt.Errorf("store: get state scores: %w", err)
	}
	defer scoreRows.Close()
	for scoreRows.Next() {
		var name string
		var pts, total, incorrect int
		if err := scoreRows.Scan(&name, &pts, &total, &incorrect); err != nil {
			return nil, fmt.Errorf("store: scan score: %w", err)
		}
		state.Points[name] = pts
		state.Guesses[name] = GuessStats{Total: total, Incorrect: incorrect}
	}
	return state, nil
}

func (p *Postgres) UpsertCell(ctx context.Context, date string, row, col int, letter string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO crossword_cells (date, row, col, letter)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (date, row, col) DO UPDATE SET letter = EXCLUDED.letter
	`, date, row, col, nullableString(letter))
	if err != nil {
		return fmt.Errorf("store: upsert cell: %w", err)
	}
	return nil
}

func (p *Postgres) UpsertCellFiller(ctx context.Context, date string, row, col int, name string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO crossword_cells (date, row, col, filler)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (date, row, col) DO UPDATE SET filler = EXCLUDED.filler
	`, date, row, col, nullableString(name))
	if err != nil {
		return fmt.Errorf("store: upsert cell filler: %w", err)
	}
	return nil
}

func (p *Postgres) GetCellFillers(ctx context.Context, date string) (map[string]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT row, col, filler FROM crossword_cells WHERE date = $1 AND filler IS NOT NULL`, date)
	if err != nil {
		return nil, fmt.Errorf("store: get cell fillers: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var row, col int
		var filler string
		if err := rows.Scan(&row, &col, &filler); err != nil {
			return nil, fmt.Errorf("store: scan filler: %w", err)
		}
		out[cellKey(row, col)] = filler
	}
	return out, nil
}

func (p *Postgres) ClearState(ctx context.Context, date string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: clear state begin: %w", err)
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `DELETE FROM crossword_cells WHERE date = $1`, date); err != nil {
		return fmt.Errorf("store: clear cells: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM crossword_scores WHERE date = $1`, date); err != nil {
		return fmt.Errorf("store: clear scores: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM crossword_timers WHERE date = $1`, date); err != nil {
		return fmt.Errorf("store: clear timer: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: clear state commit: %w", err)
	}
	return nil
}

func (p *Postgres) AddPoints(ctx context.Context, date, name string, delta int) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO crossword_scores (date, name, points)
		VALUES ($1, $2, $3)
		ON CONFLICT (date, name) DO UPDATE SET points = crossword_scores.points + EXCLUDED.points
	`, date, name, delta)
	if err != nil {
		return fmt.Errorf("store: add points: %w", err)
	}
	return nil
}

func (p *Postgres) AddGuess(ctx context.Context, date, name string, correct bool) error {
	incorrect := 0
	if !correct {
		incorrect = 1
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO crossword_scores (date, name, guesses_total, guesses_incorrect)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (date, name) DO UPDATE SET
			guesses_total = crossword_scores.guesses_total + 1,
			guesses_incorrect = crossword_scores.guesses_incorrect + EXCLUDED.guesses_incorrect
	`, date, name, incorrect)
	if err != nil {
		return fmt.Errorf("store: add guess: %w", err)
	}
	return nil
}

func (p *Postgres) GetTimer(ctx context.Context, date string) (time.Duration, error) {
	row := p.pool.QueryRow(ctx, `SELECT seconds FROM crossword_timers WHERE date = $1`, date)
	var seconds int
	if err := row.Scan(&seconds); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("store: get timer: %w", err)
	}
	return time.Duration(seconds) * time.Second, nil
}

func (p *Postgres) SaveTimer(ctx context.Context, date string, elapsed time.Duration) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO crossword_timers (date, seconds)
		VALUES ($1, $2)
		ON CONFLICT (date) DO UPDATE SET seconds = EXCLUDED.seconds
	`, date, int(elapsed.Seconds()))
	if err != nil {
		return fmt.Errorf("store: save timer: %w", err)
	}
	return nil
}

func (p *Postgres) GetUser(ctx context.Context, deviceID string) (*User, error) {
	row := p.pool.QueryRow(ctx, `SELECT id, device_id, ip, name, color FROM users WHERE device_id = $1`, deviceID)
	var u User
	if err := row.Scan(&u.ID, &u.DeviceID, &u.IP, &u.Name, &u.Color); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	return &u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, ip, name, color, deviceID string) (*User, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO users (device_id, ip, name, color)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, deviceID, ip, name, color)
	var id string
	if err := row.Scan(&id); err != nil {
		return nil, fmt.Errorf("store: create user: %w", err)
	}
	return &User{ID: id, DeviceID: deviceID, IP: ip, Name: name, Color: color}, nil
}

func (p *Postgres) GetUserColors(ctx context.Context, names []string) (map[string]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT name, color FROM users WHERE name = ANY($1)`, names)
	if err != nil {
		return nil, fmt.Errorf("store: get user colors: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var name, color string
		if err := rows.Scan(&name, &color); err != nil {
			return nil, fmt.Errorf("store: scan user color: %w", err)
		}
		out[name] = color
	}
	return out, nil
}

func (p *Postgres) GetUserCount(ctx context.Context) (int, error) {
	row := p.pool.QueryRow(ctx, `SELECT count(*) FROM users`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("store: get user count: %w", err)
	}
	return n, nil
}

func (p *Postgres) GetRandomJeopardyGame(ctx context.Context) (*puzzle.JeopardyGame, error) {
	row := p.pool.QueryRow(ctx, `SELECT game_id FROM jeopardy_games OFFSET floor(random() * (SELECT count(*) FROM jeopardy_games)) LIMIT 1`)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("store: no jeopardy games available")
		}
		return nil, fmt.Errorf("store: get random jeopardy game: %w", err)
	}
	return p.GetJeopardyGame(ctx, id)
}

func (p *Postgres) GetJeopardyGame(ctx context.Context, gameID string) (*puzzle.JeopardyGame, error) {
	row := p.pool.QueryRow(ctx, `SELECT data FROM jeopardy_games WHERE game_id = $1`, gameID)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("store: jeopardy game not found: %s", gameID)
		}
		return nil, fmt.Errorf("store: get jeopardy game: %w", err)
	}
	var out puzzle.JeopardyGame
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("store: decode jeopardy game: %w", err)
	}
	return &out, nil
}

func (p *Postgres) SaveJeopardyProgress(ctx context.Context, gameID string, cluesAnswered, totalClues int, currentRound string, completed bool) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO jeopardy_progress (game_id, clues_answered, total_clues, current_round, completed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (game_id) DO UPDATE SET
			clues_answered = EXCLUDED.clues_answered,
			total_clues = EXCLUDED.total_clues,
			current_round = EXCLUDED.current_round,
			completed = EXCLUDED.completed
	`, gameID, cluesAnswered, totalClues, currentRound, completed)
	if err != nil {
		return fmt.Errorf("store: save jeopardy progress: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
