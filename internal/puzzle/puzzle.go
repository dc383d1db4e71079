// Package puzzle defines the immutable crossword and trivia content types
// loaded from the persistence façade. Nothing in this package mutates after
// construction; room state built on top of it lives in internal/crossword
// and internal/jeopardy.
package puzzle

import "fmt"

// Dimensions is the row/column extent of a crossword grid.
type Dimensions struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Clue is one across or down entry: its grid number, the anchor cell it
// starts from, the clue text, and the reference answer.
type Clue struct {
	Number int    `json:"number"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Clue   string `json:"clue"`
	Answer string `json:"answer"`
}

// Cell is a grid coordinate.
type Cell struct {
	Row int
	Col int
}

// Puzzle is the immutable content of one crossword, keyed by date.
type Puzzle struct {
	Date       string     `json:"date"`
	Title      string     `json:"title,omitempty"`
	Dimensions Dimensions `json:"dimensions"`
	// Grid holds one rune per cell as a single-character string; "." marks a
	// blocked cell. Rebus cells still carry their first letter here.
	Grid []string `json:"grid"`
	// Rebus maps a cell holding multi-letter content to its full answer
	// string, keyed "row,col".
	Rebus map[string]string `json:"rebus,omitempty"`
	Clues struct {
		Across []Clue `json:"across"`
		Down   []Clue `json:"down"`
	} `json:"clues"`
}

func key(r, c int) string {
	return fmt.Sprintf("%d,%d", r, c)
}

// IsBlocked reports whether (r,c) is a blocked cell.
func (p *Puzzle) IsBlocked(r, c int) bool {
	if r < 0 || r >= p.Dimensions.Rows || c < 0 || c >= p.Dimensions.Cols {
		return true
	}
	row := []rune(p.Grid[r])
	if c >= len(row) {
		return true
	}
	return row[c] == '.'
}

// CorrectAnswer returns the reference content for (r,c): the rebus string if
// one is registered there, otherwise the single grid letter.
func (p *Puzzle) CorrectAnswer(r, c int) string {
	if r < 0 || r >= p.Dimensions.Rows || r >= len(p.Grid) || c < 0 {
		return ""
	}
	if p.Rebus != nil {
		if v, ok := p.Rebus[key(r, c)]; ok {
			return v
		}
	}
	row := []rune(p.Grid[r])
	if c >= len(row) {
		return ""
	}
	return string(row[c])
}

// IsRebus reports whether (r,c) holds multi-character rebus content.
func (p *Puzzle) IsRebus(r, c int) bool {
	if p.Rebus == nil {
		return false
	}
	_, ok := p.Rebus[key(r, c)]
	return ok
}

// WordCells returns the ordered list of cells belonging to the across or
// down entry starting at (startR,startC), derived from the grid by walking
// until a blocked cell or the grid edge.
func (p *Puzzle) WordCells(startR, startC int, across bool) []Cell {
	cells := make([]Cell, 0, 8)
	r, c := startR, startC
	for !p.IsBlocked(r, c) {
		cells = append(cells, Cell{Row: r, Col: c})
		if across {
			c++
		} else {
			r++
		}
	}
	return cells
}

// WordsContaining returns every across/down clue whose cell span includes
// (r,c), used to detect word completions on a cell update.
func (p *Puzzle) WordsContaining(r, c int) []wordRef {
	var out []wordRef
	for i, clue := range p.Clues.Across {
		for _, cell := range p.WordCells(clue.Row, clue.Col, true) {
			if cell.Row == r && cell.Col == c {
				out = append(out, wordRef{across: true, index: i, clue: clue})
				break
			}
		}
	}
	for i, clue := range p.Clues.Down {
		for _, cell := range p.WordCells(clue.Row, clue.Col, false) {
			if cell.Row == r && cell.Col == c {
				out = append(out, wordRef{across: false, index: i, clue: clue})
				break
			}
		}
	}
	return out
}

type wordRef struct {
	across bool
	index  int
	clue   Clue
}

// Clue exposes the underlying clue for a wordRef.
func (w wordRef) Clue() Clue { return w.clue }

// Across reports whether this reference is to an across entry.
func (w wordRef) Across() bool { return w.across }

// Cells returns the full cell span for this word reference.
func (w wordRef) Cells(p *Puzzle) []Cell {
	return p.WordCells(w.clue.Row, w.clue.Col, w.across)
}

// JeopardyClue is one board slot: a category index, a 1-based row (the
// board's value tier), the clue text, the reference answer, and whether the
// slot is a daily double.
type JeopardyClue struct {
	Cat         int    `json:"cat"`
	Row         int    `json:"row"`
	Value       int    `json:"value"`
	Clue        string `json:"clue"`
	Answer      string `json:"answer"`
	DailyDouble bool   `json:"dailyDouble,omitempty"`
}

// JeopardyRound is one board: its category names and its clue slots.
type JeopardyRound struct {
	Categories []string       `json:"categories"`
	Clues      []JeopardyClue `json:"clues"`
}

// FinalJeopardy is the single end-of-game clue.
type FinalJeopardy struct {
	Category string `json:"category"`
	Clue     string `json:"clue"`
	Answer   string `json:"answer"`
}

// JeopardyGame is the immutable content of one trivia game, keyed by gameId.
type JeopardyGame struct {
	GameID     string        `json:"gameId"`
	ShowNumber string        `json:"showNumber"`
	AirDate    string        `json:"airDate"`
	Season     string        `json:"season,omitempty"`
	JRound     JeopardyRound `json:"jRound"`
	DJRound    JeopardyRound `json:"djRound"`
	FJ         FinalJeopardy `json:"fj"`
}

// ClueAt returns the clue at (cat,row) in the given round, or false if the
// slot is empty/out of range.
func (r JeopardyRound) ClueAt(cat, row int) (JeopardyClue, bool) {
	for _, c := range r.Clues {
		if c.Cat == cat && c.Row == row {
			return c, true
		}
	}
	return JeopardyClue{}, false
}
