package crossword

import (
	"context"
	"math/rand"

	"github.com/kestrelgames/puzzlehall/internal/protocol"
	"github.com/kestrelgames/puzzlehall/internal/store"
)

const hintSentinel = store.HintSentinel
const maxHintCells = 5

// HintVote records socketID's vote and, once every human member has voted,
// reveals up to five candidate cells.
func (rm *Room) HintVote(ctx context.Context, socketID string) {
	rm.mu.Lock()
	rm.hint.Votes[socketID] = struct{}{}
	votes := len(rm.hint.Votes)
	total := rm.humanCount()
	rm.mu.Unlock()

	rm.transport.EmitToRoom(rm.Date, protocol.EvtHintVoteUpdate, map[string]any{
		"votes": votes, "total": total,
	})

	if votes < total {
		return
	}
	rm.revealHint(ctx)
}

func (rm *Room) revealHint(ctx context.Context) {
	rm.mu.Lock()
	candidates := make([]puzzleCell, 0)
	for row := 0; row < rm.Puzzle.Dimensions.Rows; row++ {
		for col := 0; col < rm.Puzzle.Dimensions.Cols; col++ {
			if rm.Puzzle.IsBlocked(row, col) {
				continue
			}
			key := cellKey(row, col)
			if _, already := rm.hint.HintCells[key]; already {
				continue
			}
			if rm.sharedGrid[key] == rm.Puzzle.CorrectAnswer(row, col) {
				continue
			}
			candidates = append(candidates, puzzleCell{row, col})
		}
	}
	rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	if len(candidates) > maxHintCells {
		candidates = candidates[:maxHintCells]
	}
	for _, c := range candidates {
		rm.hint.HintCells[cellKey(c.row, c.col)] = struct{}{}
	}
	rm.hint.Votes = make(map[string]struct{})
	rm.hint.Available = false
	rm.mu.Unlock()

	revealed := make([]map[string]any, 0, len(candidates))
	for _, c := range candidates {
		answer := rm.Puzzle.CorrectAnswer(c.row, c.col)
		rm.mu.Lock()
		rm.sharedGrid[cellKey(c.row, c.col)] = answer
		rm.cellFillers[cellKey(c.row, c.col)] = hintSentinel
		rm.mu.Unlock()
		_ = rm.store.UpsertCell(ctx, rm.Date, c.row, c.col, answer)
		_ = rm.store.UpsertCellFiller(ctx, rm.Date, c.row, c.col, hintSentinel)
		revealed = append(revealed, map[string]any{"row": c.row, "col": c.col, "letter": answer})
	}

	rm.transport.EmitToRoom(rm.Date, protocol.EvtHintReveal, map[string]any{"cells": revealed})
	rm.maybeBroadcastProgress()
}

type puzzleCell struct {
	row, col int
}

// HintAvailable broadcasts hint-available once per availability window.
func (rm *Room) HintAvailable() {
	rm.mu.Lock()
	if rm.hint.Available {
		rm.mu.Unlock()
		return
	}
	rm.hint.Available = true
	rm.mu.Unlock()
	rm.transport.EmitToRoom(rm.Date, protocol.EvtHintAvailable, map[string]any{})
}
