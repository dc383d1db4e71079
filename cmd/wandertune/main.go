// Command wandertune sweeps the bot wander-hop parameters (chance, step
// time) per weekday/difficulty cell and prints the pair that best matches
// the target solve-time table in internal/crossword/tables.go. It is a
// standalone offline tool, never invoked at request-serving time.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/kestrelgames/puzzlehall/internal/crossword"
)

// cellFraction is the share of total solve time spent on cell fills rather
// than word-think pauses, mirroring the 0.75 split in internal/crossword/bot.go.
const cellFraction = 0.75

func main() {
	flag.Parse()

	difficulties := []crossword.Difficulty{
		crossword.Easy, crossword.StdMinus, crossword.Std, crossword.StdPlus, crossword.Expert,
	}

	fmt.Printf("%-4s %-8s %10s %10s %8s %10s\n", "Dow", "Diff", "WanderPct", "WanderMs", "SimMs", "TargetMs")
	for dow := time.Sunday; dow <= time.Saturday; dow++ {
		for _, diff := range difficulties {
			targetMs := crossword.BaseSolveSeconds(dow, diff) * 1000
			cellTotalMs := targetMs * cellFraction

			result := crossword.Tune(int(dow), diff, cellTotalMs, targetMs)

			fmt.Printf("%-4s %-8s %9.0f%% %10.0f %8.0f %10.0f\n",
				dow.String()[:3],
				crossword.DifficultyName(diff),
				result.Params.WanderChance*100,
				result.Params.WanderTimeMs,
				result.SimulatedMs,
				result.TargetMs,
			)
		}
	}
}
