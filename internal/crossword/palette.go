package crossword

// humanPalette is the fixed set of colors assigned to human members, per
// spec.md §6.
var humanPalette = []string{
	"#4CAF50", "#222222", "#FF9800", "#E91E63", "#9C27B0", "#FF00FF",
}

// botPalette is a distinct palette reserved for synthetic solvers so they
// are visually distinguishable from humans.
var botPalette = []string{
	"#00BCD4", "#795548",
}

func pickColor(palette []string, taken map[string]struct{}) string {
	for _, c := range palette {
		if _, used := taken[c]; !used {
			return c
		}
	}
	return palette[len(taken)%len(palette)]
}
