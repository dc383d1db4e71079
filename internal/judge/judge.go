// Package judge implements the fuzzy answer-equivalence check used by the
// trivia room: a cascade of exact, keyword, and edit-distance comparisons
// between a submitted answer and the clue's reference answer.
package judge

import (
	"math"
	"strings"
	"unicode"
)

// Result is the outcome of comparing a candidate answer against a reference
// answer.
type Result struct {
	Correct    bool
	Similarity float64
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "and": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"what": {}, "who": {},
}

// Check runs the full cascade described in spec.md §4.1: empty-input
// rejection, normalized equality, keyword overlap, and whole-string edit
// distance, falling back to a similarity-only verdict.
func Check(candidate, reference string) Result {
	normCand := normalize(candidate)
	normRef := normalize(reference)

	if strings.TrimSpace(normCand) == "" {
		return Result{Correct: false, Similarity: 0}
	}

	if normCand == normRef {
		return Result{Correct: true, Similarity: 1.0}
	}

	if keywordMatch(normCand, normRef) {
		return Result{Correct: true, Similarity: 0.8}
	}

	d := Levenshtein(normCand, normRef)
	tolerance := max(2, int(math.Floor(float64(len(normRef))*0.2)))
	if d <= tolerance && len(normRef) > 0 {
		return Result{Correct: true, Similarity: 1 - float64(d)/float64(len(normRef))}
	}

	denom := max(len(normRef), len(normCand))
	if denom == 0 {
		return Result{Correct: false, Similarity: 0}
	}
	sim := 1 - float64(d)/float64(denom)
	if sim < 0 {
		sim = 0
	}
	return Result{Correct: false, Similarity: sim}
}

// normalize lowercases, strips everything but letters/digits/spaces,
// collapses runs of whitespace, and trims the result.
func normalize(s string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastWasSpace = false
		case unicode.IsSpace(r):
			if !lastWasSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastWasSpace = true
			}
		default:
			// drop punctuation entirely, without inserting a space
		}
	}
	return strings.TrimSpace(b.String())
}

func tokenize(normalized string) []string {
	if normalized == "" {
		return nil
	}
	out := make([]string, 0, 4)
	for _, tok := range strings.Fields(normalized) {
		if len(tok) <= 1 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// keywordMatch reports whether any significant token on one side matches a
// token on the other, by equality, substring containment (when the
// contained side has length > 3), or a tight Levenshtein tolerance.
func keywordMatch(candidate, reference string) bool {
	candWords := tokenize(candidate)
	refWords := tokenize(reference)
	for _, cw := range candWords {
		for _, rw := range refWords {
			if cw == rw {
				return true
			}
			if len(rw) > 3 && strings.Contains(cw, rw) {
				return true
			}
			if len(cw) > 3 && strings.Contains(rw, cw) {
				return true
			}
			if Levenshtein(cw, rw) <= int(math.Floor(float64(len(cw))*0.25)) {
				return true
			}
		}
	}
	return false
}

// Levenshtein computes the edit distance between a and b using the
// standard two-row dynamic-programming scheme, with ties broken toward
// substitution.
func Levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	if len(ar) == 0 {
		return len(br)
	}
	if len(br) == 0 {
		return len(ar)
	}

	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ar); i++ {
		curr[0] = i
		for j := 1; j <= len(br); j++ {
			if ar[i-1] == br[j-1] {
				curr[j] = prev[j-1]
				continue
			}
			sub := prev[j-1] + 1
			del := prev[j] + 1
			ins := curr[j-1] + 1
			curr[j] = sub
			if del < curr[j] {
				curr[j] = del
			}
			if ins < curr[j] {
				curr[j] = ins
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(br)]
}
