package fuzzy

import (
	"sort"
	"strings"
)

// Defaults used when callers have no better value
const (
	DefaultThreshold = 60
	DefaultMinScore  = 60

	containsBoost   = 15
	startsWithBoost = 25
)

// Scored pairs an item with its fuzzy score
type Scored[T any] struct {
	Item  T
	Score int
}

// Match is the winning candidate of FindBestMatch
type Match struct {
	Value string
	Score int
	Index int
}

// Filter scores every item against query, keeps those at or above threshold and
// returns them best first. Items with equal scores keep their input order.
//
// Text containing the query gets +15; text starting with it gets a further +25
// on top of that. Each step is capped at 100.
func Filter[T any](items []T, query string, extract func(T) string, threshold int) []Scored[T] {
	q := normalize(query)

	out := make([]Scored[T], 0, len(items))
	for _, item := range items {
		text := extract(item)
		score := WordBasedScore(q, text)

		lower := strings.ToLower(text)
		if strings.Contains(lower, q) {
			score = min(100, score+containsBoost)
			if strings.HasPrefix(lower, q) {
				score = min(100, score+startsWithBoost)
			}
		}

		if score < threshold {
			continue
		}
		out = append(out, Scored[T]{Item: item, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// FindBestMatch returns the candidate with the highest word-based score.
// The earliest candidate wins ties. ok is false when nothing reaches minScore.
func FindBestMatch(query string, candidates []string, minScore int) (Match, bool) {
	best := Match{Index: -1, Score: -1}
	for i, c := range candidates {
		if s := WordBasedScore(query, c); s > best.Score {
			best = Match{Value: c, Score: s, Index: i}
		}
	}
	if best.Index < 0 || best.Score < minScore {
		return Match{}, false
	}
	return best, true
}
