// Package fuzzy scores and ranks text against typo-prone queries.
// Scores are integers in [0,100].
package fuzzy

import (
	"math"
	"strings"
)

// SimilarityScore compares two strings by edit distance after lowercasing and trimming.
// Identical strings, including two empty ones, score 100.
func SimilarityScore(a, b string) int {
	a = normalize(a)
	b = normalize(b)
	if a == b {
		return 100
	}

	ra, rb := []rune(a), []rune(b)
	maxLen := max(len(ra), len(rb))
	if maxLen == 0 {
		return 100
	}

	dist := levenshtein(ra, rb)
	return int(math.Round(float64(maxLen-dist) / float64(maxLen) * 100))
}

// WordBasedScore averages, over the query words, the best similarity each one
// reaches against any word of text. Either side without words scores 0.
func WordBasedScore(query, text string) int {
	qTokens := tokenize(query)
	tTokens := tokenize(text)
	if len(qTokens) == 0 || len(tTokens) == 0 {
		return 0
	}

	sum := 0
	for _, q := range qTokens {
		best := 0
		for _, t := range tTokens {
			if s := SimilarityScore(q, t); s > best {
				best = s
				if best == 100 {
					break
				}
			}
		}
		sum += best
	}

	return int(math.Round(float64(sum) / float64(len(qTokens))))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// levenshtein computes the insertion/deletion/substitution distance with a single DP row
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(a); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur := row[j]
			row[j] = min(row[j]+1, row[j-1]+1, prev+cost)
			prev = cur
		}
	}

	return row[len(b)]
}
