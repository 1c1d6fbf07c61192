// Package similarity scores how alike two OCR snapshots are
package similarity

import "strings"

// Score returns a normalized similarity in [0,1] based on Levenshtein
// distance. Comparison ignores case and surrounding whitespace.
func Score(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	na, nb := normalize(a), normalize(b)
	if na == nb {
		return 1
	}

	ra, rb := []rune(na), []rune(nb)
	maxLen := max(len(ra), len(rb))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(distance(ra, rb))/float64(maxLen)
}

// Distance returns the Levenshtein edit distance between a and b,
// counted in runes with unit cost for insert, delete and substitute.
func Distance(a, b string) int {
	return distance([]rune(a), []rune(b))
}

func distance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Two rows of the DP table are enough; row i only reads row i-1.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
