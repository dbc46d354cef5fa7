package mapping

import (
	"strings"
)

// normalizeName lowercases and drops everything non-alphabetic so
// "Customer_Name (2)" and "customer.name" compare equal.
func normalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// fuzzyScore compares two names after normalization. Exact normalized
// equality scores 1.0; otherwise the sequence similarity ratio with a 0.3
// bonus when one side contains the other, capped at 1.0.
func fuzzyScore(a, b string) float64 {
	na := normalizeName(a)
	nb := normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}

	score := sequenceRatio(na, nb)
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		score += 0.3
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// sequenceRatio is the classic similarity ratio 2*M/T where M is the total
// length of matching blocks and T the combined length.
func sequenceRatio(a, b string) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 0
	}
	matches := matchingBlocks(a, b)
	return 2.0 * float64(matches) / float64(total)
}

// matchingBlocks sums the lengths of the longest matching blocks found by
// recursive longest-common-substring partitioning.
func matchingBlocks(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}

	return size +
		matchingBlocks(a[:ai], b[:bi]) +
		matchingBlocks(a[ai+size:], b[bi+size:])
}

func longestCommonSubstring(a, b string) (ai, bi, size int) {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > size {
					size = curr[j]
					ai = i - size
					bi = j - size
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return ai, bi, size
}

// keywordOverlap is the share of words in a that also appear in b, with
// words split on non-alphanumeric boundaries.
func keywordOverlap(a, b string) float64 {
	wordsA := splitWords(a)
	if len(wordsA) == 0 {
		return 0
	}
	wordsB := make(map[string]bool)
	for _, w := range splitWords(b) {
		wordsB[w] = true
	}

	hits := 0
	for _, w := range wordsA {
		if wordsB[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(wordsA))
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

// bestFuzzyMatch scores the candidate list and returns the best hit
func bestFuzzyMatch(name string, candidates []string) (string, float64) {
	best := ""
	bestScore := 0.0
	for _, c := range candidates {
		if score := fuzzyScore(name, c); score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best, bestScore
}

// combinedMatchScore blends sequence similarity and keyword overlap for the
// last-resort direct column-to-field match.
func combinedMatchScore(column, field string) float64 {
	return sequenceRatio(normalizeName(column), normalizeName(field))*0.6 + keywordOverlap(column, field)*0.4
}
