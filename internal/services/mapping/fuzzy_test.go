package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "customername", normalizeName("Customer_Name (2)"))
	assert.Equal(t, "customername", normalizeName("customer.name"))
	assert.Equal(t, "", normalizeName("123 !!"))
}

func TestFuzzyScore(t *testing.T) {
	assert.Equal(t, 1.0, fuzzyScore("Customer Name", "customer.name"))
	assert.Equal(t, 0.0, fuzzyScore("", "anything"))

	// Substring containment earns the bonus
	contained := fuzzyScore("name", "customer.name")
	plain := sequenceRatio("name", "customername")
	assert.InDelta(t, plain+0.3, contained, 1e-9)

	// Never exceeds 1.0
	assert.LessOrEqual(t, fuzzyScore("customer.nam", "customer.name"), 1.0)
}

func TestSequenceRatio(t *testing.T) {
	assert.Equal(t, 1.0, sequenceRatio("abc", "abc"))
	assert.Equal(t, 0.0, sequenceRatio("abc", "xyz"))
	// "abcd" vs "abxd": blocks "ab" and "d" -> 2*3/8
	assert.InDelta(t, 0.75, sequenceRatio("abcd", "abxd"), 1e-9)
}

func TestLongestCommonSubstring(t *testing.T) {
	ai, bi, size := longestCommonSubstring("xinvoicey", "zzinvoice")
	assert.Equal(t, 7, size)
	assert.Equal(t, "invoice", "xinvoicey"[ai:ai+size])
	assert.Equal(t, "invoice", "zzinvoice"[bi:bi+size])

	_, _, size = longestCommonSubstring("abc", "xyz")
	assert.Equal(t, 0, size)
}

func TestKeywordOverlap(t *testing.T) {
	assert.Equal(t, 1.0, keywordOverlap("customer name", "the customer full name"))
	assert.Equal(t, 0.5, keywordOverlap("customer id", "customer.address"))
	assert.Equal(t, 0.0, keywordOverlap("", "anything"))
}

func TestBestFuzzyMatch(t *testing.T) {
	candidates := []string{"invoice.total", "invoice.invoice_no", "customer.name"}

	best, score := bestFuzzyMatch("Invoice No", candidates)
	assert.Equal(t, "invoice.invoice_no", best)
	assert.Greater(t, score, 0.7)

	best, score = bestFuzzyMatch("Customer Name", candidates)
	assert.Equal(t, "customer.name", best)
	assert.Equal(t, 1.0, score)
}

func TestCombinedMatchScore(t *testing.T) {
	exact := combinedMatchScore("customer name", "customer.name")
	assert.InDelta(t, 1.0, exact, 1e-9)

	unrelated := combinedMatchScore("Shareholder", "tinjauan.nama")
	assert.Less(t, unrelated, 0.4)
}
