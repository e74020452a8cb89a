package retrieval

import (
	"github.com/minknguyen/versegrep/internal/core/domain"
)

// DefaultSimilarityThreshold is the tuned near-duplicate cutoff. 0.90 was
// tried and removed genuinely distinct sentences.
const DefaultSimilarityThreshold = 0.95

// lengthTolerance bounds which seen sentences are worth a full similarity
// comparison: strings whose lengths differ by more than 15% cannot reach
// a 0.95 ratio.
const lengthTolerance = 0.15

// maxInLoopComparisons caps similarity checks while a level fetcher is
// accumulating results. The per-batch final pass runs uncapped and
// catches anything that slipped through.
const maxInLoopComparisons = 200

// IsDuplicate reports whether candidate matches any member of seen,
// exactly or at >= threshold character similarity. It never fails; empty
// inputs are never duplicates.
func IsDuplicate(candidate string, seen map[string]bool, threshold float64) bool {
	return isDuplicate(candidate, seen, threshold, 0)
}

func isDuplicate(candidate string, seen map[string]bool, threshold float64, maxComparisons int) bool {
	if candidate == "" || len(seen) == 0 {
		return false
	}
	if seen[candidate] {
		return true
	}
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	candLen := len(candidate)
	compared := 0
	for text := range seen {
		if !lengthCompatible(candLen, len(text)) {
			continue
		}
		if maxComparisons > 0 && compared >= maxComparisons {
			return false
		}
		compared++
		if similarityRatio(candidate, text) >= threshold {
			return true
		}
	}
	return false
}

// Deduplicate filters sentences in order, keeping the first occurrence of
// each text that is not already in existing. The existing set is extended
// with every survivor and returned.
func Deduplicate(
	sentences []domain.RetrievedSentence,
	existing map[string]bool,
	threshold float64,
) ([]domain.RetrievedSentence, map[string]bool) {
	if existing == nil {
		existing = make(map[string]bool, len(sentences))
	}
	if len(sentences) == 0 {
		return nil, existing
	}

	unique := make([]domain.RetrievedSentence, 0, len(sentences))
	for _, sent := range sentences {
		if sent.Text == "" {
			continue
		}
		if isDuplicate(sent.Text, existing, threshold, 0) {
			continue
		}
		existing[sent.Text] = true
		unique = append(unique, sent)
	}
	return unique, existing
}

func lengthCompatible(a, b int) bool {
	if a == 0 || b == 0 {
		return false
	}
	longer := a
	if b > longer {
		longer = b
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) <= lengthTolerance*float64(longer)
}

// similarityRatio is the matching-blocks ratio over raw strings:
// 2*M/(len(a)+len(b)) where M sums the longest matching blocks found
// recursively. Case and punctuation are deliberately significant.
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}
	matched := matchingBlockTotal(ra, rb)
	return 2.0 * float64(matched) / float64(len(ra)+len(rb))
}

func matchingBlockTotal(a, b []rune) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingBlockTotal(a[:ai], b[:bi])
	total += matchingBlockTotal(a[ai+size:], b[bi+size:])
	return total
}

func longestMatch(a, b []rune) (bestA, bestB, bestSize int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	positions := make(map[rune][]int, len(b))
	for j, r := range b {
		positions[r] = append(positions[r], j)
	}

	// runLen[j] = length of the common run ending at a[i], b[j].
	runLen := make(map[int]int)
	for i, r := range a {
		next := make(map[int]int, len(positions[r]))
		for _, j := range positions[r] {
			k := runLen[j-1] + 1
			next[j] = k
			if k > bestSize {
				bestA, bestB, bestSize = i-k+1, j-k+1, k
			}
		}
		runLen = next
	}
	return bestA, bestB, bestSize
}
