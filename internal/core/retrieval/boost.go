package retrieval

import "strings"

const (
	consecutiveBoost = 2.0
	maxWindowBoost   = 1.0
)

// proximityBoost rewards hits whose matched terms sit close together in
// the sentence. Consecutive terms in order get the full boost; otherwise
// the boost decays with the smallest window that covers all terms in
// order. Returns 0 when any term is missing.
func proximityBoost(text string, terms []string) float64 {
	if len(terms) < 2 {
		return 0
	}
	words := strings.Fields(strings.ToLower(text))
	window := minOrderedWindow(words, lowerAll(terms))
	if window == 0 {
		return 0
	}
	if window == len(terms) {
		return consecutiveBoost
	}
	spread := float64(window - len(terms))
	boost := maxWindowBoost / (1.0 + spread)
	return boost
}

// applyProximityBoost rescales score by the proximity of terms in text.
func applyProximityBoost(score float64, text string, terms []string) float64 {
	return score * (1.0 + proximityBoost(text, terms))
}

// minOrderedWindow finds the length of the shortest span of words that
// contains all terms in the given order, 0 if no such span exists.
func minOrderedWindow(words, terms []string) int {
	best := 0
	for start := range words {
		if !wordMatches(words[start], terms[0]) {
			continue
		}
		next := 1
		for i := start + 1; i < len(words) && next < len(terms); i++ {
			if wordMatches(words[i], terms[next]) {
				next++
				if next == len(terms) {
					span := i - start + 1
					if best == 0 || span < best {
						best = span
					}
				}
			}
		}
	}
	return best
}

// wordMatches compares a sentence word against a term, tolerating
// trailing punctuation and simple inflection suffixes.
func wordMatches(word, term string) bool {
	word = strings.Trim(word, ".,;:!?\"'()[]")
	if word == term {
		return true
	}
	return strings.HasPrefix(word, term) && len(word)-len(term) <= 2
}

func lowerAll(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = strings.ToLower(s)
	}
	return out
}
