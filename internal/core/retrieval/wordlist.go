package retrieval

import "strings"

// WordList is the configured vocabulary driving keyword filtering and the
// auxiliary-word pairing levels. FillerWords keeps its configured order:
// position is search priority ("is" before "are" means every "keyword is"
// phrase is exhausted before the first "keyword are" search).
type WordList struct {
	FillerWords     []string
	ProtectedTerms  []string
	VeryCommonWords []string

	fillerSet    map[string]bool
	protectedSet map[string]bool
	commonSet    map[string]bool
}

// DefaultWordList mirrors the shipped word-list file; used when no config
// file is present.
func DefaultWordList() *WordList {
	return NewWordList(
		[]string{
			"is", "are", "was", "were", "be", "been", "being",
			"means", "brings", "gives", "makes", "shows",
			"has", "have", "had", "does", "do", "did",
			"will", "shall", "can", "may", "must",
			"the", "a", "an", "of", "to", "in", "on", "at",
			"for", "with", "about", "between", "and", "or",
			"where", "what", "when", "who", "why", "how", "which",
		},
		nil,
		[]string{"is", "are", "was", "were", "the", "a", "an", "of", "to", "in"},
	)
}

func NewWordList(filler, protected, veryCommon []string) *WordList {
	w := &WordList{
		FillerWords:     dedupePreserveOrder(filler),
		ProtectedTerms:  dedupePreserveOrder(protected),
		VeryCommonWords: dedupePreserveOrder(veryCommon),
	}
	w.fillerSet = lowerSet(w.FillerWords)
	w.protectedSet = lowerSet(w.ProtectedTerms)
	w.commonSet = lowerSet(w.VeryCommonWords)
	return w
}

// AuxWords returns the auxiliary words in configured priority order.
func (w *WordList) AuxWords() []string {
	return w.FillerWords
}

func (w *WordList) IsFiller(word string) bool {
	return w.fillerSet[strings.ToLower(word)]
}

func (w *WordList) IsProtected(word string) bool {
	return w.protectedSet[strings.ToLower(word)]
}

func (w *WordList) IsVeryCommon(word string) bool {
	return w.commonSet[strings.ToLower(word)]
}

func dedupePreserveOrder(words []string) []string {
	out := make([]string, 0, len(words))
	seen := make(map[string]bool, len(words))
	for _, word := range words {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		key := strings.ToLower(word)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, word)
	}
	return out
}

func lowerSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, word := range words {
		set[strings.ToLower(word)] = true
	}
	return set
}
