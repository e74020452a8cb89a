package retrieval

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const comboCacheSize = 256

// PhrasePair is a term joined with one auxiliary word, tried as an exact
// consecutive phrase in both word orders.
type PhrasePair struct {
	Term string
	Aux  string
}

func (p PhrasePair) Forward() string  { return p.Term + " " + p.Aux }
func (p PhrasePair) Backward() string { return p.Aux + " " + p.Term }

// CandidateBuilder produces the deterministic candidate lists consumed by
// the level fetchers. Lists for a given keyword set never change between
// calls, so offsets into them stay valid across a session.
type CandidateBuilder struct {
	words  *WordList
	combos *lru.Cache[string, [][]string]
}

func NewCandidateBuilder(words *WordList) *CandidateBuilder {
	if words == nil {
		words = DefaultWordList()
	}
	cache, _ := lru.New[string, [][]string](comboCacheSize)
	return &CandidateBuilder{words: words, combos: cache}
}

// Combinations returns every non-empty subset of keywords, largest
// first. Within a size, subsets keep the keyword order of the input.
func (b *CandidateBuilder) Combinations(keywords []string) [][]string {
	if len(keywords) == 0 {
		return nil
	}
	key := comboCacheKey(keywords)
	if cached, ok := b.combos.Get(key); ok {
		return cached
	}

	var out [][]string
	for size := len(keywords); size >= 1; size-- {
		out = append(out, subsetsOfSize(keywords, size)...)
	}
	b.combos.Add(key, out)
	return out
}

// PhrasePairs builds the ordered term+aux list for the phrase levels.
// Auxiliary words are the outer loop so every pair using the highest
// priority aux comes before any pair using the next one.
func (b *CandidateBuilder) PhrasePairs(terms []string) []PhrasePair {
	aux := b.words.AuxWords()
	out := make([]PhrasePair, 0, len(aux)*len(terms))
	for _, a := range aux {
		for _, term := range terms {
			if term == "" || term == a {
				continue
			}
			out = append(out, PhrasePair{Term: term, Aux: a})
		}
	}
	return out
}

func subsetsOfSize(items []string, size int) [][]string {
	var out [][]string
	indices := make([]int, size)
	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == size {
			subset := make([]string, size)
			for i, idx := range indices {
				subset[i] = items[idx]
			}
			out = append(out, subset)
			return
		}
		for i := start; i <= len(items)-(size-depth); i++ {
			indices[depth] = i
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)
	return out
}

// comboCacheKey keys on the ordered tuple: combination order follows the
// input order, so differently ordered inputs must not share an entry.
func comboCacheKey(keywords []string) string {
	return strings.Join(keywords, "\x00")
}
