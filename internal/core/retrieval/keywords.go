package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/minknguyen/versegrep/internal/core/ports"
)

const synonymCacheSize = 512

var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*?\]`)

// Extractor turns a raw user query into clean search terms, and expands
// terms into synonyms. Extraction degrades to a word-split heuristic when
// the generation service is unavailable; it never fails a request.
type Extractor struct {
	generator ports.TextGenerator
	words     *WordList
	logger    *slog.Logger

	synonyms *lru.Cache[string, []string]
}

func NewExtractor(generator ports.TextGenerator, words *WordList, logger *slog.Logger) *Extractor {
	if words == nil {
		words = DefaultWordList()
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New[string, []string](synonymCacheSize)
	return &Extractor{
		generator: generator,
		words:     words,
		logger:    logger,
		synonyms:  cache,
	}
}

func (e *Extractor) Words() *WordList {
	return e.words
}

// ExtractKeywords returns the ranked clean keywords for query.
func (e *Extractor) ExtractKeywords(ctx context.Context, query string) []string {
	raw, err := e.extractRaw(ctx, query)
	if err != nil {
		e.logger.Warn("keyword_extraction_fallback", "error", err)
		return e.heuristicKeywords(query)
	}

	clean := make([]string, 0, len(raw))
	for _, word := range raw {
		if e.words.IsProtected(word) || !e.words.IsFiller(word) {
			clean = append(clean, word)
		}
	}

	// Filtering can empty a legitimate extraction ("what is being" style
	// queries); fall back to raw minus only the most common words.
	if len(clean) == 0 && len(raw) > 0 {
		for _, word := range raw {
			if !e.words.IsVeryCommon(word) {
				clean = append(clean, word)
			}
		}
	}
	if len(clean) == 0 {
		return e.heuristicKeywords(query)
	}
	return clean
}

func (e *Extractor) extractRaw(ctx context.Context, query string) ([]string, error) {
	prompt := fmt.Sprintf(`Extract ONLY meaningful keywords from this question.

RULES:
1. Extract ONLY nouns, proper names and key concepts
2. DO NOT include:
   - Question words: where, what, when, who, why, how, which
   - Inferred words like "location", "place", "reason", "time", "person"
   - Common verbs: is, are, was, were, be, do, does, did, have, has
   - Prepositions: in, on, at, to, for, with, about, between
   - Articles: the, a, an
3. Return ONLY the actual meaningful words of the topic

Question: %q

Example 1: "Where is heaven?" -> ["heaven"]
Example 2: "What is salvation?" -> ["salvation"]
Example 3: "Why did Jesus die on the cross?" -> ["Jesus", "cross", "die"]
Example 4: "Who is the Holy Spirit?" -> ["Holy Spirit"]

Return as JSON array only, no explanation.`, query)

	content, err := e.generator.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("keyword extraction call: %w", err)
	}

	words, err := parseStringArray(content)
	if err != nil {
		return nil, fmt.Errorf("parse keyword response: %w", err)
	}
	out := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" {
			out = append(out, word)
		}
	}
	return out, nil
}

// heuristicKeywords is the no-LLM path: split, drop fillers and short
// words; loosen the length cut if that leaves nothing.
func (e *Extractor) heuristicKeywords(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	out := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.Trim(word, ".,;:!?\"'()")
		if len(word) > 2 && !e.words.IsFiller(word) {
			out = append(out, word)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, word := range words {
		word = strings.Trim(word, ".,;:!?\"'()")
		if len(word) > 3 {
			out = append(out, word)
		}
	}
	return out
}

// Synonyms returns 2-3 related terms for a single word, empty on any
// failure. Results are cached for the life of the process.
func (e *Extractor) Synonyms(ctx context.Context, term string) []string {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}
	if cached, ok := e.synonyms.Get(term); ok {
		return cached
	}

	prompt := fmt.Sprintf(`Give 2-3 synonyms or closely related terms for the word %q.
Return as JSON array only.

Example for "grace": ["mercy", "blessing", "favor"]`, term)

	content, err := e.generator.GenerateJSON(ctx, prompt)
	if err != nil {
		e.logger.Warn("synonym_generation_failed", "term", term, "error", err)
		return nil
	}
	words, err := parseStringArray(content)
	if err != nil {
		e.logger.Warn("synonym_parse_failed", "term", term, "error", err)
		return nil
	}

	out := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" && word != term {
			out = append(out, word)
		}
	}
	e.synonyms.Add(term, out)
	return out
}

// parseStringArray accepts strict JSON, or extracts the first bracketed
// array from chatty model output.
func parseStringArray(content string) ([]string, error) {
	content = strings.TrimSpace(content)

	var direct []string
	if err := json.Unmarshal([]byte(content), &direct); err == nil {
		return direct, nil
	}

	match := jsonArrayPattern.FindString(content)
	if match == "" {
		return nil, fmt.Errorf("no JSON array in response")
	}
	var extracted []string
	if err := json.Unmarshal([]byte(match), &extracted); err != nil {
		return nil, fmt.Errorf("decode array: %w", err)
	}
	return extracted, nil
}
