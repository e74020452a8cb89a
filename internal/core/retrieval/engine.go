package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/minknguyen/versegrep/internal/core/domain"
	"github.com/minknguyen/versegrep/internal/core/ports"
)

// Cascade levels, tried in order. Levels 0 and 2 only apply to
// multi-keyword queries.
const (
	LevelKeywordCombos = 0
	LevelKeywordPhrase = 1
	LevelSynonymCombos = 2
	LevelSynonymPhrase = 3
	LevelSemantic      = 4
)

// exactPhraseBoost rewards exact consecutive phrase matches over loose
// term matches when batches from different levels are ranked together.
const exactPhraseBoost = 3.0

// maxExcludePhrases caps the exclusion filter sent to the backend; the
// deduplicator handles everything past the cap.
const maxExcludePhrases = 50

// LevelQuery carries the per-request retrieval inputs shared by all
// levels of one cascade.
type LevelQuery struct {
	Keywords    []string
	QueryVector []float32
}

// Engine executes one cascade level at a time against the search
// backend. Candidate queries run sequentially; a failed candidate query
// contributes zero results and the loop moves on.
type Engine struct {
	backend   ports.SearchBackend
	extractor *Extractor
	builder   *CandidateBuilder
	threshold float64
	logger    *slog.Logger
}

func NewEngine(backend ports.SearchBackend, extractor *Extractor, builder *CandidateBuilder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		backend:   backend,
		extractor: extractor,
		builder:   builder,
		threshold: DefaultSimilarityThreshold,
		logger:    logger,
	}
}

// FetchLevel runs one level starting at offset into its candidate list,
// collecting up to limit results that are not near-duplicates of used.
// It mutates used with every returned text and reports the new offset
// and whether the candidate list is fully consumed.
func (e *Engine) FetchLevel(
	ctx context.Context,
	level int,
	q LevelQuery,
	offset, limit int,
	used map[string]bool,
) ([]domain.RetrievedSentence, int, bool) {
	switch level {
	case LevelKeywordCombos:
		combos := e.builder.Combinations(q.Keywords)
		return e.fetchCombos(ctx, level, combos, q.QueryVector, offset, limit, used)
	case LevelKeywordPhrase:
		pairs := e.builder.PhrasePairs(q.Keywords)
		return e.fetchPhrases(ctx, level, pairs, offset, limit, used)
	case LevelSynonymCombos:
		combos := e.builder.Combinations(e.synonymTerms(ctx, q.Keywords))
		return e.fetchCombos(ctx, level, combos, q.QueryVector, offset, limit, used)
	case LevelSynonymPhrase:
		pairs := e.builder.PhrasePairs(e.synonymTerms(ctx, q.Keywords))
		return e.fetchPhrases(ctx, level, pairs, offset, limit, used)
	case LevelSemantic:
		results := e.Semantic(ctx, q.QueryVector, limit, used, false)
		// The semantic level has no finite candidate list; it is done
		// when it stops producing anything new.
		return results, offset, len(results) == 0
	default:
		return nil, offset, true
	}
}

// Semantic runs the cosine-similarity search on its own, excluding used
// texts. The quota run of the orchestrator marks results primary.
func (e *Engine) Semantic(ctx context.Context, vector []float32, limit int, used map[string]bool, primary bool) []domain.RetrievedSentence {
	if limit <= 0 || len(vector) == 0 {
		return nil
	}
	// Over-fetch: the exclusion filter is capped, so some hits will be
	// rejected by the deduplicator.
	hits, err := e.backend.SemanticSearch(ctx, vector, limit*2, excludePhrases(used))
	if err != nil {
		e.logger.Warn("semantic_search_failed", "error", err)
		return nil
	}

	label := "semantic fallback"
	if primary {
		label = "pure semantic"
	}
	results := make([]domain.RetrievedSentence, 0, limit)
	for _, hit := range hits {
		if isDuplicate(hit.Text, used, e.threshold, maxInLoopComparisons) {
			continue
		}
		used[hit.Text] = true
		results = append(results, domain.RetrievedSentence{
			Text:            hit.Text,
			DocLevel:        hit.DocLevel,
			Score:           hit.Score,
			SentenceIndex:   hit.SentenceIndex,
			RetrievalLevel:  LevelSemantic,
			IsPrimarySource: primary,
			SourceLabel:     label,
		})
		if len(results) >= limit {
			break
		}
	}
	return finalPass(results, e.threshold)
}

func (e *Engine) fetchCombos(
	ctx context.Context,
	level int,
	combos [][]string,
	vector []float32,
	offset, limit int,
	used map[string]bool,
) ([]domain.RetrievedSentence, int, bool) {
	var results []domain.RetrievedSentence
	i := offset
	for ; i < len(combos) && len(results) < limit; i++ {
		combo := combos[i]
		var hits []domain.SentenceHit
		var err error
		if len(vector) > 0 {
			hits, err = e.backend.HybridSearch(ctx, combo, vector, limit, excludePhrases(used))
		} else {
			// No query embedding (embed call failed upstream); plain
			// all-terms matching still works.
			hits, err = e.backend.TermSearch(ctx, combo, true, limit, excludePhrases(used))
		}
		if err != nil {
			e.logger.Warn("candidate_search_failed",
				"level", level, "combo", strings.Join(combo, " "), "error", err)
			continue
		}

		batch := make([]domain.RetrievedSentence, 0, len(hits))
		for _, hit := range hits {
			if isDuplicate(hit.Text, used, e.threshold, maxInLoopComparisons) {
				continue
			}
			used[hit.Text] = true
			sent := domain.RetrievedSentence{
				Text:           hit.Text,
				DocLevel:       hit.DocLevel,
				Score:          applyProximityBoost(hit.Score, hit.Text, combo),
				SentenceIndex:  hit.SentenceIndex,
				RetrievalLevel: level,
				KeywordCombo:   combo,
				SourceLabel:    levelLabel(level),
			}
			if level == LevelSynonymCombos {
				sent.SynonymUsed = strings.Join(combo, " ")
			}
			batch = append(batch, sent)
		}
		// Proximity boost can reorder within a candidate, never across
		// candidates.
		sort.SliceStable(batch, func(a, b int) bool { return batch[a].Score > batch[b].Score })
		for _, sent := range batch {
			results = append(results, sent)
			if len(results) >= limit {
				break
			}
		}
	}
	return finalPass(results, e.threshold), i, i >= len(combos)
}

func (e *Engine) fetchPhrases(
	ctx context.Context,
	level int,
	pairs []PhrasePair,
	offset, limit int,
	used map[string]bool,
) ([]domain.RetrievedSentence, int, bool) {
	var results []domain.RetrievedSentence
	i := offset
	for ; i < len(pairs) && len(results) < limit; i++ {
		pair := pairs[i]
		for _, phrase := range []string{pair.Forward(), pair.Backward()} {
			if len(results) >= limit {
				break
			}
			hits, err := e.backend.PhraseSearch(ctx, phrase, 0, limit, excludePhrases(used))
			if err != nil {
				e.logger.Warn("candidate_search_failed",
					"level", level, "phrase", phrase, "error", err)
				continue
			}
			for _, hit := range hits {
				if isDuplicate(hit.Text, used, e.threshold, maxInLoopComparisons) {
					continue
				}
				used[hit.Text] = true
				sent := domain.RetrievedSentence{
					Text:           hit.Text,
					DocLevel:       hit.DocLevel,
					Score:          hit.Score * exactPhraseBoost,
					SentenceIndex:  hit.SentenceIndex,
					RetrievalLevel: level,
					AuxWordUsed:    pair.Aux,
					SourceLabel:    levelLabel(level),
				}
				if level == LevelSynonymPhrase {
					sent.SynonymUsed = pair.Term
				}
				results = append(results, sent)
				if len(results) >= limit {
					break
				}
			}
		}
	}
	return finalPass(results, e.threshold), i, i >= len(pairs)
}

// synonymTerms flattens the synonyms of every keyword, preserving
// keyword order and dropping terms that are themselves keywords.
func (e *Engine) synonymTerms(ctx context.Context, keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		seen[kw] = true
	}
	var out []string
	for _, kw := range keywords {
		for _, syn := range e.extractor.Synonyms(ctx, kw) {
			if !seen[syn] {
				seen[syn] = true
				out = append(out, syn)
			}
		}
	}
	return out
}

// finalPass is the uncapped dedup sweep over one collected batch. The
// in-loop checks are comparison-capped, so near-duplicates can slip in
// under load; this catches them before the batch leaves the engine.
func finalPass(results []domain.RetrievedSentence, threshold float64) []domain.RetrievedSentence {
	if len(results) < 2 {
		return results
	}
	seen := make(map[string]bool, len(results))
	out := make([]domain.RetrievedSentence, 0, len(results))
	for _, sent := range results {
		if isDuplicate(sent.Text, seen, threshold, 0) {
			continue
		}
		seen[sent.Text] = true
		out = append(out, sent)
	}
	return out
}

func levelLabel(level int) string {
	switch level {
	case LevelKeywordCombos:
		return "keyword combination"
	case LevelKeywordPhrase:
		return "keyword + auxiliary word"
	case LevelSynonymCombos:
		return "synonym combination"
	case LevelSynonymPhrase:
		return "synonym + auxiliary word"
	case LevelSemantic:
		return "semantic fallback"
	default:
		return "unknown"
	}
}

func excludePhrases(used map[string]bool) []string {
	if len(used) == 0 {
		return nil
	}
	out := make([]string, 0, maxExcludePhrases)
	for text := range used {
		out = append(out, text)
		if len(out) >= maxExcludePhrases {
			break
		}
	}
	return out
}
