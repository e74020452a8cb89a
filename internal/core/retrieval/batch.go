package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/minknguyen/versegrep/internal/core/domain"
	"github.com/minknguyen/versegrep/internal/core/ports"
)

// DefaultSemanticQuota is how many slots of every batch are reserved for
// pure semantic results regardless of cascade progress.
const DefaultSemanticQuota = 5

// BatchResult is one page of retrieval for a session. LevelUsed is the
// deepest cascade level that contributed; a value past MaxRetrievalLevel
// means the session has nothing left to return.
type BatchResult struct {
	Sentences []domain.RetrievedSentence
	LevelUsed int
}

// Terminal reports whether the session can produce further batches.
func (r BatchResult) Terminal() bool {
	return len(r.Sentences) == 0
}

// Orchestrator assembles batches by driving the level cascade and the
// always-on semantic quota, then folding results into session state.
// Callers hold the session mutex across NextBatch.
type Orchestrator struct {
	engine        *Engine
	embedder      ports.Embedder
	semanticQuota int
	threshold     float64
	logger        *slog.Logger
}

func NewOrchestrator(engine *Engine, embedder ports.Embedder, semanticQuota int, logger *slog.Logger) *Orchestrator {
	if semanticQuota <= 0 {
		semanticQuota = DefaultSemanticQuota
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		engine:        engine,
		embedder:      embedder,
		semanticQuota: semanticQuota,
		threshold:     DefaultSimilarityThreshold,
		logger:        logger,
	}
}

// NextBatch returns up to batchSize sentences the session has not seen,
// advancing the cursor. Semantic-quota results come first and are marked
// primary; the remainder is filled starting at the cursor's level.
func (o *Orchestrator) NextBatch(ctx context.Context, session *domain.RetrievalSession, batchSize int) BatchResult {
	if batchSize <= 0 {
		batchSize = DefaultSemanticQuota * 2
	}
	quota := o.semanticQuota
	if quota > batchSize {
		quota = batchSize
	}

	q := LevelQuery{
		Keywords:    session.Keywords,
		QueryVector: o.queryVector(ctx, session.Keywords),
	}

	// Collection dedups against a working copy so the session set only
	// ever gains texts that actually ship in the batch.
	prior := session.Cursor.Used
	working := copyUsedSet(prior)

	semantic := o.engine.Semantic(ctx, q.QueryVector, quota, working, true)
	cascade := o.runCascade(ctx, session, q, batchSize-quota, working)

	combined := make([]domain.RetrievedSentence, 0, len(semantic)+len(cascade))
	combined = append(combined, semantic...)
	combined = append(combined, cascade...)

	// Cross-sub-batch sweep: semantic and cascade collection each saw
	// the other's additions through working, but their in-loop checks
	// are comparison-capped.
	survivors, _ := Deduplicate(combined, copyUsedSet(prior), o.threshold)
	for _, sent := range survivors {
		prior[sent.Text] = true
	}

	return BatchResult{
		Sentences: survivors,
		LevelUsed: levelUsed(survivors),
	}
}

func (o *Orchestrator) runCascade(
	ctx context.Context,
	session *domain.RetrievalSession,
	q LevelQuery,
	quota int,
	working map[string]bool,
) []domain.RetrievedSentence {
	var out []domain.RetrievedSentence
	cur := &session.Cursor
	for cur.Level <= domain.MaxRetrievalLevel {
		remaining := quota - len(out)
		if remaining <= 0 {
			break
		}
		level := cur.Level
		if !o.levelAllowed(session, level) {
			cur.Level++
			continue
		}

		results, newOffset, exhausted := o.engine.FetchLevel(ctx, level, q, cur.Offsets[level], remaining, working)
		cur.Offsets[level] = newOffset
		out = append(out, results...)

		if exhausted || len(results) == 0 {
			if level == LevelKeywordPhrase && exhausted && len(session.Keywords) == 1 {
				// Single-keyword sessions end with the pairing level:
				// synonym levels are skipped and the always-on semantic
				// quota already covers the fallback.
				cur.Level = domain.MaxRetrievalLevel + 1
				break
			}
			cur.Level++
		}
	}
	return out
}

func (o *Orchestrator) levelAllowed(session *domain.RetrievalSession, level int) bool {
	if len(session.Keywords) == 1 && (level == LevelKeywordCombos || level == LevelSynonymCombos) {
		return false
	}
	if len(session.EnabledLevels) == 0 {
		return true
	}
	for _, l := range session.EnabledLevels {
		if l == level {
			return true
		}
	}
	return false
}

func (o *Orchestrator) queryVector(ctx context.Context, keywords []string) []float32 {
	if len(keywords) == 0 {
		return nil
	}
	vector, err := o.embedder.EmbedQuery(ctx, strings.Join(keywords, " "))
	if err != nil {
		o.logger.Warn("query_embedding_failed", "error", err)
		return nil
	}
	return vector
}

// levelUsed is the deepest cascade level represented in the batch, the
// semantic level when only quota results came back, and one past the
// maximum for an empty batch.
func levelUsed(sentences []domain.RetrievedSentence) int {
	if len(sentences) == 0 {
		return domain.MaxRetrievalLevel + 1
	}
	deepest := -1
	for _, sent := range sentences {
		if sent.IsPrimarySource {
			continue
		}
		if sent.RetrievalLevel > deepest {
			deepest = sent.RetrievalLevel
		}
	}
	if deepest < 0 {
		return LevelSemantic
	}
	return deepest
}

func copyUsedSet(src map[string]bool) map[string]bool {
	dst := make(map[string]bool, len(src))
	for text := range src {
		dst[text] = true
	}
	return dst
}
