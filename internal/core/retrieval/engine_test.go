package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/minknguyen/versegrep/internal/core/domain"
)

// scriptedBackend maps candidate queries to canned hits; unknown queries
// return nothing and queries listed in fail return an error.
type scriptedBackend struct {
	phraseHits map[string][]domain.SentenceHit
	termHits   map[string][]domain.SentenceHit
	semantic   []domain.SentenceHit
	fail       map[string]bool

	phraseCalls   []string
	hybridCalls   []string
	termCalls     []string
	semanticCalls int
}

func (b *scriptedBackend) PhraseSearch(_ context.Context, phrase string, _, _ int, _ []string) ([]domain.SentenceHit, error) {
	b.phraseCalls = append(b.phraseCalls, phrase)
	if b.fail[phrase] {
		return nil, errors.New("scripted failure")
	}
	return b.phraseHits[phrase], nil
}

func (b *scriptedBackend) TermSearch(_ context.Context, terms []string, _ bool, _ int, _ []string) ([]domain.SentenceHit, error) {
	key := strings.Join(terms, " ")
	b.termCalls = append(b.termCalls, key)
	if b.fail[key] {
		return nil, errors.New("scripted failure")
	}
	return b.termHits[key], nil
}

func (b *scriptedBackend) HybridSearch(_ context.Context, terms []string, _ []float32, _ int, _ []string) ([]domain.SentenceHit, error) {
	key := strings.Join(terms, " ")
	b.hybridCalls = append(b.hybridCalls, key)
	if b.fail[key] {
		return nil, errors.New("scripted failure")
	}
	return b.termHits[key], nil
}

func (b *scriptedBackend) SemanticSearch(context.Context, []float32, int, []string) ([]domain.SentenceHit, error) {
	b.semanticCalls++
	return b.semantic, nil
}

func (b *scriptedBackend) BulkInsert(context.Context, []domain.SentenceRecord) error {
	return errors.New("not implemented")
}
func (b *scriptedBackend) DeleteAll(context.Context) error { return errors.New("not implemented") }
func (b *scriptedBackend) Count(context.Context) (int, error) {
	return 0, errors.New("not implemented")
}

type stubGenerator struct {
	json string
	err  error
}

func (g *stubGenerator) Generate(context.Context, string) (string, error) {
	return "", errors.New("not implemented")
}

func (g *stubGenerator) GenerateJSON(context.Context, string) (string, error) {
	return g.json, g.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(backend *scriptedBackend, gen *stubGenerator, words *WordList) *Engine {
	if words == nil {
		words = DefaultWordList()
	}
	logger := testLogger()
	extractor := NewExtractor(gen, words, logger)
	return NewEngine(backend, extractor, NewCandidateBuilder(words), logger)
}

func TestFetchLevelKeywordCombos(t *testing.T) {
	backend := &scriptedBackend{
		termHits: map[string][]domain.SentenceHit{
			"grace faith": {{Text: "saved by grace through faith", Score: 1.0, DocLevel: 1, SentenceIndex: 3}},
		},
		fail: map[string]bool{"grace": true},
	}
	engine := newTestEngine(backend, &stubGenerator{}, nil)
	q := LevelQuery{Keywords: []string{"grace", "faith"}, QueryVector: []float32{0.1}}
	used := map[string]bool{}

	results, offset, exhausted := engine.FetchLevel(context.Background(), LevelKeywordCombos, q, 0, 10, used)

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	got := results[0]
	if got.RetrievalLevel != LevelKeywordCombos {
		t.Fatalf("retrieval level = %d", got.RetrievalLevel)
	}
	if got.SourceLabel != "keyword combination" {
		t.Fatalf("label = %q", got.SourceLabel)
	}
	if strings.Join(got.KeywordCombo, " ") != "grace faith" {
		t.Fatalf("combo = %v", got.KeywordCombo)
	}
	// "grace" then "faith" with one word between: spread 1, boost 0.5.
	if got.Score != 1.5 {
		t.Fatalf("score = %v, want 1.5", got.Score)
	}
	// Candidate list [grace faith][grace][faith] fully consumed even
	// though the "grace" candidate errored.
	if offset != 3 || !exhausted {
		t.Fatalf("offset = %d exhausted = %v, want 3 true", offset, exhausted)
	}
	if !used["saved by grace through faith"] {
		t.Fatalf("expected used-set mutation")
	}
}

func TestFetchCombosSortsByBoostedScore(t *testing.T) {
	backend := &scriptedBackend{
		termHits: map[string][]domain.SentenceHit{
			"grace faith": {
				{Text: "mercy abounds in every circumstance here", Score: 2.0},
				{Text: "grace faith and hope remain", Score: 1.0},
			},
		},
	}
	engine := newTestEngine(backend, &stubGenerator{}, nil)
	q := LevelQuery{Keywords: []string{"grace", "faith"}, QueryVector: []float32{0.1}}

	results, _, _ := engine.FetchLevel(context.Background(), LevelKeywordCombos, q, 0, 2, map[string]bool{})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// Consecutive terms triple the 1.0 score past the unboosted 2.0.
	if results[0].Text != "grace faith and hope remain" {
		t.Fatalf("expected boosted hit first, got %q", results[0].Text)
	}
	if results[0].Score != 3.0 {
		t.Fatalf("boosted score = %v, want 3.0", results[0].Score)
	}
}

func TestFetchCombosWithoutVectorUsesTermSearch(t *testing.T) {
	backend := &scriptedBackend{
		termHits: map[string][]domain.SentenceHit{
			"grace faith": {{Text: "saved by grace through faith", Score: 1.0}},
		},
	}
	engine := newTestEngine(backend, &stubGenerator{}, nil)
	q := LevelQuery{Keywords: []string{"grace", "faith"}}

	results, _, _ := engine.FetchLevel(context.Background(), LevelKeywordCombos, q, 0, 10, map[string]bool{})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if len(backend.hybridCalls) != 0 {
		t.Fatalf("expected no hybrid calls without a query vector, got %v", backend.hybridCalls)
	}
	if len(backend.termCalls) == 0 {
		t.Fatalf("expected term search calls")
	}
}

func TestFetchLevelPhraseBothOrders(t *testing.T) {
	words := NewWordList([]string{"is"}, nil, nil)
	backend := &scriptedBackend{
		phraseHits: map[string][]domain.SentenceHit{
			"grace is": {{Text: "grace is sufficient for you", Score: 1.0}},
			"is grace": {{Text: "great is grace toward us", Score: 0.8}},
		},
	}
	engine := newTestEngine(backend, &stubGenerator{}, words)
	q := LevelQuery{Keywords: []string{"grace"}}

	results, offset, exhausted := engine.FetchLevel(context.Background(), LevelKeywordPhrase, q, 0, 10, map[string]bool{})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if backend.phraseCalls[0] != "grace is" || backend.phraseCalls[1] != "is grace" {
		t.Fatalf("phrase order = %v", backend.phraseCalls)
	}
	if results[0].Score != 3.0 {
		t.Fatalf("forward score = %v, want 3.0", results[0].Score)
	}
	if results[1].Score != 0.8*exactPhraseBoost {
		t.Fatalf("backward score = %v", results[1].Score)
	}
	for _, r := range results {
		if r.AuxWordUsed != "is" {
			t.Fatalf("aux word = %q, want is", r.AuxWordUsed)
		}
		if r.SourceLabel != "keyword + auxiliary word" {
			t.Fatalf("label = %q", r.SourceLabel)
		}
	}
	if offset != 1 || !exhausted {
		t.Fatalf("offset = %d exhausted = %v, want 1 true", offset, exhausted)
	}
}

func TestFetchLevelOffsetResume(t *testing.T) {
	backend := &scriptedBackend{
		termHits: map[string][]domain.SentenceHit{
			"grace faith": {{Text: "first sentence about grace and faith", Score: 1.0}},
			"grace":       {{Text: "second sentence mentioning grace only", Score: 0.9}},
			"faith":       {{Text: "third sentence mentioning faith only", Score: 0.8}},
		},
	}
	engine := newTestEngine(backend, &stubGenerator{}, nil)
	q := LevelQuery{Keywords: []string{"grace", "faith"}, QueryVector: []float32{0.1}}
	used := map[string]bool{}

	results, offset, exhausted := engine.FetchLevel(context.Background(), LevelKeywordCombos, q, 0, 1, used)
	if len(results) != 1 || offset != 1 || exhausted {
		t.Fatalf("first page: len=%d offset=%d exhausted=%v", len(results), offset, exhausted)
	}

	results, offset, exhausted = engine.FetchLevel(context.Background(), LevelKeywordCombos, q, offset, 1, used)
	if len(results) != 1 || offset != 2 || exhausted {
		t.Fatalf("second page: len=%d offset=%d exhausted=%v", len(results), offset, exhausted)
	}
	if results[0].Text != "second sentence mentioning grace only" {
		t.Fatalf("second page text = %q", results[0].Text)
	}

	results, offset, exhausted = engine.FetchLevel(context.Background(), LevelKeywordCombos, q, offset, 1, used)
	if len(results) != 1 || offset != 3 || !exhausted {
		t.Fatalf("third page: len=%d offset=%d exhausted=%v", len(results), offset, exhausted)
	}
}

func TestSynonymComboTagsSynonymUsed(t *testing.T) {
	backend := &scriptedBackend{
		termHits: map[string][]domain.SentenceHit{
			"mercy": {{Text: "his mercy endures forever", Score: 1.0}},
		},
	}
	gen := &stubGenerator{json: `["mercy"]`}
	engine := newTestEngine(backend, gen, nil)
	q := LevelQuery{Keywords: []string{"grace"}, QueryVector: []float32{0.1}}

	results, _, exhausted := engine.FetchLevel(context.Background(), LevelSynonymCombos, q, 0, 10, map[string]bool{})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].SynonymUsed != "mercy" {
		t.Fatalf("synonym used = %q, want mercy", results[0].SynonymUsed)
	}
	if results[0].SourceLabel != "synonym combination" {
		t.Fatalf("label = %q", results[0].SourceLabel)
	}
	if !exhausted {
		t.Fatalf("expected exhaustion of single synonym candidate")
	}
}

func TestFetchLevelSemantic(t *testing.T) {
	backend := &scriptedBackend{
		semantic: []domain.SentenceHit{{Text: "a deep cut about redemption", Score: 0.7}},
	}
	engine := newTestEngine(backend, &stubGenerator{}, nil)
	q := LevelQuery{Keywords: []string{"redemption"}, QueryVector: []float32{0.1}}

	results, _, exhausted := engine.FetchLevel(context.Background(), LevelSemantic, q, 0, 5, map[string]bool{})

	if len(results) != 1 || exhausted {
		t.Fatalf("len=%d exhausted=%v", len(results), exhausted)
	}
	if results[0].SourceLabel != "semantic fallback" {
		t.Fatalf("label = %q", results[0].SourceLabel)
	}
	if results[0].IsPrimarySource {
		t.Fatalf("cascade semantic must not be primary")
	}

	// Nothing new means the level is done.
	used := map[string]bool{"a deep cut about redemption": true}
	results, _, exhausted = engine.FetchLevel(context.Background(), LevelSemantic, q, 0, 5, used)
	if len(results) != 0 || !exhausted {
		t.Fatalf("len=%d exhausted=%v, want 0 true", len(results), exhausted)
	}
}

func TestSemanticPrimaryLabel(t *testing.T) {
	backend := &scriptedBackend{
		semantic: []domain.SentenceHit{{Text: "a primary semantic hit", Score: 0.9}},
	}
	engine := newTestEngine(backend, &stubGenerator{}, nil)

	results := engine.Semantic(context.Background(), []float32{0.1}, 5, map[string]bool{}, true)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !results[0].IsPrimarySource || results[0].SourceLabel != "pure semantic" {
		t.Fatalf("unexpected tagging %+v", results[0])
	}

	if got := engine.Semantic(context.Background(), nil, 5, map[string]bool{}, true); got != nil {
		t.Fatalf("expected nil without query vector, got %v", got)
	}
}
