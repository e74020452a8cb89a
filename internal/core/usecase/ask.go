package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/minknguyen/versegrep/internal/core/domain"
	"github.com/minknguyen/versegrep/internal/core/ports"
	"github.com/minknguyen/versegrep/internal/core/retrieval"
)

const defaultBatchSize = 10

const answerFallbackText = "I found relevant material but could not generate an answer right now. Please try again."

const exhaustedAnswerText = "All retrieval strategies have been explored for this question; there is no further new information in the indexed documents."

// QAUseCase drives the full question pipeline: keyword extraction, the
// progressive retrieval cascade, and answer generation. Retrieval
// exhaustion and generation failures surface as answers, not errors.
type QAUseCase struct {
	backend      ports.SearchBackend
	extractor    *retrieval.Extractor
	orchestrator *retrieval.Orchestrator
	sessions     ports.SessionStore
	generator    ports.TextGenerator
	logger       *slog.Logger
	defaultLimit int
}

func NewQAUseCase(
	backend ports.SearchBackend,
	extractor *retrieval.Extractor,
	orchestrator *retrieval.Orchestrator,
	sessions ports.SessionStore,
	generator ports.TextGenerator,
	defaultLimit int,
	logger *slog.Logger,
) *QAUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultLimit <= 0 {
		defaultLimit = defaultBatchSize
	}
	return &QAUseCase{
		backend:      backend,
		extractor:    extractor,
		orchestrator: orchestrator,
		sessions:     sessions,
		generator:    generator,
		logger:       logger,
		defaultLimit: defaultLimit,
	}
}

func (uc *QAUseCase) Ask(ctx context.Context, params ports.AskParams) (*ports.QAResult, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	limit := params.Limit
	if limit <= 0 {
		limit = uc.defaultLimit
	}

	count, err := uc.backend.Count(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "count documents", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: upload documents before asking", domain.ErrNoDocuments)
	}

	keywords := uc.extractor.ExtractKeywords(ctx, query)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("%w: no usable search terms in query", domain.ErrInvalidInput)
	}

	session := uc.sessions.Create(query, keywords, params.EnabledLevels)

	session.Mu.Lock()
	defer session.Mu.Unlock()

	batch := uc.orchestrator.NextBatch(ctx, session, limit)
	if batch.Terminal() {
		uc.sessions.Delete(session.ID)
		return nil, fmt.Errorf("%w: query %q", domain.ErrNoMatches, query)
	}

	variants := uc.questionVariants(ctx, query, nil, false)
	if variants != "" {
		session.UsedVariants = append(session.UsedVariants, variants)
	}
	meaning := uc.keywordMeaning(ctx, query, keywords)
	if meaning != "" {
		session.KeywordMeanings = append(session.KeywordMeanings, meaning)
	}

	answer := uc.generateAnswer(ctx, promptInput{
		Query:            query,
		Sources:          batch.Sentences,
		QuestionVariants: variants,
		KeywordMeaning:   meaning,
		CustomPrompt:     params.CustomPrompt,
	})

	return uc.result(session, answer, batch, true), nil
}

func (uc *QAUseCase) Continue(ctx context.Context, params ports.ContinueParams) (*ports.QAResult, error) {
	session, ok := uc.sessions.Get(params.SessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, params.SessionID)
	}
	limit := params.Limit
	if limit <= 0 {
		limit = uc.defaultLimit
	}

	session.Mu.Lock()
	defer session.Mu.Unlock()

	batch := uc.orchestrator.NextBatch(ctx, session, limit)
	if batch.Terminal() {
		// Exhaustion is a terminal answer, never an error.
		return uc.result(session, exhaustedAnswerText, batch, false), nil
	}

	session.ContinueCount++

	variants := uc.questionVariants(ctx, session.Query, session.UsedVariants, true)
	meaning := ""
	if len(session.KeywordMeanings) > 0 {
		meaning = session.KeywordMeanings[len(session.KeywordMeanings)-1]
	}
	answer := uc.generateAnswer(ctx, promptInput{
		Query:            session.Query,
		Sources:          batch.Sentences,
		QuestionVariants: variants,
		KeywordMeaning:   meaning,
		CustomPrompt:     params.CustomPrompt,
		ContinueMode:     true,
		ContinueCount:    session.ContinueCount,
	})
	if variants != "" {
		session.UsedVariants = append(session.UsedVariants, variants)
	}

	return uc.result(session, answer, batch, true), nil
}

// generateAnswer degrades to a fixed fallback text on generation failure
// so retrieval work is never thrown away by an LLM hiccup.
func (uc *QAUseCase) generateAnswer(ctx context.Context, in promptInput) string {
	answer, err := uc.generator.Generate(ctx, buildAnswerPrompt(in))
	if err != nil {
		uc.logger.Error("answer_generation_failed", "error", err)
		return answerFallbackText
	}
	return strings.TrimSpace(answer)
}

// questionVariants asks the generator for 3-4 rephrasings of the
// question to widen the answer prompt. In continue mode the previously
// used variants are listed so the generator produces fresh ones. Empty
// on any failure.
func (uc *QAUseCase) questionVariants(ctx context.Context, query string, previous []string, continueMode bool) string {
	var prompt string
	if continueMode && len(previous) > 0 {
		prompt = fmt.Sprintf(
			"The user asked: %q\n\nPreviously generated variations (do NOT repeat these):\n%s\n\n"+
				"Generate 3-4 NEW and DIFFERENT variations of this question, each on a new line. "+
				"Focus on more detail, deeper explanation, or related aspects.",
			query, strings.Join(previous, "\n"))
	} else {
		prompt = fmt.Sprintf(
			"Rewrite the following question in 3-4 different ways, each on a new line:\n\n%s", query)
	}
	variants, err := uc.generator.Generate(ctx, prompt)
	if err != nil {
		uc.logger.Warn("question_variants_failed", "error", err)
		return ""
	}
	return strings.TrimSpace(variants)
}

// keywordMeaning fetches a short gloss of the extracted terms, empty on
// any failure.
func (uc *QAUseCase) keywordMeaning(ctx context.Context, query string, keywords []string) string {
	prompt := fmt.Sprintf(
		"In one or two sentences, explain what the terms %q mean in the context of the question %q.",
		strings.Join(keywords, ", "), query)
	meaning, err := uc.generator.Generate(ctx, prompt)
	if err != nil {
		uc.logger.Warn("keyword_meaning_failed", "error", err)
		return ""
	}
	return strings.TrimSpace(meaning)
}

func (uc *QAUseCase) result(session *domain.RetrievalSession, answer string, batch retrieval.BatchResult, canContinue bool) *ports.QAResult {
	level := batch.LevelUsed
	if level > domain.MaxRetrievalLevel {
		level = domain.MaxRetrievalLevel
	}
	return &ports.QAResult{
		SessionID:          session.ID,
		Answer:             answer,
		Sources:            batch.Sentences,
		CurrentLevel:       level,
		MaxLevel:           domain.MaxRetrievalLevel,
		CanContinue:        canContinue,
		SentencesRetrieved: len(batch.Sentences),
		ContinueCount:      session.ContinueCount,
	}
}
