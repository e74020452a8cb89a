package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/minknguyen/versegrep/internal/config"
	"github.com/minknguyen/versegrep/internal/core/ports"
	"github.com/minknguyen/versegrep/internal/core/retrieval"
	"github.com/minknguyen/versegrep/internal/core/usecase"
	"github.com/minknguyen/versegrep/internal/infrastructure/chunking"
	"github.com/minknguyen/versegrep/internal/infrastructure/extractor"
	"github.com/minknguyen/versegrep/internal/infrastructure/llm/openai"
	"github.com/minknguyen/versegrep/internal/infrastructure/queue/nats"
	"github.com/minknguyen/versegrep/internal/infrastructure/repository/postgres"
	"github.com/minknguyen/versegrep/internal/infrastructure/resilience"
	"github.com/minknguyen/versegrep/internal/infrastructure/search/elastic"
	sessionmem "github.com/minknguyen/versegrep/internal/infrastructure/session/memory"
	"github.com/minknguyen/versegrep/internal/infrastructure/storage/localfs"
	"github.com/minknguyen/versegrep/internal/infrastructure/wordlist"
	"github.com/minknguyen/versegrep/internal/observability/logging"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    *nats.Queue
	Repo     ports.UploadRepository
	Sessions ports.SessionStore

	QAUC      ports.QuestionService
	IngestUC  ports.CorpusIngestor
	AdminUC   ports.CorpusAdmin
	ProcessUC ports.UploadProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger("versegrep", cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewUploadRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{
		Retry:   resilience.RetryPolicy{MaxAttempts: cfg.RetryMaxAttempts},
		Breaker: resilience.BreakerPolicy{Enabled: cfg.BreakerEnabled},
	}, logging.Component(logger, "resilience"))

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logging.Component(logger, "queue"),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	llmClient := openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel, executor)
	embedder := openai.NewEmbedder(llmClient)
	generator := openai.NewGenerator(llmClient)

	search := elastic.New(cfg.ElasticURL, cfg.ElasticIndex, cfg.EmbeddingDims)

	words, err := wordlist.Load(cfg.WordListPath)
	if err != nil {
		return nil, fmt.Errorf("load word list: %w", err)
	}

	retrievalLogger := logging.Component(logger, "retrieval")
	kwExtractor := retrieval.NewExtractor(generator, words, retrievalLogger)
	builder := retrieval.NewCandidateBuilder(words)
	engine := retrieval.NewEngine(search, kwExtractor, builder, retrievalLogger)
	orchestrator := retrieval.NewOrchestrator(engine, embedder, cfg.SemanticQuota, retrievalLogger)

	sessions := sessionmem.NewStore(time.Duration(cfg.SessionTimeoutMin) * time.Minute)

	qaUC := usecase.NewQAUseCase(search, kwExtractor, orchestrator, sessions, generator, cfg.BatchSize, logging.Component(logger, "qa"))
	ingestUC := usecase.NewIngestUploadUseCase(repo, storage, queue)
	adminUC := usecase.NewCorpusAdminUseCase(search, repo, sessions, ingestUC)
	processUC := usecase.NewProcessUploadUseCase(
		repo,
		extractor.New(storage),
		chunking.NewSentenceSplitter(),
		embedder,
		search,
		cfg.SentencesPerLevel,
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Queue:    queue,
		Repo:     repo,
		Sessions: sessions,

		QAUC:      qaUC,
		IngestUC:  ingestUC,
		AdminUC:   adminUC,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
