package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minknguyen/versegrep/internal/bootstrap"
	"github.com/minknguyen/versegrep/internal/config"
	"github.com/minknguyen/versegrep/internal/core/domain"
	"github.com/minknguyen/versegrep/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", workerMetrics.Handler())
		log.Printf("worker metrics listening on :%s", cfg.WorkerMetricsPort)
		if err := http.ListenAndServe(":"+cfg.WorkerMetricsPort, mux); err != nil && err != http.ErrServerClosed {
			log.Printf("worker metrics server error: %v", err)
		}
	}()

	log.Printf("worker subscribed to %s", cfg.NATSSubject)
	err = app.Queue.SubscribeFileUploaded(ctx, func(handlerCtx context.Context, evt domain.FileUploadedEvent) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Minute)
		defer cancel()

		if !evt.UploadedAt.IsZero() {
			workerMetrics.ObserveQueueLag("worker", time.Since(evt.UploadedAt))
		}

		workerMetrics.StartUpload()
		start := time.Now()
		processErr := app.ProcessUC.ProcessByID(processCtx, evt.UploadID)
		workerMetrics.FinishUpload("worker", time.Since(start), processErr)

		if processErr == nil {
			if upload, err := app.Repo.GetByID(processCtx, evt.UploadID); err == nil {
				workerMetrics.ObserveIndexedSentences("worker", upload.SentenceCount)
			}
		}
		return processErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
