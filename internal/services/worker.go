package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"alfredoptarigan/resume-analyzer/internal/logger"
	"alfredoptarigan/resume-analyzer/internal/models"
)

type BatchItem struct {
	Name string
	Data []byte
}

type BatchResult struct {
	Name     string
	Document *models.Document
	Analysis *models.Analysis
	Err      error
	Elapsed  time.Duration
}

// BatchWorker ingests and evaluates several resumes against one job
// description with bounded concurrency. Each evaluation is retried
// according to the policy; one failure does not stop the others.
type BatchWorker struct {
	documents   DocumentService
	evaluator   EvaluatorService
	concurrency int
	retry       RetryPolicy
	log         *zap.Logger
}

func NewBatchWorker(
	documents DocumentService,
	evaluator EvaluatorService,
	concurrency int,
	retry RetryPolicy,
	log *zap.Logger,
) *BatchWorker {
	return &BatchWorker{
		documents:   documents,
		evaluator:   evaluator,
		concurrency: max(concurrency, 1),
		retry:       retry,
		log:         logger.OrNop(log),
	}
}

// Run returns one result per item, in input order.
func (w *BatchWorker) Run(ctx context.Context, jobDescription string, items []BatchItem) []BatchResult {
	w.log.Info("starting batch", zap.Int("items", len(items)), zap.Int("concurrency", w.concurrency))

	results := make([]BatchResult, len(items))

	var g errgroup.Group
	g.SetLimit(w.concurrency)

	for i, item := range items {
		g.Go(func() error {
			results[i] = w.process(ctx, jobDescription, item)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (w *BatchWorker) process(ctx context.Context, jobDescription string, item BatchItem) BatchResult {
	start := time.Now()
	result := BatchResult{Name: item.Name}

	doc, err := w.documents.Ingest(ctx, item.Name, item.Data)
	if err != nil {
		result.Err = err
		result.Elapsed = time.Since(start)
		return result
	}
	result.Document = doc

	result.Analysis, result.Err = Retry(ctx, w.retry, func(ctx context.Context) (*models.Analysis, error) {
		return w.evaluator.Evaluate(ctx, EvaluationRequest{
			DocumentID:     doc.ID,
			ResumeText:     doc.ExtractedText,
			JobDescription: jobDescription,
		})
	})
	result.Elapsed = time.Since(start)

	if result.Err != nil {
		w.log.Warn("batch item failed", zap.String("file", item.Name), zap.String("kind", string(KindOf(result.Err))), zap.Error(result.Err))
	}

	return result
}
