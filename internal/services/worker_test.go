package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchWorkerProcessesEveryItem(t *testing.T) {
	docs := newMemDocumentRepo()
	analyses := newMemAnalysisRepo()
	documents := NewDocumentService(docs, NewStorageService(t.TempDir()), NewTextExtractor(nil), 1024, nil)

	model := &stubModel{
		outputs: []string{goodOutput, goodOutput, goodOutput},
		errs:    []error{nil, &PipelineError{Kind: KindRateLimited}, nil},
	}
	evaluator := NewEvaluatorService(analyses, docs, model, NewPromptBuilder(0), nil)

	worker := NewBatchWorker(documents, evaluator, 1, RetryPolicy{MaxAttempts: 2, InitialDelay: time.Millisecond}, nil)

	results := worker.Run(context.Background(), "Go engineer", []BatchItem{
		{Name: "a.txt", Data: []byte("Alice, Go")},
		{Name: "b.txt", Data: []byte("Bob, Go")},
		{Name: "c.png", Data: []byte("\x89PNG\r\n\x1a\n")},
	})

	require.Len(t, results, 3)
	assert.Equal(t, "a.txt", results[0].Name)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 82.0, results[0].Analysis.Score)

	require.NoError(t, results[1].Err, "rate limit is retried")
	assert.Equal(t, results[1].Document.ID, results[1].Analysis.DocumentID)

	assert.Equal(t, KindUnreadable, KindOf(results[2].Err))
	assert.Nil(t, results[2].Document)

	assert.Equal(t, 2, analyses.count())
	assert.Equal(t, 3, model.calls())
}
