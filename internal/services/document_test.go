package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/resume-analyzer/internal/models"
	"alfredoptarigan/resume-analyzer/internal/repositories"
)

// faultyDocuments fails the calls whose error is set.
type faultyDocuments struct {
	repositories.DocumentRepository
	createErr error
	deleteErr error
}

func (f *faultyDocuments) Create(ctx context.Context, d *models.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.DocumentRepository.Create(ctx, d)
}

func (f *faultyDocuments) Delete(ctx context.Context, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.DocumentRepository.Delete(ctx, id)
}

type documentFixture struct {
	svc      DocumentService
	docs     *faultyDocuments
	analyses repositories.AnalysisRepository
	dir      string
}

func newDocumentFixture(t *testing.T, maxSize int64) *documentFixture {
	t.Helper()

	dir := t.TempDir()
	store := repositories.NewMemoryStore()
	docs := &faultyDocuments{DocumentRepository: store.Documents()}
	svc := NewDocumentService(docs, NewStorageService(dir), NewTextExtractor(nil), maxSize, nil)

	return &documentFixture{svc: svc, docs: docs, analyses: store.Analyses(), dir: dir}
}

func storedFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestIngestStoresTextAndFile(t *testing.T) {
	f := newDocumentFixture(t, 1024)

	doc, err := f.svc.Ingest(context.Background(), "cv.txt", []byte("Jane Doe\nGo engineer"))
	require.NoError(t, err)

	assert.Equal(t, "cv.txt", doc.OriginalFileName)
	assert.Equal(t, "Jane Doe\nGo engineer", doc.ExtractedText)
	assert.Contains(t, doc.ContentType, "text/plain")

	stored, err := f.docs.FindByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.FilePath, stored.FilePath)
	assert.Equal(t, 1, storedFiles(t, f.dir))
}

func TestIngestRejects(t *testing.T) {
	f := newDocumentFixture(t, 16)

	_, err := f.svc.Ingest(context.Background(), "big.txt", []byte("this is more than sixteen bytes"))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = f.svc.Ingest(context.Background(), "img.png", []byte("\x89PNG\r\n\x1a\n"))
	assert.Equal(t, KindUnreadable, KindOf(err))

	assert.Zero(t, storedFiles(t, f.dir))
}

func TestIngestRemovesFileWhenRecordFails(t *testing.T) {
	f := newDocumentFixture(t, 1024)
	f.docs.createErr = errors.New("db down")

	_, err := f.svc.Ingest(context.Background(), "cv.txt", []byte("Jane Doe"))
	require.Error(t, err)
	assert.Zero(t, storedFiles(t, f.dir))
}

func TestDeleteRemovesAnalysesAndFile(t *testing.T) {
	f := newDocumentFixture(t, 1024)
	ctx := context.Background()

	doc, err := f.svc.Ingest(ctx, "cv.txt", []byte("Jane Doe"))
	require.NoError(t, err)
	require.NoError(t, f.analyses.Create(ctx, &models.Analysis{ID: uuid.New(), DocumentID: doc.ID, Result: "{}", CreatedAt: time.Now()}))

	require.NoError(t, f.svc.Delete(ctx, doc.ID))

	history, err := f.analyses.FindByDocumentID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Zero(t, storedFiles(t, f.dir))
	_, err = f.docs.FindByID(ctx, doc.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	assert.ErrorIs(t, f.svc.Delete(ctx, doc.ID), repositories.ErrNotFound)
}

func TestDeleteFailureKeepsHistoryAndFile(t *testing.T) {
	f := newDocumentFixture(t, 1024)
	ctx := context.Background()

	doc, err := f.svc.Ingest(ctx, "cv.txt", []byte("Jane Doe"))
	require.NoError(t, err)
	require.NoError(t, f.analyses.Create(ctx, &models.Analysis{ID: uuid.New(), DocumentID: doc.ID, Result: "{}", CreatedAt: time.Now()}))

	f.docs.deleteErr = errors.New("db down")
	require.Error(t, f.svc.Delete(ctx, doc.ID))

	history, err := f.analyses.FindByDocumentID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, 1, storedFiles(t, f.dir))
}
