package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"alfredoptarigan/resume-analyzer/internal/logger"
	"alfredoptarigan/resume-analyzer/internal/models"
	"alfredoptarigan/resume-analyzer/internal/repositories"
)

var ErrFileTooLarge = errors.New("file too large")

// DocumentService owns uploaded resumes: the stored bytes, the extracted
// text and the analyses made from them.
type DocumentService interface {
	Ingest(ctx context.Context, originalName string, data []byte) (*models.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentService struct {
	docRepo     repositories.DocumentRepository
	storage     StorageService
	extractor   TextExtractor
	maxFileSize int64
	log         *zap.Logger
}

func NewDocumentService(
	docRepo repositories.DocumentRepository,
	storage StorageService,
	extractor TextExtractor,
	maxFileSize int64,
	log *zap.Logger,
) DocumentService {
	return &documentService{
		docRepo:     docRepo,
		storage:     storage,
		extractor:   extractor,
		maxFileSize: maxFileSize,
		log:         logger.OrNop(log),
	}
}

// Ingest extracts the text of an upload, stores the bytes and records the
// document. A document whose text is blank is still stored; evaluating it
// fails later with KindEmptySourceText.
func (s *documentService) Ingest(ctx context.Context, originalName string, data []byte) (*models.Document, error) {
	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrFileTooLarge, len(data), s.maxFileSize)
	}

	extracted, err := s.extractor.Extract(data, originalName)
	if err != nil {
		return nil, err
	}

	filename, filePath, err := s.storage.SaveBytes(data, mimetype.Detect(data).Extension())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	doc := &models.Document{
		ID:               uuid.New(),
		Filename:         filename,
		OriginalFileName: originalName,
		ContentType:      extracted.ContentType,
		PageCount:        extracted.PageCount,
		FilePath:         filePath,
		ExtractedText:    extracted.Text,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.docRepo.Create(ctx, doc); err != nil {
		if rmErr := s.storage.DeleteFile(filename); rmErr != nil {
			s.log.Warn("failed to clean up stored file", zap.String("file", filename), zap.Error(rmErr))
		}
		return nil, err
	}

	s.log.Info("document ingested",
		zap.String("document_id", doc.ID.String()),
		zap.String("file", originalName),
		zap.String("content_type", doc.ContentType),
		zap.Int("text_chars", len([]rune(doc.ExtractedText))),
	)

	return doc, nil
}

// Delete removes the document, its analyses and the stored file.
func (s *documentService) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := s.docRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	// the row delete removes the analyses in the same statement
	if err := s.docRepo.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.storage.DeleteFile(doc.Filename); err != nil {
		s.log.Warn("stored file already gone", zap.String("file", doc.Filename), zap.Error(err))
	}

	s.log.Info("document deleted", zap.String("document_id", id.String()))

	return nil
}
