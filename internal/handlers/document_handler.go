package handlers

import (
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"alfredoptarigan/resume-analyzer/internal/logger"
	"alfredoptarigan/resume-analyzer/internal/models"
	"alfredoptarigan/resume-analyzer/internal/repositories"
	"alfredoptarigan/resume-analyzer/internal/services"
)

const listLimit = 100

type DocumentHandler struct {
	docRepo     repositories.DocumentRepository
	documents   services.DocumentService
	maxFileSize int64
	log         *zap.Logger
}

func NewDocumentHandler(
	docRepo repositories.DocumentRepository,
	documents services.DocumentService,
	maxFileSize int64,
	log *zap.Logger,
) *DocumentHandler {
	return &DocumentHandler{
		docRepo:     docRepo,
		documents:   documents,
		maxFileSize: maxFileSize,
		log:         logger.OrNop(log),
	}
}

// HandleUpload handles POST /documents
func (h *DocumentHandler) HandleUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "multipart field 'file' is required",
		})
	}

	if file.Size > h.maxFileSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": fmt.Sprintf("file too large. Max size: %d bytes", h.maxFileSize),
		})
	}

	src, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to open uploaded file",
		})
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to read uploaded file",
		})
	}

	doc, err := h.documents.Ingest(c.UserContext(), file.Filename, data)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.UploadResponse{
		ID:           doc.ID.String(),
		Filename:     doc.Filename,
		OriginalName: doc.OriginalFileName,
		ContentType:  doc.ContentType,
		PageCount:    doc.PageCount,
		TextLength:   len([]rune(doc.ExtractedText)),
	})
}

// HandleList handles GET /documents
func (h *DocumentHandler) HandleList(c *fiber.Ctx) error {
	docs, err := h.docRepo.List(c.UserContext(), listLimit)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(fiber.Map{"documents": docs})
}

// HandleGet handles GET /documents/:id
func (h *DocumentHandler) HandleGet(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document ID format",
		})
	}

	doc, err := h.docRepo.FindByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(doc)
}

// HandleDelete handles DELETE /documents/:id
func (h *DocumentHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document ID format",
		})
	}

	if err := h.documents.Delete(c.UserContext(), id); err != nil {
		return respondError(c, h.log, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
