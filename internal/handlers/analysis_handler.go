package handlers

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"alfredoptarigan/resume-analyzer/internal/logger"
	"alfredoptarigan/resume-analyzer/internal/models"
	"alfredoptarigan/resume-analyzer/internal/repositories"
	"alfredoptarigan/resume-analyzer/internal/services"
)

type AnalysisHandler struct {
	analysisRepo repositories.AnalysisRepository
	evaluator    services.EvaluatorService
	validate     *validator.Validate
	log          *zap.Logger
}

func NewAnalysisHandler(
	analysisRepo repositories.AnalysisRepository,
	evaluator services.EvaluatorService,
	log *zap.Logger,
) *AnalysisHandler {
	return &AnalysisHandler{
		analysisRepo: analysisRepo,
		evaluator:    evaluator,
		validate:     newValidator(),
		log:          logger.OrNop(log),
	}
}

// HandleAnalyze handles POST /documents/:id/analyses. The evaluation runs
// synchronously and the persisted record is returned.
func (h *AnalysisHandler) HandleAnalyze(c *fiber.Ctx) error {
	docID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document ID format",
		})
	}

	var req models.AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}
	req.JobDescription = strings.TrimSpace(req.JobDescription)

	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": validationMessage(err),
		})
	}

	analysis, err := h.evaluator.EvaluateDocument(c.UserContext(), docID, req.JobDescription)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.NewAnalysisResponse(analysis))
}

// HandleHistory handles GET /documents/:id/analyses
func (h *AnalysisHandler) HandleHistory(c *fiber.Ctx) error {
	docID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document ID format",
		})
	}

	analyses, err := h.analysisRepo.FindByDocumentID(c.UserContext(), docID)
	if err != nil {
		return respondError(c, h.log, err)
	}

	out := make([]models.AnalysisResponse, 0, len(analyses))
	for i := range analyses {
		out = append(out, models.NewAnalysisResponse(&analyses[i]))
	}

	return c.JSON(fiber.Map{"analyses": out})
}

// HandleGet handles GET /analyses/:id
func (h *AnalysisHandler) HandleGet(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid analysis ID format",
		})
	}

	analysis, err := h.analysisRepo.FindByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(models.NewAnalysisResponse(analysis))
}

// HandleDelete handles DELETE /analyses/:id
func (h *AnalysisHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid analysis ID format",
		})
	}

	if err := h.analysisRepo.Delete(c.UserContext(), id); err != nil {
		return respondError(c, h.log, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
