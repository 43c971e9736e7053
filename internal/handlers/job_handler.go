package handlers

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"alfredoptarigan/resume-analyzer/internal/logger"
	"alfredoptarigan/resume-analyzer/internal/models"
	"alfredoptarigan/resume-analyzer/internal/services"
)

type JobHandler struct {
	jobs     services.JobFeedService
	validate *validator.Validate
	log      *zap.Logger
}

func NewJobHandler(jobs services.JobFeedService, log *zap.Logger) *JobHandler {
	return &JobHandler{
		jobs:     jobs,
		validate: newValidator(),
		log:      logger.OrNop(log),
	}
}

// HandleList handles GET /jobs?skills=go,postgres
func (h *JobHandler) HandleList(c *fiber.Ctx) error {
	var req models.JobsRequest
	for _, skill := range strings.Split(c.Query("skills"), ",") {
		if skill = strings.TrimSpace(skill); skill != "" {
			req.Skills = append(req.Skills, skill)
		}
	}

	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": validationMessage(err),
		})
	}

	jobs, err := h.jobs.FetchJobs(c.UserContext(), req.Skills)
	if err != nil {
		h.log.Warn("job feed unavailable", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "job feed unavailable",
		})
	}

	return c.JSON(fiber.Map{
		"count": len(jobs),
		"jobs":  jobs,
	})
}
