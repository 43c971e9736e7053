package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"alfredoptarigan/resume-analyzer/internal/repositories"
	"alfredoptarigan/resume-analyzer/internal/services"
)

// statusClientClosedRequest is the de facto status for a request the
// client abandoned.
const statusClientClosedRequest = 499

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindEmptySourceText, services.KindPromptTooLarge, services.KindUnreadable:
		return fiber.StatusUnprocessableEntity
	case services.KindDocumentNotFound:
		return fiber.StatusNotFound
	case services.KindRateLimited:
		return fiber.StatusTooManyRequests
	case services.KindNotConfigured:
		return fiber.StatusServiceUnavailable
	case services.KindTimeout:
		return fiber.StatusGatewayTimeout
	case services.KindCanceled:
		return statusClientClosedRequest
	case services.KindUnauthorized, services.KindForbidden, services.KindNotFound,
		services.KindUpstreamServerError, services.KindClientError, services.KindUpstreamReportedError,
		services.KindNoCandidates, services.KindNotJSON, services.KindTransport:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// respondError writes the JSON error body for err.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	if kind := services.KindOf(err); kind != "" {
		body := fiber.Map{
			"error": err.Error(),
			"kind":  kind,
		}
		if hint := services.Remediation(kind); hint != "" {
			body["hint"] = hint
		}
		var pe *services.PipelineError
		if errors.As(err, &pe) && pe.Preview != "" {
			body["preview"] = pe.Preview
		}
		return c.Status(statusForKind(kind)).JSON(body)
	}

	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrFileTooLarge):
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": err.Error()})
	}

	log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}
