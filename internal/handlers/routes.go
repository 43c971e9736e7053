package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Documents *DocumentHandler
	Analyses  *AnalysisHandler
	Jobs      *JobHandler
}

// Register mounts the API on router. analyzeLimit guards the route that
// calls the model; pass nil to leave it unlimited.
func Register(router fiber.Router, h Handlers, analyzeLimit fiber.Handler) {
	router.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	analyze := []fiber.Handler{h.Analyses.HandleAnalyze}
	if analyzeLimit != nil {
		analyze = append([]fiber.Handler{analyzeLimit}, analyze...)
	}

	router.Post("/documents", h.Documents.HandleUpload)
	router.Get("/documents", h.Documents.HandleList)
	router.Get("/documents/:id", h.Documents.HandleGet)
	router.Delete("/documents/:id", h.Documents.HandleDelete)
	router.Post("/documents/:id/analyses", analyze...)
	router.Get("/documents/:id/analyses", h.Analyses.HandleHistory)

	router.Get("/analyses/:id", h.Analyses.HandleGet)
	router.Delete("/analyses/:id", h.Analyses.HandleDelete)

	router.Get("/jobs", h.Jobs.HandleList)
}
