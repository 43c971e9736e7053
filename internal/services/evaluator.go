package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"alfredoptarigan/resume-analyzer/internal/logger"
	"alfredoptarigan/resume-analyzer/internal/metrics"
	"alfredoptarigan/resume-analyzer/internal/models"
	"alfredoptarigan/resume-analyzer/internal/repositories"
)

// EvaluationRequest is one resume/job-description pair to score.
type EvaluationRequest struct {
	DocumentID     uuid.UUID
	ResumeText     string
	JobDescription string
}

type EvaluatorService interface {
	// Evaluate runs the pipeline on already extracted text and persists the verdict.
	Evaluate(ctx context.Context, req EvaluationRequest) (*models.Analysis, error)
	// EvaluateDocument loads a stored document's text and evaluates it.
	EvaluateDocument(ctx context.Context, documentID uuid.UUID, jobDescription string) (*models.Analysis, error)
}

type evaluatorService struct {
	analysisRepo  repositories.AnalysisRepository
	docRepo       repositories.DocumentRepository
	model         ModelClient
	promptBuilder *PromptBuilder
	log           *zap.Logger

	newID func() uuid.UUID
	now   func() time.Time
}

func NewEvaluatorService(
	analysisRepo repositories.AnalysisRepository,
	docRepo repositories.DocumentRepository,
	model ModelClient,
	promptBuilder *PromptBuilder,
	log *zap.Logger,
) EvaluatorService {
	return &evaluatorService{
		analysisRepo:  analysisRepo,
		docRepo:       docRepo,
		model:         model,
		promptBuilder: promptBuilder,
		log:           logger.OrNop(log),
		newID:         uuid.New,
		now:           time.Now,
	}
}

// run tracks the current stage of a single evaluation.
type run struct {
	log   *zap.Logger
	start time.Time
	stage Stage
}

func (r *run) advance(stage Stage, fields ...zap.Field) {
	r.stage = stage
	metrics.CaptureStage(string(stage), time.Since(r.start))
	r.log.Info("stage transition", append([]zap.Field{zap.String("stage", string(stage))}, fields...)...)
}

func (r *run) fail(err error) error {
	kind := "unknown"
	var pe *PipelineError
	if errors.As(err, &pe) {
		pe.Stage = r.stage
		kind = string(pe.Kind)
	}

	metrics.CaptureEvaluation(kind)
	r.log.Warn("stage transition",
		zap.String("stage", string(StageFailed)),
		zap.String("from", string(r.stage)),
		zap.String("kind", kind),
		zap.Duration("elapsed", time.Since(r.start)),
		zap.Error(err),
	)

	return err
}

func (e *evaluatorService) Evaluate(ctx context.Context, req EvaluationRequest) (*models.Analysis, error) {
	r := &run{
		log:   e.log.With(zap.String("document_id", req.DocumentID.String())),
		start: time.Now(),
	}
	r.advance(StageStart)

	if strings.TrimSpace(req.ResumeText) == "" {
		return nil, r.fail(newError(KindEmptySourceText, StageStart, "resume text is empty", nil))
	}
	r.advance(StageTextReady)

	prompt, err := e.promptBuilder.BuildAnalysisPrompt(req.ResumeText, req.JobDescription)
	if err != nil {
		return nil, r.fail(err)
	}
	r.advance(StagePromptReady, zap.Int("prompt_chars", len([]rune(prompt))))

	raw, err := e.model.Invoke(ctx, prompt)
	if err != nil {
		return nil, r.fail(err)
	}
	r.advance(StageModelInvoked, zap.String("output_preview", logger.TruncateForLog(raw, 120)))

	validated, err := Sanitize(raw)
	if err != nil {
		return nil, r.fail(err)
	}
	r.advance(StageValidated)

	score := ExtractScore(validated.Fields)
	r.advance(StageScoreExtracted, zap.Float64("score", score))

	analysis := &models.Analysis{
		ID:             e.newID(),
		DocumentID:     req.DocumentID,
		JobDescription: req.JobDescription,
		Score:          score,
		Result:         validated.Raw,
		CreatedAt:      e.now(),
	}

	if err := e.analysisRepo.Create(ctx, analysis); err != nil {
		return nil, r.fail(newError(KindPersistence, StageScoreExtracted, "failed to save analysis", err))
	}
	r.advance(StagePersisted, zap.String("analysis_id", analysis.ID.String()))
	metrics.CaptureEvaluation("ok")

	return analysis, nil
}

func (e *evaluatorService) EvaluateDocument(ctx context.Context, documentID uuid.UUID, jobDescription string) (*models.Analysis, error) {
	doc, err := e.docRepo.FindByID(ctx, documentID)
	if err != nil {
		r := &run{
			log:   e.log.With(zap.String("document_id", documentID.String())),
			start: time.Now(),
			stage: StageStart,
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, r.fail(newError(KindDocumentNotFound, StageStart, "document not found", err))
		}
		return nil, r.fail(newError(KindPersistence, StageStart, "failed to load document", err))
	}

	return e.Evaluate(ctx, EvaluationRequest{
		DocumentID:     doc.ID,
		ResumeText:     doc.ExtractedText,
		JobDescription: jobDescription,
	})
}
