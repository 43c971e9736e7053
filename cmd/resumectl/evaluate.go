package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"alfredoptarigan/resume-analyzer/internal/config"
	"alfredoptarigan/resume-analyzer/internal/logger"
	"alfredoptarigan/resume-analyzer/internal/repositories"
	"alfredoptarigan/resume-analyzer/internal/services"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <file>...",
	Short: "Score resumes against a job description",
	Long:  "Ingest each file, evaluate it against the job description and print one JSON record per file. Transient model failures are retried.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEvaluate,
}

var (
	evalJob         string
	evalJobFile     string
	evalConcurrency int
	evalPersist     bool
)

func init() {
	evaluateCmd.Flags().StringVarP(&evalJob, "job", "j", "", "Job description text")
	evaluateCmd.Flags().StringVar(&evalJobFile, "job-file", "", "Path to a file holding the job description")
	evaluateCmd.Flags().IntVarP(&evalConcurrency, "concurrency", "c", 0, "Files evaluated in parallel (default WORKER_CONCURRENCY)")
	evaluateCmd.Flags().BoolVar(&evalPersist, "persist", false, "Store documents and analyses in the configured database")

	rootCmd.AddCommand(evaluateCmd)
}

// record is the JSON line printed for each evaluated file.
type record struct {
	File       string          `json:"file"`
	DocumentID string          `json:"document_id,omitempty"`
	AnalysisID string          `json:"analysis_id,omitempty"`
	Score      *float64        `json:"score,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Kind       string          `json:"kind,omitempty"`
	Hint       string          `json:"hint,omitempty"`
	ElapsedMS  int64           `json:"elapsed_ms"`
}

func newRecord(r services.BatchResult) record {
	rec := record{File: r.Name, ElapsedMS: r.Elapsed.Milliseconds()}
	if r.Document != nil {
		rec.DocumentID = r.Document.ID.String()
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
		if kind := services.KindOf(r.Err); kind != "" {
			rec.Kind = string(kind)
			rec.Hint = services.Remediation(kind)
		}
		return rec
	}
	if r.Analysis != nil {
		score := r.Analysis.Score
		rec.AnalysisID = r.Analysis.ID.String()
		rec.Score = &score
		rec.Result = json.RawMessage(r.Analysis.Result)
	}
	return rec
}

func readJobDescription(job, jobFile string) (string, error) {
	if job != "" && jobFile != "" {
		return "", errors.New("use either --job or --job-file, not both")
	}
	if jobFile != "" {
		data, err := os.ReadFile(jobFile)
		if err != nil {
			return "", fmt.Errorf("failed to read job file: %w", err)
		}
		job = string(data)
	}
	job = strings.TrimSpace(job)
	if job == "" {
		return "", errors.New("a job description is required (--job or --job-file)")
	}
	return job, nil
}

func writeRecords(w io.Writer, results []services.BatchResult) (failed int, err error) {
	enc := json.NewEncoder(w)
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
		if err := enc.Encode(newRecord(r)); err != nil {
			return failed, err
		}
	}
	return failed, nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	jobDescription, err := readJobDescription(evalJob, evalJobFile)
	if err != nil {
		return err
	}

	cfg := config.Load()
	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	items := make([]services.BatchItem, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		items = append(items, services.BatchItem{Name: filepath.Base(path), Data: data})
	}

	var (
		docRepo      repositories.DocumentRepository
		analysisRepo repositories.AnalysisRepository
		uploadPath   = cfg.Storage.UploadPath
	)
	if evalPersist {
		db, err := config.InitDatabase(cfg, log)
		if err != nil {
			return err
		}
		docRepo = repositories.NewDocumentRepository(db)
		analysisRepo = repositories.NewAnalysisRepository(db)
	} else {
		store := repositories.NewMemoryStore()
		docRepo, analysisRepo = store.Documents(), store.Analyses()

		tmp, err := os.MkdirTemp("", "resumectl-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)
		uploadPath = tmp
	}

	storage := services.NewStorageService(uploadPath)
	if err := storage.EnsureUploadDir(); err != nil {
		return err
	}

	model := services.NewGeminiClient(services.GeminiClientConfig{
		APIKey: cfg.Gemini.APIKey,
		APIURL: cfg.Gemini.APIURL,
		Generation: services.GenerationConfig{
			Temperature:      cfg.Gemini.Temperature,
			TopK:             cfg.Gemini.TopK,
			TopP:             cfg.Gemini.TopP,
			MaxOutputTokens:  cfg.Gemini.MaxOutputTokens,
			ResponseMIMEType: "application/json",
		},
		Timeout: cfg.Gemini.RequestTimeout,
	}, log)

	documents := services.NewDocumentService(docRepo, storage, services.NewTextExtractor(log), cfg.Storage.MaxFileSize, log)
	evaluator := services.NewEvaluatorService(analysisRepo, docRepo, model, services.NewPromptBuilder(cfg.Gemini.MaxPromptChars), log)

	concurrency := evalConcurrency
	if concurrency <= 0 {
		concurrency = cfg.Worker.Concurrency
	}
	worker := services.NewBatchWorker(documents, evaluator, concurrency, services.RetryPolicy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		Logger:       log,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failed, err := writeRecords(cmd.OutOrStdout(), worker.Run(ctx, jobDescription, items))
	if err != nil {
		return err
	}

	log.Info("batch finished", zap.Int("files", len(items)), zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d evaluations failed", failed, len(items))
	}
	return nil
}
