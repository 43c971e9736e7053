package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/resume-analyzer/internal/middleware"
	"alfredoptarigan/resume-analyzer/internal/repositories"
	"alfredoptarigan/resume-analyzer/internal/services"
)

type fakeModel struct {
	output string
	err    error
	calls  int
}

func (f *fakeModel) Invoke(context.Context, string) (string, error) {
	f.calls++
	return f.output, f.err
}

type fakeJobs struct {
	skills []string
	err    error
}

func (f *fakeJobs) FetchJobs(_ context.Context, skills []string) ([]services.Job, error) {
	f.skills = skills
	if f.err != nil {
		return nil, f.err
	}
	return []services.Job{{Slug: "globex-go-dev", Position: "Go Developer", MatchScore: 100}}, nil
}

type testAPI struct {
	app   *fiber.App
	store *repositories.MemoryStore
	model *fakeModel
	jobs  *fakeJobs
}

func newTestAPI(t *testing.T, limiter fiber.Handler) *testAPI {
	t.Helper()

	store := repositories.NewMemoryStore()
	docs, analyses := store.Documents(), store.Analyses()
	model := &fakeModel{output: "```json\n{\"score\":82,\"missing_skills\":[\"Kubernetes\"],\"strengths\":[\"Go\"],\"suggestions\":\"Add metrics.\"}\n```"}
	jobs := &fakeJobs{}

	documents := services.NewDocumentService(docs, services.NewStorageService(t.TempDir()), services.NewTextExtractor(nil), 1024, nil)
	evaluator := services.NewEvaluatorService(analyses, docs, model, services.NewPromptBuilder(200000), nil)

	app := fiber.New()
	Register(app.Group("/api/v1"), Handlers{
		Documents: NewDocumentHandler(docs, documents, 1024, nil),
		Analyses:  NewAnalysisHandler(analyses, evaluator, nil),
		Jobs:      NewJobHandler(jobs, nil),
	}, limiter)

	return &testAPI{app: app, store: store, model: model, jobs: jobs}
}

func (a *testAPI) do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func uploadRequest(t *testing.T, field, name string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (a *testAPI) upload(t *testing.T, text string) string {
	t.Helper()
	status, body := a.do(t, uploadRequest(t, "file", "cv.txt", []byte(text)))
	require.Equal(t, http.StatusCreated, status, body)
	return body["id"].(string)
}

func TestUploadAnalyzeAndHistory(t *testing.T) {
	api := newTestAPI(t, nil)
	docID := api.upload(t, "Jane Doe\nGo engineer")

	status, body := api.do(t, jsonRequest(http.MethodPost, "/api/v1/documents/"+docID+"/analyses", `{"job_description":"Backend engineer, Go and Kubernetes"}`))
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, 82.0, body["score"])
	assert.Equal(t, docID, body["document_id"])
	result := body["result"].(map[string]any)
	assert.Equal(t, []any{"Kubernetes"}, result["missing_skills"])
	analysisID := body["id"].(string)

	status, body = api.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+docID+"/analyses", nil))
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["analyses"], 1)

	status, body = api.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+analysisID, nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, analysisID, body["id"])

	status, _ = api.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/analyses/"+analysisID, nil))
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = api.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+analysisID, nil))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUploadValidation(t *testing.T) {
	api := newTestAPI(t, nil)

	status, _ := api.do(t, uploadRequest(t, "resume", "cv.txt", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, status, "wrong field name")

	status, body := api.do(t, uploadRequest(t, "file", "cv.pdf", []byte("\x89PNG\r\n\x1a\n")))
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "unreadable", body["kind"])

	status, _ = api.do(t, uploadRequest(t, "file", "big.txt", bytes.Repeat([]byte("a"), 2048)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
}

func TestAnalyzeErrors(t *testing.T) {
	api := newTestAPI(t, nil)
	docID := api.upload(t, "Jane Doe")
	blankID := api.upload(t, "   ")

	tests := []struct {
		name       string
		path       string
		body       string
		modelErr   error
		wantStatus int
		wantKind   string
	}{
		{name: "bad id", path: "/api/v1/documents/nope/analyses", body: `{"job_description":"Go engineer wanted"}`, wantStatus: 400},
		{name: "missing jd", path: "/api/v1/documents/" + docID + "/analyses", body: `{}`, wantStatus: 400},
		{name: "short jd", path: "/api/v1/documents/" + docID + "/analyses", body: `{"job_description":"Go"}`, wantStatus: 400},
		{name: "unknown doc", path: "/api/v1/documents/" + uuid.NewString() + "/analyses", body: `{"job_description":"Go engineer wanted"}`, wantStatus: 404, wantKind: "document_not_found"},
		{name: "blank text", path: "/api/v1/documents/" + blankID + "/analyses", body: `{"job_description":"Go engineer wanted"}`, wantStatus: 422, wantKind: "empty_source_text"},
		{name: "rate limited upstream", path: "/api/v1/documents/" + docID + "/analyses", body: `{"job_description":"Go engineer wanted"}`, modelErr: &services.PipelineError{Kind: services.KindRateLimited, StatusCode: 429}, wantStatus: 429, wantKind: "rate_limited"},
		{name: "not configured", path: "/api/v1/documents/" + docID + "/analyses", body: `{"job_description":"Go engineer wanted"}`, modelErr: &services.PipelineError{Kind: services.KindNotConfigured}, wantStatus: 503, wantKind: "not_configured"},
		{name: "timeout", path: "/api/v1/documents/" + docID + "/analyses", body: `{"job_description":"Go engineer wanted"}`, modelErr: &services.PipelineError{Kind: services.KindTimeout}, wantStatus: 504, wantKind: "timeout"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api.model.err = tc.modelErr
			status, body := api.do(t, jsonRequest(http.MethodPost, tc.path, tc.body))
			assert.Equal(t, tc.wantStatus, status, body)
			if tc.wantKind != "" {
				assert.Equal(t, tc.wantKind, body["kind"])
				assert.NotEmpty(t, body["hint"])
			}
		})
	}
}

func TestAnalyzeNotJSONIncludesPreview(t *testing.T) {
	api := newTestAPI(t, nil)
	docID := api.upload(t, "Jane Doe")
	api.model.output = "The candidate looks strong overall."

	status, body := api.do(t, jsonRequest(http.MethodPost, "/api/v1/documents/"+docID+"/analyses", `{"job_description":"Go engineer wanted"}`))
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "not_json", body["kind"])
	assert.Equal(t, "The candidate looks strong overall.", body["preview"])
	history, err := api.store.Analyses().FindByDocumentID(context.Background(), uuid.MustParse(docID))
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAnalyzeIsRateLimited(t *testing.T) {
	api := newTestAPI(t, middleware.NewIPRateLimiter(0.001, 1).Handler())
	docID := api.upload(t, "Jane Doe")

	path := "/api/v1/documents/" + docID + "/analyses"
	status, _ := api.do(t, jsonRequest(http.MethodPost, path, `{"job_description":"Go engineer wanted"}`))
	assert.Equal(t, http.StatusCreated, status)

	status, _ = api.do(t, jsonRequest(http.MethodPost, path, `{"job_description":"Go engineer wanted"}`))
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, 1, api.model.calls)
}

func TestDocumentLifecycle(t *testing.T) {
	api := newTestAPI(t, nil)
	docID := api.upload(t, "Jane Doe")

	status, body := api.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+docID, nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cv.txt", body["original_filename"])
	assert.NotContains(t, body, "extracted_text")

	status, body = api.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["documents"], 1)

	status, _ = api.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+docID, nil))
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = api.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+docID, nil))
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestJobs(t *testing.T) {
	api := newTestAPI(t, nil)

	status, body := api.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/jobs?skills=go,%20postgres,,", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"go", "postgres"}, api.jobs.skills)
	assert.Equal(t, 1.0, body["count"])

	api.jobs.err = errors.New("feed down")
	status, _ = api.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, nil)
	status, body := api.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
}
