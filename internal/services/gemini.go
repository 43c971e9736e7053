package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"alfredoptarigan/resume-analyzer/internal/logger"
	"alfredoptarigan/resume-analyzer/internal/metrics"
)

const (
	maxResponseBytes = 8 << 20
	maxErrorBody     = 2048
)

// GenerationConfig holds the sampling parameters sent with every request.
type GenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopK             int     `json:"topK"`
	TopP             float64 `json:"topP"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:      0.4,
		TopK:             40,
		TopP:             0.95,
		MaxOutputTokens:  8192,
		ResponseMIMEType: "application/json",
	}
}

// ModelClient sends one prompt to the model and returns the first
// candidate's text.
type ModelClient interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

type GeminiClientConfig struct {
	APIKey     string
	APIURL     string
	Generation GenerationConfig
	Timeout    time.Duration
	HTTPClient *http.Client
}

type geminiClient struct {
	apiKey     string
	apiURL     string
	generation GenerationConfig
	timeout    time.Duration
	httpClient *http.Client
	log        *zap.Logger
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason genai.BlockedReason `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *genai.APIError `json:"error"`
}

func NewGeminiClient(cfg GeminiClientConfig, log *zap.Logger) ModelClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &geminiClient{
		apiKey:     cfg.APIKey,
		apiURL:     cfg.APIURL,
		generation: cfg.Generation,
		timeout:    cfg.Timeout,
		httpClient: httpClient,
		log:        logger.OrNop(log),
	}
}

// Invoke performs exactly one POST. It never retries; retry policy belongs
// to the caller, which can inspect the returned ErrorKind.
func (g *geminiClient) Invoke(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" || g.apiURL == "" {
		return "", newError(KindNotConfigured, StagePromptReady, "model API key or endpoint is not configured", nil)
	}

	endpoint, err := g.endpoint()
	if err != nil {
		return "", newError(KindNotConfigured, StagePromptReady, "model endpoint is not a valid URL", err)
	}

	payload, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: g.generation,
	})
	if err != nil {
		return "", newError(KindClientError, StagePromptReady, "failed to encode request", err)
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", newError(KindNotConfigured, StagePromptReady, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	g.log.Debug("invoking model",
		zap.String("endpoint", g.apiURL),
		zap.Int("prompt_chars", utf8.RuneCountInString(prompt)),
	)

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		metrics.CaptureDependency("gemini", 0, time.Since(start))
		return "", g.transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	metrics.CaptureDependency("gemini", resp.StatusCode, elapsed)
	if err != nil {
		return "", g.transportError(ctx, err)
	}

	g.log.Debug("model responded",
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", elapsed),
		zap.Int("body_bytes", len(body)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError(resp.StatusCode, body)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &PipelineError{
			Kind:       KindUpstreamServerError,
			Stage:      StagePromptReady,
			StatusCode: resp.StatusCode,
			Body:       truncateBody(body),
			Message:    "model returned an undecodable response envelope",
			Err:        err,
		}
	}

	if parsed.Error != nil {
		return "", &PipelineError{
			Kind:    KindUpstreamReportedError,
			Stage:   StagePromptReady,
			Code:    parsed.Error.Code,
			Message: orDefault(parsed.Error.Message, "unknown error"),
			Body:    truncateBody(body),
		}
	}

	if len(parsed.Candidates) == 0 {
		msg := "model returned no candidates"
		if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
			msg = fmt.Sprintf("%s (prompt blocked: %s)", msg, parsed.PromptFeedback.BlockReason)
		}
		return "", newError(KindNoCandidates, StagePromptReady, msg, nil)
	}

	var text strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	return text.String(), nil
}

func (g *geminiClient) endpoint() (string, error) {
	u, err := url.Parse(g.apiURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("missing scheme or host in %q", g.apiURL)
	}

	q := u.Query()
	q.Set("key", g.apiKey)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// transportError classifies a failure that produced no usable response.
// parent is the caller's context, used to tell caller cancellation apart
// from the client's own deadline.
func (g *geminiClient) transportError(parent context.Context, err error) error {
	err = g.redact(err)

	if perr := parent.Err(); perr != nil {
		if errors.Is(perr, context.DeadlineExceeded) {
			return newError(KindTimeout, StagePromptReady, "caller deadline exceeded", err)
		}
		return newError(KindCanceled, StagePromptReady, "request canceled", err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return newError(KindTimeout, StagePromptReady, fmt.Sprintf("no response within %s", g.timeout), err)
	}

	return newError(KindTransport, StagePromptReady, "request failed", err)
}

// redact replaces the request URL in err, which carries the API key, with
// the configured endpoint.
func (g *geminiClient) redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &url.Error{Op: uerr.Op, URL: g.apiURL, Err: uerr.Err}
	}
	return err
}

func statusError(status int, body []byte) error {
	var kind ErrorKind
	var msg string
	switch {
	case status == http.StatusUnauthorized:
		kind, msg = KindUnauthorized, "API key is invalid or unauthorized"
	case status == http.StatusForbidden:
		kind, msg = KindForbidden, "API key is not permitted to use this model"
	case status == http.StatusNotFound:
		kind, msg = KindNotFound, "model not found, check the endpoint URL"
	case status == http.StatusTooManyRequests:
		kind, msg = KindRateLimited, "rate limit exceeded"
	case status >= 500:
		kind, msg = KindUpstreamServerError, "model service error"
	default:
		kind, msg = KindClientError, "request rejected"
	}

	// error bodies usually carry {"error":{...}}; surface its message
	var envelope struct {
		Error *genai.APIError `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil && envelope.Error.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, envelope.Error.Message)
	}

	return &PipelineError{
		Kind:       kind,
		Stage:      StagePromptReady,
		StatusCode: status,
		Body:       truncateBody(body),
		Message:    msg,
	}
}

func truncateBody(body []byte) string {
	if len(body) <= maxErrorBody {
		return string(body)
	}
	return string(body[:maxErrorBody])
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
