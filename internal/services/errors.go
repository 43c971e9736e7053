package services

import (
	"errors"
	"fmt"
)

// ErrorKind identifies why an evaluation failed. The set is closed; callers
// switch on it to decide between retrying, fixing input and reconfiguring.
type ErrorKind string

const (
	KindNotConfigured         ErrorKind = "not_configured"
	KindEmptySourceText       ErrorKind = "empty_source_text"
	KindUnreadable            ErrorKind = "unreadable"
	KindPromptTooLarge        ErrorKind = "prompt_too_large"
	KindUnauthorized          ErrorKind = "unauthorized"
	KindForbidden             ErrorKind = "forbidden"
	KindNotFound              ErrorKind = "not_found"
	KindRateLimited           ErrorKind = "rate_limited"
	KindUpstreamServerError   ErrorKind = "upstream_server_error"
	KindClientError           ErrorKind = "client_error"
	KindUpstreamReportedError ErrorKind = "upstream_reported_error"
	KindNoCandidates          ErrorKind = "no_candidates"
	KindNotJSON               ErrorKind = "not_json"
	KindTimeout               ErrorKind = "timeout"
	KindCanceled              ErrorKind = "canceled"
	KindTransport             ErrorKind = "transport"
	KindDocumentNotFound      ErrorKind = "document_not_found"
	KindPersistence           ErrorKind = "persistence"
)

// Stage names a step of the evaluation pipeline.
type Stage string

const (
	StageStart          Stage = "start"
	StageTextReady      Stage = "text_ready"
	StagePromptReady    Stage = "prompt_ready"
	StageModelInvoked   Stage = "model_invoked"
	StageValidated      Stage = "validated"
	StageScoreExtracted Stage = "score_extracted"
	StagePersisted      Stage = "persisted"
	StageFailed         Stage = "failed"
)

// PipelineError is the single error type returned by the evaluation pipeline.
type PipelineError struct {
	Kind  ErrorKind
	Stage Stage

	// upstream details, set for HTTP and upstream-reported failures
	StatusCode int
	Code       int
	Body       string

	Message string
	// Preview holds the start of an unparseable model output.
	Preview string
	// Actual and Limit are set for KindPromptTooLarge.
	Actual int
	Limit  int

	Err error
}

func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	switch {
	case e.StatusCode != 0:
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	case e.Code != 0:
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, stage Stage, message string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Message: message, Err: cause}
}

// KindOf returns the kind of the first PipelineError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether repeating the same call may succeed.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindUpstreamServerError, KindTimeout, KindTransport:
		return true
	}
	return false
}

// Remediation returns a short operator hint for kind.
func Remediation(kind ErrorKind) string {
	switch kind {
	case KindNotConfigured:
		return "set GEMINI_API_KEY and GEMINI_API_URL"
	case KindEmptySourceText:
		return "the document has no extractable text; upload a text-based file"
	case KindUnreadable:
		return "upload a PDF, DOCX, ODT, RTF or plain text file"
	case KindPromptTooLarge:
		return "shorten the resume or the job description"
	case KindUnauthorized:
		return "check that the API key is valid"
	case KindForbidden:
		return "the API key lacks permission for this model"
	case KindNotFound:
		return "check the model name in GEMINI_API_URL"
	case KindRateLimited:
		return "quota exceeded; retry later"
	case KindUpstreamServerError, KindTimeout, KindTransport:
		return "the model service is unavailable; retry later"
	case KindNoCandidates:
		return "the model returned no answer; the prompt may have been blocked"
	case KindNotJSON:
		return "the model answered with malformed output; retry the analysis"
	case KindDocumentNotFound:
		return "upload the document first"
	}
	return ""
}
