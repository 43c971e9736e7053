package models

import (
	"encoding/json"
	"time"
)

type UploadResponse struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type"`
	PageCount    int    `json:"page_count"`
	TextLength   int    `json:"text_length"`
}

type AnalyzeRequest struct {
	JobDescription string `json:"job_description" validate:"required,min=10"`
}

type AnalysisResponse struct {
	ID             string          `json:"id"`
	DocumentID     string          `json:"document_id"`
	JobDescription string          `json:"job_description"`
	Score          float64         `json:"score"`
	Result         json.RawMessage `json:"result"`
	CreatedAt      string          `json:"created_at"`
}

type JobsRequest struct {
	Skills []string `query:"skills" validate:"max=50,dive,required,max=64"`
}

func NewAnalysisResponse(a *Analysis) AnalysisResponse {
	result := json.RawMessage(a.Result)
	if !json.Valid(result) {
		result = json.RawMessage("null")
	}

	return AnalysisResponse{
		ID:             a.ID.String(),
		DocumentID:     a.DocumentID.String(),
		JobDescription: a.JobDescription,
		Score:          a.Score,
		Result:         result,
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
