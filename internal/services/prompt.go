package services

import (
	"fmt"
	"unicode/utf8"
)

const analysisPromptTemplate = `You are an expert AI Resume Analyzer. Carefully analyze the following resume against the job description.

Resume Text:
%s

Job Description:
%s

Respond ONLY with a valid JSON object in the following exact format. Do not include any text before or after the JSON:
{
  "score": <integer_0_to_100>,
  "missing_skills": ["skill1", "skill2"],
  "strengths": ["strength1", "strength2"],
  "suggestions": "<specific improvement suggestions>"
}`

type PromptBuilder struct {
	maxChars int
}

// NewPromptBuilder returns a builder that rejects prompts longer than
// maxChars runes. A non-positive maxChars disables the check.
func NewPromptBuilder(maxChars int) *PromptBuilder {
	return &PromptBuilder{maxChars: maxChars}
}

// BuildAnalysisPrompt embeds both texts verbatim. It never truncates: an
// oversized prompt is rejected with KindPromptTooLarge.
func (pb *PromptBuilder) BuildAnalysisPrompt(resumeText, jobDescription string) (string, error) {
	prompt := fmt.Sprintf(analysisPromptTemplate, resumeText, jobDescription)

	if pb.maxChars > 0 {
		if n := utf8.RuneCountInString(prompt); n > pb.maxChars {
			return "", &PipelineError{
				Kind:    KindPromptTooLarge,
				Stage:   StageTextReady,
				Message: fmt.Sprintf("prompt is %d characters, limit is %d", n, pb.maxChars),
				Actual:  n,
				Limit:   pb.maxChars,
			}
		}
	}

	return prompt, nil
}
