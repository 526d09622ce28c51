package dto

import "github.com/noah-isme/evalmate-go-client/internal/models"

// FusionBuildRequest is the body of POST /fusion/build.
type FusionBuildRequest struct {
	RubricID     string `json:"rubric_id" validate:"required"`
	QuestionID   string `json:"question_id" validate:"required"`
	SubmissionID string `json:"submission_id" validate:"required"`
}

// FusionContextResponse carries the summary fields of a built context. The
// assembled text and visual blocks are server-side concerns and are left
// undecoded.
type FusionContextResponse struct {
	ID             string    `json:"id"`
	RubricID       string    `json:"rubric_id"`
	QuestionID     string    `json:"question_id"`
	SubmissionID   string    `json:"submission_id"`
	TokenEstimate  int       `json:"token_estimate"`
	VisualCount    int       `json:"visual_count"`
	TextBlockCount int       `json:"text_block_count"`
	CreatedAt      Timestamp `json:"created_at"`
}

// NewEvaluationContext converts a build response into the client-side
// context summary.
func NewEvaluationContext(r FusionContextResponse) models.EvaluationContext {
	return models.EvaluationContext{
		ID:             r.ID,
		RubricID:       r.RubricID,
		QuestionID:     r.QuestionID,
		SubmissionID:   r.SubmissionID,
		TokenEstimate:  r.TokenEstimate,
		VisualCount:    r.VisualCount,
		TextBlockCount: r.TextBlockCount,
		CreatedAt:      r.CreatedAt.Time,
	}
}
