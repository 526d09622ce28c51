package models

import "time"

// EvaluationContext is the client-side summary of a server-built fusion
// context: the assembled rubric, question, and submission bundle used as
// grading input. The full text and visual blocks stay server-side; the client
// keeps the identifiers and the computed metrics.
type EvaluationContext struct {
	ID             string    `json:"id"`
	RubricID       string    `json:"rubric_id"`
	QuestionID     string    `json:"question_id"`
	SubmissionID   string    `json:"submission_id"`
	TokenEstimate  int       `json:"token_estimate"`
	VisualCount    int       `json:"visual_count"`
	TextBlockCount int       `json:"text_block_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Matches reports whether the context was built from exactly the given
// rubric, question, and submission. A context whose inputs no longer match
// the current selection is stale and must not be reused.
func (c EvaluationContext) Matches(rubricID, questionID, submissionID string) bool {
	return c.RubricID == rubricID && c.QuestionID == questionID && c.SubmissionID == submissionID
}
