package dto

import "github.com/noah-isme/evalmate-go-client/internal/models"

// QuestionUploadParams is serialized into the "params" form field of a
// question upload. The rubric id is resolved from the current selection at
// dispatch time, never captured at enqueue.
type QuestionUploadParams struct {
	RubricID string `json:"rubric_id" validate:"required"`
	Title    string `json:"title,omitempty"`
}

// QuestionMeta is the lightweight question descriptor used in upload
// responses and list items.
type QuestionMeta struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	RubricID string `json:"rubric_id"`
}

// QuestionUploadResponse is returned by POST /questions/upload.
type QuestionUploadResponse struct {
	Meta      QuestionMeta `json:"meta"`
	CreatedAt Timestamp    `json:"created_at"`
}

// Question is the full resource returned by GET /questions/{id}. The
// canonical document payload is not decoded.
type Question struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	RubricID string `json:"rubric_id"`
}

// QuestionListResponse is returned by GET /questions.
type QuestionListResponse struct {
	Items []QuestionMeta `json:"items"`
}

// NewQuestionRef builds the selection ref from a fetched question.
func NewQuestionRef(q Question) models.QuestionRef {
	return models.QuestionRef{
		ID:       q.ID,
		Title:    q.Title,
		RubricID: q.RubricID,
	}
}
