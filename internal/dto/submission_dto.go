package dto

import "github.com/noah-isme/evalmate-go-client/internal/models"

// SubmissionUploadParams is serialized into the "params" form field of a
// submission upload. Rubric and question ids are resolved from the current
// selection at dispatch time.
type SubmissionUploadParams struct {
	RubricID      string `json:"rubric_id" validate:"required"`
	QuestionID    string `json:"question_id" validate:"required"`
	StudentHandle string `json:"student_handle,omitempty"`
}

// SubmissionMeta is the lightweight submission descriptor used in upload
// responses and list items.
type SubmissionMeta struct {
	ID            string `json:"id"`
	RubricID      string `json:"rubric_id"`
	QuestionID    string `json:"question_id"`
	StudentHandle string `json:"student_handle"`
}

// SubmissionUploadResponse is returned by POST /submissions/upload.
type SubmissionUploadResponse struct {
	Meta      SubmissionMeta `json:"meta"`
	CreatedAt Timestamp      `json:"created_at"`
}

// Submission is the full resource returned by GET /submissions/{id}. The
// canonical document payload is not decoded.
type Submission struct {
	ID            string `json:"id"`
	StudentHandle string `json:"student_handle"`
	RubricID      string `json:"rubric_id"`
	QuestionID    string `json:"question_id"`
}

// SubmissionFilter narrows GET /submissions.
type SubmissionFilter struct {
	RubricID      string
	QuestionID    string
	StudentHandle string
}

// SubmissionListResponse is returned by GET /submissions.
type SubmissionListResponse struct {
	Items []SubmissionMeta `json:"items"`
}

// NewSubmissionRef builds the selection ref from a fetched submission.
func NewSubmissionRef(s Submission) models.SubmissionRef {
	return models.SubmissionRef{
		ID:            s.ID,
		RubricID:      s.RubricID,
		QuestionID:    s.QuestionID,
		StudentHandle: s.StudentHandle,
	}
}
