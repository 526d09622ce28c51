package dto

import "github.com/noah-isme/evalmate-go-client/internal/models"

// RubricUploadParams is serialized into the "params" form field of a rubric
// upload. All fields are optional; the backend infers missing metadata from
// the filename.
type RubricUploadParams struct {
	Course     string `json:"course,omitempty"`
	Assignment string `json:"assignment,omitempty"`
	Version    string `json:"version,omitempty"`
}

// RubricMeta is the lightweight rubric descriptor used in upload responses
// and list items.
type RubricMeta struct {
	ID         string `json:"id"`
	Course     string `json:"course"`
	Assignment string `json:"assignment"`
	Version    string `json:"version"`
}

// RubricUploadResponse is returned by POST /rubrics/upload.
type RubricUploadResponse struct {
	Meta      RubricMeta `json:"meta"`
	ItemCount int        `json:"item_count"`
}

// RubricItem is one weighted criterion of a rubric.
type RubricItem struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
	Criterion   string  `json:"criterion"`
}

// Rubric is the full resource returned by GET /rubrics/{id}. The source
// document payload is not decoded; the client only needs the criteria.
type Rubric struct {
	ID         string       `json:"id"`
	Course     string       `json:"course"`
	Assignment string       `json:"assignment"`
	Version    string       `json:"version"`
	Items      []RubricItem `json:"items"`
}

// RubricListResponse is returned by GET /rubrics.
type RubricListResponse struct {
	Items []RubricMeta `json:"items"`
}

// NewRubricRef builds the selection ref from a fetched rubric.
func NewRubricRef(r Rubric) models.RubricRef {
	return models.RubricRef{
		ID:         r.ID,
		Course:     r.Course,
		Assignment: r.Assignment,
		Version:    r.Version,
		ItemCount:  len(r.Items),
	}
}
