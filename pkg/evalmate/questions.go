package evalmate

import (
	"context"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/evalmate-go-client/internal/dto"
)

// UploadQuestion sends a question document through POST /questions/upload.
// The params must reference an existing rubric.
func (c *Client) UploadQuestion(ctx context.Context, file UploadFile, params dto.QuestionUploadParams, onProgress ProgressFunc) (dto.QuestionUploadResponse, error) {
	ctx, span := c.tracer.Start(ctx, "evalmate.questions.upload", trace.WithAttributes(
		attribute.String("upload.file_name", file.Name),
		attribute.String("rubric.id", params.RubricID),
	))
	defer span.End()

	var out dto.QuestionUploadResponse
	if err := c.doMultipart(ctx, "questions.upload", "/questions/upload", file, params, onProgress, &out); err != nil {
		return dto.QuestionUploadResponse{}, err
	}
	return out, nil
}

// GetQuestion fetches the full question.
func (c *Client) GetQuestion(ctx context.Context, id string) (dto.Question, error) {
	ctx, span := c.tracer.Start(ctx, "evalmate.questions.get", trace.WithAttributes(
		attribute.String("question.id", id),
	))
	defer span.End()

	var out dto.Question
	if err := c.doJSON(ctx, "questions.get", http.MethodGet, "/questions/"+id, nil, nil, &out); err != nil {
		return dto.Question{}, err
	}
	return out, nil
}

// ListQuestions returns question metadata, optionally narrowed to one rubric.
func (c *Client) ListQuestions(ctx context.Context, rubricID string) ([]dto.QuestionMeta, error) {
	ctx, span := c.tracer.Start(ctx, "evalmate.questions.list")
	defer span.End()

	query := url.Values{}
	if rubricID != "" {
		query.Set("rubric_id", rubricID)
	}

	var out dto.QuestionListResponse
	if err := c.doJSON(ctx, "questions.list", http.MethodGet, "/questions", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}
