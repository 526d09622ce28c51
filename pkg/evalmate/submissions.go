package evalmate

import (
	"context"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/evalmate-go-client/internal/dto"
)

// UploadSubmission sends a submission document through
// POST /submissions/upload. The params must reference an existing rubric and
// question.
func (c *Client) UploadSubmission(ctx context.Context, file UploadFile, params dto.SubmissionUploadParams, onProgress ProgressFunc) (dto.SubmissionUploadResponse, error) {
	ctx, span := c.tracer.Start(ctx, "evalmate.submissions.upload", trace.WithAttributes(
		attribute.String("upload.file_name", file.Name),
		attribute.String("rubric.id", params.RubricID),
		attribute.String("question.id", params.QuestionID),
	))
	defer span.End()

	var out dto.SubmissionUploadResponse
	if err := c.doMultipart(ctx, "submissions.upload", "/submissions/upload", file, params, onProgress, &out); err != nil {
		return dto.SubmissionUploadResponse{}, err
	}
	return out, nil
}

// GetSubmission fetches the full submission.
func (c *Client) GetSubmission(ctx context.Context, id string) (dto.Submission, error) {
	ctx, span := c.tracer.Start(ctx, "evalmate.submissions.get", trace.WithAttributes(
		attribute.String("submission.id", id),
	))
	defer span.End()

	var out dto.Submission
	if err := c.doJSON(ctx, "submissions.get", http.MethodGet, "/submissions/"+id, nil, nil, &out); err != nil {
		return dto.Submission{}, err
	}
	return out, nil
}

// ListSubmissions returns submission metadata matching the filter.
func (c *Client) ListSubmissions(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionMeta, error) {
	ctx, span := c.tracer.Start(ctx, "evalmate.submissions.list")
	defer span.End()

	query := url.Values{}
	if filter.RubricID != "" {
		query.Set("rubric_id", filter.RubricID)
	}
	if filter.QuestionID != "" {
		query.Set("question_id", filter.QuestionID)
	}
	if filter.StudentHandle != "" {
		query.Set("student_handle", filter.StudentHandle)
	}

	var out dto.SubmissionListResponse
	if err := c.doJSON(ctx, "submissions.list", http.MethodGet, "/submissions", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}
