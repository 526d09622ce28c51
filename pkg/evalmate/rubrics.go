package evalmate

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/evalmate-go-client/internal/dto"
)

// UploadRubric sends a rubric document through POST /rubrics/upload.
func (c *Client) UploadRubric(ctx context.Context, file UploadFile, params dto.RubricUploadParams, onProgress ProgressFunc) (dto.RubricUploadResponse, error) {
	ctx, span := c.tracer.Start(ctx, "evalmate.rubrics.upload", trace.WithAttributes(
		attribute.String("upload.file_name", file.Name),
		attribute.Int("upload.size_bytes", len(file.Data)),
	))
	defer span.End()

	var out dto.RubricUploadResponse
	if err := c.doMultipart(ctx, "rubrics.upload", "/rubrics/upload", file, params, onProgress, &out); err != nil {
		return dto.RubricUploadResponse{}, err
	}
	return out, nil
}

// GetRubric fetches the full rubric, including its weighted items.
func (c *Client) GetRubric(ctx context.Context, id string) (dto.Rubric, error) {
	ctx, span := c.tracer.Start(ctx, "evalmate.rubrics.get", trace.WithAttributes(
		attribute.String("rubric.id", id),
	))
	defer span.End()

	var out dto.Rubric
	if err := c.doJSON(ctx, "rubrics.get", http.MethodGet, "/rubrics/"+id, nil, nil, &out); err != nil {
		return dto.Rubric{}, err
	}
	return out, nil
}

// ListRubrics returns the metadata of every stored rubric.
func (c *Client) ListRubrics(ctx context.Context) ([]dto.RubricMeta, error) {
	ctx, span := c.tracer.Start(ctx, "evalmate.rubrics.list")
	defer span.End()

	var out dto.RubricListResponse
	if err := c.doJSON(ctx, "rubrics.list", http.MethodGet, "/rubrics", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}
