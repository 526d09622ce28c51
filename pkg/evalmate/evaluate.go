package evalmate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/evalmate-go-client/internal/dto"
	"github.com/noah-isme/evalmate-go-client/internal/models"
)

// Evaluate runs the grading pass for the given selection. The backend keys
// the call on the three raw ids and re-derives or reuses the built context
// itself.
func (c *Client) Evaluate(ctx context.Context, rubricID, questionID, submissionID string) (models.EvaluationResult, error) {
	ctx, span := c.tracer.Start(ctx, "evalmate.evaluate", trace.WithAttributes(
		attribute.String("rubric.id", rubricID),
		attribute.String("question.id", questionID),
		attribute.String("submission.id", submissionID),
	))
	defer span.End()

	query := url.Values{}
	query.Set("rubric_id", rubricID)
	query.Set("question_id", questionID)
	query.Set("submission_id", submissionID)

	var out models.EvaluationResult
	if err := c.doJSON(ctx, "evaluate", http.MethodPost, "/evaluate/", query, nil, &out); err != nil {
		return models.EvaluationResult{}, err
	}
	return out, nil
}

// GetResult fetches a previously stored evaluation for a submission. The
// backend answers 200 with a null body when none exists; that is surfaced as
// ErrResultNotAvailable.
func (c *Client) GetResult(ctx context.Context, submissionID string) (models.EvaluationResult, error) {
	ctx, span := c.tracer.Start(ctx, "evalmate.evaluate.result", trace.WithAttributes(
		attribute.String("submission.id", submissionID),
	))
	defer span.End()

	var raw json.RawMessage
	if err := c.doJSON(ctx, "evaluate.result", http.MethodGet, "/evaluate/result/"+submissionID, nil, nil, &raw); err != nil {
		return models.EvaluationResult{}, err
	}

	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return models.EvaluationResult{}, fmt.Errorf("evaluate.result: %w", ErrResultNotAvailable)
	}

	var out models.EvaluationResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.EvaluationResult{}, fmt.Errorf("evaluate.result: decode response: %w", err)
	}
	return out, nil
}

// GetEvaluationStatus reports whether a submission has been graded.
func (c *Client) GetEvaluationStatus(ctx context.Context, submissionID string) (dto.EvaluationStatusResponse, error) {
	ctx, span := c.tracer.Start(ctx, "evalmate.evaluate.status", trace.WithAttributes(
		attribute.String("submission.id", submissionID),
	))
	defer span.End()

	var out dto.EvaluationStatusResponse
	if err := c.doJSON(ctx, "evaluate.status", http.MethodGet, "/evaluate/status/"+submissionID, nil, nil, &out); err != nil {
		return dto.EvaluationStatusResponse{}, err
	}
	return out, nil
}
