package evalmate

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/evalmate-go-client/internal/dto"
)

// BuildContext asks the backend to assemble the evaluation context for the
// given rubric, question, and submission. Rebuilding for the same ids reuses
// the server-side cache.
func (c *Client) BuildContext(ctx context.Context, req dto.FusionBuildRequest) (dto.FusionContextResponse, error) {
	ctx, span := c.tracer.Start(ctx, "evalmate.fusion.build", trace.WithAttributes(
		attribute.String("rubric.id", req.RubricID),
		attribute.String("question.id", req.QuestionID),
		attribute.String("submission.id", req.SubmissionID),
	))
	defer span.End()

	var out dto.FusionContextResponse
	if err := c.doJSON(ctx, "fusion.build", http.MethodPost, "/fusion/build", nil, req, &out); err != nil {
		return dto.FusionContextResponse{}, err
	}
	return out, nil
}
