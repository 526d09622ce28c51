package evalmate

import (
	"context"
	"net/http"

	"github.com/noah-isme/evalmate-go-client/internal/dto"
)

// Health pings the backend liveness endpoint.
func (c *Client) Health(ctx context.Context) (dto.HealthResponse, error) {
	ctx, span := c.tracer.Start(ctx, "evalmate.health")
	defer span.End()

	var out dto.HealthResponse
	if err := c.doJSON(ctx, "health", http.MethodGet, "/health", nil, nil, &out); err != nil {
		return dto.HealthResponse{}, err
	}
	return out, nil
}
