package dto

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp Timestamp `json:"timestamp"`
}
